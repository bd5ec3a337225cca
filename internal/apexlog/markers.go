package apexlog

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// Marker tokens recognized verbatim in the second pipe-delimited field
const (
	MarkerCodeUnitStarted      = "CODE_UNIT_STARTED"
	MarkerCodeUnitFinished     = "CODE_UNIT_FINISHED"
	MarkerMethodEntry          = "METHOD_ENTRY"
	MarkerMethodExit           = "METHOD_EXIT"
	MarkerConstructorEntry     = "CONSTRUCTOR_ENTRY"
	MarkerConstructorExit      = "CONSTRUCTOR_EXIT"
	MarkerSOQLBegin            = "SOQL_EXECUTE_BEGIN"
	MarkerSOQLEnd              = "SOQL_EXECUTE_END"
	MarkerDMLBegin             = "DML_BEGIN"
	MarkerDMLEnd               = "DML_END"
	MarkerUserDebug            = "USER_DEBUG"
	MarkerValidationRule       = "VALIDATION_RULE"
	MarkerValidationPass       = "VALIDATION_PASS"
	MarkerValidationFail       = "VALIDATION_FAIL"
	MarkerCumulativeLimitUsage = "CUMULATIVE_LIMIT_USAGE"
	MarkerCumulativeLimitEnd   = "CUMULATIVE_LIMIT_USAGE_END"
	MarkerLimitUsageForNS      = "LIMIT_USAGE_FOR_NS"
	MarkerVariableAssignment   = "VARIABLE_ASSIGNMENT"
	MarkerCheckpoint           = "CHECKPOINT"
	MarkerStatementExecute     = "STATEMENT_EXECUTE"
	MarkerCalloutRequest       = "CALLOUT_REQUEST"
	MarkerCalloutResponse      = "CALLOUT_RESPONSE"
	MarkerExceptionThrown      = "EXCEPTION_THROWN"
	MarkerFatalError           = "FATAL_ERROR"
	MarkerExecutionStarted     = "EXECUTION_STARTED"
	MarkerExecutionFinished    = "EXECUTION_FINISHED"
	MarkerFlowInterviewBegin   = "FLOW_START_INTERVIEW_BEGIN"
	MarkerFlowInterviewEnd     = "FLOW_START_INTERVIEW_END"
)

// Unit types shown for CODE_UNIT_STARTED lines
const (
	UnitTypeTrigger     = "Trigger"
	UnitTypeFlow        = "Flow"
	UnitTypeValidation  = "Validation"
	UnitTypeVisualforce = "Visualforce"
	UnitTypeWorkflow    = "Workflow"
	UnitTypeCodeUnit    = "Code Unit"
)

// calloutKey pairs callout request/response lines
const calloutKey = "callout"

var (
	// __sfdc_trigger/AccountTrigger
	triggerPattern = regexp.MustCompile(`__sfdc_trigger/(.+)$`)
	// Rows:7 anywhere in a SOQL end line
	rowsPattern = regexp.MustCompile(`Rows:\s*(\d+)`)
	// DML_BEGIN fields: Op:Insert|Type:Account|Rows:1
	opPattern   = regexp.MustCompile(`^Op:(.*)$`)
	typePattern = regexp.MustCompile(`^Type:(.*)$`)
)

// ParseFunc fills a classified line from the fields after the marker.
// next is the raw line that follows (empty at end of log); only SOQL begin
// lines look at it.
type ParseFunc func(line *domain.ClassifiedLine, args []string, next string)

// MarkerSpec binds a marker token to its event kind and field parser
type MarkerSpec struct {
	Kind  domain.EventKind
	Parse ParseFunc
}

func defaultMarkers() map[string]MarkerSpec {
	return map[string]MarkerSpec{
		MarkerCodeUnitStarted:      {domain.KindCodeUnitStarted, parseCodeUnitStarted},
		MarkerCodeUnitFinished:     {domain.KindCodeUnitFinished, parseCodeUnitFinished},
		MarkerFlowInterviewBegin:   {domain.KindCodeUnitStarted, parseFlowInterview},
		MarkerFlowInterviewEnd:     {domain.KindCodeUnitFinished, parseFlowInterview},
		MarkerMethodEntry:          {domain.KindMethodEntry, parseMethod},
		MarkerMethodExit:           {domain.KindMethodExit, parseMethod},
		MarkerConstructorEntry:     {domain.KindConstructorEntry, parseConstructor},
		MarkerConstructorExit:      {domain.KindConstructorExit, parseConstructor},
		MarkerSOQLBegin:            {domain.KindSOQLBegin, parseSOQLBegin},
		MarkerSOQLEnd:              {domain.KindSOQLEnd, parseSOQLEnd},
		MarkerDMLBegin:             {domain.KindDMLBegin, parseDMLBegin},
		MarkerDMLEnd:               {domain.KindDMLEnd, parseSourceOnly},
		MarkerUserDebug:            {domain.KindUserDebug, parseUserDebug},
		MarkerValidationRule:       {domain.KindValidationRule, parseLastField},
		MarkerValidationPass:       {domain.KindValidationRule, parseValidationResult("passed")},
		MarkerValidationFail:       {domain.KindValidationRule, parseValidationResult("failed")},
		MarkerCumulativeLimitUsage: {domain.KindLimitUsageBlock, parseFixedText("Cumulative limit usage")},
		MarkerLimitUsageForNS:      {domain.KindLimitUsageBlock, parseLimitNamespace},
		MarkerCumulativeLimitEnd:   {domain.KindLimitUsageBlock, parseFixedText("Cumulative limit usage end")},
		MarkerVariableAssignment:   {domain.KindVariableAssignment, parseVariableAssignment},
		MarkerCheckpoint:           {domain.KindCheckpoint, parseCheckpoint},
		MarkerStatementExecute:     {domain.KindCheckpoint, parseCheckpoint},
		MarkerCalloutRequest:       {domain.KindCalloutRequest, parseCallout},
		MarkerCalloutResponse:      {domain.KindCalloutResponse, parseCallout},
		MarkerExceptionThrown:      {domain.KindExceptionThrown, parseJoinedText},
		MarkerFatalError:           {domain.KindFatalError, parseJoinedText},
		MarkerExecutionStarted:     {domain.KindExecutionStarted, parseFixedText("Execution started")},
		MarkerExecutionFinished:    {domain.KindExecutionFinished, parseFixedText("Execution finished")},
	}
}

// splitSourceLine strips a leading [N] field and returns N
func splitSourceLine(args []string) (int, []string) {
	if len(args) == 0 {
		return 0, args
	}
	f := args[0]
	if len(f) < 3 || f[0] != '[' || f[len(f)-1] != ']' {
		return 0, args
	}
	n, err := strconv.Atoi(f[1 : len(f)-1])
	if err != nil {
		return 0, args
	}
	return n, args[1:]
}

func lastField(args []string) string {
	for i := len(args) - 1; i >= 0; i-- {
		if s := strings.TrimSpace(args[i]); s != "" {
			return s
		}
	}
	return ""
}

func parseCodeUnitStarted(line *domain.ClassifiedLine, args []string, _ string) {
	if len(args) > 0 && args[0] == "[EXTERNAL]" {
		line.External = true
		args = args[1:]
	}

	name := lastField(args)
	line.Key = name
	line.UnitType, line.PrimaryText = normalizeUnit(name)

	// Triggers carry a description before the __sfdc_trigger field:
	// AccountTrigger on Account trigger event BeforeInsert
	detail := line.UnitType
	if line.UnitType == UnitTypeTrigger && len(args) >= 2 {
		if desc := strings.TrimSpace(args[len(args)-2]); desc != "" {
			detail = desc
		}
	}
	if line.External {
		detail += " (external)"
	}
	line.SecondaryDetail = detail
}

func parseCodeUnitFinished(line *domain.ClassifiedLine, args []string, _ string) {
	name := lastField(args)
	line.Key = name
	line.UnitType, line.PrimaryText = normalizeUnit(name)
}

// normalizeUnit maps a raw code unit name to its display type and name
func normalizeUnit(name string) (string, string) {
	if m := triggerPattern.FindStringSubmatch(name); m != nil {
		return UnitTypeTrigger, m[1]
	}
	switch {
	case strings.HasPrefix(name, "Flow:"):
		return UnitTypeFlow, strings.TrimPrefix(name, "Flow:")
	case strings.HasPrefix(name, "Validation:"):
		return UnitTypeValidation, strings.TrimPrefix(name, "Validation:")
	case strings.HasPrefix(name, "Workflow:"):
		return UnitTypeWorkflow, strings.TrimPrefix(name, "Workflow:")
	case strings.HasPrefix(name, "VF:"):
		return UnitTypeVisualforce, strings.TrimSpace(strings.TrimPrefix(name, "VF:"))
	}
	return UnitTypeCodeUnit, name
}

// FLOW_START_INTERVIEW_BEGIN|<interview id>|<flow name>
func parseFlowInterview(line *domain.ClassifiedLine, args []string, _ string) {
	line.UnitType = UnitTypeFlow
	line.PrimaryText = lastField(args)
	if len(args) > 0 {
		line.Key = strings.TrimSpace(args[0])
	}
	line.SecondaryDetail = UnitTypeFlow
}

// METHOD_ENTRY|[1]|01p000000000001|MyClass.myMethod()
func parseMethod(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = lastField(args)
	line.Key = line.PrimaryText
}

// CONSTRUCTOR_ENTRY|[3]|01p000000000001|<init>()|MyClass
func parseConstructor(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = lastField(args)
	line.Key = line.PrimaryText
	for _, a := range args {
		if strings.HasPrefix(a, "<init>") {
			line.SecondaryDetail = a
			break
		}
	}
}

// SOQL_EXECUTE_BEGIN|[5]|Aggregations:0|SELECT Id FROM Account
// The row count is recovered from an immediately following SOQL_EXECUTE_END line.
func parseSOQLBegin(line *domain.ClassifiedLine, args []string, next string) {
	line.SourceLine, args = splitSourceLine(args)
	if len(args) > 0 && strings.HasPrefix(args[0], "Aggregations:") {
		args = args[1:]
	}
	line.PrimaryText = strings.TrimSpace(strings.Join(args, "|"))

	fields := strings.SplitN(next, "|", 3)
	if len(fields) < 3 || strings.TrimSpace(fields[1]) != MarkerSOQLEnd {
		return
	}
	if m := rowsPattern.FindStringSubmatch(fields[2]); m != nil {
		if rows, err := strconv.Atoi(m[1]); err == nil {
			line.RowCount = &rows
			line.SecondaryDetail = fmt.Sprintf("Rows: %d", rows)
		}
	}
}

// SOQL_EXECUTE_END|[5]|Rows:7
func parseSOQLEnd(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	joined := strings.Join(args, "|")
	line.PrimaryText = strings.TrimSpace(joined)
	if m := rowsPattern.FindStringSubmatch(joined); m != nil {
		if rows, err := strconv.Atoi(m[1]); err == nil {
			line.RowCount = &rows
			line.PrimaryText = fmt.Sprintf("Rows: %d", rows)
		}
	}
}

// DML_BEGIN|[10]|Op:Insert|Type:Account|Rows:1
func parseDMLBegin(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	var op, typ string
	for _, a := range args {
		if m := opPattern.FindStringSubmatch(a); m != nil {
			op = m[1]
		} else if m := typePattern.FindStringSubmatch(a); m != nil {
			typ = m[1]
		} else if m := rowsPattern.FindStringSubmatch(a); m != nil {
			if rows, err := strconv.Atoi(m[1]); err == nil {
				line.RowCount = &rows
				line.SecondaryDetail = fmt.Sprintf("Rows: %d", rows)
			}
		}
	}
	line.PrimaryText = strings.TrimSpace(op + " " + typ)
	if line.PrimaryText == "" {
		line.PrimaryText = strings.Join(args, "|")
	}
}

func parseSourceOnly(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = strings.TrimSpace(strings.Join(args, "|"))
}

// USER_DEBUG|[7]|DEBUG|message, the message may itself contain pipes
func parseUserDebug(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	var level string
	if len(args) > 0 {
		level = args[0]
		args = args[1:]
	}
	msg := strings.Join(args, "|")
	line.PrimaryText = msg
	line.Key = level

	if pretty, ok := structuredPayload(msg); ok {
		line.IsStructuredPayload = true
		line.SecondaryDetail = pretty
		return
	}
	line.SecondaryDetail = msg
}

func parseLastField(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = lastField(args)
	line.Key = line.PrimaryText
}

func parseValidationResult(result string) ParseFunc {
	return func(line *domain.ClassifiedLine, args []string, _ string) {
		line.PrimaryText = "Validation " + result
		if detail := strings.TrimSpace(strings.Join(args, "|")); detail != "" {
			line.SecondaryDetail = detail
		}
	}
}

func parseFixedText(text string) ParseFunc {
	return func(line *domain.ClassifiedLine, args []string, _ string) {
		line.PrimaryText = text
	}
}

// LIMIT_USAGE_FOR_NS|(default)|
func parseLimitNamespace(line *domain.ClassifiedLine, args []string, _ string) {
	ns := DefaultNamespace
	if len(args) > 0 {
		if s := strings.TrimSpace(args[0]); s != "" {
			ns = s
		}
	}
	line.Key = ns
	line.PrimaryText = "Namespace " + ns
}

// VARIABLE_ASSIGNMENT|[3]|name|value|0x1a2b
func parseVariableAssignment(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	if len(args) == 0 {
		return
	}
	line.VarName = strings.TrimSpace(args[0])
	if len(args) > 1 {
		line.VarValue = args[1]
	}
	line.Key = line.VarName
	line.PrimaryText = line.VarName + " = " + line.VarValue
}

// CHECKPOINT|[42] / STATEMENT_EXECUTE|[42]
func parseCheckpoint(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = fmt.Sprintf("Line %d", line.SourceLine)
	if rest := strings.TrimSpace(strings.Join(args, "|")); rest != "" {
		line.SecondaryDetail = rest
	}
}

// CALLOUT_REQUEST|[12]|System.HttpRequest[Endpoint=https://example.com, Method=GET]
func parseCallout(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = strings.TrimSpace(strings.Join(args, "|"))
	line.Key = calloutKey
}

func parseJoinedText(line *domain.ClassifiedLine, args []string, _ string) {
	line.SourceLine, args = splitSourceLine(args)
	line.PrimaryText = strings.TrimSpace(strings.Join(args, "|"))
}
