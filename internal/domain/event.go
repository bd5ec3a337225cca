package domain

import (
	"fmt"
	"strings"
)

// EventKind is the recognized kind of a single Apex debug log line
type EventKind int

const (
	KindUnclassified EventKind = iota
	KindCodeUnitStarted
	KindCodeUnitFinished
	KindMethodEntry
	KindMethodExit
	KindConstructorEntry
	KindConstructorExit
	KindSOQLBegin
	KindSOQLEnd
	KindDMLBegin
	KindDMLEnd
	KindUserDebug
	KindValidationRule
	KindLimitUsageBlock
	KindVariableAssignment
	KindCheckpoint
	KindCalloutRequest
	KindCalloutResponse
	KindExceptionThrown
	KindFatalError
	KindExecutionStarted
	KindExecutionFinished
)

var kindNames = [...]string{
	KindUnclassified:       "UNCLASSIFIED",
	KindCodeUnitStarted:    "CODE_UNIT_STARTED",
	KindCodeUnitFinished:   "CODE_UNIT_FINISHED",
	KindMethodEntry:        "METHOD_ENTRY",
	KindMethodExit:         "METHOD_EXIT",
	KindConstructorEntry:   "CONSTRUCTOR_ENTRY",
	KindConstructorExit:    "CONSTRUCTOR_EXIT",
	KindSOQLBegin:          "SOQL_BEGIN",
	KindSOQLEnd:            "SOQL_END",
	KindDMLBegin:           "DML_BEGIN",
	KindDMLEnd:             "DML_END",
	KindUserDebug:          "USER_DEBUG",
	KindValidationRule:     "VALIDATION_RULE",
	KindLimitUsageBlock:    "LIMIT_USAGE_BLOCK",
	KindVariableAssignment: "VARIABLE_ASSIGNMENT",
	KindCheckpoint:         "CHECKPOINT",
	KindCalloutRequest:     "CALLOUT_REQUEST",
	KindCalloutResponse:    "CALLOUT_RESPONSE",
	KindExceptionThrown:    "EXCEPTION_THROWN",
	KindFatalError:         "FATAL_ERROR",
	KindExecutionStarted:   "EXECUTION_STARTED",
	KindExecutionFinished:  "EXECUTION_FINISHED",
}

func (k EventKind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return kindNames[KindUnclassified]
	}
	return kindNames[k]
}

// MarshalText makes kinds readable in JSON output
func (k EventKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText accepts the names produced by MarshalText
func (k *EventKind) UnmarshalText(text []byte) error {
	parsed, err := ParseEventKind(string(text))
	if err != nil {
		return err
	}
	*k = parsed
	return nil
}

// ParseEventKind resolves a kind name (case-insensitive)
func ParseEventKind(name string) (EventKind, error) {
	upper := strings.ToUpper(strings.TrimSpace(name))
	for i, n := range kindNames {
		if n == upper {
			return EventKind(i), nil
		}
	}
	return KindUnclassified, fmt.Errorf("unknown event kind: %q", name)
}

// Opens reports whether the kind opens a span / call frame
func (k EventKind) Opens() bool {
	switch k {
	case KindCodeUnitStarted, KindMethodEntry, KindConstructorEntry, KindCalloutRequest:
		return true
	}
	return false
}

// Closes reports whether the kind closes a span / call frame
func (k EventKind) Closes() bool {
	switch k {
	case KindCodeUnitFinished, KindMethodExit, KindConstructorExit, KindCalloutResponse:
		return true
	}
	return false
}
