package replay

import (
	"errors"
	"fmt"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// ErrCursorOutOfRange is returned when seeking outside [0, len(lines)]
var ErrCursorOutOfRange = errors.New("cursor out of range")

// Advance applies one classified line to a state and returns the next state.
// The input state is not modified. A non-nil Jump is returned for lines that
// point the viewer at a source line.
//
// Transitions:
//   - METHOD_ENTRY, CONSTRUCTOR_ENTRY push a frame label
//   - METHOD_EXIT, CONSTRUCTOR_EXIT pop a frame, nothing happens on an empty stack
//   - VARIABLE_ASSIGNMENT sets variables[name] = value
//   - CHECKPOINT only emits a Jump
func Advance(state domain.ReplayState, line domain.ClassifiedLine) (domain.ReplayState, *domain.Jump) {
	next := state.Clone()
	jump := apply(&next, line)
	return next, jump
}

// apply mutates state in place
func apply(state *domain.ReplayState, line domain.ClassifiedLine) *domain.Jump {
	state.Cursor++

	switch line.Kind {
	case domain.KindMethodEntry, domain.KindConstructorEntry:
		state.CallStack = append(state.CallStack, frameLabel(line))
	case domain.KindMethodExit, domain.KindConstructorExit:
		if n := len(state.CallStack); n > 0 {
			state.CallStack = state.CallStack[:n-1]
		}
	case domain.KindVariableAssignment:
		if line.VarName != "" {
			state.Variables[line.VarName] = line.VarValue
		}
	case domain.KindCheckpoint:
		return &domain.Jump{LineIndex: line.OriginalIndex, SourceLine: line.SourceLine}
	}
	return nil
}

// Seek derives the state at cursor k by replaying lines [0, k) from the
// empty state. The returned Jump belongs to line k-1, if any.
func Seek(lines []domain.ClassifiedLine, k int) (domain.ReplayState, *domain.Jump, error) {
	if k < 0 || k > len(lines) {
		return domain.ReplayState{}, nil, fmt.Errorf("%w: %d not in [0, %d]", ErrCursorOutOfRange, k, len(lines))
	}

	state := domain.NewReplayState()
	var jump *domain.Jump
	for _, line := range lines[:k] {
		jump = apply(&state, line)
	}
	return state, jump, nil
}

// frameLabel is the text shown for a call stack frame
func frameLabel(line domain.ClassifiedLine) string {
	if line.Kind == domain.KindConstructorEntry && line.SecondaryDetail != "" {
		return line.PrimaryText + "." + line.SecondaryDetail
	}
	if line.PrimaryText == "" {
		return line.Raw
	}
	return line.PrimaryText
}
