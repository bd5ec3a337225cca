package replay

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SteelMorgan/apex-log-checker/internal/apexlog"
	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

func classify(lines ...string) []domain.ClassifiedLine {
	return apexlog.Parse(strings.Join(lines, "\n")).Lines
}

func TestSeek_Scenario(t *testing.T) {
	lines := apexlog.Parse("12:00:00.0|METHOD_ENTRY|foo\n12:00:00.5|METHOD_EXIT|foo").Lines

	state, _, err := Seek(lines, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"foo"}, state.CallStack)
	assert.Equal(t, 1, state.Cursor)

	state, _, err = Seek(lines, 2)
	require.NoError(t, err)
	assert.Equal(t, []string{}, state.CallStack)
}

func TestSeek_ZeroIsEmpty(t *testing.T) {
	lines := classify(
		"12:00:00.0|METHOD_ENTRY|foo",
		"12:00:00.1|VARIABLE_ASSIGNMENT|[2]|x|5",
	)

	state, jump, err := Seek(lines, 0)
	require.NoError(t, err)
	assert.Nil(t, jump)
	assert.Equal(t, domain.NewReplayState(), state)
	assert.NotNil(t, state.CallStack)
	assert.NotNil(t, state.Variables)
}

func TestSeek_OutOfRange(t *testing.T) {
	lines := classify("12:00:00.0|METHOD_ENTRY|foo")

	for _, k := range []int{-1, 2} {
		_, _, err := Seek(lines, k)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrCursorOutOfRange))
	}
}

func TestSeek_Idempotent(t *testing.T) {
	lines := classify(
		"12:00:00.000|METHOD_ENTRY|[1]|01p|A.run()",
		"12:00:00.001|VARIABLE_ASSIGNMENT|[2]|x|1",
		"12:00:00.002|METHOD_ENTRY|[3]|01p|B.run()",
		"12:00:00.003|VARIABLE_ASSIGNMENT|[4]|x|2",
		"12:00:00.004|METHOD_EXIT|[3]|01p|B.run()",
		"12:00:00.005|CHECKPOINT|[9]",
	)

	for k := 0; k <= len(lines); k++ {
		first, firstJump, err := Seek(lines, k)
		require.NoError(t, err)

		// move away and come back
		_, _, err = Seek(lines, len(lines)-k)
		require.NoError(t, err)

		second, secondJump, err := Seek(lines, k)
		require.NoError(t, err)
		assert.Equal(t, first, second, "cursor %d", k)
		assert.Equal(t, firstJump, secondJump, "cursor %d", k)
	}
}

func TestAdvance(t *testing.T) {
	tests := []struct {
		name   string
		start  domain.ReplayState
		line   string
		checks func(t *testing.T, next domain.ReplayState, jump *domain.Jump)
	}{
		{
			name:  "method entry pushes",
			start: domain.NewReplayState(),
			line:  "12:00:00.0|METHOD_ENTRY|[1]|01p|A.run()",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Equal(t, []string{"A.run()"}, next.CallStack)
				assert.Nil(t, jump)
			},
		},
		{
			name:  "constructor entry label",
			start: domain.NewReplayState(),
			line:  "12:00:00.0|CONSTRUCTOR_ENTRY|[3]|01p|<init>()|Account",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Equal(t, []string{"Account.<init>()"}, next.CallStack)
			},
		},
		{
			name:  "exit on empty stack is a no-op",
			start: domain.NewReplayState(),
			line:  "12:00:00.0|METHOD_EXIT|foo",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Empty(t, next.CallStack)
				assert.Equal(t, 1, next.Cursor)
			},
		},
		{
			name: "exit pops one frame",
			start: domain.ReplayState{
				CallStack: []string{"a", "b"},
				Variables: map[string]string{},
			},
			line: "12:00:00.0|METHOD_EXIT|b",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Equal(t, []string{"a"}, next.CallStack)
			},
		},
		{
			name: "variable upsert",
			start: domain.ReplayState{
				CallStack: []string{},
				Variables: map[string]string{"x": "1"},
			},
			line: "12:00:00.0|VARIABLE_ASSIGNMENT|[2]|x|2",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Equal(t, map[string]string{"x": "2"}, next.Variables)
			},
		},
		{
			name:  "checkpoint emits jump only",
			start: domain.NewReplayState(),
			line:  "12:00:00.0|CHECKPOINT|[42]",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				require.NotNil(t, jump)
				assert.Equal(t, 42, jump.SourceLine)
				assert.Equal(t, 0, jump.LineIndex)
				assert.Empty(t, next.CallStack)
				assert.Empty(t, next.Variables)
			},
		},
		{
			name:  "other lines only move the cursor",
			start: domain.NewReplayState(),
			line:  "12:00:00.0|USER_DEBUG|[1]|DEBUG|hello",
			checks: func(t *testing.T, next domain.ReplayState, jump *domain.Jump) {
				assert.Equal(t, 1, next.Cursor)
				assert.Empty(t, next.CallStack)
				assert.Nil(t, jump)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			before := tt.start.Clone()
			line := classify(tt.line)[0]

			next, jump := Advance(tt.start, line)
			tt.checks(t, next, jump)
			assert.Equal(t, before, tt.start, "input state must not change")
		})
	}
}
