package domain

// ReplayState is the reconstructed execution state at a cursor position.
// Cursor K means lines [0, K) have been applied.
type ReplayState struct {
	Cursor    int               `json:"cursor"`
	CallStack []string          `json:"call_stack"`
	Variables map[string]string `json:"variables"`
}

// NewReplayState returns the empty initial state
func NewReplayState() ReplayState {
	return ReplayState{
		CallStack: []string{},
		Variables: map[string]string{},
	}
}

// Clone returns a deep copy
func (s ReplayState) Clone() ReplayState {
	out := ReplayState{
		Cursor:    s.Cursor,
		CallStack: make([]string, len(s.CallStack)),
		Variables: make(map[string]string, len(s.Variables)),
	}
	copy(out.CallStack, s.CallStack)
	for k, v := range s.Variables {
		out.Variables[k] = v
	}
	return out
}

// Jump asks the viewer to scroll to a source line
type Jump struct {
	LineIndex  int `json:"line_index"`  // index in the classified stream
	SourceLine int `json:"source_line"` // Apex source line
}
