package replay

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/SteelMorgan/apex-log-checker/internal/domain"
)

// ErrAlreadyPlaying is returned by Play while another Play is running
var ErrAlreadyPlaying = errors.New("replay already playing")

// Frame is what a viewer renders after a step
type Frame struct {
	State domain.ReplayState `json:"state"`
	// Jump is set when the last applied line was a checkpoint
	Jump *domain.Jump `json:"jump,omitempty"`
	// Total is the number of lines in the session
	Total int `json:"total"`
}

// Done reports whether every line has been applied
func (f Frame) Done() bool {
	return f.State.Cursor >= f.Total
}

// Option configures a Session
type Option func(*Session)

// WithClock replaces the real-time clock used by Play
func WithClock(c Clock) Option {
	return func(s *Session) {
		s.clock = c
	}
}

// WithObserver registers a callback invoked after every step and seek.
// It runs while the session lock is held and must not call the session.
func WithObserver(fn func(Frame)) Option {
	return func(s *Session) {
		s.observer = fn
	}
}

// Session is one replay over a classified stream. All methods are safe for
// concurrent use; each step is applied exactly once under the session lock.
type Session struct {
	mu       sync.Mutex
	lines    []domain.ClassifiedLine
	state    domain.ReplayState
	jump     *domain.Jump
	clock    Clock
	observer func(Frame)

	playing bool
	stop    chan struct{}
}

// NewSession creates a session positioned at cursor 0.
// lines are shared read-only with the caller.
func NewSession(lines []domain.ClassifiedLine, opts ...Option) *Session {
	s := &Session{
		lines: lines,
		state: domain.NewReplayState(),
		clock: realClock{},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Len returns the number of lines in the session
func (s *Session) Len() int {
	return len(s.lines)
}

// Snapshot returns a copy of the current position
func (s *Session) Snapshot() Frame {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frameLocked()
}

// Step applies the next line. It returns false at the end of the stream.
func (s *Session) Step() (Frame, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.stepLocked() {
		return s.frameLocked(), false
	}
	return s.notifyLocked(), true
}

// Seek moves to cursor k by replaying from the empty state
func (s *Session) Seek(k int) (Frame, error) {
	state, jump, err := Seek(s.lines, k)
	if err != nil {
		return Frame{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = state
	s.jump = jump
	return s.notifyLocked(), nil
}

// Playing reports whether Play is running
func (s *Session) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Play advances one line per tick until the end of the stream, Pause, or
// ctx cancellation. It blocks until playback stops and returns ctx.Err() when
// cancelled. A tick that arrives after Pause returned never applies a line.
func (s *Session) Play(ctx context.Context, interval time.Duration) error {
	s.mu.Lock()
	if s.playing {
		s.mu.Unlock()
		return ErrAlreadyPlaying
	}
	if s.state.Cursor >= len(s.lines) {
		s.mu.Unlock()
		return nil
	}
	stop := make(chan struct{})
	s.playing = true
	s.stop = stop
	from := s.state.Cursor
	s.mu.Unlock()

	log.Debug().
		Int("cursor", from).
		Int("lines", len(s.lines)).
		Dur("interval", interval).
		Msg("Replay started")

	ticker := s.clock.Ticker(interval)
	defer ticker.Stop()

	defer func() {
		s.mu.Lock()
		if s.stop == stop {
			s.playing = false
			s.stop = nil
		}
		cursor := s.state.Cursor
		s.mu.Unlock()
		log.Debug().Int("cursor", cursor).Msg("Replay stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-stop:
			return nil
		case <-ticker.Chan():
			if done := s.tick(stop); done {
				return nil
			}
		}
	}
}

// tick applies one line if this playback is still current and reports
// whether playback is over
func (s *Session) tick(stop chan struct{}) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing || s.stop != stop {
		return true
	}
	if !s.stepLocked() {
		return true
	}
	s.notifyLocked()
	return s.state.Cursor >= len(s.lines)
}

// Pause stops Play before its next tick
func (s *Session) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.playing {
		return
	}
	s.playing = false
	close(s.stop)
	s.stop = nil
}

func (s *Session) stepLocked() bool {
	if s.state.Cursor >= len(s.lines) {
		return false
	}
	s.jump = apply(&s.state, s.lines[s.state.Cursor])
	return true
}

func (s *Session) frameLocked() Frame {
	f := Frame{
		State: s.state.Clone(),
		Total: len(s.lines),
	}
	if s.jump != nil {
		j := *s.jump
		f.Jump = &j
	}
	return f
}

func (s *Session) notifyLocked() Frame {
	f := s.frameLocked()
	if s.observer != nil {
		s.observer(f)
	}
	return f
}
