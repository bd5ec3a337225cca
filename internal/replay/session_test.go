package replay

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// manualClock hands out tickers fed by the test
type manualClock struct {
	ticks chan time.Time
}

func newManualClock() *manualClock {
	return &manualClock{ticks: make(chan time.Time)}
}

func (c *manualClock) Ticker(time.Duration) Ticker {
	return manualTicker{c.ticks}
}

// tick blocks until the playing loop receives it
func (c *manualClock) tick() {
	c.ticks <- time.Time{}
}

type manualTicker struct {
	ch chan time.Time
}

func (t manualTicker) Chan() <-chan time.Time { return t.ch }
func (t manualTicker) Stop()                  {}

func sessionLines() []string {
	return []string{
		"12:00:00.000|METHOD_ENTRY|[1]|01p|A.run()",
		"12:00:00.001|VARIABLE_ASSIGNMENT|[2]|x|1",
		"12:00:00.002|CHECKPOINT|[3]",
		"12:00:00.003|METHOD_EXIT|[1]|01p|A.run()",
	}
}

func TestSession_StepAndSeek(t *testing.T) {
	s := NewSession(classify(sessionLines()...))
	assert.Equal(t, 4, s.Len())

	f, ok := s.Step()
	require.True(t, ok)
	assert.Equal(t, []string{"A.run()"}, f.State.CallStack)

	s.Step()
	f, ok = s.Step()
	require.True(t, ok)
	require.NotNil(t, f.Jump)
	assert.Equal(t, 3, f.Jump.SourceLine)

	f, ok = s.Step()
	require.True(t, ok)
	assert.Nil(t, f.Jump)
	assert.True(t, f.Done())

	_, ok = s.Step()
	assert.False(t, ok)

	f, err := s.Seek(1)
	require.NoError(t, err)
	assert.Equal(t, 1, f.State.Cursor)
	assert.Empty(t, f.State.Variables)

	_, err = s.Seek(5)
	assert.True(t, errors.Is(err, ErrCursorOutOfRange))
	assert.Equal(t, 1, s.Snapshot().State.Cursor)
}

func TestSession_SnapshotIsCopy(t *testing.T) {
	s := NewSession(classify(sessionLines()...))
	s.Step()

	snap := s.Snapshot()
	snap.State.CallStack[0] = "changed"
	snap.State.Variables["y"] = "z"

	again := s.Snapshot()
	assert.Equal(t, []string{"A.run()"}, again.State.CallStack)
	assert.NotContains(t, again.State.Variables, "y")
}

func TestSession_PlayToEnd(t *testing.T) {
	clock := newManualClock()
	frames := make(chan Frame, 10)
	s := NewSession(classify(sessionLines()...),
		WithClock(clock),
		WithObserver(func(f Frame) { frames <- f }),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Play(context.Background(), time.Second) }()

	for i := 1; i <= 4; i++ {
		clock.tick()
		f := <-frames
		assert.Equal(t, i, f.State.Cursor)
	}

	require.NoError(t, <-errCh)
	assert.False(t, s.Playing())
	assert.True(t, s.Snapshot().Done())

	// nothing left to play
	assert.NoError(t, s.Play(context.Background(), time.Second))
}

func TestSession_Pause(t *testing.T) {
	clock := newManualClock()
	frames := make(chan Frame, 10)
	s := NewSession(classify(sessionLines()...),
		WithClock(clock),
		WithObserver(func(f Frame) { frames <- f }),
	)

	errCh := make(chan error, 1)
	go func() { errCh <- s.Play(context.Background(), time.Second) }()

	clock.tick()
	f := <-frames
	assert.Equal(t, 1, f.State.Cursor)

	assert.ErrorIs(t, s.Play(context.Background(), time.Second), ErrAlreadyPlaying)

	s.Pause()
	require.NoError(t, <-errCh)
	assert.False(t, s.Playing())
	assert.Equal(t, 1, s.Snapshot().State.Cursor)
	assert.Empty(t, frames)

	// resume continues from the same line
	go func() { errCh <- s.Play(context.Background(), time.Second) }()
	clock.tick()
	f = <-frames
	assert.Equal(t, 2, f.State.Cursor)
	assert.Equal(t, map[string]string{"x": "1"}, f.State.Variables)

	s.Pause()
	require.NoError(t, <-errCh)

	// pausing twice is harmless
	s.Pause()
}

func TestSession_PlayCancel(t *testing.T) {
	clock := newManualClock()
	s := NewSession(classify(sessionLines()...), WithClock(clock))

	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- s.Play(ctx, time.Second) }()

	cancel()
	err := <-errCh
	assert.ErrorIs(t, err, context.Canceled)
	assert.False(t, s.Playing())
	assert.Equal(t, 0, s.Snapshot().State.Cursor)
}

func TestSession_PlayRealClock(t *testing.T) {
	s := NewSession(classify(sessionLines()...))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	require.NoError(t, s.Play(ctx, time.Millisecond))
	assert.Equal(t, 4, s.Snapshot().State.Cursor)
}
