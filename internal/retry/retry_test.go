package retry

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	cfg := DefaultConfig()
	cfg.InitialDelay = time.Millisecond
	cfg.MaxDelay = 2 * time.Millisecond
	return cfg
}

func TestIsRetryableError(t *testing.T) {
	cfg := DefaultConfig()

	tests := []struct {
		name string
		err  error
		want bool
	}{
		{name: "nil", err: nil, want: false},
		{name: "connection refused", err: errors.New("dial tcp 127.0.0.1:9000: connection refused"), want: true},
		{name: "clickhouse connection lost", err: errors.New("code: 999, message: lost"), want: true},
		{name: "clickhouse syntax error", err: errors.New("code: 62, message: Syntax error"), want: false},
		{name: "net op error", err: &net.OpError{Op: "dial", Err: errors.New("boom")}, want: true},
		{name: "wrapped", err: errors.Join(errors.New("send"), errors.New("broken pipe")), want: true},
		{name: "context cancelled", err: context.Canceled, want: false},
		{name: "plain", err: errors.New("unknown table"), want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsRetryableError(tt.err, cfg))
		})
	}
}

func TestDo_RetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("connection reset by peer")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDo_StopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("unknown table")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDo_GivesUp(t *testing.T) {
	cause := errors.New("connection refused")
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return cause
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, cause)
	assert.Equal(t, 3, calls)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (int, error) {
		calls++
		if calls == 1 {
			return 0, errors.New("i/o timeout")
		}
		return 42, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, got)
}

func TestDo_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFromSettings(t *testing.T) {
	cfg := FromSettings(5, 10, 100, 1.5)
	assert.Equal(t, 5, cfg.MaxAttempts)
	assert.Equal(t, 10*time.Millisecond, cfg.InitialDelay)
	assert.Equal(t, 100*time.Millisecond, cfg.MaxDelay)
	assert.Equal(t, 1.5, cfg.Multiplier)
	assert.NotEmpty(t, cfg.RetryableErrors)
}
