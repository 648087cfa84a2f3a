package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fast(opts ...Option) Retry {
	return New(append([]Option{WithDelay(time.Millisecond), WithMaxDelay(2 * time.Millisecond)}, opts...)...)
}

func TestExecute_SuccessFirstTry(t *testing.T) {
	calls := 0
	err := fast().Execute(context.Background(), func() error {
		calls++
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestExecute_RetryUntilSuccess(t *testing.T) {
	calls := 0
	err := fast(WithAttempts(3), WithLogTag("Test")).Execute(context.Background(), func() error {
		calls++
		if calls < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestExecute_Exhausted(t *testing.T) {
	want := errors.New("persistent")
	calls := 0
	err := fast(WithAttempts(4)).Execute(context.Background(), func() error {
		calls++
		return want
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 4, calls)
}

func TestExecute_Unrecoverable(t *testing.T) {
	want := errors.New("bad request")
	calls := 0
	err := fast(WithAttempts(5)).Execute(context.Background(), func() error {
		calls++
		return Unrecoverable(want)
	})
	assert.ErrorIs(t, err, want)
	assert.Equal(t, 1, calls)
}

func TestExecute_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	err := New(WithAttempts(10), WithDelay(time.Hour)).Execute(ctx, func() error {
		calls++
		cancel()
		return errors.New("fail")
	})
	assert.Error(t, err)
	assert.Equal(t, 1, calls)
}
