package retry

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fastConfig = Config{
	MaxRetries: 3,
	BaseDelay:  time.Millisecond,
	MaxDelay:   10 * time.Millisecond,
}

func TestDoSucceedsFirstAttempt(t *testing.T) {
	var calls int32
	err := Do(context.Background(), fastConfig, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(1), calls)
}

func TestDoRecoversAfterTransientErrors(t *testing.T) {
	var calls int32
	err := Do(context.Background(), fastConfig, func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	assert.NoError(t, err)
	assert.Equal(t, int32(3), calls)
}

func TestDoExhaustsRetries(t *testing.T) {
	var calls int32
	wantErr := errors.New("persistent")
	err := Do(context.Background(), fastConfig, func() error {
		atomic.AddInt32(&calls, 1)
		return wantErr
	})
	assert.ErrorIs(t, err, wantErr)
	assert.Equal(t, int32(4), calls) // initial attempt + 3 retries
}

func TestDoStopsOnNonRetryableClassification(t *testing.T) {
	var calls int32
	badShape := errors.New("missing field")
	cfg := fastConfig
	cfg.RetryIf = func(err error) bool { return !errors.Is(err, badShape) }

	err := Do(context.Background(), cfg, func() error {
		atomic.AddInt32(&calls, 1)
		return badShape
	})
	assert.ErrorIs(t, err, badShape)
	assert.Equal(t, int32(1), calls)
}

func TestDoStopsOnPermanent(t *testing.T) {
	var calls int32
	inner := errors.New("bad credentials")
	err := Do(context.Background(), fastConfig, func() error {
		atomic.AddInt32(&calls, 1)
		return NewPermanent(inner)
	})
	assert.ErrorIs(t, err, inner)
	assert.True(t, IsPermanent(err))
	assert.Equal(t, int32(1), calls)
}

func TestBackoffTiming(t *testing.T) {
	// Sleeps without jitter are 10ms and 20ms before calls 2 and 3.
	cfg := Config{MaxRetries: 3, BaseDelay: 10 * time.Millisecond, MaxDelay: 100 * time.Millisecond}
	var calls int32

	start := time.Now()
	err := Do(context.Background(), cfg, func() error {
		if atomic.AddInt32(&calls, 1) < 3 {
			return errors.New("temporary")
		}
		return nil
	})
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, int32(3), calls)
	// 10ms + 20ms of backoff, with scheduling slack.
	assert.GreaterOrEqual(t, elapsed, 30*time.Millisecond)
	assert.Less(t, elapsed, 120*time.Millisecond)
}

func TestBackoffCapsAtMaxDelay(t *testing.T) {
	cfg := Config{MaxRetries: 5, BaseDelay: 8 * time.Millisecond, MaxDelay: 10 * time.Millisecond}
	// Uncapped sleeps would be 8+16+32+64+128 = 248ms; capped they are
	// 8+10+10+10+10 = 48ms.
	start := time.Now()
	err := Do(context.Background(), cfg, func() error {
		return errors.New("always")
	})
	elapsed := time.Since(start)

	assert.Error(t, err)
	assert.Less(t, elapsed, 150*time.Millisecond)
}

func TestJitterStaysWithinQuarterOfBackoff(t *testing.T) {
	cfg := Config{MaxRetries: 1, BaseDelay: 40 * time.Millisecond, MaxDelay: time.Second, Jitter: true}
	for i := 0; i < 20; i++ {
		d := cfg.sleepFor(1)
		assert.GreaterOrEqual(t, d, 40*time.Millisecond)
		assert.LessOrEqual(t, d, 50*time.Millisecond)
	}
}

func TestDoValueReturnsResult(t *testing.T) {
	var calls int32
	got, err := DoValue(context.Background(), fastConfig, func() (map[string]int, error) {
		if atomic.AddInt32(&calls, 1) < 3 {
			return nil, errors.New("temporary")
		}
		return map[string]int{"ok": 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, map[string]int{"ok": 1}, got)
	assert.Equal(t, int32(3), calls)
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var calls int32
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	cfg := Config{MaxRetries: 10, BaseDelay: 50 * time.Millisecond, MaxDelay: time.Second}
	err := Do(ctx, cfg, func() error {
		atomic.AddInt32(&calls, 1)
		return errors.New("temporary")
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.GreaterOrEqual(t, calls, int32(1))
}

func TestDoWithCancelledContextNeverCalls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls int32
	err := Do(ctx, fastConfig, func() error {
		atomic.AddInt32(&calls, 1)
		return nil
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(0), calls)
}

func TestNewPermanentNil(t *testing.T) {
	assert.Nil(t, NewPermanent(nil))
	assert.False(t, IsPermanent(nil))
}
