package utils

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestRetry(t *testing.T) {
	policy := RetryPolicy{MaxAttempts: 3, InitialBackoff: time.Millisecond, MaxBackoff: 2 * time.Millisecond}
	errBoom := errors.New("boom")

	t.Run("succeeds after transient failures", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			if calls < 3 {
				return errBoom
			}
			return nil
		})
		if err != nil || calls != 3 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return errBoom
		})
		if !errors.Is(err, errBoom) || calls != 3 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("permanent error stops early", func(t *testing.T) {
		calls := 0
		err := Retry(context.Background(), policy, func(context.Context) error {
			calls++
			return Permanent(errBoom)
		})
		if err != errBoom || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})

	t.Run("cancelled context stops", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())
		cancel()
		calls := 0
		err := Retry(ctx, RetryPolicy{MaxAttempts: 5, InitialBackoff: time.Hour}, func(context.Context) error {
			calls++
			return errBoom
		})
		if err == nil || calls != 1 {
			t.Errorf("err=%v calls=%d", err, calls)
		}
	})
}
