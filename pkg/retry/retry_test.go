package retry_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/shinkarenko92-cyber/CM-bolt-1.0.1-sub003/pkg/retry"
)

func TestPolicyDelayLadder(t *testing.T) {
	p := retry.Default

	require.Equal(t, 4, p.MaxAttempts, "three retries after the first attempt")
	require.Equal(t, time.Second, p.Delay(1))
	require.Equal(t, 2*time.Second, p.Delay(2))
	require.Equal(t, 4*time.Second, p.Delay(3))
}

func TestPolicyDelayCapped(t *testing.T) {
	p := retry.Policy{MaxAttempts: 10, BaseDelay: time.Second, MaxDelay: 5 * time.Second}

	require.Equal(t, 5*time.Second, p.Delay(8))
}

func TestPolicyDelayWithHint(t *testing.T) {
	p := retry.Default

	require.Equal(t, 7*time.Second, p.DelayWithHint(1, 7*time.Second), "hint wins over backoff")
	require.Equal(t, 2*time.Second, p.DelayWithHint(2, 0), "no hint falls back to ladder")
	require.Equal(t, p.MaxDelay, p.DelayWithHint(1, 10*time.Minute), "hint capped")
}

func TestSleepHonorsContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := retry.Sleep(ctx, time.Minute)
	require.ErrorIs(t, err, context.Canceled)
}

func TestSleepZeroDelay(t *testing.T) {
	require.NoError(t, retry.Sleep(context.Background(), 0))
}
