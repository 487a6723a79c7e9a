package jobs

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestRunnerKickExecutesTask(t *testing.T) {
	ran := make(chan struct{}, 1)
	runner := NewRunner("sweep", time.Hour, func(ctx context.Context) error {
		ran <- struct{}{}
		return nil
	}, nil)

	runner.Start(context.Background())
	defer runner.Stop()

	require.NoError(t, runner.Kick())

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run after kick")
	}
}

func TestRunnerKickBeforeStart(t *testing.T) {
	runner := NewRunner("sweep", time.Hour, func(ctx context.Context) error { return nil }, nil)
	require.Error(t, runner.Kick())
}

func TestRunnerTickerFiresTask(t *testing.T) {
	ran := make(chan struct{}, 4)
	runner := NewRunner("sweep", 10*time.Millisecond, func(ctx context.Context) error {
		select {
		case ran <- struct{}{}:
		default:
		}
		return nil
	}, nil)

	runner.Start(context.Background())
	defer runner.Stop()

	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("task did not run on schedule")
	}
}

func TestRunnerStartIsIdempotentAndStopWaits(t *testing.T) {
	runner := NewRunner("sweep", time.Hour, func(ctx context.Context) error { return nil }, nil)

	runner.Start(context.Background())
	runner.Start(context.Background())
	runner.Stop()

	// A stopped runner rejects further kicks.
	require.Error(t, runner.Kick())
}
