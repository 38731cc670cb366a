package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestCronSchedulerRunOnStart(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1h", time.UTC, true, zaptest.NewLogger(t))
	var runs atomic.Int32
	done := make(chan struct{}, 1)

	require.NoError(t, s.Start(context.Background(), func(time.Time) {
		runs.Add(1)
		done <- struct{}{}
	}))

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("job did not run on start")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(ctx))
	assert.Equal(t, int32(1), runs.Load())
}

func TestCronSchedulerSkipsOverlappingRuns(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("@every 1h", time.UTC, false, zaptest.NewLogger(t))
	release := make(chan struct{})
	started := make(chan struct{})

	job := func(time.Time) {
		close(started)
		<-release
	}

	go s.trigger(context.Background(), job, time.Now())
	<-started
	s.trigger(context.Background(), job, time.Now())
	close(release)

	assert.Equal(t, int64(1), s.Skipped())
}

func TestCronSchedulerRejectsBadSpec(t *testing.T) {
	t.Parallel()

	s := NewCronScheduler("every now and then", time.UTC, false, nil)
	err := s.Start(context.Background(), func(time.Time) {})
	require.Error(t, err)
	require.NoError(t, s.Stop(context.Background()))
}
