package task

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/bubblevault/bubble-backup-service/pkg/safe_close"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type countingTask struct {
	runs       atomic.Int64
	interval   time.Duration
	startupRun bool
	panics     bool
}

func (t *countingTask) Name() string                { return "Counting" }
func (t *countingTask) LoopInterval() time.Duration { return t.interval }
func (t *countingTask) IsStartupRun() bool          { return t.startupRun }

func (t *countingTask) Run(ctx context.Context) error {
	t.runs.Add(1)
	if t.panics {
		panic("boom")
	}
	return nil
}

func TestSchedulerRunsAndStops(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)

	task := &countingTask{interval: 10 * time.Millisecond, startupRun: true}
	s.AddTask(task)
	s.Start()

	require.Eventually(t, func() bool {
		return task.runs.Load() >= 3
	}, 2*time.Second, 5*time.Millisecond)

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())

	stopped := task.runs.Load()
	time.Sleep(50 * time.Millisecond)
	assert.Equal(t, stopped, task.runs.Load())
}

func TestSchedulerSurvivesPanic(t *testing.T) {
	sc := safe_close.NewSafeClose()
	s := NewScheduler(zap.NewNop(), sc)

	task := &countingTask{interval: 10 * time.Millisecond, panics: true}
	s.AddTask(task)
	s.Start()

	// The ticker loop keeps going after a panicking run.
	require.Eventually(t, func() bool {
		return task.runs.Load() >= 2
	}, 2*time.Second, 5*time.Millisecond)

	sc.SendCloseSignal(nil)
	require.NoError(t, sc.WaitClosed())
}
