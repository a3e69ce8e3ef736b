package scheduler

import (
	"context"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreCurrent())
}

type fakeSyncer struct {
	pending atomic.Bool
	retries atomic.Int32
	succeed bool
}

func (f *fakeSyncer) Pending() bool { return f.pending.Load() }

func (f *fakeSyncer) RetryPending(context.Context) bool {
	f.retries.Add(1)
	if f.succeed {
		f.pending.Store(false)
	}
	return f.succeed
}

func TestRetrySyncOnlyWhenPending(t *testing.T) {
	syncer := &fakeSyncer{succeed: true}
	s := NewScheduler("* * * * *", syncer, nil)

	s.retrySync()
	assert.Equal(t, int32(0), syncer.retries.Load())

	syncer.pending.Store(true)
	s.retrySync()
	assert.Equal(t, int32(1), syncer.retries.Load())
	assert.False(t, syncer.Pending())

	s.retrySync()
	assert.Equal(t, int32(1), syncer.retries.Load())
}

func TestFailedRetryStaysPending(t *testing.T) {
	syncer := &fakeSyncer{}
	syncer.pending.Store(true)
	s := NewScheduler("* * * * *", syncer, nil)

	s.retrySync()
	s.retrySync()
	assert.Equal(t, int32(2), syncer.retries.Load())
	assert.True(t, syncer.Pending())
}

func TestStartRejectsBadSchedule(t *testing.T) {
	s := NewScheduler("every now and then", &fakeSyncer{}, nil)
	assert.Error(t, s.Start())
}

func TestStartStop(t *testing.T) {
	s := NewScheduler("*/5 * * * *", &fakeSyncer{}, nil)
	require.NoError(t, s.Start())
	s.Stop()
}
