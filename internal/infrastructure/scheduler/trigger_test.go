package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewTrigger_RejectsNonPositiveInterval(t *testing.T) {
	_, err := NewTrigger(TriggerConfig{Name: "rates"}, func(context.Context) error { return nil }, nil)
	assert.ErrorIs(t, err, ErrInvalidInterval)
}

func TestTrigger_RunsUntilStopped(t *testing.T) {
	var runs atomic.Int32
	tr, err := NewTrigger(TriggerConfig{Name: "rates", Interval: 10 * time.Millisecond, RunOnStart: true},
		func(context.Context) error {
			runs.Add(1)
			return nil
		}, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))
	require.NoError(t, tr.Start(context.Background()), "second start is a no-op")
	require.Eventually(t, func() bool { return runs.Load() >= 3 }, time.Second, 5*time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, tr.Stop(ctx))
	stopped := runs.Load()
	time.Sleep(30 * time.Millisecond)
	assert.Equal(t, stopped, runs.Load())

	st := tr.Stats()
	assert.Equal(t, int(stopped), st.Runs)
	assert.Zero(t, st.Failures)
	assert.False(t, st.LastRunAt.IsZero())
}

func TestTrigger_RecordsFailures(t *testing.T) {
	tr, err := NewTrigger(TriggerConfig{Name: "rates", Interval: time.Hour, RunOnStart: true},
		func(context.Context) error { return errors.New("source unavailable") }, nil)
	require.NoError(t, err)

	require.NoError(t, tr.Start(context.Background()))
	require.Eventually(t, func() bool { return tr.Stats().Runs == 1 }, time.Second, 5*time.Millisecond)
	require.NoError(t, tr.Stop(context.Background()))

	st := tr.Stats()
	assert.Equal(t, 1, st.Failures)
	assert.Equal(t, "source unavailable", st.LastError)
}

func TestTrigger_StopWithoutStart(t *testing.T) {
	tr, err := NewTrigger(TriggerConfig{Name: "rates", Interval: time.Second}, func(context.Context) error { return nil }, nil)
	require.NoError(t, err)
	assert.NoError(t, tr.Stop(context.Background()))
}
