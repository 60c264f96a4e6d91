package utils

import (
	"errors"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRunParallelTasksKeepsOrder(t *testing.T) {
	tasks := []ParallelTask[int]{
		func() (int, error) { return 1, nil },
		func() (int, error) { return 2, nil },
		func() (int, error) { return 3, nil },
	}

	results, err := RunParallelTasks(tasks)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, results)
}

func TestRunParallelTasksJoinsErrors(t *testing.T) {
	boom := errors.New("boom")
	tasks := []ParallelTask[string]{
		func() (string, error) { return "ok", nil },
		func() (string, error) { return "", boom },
		func() (string, error) { panic("bad image") },
	}

	results, err := RunParallelTasks(tasks)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "panicked")
	assert.Equal(t, "ok", results[0])
}

func TestWorkerPool(t *testing.T) {
	pool := NewWorkerPool(3, zap.NewNop())
	var n atomic.Int32
	for i := 0; i < 20; i++ {
		require.NoError(t, pool.AddTask(func() { n.Add(1) }))
	}
	require.NoError(t, pool.AddTask(func() { panic("mail server exploded") }))

	pool.Close()
	assert.Equal(t, int32(20), n.Load())
	assert.ErrorIs(t, pool.AddTask(func() {}), ErrPoolClosed)
}

func TestWorkerPoolLogsPanicsAndKeepsServing(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	pool := NewWorkerPool(1, zap.New(core))
	defer pool.Close()

	require.NoError(t, pool.AddTask(func() { panic("smtp relay down") }))
	pool.Wait()

	var ran atomic.Bool
	require.NoError(t, pool.AddTask(func() { ran.Store(true) }))
	pool.Wait()

	assert.True(t, ran.Load())
	entries := logs.FilterMessage("Background task panicked").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "smtp relay down", entries[0].ContextMap()["panic"])
}
