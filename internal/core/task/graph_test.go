package task

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func testPool(t *testing.T, workers int) *Pool {
	t.Helper()
	p := NewPool(workers, zap.NewNop())
	t.Cleanup(p.Close)
	return p
}

func noop(context.Context) error { return nil }

func TestGraphAddTaskDuplicate(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("a", PriorityNormal, noop))
	err := g.AddTask("a", PriorityNormal, noop)
	require.ErrorIs(t, err, ErrDuplicateTask)
}

func TestGraphAddDependencyUnknown(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("a", PriorityNormal, noop))
	require.ErrorIs(t, g.AddDependency("a", "missing"), ErrUnknownTask)
	require.ErrorIs(t, g.AddDependency("missing", "a"), ErrUnknownTask)
}

func TestGraphAddDependencyRejectsCycle(t *testing.T) {
	g := NewGraph("test")
	for _, name := range []string{"a", "b", "c"} {
		require.NoError(t, g.AddTask(name, PriorityNormal, noop))
	}
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "b"))
	// a -> a directly and a -> c -> b -> a transitively.
	require.ErrorIs(t, g.AddDependency("a", "a"), ErrCycle)
	require.ErrorIs(t, g.AddDependency("a", "c"), ErrCycle)
}

func TestGraphSealMarksReady(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("root", PriorityNormal, noop))
	require.NoError(t, g.AddTask("leaf", PriorityNormal, noop))
	require.NoError(t, g.AddDependency("leaf", "root"))
	require.NoError(t, g.Seal())

	st, ok := g.TaskState("root")
	require.True(t, ok)
	assert.Equal(t, StateReady, st)
	st, _ = g.TaskState("leaf")
	assert.Equal(t, StatePending, st)
}

func TestGraphMutationAfterSeal(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("a", PriorityNormal, noop))
	require.NoError(t, g.Seal())
	require.ErrorIs(t, g.AddTask("b", PriorityNormal, noop), ErrSealed)
	require.ErrorIs(t, g.AddDependency("a", "a"), ErrSealed)
}

func TestExecuteRunsEveryTaskExactlyOnce(t *testing.T) {
	g := NewGraph("test")
	var counts [4]atomic.Int64
	names := []string{"a", "b", "c", "d"}
	for i, name := range names {
		i := i
		require.NoError(t, g.AddTask(name, PriorityNormal, func(context.Context) error {
			counts[i].Add(1)
			return nil
		}))
	}
	// Diamond: a -> {b, c} -> d
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "a"))
	require.NoError(t, g.AddDependency("d", "b"))
	require.NoError(t, g.AddDependency("d", "c"))
	require.NoError(t, g.Seal())

	outcome, err := g.Execute(context.Background(), testPool(t, 4))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	for i, name := range names {
		assert.Equal(t, int64(1), counts[i].Load(), "task %s", name)
		st, _ := g.TaskState(name)
		assert.Equal(t, StateCompleted, st, "task %s", name)
	}
}

func TestExecuteHappensBefore(t *testing.T) {
	g := NewGraph("test")
	var mu sync.Mutex
	times := map[string][2]time.Time{}
	record := func(name string) Work {
		return func(context.Context) error {
			start := time.Now()
			time.Sleep(time.Millisecond)
			mu.Lock()
			times[name] = [2]time.Time{start, time.Now()}
			mu.Unlock()
			return nil
		}
	}
	require.NoError(t, g.AddTask("first", PriorityNormal, record("first")))
	require.NoError(t, g.AddTask("second", PriorityNormal, record("second")))
	require.NoError(t, g.AddDependency("second", "first"))
	require.NoError(t, g.Seal())

	_, err := g.Execute(context.Background(), testPool(t, 4))
	require.NoError(t, err)
	require.True(t, !times["second"][0].Before(times["first"][1]),
		"second started %v before first finished %v", times["second"][0], times["first"][1])
}

func TestFailurePoisonsSuccessors(t *testing.T) {
	g := NewGraph("test")
	boom := errors.New("boom")
	require.NoError(t, g.AddTask("t1", PriorityNormal, func(context.Context) error { return boom }))
	require.NoError(t, g.AddTask("t2", PriorityNormal, noop))
	require.NoError(t, g.AddTask("t3", PriorityNormal, noop))
	require.NoError(t, g.AddDependency("t2", "t1"))
	require.NoError(t, g.AddDependency("t3", "t2"))
	require.NoError(t, g.Seal())

	outcome, err := g.Execute(context.Background(), testPool(t, 2))
	require.NoError(t, err)
	assert.Equal(t, OutcomePartialFailure, outcome)

	st, _ := g.TaskState("t1")
	assert.Equal(t, StateFailed, st)
	require.ErrorIs(t, g.TaskErr("t1"), boom)
	st, _ = g.TaskState("t2")
	assert.Equal(t, StateCancelled, st)
	st, _ = g.TaskState("t3")
	assert.Equal(t, StateCancelled, st)
	assert.Equal(t, []string{"t1"}, g.FailedTasks())
}

func TestFailureIsLocalToItsBranch(t *testing.T) {
	g := NewGraph("test")
	var ran atomic.Bool
	require.NoError(t, g.AddTask("bad", PriorityNormal, func(context.Context) error {
		return errors.New("boom")
	}))
	require.NoError(t, g.AddTask("good", PriorityNormal, func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, g.Seal())

	outcome, err := g.Execute(context.Background(), testPool(t, 2))
	require.NoError(t, err)
	assert.Equal(t, OutcomePartialFailure, outcome)
	assert.True(t, ran.Load(), "independent task should still run")
}

func TestPanicBecomesFailed(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("p", PriorityNormal, func(context.Context) error {
		panic("kaboom")
	}))
	require.NoError(t, g.Seal())

	outcome, err := g.Execute(context.Background(), testPool(t, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomePartialFailure, outcome)
	st, _ := g.TaskState("p")
	assert.Equal(t, StateFailed, st)
	require.ErrorContains(t, g.TaskErr("p"), "kaboom")
}

func TestCancelBeforeExecute(t *testing.T) {
	g := NewGraph("test")
	var ran atomic.Bool
	require.NoError(t, g.AddTask("a", PriorityNormal, func(context.Context) error {
		ran.Store(true)
		return nil
	}))
	require.NoError(t, g.Seal())
	g.Cancel()

	outcome, err := g.Execute(context.Background(), testPool(t, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)
	assert.False(t, ran.Load())
	st, _ := g.TaskState("a")
	assert.Equal(t, StateCancelled, st)
}

func TestCancelDuringExecution(t *testing.T) {
	g := NewGraph("test")
	started := make(chan struct{})
	release := make(chan struct{})
	require.NoError(t, g.AddTask("slow", PriorityNormal, func(context.Context) error {
		close(started)
		<-release
		return nil
	}))
	require.NoError(t, g.AddTask("after", PriorityNormal, noop))
	require.NoError(t, g.AddDependency("after", "slow"))
	require.NoError(t, g.Seal())

	go func() {
		<-started
		g.Cancel()
		close(release)
	}()

	outcome, err := g.Execute(context.Background(), testPool(t, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeCancelled, outcome)

	// In-flight work ran to completion; only its successor was cancelled.
	st, _ := g.TaskState("slow")
	assert.Equal(t, StateCompleted, st)
	st, _ = g.TaskState("after")
	assert.Equal(t, StateCancelled, st)
}

func TestResetRestoresInitialState(t *testing.T) {
	g := NewGraph("test")
	var runs atomic.Int64
	require.NoError(t, g.AddTask("a", PriorityNormal, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, g.AddTask("b", PriorityNormal, func(context.Context) error {
		runs.Add(1)
		return nil
	}))
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.Seal())

	pool := testPool(t, 2)
	_, err := g.Execute(context.Background(), pool)
	require.NoError(t, err)

	// Re-execution without reset is rejected.
	_, err = g.Execute(context.Background(), pool)
	require.ErrorIs(t, err, ErrNotReset)

	require.NoError(t, g.Reset())
	st, _ := g.TaskState("a")
	assert.Equal(t, StateReady, st)
	st, _ = g.TaskState("b")
	assert.Equal(t, StatePending, st)

	_, err = g.Execute(context.Background(), pool)
	require.NoError(t, err)
	assert.Equal(t, int64(4), runs.Load())
}

func TestExecuteSerialOnZeroWorkers(t *testing.T) {
	g := NewGraph("test")
	var order []string
	var mu sync.Mutex
	add := func(name string) {
		require.NoError(t, g.AddTask(name, PriorityNormal, func(context.Context) error {
			mu.Lock()
			order = append(order, name)
			mu.Unlock()
			return nil
		}))
	}
	add("a")
	add("b")
	add("c")
	require.NoError(t, g.AddDependency("b", "a"))
	require.NoError(t, g.AddDependency("c", "b"))
	require.NoError(t, g.Seal())

	outcome, err := g.Execute(context.Background(), testPool(t, 0))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
	assert.Equal(t, []string{"a", "b", "c"}, order)
}

func TestExecuteRequiresSeal(t *testing.T) {
	g := NewGraph("test")
	require.NoError(t, g.AddTask("a", PriorityNormal, noop))
	_, err := g.Execute(context.Background(), testPool(t, 1))
	require.ErrorIs(t, err, ErrNotSealed)
}

func TestEmptyGraphExecutes(t *testing.T) {
	g := NewGraph("empty")
	require.NoError(t, g.Seal())
	outcome, err := g.Execute(context.Background(), testPool(t, 1))
	require.NoError(t, err)
	assert.Equal(t, OutcomeSuccess, outcome)
}
