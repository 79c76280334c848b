package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"matpool/internal/events"
	"matpool/internal/fault"
	"matpool/internal/matrix"
	"matpool/internal/worker"
)

func randomMatrix(rng *rand.Rand, rows, cols int) *matrix.Matrix[int64] {
	data := make([]int64, rows*cols)
	for i := range data {
		data[i] = rng.Int64N(201) - 100
	}
	return matrix.MustNew(data, rows, cols)
}

func TestMultiplyRectangular(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 3, 2)

	c, err := Multiply(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, 2, c.Rows())
	assert.Equal(t, 2, c.Cols())
	assert.Equal(t, []int{22, 28, 49, 64}, c.Values())
	assert.Equal(t, "Matrix(row=2, 2, {22 28, 49 64})", fmt.Sprintf("%#v", c))
}

func TestMultiplySquareRendering(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	c := MustMultiply(a, b)
	assert.Equal(t, []int{7, 10, 15, 22}, c.Values())
	assert.Equal(t, "{7 10, 15 22}", c.String())
}

func TestMultiplyShapeMismatch(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	e := New[int](DefaultConfig())
	c, err := e.Multiply(context.Background(), a, b)
	require.ErrorIs(t, err, ErrShapeMismatch)
	assert.Nil(t, c)

	// no job was started
	started, err := e.Counters().Get(CounterJobsStarted)
	require.NoError(t, err)
	assert.Zero(t, started)
	assert.Zero(t, e.Metrics().TotalJobs())
}

func TestMustMultiplyPanicsOnShapeMismatch(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4, 5, 6}, 2, 3)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	assert.Panics(t, func() { MustMultiply(a, b) })
}

func TestMultiplyNilOperand(t *testing.T) {
	a := matrix.MustNew([]int{1}, 1, 1)
	_, err := Multiply(context.Background(), a, nil)
	require.ErrorIs(t, err, matrix.ErrBadShape)
}

func TestNewAppliesDefaults(t *testing.T) {
	e := New[int](Config{})
	cfg := e.Config()

	assert.Equal(t, 4, cfg.NumWorkers)
	assert.Equal(t, 64, cfg.QueueDepth)
	assert.Equal(t, 5*time.Second, cfg.ReplyTimeout)
	assert.Nil(t, e.Faults())
}

func TestMultiplyMatchesSequentialAcrossPoolSizes(t *testing.T) {
	rng := rand.New(rand.NewPCG(7, 11))

	shapes := []struct{ m, k, n int }{
		{1, 1, 1},
		{1, 5, 1},
		{5, 1, 5},
		{3, 4, 5},
		{17, 9, 13},
	}

	for _, workers := range []int{1, 2, 3, 4, 7, 16} {
		for _, s := range shapes {
			name := fmt.Sprintf("w%d_%dx%dx%d", workers, s.m, s.k, s.n)
			t.Run(name, func(t *testing.T) {
				a := randomMatrix(rng, s.m, s.k)
				b := randomMatrix(rng, s.k, s.n)

				want, err := matrix.MulSequential(a, b)
				require.NoError(t, err)

				e := New[int64](Config{NumWorkers: workers, QueueDepth: 1})
				got, err := e.Multiply(context.Background(), a, b)
				require.NoError(t, err)
				assert.Equal(t, s.m, got.Rows())
				assert.Equal(t, s.n, got.Cols())
				assert.True(t, want.Equal(got), "want %v, got %v", want, got)
			})
		}
	}
}

func TestMultiplyStress200(t *testing.T) {
	if testing.Short() {
		t.Skip("stress test")
	}

	rng := rand.New(rand.NewPCG(2024, 1))
	a := randomMatrix(rng, 200, 200)
	b := randomMatrix(rng, 200, 200)

	want, err := matrix.MulSequential(a, b)
	require.NoError(t, err)

	e := New[int64](DefaultConfig())
	got, err := e.Multiply(context.Background(), a, b)
	require.NoError(t, err)
	assert.True(t, want.Equal(got))

	snap := e.Counters().Snapshot()
	assert.Equal(t, int64(40000), snap[worker.CounterDispatched])
	assert.Equal(t, int64(40000), snap[worker.CounterCompleted])
	for i := range 4 {
		assert.Equal(t, int64(10000), snap[worker.WorkerCounter(i)])
	}
}

func TestMultiplyDeterministic(t *testing.T) {
	rng := rand.New(rand.NewPCG(3, 3))
	data := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = rng.Float64()*2 - 1
		}
		return out
	}
	a := matrix.MustNew(data(30*20), 30, 20)
	b := matrix.MustNew(data(20*25), 20, 25)

	e := New[float64](Config{NumWorkers: 5})
	first, err := e.Multiply(context.Background(), a, b)
	require.NoError(t, err)

	for range 5 {
		again, err := e.Multiply(context.Background(), a, b)
		require.NoError(t, err)
		assert.Equal(t, first.Values(), again.Values())
	}
	assert.Equal(t, uint64(6), e.Metrics().SuccessJobs())
}

func TestMultiplyWorkerPanicFailsCall(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	e := New[int](Config{
		NumWorkers: 2,
		Faults:     &fault.Config{Kinds: []fault.Kind{fault.KindPanic}, Indices: []int{2}},
	})

	start := time.Now()
	c, err := e.Multiply(context.Background(), a, b)
	require.ErrorIs(t, err, ErrReplyLost)
	assert.Nil(t, c)
	assert.Less(t, time.Since(start), e.Config().ReplyTimeout, "a panic is reported, not waited out")
	assert.Equal(t, uint64(1), e.Metrics().FailedJobs())
	assert.Equal(t, uint64(1), e.Faults().Stats().ByKind["panic"])
}

func TestMultiplyDroppedReplyTimesOut(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	e := New[int](Config{
		ReplyTimeout: 50 * time.Millisecond,
		Faults:       &fault.Config{Kinds: []fault.Kind{fault.KindDrop}, Indices: []int{1}},
	})

	c, err := e.Multiply(context.Background(), a, b)
	require.ErrorIs(t, err, ErrReplyLost)
	assert.Nil(t, c)
	assert.Contains(t, err.Error(), "no reply within")
}

func TestMultiplyDelayWithinTimeoutSucceeds(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	e := New[int](Config{
		ReplyTimeout: time.Second,
		Faults: &fault.Config{
			Kinds:   []fault.Kind{fault.KindDelay},
			Delay:   20 * time.Millisecond,
			Indices: []int{0, 3},
		},
	})

	c, err := e.Multiply(context.Background(), a, b)
	require.NoError(t, err)
	assert.Equal(t, []int{7, 10, 15, 22}, c.Values())
}

func TestMultiplyContextCancelled(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	e := New[int](Config{
		ReplyTimeout: 10 * time.Second,
		Faults: &fault.Config{
			Kinds:   []fault.Kind{fault.KindDelay},
			Delay:   time.Hour,
			Indices: []int{0},
		},
	})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	done := make(chan error, 1)
	go func() {
		_, err := e.Multiply(ctx, a, b)
		done <- err
	}()

	select {
	case err := <-done:
		require.Error(t, err)
		assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	case <-time.After(2 * time.Second):
		t.Fatal("Multiply did not honour context cancellation")
	}
}

func TestMultiplyAlreadyCancelledIsRoutingFailure(t *testing.T) {
	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	b := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := Multiply(ctx, a, b)
	require.ErrorIs(t, err, ErrTaskRouting)
	require.ErrorIs(t, err, context.Canceled)
}

func TestMultiplyPublishesEvents(t *testing.T) {
	bus := events.NewBus()
	sub := bus.Subscribe()

	e := New[int](Config{NumWorkers: 2})
	e.SetEventBus(bus)

	a := matrix.MustNew([]int{1, 2, 3, 4}, 2, 2)
	_, err := e.Multiply(context.Background(), a, a)
	require.NoError(t, err)

	var got []events.EventType
	var jobID string
	for range 2 {
		select {
		case ev := <-sub:
			got = append(got, ev.Type)
			if jobID == "" {
				jobID = ev.JobID
			}
			assert.Equal(t, jobID, ev.JobID)
		case <-time.After(time.Second):
			t.Fatal("timeout waiting for events")
		}
	}
	assert.Equal(t, []events.EventType{events.EventJobStarted, events.EventJobCompleted}, got)
	assert.Len(t, jobID, 36, "job ids are UUIDs")
}

func TestMultiplyConcurrentCalls(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 8))
	a := randomMatrix(rng, 12, 10)
	b := randomMatrix(rng, 10, 9)
	want, err := matrix.MulSequential(a, b)
	require.NoError(t, err)

	e := New[int64](Config{NumWorkers: 3})

	const calls = 8
	errs := make(chan error, calls)
	for range calls {
		go func() {
			got, err := e.Multiply(context.Background(), a, b)
			if err == nil && !want.Equal(got) {
				err = fmt.Errorf("result mismatch")
			}
			errs <- err
		}()
	}
	for range calls {
		require.NoError(t, <-errs)
	}

	started, err := e.Counters().Get(CounterJobsStarted)
	require.NoError(t, err)
	assert.Equal(t, int64(calls), started)
}
