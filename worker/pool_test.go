package worker

import (
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
)

type oracleFunc func(origin, ray mgl64.Vec3, filter raytrace.Filter) (raytrace.Hit, bool, error)

func (f oracleFunc) Raycast(origin, ray mgl64.Vec3, filter raytrace.Filter) (raytrace.Hit, bool, error) {
	return f(origin, ray, filter)
}

var noHits = oracleFunc(func(mgl64.Vec3, mgl64.Vec3, raytrace.Filter) (raytrace.Hit, bool, error) {
	return raytrace.Hit{}, false, nil
})

func testLogger() *logrus.Logger {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return log
}

func testOptions() raytrace.Options {
	return raytrace.Options{MaxBounces: 4, SnapAngle: 0.524, RayLength: 100}
}

func testPool(t *testing.T, n int, oracle raytrace.Oracle) *Pool {
	t.Helper()
	p, err := NewPool(testLogger(), n, oracle, testOptions())
	if err != nil {
		t.Fatalf("unexpected error creating pool: %v", err)
	}
	t.Cleanup(p.Close)
	return p
}

// requests returns n requests along +X, so every one of them snaps to a source at (10,0,0).
func requests(n int) []raytrace.Request {
	reqs := make([]raytrace.Request, n)
	for i := range reqs {
		reqs[i] = raytrace.Request{Direction: mgl64.Vec3{1, 0, 0}, Correlation: uint16(i)}
	}
	return reqs
}

var sources = []raytrace.Source{{Index: 0, Position: mgl64.Vec3{10, 0, 0}}}

func TestNewPoolRejectsEmptyPool(t *testing.T) {
	if _, err := NewPool(testLogger(), 0, noHits, testOptions()); !errors.Is(err, oerror.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestDispatchTracesBatch(t *testing.T) {
	p := testPool(t, 2, noHits)
	results, err := p.Dispatch(context.Background(), 1, sources, raytrace.Filter{}, requests(3))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	for i, res := range results {
		if int(res.Correlation) != i {
			t.Fatalf("expected correlation %d, got %d", i, res.Correlation)
		}
		if res.SelectedSource != 0 || res.Occluded {
			t.Fatalf("expected unoccluded source 0, got %+v", res)
		}
	}
}

func TestDispatchPassesFilter(t *testing.T) {
	seen := make(chan []uint32, 8)
	oracle := oracleFunc(func(_, _ mgl64.Vec3, filter raytrace.Filter) (raytrace.Hit, bool, error) {
		seen <- filter.Exclude
		return raytrace.Hit{}, false, nil
	})
	p := testPool(t, 1, oracle)

	if _, err := p.Dispatch(context.Background(), 0, nil, raytrace.Filter{Exclude: []uint32{7}}, requests(1)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := <-seen
	if len(got) != 1 || got[0] != 7 {
		t.Fatalf("expected filter to reach the oracle, got %v", got)
	}
}

func TestDispatchUnknownWorker(t *testing.T) {
	p := testPool(t, 2, noHits)
	for _, index := range []int{-1, 2, 10} {
		if _, err := p.Dispatch(context.Background(), index, sources, raytrace.Filter{}, requests(1)); !errors.Is(err, oerror.ErrWorkerUnavailable) {
			t.Fatalf("index %d: expected worker unavailable, got %v", index, err)
		}
	}
}

func TestDispatchAfterClose(t *testing.T) {
	p := testPool(t, 2, noHits)
	p.Close()
	if _, err := p.Dispatch(context.Background(), 0, sources, raytrace.Filter{}, requests(1)); !errors.Is(err, oerror.ErrWorkerUnavailable) {
		t.Fatalf("expected worker unavailable, got %v", err)
	}
	if err := p.Resize(2); !errors.Is(err, oerror.ErrWorkerUnavailable) {
		t.Fatalf("expected resize of a closed pool to fail, got %v", err)
	}
}

func TestWorkerSurvivesFailedBatch(t *testing.T) {
	oracle := oracleFunc(func(_, ray mgl64.Vec3, _ raytrace.Filter) (raytrace.Hit, bool, error) {
		switch {
		case ray.Z() > 0:
			panic("corrupt scene")
		case ray.Z() < 0:
			return raytrace.Hit{}, false, errors.New("scene unavailable")
		}
		return raytrace.Hit{}, false, nil
	})
	p := testPool(t, 1, oracle)
	ctx := context.Background()

	_, err := p.Dispatch(ctx, 0, sources, raytrace.Filter{}, []raytrace.Request{{Direction: mgl64.Vec3{0, 0, 1}}})
	if err == nil {
		t.Fatalf("expected panicking batch to fail")
	}
	_, err = p.Dispatch(ctx, 0, sources, raytrace.Filter{}, []raytrace.Request{{Direction: mgl64.Vec3{0, 0, -1}}})
	if !errors.Is(err, oerror.ErrOracle) {
		t.Fatalf("expected oracle failure, got %v", err)
	}
	results, err := p.Dispatch(ctx, 0, sources, raytrace.Filter{}, requests(2))
	if err != nil || len(results) != 2 {
		t.Fatalf("expected worker to keep serving after failures, got %v %v", results, err)
	}
}

func TestDispatchDetachesOnCancel(t *testing.T) {
	entered := make(chan struct{}, 1)
	release := make(chan struct{})
	defer close(release)
	oracle := oracleFunc(func(mgl64.Vec3, mgl64.Vec3, raytrace.Filter) (raytrace.Hit, bool, error) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-release
		return raytrace.Hit{}, false, nil
	})
	p := testPool(t, 1, oracle)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := p.Dispatch(ctx, 0, sources, raytrace.Filter{}, requests(1))
		done <- err
	}()

	<-entered
	cancel()
	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Fatalf("expected context cancellation, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("dispatch did not detach after cancellation")
	}
}

func TestRunIsolatesFailedBatches(t *testing.T) {
	// Requests pointing down fail inside the oracle.
	oracle := oracleFunc(func(_, ray mgl64.Vec3, _ raytrace.Filter) (raytrace.Hit, bool, error) {
		if ray.Y() < 0 {
			return raytrace.Hit{}, false, errors.New("scene unavailable")
		}
		return raytrace.Hit{}, false, nil
	})
	p := testPool(t, 3, oracle)

	reqs := requests(6)
	reqs[3].Direction = mgl64.Vec3{0, -1, 0}

	// Three workers with two stages puts every request in its own batch.
	results, failed := p.Run(context.Background(), sources, raytrace.Filter{}, reqs, 2)
	if failed != 1 {
		t.Fatalf("expected 1 failed batch, got %d", failed)
	}
	var got []int
	for _, res := range results {
		got = append(got, int(res.Correlation))
	}
	sort.Ints(got)
	want := []int{0, 1, 2, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("expected correlations %v, got %v", want, got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("expected correlations %v, got %v", want, got)
		}
	}
}

func TestRunUnevenPartition(t *testing.T) {
	p := testPool(t, 4, noHits)
	for _, n := range []int{1, 3, 7, 100} {
		results, failed := p.Run(context.Background(), sources, raytrace.Filter{}, requests(n), 3)
		if failed != 0 || len(results) != n {
			t.Fatalf("%d requests: expected every result, got %d with %d failures", n, len(results), failed)
		}
		seen := make(map[uint16]bool, n)
		for _, res := range results {
			if seen[res.Correlation] {
				t.Fatalf("%d requests: correlation %d traced twice", n, res.Correlation)
			}
			seen[res.Correlation] = true
		}
	}
	if results, failed := p.Run(context.Background(), sources, raytrace.Filter{}, nil, 3); results != nil || failed != 0 {
		t.Fatalf("expected empty run to do nothing")
	}
}

func TestResize(t *testing.T) {
	p := testPool(t, 1, noHits)
	if err := p.Resize(4); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if p.Size() != 4 {
		t.Fatalf("expected 4 workers, got %d", p.Size())
	}
	if _, err := p.Dispatch(context.Background(), 3, sources, raytrace.Filter{}, requests(1)); err != nil {
		t.Fatalf("expected new worker to serve, got %v", err)
	}
	if err := p.Resize(0); !errors.Is(err, oerror.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	if p.Size() != 4 {
		t.Fatalf("expected rejected resize to keep the pool, got %d", p.Size())
	}
}

func TestPartitionKeepsWorkersBalanced(t *testing.T) {
	tests := []struct {
		requests, workers, slices int
	}{
		{5, 4, 4},
		{9, 8, 8},
		{100, 11, 11},
		{100, 9, 9},
		{3, 8, 3},
		{8, 8, 8},
		{1, 1, 1},
	}
	for _, tt := range tests {
		reqs := requests(tt.requests)
		batches := partition(reqs, tt.workers)
		if len(batches) != tt.slices {
			t.Fatalf("%d/%d: expected %d slices, got %d", tt.requests, tt.workers, tt.slices, len(batches))
		}

		smallest, largest, next := tt.requests, 0, 0
		for i, b := range batches {
			if len(b) == 0 {
				t.Fatalf("%d/%d: slice %d is empty", tt.requests, tt.workers, i)
			}
			smallest, largest = min(smallest, len(b)), max(largest, len(b))
			for _, req := range b {
				if int(req.Correlation) != next {
					t.Fatalf("%d/%d: expected request %d next, got %d", tt.requests, tt.workers, next, req.Correlation)
				}
				next++
			}
		}
		if largest-smallest > 1 {
			t.Fatalf("%d/%d: slice sizes range from %d to %d", tt.requests, tt.workers, smallest, largest)
		}
		if next != tt.requests {
			t.Fatalf("%d/%d: expected %d requests covered, got %d", tt.requests, tt.workers, tt.requests, next)
		}
	}
}

func TestRunUsesEveryWorker(t *testing.T) {
	// Every worker blocks on its first request until all of them have started one.
	const workers = 4
	started := make(chan struct{}, 16)
	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }
	defer unblock()
	oracle := oracleFunc(func(mgl64.Vec3, mgl64.Vec3, raytrace.Filter) (raytrace.Hit, bool, error) {
		started <- struct{}{}
		<-release
		return raytrace.Hit{}, false, nil
	})
	p := testPool(t, workers, oracle)

	done := make(chan int, 1)
	go func() {
		results, _ := p.Run(context.Background(), sources, raytrace.Filter{}, requests(5), 1)
		done <- len(results)
	}()

	for i := 0; i < workers; i++ {
		select {
		case <-started:
		case <-time.After(5 * time.Second):
			t.Fatalf("only %d of %d workers received a batch", i, workers)
		}
	}
	unblock()
	select {
	case n := <-done:
		if n != 5 {
			t.Fatalf("expected 5 results, got %d", n)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("run did not finish")
	}
}
