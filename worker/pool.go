package worker

import (
	"context"
	"sync"

	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/acoustrace/acoustrace/wire"
	"github.com/samber/lo"
	"github.com/sirupsen/logrus"
	"golang.org/x/exp/slices"
)

// Pool is a fixed set of tracing workers. Each worker owns a goroutine and an inbox; batches
// reach it wire-encoded and results come back the same way.
type Pool struct {
	log     *logrus.Logger
	oracle  raytrace.Oracle
	options raytrace.Options

	mu      sync.RWMutex
	workers []*worker
	wg      sync.WaitGroup
	closed  bool
}

// NewPool starts n workers tracing against oracle.
func NewPool(log *logrus.Logger, n int, oracle raytrace.Oracle, options raytrace.Options) (*Pool, error) {
	if n <= 0 {
		return nil, oerror.Configuration("worker count must be positive, got %d", n)
	}
	p := &Pool{log: log, oracle: oracle, options: options}
	p.spawn(n)
	return p, nil
}

func (p *Pool) spawn(n int) {
	p.workers = make([]*worker, n)
	for i := range p.workers {
		w := newWorker(i, p.log, raytrace.Tracer{Oracle: p.oracle, Options: p.options})
		p.workers[i] = w

		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			w.run()
		}()
	}
}

// teardown closes every inbox and waits for the workers to drain. The write lock must be held.
func (p *Pool) teardown() {
	for _, w := range p.workers {
		close(w.inbox)
	}
	p.wg.Wait()
	p.workers = nil
}

// Size returns the number of live workers.
func (p *Pool) Size() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return len(p.workers)
}

// Resize tears down every worker and starts n new ones.
func (p *Pool) Resize(n int) error {
	if n <= 0 {
		return oerror.Configuration("worker count must be positive, got %d", n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return oerror.WorkerUnavailable("pool is closed")
	}
	p.teardown()
	p.spawn(n)
	p.log.Debugf("worker pool resized to %d", n)
	return nil
}

// Close stops every worker. Later dispatches fail with a worker-unavailable error.
func (p *Pool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	p.teardown()
}

// Dispatch sends one batch to the worker at index and waits for its results. If ctx ends first
// the caller detaches; the worker still finishes the batch and its reply is dropped.
func (p *Pool) Dispatch(ctx context.Context, index int, sources []raytrace.Source, filter raytrace.Filter, requests []raytrace.Request) ([]raytrace.Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	payload, err := wire.EncodeRequests(sources, requests)
	if err != nil {
		return nil, err
	}

	reply := make(chan Message, 1)
	msg := WorkStarted{
		Payload: payload,
		Filter:  raytrace.Filter{Exclude: slices.Clone(filter.Exclude)},
		reply:   reply,
	}
	if err := p.send(ctx, index, msg); err != nil {
		return nil, err
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case m := <-reply:
		switch m := m.(type) {
		case WorkComplete:
			return wire.DecodeResults(m.Payload)
		case WorkErrored:
			return nil, m.Err
		default:
			return nil, oerror.New("unexpected reply %T from worker %d", m, index)
		}
	}
}

func (p *Pool) send(ctx context.Context, index int, msg WorkStarted) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return oerror.WorkerUnavailable("pool is closed")
	}
	if index < 0 || index >= len(p.workers) {
		return oerror.WorkerUnavailable("no worker at index %d (pool size %d)", index, len(p.workers))
	}
	select {
	case p.workers[index].inbox <- msg:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Run splits requests into one slice per worker and each slice into stages. A stage dispatches
// to all workers at once and waits for every reply before the next stage starts. Failed
// batches are logged and left out of the returned results; their number is returned.
func (p *Pool) Run(ctx context.Context, sources []raytrace.Source, filter raytrace.Filter, requests []raytrace.Request, stages int) ([]raytrace.Result, int) {
	if len(requests) == 0 {
		return nil, 0
	}
	n := p.Size()
	if n == 0 {
		p.log.Warnf("no workers available for %d requests", len(requests))
		return nil, 1
	}
	if stages < 1 {
		stages = 1
	}

	batches := partition(requests, n)
	staged := make([][][]raytrace.Request, len(batches))
	for i, b := range batches {
		staged[i] = lo.Chunk(b, ceilDiv(len(b), stages))
	}

	results := make([]raytrace.Result, 0, len(requests))
	failed := 0
	for stage := 0; stage < stages; stage++ {
		out := make([][]raytrace.Result, len(staged))
		errs := make([]error, len(staged))

		var wg sync.WaitGroup
		for i, parts := range staged {
			if stage >= len(parts) {
				continue
			}
			wg.Add(1)
			go func(i int, batch []raytrace.Request) {
				defer wg.Done()
				out[i], errs[i] = p.Dispatch(ctx, i, sources, filter, batch)
			}(i, parts[stage])
		}
		wg.Wait()

		for i, err := range errs {
			if err != nil {
				failed++
				p.log.Warnf("worker %d failed stage %d batch of %d requests: %v", i, stage, len(staged[i][stage]), err)
				continue
			}
			results = append(results, out[i]...)
		}
	}
	return results, failed
}

// partition splits requests into at most n contiguous slices whose lengths differ by at most
// one. Empty slices are left out when there are fewer requests than workers.
func partition(requests []raytrace.Request, n int) [][]raytrace.Request {
	base, rem := len(requests)/n, len(requests)%n
	batches := make([][]raytrace.Request, 0, n)
	start := 0
	for i := 0; i < n; i++ {
		size := base
		if i < rem {
			size++
		}
		if size == 0 {
			break
		}
		batches = append(batches, requests[start:start+size:start+size])
		start += size
	}
	return batches
}

func ceilDiv(a, b int) int {
	return (a + b - 1) / b
}
