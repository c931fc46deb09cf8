package acoustrace

import (
	"context"
	"sync"
	"time"

	"github.com/acoustrace/acoustrace/audio"
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/omath"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/acoustrace/acoustrace/settings"
	"github.com/acoustrace/acoustrace/source"
	"github.com/acoustrace/acoustrace/utils"
	"github.com/acoustrace/acoustrace/worker"
	"github.com/elliotchance/orderedmap/v2"
	"github.com/getsentry/sentry-go"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sirupsen/logrus"
	"go.uber.org/atomic"
)

// frameHistory is the number of frame durations kept for Stats.
const frameHistory = 120

// Engine fires a fixed set of directions from a listener every frame and drives one audio
// sink per direction from the traced results.
type Engine struct {
	log      *logrus.Logger
	settings settings.Settings
	mapper   audio.Mapper

	registry   *source.Registry
	pool       *worker.Pool
	directions []mgl64.Vec3
	sinks      []audio.Sink
	filter     atomic.Pointer[raytrace.Filter]

	busy    atomic.Bool
	frames  atomic.Uint64
	skipped atomic.Uint64

	statsMu    sync.Mutex
	frameTimes *utils.CircularQueue[float64]
}

// FrameReport describes a completed frame.
type FrameReport struct {
	Frame    uint64
	Duration time.Duration
	Sources  int
	// Results is the number of directions that came back from the workers. Directions lost to a
	// failed batch keep their previous sink values.
	Results       int
	Audible       int
	Muted         int
	FailedBatches int
}

// Stats summarises recent frames.
type Stats struct {
	Frames  uint64
	Skipped uint64

	MeanFrameTime   time.Duration
	FrameTimeStdDev time.Duration
	MaxFrameTime    time.Duration
}

// New validates s and starts the worker pool. sinks[i] receives the parameters traced along
// direction i, so there must be exactly one sink per configured direction.
func New(log *logrus.Logger, s settings.Settings, oracle raytrace.Oracle, registry *source.Registry, sinks []audio.Sink) (*Engine, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if len(sinks) != s.Directions.Count {
		return nil, oerror.Configuration("expected %d sinks, one per direction, got %d", s.Directions.Count, len(sinks))
	}

	pool, err := worker.NewPool(log, s.Workers.Count, oracle, s.TraceOptions())
	if err != nil {
		return nil, err
	}
	e := &Engine{
		log:        log,
		settings:   s,
		mapper:     s.Mapper(),
		registry:   registry,
		pool:       pool,
		directions: omath.FibonacciSphere(s.Directions.Count),
		sinks:      sinks,
		frameTimes: utils.NewCircularQueue[float64](frameHistory),
	}
	e.filter.Store(&raytrace.Filter{})
	return e, nil
}

// SetFilter replaces the raycast filter used from the next frame on.
func (e *Engine) SetFilter(f raytrace.Filter) {
	e.filter.Store(&f)
}

// Directions returns the directions fired each frame, indexed like the sinks.
func (e *Engine) Directions() []mgl64.Vec3 {
	return e.directions
}

// Busy reports whether a frame is in progress.
func (e *Engine) Busy() bool {
	return e.busy.Load()
}

// Frame runs a frame from listener and waits for it. If another frame is still running the
// call returns false immediately and nothing is traced.
func (e *Engine) Frame(ctx context.Context, listener mgl64.Vec3) (FrameReport, bool) {
	if !e.busy.CompareAndSwap(false, true) {
		e.skipped.Inc()
		return FrameReport{}, false
	}
	defer e.busy.Store(false)
	return e.frame(ctx, listener), true
}

// Tick starts a frame in the background. It returns false if the previous frame is still
// running, in which case this one is dropped.
func (e *Engine) Tick(ctx context.Context, listener mgl64.Vec3) bool {
	if !e.busy.CompareAndSwap(false, true) {
		e.skipped.Inc()
		return false
	}
	go func() {
		defer e.busy.Store(false)
		e.frame(ctx, listener)
	}()
	return true
}

func (e *Engine) frame(ctx context.Context, listener mgl64.Vec3) FrameReport {
	span := sentry.StartSpan(ctx, "acoustrace.frame")
	defer span.Finish()
	ctx = span.Context()

	start := time.Now()
	report := FrameReport{Frame: e.frames.Inc()}

	snapshot := e.registry.Snapshot()
	report.Sources = len(snapshot.Sources)

	offset := e.settings.Raytrace.DistanceFromOrigin
	requests := make([]raytrace.Request, len(e.directions))
	for i, dir := range e.directions {
		requests[i] = raytrace.Request{
			Origin:      listener.Add(dir.Mul(offset)),
			Direction:   dir,
			Correlation: uint16(i),
		}
	}

	results, failed := e.pool.Run(ctx, snapshot.Sources, *e.filter.Load(), requests, e.settings.Workers.PipelineStages)
	report.Results, report.FailedBatches = len(results), failed

	for _, res := range results {
		if int(res.Correlation) >= len(e.sinks) {
			e.log.Warnf("dropping result for unknown direction %d", res.Correlation)
			continue
		}
		params := e.mapper.ToParameters(res, len(e.directions))
		audio.Apply(e.sinks[res.Correlation], params, snapshot.Resolve)
		if params.Muted {
			report.Muted++
		} else {
			report.Audible++
		}
	}

	report.Duration = time.Since(start)
	e.statsMu.Lock()
	_ = e.frameTimes.Append(report.Duration.Seconds())
	e.statsMu.Unlock()

	if e.log.IsLevelEnabled(logrus.DebugLevel) {
		fields := orderedmap.NewOrderedMap[string, any]()
		fields.Set("frame", report.Frame)
		fields.Set("took", report.Duration)
		fields.Set("sources", report.Sources)
		fields.Set("results", report.Results)
		fields.Set("audible", report.Audible)
		fields.Set("muted", report.Muted)
		fields.Set("failed", report.FailedBatches)
		e.log.Debugf("frame complete %s", utils.OrderedMapToString(fields))
	}
	return report
}

// Stats returns frame counters and timings over the most recent frames.
func (e *Engine) Stats() Stats {
	e.statsMu.Lock()
	samples := e.frameTimes.Slice()
	e.statsMu.Unlock()

	return Stats{
		Frames:          e.frames.Load(),
		Skipped:         e.skipped.Load(),
		MeanFrameTime:   seconds(omath.Mean(samples)),
		FrameTimeStdDev: seconds(omath.StandardDeviation(samples)),
		MaxFrameTime:    seconds(omath.Max(samples)),
	}
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

// Resize restarts the worker pool with n workers. Batches of a frame running meanwhile may be
// reported as failed.
func (e *Engine) Resize(n int) error {
	return e.pool.Resize(n)
}

// Close stops the worker pool. Frames started afterwards trace nothing.
func (e *Engine) Close() {
	e.pool.Close()
}
