package raytrace

import (
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"
)

// NoSource is the SelectedSource value of a result that did not acquire a source. It is the
// largest value a u16 can hold on the wire, so live source indices must stay below it.
const NoSource uint16 = math.MaxUint16

// MaxSources is the largest number of sources a single batch may carry.
const MaxSources = int(NoSource) - 1

// MaxBounceLimit is the largest MaxBounces for which a path still fits a u8 length prefix.
const MaxBounceLimit = math.MaxUint8 - 1

// Source is an emitting audio source as seen by one batch. Index is batch-local and must not
// be kept across frames.
type Source struct {
	Index    uint16
	Position mgl64.Vec3
}

// Request is a single ray to trace. Direction need not be unit length.
type Request struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
	// Correlation ties the result back to whatever issued the request, independent of the
	// position of the result in its batch.
	Correlation uint16
}

// Result is the outcome of tracing one Request.
type Result struct {
	Correlation uint16
	// Path holds the origin, every reflection point, and either the acquired source position or
	// the final miss point.
	Path []mgl64.Vec3
	// TotalBounces is the number of reflections before the trace terminated.
	TotalBounces int
	// DotProduct is the alignment between the final ray direction and the direction to the
	// acquired source. It is zero if no source was acquired.
	DotProduct float64
	// Occluded is true if a surface blocks the straight line to the acquired source.
	Occluded bool
	// SelectedSource is the batch-local index of the acquired source, or NoSource.
	SelectedSource uint16
	Elapsed        time.Duration
}

// HasSource reports whether the trace acquired a source.
func (r Result) HasSource() bool {
	return r.SelectedSource != NoSource
}

// Filter restricts which geometry the oracle considers. It is handed to workers by value and
// must not be mutated after a dispatch.
type Filter struct {
	// Exclude lists geometry ids that rays pass through.
	Exclude []uint32
}

// Excludes reports whether the geometry with the given id is filtered out.
func (f Filter) Excludes(id uint32) bool {
	for _, ex := range f.Exclude {
		if ex == id {
			return true
		}
	}
	return false
}

// Hit is the nearest blocking surface found by an Oracle.
type Hit struct {
	Position mgl64.Vec3
	Normal   mgl64.Vec3
	// ID identifies the geometry that was hit.
	ID uint32
}

// Oracle answers raycasts against scene geometry. Implementations must be safe for concurrent
// use by multiple workers.
type Oracle interface {
	// Raycast returns the nearest surface along the segment from origin to origin+ray. The bool
	// is false if nothing was hit.
	Raycast(origin, ray mgl64.Vec3, filter Filter) (Hit, bool, error)
}

// Options are the tunables of a trace.
type Options struct {
	MaxBounces int
	// SnapAngle is the angle in radians below which a source counts as heard.
	SnapAngle float64
	RayLength float64
}
