package raytrace

import (
	"time"

	"github.com/acoustrace/acoustrace/assert"
	"github.com/acoustrace/acoustrace/internal"
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/omath"
	"github.com/go-gl/mathgl/mgl64"
	"golang.org/x/exp/slices"
)

var sourcePool = internal.NewSlicePool[Source](16)

// Tracer traces rays against the geometry behind Oracle.
type Tracer struct {
	Oracle Oracle
	Filter Filter
	Options
}

// Trace bounces a ray from origin along direction until it snaps to one of the sources,
// escapes the scene, or runs out of bounces. Only oracle failures are returned as errors.
func (t Tracer) Trace(origin, direction mgl64.Vec3, sources []Source) (Result, error) {
	start := time.Now()

	path := make([]mgl64.Vec3, 0, t.MaxBounces+1)
	path = append(path, origin)

	pos := origin
	dir := direction
	if l := dir.Len(); l > 0 {
		dir = dir.Mul(1 / l)
	}

	sorted := sourcePool.Get(len(sources))
	defer sourcePool.Put(sorted)

	for i := 0; i < t.MaxBounces; i++ {
		hit, ok, err := t.Oracle.Raycast(pos, dir.Mul(t.RayLength), t.Filter)
		if err != nil {
			return Result{}, oerror.Wrap(oerror.KindOracle, err, "raycast at bounce %d", i)
		}

		// Ties keep input order, so start from a fresh copy on every bounce.
		*sorted = append((*sorted)[:0], sources...)
		slices.SortStableFunc(*sorted, func(a, b Source) int {
			da, db := a.Position.Sub(pos).LenSqr(), b.Position.Sub(pos).LenSqr()
			switch {
			case da < db:
				return -1
			case da > db:
				return 1
			}
			return 0
		})

		for _, src := range *sorted {
			toSource, valid := omath.DirectionFromTo(pos, src.Position)
			// Angle is NaN for a zero-length direction, which never snaps.
			if !valid || !(omath.Angle(dir, toSource) < t.SnapAngle) {
				continue
			}

			path = append(path, src.Position)
			_, occluded, err := t.Oracle.Raycast(pos, src.Position.Sub(pos), t.Filter)
			if err != nil {
				return Result{}, oerror.Wrap(oerror.KindOracle, err, "occlusion raycast at bounce %d", i)
			}
			return t.result(path, i, dir.Dot(toSource), occluded, src.Index, start), nil
		}

		if !ok {
			path = append(path, pos.Add(dir.Mul(t.RayLength)))
			return t.result(path, i, 0, false, NoSource, start), nil
		}

		dir = omath.Reflect(dir, hit.Normal)
		if l := dir.Len(); l > 0 {
			dir = dir.Mul(1 / l)
		}
		pos = hit.Position
		path = append(path, pos)
	}

	return t.result(path, t.MaxBounces, 0, false, NoSource, start), nil
}

func (t Tracer) result(path []mgl64.Vec3, bounces int, dot float64, occluded bool, source uint16, start time.Time) Result {
	assert.IsTrue(len(path) <= t.MaxBounces+1, "path of %d points exceeds %d bounces", len(path), t.MaxBounces)
	return Result{
		Path:           path,
		TotalBounces:   bounces,
		DotProduct:     dot,
		Occluded:       occluded,
		SelectedSource: source,
		Elapsed:        time.Since(start),
	}
}

// TraceRequest traces a single request and stamps the result with its correlation index.
func (t Tracer) TraceRequest(req Request, sources []Source) (Result, error) {
	res, err := t.Trace(req.Origin, req.Direction, sources)
	if err != nil {
		return res, err
	}
	res.Correlation = req.Correlation
	return res, nil
}
