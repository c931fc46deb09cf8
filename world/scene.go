// Package world is an axis-aligned box scene that answers raycasts for the tracer.
package world

import (
	"math"

	"github.com/acoustrace/acoustrace/omath"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/chewxy/math32"
	"github.com/ethaniccc/float32-cube/cube"
	"github.com/ethaniccc/float32-cube/cube/trace"
	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
	"github.com/sasha-s/go-deadlock"
)

// minHitDistance discards intercepts at the start of a segment, which is where a reflected ray
// leaves the surface it bounced off.
const minHitDistance = 1e-3

// Box is a solid piece of geometry.
type Box struct {
	ID   uint32
	BBox cube.BBox
}

// Scene is a set of boxes. It is safe for concurrent raycasts.
type Scene struct {
	boxes []Box

	deadlock.RWMutex
}

func NewScene(boxes ...Box) *Scene {
	return &Scene{boxes: append([]Box(nil), boxes...)}
}

func (s *Scene) Add(boxes ...Box) {
	s.Lock()
	defer s.Unlock()
	s.boxes = append(s.boxes, boxes...)
}

// Remove deletes every box with the given id and reports whether any existed.
func (s *Scene) Remove(id uint32) bool {
	s.Lock()
	defer s.Unlock()

	kept := s.boxes[:0]
	for _, b := range s.boxes {
		if b.ID != id {
			kept = append(kept, b)
		}
	}
	removed := len(kept) != len(s.boxes)
	s.boxes = kept
	return removed
}

func (s *Scene) Len() int {
	s.RLock()
	defer s.RUnlock()
	return len(s.boxes)
}

// Raycast returns the nearest box surface crossed by the segment from origin to origin+ray.
func (s *Scene) Raycast(origin, ray mgl64.Vec3, filter raytrace.Filter) (raytrace.Hit, bool, error) {
	start := omath.Vec64To32(origin)
	end := omath.Vec64To32(origin.Add(ray))

	s.RLock()
	defer s.RUnlock()

	var (
		hit  raytrace.Hit
		best = math.MaxFloat64
	)
	for _, b := range s.boxes {
		if filter.Excludes(b.ID) {
			continue
		}
		res, ok := trace.BBoxIntercept(b.BBox, start, end)
		if !ok {
			continue
		}
		pos := omath.Vec32To64(res.Position())
		dist := pos.Sub(origin).Len()
		if dist < minHitDistance || dist >= best {
			continue
		}
		best = dist
		hit = raytrace.Hit{Position: pos, Normal: surfaceNormal(b.BBox, res.Position()), ID: b.ID}
	}
	return hit, best != math.MaxFloat64, nil
}

// surfaceNormal returns the outward normal of the face of bb closest to p.
func surfaceNormal(bb cube.BBox, p mgl32.Vec3) mgl64.Vec3 {
	bbMin, bbMax := bb.Min(), bb.Max()

	var normal mgl64.Vec3
	closest := float32(math.MaxFloat32)
	for axis := 0; axis < 3; axis++ {
		if d := math32.Abs(p[axis] - bbMin[axis]); d < closest {
			closest = d
			normal = mgl64.Vec3{}
			normal[axis] = -1
		}
		if d := math32.Abs(p[axis] - bbMax[axis]); d < closest {
			closest = d
			normal = mgl64.Vec3{}
			normal[axis] = 1
		}
	}
	return normal
}

// Room returns six walls of the given thickness enclosing the space between from and to. The
// walls take ids firstID to firstID+5: floor, ceiling, north, south, west, east.
func Room(from, to mgl64.Vec3, thickness float64, firstID uint32) []Box {
	lo, hi := omath.Vec64To32(from), omath.Vec64To32(to)
	t := float32(thickness)
	outerLo, outerHi := lo.Sub(mgl32.Vec3{t, t, t}), hi.Add(mgl32.Vec3{t, t, t})

	return []Box{
		{ID: firstID, BBox: cube.Box(outerLo[0], outerLo[1], outerLo[2], outerHi[0], lo[1], outerHi[2])},
		{ID: firstID + 1, BBox: cube.Box(outerLo[0], hi[1], outerLo[2], outerHi[0], outerHi[1], outerHi[2])},
		{ID: firstID + 2, BBox: cube.Box(outerLo[0], lo[1], outerLo[2], outerHi[0], hi[1], lo[2])},
		{ID: firstID + 3, BBox: cube.Box(outerLo[0], lo[1], hi[2], outerHi[0], hi[1], outerHi[2])},
		{ID: firstID + 4, BBox: cube.Box(outerLo[0], lo[1], lo[2], lo[0], hi[1], hi[2])},
		{ID: firstID + 5, BBox: cube.Box(hi[0], lo[1], lo[2], outerHi[0], hi[1], hi[2])},
	}
}
