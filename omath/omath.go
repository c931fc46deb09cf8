package omath

import (
	"math"

	"github.com/go-gl/mathgl/mgl32"
	"github.com/go-gl/mathgl/mgl64"
)

// Vec32To64 converts a 32 bit vector to a 64 bit one.
func Vec32To64(vec3 mgl32.Vec3) mgl64.Vec3 {
	return mgl64.Vec3{float64(vec3[0]), float64(vec3[1]), float64(vec3[2])}
}

// Vec64To32 converts a 64 bit vector to a 32 bit one.
func Vec64To32(vec3 mgl64.Vec3) mgl32.Vec3 {
	return mgl32.Vec3{float32(vec3[0]), float32(vec3[1]), float32(vec3[2])}
}

// Round will round a number to a given precision.
func Round(val float64, precision int) float64 {
	p := math.Pow10(precision)
	return math.Round(val*p) / p
}

func ClampFloat(num, min, max float64) float64 {
	if num < min {
		return min
	}
	return math.Min(num, max)
}

// Reflect mirrors v about the plane with the given unit normal.
func Reflect(v, normal mgl64.Vec3) mgl64.Vec3 {
	return v.Sub(normal.Mul(2 * v.Dot(normal)))
}

// DirectionFromTo returns the unit vector pointing from one point to another. The second
// return value is false when both points coincide and no direction exists.
func DirectionFromTo(from, to mgl64.Vec3) (mgl64.Vec3, bool) {
	delta := to.Sub(from)
	l := delta.Len()
	if l == 0 {
		return mgl64.Vec3{}, false
	}
	return delta.Mul(1 / l), true
}

// Angle returns the angle in radians between two vectors, or NaN if either has no length.
func Angle(a, b mgl64.Vec3) float64 {
	l := a.Len() * b.Len()
	if l == 0 {
		return math.NaN()
	}
	return math.Acos(ClampFloat(a.Dot(b)/l, -1, 1))
}

// PathLength sums the distances between consecutive points.
func PathLength(points []mgl64.Vec3) (length float64) {
	for i := 1; i < len(points); i++ {
		length += points[i].Sub(points[i-1]).Len()
	}
	return length
}

// FibonacciSphere returns n unit directions spread evenly over the sphere along a golden
// angle spiral. The order is stable for a given n.
func FibonacciSphere(n int) []mgl64.Vec3 {
	if n <= 0 {
		return nil
	}

	goldenRatio := (1 + math.Sqrt(5)) / 2
	angleIncrement := math.Pi * 2 * goldenRatio
	directions := make([]mgl64.Vec3, 0, n)
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		inclination := math.Acos(1 - 2*t)
		azimuth := angleIncrement * float64(i)

		sinInc := math.Sin(inclination)
		directions = append(directions, mgl64.Vec3{
			-sinInc * math.Cos(azimuth),
			-sinInc * math.Sin(azimuth),
			-math.Cos(inclination),
		})
	}
	return directions
}
