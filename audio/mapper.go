// Package audio turns raytrace results into the parameters of a per-direction audio channel.
package audio

import (
	"math"

	"github.com/acoustrace/acoustrace/omath"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/chewxy/math32"
)

// Params are the audio settings derived for one direction.
type Params struct {
	Volume    float32
	LowGain   float32
	MidGain   float32
	HighGain  float32
	EchoDelay float32 // seconds

	// Source is the batch-local index of the source the direction reached.
	Source uint16
	Muted  bool
}

// Mapper holds the coefficients used by ToParameters. Gains are in decibels.
type Mapper struct {
	ReferenceDistance float64
	BounceDecay       float64
	MinDistanceFactor float64
	SpeedOfSound      float64

	LowGainPerBounce float32
	MidGainPerBounce float32
	OccludedMidGain  float32
	OccludedHighGain float32

	MinGain float32
	MaxGain float32
}

func DefaultMapper() Mapper {
	return Mapper{
		ReferenceDistance: 300,
		BounceDecay:       0.75,
		MinDistanceFactor: 0.5,
		SpeedOfSound:      343,

		LowGainPerBounce: -10,
		MidGainPerBounce: -5,
		OccludedMidGain:  -20,
		OccludedHighGain: -80,

		MinGain: -80,
		MaxGain: 10,
	}
}

// ToParameters maps a trace onto audio parameters. totalDirections is the number of
// directions fired this frame; each one contributes an equal share of the volume.
func (m Mapper) ToParameters(res raytrace.Result, totalDirections int) Params {
	if !res.HasSource() || totalDirections <= 0 {
		return Params{Source: raytrace.NoSource, Muted: true}
	}

	pathLength := omath.PathLength(res.Path)
	distanceFactor := math.Max(math.Pow(pathLength/m.ReferenceDistance, 2), m.MinDistanceFactor)
	volume := res.DotProduct * math.Pow(m.BounceDecay, float64(res.TotalBounces)) / distanceFactor / float64(totalDirections)

	bounces := float32(res.TotalBounces)
	midGain, highGain := m.MidGainPerBounce*bounces, float32(0)
	if res.Occluded {
		midGain, highGain = m.OccludedMidGain, m.OccludedHighGain
	}

	return Params{
		Volume:    math32.Max(float32(volume), 0),
		LowGain:   m.clampGain(m.LowGainPerBounce * bounces),
		MidGain:   m.clampGain(midGain),
		HighGain:  m.clampGain(highGain),
		EchoDelay: float32(pathLength / m.SpeedOfSound),
		Source:    res.SelectedSource,
	}
}

func (m Mapper) clampGain(g float32) float32 {
	return math32.Min(math32.Max(g, m.MinGain), m.MaxGain)
}
