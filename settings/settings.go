package settings

import (
	"math"
	"os"

	"github.com/acoustrace/acoustrace/audio"
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/acoustrace/acoustrace/raytrace"
	"github.com/pelletier/go-toml"
	"github.com/sirupsen/logrus"
)

// Settings contains everything that can be configured for the engine.
type Settings struct {
	Raytrace   Raytrace   `toml:"raytrace"`
	Workers    Workers    `toml:"workers"`
	Directions Directions `toml:"directions"`
	Audio      Audio      `toml:"audio"`
	Log        Log        `toml:"log"`
}

type Raytrace struct {
	// RayLength is the distance a single raycast covers.
	RayLength float64 `toml:"rayLength"`
	// MaxBounceCount is the number of reflections a ray may make before it is given up on.
	MaxBounceCount   int     `toml:"maxBounceCount"`
	SnapAngleRadians float64 `toml:"snapAngleRadians"`
	// DistanceFromOrigin pushes every ray origin away from the listener along its direction.
	DistanceFromOrigin float64 `toml:"distanceFromOrigin"`
}

type Workers struct {
	Count          int `toml:"count"`
	PipelineStages int `toml:"pipelineStages"`
}

type Directions struct {
	Count int `toml:"count"`
	// TickIntervalMillis is how often the demo binary starts a frame.
	TickIntervalMillis int `toml:"tickIntervalMillis"`
}

type Audio struct {
	ReferenceDistance float64 `toml:"referenceDistance"`
	BounceDecay       float64 `toml:"bounceDecay"`
	MinDistanceFactor float64 `toml:"minDistanceFactor"`
	SpeedOfSound      float64 `toml:"speedOfSound"`
	LowGainPerBounce  float64 `toml:"lowGainPerBounce"`
	MidGainPerBounce  float64 `toml:"midGainPerBounce"`
	OccludedMidGain   float64 `toml:"occludedMidGain"`
	OccludedHighGain  float64 `toml:"occludedHighGain"`
	MinGain           float64 `toml:"minGain"`
	MaxGain           float64 `toml:"maxGain"`
}

type Log struct {
	Level string `toml:"level"`
}

// DefaultSettings returns the default settings.
func DefaultSettings() Settings {
	s := Settings{}
	s.Raytrace.RayLength = 500
	s.Raytrace.MaxBounceCount = 4
	s.Raytrace.SnapAngleRadians = 0.5236
	s.Raytrace.DistanceFromOrigin = 5

	s.Workers.Count = 4
	s.Workers.PipelineStages = 2

	s.Directions.Count = 100
	s.Directions.TickIntervalMillis = 100

	m := audio.DefaultMapper()
	s.Audio.ReferenceDistance = m.ReferenceDistance
	s.Audio.BounceDecay = m.BounceDecay
	s.Audio.MinDistanceFactor = m.MinDistanceFactor
	s.Audio.SpeedOfSound = m.SpeedOfSound
	s.Audio.LowGainPerBounce = float64(m.LowGainPerBounce)
	s.Audio.MidGainPerBounce = float64(m.MidGainPerBounce)
	s.Audio.OccludedMidGain = float64(m.OccludedMidGain)
	s.Audio.OccludedHighGain = float64(m.OccludedHighGain)
	s.Audio.MinGain = float64(m.MinGain)
	s.Audio.MaxGain = float64(m.MaxGain)

	s.Log.Level = "info"
	return s
}

// Validate rejects settings the engine cannot run with.
func (s Settings) Validate() error {
	switch r := s.Raytrace; {
	case r.RayLength <= 0:
		return oerror.Configuration("raytrace.rayLength must be positive, got %v", r.RayLength)
	case r.MaxBounceCount < 1 || r.MaxBounceCount > raytrace.MaxBounceLimit:
		return oerror.Configuration("raytrace.maxBounceCount must be within [1, %d], got %d", raytrace.MaxBounceLimit, r.MaxBounceCount)
	case r.SnapAngleRadians <= 0 || r.SnapAngleRadians >= math.Pi:
		return oerror.Configuration("raytrace.snapAngleRadians must be within (0, pi), got %v", r.SnapAngleRadians)
	case r.DistanceFromOrigin < 0:
		return oerror.Configuration("raytrace.distanceFromOrigin must not be negative, got %v", r.DistanceFromOrigin)
	}

	if s.Workers.Count <= 0 {
		return oerror.Configuration("workers.count must be positive, got %d", s.Workers.Count)
	}
	if s.Workers.PipelineStages <= 0 {
		return oerror.Configuration("workers.pipelineStages must be positive, got %d", s.Workers.PipelineStages)
	}
	if s.Directions.Count < 1 || s.Directions.Count > math.MaxUint16 {
		return oerror.Configuration("directions.count must be within [1, %d], got %d", math.MaxUint16, s.Directions.Count)
	}
	if s.Directions.TickIntervalMillis <= 0 {
		return oerror.Configuration("directions.tickIntervalMillis must be positive, got %d", s.Directions.TickIntervalMillis)
	}

	switch a := s.Audio; {
	case a.ReferenceDistance <= 0:
		return oerror.Configuration("audio.referenceDistance must be positive, got %v", a.ReferenceDistance)
	case a.MinDistanceFactor <= 0:
		return oerror.Configuration("audio.minDistanceFactor must be positive, got %v", a.MinDistanceFactor)
	case a.SpeedOfSound <= 0:
		return oerror.Configuration("audio.speedOfSound must be positive, got %v", a.SpeedOfSound)
	case a.BounceDecay <= 0 || a.BounceDecay > 1:
		return oerror.Configuration("audio.bounceDecay must be within (0, 1], got %v", a.BounceDecay)
	case a.MinGain > a.MaxGain:
		return oerror.Configuration("audio.minGain %v is above audio.maxGain %v", a.MinGain, a.MaxGain)
	}

	if _, err := logrus.ParseLevel(s.Log.Level); err != nil {
		return oerror.Wrap(oerror.KindConfiguration, err, "log.level")
	}
	return nil
}

// TraceOptions returns the options every worker traces with.
func (s Settings) TraceOptions() raytrace.Options {
	return raytrace.Options{
		MaxBounces: s.Raytrace.MaxBounceCount,
		SnapAngle:  s.Raytrace.SnapAngleRadians,
		RayLength:  s.Raytrace.RayLength,
	}
}

// Mapper returns the audio mapper configured by the audio section.
func (s Settings) Mapper() audio.Mapper {
	a := s.Audio
	return audio.Mapper{
		ReferenceDistance: a.ReferenceDistance,
		BounceDecay:       a.BounceDecay,
		MinDistanceFactor: a.MinDistanceFactor,
		SpeedOfSound:      a.SpeedOfSound,
		LowGainPerBounce:  float32(a.LowGainPerBounce),
		MidGainPerBounce:  float32(a.MidGainPerBounce),
		OccludedMidGain:   float32(a.OccludedMidGain),
		OccludedHighGain:  float32(a.OccludedHighGain),
		MinGain:           float32(a.MinGain),
		MaxGain:           float32(a.MaxGain),
	}
}

// LogLevel parses the configured log level, falling back to info.
func (s Settings) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(s.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// SaveDefault will create and save the default settings file. If the file already exists, it will return an error.
func SaveDefault(path string) error {
	if _, err := os.Stat(path); !os.IsNotExist(err) {
		return oerror.New("settings file %s already exists", path)
	}
	data, err := toml.Marshal(DefaultSettings())
	if err != nil {
		return oerror.Wrap(oerror.KindGeneric, err, "failed encoding default settings")
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return oerror.Wrap(oerror.KindGeneric, err, "failed creating settings file")
	}
	return nil
}

// Load will load and validate the settings from your settings file.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, oerror.Wrap(oerror.KindGeneric, err, "error reading settings")
	}

	var s Settings
	if err := toml.Unmarshal(data, &s); err != nil {
		return Settings{}, oerror.Wrap(oerror.KindConfiguration, err, "error decoding settings")
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}
