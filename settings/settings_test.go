package settings

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/acoustrace/acoustrace/audio"
	"github.com/acoustrace/acoustrace/oerror"
	"github.com/sirupsen/logrus"
)

func TestDefaultSettingsAreValid(t *testing.T) {
	s := DefaultSettings()
	if err := s.Validate(); err != nil {
		t.Fatalf("expected defaults to validate, got %v", err)
	}
	if s.Mapper() != audio.DefaultMapper() {
		t.Fatalf("expected default audio section to match the default mapper")
	}
	if opts := s.TraceOptions(); opts.MaxBounces != 4 || opts.RayLength != 500 {
		t.Fatalf("unexpected trace options %+v", opts)
	}
	if s.LogLevel() != logrus.InfoLevel {
		t.Fatalf("expected info level, got %v", s.LogLevel())
	}
}

func TestValidateRejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{name: "too many bounces", mutate: func(s *Settings) { s.Raytrace.MaxBounceCount = 255 }},
		{name: "no bounces", mutate: func(s *Settings) { s.Raytrace.MaxBounceCount = 0 }},
		{name: "no ray length", mutate: func(s *Settings) { s.Raytrace.RayLength = 0 }},
		{name: "snap angle", mutate: func(s *Settings) { s.Raytrace.SnapAngleRadians = 4 }},
		{name: "no workers", mutate: func(s *Settings) { s.Workers.Count = 0 }},
		{name: "negative workers", mutate: func(s *Settings) { s.Workers.Count = -2 }},
		{name: "no stages", mutate: func(s *Settings) { s.Workers.PipelineStages = 0 }},
		{name: "no directions", mutate: func(s *Settings) { s.Directions.Count = 0 }},
		{name: "too many directions", mutate: func(s *Settings) { s.Directions.Count = 65536 }},
		{name: "reference distance", mutate: func(s *Settings) { s.Audio.ReferenceDistance = 0 }},
		{name: "distance factor floor", mutate: func(s *Settings) { s.Audio.MinDistanceFactor = 0 }},
		{name: "bounce decay", mutate: func(s *Settings) { s.Audio.BounceDecay = 1.5 }},
		{name: "gain range", mutate: func(s *Settings) { s.Audio.MinGain = 20 }},
		{name: "log level", mutate: func(s *Settings) { s.Log.Level = "loud" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := DefaultSettings()
			tt.mutate(&s)
			if err := s.Validate(); !errors.Is(err, oerror.ErrConfiguration) {
				t.Fatalf("expected configuration violation, got %v", err)
			}
		})
	}

	s := DefaultSettings()
	s.Raytrace.MaxBounceCount = 254
	s.Directions.Count = 65535
	if err := s.Validate(); err != nil {
		t.Fatalf("expected upper bounds to be accepted, got %v", err)
	}
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	if err := SaveDefault(path); err != nil {
		t.Fatalf("unexpected error saving defaults: %v", err)
	}
	if err := SaveDefault(path); err == nil {
		t.Fatalf("expected saving over an existing file to fail")
	}

	s, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error loading: %v", err)
	}
	if s != DefaultSettings() {
		t.Fatalf("expected loaded settings to match defaults, got %+v", s)
	}
}

func TestLoadRejectsInvalidFile(t *testing.T) {
	dir := t.TempDir()
	if _, err := Load(filepath.Join(dir, "missing.toml")); err == nil {
		t.Fatalf("expected missing file to fail")
	}

	path := filepath.Join(dir, "config.toml")
	if err := SaveDefault(path); err != nil {
		t.Fatalf("unexpected error saving defaults: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("unexpected error reading: %v", err)
	}
	if !strings.Contains(string(data), "maxBounceCount = 4") {
		t.Fatalf("expected maxBounceCount in saved file:\n%s", data)
	}
	data = []byte(strings.Replace(string(data), "maxBounceCount = 4", "maxBounceCount = 300", 1))
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("unexpected error writing: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, oerror.ErrConfiguration) {
		t.Fatalf("expected configuration violation, got %v", err)
	}

	if err := os.WriteFile(path, []byte("raytrace = ["), 0644); err != nil {
		t.Fatalf("unexpected error writing: %v", err)
	}
	if _, err := Load(path); !errors.Is(err, oerror.ErrConfiguration) {
		t.Fatalf("expected decode failure to be a configuration violation, got %v", err)
	}
}
