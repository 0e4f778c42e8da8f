// Package config loads run settings for scan verify from a YAML file.
//
// Settings sit underneath command-line flags: the CLI starts from Load (or
// Default when no file is given) and overrides every flag the user set.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/scan/internal/smc"
	"github.com/roach88/scan/internal/telemetry"
)

// Settings are the run settings of one verification.
type Settings struct {
	Confidence  float64 `yaml:"confidence"`
	Precision   float64 `yaml:"precision"`
	MaxLength   int     `yaml:"max_length"`
	MaxDuration int64   `yaml:"max_duration"` // model time units, 0 for no limit
	Workers     int     `yaml:"workers"`      // 0 for GOMAXPROCS

	// Seed fixes the base seed. Nil draws a random one per verification.
	Seed *uint64 `yaml:"seed,omitempty"`

	// Traces selects which runs are written to Database.
	// One of none, all, failures, satisfied, violated, undetermined.
	Traces string `yaml:"traces"`

	// Database is the trace store path. Empty disables the store.
	Database string `yaml:"database,omitempty"`

	// Telemetry is the span exporter: none or stdout.
	Telemetry string `yaml:"telemetry"`
}

// Default returns the built-in settings.
func Default() Settings {
	return Settings{
		Confidence: smc.DefaultConfidence,
		Precision:  smc.DefaultPrecision,
		MaxLength:  smc.DefaultMaxLength,
		Traces:     smc.CaptureFailures.String(),
		Telemetry:  telemetry.ExporterNone,
	}
}

// Load reads settings from a YAML file. Fields the file leaves out keep their
// Default values. Unknown fields are an error.
func Load(path string) (Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Settings{}, fmt.Errorf("failed to read settings file: %w", err)
	}

	s := Default()
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil && !errors.Is(err, io.EOF) {
		return Settings{}, fmt.Errorf("failed to parse settings %s: %w", path, err)
	}

	if err := s.Validate(); err != nil {
		return Settings{}, fmt.Errorf("invalid settings %s: %w", path, err)
	}
	return s, nil
}

// Validate checks the settings that smc.Config does not cover, then the
// sampling parameters themselves.
func (s Settings) Validate() error {
	var errs []error
	switch s.Telemetry {
	case "", telemetry.ExporterNone, telemetry.ExporterStdout:
	default:
		errs = append(errs, fmt.Errorf("telemetry: unknown exporter %q", s.Telemetry))
	}
	if _, err := smc.ParseCapture(s.Traces); err != nil {
		errs = append(errs, fmt.Errorf("traces: %w", err))
	}
	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	cfg, err := s.SMC()
	if err != nil {
		return err
	}
	return cfg.Validate()
}

// SMC maps the settings to a sampling configuration. A nil Seed draws a
// fresh random seed on every call.
func (s Settings) SMC() (smc.Config, error) {
	capture, err := smc.ParseCapture(s.Traces)
	if err != nil {
		return smc.Config{}, err
	}
	seed := rand.Uint64()
	if s.Seed != nil {
		seed = *s.Seed
	}
	return smc.Config{
		Confidence:  s.Confidence,
		Precision:   s.Precision,
		MaxLength:   s.MaxLength,
		MaxDuration: s.MaxDuration,
		Workers:     s.Workers,
		Seed:        seed,
		Capture:     capture,
	}, nil
}
