package smc

import (
	"errors"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/scan/internal/mtl"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	assert.Equal(t, 0.95, cfg.Confidence)
	assert.Equal(t, 0.01, cfg.Precision)
	assert.Equal(t, 10000, cfg.MaxLength)
	assert.Zero(t, cfg.MaxDuration)
	assert.Equal(t, runtime.GOMAXPROCS(0), cfg.Workers)
	assert.Equal(t, CaptureNone, cfg.Capture)
	require.NoError(t, cfg.Validate())
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name  string
		edit  func(*Config)
		field string
	}{
		{"confidence zero", func(c *Config) { c.Confidence = 0 }, "confidence"},
		{"confidence one", func(c *Config) { c.Confidence = 1 }, "confidence"},
		{"precision negative", func(c *Config) { c.Precision = -0.1 }, "precision"},
		{"precision above one", func(c *Config) { c.Precision = 1.5 }, "precision"},
		{"precision too fine", func(c *Config) { c.Precision = 1e-10 }, "precision"},
		{"max length zero", func(c *Config) { c.MaxLength = 0 }, "max length"},
		{"negative duration", func(c *Config) { c.MaxDuration = -1 }, "max duration"},
		{"negative workers", func(c *Config) { c.Workers = -2 }, "workers"},
		{"unknown capture", func(c *Config) { c.Capture = Capture(42) }, "capture"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.edit(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.True(t, IsConfigError(err))
			var ce *ConfigError
			require.True(t, errors.As(err, &ce))
			assert.Equal(t, tt.field, ce.Field)
		})
	}
}

func TestValidate_CollectsAll(t *testing.T) {
	cfg := Config{Confidence: 2, Precision: 0, MaxLength: -1}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Len(t, err.(interface{ Unwrap() []error }).Unwrap(), 3)
}

func TestParseCapture(t *testing.T) {
	for _, name := range []string{"none", "all", "failures", "satisfied", "violated", "undetermined"} {
		c, err := ParseCapture(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	c, err := ParseCapture("ALL")
	require.NoError(t, err)
	assert.Equal(t, CaptureAll, c)

	_, err = ParseCapture("some")
	require.Error(t, err)
}

func TestCapture_Keeps(t *testing.T) {
	sat, vio, und := mtl.OutcomeSatisfied, mtl.OutcomeViolated, mtl.OutcomeUndetermined
	tests := []struct {
		capture    Capture
		keeps      []mtl.Outcome
		rejects    []mtl.Outcome
	}{
		{CaptureNone, nil, []mtl.Outcome{sat, vio, und}},
		{CaptureAll, []mtl.Outcome{sat, vio, und}, nil},
		{CaptureFailures, []mtl.Outcome{vio, und}, []mtl.Outcome{sat}},
		{CaptureSatisfied, []mtl.Outcome{sat}, []mtl.Outcome{vio, und}},
		{CaptureViolated, []mtl.Outcome{vio}, []mtl.Outcome{sat, und}},
		{CaptureUndetermined, []mtl.Outcome{und}, []mtl.Outcome{sat, vio}},
	}
	for _, tt := range tests {
		for _, o := range tt.keeps {
			assert.True(t, tt.capture.Keeps(o), "%s keeps %s", tt.capture, o)
		}
		for _, o := range tt.rejects {
			assert.False(t, tt.capture.Keeps(o), "%s rejects %s", tt.capture, o)
		}
	}
}
