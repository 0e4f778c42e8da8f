package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Scenario defines a conformance scenario: a model, the sampling parameters
// to estimate it with, and the rates the estimate must land in.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Model is the directory holding the CUE model and properties.
	// Relative paths are resolved against the scenario file.
	Model string `yaml:"model"`

	// Guarantees selects a subset of the model's guarantees. Empty keeps all.
	Guarantees []string `yaml:"guarantees,omitempty"`

	Seed        uint64  `yaml:"seed"`
	Confidence  float64 `yaml:"confidence"`
	Precision   float64 `yaml:"precision"`
	MaxLength   int     `yaml:"max_length"`
	MaxDuration int64   `yaml:"max_duration,omitempty"`
	Workers     int     `yaml:"workers,omitempty"`

	// GoldenRun is the index of the run whose trace is snapshotted for
	// golden comparison. Nil skips the snapshot.
	GoldenRun *int `yaml:"golden_run,omitempty"`

	Expect Expect `yaml:"expect"`
}

// Expect bounds the outcome of an estimation.
type Expect struct {
	// Runs is the exact number of runs. Zero skips the check.
	Runs int `yaml:"runs,omitempty"`

	Satisfied    *RateBound `yaml:"satisfied,omitempty"`
	Violated     *RateBound `yaml:"violated,omitempty"`
	Undetermined *RateBound `yaml:"undetermined,omitempty"`

	// Guarantees bounds the violation rate of individual guarantees.
	Guarantees map[string]RateBound `yaml:"guarantees,omitempty"`
}

// RateBound is an inclusive range on a rate. Unset ends are open.
type RateBound struct {
	Min *float64 `yaml:"min,omitempty"`
	Max *float64 `yaml:"max,omitempty"`
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
//
// The model path is resolved relative to the scenario file.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	// Strict field validation catches typos like "expects:" vs "expect:"
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if scenario.Model != "" && !filepath.IsAbs(scenario.Model) {
		scenario.Model = filepath.Join(filepath.Dir(path), scenario.Model)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario %s: %w", path, err)
	}

	return &scenario, nil
}

// LoadScenarios loads every *.yaml and *.yml file in dir, sorted by file name.
// A non-empty filter keeps scenarios whose name contains it.
func LoadScenarios(dir, filter string) ([]*Scenario, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario directory: %w", err)
	}

	var names []string
	for _, e := range entries {
		ext := filepath.Ext(e.Name())
		if !e.IsDir() && (ext == ".yaml" || ext == ".yml") {
			names = append(names, e.Name())
		}
	}
	sort.Strings(names)

	scenarios := []*Scenario{}
	for _, name := range names {
		s, err := LoadScenario(filepath.Join(dir, name))
		if err != nil {
			return nil, err
		}
		if filter != "" && !strings.Contains(s.Name, filter) {
			continue
		}
		scenarios = append(scenarios, s)
	}
	return scenarios, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Description == "" {
		return fmt.Errorf("description is required")
	}

	if s.Model == "" {
		return fmt.Errorf("model is required")
	}
	if info, err := os.Stat(s.Model); err != nil || !info.IsDir() {
		return fmt.Errorf("model directory not found: %s", s.Model)
	}

	if s.GoldenRun != nil && *s.GoldenRun < 0 {
		return fmt.Errorf("golden_run must not be negative")
	}

	bounds := map[string]*RateBound{
		"satisfied":    s.Expect.Satisfied,
		"violated":     s.Expect.Violated,
		"undetermined": s.Expect.Undetermined,
	}
	for name, b := range s.Expect.Guarantees {
		bounds["guarantees."+name] = &b
	}
	for name, b := range bounds {
		if err := b.validate(); err != nil {
			return fmt.Errorf("expect.%s: %w", name, err)
		}
	}

	return nil
}

func (b *RateBound) validate() error {
	if b == nil {
		return nil
	}
	if b.Min == nil && b.Max == nil {
		return fmt.Errorf("min or max is required")
	}
	for _, v := range []*float64{b.Min, b.Max} {
		if v != nil && (*v < 0 || *v > 1) {
			return fmt.Errorf("%v is not a rate in [0, 1]", *v)
		}
	}
	if b.Min != nil && b.Max != nil && *b.Min > *b.Max {
		return fmt.Errorf("min %v exceeds max %v", *b.Min, *b.Max)
	}
	return nil
}

// check returns a description of the violation, or "" if rate is in bounds.
func (b *RateBound) check(rate float64) string {
	if b == nil {
		return ""
	}
	if b.Min != nil && rate < *b.Min {
		return fmt.Sprintf("rate %.4f below min %.4f", rate, *b.Min)
	}
	if b.Max != nil && rate > *b.Max {
		return fmt.Sprintf("rate %.4f above max %.4f", rate, *b.Max)
	}
	return ""
}
