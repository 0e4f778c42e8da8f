package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const scenarioDir = "../../testdata/scenarios"

func writeScenario(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.Mkdir(filepath.Join(dir, "model"), 0o755))
	path := filepath.Join(dir, "scenario.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadScenario_ResolvesModelPath(t *testing.T) {
	s, err := LoadScenario(filepath.Join(scenarioDir, "counter.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "counter-reaches-five", s.Name)
	assert.Equal(t, filepath.Join(scenarioDir, "../models/counter"), s.Model)
	assert.Equal(t, uint64(7), s.Seed)
	require.NotNil(t, s.GoldenRun)
	assert.Equal(t, 0, *s.GoldenRun)
	assert.Equal(t, 150, s.Expect.Runs)
	require.NotNil(t, s.Expect.Satisfied)
	require.NotNil(t, s.Expect.Satisfied.Min)
	assert.Equal(t, 1.0, *s.Expect.Satisfied.Min)
	assert.Nil(t, s.Expect.Satisfied.Max)
}

func TestLoadScenario_UnknownField(t *testing.T) {
	path := writeScenario(t, `
name: typo
description: misspelt expect
model: model
expects: {runs: 1}
`)
	_, err := LoadScenario(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "expects")
}

func TestLoadScenario_Validation(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{"missing name", "description: d\nmodel: model\n", "name is required"},
		{"missing description", "name: n\nmodel: model\n", "description is required"},
		{"missing model", "name: n\ndescription: d\n", "model is required"},
		{"absent model", "name: n\ndescription: d\nmodel: nowhere\n", "model directory not found"},
		{"negative golden", "name: n\ndescription: d\nmodel: model\ngolden_run: -1\n", "golden_run"},
		{"empty bound", "name: n\ndescription: d\nmodel: model\nexpect: {satisfied: {}}\n", "min or max"},
		{"rate out of range", "name: n\ndescription: d\nmodel: model\nexpect: {violated: {max: 2}}\n", "not a rate"},
		{"inverted bound", "name: n\ndescription: d\nmodel: model\nexpect: {satisfied: {min: 0.8, max: 0.2}}\n", "exceeds"},
		{"guarantee bound", "name: n\ndescription: d\nmodel: model\nexpect: {guarantees: {g: {}}}\n", "guarantees.g"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadScenario(writeScenario(t, tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadScenarios_SortedAndFiltered(t *testing.T) {
	all, err := LoadScenarios(scenarioDir, "")
	require.NoError(t, err)
	names := make([]string, len(all))
	for i, s := range all {
		names[i] = s.Name
	}
	assert.Equal(t, []string{"coin-deadlock", "counter-reaches-five", "pipeline-total"}, names)

	some, err := LoadScenarios(scenarioDir, "counter")
	require.NoError(t, err)
	require.Len(t, some, 1)
	assert.Equal(t, "counter-reaches-five", some[0].Name)
}

func TestRateBound_Check(t *testing.T) {
	lo, hi := 0.2, 0.4
	b := &RateBound{Min: &lo, Max: &hi}

	assert.Empty(t, b.check(0.2))
	assert.Empty(t, b.check(0.4))
	assert.Contains(t, b.check(0.1), "below min")
	assert.Contains(t, b.check(0.5), "above max")

	var none *RateBound
	assert.Empty(t, none.check(0.99))
}
