package ir

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFingerprintDeterminism(t *testing.T) {
	desc := map[string]any{
		"globals":   map[string]Value{"x": Int(0)},
		"processes": []string{"P", "Q"},
	}

	fp1, err := Fingerprint(DomainModel, desc)
	require.NoError(t, err)
	fp2, err := Fingerprint(DomainModel, desc)
	require.NoError(t, err)

	assert.Equal(t, fp1, fp2)
	assert.Len(t, fp1, 64, "SHA-256 hex is 64 characters")
}

func TestFingerprintDomainSeparation(t *testing.T) {
	desc := map[string]any{"x": 1}

	model := MustFingerprint(DomainModel, desc)
	property := MustFingerprint(DomainProperty, desc)

	assert.NotEqual(t, model, property, "same payload under different domains must differ")
}

func TestFingerprintChangesWithInput(t *testing.T) {
	a := MustFingerprint(DomainTrace, []any{map[string]any{"seq": 0}})
	b := MustFingerprint(DomainTrace, []any{map[string]any{"seq": 1}})
	assert.NotEqual(t, a, b)
}

func TestFingerprintRejectsFloats(t *testing.T) {
	_, err := Fingerprint(DomainModel, map[string]any{"weight": 0.5})
	require.Error(t, err)
	assert.Contains(t, err.Error(), DomainModel)
}
