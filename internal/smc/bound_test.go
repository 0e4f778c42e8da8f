package smc

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRequiredRuns(t *testing.T) {
	tests := []struct {
		confidence, precision float64
		want                  int
	}{
		{0.95, 0.01, 18445},
		{0.99, 0.05, 1060},
		{0.9, 0.1, 150},
		{0.95, 0.05, 738},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, RequiredRuns(tt.confidence, tt.precision), "c=%v p=%v", tt.confidence, tt.precision)
	}
}

func TestHalfWidth_InvertsRequiredRuns(t *testing.T) {
	for _, c := range []float64{0.8, 0.95, 0.999} {
		for _, p := range []float64{0.2, 0.05, 0.01} {
			n := RequiredRuns(c, p)
			assert.LessOrEqual(t, HalfWidth(n, c), p)
			assert.Greater(t, HalfWidth(n-1, c), p)
		}
	}
}

func TestHalfWidth_NoRuns(t *testing.T) {
	assert.Equal(t, 1.0, HalfWidth(0, 0.95))
}

func TestRequiredRuns_Clamped(t *testing.T) {
	assert.Equal(t, math.MaxInt, RequiredRuns(0.95, 1e-10))
	assert.Equal(t, math.MaxInt, RequiredRuns(0.95, 0))
	assert.Equal(t, 1, RequiredRuns(0.01, 0.99))
	assert.Equal(t, 1, RequiredRuns(2, 0.1))
}
