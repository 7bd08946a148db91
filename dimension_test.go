package protoclust

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDimension_Ranges(t *testing.T) {
	d := Dimension{Min: -2, Max: 6}
	assert.Equal(t, 8.0, d.Range())
	assert.Equal(t, 4.0, d.HalfRange())
	assert.Equal(t, 2.0, d.MidRange())
}

func TestDimension_Wrap(t *testing.T) {
	lin := Dimension{Min: 0, Max: 1}
	circ := Dimension{Min: 0, Max: 1, Circular: true}

	tests := []struct {
		name  string
		d     Dimension
		delta float64
		want  float64
	}{
		{"linear untouched", lin, 0.9, 0.9},
		{"circular short arc", circ, 0.3, 0.3},
		{"circular wraps down", circ, 0.9, -0.1},
		{"circular wraps up", circ, -0.8, 0.2},
		{"circular half range stays", circ, 0.5, 0.5},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.d.wrap(tt.delta), 1e-12)
		})
	}
}

func TestDimension_Normalize(t *testing.T) {
	circ := Dimension{Min: 0, Max: 1, Circular: true}
	lin := Dimension{Min: -1, Max: 1}

	tests := []struct {
		name string
		d    Dimension
		in   float64
		want float64
		ok   bool
	}{
		{"circular in range", circ, 0.25, 0.25, true},
		{"circular max kept", circ, 1, 1, true},
		{"circular above", circ, 5.25, 0.25, true},
		{"circular below", circ, -0.75, 0.25, true},
		{"linear in range", lin, 0.5, 0.5, true},
		{"linear bound", lin, -1, -1, true},
		{"linear above", lin, 1.5, 1.5, false},
		{"linear below", lin, -3, -3, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.d.normalize(tt.in)
			assert.Equal(t, tt.ok, ok)
			assert.InDelta(t, tt.want, got, 1e-12)
		})
	}
}

func TestValidateDimensions(t *testing.T) {
	require.NoError(t, validateDimensions([]Dimension{{Min: 0, Max: 1}, {Min: -math.Pi, Max: math.Pi, Circular: true}}))
	assert.Error(t, validateDimensions([]Dimension{{Min: 1, Max: 1}}))
	assert.Error(t, validateDimensions([]Dimension{{Min: 2, Max: 1}}))
	assert.Error(t, validateDimensions([]Dimension{{Min: math.NaN(), Max: 1}}))
	assert.Error(t, validateDimensions([]Dimension{{Min: 0, Max: math.Inf(1)}}))
}

// --- merging ---

func TestMergeMeans_Linear(t *testing.T) {
	desc := []Dimension{{Min: 0, Max: 10}, {Min: 0, Max: 10}}
	m := make([]float64, 2)
	n := mergeMeans(desc, 3, 1, m, []float64{2, 4}, []float64{6, 8})
	assert.Equal(t, 4, n)
	assert.InDelta(t, 3.0, m[0], 1e-12)
	assert.InDelta(t, 5.0, m[1], 1e-12)
}

func TestMergeMeans_CircularAcrossWrap(t *testing.T) {
	desc := []Dimension{{Min: 0, Max: 1, Circular: true}}
	m := make([]float64, 1)

	// 0.9 and 0.1 are 0.2 apart across the wrap point; the mean is 0 (or 1).
	mergeMeans(desc, 1, 1, m, []float64{0.9}, []float64{0.1})
	assert.InDelta(t, 0, math.Abs(desc[0].wrap(m[0])), 1e-12)

	mergeMeans(desc, 3, 1, m, []float64{0.95}, []float64{0.25})
	assert.InDelta(t, 0.025, m[0], 1e-12)

	mergeMeans(desc, 1, 3, m, []float64{0.25}, []float64{0.95})
	assert.InDelta(t, 0.025, m[0], 1e-12)

	// A mean that lands below Min is moved back up by one range.
	mergeMeans(desc, 1, 3, m, []float64{0.05}, []float64{0.85})
	assert.InDelta(t, 0.9, m[0], 1e-12)
}

// --- metric ---

func TestCircularMetric_Distance(t *testing.T) {
	m := circularMetric{desc: []Dimension{{Min: 0, Max: 1, Circular: true}, {Min: 0, Max: 1}}}
	assert.InDelta(t, 0.2, m.Distance([]float64{0.9, 0.5}, []float64{0.1, 0.5}), 1e-12)
	assert.InDelta(t, 0.5, m.Distance([]float64{0.5, 0.9}, []float64{0.5, 0.4}), 1e-12)
	assert.InDelta(t, 0.04+0.25, m.ReducedDistance([]float64{0.9, 0.9}, []float64{0.1, 0.4}), 1e-12)
}

func TestCircularMetric_AxisGap(t *testing.T) {
	m := circularMetric{desc: []Dimension{{Min: 0, Max: 1}, {Min: 0, Max: 1, Circular: true}}}

	assert.Equal(t, 0.0, m.axisGap(0, 0.5, 0.2, 0.8))
	assert.InDelta(t, 0.1, m.axisGap(0, 0.1, 0.2, 0.8), 1e-12)
	assert.InDelta(t, 0.8, m.axisGap(0, 0.05, 0.85, 0.9), 1e-12)

	// Around the wrap point 0.05 is only 0.1 away from 0.95.
	assert.InDelta(t, 0.1, m.axisGap(1, 0.05, 0.85, 0.95), 1e-12)
	assert.InDelta(t, 0.1, m.axisGap(1, 0.95, 0.05, 0.1), 1e-12)
}
