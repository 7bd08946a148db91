package protoclust

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func codecFixture() ([]Dimension, []*Prototype) {
	dims := []Dimension{
		{Min: 0, Max: 6.283185307179586, Circular: true},
		{Min: -1, Max: 1, NonEssential: true},
		{Min: 0, Max: 1},
	}
	tree := chainTree([][]float64{{1, 0.2, 0.4}, {1.2, 0.4, 0.6}, {1.1, -0.1, 0.5}}, []int{0, 1, 2})
	c := &tree.nodes[tree.root]
	stats := computeStatistics(tree, dims, tree.root)

	sph := newSphericalPrototype(c, ClusterRef{tree: tree, id: tree.root}, stats)
	ell := newEllipticalPrototype(c, ClusterRef{}, stats)
	ell.Significant = false
	mix := newMixedPrototype(c, ClusterRef{}, stats)
	mix.makeDimRandom(1, dims[1])
	mix.makeDimUniform(2, c.mean[2], stats)
	return dims, []*Prototype{sph, ell, mix}
}

func assertSamePrototypes(t *testing.T, want, got []*Prototype) {
	t.Helper()
	require.Len(t, got, len(want))
	for i := range want {
		w, g := want[i], got[i]
		assert.Equal(t, w.Style, g.Style, "prototype %d", i)
		assert.Equal(t, w.Significant, g.Significant, "prototype %d", i)
		assert.Equal(t, w.NumSamples, g.NumSamples, "prototype %d", i)
		assert.Equal(t, w.Mean, g.Mean, "prototype %d", i)
		for d := range w.Mean {
			assert.Equal(t, w.Distribution(d), g.Distribution(d), "prototype %d dim %d", i, d)
			assert.Equal(t, w.StandardDeviation(d), g.StandardDeviation(d), "prototype %d dim %d", i, d)
		}
		assert.InDelta(t, w.TotalMagnitude, g.TotalMagnitude, 1e-9*w.TotalMagnitude, "prototype %d", i)
		assert.InDelta(t, w.LogMagnitude, g.LogMagnitude, 1e-9, "prototype %d", i)
		assert.False(t, g.Cluster.Valid())
	}
}

func TestCodec_RoundTrip(t *testing.T) {
	dims, protos := codecFixture()

	var buf bytes.Buffer
	require.NoError(t, WritePrototypes(&buf, dims, protos))
	text := buf.String()
	assert.True(t, strings.HasPrefix(text, "dimensions 3\ncircular essential 0 6.283185307179586\n"))
	assert.Contains(t, text, "linear non-essential -1 1\n")
	assert.Contains(t, text, "significant spherical 3\n")
	assert.Contains(t, text, "insignificant elliptical 3\n")
	assert.Contains(t, text, "distributions normal random uniform\n")

	gotDims, got, err := ReadPrototypes(&buf)
	require.NoError(t, err)
	assert.Equal(t, dims, gotDims)
	assertSamePrototypes(t, protos, got)
}

func TestCodec_CompressedRoundTrip(t *testing.T) {
	dims, protos := codecFixture()

	var buf bytes.Buffer
	require.NoError(t, WriteCompressed(&buf, dims, protos))
	assert.Equal(t, []byte{0x28, 0xb5, 0x2f, 0xfd}, buf.Bytes()[:4], "zstd frame magic")

	gotDims, got, err := ReadCompressed(&buf)
	require.NoError(t, err)
	assert.Equal(t, dims, gotDims)
	assertSamePrototypes(t, protos, got)
}

func TestCodec_EngineOutput(t *testing.T) {
	desc := unitDims(4)
	e := newTestEngine(t, desc, tightBlob(100, []float64{0.5, 0.5, 0.5, 0.5}, 0.01))
	protos, err := e.Cluster(testConfig())
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, WriteCompressed(&buf, desc, protos))
	e.Dispose()

	_, got, err := ReadCompressed(&buf)
	require.NoError(t, err)
	assertSamePrototypes(t, protos, got)
}

func TestReadPrototypes_Errors(t *testing.T) {
	tests := map[string]string{
		"empty":            "",
		"bad header":       "dims 1\n",
		"bad kind":         "dimensions 1\nspiral essential 0 1\nprototypes 0\n",
		"empty range":      "dimensions 1\nlinear essential 1 1\nprototypes 0\n",
		"truncated":        "dimensions 1\nlinear essential 0 1\nprototypes 1\nsignificant spherical 4\n",
		"short mean":       "dimensions 2\nlinear essential 0 1\nlinear essential 0 1\nprototypes 1\nsignificant elliptical 4\nmean 0.5\nvariance 1 1\n",
		"bad style":        "dimensions 1\nlinear essential 0 1\nprototypes 1\nsignificant conical 4\nmean 0.5\nvariance 1\n",
		"bad distribution": "dimensions 1\nlinear essential 0 1\nprototypes 1\nsignificant mixed 4\nmean 0.5\ndistributions gamma\nvariance 1\n",
		"zero variance":    "dimensions 1\nlinear essential 0 1\nprototypes 1\nsignificant spherical 4\nmean 0.5\nvariance 0\n",
		"nan mean":         "dimensions 1\nlinear essential 0 1\nprototypes 1\nsignificant spherical 4\nmean NaN\nvariance 1\n",
	}
	for name, input := range tests {
		t.Run(name, func(t *testing.T) {
			_, _, err := ReadPrototypes(strings.NewReader(input))
			assert.Error(t, err)
		})
	}
}

func TestReadPrototypes_SkipsBlankLines(t *testing.T) {
	input := "dimensions 1\n\nlinear essential 0 1\nprototypes 1\n\nsignificant spherical 4\nmean 0.5\nvariance 0.25\n"
	dims, protos, err := ReadPrototypes(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, dims, 1)
	require.Len(t, protos, 1)
	assert.Equal(t, 0.5, protos[0].StandardDeviation(0))
}

func TestWritePrototypes_DimensionMismatch(t *testing.T) {
	dims, protos := codecFixture()
	var buf bytes.Buffer
	err := WritePrototypes(&buf, dims[:2], protos)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
