package protoclust

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func blobJob(name string, center float64) Job {
	var samples []Sample
	for i, f := range tightBlob(100, []float64{center, center, center, center}, 0.01) {
		samples = append(samples, Sample{Feature: f, CharID: i})
	}
	return Job{Name: name, Dimensions: unitDims(4), Samples: samples}
}

func TestClusterJobs(t *testing.T) {
	jobs := []Job{blobJob("a", 0.2), blobJob("b", 0.5), blobJob("c", 0.8), blobJob("d", 0.4)}
	cfg := testConfig()
	cfg.Workers = 2

	results, err := ClusterJobs(context.Background(), jobs, cfg)
	require.NoError(t, err)
	require.Len(t, results, len(jobs))

	for i, r := range results {
		assert.Equal(t, jobs[i].Name, r.Name)
		require.Len(t, r.Prototypes, 1)
		assert.InDelta(t, []float64{0.2, 0.5, 0.8, 0.4}[i], r.Prototypes[0].Mean[0], 1e-9)
		require.NotNil(t, r.Engine)
		_, ok := r.Prototypes[0].Cluster.Resolve()
		assert.True(t, ok)
		r.Engine.Dispose()
	}
}

func TestClusterJobs_FirstErrorWins(t *testing.T) {
	bad := blobJob("bad", 0.5)
	bad.Samples[3].Feature = []float64{0.5}
	jobs := []Job{blobJob("ok", 0.3), bad}

	results, err := ClusterJobs(context.Background(), jobs, testConfig())
	require.Error(t, err)
	assert.Nil(t, results)
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
	assert.Contains(t, err.Error(), `"bad"`)
}

func TestClusterJobs_EmptyJob(t *testing.T) {
	_, err := ClusterJobs(context.Background(), []Job{{Name: "empty", Dimensions: unitDims(1)}}, testConfig())
	assert.ErrorIs(t, err, ErrEmpty)
}

func TestClusterJobs_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := ClusterJobs(ctx, []Job{blobJob("a", 0.5)}, testConfig())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestClusterJobs_InvalidConfig(t *testing.T) {
	cfg := testConfig()
	cfg.Confidence = 2
	_, err := ClusterJobs(context.Background(), nil, cfg)
	var ce *ConfigError
	assert.True(t, errors.As(err, &ce))
}
