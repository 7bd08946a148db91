package protoclust

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Sample is one labelled feature vector of a Job.
type Sample struct {
	Feature []float64
	CharID  int
}

// Job is an independent training set, typically all samples of one
// character class.
type Job struct {
	Name       string
	Dimensions []Dimension
	Samples    []Sample
}

// JobResult holds the prototypes computed for one Job. Engine is left open so
// that Prototype.Cluster references keep resolving; callers Dispose it when
// they are done.
type JobResult struct {
	Name       string
	Prototypes []*Prototype
	Engine     *Engine
}

// ClusterJobs clusters every job on its own engine, running at most
// cfg.Workers jobs at once. Results are returned in job order. The first
// failing job cancels the jobs that have not started yet, and engines of
// completed jobs are disposed before the error is returned.
func ClusterJobs(ctx context.Context, jobs []Job, cfg Config) ([]JobResult, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	results := make([]JobResult, len(jobs))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(cfg.Workers)

	for i, job := range jobs {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			res, err := runJob(job, cfg)
			if err != nil {
				return fmt.Errorf("protoclust: job %q: %w", job.Name, err)
			}
			results[i] = res
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}
	if err != nil {
		for _, r := range results {
			if r.Engine != nil {
				r.Engine.Dispose()
			}
		}
		return nil, err
	}
	return results, nil
}

func runJob(job Job, cfg Config) (JobResult, error) {
	e, err := New(len(job.Dimensions), job.Dimensions)
	if err != nil {
		return JobResult{}, err
	}
	for _, s := range job.Samples {
		if _, err := e.AddSample(s.Feature, s.CharID); err != nil {
			return JobResult{}, err
		}
	}
	cfg.Logger = cfg.Logger.With("job", job.Name)
	protos, err := e.Cluster(cfg)
	if err != nil {
		e.Dispose()
		return JobResult{}, err
	}
	return JobResult{Name: job.Name, Prototypes: protos, Engine: e}, nil
}
