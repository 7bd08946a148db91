package protoclust

import (
	"fmt"
	"log/slog"
	"math"
	"runtime"
	"time"
)

// Config controls prototype generation.
// Start with [DefaultConfig] and override the fields you need.
type Config struct {
	// Style is the prototype shape to fit. Default: Elliptical.
	Style Style

	// MinSamples is the minimum number of samples a cluster needs before it is
	// analyzed statistically, as a fraction of the number of characters in
	// the training set. Smaller clusters become insignificant prototypes.
	// Must be in [0, 1]. Default: 0.625.
	MinSamples float64

	// MaxIllegal is the largest fraction of characters allowed to contribute
	// more than one sample to a cluster before it must be split.
	// Must be in [0, 1]. Default: 0.05.
	MaxIllegal float64

	// Independence is the largest correlation coefficient between two
	// essential dimensions that still counts as independent.
	// Must be in [0, 1]. Default: 1.0.
	Independence float64

	// Confidence is the probability of a Type I error (alpha) used by the
	// chi-squared goodness-of-fit tests. Must be in (0, 1]. Default: 1e-6.
	Confidence float64

	// Workers bounds how many independent jobs ClusterJobs runs at once.
	// 0 means runtime.NumCPU(). Clustering a single engine is sequential.
	Workers int

	// Logger receives debug records about tree construction and prototype
	// decisions. nil discards them.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with the trainer's usual settings.
func DefaultConfig() Config {
	return Config{
		Style:        Elliptical,
		MinSamples:   0.625,
		MaxIllegal:   0.05,
		Independence: 1.0,
		Confidence:   1e-6,
	}
}

// validateConfig checks that cfg fields are valid and returns a descriptive error if not.
func validateConfig(cfg *Config) error {
	switch cfg.Style {
	case Spherical, Elliptical, Mixed, Automatic:
		// valid
	default:
		return &ConfigError{Field: "Style", Reason: fmt.Sprintf("is unknown: %d", int(cfg.Style))}
	}
	if !inUnitInterval(cfg.MinSamples) {
		return &ConfigError{Field: "MinSamples", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.MinSamples)}
	}
	if !inUnitInterval(cfg.MaxIllegal) {
		return &ConfigError{Field: "MaxIllegal", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.MaxIllegal)}
	}
	if !inUnitInterval(cfg.Independence) {
		return &ConfigError{Field: "Independence", Reason: fmt.Sprintf("must be in [0, 1], got %v", cfg.Independence)}
	}
	if !(cfg.Confidence > 0 && cfg.Confidence <= 1) {
		return &ConfigError{Field: "Confidence", Reason: fmt.Sprintf("must be in (0, 1], got %v", cfg.Confidence)}
	}
	if cfg.Workers < 0 {
		return &ConfigError{Field: "Workers", Reason: fmt.Sprintf("must be >= 0, got %d", cfg.Workers)}
	}
	return nil
}

func inUnitInterval(v float64) bool { return v >= 0 && v <= 1 }

// applyDefaults fills in zero-valued config fields with their defaults.
func applyDefaults(cfg *Config) {
	if cfg.Workers == 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Logger == nil {
		cfg.Logger = NoopLogger()
	}
}

// Engine clusters one training set into prototypes. Samples are added first;
// the first call to Cluster builds the cluster tree, after which no more
// samples can be added. An Engine is not safe for concurrent use; independent
// engines share nothing and can run in parallel.
type Engine struct {
	desc    []Dimension
	tree    *clusterTree
	index   SpatialIndex
	cache   *statCache
	numChar int

	// clustered is set once tree construction has started.
	clustered bool
}

// New creates an engine for dims-dimensional samples described by desc.
func New(dims int, desc []Dimension) (*Engine, error) {
	if dims < 1 {
		return nil, fmt.Errorf("protoclust: dims must be >= 1, got %d", dims)
	}
	if len(desc) != dims {
		return nil, fmt.Errorf("%w: %d descriptors for %d dimensions", ErrDimensionMismatch, len(desc), dims)
	}
	if err := validateDimensions(desc); err != nil {
		return nil, err
	}
	d := make([]Dimension, dims)
	copy(d, desc)
	return &Engine{
		desc:  d,
		tree:  newClusterTree(64),
		index: NewKDTree(d),
		cache: newStatCache(),
	}, nil
}

// Dimensions returns the engine's dimension descriptors.
func (e *Engine) Dimensions() []Dimension { return e.desc }

// NumSamples returns the number of samples added so far.
func (e *Engine) NumSamples() int {
	if e.tree == nil || e.tree.disposed {
		return 0
	}
	if e.clustered {
		return e.tree.nodes[e.tree.root].count
	}
	return len(e.tree.nodes)
}

// NumChar returns one more than the largest character id seen.
func (e *Engine) NumChar() int { return e.numChar }

// AddSample adds a feature vector from character charID and returns its
// sample id. Values on circular dimensions are folded into [Min, Max]; values
// outside a linear dimension's range are rejected. It fails once clustering
// has started.
func (e *Engine) AddSample(feature []float64, charID int) (int, error) {
	if e.tree == nil || e.tree.disposed {
		return -1, ErrDisposed
	}
	if e.clustered {
		return -1, ErrAlreadyClustered
	}
	if len(feature) != len(e.desc) {
		return -1, fmt.Errorf("%w: feature has %d values, engine has %d dimensions", ErrDimensionMismatch, len(feature), len(e.desc))
	}
	if charID < 0 {
		return -1, fmt.Errorf("%w: got %d", ErrInvalidCharID, charID)
	}
	mean := make([]float64, len(feature))
	for i, v := range feature {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return -1, fmt.Errorf("protoclust: feature value %d is not finite: %v", i, v)
		}
		d := e.desc[i]
		var ok bool
		if mean[i], ok = d.normalize(v); !ok {
			return -1, fmt.Errorf("%w: value %d is %v, dimension is [%v, %v]", ErrOutOfRange, i, v, d.Min, d.Max)
		}
	}
	id := e.tree.addSample(mean, charID)
	e.index.Insert(mean, id)
	if charID >= e.numChar {
		e.numChar = charID + 1
	}
	return id, nil
}

// Sample returns a snapshot of sample id.
func (e *Engine) Sample(id int) (Cluster, bool) {
	if e.tree == nil || id < 0 || id >= len(e.tree.nodes) || !e.tree.nodes[id].isLeaf() {
		return Cluster{}, false
	}
	return ClusterRef{tree: e.tree, id: id}.Resolve()
}

// Root returns the root of the cluster tree once it has been built.
func (e *Engine) Root() (ClusterRef, bool) {
	if e.tree == nil || e.tree.disposed || e.tree.root < 0 {
		return ClusterRef{}, false
	}
	return ClusterRef{tree: e.tree, id: e.tree.root}, true
}

// Cluster builds the cluster tree on first use and computes prototypes for
// it according to cfg. Calling it again reuses the tree and recomputes the
// prototypes with the new configuration.
func (e *Engine) Cluster(cfg Config) ([]*Prototype, error) {
	applyDefaults(&cfg)
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	if e.tree == nil || e.tree.disposed {
		return nil, ErrDisposed
	}

	if !e.clustered {
		if len(e.tree.nodes) == 0 {
			return nil, ErrEmpty
		}
		e.clustered = true
		start := time.Now()
		e.tree.root = buildClusterTree(e.tree, e.index, e.desc, cfg.Logger)
		e.index = nil
		cfg.Logger.Debug("clustering samples", "samples", e.tree.nodes[e.tree.root].count, "elapsed", time.Since(start))
	} else {
		e.tree.clearPrototypes()
	}

	s := &synthesizer{
		desc:    e.desc,
		tree:    e.tree,
		cache:   e.cache,
		cfg:     cfg,
		numChar: e.numChar,
	}
	protos, err := s.run()
	if err != nil {
		return nil, err
	}

	cfg.Logger.Info("computed prototypes",
		"style", cfg.Style.String(),
		"prototypes", len(protos),
		"samples", e.tree.nodes[e.tree.root].count,
		"splits", s.splits,
	)
	return protos, nil
}

// Dispose releases the spatial index, the cluster tree and the caches. Every
// ClusterRef handed out by the engine stops resolving. Prototypes themselves
// remain usable.
func (e *Engine) Dispose() {
	if e.tree != nil {
		e.tree.dispose()
	}
	e.index = nil
	if e.cache != nil {
		e.cache.reset()
	}
}
