// options.go defines the internal configuration object and the
// functional options accepted by New.  All fields are immutable once
// the Substrate is constructed; there is no live mutation from user
// land.
//
// © 2025 seraph authors. MIT License.

package substrate

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/seraphos/substrate/internal/aether"
	"github.com/seraphos/substrate/internal/arena"
	"github.com/seraphos/substrate/internal/shield"
)

// Option adjusts substrate construction.
type Option func(*config)

type config struct {
	nodeCount     int
	arenaCapacity uint64
	cacheSlots    int
	tableCapacity uint32
	masterSecret  []byte
	rate          shield.RateConfig

	logger   *zap.Logger
	registry *prometheus.Registry
	meta     *arena.MetaStore
}

const (
	defaultArenaCapacity = 16 << 20
	defaultTableCapacity = 4096
)

func buildConfig(nodeCount int, opts []Option) (*config, error) {
	cfg := &config{
		nodeCount:     nodeCount,
		arenaCapacity: defaultArenaCapacity,
		cacheSlots:    aether.DefaultCacheSlots,
		tableCapacity: defaultTableCapacity,
		masterSecret:  []byte("seraph-default-cluster-secret"),
		rate:          shield.DefaultRateConfig,
		logger:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(cfg)
	}

	if nodeCount <= 0 || nodeCount > 1<<14 {
		return nil, errInvalidNodeCount
	}
	if cfg.arenaCapacity < uint64(cfg.cacheSlots)*aether.PageSize {
		return nil, errInvalidArena
	}
	if cfg.cacheSlots <= 0 {
		return nil, errInvalidCache
	}
	return cfg, nil
}

// WithLogger plugs an external zap.Logger.  The substrate never logs on
// the hot path.
func WithLogger(l *zap.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMetrics registers the substrate collector with reg.  Passing nil
// disables metrics (default).  Call Register after New:
//
//	s, _ := substrate.New(4, substrate.WithMetrics(reg))
func WithMetrics(reg *prometheus.Registry) Option {
	return func(c *config) { c.registry = reg }
}

// WithMasterSecret seeds per-node key derivation.
func WithMasterSecret(secret []byte) Option {
	return func(c *config) {
		if len(secret) > 0 {
			c.masterSecret = append([]byte(nil), secret...)
		}
	}
}

// WithRateLimit overrides the per-source token bucket shape.
func WithRateLimit(rate shield.RateConfig) Option {
	return func(c *config) { c.rate = rate }
}

// WithCacheSlots sizes each node's page cache.
func WithCacheSlots(slots int) Option {
	return func(c *config) { c.cacheSlots = slots }
}

// WithArenaCapacity sizes each node's arena pool.
func WithArenaCapacity(capacity uint64) Option {
	return func(c *config) { c.arenaCapacity = capacity }
}

// WithTableCapacity sizes the capability descriptor table.
func WithTableCapacity(capacity uint32) Option {
	return func(c *config) { c.tableCapacity = capacity }
}

// WithMetaStore attaches a metadata store for node identities; the
// substrate's own arenas are not persisted through it.  The store remains
// owned by the caller.
func WithMetaStore(ms *arena.MetaStore) Option {
	return func(c *config) { c.meta = ms }
}

var (
	errInvalidNodeCount = errors.New("substrate: node count must be in 1..16384")
	errInvalidArena     = errors.New("substrate: arena capacity too small for the page cache")
	errInvalidCache     = errors.New("substrate: cache slots must be positive")
	errInvalidTable     = errors.New("substrate: descriptor table capacity invalid")
	errNoMetaStore      = errors.New("substrate: no metadata store configured")
)
