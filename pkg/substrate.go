// Package substrate is the public face of the SERAPH memory substrate.
// A Substrate bundles the process-wide singletons the lower layers
// would otherwise keep as globals — the capability descriptor table,
// the cluster keyring, the simulated aether fabric and its nodes, and
// the optional metadata store — behind one handle constructed with
// functional options.
//
// The hot paths (arena allocation, capability checks, cache hits) never
// log or touch metrics; only slow events (resets, rejected frames,
// coherence conflicts) reach the configured zap logger, and Prometheus
// sees counters exclusively through a pull collector.
//
// © 2025 seraph authors. MIT License.

package substrate

import (
	"context"

	"go.uber.org/zap"

	"github.com/seraphos/substrate/internal/aether"
	"github.com/seraphos/substrate/internal/arena"
	"github.com/seraphos/substrate/internal/capability"
	"github.com/seraphos/substrate/internal/shield"
)

// Substrate owns the shared state of one in-process cluster.
type Substrate struct {
	cfg *config

	ring   *shield.Keyring
	table  *capability.Table
	fabric *aether.Fabric
	nodes  map[uint16]*aether.Node
	arenas map[uint16]*arena.Arena
}

// New builds a substrate with nodeCount simulated nodes (ids 0..n-1),
// each with its own arena, guard and coherence engine, attached to one
// fabric.
func New(nodeCount int, opts ...Option) (*Substrate, error) {
	cfg, err := buildConfig(nodeCount, opts)
	if err != nil {
		return nil, err
	}

	s := &Substrate{
		cfg:    cfg,
		ring:   shield.NewKeyring(cfg.masterSecret),
		table:  capability.NewTable(cfg.tableCapacity),
		fabric: aether.NewFabric(),
		nodes:  make(map[uint16]*aether.Node, nodeCount),
		arenas: make(map[uint16]*arena.Arena, nodeCount),
	}
	if s.table == nil {
		return nil, errInvalidTable
	}

	for id := 0; id < nodeCount; id++ {
		node := uint16(id)
		if err := s.ring.Derive(node); err != nil {
			return nil, err
		}
		s.ring.Grant(node, shield.OpAll)
		if s.cfg.meta != nil {
			// Persisted identities win over freshly derived ones.
			if _, err := s.ring.Load(s.cfg.meta, node); err != nil {
				return nil, err
			}
		}
	}

	for id := 0; id < nodeCount; id++ {
		node := uint16(id)
		mem := arena.New(cfg.arenaCapacity, 0, 0, cfg.logger)
		if mem == nil {
			return nil, errInvalidArena
		}
		guard := shield.NewGuard(s.ring, cfg.rate, cfg.logger)
		n, err := aether.NewNode(node, mem, guard, s.fabric, cfg.cacheSlots, cfg.logger)
		if err != nil {
			return nil, err
		}
		s.fabric.Attach(n)
		s.nodes[node] = n
		s.arenas[node] = mem
	}

	cfg.logger.Info("substrate up",
		zap.Int("nodes", nodeCount),
		zap.Uint64("arena_capacity", cfg.arenaCapacity),
		zap.Int("cache_slots", cfg.cacheSlots))
	return s, nil
}

// Node returns the engine for a node id, nil if unknown.
func (s *Substrate) Node(id uint16) *aether.Node { return s.nodes[id] }

// Arena returns a node's arena, nil if unknown.
func (s *Substrate) Arena(id uint16) *arena.Arena { return s.arenas[id] }

// Table returns the capability descriptor table.
func (s *Substrate) Table() *capability.Table { return s.table }

// Keyring returns the cluster key material.
func (s *Substrate) Keyring() *shield.Keyring { return s.ring }

// Read performs a DSM read from the perspective of node `from`.
func (s *Substrate) Read(ctx context.Context, from uint16, addr uint64, buf []byte) aether.Status {
	n := s.nodes[from]
	if n == nil {
		return aether.StatusUnreachable
	}
	return n.Read(ctx, addr, buf)
}

// Write performs a DSM write from the perspective of node `from`.
func (s *Substrate) Write(ctx context.Context, from uint16, addr uint64, data []byte) aether.Status {
	n := s.nodes[from]
	if n == nil {
		return aether.StatusUnreachable
	}
	return n.Write(ctx, addr, data)
}

// SaveIdentities persists every node's key and permissions into the
// configured metadata store.
func (s *Substrate) SaveIdentities() error {
	if s.cfg.meta == nil {
		return errNoMetaStore
	}
	for id := range s.nodes {
		if err := s.ring.Save(s.cfg.meta, id); err != nil {
			return err
		}
	}
	return nil
}

// Stats returns per-node coherence counters keyed by node id.
func (s *Substrate) Stats() map[uint16]aether.Stats {
	out := make(map[uint16]aether.Stats, len(s.nodes))
	for id, n := range s.nodes {
		out[id] = n.Snapshot()
	}
	return out
}

// Close releases the arenas.  The metadata store belongs to the caller
// and stays open.
func (s *Substrate) Close() error {
	for _, a := range s.arenas {
		if err := a.Destroy(); err != nil {
			return err
		}
	}
	return nil
}
