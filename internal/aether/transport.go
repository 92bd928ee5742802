// transport.go carries encoded frames between nodes.  The production
// shape is a request/response round trip plus a fire-and-forget post
// for invalidations; the simulated fabric implements both by direct
// function call into the destination node, so the whole protocol —
// including every security and replay check — runs in-process.
//
// © 2025 seraph authors. MIT License.

package aether

import (
	"context"
	"sync"

	"github.com/pkg/errors"
)

// ErrUnreachable reports a destination with no attached node.
var ErrUnreachable = errors.New("aether: destination unreachable")

// Transport moves raw frames.
type Transport interface {
	// RoundTrip delivers a request and returns the destination's
	// response frame; it honours ctx cancellation and deadline.
	RoundTrip(ctx context.Context, dst uint16, raw []byte) ([]byte, error)

	// Post delivers a frame without awaiting any reply.
	Post(dst uint16, raw []byte)
}

// Fabric is the in-process simulated transport: a registry of nodes
// fetched by direct call.
type Fabric struct {
	mu    sync.RWMutex
	nodes map[uint16]*Node
}

// NewFabric returns an empty fabric.
func NewFabric() *Fabric {
	return &Fabric{nodes: make(map[uint16]*Node)}
}

// Attach registers a node; it replaces any previous holder of the id.
func (f *Fabric) Attach(n *Node) {
	f.mu.Lock()
	f.nodes[n.ID()] = n
	f.mu.Unlock()
}

func (f *Fabric) node(dst uint16) *Node {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.nodes[dst]
}

// RoundTrip dispatches into the destination's frame handler.
func (f *Fabric) RoundTrip(ctx context.Context, dst uint16, raw []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	n := f.node(dst)
	if n == nil {
		return nil, ErrUnreachable
	}
	resp := n.HandleFrame(raw)
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return resp, nil
}

// Post dispatches and discards the response.
func (f *Fabric) Post(dst uint16, raw []byte) {
	n := f.node(dst)
	if n == nil {
		return
	}
	n.HandleFrame(raw)
}
