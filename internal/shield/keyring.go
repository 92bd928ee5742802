// keyring.go holds the per-node security material: a 32-byte HMAC key,
// the permission mask of operations the node may perform, and the
// authenticated flag that flips when a key is installed.  Keys are
// derived from a cluster master secret with HKDF over the in-tree
// digest, and can be persisted through the arena metadata store so a
// node keeps its identity across restarts.
//
// © 2025 seraph authors. MIT License.

package shield

import (
	"encoding/binary"
	"fmt"
	"hash"
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/crypto/hkdf"

	"github.com/seraphos/substrate/internal/arena"
)

// Op is the DSM operation permission mask.
type Op uint8

const (
	OpRead       Op = 1 << 0
	OpWrite      Op = 1 << 1
	OpInvalidate Op = 1 << 2
	OpRevoke     Op = 1 << 3
	OpGenQuery   Op = 1 << 4

	// OpAll grants every operation.
	OpAll = OpRead | OpWrite | OpInvalidate | OpRevoke | OpGenQuery
)

// KeySize is the per-node HMAC key length.
const KeySize = 32

// PermissionEntry is the stored state for one source node.
type PermissionEntry struct {
	NodeID        uint16
	Permissions   Op
	Authenticated bool
	Key           [KeySize]byte
}

// Keyring maps node ids to their permission entries.
type Keyring struct {
	mu      sync.RWMutex
	entries map[uint16]*PermissionEntry
	master  []byte
}

// NewKeyring returns an empty ring.  The master secret seeds HKDF key
// derivation; nil disables Derive.
func NewKeyring(master []byte) *Keyring {
	return &Keyring{
		entries: make(map[uint16]*PermissionEntry),
		master:  append([]byte(nil), master...),
	}
}

func (k *Keyring) entry(node uint16) *PermissionEntry {
	e, ok := k.entries[node]
	if !ok {
		e = &PermissionEntry{NodeID: node}
		k.entries[node] = e
	}
	return e
}

// Derive installs an HKDF-derived key for node and marks it
// authenticated.
func (k *Keyring) Derive(node uint16) error {
	if len(k.master) == 0 {
		return errors.New("keyring: no master secret")
	}
	var info [11]byte
	copy(info[:], "dsm/node/")
	binary.LittleEndian.PutUint16(info[9:], node)
	r := hkdf.New(func() hash.Hash { return NewDigest() }, k.master, nil, info[:])

	var key [KeySize]byte
	if _, err := io.ReadFull(r, key[:]); err != nil {
		return errors.Wrap(err, "keyring: derive")
	}

	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.entry(node)
	e.Key = key
	e.Authenticated = true
	return nil
}

// SetKey installs an explicit key for node.
func (k *Keyring) SetKey(node uint16, key [KeySize]byte) {
	k.mu.Lock()
	defer k.mu.Unlock()
	e := k.entry(node)
	e.Key = key
	e.Authenticated = true
}

// KeyFor returns the node's key; ok is false for unauthenticated nodes.
func (k *Keyring) KeyFor(node uint16) ([KeySize]byte, bool) {
	k.mu.RLock()
	defer k.mu.RUnlock()
	if e, ok := k.entries[node]; ok && e.Authenticated {
		return e.Key, true
	}
	return [KeySize]byte{}, false
}

// Grant sets the permission mask for node.
func (k *Keyring) Grant(node uint16, perms Op) {
	k.mu.Lock()
	defer k.mu.Unlock()
	k.entry(node).Permissions = perms
}

// Allowed reports whether node may perform every bit of op.
func (k *Keyring) Allowed(node uint16, op Op) bool {
	if op == 0 {
		return true
	}
	k.mu.RLock()
	defer k.mu.RUnlock()
	e, ok := k.entries[node]
	return ok && e.Permissions&op == op
}

/* -------------------------------------------------------------------------
   Persistence through the metadata store
   ------------------------------------------------------------------------- */

func nodeKeyRecord(node uint16) string  { return fmt.Sprintf("shield/key/%d", node) }
func nodePermRecord(node uint16) string { return fmt.Sprintf("shield/perm/%d", node) }

// Save writes a node's key and permissions into the store.
func (k *Keyring) Save(ms *arena.MetaStore, node uint16) error {
	k.mu.RLock()
	e, ok := k.entries[node]
	if !ok {
		k.mu.RUnlock()
		return errors.Errorf("keyring: node %d unknown", node)
	}
	key := e.Key
	perms := e.Permissions
	k.mu.RUnlock()

	if err := ms.SetRaw(nodeKeyRecord(node), key[:]); err != nil {
		return err
	}
	return ms.SetRaw(nodePermRecord(node), []byte{byte(perms)})
}

// Load restores a node's key and permissions from the store; a missing
// record leaves the ring unchanged and reports found == false.
func (k *Keyring) Load(ms *arena.MetaStore, node uint16) (bool, error) {
	raw, found, err := ms.GetRaw(nodeKeyRecord(node))
	if err != nil || !found {
		return false, err
	}
	if len(raw) != KeySize {
		return false, errors.Errorf("keyring: bad stored key size %d", len(raw))
	}
	var key [KeySize]byte
	copy(key[:], raw)
	k.SetKey(node, key)

	if praw, pfound, perr := ms.GetRaw(nodePermRecord(node)); perr == nil && pfound && len(praw) == 1 {
		k.Grant(node, Op(praw[0]))
	}
	return true, nil
}
