// metastore.go persists the arena metadata the raw pool file cannot
// carry: the bump offset, the generation epoch and the allocation count,
// keyed by backing-file path.  The store is a badger database so several
// arenas (and the DSM keyring, which shares the store) can live in one
// directory with crash-safe updates.
//
// © 2025 seraph authors. MIT License.

package arena

import (
	"encoding/binary"

	badger "github.com/dgraph-io/badger/v4"
	"github.com/pkg/errors"

	"github.com/seraphos/substrate/internal/absent"
)

// Meta is the persisted per-arena record.
type Meta struct {
	Used       uint64
	Generation uint32
	AllocCount uint64
}

// MetaStore wraps a badger database holding arena metadata and other
// small substrate records.
type MetaStore struct {
	db *badger.DB
}

const (
	metaPrefix = "arena/meta/"
	metaLen    = 8 + 4 + 8
)

// OpenMetaStore opens (or creates) the store at dir.
func OpenMetaStore(dir string) (*MetaStore, error) {
	opts := badger.DefaultOptions(dir).WithLogger(nil)
	db, err := badger.Open(opts)
	if err != nil {
		return nil, errors.Wrap(err, "metastore: open")
	}
	return &MetaStore{db: db}, nil
}

// Close releases the database.
func (m *MetaStore) Close() error {
	if m == nil || m.db == nil {
		return nil
	}
	return errors.Wrap(m.db.Close(), "metastore: close")
}

// SaveArena records the arena's current metadata under its backing-file
// path.  Anonymous arenas have no path and are rejected.
func (m *MetaStore) SaveArena(a *Arena) error {
	if m == nil || m.db == nil {
		return errors.New("metastore: nil store")
	}
	if a == nil || a.Path() == "" {
		return errors.New("metastore: arena has no backing path")
	}
	a.mu.Lock()
	meta := Meta{Used: a.used, Generation: a.generation, AllocCount: a.allocCount}
	path := a.backing.path
	a.mu.Unlock()

	var buf [metaLen]byte
	binary.LittleEndian.PutUint64(buf[0:8], meta.Used)
	binary.LittleEndian.PutUint32(buf[8:12], meta.Generation)
	binary.LittleEndian.PutUint64(buf[12:20], meta.AllocCount)

	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(metaPrefix+path), buf[:])
	})
	return errors.Wrap(err, "metastore: save arena")
}

// LoadArena fetches the metadata stored for path.  A missing record
// returns found == false without error.
func (m *MetaStore) LoadArena(path string) (Meta, bool, error) {
	var meta Meta
	if m == nil || m.db == nil {
		return meta, false, errors.New("metastore: nil store")
	}
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(metaPrefix + path))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			if len(val) != metaLen {
				return errors.Errorf("metastore: bad record size %d", len(val))
			}
			meta.Used = binary.LittleEndian.Uint64(val[0:8])
			meta.Generation = binary.LittleEndian.Uint32(val[8:12])
			meta.AllocCount = binary.LittleEndian.Uint64(val[12:20])
			found = true
			return nil
		})
	})
	return meta, found, errors.Wrap(err, "metastore: load arena")
}

// Restore applies previously saved metadata to a freshly reopened
// file-backed arena, recovering the bump offset and epoch.
func (a *Arena) Restore(meta Meta) error {
	if a == nil {
		return errors.New("arena: nil arena")
	}
	if meta.Used > a.capacity {
		return errors.Errorf("arena: restored offset %d exceeds capacity %d", meta.Used, a.capacity)
	}
	if meta.Generation == 0 || absent.IsU32(meta.Generation) {
		return errors.New("arena: restored generation must be a live epoch")
	}
	a.mu.Lock()
	a.used = meta.Used
	a.generation = meta.Generation
	a.allocCount = meta.AllocCount
	a.mu.Unlock()
	return nil
}

// SetRaw stores an arbitrary small record; the DSM keyring uses this to
// keep per-node keys next to the arena metadata.
func (m *MetaStore) SetRaw(key string, val []byte) error {
	if m == nil || m.db == nil {
		return errors.New("metastore: nil store")
	}
	err := m.db.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), val)
	})
	return errors.Wrap(err, "metastore: set")
}

// GetRaw fetches a record stored with SetRaw.
func (m *MetaStore) GetRaw(key string) ([]byte, bool, error) {
	if m == nil || m.db == nil {
		return nil, false, errors.New("metastore: nil store")
	}
	var out []byte
	found := false
	err := m.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err == badger.ErrKeyNotFound {
			return nil
		}
		if err != nil {
			return err
		}
		out, err = item.ValueCopy(nil)
		found = err == nil
		return err
	})
	return out, found, errors.Wrap(err, "metastore: get")
}
