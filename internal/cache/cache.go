// Package cache keeps built bitcode on disk, keyed by a digest of everything
// that determines the bytes: module name, target description, function
// specs and the bitcode format version.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/vmihailenco/msgpack/v5"
)

// Current schema version - increment when Entry format changes
const schemaVersion uint16 = 1

// Digest is a SHA-256 cache key.
type Digest [32]byte

func (d Digest) String() string {
	return hex.EncodeToString(d[:])
}

// IsZero reports whether d was never computed.
func (d Digest) IsZero() bool {
	return d == Digest{}
}

// FuncInput is the cache-relevant part of one sample function.
type FuncInput struct {
	Name     string
	Op       uint8
	Width    uint32
	Linkage  uint8
	CallConv uint8
	Args     [2]string
}

// Input lists everything that determines a build's output bytes.
type Input struct {
	FormatVersion uint32
	Module        string
	Triple        string
	DataLayout    string
	Funcs         []FuncInput
}

// Key hashes the msgpack encoding of in. Struct fields encode in declaration
// order, so equal inputs give equal keys.
func Key(in *Input) (Digest, error) {
	data, err := msgpack.Marshal(in)
	if err != nil {
		return Digest{}, fmt.Errorf("cache key: %w", err)
	}
	return Digest(sha256.Sum256(data)), nil
}

// Entry is one cached build artifact.
type Entry struct {
	// Schema version for safe invalidation when format changes
	Schema uint16

	Module  string
	Target  string
	Bitcode []byte
	// LLVM holds the textual export when it was requested for the build.
	LLVM string
	// Sum is sha256(Bitcode), checked on read.
	Sum Digest
	// Created is set by Put.
	Created time.Time
}

// Disk stores entries under dir/bc/<key>.mp.
// Thread-safe for concurrent access.
type Disk struct {
	mu  sync.RWMutex
	dir string
}

// Open prepares a cache rooted at dir. An empty dir yields a nil cache whose
// methods are no-ops.
func Open(dir string) (*Disk, error) {
	if dir == "" {
		return nil, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("cache: %w", err)
	}
	return &Disk{dir: dir}, nil
}

// Dir returns the cache root.
func (c *Disk) Dir() string {
	if c == nil {
		return ""
	}
	return c.dir
}

func (c *Disk) pathFor(key Digest) string {
	// Отдельный подкаталог "bc", чтобы проще чистить.
	return filepath.Join(c.dir, "bc", key.String()+".mp")
}

// Put serializes e under key, replacing any previous entry atomically.
func (c *Disk) Put(key Digest, e *Entry) (err error) {
	if c == nil || e == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	e.Schema = schemaVersion
	e.Sum = Digest(sha256.Sum256(e.Bitcode))
	e.Created = time.Now().UTC()
	p := c.pathFor(key)
	if err = os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.CreateTemp(filepath.Dir(p), "tmp-*")
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = f.Close()
			if rmErr := os.Remove(f.Name()); rmErr != nil && !errors.Is(rmErr, os.ErrNotExist) {
				err = errors.Join(err, rmErr)
			}
		}
	}()

	if err = msgpack.NewEncoder(f).Encode(e); err != nil {
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	// Атомарная замена
	if err = os.Rename(f.Name(), p); err != nil {
		return err
	}
	committed = true
	return nil
}

// Get loads the entry for key. A missing, stale-schema or corrupted entry is
// a miss, not an error.
func (c *Disk) Get(key Digest) (*Entry, bool, error) {
	if c == nil {
		return nil, false, nil
	}
	c.mu.RLock()
	defer c.mu.RUnlock()

	f, err := os.Open(c.pathFor(key))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	defer f.Close()

	var e Entry
	if err := msgpack.NewDecoder(f).Decode(&e); err != nil {
		return nil, false, nil
	}
	if e.Schema != schemaVersion || Digest(sha256.Sum256(e.Bitcode)) != e.Sum {
		return nil, false, nil
	}
	return &e, true, nil
}

// DropAll removes every entry.
func (c *Disk) DropAll() error {
	if c == nil {
		return nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	// переименуем каталог и удалим
	bc := filepath.Join(c.dir, "bc")
	old := bc + ".old-" + time.Now().Format("20060102150405")
	if err := os.Rename(bc, old); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}
	return os.RemoveAll(old)
}
