/*
	Package storage persists volume snapshots through pluggable key-value engines.

	Engines register themselves at init time, so a binary selects the engines it supports by
	importing them:

		import _ "github.com/lwansbrough/craft2/storage/badger"

	Values are opaque []byte at this level.  Serialization and compression happen above the
	store in Snapshot and Snapshots.
*/
package storage

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/blang/semver"
)

// ErrNotFound is returned by Store.Get and Store.Delete when a key is absent.
var ErrNotFound = errors.New("key not found")

// Store is a key-value store for serialized data.
type Store interface {
	fmt.Stringer

	// Put writes a value with the given key, replacing any previous value.
	Put(ctx context.Context, key string, value []byte) error

	// Get returns the value for a key or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete removes a key or returns ErrNotFound.
	Delete(ctx context.Context, key string) error

	// Names returns the sorted keys that start with prefix.
	Names(ctx context.Context, prefix string) ([]string, error)

	// Close releases the store.
	Close() error
}

// StoreConfig is the [store] section of the server configuration.  Path is interpreted by
// the engine: a directory for badger, a bucket URL for blob.
type StoreConfig struct {
	Engine   string
	Path     string
	Prefix   string
	InMemory bool `toml:"in_memory"`
}

// Engine opens stores of one kind.
type Engine interface {
	fmt.Stringer
	GetName() string
	GetDescription() string
	GetSemVer() semver.Version

	// NewStore opens a store, returning true if it was newly created.
	NewStore(StoreConfig) (Store, bool, error)
}

var (
	enginesMu sync.RWMutex
	engines   = make(map[string]Engine)
)

// RegisterEngine makes an engine available to Open.  It is meant to be called from an
// engine package's init.
func RegisterEngine(e Engine) {
	enginesMu.Lock()
	engines[e.GetName()] = e
	enginesMu.Unlock()
}

// GetEngine returns the registered engine with the given name.
func GetEngine(name string) (Engine, bool) {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	e, found := engines[name]
	return e, found
}

// EnginesAvailable returns a description of the registered engines.
func EnginesAvailable() string {
	enginesMu.RLock()
	defer enginesMu.RUnlock()
	var names []string
	for _, e := range engines {
		names = append(names, e.String())
	}
	sort.Strings(names)
	return strings.Join(names, "; ")
}

// Open opens a store with the engine named in the config.
func Open(c StoreConfig) (Store, bool, error) {
	e, found := GetEngine(c.Engine)
	if !found {
		return nil, false, fmt.Errorf("storage engine %q is not available (have: %s)", c.Engine, EnginesAvailable())
	}
	return e.NewStore(c)
}

var validName = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9._-]{0,63}$`)

// ValidName returns an error if name cannot be used as a volume name.
func ValidName(name string) error {
	if !validName.MatchString(name) {
		return fmt.Errorf("bad volume name %q: use up to 64 letters, digits, '.', '_' or '-'", name)
	}
	return nil
}
