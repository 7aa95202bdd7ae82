package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/blang/semver"
	"github.com/dgraph-io/badger/v3"

	"github.com/lwansbrough/craft2/craft"
	"github.com/lwansbrough/craft2/storage"
)

const (
	// DefaultSyncWrites is true if all writes are synced to disk, thereby making db resilient
	// at cost of speed.
	DefaultSyncWrites = false

	// syncInterval is how often buffered writes are flushed when SyncWrites is off.
	syncInterval = 30 * time.Second
)

func init() {
	ver, err := semver.Make("0.2.0")
	if err != nil {
		craft.Errorf("Unable to make semver in badger: %v\n", err)
	}
	storage.RegisterEngine(Engine{"badger", "BadgerDB", ver})
}

// --- Engine Implementation ------

type Engine struct {
	name   string
	desc   string
	semver semver.Version
}

func (e Engine) GetName() string {
	return e.name
}

func (e Engine) GetDescription() string {
	return e.desc
}

func (e Engine) GetSemVer() semver.Version {
	return e.semver
}

func (e Engine) String() string {
	return fmt.Sprintf("%s [%s]", e.name, e.semver)
}

// NewStore returns a badger store.  The config needs a Path unless InMemory is set.
func (e Engine) NewStore(config storage.StoreConfig) (storage.Store, bool, error) {
	return newDB(config)
}

// logger routes badger's own messages into the craft log.
type logger struct{}

func (logger) Errorf(format string, args ...interface{})   { craft.Errorf("badger: "+format, args...) }
func (logger) Warningf(format string, args ...interface{}) { craft.Warningf("badger: "+format, args...) }
func (logger) Infof(format string, args ...interface{})    { craft.Debugf("badger: "+format, args...) }
func (logger) Debugf(format string, args ...interface{})   {}

func getOptions(config storage.StoreConfig) (badger.Options, error) {
	if config.InMemory {
		return badger.DefaultOptions("").WithInMemory(true).WithLogger(logger{}), nil
	}
	if config.Path == "" {
		return badger.Options{}, fmt.Errorf("%q must be specified for BadgerDB configuration", "path")
	}
	opts := badger.DefaultOptions(config.Path).
		WithNumVersionsToKeep(1).
		WithSyncWrites(DefaultSyncWrites).
		WithLogger(logger{})
	return opts, nil
}

// newDB returns a Badger backend, creating one at path if it doesn't exist.
func newDB(config storage.StoreConfig) (*DB, bool, error) {
	opts, err := getOptions(config)
	if err != nil {
		return nil, false, err
	}

	var created bool
	if !config.InMemory {
		if _, err := os.Stat(config.Path); os.IsNotExist(err) {
			craft.Infof("Database not already at path (%s). Creating directory...\n", config.Path)
			created = true
			if err := os.MkdirAll(config.Path, 0755); err != nil {
				return nil, true, fmt.Errorf("can't make directory at %s: %v", config.Path, err)
			}
		}
	} else {
		created = true
	}

	bdp, err := badger.Open(opts)
	if err != nil {
		return nil, created, err
	}
	db := &DB{
		directory: config.Path,
		inMemory:  config.InMemory,
		bdp:       bdp,
		stopSync:  make(chan struct{}),
		synced:    make(chan struct{}),
	}
	if config.InMemory {
		close(db.synced)
	} else {
		go db.syncPeriodically()
	}
	craft.Infof("Opened %s\n", db)
	return db, created, nil
}

// DB is a storage.Store backed by BadgerDB.
type DB struct {
	directory string
	inMemory  bool
	bdp       *badger.DB

	stopSync chan struct{}
	synced   chan struct{}
}

func (db *DB) String() string {
	if db.inMemory {
		return "badger (in-memory)"
	}
	return fmt.Sprintf("badger @ %s", db.directory)
}

// syncPeriodically flushes buffered writes so a crash loses at most one interval.
func (db *DB) syncPeriodically() {
	defer close(db.synced)
	ticker := time.NewTicker(syncInterval)
	defer ticker.Stop()
	for {
		select {
		case <-db.stopSync:
			return
		case <-ticker.C:
			if err := db.bdp.Sync(); err != nil {
				craft.Errorf("Unable to sync %s: %v\n", db, err)
			}
		}
	}
}

func (db *DB) Put(ctx context.Context, key string, value []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		return txn.Set([]byte(key), value)
	})
}

func (db *DB) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var value []byte
	err := db.bdp.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(key))
		if err != nil {
			return err
		}
		value, err = item.ValueCopy(nil)
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %q in %s", storage.ErrNotFound, key, db)
	}
	return value, err
}

func (db *DB) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bdp.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(key)); err != nil {
			if errors.Is(err, badger.ErrKeyNotFound) {
				return fmt.Errorf("%w: %q in %s", storage.ErrNotFound, key, db)
			}
			return err
		}
		return txn.Delete([]byte(key))
	})
}

func (db *DB) Names(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	err := db.bdp.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false // key only
		opts.Prefix = []byte(prefix)
		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			names = append(names, string(it.Item().KeyCopy(nil)))
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close stops the sync goroutine and closes the database.
func (db *DB) Close() error {
	if db == nil || db.bdp == nil {
		return nil
	}
	if !db.inMemory {
		close(db.stopSync)
	}
	<-db.synced
	err := db.bdp.Close()
	db.bdp = nil
	craft.Infof("Closed %s\n", db)
	return err
}
