// Package badger provides a BadgerDB-backed durable tier. It is the default
// store: embedded, crash safe and needs no external service.
package badger

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	badgerdb "github.com/dgraph-io/badger/v4"

	"github.com/marmos91/imgloader/internal/logger"
	"github.com/marmos91/imgloader/pkg/store"
)

var entryPrefix = []byte("img:")

// Config holds configuration for the badger store.
type Config struct {
	// Path is the database directory. Created if missing.
	Path string

	// TTL expires entries after the given duration. Zero keeps them forever.
	TTL time.Duration

	// GCInterval controls how often value log garbage collection runs.
	// Zero disables the background collector.
	GCInterval time.Duration

	// SyncWrites fsyncs every write. Off by default: losing the most recent
	// entries on a crash only costs a refetch.
	SyncWrites bool
}

// Store is a BadgerDB implementation of store.Store.
type Store struct {
	db  *badgerdb.DB
	ttl time.Duration

	mu     sync.RWMutex
	closed bool

	stopGC chan struct{}
	gcDone chan struct{}
}

// New opens (or creates) the badger database at cfg.Path.
func New(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, errors.New("badger store: path is required")
	}
	if err := os.MkdirAll(cfg.Path, 0o755); err != nil {
		return nil, fmt.Errorf("badger store: create %s: %w", cfg.Path, err)
	}

	opts := badgerdb.DefaultOptions(cfg.Path).
		WithLogger(nil).
		WithSyncWrites(cfg.SyncWrites)

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badger store: open %s: %w", cfg.Path, err)
	}

	s := &Store{db: db, ttl: cfg.TTL}
	if cfg.GCInterval > 0 {
		s.stopGC = make(chan struct{})
		s.gcDone = make(chan struct{})
		go s.runGC(cfg.GCInterval)
	}
	return s, nil
}

func keyFor(url string) []byte {
	k := make([]byte, 0, len(entryPrefix)+len(url))
	k = append(k, entryPrefix...)
	return append(k, url...)
}

func (s *Store) checkOpen(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if s.closed {
		return store.ErrStoreClosed
	}
	return nil
}

// Get returns the entry stored under key.
func (s *Store) Get(ctx context.Context, key string) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return "", err
	}

	var value string
	err := s.db.View(func(txn *badgerdb.Txn) error {
		item, err := txn.Get(keyFor(key))
		if errors.Is(err, badgerdb.ErrKeyNotFound) {
			return store.ErrNotFound
		}
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			value = string(val)
			return nil
		})
	})
	if err != nil {
		return "", err
	}
	return value, nil
}

// Put stores value under key, applying the configured TTL.
func (s *Store) Put(ctx context.Context, key, value string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		e := badgerdb.NewEntry(keyFor(key), []byte(value))
		if s.ttl > 0 {
			e = e.WithTTL(s.ttl)
		}
		return txn.SetEntry(e)
	})
}

// Delete removes key.
func (s *Store) Delete(ctx context.Context, key string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	return s.db.Update(func(txn *badgerdb.Txn) error {
		return txn.Delete(keyFor(key))
	})
}

// Len counts stored entries with a key-only iteration.
func (s *Store) Len(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return 0, err
	}

	n := 0
	err := s.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = entryPrefix

		it := txn.NewIterator(opts)
		defer it.Close()
		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}

// Healthcheck starts a read transaction to confirm the database is usable.
func (s *Store) Healthcheck(ctx context.Context) error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if err := s.checkOpen(ctx); err != nil {
		return err
	}

	if err := s.db.View(func(*badgerdb.Txn) error { return nil }); err != nil {
		return fmt.Errorf("healthcheck failed: %w", err)
	}
	return nil
}

// Close stops the garbage collector and closes the database.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	if s.stopGC != nil {
		close(s.stopGC)
		<-s.gcDone
	}
	return s.db.Close()
}

func (s *Store) runGC(interval time.Duration) {
	defer close(s.gcDone)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopGC:
			return
		case <-ticker.C:
			// RunValueLogGC rewrites at most one file per call.
			for {
				err := s.db.RunValueLogGC(0.5)
				if err != nil {
					if !errors.Is(err, badgerdb.ErrNoRewrite) {
						logger.Debug("Badger value log GC stopped", logger.KeyError, err)
					}
					break
				}
			}
		}
	}
}

var _ store.Store = (*Store)(nil)
