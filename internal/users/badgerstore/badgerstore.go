// Package badgerstore keeps user documents in an embedded BadgerDB.
//
// Each record lives under users/email/<key> as JSON. Lookup and create run
// in a single serializable transaction, so two writers racing on a new key
// cannot both commit: the loser gets badger.ErrConflict, reported as a
// transient failure and retried by the service.
package badgerstore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"time"

	"ignews-service/internal/logger"
	"ignews-service/internal/users"

	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const keyPrefix = "users/email/"

// Config holds configuration for the BadgerDB instance.
type Config struct {
	// Path is the data directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Used by tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool
}

type Store struct {
	db  *badger.DB
	now func() time.Time
}

// badgerLogger adapts the service logger to badger.Logger.
type badgerLogger struct {
	l *zap.SugaredLogger
}

func (b badgerLogger) Errorf(format string, args ...any)   { b.l.Errorf(format, args...) }
func (b badgerLogger) Warningf(format string, args ...any) { b.l.Warnf(format, args...) }
func (b badgerLogger) Infof(format string, args ...any)    { b.l.Infof(format, args...) }
func (b badgerLogger) Debugf(format string, args ...any)   { b.l.Debugf(format, args...) }

// Open opens (creating if needed) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if cfg.Path == "" {
			return nil, errors.New("badgerstore: path is required")
		}
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("badgerstore: create dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.
		WithSyncWrites(cfg.SyncWrites).
		WithNumVersionsToKeep(1).
		WithLogger(badgerLogger{l: logger.L().Named("badger").Sugar()})

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("badgerstore: open: %w", err)
	}

	return &Store{db: db, now: time.Now}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) Upsert(ctx context.Context, key string, email string) (users.Result, error) {
	if err := ctx.Err(); err != nil {
		return users.Result{}, users.NewPermanent("badger upsert", err)
	}

	var res users.Result
	k := []byte(keyPrefix + key)

	err := s.db.Update(func(txn *badger.Txn) error {
		item, err := txn.Get(k)
		switch {
		case err == nil:
			res.Outcome = users.Fetched
			return item.Value(func(val []byte) error {
				return json.Unmarshal(val, &res.Record)
			})

		case errors.Is(err, badger.ErrKeyNotFound):
			res.Outcome = users.Created
			res.Record = users.Record{
				ID:        uuid.NewString(),
				Key:       key,
				Data:      users.Data{Email: email},
				CreatedAt: s.now().UTC(),
			}
			doc, err := json.Marshal(res.Record)
			if err != nil {
				return err
			}
			return txn.Set(k, doc)

		default:
			return err
		}
	})
	if err != nil {
		if errors.Is(err, badger.ErrConflict) {
			return users.Result{}, users.NewTransient("badger upsert", err)
		}
		return users.Result{}, users.NewPermanent("badger upsert", err)
	}

	return res, nil
}

// Get returns the record stored under key.
func (s *Store) Get(key string) (users.Record, bool, error) {
	var (
		rec   users.Record
		found bool
	)

	err := s.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get([]byte(keyPrefix + key))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		found = true
		return item.Value(func(val []byte) error {
			return json.Unmarshal(val, &rec)
		})
	})

	return rec, found, err
}

// Count returns the number of stored user documents.
func (s *Store) Count() (int, error) {
	n := 0
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		opts.Prefix = []byte(keyPrefix)

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			n++
		}
		return nil
	})
	return n, err
}
