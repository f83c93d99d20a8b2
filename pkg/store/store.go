// Package store persists placed openings in an embedded BadgerDB.
//
// A run creates all of its openings inside one Txn. Nothing the run writes
// is visible to readers until Commit, and Discard drops all of it, so a
// failed run leaves the store exactly as it found it.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/chazu/sleeve/pkg/model"
	"github.com/dgraph-io/badger/v4"
	"github.com/google/uuid"
)

// openingPrefix namespaces opening records.
const openingPrefix = "opening/"

var (
	// ErrNotFound is returned for an unknown opening id.
	ErrNotFound = errors.New("store: opening not found")

	// ErrTxnDone is returned when a committed or discarded Txn is used.
	ErrTxnDone = errors.New("store: transaction already finished")
)

// Opening is one placed opening instance.
type Opening struct {
	ID        string             `json:"id"`
	Symbol    model.ElementID    `json:"symbol"`
	Family    string             `json:"family"`
	Position  model.Vec3         `json:"position"`
	Host      model.SurfaceRef   `json:"host"`
	Level     model.ElementID    `json:"level"`
	Source    model.ElementID    `json:"source"` // penetrating duct or pipe
	Params    map[string]float64 `json:"params,omitempty"`
	CreatedAt time.Time          `json:"created_at"`
}

// Options configures a Store.
type Options struct {
	// Dir is the database directory. Ignored when InMemory is true.
	Dir string

	// InMemory keeps everything in RAM; data is lost on Close.
	InMemory bool

	// Logger receives BadgerDB's internal log output. Nil silences it.
	Logger *slog.Logger
}

// badgerLogger adapts slog.Logger to BadgerDB's Logger interface.
type badgerLogger struct {
	logger *slog.Logger
}

func (l *badgerLogger) Errorf(format string, args ...interface{}) {
	l.logger.Error(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Warningf(format string, args ...interface{}) {
	l.logger.Warn(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Infof(format string, args ...interface{}) {
	l.logger.Info(fmt.Sprintf(format, args...))
}

func (l *badgerLogger) Debugf(format string, args ...interface{}) {
	l.logger.Debug(fmt.Sprintf(format, args...))
}

// Store is the opening database. It is safe for concurrent use.
type Store struct {
	db *badger.DB
}

// Open opens the store described by opts, creating its directory if needed.
func Open(opts Options) (*Store, error) {
	if !opts.InMemory && opts.Dir == "" {
		return nil, errors.New("store: directory is required for a persistent store")
	}

	var bo badger.Options
	if opts.InMemory {
		bo = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(opts.Dir, 0750); err != nil {
			return nil, fmt.Errorf("store: create directory %s: %w", opts.Dir, err)
		}
		bo = badger.DefaultOptions(opts.Dir)
	}

	if opts.Logger != nil {
		bo = bo.WithLogger(&badgerLogger{logger: opts.Logger})
	} else {
		bo = bo.WithLogger(nil)
	}

	db, err := badger.Open(bo)
	if err != nil {
		return nil, fmt.Errorf("store: open badger database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Openings returns every committed opening in creation order.
func (s *Store) Openings() ([]*Opening, error) {
	var out []*Opening
	err := s.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()

		prefix := []byte(openingPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			val, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}
			var o Opening
			if err := json.Unmarshal(val, &o); err != nil {
				return fmt.Errorf("decode %s: %w", it.Item().Key(), err)
			}
			out = append(out, &o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("store: list openings: %w", err)
	}
	return out, nil
}

// Opening returns the committed opening with the given id.
func (s *Store) Opening(id string) (*Opening, error) {
	var o *Opening
	err := s.db.View(func(txn *badger.Txn) error {
		var err error
		o, err = get(txn, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return o, nil
}

// Begin starts a read-write transaction.
func (s *Store) Begin() *Txn {
	return &Txn{txn: s.db.NewTransaction(true)}
}

// Txn groups the openings of one run. A Txn is not safe for concurrent
// use; callers create openings sequentially.
type Txn struct {
	txn  *badger.Txn
	done bool
	n    int
}

// CreateOpening records o. An empty ID is filled in with a time-ordered
// UUID so listings come back in creation order.
func (t *Txn) CreateOpening(o *Opening) error {
	if t.done {
		return ErrTxnDone
	}
	if o.ID == "" {
		id, err := uuid.NewV7()
		if err != nil {
			return fmt.Errorf("store: new opening id: %w", err)
		}
		o.ID = id.String()
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	if err := put(t.txn, o); err != nil {
		return fmt.Errorf("store: create opening: %w", err)
	}
	t.n++
	return nil
}

// SetParameter sets a numeric parameter on an opening created in this
// transaction or committed earlier.
func (t *Txn) SetParameter(id, name string, v float64) error {
	if t.done {
		return ErrTxnDone
	}
	o, err := get(t.txn, id)
	if err != nil {
		return err
	}
	if o.Params == nil {
		o.Params = make(map[string]float64)
	}
	o.Params[name] = v
	if err := put(t.txn, o); err != nil {
		return fmt.Errorf("store: set %s on %s: %w", name, id, err)
	}
	return nil
}

// Len returns the number of openings created in this transaction.
func (t *Txn) Len() int {
	return t.n
}

// Commit makes every opening of the transaction visible at once.
func (t *Txn) Commit() error {
	if t.done {
		return ErrTxnDone
	}
	t.done = true
	if err := t.txn.Commit(); err != nil {
		return fmt.Errorf("store: commit: %w", err)
	}
	return nil
}

// Discard drops the transaction. It is safe to call after Commit.
func (t *Txn) Discard() {
	t.done = true
	t.txn.Discard()
}

func key(id string) []byte {
	return []byte(openingPrefix + id)
}

func put(txn *badger.Txn, o *Opening) error {
	val, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return txn.Set(key(o.ID), val)
}

func get(txn *badger.Txn, id string) (*Opening, error) {
	item, err := txn.Get(key(id))
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("store: get %s: %w", id, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, fmt.Errorf("store: read %s: %w", id, err)
	}
	var o Opening
	if err := json.Unmarshal(val, &o); err != nil {
		return nil, fmt.Errorf("store: decode %s: %w", id, err)
	}
	return &o, nil
}
