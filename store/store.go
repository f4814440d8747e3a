// Package store persists replicated-type states in pebble. States are
// opaque TLV; reconciliation happens inside pebble's merge operator, so
// a replica can blind-write its state and let compaction fold histories.
package store

import (
	"github.com/cespare/xxhash"
	"github.com/cockroachdb/pebble"
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/pkg/errors"

	crdt "github.com/iancoleman/crdt"
)

const defaultCacheSize = 16 * 1024

// LitClock is the key prefix for persisted replica clocks.
const LitClock = byte('V')

// Fold merges TLV states of one record type, oldest to newest. It must
// be a semilattice fold: idempotent, commutative, associative.
type Fold func(inputs [][]byte) []byte

type Options struct {
	Path string
	// Folds maps a record type letter to its state fold. The 'V' clock
	// fold is always registered.
	Folds map[byte]Fold
	// Sync makes every write wait on the WAL.
	Sync bool
	// CacheSize bounds the read cache, in entries.
	CacheSize int
}

// Store is a pebble database of folded states, one key per replicated
// object, prefixed with its record type letter.
type Store struct {
	db    *pebble.DB
	wo    *pebble.WriteOptions
	cache *lru.Cache[string, []byte]
	folds map[byte]Fold
}

func Open(opts Options) (*Store, error) {
	folds := make(map[byte]Fold, len(opts.Folds)+1)
	folds[LitClock] = crdt.VMergeTLV
	for lit, fold := range opts.Folds {
		folds[lit] = fold
	}

	merger := &pebble.Merger{
		Name: "crdt.fold",
		Merge: func(key, value []byte) (pebble.ValueMerger, error) {
			if len(key) == 0 {
				return nil, errors.New("store: empty key")
			}
			fold, ok := folds[key[0]]
			if !ok {
				return nil, errors.Errorf("store: no fold for key prefix %q", key[0])
			}
			fm := &foldMerger{fold: fold}
			return fm, fm.MergeNewer(value)
		},
	}

	size := opts.CacheSize
	if size == 0 {
		size = defaultCacheSize
	}
	cache, err := lru.New[string, []byte](size)
	if err != nil {
		return nil, errors.Wrap(err, "store: cache")
	}

	db, err := pebble.Open(opts.Path, &pebble.Options{Merger: merger})
	if err != nil {
		return nil, errors.Wrap(err, "store: open")
	}
	return &Store{
		db:    db,
		wo:    &pebble.WriteOptions{Sync: opts.Sync},
		cache: cache,
		folds: folds,
	}, nil
}

func storeKey(lit byte, key string) []byte {
	k := make([]byte, 0, len(key)+1)
	k = append(k, lit)
	return append(k, key...)
}

// Merge folds state into whatever is already held under (lit, key).
func (s *Store) Merge(lit byte, key string, state []byte) error {
	if _, ok := s.folds[lit]; !ok {
		return errors.Errorf("store: no fold registered for %q", lit)
	}
	k := storeKey(lit, key)
	if err := s.db.Merge(k, state, s.wo); err != nil {
		return errors.Wrap(err, "store: merge")
	}
	s.cache.Remove(string(k))
	return nil
}

// Load returns the folded state under (lit, key), nil when absent.
func (s *Store) Load(lit byte, key string) ([]byte, error) {
	k := storeKey(lit, key)
	if state, ok := s.cache.Get(string(k)); ok {
		return state, nil
	}
	val, closer, err := s.db.Get(k)
	if err == pebble.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	state := make([]byte, len(val))
	copy(state, val)
	if err = closer.Close(); err != nil {
		return nil, errors.Wrap(err, "store: get")
	}
	s.cache.Add(string(k), state)
	return state, nil
}

// Fingerprint hashes the stored state, for cheap change detection across
// sync rounds. Zero means absent.
func (s *Store) Fingerprint(lit byte, key string) (uint64, error) {
	state, err := s.Load(lit, key)
	if err != nil || state == nil {
		return 0, err
	}
	return xxhash.Sum64(state), nil
}

func (s *Store) Flush() error {
	return errors.Wrap(s.db.Flush(), "store: flush")
}

func (s *Store) Close() error {
	return errors.Wrap(s.db.Close(), "store: close")
}
