// Package badger provides a store.Store backed by an embedded Badger database.
package badger

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/dgraph-io/badger/v4"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

// Key prefixes. Every key is <prefix><uvarint len(scope)><scope><suffix>, so
// one scope's keys never share a prefix with another's.
const (
	orderPrefix    byte = 'o' // + seq (8 bytes BE) -> id
	indexPrefix    byte = 'i' // + id -> seq
	vectorPrefix   byte = 'v' // + id -> vector block
	positionPrefix byte = 'p' // + id -> position
)

var sequenceKey = []byte("\x00seq")

const sequenceBandwidth = 1000

// Options configures a Store.
type Options struct {
	// Compression is applied to stored vectors.
	Compression codec.Compression
}

// Store implements store.Store on Badger.
type Store struct {
	db     *badger.DB
	seq    *badger.Sequence
	vc     codec.VectorCodec
	ownsDB bool
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. The caller keeps ownership of db.
func New(db *badger.DB, optFns ...func(o *Options)) (*Store, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	seq, err := db.GetSequence(sequenceKey, sequenceBandwidth)
	if err != nil {
		return nil, fmt.Errorf("badger: sequence: %w", err)
	}
	return &Store{db: db, seq: seq, vc: codec.VectorCodec{Compression: opts.Compression}}, nil
}

// Open opens (or creates) a database in dir. An empty dir opens an in-memory
// database.
func Open(dir string, optFns ...func(o *Options)) (*Store, error) {
	bopts := badger.DefaultOptions(dir)
	if dir == "" {
		bopts = bopts.WithInMemory(true)
	}
	bopts.Logger = nil

	db, err := badger.Open(bopts)
	if err != nil {
		return nil, fmt.Errorf("badger: open: %w", err)
	}
	s, err := New(db, optFns...)
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	s.ownsDB = true
	return s, nil
}

func key(prefix byte, scope model.Scope, suffix []byte) []byte {
	k := make([]byte, 0, 1+binary.MaxVarintLen64+len(scope)+len(suffix))
	k = append(k, prefix)
	k = binary.AppendUvarint(k, uint64(len(scope)))
	k = append(k, scope...)
	return append(k, suffix...)
}

func seqBytes(seq uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, seq)
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	out := []model.Record{}
	err := s.db.View(func(txn *badger.Txn) error {
		return s.eachOrdered(ctx, txn, scope, func(id model.ItemID) error {
			item, err := txn.Get(key(vectorPrefix, scope, []byte(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			return item.Value(func(val []byte) error {
				v, err := s.vc.Decode(val)
				if err != nil {
					return fmt.Errorf("badger: decode vector %q: %w", id, err)
				}
				out = append(out, model.Record{ID: id, Vector: v})
				return nil
			})
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// eachOrdered calls fn for every id of scope in insertion order.
func (s *Store) eachOrdered(ctx context.Context, txn *badger.Txn, scope model.Scope, fn func(id model.ItemID) error) error {
	prefix := key(orderPrefix, scope, nil)
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := txn.NewIterator(opts)
	defer it.Close()

	for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
		if err := ctx.Err(); err != nil {
			return err
		}
		id, err := it.Item().ValueCopy(nil)
		if err != nil {
			return err
		}
		if err := fn(model.ItemID(id)); err != nil {
			return err
		}
	}
	return nil
}

// AppendVector implements store.Store.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := s.vc.Encode(vector)
	if err != nil {
		return err
	}
	// Sequence leases commit their own transactions, so draw before Update.
	seq, err := s.seq.Next()
	if err != nil {
		return fmt.Errorf("badger: next sequence: %w", err)
	}
	sb := seqBytes(seq)

	return s.db.Update(func(txn *badger.Txn) error {
		ik := key(indexPrefix, scope, []byte(id))
		if _, err := txn.Get(ik); err == nil {
			return store.ErrAlreadyExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := txn.Set(key(orderPrefix, scope, sb), []byte(id)); err != nil {
			return err
		}
		if err := txn.Set(ik, sb); err != nil {
			return err
		}
		return txn.Set(key(vectorPrefix, scope, []byte(id)), data)
	})
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get(key(indexPrefix, scope, []byte(id))); errors.Is(err, badger.ErrKeyNotFound) {
			return store.ErrNotFound
		} else if err != nil {
			return err
		}
		return txn.Set(key(positionPrefix, scope, []byte(id)), codec.AppendPosition(nil, pos))
	})
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	out := []model.Placement{}
	err := s.db.View(func(txn *badger.Txn) error {
		return s.eachOrdered(ctx, txn, scope, func(id model.ItemID) error {
			item, err := txn.Get(key(positionPrefix, scope, []byte(id)))
			if errors.Is(err, badger.ErrKeyNotFound) {
				return nil
			}
			if err != nil {
				return err
			}
			val, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}
			pos, err := codec.DecodePosition(val)
			if err != nil {
				return fmt.Errorf("badger: decode position %q: %w", id, err)
			}
			out = append(out, model.Placement{ID: id, Position: pos})
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(txn *badger.Txn) error {
		ik := key(indexPrefix, scope, []byte(id))
		item, err := txn.Get(ik)
		if errors.Is(err, badger.ErrKeyNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		sb, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		for _, k := range [][]byte{
			key(orderPrefix, scope, sb),
			ik,
			key(vectorPrefix, scope, []byte(id)),
			key(positionPrefix, scope, []byte(id)),
		} {
			if err := txn.Delete(k); err != nil {
				return err
			}
		}
		return nil
	})
}

// Close releases the sequence lease and, if the store opened the database,
// closes it.
func (s *Store) Close() error {
	err := s.seq.Release()
	if s.ownsDB {
		err = errors.Join(err, s.db.Close())
	}
	return err
}
