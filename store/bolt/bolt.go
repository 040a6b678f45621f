// Package bolt provides a store.Store backed by a bbolt file.
//
// Layout: a root bucket "scopes" holds one nested bucket per scope with the
// sub-buckets order (seq -> id), index (id -> seq), vectors and positions.
package bolt

import (
	"context"
	"encoding/binary"
	"fmt"
	"time"

	"go.etcd.io/bbolt"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

var (
	rootBucket      = []byte("scopes")
	orderBucket     = []byte("order")
	indexBucket     = []byte("index")
	vectorsBucket   = []byte("vectors")
	positionsBucket = []byte("positions")
)

// Options configures a Store.
type Options struct {
	// Compression is applied to stored vectors.
	Compression codec.Compression
	// Timeout bounds waiting for the file lock on Open.
	Timeout time.Duration
}

// Store implements store.Store on bbolt.
type Store struct {
	db     *bbolt.DB
	vc     codec.VectorCodec
	ownsDB bool
}

var _ store.Store = (*Store)(nil)

// New wraps an open database. The caller keeps ownership of db.
func New(db *bbolt.DB, optFns ...func(o *Options)) *Store {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{db: db, vc: codec.VectorCodec{Compression: opts.Compression}}
}

// Open opens (or creates) the database file at path.
func Open(path string, optFns ...func(o *Options)) (*Store, error) {
	opts := Options{Timeout: time.Second}
	for _, fn := range optFns {
		fn(&opts)
	}
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: opts.Timeout})
	if err != nil {
		return nil, fmt.Errorf("bolt: open %s: %w", path, err)
	}
	s := New(db, func(o *Options) { *o = opts })
	s.ownsDB = true
	return s, nil
}

// Bucket names must be non-empty, so the public scope still gets a name.
func scopeName(scope model.Scope) []byte {
	return append([]byte{'s'}, scope...)
}

type scopeBuckets struct {
	scope     *bbolt.Bucket
	order     *bbolt.Bucket
	index     *bbolt.Bucket
	vectors   *bbolt.Bucket
	positions *bbolt.Bucket
}

func readBuckets(tx *bbolt.Tx, scope model.Scope) *scopeBuckets {
	root := tx.Bucket(rootBucket)
	if root == nil {
		return nil
	}
	sb := root.Bucket(scopeName(scope))
	if sb == nil {
		return nil
	}
	return &scopeBuckets{
		scope:     sb,
		order:     sb.Bucket(orderBucket),
		index:     sb.Bucket(indexBucket),
		vectors:   sb.Bucket(vectorsBucket),
		positions: sb.Bucket(positionsBucket),
	}
}

func writeBuckets(tx *bbolt.Tx, scope model.Scope) (*scopeBuckets, error) {
	root, err := tx.CreateBucketIfNotExists(rootBucket)
	if err != nil {
		return nil, err
	}
	sb, err := root.CreateBucketIfNotExists(scopeName(scope))
	if err != nil {
		return nil, err
	}
	out := &scopeBuckets{scope: sb}
	for _, b := range []struct {
		name []byte
		dst  **bbolt.Bucket
	}{
		{orderBucket, &out.order},
		{indexBucket, &out.index},
		{vectorsBucket, &out.vectors},
		{positionsBucket, &out.positions},
	} {
		if *b.dst, err = sb.CreateBucketIfNotExists(b.name); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	out := []model.Record{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := readBuckets(tx, scope)
		if b == nil {
			return nil
		}
		c := b.order.Cursor()
		for _, id := c.First(); id != nil; _, id = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := b.vectors.Get(id)
			if data == nil {
				continue
			}
			v, err := s.vc.Decode(data)
			if err != nil {
				return fmt.Errorf("bolt: decode vector %q: %w", id, err)
			}
			out = append(out, model.Record{ID: model.ItemID(id), Vector: v})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
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

	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := writeBuckets(tx, scope)
		if err != nil {
			return err
		}
		key := []byte(id)
		if b.index.Get(key) != nil {
			return store.ErrAlreadyExists
		}
		seq, err := b.scope.NextSequence()
		if err != nil {
			return err
		}
		sk := binary.BigEndian.AppendUint64(nil, seq)
		if err := b.order.Put(sk, key); err != nil {
			return err
		}
		if err := b.index.Put(key, sk); err != nil {
			return err
		}
		return b.vectors.Put(key, data)
	})
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := readBuckets(tx, scope)
		if b == nil || b.index.Get([]byte(id)) == nil {
			return store.ErrNotFound
		}
		return b.positions.Put([]byte(id), codec.AppendPosition(nil, pos))
	})
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	out := []model.Placement{}
	err := s.db.View(func(tx *bbolt.Tx) error {
		b := readBuckets(tx, scope)
		if b == nil {
			return nil
		}
		c := b.order.Cursor()
		for _, id := c.First(); id != nil; _, id = c.Next() {
			if err := ctx.Err(); err != nil {
				return err
			}
			data := b.positions.Get(id)
			if data == nil {
				continue
			}
			pos, err := codec.DecodePosition(data)
			if err != nil {
				return fmt.Errorf("bolt: decode position %q: %w", id, err)
			}
			out = append(out, model.Placement{ID: model.ItemID(id), Position: pos})
		}
		return nil
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
	return s.db.Update(func(tx *bbolt.Tx) error {
		b := readBuckets(tx, scope)
		if b == nil {
			return nil
		}
		key := []byte(id)
		sk := b.index.Get(key)
		if sk == nil {
			return nil
		}
		// sk points into the page and is invalid after the first delete.
		sk = append([]byte(nil), sk...)
		if err := b.order.Delete(sk); err != nil {
			return err
		}
		if err := b.index.Delete(key); err != nil {
			return err
		}
		if err := b.vectors.Delete(key); err != nil {
			return err
		}
		return b.positions.Delete(key)
	})
}

// Close closes the database if the store opened it.
func (s *Store) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
