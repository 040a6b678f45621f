// Package blob provides a store.Store on top of any blobstore.BlobStore.
//
// Each scope is a directory holding one manifest (ordered ids, insertion
// sequence numbers and positions) and one object per vector:
//
//	scopes/s-<escaped scope>/manifest
//	scopes/s-<escaped scope>/vectors/<seq as 16 hex digits>
//
// Vectors are written before the manifest references them and deleted after
// it stops referencing them, so a crash leaves at most an orphaned object.
package blob

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/vecboard/blobstore"
	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

const manifestVersion = 1

// Options configures a Store.
type Options struct {
	// Codec encodes manifests. Defaults to codec.Default.
	Codec codec.Codec
	// Compression is applied to vector objects.
	Compression codec.Compression
	// FetchConcurrency bounds parallel vector downloads. Defaults to 8.
	FetchConcurrency int
}

type manifest struct {
	Version int            `json:"version"`
	NextSeq uint64         `json:"next_seq"`
	Items   []manifestItem `json:"items"`
}

type manifestItem struct {
	ID       model.ItemID    `json:"id"`
	Seq      uint64          `json:"seq"`
	Position *model.Position `json:"position,omitempty"`
}

func (m *manifest) find(id model.ItemID) int {
	return slices.IndexFunc(m.Items, func(it manifestItem) bool { return it.ID == id })
}

// Store implements store.Store on a blob store.
type Store struct {
	blobs blobstore.BlobStore
	codec codec.Codec
	vc    codec.VectorCodec
	fetch int

	// mu serialises manifest read-modify-write cycles within the process.
	mu sync.Mutex
}

var _ store.Store = (*Store)(nil)

// New creates a store on blobs.
func New(blobs blobstore.BlobStore, optFns ...func(o *Options)) *Store {
	opts := Options{Codec: codec.Default, FetchConcurrency: 8}
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Codec == nil {
		opts.Codec = codec.Default
	}
	if opts.FetchConcurrency < 1 {
		opts.FetchConcurrency = 1
	}
	return &Store{
		blobs: blobs,
		codec: opts.Codec,
		vc:    codec.VectorCodec{Compression: opts.Compression},
		fetch: opts.FetchConcurrency,
	}
}

func scopeDir(scope model.Scope) string {
	return "scopes/s-" + url.PathEscape(string(scope)) + "/"
}

func manifestName(scope model.Scope) string {
	return scopeDir(scope) + "manifest"
}

func vectorName(scope model.Scope, seq uint64) string {
	return fmt.Sprintf("%svectors/%016x", scopeDir(scope), seq)
}

func (s *Store) load(ctx context.Context, scope model.Scope) (*manifest, error) {
	data, err := s.blobs.Get(ctx, manifestName(scope))
	if errors.Is(err, blobstore.ErrNotFound) {
		return &manifest{Version: manifestVersion}, nil
	}
	if err != nil {
		return nil, err
	}
	var m manifest
	if err := s.codec.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("blob: decode manifest of scope %s: %w", scope, err)
	}
	if m.Version != manifestVersion {
		return nil, fmt.Errorf("blob: unsupported manifest version %d", m.Version)
	}
	return &m, nil
}

func (s *Store) save(ctx context.Context, scope model.Scope, m *manifest) error {
	data, err := s.codec.Marshal(m)
	if err != nil {
		return err
	}
	return s.blobs.Put(ctx, manifestName(scope), data)
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	m, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, len(m.Items))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.fetch)
	for i, it := range m.Items {
		g.Go(func() error {
			data, err := s.blobs.Get(gctx, vectorName(scope, it.Seq))
			if err != nil {
				return fmt.Errorf("blob: vector %q: %w", it.ID, err)
			}
			v, err := s.vc.Decode(data)
			if err != nil {
				return fmt.Errorf("blob: decode vector %q: %w", it.ID, err)
			}
			out[i] = model.Record{ID: it.ID, Vector: v}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// AppendVector implements store.Store.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	data, err := s.vc.Encode(vector)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, scope)
	if err != nil {
		return err
	}
	if m.find(id) >= 0 {
		return store.ErrAlreadyExists
	}

	seq := m.NextSeq
	if err := s.blobs.Put(ctx, vectorName(scope, seq), data); err != nil {
		return err
	}
	m.NextSeq++
	m.Items = append(m.Items, manifestItem{ID: id, Seq: seq})
	return s.save(ctx, scope, m)
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, scope)
	if err != nil {
		return err
	}
	i := m.find(id)
	if i < 0 {
		return store.ErrNotFound
	}
	m.Items[i].Position = &pos
	return s.save(ctx, scope, m)
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	m, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.Placement, 0, len(m.Items))
	for _, it := range m.Items {
		if it.Position != nil {
			out = append(out, model.Placement{ID: it.ID, Position: *it.Position})
		}
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	m, err := s.load(ctx, scope)
	if err != nil {
		return err
	}
	i := m.find(id)
	if i < 0 {
		return nil
	}
	seq := m.Items[i].Seq
	m.Items = slices.Delete(m.Items, i, i+1)
	if err := s.save(ctx, scope, m); err != nil {
		return err
	}
	return s.blobs.Delete(ctx, vectorName(scope, seq))
}

// Orphans lists vector objects of scope that no manifest entry references.
func (s *Store) Orphans(ctx context.Context, scope model.Scope) ([]string, error) {
	m, err := s.load(ctx, scope)
	if err != nil {
		return nil, err
	}
	live := make(map[string]struct{}, len(m.Items))
	for _, it := range m.Items {
		live[vectorName(scope, it.Seq)] = struct{}{}
	}
	names, err := s.blobs.List(ctx, scopeDir(scope)+"vectors/")
	if err != nil {
		return nil, err
	}
	var orphans []string
	for _, name := range names {
		if _, ok := live[name]; !ok {
			orphans = append(orphans, name)
		}
	}
	return orphans, nil
}
