// Package redis provides a store.Store backed by Redis.
//
// Each scope uses three keys under a configurable prefix:
//
//	<prefix>{<scope>}:order      LIST of item ids in insertion order
//	<prefix>{<scope>}:vectors    HASH id -> binary vector
//	<prefix>{<scope>}:positions  HASH id -> 16-byte binary position
//
// The braces form a cluster hash tag so a scope's keys share one slot.
package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

// DefaultPrefix is the key prefix used when none is configured.
const DefaultPrefix = "vecboard:"

// Client is the subset of the go-redis command set used by Store.
// *redis.Client, *redis.ClusterClient and redis.UniversalClient satisfy it.
//
// Every mutation touches several keys and runs as one Lua script, so the
// order list and the hashes never disagree.
type Client interface {
	redis.Scripter
	HGetAll(ctx context.Context, key string) *redis.MapStringStringCmd
	LRange(ctx context.Context, key string, start, stop int64) *redis.StringSliceCmd
}

// KEYS: vectors, order. ARGV: id, vector. Returns 0 if id exists.
var appendScript = redis.NewScript(`
if redis.call("HSETNX", KEYS[1], ARGV[1], ARGV[2]) == 0 then
	return 0
end
redis.call("RPUSH", KEYS[2], ARGV[1])
return 1
`)

// KEYS: vectors, positions. ARGV: id, position. Returns 0 if id is unknown.
var setPositionScript = redis.NewScript(`
if redis.call("HEXISTS", KEYS[1], ARGV[1]) == 0 then
	return 0
end
redis.call("HSET", KEYS[2], ARGV[1], ARGV[2])
return 1
`)

// KEYS: positions, vectors, order. ARGV: id.
var deleteScript = redis.NewScript(`
redis.call("HDEL", KEYS[1], ARGV[1])
redis.call("HDEL", KEYS[2], ARGV[1])
redis.call("LREM", KEYS[3], 0, ARGV[1])
return 1
`)

// Options configures a Store.
type Options struct {
	// Prefix is prepended to every key.
	Prefix string
	// Compression is applied to stored vectors.
	Compression codec.Compression
}

// Store implements store.Store on Redis.
type Store struct {
	client Client
	prefix string
	vc     codec.VectorCodec
}

var _ store.Store = (*Store)(nil)

// New creates a Redis store.
func New(client Client, optFns ...func(o *Options)) *Store {
	opts := Options{Prefix: DefaultPrefix}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client: client,
		prefix: opts.Prefix,
		vc:     codec.VectorCodec{Compression: opts.Compression},
	}
}

// NewFromURL connects to the Redis server at a redis:// URL.
func NewFromURL(rawURL string, optFns ...func(o *Options)) (*Store, *redis.Client, error) {
	opts, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opts)
	return New(client, optFns...), client, nil
}

func (s *Store) key(scope model.Scope, kind string) string {
	return s.prefix + "{" + string(scope) + "}:" + kind
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	ids, err := s.client.LRange(ctx, s.key(scope, "order"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	if len(ids) == 0 {
		return []model.Record{}, nil
	}
	raw, err := s.client.HGetAll(ctx, s.key(scope, "vectors")).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.Record, 0, len(ids))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		v, err := s.vc.Decode([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("redis: decode vector %q: %w", id, err)
		}
		out = append(out, model.Record{ID: model.ItemID(id), Vector: v})
	}
	return out, nil
}

// AppendVector implements store.Store.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	data, err := s.vc.Encode(vector)
	if err != nil {
		return err
	}
	keys := []string{s.key(scope, "vectors"), s.key(scope, "order")}
	added, err := appendScript.Run(ctx, s.client, keys, string(id), data).Int()
	if err != nil {
		return err
	}
	if added == 0 {
		return store.ErrAlreadyExists
	}
	return nil
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	keys := []string{s.key(scope, "vectors"), s.key(scope, "positions")}
	set, err := setPositionScript.Run(ctx, s.client, keys, string(id), codec.AppendPosition(nil, pos)).Int()
	if err != nil {
		return err
	}
	if set == 0 {
		return store.ErrNotFound
	}
	return nil
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	ids, err := s.client.LRange(ctx, s.key(scope, "order"), 0, -1).Result()
	if err != nil {
		return nil, err
	}
	raw, err := s.client.HGetAll(ctx, s.key(scope, "positions")).Result()
	if err != nil {
		return nil, err
	}

	out := make([]model.Placement, 0, len(raw))
	for _, id := range ids {
		data, ok := raw[id]
		if !ok {
			continue
		}
		pos, err := codec.DecodePosition([]byte(data))
		if err != nil {
			return nil, fmt.Errorf("redis: decode position %q: %w", id, err)
		}
		out = append(out, model.Placement{ID: model.ItemID(id), Position: pos})
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	keys := []string{s.key(scope, "positions"), s.key(scope, "vectors"), s.key(scope, "order")}
	return deleteScript.Run(ctx, s.client, keys, string(id)).Err()
}
