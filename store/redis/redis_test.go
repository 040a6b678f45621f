package redis

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/storetest"
)

// fakeClient implements Client over in-memory lists and hashes.
type fakeClient struct {
	mu     sync.Mutex
	lists  map[string][]string
	hashes map[string]map[string]string
	err    error

	// lostAcks makes the next n scripts apply and then report a failure.
	lostAcks int
}

func newFakeClient() *fakeClient {
	return &fakeClient{
		lists:  make(map[string][]string),
		hashes: make(map[string]map[string]string),
	}
}

func str(v interface{}) string {
	switch x := v.(type) {
	case string:
		return x
	case []byte:
		return string(x)
	default:
		return fmt.Sprint(x)
	}
}

func (f *fakeClient) hash(key string) map[string]string {
	h, ok := f.hashes[key]
	if !ok {
		h = make(map[string]string)
		f.hashes[key] = h
	}
	return h
}

// run executes a known script atomically under the fake's lock.
func (f *fakeClient) run(sha string, keys []string, args []interface{}) *redis.Cmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewCmdResult(nil, f.err)
	}

	var res int64
	switch sha {
	case appendScript.Hash():
		vectors, id := f.hash(keys[0]), str(args[0])
		if _, ok := vectors[id]; ok {
			break
		}
		vectors[id] = str(args[1])
		f.lists[keys[1]] = append(f.lists[keys[1]], id)
		res = 1
	case setPositionScript.Hash():
		id := str(args[0])
		if _, ok := f.hashes[keys[0]][id]; !ok {
			break
		}
		f.hash(keys[1])[id] = str(args[1])
		res = 1
	case deleteScript.Hash():
		id := str(args[0])
		delete(f.hashes[keys[0]], id)
		delete(f.hashes[keys[1]], id)
		f.lists[keys[2]] = slices.DeleteFunc(f.lists[keys[2]], func(s string) bool { return s == id })
		res = 1
	default:
		return redis.NewCmdResult(nil, errors.New("NOSCRIPT No matching script"))
	}

	if f.lostAcks > 0 {
		f.lostAcks--
		return redis.NewCmdResult(nil, errors.New("i/o timeout"))
	}
	return redis.NewCmdResult(res, nil)
}

func (f *fakeClient) Eval(_ context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(redis.NewScript(script).Hash(), keys, args)
}

func (f *fakeClient) EvalSha(_ context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.run(sha1, keys, args)
}

func (f *fakeClient) EvalRO(ctx context.Context, script string, keys []string, args ...interface{}) *redis.Cmd {
	return f.Eval(ctx, script, keys, args...)
}

func (f *fakeClient) EvalShaRO(ctx context.Context, sha1 string, keys []string, args ...interface{}) *redis.Cmd {
	return f.EvalSha(ctx, sha1, keys, args...)
}

func (f *fakeClient) ScriptExists(_ context.Context, hashes ...string) *redis.BoolSliceCmd {
	known := []string{appendScript.Hash(), setPositionScript.Hash(), deleteScript.Hash()}
	out := make([]bool, len(hashes))
	for i, h := range hashes {
		out[i] = slices.Contains(known, h)
	}
	return redis.NewBoolSliceResult(out, nil)
}

func (f *fakeClient) ScriptLoad(_ context.Context, script string) *redis.StringCmd {
	return redis.NewStringResult(redis.NewScript(script).Hash(), nil)
}

func (f *fakeClient) HGetAll(_ context.Context, key string) *redis.MapStringStringCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewMapStringStringResult(nil, f.err)
	}
	out := make(map[string]string, len(f.hashes[key]))
	for k, v := range f.hashes[key] {
		out[k] = v
	}
	return redis.NewMapStringStringResult(out, nil)
}

func (f *fakeClient) LRange(_ context.Context, key string, start, stop int64) *redis.StringSliceCmd {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return redis.NewStringSliceResult(nil, f.err)
	}
	if start != 0 || stop != -1 {
		return redis.NewStringSliceResult(nil, errors.New("fake: only full ranges supported"))
	}
	return redis.NewStringSliceResult(slices.Clone(f.lists[key]), nil)
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(newFakeClient())
	})
}

func TestConformanceCompressed(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(newFakeClient(), func(o *Options) {
			o.Compression = codec.CompressionLZ4
		})
	})
}

func TestKeys(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := New(client, func(o *Options) { o.Prefix = "test:" })

	require.NoError(t, s.AppendVector(ctx, "a:b", "1", model.Vector{1}))

	assert.Contains(t, client.lists, "test:{a:b}:order")
	_, err := s.GetVectors(ctx, "a")
	require.NoError(t, err)
	assert.NotContains(t, client.lists, "test:{a}:order")
}

func TestClientError(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	client.err = errors.New("connection refused")
	s := New(client)

	_, err := s.GetVectors(ctx, "alice")
	assert.EqualError(t, err, "connection refused")
	assert.Error(t, s.AppendVector(ctx, "alice", "x", model.Vector{1}))
	assert.Error(t, s.SetPosition(ctx, "alice", "x", model.Position{}))
}

func TestNewFromURL(t *testing.T) {
	s, client, err := NewFromURL("redis://localhost:6379/2")
	require.NoError(t, err)
	require.NotNil(t, s)
	assert.Equal(t, 2, client.Options().DB)
	require.NoError(t, client.Close())

	_, _, err = NewFromURL("http://nope")
	assert.Error(t, err)
}

// assertConsistent checks that the order list and the vector hash of scope
// name the same ids.
func assertConsistent(t *testing.T, client *fakeClient, scope string) {
	t.Helper()
	client.mu.Lock()
	defer client.mu.Unlock()

	order := slices.Sorted(slices.Values(client.lists[DefaultPrefix+"{"+scope+"}:order"]))
	var vectors []string
	for id := range client.hashes[DefaultPrefix+"{"+scope+"}:vectors"] {
		vectors = append(vectors, id)
	}
	slices.Sort(vectors)
	assert.Equal(t, order, vectors)
	for id := range client.hashes[DefaultPrefix+"{"+scope+"}:positions"] {
		assert.Contains(t, vectors, id)
	}
}

func TestFailedAppendWritesNothing(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := New(client)
	require.NoError(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))

	client.err = errors.New("connection reset")
	require.Error(t, s.AppendVector(ctx, "alice", "b", model.Vector{2}))
	client.err = nil

	assertConsistent(t, client, "alice")
	recs, err := s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, model.ItemID("a"), recs[0].ID)
}

func TestAppendLostAckStaysConsistent(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := New(client)

	client.lostAcks = 1
	require.Error(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}))
	assertConsistent(t, client, "alice")

	// The write landed, so the item is listed and can be positioned.
	recs, err := s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 1)
	require.NoError(t, s.SetPosition(ctx, "alice", "a", model.Position{X: 1}))
	assert.ErrorIs(t, s.AppendVector(ctx, "alice", "a", model.Vector{1}), store.ErrAlreadyExists)

	client.lostAcks = 1
	require.Error(t, s.Delete(ctx, "alice", "a"))
	assertConsistent(t, client, "alice")
	recs, err = s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, recs)
	placements, err := s.ListPositions(ctx, "alice")
	require.NoError(t, err)
	assert.Empty(t, placements)
}

func TestSetPositionUnknownWritesNothing(t *testing.T) {
	ctx := context.Background()
	client := newFakeClient()
	s := New(client)

	assert.ErrorIs(t, s.SetPosition(ctx, "alice", "ghost", model.Position{}), store.ErrNotFound)
	assert.Empty(t, client.hashes[DefaultPrefix+"{alice}:positions"])
}
