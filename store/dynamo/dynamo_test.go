package dynamo

import (
	"context"
	"errors"
	"maps"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
	"github.com/hupe1980/vecboard/store/storetest"
)

// fakeDDB models one table keyed by (scope, id). Query pages hold pageSize items.
type fakeDDB struct {
	mu       sync.Mutex
	items    map[string]map[string]map[string]types.AttributeValue
	pageSize int
	queries  int
	err      error
}

func newFakeDDB() *fakeDDB {
	return &fakeDDB{items: make(map[string]map[string]map[string]types.AttributeValue), pageSize: 2}
}

func keyOf(m map[string]types.AttributeValue) (string, string) {
	pk := m[attrScope].(*types.AttributeValueMemberS).Value
	sk := m[attrID].(*types.AttributeValueMemberS).Value
	return pk, sk
}

func (f *fakeDDB) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk, sk := keyOf(in.Item)
	if _, ok := f.items[pk][sk]; ok && in.ConditionExpression != nil {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("exists")}
	}
	if f.items[pk] == nil {
		f.items[pk] = make(map[string]map[string]types.AttributeValue)
	}
	f.items[pk][sk] = maps.Clone(in.Item)
	return &dynamodb.PutItemOutput{}, nil
}

func (f *fakeDDB) UpdateItem(_ context.Context, in *dynamodb.UpdateItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk, sk := keyOf(in.Key)
	item, ok := f.items[pk][sk]
	if !ok {
		return nil, &types.ConditionalCheckFailedException{Message: aws.String("missing")}
	}
	item[attrX] = in.ExpressionAttributeValues[":x"]
	item[attrY] = in.ExpressionAttributeValues[":y"]
	return &dynamodb.UpdateItemOutput{}, nil
}

func (f *fakeDDB) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	pk, sk := keyOf(in.Key)
	delete(f.items[pk], sk)
	return &dynamodb.DeleteItemOutput{}, nil
}

func (f *fakeDDB) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queries++
	if f.err != nil {
		return nil, f.err
	}
	pk := in.ExpressionAttributeValues[":s"].(*types.AttributeValueMemberS).Value
	ids := slices.Sorted(maps.Keys(f.items[pk]))

	start := 0
	if in.ExclusiveStartKey != nil {
		_, after := keyOf(in.ExclusiveStartKey)
		start, _ = slices.BinarySearch(ids, after)
		start++
	}
	end := min(start+f.pageSize, len(ids))

	out := &dynamodb.QueryOutput{}
	for _, id := range ids[start:end] {
		out.Items = append(out.Items, maps.Clone(f.items[pk][id]))
	}
	if end < len(ids) {
		out.LastEvaluatedKey = map[string]types.AttributeValue{
			attrScope: &types.AttributeValueMemberS{Value: pk},
			attrID:    &types.AttributeValueMemberS{Value: ids[end-1]},
		}
	}
	return out, nil
}

func TestConformance(t *testing.T) {
	storetest.Run(t, func(t *testing.T) store.Store {
		return New(newFakeDDB(), "items")
	})
}

func TestSequenceMonotonicWithFrozenClock(t *testing.T) {
	frozen := time.Unix(1700000000, 0)
	s := New(newFakeDDB(), "items", func(o *Options) {
		o.Now = func() time.Time { return frozen }
	})

	a := s.nextSeq()
	b := s.nextSeq()
	assert.Equal(t, a+1, b)
}

func TestQueryPaginates(t *testing.T) {
	ctx := context.Background()
	client := newFakeDDB()
	s := New(client, "items")

	for _, id := range []model.ItemID{"e", "d", "c", "b", "a"} {
		require.NoError(t, s.AppendVector(ctx, "alice", id, model.Vector{1}))
	}
	client.queries = 0

	recs, err := s.GetVectors(ctx, "alice")
	require.NoError(t, err)
	require.Len(t, recs, 5)
	assert.Equal(t, model.ItemID("e"), recs[0].ID)
	assert.Equal(t, model.ItemID("a"), recs[4].ID)
	assert.Equal(t, 3, client.queries)
}

func TestClientErrorIsWrapped(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("throttled")
	client := newFakeDDB()
	client.err = boom
	s := New(client, "items")

	_, err := s.GetVectors(ctx, "alice")
	assert.ErrorIs(t, err, boom)
	assert.ErrorIs(t, s.AppendVector(ctx, "alice", "x", model.Vector{1}), boom)
	assert.ErrorIs(t, s.SetPosition(ctx, "alice", "x", model.Position{}), boom)
	assert.ErrorIs(t, s.Delete(ctx, "alice", "x"), boom)
}

func TestParseRowRejectsMalformed(t *testing.T) {
	_, err := parseRow(map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: "x"},
	})
	assert.Error(t, err)

	r, err := parseRow(map[string]types.AttributeValue{
		attrID:  &types.AttributeValueMemberS{Value: "x"},
		attrSeq: &types.AttributeValueMemberN{Value: "7"},
		attrX:   &types.AttributeValueMemberN{Value: "1.5"},
		attrY:   &types.AttributeValueMemberN{Value: "-2"},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), r.seq)
	assert.Equal(t, &model.Position{X: 1.5, Y: -2}, r.pos)
}
