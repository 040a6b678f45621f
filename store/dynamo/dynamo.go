// Package dynamo provides a store.Store backed by a DynamoDB table.
//
// Table schema:
//   - Partition key: scope (string), "#" followed by the scope name
//   - Sort key: id (string)
//
// Items carry seq (number) for insertion order, vec (binary) and, once
// projected, x and y (numbers).
//
// Create table with:
//
//	aws dynamodb create-table \
//	  --table-name vecboard-items \
//	  --attribute-definitions AttributeName=scope,AttributeType=S AttributeName=id,AttributeType=S \
//	  --key-schema AttributeName=scope,KeyType=HASH AttributeName=id,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
package dynamo

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/hupe1980/vecboard/codec"
	"github.com/hupe1980/vecboard/model"
	"github.com/hupe1980/vecboard/store"
)

const (
	attrScope = "scope"
	attrID    = "id"
	attrSeq   = "seq"
	attrVec   = "vec"
	attrX     = "x"
	attrY     = "y"
)

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// Options configures a Store.
type Options struct {
	// Compression is applied to stored vectors.
	Compression codec.Compression
	// Now supplies the clock used for insertion sequence numbers.
	Now func() time.Time
}

// Store implements store.Store on DynamoDB.
type Store struct {
	client    DDBClient
	tableName string
	vc        codec.VectorCodec
	now       func() time.Time

	mu      sync.Mutex
	lastSeq int64
}

var _ store.Store = (*Store)(nil)

// New creates a DynamoDB store on tableName.
func New(client DDBClient, tableName string, optFns ...func(o *Options)) *Store {
	opts := Options{Now: time.Now}
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Store{
		client:    client,
		tableName: tableName,
		vc:        codec.VectorCodec{Compression: opts.Compression},
		now:       opts.Now,
	}
}

func partition(scope model.Scope) types.AttributeValue {
	return &types.AttributeValueMemberS{Value: "#" + string(scope)}
}

func itemKey(scope model.Scope, id model.ItemID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrScope: partition(scope),
		attrID:    &types.AttributeValueMemberS{Value: string(id)},
	}
}

// nextSeq returns a strictly increasing wall-clock based sequence number.
func (s *Store) nextSeq() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	seq := s.now().UnixNano()
	if seq <= s.lastSeq {
		seq = s.lastSeq + 1
	}
	s.lastSeq = seq
	return seq
}

type row struct {
	id  model.ItemID
	seq int64
	vec []byte
	pos *model.Position
}

// query reads every item of the scope, ordered by seq.
func (s *Store) query(ctx context.Context, scope model.Scope) ([]row, error) {
	var rows []row
	var startKey map[string]types.AttributeValue
	for {
		resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			KeyConditionExpression: aws.String("#s = :s"),
			ExpressionAttributeNames: map[string]string{
				"#s": attrScope,
			},
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":s": partition(scope),
			},
			ConsistentRead:    aws.Bool(true),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("dynamo: query: %w", err)
		}
		for _, item := range resp.Items {
			r, err := parseRow(item)
			if err != nil {
				return nil, err
			}
			rows = append(rows, r)
		}
		if len(resp.LastEvaluatedKey) == 0 {
			break
		}
		startKey = resp.LastEvaluatedKey
	}

	sort.SliceStable(rows, func(i, j int) bool { return rows[i].seq < rows[j].seq })
	return rows, nil
}

func parseRow(item map[string]types.AttributeValue) (row, error) {
	var r row
	id, ok := item[attrID].(*types.AttributeValueMemberS)
	if !ok {
		return r, errors.New("dynamo: invalid id attribute")
	}
	r.id = model.ItemID(id.Value)

	seq, ok := item[attrSeq].(*types.AttributeValueMemberN)
	if !ok {
		return r, fmt.Errorf("dynamo: item %q: invalid seq attribute", r.id)
	}
	n, err := strconv.ParseInt(seq.Value, 10, 64)
	if err != nil {
		return r, fmt.Errorf("dynamo: item %q: parse seq: %w", r.id, err)
	}
	r.seq = n

	if vec, ok := item[attrVec].(*types.AttributeValueMemberB); ok {
		r.vec = vec.Value
	}

	x, okX := item[attrX].(*types.AttributeValueMemberN)
	y, okY := item[attrY].(*types.AttributeValueMemberN)
	if okX && okY {
		px, err := strconv.ParseFloat(x.Value, 64)
		if err != nil {
			return r, fmt.Errorf("dynamo: item %q: parse x: %w", r.id, err)
		}
		py, err := strconv.ParseFloat(y.Value, 64)
		if err != nil {
			return r, fmt.Errorf("dynamo: item %q: parse y: %w", r.id, err)
		}
		r.pos = &model.Position{X: px, Y: py}
	}
	return r, nil
}

// GetVectors implements store.Store.
func (s *Store) GetVectors(ctx context.Context, scope model.Scope) ([]model.Record, error) {
	rows, err := s.query(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.Record, 0, len(rows))
	for _, r := range rows {
		v, err := s.vc.Decode(r.vec)
		if err != nil {
			return nil, fmt.Errorf("dynamo: decode vector %q: %w", r.id, err)
		}
		out = append(out, model.Record{ID: r.id, Vector: v})
	}
	return out, nil
}

// AppendVector implements store.Store.
func (s *Store) AppendVector(ctx context.Context, scope model.Scope, id model.ItemID, vector model.Vector) error {
	data, err := s.vc.Encode(vector)
	if err != nil {
		return err
	}
	item := itemKey(scope, id)
	item[attrSeq] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.nextSeq(), 10)}
	item[attrVec] = &types.AttributeValueMemberB{Value: data}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrID,
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrAlreadyExists
		}
		return fmt.Errorf("dynamo: put item: %w", err)
	}
	return nil
}

// SetPosition implements store.Store.
func (s *Store) SetPosition(ctx context.Context, scope model.Scope, id model.ItemID, pos model.Position) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 itemKey(scope, id),
		UpdateExpression:    aws.String("SET #x = :x, #y = :y"),
		ConditionExpression: aws.String("attribute_exists(#id)"),
		ExpressionAttributeNames: map[string]string{
			"#id": attrID,
			"#x":  attrX,
			"#y":  attrY,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":x": &types.AttributeValueMemberN{Value: strconv.FormatFloat(pos.X, 'g', -1, 64)},
			":y": &types.AttributeValueMemberN{Value: strconv.FormatFloat(pos.Y, 'g', -1, 64)},
		},
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return store.ErrNotFound
		}
		return fmt.Errorf("dynamo: update item: %w", err)
	}
	return nil
}

// ListPositions implements store.Store.
func (s *Store) ListPositions(ctx context.Context, scope model.Scope) ([]model.Placement, error) {
	rows, err := s.query(ctx, scope)
	if err != nil {
		return nil, err
	}
	out := make([]model.Placement, 0, len(rows))
	for _, r := range rows {
		if r.pos != nil {
			out = append(out, model.Placement{ID: r.id, Position: *r.pos})
		}
	}
	return out, nil
}

// Delete implements store.Store.
func (s *Store) Delete(ctx context.Context, scope model.Scope, id model.ItemID) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       itemKey(scope, id),
	})
	if err != nil {
		return fmt.Errorf("dynamo: delete item: %w", err)
	}
	return nil
}
