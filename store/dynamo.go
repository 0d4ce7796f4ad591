package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/xid"
)

// DynamoAPI is the subset of the DynamoDB client used by DynamoStore.
// *dynamodb.Client satisfies it.
type DynamoAPI interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	DescribeTable(ctx context.Context, params *dynamodb.DescribeTableInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DescribeTableOutput, error)
}

// DynamoStore maps collections to DynamoDB tables keyed by a single partition key.
type DynamoStore struct {
	client DynamoAPI
	config DynamoConfig

	mu       sync.Mutex
	verified map[string]bool
}

// NewDynamo creates a new DynamoStore instance.
func NewDynamo(client DynamoAPI, config DynamoConfig) *DynamoStore {
	config.validate()
	return &DynamoStore{
		client:   client,
		config:   config,
		verified: make(map[string]bool),
	}
}

// TableName returns the DynamoDB table backing a collection.
func (s *DynamoStore) TableName(collection string) string {
	return s.config.TablePrefix + collection
}

// Collection implements Store.
func (s *DynamoStore) Collection(ctx context.Context, name, keyField string) (Collection, error) {
	table := s.TableName(name)
	if s.config.VerifyTables {
		if err := s.verifyTable(ctx, table); err != nil {
			return nil, err
		}
	}
	return &dynamoCollection{store: s, name: name, table: table, keyField: keyField}, nil
}

func (s *DynamoStore) verifyTable(ctx context.Context, table string) error {
	s.mu.Lock()
	ok := s.verified[table]
	s.mu.Unlock()
	if ok {
		return nil
	}

	_, err := s.client.DescribeTable(ctx, &dynamodb.DescribeTableInput{
		TableName: aws.String(table),
	})
	if err != nil {
		var nf *types.ResourceNotFoundException
		if errors.As(err, &nf) {
			return fmt.Errorf("%w: %s", ErrCollectionNotFound, table)
		}
		return fmt.Errorf("describe table %s: %w", table, err)
	}

	s.mu.Lock()
	s.verified[table] = true
	s.mu.Unlock()
	return nil
}

// Get retrieves a document by key, returning ErrNotFound if soft-deleted or missing.
func (s *DynamoStore) Get(ctx context.Context, collection, keyField string, key any) (Document, error) {
	keyAttr, err := marshalValue(key)
	if err != nil {
		return nil, fmt.Errorf("marshal key: %w", err)
	}
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.TableName(collection)),
		Key:       map[string]types.AttributeValue{keyField: keyAttr},
	})
	if err != nil {
		return nil, err
	}
	if result.Item == nil || IsDeleted(result.Item, s.config.TTLAttribute) {
		return nil, ErrNotFound
	}

	var doc Document
	if err := attributevalue.UnmarshalMap(result.Item, &doc); err != nil {
		return nil, fmt.Errorf("unmarshal item: %w", err)
	}
	return doc, nil
}

type dynamoCollection struct {
	store    *DynamoStore
	name     string
	table    string
	keyField string
}

func (c *dynamoCollection) Name() string { return c.name }

// Insert puts the document on condition that no live item with the same key exists.
func (c *dynamoCollection) Insert(ctx context.Context, doc Document) (int, error) {
	item, err := marshalDocument(doc)
	if err != nil {
		return 0, err
	}
	if _, ok := item[c.keyField]; !ok {
		return 0, fmt.Errorf("insert into %s: missing key attribute %q", c.table, c.keyField)
	}

	cond := "attribute_not_exists(#k)"
	names := map[string]string{"#k": c.keyField}
	if c.store.config.SoftDelete {
		// A soft-deleted item is replaced.
		cond += " OR attribute_exists(#ttl)"
		names["#ttl"] = c.store.config.TTLAttribute
	}

	_, err = c.store.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                aws.String(c.table),
		Item:                     item,
		ConditionExpression:      aws.String(cond),
		ExpressionAttributeNames: names,
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrDuplicateKey
		}
		return 0, err
	}
	return 1, nil
}

// Update sets the delta attributes on the item selected by filter.
// A failed condition means nothing matched and is reported as 0, not an error.
func (c *dynamoCollection) Update(ctx context.Context, filter Filter, delta Document) (int, error) {
	key, cond, err := c.condition(filter)
	if err != nil {
		return 0, err
	}

	// Add user-provided attributes
	var setClauses []string
	fields := make([]string, 0, len(delta))
	for k := range delta {
		if k == c.keyField {
			continue
		}
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for i, k := range fields {
		v, err := marshalValue(delta[k])
		if err != nil {
			return 0, fmt.Errorf("marshal %s: %w", k, err)
		}
		nameKey := fmt.Sprintf("#attr%d", i)
		valueKey := fmt.Sprintf(":val%d", i)
		cond.names[nameKey] = k
		cond.values[valueKey] = v
		setClauses = append(setClauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	input := &dynamodb.UpdateItemInput{
		TableName:                aws.String(c.table),
		Key:                      key,
		ConditionExpression:      aws.String(cond.expr()),
		ExpressionAttributeNames: cond.names,
	}
	if len(setClauses) > 0 {
		input.UpdateExpression = aws.String("SET " + strings.Join(setClauses, ", "))
	}
	if len(cond.values) > 0 {
		input.ExpressionAttributeValues = cond.values
	}

	_, err = c.store.client.UpdateItem(ctx, input)
	return conditional(err)
}

// Remove deletes the item selected by filter, or sets its TTL when soft deletes are enabled.
func (c *dynamoCollection) Remove(ctx context.Context, filter Filter) (int, error) {
	key, cond, err := c.condition(filter)
	if err != nil {
		return 0, err
	}

	if c.store.config.SoftDelete {
		cond.values[":now"] = nowValue()
		_, err := c.store.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
			TableName:                 aws.String(c.table),
			Key:                       key,
			UpdateExpression:          aws.String("SET #ttl = :now"),
			ConditionExpression:       aws.String(cond.expr()),
			ExpressionAttributeNames:  cond.names,
			ExpressionAttributeValues: cond.values,
		})
		return conditional(err)
	}

	input := &dynamodb.DeleteItemInput{
		TableName:                aws.String(c.table),
		Key:                      key,
		ConditionExpression:      aws.String(cond.expr()),
		ExpressionAttributeNames: cond.names,
	}
	if len(cond.values) > 0 {
		input.ExpressionAttributeValues = cond.values
	}
	_, err = c.store.client.DeleteItem(ctx, input)
	return conditional(err)
}

// conditional maps a conditional write outcome to a matched count.
func conditional(err error) (int, error) {
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, nil
		}
		return 0, err
	}
	return 1, nil
}

// condBuilder accumulates a ConditionExpression and its placeholders.
type condBuilder struct {
	clauses []string
	names   map[string]string
	values  map[string]types.AttributeValue
}

func (b *condBuilder) expr() string {
	return strings.Join(b.clauses, " AND ")
}

// condition builds the item key and the filter condition: the item must
// exist, must hold every Match value, and must not be soft-deleted.
func (c *dynamoCollection) condition(filter Filter) (map[string]types.AttributeValue, *condBuilder, error) {
	keyAttr, err := marshalValue(filter.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("marshal key: %w", err)
	}
	b := &condBuilder{
		clauses: []string{"attribute_exists(#k)"},
		names:   map[string]string{"#k": c.keyField},
		values:  map[string]types.AttributeValue{},
	}

	fields := make([]string, 0, len(filter.Match))
	for k := range filter.Match {
		fields = append(fields, k)
	}
	sort.Strings(fields)
	for i, k := range fields {
		nameKey := fmt.Sprintf("#cond%d", i)
		b.names[nameKey] = k
		valueKey := fmt.Sprintf(":cond%d", i)
		want := filter.Match[k]
		if want == nil {
			// Absent, or stored as an explicit NULL.
			b.values[valueKey] = &types.AttributeValueMemberS{Value: "NULL"}
			b.clauses = append(b.clauses, fmt.Sprintf("(attribute_not_exists(%s) OR attribute_type(%s, %s))", nameKey, nameKey, valueKey))
			continue
		}
		v, err := marshalValue(want)
		if err != nil {
			return nil, nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		b.values[valueKey] = v
		b.clauses = append(b.clauses, fmt.Sprintf("%s = %s", nameKey, valueKey))
	}

	if c.store.config.SoftDelete {
		b.names["#ttl"] = c.store.config.TTLAttribute
		b.clauses = append(b.clauses, liveCondition())
	}

	return map[string]types.AttributeValue{c.keyField: keyAttr}, b, nil
}

// marshalDocument converts a document into a DynamoDB item.
func marshalDocument(doc Document) (map[string]types.AttributeValue, error) {
	item := make(map[string]types.AttributeValue, len(doc))
	for k, v := range doc {
		av, err := marshalValue(v)
		if err != nil {
			return nil, fmt.Errorf("marshal %s: %w", k, err)
		}
		item[k] = av
	}
	return item, nil
}

// marshalValue converts a single value, storing binary ids as B and times as
// RFC 3339 strings.
func marshalValue(v any) (types.AttributeValue, error) {
	switch x := v.(type) {
	case nil:
		return &types.AttributeValueMemberNULL{Value: true}, nil
	case xid.ID:
		return &types.AttributeValueMemberB{Value: x.Bytes()}, nil
	case time.Time:
		return &types.AttributeValueMemberS{Value: x.UTC().Format(time.RFC3339Nano)}, nil
	}
	return attributevalue.Marshal(v)
}
