// Package dynamodb implements the node repository on a single DynamoDB
// table. Layout:
//
//	primary key:  PK = "TENANT#<userId>#PARENT#<parentId>", SK = <name>
//	ItemIdIndex:  hash ItemId (point lookups)
//	PathIndex:    hash UserId, range Path (prefix scans)
//
// The mutable Name is part of the primary key, which is why rename is a
// destroy-and-recreate sequence in the layer above.
package dynamodb

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
	"go.uber.org/zap"

	"github.com/danilohgds/f-system/application/ports"
	"github.com/danilohgds/f-system/domain/filesystem"
	pkgerrors "github.com/danilohgds/f-system/pkg/errors"
)

const (
	// DynamoDB caps BatchWriteItem at 25 requests.
	maxBatchSize = 25

	defaultItemIDIndex = "ItemIdIndex"
	defaultPathIndex   = "PathIndex"
)

// API is the subset of the DynamoDB client the repository uses,
// satisfied by *dynamodb.Client.
type API interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, params *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	BatchWriteItem(ctx context.Context, params *dynamodb.BatchWriteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.BatchWriteItemOutput, error)
}

// NodeRepository implements ports.NodeRepository against DynamoDB.
type NodeRepository struct {
	client      API
	tableName   string
	itemIDIndex string
	pathIndex   string
	logger      *zap.Logger
}

// NewNodeRepository creates a new NodeRepository
func NewNodeRepository(client API, tableName, itemIDIndex, pathIndex string, logger *zap.Logger) ports.NodeRepository {
	if itemIDIndex == "" {
		itemIDIndex = defaultItemIDIndex
	}
	if pathIndex == "" {
		pathIndex = defaultPathIndex
	}
	return &NodeRepository{
		client:      client,
		tableName:   tableName,
		itemIDIndex: itemIDIndex,
		pathIndex:   pathIndex,
		logger:      logger,
	}
}

// nodeItem is the DynamoDB item shape for a node
type nodeItem struct {
	PK        string `dynamodbav:"PK"`
	SK        string `dynamodbav:"SK"`
	ItemID    string `dynamodbav:"ItemId"`
	ParentID  string `dynamodbav:"ParentId"`
	Name      string `dynamodbav:"Name"`
	Type      string `dynamodbav:"Type"`
	Path      string `dynamodbav:"Path"`
	Depth     int    `dynamodbav:"Depth"`
	UserID    string `dynamodbav:"UserId"`
	CreatedAt string `dynamodbav:"CreatedAt"`
	UpdatedAt string `dynamodbav:"UpdatedAt"`
}

// partitionKey builds the tenant-scoped partition key for a parent.
func partitionKey(userID, parentID string) string {
	return fmt.Sprintf("TENANT#%s#PARENT#%s", userID, parentID)
}

func primaryKey(userID string, key filesystem.Key) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: partitionKey(userID, key.ParentID)},
		"SK": &types.AttributeValueMemberS{Value: key.Name},
	}
}

func toItem(node *filesystem.Node) nodeItem {
	return nodeItem{
		PK:        partitionKey(node.UserID, node.ParentID),
		SK:        node.Name,
		ItemID:    node.ItemID,
		ParentID:  node.ParentID,
		Name:      node.Name,
		Type:      string(node.Type),
		Path:      node.Path,
		Depth:     node.Depth,
		UserID:    node.UserID,
		CreatedAt: node.CreatedAt.UTC().Format(time.RFC3339Nano),
		UpdatedAt: node.UpdatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func fromItem(item nodeItem) (*filesystem.Node, error) {
	createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse CreatedAt %q: %w", item.CreatedAt, err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, item.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to parse UpdatedAt %q: %w", item.UpdatedAt, err)
	}
	return &filesystem.Node{
		ParentID:  item.ParentID,
		Name:      item.Name,
		Depth:     item.Depth,
		ItemID:    item.ItemID,
		Path:      item.Path,
		Type:      filesystem.NodeType(item.Type),
		UserID:    item.UserID,
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}

// FindByID resolves a node through the ItemId index. The index should
// never hold more than one match under correct writers; the first page's
// first item is returned regardless.
func (r *NodeRepository) FindByID(ctx context.Context, itemID string) (*filesystem.Node, error) {
	keyCond := expression.Key("ItemId").Equal(expression.Value(itemID))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	result, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.itemIDIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		Limit:                     aws.Int32(1),
	})
	if err != nil {
		return nil, r.storeError("FindByID", err)
	}

	if len(result.Items) == 0 {
		return nil, pkgerrors.NewNotFoundError("item")
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(result.Items[0], &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromItem(item)
}

// FindByKey loads a node by its (ParentID, Name) storage key.
func (r *NodeRepository) FindByKey(ctx context.Context, userID, parentID, name string) (*filesystem.Node, error) {
	result, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       primaryKey(userID, filesystem.Key{ParentID: parentID, Name: name}),
	})
	if err != nil {
		return nil, r.storeError("FindByKey", err)
	}

	if result.Item == nil {
		return nil, pkgerrors.NewNotFoundError("item")
	}

	var item nodeItem
	if err := attributevalue.UnmarshalMap(result.Item, &item); err != nil {
		return nil, fmt.Errorf("failed to unmarshal node: %w", err)
	}
	return fromItem(item)
}

// ListChildren returns every node in the parent's partition, paging
// through all result pages before returning.
func (r *NodeRepository) ListChildren(ctx context.Context, userID, parentID string) ([]filesystem.Node, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(partitionKey(userID, parentID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	return r.queryAll(ctx, "ListChildren", &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// FindByPathPrefix scans the tenant's path index for every node whose
// Path begins with prefix. Paging through every page before returning is
// load-bearing: a truncated read here silently shrinks the set a rename
// or delete cascade later acts upon.
func (r *NodeRepository) FindByPathPrefix(ctx context.Context, userID, prefix string) ([]filesystem.Node, error) {
	keyCond := expression.Key("UserId").Equal(expression.Value(userID)).
		And(expression.Key("Path").BeginsWith(prefix))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build query expression: %w", err)
	}

	return r.queryAll(ctx, "FindByPathPrefix", &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String(r.pathIndex),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
}

// queryAll runs a query to exhaustion, following LastEvaluatedKey.
func (r *NodeRepository) queryAll(ctx context.Context, operation string, input *dynamodb.QueryInput) ([]filesystem.Node, error) {
	var nodes []filesystem.Node

	for {
		result, err := r.client.Query(ctx, input)
		if err != nil {
			return nil, r.storeError(operation, err)
		}

		for _, raw := range result.Items {
			var item nodeItem
			if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
				return nil, fmt.Errorf("failed to unmarshal node: %w", err)
			}
			node, err := fromItem(item)
			if err != nil {
				return nil, err
			}
			nodes = append(nodes, *node)
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}

	return nodes, nil
}

// Save persists a node, overwriting any item under the same key.
func (r *NodeRepository) Save(ctx context.Context, node *filesystem.Node) error {
	av, err := attributevalue.MarshalMap(toItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      av,
	}); err != nil {
		return r.storeError("Save", err)
	}

	r.logger.Debug("Node saved",
		zap.String("userID", node.UserID),
		zap.String("itemID", node.ItemID),
		zap.String("path", node.Path),
	)
	return nil
}

// SaveIfAbsent persists a node only when its key is unoccupied.
func (r *NodeRepository) SaveIfAbsent(ctx context.Context, node *filesystem.Node) error {
	av, err := attributevalue.MarshalMap(toItem(node))
	if err != nil {
		return fmt.Errorf("failed to marshal node: %w", err)
	}

	if _, err := r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.tableName),
		Item:                av,
		ConditionExpression: aws.String("attribute_not_exists(PK) AND attribute_not_exists(SK)"),
	}); err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return pkgerrors.NewConflictError("item already exists")
		}
		return r.storeError("SaveIfAbsent", err)
	}
	return nil
}

// UpdatePath rewrites a node's Path and UpdatedAt in place; the item's
// key attributes are untouched.
func (r *NodeRepository) UpdatePath(ctx context.Context, node *filesystem.Node, newPath string) error {
	now := time.Now().UTC()

	update := expression.Set(expression.Name("Path"), expression.Value(newPath)).
		Set(expression.Name("UpdatedAt"), expression.Value(now.Format(time.RFC3339Nano)))
	expr, err := expression.NewBuilder().WithUpdate(update).Build()
	if err != nil {
		return fmt.Errorf("failed to build update expression: %w", err)
	}

	if _, err := r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       primaryKey(node.UserID, node.Key()),
		UpdateExpression:          expr.Update(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	}); err != nil {
		return r.storeError("UpdatePath", err)
	}

	node.Path = newPath
	node.UpdatedAt = now
	return nil
}

// Delete removes a single item by key. Deleting a missing item is a
// no-op, matching DeleteItem semantics.
func (r *NodeRepository) Delete(ctx context.Context, userID string, key filesystem.Key) error {
	if _, err := r.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       primaryKey(userID, key),
	}); err != nil {
		return r.storeError("Delete", err)
	}
	return nil
}

// DeleteBatch removes the keyed items in chunks of the store's batch
// limit. Failed chunks and unprocessed requests are counted as failures,
// not retried, and never abort the remaining chunks.
func (r *NodeRepository) DeleteBatch(ctx context.Context, userID string, keys []filesystem.Key) (deleted, failed int) {
	for _, chunk := range chunkKeys(keys, maxBatchSize) {
		requests := make([]types.WriteRequest, 0, len(chunk))
		for _, key := range chunk {
			requests = append(requests, types.WriteRequest{
				DeleteRequest: &types.DeleteRequest{Key: primaryKey(userID, key)},
			})
		}

		result, err := r.client.BatchWriteItem(ctx, &dynamodb.BatchWriteItemInput{
			RequestItems: map[string][]types.WriteRequest{
				r.tableName: requests,
			},
		})
		if err != nil {
			failed += len(chunk)
			r.logger.Warn("Batch delete failed",
				zap.String("userID", userID),
				zap.Int("batchSize", len(chunk)),
				zap.Error(err),
			)
			continue
		}

		unprocessed := len(result.UnprocessedItems[r.tableName])
		deleted += len(chunk) - unprocessed
		failed += unprocessed
		if unprocessed > 0 {
			r.logger.Warn("Batch delete left unprocessed items",
				zap.String("userID", userID),
				zap.Int("unprocessed", unprocessed),
			)
		}
	}
	return deleted, failed
}

// chunkKeys splits keys into slices of at most size.
func chunkKeys(keys []filesystem.Key, size int) [][]filesystem.Key {
	var chunks [][]filesystem.Key
	for i := 0; i < len(keys); i += size {
		end := i + size
		if end > len(keys) {
			end = len(keys)
		}
		chunks = append(chunks, keys[i:end])
	}
	return chunks
}

// storeError classifies a DynamoDB failure. API-level failures are
// surfaced as BackendUnavailable so callers can retry with backoff;
// this layer never retries them itself.
func (r *NodeRepository) storeError(operation string, err error) error {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		r.logger.Error("DynamoDB operation failed",
			zap.String("operation", operation),
			zap.String("code", apiErr.ErrorCode()),
			zap.Error(err),
		)
		return pkgerrors.NewUnavailableError(operation, err)
	}

	r.logger.Error("DynamoDB call failed",
		zap.String("operation", operation),
		zap.Error(err),
	)
	return pkgerrors.NewUnavailableError(operation, err)
}
