package dynamodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/expression"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"go.uber.org/zap"

	"designgraph/application/ports"
	"designgraph/domain/core/aggregates"
	"designgraph/domain/patch"
	"designgraph/infrastructure/persistence"
	pkgerrors "designgraph/pkg/errors"
)

var _ ports.GraphStore = (*GraphStore)(nil)

// maxTransactItems is the DynamoDB limit on items per TransactWriteItems
const maxTransactItems = 100

const (
	entityGraph = "GRAPH"
	entityOp    = "OP"
	graphSK     = "GRAPH"
	opSKPrefix  = "OP#"
)

// Client is the subset of the DynamoDB API the store uses
type Client interface {
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
	TransactWriteItems(ctx context.Context, params *dynamodb.TransactWriteItemsInput, optFns ...func(*dynamodb.Options)) (*dynamodb.TransactWriteItemsOutput, error)
}

// GraphStore implements ports.GraphStore on a single DynamoDB table.
// A session is one partition: the graph item plus one item per ledger entry.
type GraphStore struct {
	client    Client
	tableName string
	opts      persistence.Options
	logger    *zap.Logger
}

// NewGraphStore creates a new GraphStore
func NewGraphStore(client Client, tableName string, logger *zap.Logger, opts ...persistence.Option) *GraphStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &GraphStore{
		client:    client,
		tableName: tableName,
		opts:      persistence.NewOptions(opts...),
		logger:    logger,
	}
}

// graphItem represents the DynamoDB item structure for a session graph
type graphItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	SessionID  string `dynamodbav:"SessionID"`
	Version    int64  `dynamodbav:"Version"`
	Graph      string `dynamodbav:"Graph"`
	NodeCount  int    `dynamodbav:"NodeCount"`
	EdgeCount  int    `dynamodbav:"EdgeCount"`
	CreatedAt  string `dynamodbav:"CreatedAt"`
	UpdatedAt  string `dynamodbav:"UpdatedAt"`
}

// opItem is one idempotency ledger entry. Version and Seq record where the
// op_id was first committed.
type opItem struct {
	PK         string `dynamodbav:"PK"`
	SK         string `dynamodbav:"SK"`
	EntityType string `dynamodbav:"EntityType"`
	OpID       string `dynamodbav:"OpID"`
	Version    int64  `dynamodbav:"Version"`
	Seq        int    `dynamodbav:"Seq"`
	AppliedAt  string `dynamodbav:"AppliedAt"`
}

func sessionPK(sessionID string) string {
	return fmt.Sprintf("SESSION#%s", sessionID)
}

func opSK(opID string) string {
	return opSKPrefix + opID
}

func (r *GraphStore) key(sessionID, sk string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: sessionPK(sessionID)},
		"SK": &types.AttributeValueMemberS{Value: sk},
	}
}

func newGraphItem(g *aggregates.Graph, createdAt, updatedAt string) (graphItem, error) {
	data, err := json.Marshal(g)
	if err != nil {
		return graphItem{}, fmt.Errorf("failed to marshal graph: %w", err)
	}
	return graphItem{
		PK:         sessionPK(g.SessionID),
		SK:         graphSK,
		EntityType: entityGraph,
		SessionID:  g.SessionID,
		Version:    g.Version,
		Graph:      string(data),
		NodeCount:  g.NodeCount(),
		EdgeCount:  g.EdgeCount(),
		CreatedAt:  createdAt,
		UpdatedAt:  updatedAt,
	}, nil
}

func (item graphItem) toGraph() (*aggregates.Graph, error) {
	var g aggregates.Graph
	if err := json.Unmarshal([]byte(item.Graph), &g); err != nil {
		return nil, fmt.Errorf("failed to decode graph %s: %w", item.SessionID, err)
	}
	g.SessionID = item.SessionID
	g.Version = item.Version
	return g.Normalize(), nil
}

// CreateGraph writes the version-1 graph item if the session is new
func (r *GraphStore) CreateGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	g, err := aggregates.NewGraph(sessionID)
	if err != nil {
		return nil, pkgerrors.NewValidationError(err.Error())
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	item, err := newGraphItem(g, now, now)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph item: %w", err)
	}

	expr, err := expression.NewBuilder().
		WithCondition(expression.AttributeNotExists(expression.Name("PK"))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:                 aws.String(r.tableName),
		Item:                      av,
		ConditionExpression:       expr.Condition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return nil, pkgerrors.NewSessionExists(sessionID)
		}
		return nil, pkgerrors.NewDatabaseError("create graph", err)
	}

	r.logger.Info("Graph created in DynamoDB", zap.String("sessionID", sessionID))
	return g, nil
}

// GetGraph reads the graph item with a strongly consistent read
func (r *GraphStore) GetGraph(ctx context.Context, sessionID string) (*aggregates.Graph, error) {
	item, err := r.getGraphItem(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	return item.toGraph()
}

func (r *GraphStore) getGraphItem(ctx context.Context, sessionID string) (graphItem, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            r.key(sessionID, graphSK),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return graphItem{}, pkgerrors.NewDatabaseError("get graph", err)
	}
	if out.Item == nil {
		return graphItem{}, pkgerrors.NewSessionNotFound(sessionID)
	}

	var item graphItem
	if err := attributevalue.UnmarshalMap(out.Item, &item); err != nil {
		return graphItem{}, fmt.Errorf("failed to unmarshal graph item: %w", err)
	}
	return item, nil
}

// ApplyPatchCAS commits the new graph item and the ledger items in one
// TransactWriteItems call. The graph put is conditioned on the expected
// version; a cancelled transaction on that condition is a version mismatch.
func (r *GraphStore) ApplyPatchCAS(ctx context.Context, sessionID string, expectedVersion int64, p patch.Patch) (*aggregates.Graph, error) {
	opIDs := p.OpIDs()
	if len(opIDs)+1 > maxTransactItems {
		return nil, pkgerrors.NewInvalidPatch("", fmt.Sprintf("patch has %d distinct op ids; at most %d fit one commit", len(opIDs), maxTransactItems-1))
	}

	current, err := r.getGraphItem(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	g, err := current.toGraph()
	if err != nil {
		return nil, err
	}

	var ledger []string
	if r.opts.LedgerDedup {
		if ledger, err = r.AppliedOps(ctx, sessionID); err != nil {
			return nil, err
		}
	}

	next, err := persistence.Advance(g, expectedVersion, p, ledger, r.opts.LedgerDedup)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	items, err := r.transactItems(next, current.CreatedAt, now, expectedVersion, opIDs)
	if err != nil {
		return nil, err
	}

	_, err = r.client.TransactWriteItems(ctx, &dynamodb.TransactWriteItemsInput{TransactItems: items})
	if err != nil {
		if isConditionFailure(err) {
			return nil, pkgerrors.NewVersionMismatch(sessionID, expectedVersion, -1).WithCause(err)
		}
		r.logger.Error("Failed to commit patch",
			zap.String("sessionID", sessionID),
			zap.String("patchID", p.ID),
			zap.Error(err))
		return nil, pkgerrors.NewDatabaseError("commit patch", err)
	}

	r.logger.Info("Patch committed to DynamoDB",
		zap.String("sessionID", sessionID),
		zap.String("patchID", p.ID),
		zap.Int64("version", next.Version),
		zap.Int("ledgerItems", len(opIDs)))
	return next, nil
}

func (r *GraphStore) transactItems(next *aggregates.Graph, createdAt, now string, expected int64, opIDs []string) ([]types.TransactWriteItem, error) {
	item, err := newGraphItem(next, createdAt, now)
	if err != nil {
		return nil, err
	}
	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal graph item: %w", err)
	}
	cond, err := expression.NewBuilder().
		WithCondition(expression.Name("Version").Equal(expression.Value(expected))).
		Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build condition: %w", err)
	}

	items := make([]types.TransactWriteItem, 0, len(opIDs)+1)
	items = append(items, types.TransactWriteItem{
		Put: &types.Put{
			TableName:                 aws.String(r.tableName),
			Item:                      av,
			ConditionExpression:       cond.Condition(),
			ExpressionAttributeNames:  cond.Names(),
			ExpressionAttributeValues: cond.Values(),
		},
	})

	// Ledger entries keep their first commit position; re-used op ids
	// leave the existing item as it was.
	for seq, opID := range opIDs {
		update := expression.
			Set(expression.Name("EntityType"), expression.Value(entityOp)).
			Set(expression.Name("OpID"), expression.Value(opID)).
			Set(expression.Name("Version"), expression.IfNotExists(expression.Name("Version"), expression.Value(next.Version))).
			Set(expression.Name("Seq"), expression.IfNotExists(expression.Name("Seq"), expression.Value(seq))).
			Set(expression.Name("AppliedAt"), expression.IfNotExists(expression.Name("AppliedAt"), expression.Value(now)))
		expr, err := expression.NewBuilder().WithUpdate(update).Build()
		if err != nil {
			return nil, fmt.Errorf("failed to build ledger update: %w", err)
		}
		items = append(items, types.TransactWriteItem{
			Update: &types.Update{
				TableName:                 aws.String(r.tableName),
				Key:                       r.key(next.SessionID, opSK(opID)),
				UpdateExpression:          expr.Update(),
				ExpressionAttributeNames:  expr.Names(),
				ExpressionAttributeValues: expr.Values(),
			},
		})
	}
	return items, nil
}

func isConditionFailure(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) {
		return false
	}
	for _, reason := range tce.CancellationReasons {
		if aws.ToString(reason.Code) == "ConditionalCheckFailed" {
			return true
		}
	}
	return false
}

// AppliedOps returns the ledger ordered by first commit
func (r *GraphStore) AppliedOps(ctx context.Context, sessionID string) ([]string, error) {
	keyCond := expression.Key("PK").Equal(expression.Value(sessionPK(sessionID)))
	expr, err := expression.NewBuilder().WithKeyCondition(keyCond).Build()
	if err != nil {
		return nil, fmt.Errorf("failed to build key condition: %w", err)
	}

	paginator := dynamodb.NewQueryPaginator(r.client, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		KeyConditionExpression:    expr.KeyCondition(),
		ExpressionAttributeNames:  expr.Names(),
		ExpressionAttributeValues: expr.Values(),
		ConsistentRead:            aws.Bool(true),
	})

	var (
		found bool
		ops   []opItem
	)
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, pkgerrors.NewDatabaseError("query ledger", err)
		}
		for _, raw := range page.Items {
			sk, _ := raw["SK"].(*types.AttributeValueMemberS)
			switch {
			case sk == nil:
				continue
			case sk.Value == graphSK:
				found = true
			case strings.HasPrefix(sk.Value, opSKPrefix):
				var op opItem
				if err := attributevalue.UnmarshalMap(raw, &op); err != nil {
					return nil, fmt.Errorf("failed to unmarshal ledger item: %w", err)
				}
				ops = append(ops, op)
			}
		}
	}
	if !found {
		return nil, pkgerrors.NewSessionNotFound(sessionID)
	}

	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Version != ops[j].Version {
			return ops[i].Version < ops[j].Version
		}
		return ops[i].Seq < ops[j].Seq
	})
	out := make([]string, len(ops))
	for i, op := range ops {
		out[i] = op.OpID
	}
	return out, nil
}
