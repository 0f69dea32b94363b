package documents

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"
)

// DynamoRepository keeps audit records in a DynamoDB table keyed by the
// document id. Writes use condition expressions so the pending-to-signed
// transition stays exactly-once without table locks.
type DynamoRepository struct {
	client *dynamodb.Client
	table  string
}

// NewDynamoRepository returns the DynamoDB-backed audit repository.
func NewDynamoRepository(client *dynamodb.Client, table string) *DynamoRepository {
	return &DynamoRepository{client: client, table: table}
}

type dynamoAuditItem struct {
	ID           string       `dynamodbav:"id"`
	OriginalHash string       `dynamodbav:"original_hash"`
	SignedHash   *string      `dynamodbav:"signed_hash,omitempty"`
	Placement    *BoundingBox `dynamodbav:"placement,omitempty"`
	Status       string       `dynamodbav:"status"`
	CreatedAt    string       `dynamodbav:"created_at"`
}

func (r *DynamoRepository) Create(ctx context.Context, rec *AuditRecord) error {
	item, err := attributevalue.MarshalMap(dynamoAuditItem{
		ID:           rec.ID.String(),
		OriginalHash: rec.OriginalHash,
		SignedHash:   rec.SignedHash,
		Placement:    rec.Placement,
		Status:       string(rec.Status),
		CreatedAt:    rec.CreatedAt.UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}

	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(r.table),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(id)"),
	})
	if err != nil {
		var conditionFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			return ErrDuplicateRecord
		}
		return fmt.Errorf("put audit record: %w", err)
	}
	return nil
}

func (r *DynamoRepository) Get(ctx context.Context, id uuid.UUID) (*AuditRecord, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.table),
		Key:       recordKey(id),
	})
	if err != nil {
		return nil, fmt.Errorf("get audit record: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return unmarshalAuditItem(out.Item)
}

func (r *DynamoRepository) MarkSigned(ctx context.Context, id uuid.UUID, signedHash string, placement BoundingBox) error {
	values, err := attributevalue.MarshalMap(map[string]interface{}{
		":signed":    string(StatusSigned),
		":pending":   string(StatusPending),
		":hash":      signedHash,
		":placement": placement,
	})
	if err != nil {
		return fmt.Errorf("marshal signed attributes: %w", err)
	}

	// "status" is a DynamoDB reserved word.
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.table),
		Key:                       recordKey(id),
		UpdateExpression:          aws.String("SET #status = :signed, signed_hash = :hash, placement = :placement"),
		ConditionExpression:       aws.String("attribute_exists(id) AND #status = :pending"),
		ExpressionAttributeNames:  map[string]string{"#status": "status"},
		ExpressionAttributeValues: values,
	})
	if err != nil {
		var conditionFailed *ddbtypes.ConditionalCheckFailedException
		if errors.As(err, &conditionFailed) {
			if _, getErr := r.Get(ctx, id); getErr != nil {
				return getErr
			}
			return ErrAlreadySigned
		}
		return fmt.Errorf("update audit record: %w", err)
	}
	return nil
}

func (r *DynamoRepository) List(ctx context.Context) ([]AuditRecord, error) {
	var recs []AuditRecord
	var startKey map[string]ddbtypes.AttributeValue

	for {
		out, err := r.client.Scan(ctx, &dynamodb.ScanInput{
			TableName:         aws.String(r.table),
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("scan audit records: %w", err)
		}

		for _, item := range out.Items {
			rec, err := unmarshalAuditItem(item)
			if err != nil {
				return nil, err
			}
			recs = append(recs, *rec)
		}

		if len(out.LastEvaluatedKey) == 0 {
			break
		}
		startKey = out.LastEvaluatedKey
	}

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].CreatedAt.After(recs[j].CreatedAt)
	})
	return recs, nil
}

func recordKey(id uuid.UUID) map[string]ddbtypes.AttributeValue {
	return map[string]ddbtypes.AttributeValue{
		"id": &ddbtypes.AttributeValueMemberS{Value: id.String()},
	}
}

func unmarshalAuditItem(item map[string]ddbtypes.AttributeValue) (*AuditRecord, error) {
	var stored dynamoAuditItem
	if err := attributevalue.UnmarshalMap(item, &stored); err != nil {
		return nil, fmt.Errorf("unmarshal audit record: %w", err)
	}

	id, err := uuid.Parse(stored.ID)
	if err != nil {
		return nil, fmt.Errorf("parse audit record id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse audit record timestamp: %w", err)
	}

	return &AuditRecord{
		ID:           id,
		OriginalHash: stored.OriginalHash,
		SignedHash:   stored.SignedHash,
		Placement:    stored.Placement,
		Status:       AuditStatus(stored.Status),
		CreatedAt:    createdAt,
	}, nil
}
