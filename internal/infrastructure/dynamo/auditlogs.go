package dynamo

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
)

// AuditLogRepo appends audit entries. There is no update or delete:
// the table is append-only by construction.
type AuditLogRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewAuditLogRepo(client *dynamodb.Client, tableName string) *AuditLogRepo {
	return &AuditLogRepo{client: client, tableName: tableName}
}

func (r *AuditLogRepo) Put(ctx context.Context, e *domain.AuditLogEntry) error {
	item, err := attributevalue.MarshalMap(e)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

// ListByUser returns the newest entries for a user, newest first.
func (r *AuditLogRepo) ListByUser(ctx context.Context, userID string, limit int32) ([]domain.AuditLogEntry, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:                 aws.String(r.tableName),
		IndexName:                 aws.String("user_id-created_at-index"),
		KeyConditionExpression:    aws.String("user_id = :uid"),
		ExpressionAttributeValues: strAttr(":uid", userID),
		ScanIndexForward:          aws.Bool(false),
		Limit:                     aws.Int32(limit),
	})
	if err != nil {
		return nil, err
	}
	var entries []domain.AuditLogEntry
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &entries); err != nil {
		return nil, err
	}
	return entries, nil
}
