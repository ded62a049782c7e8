package dynamo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/mntdherm/no-schema-update-sub001/internal/domain"
)

// TokenRepo manages single-use action tokens.
// PK: token. GSI: user_id-index (hash user_id) for invalidation sweeps.
type TokenRepo struct {
	client    *dynamodb.Client
	tableName string
}

func NewTokenRepo(client *dynamodb.Client, tableName string) *TokenRepo {
	return &TokenRepo{client: client, tableName: tableName}
}

func (r *TokenRepo) Put(ctx context.Context, t *domain.AuthToken) error {
	item, err := attributevalue.MarshalMap(t)
	if err != nil {
		return fmt.Errorf("marshal auth token: %w", err)
	}
	_, err = r.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(r.tableName),
		Item:      item,
	})
	return err
}

func (r *TokenRepo) GetByToken(ctx context.Context, token string) (*domain.AuthToken, error) {
	out, err := r.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(r.tableName),
		Key:       strKey("token", token),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("token not found: %w", domain.ErrNotFound)
	}
	var t domain.AuthToken
	if err := attributevalue.UnmarshalMap(out.Item, &t); err != nil {
		return nil, err
	}
	return &t, nil
}

// ListUnused returns every unconsumed token of the given (user, type) pair.
func (r *TokenRepo) ListUnused(ctx context.Context, userID string, typ domain.TokenType) ([]domain.AuthToken, error) {
	out, err := r.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(r.tableName),
		IndexName:              aws.String("user_id-index"),
		KeyConditionExpression: aws.String("user_id = :uid"),
		FilterExpression:       aws.String("#t = :typ AND used = :f"),
		ExpressionAttributeNames: map[string]string{
			"#t": "type",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":uid": &types.AttributeValueMemberS{Value: userID},
			":typ": &types.AttributeValueMemberS{Value: string(typ)},
			":f":   &types.AttributeValueMemberBOOL{Value: false},
		},
	})
	if err != nil {
		return nil, err
	}
	var tokens []domain.AuthToken
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &tokens); err != nil {
		return nil, err
	}
	return tokens, nil
}

// Claim flips used=false to used=true exactly once. The condition makes the
// transition atomic per token: a concurrent second claimant gets ErrConflict
// instead of silently re-consuming the token. reason is stored as
// invalidated_reason when non-empty (supersession); empty means consumption.
func (r *TokenRepo) Claim(ctx context.Context, token string, usedAt time.Time, reason string) error {
	updates := map[string]interface{}{
		fieldUsed:   true,
		fieldUsedAt: usedAt,
	}
	if reason != "" {
		updates[fieldInvalidatedReason] = reason
	}
	ue, err := buildUpdateExpr(updates)
	if err != nil {
		return err
	}
	ue.Values[":false"] = &types.AttributeValueMemberBOOL{Value: false}
	_, err = r.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 aws.String(r.tableName),
		Key:                       strKey("token", token),
		UpdateExpression:          aws.String(ue.Expr),
		ConditionExpression:       aws.String("used = :false"),
		ExpressionAttributeNames:  ue.Names,
		ExpressionAttributeValues: ue.Values,
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("token already consumed: %w", domain.ErrConflict)
		}
		return err
	}
	return nil
}
