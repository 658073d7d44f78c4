package notifications

import (
	"context"
	"errors"
	"fmt"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
)

// RecipientIndex is the GSI on recipient_id, sorted by created_at.
const RecipientIndex = "recipient_id-index"

type Store struct {
	client    aws.DynamoDBAPI
	tableName string
}

func NewStore(client aws.DynamoDBAPI, tableName string) *Store {
	return &Store{client: client, tableName: tableName}
}

// Record stores n unless a notification with the same id exists.
// Returns created=false for duplicates.
func (s *Store) Record(ctx context.Context, n Notification) (bool, error) {
	item, err := aws.MarshalMap(n)
	if err != nil {
		return false, fmt.Errorf("marshal notification: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
		TableName:           &s.tableName,
		Item:                item,
		ConditionExpression: sdkaws.String("attribute_not_exists(notification_id)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("put notification: %w", err)
	}
	return true, nil
}

// ListForRecipient returns a recipient's notifications, newest first.
func (s *Store) ListForRecipient(ctx context.Context, recipientID string) ([]Notification, error) {
	out, err := s.client.Query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              sdkaws.String(RecipientIndex),
		KeyConditionExpression: sdkaws.String("recipient_id = :r"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":r": &types.AttributeValueMemberS{Value: recipientID},
		},
		ScanIndexForward: sdkaws.Bool(false),
		Limit:            sdkaws.Int32(50),
	})
	if err != nil {
		return nil, fmt.Errorf("query notifications: %w", err)
	}
	list := make([]Notification, 0, len(out.Items))
	if err := attributevalue.UnmarshalListOfMaps(out.Items, &list); err != nil {
		return nil, fmt.Errorf("unmarshal notifications: %w", err)
	}
	return list, nil
}
