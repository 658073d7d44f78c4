package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	dyn "github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"

	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/aws"
	"github.com/AlbinMath/FreshCart-A-Smart-Fresh-Product-Delivery-System-sub002/internal/idempotency"
)

// GSI names on the orders table.
const (
	UserIndex   = "user_id-index"
	SellerIndex = "seller_id-index"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrConditionFailed means the order was not in the expected state when the write landed.
	ErrConditionFailed = errors.New("order state changed, conditional check failed")
	// ErrCheckoutKeyExists means an order was already created under the idempotency key.
	ErrCheckoutKeyExists = errors.New("checkout key already used")
)

// Store encapsulates operations on the orders table.
type Store struct {
	client           aws.DynamoDBAPI
	tableName        string
	idempotencyTable string
	idempotencyTTL   time.Duration
	nowFunc          func() time.Time
}

// NewStore creates a new orders Store. idempotencyTable may be empty, in which
// case checkout keys are ignored.
func NewStore(client aws.DynamoDBAPI, tableName, idempotencyTable string, idempotencyTTL time.Duration) *Store {
	return &Store{
		client:           client,
		tableName:        tableName,
		idempotencyTable: idempotencyTable,
		idempotencyTTL:   idempotencyTTL,
		nowFunc:          time.Now,
	}
}

// Create persists a new order. When checkoutKey is set, the idempotency record
// and the order are written in one TransactWriteItems call so a replayed
// checkout cannot create a second order.
func (s *Store) Create(ctx context.Context, order Order, checkoutKey string) error {
	now := s.nowFunc().UTC()
	if order.Timestamp.IsZero() {
		order.Timestamp = now
	}
	order.UpdatedAt = now
	order.SellerID = order.StoreDetails.SellerID

	orderMap, err := aws.MarshalMap(order)
	if err != nil {
		return fmt.Errorf("marshal order item: %w", err)
	}

	if checkoutKey == "" || s.idempotencyTable == "" {
		_, err = s.client.PutItem(ctx, &dyn.PutItemInput{
			TableName:           &s.tableName,
			Item:                orderMap,
			ConditionExpression: aws.String("attribute_not_exists(order_id)"),
		})
		if err != nil {
			if isConditionalFailure(err) {
				return fmt.Errorf("order %s already exists: %w", order.OrderID, ErrConditionFailed)
			}
			return fmt.Errorf("put order: %w", err)
		}
		return nil
	}

	rec := idempotency.Record{
		IdempotencyKey: checkoutKey,
		Status:         idempotency.StatusInProgress,
		OrderID:        order.OrderID,
		CreatedAt:      now,
		UpdatedAt:      now,
		ExpiresAt:      now.Add(s.idempotencyTTL).Unix(),
	}
	idempMap, err := aws.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal idempotency item: %w", err)
	}

	_, err = s.client.TransactWriteItems(ctx, &dyn.TransactWriteItemsInput{
		TransactItems: []types.TransactWriteItem{
			{
				Put: &types.Put{
					TableName:           &s.idempotencyTable,
					Item:                idempMap,
					ConditionExpression: aws.String("attribute_not_exists(idempotency_key)"),
				},
			},
			{
				Put: &types.Put{
					TableName:           &s.tableName,
					Item:                orderMap,
					ConditionExpression: aws.String("attribute_not_exists(order_id)"),
				},
			},
		},
	})
	if err != nil {
		if checkoutKeyTaken(err) {
			return fmt.Errorf("checkout key %s: %w", checkoutKey, ErrCheckoutKeyExists)
		}
		return fmt.Errorf("transact write: %w", err)
	}
	return nil
}

// Get fetches an order by order_id.
func (s *Store) Get(ctx context.Context, orderID string) (*Order, error) {
	out, err := s.client.GetItem(ctx, &dyn.GetItemInput{
		TableName:      &s.tableName,
		Key:            orderKey(orderID),
		ConsistentRead: awsBool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Item, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

// ListByUser returns a customer's orders, newest first.
func (s *Store) ListByUser(ctx context.Context, userID string) ([]Order, error) {
	return s.query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String(UserIndex),
		KeyConditionExpression: aws.String("user_id = :u"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":u": &types.AttributeValueMemberS{Value: userID},
		},
		ScanIndexForward: awsBool(false),
	})
}

// ListAwaitingSeller returns a seller's orders that still need a decision, oldest first.
func (s *Store) ListAwaitingSeller(ctx context.Context, sellerID string) ([]Order, error) {
	return s.query(ctx, &dyn.QueryInput{
		TableName:              &s.tableName,
		IndexName:              aws.String(SellerIndex),
		KeyConditionExpression: aws.String("seller_id = :sid"),
		FilterExpression:       aws.String("#s = :processing AND seller_decision = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":sid":        &types.AttributeValueMemberS{Value: sellerID},
			":processing": &types.AttributeValueMemberS{Value: string(StatusProcessing)},
			":pending":    &types.AttributeValueMemberS{Value: string(DecisionPending)},
		},
		ScanIndexForward: awsBool(true),
	})
}

// ScanAwaitingSeller walks the whole table for orders without a seller decision.
// Only the deadline sweep uses it.
func (s *Store) ScanAwaitingSeller(ctx context.Context) ([]Order, error) {
	input := &dyn.ScanInput{
		TableName:        &s.tableName,
		FilterExpression: aws.String("#s = :processing AND seller_decision = :pending"),
		ExpressionAttributeNames: map[string]string{
			"#s": "status",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":processing": &types.AttributeValueMemberS{Value: string(StatusProcessing)},
			":pending":    &types.AttributeValueMemberS{Value: string(DecisionPending)},
		},
	}
	var result []Order
	for {
		out, err := s.client.Scan(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("scan orders: %w", err)
		}
		page := make([]Order, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

func (s *Store) query(ctx context.Context, input *dyn.QueryInput) ([]Order, error) {
	result := []Order{}
	for {
		out, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("query orders: %w", err)
		}
		page := make([]Order, 0, len(out.Items))
		if err := attributevalue.UnmarshalListOfMaps(out.Items, &page); err != nil {
			return nil, fmt.Errorf("unmarshal orders: %w", err)
		}
		result = append(result, page...)
		if len(out.LastEvaluatedKey) == 0 {
			return result, nil
		}
		input.ExclusiveStartKey = out.LastEvaluatedKey
	}
}

// ApplyTransition moves the order to t.NewStatus and appends t.Entry to the
// timeline in one conditional UpdateItem. Returns ErrConditionFailed if the
// order no longer matches t.ExpectedStatus / t.ExpectedDecision.
func (s *Store) ApplyTransition(ctx context.Context, orderID string, t Transition) (*Order, error) {
	entry, err := aws.Marshal([]TimelineEntry{t.Entry})
	if err != nil {
		return nil, fmt.Errorf("marshal timeline entry: %w", err)
	}
	ua, err := aws.Marshal(s.nowFunc().UTC())
	if err != nil {
		return nil, fmt.Errorf("marshal updated_at: %w", err)
	}

	updateExpr := "SET #s = :new, updated_at = :ua, status_timeline = list_append(status_timeline, :entry)"
	condExpr := "attribute_exists(order_id) AND #s = :expected"
	values := map[string]types.AttributeValue{
		":new":      &types.AttributeValueMemberS{Value: string(t.NewStatus)},
		":expected": &types.AttributeValueMemberS{Value: string(t.ExpectedStatus)},
		":ua":       ua,
		":entry":    entry,
	}
	if t.NewDecision != "" {
		updateExpr += ", seller_decision = :decision"
		values[":decision"] = &types.AttributeValueMemberS{Value: string(t.NewDecision)}
	}
	if t.ExpectedDecision != "" {
		condExpr += " AND seller_decision = :expectedDecision"
		values[":expectedDecision"] = &types.AttributeValueMemberS{Value: string(t.ExpectedDecision)}
	}
	if t.CancelledBy != "" {
		updateExpr += ", cancelled_by = :cb"
		values[":cb"] = &types.AttributeValueMemberS{Value: t.CancelledBy}
	}
	if t.CancelReason != "" {
		updateExpr += ", cancel_reason = :cr"
		values[":cr"] = &types.AttributeValueMemberS{Value: t.CancelReason}
	}

	return s.update(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       &condExpr,
		ExpressionAttributeNames:  map[string]string{"#s": "status"},
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
}

// SetGatewayOrder records the gateway order reference on an unpaid order.
func (s *Store) SetGatewayOrder(ctx context.Context, orderID, gatewayOrderID string) (*Order, error) {
	ua, err := aws.Marshal(s.nowFunc().UTC())
	if err != nil {
		return nil, fmt.Errorf("marshal updated_at: %w", err)
	}
	return s.update(ctx, &dyn.UpdateItemInput{
		TableName:           &s.tableName,
		Key:                 orderKey(orderID),
		UpdateExpression:    aws.String("SET gateway_order_id = :g, updated_at = :ua"),
		ConditionExpression: aws.String("attribute_exists(order_id) AND payment_status = :pending"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":g":       &types.AttributeValueMemberS{Value: gatewayOrderID},
			":ua":      ua,
			":pending": &types.AttributeValueMemberS{Value: string(PaymentPending)},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
}

// UpdatePaymentStatus conditionally moves payment_status from expected to next.
// paymentID is stored when non-empty.
func (s *Store) UpdatePaymentStatus(ctx context.Context, orderID string, expected, next PaymentStatus, paymentID string) (*Order, error) {
	ua, err := aws.Marshal(s.nowFunc().UTC())
	if err != nil {
		return nil, fmt.Errorf("marshal updated_at: %w", err)
	}
	updateExpr := "SET payment_status = :next, updated_at = :ua"
	values := map[string]types.AttributeValue{
		":next":     &types.AttributeValueMemberS{Value: string(next)},
		":expected": &types.AttributeValueMemberS{Value: string(expected)},
		":ua":       ua,
	}
	if paymentID != "" {
		updateExpr += ", gateway_payment_id = :pid"
		values[":pid"] = &types.AttributeValueMemberS{Value: paymentID}
	}
	return s.update(ctx, &dyn.UpdateItemInput{
		TableName:                 &s.tableName,
		Key:                       orderKey(orderID),
		UpdateExpression:          &updateExpr,
		ConditionExpression:       aws.String("attribute_exists(order_id) AND payment_status = :expected"),
		ExpressionAttributeValues: values,
		ReturnValues:              types.ReturnValueAllNew,
	})
}

func (s *Store) update(ctx context.Context, input *dyn.UpdateItemInput) (*Order, error) {
	out, err := s.client.UpdateItem(ctx, input)
	if err != nil {
		if isConditionalFailure(err) {
			return nil, ErrConditionFailed
		}
		return nil, fmt.Errorf("update item: %w", err)
	}
	var o Order
	if err := attributevalue.UnmarshalMap(out.Attributes, &o); err != nil {
		return nil, fmt.Errorf("unmarshal order: %w", err)
	}
	return &o, nil
}

func orderKey(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"order_id": &types.AttributeValueMemberS{Value: orderID},
	}
}

func isConditionalFailure(err error) bool {
	var apiErr smithy.APIError
	return errors.As(err, &apiErr) && apiErr.ErrorCode() == "ConditionalCheckFailedException"
}

// checkoutKeyTaken reports whether a cancelled checkout transaction failed on
// the idempotency put (item 0). Conflicts and throttling are not replays.
func checkoutKeyTaken(err error) bool {
	var tce *types.TransactionCanceledException
	if !errors.As(err, &tce) || len(tce.CancellationReasons) == 0 {
		return false
	}
	code := tce.CancellationReasons[0].Code
	return code != nil && *code == "ConditionalCheckFailed"
}

func awsBool(b bool) *bool { return &b }
