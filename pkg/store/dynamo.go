package store

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

const (
	keyAttribute = "order_id"

	conditionNotExists = "attribute_not_exists(order_id)"
	conditionExists    = "attribute_exists(order_id)"

	// Orders without an expiry never lapse, matching the other backends.
	activeFilter = "attribute_not_exists(expires_at) OR expires_at = :zero OR expires_at > :now"
)

// record is the table layout. Decimals are stored as strings so values
// survive a round trip exactly.
type record struct {
	OrderID    string `dynamodbav:"order_id"`
	Instrument string `dynamodbav:"instrument"`
	Status     string `dynamodbav:"status"`
	Comments   string `dynamodbav:"comments,omitempty"`

	FillPercentage    string `dynamodbav:"fill_percentage"`
	OrderQuantity     string `dynamodbav:"order_quantity"`
	FilledQuantity    string `dynamodbav:"filled_quantity"`
	RemainingQuantity string `dynamodbav:"remaining_quantity"`
	AveragePrice      string `dynamodbav:"average_price"`

	LastNotifiedFillPercentage string `dynamodbav:"last_notified_fill_percentage"`
	LastNotifiedPrice          string `dynamodbav:"last_notified_price"`

	Channel string `dynamodbav:"channel_id"`
	UserID  string `dynamodbav:"user_id,omitempty"`

	RegisteredAt  time.Time `dynamodbav:"registered_at"`
	UpdatedAt     time.Time `dynamodbav:"updated_at"`
	LastCheckedAt time.Time `dynamodbav:"last_checked_at"`
	ExpiresAt     int64     `dynamodbav:"expires_at,omitempty"`
}

func toRecord(o orders.TrackedOrder) record {
	return record{
		OrderID:                    o.OrderID,
		Instrument:                 o.Instrument,
		Status:                     string(o.Status),
		Comments:                   o.Comments,
		FillPercentage:             o.FillPercentage.String(),
		OrderQuantity:              o.OrderQuantity.String(),
		FilledQuantity:             o.FilledQuantity.String(),
		RemainingQuantity:          o.RemainingQuantity.String(),
		AveragePrice:               o.AveragePrice.String(),
		LastNotifiedFillPercentage: o.LastNotifiedFillPercentage.String(),
		LastNotifiedPrice:          o.LastNotifiedPrice.String(),
		Channel:                    o.Channel,
		UserID:                     o.UserID,
		RegisteredAt:               o.RegisteredAt.UTC(),
		UpdatedAt:                  o.UpdatedAt.UTC(),
		LastCheckedAt:              o.LastCheckedAt.UTC(),
		ExpiresAt:                  o.ExpiresAt,
	}
}

func (r record) toOrder() (orders.TrackedOrder, error) {
	o := orders.TrackedOrder{
		OrderID:       r.OrderID,
		Instrument:    r.Instrument,
		Status:        orders.ParseStatus(r.Status),
		Comments:      r.Comments,
		Channel:       r.Channel,
		UserID:        r.UserID,
		RegisteredAt:  r.RegisteredAt,
		UpdatedAt:     r.UpdatedAt,
		LastCheckedAt: r.LastCheckedAt,
		ExpiresAt:     r.ExpiresAt,
	}

	fields := []struct {
		name  string
		value string
		dest  *decimal.Decimal
	}{
		{"fill_percentage", r.FillPercentage, &o.FillPercentage},
		{"order_quantity", r.OrderQuantity, &o.OrderQuantity},
		{"filled_quantity", r.FilledQuantity, &o.FilledQuantity},
		{"remaining_quantity", r.RemainingQuantity, &o.RemainingQuantity},
		{"average_price", r.AveragePrice, &o.AveragePrice},
		{"last_notified_fill_percentage", r.LastNotifiedFillPercentage, &o.LastNotifiedFillPercentage},
		{"last_notified_price", r.LastNotifiedPrice, &o.LastNotifiedPrice},
	}

	for _, f := range fields {
		if f.value == "" {
			continue
		}
		d, err := decimal.NewFromString(f.value)
		if err != nil {
			return orders.TrackedOrder{}, fmt.Errorf("order %s %s: %w", r.OrderID, f.name, err)
		}
		*f.dest = d
	}

	return o, nil
}

// DynamoStore keeps orders in a DynamoDB table keyed by order_id.
type DynamoStore struct {
	Client pkg.DynamoDBAccess
	Table  string

	now func() time.Time
}

var _ Store = (*DynamoStore)(nil)

func NewDynamoStore(client pkg.DynamoDBAccess, table string) *DynamoStore {
	return &DynamoStore{Client: client, Table: table, now: time.Now}
}

func (d *DynamoStore) key(orderID string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		keyAttribute: &types.AttributeValueMemberS{Value: orderID},
	}
}

// Get reads an order with a consistent read.
func (d *DynamoStore) Get(ctx context.Context, orderID string) (*orders.TrackedOrder, error) {
	output, err := d.Client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      &d.Table,
		Key:            d.key(orderID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", orderID, err)
	}

	if len(output.Item) == 0 {
		return nil, ErrNotFound
	}

	var r record
	if err := attributevalue.UnmarshalMap(output.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal order %s: %w", orderID, err)
	}

	o, err := r.toOrder()
	if err != nil {
		return nil, err
	}
	return &o, nil
}

// Create writes the order only if it is not already present.
func (d *DynamoStore) Create(ctx context.Context, order orders.TrackedOrder) error {
	err := d.put(ctx, order, aws.String(conditionNotExists))

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return ErrAlreadyExists
	}
	return err
}

// Put overwrites the order.
func (d *DynamoStore) Put(ctx context.Context, order orders.TrackedOrder) error {
	return d.put(ctx, order, nil)
}

func (d *DynamoStore) put(ctx context.Context, order orders.TrackedOrder, condition *string) error {
	item, err := attributevalue.MarshalMap(toRecord(order))
	if err != nil {
		return fmt.Errorf("marshal order %s: %w", order.OrderID, err)
	}

	logrus.WithFields(logrus.Fields{
		"orderId": order.OrderID,
		"table":   d.Table,
	}).Debug("Writing order")

	_, err = d.Client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           &d.Table,
		Item:                item,
		ConditionExpression: condition,
	})
	if err != nil {
		return fmt.Errorf("put order %s: %w", order.OrderID, err)
	}
	return nil
}

// Touch records when the order was last checked. Only that attribute is
// written so concurrent notifier updates are not reverted.
func (d *DynamoStore) Touch(ctx context.Context, orderID string, at time.Time) error {
	checkedAt, err := attributevalue.Marshal(at.UTC())
	if err != nil {
		return err
	}

	_, err = d.Client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName:                 &d.Table,
		Key:                       d.key(orderID),
		UpdateExpression:          aws.String("SET last_checked_at = :at"),
		ConditionExpression:       aws.String(conditionExists),
		ExpressionAttributeValues: map[string]types.AttributeValue{":at": checkedAt},
	})

	var conditionFailed *types.ConditionalCheckFailedException
	if errors.As(err, &conditionFailed) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("touch order %s: %w", orderID, err)
	}
	return nil
}

func (d *DynamoStore) Delete(ctx context.Context, orderID string) error {
	_, err := d.Client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: &d.Table,
		Key:       d.key(orderID),
	})
	if err != nil {
		return fmt.Errorf("delete order %s: %w", orderID, err)
	}
	return nil
}

// ScanActive pages through the table returning orders that have not expired.
// DynamoDB deletes expired items lazily so the filter is still required.
func (d *DynamoStore) ScanActive(ctx context.Context) ([]orders.TrackedOrder, error) {
	paginator := dynamodb.NewScanPaginator(d.Client, &dynamodb.ScanInput{
		TableName:        &d.Table,
		FilterExpression: aws.String(activeFilter),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":now":  &types.AttributeValueMemberN{Value: strconv.FormatInt(d.now().Unix(), 10)},
			":zero": &types.AttributeValueMemberN{Value: "0"},
		},
	})

	var active []orders.TrackedOrder
	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return nil, fmt.Errorf("scan %s: %w", d.Table, err)
		}

		var records []record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal scan page: %w", err)
		}

		for _, r := range records {
			o, err := r.toOrder()
			if err != nil {
				logrus.WithField("orderId", r.OrderID).WithError(err).Warn("Skipping unreadable order")
				continue
			}
			active = append(active, o)
		}
	}

	logrus.WithField("count", len(active)).Debug("Scanned active orders")
	return active, nil
}
