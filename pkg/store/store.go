package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
)

var (
	// ErrNotFound is returned when no record exists for the order id.
	ErrNotFound = errors.New("order not monitored")
	// ErrAlreadyExists is returned by Create when the order is already monitored.
	ErrAlreadyExists = errors.New("order already monitored")
)

// Store is the durable mapping from order id to its monitoring state.
// Writes are per key overwrites; there are no cross order guarantees.
type Store interface {
	Get(ctx context.Context, orderID string) (*orders.TrackedOrder, error)
	Create(ctx context.Context, order orders.TrackedOrder) error
	Put(ctx context.Context, order orders.TrackedOrder) error
	Touch(ctx context.Context, orderID string, at time.Time) error
	Delete(ctx context.Context, orderID string) error
	ScanActive(ctx context.Context) ([]orders.TrackedOrder, error)
}

// New creates the Store selected by the configured backend.
func New(config *configuration.AppConfig, dynamo pkg.DynamoDBAccess) (Store, error) {
	switch config.StoreBackend {
	case configuration.StoreBackendDynamoDB:
		if dynamo == nil {
			return nil, errors.New("dynamodb backend selected without a client")
		}
		return NewDynamoStore(dynamo, config.TableName), nil
	case configuration.StoreBackendRedis:
		return NewRedisStoreFromConfig(config), nil
	case configuration.StoreBackendMemory:
		return NewMemoryStore(), nil
	}
	return nil, fmt.Errorf("unknown store backend %q", config.StoreBackend)
}
