package registration

import (
	"context"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/reference"
	"github.com/stretchr/testify/mock"
)

type MockQueue struct {
	mock.Mock
}

func (m *MockQueue) Submit(ctx context.Context, req *Request) error {
	return m.Called(ctx, req).Error(0)
}

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) GetOrder(ctx context.Context, orderID string) (*orders.Update, error) {
	args := m.Called(ctx, orderID)
	return args.Get(0).(*orders.Update), args.Error(1)
}

type MockMessenger struct {
	mock.Mock
}

func (m *MockMessenger) Post(ctx context.Context, channel string, text string) error {
	return m.Called(ctx, channel, text).Error(0)
}

type MockResponder struct {
	mock.Mock
}

func (m *MockResponder) Respond(ctx context.Context, responseURL string, text string, responseType string) error {
	return m.Called(ctx, responseURL, text, responseType).Error(0)
}

type MockPriceSource struct {
	mock.Mock
}

func (m *MockPriceSource) Price(symbol string) (*reference.Quote, error) {
	args := m.Called(symbol)
	return args.Get(0).(*reference.Quote), args.Error(1)
}
