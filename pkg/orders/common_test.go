package orders

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

// Ensures the fill percentage is derived from quantities
// and rounded to two decimal places
func TestFillPercentage(t *testing.T) {
	type testCase struct {
		filled   string
		total    string
		expected string
	}

	cases := []testCase{
		{filled: "452", total: "1000", expected: "45.2"},
		{filled: "1", total: "3", expected: "33.33"},
		{filled: "2", total: "3", expected: "66.67"},
		{filled: "10", total: "10", expected: "100"},
		{filled: "5", total: "0", expected: "0"},
	}

	for _, c := range cases {
		actual := FillPercentage(decimal.RequireFromString(c.filled), decimal.RequireFromString(c.total))
		assert.True(t, decimal.RequireFromString(c.expected).Equal(actual), "%s/%s gave %s", c.filled, c.total, actual)
	}
}

// Ensures venue spellings are normalised
func TestParseStatus(t *testing.T) {
	assert.Equal(t, StatusCancelled, ParseStatus("Canceled"))
	assert.Equal(t, StatusCancelled, ParseStatus("Cancelled"))
	assert.Equal(t, StatusPartiallyFilled, ParseStatus("PartiallyFilled"))
	assert.Equal(t, StatusUnknown, ParseStatus(""))
	assert.Equal(t, Status("Held"), ParseStatus("Held"))
}

func TestStatusTerminal(t *testing.T) {
	for _, s := range []Status{StatusFilled, StatusCancelled, StatusRejected, StatusDoneForDay} {
		assert.True(t, s.Terminal(), s)
	}
	for _, s := range []Status{StatusNew, StatusPartiallyFilled, StatusPendingCancel, StatusUnknown} {
		assert.False(t, s.Terminal(), s)
	}
}

// Ensures a fresh registration treats the snapshot as already notified
func TestNewTrackedOrder(t *testing.T) {
	registeredAt := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	u := Update{
		OrderID:        "order-1",
		Symbol:         "FLR-USDT",
		Status:         StatusPartiallyFilled,
		FilledQuantity: decimal.NewFromInt(70),
		OrderQuantity:  decimal.NewFromInt(100),
		AveragePrice:   decimal.RequireFromString("0.0227"),
		FillPercentage: decimal.NewFromInt(70),
	}

	o := NewTrackedOrder(u, "C123", "U1", registeredAt, 48*time.Hour)

	assert.Equal(t, "order-1", o.OrderID)
	assert.Equal(t, "FLR-USDT", o.Instrument)
	assert.Equal(t, "C123", o.Channel)
	assert.True(t, o.LastNotifiedFillPercentage.Equal(decimal.NewFromInt(70)))
	assert.True(t, o.LastNotifiedPrice.Equal(decimal.RequireFromString("0.0227")))
	assert.Equal(t, registeredAt.Add(48*time.Hour).Unix(), o.ExpiresAt)
	assert.False(t, o.Terminal())
}

func TestTerminalAtHundredPercent(t *testing.T) {
	o := TrackedOrder{Status: StatusPartiallyFilled, FillPercentage: decimal.RequireFromString("99.9")}
	assert.False(t, o.Terminal())

	o.FillPercentage = decimal.NewFromInt(100)
	assert.True(t, o.Terminal())
}

// Ensures completion is decided on quantities, not on the rounded percentage
func TestFullyFilledUnrounded(t *testing.T) {
	filled := decimal.RequireFromString("99.996")
	total := decimal.NewFromInt(100)

	u := Update{
		Status:            StatusPartiallyFilled,
		OrderQuantity:     total,
		FilledQuantity:    filled,
		RemainingQuantity: decimal.RequireFromString("0.004"),
		FillPercentage:    FillPercentage(filled, total),
	}
	assert.True(t, decimal.NewFromInt(100).Equal(u.FillPercentage))
	assert.False(t, u.FullyFilled())
	assert.False(t, u.Complete())

	o := TrackedOrder{}.Apply(u)
	assert.False(t, o.FullyFilled())
	assert.False(t, o.Terminal())

	u.FilledQuantity = total
	u.RemainingQuantity = decimal.Zero
	assert.True(t, u.Complete())
	assert.True(t, TrackedOrder{}.Apply(u).Terminal())
}

func TestUpdateConsistent(t *testing.T) {
	tolerance := decimal.RequireFromString("0.0001")

	u := Update{
		Status:            StatusPartiallyFilled,
		OrderQuantity:     decimal.NewFromInt(10),
		FilledQuantity:    decimal.RequireFromString("6.01"),
		RemainingQuantity: decimal.RequireFromString("3.99"),
	}
	assert.True(t, u.Consistent(tolerance))

	u.RemainingQuantity = decimal.NewFromInt(1)
	assert.False(t, u.Consistent(tolerance))

	u.Status = StatusCancelled
	assert.True(t, u.Consistent(tolerance))
}

func TestBaseAsset(t *testing.T) {
	assert.Equal(t, "BTC", BaseAsset("BTC-USD"))
	assert.Equal(t, "CPOOL", BaseAsset("CPOOL-USDT"))
	assert.Equal(t, "FLR", BaseAsset("FLR"))
}
