package orders

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
)

// TrackedOrder is an order registered for monitoring.
//
// The live fields (Status, FillPercentage, quantities, AveragePrice) always
// hold the latest observed values. The LastNotified fields are a snapshot
// taken whenever a notification is emitted and are what significance is
// measured against.
type TrackedOrder struct {
	OrderID    string `json:"order_id"`
	Instrument string `json:"instrument"`
	Status     Status `json:"status"`
	Comments   string `json:"comments,omitempty"`

	FillPercentage    decimal.Decimal `json:"fill_percentage"`
	OrderQuantity     decimal.Decimal `json:"order_quantity"`
	FilledQuantity    decimal.Decimal `json:"filled_quantity"`
	RemainingQuantity decimal.Decimal `json:"remaining_quantity"`
	AveragePrice      decimal.Decimal `json:"average_price"`

	LastNotifiedFillPercentage decimal.Decimal `json:"last_notified_fill_percentage"`
	LastNotifiedPrice          decimal.Decimal `json:"last_notified_price"`

	Channel string `json:"channel"`
	UserID  string `json:"user_id,omitempty"`

	RegisteredAt  time.Time `json:"registered_at"`
	UpdatedAt     time.Time `json:"updated_at"`
	LastCheckedAt time.Time `json:"last_checked_at"`
	ExpiresAt     int64     `json:"expires_at"`
}

// Terminal reports whether no further fills can occur for the order.
func (o TrackedOrder) Terminal() bool {
	return o.Status.Terminal() || o.FullyFilled()
}

// FullyFilled reports whether the whole order quantity has executed.
func (o TrackedOrder) FullyFilled() bool {
	return fullyFilled(o.FilledQuantity, o.OrderQuantity, o.FillPercentage)
}

// Apply copies the live fields of an update onto the order.
// The notification snapshot and registration details are left untouched.
func (o TrackedOrder) Apply(u Update) TrackedOrder {
	o.Status = u.Status
	o.FillPercentage = u.FillPercentage
	o.OrderQuantity = u.OrderQuantity
	o.FilledQuantity = u.FilledQuantity
	o.RemainingQuantity = u.RemainingQuantity
	o.AveragePrice = u.AveragePrice
	if u.Symbol != "" {
		o.Instrument = u.Symbol
	}
	if u.Comments != "" {
		o.Comments = u.Comments
	}
	o.UpdatedAt = u.ObservedAt
	return o
}

// NewTrackedOrder registers a venue snapshot for monitoring in the given channel.
// The snapshot is treated as already reported to the channel.
func NewTrackedOrder(u Update, channel string, userID string, registeredAt time.Time, ttl time.Duration) TrackedOrder {
	o := TrackedOrder{
		OrderID:      u.OrderID,
		Channel:      channel,
		UserID:       userID,
		RegisteredAt: registeredAt.UTC(),
		ExpiresAt:    registeredAt.Add(ttl).Unix(),
	}

	o = o.Apply(u)
	o.UpdatedAt = registeredAt.UTC()
	o.LastCheckedAt = registeredAt.UTC()
	o.LastNotifiedFillPercentage = o.FillPercentage
	o.LastNotifiedPrice = o.AveragePrice
	return o
}

// Update is a single order event observed on the venue, either pushed by
// the feed or fetched from the REST API.
type Update struct {
	OrderID           string
	Symbol            string
	Status            Status
	OrderQuantity     decimal.Decimal
	FilledQuantity    decimal.Decimal
	RemainingQuantity decimal.Decimal
	AveragePrice      decimal.Decimal
	FillPercentage    decimal.Decimal
	MarketCount       int
	Comments          string
	ObservedAt        time.Time
}

// Complete reports whether the update describes a finished order.
func (u Update) Complete() bool {
	return u.Status.Terminal() || u.FullyFilled()
}

// FullyFilled reports whether the whole order quantity has executed.
func (u Update) FullyFilled() bool {
	return fullyFilled(u.FilledQuantity, u.OrderQuantity, u.FillPercentage)
}

// fullyFilled compares the unrounded quantities. The rounded percentage is
// only consulted when no order quantity is known.
func fullyFilled(filled decimal.Decimal, total decimal.Decimal, percentage decimal.Decimal) bool {
	if total.IsPositive() {
		return filled.GreaterThanOrEqual(total)
	}
	return percentage.GreaterThanOrEqual(hundred)
}

// Consistent reports whether filled + remaining matches the order quantity
// within tolerance. Cancelled and rejected orders release their remaining
// quantity so they are always considered consistent.
func (u Update) Consistent(tolerance decimal.Decimal) bool {
	if u.Status == StatusCancelled || u.Status == StatusRejected || u.OrderQuantity.IsZero() {
		return true
	}

	diff := u.FilledQuantity.Add(u.RemainingQuantity).Sub(u.OrderQuantity).Abs()
	return diff.LessThanOrEqual(tolerance)
}

// FillPercentage derives the executed share of an order, 0-100, rounded to
// two decimal places. The result is for display and significance only, use
// FullyFilled to decide completion.
func FillPercentage(filled decimal.Decimal, total decimal.Decimal) decimal.Decimal {
	if !total.IsPositive() {
		return decimal.Zero
	}

	return filled.Div(total).Mul(hundred).Round(2)
}

// BaseAsset returns the base currency of a venue symbol, BTC-USD -> BTC.
func BaseAsset(symbol string) string {
	if i := strings.Index(symbol, "-"); i > 0 {
		return symbol[:i]
	}
	return symbol
}
