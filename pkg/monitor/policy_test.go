package monitor

import (
	"math/rand"
	"testing"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

var (
	hundred      = decimal.NewFromInt(100)
	registeredAt = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
	policy       = Policy{Threshold: decimal.RequireFromString("5.0")}
)

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

// update builds a BTC-USD update for a 10 BTC order at the given fill.
func update(status orders.Status, fill string, price string) orders.Update {
	total := decimal.NewFromInt(10)
	filled := total.Mul(d(fill)).Div(decimal.NewFromInt(100))
	return orders.Update{
		OrderID:           "order-1",
		Symbol:            "BTC-USD",
		Status:            status,
		OrderQuantity:     total,
		FilledQuantity:    filled,
		RemainingQuantity: total.Sub(filled),
		AveragePrice:      d(price),
		FillPercentage:    d(fill),
		ObservedAt:        registeredAt.Add(time.Minute),
	}
}

func registered() orders.TrackedOrder {
	return orders.NewTrackedOrder(update(orders.StatusNew, "0", "0"), "C123", "U1", registeredAt, 48*time.Hour)
}

func kinds(changes []orders.Change) []orders.ChangeKind {
	var out []orders.ChangeKind
	for _, c := range changes {
		out = append(out, c.Kind)
	}
	return out
}

// Scenario: registered at 0%, first fill 45.2% PartiallyFilled
func TestEvaluateFirstFill(t *testing.T) {
	decision := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000"))

	assert.True(t, decision.Notify)
	assert.False(t, decision.Terminal)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeStatus, orders.ChangeFill}, kinds(decision.Changes))
	assert.True(t, d("45.2").Equal(decision.Next.LastNotifiedFillPercentage))
	assert.True(t, d("100000").Equal(decision.Next.LastNotifiedPrice))
}

// Scenario: 45.2% -> 47.0% is below the threshold but still persisted
func TestEvaluateBelowThreshold(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next

	decision := policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "47.0", "100500"))

	assert.False(t, decision.Notify)
	assert.Empty(t, decision.Changes)
	assert.True(t, d("47.0").Equal(decision.Next.FillPercentage))
	assert.True(t, d("100500").Equal(decision.Next.AveragePrice))
	assert.True(t, d("45.2").Equal(decision.Next.LastNotifiedFillPercentage))
	assert.True(t, d("100000").Equal(decision.Next.LastNotifiedPrice))
}

// Scenario: 60.1% is measured against the last notified 45.2%, not 47.0%
func TestEvaluateThresholdAgainstLastNotified(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next
	prev = policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "47.0", "100500")).Next

	decision := policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "60.1", "101234.57"))

	assert.True(t, decision.Notify)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeFill, orders.ChangePrice}, kinds(decision.Changes))
	assert.True(t, d("45.2").Equal(decision.Changes[0].From))
	assert.True(t, d("60.1").Equal(decision.Changes[0].To))
	assert.True(t, d("100000").Equal(decision.Changes[1].From))
	assert.True(t, d("60.1").Equal(decision.Next.LastNotifiedFillPercentage))
}

func TestEvaluateExactThreshold(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next

	assert.True(t, policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "50.2", "100000")).Notify)
	assert.False(t, policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "50.19", "100000")).Notify)
}

// Scenario: cancellation at 60.1% is a terminal notification
func TestEvaluateCancelled(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "60.1", "100000")).Next

	decision := policy.Evaluate(prev, update(orders.StatusCancelled, "60.1", "100000"))

	assert.True(t, decision.Notify)
	assert.True(t, decision.Terminal)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeStatus}, kinds(decision.Changes))
}

// Ensures 100% is terminal and notified once while 99.9% is neither
func TestEvaluateCompletionBoundary(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "96", "100000")).Next

	almost := policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "99.9", "100000"))
	assert.False(t, almost.Notify)
	assert.False(t, almost.Terminal)

	done := policy.Evaluate(almost.Next, update(orders.StatusPartiallyFilled, "100", "100000"))
	assert.True(t, done.Notify)
	assert.True(t, done.Terminal)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeCompleted}, kinds(done.Changes))

	again := policy.Evaluate(done.Next, update(orders.StatusFilled, "100", "100000"))
	assert.False(t, again.Notify)
	assert.True(t, again.Terminal)
}

// Ensures a fill that only rounds to 100% keeps the order monitored
func TestEvaluateRoundedHundredNotTerminal(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "96", "100000")).Next

	u := update(orders.StatusPartiallyFilled, "99.9996", "100000")
	u.FillPercentage = orders.FillPercentage(u.FilledQuantity, u.OrderQuantity)
	assert.True(t, hundred.Equal(u.FillPercentage))

	decision := policy.Evaluate(prev, u)
	assert.False(t, decision.Terminal)
	assert.NotContains(t, kinds(decision.Changes), orders.ChangeCompleted)
	assert.False(t, decision.Next.Terminal())
}

// Ensures price movement alone never triggers a notification
func TestEvaluatePriceOnly(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next

	decision := policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "45.2", "120000"))

	assert.False(t, decision.Notify)
	assert.Empty(t, decision.Changes)
	assert.True(t, d("120000").Equal(decision.Next.AveragePrice))
	assert.True(t, d("100000").Equal(decision.Next.LastNotifiedPrice))
}

// Ensures a fill regression is a correction line and not a trigger
func TestEvaluateCorrection(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "60.1", "100000")).Next

	decision := policy.Evaluate(prev, update(orders.StatusPartiallyFilled, "55.0", "100000"))
	assert.False(t, decision.Notify)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeCorrection}, kinds(decision.Changes))
	assert.False(t, decision.Changes[0].Triggering)
	assert.True(t, d("55.0").Equal(decision.Next.FillPercentage))

	decision = policy.Evaluate(decision.Next, update(orders.StatusCancelled, "50.0", "100000"))
	assert.True(t, decision.Notify)
	assert.Equal(t, []orders.ChangeKind{orders.ChangeStatus, orders.ChangeCorrection}, kinds(decision.Changes))
}

func TestEvaluateUnknownStatusKeepsStored(t *testing.T) {
	prev := policy.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next

	decision := policy.Evaluate(prev, update(orders.StatusUnknown, "46", "100000"))

	assert.False(t, decision.Notify)
	assert.Equal(t, orders.StatusPartiallyFilled, decision.Next.Status)
}

// Ensures an order stored as finished is only cleaned up
func TestEvaluateAlreadyTerminal(t *testing.T) {
	prev := registered()
	prev.Status = orders.StatusFilled
	prev.FillPercentage = d("100")

	decision := policy.Evaluate(prev, update(orders.StatusFilled, "100", "100000"))

	assert.False(t, decision.Notify)
	assert.True(t, decision.Terminal)
}

func TestEvaluateCustomThreshold(t *testing.T) {
	strict := Policy{Threshold: d("1")}
	prev := strict.Evaluate(registered(), update(orders.StatusPartiallyFilled, "45.2", "100000")).Next

	assert.True(t, strict.Evaluate(prev, update(orders.StatusPartiallyFilled, "46.2", "100000")).Notify)
}

// Ensures over random monotone fill sequences a notification is emitted
// iff the status changed, the fill grew by the threshold since the last
// notification, or the order just reached 100%.
func TestEvaluateNotifiesIffSignificant(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	statuses := []orders.Status{orders.StatusNew, orders.StatusPartiallyFilled, orders.StatusPendingReplace}

	for run := 0; run < 200; run++ {
		order := registered()
		lastNotified := decimal.Zero
		fill := decimal.Zero
		status := orders.StatusNew

		for step := 0; step < 40 && !order.Terminal(); step++ {
			fill = decimal.Min(hundred, fill.Add(decimal.New(rng.Int63n(80), -1)))
			nextStatus := status
			if rng.Intn(6) == 0 {
				nextStatus = statuses[rng.Intn(len(statuses))]
			}

			expected := nextStatus != status ||
				fill.Sub(lastNotified).GreaterThanOrEqual(policy.Threshold) ||
				(fill.Equal(hundred) && order.FillPercentage.LessThan(hundred))

			decision := policy.Evaluate(order, update(nextStatus, fill.String(), "100"))
			assert.Equal(t, expected, decision.Notify, "run %d step %d fill %s", run, step, fill)

			if decision.Notify {
				lastNotified = fill
			}
			assert.True(t, lastNotified.Equal(decision.Next.LastNotifiedFillPercentage))
			assert.True(t, fill.Equal(decision.Next.FillPercentage))

			order = decision.Next
			status = nextStatus
		}
	}
}
