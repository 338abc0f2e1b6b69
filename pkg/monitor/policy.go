package monitor

import (
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/shopspring/decimal"
)

// Policy decides which order updates are worth a notification.
type Policy struct {
	// Threshold is the fill increase, in percentage points since the last
	// notification, that triggers a new one.
	Threshold decimal.Decimal
}

// Decision is the outcome of evaluating one update.
type Decision struct {
	// Next is the state to persist. It always carries the latest observed values.
	Next     orders.TrackedOrder
	Notify   bool
	Terminal bool
	Changes  []orders.Change
}

// Evaluate compares an update against the stored order.
//
// A notification is due when the status changed, when the fill grew by at
// least Threshold since the last notification, or when the order just
// reached 100%. Price moves and fill regressions are only detail lines.
func (p Policy) Evaluate(prev orders.TrackedOrder, u orders.Update) Decision {
	if u.Status == orders.StatusUnknown {
		u.Status = prev.Status
	}

	next := prev.Apply(u)

	// Already reported as finished; only cleanup is left.
	if prev.Terminal() {
		return Decision{Next: next, Terminal: true}
	}

	var changes []orders.Change

	if u.Status != prev.Status {
		changes = append(changes, orders.Change{
			Kind:       orders.ChangeStatus,
			Triggering: true,
			FromStatus: prev.Status,
			ToStatus:   u.Status,
		})
	}

	if u.FullyFilled() && !prev.FullyFilled() {
		changes = append(changes, orders.Change{
			Kind:       orders.ChangeCompleted,
			Triggering: true,
			From:       prev.FillPercentage,
			To:         u.FillPercentage,
		})
	}

	if u.FillPercentage.Sub(prev.LastNotifiedFillPercentage).GreaterThanOrEqual(p.Threshold) {
		changes = append(changes, orders.Change{
			Kind:       orders.ChangeFill,
			Triggering: true,
			From:       prev.LastNotifiedFillPercentage,
			To:         u.FillPercentage,
		})
	}

	notify := len(changes) > 0

	if notify && prev.LastNotifiedPrice.IsPositive() && !u.AveragePrice.Equal(prev.LastNotifiedPrice) {
		changes = append(changes, orders.Change{
			Kind: orders.ChangePrice,
			From: prev.LastNotifiedPrice,
			To:   u.AveragePrice,
		})
	}

	if u.FillPercentage.LessThan(prev.FillPercentage) {
		changes = append(changes, orders.Change{
			Kind: orders.ChangeCorrection,
			From: prev.FillPercentage,
			To:   u.FillPercentage,
		})
	}

	if notify {
		next.LastNotifiedFillPercentage = u.FillPercentage
		next.LastNotifiedPrice = u.AveragePrice
	}

	return Decision{
		Next:     next,
		Notify:   notify,
		Terminal: next.Terminal(),
		Changes:  changes,
	}
}
