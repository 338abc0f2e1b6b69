package monitor

import (
	"context"
	"errors"

	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/sirupsen/logrus"
)

// Archiver keeps a copy of orders that leave monitoring.
type Archiver interface {
	Archive(ctx context.Context, order orders.TrackedOrder) error
}

// Notifier applies feed updates to monitored orders.
type Notifier struct {
	Store     store.Store
	Messenger notify.Messenger
	Archiver  Archiver
	Policy    Policy
	Metrics   *Metrics
}

// NewNotifier creates a Notifier. archiver may be nil.
func NewNotifier(s store.Store, messenger notify.Messenger, archiver Archiver, policy Policy, metrics *Metrics) *Notifier {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Notifier{Store: s, Messenger: messenger, Archiver: archiver, Policy: policy, Metrics: metrics}
}

// Handle processes one update: persist, then notify, then remove the order
// once terminal. Updates for orders that are not monitored are ignored.
// Store failures are returned so the caller can log them; the next update
// for the order retries with fresh data.
func (n *Notifier) Handle(ctx context.Context, u orders.Update) error {
	n.Metrics.EventsReceived.Add(1)

	prev, err := n.Store.Get(ctx, u.OrderID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		n.Metrics.StoreErrors.Add(1)
		return err
	}
	n.Metrics.OrdersProcessed.Add(1)

	log := logrus.WithFields(logrus.Fields{
		"orderId":    u.OrderID,
		"instrument": u.Symbol,
		"status":     u.Status,
		"fill":       u.FillPercentage.String(),
	})

	decision := n.Policy.Evaluate(*prev, u)

	if prev.Terminal() {
		log.Info("Removing order already reported as finished")
		return n.remove(ctx, decision.Next)
	}

	if err := n.Store.Put(ctx, decision.Next); err != nil {
		n.Metrics.StoreErrors.Add(1)
		return err
	}

	if decision.Notify {
		text := notify.FormatUpdate(decision.Next, decision.Changes)
		if err := n.Messenger.Post(ctx, decision.Next.Channel, text); err != nil {
			n.Metrics.NotifyErrors.Add(1)
			log.WithError(err).Warn("Failed to send notification")
		} else {
			n.Metrics.NotificationsSent.Add(1)
			log.WithField("channel", decision.Next.Channel).Info("Notification sent")
		}
	} else {
		log.Debug("Update below notification threshold")
	}

	if decision.Terminal {
		log.Info("Order finished, stopping monitoring")
		return n.remove(ctx, decision.Next)
	}

	return nil
}

func (n *Notifier) remove(ctx context.Context, order orders.TrackedOrder) error {
	if err := n.Store.Delete(ctx, order.OrderID); err != nil {
		n.Metrics.StoreErrors.Add(1)
		return err
	}

	if n.Archiver == nil {
		return nil
	}

	if err := n.Archiver.Archive(ctx, order); err != nil {
		logrus.WithField("orderId", order.OrderID).WithError(err).Warn("Failed to archive order")
	}
	return nil
}
