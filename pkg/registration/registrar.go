package registration

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/reference"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	"github.com/sirupsen/logrus"
)

// PriceSource provides reference prices for venue symbols.
type PriceSource interface {
	Price(symbol string) (*reference.Quote, error)
}

// Registrar turns a registration request into a monitored order.
type Registrar struct {
	Venue       venue.OrderFetcher
	Store       store.Store
	Messenger   notify.Messenger
	Responder   notify.Responder
	Reference   PriceSource
	TTL         time.Duration
	DigestHours []int

	now func() time.Time
}

func NewRegistrar(fetcher venue.OrderFetcher, s store.Store, messenger notify.Messenger, responder notify.Responder, ttl time.Duration, digestHours []int) *Registrar {
	return &Registrar{
		Venue:       fetcher,
		Store:       s,
		Messenger:   messenger,
		Responder:   responder,
		TTL:         ttl,
		DigestHours: digestHours,
		now:         time.Now,
	}
}

// Register fetches the current state of the order, reports it to the
// channel and stores it for monitoring unless it is already finished.
// Only store failures are returned, so the request is retried.
func (r *Registrar) Register(ctx context.Context, req Request) error {
	log := logrus.WithFields(logrus.Fields{
		"orderId":   req.OrderID,
		"requestId": req.RequestID,
		"channel":   req.Channel,
	})

	u, err := r.Venue.GetOrder(ctx, req.OrderID)
	if err != nil {
		log.WithError(err).Warn("Could not retrieve order from venue")
		r.followUp(ctx, req, fetchFailedMessage(req.OrderID))
		return nil
	}

	report := r.report(*u)

	if u.Complete() {
		log.WithField("status", u.Status).Info("Order already complete, not monitoring")
		r.post(ctx, req, completeMessage(report))
		return nil
	}

	order := orders.NewTrackedOrder(*u, req.Channel, req.UserID, r.now(), r.TTL)
	err = r.Store.Create(ctx, order)
	if errors.Is(err, store.ErrAlreadyExists) {
		log.Info("Order is already being monitored")
		r.followUp(ctx, req, duplicateMessage(req.OrderID, report, r.DigestHours))
		return nil
	}
	if err != nil {
		r.followUp(ctx, req, "Error setting up monitoring: "+err.Error())
		return fmt.Errorf("store order %s: %w", req.OrderID, err)
	}

	log.WithField("fill", u.FillPercentage.String()).Info("Order added to monitoring")
	r.post(ctx, req, activatedMessage(report, r.DigestHours))
	return nil
}

func (r *Registrar) report(u orders.Update) string {
	report := notify.FormatExecutionReport(u)
	if r.Reference == nil {
		return report
	}

	quote, err := r.Reference.Price(u.Symbol)
	if errors.Is(err, reference.ErrUnavailable) {
		return report
	}
	if err != nil {
		logrus.WithField("symbol", u.Symbol).WithError(err).Warn("Reference price unavailable")
		return report
	}

	return report + "\n" + notify.FormatReferencePrice(quote.Pair, quote.Value, u.AveragePrice)
}

// post sends an in-channel message, falling back to the response url.
func (r *Registrar) post(ctx context.Context, req Request, text string) {
	err := r.Messenger.Post(ctx, req.Channel, text)
	if err == nil {
		return
	}
	logrus.WithField("channel", req.Channel).WithError(err).Warn("Failed to post to channel")

	if req.ResponseURL == "" {
		return
	}
	if err := r.Responder.Respond(ctx, req.ResponseURL, text, notify.ResponseInChannel); err != nil {
		logrus.WithField("channel", req.Channel).WithError(err).Warn("Failed to send follow-up")
	}
}

func (r *Registrar) followUp(ctx context.Context, req Request, text string) {
	if req.ResponseURL == "" {
		return
	}
	if err := r.Responder.Respond(ctx, req.ResponseURL, text, notify.ResponseEphemeral); err != nil {
		logrus.WithField("orderId", req.OrderID).WithError(err).Warn("Failed to send follow-up")
	}
}
