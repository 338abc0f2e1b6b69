package digest

import (
	"context"
	"errors"
	"sort"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/store"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	"github.com/sirupsen/logrus"
)

// Archiver keeps a copy of orders that leave monitoring.
type Archiver interface {
	Archive(ctx context.Context, order orders.TrackedOrder) error
}

// Summary counts what a run did.
type Summary struct {
	Channels  int
	Orders    int
	Completed int
	Failed    int
}

// Scheduler posts a periodic digest of every monitored order, grouped by
// channel, and drops the orders that have finished in the meantime.
type Scheduler struct {
	Store     store.Store
	Venue     venue.OrderFetcher
	Messenger notify.Messenger
	Archiver  Archiver
	Hours     []int

	now func() time.Time
}

// NewScheduler creates a Scheduler. archiver may be nil.
func NewScheduler(s store.Store, fetcher venue.OrderFetcher, messenger notify.Messenger, archiver Archiver, hours []int) *Scheduler {
	return &Scheduler{Store: s, Venue: fetcher, Messenger: messenger, Archiver: archiver, Hours: hours, now: time.Now}
}

// Run performs one digest. Only a failure to list the monitored orders is
// returned; anything going wrong for a single order or channel is logged.
func (s *Scheduler) Run(ctx context.Context) (*Summary, error) {
	at := s.now().UTC()

	active, err := s.Store.ScanActive(ctx)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"orders": len(active), "at": at.Format("15:04")}).Info("Running order digest")

	summary := &Summary{}
	if len(active) == 0 {
		return summary, nil
	}

	byChannel := make(map[string][]orders.TrackedOrder)
	for _, o := range active {
		byChannel[o.Channel] = append(byChannel[o.Channel], o)
	}

	channels := make([]string, 0, len(byChannel))
	for channel := range byChannel {
		channels = append(channels, channel)
	}
	sort.Strings(channels)

	next := NextRun(at, s.Hours)

	for _, channel := range channels {
		tracked := byChannel[channel]
		sort.SliceStable(tracked, func(i, j int) bool { return tracked[i].RegisteredAt.Before(tracked[j].RegisteredAt) })

		d := notify.Digest{At: at, NextRun: next}
		for _, o := range tracked {
			line, completed, ok := s.check(ctx, o, at)
			d.Lines = append(d.Lines, line)
			if !ok {
				summary.Failed++
			}
			if completed {
				d.Completed++
			}
		}
		d.Remaining = len(tracked) - d.Completed

		summary.Channels++
		summary.Orders += len(tracked)
		summary.Completed += d.Completed

		if err := s.Messenger.Post(ctx, channel, notify.FormatDigest(d)); err != nil {
			logrus.WithField("channel", channel).WithError(err).Error("Failed to post digest")
			continue
		}
		logrus.WithFields(logrus.Fields{"channel": channel, "orders": len(tracked), "completed": d.Completed}).Info("Digest posted")
	}

	return summary, nil
}

// check fetches one order and returns its digest line, whether it was
// removed from monitoring and whether the fetch succeeded.
func (s *Scheduler) check(ctx context.Context, o orders.TrackedOrder, at time.Time) (string, bool, bool) {
	log := logrus.WithField("orderId", o.OrderID)

	u, err := s.Venue.GetOrder(ctx, o.OrderID)
	if err != nil {
		log.WithError(err).Warn("Failed to fetch order status")
		return notify.FormatFetchFailure(o.OrderID), false, false
	}

	line := notify.FormatExecutionReport(*u)

	if !u.Complete() {
		err := s.Store.Touch(ctx, o.OrderID, at)
		if errors.Is(err, store.ErrNotFound) {
			log.Debug("Order removed while the digest was running")
		} else if err != nil {
			log.WithError(err).Warn("Failed to record digest check")
		}
		return line, false, true
	}

	log.WithField("status", u.Status).Info("Order completed, stopping monitoring")
	if err := s.Store.Delete(ctx, o.OrderID); err != nil {
		log.WithError(err).Warn("Failed to remove completed order")
		return line, false, true
	}

	if s.Archiver != nil {
		finished := o.Apply(*u)
		finished.LastCheckedAt = at
		if err := s.Archiver.Archive(ctx, finished); err != nil {
			log.WithError(err).Warn("Failed to archive order")
		}
	}

	return line, true, true
}

// NextRun is the first scheduled hour strictly after at, in UTC.
func NextRun(at time.Time, hours []int) time.Time {
	at = at.UTC()
	if len(hours) == 0 {
		return time.Time{}
	}

	sorted := append([]int(nil), hours...)
	sort.Ints(sorted)

	day := time.Date(at.Year(), at.Month(), at.Day(), 0, 0, 0, 0, time.UTC)
	for _, h := range sorted {
		if h > at.Hour() {
			return day.Add(time.Duration(h) * time.Hour)
		}
	}
	return day.AddDate(0, 0, 1).Add(time.Duration(sorted[0]) * time.Hour)
}
