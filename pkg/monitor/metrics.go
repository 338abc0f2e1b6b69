package monitor

import (
	"context"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// Metrics are process counters for the notifier.
type Metrics struct {
	EventsReceived    atomic.Int64
	OrdersProcessed   atomic.Int64
	NotificationsSent atomic.Int64
	NotifyErrors      atomic.Int64
	StoreErrors       atomic.Int64
	DecodeErrors      atomic.Int64
	Reconnects        atomic.Int64
}

// MetricsSnapshot is a point in time copy of Metrics.
type MetricsSnapshot struct {
	EventsReceived    int64 `json:"events_received"`
	OrdersProcessed   int64 `json:"orders_processed"`
	NotificationsSent int64 `json:"notifications_sent"`
	NotifyErrors      int64 `json:"notify_errors"`
	StoreErrors       int64 `json:"store_errors"`
	DecodeErrors      int64 `json:"decode_errors"`
	Reconnects        int64 `json:"reconnects"`
}

func (m *Metrics) Snapshot() MetricsSnapshot {
	return MetricsSnapshot{
		EventsReceived:    m.EventsReceived.Load(),
		OrdersProcessed:   m.OrdersProcessed.Load(),
		NotificationsSent: m.NotificationsSent.Load(),
		NotifyErrors:      m.NotifyErrors.Load(),
		StoreErrors:       m.StoreErrors.Load(),
		DecodeErrors:      m.DecodeErrors.Load(),
		Reconnects:        m.Reconnects.Load(),
	}
}

func (s MetricsSnapshot) fields() logrus.Fields {
	return logrus.Fields{
		"eventsReceived":    s.EventsReceived,
		"ordersProcessed":   s.OrdersProcessed,
		"notificationsSent": s.NotificationsSent,
		"notifyErrors":      s.NotifyErrors,
		"storeErrors":       s.StoreErrors,
		"decodeErrors":      s.DecodeErrors,
		"reconnects":        s.Reconnects,
	}
}

// LogEvery logs a snapshot on every tick until ctx is done.
func (m *Metrics) LogEvery(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logrus.WithFields(m.Snapshot().fields()).Info("Monitor metrics")
		}
	}
}
