package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	"github.com/sirupsen/logrus"
)

// State is the connection state of a Session.
type State string

const (
	StateDisconnected  State = "Disconnected"
	StateConnecting    State = "Connecting"
	StateAuthenticated State = "Authenticated"
	StateStreaming     State = "Streaming"
	StateBackoff       State = "Backoff"
)

// Dialer opens a new authenticated feed.
type Dialer interface {
	Dial(ctx context.Context) (venue.Stream, error)
}

// Handler consumes decoded updates.
type Handler interface {
	Handle(ctx context.Context, u orders.Update) error
}

// Session keeps a single feed connection alive and hands every update to
// the Handler. Any connection failure closes the stream and waits a fixed
// Interval before dialing again, forever, until ctx is done.
type Session struct {
	Dialer   Dialer
	Handler  Handler
	Interval time.Duration
	Metrics  *Metrics

	mu    sync.Mutex
	state State
	since time.Time
}

func NewSession(dialer Dialer, handler Handler, interval time.Duration, metrics *Metrics) *Session {
	if metrics == nil {
		metrics = &Metrics{}
	}
	return &Session{
		Dialer:   dialer,
		Handler:  handler,
		Interval: interval,
		Metrics:  metrics,
		state:    StateDisconnected,
		since:    time.Now(),
	}
}

// State returns the current state and when the session last started or
// stopped streaming.
func (s *Session) State() (State, time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state, s.since
}

func (s *Session) setState(state State) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == state {
		return
	}
	logrus.WithFields(logrus.Fields{"from": s.state, "to": state}).Debug("Feed state change")
	if (s.state == StateStreaming) != (state == StateStreaming) {
		s.since = time.Now()
	}
	s.state = state
}

// Run blocks until ctx is done and returns ctx.Err().
func (s *Session) Run(ctx context.Context) error {
	attempt := 0
	defer s.setState(StateDisconnected)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		attempt++
		log := logrus.WithField("attempt", attempt)

		s.setState(StateConnecting)
		stream, err := s.Dialer.Dial(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, venue.ErrAuth) {
				log.WithError(err).Error("Feed authentication rejected")
			} else {
				log.WithError(err).Warn("Feed connection failed")
			}
			if err := s.backoff(ctx); err != nil {
				return err
			}
			continue
		}

		s.setState(StateAuthenticated)
		if err := stream.Subscribe(ctx); err != nil {
			stream.Close()
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.WithError(err).Warn("Feed subscription failed")
			if err := s.backoff(ctx); err != nil {
				return err
			}
			continue
		}

		s.setState(StateStreaming)
		log.Info("Streaming order updates")
		attempt = 0

		err = s.consume(ctx, stream)
		stream.Close()

		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case errors.Is(err, io.EOF):
			logrus.Warn("Feed closed by venue")
		case errors.Is(err, venue.ErrProtocolDrift):
			logrus.WithError(err).Error("Feed messages no longer decode")
		default:
			logrus.WithError(err).Warn("Feed connection lost")
		}

		if err := s.backoff(ctx); err != nil {
			return err
		}
	}
}

// consume reads until the stream fails. Single undecodable messages are
// skipped and handler errors never end the stream.
func (s *Session) consume(ctx context.Context, stream venue.Stream) error {
	for {
		u, err := stream.Receive(ctx)
		if errors.Is(err, venue.ErrDecode) {
			s.Metrics.DecodeErrors.Add(1)
			continue
		}
		if err != nil {
			return err
		}

		if err := s.Handler.Handle(ctx, u); err != nil {
			logrus.WithField("orderId", u.OrderID).WithError(err).Error("Failed to process order update")
		}
	}
}

func (s *Session) backoff(ctx context.Context) error {
	s.setState(StateBackoff)
	s.Metrics.Reconnects.Add(1)

	logrus.WithField("interval", s.Interval.String()).Info("Waiting before reconnecting")
	timer := time.NewTimer(s.Interval)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
