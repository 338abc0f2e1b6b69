package venue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

const (
	feedPath         = "/ws/v1"
	handshakeTimeout = 30 * time.Second
	closeGracePeriod = time.Second

	messageTypeOrder = "Order"
	messageTypeHello = "hello"
	messageTypeError = "error"
)

// Stream is a live, authenticated subscription to venue order events.
type Stream interface {
	// Subscribe requests the order stream starting now.
	Subscribe(ctx context.Context) error
	// Receive blocks until the next order update. io.EOF means the venue
	// closed the connection.
	Receive(ctx context.Context) (orders.Update, error)
	Close() error
}

// FeedDialer opens WebSocket connections to the venue.
type FeedDialer struct {
	Host            string
	URL             string
	Signer          Signer
	MaxDecodeErrors int
	Dialer          *websocket.Dialer
}

// NewFeedDialer creates a dialer for wss://<host>/ws/v1.
func NewFeedDialer(creds *configuration.TalosCredentials, maxDecodeErrors int) *FeedDialer {
	return &FeedDialer{
		Host:            creds.Host,
		URL:             "wss://" + creds.Host + feedPath,
		Signer:          NewSigner(creds.Key, creds.Secret),
		MaxDecodeErrors: maxDecodeErrors,
		Dialer:          &websocket.Dialer{HandshakeTimeout: handshakeTimeout, Proxy: http.ProxyFromEnvironment},
	}
}

// Dial connects and authenticates a new feed. A fresh signature is generated
// on every call.
func (d *FeedDialer) Dial(ctx context.Context) (Stream, error) {
	dialer := d.Dialer
	if dialer == nil {
		dialer = websocket.DefaultDialer
	}

	header := d.Signer.Headers(http.MethodGet, d.Host, feedPath, "")

	logrus.WithField("url", d.URL).Info("Connecting to venue feed")
	conn, resp, err := dialer.DialContext(ctx, d.URL, header)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}

	if err != nil {
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			return nil, fmt.Errorf("%w: handshake status %d", ErrAuth, resp.StatusCode)
		}
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}

	maxDecodeErrors := d.MaxDecodeErrors
	if maxDecodeErrors < 1 {
		maxDecodeErrors = 1
	}

	return &Feed{conn: conn, maxDecodeErrors: maxDecodeErrors, now: time.Now}, nil
}

// Feed is a Stream backed by a WebSocket connection.
// It is not safe for concurrent use.
type Feed struct {
	conn            *websocket.Conn
	pending         []orders.Update
	decodeErrors    int
	maxDecodeErrors int
	now             func() time.Time
}

// Subscribe sends the Order stream subscription.
func (f *Feed) Subscribe(ctx context.Context) error {
	now := f.now().UTC()
	req := subscribeRequest{
		ReqID:   now.Unix(),
		Type:    "subscribe",
		Streams: []subscribeStream{{Name: messageTypeOrder, StartDate: now.Format(TimestampLayout)}},
	}

	if deadline, ok := ctx.Deadline(); ok {
		f.conn.SetWriteDeadline(deadline)
		defer f.conn.SetWriteDeadline(time.Time{})
	}

	logrus.Info("Subscribing to Order stream")
	if err := f.conn.WriteJSON(req); err != nil {
		return fmt.Errorf("%w: subscribe: %v", ErrTransport, err)
	}
	return nil
}

// Receive returns the next order update.
// A message carrying several orders is split and returned one update at a time.
func (f *Feed) Receive(ctx context.Context) (orders.Update, error) {
	for {
		if len(f.pending) > 0 {
			u := f.pending[0]
			f.pending = f.pending[1:]
			return u, nil
		}

		if err := ctx.Err(); err != nil {
			return orders.Update{}, err
		}

		data, err := f.read(ctx)
		if err != nil {
			return orders.Update{}, err
		}

		updates, err := decodeMessage(data, f.now())
		if err != nil {
			f.decodeErrors++
			logrus.WithFields(logrus.Fields{
				"consecutive": f.decodeErrors,
				"error":       err,
			}).Warn("Dropping undecodable venue message")

			if f.decodeErrors >= f.maxDecodeErrors {
				return orders.Update{}, fmt.Errorf("%w: %d consecutive decode errors: %v", ErrProtocolDrift, f.decodeErrors, err)
			}
			return orders.Update{}, fmt.Errorf("%w: %v", ErrDecode, err)
		}

		f.decodeErrors = 0
		f.pending = updates
	}
}

func (f *Feed) read(ctx context.Context) ([]byte, error) {
	stop := context.AfterFunc(ctx, func() {
		f.conn.SetReadDeadline(time.Now())
	})
	defer stop()

	_, data, err := f.conn.ReadMessage()
	if err == nil {
		return data, nil
	}

	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var closeErr *websocket.CloseError
	if errors.As(err, &closeErr) {
		logrus.WithFields(logrus.Fields{
			"code": closeErr.Code,
			"text": closeErr.Text,
		}).Info("Venue closed the feed")
		return nil, io.EOF
	}

	return nil, fmt.Errorf("%w: %v", ErrTransport, err)
}

// Close sends a close frame and releases the connection.
func (f *Feed) Close() error {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
	f.conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(closeGracePeriod))
	return f.conn.Close()
}

// decodeMessage turns one feed message into the order updates it carries.
// Non-order messages decode to no updates.
func decodeMessage(data []byte, observedAt time.Time) ([]orders.Update, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return nil, err
	}

	switch env.Type {
	case messageTypeOrder:
		var wire []wireOrder
		if len(env.Data) > 0 {
			if err := json.Unmarshal(env.Data, &wire); err != nil {
				return nil, err
			}
		}

		updates := make([]orders.Update, 0, len(wire))
		for _, o := range wire {
			if o.OrderID == "" {
				continue
			}
			updates = append(updates, o.toUpdate(observedAt))
		}

		logrus.WithField("orders", len(updates)).Debug("Order message received")
		return updates, nil
	case messageTypeHello:
		logrus.Info("Received hello from venue")
	case messageTypeError:
		logrus.WithField("message", string(data)).Error("Venue reported an error")
	default:
		logrus.WithField("type", env.Type).Debug("Ignoring venue message")
	}

	return nil, nil
}
