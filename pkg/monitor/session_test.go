package monitor

import (
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/venue"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type streamEvent struct {
	update orders.Update
	err    error
}

// scriptedStream replays events and then fails with end.
type scriptedStream struct {
	subscribeErr error
	events       []streamEvent
	end          error
	closed       bool
}

func (s *scriptedStream) Subscribe(ctx context.Context) error {
	return s.subscribeErr
}

func (s *scriptedStream) Receive(ctx context.Context) (orders.Update, error) {
	if len(s.events) == 0 {
		return orders.Update{}, s.end
	}
	e := s.events[0]
	s.events = s.events[1:]
	return e.update, e.err
}

func (s *scriptedStream) Close() error {
	s.closed = true
	return nil
}

type dialResult struct {
	stream *scriptedStream
	err    error
}

// scriptedDialer hands out results in order and cancels the run once
// they are used up.
type scriptedDialer struct {
	results []dialResult
	cancel  context.CancelFunc
	dials   int
}

func (d *scriptedDialer) Dial(ctx context.Context) (venue.Stream, error) {
	d.dials++
	if len(d.results) == 0 {
		d.cancel()
		return nil, venue.ErrTransport
	}
	r := d.results[0]
	d.results = d.results[1:]
	if r.err != nil {
		return nil, r.err
	}
	return r.stream, nil
}

type recordingHandler struct {
	mu      sync.Mutex
	session *Session
	updates []orders.Update
	states  []State
}

func (h *recordingHandler) Handle(ctx context.Context, u orders.Update) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.updates = append(h.updates, u)
	if h.session != nil {
		state, _ := h.session.State()
		h.states = append(h.states, state)
	}
	return nil
}

func events(updates ...orders.Update) []streamEvent {
	var out []streamEvent
	for _, u := range updates {
		out = append(out, streamEvent{update: u})
	}
	return out
}

// Scenario: the connection drops after 47.0%, the session reconnects and
// 60.1% is notified exactly once against the persisted 45.2%.
func TestSessionReconnectWithoutDuplicates(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	s := registeredStore(t)
	messenger := new(MockMessenger)
	messenger.On("Post", mock.Anything, "C123", mock.Anything).Return(nil)

	metrics := &Metrics{}
	notifier := NewNotifier(s, messenger, nil, policy, metrics)

	first := &scriptedStream{
		events: events(
			update(orders.StatusPartiallyFilled, "45.2", "100000"),
			update(orders.StatusPartiallyFilled, "47.0", "100500"),
		),
		end: io.EOF,
	}
	second := &scriptedStream{
		events: events(
			update(orders.StatusPartiallyFilled, "47.0", "100500"),
			update(orders.StatusPartiallyFilled, "60.1", "101234.57"),
		),
		end: io.EOF,
	}
	dialer := &scriptedDialer{results: []dialResult{{stream: first}, {stream: second}}, cancel: cancel}

	session := NewSession(dialer, notifier, time.Millisecond, metrics)
	err := session.Run(ctx)

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 3, dialer.dials)
	assert.True(t, first.closed)
	assert.True(t, second.closed)

	messenger.AssertNumberOfCalls(t, "Post", 2)
	assert.Contains(t, messenger.Calls[1].Arguments.String(2), "45.2% → 60.1%")
	assert.GreaterOrEqual(t, metrics.Reconnects.Load(), int64(2))

	state, _ := session.State()
	assert.Equal(t, StateDisconnected, state)
}

// Ensures a single bad message is counted and the stream stays open
func TestSessionSkipsDecodeErrors(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stream := &scriptedStream{
		events: []streamEvent{
			{err: venue.ErrDecode},
			{update: update(orders.StatusPartiallyFilled, "45.2", "100000")},
		},
		end: io.EOF,
	}
	dialer := &scriptedDialer{results: []dialResult{{stream: stream}}, cancel: cancel}

	metrics := &Metrics{}
	handler := &recordingHandler{}
	session := NewSession(dialer, handler, time.Millisecond, metrics)
	handler.session = session

	assert.ErrorIs(t, session.Run(ctx), context.Canceled)

	assert.Len(t, handler.updates, 1)
	assert.Equal(t, []State{StateStreaming}, handler.states)
	assert.Equal(t, int64(1), metrics.DecodeErrors.Load())
	assert.Equal(t, 2, dialer.dials)
}

// Ensures protocol drift tears the connection down and dials again
func TestSessionReconnectsOnProtocolDrift(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	drifted := &scriptedStream{end: venue.ErrProtocolDrift}
	healthy := &scriptedStream{events: events(update(orders.StatusNew, "0", "0")), end: io.EOF}
	dialer := &scriptedDialer{results: []dialResult{{stream: drifted}, {stream: healthy}}, cancel: cancel}

	handler := &recordingHandler{}
	session := NewSession(dialer, handler, time.Millisecond, nil)

	assert.ErrorIs(t, session.Run(ctx), context.Canceled)
	assert.True(t, drifted.closed)
	assert.Len(t, handler.updates, 1)
}

// Ensures failed dials and subscriptions back off by the fixed interval
func TestSessionBacksOffAfterFailures(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	refused := &scriptedStream{subscribeErr: errors.New("write: broken pipe")}
	healthy := &scriptedStream{events: events(update(orders.StatusNew, "0", "0")), end: io.EOF}
	dialer := &scriptedDialer{
		results: []dialResult{
			{err: venue.ErrAuth},
			{stream: refused},
			{stream: healthy},
		},
		cancel: cancel,
	}

	interval := 20 * time.Millisecond
	metrics := &Metrics{}
	handler := &recordingHandler{}
	session := NewSession(dialer, handler, interval, metrics)

	started := time.Now()
	assert.ErrorIs(t, session.Run(ctx), context.Canceled)

	assert.GreaterOrEqual(t, time.Since(started), 3*interval)
	assert.True(t, refused.closed)
	assert.Len(t, handler.updates, 1)
	assert.Equal(t, int64(3), metrics.Reconnects.Load())
}

// Ensures cancellation interrupts the wait between attempts
func TestSessionStopsDuringBackoff(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	dialer := &scriptedDialer{
		results: []dialResult{{err: venue.ErrTransport}},
		cancel:  cancel,
	}
	session := NewSession(dialer, &recordingHandler{}, time.Hour, nil)

	started := time.Now()
	err := session.Run(ctx)

	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(started), time.Second)
	assert.Equal(t, 1, dialer.dials)
}

func TestSessionStateSince(t *testing.T) {
	session := NewSession(nil, nil, time.Second, nil)
	_, initial := session.State()

	session.setState(StateConnecting)
	session.setState(StateBackoff)
	state, since := session.State()
	assert.Equal(t, StateBackoff, state)
	assert.Equal(t, initial, since)

	time.Sleep(time.Millisecond)
	session.setState(StateStreaming)
	state, since = session.State()
	assert.Equal(t, StateStreaming, state)
	assert.True(t, since.After(initial))
}
