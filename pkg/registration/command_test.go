package registration

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"testing"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/abellodlm/drewsigloo/pkg/store"
	awsEvents "github.com/aws/aws-lambda-go/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func commandConfig() *configuration.AppConfig {
	return &configuration.AppConfig{
		SlashCommand:    "/monitor",
		AllowedChannels: []string{"C123"},
		DigestHours:     []int{11, 23},
	}
}

func commandBody(command string, channel string, text string) string {
	return url.Values{
		"command":      {command},
		"text":         {text},
		"user_id":      {"U1"},
		"channel_id":   {channel},
		"channel_name": {"trading"},
		"response_url": {"https://hooks.slack.com/commands/1"},
	}.Encode()
}

func decodeReply(t *testing.T, res awsEvents.APIGatewayProxyResponse) reply {
	var r reply
	assert.NoError(t, json.Unmarshal([]byte(res.Body), &r))
	return r
}

// Ensures a new order is enqueued and acknowledged
func TestCommandEnqueues(t *testing.T) {
	ctx := context.Background()

	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.MatchedBy(func(req *Request) bool {
		return req.OrderID == "87526ab1-0000" && req.Channel == "C123" && req.UserID == "U1" &&
			req.ResponseURL == "https://hooks.slack.com/commands/1" && req.RequestID != ""
	})).Return(nil)

	c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: commandBody("/monitor", "C123", " 87526ab1-0000 ")})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	r := decodeReply(t, res)
	assert.Equal(t, "ephemeral", r.ResponseType)
	assert.Contains(t, r.Text, "🔍 Starting monitoring for order 87526ab1-0000...")
	queue.AssertExpectations(t)
}

func TestCommandBase64Body(t *testing.T) {
	ctx := context.Background()
	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(nil)

	c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "")

	body := base64.StdEncoding.EncodeToString([]byte(commandBody("/monitor", "C123", "order-1")))
	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: body, IsBase64Encoded: true})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	queue.AssertNumberOfCalls(t, "Submit", 1)
}

func TestCommandRejections(t *testing.T) {
	type testCase struct {
		name         string
		body         string
		expectedCode int
		expectedText string
	}

	cases := []testCase{
		{name: "wrong command", body: commandBody("/pnl", "C123", "order-1"), expectedCode: http.StatusBadRequest, expectedText: "Invalid command"},
		{name: "channel", body: commandBody("/monitor", "C999", "order-1"), expectedCode: http.StatusOK, expectedText: "🔒 The /monitor command is restricted to authorized channels only."},
		{name: "no order", body: commandBody("/monitor", "C123", "  "), expectedCode: http.StatusOK, expectedText: "Please provide an order ID. Example: /monitor 87526ab1-e9a2-4d6e-920f-ab05c399ea9a"},
	}

	for _, currentCase := range cases {
		queue := &MockQueue{}
		c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "")

		res, err := c.Handle(context.Background(), awsEvents.APIGatewayProxyRequest{Body: currentCase.body})
		assert.NoError(t, err, currentCase.name)
		assert.Equal(t, currentCase.expectedCode, res.StatusCode, currentCase.name)
		assert.Equal(t, currentCase.expectedText, decodeReply(t, res).Text, currentCase.name)
		queue.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
	}
}

// Ensures an empty allow list lets every channel through
func TestCommandAllowsAllChannels(t *testing.T) {
	ctx := context.Background()
	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(nil)

	config := commandConfig()
	config.AllowedChannels = nil
	c := NewCommander(config, store.NewMemoryStore(), queue, "")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: commandBody("/monitor", "C999", "order-1")})
	assert.NoError(t, err)
	assert.Contains(t, decodeReply(t, res).Text, "Starting monitoring")
}

// Ensures a second registration is acknowledged as a duplicate
// without another request
func TestCommandDuplicate(t *testing.T) {
	ctx := context.Background()

	s := store.NewMemoryStore()
	existing := orders.TrackedOrder{OrderID: "order-1", Channel: "C123"}
	assert.NoError(t, s.Create(ctx, existing))

	queue := &MockQueue{}
	c := NewCommander(commandConfig(), s, queue, "")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: commandBody("/monitor", "C123", "order-1")})
	assert.NoError(t, err)

	r := decodeReply(t, res)
	assert.Equal(t, "ephemeral", r.ResponseType)
	assert.Contains(t, r.Text, "⚠️ *Order Already Monitored*: order-1")
	assert.Contains(t, r.Text, "11:00 & 23:00 UTC")
	queue.AssertNotCalled(t, "Submit", mock.Anything, mock.Anything)
}

type failingStore struct {
	store.Store
}

func (failingStore) Get(ctx context.Context, orderID string) (*orders.TrackedOrder, error) {
	return nil, errors.New("throttled")
}

// Ensures a store outage does not block registration
func TestCommandStoreErrorStillEnqueues(t *testing.T) {
	ctx := context.Background()
	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(nil)

	c := NewCommander(commandConfig(), failingStore{}, queue, "")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: commandBody("/monitor", "C123", "order-1")})
	assert.NoError(t, err)
	assert.Contains(t, decodeReply(t, res).Text, "Starting monitoring")
	queue.AssertNumberOfCalls(t, "Submit", 1)
}

func TestCommandQueueError(t *testing.T) {
	ctx := context.Background()
	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(errors.New("queue does not exist"))

	c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: commandBody("/monitor", "C123", "order-1")})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Error starting monitoring: queue does not exist", decodeReply(t, res).Text)
}

func sign(secret string, ts string, body string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))
	return "v0=" + hex.EncodeToString(mac.Sum(nil))
}

// Ensures replayed commands carry a signature the handler accepts
func TestSignedHeaders(t *testing.T) {
	ctx := context.Background()
	body := commandBody("/monitor", "C123", "order-1")
	at := time.Now()

	headers := SignedHeaders("signing-secret", body, at)
	assert.Equal(t, strconv.FormatInt(at.Unix(), 10), headers["X-Slack-Request-Timestamp"])
	assert.Equal(t, sign("signing-secret", headers["X-Slack-Request-Timestamp"], body), headers["X-Slack-Signature"])

	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(nil)
	c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "signing-secret")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: body, Headers: headers})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	queue.AssertNumberOfCalls(t, "Submit", 1)
}

// Ensures requests are only accepted with a valid Slack signature
// when a signing secret is configured
func TestCommandSignature(t *testing.T) {
	ctx := context.Background()
	body := commandBody("/monitor", "C123", "order-1")
	ts := strconv.FormatInt(time.Now().Unix(), 10)

	queue := &MockQueue{}
	queue.On("Submit", ctx, mock.Anything).Return(nil)
	c := NewCommander(commandConfig(), store.NewMemoryStore(), queue, "signing-secret")

	res, err := c.Handle(ctx, awsEvents.APIGatewayProxyRequest{
		Body: body,
		Headers: map[string]string{
			"x-slack-request-timestamp": ts,
			"x-slack-signature":         sign("signing-secret", ts, body),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	res, err = c.Handle(ctx, awsEvents.APIGatewayProxyRequest{
		Body: body,
		Headers: map[string]string{
			"x-slack-request-timestamp": ts,
			"x-slack-signature":         sign("other-secret", ts, body),
		},
	})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	res, err = c.Handle(ctx, awsEvents.APIGatewayProxyRequest{Body: body})
	assert.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, res.StatusCode)

	queue.AssertNumberOfCalls(t, "Submit", 1)
}
