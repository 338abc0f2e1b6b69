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
	"strconv"
	"strings"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/notify"
	"github.com/abellodlm/drewsigloo/pkg/store"
	awsEvents "github.com/aws/aws-lambda-go/events"
	"github.com/sirupsen/logrus"
	"github.com/slack-go/slack"
)

type reply struct {
	Text         string `json:"text"`
	ResponseType string `json:"response_type,omitempty"`
}

// Commander answers the slash command. It always acknowledges synchronously
// and leaves the venue lookup to the worker behind Queue.
type Commander struct {
	Config        *configuration.AppConfig
	Store         store.Store
	Queue         Queue
	SigningSecret string

	now func() time.Time
}

func NewCommander(config *configuration.AppConfig, s store.Store, queue Queue, signingSecret string) *Commander {
	return &Commander{Config: config, Store: s, Queue: queue, SigningSecret: signingSecret, now: time.Now}
}

// Handle processes an API Gateway proxy request carrying a Slack slash command.
func (c *Commander) Handle(ctx context.Context, event awsEvents.APIGatewayProxyRequest) (awsEvents.APIGatewayProxyResponse, error) {
	body := event.Body
	if event.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(body)
		if err != nil {
			return respond(http.StatusBadRequest, "Invalid request body", "")
		}
		body = string(decoded)
	}

	header := http.Header{}
	for k, v := range event.Headers {
		header.Set(k, v)
	}

	if c.SigningSecret != "" {
		if err := verify(header, body, c.SigningSecret); err != nil {
			logrus.WithError(err).Warn("Rejected slash command with an invalid signature")
			return respond(http.StatusUnauthorized, "Invalid signature", "")
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, "/", strings.NewReader(body))
	if err != nil {
		return awsEvents.APIGatewayProxyResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	cmd, err := slack.SlashCommandParse(req)
	if err != nil {
		return respond(http.StatusBadRequest, "Invalid request body", "")
	}

	log := logrus.WithFields(logrus.Fields{
		"command": cmd.Command,
		"channel": cmd.ChannelID,
		"user":    cmd.UserID,
	})

	if cmd.Command != c.Config.SlashCommand {
		log.Warn("Unexpected slash command")
		return respond(http.StatusBadRequest, "Invalid command", "")
	}

	if !c.Config.ChannelAllowed(cmd.ChannelID) {
		log.WithField("channelName", cmd.ChannelName).Warn("Unauthorized channel access attempt")
		return respond(http.StatusOK, restrictedMessage(cmd.Command), notify.ResponseEphemeral)
	}

	fields := strings.Fields(cmd.Text)
	if len(fields) == 0 {
		return respond(http.StatusOK, usageMessage(cmd.Command), notify.ResponseEphemeral)
	}
	orderID := fields[0]
	log = log.WithField("orderId", orderID)

	_, err = c.Store.Get(ctx, orderID)
	switch {
	case err == nil:
		log.Info("Order is already being monitored")
		return respond(http.StatusOK, duplicateMessage(orderID, "", c.Config.DigestHours), notify.ResponseEphemeral)
	case !errors.Is(err, store.ErrNotFound):
		log.WithError(err).Warn("Could not check monitoring state, registering anyway")
	}

	request := NewRequest(orderID, cmd.ChannelID, cmd.UserID, cmd.ResponseURL, c.now())
	if err := c.Queue.Submit(ctx, request); err != nil {
		log.WithError(err).Error("Failed to enqueue registration")
		return respond(http.StatusOK, "Error starting monitoring: "+err.Error(), notify.ResponseEphemeral)
	}

	log.WithField("requestId", request.RequestID).Info("Registration enqueued")
	return respond(http.StatusOK, startingMessage(orderID), notify.ResponseEphemeral)
}

func verify(header http.Header, body string, secret string) error {
	verifier, err := slack.NewSecretsVerifier(header, secret)
	if err != nil {
		return err
	}
	if _, err := verifier.Write([]byte(body)); err != nil {
		return err
	}
	return verifier.Ensure()
}

// SignedHeaders returns the signature headers Slack would send with body,
// for replaying a command outside API Gateway.
func SignedHeaders(secret string, body string, at time.Time) map[string]string {
	ts := strconv.FormatInt(at.Unix(), 10)

	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte("v0:" + ts + ":" + body))

	return map[string]string{
		"X-Slack-Request-Timestamp": ts,
		"X-Slack-Signature":         "v0=" + hex.EncodeToString(mac.Sum(nil)),
	}
}

func respond(status int, text string, responseType string) (awsEvents.APIGatewayProxyResponse, error) {
	body, err := json.Marshal(reply{Text: text, ResponseType: responseType})
	if err != nil {
		return awsEvents.APIGatewayProxyResponse{}, err
	}

	return awsEvents.APIGatewayProxyResponse{
		StatusCode: status,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       string(body),
	}, nil
}
