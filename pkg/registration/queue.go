package registration

import (
	"context"
	"encoding/json"
	"time"

	"github.com/abellodlm/drewsigloo/pkg"
	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/sqs"
	"github.com/aws/aws-sdk-go-v2/service/sqs/types"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Request asks the worker to start monitoring an order.
type Request struct {
	RequestID   string    `json:"request_id"`
	OrderID     string    `json:"order_id"`
	Channel     string    `json:"channel_id"`
	UserID      string    `json:"user_id"`
	ResponseURL string    `json:"response_url"`
	RequestedAt time.Time `json:"requested_at"`
}

// NewRequest creates a Request with a fresh request id.
func NewRequest(orderID string, channel string, userID string, responseURL string, at time.Time) *Request {
	return &Request{
		RequestID:   uuid.NewString(),
		OrderID:     orderID,
		Channel:     channel,
		UserID:      userID,
		ResponseURL: responseURL,
		RequestedAt: at.UTC(),
	}
}

// Queue hands registration requests to the worker.
type Queue interface {
	Submit(ctx context.Context, req *Request) error
}

// SQSQueue submits requests to an SQS queue.
type SQSQueue struct {
	Client pkg.SQSAccess
	URL    string
}

// Submit sends the request as the JSON message body.
func (q SQSQueue) Submit(ctx context.Context, req *Request) error {
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	input := &sqs.SendMessageInput{
		QueueUrl:    &q.URL,
		MessageBody: aws.String(string(body)),
		MessageAttributes: map[string]types.MessageAttributeValue{
			"OrderId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.OrderID),
			},
			"Channel": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.Channel),
			},
			"RequestId": {
				DataType:    aws.String("String"),
				StringValue: aws.String(req.RequestID),
			},
		},
	}

	logrus.WithFields(logrus.Fields{
		"orderId":   req.OrderID,
		"requestId": req.RequestID,
		"channel":   req.Channel,
		"queue":     q.URL,
	}).Info("Submitting registration to Queue")

	_, err = q.Client.SendMessage(ctx, input)
	return err
}
