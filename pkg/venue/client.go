package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/configuration"
	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/sirupsen/logrus"
)

const (
	ordersPath     = "/v1/orders"
	requestTimeout = 15 * time.Second
)

// OrderFetcher is an abstraction to look up the current state of a venue order.
type OrderFetcher interface {
	GetOrder(ctx context.Context, orderID string) (*orders.Update, error)
}

// Client provides access to the venue REST API.
type Client struct {
	Host       string
	BaseURL    string
	Signer     Signer
	HTTPClient *http.Client
}

// NewClient creates a REST client against https://<host>.
func NewClient(creds *configuration.TalosCredentials) *Client {
	return &Client{
		Host:       creds.Host,
		BaseURL:    "https://" + creds.Host,
		Signer:     NewSigner(creds.Key, creds.Secret),
		HTTPClient: &http.Client{Timeout: requestTimeout},
	}
}

// GetOrder fetches a single order by id.
func (c *Client) GetOrder(ctx context.Context, orderID string) (*orders.Update, error) {
	query := url.Values{"OrderID": []string{orderID}}.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+ordersPath+"?"+query, nil)
	if err != nil {
		return nil, err
	}
	req.Header = c.Signer.Headers(http.MethodGet, c.Host, ordersPath, query)

	logrus.WithField("orderId", orderID).Debug("Fetching order from venue")
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrTransport, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %v", ErrTransport, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, fmt.Errorf("%w: status %d", ErrAuth, resp.StatusCode)
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
	case resp.StatusCode != http.StatusOK:
		logrus.WithFields(logrus.Fields{
			"orderId": orderID,
			"status":  resp.StatusCode,
			"body":    string(body),
		}).Warn("Venue request failed")
		return nil, fmt.Errorf("%w: status %d", ErrTransport, resp.StatusCode)
	}

	var payload ordersResponse
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	for _, o := range payload.Data {
		if o.OrderID == "" || o.OrderID == orderID {
			o.OrderID = orderID
			u := o.toUpdate(time.Now())
			return &u, nil
		}
	}

	return nil, fmt.Errorf("%w: %s", ErrOrderNotFound, orderID)
}
