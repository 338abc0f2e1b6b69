package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/shopspring/decimal"
)

// amount decodes venue numerics which arrive as strings, numbers or "".
type amount struct {
	decimal.Decimal
}

func (a *amount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		a.Decimal = decimal.Zero
		return nil
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return fmt.Errorf("invalid amount %q: %w", s, err)
	}
	a.Decimal = d
	return nil
}

type wireMarket struct {
	Market string `json:"Market"`
	CumQty amount `json:"CumQty"`
}

type wireOrder struct {
	OrderID    string       `json:"OrderID"`
	Symbol     string       `json:"Symbol"`
	OrdStatus  string       `json:"OrdStatus"`
	OrderQty   amount       `json:"OrderQty"`
	CumQty     amount       `json:"CumQty"`
	LeavesQty  amount       `json:"LeavesQty"`
	AvgPx      amount       `json:"AvgPx"`
	AvgPxAllIn amount       `json:"AvgPxAllIn"`
	Markets    []wireMarket `json:"Markets"`
	Comments   string       `json:"Comments"`
}

type envelope struct {
	ReqID int64           `json:"reqid,omitempty"`
	Type  string          `json:"type"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type subscribeStream struct {
	Name      string `json:"name"`
	StartDate string `json:"StartDate"`
}

type subscribeRequest struct {
	ReqID   int64             `json:"reqid"`
	Type    string            `json:"type"`
	Streams []subscribeStream `json:"streams"`
}

type ordersResponse struct {
	Data []wireOrder `json:"data"`
}

// toUpdate standardises a venue order into an Update.
// The all-in average price is preferred as it includes fees.
func (o wireOrder) toUpdate(observedAt time.Time) orders.Update {
	price := o.AvgPxAllIn.Decimal
	if price.IsZero() {
		price = o.AvgPx.Decimal
	}

	markets := 0
	for _, m := range o.Markets {
		if m.CumQty.IsPositive() {
			markets++
		}
	}

	return orders.Update{
		OrderID:           o.OrderID,
		Symbol:            o.Symbol,
		Status:            orders.ParseStatus(o.OrdStatus),
		OrderQuantity:     o.OrderQty.Decimal,
		FilledQuantity:    o.CumQty.Decimal,
		RemainingQuantity: o.LeavesQty.Decimal,
		AveragePrice:      price,
		FillPercentage:    orders.FillPercentage(o.CumQty.Decimal, o.OrderQty.Decimal),
		MarketCount:       markets,
		Comments:          o.Comments,
		ObservedAt:        observedAt.UTC(),
	}
}
