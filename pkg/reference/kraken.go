package reference

import (
	"errors"
	"fmt"

	krakenapi "github.com/beldur/kraken-go-api-client"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"
)

// ErrUnavailable is returned when no reference is configured for a symbol.
var ErrUnavailable = errors.New("no reference price for symbol")

// KrakenAccess is the subset of the Kraken client used for public market data.
type KrakenAccess interface {
	Query(method string, data map[string]string) (interface{}, error)
}

// Quote is a reference price for a venue symbol.
type Quote struct {
	Pair  string
	Value decimal.Decimal
}

// KrakenReference looks up last trade prices on Kraken for venue symbols
// mapped in Pairs, e.g. BTC-USD -> XBTUSD.
type KrakenReference struct {
	Client KrakenAccess
	Pairs  map[string]string
}

// NewKrakenReference uses an unauthenticated client; only public endpoints are queried.
func NewKrakenReference(pairs map[string]string) *KrakenReference {
	return &KrakenReference{Client: krakenapi.New("", ""), Pairs: pairs}
}

// Price returns ErrUnavailable for unmapped symbols.
func (k *KrakenReference) Price(symbol string) (*Quote, error) {
	pair, ok := k.Pairs[symbol]
	if !ok {
		return nil, ErrUnavailable
	}

	result, err := k.Client.Query("Ticker", map[string]string{"pair": pair})
	if err != nil {
		return nil, fmt.Errorf("kraken ticker %s: %w", pair, err)
	}

	last, err := lastTrade(result, pair)
	if err != nil {
		return nil, err
	}

	logrus.WithFields(logrus.Fields{"symbol": symbol, "pair": pair, "price": last.String()}).Debug("Reference price")
	return &Quote{Pair: pair, Value: last}, nil
}

// lastTrade reads c[0] from the ticker entry. Kraken keys the result by its
// own pair name (XBTUSD -> XXBTZUSD), so a single entry is used as is.
func lastTrade(result interface{}, pair string) (decimal.Decimal, error) {
	tickers, ok := result.(map[string]interface{})
	if !ok {
		return decimal.Zero, fmt.Errorf("kraken ticker %s: unexpected result %T", pair, result)
	}

	entry, ok := tickers[pair]
	if !ok && len(tickers) == 1 {
		for _, v := range tickers {
			entry = v
		}
	}

	fields, ok := entry.(map[string]interface{})
	if !ok {
		return decimal.Zero, fmt.Errorf("kraken ticker %s: pair missing from result", pair)
	}

	closes, ok := fields["c"].([]interface{})
	if !ok || len(closes) == 0 {
		return decimal.Zero, fmt.Errorf("kraken ticker %s: no last trade", pair)
	}

	value, ok := closes[0].(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("kraken ticker %s: last trade is %T", pair, closes[0])
	}

	return decimal.NewFromString(value)
}
