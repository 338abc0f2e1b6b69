package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/abellodlm/drewsigloo/pkg/orders"
	"github.com/shopspring/decimal"
)

const shortIDLength = 8

var (
	thousand = decimal.NewFromInt(1_000)
	million  = decimal.NewFromInt(1_000_000)
	hundred  = decimal.NewFromInt(100)
	ten      = decimal.NewFromInt(10)
	one      = decimal.NewFromInt(1)
)

// FormatUpdate renders a real-time notification for an order and the
// changes that caused it.
func FormatUpdate(order orders.TrackedOrder, changes []orders.Change) string {
	asset := orders.BaseAsset(order.Instrument)

	header := fmt.Sprintf("*%s* `%s`", order.Instrument, shortID(order.OrderID))
	if order.Comments != "" {
		header += " - " + order.Comments
	}

	quantities := fmt.Sprintf("Filled: %s %s | Remaining: %s %s",
		formatQuantity(order.FilledQuantity), asset,
		formatQuantity(order.RemainingQuantity), asset)
	if order.AveragePrice.IsPositive() {
		quantities += " | Avg price: $" + formatPrice(order.AveragePrice)
	}

	lines := []string{
		"🔔 *Real-time Order Update*",
		header,
		fmt.Sprintf("Status: *%s* (%s%% filled)", order.Status, formatPercent(order.FillPercentage)),
		quantities,
	}

	if len(changes) > 0 {
		lines = append(lines, "", "*Changes:*")
		for _, c := range changes {
			lines = append(lines, "• "+formatChange(c))
		}
	}

	return strings.Join(lines, "\n")
}

func formatChange(c orders.Change) string {
	switch c.Kind {
	case orders.ChangeStatus:
		return fmt.Sprintf("%s Status: %s → *%s*", c.ToStatus.Emoji(), c.FromStatus, c.ToStatus)
	case orders.ChangeCompleted:
		return "🎉 *Order completed (100% filled)*"
	case orders.ChangeFill:
		return fmt.Sprintf("📈 Fill: %s%% → %s%% (%s%%)",
			formatPercent(c.From), formatPercent(c.To), signed(c.To.Sub(c.From), 1))
	case orders.ChangePrice:
		decimals := priceDecimals(c.To)
		return fmt.Sprintf("💰 Avg price: $%s → $%s (%s)",
			c.From.StringFixed(decimals), c.To.StringFixed(decimals), signed(c.To.Sub(c.From), decimals))
	case orders.ChangeCorrection:
		return fmt.Sprintf("↩️ Fill corrected: %s%% → %s%%", formatPercent(c.From), formatPercent(c.To))
	}
	return string(c.Kind)
}

// FormatExecutionReport renders the one line summary used for registration
// replies and digests, e.g. "📊 ~7.00M FLR filled (70.0%) at average net price of $0.022700".
func FormatExecutionReport(u orders.Update) string {
	asset := orders.BaseAsset(u.Symbol)
	qty := formatQuantity(u.FilledQuantity)
	price := formatPrice(u.AveragePrice)

	if filledOut(u) {
		return fmt.Sprintf("✅ %s %s filled (100%%) at final average net price of $%s", qty, asset, price)
	}
	return fmt.Sprintf("📊 ~%s %s filled (%s%%) at average net price of $%s", qty, asset, formatPercent(u.FillPercentage), price)
}

// FormatReferencePrice compares the execution price with an external reference.
func FormatReferencePrice(pair string, reference decimal.Decimal, average decimal.Decimal) string {
	line := fmt.Sprintf("🏷️ Kraken %s reference: $%s", pair, formatPrice(reference))
	if average.IsPositive() && reference.IsPositive() {
		diff := average.Sub(reference).Div(reference).Mul(hundred)
		line += fmt.Sprintf(" (avg %s%% vs reference)", signed(diff, 2))
	}
	return line
}

// FormatFetchFailure is the digest line for an order whose status could not be read.
func FormatFetchFailure(orderID string) string {
	return fmt.Sprintf("❌ %s: Unable to fetch status", orderID)
}

// Digest is the periodic summary posted to one channel.
type Digest struct {
	At        time.Time
	Lines     []string
	Completed int
	NextRun   time.Time
	Remaining int
}

// FormatDigest renders a channel digest.
func FormatDigest(d Digest) string {
	at := d.At.UTC()
	period := "Evening"
	if at.Hour() < 12 {
		period = "Morning"
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 *%s Order Monitoring Update* (%s UTC)\n", period, at.Format("15:04"))
	for _, line := range d.Lines {
		b.WriteString("\n• " + line)
	}

	if d.Completed > 0 {
		fmt.Fprintf(&b, "\n\n✅ *Completed orders removed from monitoring*: %d", d.Completed)
	}

	if d.Remaining > 0 {
		fmt.Fprintf(&b, "\n\n📅 *Next update*: %s UTC (%d orders)", d.NextRun.UTC().Format("15:00"), d.Remaining)
	}

	return b.String()
}

func filledOut(u orders.Update) bool {
	return u.Status == orders.StatusFilled || u.Status == orders.StatusDoneForDay || u.FullyFilled()
}

func shortID(id string) string {
	if len(id) <= shortIDLength {
		return id
	}
	return id[:shortIDLength] + "..."
}

func formatPercent(d decimal.Decimal) string {
	return d.StringFixed(1)
}

func signed(d decimal.Decimal, decimals int32) string {
	s := d.StringFixed(decimals)
	if d.Round(decimals).IsPositive() {
		return "+" + s
	}
	return s
}

func priceDecimals(price decimal.Decimal) int32 {
	switch {
	case price.GreaterThanOrEqual(thousand):
		return 2
	case price.GreaterThanOrEqual(hundred):
		return 3
	case price.GreaterThanOrEqual(ten):
		return 4
	case price.GreaterThanOrEqual(one):
		return 5
	}
	return 6
}

func formatPrice(price decimal.Decimal) string {
	return price.StringFixed(priceDecimals(price))
}

// formatQuantity abbreviates with K/M and keeps about three significant digits.
func formatQuantity(qty decimal.Decimal) string {
	scaled, suffix := qty, ""
	switch {
	case qty.GreaterThanOrEqual(million):
		scaled, suffix = qty.Div(million), "M"
	case qty.GreaterThanOrEqual(thousand):
		scaled, suffix = qty.Div(thousand), "K"
	}

	var decimals int32 = 2
	switch {
	case scaled.GreaterThanOrEqual(hundred):
		decimals = 0
	case scaled.GreaterThanOrEqual(ten):
		decimals = 1
	}

	return scaled.StringFixed(decimals) + suffix
}
