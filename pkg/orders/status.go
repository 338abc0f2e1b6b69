package orders

import "github.com/shopspring/decimal"

// Status is the venue order status.
type Status string

const (
	StatusNew             Status = "New"
	StatusPendingNew      Status = "PendingNew"
	StatusPartiallyFilled Status = "PartiallyFilled"
	StatusFilled          Status = "Filled"
	StatusPendingCancel   Status = "PendingCancel"
	StatusPendingReplace  Status = "PendingReplace"
	StatusCancelled       Status = "Cancelled"
	StatusRejected        Status = "Rejected"
	StatusDoneForDay      Status = "DoneForDay"
	StatusUnknown         Status = "Unknown"
)

// ParseStatus maps a venue status string onto a Status.
// Unrecognised values are kept as-is so they still show up in notifications.
func ParseStatus(s string) Status {
	switch s {
	case "":
		return StatusUnknown
	case "Canceled", "Cancelled":
		return StatusCancelled
	default:
		return Status(s)
	}
}

// Terminal reports whether no further fills can occur in this status.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusDoneForDay:
		return true
	}
	return false
}

// Emoji is the marker used for the status in chat messages.
func (s Status) Emoji() string {
	switch s {
	case StatusNew:
		return "🆕"
	case StatusPartiallyFilled:
		return "🔄"
	case StatusFilled:
		return "✅"
	case StatusCancelled:
		return "❌"
	case StatusRejected:
		return "🚫"
	case StatusPendingNew, StatusPendingCancel, StatusPendingReplace:
		return "⏳"
	}
	return "📊"
}

// ChangeKind identifies why a notification line was produced.
type ChangeKind string

const (
	ChangeStatus     ChangeKind = "status"
	ChangeCompleted  ChangeKind = "completed"
	ChangeFill       ChangeKind = "fill"
	ChangePrice      ChangeKind = "price"
	ChangeCorrection ChangeKind = "correction"
)

// Change is one observed difference between the stored and the incoming
// state of an order. Only triggering changes cause a notification; the
// rest are detail shown inside one.
type Change struct {
	Kind       ChangeKind
	Triggering bool

	FromStatus Status
	ToStatus   Status

	From decimal.Decimal
	To   decimal.Decimal
}
