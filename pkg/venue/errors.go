package venue

import "errors"

var (
	// ErrAuth is returned when the venue rejects the credentials or signature.
	ErrAuth = errors.New("venue authentication failed")
	// ErrTransport is returned on network failures talking to the venue.
	ErrTransport = errors.New("venue transport failure")
	// ErrDecode is returned when a single message cannot be decoded.
	ErrDecode = errors.New("venue message could not be decoded")
	// ErrProtocolDrift is returned after too many consecutive decode failures.
	ErrProtocolDrift = errors.New("venue protocol drift")
	// ErrOrderNotFound is returned when the venue has no order with the requested id.
	ErrOrderNotFound = errors.New("venue order not found")
)
