package reconcile

import (
	"net/url"
	"strings"
)

type Status string

const (
	StatusIdle      Status = "idle"
	StatusVerifying Status = "verifying"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
)

func (s Status) IsTerminal() bool {
	return s == StatusSucceeded || s == StatusFailed
}

func (s Status) CanTransitionTo(next Status) bool {
	switch s {
	case StatusIdle:
		return next == StatusVerifying
	case StatusVerifying:
		return next.IsTerminal()
	}
	return false
}

func (s Status) String() string {
	return string(s)
}

// Query parameters the payment gateway appends to the return URL.
const (
	ParamVerify    = "payment_verify"
	ParamReference = "reference"
	ParamTrxRef    = "trxref"
)

// Return is a recognized payment return.
type Return struct {
	Reference string
}

// ParseReturn reports whether q asks for a payment verification.
func ParseReturn(q url.Values) (Return, bool) {
	if !strings.EqualFold(q.Get(ParamVerify), "true") {
		return Return{}, false
	}
	ref := strings.TrimSpace(q.Get(ParamReference))
	if ref == "" {
		ref = strings.TrimSpace(q.Get(ParamTrxRef))
	}
	if ref == "" {
		return Return{}, false
	}
	return Return{Reference: ref}, true
}

// StripReturn returns a copy of u without the payment return parameters.
func StripReturn(u url.URL) url.URL {
	q := u.Query()
	q.Del(ParamVerify)
	q.Del(ParamReference)
	q.Del(ParamTrxRef)
	u.RawQuery = q.Encode()
	return u
}
