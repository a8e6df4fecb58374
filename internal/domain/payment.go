package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

type PaymentStatus string

const (
	PaymentStatusPending    PaymentStatus = "pending"
	PaymentStatusProcessing PaymentStatus = "processing"
	PaymentStatusCompleted  PaymentStatus = "completed"
	PaymentStatusFailed     PaymentStatus = "failed"
	PaymentStatusRefunded   PaymentStatus = "refunded"
)

type Payment struct {
	ID        string          `json:"_id"`
	Order     string          `json:"order"`
	Amount    decimal.Decimal `json:"amount"`
	Currency  string          `json:"currency"`
	Method    string          `json:"method"`
	Status    PaymentStatus   `json:"status"`
	Reference string          `json:"paystackReference,omitempty"`
	PaidAt    *time.Time      `json:"paidAt,omitempty"`
}

// PaymentInit is the normalized answer of a payment initialization.
type PaymentInit struct {
	PaymentID        string `json:"payment_id"`
	Reference        string `json:"reference"`
	AuthorizationURL string `json:"authorization_url"`
}

// PaymentVerification is the outcome of verifying a gateway reference.
type PaymentVerification struct {
	Reference string        `json:"reference"`
	Verified  bool          `json:"verified"`
	Status    PaymentStatus `json:"status"`
	Payment   *Payment      `json:"payment,omitempty"`
}
