// Package ledger records which drafts became orders and every payment
// verification attempt.
package ledger

import (
	"context"
	"errors"
	"time"
)

var (
	ErrDuplicateSubmission = errors.New("submission already recorded")
	ErrSubmissionNotFound  = errors.New("submission not found")
)

type Outcome string

const (
	OutcomeVerified Outcome = "verified"
	OutcomeFailed   Outcome = "failed"
)

type Submission struct {
	IdempotencyKey string
	DraftID        string
	UserID         string
	OrderID        string
	OrderNumber    string
	CreatedAt      time.Time
}

type Verification struct {
	ID          string
	Reference   string
	OrderID     string
	Outcome     Outcome
	Detail      string
	AttemptedAt time.Time
}

type Ledger interface {
	RecordSubmission(ctx context.Context, s Submission) error
	GetSubmission(ctx context.Context, idempotencyKey string) (*Submission, error)
	RecordVerification(ctx context.Context, v Verification) error
	ListVerifications(ctx context.Context, reference string) ([]Verification, error)
}

// NopLedger remembers nothing. Every lookup misses.
type NopLedger struct{}

func (NopLedger) RecordSubmission(context.Context, Submission) error { return nil }
func (NopLedger) GetSubmission(context.Context, string) (*Submission, error) {
	return nil, ErrSubmissionNotFound
}
func (NopLedger) RecordVerification(context.Context, Verification) error { return nil }
func (NopLedger) ListVerifications(context.Context, string) ([]Verification, error) {
	return nil, nil
}
