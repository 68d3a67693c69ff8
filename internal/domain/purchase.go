package domain

import (
	"context"
	"time"
)

type PurchaseStatus string

const (
	PurchaseStatusPending   PurchaseStatus = "pending"
	PurchaseStatusCompleted PurchaseStatus = "completed"
	PurchaseStatusFailed    PurchaseStatus = "failed"
)

// IsTerminal reports whether no further transition is allowed out of s.
func (s PurchaseStatus) IsTerminal() bool {
	return s == PurchaseStatusCompleted || s == PurchaseStatusFailed
}

type VerificationMethod string

const (
	VerificationWebhook     VerificationMethod = "webhook"
	VerificationSuccessPage VerificationMethod = "success-page"
	VerificationManualGrant VerificationMethod = "manual-grant"
	VerificationCheckout    VerificationMethod = "checkout"
)

// Purchase is keyed by the payment reference issued by the processor, which
// makes the id the natural idempotency key for grants.
type Purchase struct {
	ID                 string
	BuyerID            string
	BundleID           string
	CreatorID          string
	Amount             int64
	Currency           string
	Status             PurchaseStatus
	VerificationMethod VerificationMethod
	FailureReason      *string
	CreatedAt          time.Time
	CompletedAt        *time.Time
}

func (p *Purchase) GrantsAccess() bool {
	return p != nil && p.Status == PurchaseStatusCompleted
}

func (p *Purchase) BelongsTo(buyerID, bundleID string) bool {
	return p.BuyerID == buyerID && p.BundleID == bundleID
}

type PurchaseRepository interface {
	// Create inserts the purchase only if no purchase with the same id exists.
	// It returns ErrConflict instead of overwriting.
	Create(ctx context.Context, purchase *Purchase) error
	GetById(ctx context.Context, id string) (*Purchase, error)
	GetCompletedByBuyerAndBundle(ctx context.Context, buyerID, bundleID string) (*Purchase, error)
	// Complete moves a pending purchase to completed. It returns ErrConflict
	// when the purchase is no longer pending.
	Complete(ctx context.Context, id string, method VerificationMethod, amount int64, currency string) (*Purchase, error)
	MarkFailed(ctx context.Context, id string, reason string) (bool, error)
	GetCompletedByBuyer(ctx context.Context, buyerID string, pagination Pagination) ([]Purchase, *Metadata, error)
}
