package domain

import "context"

const (
	MetadataBundleID   = "bundle_id"
	MetadataBuyerID    = "buyer_id"
	MetadataCreatorID  = "creator_id"
	MetadataBuyerEmail = "buyer_email"
)

// PaymentDetails is the processor's authoritative view of a payment reference.
type PaymentDetails struct {
	Reference   string
	Status      string
	Paid        bool
	AmountTotal int64
	Currency    string
	Metadata    map[string]string
}

type CheckoutRequest struct {
	Buyer          Identity
	Bundle         *Bundle
	Creator        *Creator
	ApplicationFee int64
	IdempotencyKey string
}

type CheckoutSession struct {
	ID  string
	URL string
}

type PaymentProvider interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (*CheckoutSession, error)
	RetrieveSession(ctx context.Context, sessionID string) (*PaymentDetails, error)
	RetrievePaymentIntent(ctx context.Context, paymentIntentID string) (*PaymentDetails, error)
}
