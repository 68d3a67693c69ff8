package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/client"
)

type StripePaymentProvider struct {
	client     *client.API
	failureUrl string
	successUrl string
}

// NewStripePaymentProvider builds a provider with its own API client. Every
// request made through it is bounded by timeout.
func NewStripePaymentProvider(secretKey string, timeout time.Duration, failureUrl, successUrl string) *StripePaymentProvider {
	sc := &client.API{}
	sc.Init(secretKey, stripe.NewBackends(&http.Client{Timeout: timeout}))

	return &StripePaymentProvider{
		client:     sc,
		failureUrl: failureUrl,
		successUrl: successUrl,
	}
}

func (s *StripePaymentProvider) CreateCheckoutSession(
	ctx context.Context,
	req domain.CheckoutRequest) (*domain.CheckoutSession, error) {

	bundle := req.Bundle
	currency := domain.NormalizeCurrency(bundle.Currency)

	metadata := map[string]string{
		domain.MetadataBundleID:   bundle.ID,
		domain.MetadataBuyerID:    req.Buyer.UserID,
		domain.MetadataCreatorID:  bundle.CreatorID,
		domain.MetadataBuyerEmail: req.Buyer.Email,
	}

	productData := &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
		Name: stripe.String(fmt.Sprintf("📦 %s by %s", bundle.Title, req.Creator.DisplayName)),
	}
	if bundle.Description != "" {
		productData.Description = stripe.String(bundle.Description)
	}

	params := &stripe.CheckoutSessionParams{
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
					Currency:    stripe.String(currency),
					UnitAmount:  stripe.Int64(bundle.PriceInMinorUnits()),
					ProductData: productData,
				},
				Quantity: stripe.Int64(1),
			},
		},
		Mode: stripe.String(string(stripe.CheckoutSessionModePayment)),
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			ApplicationFeeAmount: stripe.Int64(req.ApplicationFee),
			TransferData: &stripe.CheckoutSessionPaymentIntentDataTransferDataParams{
				Destination: stripe.String(req.Creator.StripeAccountID),
			},
			Metadata: metadata,
		},
		SuccessURL:        stripe.String(s.successUrl + "?session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(s.failureUrl),
		Metadata:          metadata,
		ClientReferenceID: stripe.String(req.Buyer.UserID),
	}

	if req.Buyer.Email != "" {
		params.CustomerEmail = stripe.String(req.Buyer.Email)
	}

	params.Context = ctx
	if req.IdempotencyKey != "" {
		params.SetIdempotencyKey(req.IdempotencyKey)
	}

	checkoutSession, err := s.client.CheckoutSessions.New(params)
	if err != nil {
		return nil, classifyStripeError(err, "")
	}

	return &domain.CheckoutSession{
		ID:  checkoutSession.ID,
		URL: checkoutSession.URL,
	}, nil
}

func (s *StripePaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*domain.PaymentDetails, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx

	checkoutSession, err := s.client.CheckoutSessions.Get(sessionID, params)
	if err != nil {
		return nil, classifyStripeError(err, sessionID)
	}

	return &domain.PaymentDetails{
		Reference:   checkoutSession.ID,
		Status:      string(checkoutSession.PaymentStatus),
		Paid:        checkoutSession.PaymentStatus == stripe.CheckoutSessionPaymentStatusPaid,
		AmountTotal: checkoutSession.AmountTotal,
		Currency:    string(checkoutSession.Currency),
		Metadata:    checkoutSession.Metadata,
	}, nil
}

func (s *StripePaymentProvider) RetrievePaymentIntent(
	ctx context.Context,
	paymentIntentID string) (*domain.PaymentDetails, error) {

	params := &stripe.PaymentIntentParams{}
	params.Context = ctx

	paymentIntent, err := s.client.PaymentIntents.Get(paymentIntentID, params)
	if err != nil {
		return nil, classifyStripeError(err, paymentIntentID)
	}

	return &domain.PaymentDetails{
		Reference:   paymentIntent.ID,
		Status:      string(paymentIntent.Status),
		Paid:        paymentIntent.Status == stripe.PaymentIntentStatusSucceeded,
		AmountTotal: paymentIntent.AmountReceived,
		Currency:    string(paymentIntent.Currency),
		Metadata:    paymentIntent.Metadata,
	}, nil
}

// classifyStripeError separates unknown references from failures a caller
// may retry. Anything that is not an API error never reached Stripe.
func classifyStripeError(err error, reference string) error {
	var stripeErr *stripe.Error
	if !errors.As(err, &stripeErr) {
		return fmt.Errorf("%w: stripe: %v", domain.ErrUpstreamUnavailable, err)
	}

	switch {
	case stripeErr.HTTPStatusCode == http.StatusNotFound,
		stripeErr.Code == stripe.ErrorCodeResourceMissing:
		return fmt.Errorf("%w: %s", domain.ErrPaymentReferenceNotFound, reference)
	case stripeErr.HTTPStatusCode == http.StatusTooManyRequests,
		stripeErr.HTTPStatusCode >= http.StatusInternalServerError:
		return fmt.Errorf("%w: stripe: %v", domain.ErrUpstreamUnavailable, err)
	default:
		return fmt.Errorf("stripe: %w", err)
	}
}
