package app

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"github.com/metinatakli/creator-marketplace/api"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/metinatakli/creator-marketplace/internal/entitlement"
	"github.com/stripe/stripe-go/v82"
	"github.com/stripe/stripe-go/v82/webhook"
)

const maxWebhookBytes = 65_536

// StripeWebhook confirms payments asynchronously. It acknowledges every
// event it can never succeed on and answers 500 only when a retry by Stripe
// might help.
func (app *Application) StripeWebhook(w http.ResponseWriter, r *http.Request, params api.StripeWebhookParams) {
	logger := app.contextGetLogger(r)

	payload, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxWebhookBytes))
	if err != nil {
		app.badRequestResponse(w, r, fmt.Errorf("cannot read webhook payload"))
		return
	}

	event, err := webhook.ConstructEventWithOptions(
		payload,
		params.StripeSignature,
		app.config.Stripe.WebhookSecret,
		webhook.ConstructEventOptions{IgnoreAPIVersionMismatch: true},
	)
	if err != nil {
		logger.Warn("webhook signature verification failed", "error", err)
		app.badRequestResponse(w, r, fmt.Errorf("invalid webhook signature"))
		return
	}

	logger = logger.With("event_id", event.ID, "event_type", event.Type)

	claimed, err := app.webhookEvents.Claim(r.Context(), event.ID)
	if err != nil {
		// the purchase write is idempotent on its own, so carry on without dedupe
		logger.Warn("failed to claim webhook event", "error", err)
		claimed = true
	}

	if !claimed {
		logger.Info("duplicate webhook event ignored")
		w.WriteHeader(http.StatusOK)
		return
	}

	err = app.handleStripeEvent(r, event)
	if err != nil {
		if isPermanentWebhookError(err) {
			logger.Warn("webhook event cannot be processed", "error", err)
			w.WriteHeader(http.StatusOK)
			return
		}

		releaseErr := app.webhookEvents.Release(r.Context(), event.ID)
		if releaseErr != nil {
			logger.Error("failed to release webhook event", "error", releaseErr)
		}

		app.entitlementErrorResponse(w, r, err)
		return
	}

	w.WriteHeader(http.StatusOK)
}

func (app *Application) handleStripeEvent(r *http.Request, event stripe.Event) error {
	logger := app.contextGetLogger(r)

	switch event.Type {
	case stripe.EventTypeCheckoutSessionCompleted, stripe.EventTypeCheckoutSessionAsyncPaymentSucceeded:
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}

		// delayed payment methods complete the session before the money arrives
		if session.PaymentStatus != stripe.CheckoutSessionPaymentStatusPaid {
			logger.Info("checkout session completed without payment", "session_id", session.ID)
			return nil
		}

		result, err := app.entitlements.GrantAccess(r.Context(), entitlement.GrantInput{
			BuyerID:          session.Metadata[domain.MetadataBuyerID],
			BundleID:         session.Metadata[domain.MetadataBundleID],
			PaymentReference: session.ID,
			Method:           domain.VerificationWebhook,
		})
		if err != nil {
			return err
		}

		if result.Granted {
			app.sendReceipt(r, buyerEmail(session), result)
		}

		logger.Info("webhook grant processed",
			"session_id", session.ID,
			"granted", result.Granted,
			"already_granted", result.AlreadyGranted,
		)

	case stripe.EventTypeCheckoutSessionAsyncPaymentFailed, stripe.EventTypeCheckoutSessionExpired:
		session, err := decodeCheckoutSession(event)
		if err != nil {
			return err
		}

		_, err = app.entitlements.RecordPaymentFailure(r.Context(), session.ID, string(event.Type))
		if err != nil {
			return err
		}

	default:
		logger.Debug("unhandled webhook event type")
	}

	return nil
}

type malformedEventError struct {
	err error
}

func (e malformedEventError) Error() string {
	return fmt.Sprintf("malformed event payload: %v", e.err)
}

func (e malformedEventError) Unwrap() error {
	return e.err
}

func decodeCheckoutSession(event stripe.Event) (*stripe.CheckoutSession, error) {
	var session stripe.CheckoutSession

	err := json.Unmarshal(event.Data.Raw, &session)
	if err != nil {
		return nil, malformedEventError{err: err}
	}

	if session.ID == "" {
		return nil, malformedEventError{err: errors.New("missing checkout session id")}
	}

	return &session, nil
}

func buyerEmail(session *stripe.CheckoutSession) string {
	if email := session.Metadata[domain.MetadataBuyerEmail]; email != "" {
		return email
	}

	if session.CustomerDetails != nil && session.CustomerDetails.Email != "" {
		return session.CustomerDetails.Email
	}

	return session.CustomerEmail
}

func isPermanentWebhookError(err error) bool {
	var malformed malformedEventError

	return errors.As(err, &malformed) ||
		errors.Is(err, domain.ErrUnauthenticated) ||
		errors.Is(err, domain.ErrBundleNotFound) ||
		errors.Is(err, domain.ErrPaymentReferenceNotFound) ||
		errors.Is(err, domain.ErrPaymentNotConfirmed) ||
		errors.Is(err, domain.ErrMetadataMismatch)
}
