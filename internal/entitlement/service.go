// Package entitlement decides whether a buyer holds paid access to a bundle
// and grants that access exactly once per confirmed payment.
//
// Grants are keyed by the processor's payment reference. Duplicate and
// concurrent grants for one reference are serialized by the purchase store's
// conditional writes, never by in-process locks, so the service is safe to run
// on any number of stateless replicas.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	DefaultUpstreamTimeout = 5 * time.Second
	DefaultContentURLTTL   = 15 * time.Minute

	instrumentationName = "github.com/metinatakli/creator-marketplace/internal/entitlement"
)

type Dependencies struct {
	Purchases domain.PurchaseRepository
	Bundles   domain.BundleRepository
	Creators  domain.CreatorRepository
	Payments  domain.PaymentProvider
	Signer    domain.ContentSigner
	Logger    *slog.Logger
}

type Config struct {
	UpstreamTimeout time.Duration
	ContentURLTTL   time.Duration
	// PlatformFeeBps is the platform's cut of every sale in basis points.
	PlatformFeeBps int64
}

type Service struct {
	purchases domain.PurchaseRepository
	bundles   domain.BundleRepository
	creators  domain.CreatorRepository
	payments  domain.PaymentProvider
	signer    domain.ContentSigner
	logger    *slog.Logger

	upstreamTimeout time.Duration
	contentURLTTL   time.Duration
	platformFeeBps  int64

	tracer trace.Tracer
	grants metric.Int64Counter

	newIdempotencyKey func() string
}

type AccessResult struct {
	HasAccess bool
	Purchase  *domain.Purchase
}

type GrantResult struct {
	Granted        bool
	AlreadyGranted bool
	Purchase       *domain.Purchase
	Bundle         *domain.Bundle
	Creator        *domain.Creator
}

type GrantInput struct {
	BuyerID          string
	BundleID         string
	PaymentReference string
	Method           domain.VerificationMethod
}

func NewService(deps Dependencies, cfg Config) *Service {
	if cfg.UpstreamTimeout <= 0 {
		cfg.UpstreamTimeout = DefaultUpstreamTimeout
	}
	if cfg.ContentURLTTL <= 0 {
		cfg.ContentURLTTL = DefaultContentURLTTL
	}

	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	grants, err := otel.Meter(instrumentationName).Int64Counter(
		"entitlement.grants",
		metric.WithDescription("Grant attempts by outcome"),
	)
	if err != nil {
		logger.Warn("failed to create grant counter", "error", err)
	}

	return &Service{
		purchases:         deps.Purchases,
		bundles:           deps.Bundles,
		creators:          deps.Creators,
		payments:          deps.Payments,
		signer:            deps.Signer,
		logger:            logger,
		upstreamTimeout:   cfg.UpstreamTimeout,
		contentURLTTL:     cfg.ContentURLTTL,
		platformFeeBps:    cfg.PlatformFeeBps,
		tracer:            otel.Tracer(instrumentationName),
		grants:            grants,
		newIdempotencyKey: func() string { return uuid.NewString() },
	}
}

func (s *Service) CheckAccess(ctx context.Context, buyerID, bundleID string) (*AccessResult, error) {
	if strings.TrimSpace(buyerID) == "" {
		return nil, domain.ErrUnauthenticated
	}

	if _, err := s.getBundle(ctx, bundleID); err != nil {
		return nil, err
	}

	return s.lookupAccess(ctx, buyerID, bundleID)
}

func (s *Service) lookupAccess(ctx context.Context, buyerID, bundleID string) (*AccessResult, error) {
	purchase, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Purchase, error) {
		return s.purchases.GetCompletedByBuyerAndBundle(ctx, buyerID, bundleID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return &AccessResult{HasAccess: false}, nil
		}

		return nil, err
	}

	return &AccessResult{HasAccess: true, Purchase: purchase}, nil
}

// GrantAccess records a completed purchase for a payment the processor
// confirms as paid. It may be called any number of times, concurrently, for
// the same reference: exactly one call observes Granted and every other one
// observes AlreadyGranted.
func (s *Service) GrantAccess(ctx context.Context, in GrantInput) (*GrantResult, error) {
	ctx, span := s.tracer.Start(ctx, "entitlement.GrantAccess", trace.WithAttributes(
		attribute.String("bundle.id", in.BundleID),
		attribute.String("payment.reference", in.PaymentReference),
	))
	defer span.End()

	if strings.TrimSpace(in.BuyerID) == "" {
		return nil, domain.ErrUnauthenticated
	}
	if strings.TrimSpace(in.PaymentReference) == "" {
		return nil, fmt.Errorf("%w: empty payment reference", domain.ErrPaymentReferenceNotFound)
	}
	if in.Method == "" {
		in.Method = domain.VerificationSuccessPage
	}

	bundle, err := s.getBundle(ctx, in.BundleID)
	if err != nil {
		return nil, err
	}

	existing, err := s.getPurchase(ctx, in.PaymentReference)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	if existing != nil {
		if !existing.BelongsTo(in.BuyerID, in.BundleID) {
			return nil, domain.ErrMetadataMismatch
		}

		switch existing.Status {
		case domain.PurchaseStatusCompleted:
			s.recordGrant(ctx, "already_granted")
			return s.alreadyGranted(ctx, existing, bundle), nil
		case domain.PurchaseStatusFailed:
			return nil, domain.ErrPaymentNotConfirmed
		}
	}

	payment, err := s.confirmPayment(ctx, in.PaymentReference)
	if err != nil {
		return nil, err
	}

	if err := verifyMetadata(payment.Metadata, in.BuyerID, bundle); err != nil {
		return nil, err
	}

	amount, currency := payment.AmountTotal, domain.NormalizeCurrency(payment.Currency)
	if currency == "" {
		amount, currency = bundle.PriceInMinorUnits(), domain.NormalizeCurrency(bundle.Currency)
	}

	var purchase *domain.Purchase
	if existing != nil {
		purchase, err = withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Purchase, error) {
			return s.purchases.Complete(ctx, in.PaymentReference, in.Method, amount, currency)
		})
	} else {
		purchase = &domain.Purchase{
			ID:                 in.PaymentReference,
			BuyerID:            in.BuyerID,
			BundleID:           bundle.ID,
			CreatorID:          bundle.CreatorID,
			Amount:             amount,
			Currency:           currency,
			Status:             domain.PurchaseStatusCompleted,
			VerificationMethod: in.Method,
		}

		_, err = withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, s.purchases.Create(ctx, purchase)
		})
	}

	if err != nil {
		if errors.Is(err, domain.ErrConflict) {
			return s.resolveConflict(ctx, in, bundle)
		}

		return nil, err
	}

	s.logger.InfoContext(ctx, "access granted",
		"purchase_id", purchase.ID,
		"buyer_id", purchase.BuyerID,
		"bundle_id", purchase.BundleID,
		"verification_method", purchase.VerificationMethod,
	)

	s.recordGrant(ctx, "granted")
	s.incrementSales(ctx, bundle.ID, purchase.Amount)

	return &GrantResult{
		Granted:  true,
		Purchase: purchase,
		Bundle:   bundle,
		Creator:  s.getCreatorBestEffort(ctx, bundle.CreatorID),
	}, nil
}

// resolveConflict runs after losing a conditional write. Somebody else has
// completed the purchase in the meantime, either under this reference or, for
// a second payment of an already owned bundle, under another one.
func (s *Service) resolveConflict(ctx context.Context, in GrantInput, bundle *domain.Bundle) (*GrantResult, error) {
	winner, err := s.getPurchase(ctx, in.PaymentReference)
	if err != nil && !errors.Is(err, domain.ErrRecordNotFound) {
		return nil, err
	}

	if winner != nil {
		if !winner.BelongsTo(in.BuyerID, in.BundleID) {
			return nil, domain.ErrMetadataMismatch
		}

		switch winner.Status {
		case domain.PurchaseStatusCompleted:
			s.recordGrant(ctx, "already_granted")
			return s.alreadyGranted(ctx, winner, bundle), nil
		case domain.PurchaseStatusFailed:
			return nil, domain.ErrPaymentNotConfirmed
		}
	}

	access, err := s.lookupAccess(ctx, in.BuyerID, in.BundleID)
	if err != nil {
		return nil, err
	}

	if !access.HasAccess {
		return nil, fmt.Errorf("purchase %s: write conflict without a completed purchase", in.PaymentReference)
	}

	s.logger.WarnContext(ctx, "payment received for a bundle the buyer already owns",
		"payment_reference", in.PaymentReference,
		"existing_purchase_id", access.Purchase.ID,
		"buyer_id", in.BuyerID,
		"bundle_id", in.BundleID,
	)

	s.recordGrant(ctx, "already_granted")

	return s.alreadyGranted(ctx, access.Purchase, bundle), nil
}

func (s *Service) alreadyGranted(ctx context.Context, purchase *domain.Purchase, bundle *domain.Bundle) *GrantResult {
	return &GrantResult{
		Granted:        false,
		AlreadyGranted: true,
		Purchase:       purchase,
		Bundle:         bundle,
		Creator:        s.getCreatorBestEffort(ctx, bundle.CreatorID),
	}
}

// GetUnlockedContent returns the bundle's ordered manifest with download URLs
// when the buyer holds a completed purchase.
func (s *Service) GetUnlockedContent(
	ctx context.Context,
	buyerID,
	bundleID string) ([]domain.UnlockedContentItem, error) {

	if strings.TrimSpace(buyerID) == "" {
		return nil, domain.ErrUnauthenticated
	}

	bundle, err := s.getBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	access, err := s.lookupAccess(ctx, buyerID, bundleID)
	if err != nil {
		return nil, err
	}

	if !access.HasAccess {
		return nil, domain.ErrForbidden
	}

	items := make([]domain.UnlockedContentItem, len(bundle.Items))

	for i, item := range bundle.Items {
		url, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (string, error) {
			return s.signer.PresignGet(ctx, item.StorageKey, s.contentURLTTL)
		})
		if err != nil {
			return nil, fmt.Errorf("presign content item %s: %w", item.ID, err)
		}

		items[i] = domain.UnlockedContentItem{
			ID:       item.ID,
			Title:    item.Title,
			URL:      url,
			MimeType: item.MimeType,
			Size:     item.Size,
		}
	}

	return items, nil
}

// StartCheckout opens a destination-charge checkout session for the bundle
// and records it as a pending purchase keyed by the session id.
func (s *Service) StartCheckout(
	ctx context.Context,
	buyer domain.Identity,
	bundleID string) (*domain.CheckoutSession, error) {

	if strings.TrimSpace(buyer.UserID) == "" {
		return nil, domain.ErrUnauthenticated
	}

	bundle, err := s.getBundle(ctx, bundleID)
	if err != nil {
		return nil, err
	}

	access, err := s.lookupAccess(ctx, buyer.UserID, bundleID)
	if err != nil {
		return nil, err
	}

	if access.HasAccess {
		return nil, domain.ErrAlreadyPurchased
	}

	creator, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Creator, error) {
		return s.creators.GetById(ctx, bundle.CreatorID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", domain.ErrCreatorNotFound, bundle.CreatorID)
		}

		return nil, err
	}

	price := bundle.PriceInMinorUnits()

	checkoutSession, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.CheckoutSession, error) {
		return s.payments.CreateCheckoutSession(ctx, domain.CheckoutRequest{
			Buyer:          buyer,
			Bundle:         bundle,
			Creator:        creator,
			ApplicationFee: PlatformFee(price, s.platformFeeBps),
			IdempotencyKey: s.newIdempotencyKey(),
		})
	})
	if err != nil {
		return nil, err
	}

	pending := &domain.Purchase{
		ID:                 checkoutSession.ID,
		BuyerID:            buyer.UserID,
		BundleID:           bundle.ID,
		CreatorID:          bundle.CreatorID,
		Amount:             price,
		Currency:           domain.NormalizeCurrency(bundle.Currency),
		Status:             domain.PurchaseStatusPending,
		VerificationMethod: domain.VerificationCheckout,
	}

	_, err = withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.purchases.Create(ctx, pending)
	})
	if err != nil && !errors.Is(err, domain.ErrConflict) {
		return nil, err
	}

	return checkoutSession, nil
}

// RecordPaymentFailure moves a pending purchase to failed. Unknown references
// and purchases that already reached a terminal state are left untouched.
func (s *Service) RecordPaymentFailure(ctx context.Context, paymentReference, reason string) (bool, error) {
	failed, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (bool, error) {
		return s.purchases.MarkFailed(ctx, paymentReference, reason)
	})
	if err != nil {
		return false, err
	}

	if failed {
		s.logger.InfoContext(ctx, "purchase marked as failed", "purchase_id", paymentReference, "reason", reason)
	}

	return failed, nil
}

func (s *Service) ListPurchases(
	ctx context.Context,
	buyerID string,
	pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error) {

	if strings.TrimSpace(buyerID) == "" {
		return nil, nil, domain.ErrUnauthenticated
	}

	ctx, cancel := context.WithTimeout(ctx, s.upstreamTimeout)
	defer cancel()

	purchases, metadata, err := s.purchases.GetCompletedByBuyer(ctx, buyerID, pagination)
	if err != nil {
		return nil, nil, classifyTimeout(err)
	}

	return purchases, metadata, nil
}

func (s *Service) confirmPayment(ctx context.Context, reference string) (*domain.PaymentDetails, error) {
	payment, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.PaymentDetails, error) {
		if strings.HasPrefix(reference, "pi_") {
			return s.payments.RetrievePaymentIntent(ctx, reference)
		}

		return s.payments.RetrieveSession(ctx, reference)
	})
	if err != nil {
		return nil, err
	}

	if !payment.Paid {
		return nil, fmt.Errorf("%w: processor reports %q", domain.ErrPaymentNotConfirmed, payment.Status)
	}

	return payment, nil
}

// verifyMetadata checks the identifiers stamped on the payment at checkout
// against the grant being requested.
func verifyMetadata(metadata map[string]string, buyerID string, bundle *domain.Bundle) error {
	if metadata[domain.MetadataBundleID] != bundle.ID {
		return fmt.Errorf("%w: bundle", domain.ErrMetadataMismatch)
	}

	if metadata[domain.MetadataBuyerID] != buyerID {
		return fmt.Errorf("%w: buyer", domain.ErrMetadataMismatch)
	}

	if creatorID, ok := metadata[domain.MetadataCreatorID]; ok && creatorID != bundle.CreatorID {
		return fmt.Errorf("%w: creator", domain.ErrMetadataMismatch)
	}

	return nil
}

func (s *Service) getBundle(ctx context.Context, bundleID string) (*domain.Bundle, error) {
	if strings.TrimSpace(bundleID) == "" {
		return nil, domain.ErrBundleNotFound
	}

	bundle, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Bundle, error) {
		return s.bundles.GetById(ctx, bundleID)
	})
	if err != nil {
		if errors.Is(err, domain.ErrRecordNotFound) {
			return nil, domain.ErrBundleNotFound
		}

		return nil, err
	}

	return bundle, nil
}

func (s *Service) getPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	return withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Purchase, error) {
		return s.purchases.GetById(ctx, id)
	})
}

func (s *Service) getCreatorBestEffort(ctx context.Context, creatorID string) *domain.Creator {
	creator, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (*domain.Creator, error) {
		return s.creators.GetById(ctx, creatorID)
	})
	if err != nil {
		s.logger.WarnContext(ctx, "failed to load creator", "creator_id", creatorID, "error", err)
		return &domain.Creator{ID: creatorID}
	}

	return creator
}

// incrementSales updates the bundle aggregates. The purchase is the
// authoritative record, so failures here are logged and swallowed.
func (s *Service) incrementSales(ctx context.Context, bundleID string, amount int64) {
	_, err := withTimeout(ctx, s.upstreamTimeout, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, s.bundles.IncrementSales(ctx, bundleID, amount)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to update bundle sale counters", "bundle_id", bundleID, "error", err)
	}
}

func (s *Service) recordGrant(ctx context.Context, outcome string) {
	if s.grants == nil {
		return
	}

	s.grants.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

// PlatformFee returns the platform's share of amount, rounded half up.
func PlatformFee(amount, feeBps int64) int64 {
	if amount <= 0 || feeBps <= 0 {
		return 0
	}

	return decimal.NewFromInt(amount).
		Mul(decimal.NewFromInt(feeBps)).
		Div(decimal.NewFromInt(10_000)).
		Round(0).
		IntPart()
}

func withTimeout[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	result, err := fn(ctx)
	if err != nil {
		return result, classifyTimeout(err)
	}

	return result, nil
}

func classifyTimeout(err error) error {
	if errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrUpstreamUnavailable) {
		return fmt.Errorf("%w: %v", domain.ErrUpstreamUnavailable, err)
	}

	return err
}
