package payment

import (
	"context"
	"fmt"
	"sync"

	"github.com/metinatakli/creator-marketplace/internal/domain"
)

// MockPaymentProvider is an in-memory processor used by the integration
// suite. Payments are registered up front and looked up by reference.
type MockPaymentProvider struct {
	mu sync.RWMutex

	CheckoutSession *domain.CheckoutSession
	Err             error
	payments        map[string]*domain.PaymentDetails
}

func NewMockPaymentProvider() *MockPaymentProvider {
	return &MockPaymentProvider{
		payments: make(map[string]*domain.PaymentDetails),
	}
}

func (m *MockPaymentProvider) SetPayment(details *domain.PaymentDetails) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.payments[details.Reference] = details
}

func (m *MockPaymentProvider) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.CheckoutSession = nil
	m.Err = nil
	m.payments = make(map[string]*domain.PaymentDetails)
}

func (m *MockPaymentProvider) CreateCheckoutSession(
	ctx context.Context,
	req domain.CheckoutRequest) (*domain.CheckoutSession, error) {

	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	if m.CheckoutSession == nil {
		return &domain.CheckoutSession{
			ID:  "cs_test_" + req.Bundle.ID,
			URL: "https://checkout.stripe.com/c/pay/cs_test_" + req.Bundle.ID,
		}, nil
	}

	return m.CheckoutSession, nil
}

func (m *MockPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*domain.PaymentDetails, error) {
	return m.lookup(sessionID)
}

func (m *MockPaymentProvider) RetrievePaymentIntent(
	ctx context.Context,
	paymentIntentID string) (*domain.PaymentDetails, error) {

	return m.lookup(paymentIntentID)
}

func (m *MockPaymentProvider) lookup(reference string) (*domain.PaymentDetails, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.Err != nil {
		return nil, m.Err
	}

	details, ok := m.payments[reference]
	if !ok {
		return nil, fmt.Errorf("%w: %s", domain.ErrPaymentReferenceNotFound, reference)
	}

	copied := *details
	return &copied, nil
}
