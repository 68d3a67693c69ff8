package mocks

import (
	"context"

	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPaymentProvider struct {
	mock.Mock
	domain.PaymentProvider
}

func (m *MockPaymentProvider) CreateCheckoutSession(
	ctx context.Context,
	req domain.CheckoutRequest) (*domain.CheckoutSession, error) {

	args := m.Called(ctx, req)
	session, _ := args.Get(0).(*domain.CheckoutSession)
	return session, args.Error(1)
}

func (m *MockPaymentProvider) RetrieveSession(ctx context.Context, sessionID string) (*domain.PaymentDetails, error) {
	args := m.Called(ctx, sessionID)
	details, _ := args.Get(0).(*domain.PaymentDetails)
	return details, args.Error(1)
}

func (m *MockPaymentProvider) RetrievePaymentIntent(
	ctx context.Context,
	paymentIntentID string) (*domain.PaymentDetails, error) {

	args := m.Called(ctx, paymentIntentID)
	details, _ := args.Get(0).(*domain.PaymentDetails)
	return details, args.Error(1)
}
