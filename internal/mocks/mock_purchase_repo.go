package mocks

import (
	"context"

	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockPurchaseRepo struct {
	mock.Mock
	domain.PurchaseRepository
}

func (m *MockPurchaseRepo) Create(ctx context.Context, purchase *domain.Purchase) error {
	args := m.Called(ctx, purchase)
	return args.Error(0)
}

func (m *MockPurchaseRepo) GetById(ctx context.Context, id string) (*domain.Purchase, error) {
	args := m.Called(ctx, id)
	purchase, _ := args.Get(0).(*domain.Purchase)
	return purchase, args.Error(1)
}

func (m *MockPurchaseRepo) GetCompletedByBuyerAndBundle(
	ctx context.Context,
	buyerID,
	bundleID string) (*domain.Purchase, error) {

	args := m.Called(ctx, buyerID, bundleID)
	purchase, _ := args.Get(0).(*domain.Purchase)
	return purchase, args.Error(1)
}

func (m *MockPurchaseRepo) Complete(
	ctx context.Context,
	id string,
	method domain.VerificationMethod,
	amount int64,
	currency string) (*domain.Purchase, error) {

	args := m.Called(ctx, id, method, amount, currency)
	purchase, _ := args.Get(0).(*domain.Purchase)
	return purchase, args.Error(1)
}

func (m *MockPurchaseRepo) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	args := m.Called(ctx, id, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockPurchaseRepo) GetCompletedByBuyer(
	ctx context.Context,
	buyerID string,
	pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error) {

	args := m.Called(ctx, buyerID, pagination)
	purchases, _ := args.Get(0).([]domain.Purchase)
	metadata, _ := args.Get(1).(*domain.Metadata)
	return purchases, metadata, args.Error(2)
}
