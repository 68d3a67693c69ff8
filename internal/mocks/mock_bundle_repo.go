package mocks

import (
	"context"

	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/stretchr/testify/mock"
)

type MockBundleRepo struct {
	mock.Mock
	domain.BundleRepository
}

func (m *MockBundleRepo) GetById(ctx context.Context, id string) (*domain.Bundle, error) {
	args := m.Called(ctx, id)
	bundle, _ := args.Get(0).(*domain.Bundle)
	return bundle, args.Error(1)
}

func (m *MockBundleRepo) IncrementSales(ctx context.Context, id string, amount int64) error {
	args := m.Called(ctx, id, amount)
	return args.Error(0)
}
