package mocks

import (
	"context"

	"github.com/metinatakli/creator-marketplace/internal/domain"
)

type MockCreatorRepo struct {
	domain.CreatorRepository
	GetByIdFunc func(ctx context.Context, id string) (*domain.Creator, error)
}

func (m *MockCreatorRepo) GetById(ctx context.Context, id string) (*domain.Creator, error) {
	return m.GetByIdFunc(ctx, id)
}
