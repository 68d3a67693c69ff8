package domain

import "context"

type Creator struct {
	ID              string
	DisplayName     string
	Email           string
	StripeAccountID string
}

type CreatorRepository interface {
	GetById(ctx context.Context, id string) (*Creator, error)
}
