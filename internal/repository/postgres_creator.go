package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/domain"
)

type PostgresCreatorRepository struct {
	db *pgxpool.Pool
}

func NewPostgresCreatorRepository(db *pgxpool.Pool) *PostgresCreatorRepository {
	return &PostgresCreatorRepository{
		db: db,
	}
}

func (p *PostgresCreatorRepository) GetById(ctx context.Context, id string) (*domain.Creator, error) {
	query := `SELECT id, display_name, email, stripe_account_id FROM creators WHERE id = $1`

	var creator domain.Creator

	err := p.db.QueryRow(ctx, query, id).Scan(
		&creator.ID,
		&creator.DisplayName,
		&creator.Email,
		&creator.StripeAccountID,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &creator, nil
}
