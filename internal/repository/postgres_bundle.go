package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/domain"
)

type PostgresBundleRepository struct {
	db *pgxpool.Pool
}

func NewPostgresBundleRepository(db *pgxpool.Pool) *PostgresBundleRepository {
	return &PostgresBundleRepository{
		db: db,
	}
}

// GetById loads the bundle together with its ordered content manifest from a
// single read-only snapshot.
func (p *PostgresBundleRepository) GetById(ctx context.Context, id string) (*domain.Bundle, error) {
	var bundle domain.Bundle

	err := runInTx(ctx, p.db, pgx.TxOptions{AccessMode: pgx.ReadOnly}, func(tx pgx.Tx) error {
		query := `
			SELECT id, creator_id, title, description, price, currency, sales_count, revenue, created_at
			FROM bundles
			WHERE id = $1
		`

		err := tx.QueryRow(ctx, query, id).Scan(
			&bundle.ID,
			&bundle.CreatorID,
			&bundle.Title,
			&bundle.Description,
			&bundle.Price,
			&bundle.Currency,
			&bundle.SalesCount,
			&bundle.Revenue,
			&bundle.CreatedAt,
		)
		if err != nil {
			return err
		}

		items, err := retrieveContentItems(ctx, tx, id)
		if err != nil {
			return err
		}

		bundle.Items = items

		return nil
	})

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return &bundle, nil
}

// IncrementSales bumps the aggregate counters in place so concurrent grants
// for different buyers never overwrite each other.
func (p *PostgresBundleRepository) IncrementSales(ctx context.Context, id string, amount int64) error {
	query := `
		UPDATE bundles
		SET sales_count = sales_count + 1,
			revenue = revenue + $2,
			updated_at = NOW()
		WHERE id = $1
	`

	tag, err := p.db.Exec(ctx, query, id, amount)
	if err != nil {
		return err
	}

	if tag.RowsAffected() == 0 {
		return domain.ErrRecordNotFound
	}

	return nil
}

func retrieveContentItems(ctx context.Context, tx pgx.Tx, bundleID string) ([]domain.ContentItem, error) {
	query := `
		SELECT id, title, storage_key, mime_type, size_bytes, position
		FROM bundle_items
		WHERE bundle_id = $1
		ORDER BY position
	`

	rows, err := tx.Query(ctx, query, bundleID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.ContentItem, 0)

	for rows.Next() {
		var item domain.ContentItem

		err := rows.Scan(
			&item.ID,
			&item.Title,
			&item.StorageKey,
			&item.MimeType,
			&item.Size,
			&item.Position,
		)
		if err != nil {
			return nil, err
		}

		items = append(items, item)
	}

	if err = rows.Err(); err != nil {
		return nil, err
	}

	return items, nil
}
