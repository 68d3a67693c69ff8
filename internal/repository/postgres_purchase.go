package repository

import (
	"context"
	"errors"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/domain"
)

const purchaseColumns = `
	id,
	buyer_id,
	bundle_id,
	creator_id,
	amount,
	currency,
	status,
	verification_method,
	failure_reason,
	created_at,
	completed_at`

type PostgresPurchaseRepository struct {
	db *pgxpool.Pool
}

func NewPostgresPurchaseRepository(db *pgxpool.Pool) *PostgresPurchaseRepository {
	return &PostgresPurchaseRepository{
		db: db,
	}
}

// Create relies on the primary key (and the partial unique index on completed
// buyer/bundle pairs) to reject a second writer. The losing writer receives
// domain.ErrConflict.
func (p *PostgresPurchaseRepository) Create(ctx context.Context, purchase *domain.Purchase) error {
	query := `
		INSERT INTO purchases (
			id,
			buyer_id,
			bundle_id,
			creator_id,
			amount,
			currency,
			status,
			verification_method,
			completed_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, CASE WHEN $7 = 'completed' THEN NOW() END)
		RETURNING created_at, completed_at
	`

	err := p.db.QueryRow(
		ctx,
		query,
		purchase.ID,
		purchase.BuyerID,
		purchase.BundleID,
		purchase.CreatorID,
		purchase.Amount,
		purchase.Currency,
		purchase.Status,
		purchase.VerificationMethod,
	).Scan(&purchase.CreatedAt, &purchase.CompletedAt)

	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrConflict
		}

		return err
	}

	return nil
}

func (p *PostgresPurchaseRepository) GetById(ctx context.Context, id string) (*domain.Purchase, error) {
	query := `SELECT ` + purchaseColumns + ` FROM purchases WHERE id = $1`

	purchase, err := scanPurchase(p.db.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return purchase, nil
}

func (p *PostgresPurchaseRepository) GetCompletedByBuyerAndBundle(
	ctx context.Context,
	buyerID,
	bundleID string) (*domain.Purchase, error) {

	query := `SELECT ` + purchaseColumns + `
		FROM purchases
		WHERE buyer_id = $1 AND bundle_id = $2 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT 1
	`

	purchase, err := scanPurchase(p.db.QueryRow(ctx, query, buyerID, bundleID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}

		return nil, err
	}

	return purchase, nil
}

func (p *PostgresPurchaseRepository) Complete(
	ctx context.Context,
	id string,
	method domain.VerificationMethod,
	amount int64,
	currency string) (*domain.Purchase, error) {

	query := `
		UPDATE purchases
		SET status = 'completed',
			verification_method = $2,
			amount = $3,
			currency = $4,
			completed_at = NOW()
		WHERE id = $1 AND status = 'pending'
		RETURNING ` + purchaseColumns

	purchase, err := scanPurchase(p.db.QueryRow(ctx, query, id, method, amount, currency))
	if err != nil {
		switch {
		case errors.Is(err, pgx.ErrNoRows), isUniqueViolation(err):
			return nil, domain.ErrConflict
		default:
			return nil, err
		}
	}

	return purchase, nil
}

func (p *PostgresPurchaseRepository) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	query := `
		UPDATE purchases
		SET status = 'failed', failure_reason = $2
		WHERE id = $1 AND status = 'pending'
	`

	tag, err := p.db.Exec(ctx, query, id, reason)
	if err != nil {
		return false, err
	}

	return tag.RowsAffected() == 1, nil
}

func (p *PostgresPurchaseRepository) GetCompletedByBuyer(
	ctx context.Context,
	buyerID string,
	pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error) {

	query := `SELECT COUNT(*) OVER(), ` + purchaseColumns + `
		FROM purchases
		WHERE buyer_id = $1 AND status = 'completed'
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := p.db.Query(ctx, query, buyerID, pagination.Limit(), pagination.Offset())
	if err != nil {
		return nil, nil, err
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0)
	totalRecords := 0

	for rows.Next() {
		var purchase domain.Purchase

		err := rows.Scan(
			&totalRecords,
			&purchase.ID,
			&purchase.BuyerID,
			&purchase.BundleID,
			&purchase.CreatorID,
			&purchase.Amount,
			&purchase.Currency,
			&purchase.Status,
			&purchase.VerificationMethod,
			&purchase.FailureReason,
			&purchase.CreatedAt,
			&purchase.CompletedAt,
		)
		if err != nil {
			return nil, nil, err
		}

		purchases = append(purchases, purchase)
	}

	if err = rows.Err(); err != nil {
		return nil, nil, err
	}

	metadata := domain.NewMetadata(totalRecords, pagination.Page, pagination.PageSize)

	return purchases, metadata, nil
}

func scanPurchase(row pgx.Row) (*domain.Purchase, error) {
	var purchase domain.Purchase

	err := row.Scan(
		&purchase.ID,
		&purchase.BuyerID,
		&purchase.BundleID,
		&purchase.CreatorID,
		&purchase.Amount,
		&purchase.Currency,
		&purchase.Status,
		&purchase.VerificationMethod,
		&purchase.FailureReason,
		&purchase.CreatedAt,
		&purchase.CompletedAt,
	)
	if err != nil {
		return nil, err
	}

	return &purchase, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}
