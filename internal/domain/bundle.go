package domain

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type Bundle struct {
	ID          string
	Title       string
	Description string
	Price       decimal.Decimal
	Currency    string
	CreatorID   string
	Items       []ContentItem
	SalesCount  int64
	Revenue     int64
	CreatedAt   time.Time
}

// PriceInMinorUnits converts the bundle price to the smallest currency unit.
func (b *Bundle) PriceInMinorUnits() int64 {
	return ToMinorUnits(b.Price)
}

type ContentItem struct {
	ID         string
	Title      string
	StorageKey string
	MimeType   string
	Size       int64
	Position   int
}

// UnlockedContentItem is a content item whose URL can be handed to a buyer.
type UnlockedContentItem struct {
	ID       string
	Title    string
	URL      string
	MimeType string
	Size     int64
}

type BundleRepository interface {
	GetById(ctx context.Context, id string) (*Bundle, error)
	IncrementSales(ctx context.Context, id string, amount int64) error
}

var hundred = decimal.NewFromInt(100)

func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

func NormalizeCurrency(currency string) string {
	return strings.ToLower(strings.TrimSpace(currency))
}
