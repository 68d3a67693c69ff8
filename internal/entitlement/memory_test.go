package entitlement

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/metinatakli/creator-marketplace/internal/domain"
)

// memoryPurchaseStore mirrors the constraints of the purchases table: the id
// is a primary key and a buyer may hold one completed purchase per bundle.
type memoryPurchaseStore struct {
	mu        sync.Mutex
	purchases map[string]domain.Purchase
	clock     time.Time
}

func newMemoryPurchaseStore() *memoryPurchaseStore {
	return &memoryPurchaseStore{
		purchases: make(map[string]domain.Purchase),
		clock:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (m *memoryPurchaseStore) tick() time.Time {
	m.clock = m.clock.Add(time.Second)
	return m.clock
}

func (m *memoryPurchaseStore) completedExists(buyerID, bundleID string) bool {
	for _, p := range m.purchases {
		if p.Status == domain.PurchaseStatusCompleted && p.BelongsTo(buyerID, bundleID) {
			return true
		}
	}

	return false
}

func (m *memoryPurchaseStore) Create(ctx context.Context, purchase *domain.Purchase) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.purchases[purchase.ID]; ok {
		return domain.ErrConflict
	}

	if purchase.Status == domain.PurchaseStatusCompleted && m.completedExists(purchase.BuyerID, purchase.BundleID) {
		return domain.ErrConflict
	}

	now := m.tick()
	purchase.CreatedAt = now
	if purchase.Status == domain.PurchaseStatusCompleted {
		purchase.CompletedAt = &now
	}

	m.purchases[purchase.ID] = *purchase

	return nil
}

func (m *memoryPurchaseStore) GetById(ctx context.Context, id string) (*domain.Purchase, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return &p, nil
}

func (m *memoryPurchaseStore) GetCompletedByBuyerAndBundle(
	ctx context.Context,
	buyerID,
	bundleID string) (*domain.Purchase, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Purchase
	for _, p := range m.purchases {
		if p.Status != domain.PurchaseStatusCompleted || !p.BelongsTo(buyerID, bundleID) {
			continue
		}

		if latest == nil || p.CreatedAt.After(latest.CreatedAt) {
			found := p
			latest = &found
		}
	}

	if latest == nil {
		return nil, domain.ErrRecordNotFound
	}

	return latest, nil
}

func (m *memoryPurchaseStore) Complete(
	ctx context.Context,
	id string,
	method domain.VerificationMethod,
	amount int64,
	currency string) (*domain.Purchase, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok || p.Status != domain.PurchaseStatusPending {
		return nil, domain.ErrConflict
	}

	if m.completedExists(p.BuyerID, p.BundleID) {
		return nil, domain.ErrConflict
	}

	now := m.tick()
	p.Status = domain.PurchaseStatusCompleted
	p.VerificationMethod = method
	p.Amount = amount
	p.Currency = currency
	p.CompletedAt = &now

	m.purchases[id] = p

	return &p, nil
}

func (m *memoryPurchaseStore) MarkFailed(ctx context.Context, id string, reason string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	p, ok := m.purchases[id]
	if !ok || p.Status != domain.PurchaseStatusPending {
		return false, nil
	}

	p.Status = domain.PurchaseStatusFailed
	p.FailureReason = &reason
	m.purchases[id] = p

	return true, nil
}

func (m *memoryPurchaseStore) GetCompletedByBuyer(
	ctx context.Context,
	buyerID string,
	pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error) {

	m.mu.Lock()
	defer m.mu.Unlock()

	all := make([]domain.Purchase, 0)
	for _, p := range m.purchases {
		if p.BuyerID == buyerID && p.Status == domain.PurchaseStatusCompleted {
			all = append(all, p)
		}
	}

	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})

	start := min(pagination.Offset(), len(all))
	end := min(start+pagination.Limit(), len(all))

	return all[start:end], domain.NewMetadata(len(all), pagination.Page, pagination.PageSize), nil
}

func (m *memoryPurchaseStore) count(status domain.PurchaseStatus) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, p := range m.purchases {
		if p.Status == status {
			n++
		}
	}

	return n
}

type memoryBundleStore struct {
	mu           sync.Mutex
	bundles      map[string]domain.Bundle
	incrementErr error
}

func newMemoryBundleStore(bundles ...domain.Bundle) *memoryBundleStore {
	store := &memoryBundleStore{bundles: make(map[string]domain.Bundle)}
	for _, b := range bundles {
		store.bundles[b.ID] = b
	}

	return store
}

func (m *memoryBundleStore) GetById(ctx context.Context, id string) (*domain.Bundle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bundles[id]
	if !ok {
		return nil, domain.ErrRecordNotFound
	}

	return &b, nil
}

func (m *memoryBundleStore) IncrementSales(ctx context.Context, id string, amount int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.incrementErr != nil {
		return m.incrementErr
	}

	b, ok := m.bundles[id]
	if !ok {
		return domain.ErrRecordNotFound
	}

	b.SalesCount++
	b.Revenue += amount
	m.bundles[id] = b

	return nil
}

// fakeProcessor answers payment lookups from a fixed table. When barrier is
// set, lookups block until that many callers have arrived, which lines up
// concurrent grants right before their writes.
type fakeProcessor struct {
	mu       sync.Mutex
	payments map[string]domain.PaymentDetails
	lookups  int

	barrier  int
	arrived  int
	released chan struct{}

	block bool
}

func newFakeProcessor(payments ...domain.PaymentDetails) *fakeProcessor {
	p := &fakeProcessor{
		payments: make(map[string]domain.PaymentDetails),
		released: make(chan struct{}),
	}
	for _, payment := range payments {
		p.payments[payment.Reference] = payment
	}

	return p
}

func (f *fakeProcessor) CreateCheckoutSession(
	ctx context.Context,
	req domain.CheckoutRequest) (*domain.CheckoutSession, error) {

	return &domain.CheckoutSession{ID: "cs_checkout", URL: "https://checkout.test/cs_checkout"}, nil
}

func (f *fakeProcessor) RetrieveSession(ctx context.Context, sessionID string) (*domain.PaymentDetails, error) {
	return f.lookup(ctx, sessionID)
}

func (f *fakeProcessor) RetrievePaymentIntent(ctx context.Context, id string) (*domain.PaymentDetails, error) {
	return f.lookup(ctx, id)
}

func (f *fakeProcessor) lookup(ctx context.Context, reference string) (*domain.PaymentDetails, error) {
	f.mu.Lock()
	f.lookups++
	payment, ok := f.payments[reference]
	block := f.block
	if f.barrier > 0 {
		f.arrived++
		if f.arrived == f.barrier {
			close(f.released)
		}
	}
	barrier := f.barrier
	f.mu.Unlock()

	if block {
		<-ctx.Done()
		return nil, ctx.Err()
	}

	if barrier > 0 {
		select {
		case <-f.released:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if !ok {
		return nil, domain.ErrPaymentReferenceNotFound
	}

	return &payment, nil
}

func (f *fakeProcessor) lookupCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.lookups
}
