package integration_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/stretchr/testify/require"
)

var keysToIgnore = map[string]struct{}{
	"timestamp":   {},
	"requestId":   {},
	"createdAt":   {},
	"completedAt": {},
}

func prepareRequest(method, path string, body io.Reader, headers map[string]string) (*http.Request, error) {
	req := httptest.NewRequest(method, path, body)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return req, nil
}

func compareResponse(t *testing.T, body io.Reader, expectedResponse string) {
	var actual map[string]any
	require.NoError(t, json.NewDecoder(body).Decode(&actual))

	cleanMap(actual)

	var expected map[string]any
	require.NoError(t, json.Unmarshal([]byte(expectedResponse), &expected))

	// ignore indetermistic fields while comparing
	opts := cmpopts.IgnoreMapEntries(func(k string, _ any) bool {
		_, ok := keysToIgnore[k]
		return ok
	})

	if diff := cmp.Diff(expected, actual, opts); diff != "" {
		t.Errorf("response mismatch (-want +got):\n%s", diff)
	}
}

func cleanMap(m map[string]any) {
	for k := range m {
		if _, ok := keysToIgnore[k]; ok {
			delete(m, k)
			continue
		}

		switch nested := m[k].(type) {
		case map[string]any:
			cleanMap(nested)
		case []any:
			for _, elem := range nested {
				if elemMap, ok := elem.(map[string]any); ok {
					cleanMap(elemMap)
				}
			}
		}
	}
}

func jsonBody(t testing.TB, v any) io.Reader {
	data, err := json.Marshal(v)
	require.NoError(t, err)

	return bytes.NewReader(data)
}

func (a *TestApp) bearerHeaders(t testing.TB, buyerID, email string) map[string]string {
	token, err := a.Tokens.Issue(buyerID, email, time.Hour)
	require.NoError(t, err)

	return map[string]string{"Authorization": "Bearer " + token}
}

func truncatePurchasesAndCatalog(t testing.TB, db *pgxpool.Pool) {
	_, err := db.Exec(context.Background(), "TRUNCATE purchases, bundle_items, bundles, creators CASCADE")
	require.NoError(t, err)
}

func insertTestCatalog(t testing.TB, db *pgxpool.Pool) {
	ctx := context.Background()

	_, err := db.Exec(ctx, `
		INSERT INTO creators (id, display_name, email, stripe_account_id)
		VALUES ($1, $2, 'ana@example.com', $3)`,
		TestCreatorId, TestCreatorName, TestCreatorAccount)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `
		INSERT INTO bundles (id, creator_id, title, description, price, currency)
		VALUES ($1, $2, $3, 'Twelve film emulation presets', $4::numeric, 'usd')`,
		TestBundleId, TestCreatorId, TestBundleTitle, TestBundlePrice)
	require.NoError(t, err)

	_, err = db.Exec(ctx, `
		INSERT INTO bundle_items (id, bundle_id, title, storage_key, mime_type, size_bytes, position)
		VALUES
			('item_2', $1, 'Guide', 'bundles/bundle_1/guide.pdf', 'application/pdf', 512, 2),
			('item_1', $1, 'Presets', 'bundles/bundle_1/presets.zip', 'application/zip', 2048, 1)`,
		TestBundleId)
	require.NoError(t, err)
}

func insertTestPurchase(t testing.TB, db *pgxpool.Pool, id, buyerID string, status domain.PurchaseStatus) {
	_, err := db.Exec(context.Background(), `
		INSERT INTO purchases (id, buyer_id, bundle_id, creator_id, amount, currency, status, verification_method, completed_at)
		VALUES ($1, $2, $3, $4, $5, 'usd', $6, 'webhook', CASE WHEN $6 = 'completed' THEN NOW() END)`,
		id, buyerID, TestBundleId, TestCreatorId, TestBundlePriceInCents, string(status))
	require.NoError(t, err)
}

func paidSession(reference, buyerID string) *domain.PaymentDetails {
	return &domain.PaymentDetails{
		Reference:   reference,
		Status:      "complete",
		Paid:        true,
		AmountTotal: TestBundlePriceInCents,
		Currency:    "usd",
		Metadata: map[string]string{
			domain.MetadataBuyerID:   buyerID,
			domain.MetadataBundleID:  TestBundleId,
			domain.MetadataCreatorID: TestCreatorId,
		},
	}
}

func countPurchases(t testing.TB, db *pgxpool.Pool, buyerID string, status domain.PurchaseStatus) int {
	var count int

	err := db.QueryRow(context.Background(),
		"SELECT COUNT(*) FROM purchases WHERE buyer_id = $1 AND status = $2",
		buyerID, string(status)).Scan(&count)
	require.NoError(t, err)

	return count
}
