package app

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metinatakli/creator-marketplace/api"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/metinatakli/creator-marketplace/internal/entitlement"
	"github.com/metinatakli/creator-marketplace/internal/mailer"
	"github.com/metinatakli/creator-marketplace/internal/mocks"
	"github.com/metinatakli/creator-marketplace/internal/validator"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testToken   = "valid-token"
	testBuyerID = "buyer_1"
	testEmail   = "buyer@example.com"
)

type MockEntitlementService struct {
	mock.Mock
}

func (m *MockEntitlementService) CheckAccess(ctx context.Context, buyerID, bundleID string) (*entitlement.AccessResult, error) {
	args := m.Called(ctx, buyerID, bundleID)
	result, _ := args.Get(0).(*entitlement.AccessResult)
	return result, args.Error(1)
}

func (m *MockEntitlementService) GrantAccess(ctx context.Context, in entitlement.GrantInput) (*entitlement.GrantResult, error) {
	args := m.Called(ctx, in)
	result, _ := args.Get(0).(*entitlement.GrantResult)
	return result, args.Error(1)
}

func (m *MockEntitlementService) GetUnlockedContent(
	ctx context.Context,
	buyerID,
	bundleID string) ([]domain.UnlockedContentItem, error) {

	args := m.Called(ctx, buyerID, bundleID)
	items, _ := args.Get(0).([]domain.UnlockedContentItem)
	return items, args.Error(1)
}

func (m *MockEntitlementService) StartCheckout(
	ctx context.Context,
	buyer domain.Identity,
	bundleID string) (*domain.CheckoutSession, error) {

	args := m.Called(ctx, buyer, bundleID)
	session, _ := args.Get(0).(*domain.CheckoutSession)
	return session, args.Error(1)
}

func (m *MockEntitlementService) RecordPaymentFailure(ctx context.Context, paymentReference, reason string) (bool, error) {
	args := m.Called(ctx, paymentReference, reason)
	return args.Bool(0), args.Error(1)
}

func (m *MockEntitlementService) ListPurchases(
	ctx context.Context,
	buyerID string,
	pagination domain.Pagination) ([]domain.Purchase, *domain.Metadata, error) {

	args := m.Called(ctx, buyerID, pagination)
	purchases, _ := args.Get(0).([]domain.Purchase)
	metadata, _ := args.Get(1).(*domain.Metadata)
	return purchases, metadata, args.Error(2)
}

func newTestApplication(t *testing.T, opts ...func(*Application)) *Application {
	t.Helper()

	app, err := NewApp(
		Config{Env: "test"},
		slog.New(slog.NewTextHandler(io.Discard, nil)),
		nil,
		nil,
		validator.NewValidator(),
		mailer.NewMockMailer(),
		&mocks.MockIdentityVerifier{
			Tokens: map[string]domain.Identity{
				testToken: {UserID: testBuyerID, Email: testEmail},
			},
		},
		new(MockEntitlementService),
		&mocks.MockWebhookEventStore{},
	)
	require.NoError(t, err)

	for _, opt := range opts {
		opt(app)
	}

	return app
}

func executeRequest(t *testing.T, method, url string, body any) (*httptest.ResponseRecorder, *http.Request) {
	var reader io.Reader

	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(jsonData)
	}

	r := httptest.NewRequest(method, url, reader)
	if body != nil {
		r.Header.Set("Content-Type", "application/json")
	}
	w := httptest.NewRecorder()

	return w, r
}

func authenticated(r *http.Request) *http.Request {
	r.Header.Set("Authorization", "Bearer "+testToken)
	return r
}

func checkErrorResponse(t *testing.T, w *httptest.ResponseRecorder, tt struct {
	wantStatus     int
	wantErrMessage string
}) {
	if tt.wantStatus >= 200 && tt.wantStatus < 300 {
		return
	}

	var raw map[string]json.RawMessage
	if err := json.NewDecoder(w.Body).Decode(&raw); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if _, ok := raw["validationErrors"]; ok {
		var validationResp api.ValidationErrorResponse
		data, _ := json.Marshal(raw)
		if err := json.Unmarshal(data, &validationResp); err != nil {
			t.Fatalf("Failed to decode validation error response: %v", err)
		}

		errorSet := make(map[string]bool)
		for _, vErr := range validationResp.ValidationErrors {
			errorSet[vErr.Issue] = true
		}

		if !errorSet[tt.wantErrMessage] {
			t.Errorf("Expected validation error message '%s' not found in response", tt.wantErrMessage)
		}

		return
	}

	var errorResp api.ErrorResponse
	data, _ := json.Marshal(raw)
	if err := json.Unmarshal(data, &errorResp); err != nil {
		t.Fatalf("Failed to decode error response: %v", err)
	}

	if tt.wantErrMessage != "" && errorResp.Error != tt.wantErrMessage {
		t.Errorf("Error message = %v, want %v", errorResp.Error, tt.wantErrMessage)
	}
}

func ptr[T any](v T) *T {
	return &v
}
