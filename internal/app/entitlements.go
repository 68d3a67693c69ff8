package app

import (
	"context"
	"net/http"
	"strings"

	"github.com/metinatakli/creator-marketplace/api"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"github.com/metinatakli/creator-marketplace/internal/entitlement"
	"github.com/shopspring/decimal"
)

const (
	defaultPage     = 1
	defaultPageSize = 10

	receiptTemplate = "purchase_receipt.tmpl"
)

// GrantAccess is called by the checkout success page. It is safe to call any
// number of times for the same payment.
func (app *Application) GrantAccess(w http.ResponseWriter, r *http.Request) {
	var input api.GrantAccessRequest

	err := app.readJSON(w, r, &input)
	if err != nil {
		app.badRequestResponse(w, r, err)
		return
	}

	err = app.validator.Struct(input)
	if err != nil {
		app.failedValidationResponse(w, r, err)
		return
	}

	buyer := app.contextGetIdentity(r)

	result, err := app.entitlements.GrantAccess(r.Context(), entitlement.GrantInput{
		BuyerID:          buyer.UserID,
		BundleID:         input.BundleId,
		PaymentReference: input.PaymentReference,
		Method:           domain.VerificationSuccessPage,
	})
	if err != nil {
		app.entitlementErrorResponse(w, r, err)
		return
	}

	if result.Granted {
		app.sendReceipt(r, buyer.Email, result)
	}

	err = app.writeJSON(w, http.StatusOK, toGrantAccessResponse(result), nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) CheckAccess(w http.ResponseWriter, r *http.Request, params api.CheckAccessParams) {
	buyer := app.contextGetIdentity(r)

	access, err := app.entitlements.CheckAccess(r.Context(), buyer.UserID, params.BundleId)
	if err != nil {
		app.entitlementErrorResponse(w, r, err)
		return
	}

	resp := api.CheckAccessResponse{
		HasAccess: access.HasAccess,
	}

	if access.Purchase != nil {
		purchase := toAPIPurchase(*access.Purchase)
		resp.Purchase = &purchase
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetBundleContent(w http.ResponseWriter, r *http.Request, bundleId string) {
	buyer := app.contextGetIdentity(r)

	items, err := app.entitlements.GetUnlockedContent(r.Context(), buyer.UserID, bundleId)
	if err != nil {
		app.entitlementErrorResponse(w, r, err)
		return
	}

	resp := api.UnlockedContentResponse{
		BundleId: bundleId,
		Items:    make([]api.ContentItem, len(items)),
	}

	for i, item := range items {
		resp.Items[i] = api.ContentItem{
			Id:       item.ID,
			Title:    item.Title,
			Url:      item.URL,
			MimeType: item.MimeType,
			Size:     item.Size,
		}
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

func (app *Application) GetPurchasesOfUser(w http.ResponseWriter, r *http.Request, params api.GetPurchasesOfUserParams) {
	buyer := app.contextGetIdentity(r)

	pagination := domain.Pagination{
		Page:     defaultPage,
		PageSize: defaultPageSize,
	}

	if params.Page != nil {
		pagination.Page = *params.Page
	}

	if params.PageSize != nil {
		pagination.PageSize = *params.PageSize
	}

	purchases, metadata, err := app.entitlements.ListPurchases(r.Context(), buyer.UserID, pagination)
	if err != nil {
		app.entitlementErrorResponse(w, r, err)
		return
	}

	resp := api.PurchaseListResponse{
		Purchases: make([]api.Purchase, len(purchases)),
		Metadata: api.Metadata{
			CurrentPage:  metadata.CurrentPage,
			FirstPage:    metadata.FirstPage,
			LastPage:     metadata.LastPage,
			PageSize:     metadata.PageSize,
			TotalRecords: metadata.TotalRecords,
		},
	}

	for i, purchase := range purchases {
		resp.Purchases[i] = toAPIPurchase(purchase)
	}

	err = app.writeJSON(w, http.StatusOK, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// sendReceipt mails the buyer in the background. The grant has already been
// committed, so delivery problems are only logged.
func (app *Application) sendReceipt(r *http.Request, recipient string, result *entitlement.GrantResult) {
	if recipient == "" {
		app.contextGetLogger(r).Warn("no email address for receipt", "purchase_id", result.Purchase.ID)
		return
	}

	data := map[string]any{
		"bundleTitle": result.Bundle.Title,
		"amount":      decimal.New(result.Purchase.Amount, -2).StringFixed(2),
		"currency":    strings.ToUpper(result.Purchase.Currency),
		"purchaseID":  result.Purchase.ID,
	}

	if result.Creator != nil && result.Creator.DisplayName != "" {
		data["creatorName"] = result.Creator.DisplayName
	}

	go func(ctx context.Context) {
		// new logger for this goroutine, inheriting context from the request
		gLogger := app.contextGetLogger(r.WithContext(ctx))

		defer func() {
			if err := recover(); err != nil {
				gLogger.Error("panic occurred during sending receipt mail", "panic", err)
			}
		}()

		err := app.mailer.Send(recipient, receiptTemplate, data)
		if err != nil {
			gLogger.Error("failed to send receipt email", "error", err, "purchase_id", result.Purchase.ID)
		} else {
			gLogger.Info("receipt email sent successfully", "purchase_id", result.Purchase.ID)
		}
	}(context.WithoutCancel(r.Context()))
}

func toGrantAccessResponse(result *entitlement.GrantResult) api.GrantAccessResponse {
	resp := api.GrantAccessResponse{
		Granted:        result.Granted,
		AlreadyGranted: result.AlreadyGranted,
		PurchaseId:     result.Purchase.ID,
		Bundle: api.BundleSummary{
			Id:       result.Bundle.ID,
			Title:    result.Bundle.Title,
			Price:    result.Bundle.Price.StringFixed(2),
			Currency: strings.ToUpper(result.Bundle.Currency),
		},
		Creator: api.CreatorSummary{
			Id: result.Bundle.CreatorID,
		},
	}

	if result.Creator != nil && result.Creator.DisplayName != "" {
		resp.Creator.DisplayName = &result.Creator.DisplayName
	}

	return resp
}

func toAPIPurchase(purchase domain.Purchase) api.Purchase {
	return api.Purchase{
		Id:                 purchase.ID,
		BundleId:           purchase.BundleID,
		CreatorId:          purchase.CreatorID,
		Amount:             purchase.Amount,
		Currency:           purchase.Currency,
		Status:             api.PurchaseStatus(purchase.Status),
		VerificationMethod: string(purchase.VerificationMethod),
		CreatedAt:          purchase.CreatedAt,
		CompletedAt:        purchase.CompletedAt,
	}
}
