package app

import (
	"net/http"

	"github.com/metinatakli/creator-marketplace/api"
)

func (app *Application) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	logger := app.contextGetLogger(r)

	var input api.CheckoutSessionRequest

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

	checkoutSession, err := app.entitlements.StartCheckout(r.Context(), *buyer, input.BundleId)
	if err != nil {
		app.entitlementErrorResponse(w, r, err)
		return
	}

	logger.Info("checkout session created", "session_id", checkoutSession.ID, "bundle_id", input.BundleId)

	resp := api.CheckoutSessionResponse{
		SessionId:   checkoutSession.ID,
		RedirectUrl: checkoutSession.URL,
	}

	err = app.writeJSON(w, http.StatusCreated, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}
