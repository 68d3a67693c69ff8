package app

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/metinatakli/creator-marketplace/api"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	appvalidator "github.com/metinatakli/creator-marketplace/internal/validator"
)

const (
	ErrInternalServer           = "The server encountered a problem and could not process your request"
	ErrNotFound                 = "The requested resource not found"
	ErrUnauthorized             = "You must be authenticated to access this resource"
	ErrInvalidCredential        = "invalid or expired authentication token"
	ErrAccessDenied             = "access denied"
	ErrUpstreamUnavailable      = "upstream service unavailable"
	ErrPaymentNotConfirmed      = "payment not confirmed"
	ErrAlreadyPurchased         = "bundle already purchased"
	ErrMetadataMismatch         = "payment does not match this purchase"
	ErrBundleNotFound           = "bundle not found"
	ErrPaymentReferenceNotFound = "payment reference not found"
	ErrValidationFailed         = "request validation failed"

	// seconds a client should wait before retrying after an upstream failure
	upstreamRetryAfter = 5
)

func (app *Application) logError(r *http.Request, err error) {
	var (
		method = r.Method
		uri    = r.URL.RequestURI()
	)

	app.contextGetLogger(r).Error(err.Error(), "method", method, "uri", uri)
}

// The errorResponse() method is a generic helper for sending JSON-formatted error
// messages to the client with a given status code.
func (app *Application) errorResponse(
	w http.ResponseWriter,
	r *http.Request,
	status int,
	message string,
	details *string,
	headers http.Header) {

	resp := api.ErrorResponse{
		Error:     message,
		Details:   details,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	err := app.writeJSON(w, status, resp, headers)
	if err != nil {
		app.logError(r, err)
		w.WriteHeader(500)
	}
}

func (app *Application) errorResponseWithDetails(w http.ResponseWriter, r *http.Request, status int, message string, err error) {
	details := err.Error()
	app.errorResponse(w, r, status, message, &details, nil)
}

func (app *Application) serverErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)
	app.errorResponse(w, r, http.StatusInternalServerError, ErrInternalServer, nil, nil)
}

// upstreamUnavailableResponse keeps the 500 status of other server errors but
// tells the client that retrying later is safe.
func (app *Application) upstreamUnavailableResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.logError(r, err)

	headers := http.Header{"Retry-After": []string{strconv.Itoa(upstreamRetryAfter)}}
	app.errorResponse(w, r, http.StatusInternalServerError, ErrUpstreamUnavailable, nil, headers)
}

func (app *Application) notFoundResponse(w http.ResponseWriter, r *http.Request) {
	app.errorResponse(w, r, http.StatusNotFound, ErrNotFound, nil, nil)
}

func (app *Application) methodNotAllowedResponse(w http.ResponseWriter, r *http.Request) {
	message := "the " + r.Method + " method is not supported for this resource"
	app.errorResponse(w, r, http.StatusMethodNotAllowed, message, nil, nil)
}

func (app *Application) badRequestResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponse(w, r, http.StatusBadRequest, err.Error(), nil, nil)
}

func (app *Application) unauthorizedAccessResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, ErrUnauthorized, nil, nil)
}

func (app *Application) invalidCredentialResponse(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	app.errorResponse(w, r, http.StatusUnauthorized, ErrInvalidCredential, nil, nil)
}

func (app *Application) failedValidationResponse(w http.ResponseWriter, r *http.Request, err error) {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		app.badRequestResponse(w, r, err)
		return
	}

	resp := api.ValidationErrorResponse{
		Error:     ErrValidationFailed,
		RequestId: middleware.GetReqID(r.Context()),
		Timestamp: time.Now(),
	}

	for _, fieldErr := range validationErrs {
		resp.ValidationErrors = append(resp.ValidationErrors, api.ValidationError{
			Field: fieldErr.Field(),
			Issue: appvalidator.ValidationMessage(fieldErr),
		})
	}

	err = app.writeJSON(w, http.StatusBadRequest, resp, nil)
	if err != nil {
		app.serverErrorResponse(w, r, err)
	}
}

// entitlementErrorResponse maps the domain error taxonomy onto HTTP.
func (app *Application) entitlementErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrUnauthenticated):
		app.unauthorizedAccessResponse(w, r)
	case errors.Is(err, domain.ErrInvalidCredential):
		app.invalidCredentialResponse(w, r)
	case errors.Is(err, domain.ErrForbidden):
		app.errorResponse(w, r, http.StatusForbidden, ErrAccessDenied, nil, nil)
	case errors.Is(err, domain.ErrBundleNotFound):
		app.errorResponse(w, r, http.StatusNotFound, ErrBundleNotFound, nil, nil)
	case errors.Is(err, domain.ErrPaymentReferenceNotFound):
		app.errorResponse(w, r, http.StatusNotFound, ErrPaymentReferenceNotFound, nil, nil)
	case errors.Is(err, domain.ErrRecordNotFound):
		app.notFoundResponse(w, r)
	case errors.Is(err, domain.ErrPaymentNotConfirmed):
		app.errorResponseWithDetails(w, r, http.StatusConflict, ErrPaymentNotConfirmed, err)
	case errors.Is(err, domain.ErrAlreadyPurchased):
		app.errorResponse(w, r, http.StatusConflict, ErrAlreadyPurchased, nil, nil)
	case errors.Is(err, domain.ErrMetadataMismatch):
		app.errorResponse(w, r, http.StatusBadRequest, ErrMetadataMismatch, nil, nil)
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		app.upstreamUnavailableResponse(w, r, err)
	default:
		app.serverErrorResponse(w, r, err)
	}
}
