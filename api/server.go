package api

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/oapi-codegen/runtime"
)

type contextKey string

// BearerAuthScopes is set on the request context of every operation that
// requires a bearer token.
const BearerAuthScopes = contextKey("bearerAuth.Scopes")

type StripeWebhookParams struct {
	StripeSignature string `json:"Stripe-Signature"`
}

// ServerInterface represents all server handlers.
type ServerInterface interface {
	// (GET /healthcheck)
	GetHealth(w http.ResponseWriter, r *http.Request)
	// (POST /checkout/sessions)
	CreateCheckoutSession(w http.ResponseWriter, r *http.Request)
	// (POST /purchases/grant-access)
	GrantAccess(w http.ResponseWriter, r *http.Request)
	// (GET /purchases/check-access)
	CheckAccess(w http.ResponseWriter, r *http.Request, params CheckAccessParams)
	// (GET /bundles/{bundleId}/content)
	GetBundleContent(w http.ResponseWriter, r *http.Request, bundleId string)
	// (GET /users/me/purchases)
	GetPurchasesOfUser(w http.ResponseWriter, r *http.Request, params GetPurchasesOfUserParams)
	// (POST /webhook)
	StripeWebhook(w http.ResponseWriter, r *http.Request, params StripeWebhookParams)
}

type MiddlewareFunc func(http.Handler) http.Handler

// ServerInterfaceWrapper converts path, query and header parameters before
// handing the request to the ServerInterface.
type ServerInterfaceWrapper struct {
	Handler            ServerInterface
	HandlerMiddlewares []MiddlewareFunc
	ErrorHandlerFunc   func(w http.ResponseWriter, r *http.Request, err error)
}

func (siw *ServerInterfaceWrapper) serve(w http.ResponseWriter, r *http.Request, handler http.Handler) {
	for _, middleware := range siw.HandlerMiddlewares {
		handler = middleware(handler)
	}

	handler.ServeHTTP(w, r)
}

func withBearerAuth(r *http.Request) *http.Request {
	ctx := context.WithValue(r.Context(), BearerAuthScopes, []string{})
	return r.WithContext(ctx)
}

func (siw *ServerInterfaceWrapper) GetHealth(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, r, http.HandlerFunc(siw.Handler.GetHealth))
}

func (siw *ServerInterfaceWrapper) CreateCheckoutSession(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, withBearerAuth(r), http.HandlerFunc(siw.Handler.CreateCheckoutSession))
}

func (siw *ServerInterfaceWrapper) GrantAccess(w http.ResponseWriter, r *http.Request) {
	siw.serve(w, withBearerAuth(r), http.HandlerFunc(siw.Handler.GrantAccess))
}

func (siw *ServerInterfaceWrapper) CheckAccess(w http.ResponseWriter, r *http.Request) {
	var params CheckAccessParams

	if paramValue := r.URL.Query().Get("bundleId"); paramValue == "" {
		siw.ErrorHandlerFunc(w, r, &RequiredParamError{ParamName: "bundleId"})
		return
	}

	err := runtime.BindQueryParameter("form", true, true, "bundleId", r.URL.Query(), &params.BundleId)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "bundleId", Err: err})
		return
	}

	siw.serve(w, withBearerAuth(r), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.CheckAccess(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) GetBundleContent(w http.ResponseWriter, r *http.Request) {
	var bundleId string

	err := runtime.BindStyledParameterWithOptions("simple", "bundleId", chi.URLParam(r, "bundleId"), &bundleId,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "bundleId", Err: err})
		return
	}

	siw.serve(w, withBearerAuth(r), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetBundleContent(w, r, bundleId)
	}))
}

func (siw *ServerInterfaceWrapper) GetPurchasesOfUser(w http.ResponseWriter, r *http.Request) {
	var params GetPurchasesOfUserParams

	err := runtime.BindQueryParameter("form", true, false, "page", r.URL.Query(), &params.Page)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "page", Err: err})
		return
	}

	err = runtime.BindQueryParameter("form", true, false, "pageSize", r.URL.Query(), &params.PageSize)
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "pageSize", Err: err})
		return
	}

	siw.serve(w, withBearerAuth(r), http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.GetPurchasesOfUser(w, r, params)
	}))
}

func (siw *ServerInterfaceWrapper) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	var params StripeWebhookParams

	signature := r.Header.Values("Stripe-Signature")
	if len(signature) != 1 {
		siw.ErrorHandlerFunc(w, r, &RequiredHeaderError{ParamName: "Stripe-Signature"})
		return
	}

	err := runtime.BindStyledParameterWithOptions("simple", "Stripe-Signature", signature[0], &params.StripeSignature,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationHeader, Explode: false, Required: true})
	if err != nil {
		siw.ErrorHandlerFunc(w, r, &InvalidParamFormatError{ParamName: "Stripe-Signature", Err: err})
		return
	}

	siw.serve(w, r, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		siw.Handler.StripeWebhook(w, r, params)
	}))
}

type RequiredParamError struct {
	ParamName string
}

func (e *RequiredParamError) Error() string {
	return fmt.Sprintf("Query argument %s is required, but not found", e.ParamName)
}

type RequiredHeaderError struct {
	ParamName string
}

func (e *RequiredHeaderError) Error() string {
	return fmt.Sprintf("Header parameter %s is required, but not found", e.ParamName)
}

type InvalidParamFormatError struct {
	ParamName string
	Err       error
}

func (e *InvalidParamFormatError) Error() string {
	return fmt.Sprintf("Invalid format for parameter %s: %s", e.ParamName, e.Err.Error())
}

func (e *InvalidParamFormatError) Unwrap() error {
	return e.Err
}

type ChiServerOptions struct {
	BaseURL          string
	BaseRouter       chi.Router
	Middlewares      []MiddlewareFunc
	ErrorHandlerFunc func(w http.ResponseWriter, r *http.Request, err error)
}

// HandlerFromMux creates http.Handler with routing matching the OpenAPI document
// based on the provided mux.
func HandlerFromMux(si ServerInterface, r chi.Router) http.Handler {
	return HandlerWithOptions(si, ChiServerOptions{
		BaseRouter: r,
	})
}

// HandlerWithOptions creates http.Handler with additional options.
func HandlerWithOptions(si ServerInterface, options ChiServerOptions) http.Handler {
	r := options.BaseRouter

	if r == nil {
		r = chi.NewRouter()
	}
	if options.ErrorHandlerFunc == nil {
		options.ErrorHandlerFunc = func(w http.ResponseWriter, r *http.Request, err error) {
			http.Error(w, err.Error(), http.StatusBadRequest)
		}
	}

	wrapper := ServerInterfaceWrapper{
		Handler:            si,
		HandlerMiddlewares: options.Middlewares,
		ErrorHandlerFunc:   options.ErrorHandlerFunc,
	}

	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/healthcheck", wrapper.GetHealth)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/checkout/sessions", wrapper.CreateCheckoutSession)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/purchases/grant-access", wrapper.GrantAccess)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/purchases/check-access", wrapper.CheckAccess)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/bundles/{bundleId}/content", wrapper.GetBundleContent)
	})
	r.Group(func(r chi.Router) {
		r.Get(options.BaseURL+"/users/me/purchases", wrapper.GetPurchasesOfUser)
	})
	r.Group(func(r chi.Router) {
		r.Post(options.BaseURL+"/webhook", wrapper.StripeWebhook)
	})

	return r
}
