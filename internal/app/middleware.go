package app

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/metinatakli/creator-marketplace/api"
	"github.com/metinatakli/creator-marketplace/internal/domain"
	"go.opentelemetry.io/otel/trace"
)

func newOpenAPIRouter() (routers.Router, error) {
	swagger, err := api.GetSwagger()
	if err != nil {
		return nil, err
	}

	// match on paths only, the server urls differ per deployment
	swagger.Servers = nil

	return legacy.NewRouter(swagger)
}

func (app *Application) recoverPanic(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if err := recover(); err != nil {
				w.Header().Set("Connection", "close")

				app.serverErrorResponse(w, r, fmt.Errorf("%s", err))
			}
		}()

		next.ServeHTTP(w, r)
	})
}

// logRequest attaches a request-scoped logger and logs every completed request.
func (app *Application) logRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := app.logger.With(
			"request_id", middleware.GetReqID(r.Context()),
			"method", r.Method,
			"uri", r.URL.RequestURI(),
		)

		if spanCtx := trace.SpanContextFromContext(r.Context()); spanCtx.HasTraceID() {
			logger = logger.With("trace_id", spanCtx.TraceID().String())
		}

		r = app.contextSetLogger(r, logger)

		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		next.ServeHTTP(ww, r)

		logger.InfoContext(r.Context(), "request completed",
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
		)
	})
}

// authenticate verifies the bearer token of every operation that declares a
// security requirement, before the request shape is validated.
func (app *Application) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, _, err := app.openapiRouter.FindRoute(r)
		if err != nil || !requiresBearer(route) {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := bearerToken(r)
		if !ok {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		identity, err := app.identity.Verify(r.Context(), token)
		if err != nil {
			app.entitlementErrorResponse(w, r, err)
			return
		}

		r = app.contextSetIdentity(r, identity)
		r = app.contextSetLogger(r, app.contextGetLogger(r).With("user_id", identity.UserID))

		next.ServeHTTP(w, r)
	})
}

func requiresBearer(route *routers.Route) bool {
	if route == nil || route.Operation == nil {
		return false
	}

	security := route.Operation.Security
	if security == nil {
		security = &route.Spec.Security
	}

	for _, requirement := range *security {
		if _, ok := requirement["bearerAuth"]; ok {
			return true
		}
	}

	return false
}

func bearerToken(r *http.Request) (string, bool) {
	header := r.Header.Get("Authorization")
	if header == "" {
		return "", false
	}

	scheme, token, found := strings.Cut(header, " ")
	if !found || !strings.EqualFold(scheme, "Bearer") {
		return "", false
	}

	token = strings.TrimSpace(token)

	return token, token != ""
}

// requireAuthentication guards the operations the API wrapper marks with
// bearer scopes.
func (app *Application) requireAuthentication(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Context().Value(api.BearerAuthScopes) == nil {
			next.ServeHTTP(w, r)
			return
		}

		if _, ok := r.Context().Value(identityContextKey).(*domain.Identity); !ok {
			app.unauthorizedAccessResponse(w, r)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func (app *Application) validateOpenAPIRequest(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := app.openapiRouter.FindRoute(r)
		if err != nil {
			switch {
			case errors.Is(err, routers.ErrMethodNotAllowed):
				app.methodNotAllowedResponse(w, r)
			default:
				app.notFoundResponse(w, r)
			}

			return
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}

		err = openapi3filter.ValidateRequest(r.Context(), input)
		if err != nil {
			app.errorResponseWithDetails(w, r, http.StatusBadRequest, "invalid request", err)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// parameterErrorResponse handles parameter binding failures of the API wrapper.
func (app *Application) parameterErrorResponse(w http.ResponseWriter, r *http.Request, err error) {
	app.errorResponseWithDetails(w, r, http.StatusBadRequest, "invalid request", err)
}
