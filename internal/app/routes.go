package app

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/metinatakli/creator-marketplace/api"
	"github.com/riandyrn/otelchi"
)

func (app *Application) Routes() http.Handler {
	r := chi.NewRouter()

	r.NotFound(app.notFoundResponse)
	r.MethodNotAllowed(app.methodNotAllowedResponse)

	r.Use(otelchi.Middleware(serviceName, otelchi.WithChiRoutes(r)))
	r.Use(middleware.RequestID)
	r.Use(app.logRequest)
	r.Use(app.recoverPanic)
	r.Use(app.authenticate)
	r.Use(app.validateOpenAPIRequest)

	return api.HandlerWithOptions(app, api.ChiServerOptions{
		BaseRouter:       r,
		Middlewares:      []api.MiddlewareFunc{app.requireAuthentication},
		ErrorHandlerFunc: app.parameterErrorResponse,
	})
}
