package httpapi

import (
	"expvar"
	"net/http"

	"github.com/go-chi/chi/v5"
)

// NewRouter registers HTTP routes and returns the handler with middleware.
func NewRouter(app *App) http.Handler {
	r := chi.NewRouter()
	r.Use(WithRequestID, WithLogging, WithRecover)

	r.Get("/", app.indexHandler)
	r.Get("/checkout/{id}", app.viewHandler)
	r.Post("/checkout/{id}", app.formPostHandler)

	r.Route("/api/checkout", func(r chi.Router) {
		r.Post("/", app.createSessionHandler)
		r.Get("/{id}", app.getStateHandler)
		r.Delete("/{id}", app.deleteSessionHandler)
		r.Put("/{id}/product", app.putProductHandler)
		r.Put("/{id}/quantity", app.putQuantityHandler)
		r.Post("/{id}/submit", app.submitHandler)
	})

	r.Get("/healthz", app.healthHandler)
	r.Get("/debug/metrics", app.metricsHandler)
	r.Handle("/debug/vars", expvar.Handler())
	r.Get("/openapi.yaml", app.openapiHandler)
	r.Get("/docs", app.docsHandler)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		WriteJSONError(w, http.StatusMethodNotAllowed, "method_not_allowed", "")
	})
	return r
}
