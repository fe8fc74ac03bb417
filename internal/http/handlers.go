package httpapi

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
	"github.com/fairyhunter13/storefront-checkout/internal/config"
	httpopenapi "github.com/fairyhunter13/storefront-checkout/internal/http/openapi"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/session"
)

type App struct {
	Cfg      config.Config
	Sessions *session.Registry
	Metrics  *checkout.Metrics
	closing  atomic.Bool
	started  time.Time
}

type stateResponse struct {
	SessionID  string              `json:"session_id"`
	ProductID  string              `json:"product_id"`
	Quantity   string              `json:"quantity"`
	Phase      checkout.Phase      `json:"phase"`
	Submitting bool                `json:"submitting"`
	Status     checkout.StatusKind `json:"status"`
	Message    string              `json:"message"`
	Price      *float64            `json:"price,omitempty"`
}

type productReq struct {
	ProductID string `json:"product_id"`
}

type quantityReq struct {
	Quantity string `json:"quantity"`
}

func NewApp(cfg config.Config, sessions *session.Registry, m *checkout.Metrics) *App {
	return &App{Cfg: cfg, Sessions: sessions, Metrics: m, started: time.Now()}
}

// StartShutdown stops new sessions from being mounted.
func (a *App) StartShutdown() {
	a.closing.Store(true)
}

func newStateResponse(id string, s checkout.FormState) stateResponse {
	resp := stateResponse{
		SessionID:  id,
		ProductID:  s.ProductID,
		Quantity:   s.Quantity,
		Phase:      s.Phase,
		Submitting: s.Submitting(),
		Status:     s.Status.Kind,
		Message:    s.Status.Message(),
	}
	if s.Status.Kind == checkout.StatusPriceKnown {
		p := s.Status.Price
		resp.Price = &p
	}
	return resp
}

func writeState(w http.ResponseWriter, status int, id string, s checkout.FormState) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(newStateResponse(id, s))
}

// decodeJSON enforces a JSON content type and a strict body; on failure it
// has already written the error response.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	ct := r.Header.Get("Content-Type")
	if !strings.HasPrefix(strings.ToLower(ct), "application/json") {
		WriteJSONError(w, http.StatusUnsupportedMediaType, "unsupported_media_type", "expected application/json")
		return false
	}
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		WriteJSONError(w, http.StatusBadRequest, "invalid_json", err.Error())
		return false
	}
	return true
}

// lookup resolves the {id} session or writes a 404.
func (a *App) lookup(w http.ResponseWriter, r *http.Request) (string, *checkout.Workflow, bool) {
	id := chi.URLParam(r, "id")
	wf, ok := a.Sessions.Get(id)
	if !ok {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return id, nil, false
	}
	return id, wf, true
}

func (a *App) createSessionHandler(w http.ResponseWriter, r *http.Request) {
	if a.closing.Load() {
		WriteJSONError(w, http.StatusServiceUnavailable, "shutting_down", "")
		return
	}
	id, wf := a.Sessions.Create()
	writeState(w, http.StatusCreated, id, wf.Snapshot())
}

func (a *App) getStateHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	writeState(w, http.StatusOK, id, wf.Snapshot())
}

func (a *App) deleteSessionHandler(w http.ResponseWriter, r *http.Request) {
	if !a.Sessions.Delete(chi.URLParam(r, "id")) {
		WriteJSONError(w, http.StatusNotFound, "not_found", "")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (a *App) putProductHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req productReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wf.SetProductID(req.ProductID); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeState(w, http.StatusOK, id, wf.Snapshot())
}

func (a *App) putQuantityHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	var req quantityReq
	if !decodeJSON(w, r, &req) {
		return
	}
	if err := wf.SetQuantity(req.Quantity); err != nil {
		writeWorkflowError(w, err)
		return
	}
	writeState(w, http.StatusOK, id, wf.Snapshot())
}

func (a *App) submitHandler(w http.ResponseWriter, r *http.Request) {
	id, wf, ok := a.lookup(w, r)
	if !ok {
		return
	}
	if err := wf.Submit(); err != nil {
		writeWorkflowError(w, err)
		return
	}
	obs.Logger.Info("order_submit_started",
		"session_id", id,
		"request_id", RequestIDFromContext(r.Context()),
	)
	writeState(w, http.StatusAccepted, id, wf.Snapshot())
}

func (a *App) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (a *App) metricsHandler(w http.ResponseWriter, r *http.Request) {
	m := map[string]any{
		"active_sessions": a.Sessions.Len(),
		"uptime_sec":      time.Since(a.started).Seconds(),
	}
	for k, v := range a.Metrics.Snapshot() {
		m[k] = v
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(m)
}

func (a *App) openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	_, _ = w.Write(httpopenapi.YAML)
}

func (a *App) docsHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	html := `<!doctype html>
<html>
  <head>
    <meta charset="utf-8" />
    <title>Checkout API Docs</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5/swagger-ui.css" />
  </head>
  <body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5/swagger-ui-bundle.js"></script>
    <script>
      window.ui = SwaggerUIBundle({
        url: '/openapi.yaml',
        dom_id: '#swagger-ui'
      });
    </script>
  </body>
</html>`
	_, _ = w.Write([]byte(html))
}
