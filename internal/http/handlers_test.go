package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/fairyhunter13/storefront-checkout/internal/checkout"
	"github.com/fairyhunter13/storefront-checkout/internal/client"
	"github.com/fairyhunter13/storefront-checkout/internal/config"
	"github.com/fairyhunter13/storefront-checkout/internal/session"
)

type stateResp struct {
	SessionID  string   `json:"session_id"`
	ProductID  string   `json:"product_id"`
	Quantity   string   `json:"quantity"`
	Phase      string   `json:"phase"`
	Submitting bool     `json:"submitting"`
	Status     string   `json:"status"`
	Message    string   `json:"message"`
	Price      *float64 `json:"price"`
}

type upstream struct {
	catalog *httptest.Server
	orders  *httptest.Server
	release chan struct{}
}

func newUpstream(t *testing.T) *upstream {
	t.Helper()
	u := &upstream{release: make(chan struct{})}
	u.catalog = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch strings.TrimPrefix(r.URL.Path, "/products/") {
		case "p-1":
			_, _ = w.Write([]byte(`{"id":"p-1","name":"mug","price":"10.00","quantity":5}`))
		default:
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"detail":"Product not found"}`))
		}
	}))
	u.orders = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-u.release:
		case <-r.Context().Done():
		}
		w.WriteHeader(http.StatusOK)
	}))
	return u
}

func (u *upstream) close() {
	select {
	case <-u.release:
	default:
		close(u.release)
	}
	u.catalog.Close()
	u.orders.Close()
}

func setupApp(t *testing.T) (*App, *upstream, func(), http.Handler) {
	t.Helper()
	cfg := config.Load()
	up := newUpstream(t)
	metrics := &checkout.Metrics{}
	catalog := client.NewCatalog(up.catalog.URL, nil)
	orders := client.NewOrders(up.orders.URL, nil)
	reg := session.New(func() *checkout.Workflow {
		return checkout.New(catalog, orders, checkout.WithMetrics(metrics))
	})
	app := NewApp(cfg, reg, metrics)
	mux := NewRouter(app)
	cleanup := func() {
		up.close()
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		reg.CloseAll(ctx)
	}
	return app, up, cleanup, mux
}

func do(t *testing.T, h http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, bytes.NewBufferString(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func decodeState(t *testing.T, rr *httptest.ResponseRecorder) stateResp {
	t.Helper()
	var s stateResp
	if err := json.Unmarshal(rr.Body.Bytes(), &s); err != nil {
		t.Fatalf("decode state: %v (%s)", err, rr.Body.String())
	}
	return s
}

func createSession(t *testing.T, h http.Handler) string {
	t.Helper()
	rr := do(t, h, http.MethodPost, "/api/checkout", "")
	if rr.Code != http.StatusCreated {
		t.Fatalf("expected 201, got %d", rr.Code)
	}
	s := decodeState(t, rr)
	if s.SessionID == "" || s.Status != "default" || s.Message != "Buy your favorite product" {
		t.Fatalf("unexpected initial state: %+v", s)
	}
	return s.SessionID
}

func waitState(t *testing.T, h http.Handler, id string, cond func(stateResp) bool) stateResp {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	var last stateResp
	for time.Now().Before(deadline) {
		last = decodeState(t, do(t, h, http.MethodGet, "/api/checkout/"+id, ""))
		if cond(last) {
			return last
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("state condition not reached, last: %+v", last)
	return last
}

func TestOpenAPIServed(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/openapi.yaml", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !bytes.Contains(rr.Body.Bytes(), []byte("openapi:")) {
		t.Fatalf("expected openapi content")
	}
}

func TestDocsServed(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/docs", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "swagger-ui") {
		t.Fatalf("expected swagger-ui in docs body")
	}
}

func TestHealthzOK(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	rr := do(t, mux, http.MethodGet, "/healthz", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if rr.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header")
	}
}

func TestQuoteAndSubmitFlow(t *testing.T) {
	_, up, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)

	rr := do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p-1"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	s := waitState(t, mux, id, func(s stateResp) bool { return s.Status == "price_known" })
	if s.Message != "Your product price is $12" || s.Price == nil || *s.Price != 12 {
		t.Fatalf("unexpected quote state: %+v", s)
	}

	rr = do(t, mux, http.MethodPut, "/api/checkout/"+id+"/quantity", `{"quantity":"2"}`)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}

	rr = do(t, mux, http.MethodPost, "/api/checkout/"+id+"/submit", "")
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rr.Code)
	}
	s = decodeState(t, rr)
	if !s.Submitting || s.Phase != "submitting" || s.Message != "Placing your order..." {
		t.Fatalf("unexpected submitting state: %+v", s)
	}

	if rr := do(t, mux, http.MethodPost, "/api/checkout/"+id+"/submit", ""); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for second submit, got %d", rr.Code)
	}
	if rr := do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p-2"}`); rr.Code != http.StatusConflict {
		t.Fatalf("expected 409 for edit while submitting, got %d", rr.Code)
	}

	close(up.release)
	s = waitState(t, mux, id, func(s stateResp) bool { return s.Phase == "idle" })
	if s.Status != "success" || s.Message != "✅ Thank you for your order!" {
		t.Fatalf("unexpected settled state: %+v", s)
	}
}

func TestUnknownProductFallsBackToDefault(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)
	do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p-1"}`)
	waitState(t, mux, id, func(s stateResp) bool { return s.Status == "price_known" })

	do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"nope"}`)
	s := waitState(t, mux, id, func(s stateResp) bool { return s.Status == "default" })
	if s.Price != nil {
		t.Fatalf("default state must not carry a price: %+v", s)
	}
}

func TestSubmitValidationError(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)
	do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p-1"}`)
	do(t, mux, http.MethodPut, "/api/checkout/"+id+"/quantity", `{"quantity":"0"}`)
	rr := do(t, mux, http.MethodPost, "/api/checkout/"+id+"/submit", "")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "validation_error") {
		t.Fatalf("expected validation_error, got %s", rr.Body.String())
	}
}

func TestBadBodies(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)

	rr := do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p","foo":1}`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for unknown field, got %d", rr.Code)
	}
	rr = do(t, mux, http.MethodPut, "/api/checkout/"+id+"/quantity", `{"quantity":`)
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for malformed json, got %d", rr.Code)
	}
	req := httptest.NewRequest(http.MethodPut, "/api/checkout/"+id+"/product", bytes.NewBufferString(`{}`))
	req.Header.Set("Content-Type", "text/plain")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusUnsupportedMediaType {
		t.Fatalf("expected 415, got %d", w.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	for _, tc := range []struct{ method, path, body string }{
		{http.MethodGet, "/api/checkout/missing", ""},
		{http.MethodDelete, "/api/checkout/missing", ""},
		{http.MethodPost, "/api/checkout/missing/submit", ""},
		{http.MethodPut, "/api/checkout/missing/product", `{"product_id":"x"}`},
		{http.MethodGet, "/checkout/missing", ""},
	} {
		if rr := do(t, mux, tc.method, tc.path, tc.body); rr.Code != http.StatusNotFound {
			t.Fatalf("%s %s: expected 404, got %d", tc.method, tc.path, rr.Code)
		}
	}
}

func TestDeleteSession(t *testing.T) {
	app, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)
	if rr := do(t, mux, http.MethodDelete, "/api/checkout/"+id, ""); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204, got %d", rr.Code)
	}
	if app.Sessions.Len() != 0 {
		t.Fatalf("expected no sessions")
	}
}

func TestHTMLViewAndFormPost(t *testing.T) {
	_, up, cleanup, mux := setupApp(t)
	defer cleanup()

	rr := do(t, mux, http.MethodGet, "/", "")
	if rr.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", rr.Code)
	}
	loc := rr.Header().Get("Location")
	if !strings.HasPrefix(loc, "/checkout/") {
		t.Fatalf("unexpected location %q", loc)
	}
	id := strings.TrimPrefix(loc, "/checkout/")

	page := do(t, mux, http.MethodGet, loc, "").Body.String()
	if !strings.Contains(page, "Buy your favorite product") || !strings.Contains(page, ">Buy</button>") {
		t.Fatalf("unexpected idle page: %s", page)
	}

	form := url.Values{"product_id": {"p-1"}, "quantity": {"1"}}
	req := httptest.NewRequest(http.MethodPost, loc, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}

	// the edit's quote lands while the order is still in flight
	waitState(t, mux, id, func(s stateResp) bool { return s.Submitting && s.Status == "price_known" })
	page = do(t, mux, http.MethodGet, loc, "").Body.String()
	if !strings.Contains(page, "Processing...") || !strings.Contains(page, "disabled") {
		t.Fatalf("expected disabled form while submitting: %s", page)
	}

	close(up.release)
	waitState(t, mux, id, func(s stateResp) bool { return s.Status == "success" })
	page = do(t, mux, http.MethodGet, loc, "").Body.String()
	if strings.Contains(page, "disabled") || !strings.Contains(page, "Thank you for your order!") {
		t.Fatalf("expected enabled form after success: %s", page)
	}
}

func TestFormPostInvalidKeepsStatus(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)
	form := url.Values{"product_id": {""}, "quantity": {"0"}}
	req := httptest.NewRequest(http.MethodPost, "/checkout/"+id, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, req)
	if w.Code != http.StatusSeeOther {
		t.Fatalf("expected 303, got %d", w.Code)
	}
	s := decodeState(t, do(t, mux, http.MethodGet, "/api/checkout/"+id, ""))
	if s.Status != "default" || s.Submitting {
		t.Fatalf("expected untouched default state: %+v", s)
	}
}

func TestMetricsHandler(t *testing.T) {
	_, _, cleanup, mux := setupApp(t)
	defer cleanup()
	id := createSession(t, mux)
	do(t, mux, http.MethodPut, "/api/checkout/"+id+"/product", `{"product_id":"p-1"}`)
	waitState(t, mux, id, func(s stateResp) bool { return s.Status == "price_known" })

	rr := do(t, mux, http.MethodGet, "/debug/metrics", "")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var m map[string]any
	if err := json.Unmarshal(rr.Body.Bytes(), &m); err != nil {
		t.Fatalf("metrics json decode: %v", err)
	}
	if m["active_sessions"] != float64(1) {
		t.Fatalf("expected one session, got %v", m["active_sessions"])
	}
	if m["quotes_applied"] != float64(1) {
		t.Fatalf("expected one applied quote, got %v", m["quotes_applied"])
	}
}

func TestShutdownBehavior(t *testing.T) {
	app, _, cleanup, mux := setupApp(t)
	defer cleanup()
	app.StartShutdown()
	if rr := do(t, mux, http.MethodPost, "/api/checkout", ""); rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rr.Code)
	}
}

func TestStatusForError(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{checkout.ErrInvalidForm, http.StatusBadRequest},
		{checkout.ErrSubmitInFlight, http.StatusConflict},
		{checkout.ErrFormDisabled, http.StatusConflict},
		{checkout.ErrClosed, http.StatusNotFound},
		{context.Canceled, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got, _ := statusForError(tc.err); got != tc.want {
			t.Fatalf("%v: expected %d, got %d", tc.err, tc.want, got)
		}
	}
}
