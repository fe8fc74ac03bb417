// Package stub serves development stand-ins for the catalog and order
// services the checkout widget talks to. It mirrors their HTTP contracts
// closely enough for local runs and end-to-end tests.
package stub

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/fairyhunter13/storefront-checkout/internal/config"
	"github.com/fairyhunter13/storefront-checkout/internal/model"
	"github.com/fairyhunter13/storefront-checkout/internal/obs"
	"github.com/fairyhunter13/storefront-checkout/internal/queue"
	"github.com/fairyhunter13/storefront-checkout/internal/store"
)

// ErrProductNotFound is returned by a ProductLookup for unknown ids.
var ErrProductNotFound = errors.New("product not found")

var (
	feeRate   = decimal.RequireFromString("0.2")
	totalRate = decimal.RequireFromString("1.2")
)

// ProductLookup resolves the product an order is placed for.
type ProductLookup interface {
	LookupProduct(ctx context.Context, id string) (model.Product, error)
}

// CatalogLookup serves lookups from the in-process catalog.
type CatalogLookup struct{ Catalog *store.Catalog }

func (l CatalogLookup) LookupProduct(_ context.Context, id string) (model.Product, error) {
	p, ok := l.Catalog.Get(id)
	if !ok {
		return model.Product{}, ErrProductNotFound
	}
	return p, nil
}

// Server holds the stub services' state.
type Server struct {
	Cfg     config.Config
	Catalog *store.Catalog
	Orders  *store.Orders
	Manager *queue.Manager
	Lookup  ProductLookup
	now     func() time.Time
}

func NewServer(cfg config.Config, catalog *store.Catalog, orders *store.Orders, mgr *queue.Manager) *Server {
	return &Server{
		Cfg:     cfg,
		Catalog: catalog,
		Orders:  orders,
		Manager: mgr,
		Lookup:  CatalogLookup{Catalog: catalog},
		now:     time.Now,
	}
}

type detail struct {
	Detail string `json:"detail"`
}

type createProductReq struct {
	Name     string       `json:"name"`
	Price    model.Number `json:"price"`
	Quantity model.Number `json:"quantity"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, detail{Detail: msg})
}

// Routes registers both services on one router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()
	r.Get("/health", s.health)
	r.Get("/products", s.listProducts)
	r.Post("/products", s.createProduct)
	r.Get("/products/{id}", s.getProduct)
	r.Delete("/products/{id}", s.deleteProduct)
	r.Get("/orders", s.listOrders)
	r.Post("/orders", s.createOrder)
	r.Get("/orders/{id}", s.getOrder)
	return r
}

type healthResp struct {
	Status   string      `json:"status"`
	Products int         `json:"products"`
	Orders   int         `json:"orders"`
	Pipeline queue.Stats `json:"pipeline"`
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResp{
		Status:   "ok",
		Products: len(s.Catalog.List()),
		Orders:   s.Orders.Len(),
		Pipeline: s.Manager.Stats(),
	})
}

func (s *Server) listProducts(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Catalog.List())
}

func (s *Server) createProduct(w http.ResponseWriter, r *http.Request) {
	var req createProductReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeDetail(w, http.StatusBadRequest, "name is required")
		return
	}
	price, err := req.Price.Float()
	if err != nil || price < 0 {
		writeDetail(w, http.StatusBadRequest, "price must be a number >= 0")
		return
	}
	qty, err := req.Quantity.Int()
	if err != nil || qty < 0 {
		writeDetail(w, http.StatusBadRequest, "quantity must be a whole number >= 0")
		return
	}
	p := s.Catalog.Create(model.Product{
		Name:     req.Name,
		Price:    model.NewNumber(price),
		Quantity: model.NewNumber(float64(qty)),
	})
	obs.Logger.Info("product_created", "product_id", p.ID, "name", p.Name, "price", price)
	writeJSON(w, http.StatusCreated, p)
}

func (s *Server) getProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	p, ok := s.Catalog.Get(id)
	if !ok {
		obs.Logger.Warn("product_not_found", "product_id", id)
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (s *Server) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if !s.Catalog.Delete(id) {
		writeDetail(w, http.StatusNotFound, "Product not found")
		return
	}
	obs.Logger.Info("product_deleted", "product_id", id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Product deleted successfully"})
}

// Charge computes the fee and total for a base price.
func Charge(price float64) (fee, total float64) {
	p := decimal.NewFromFloat(price)
	fee, _ = p.Mul(feeRate).Float64()
	total, _ = p.Mul(totalRate).Float64()
	return fee, total
}

func (s *Server) createOrder(w http.ResponseWriter, r *http.Request) {
	if s.Manager.IsShuttingDown() {
		writeDetail(w, http.StatusServiceUnavailable, "Order service is shutting down")
		return
	}
	var req model.OrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeDetail(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}
	obs.Logger.Info("order_request_received", "product_id", req.ID, "quantity", req.Quantity)

	p, err := s.Lookup.LookupProduct(r.Context(), req.ID)
	if err != nil {
		obs.Logger.Error("product_lookup_failed", "product_id", req.ID, "error", err)
		writeDetail(w, http.StatusBadGateway, "Product service unavailable")
		return
	}
	price, err := p.Price.Float()
	if err != nil {
		obs.Logger.Error("product_price_invalid", "product_id", req.ID, "error", err)
		writeDetail(w, http.StatusBadGateway, "Product service unavailable")
		return
	}

	fee, total := Charge(price)
	o := model.Order{
		ID:        uuid.NewString(),
		ProductID: req.ID,
		Price:     price,
		Fee:       fee,
		Total:     total,
		Quantity:  req.Quantity,
		Status:    model.OrderStatusPending,
		CreatedAt: s.now().UTC(),
	}
	s.Orders.Put(o, s.Manager.NextSequence())
	if !s.Manager.Schedule(o.ID, model.OrderStatusCompleted, s.now().Add(s.Cfg.OrderCompletionDelay)) {
		obs.Logger.Warn("order_completion_not_scheduled", "order_id", o.ID)
	}
	obs.Logger.Info("order_created", "order_id", o.ID, "product_id", o.ProductID, "total", o.Total)
	writeJSON(w, http.StatusOK, o)
}

func (s *Server) listOrders(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.Orders.List())
}

func (s *Server) getOrder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	o, ok := s.Orders.Get(id)
	if !ok {
		writeDetail(w, http.StatusNotFound, "Order not found")
		return
	}
	writeJSON(w, http.StatusOK, o)
}
