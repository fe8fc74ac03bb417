// Package model defines wire and domain types shared across the service.
package model

import "time"

// Product is a catalog record as served by GET /products/{id}.
//
// Price and Quantity are kept raw since upstream catalogs disagree on whether
// they are numbers or strings; consumers parse them.
type Product struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Price    Number `json:"price"`
	Quantity Number `json:"quantity"`
}

// OrderRequest is the body of POST /orders. Quantity travels as the raw form
// string, not as a number.
type OrderRequest struct {
	ID       string `json:"id"`
	Quantity string `json:"quantity"`
}

// Quote is a transient price lookup result.
type Quote struct {
	ProductID string
	BasePrice float64
}

// OrderStatus is the lifecycle status of a stub order.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "pending"
	OrderStatusCompleted OrderStatus = "completed"
)

// IsTerminal reports whether no further transition is expected.
func (s OrderStatus) IsTerminal() bool { return s == OrderStatusCompleted }

// Order is an order as stored and returned by the stub order service.
type Order struct {
	ID        string      `json:"id"`
	ProductID string      `json:"product_id"`
	Price     float64     `json:"price"`
	Fee       float64     `json:"fee"`
	Total     float64     `json:"total"`
	Quantity  string      `json:"quantity"`
	Status    OrderStatus `json:"status"`
	CreatedAt time.Time   `json:"created_at"`
}

// OrderEvent is a queued status transition for a stub order.
type OrderEvent struct {
	OrderID  string      `json:"order_id"`
	Status   OrderStatus `json:"status"`
	DueAt    time.Time   `json:"-"`
	Sequence uint64      `json:"-"`
}
