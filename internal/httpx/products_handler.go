package httpx

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/orders"
)

// ProductStore is the catalog slice consumed by the HTTP layer;
// *orders.ProductRepo satisfies it.
type ProductStore interface {
	GetProduct(ctx context.Context, id int64) (*orders.Product, error)
	ListProducts(ctx context.Context) ([]orders.Product, error)
	CreateProduct(ctx context.Context, p *orders.Product) error
	UpdateProduct(ctx context.Context, p *orders.Product) error
	DeleteProduct(ctx context.Context, id int64) error
	AdjustStock(ctx context.Context, id int64, delta int) (*orders.Product, error)
}

type ProductsHandler struct {
	Store    ProductStore
	Producer *kafkax.Producer // optional
	Service  string
	Log      zerolog.Logger
}

func (h *ProductsHandler) Register(r chi.Router) {
	r.Get("/products", h.listProducts)
	r.Get("/products/{id}", h.getProduct)
	r.With(RequireAdmin).Post("/products", h.createProduct)
	r.With(RequireAdmin).Put("/products/{id}", h.updateProduct)
	r.With(RequireAdmin).Delete("/products/{id}", h.deleteProduct)
	r.With(RequireAdmin).Post("/products/{id}/stock", h.adjustStock)
}

func productID(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	return id, err == nil
}

func (h *ProductsHandler) listProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	ps, err := h.Store.ListProducts(ctx)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if ps == nil {
		ps = []orders.Product{}
	}
	writeJSON(w, http.StatusOK, ps)
}

func (h *ProductsHandler) getProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	p, err := h.Store.GetProduct(ctx, id)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *ProductsHandler) createProduct(w http.ResponseWriter, r *http.Request) {
	var p orders.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p.ID = 0 // assigned by the store

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.CreateProduct(ctx, &p); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

func (h *ProductsHandler) updateProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	var p orders.Product
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	p.ID = id

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.UpdateProduct(ctx, &p); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *ProductsHandler) deleteProduct(w http.ResponseWriter, r *http.Request) {
	id, ok := productID(r)
	if !ok {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	if err := h.Store.DeleteProduct(ctx, id); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type adjustStockReq struct {
	Delta int `json:"delta"`
}

func (h *ProductsHandler) adjustStock(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { RecordOrderOperation("adjust_stock", ok) }()

	id, valid := productID(r)
	if !valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid product id"})
		return
	}
	var req adjustStockReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Delta == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "delta must be non-zero"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	p, err := h.Store.AdjustStock(ctx, id, req.Delta)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ok = true

	publishEvent(h.Producer, h.Service, orders.EventStockAdjusted, middleware.GetReqID(r.Context()), p.ID,
		orders.StockAdjustedPayload{ProductID: p.ID, Delta: req.Delta, NewStock: p.QuantityInStock})

	writeJSON(w, http.StatusOK, p)
}
