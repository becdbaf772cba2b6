package httpx

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	kafkax "warehouse-service/internal/kafka"
	"warehouse-service/internal/orders"
	"warehouse-service/internal/redisx"
)

// OrderStore is the slice of the order core the HTTP layer calls.
// *orders.Repo satisfies it; tests plug in an in-memory fake.
type OrderStore interface {
	PlaceOrder(ctx context.Context, userID, notes string, items []orders.LineItem) (*orders.Order, error)
	CancelOrder(ctx context.Context, orderID int64) (*orders.Order, error)
	CompleteOrder(ctx context.Context, orderID int64) (*orders.Order, error)
	GetOrder(ctx context.Context, orderID int64) (*orders.Order, error)
	ListOrders(ctx context.Context, userID string, all bool) ([]orders.Order, error)
}

type OrdersHandler struct {
	Store    OrderStore
	Producer *kafkax.Producer // optional
	Redis    *redis.Client    // optional
	Service  string
	Log      zerolog.Logger
}

type CreateOrderReq struct {
	Notes string            `json:"notes"`
	Items []orders.LineItem `json:"items"`
}

func (h *OrdersHandler) Register(r chi.Router) {
	r.Post("/orders", h.createOrder)
	r.Get("/orders", h.listOrders)
	r.Get("/orders/{id}", h.getOrder)
	r.With(RequireAdmin).Post("/orders/{id}/cancel", h.cancelOrder)
	r.With(RequireAdmin).Post("/orders/{id}/complete", h.completeOrder)
}

func (h *OrdersHandler) createOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { RecordOrderOperation("place", ok) }()

	id, found := IdentityFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req CreateOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}

	items, err := orders.NormalizeItems(req.Items)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.PlaceOrder(ctx, id.UserID, req.Notes, items)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ok = true

	h.cacheStatus(ctx, o)

	placed := orders.OrderPlacedPayload{
		OrderID:    o.ID,
		UserID:     o.UserID,
		TotalCents: o.TotalCents,
	}
	for _, it := range o.Items {
		placed.Items = append(placed.Items, orders.PlacedItem{
			ProductID: it.ProductID, Qty: it.Qty, UnitPriceCents: it.UnitPriceCents,
		})
	}
	publishEvent(h.Producer, h.Service, orders.EventOrderPlaced, middleware.GetReqID(r.Context()), o.ID, placed)

	writeJSON(w, http.StatusCreated, o)
}

func (h *OrdersHandler) listOrders(w http.ResponseWriter, r *http.Request) {
	id, found := IdentityFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	list, err := h.Store.ListOrders(ctx, id.UserID, id.Admin)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if list == nil {
		list = []orders.Order{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *OrdersHandler) getOrder(w http.ResponseWriter, r *http.Request) {
	id, found := IdentityFrom(r.Context())
	if !found {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	o, err := h.Store.GetOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if !id.Admin && o.UserID != id.UserID {
		writeJSON(w, http.StatusForbidden, map[string]string{"error": "not your order"})
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { RecordOrderOperation("cancel", ok) }()

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.CancelOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ok = true

	h.cacheStatus(ctx, o)

	released := make([]orders.LineItem, 0, len(o.Items))
	for _, it := range o.Items {
		released = append(released, orders.LineItem{ProductID: it.ProductID, Qty: it.Qty})
	}
	publishEvent(h.Producer, h.Service, orders.EventOrderCancelled, middleware.GetReqID(r.Context()), o.ID,
		orders.OrderCancelledPayload{OrderID: o.ID, Released: released})

	writeJSON(w, http.StatusOK, o)
}

func (h *OrdersHandler) completeOrder(w http.ResponseWriter, r *http.Request) {
	ok := false
	defer func() { RecordOrderOperation("complete", ok) }()

	orderID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order id"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Store.CompleteOrder(ctx, orderID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ok = true

	h.cacheStatus(ctx, o)
	publishEvent(h.Producer, h.Service, orders.EventOrderCompleted, middleware.GetReqID(r.Context()), o.ID,
		orders.OrderCompletedPayload{OrderID: o.ID})

	writeJSON(w, http.StatusOK, o)
}

// cacheStatus refreshes the Redis fast path for status reads. Best effort;
// the database stays the source of truth.
func (h *OrdersHandler) cacheStatus(ctx context.Context, o *orders.Order) {
	if h.Redis == nil {
		return
	}
	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	body := fmt.Sprintf(`{"status":%q}`, o.Status)
	if err := h.Redis.Set(ctx, key, body, redisx.TTLStatusCache).Err(); err != nil {
		h.Log.Warn().Err(err).Int64("order_id", o.ID).Msg("status cache write failed")
	}
}
