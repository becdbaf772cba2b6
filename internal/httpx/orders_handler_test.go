package httpx_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"warehouse-service/internal/httpx"
	"warehouse-service/internal/orders"
)

const testSecret = "test-secret"

func signToken(t *testing.T, sub string, admin bool) string {
	t.Helper()
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"sub": sub, "admin": admin})
	s, err := tok.SignedString([]byte(testSecret))
	require.NoError(t, err)
	return s
}

func newTestServer(t *testing.T, store *memStore) *httptest.Server {
	t.Helper()
	log := zerolog.Nop()
	router := httpx.NewRouter(log)
	router.Group(func(r chi.Router) {
		r.Use(httpx.Auth(testSecret))
		(&httpx.OrdersHandler{Store: store, Service: "test", Log: log}).Register(r)
		(&httpx.ProductsHandler{Store: store, Service: "test", Log: log}).Register(r)
	})
	ts := httptest.NewServer(router)
	t.Cleanup(ts.Close)
	return ts
}

func doJSON(t *testing.T, method, url, token string, body any) (int, []byte) {
	t.Helper()
	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, url, rd)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	out, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, out
}

func placeReq(notes string, items ...orders.LineItem) map[string]any {
	return map[string]any{"notes": notes, "items": items}
}

func TestPlaceOrder(t *testing.T) {
	store := newMemStore()
	laptop := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	store.addProduct("Monitor LG", "MON-LG-002", 1200, 15)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)

	// duplicate rows merge, zero-quantity row is dropped
	code, body := doJSON(t, http.MethodPost, ts.URL+"/orders", user, placeReq("",
		orders.LineItem{ProductID: laptop.ID, Qty: 2},
		orders.LineItem{ProductID: laptop.ID, Qty: 3},
		orders.LineItem{ProductID: 2, Qty: 0},
	))
	require.Equal(t, http.StatusCreated, code, string(body))

	var o orders.Order
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, "alice", o.UserID)
	assert.Equal(t, orders.StatusNew, o.Status)
	require.Len(t, o.Items, 1)
	assert.Equal(t, laptop.ID, o.Items[0].ProductID)
	assert.Equal(t, 5, o.Items[0].Qty)
	assert.Equal(t, int64(4500), o.Items[0].UnitPriceCents)
	assert.Equal(t, int64(5*4500), o.TotalCents)
	assert.Equal(t, 5, store.stock(laptop.ID))
}

func TestPlaceOrder_InsufficientStock(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Monitor LG", "MON-LG-002", 1200, 4)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/orders", user,
		placeReq("", orders.LineItem{ProductID: p.ID, Qty: 5}))
	require.Equal(t, http.StatusConflict, code)

	var resp struct {
		Error     string `json:"error"`
		ProductID int64  `json:"product_id"`
		Available int    `json:"available"`
		Requested int    `json:"requested"`
	}
	require.NoError(t, json.Unmarshal(body, &resp))
	assert.Equal(t, "insufficient stock", resp.Error)
	assert.Equal(t, p.ID, resp.ProductID)
	assert.Equal(t, 4, resp.Available)
	assert.Equal(t, 5, resp.Requested)

	// nothing was reserved
	assert.Equal(t, 4, store.stock(p.ID))
}

func TestPlaceOrder_Validation(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)

	// only unselected rows -> empty order
	code, _ := doJSON(t, http.MethodPost, ts.URL+"/orders", user,
		placeReq("", orders.LineItem{ProductID: 0, Qty: 3}, orders.LineItem{ProductID: p.ID, Qty: 0}))
	assert.Equal(t, http.StatusBadRequest, code)

	// unknown product
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/orders", user,
		placeReq("", orders.LineItem{ProductID: 999, Qty: 1}))
	assert.Equal(t, http.StatusBadRequest, code)

	// no token
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/orders", "",
		placeReq("", orders.LineItem{ProductID: p.ID, Qty: 1}))
	assert.Equal(t, http.StatusUnauthorized, code)

	assert.Equal(t, 10, store.stock(p.ID))
}

func TestCancelOrder_RestoresStockOnce(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)
	admin := signToken(t, "root", true)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/orders", user,
		placeReq("pilne", orders.LineItem{ProductID: p.ID, Qty: 5}))
	require.Equal(t, http.StatusCreated, code)
	var o orders.Order
	require.NoError(t, json.Unmarshal(body, &o))
	require.Equal(t, 5, store.stock(p.ID))

	cancelURL := fmt.Sprintf("%s/orders/%d/cancel", ts.URL, o.ID)

	// non-admin may not cancel
	code, _ = doJSON(t, http.MethodPost, cancelURL, user, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, body = doJSON(t, http.MethodPost, cancelURL, admin, nil)
	require.Equal(t, http.StatusOK, code, string(body))
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, orders.StatusCancelled, o.Status)
	assert.Equal(t, 10, store.stock(p.ID))

	// a second cancel is rejected and must not restore stock again
	code, _ = doJSON(t, http.MethodPost, cancelURL, admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 10, store.stock(p.ID))
}

func TestCompleteOrder_Transitions(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)
	admin := signToken(t, "root", true)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/orders", user,
		placeReq("", orders.LineItem{ProductID: p.ID, Qty: 2}))
	require.Equal(t, http.StatusCreated, code)
	var o orders.Order
	require.NoError(t, json.Unmarshal(body, &o))

	completeURL := fmt.Sprintf("%s/orders/%d/complete", ts.URL, o.ID)
	code, body = doJSON(t, http.MethodPost, completeURL, admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &o))
	assert.Equal(t, orders.StatusCompleted, o.Status)
	// completion moves no stock
	assert.Equal(t, 8, store.stock(p.ID))

	// terminal: neither complete nor cancel may run again
	code, _ = doJSON(t, http.MethodPost, completeURL, admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	code, _ = doJSON(t, http.MethodPost, fmt.Sprintf("%s/orders/%d/cancel", ts.URL, o.ID), admin, nil)
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, 8, store.stock(p.ID))

	// unknown order
	code, _ = doJSON(t, http.MethodPost, ts.URL+"/orders/999/complete", admin, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestGetOrder_Visibility(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	ts := newTestServer(t, store)
	alice := signToken(t, "alice", false)
	bob := signToken(t, "bob", false)
	admin := signToken(t, "root", true)

	code, body := doJSON(t, http.MethodPost, ts.URL+"/orders", alice,
		placeReq("", orders.LineItem{ProductID: p.ID, Qty: 1}))
	require.Equal(t, http.StatusCreated, code)
	var o orders.Order
	require.NoError(t, json.Unmarshal(body, &o))

	url := fmt.Sprintf("%s/orders/%d", ts.URL, o.ID)

	code, _ = doJSON(t, http.MethodGet, url, alice, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, http.MethodGet, url, bob, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = doJSON(t, http.MethodGet, url, admin, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = doJSON(t, http.MethodGet, ts.URL+"/orders/12345", alice, nil)
	assert.Equal(t, http.StatusNotFound, code)
}

func TestListOrders_Scoping(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 10)
	ts := newTestServer(t, store)
	alice := signToken(t, "alice", false)
	bob := signToken(t, "bob", false)
	admin := signToken(t, "root", true)

	for _, tok := range []string{alice, alice, bob} {
		code, _ := doJSON(t, http.MethodPost, ts.URL+"/orders", tok,
			placeReq("", orders.LineItem{ProductID: p.ID, Qty: 1}))
		require.Equal(t, http.StatusCreated, code)
	}

	var list []orders.Order
	code, body := doJSON(t, http.MethodGet, ts.URL+"/orders", alice, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 2)
	for _, o := range list {
		assert.Equal(t, "alice", o.UserID)
	}

	code, body = doJSON(t, http.MethodGet, ts.URL+"/orders", admin, nil)
	require.Equal(t, http.StatusOK, code)
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 3)
	// newest first
	for i := 1; i < len(list); i++ {
		assert.Greater(t, list[i-1].ID, list[i].ID)
	}
}

// Two concurrent placements of 3 units against a stock of 5: exactly one
// may win, and the loser must see the insufficient-stock outcome.
func TestPlaceOrder_ConcurrentOversell(t *testing.T) {
	store := newMemStore()
	p := store.addProduct("Laptop Dell", "LAP-DELL-001", 4500, 5)
	ts := newTestServer(t, store)
	user := signToken(t, "alice", false)

	codes := make([]int, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			codes[i], _ = doJSON(t, http.MethodPost, ts.URL+"/orders", user,
				placeReq("", orders.LineItem{ProductID: p.ID, Qty: 3}))
		}(i)
	}
	wg.Wait()

	wins, losses := 0, 0
	for _, c := range codes {
		switch c {
		case http.StatusCreated:
			wins++
		case http.StatusConflict:
			losses++
		}
	}
	assert.Equal(t, 1, wins)
	assert.Equal(t, 1, losses)
	assert.Equal(t, 2, store.stock(p.ID))
}
