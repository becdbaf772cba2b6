package httpx_test

import (
	"context"
	"sort"
	"sync"
	"time"

	"warehouse-service/internal/orders"
)

// memStore implements OrderStore and ProductStore with the same semantics
// the pgx repos have, guarded by one mutex instead of row locks. Handler
// tests run against it without a database.
type memStore struct {
	mu       sync.Mutex
	products map[int64]*orders.Product
	orders   map[int64]*orders.Order
	nextPID  int64
	nextOID  int64
	nextIID  int64
}

func newMemStore() *memStore {
	return &memStore{
		products: map[int64]*orders.Product{},
		orders:   map[int64]*orders.Order{},
	}
}

func (s *memStore) addProduct(name, sku string, priceCents int64, stock int) *orders.Product {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	p := &orders.Product{
		ID: s.nextPID, Name: name, SKU: sku,
		PriceCents: priceCents, QuantityInStock: stock,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	s.products[p.ID] = p
	return p
}

func (s *memStore) stock(id int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.products[id].QuantityInStock
}

func (s *memStore) PlaceOrder(_ context.Context, userID, notes string, items []orders.LineItem) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(items) == 0 {
		return nil, &orders.ValidationError{Field: "items", Reason: "order has no items"}
	}
	for _, it := range items {
		p, ok := s.products[it.ProductID]
		if !ok {
			return nil, &orders.ValidationError{Field: "product_id", Reason: "product does not exist"}
		}
		if p.QuantityInStock < it.Qty {
			return nil, &orders.InsufficientStockError{ProductID: it.ProductID, Available: p.QuantityInStock, Requested: it.Qty}
		}
	}

	s.nextOID++
	now := time.Now().UTC()
	o := &orders.Order{
		ID: s.nextOID, UserID: userID, Status: orders.StatusNew,
		Notes: notes, CreatedAt: now, UpdatedAt: now,
	}
	for _, it := range items {
		p := s.products[it.ProductID]
		p.QuantityInStock -= it.Qty
		s.nextIID++
		o.Items = append(o.Items, orders.OrderItem{
			ID: s.nextIID, OrderID: o.ID, ProductID: it.ProductID,
			Qty: it.Qty, UnitPriceCents: p.PriceCents,
			ProductName: p.Name, ProductSKU: p.SKU,
		})
		o.TotalCents += p.PriceCents * int64(it.Qty)
	}
	s.orders[o.ID] = o
	return copyOrder(o), nil
}

func (s *memStore) transition(orderID int64, to orders.Status, restock bool) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	o, ok := s.orders[orderID]
	if !ok {
		return nil, &orders.NotFoundError{Entity: "order", ID: orderID}
	}
	if !orders.CanTransition(o.Status, to) {
		return nil, &orders.InvalidTransitionError{OrderID: orderID, Current: o.Status, Attempted: to}
	}
	if restock {
		for _, it := range o.Items {
			s.products[it.ProductID].QuantityInStock += it.Qty
		}
	}
	o.Status = to
	o.UpdatedAt = time.Now().UTC()
	return copyOrder(o), nil
}

func (s *memStore) CancelOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	return s.transition(orderID, orders.StatusCancelled, true)
}

func (s *memStore) CompleteOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	return s.transition(orderID, orders.StatusCompleted, false)
}

func (s *memStore) GetOrder(_ context.Context, orderID int64) (*orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return nil, &orders.NotFoundError{Entity: "order", ID: orderID}
	}
	return copyOrder(o), nil
}

func (s *memStore) ListOrders(_ context.Context, userID string, all bool) ([]orders.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Order
	for _, o := range s.orders {
		if all || o.UserID == userID {
			out = append(out, *copyOrder(o))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (s *memStore) GetProduct(_ context.Context, id int64) (*orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, &orders.NotFoundError{Entity: "product", ID: id}
	}
	cp := *p
	return &cp, nil
}

func (s *memStore) ListProducts(_ context.Context) ([]orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []orders.Product
	for _, p := range s.products {
		out = append(out, *p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s *memStore) CreateProduct(_ context.Context, p *orders.Product) error {
	if err := orders.ValidateProduct(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextPID++
	p.ID = s.nextPID
	p.CreatedAt = time.Now().UTC()
	p.UpdatedAt = p.CreatedAt
	cp := *p
	s.products[p.ID] = &cp
	return nil
}

func (s *memStore) UpdateProduct(_ context.Context, p *orders.Product) error {
	if err := orders.ValidateProduct(p); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.products[p.ID]
	if !ok {
		return &orders.NotFoundError{Entity: "product", ID: p.ID}
	}
	cur.Name, cur.SKU, cur.PriceCents = p.Name, p.SKU, p.PriceCents
	cur.UpdatedAt = time.Now().UTC()
	return nil
}

func (s *memStore) DeleteProduct(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.products[id]; !ok {
		return &orders.NotFoundError{Entity: "product", ID: id}
	}
	delete(s.products, id)
	return nil
}

func (s *memStore) AdjustStock(_ context.Context, id int64, delta int) (*orders.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.products[id]
	if !ok {
		return nil, &orders.NotFoundError{Entity: "product", ID: id}
	}
	if p.QuantityInStock+delta < 0 {
		return nil, &orders.InsufficientStockError{ProductID: id, Available: p.QuantityInStock, Requested: -delta}
	}
	p.QuantityInStock += delta
	p.UpdatedAt = time.Now().UTC()
	cp := *p
	return &cp, nil
}

func copyOrder(o *orders.Order) *orders.Order {
	cp := *o
	cp.Items = append([]orders.OrderItem(nil), o.Items...)
	return &cp
}
