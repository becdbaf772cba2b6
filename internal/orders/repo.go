package orders

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

type Repo struct {
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

// persistence logs the underlying cause and returns the opaque error the
// caller sees. Storage details never cross this boundary.
func (r *Repo) persistence(op string, err error) error {
	r.Log.Error().Err(err).Str("op", op).Msg("storage failure")
	return &PersistenceError{Op: op}
}

// PlaceOrder runs the whole placement as one transaction: lock and check
// stock for every line, decrement, then insert the order with per-item
// price snapshots. Any failure rolls the lot back; stock is never left
// partially decremented and an order is never partially persisted.
//
// The FOR UPDATE locks are what keep two concurrent placements from both
// passing the availability check on the same product.
func (r *Repo) PlaceOrder(ctx context.Context, userID, notes string, items []LineItem) (*Order, error) {
	if userID == "" {
		return nil, &ValidationError{Field: "user_id", Reason: "required"}
	}
	if len(notes) > MaxNotesLen {
		return nil, &ValidationError{Field: "notes", Reason: "at most 200 characters"}
	}
	if len(items) == 0 {
		return nil, &ValidationError{Field: "items", Reason: "order has no items"}
	}

	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, r.persistence("order placement", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	type lockedProduct struct {
		priceCents int64
		stock      int
		name, sku  string
	}

	// Phase 1: lock every product row and check availability before any
	// decrement, so a shortfall on the last line leaves the first untouched.
	locked := make(map[int64]lockedProduct, len(items))
	for _, it := range items {
		var lp lockedProduct
		err := tx.QueryRow(ctx, `
			SELECT price_cents, quantity_in_stock, name, sku
			FROM products WHERE id=$1 FOR UPDATE`, it.ProductID).
			Scan(&lp.priceCents, &lp.stock, &lp.name, &lp.sku)
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &ValidationError{Field: "product_id", Reason: fmt.Sprintf("product %d does not exist", it.ProductID)}
		}
		if err != nil {
			return nil, r.persistence("order placement", err)
		}
		if lp.stock < it.Qty {
			return nil, &InsufficientStockError{ProductID: it.ProductID, Available: lp.stock, Requested: it.Qty}
		}
		locked[it.ProductID] = lp
	}

	// Phase 2: reserve.
	for _, it := range items {
		ct, err := tx.Exec(ctx, `
			UPDATE products SET quantity_in_stock = quantity_in_stock - $2, updated_at = now()
			WHERE id=$1`, it.ProductID, it.Qty)
		if err != nil {
			return nil, r.persistence("order placement", err)
		}
		if ct.RowsAffected() != 1 {
			return nil, r.persistence("order placement", fmt.Errorf("product %d: reserve affected %d rows", it.ProductID, ct.RowsAffected()))
		}
	}

	var total int64
	for _, it := range items {
		total += locked[it.ProductID].priceCents * int64(it.Qty)
	}

	now := time.Now().UTC()
	o := &Order{
		UserID:     userID,
		Status:     StatusNew,
		Notes:      notes,
		TotalCents: total,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO orders(user_id, status, notes, total_cents, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$5) RETURNING id`,
		userID, o.Status, notes, total, now).Scan(&o.ID)
	if err != nil {
		return nil, r.persistence("order placement", err)
	}

	for _, it := range items {
		lp := locked[it.ProductID]
		item := OrderItem{
			OrderID:        o.ID,
			ProductID:      it.ProductID,
			Qty:            it.Qty,
			UnitPriceCents: lp.priceCents,
			ProductName:    lp.name,
			ProductSKU:     lp.sku,
		}
		err = tx.QueryRow(ctx, `
			INSERT INTO order_items(order_id, product_id, quantity, unit_price_cents)
			VALUES ($1,$2,$3,$4) RETURNING id`,
			o.ID, it.ProductID, it.Qty, lp.priceCents).Scan(&item.ID)
		if err != nil {
			return nil, r.persistence("order placement", err)
		}
		o.Items = append(o.Items, item)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, r.persistence("order placement", err)
	}
	return o, nil
}

// CancelOrder is allowed only from NEW. It returns every item's quantity to
// stock and marks the order CANCELLED, all in one transaction. A second
// cancel hits the terminal-state guard, so stock is never restored twice.
func (r *Repo) CancelOrder(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, r.persistence("order cancellation", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.lockOrder(ctx, tx, orderID, StatusCancelled)
	if err != nil {
		return nil, err
	}

	for _, it := range o.Items {
		if _, err := tx.Exec(ctx, `
			UPDATE products SET quantity_in_stock = quantity_in_stock + $2, updated_at = now()
			WHERE id=$1`, it.ProductID, it.Qty); err != nil {
			return nil, r.persistence("order cancellation", err)
		}
	}
	if err := r.setStatus(ctx, tx, o, StatusCancelled); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, r.persistence("order cancellation", err)
	}
	return o, nil
}

// CompleteOrder is allowed only from NEW. No stock moves; the goods were
// already deducted at placement time.
func (r *Repo) CompleteOrder(ctx context.Context, orderID int64) (*Order, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, r.persistence("order completion", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	o, err := r.lockOrder(ctx, tx, orderID, StatusCompleted)
	if err != nil {
		return nil, err
	}
	if err := r.setStatus(ctx, tx, o, StatusCompleted); err != nil {
		return nil, err
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, r.persistence("order completion", err)
	}
	return o, nil
}

// lockOrder fetches the order row FOR UPDATE, loads its items and enforces
// the transition guard for the attempted target status.
func (r *Repo) lockOrder(ctx context.Context, tx pgx.Tx, orderID int64, attempted Status) (*Order, error) {
	o := &Order{ID: orderID}
	err := tx.QueryRow(ctx, `
		SELECT user_id, status, notes, total_cents, created_at, updated_at
		FROM orders WHERE id=$1 FOR UPDATE`, orderID).
		Scan(&o.UserID, &o.Status, &o.Notes, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, r.persistence("order lookup", err)
	}
	if !CanTransition(o.Status, attempted) {
		return nil, &InvalidTransitionError{OrderID: orderID, Current: o.Status, Attempted: attempted}
	}

	rows, err := tx.Query(ctx, `
		SELECT id, product_id, quantity, unit_price_cents
		FROM order_items WHERE order_id=$1 ORDER BY id`, orderID)
	if err != nil {
		return nil, r.persistence("order lookup", err)
	}
	defer rows.Close()
	for rows.Next() {
		it := OrderItem{OrderID: orderID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Qty, &it.UnitPriceCents); err != nil {
			return nil, r.persistence("order lookup", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, r.persistence("order lookup", err)
	}
	return o, nil
}

func (r *Repo) setStatus(ctx context.Context, tx pgx.Tx, o *Order, to Status) error {
	if _, err := tx.Exec(ctx, `
		UPDATE orders SET status=$2, updated_at=now() WHERE id=$1`, o.ID, to); err != nil {
		return r.persistence("order update", err)
	}
	o.Status = to
	return nil
}

// GetOrder loads one order with its items, product names and SKUs included
// for display.
func (r *Repo) GetOrder(ctx context.Context, orderID int64) (*Order, error) {
	o := &Order{ID: orderID}
	err := r.DB.QueryRow(ctx, `
		SELECT user_id, status, notes, total_cents, created_at, updated_at
		FROM orders WHERE id=$1`, orderID).
		Scan(&o.UserID, &o.Status, &o.Notes, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "order", ID: orderID}
	}
	if err != nil {
		return nil, r.persistence("order lookup", err)
	}

	rows, err := r.DB.Query(ctx, `
		SELECT i.id, i.product_id, i.quantity, i.unit_price_cents, p.name, p.sku
		FROM order_items i JOIN products p ON p.id = i.product_id
		WHERE i.order_id=$1 ORDER BY i.id`, orderID)
	if err != nil {
		return nil, r.persistence("order lookup", err)
	}
	defer rows.Close()
	for rows.Next() {
		it := OrderItem{OrderID: orderID}
		if err := rows.Scan(&it.ID, &it.ProductID, &it.Qty, &it.UnitPriceCents, &it.ProductName, &it.ProductSKU); err != nil {
			return nil, r.persistence("order lookup", err)
		}
		o.Items = append(o.Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, r.persistence("order lookup", err)
	}
	return o, nil
}

// ListOrders returns orders newest first. With all=false the result is
// scoped to the given user; admins pass all=true.
func (r *Repo) ListOrders(ctx context.Context, userID string, all bool) ([]Order, error) {
	q := `
		SELECT o.id, o.user_id, o.status, o.notes, o.total_cents, o.created_at, o.updated_at,
		       i.id, i.product_id, i.quantity, i.unit_price_cents, p.name, p.sku
		FROM orders o
		JOIN order_items i ON i.order_id = o.id
		JOIN products p ON p.id = i.product_id`
	args := []any{}
	if !all {
		q += ` WHERE o.user_id = $1`
		args = append(args, userID)
	}
	q += ` ORDER BY o.id DESC, i.id ASC`

	rows, err := r.DB.Query(ctx, q, args...)
	if err != nil {
		return nil, r.persistence("order listing", err)
	}
	defer rows.Close()

	var out []Order
	byID := map[int64]int{}
	for rows.Next() {
		var o Order
		var it OrderItem
		if err := rows.Scan(&o.ID, &o.UserID, &o.Status, &o.Notes, &o.TotalCents, &o.CreatedAt, &o.UpdatedAt,
			&it.ID, &it.ProductID, &it.Qty, &it.UnitPriceCents, &it.ProductName, &it.ProductSKU); err != nil {
			return nil, r.persistence("order listing", err)
		}
		it.OrderID = o.ID
		i, seen := byID[o.ID]
		if !seen {
			i = len(out)
			byID[o.ID] = i
			out = append(out, o)
		}
		out[i].Items = append(out[i].Items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, r.persistence("order listing", err)
	}
	return out, nil
}
