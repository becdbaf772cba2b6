package orders

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"
)

// ProductRepo owns the catalog side: reads for everyone, mutations for
// administrators. Stock moves tied to an order go through Repo instead.
type ProductRepo struct {
	DB  *pgxpool.Pool
	Log zerolog.Logger
}

func (r *ProductRepo) persistence(op string, err error) error {
	r.Log.Error().Err(err).Str("op", op).Msg("storage failure")
	return &PersistenceError{Op: op}
}

func (r *ProductRepo) GetProduct(ctx context.Context, id int64) (*Product, error) {
	p := &Product{ID: id}
	err := r.DB.QueryRow(ctx, `
		SELECT name, sku, price_cents, quantity_in_stock, created_at, updated_at
		FROM products WHERE id=$1`, id).
		Scan(&p.Name, &p.SKU, &p.PriceCents, &p.QuantityInStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, r.persistence("product lookup", err)
	}
	return p, nil
}

func (r *ProductRepo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, name, sku, price_cents, quantity_in_stock, created_at, updated_at
		FROM products ORDER BY name`)
	if err != nil {
		return nil, r.persistence("product listing", err)
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.Name, &p.SKU, &p.PriceCents, &p.QuantityInStock, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, r.persistence("product listing", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *ProductRepo) CreateProduct(ctx context.Context, p *Product) error {
	if err := ValidateProduct(p); err != nil {
		return err
	}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(name, sku, price_cents, quantity_in_stock)
		VALUES ($1,$2,$3,$4) RETURNING id, created_at, updated_at`,
		p.Name, p.SKU, p.PriceCents, p.QuantityInStock).
		Scan(&p.ID, &p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return r.persistence("product create", err)
	}
	return nil
}

// UpdateProduct replaces name, sku and price. created_at is immutable and
// stock changes go through AdjustStock so the ledger invariant is enforced
// in one place.
func (r *ProductRepo) UpdateProduct(ctx context.Context, p *Product) error {
	if err := ValidateProduct(p); err != nil {
		return err
	}
	ct, err := r.DB.Exec(ctx, `
		UPDATE products SET name=$2, sku=$3, price_cents=$4, updated_at=now()
		WHERE id=$1`, p.ID, p.Name, p.SKU, p.PriceCents)
	if err != nil {
		return r.persistence("product update", err)
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Entity: "product", ID: p.ID}
	}
	return nil
}

func (r *ProductRepo) DeleteProduct(ctx context.Context, id int64) error {
	ct, err := r.DB.Exec(ctx, `DELETE FROM products WHERE id=$1`, id)
	if err != nil {
		return r.persistence("product delete", err)
	}
	if ct.RowsAffected() == 0 {
		return &NotFoundError{Entity: "product", ID: id}
	}
	return nil
}

// AdjustStock applies a signed delta to a product's stock under a row lock.
// A delta that would drive stock negative is rejected with the same
// insufficient-stock shape the placement path uses.
func (r *ProductRepo) AdjustStock(ctx context.Context, id int64, delta int) (*Product, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, r.persistence("stock adjustment", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	p := &Product{ID: id}
	err = tx.QueryRow(ctx, `
		SELECT name, sku, price_cents, quantity_in_stock, created_at, updated_at
		FROM products WHERE id=$1 FOR UPDATE`, id).
		Scan(&p.Name, &p.SKU, &p.PriceCents, &p.QuantityInStock, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, &NotFoundError{Entity: "product", ID: id}
	}
	if err != nil {
		return nil, r.persistence("stock adjustment", err)
	}

	if p.QuantityInStock+delta < 0 {
		return nil, &InsufficientStockError{ProductID: id, Available: p.QuantityInStock, Requested: -delta}
	}

	if _, err := tx.Exec(ctx, `
		UPDATE products SET quantity_in_stock = quantity_in_stock + $2, updated_at = now()
		WHERE id=$1`, id, delta); err != nil {
		return nil, r.persistence("stock adjustment", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, r.persistence("stock adjustment", err)
	}
	p.QuantityInStock += delta
	return p, nil
}
