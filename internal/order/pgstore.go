package order

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/noah-isme/digital-store/internal/pricing"
)

// PGStore persists orders in PostgreSQL. Items and the pricing breakdown are kept as JSONB.
type PGStore struct {
	Pool *pgxpool.Pool
}

const orderColumns = `id::text, customer_id, customer_name, customer_email, items, totals, total::text,
	status, payment_method, installments, coupon_code, shipping_address, created_at, updated_at`

// Create inserts a validated order.
func (s PGStore) Create(ctx context.Context, o Order) (Order, error) {
	if s.Pool == nil {
		return Order{}, errors.New("order: database pool not configured")
	}
	if err := o.Validate(); err != nil {
		return Order{}, err
	}
	items, err := json.Marshal(o.Items)
	if err != nil {
		return Order{}, fmt.Errorf("encode items: %w", err)
	}
	totals, err := json.Marshal(o.Totals)
	if err != nil {
		return Order{}, fmt.Errorf("encode totals: %w", err)
	}
	row := s.Pool.QueryRow(ctx, `
		INSERT INTO orders (id, customer_id, customer_name, customer_email, items, totals, total,
			status, payment_method, installments, coupon_code, shipping_address, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7::numeric, $8, $9, $10, $11, $12, $13, $14)
		RETURNING `+orderColumns,
		o.ID, o.CustomerID, o.CustomerName, o.CustomerEmail, items, totals, o.Total.StringFixed(2),
		string(o.Status), string(o.PaymentMethod), o.Installments, o.CouponCode, o.ShippingAddress,
		o.CreatedAt, o.UpdatedAt,
	)
	created, err := scanOrder(row)
	if err != nil {
		return Order{}, fmt.Errorf("insert order: %w", err)
	}
	return created, nil
}

// Get returns a single order.
func (s PGStore) Get(ctx context.Context, id string) (Order, error) {
	o, err := scanOrder(s.Pool.QueryRow(ctx, `SELECT `+orderColumns+` FROM orders WHERE id::text = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	return o, err
}

// ListByCustomer returns a customer's orders, newest first.
func (s PGStore) ListByCustomer(ctx context.Context, customerID string) ([]Order, error) {
	rows, err := s.Pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE customer_id = $1 ORDER BY created_at DESC, id DESC`, customerID)
	if err != nil {
		return nil, err
	}
	return collectOrders(rows)
}

// List returns a page of orders, newest first, and the total matching the filter.
func (s PGStore) List(ctx context.Context, filter ListFilter) ([]Order, int, error) {
	filter = filter.normalized()
	var total int
	if err := s.Pool.QueryRow(ctx, `SELECT count(*) FROM orders WHERE ($1 = '' OR status = $1)`, string(filter.Status)).Scan(&total); err != nil {
		return nil, 0, err
	}
	rows, err := s.Pool.Query(ctx, `SELECT `+orderColumns+` FROM orders WHERE ($1 = '' OR status = $1)
		ORDER BY created_at DESC, id DESC LIMIT $2 OFFSET $3`, string(filter.Status), filter.Limit, filter.offset())
	if err != nil {
		return nil, 0, err
	}
	orders, err := collectOrders(rows)
	return orders, total, err
}

// UpdateStatus applies a validated status transition under a row lock.
func (s PGStore) UpdateStatus(ctx context.Context, id string, status Status, at time.Time) (Order, error) {
	tx, err := s.Pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, err
	}
	defer func() {
		_ = tx.Rollback(ctx)
	}()
	var current string
	if err := tx.QueryRow(ctx, `SELECT status FROM orders WHERE id::text = $1 FOR UPDATE`, id).Scan(&current); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Order{}, ErrNotFound
		}
		return Order{}, err
	}
	if err := CanTransition(Status(current), status); err != nil {
		return Order{}, err
	}
	updated, err := scanOrder(tx.QueryRow(ctx, `UPDATE orders SET status = $2, updated_at = $3 WHERE id::text = $1 RETURNING `+orderColumns, id, string(status), at))
	if err != nil {
		return Order{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return Order{}, err
	}
	return updated, nil
}

func collectOrders(rows pgx.Rows) ([]Order, error) {
	defer rows.Close()
	out := make([]Order, 0)
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func scanOrder(row pgx.Row) (Order, error) {
	var (
		o             Order
		items, totals []byte
		total         string
		status        string
		method        string
	)
	if err := row.Scan(&o.ID, &o.CustomerID, &o.CustomerName, &o.CustomerEmail, &items, &totals, &total,
		&status, &method, &o.Installments, &o.CouponCode, &o.ShippingAddress, &o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, err
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return Order{}, fmt.Errorf("decode items: %w", err)
	}
	if err := json.Unmarshal(totals, &o.Totals); err != nil {
		return Order{}, fmt.Errorf("decode totals: %w", err)
	}
	amount, err := decimal.NewFromString(total)
	if err != nil {
		return Order{}, fmt.Errorf("decode total: %w", err)
	}
	o.Total = amount
	o.Status = Status(status)
	o.PaymentMethod = pricing.PaymentMethod(method)
	return o, nil
}
