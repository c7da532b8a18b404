package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markethub/internal/logger"
	"github.com/markethub/internal/model"
)

type OrderRepository struct {
	pool *pgxpool.Pool
}

func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

func (r *OrderRepository) Create(ctx context.Context, o *model.Order) error {
	defer logger.DeferLogDuration("order.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO orders (id, product_id, buyer_id, quantity, total_cents, currency, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		o.ID, o.ProductID, o.BuyerID, o.Quantity, o.TotalCents, o.Currency, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("orderRepo.Create: %w", err)
	}
	return nil
}

func (r *OrderRepository) GetByID(ctx context.Context, id string) (*model.Order, error) {
	defer logger.DeferLogDuration("order.GetByID", time.Now())()
	o := &model.Order{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, product_id, buyer_id, quantity, total_cents, currency, status, created_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.Quantity, &o.TotalCents, &o.Currency, &o.Status, &o.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("orderRepo.GetByID: %w", err)
	}
	return o, nil
}

func (r *OrderRepository) List(ctx context.Context, buyerID, vendorID string, limit, offset int) ([]model.Order, error) {
	defer logger.DeferLogDuration("order.List", time.Now())()
	sql := `SELECT o.id, o.product_id, o.buyer_id, o.quantity, o.total_cents, o.currency, o.status, o.created_at
	        FROM orders o`
	args := []any{}
	if vendorID != "" {
		args = append(args, vendorID)
		sql += fmt.Sprintf(` JOIN products p ON p.id = o.product_id AND p.vendor_id = $%d`, len(args))
	}
	sql += ` WHERE true`
	if buyerID != "" {
		args = append(args, buyerID)
		sql += fmt.Sprintf(` AND o.buyer_id = $%d`, len(args))
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY o.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("orderRepo.List query: %w", err)
	}
	defer rows.Close()

	orders := make([]model.Order, 0, limit)
	for rows.Next() {
		var o model.Order
		if err := rows.Scan(&o.ID, &o.ProductID, &o.BuyerID, &o.Quantity, &o.TotalCents, &o.Currency, &o.Status, &o.CreatedAt); err != nil {
			return nil, fmt.Errorf("orderRepo.List scan: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("orderRepo.List rows: %w", err)
	}
	return orders, nil
}

func (r *OrderRepository) Update(ctx context.Context, o *model.Order) error {
	defer logger.DeferLogDuration("order.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE orders SET quantity = $1, total_cents = $2, currency = $3, status = $4 WHERE id = $5`,
		o.Quantity, o.TotalCents, o.Currency, o.Status, o.ID,
	)
	if err != nil {
		return fmt.Errorf("orderRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("order.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("orderRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
