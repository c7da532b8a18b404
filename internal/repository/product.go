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

type ProductRepository struct {
	pool *pgxpool.Pool
}

func NewProductRepository(pool *pgxpool.Pool) *ProductRepository {
	return &ProductRepository{pool: pool}
}

func (r *ProductRepository) Create(ctx context.Context, p *model.Product) error {
	defer logger.DeferLogDuration("product.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO products (id, vendor_id, category_id, name, description, price_cents, currency, image_url, in_stock, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		p.ID, p.VendorID, p.CategoryID, p.Name, p.Description, p.PriceCents, p.Currency, p.ImageURL, p.InStock, p.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("productRepo.Create: %w", err)
	}
	return nil
}

func (r *ProductRepository) GetByID(ctx context.Context, id string) (*model.Product, error) {
	defer logger.DeferLogDuration("product.GetByID", time.Now())()
	p := &model.Product{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, vendor_id, category_id, name, description, price_cents, currency, image_url, in_stock, created_at
		 FROM products WHERE id = $1`, id,
	).Scan(&p.ID, &p.VendorID, &p.CategoryID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.ImageURL, &p.InStock, &p.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("productRepo.GetByID: %w", err)
	}
	return p, nil
}

// List returns products filtered by vendor and/or category.
func (r *ProductRepository) List(ctx context.Context, vendorID, categoryID string, limit, offset int) ([]model.Product, error) {
	defer logger.DeferLogDuration("product.List", time.Now())()
	sql := `SELECT id, vendor_id, category_id, name, description, price_cents, currency, image_url, in_stock, created_at
	        FROM products WHERE true`
	args := []any{}
	if vendorID != "" {
		args = append(args, vendorID)
		sql += fmt.Sprintf(` AND vendor_id = $%d`, len(args))
	}
	if categoryID != "" {
		args = append(args, categoryID)
		sql += fmt.Sprintf(` AND category_id = $%d`, len(args))
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("productRepo.List query: %w", err)
	}
	defer rows.Close()

	products := make([]model.Product, 0, limit)
	for rows.Next() {
		var p model.Product
		if err := rows.Scan(&p.ID, &p.VendorID, &p.CategoryID, &p.Name, &p.Description, &p.PriceCents, &p.Currency, &p.ImageURL, &p.InStock, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("productRepo.List scan: %w", err)
		}
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("productRepo.List rows: %w", err)
	}
	return products, nil
}

func (r *ProductRepository) Update(ctx context.Context, p *model.Product) error {
	defer logger.DeferLogDuration("product.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE products SET category_id = $1, name = $2, description = $3, price_cents = $4, currency = $5, image_url = $6, in_stock = $7
		 WHERE id = $8`,
		p.CategoryID, p.Name, p.Description, p.PriceCents, p.Currency, p.ImageURL, p.InStock, p.ID,
	)
	if err != nil {
		return fmt.Errorf("productRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ProductRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("product.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("productRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
