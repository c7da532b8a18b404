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

type ServiceRepository struct {
	pool *pgxpool.Pool
}

func NewServiceRepository(pool *pgxpool.Pool) *ServiceRepository {
	return &ServiceRepository{pool: pool}
}

func (r *ServiceRepository) Create(ctx context.Context, s *model.Service) error {
	defer logger.DeferLogDuration("service.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO services (id, vendor_id, category_id, name, description, price_cents, currency, image_url, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		s.ID, s.VendorID, s.CategoryID, s.Name, s.Description, s.PriceCents, s.Currency, s.ImageURL, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("serviceRepo.Create: %w", err)
	}
	return nil
}

func (r *ServiceRepository) GetByID(ctx context.Context, id string) (*model.Service, error) {
	defer logger.DeferLogDuration("service.GetByID", time.Now())()
	s := &model.Service{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, vendor_id, category_id, name, description, price_cents, currency, image_url, created_at
		 FROM services WHERE id = $1`, id,
	).Scan(&s.ID, &s.VendorID, &s.CategoryID, &s.Name, &s.Description, &s.PriceCents, &s.Currency, &s.ImageURL, &s.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("serviceRepo.GetByID: %w", err)
	}
	return s, nil
}

func (r *ServiceRepository) List(ctx context.Context, vendorID, categoryID string, limit, offset int) ([]model.Service, error) {
	defer logger.DeferLogDuration("service.List", time.Now())()
	sql := `SELECT id, vendor_id, category_id, name, description, price_cents, currency, image_url, created_at
	        FROM services WHERE true`
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
		return nil, fmt.Errorf("serviceRepo.List query: %w", err)
	}
	defer rows.Close()

	services := make([]model.Service, 0, limit)
	for rows.Next() {
		var s model.Service
		if err := rows.Scan(&s.ID, &s.VendorID, &s.CategoryID, &s.Name, &s.Description, &s.PriceCents, &s.Currency, &s.ImageURL, &s.CreatedAt); err != nil {
			return nil, fmt.Errorf("serviceRepo.List scan: %w", err)
		}
		services = append(services, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("serviceRepo.List rows: %w", err)
	}
	return services, nil
}

func (r *ServiceRepository) Update(ctx context.Context, s *model.Service) error {
	defer logger.DeferLogDuration("service.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE services SET category_id = $1, name = $2, description = $3, price_cents = $4, currency = $5, image_url = $6
		 WHERE id = $7`,
		s.CategoryID, s.Name, s.Description, s.PriceCents, s.Currency, s.ImageURL, s.ID,
	)
	if err != nil {
		return fmt.Errorf("serviceRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *ServiceRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("service.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM services WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("serviceRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
