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

type CompanyRepository struct {
	pool *pgxpool.Pool
}

func NewCompanyRepository(pool *pgxpool.Pool) *CompanyRepository {
	return &CompanyRepository{pool: pool}
}

func (r *CompanyRepository) Create(ctx context.Context, c *model.Company) error {
	defer logger.DeferLogDuration("company.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO companies (id, owner_id, name, category_id, about, logo_url, location, website, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		c.ID, c.OwnerID, c.Name, c.CategoryID, c.About, c.LogoURL, c.Location, c.Website, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("companyRepo.Create: %w", err)
	}
	return nil
}

func (r *CompanyRepository) GetByID(ctx context.Context, id string) (*model.Company, error) {
	defer logger.DeferLogDuration("company.GetByID", time.Now())()
	c := &model.Company{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, owner_id, name, category_id, about, logo_url, location, website, created_at
		 FROM companies WHERE id = $1`, id,
	).Scan(&c.ID, &c.OwnerID, &c.Name, &c.CategoryID, &c.About, &c.LogoURL, &c.Location, &c.Website, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("companyRepo.GetByID: %w", err)
	}
	return c, nil
}

// List returns companies, optionally filtered by category.
func (r *CompanyRepository) List(ctx context.Context, categoryID string, limit, offset int) ([]model.Company, error) {
	defer logger.DeferLogDuration("company.List", time.Now())()
	sql := `SELECT id, owner_id, name, category_id, about, logo_url, location, website, created_at
	        FROM companies`
	args := []any{}
	if categoryID != "" {
		sql += ` WHERE category_id = $1`
		args = append(args, categoryID)
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("companyRepo.List query: %w", err)
	}
	defer rows.Close()

	companies := make([]model.Company, 0, limit)
	for rows.Next() {
		var c model.Company
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.Name, &c.CategoryID, &c.About, &c.LogoURL, &c.Location, &c.Website, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("companyRepo.List scan: %w", err)
		}
		companies = append(companies, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("companyRepo.List rows: %w", err)
	}
	return companies, nil
}

func (r *CompanyRepository) Update(ctx context.Context, c *model.Company) error {
	defer logger.DeferLogDuration("company.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE companies SET name = $1, category_id = $2, about = $3, logo_url = $4, location = $5, website = $6
		 WHERE id = $7`,
		c.Name, c.CategoryID, c.About, c.LogoURL, c.Location, c.Website, c.ID,
	)
	if err != nil {
		return fmt.Errorf("companyRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CompanyRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("company.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM companies WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("companyRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
