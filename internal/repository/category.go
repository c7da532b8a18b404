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

type CategoryRepository struct {
	pool *pgxpool.Pool
}

func NewCategoryRepository(pool *pgxpool.Pool) *CategoryRepository {
	return &CategoryRepository{pool: pool}
}

func (r *CategoryRepository) Create(ctx context.Context, c *model.Category) error {
	defer logger.DeferLogDuration("category.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO categories (id, name, slug, image_url, created_at)
		 VALUES ($1, $2, $3, $4, $5)`,
		c.ID, c.Name, c.Slug, c.ImageURL, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("categoryRepo.Create: %w", err)
	}
	return nil
}

func (r *CategoryRepository) GetByID(ctx context.Context, id string) (*model.Category, error) {
	defer logger.DeferLogDuration("category.GetByID", time.Now())()
	c := &model.Category{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, name, slug, image_url, created_at FROM categories WHERE id = $1`, id,
	).Scan(&c.ID, &c.Name, &c.Slug, &c.ImageURL, &c.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("categoryRepo.GetByID: %w", err)
	}
	return c, nil
}

func (r *CategoryRepository) List(ctx context.Context) ([]model.Category, error) {
	defer logger.DeferLogDuration("category.List", time.Now())()
	rows, err := r.pool.Query(ctx,
		`SELECT id, name, slug, image_url, created_at FROM categories ORDER BY name`,
	)
	if err != nil {
		return nil, fmt.Errorf("categoryRepo.List query: %w", err)
	}
	defer rows.Close()

	categories := make([]model.Category, 0, 16)
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("categoryRepo.List scan: %w", err)
		}
		categories = append(categories, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("categoryRepo.List rows: %w", err)
	}
	return categories, nil
}

// Update replaces the record wholesale (no partial merge).
func (r *CategoryRepository) Update(ctx context.Context, c *model.Category) error {
	defer logger.DeferLogDuration("category.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE categories SET name = $1, slug = $2, image_url = $3 WHERE id = $4`,
		c.Name, c.Slug, c.ImageURL, c.ID,
	)
	if err != nil {
		return fmt.Errorf("categoryRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *CategoryRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("category.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM categories WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("categoryRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
