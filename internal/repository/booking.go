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

type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) Create(ctx context.Context, b *model.Booking) error {
	defer logger.DeferLogDuration("booking.Create", time.Now())()
	_, err := r.pool.Exec(ctx,
		`INSERT INTO bookings (id, service_id, buyer_id, status, scheduled_at, note, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		b.ID, b.ServiceID, b.BuyerID, b.Status, b.ScheduledAt, b.Note, b.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("bookingRepo.Create: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetByID(ctx context.Context, id string) (*model.Booking, error) {
	defer logger.DeferLogDuration("booking.GetByID", time.Now())()
	b := &model.Booking{}
	err := r.pool.QueryRow(ctx,
		`SELECT id, service_id, buyer_id, status, scheduled_at, note, created_at
		 FROM bookings WHERE id = $1`, id,
	).Scan(&b.ID, &b.ServiceID, &b.BuyerID, &b.Status, &b.ScheduledAt, &b.Note, &b.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("bookingRepo.GetByID: %w", err)
	}
	return b, nil
}

// List returns bookings for a buyer, a service owner's services, or all (admin).
func (r *BookingRepository) List(ctx context.Context, buyerID, vendorID string, limit, offset int) ([]model.Booking, error) {
	defer logger.DeferLogDuration("booking.List", time.Now())()
	sql := `SELECT b.id, b.service_id, b.buyer_id, b.status, b.scheduled_at, b.note, b.created_at
	        FROM bookings b`
	args := []any{}
	if vendorID != "" {
		args = append(args, vendorID)
		sql += fmt.Sprintf(` JOIN services s ON s.id = b.service_id AND s.vendor_id = $%d`, len(args))
	}
	sql += ` WHERE true`
	if buyerID != "" {
		args = append(args, buyerID)
		sql += fmt.Sprintf(` AND b.buyer_id = $%d`, len(args))
	}
	args = append(args, limit, offset)
	sql += fmt.Sprintf(` ORDER BY b.created_at DESC LIMIT $%d OFFSET $%d`, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, fmt.Errorf("bookingRepo.List query: %w", err)
	}
	defer rows.Close()

	bookings := make([]model.Booking, 0, limit)
	for rows.Next() {
		var b model.Booking
		if err := rows.Scan(&b.ID, &b.ServiceID, &b.BuyerID, &b.Status, &b.ScheduledAt, &b.Note, &b.CreatedAt); err != nil {
			return nil, fmt.Errorf("bookingRepo.List scan: %w", err)
		}
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("bookingRepo.List rows: %w", err)
	}
	return bookings, nil
}

func (r *BookingRepository) Update(ctx context.Context, b *model.Booking) error {
	defer logger.DeferLogDuration("booking.Update", time.Now())()
	tag, err := r.pool.Exec(ctx,
		`UPDATE bookings SET status = $1, scheduled_at = $2, note = $3 WHERE id = $4`,
		b.Status, b.ScheduledAt, b.Note, b.ID,
	)
	if err != nil {
		return fmt.Errorf("bookingRepo.Update: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *BookingRepository) Delete(ctx context.Context, id string) error {
	defer logger.DeferLogDuration("booking.Delete", time.Now())()
	tag, err := r.pool.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("bookingRepo.Delete: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}
