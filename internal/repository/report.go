package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/markethub/internal/logger"
)

type ReportRepository struct {
	pool *pgxpool.Pool
}

func NewReportRepository(pool *pgxpool.Pool) *ReportRepository {
	return &ReportRepository{pool: pool}
}

// SummaryReport contains aggregated marketplace metrics for the admin dashboard.
type SummaryReport struct {
	Users         int   `json:"users"`
	Companies     int   `json:"companies"`
	Products      int   `json:"products"`
	Services      int   `json:"services"`
	Bookings      int   `json:"bookings"`
	Orders        int   `json:"orders"`
	OrderRevenue  int64 `json:"order_revenue_cents"`
	MessagesToday int   `json:"messages_today"`
	MessagesWeek  int   `json:"messages_week"`
}

// Summary calculates the admin summary report.
func (r *ReportRepository) Summary(ctx context.Context) (*SummaryReport, error) {
	defer logger.DeferLogDuration("report.Summary", time.Now())()
	s := &SummaryReport{}

	err := r.pool.QueryRow(ctx,
		`SELECT
		   (SELECT COUNT(*) FROM users),
		   (SELECT COUNT(*) FROM companies),
		   (SELECT COUNT(*) FROM products),
		   (SELECT COUNT(*) FROM services),
		   (SELECT COUNT(*) FROM bookings),
		   (SELECT COUNT(*) FROM orders)`,
	).Scan(&s.Users, &s.Companies, &s.Products, &s.Services, &s.Bookings, &s.Orders)
	if err != nil {
		return nil, fmt.Errorf("reportRepo.Summary counts: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(total_cents), 0) FROM orders WHERE status NOT IN ('pending', 'cancelled')`,
	).Scan(&s.OrderRevenue)
	if err != nil {
		return nil, fmt.Errorf("reportRepo.Summary revenue: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT
		   COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE),
		   COUNT(*) FILTER (WHERE created_at >= CURRENT_DATE - INTERVAL '7 days')
		 FROM messages`,
	).Scan(&s.MessagesToday, &s.MessagesWeek)
	if err != nil {
		return nil, fmt.Errorf("reportRepo.Summary messages: %w", err)
	}

	return s, nil
}
