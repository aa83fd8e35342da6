package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

// groupColumns whitelists the columns analytics may group by.
var groupColumns = map[string]string{
	"work_type": "work_type",
	"status":    "status",
	"block":     "block",
}

// AnalyticsRepository runs the aggregate queries behind request analytics.
type AnalyticsRepository struct {
	db *sqlx.DB
}

// NewAnalyticsRepository constructs the repository.
func NewAnalyticsRepository(db *sqlx.DB) *AnalyticsRepository {
	return &AnalyticsRepository{db: db}
}

// Snapshot runs every aggregate inside one read-only repeatable-read
// transaction so the groupings agree with the total.
func (r *AnalyticsRepository) Snapshot(ctx context.Context, since time.Time, requesterID string) (*models.AnalyticsCounts, error) {
	tx, err := r.db.BeginTxx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin analytics snapshot: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	counts := &models.AnalyticsCounts{}
	if counts.Total, err = total(ctx, tx, requesterID); err != nil {
		return nil, err
	}
	if counts.ByType, err = countBy(ctx, tx, "work_type", requesterID); err != nil {
		return nil, err
	}
	if counts.ByStatus, err = countBy(ctx, tx, "status", requesterID); err != nil {
		return nil, err
	}
	if counts.ByBlock, err = countBy(ctx, tx, "block", requesterID); err != nil {
		return nil, err
	}
	if counts.ByMonth, err = countByMonth(ctx, tx, since, requesterID); err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit analytics snapshot: %w", err)
	}
	return counts, nil
}

func total(ctx context.Context, q sqlx.QueryerContext, requesterID string) (int, error) {
	query := "SELECT COUNT(*) FROM maintenance_requests"
	args := []interface{}{}
	if requesterID != "" {
		query += " WHERE requester_id = $1"
		args = append(args, requesterID)
	}
	var n int
	if err := sqlx.GetContext(ctx, q, &n, query, args...); err != nil {
		return 0, fmt.Errorf("count requests: %w", err)
	}
	return n, nil
}

// countBy groups requests by one of work_type, status or block.
func countBy(ctx context.Context, q sqlx.QueryerContext, column, requesterID string) ([]models.GroupCount, error) {
	col, ok := groupColumns[column]
	if !ok {
		return nil, fmt.Errorf("unsupported group column %q", column)
	}
	query := fmt.Sprintf("SELECT %s AS key, COUNT(*) AS count FROM maintenance_requests", col)
	args := []interface{}{}
	if requesterID != "" {
		query += " WHERE requester_id = $1"
		args = append(args, requesterID)
	}
	query += fmt.Sprintf(" GROUP BY %s", col)

	rows := make([]models.GroupCount, 0)
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count requests by %s: %w", col, err)
	}
	return rows, nil
}

// countByMonth groups requests created at or after since by UTC calendar month.
func countByMonth(ctx context.Context, q sqlx.QueryerContext, since time.Time, requesterID string) ([]models.MonthCount, error) {
	query := `SELECT date_trunc('month', created_at AT TIME ZONE 'UTC') AS month, COUNT(*) AS count
	FROM maintenance_requests WHERE created_at >= $1`
	args := []interface{}{since}
	if requesterID != "" {
		query += " AND requester_id = $2"
		args = append(args, requesterID)
	}
	query += " GROUP BY 1"

	rows := make([]models.MonthCount, 0)
	if err := sqlx.SelectContext(ctx, q, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("count requests by month: %w", err)
	}
	return rows, nil
}
