package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

const requestSelect = `SELECT r.id, r.request_number, r.requester_id, r.reg_no, r.name, r.block, r.room_number,
       r.work_type, r.request_category, r.description, r.proof_file_ref, r.proof_content_type, r.status,
       r.response_comments, r.handled_by, u.full_name AS handled_by_name, r.created_at, r.updated_at
	FROM maintenance_requests r
	LEFT JOIN users u ON u.id = r.handled_by`

// RequestRepository persists maintenance requests.
type RequestRepository struct {
	db *sqlx.DB
}

// NewRequestRepository constructs the repository.
func NewRequestRepository(db *sqlx.DB) *RequestRepository {
	return &RequestRepository{db: db}
}

// Create inserts a pending request. The request number is drawn from a
// sequence inside the same statement and written back to req.
func (r *RequestRepository) Create(ctx context.Context, req *models.MaintenanceRequest) error {
	if req.ID == "" {
		req.ID = uuid.NewString()
	}
	if req.Status == "" {
		req.Status = models.StatusPending
	}
	if req.CreatedAt.IsZero() {
		req.CreatedAt = time.Now().UTC()
	}
	req.UpdatedAt = req.CreatedAt

	const query = `WITH seq AS (SELECT nextval('maintenance_request_number_seq') AS n)
	INSERT INTO maintenance_requests
	(id, request_number, requester_id, reg_no, name, block, room_number, work_type, request_category,
	 description, proof_file_ref, proof_content_type, status, created_at, updated_at)
	SELECT $1, 'REQ-' || CASE WHEN seq.n < 10000 THEN LPAD(seq.n::text, 4, '0') ELSE seq.n::text END,
	       $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14
	FROM seq
	RETURNING request_number`
	err := r.db.QueryRowxContext(ctx, query,
		req.ID, req.RequesterID, req.RegNo, req.Name, req.Block, req.RoomNumber,
		req.WorkType, req.RequestCategory, req.Description, req.ProofFileRef, req.ProofContentType,
		req.Status, req.CreatedAt, req.UpdatedAt,
	).Scan(&req.RequestNumber)
	if err != nil {
		if dup, ok := asDuplicate(err); ok {
			return dup
		}
		return fmt.Errorf("create request: %w", err)
	}
	req.HasProof = req.ProofFileRef != nil
	return nil
}

// GetByID fetches a request with the handler's display name.
func (r *RequestRepository) GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	query := requestSelect + ` WHERE r.id = $1`
	var req models.MaintenanceRequest
	if err := r.db.GetContext(ctx, &req, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get request: %w", err)
	}
	req.HasProof = req.ProofFileRef != nil
	return &req, nil
}

// List returns one page of requests matching the filter, newest first, and the total match count.
func (r *RequestRepository) List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, int, error) {
	where, args := requestConditions(filter)

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("%s%s ORDER BY r.created_at DESC, r.id LIMIT %d OFFSET %d", requestSelect, where, pageSize, offset)
	var items []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &items, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list requests: %w", err)
	}
	markProofs(items)

	countQuery := "SELECT COUNT(*) FROM maintenance_requests r" + where
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count requests: %w", err)
	}
	return items, total, nil
}

// ListForReport returns every request matching the filter, newest first.
func (r *RequestRepository) ListForReport(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, error) {
	where, args := requestConditions(filter)
	query := requestSelect + where + " ORDER BY r.created_at DESC, r.id"
	var items []models.MaintenanceRequest
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list report requests: %w", err)
	}
	markProofs(items)
	return items, nil
}

// UpdateStatus applies the transition only while the row still holds the
// expected status. handled_by is kept from the first transition and
// updated_at never precedes created_at. Returns sql.ErrNoRows when the
// guard did not match.
func (r *RequestRepository) UpdateStatus(ctx context.Context, update models.StatusUpdate) (time.Time, error) {
	const query = `UPDATE maintenance_requests
	SET status = $1,
	    response_comments = $2,
	    handled_by = COALESCE(handled_by, $3),
	    updated_at = GREATEST($4, created_at)
	WHERE id = $5 AND status = $6
	RETURNING updated_at`
	var updatedAt time.Time
	err := r.db.QueryRowxContext(ctx, query,
		update.Target, update.Comments, update.HandledBy, update.UpdatedAt, update.ID, update.Expected,
	).Scan(&updatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, sql.ErrNoRows
		}
		return time.Time{}, fmt.Errorf("update request status: %w", err)
	}
	return updatedAt, nil
}

// ReferencedProofs reports which of the given object keys are attached to a request.
func (r *RequestRepository) ReferencedProofs(ctx context.Context, keys []string) (map[string]bool, error) {
	referenced := make(map[string]bool, len(keys))
	if len(keys) == 0 {
		return referenced, nil
	}
	const query = `SELECT proof_file_ref FROM maintenance_requests WHERE proof_file_ref = ANY($1)`
	var found []string
	if err := r.db.SelectContext(ctx, &found, query, pq.Array(keys)); err != nil {
		return nil, fmt.Errorf("find referenced proofs: %w", err)
	}
	for _, key := range found {
		referenced[key] = true
	}
	return referenced, nil
}

func requestConditions(filter models.RequestFilter) (string, []interface{}) {
	conditions := make([]string, 0, 6)
	args := make([]interface{}, 0, 6)
	if filter.RequesterID != "" {
		args = append(args, filter.RequesterID)
		conditions = append(conditions, fmt.Sprintf("r.requester_id = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		conditions = append(conditions, fmt.Sprintf("r.status = $%d", len(args)))
	}
	if filter.WorkType != "" {
		args = append(args, filter.WorkType)
		conditions = append(conditions, fmt.Sprintf("r.work_type = $%d", len(args)))
	}
	if filter.Block != "" {
		args = append(args, filter.Block)
		conditions = append(conditions, fmt.Sprintf("r.block = $%d", len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, fmt.Sprintf("r.created_at >= $%d", len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, fmt.Sprintf("r.created_at < $%d", len(args)))
	}
	if len(conditions) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conditions, " AND "), args
}

func markProofs(items []models.MaintenanceRequest) {
	for i := range items {
		items[i].HasProof = items[i].ProofFileRef != nil
	}
}
