package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
)

const userColumns = `id, email, password_hash, role, full_name, reg_no, employee_id, block, room_number, department, created_at, updated_at`

// UserRepository stores student and employee accounts.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail looks an account up case-insensitively.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	return r.findOne(ctx, "email", `LOWER(email) = LOWER($1)`, email)
}

// FindByID returns the account with the given id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	return r.findOne(ctx, "id", `id = $1`, id)
}

// findOne returns sql.ErrNoRows unwrapped so callers can map it to not found.
func (r *UserRepository) findOne(ctx context.Context, by, where string, arg interface{}) (*models.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE ` + where + ` LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, arg); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by %s: %w", by, err)
	}
	return &user, nil
}

// Create inserts an account. A taken email, reg_no or employee_id is
// reported as a *DuplicateError naming the field.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.UpdatedAt = user.CreatedAt

	const query = `INSERT INTO users (` + userColumns + `)
	VALUES (:id, :email, :password_hash, :role, :full_name, :reg_no, :employee_id, :block, :room_number, :department, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		if dup, ok := asDuplicate(err); ok {
			return dup
		}
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}
