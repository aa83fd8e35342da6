package models

import "time"

// UserRole distinguishes requesters from the staff who handle requests.
type UserRole string

const (
	RoleStudent  UserRole = "student"
	RoleEmployee UserRole = "employee"
)

// Valid reports whether the role is known.
func (r UserRole) Valid() bool {
	return r == RoleStudent || r == RoleEmployee
}

// User represents an account together with its profile columns.
type User struct {
	ID           string    `db:"id" json:"id"`
	Email        string    `db:"email" json:"email"`
	PasswordHash string    `db:"password_hash" json:"-"`
	Role         UserRole  `db:"role" json:"role"`
	FullName     string    `db:"full_name" json:"full_name"`
	RegNo        *string   `db:"reg_no" json:"reg_no,omitempty"`
	EmployeeID   *string   `db:"employee_id" json:"employee_id,omitempty"`
	Block        *string   `db:"block" json:"block,omitempty"`
	RoomNumber   *string   `db:"room_number" json:"room_number,omitempty"`
	Department   *string   `db:"department" json:"department,omitempty"`
	CreatedAt    time.Time `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time `db:"updated_at" json:"updated_at"`
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// Actor is the authenticated caller as established from a verified token.
type Actor struct {
	UserID string
	Role   UserRole
}
