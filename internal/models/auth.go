package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// RegisterRequest creates a student or employee account.
type RegisterRequest struct {
	Email      string   `json:"email" validate:"required,email"`
	Password   string   `json:"password" validate:"required,min=6"`
	Role       UserRole `json:"role" validate:"required,oneof=student employee"`
	FullName   string   `json:"full_name" validate:"required"`
	RegNo      string   `json:"reg_no" validate:"required_if=Role student"`
	EmployeeID string   `json:"employee_id" validate:"required_if=Role employee"`
	Block      string   `json:"block"`
	RoomNumber string   `json:"room_number"`
	Department string   `json:"department"`
}

// LoginResponse returns the issued token and user info.
type LoginResponse struct {
	AccessToken string    `json:"access_token"`
	ExpiresIn   int64     `json:"expires_in"`
	User        UserInfo  `json:"user"`
	IssuedAt    time.Time `json:"issued_at"`
}

// UserInfo describes the authenticated user in responses.
type UserInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	Role     UserRole `json:"role"`
}

// Profile is the form pre-fill payload for the signed-in user.
type Profile struct {
	UserInfo
	RegNo      string `json:"reg_no,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
	Block      string `json:"block,omitempty"`
	RoomNumber string `json:"room_number,omitempty"`
	Department string `json:"department,omitempty"`
}

// JWTClaims represents the JWT payload for access tokens.
type JWTClaims struct {
	UserID   string   `json:"user_id"`
	Role     UserRole `json:"role"`
	Email    string   `json:"email"`
	FullName string   `json:"full_name"`
	jwt.RegisteredClaims
}
