package repository

import (
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// ErrDuplicate reports a unique constraint violation.
var ErrDuplicate = errors.New("duplicate record")

const pqUniqueViolation = "23505"

// uniqueFields maps unique constraints and indexes to the column they guard.
var uniqueFields = map[string]string{
	"users_email_key":                         "email",
	"users_reg_no_key":                        "reg_no",
	"users_employee_id_key":                   "employee_id",
	"maintenance_requests_request_number_key": "request_number",
}

// DuplicateError names the field whose uniqueness was violated. It matches
// ErrDuplicate with errors.Is.
type DuplicateError struct {
	Field string
}

func (e *DuplicateError) Error() string {
	if e.Field == "" {
		return ErrDuplicate.Error()
	}
	return fmt.Sprintf("duplicate %s", e.Field)
}

// Is reports whether target is ErrDuplicate.
func (e *DuplicateError) Is(target error) bool {
	return target == ErrDuplicate
}

// asDuplicate converts a unique violation into a DuplicateError.
func asDuplicate(err error) (error, bool) {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) || pqErr.Code != pqUniqueViolation {
		return nil, false
	}
	return &DuplicateError{Field: uniqueFields[pqErr.Constraint]}, true
}
