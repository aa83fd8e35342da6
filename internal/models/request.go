package models

import (
	"fmt"
	"strings"
	"time"
)

// WorkType is the trade a maintenance request is routed to.
type WorkType string

const (
	WorkTypeElectrical WorkType = "electrical"
	WorkTypePlumbing   WorkType = "plumbing"
	WorkTypeCleaning   WorkType = "cleaning"
	WorkTypeInternet   WorkType = "internet"
	WorkTypeLaundry    WorkType = "laundry"
	WorkTypeOther      WorkType = "other"
)

// AllWorkTypes lists every work type in declaration order.
func AllWorkTypes() []WorkType {
	return []WorkType{WorkTypeElectrical, WorkTypePlumbing, WorkTypeCleaning, WorkTypeInternet, WorkTypeLaundry, WorkTypeOther}
}

// Valid reports whether the work type is known.
func (w WorkType) Valid() bool {
	for _, known := range AllWorkTypes() {
		if w == known {
			return true
		}
	}
	return false
}

// RequestCategory classifies the nature of a request.
type RequestCategory string

const (
	CategoryRequisition RequestCategory = "requisition"
	CategorySuggestion  RequestCategory = "suggestion"
	CategoryImprovement RequestCategory = "improvement"
	CategoryFeedback    RequestCategory = "feedback"
)

// AllRequestCategories lists every category in declaration order.
func AllRequestCategories() []RequestCategory {
	return []RequestCategory{CategoryRequisition, CategorySuggestion, CategoryImprovement, CategoryFeedback}
}

// Valid reports whether the category is known.
func (c RequestCategory) Valid() bool {
	for _, known := range AllRequestCategories() {
		if c == known {
			return true
		}
	}
	return false
}

// RequestStatus is the lifecycle state of a request.
type RequestStatus string

const (
	StatusPending   RequestStatus = "pending"
	StatusApproved  RequestStatus = "approved"
	StatusRejected  RequestStatus = "rejected"
	StatusCompleted RequestStatus = "completed"
)

// AllRequestStatuses lists statuses in declaration order, which is also the
// tie-break order for analytics.
func AllRequestStatuses() []RequestStatus {
	return []RequestStatus{StatusPending, StatusApproved, StatusRejected, StatusCompleted}
}

// statusTransitions holds the legal successors of each status.
var statusTransitions = map[RequestStatus][]RequestStatus{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusCompleted},
}

// Valid reports whether the status is known.
func (s RequestStatus) Valid() bool {
	return s.Rank() >= 0
}

// Rank is the declaration index of the status, or -1 when unknown.
func (s RequestStatus) Rank() int {
	for i, known := range AllRequestStatuses() {
		if s == known {
			return i
		}
	}
	return -1
}

// Terminal reports whether no further transition is possible.
func (s RequestStatus) Terminal() bool {
	return s.Valid() && len(statusTransitions[s]) == 0
}

// CanTransitionTo reports whether target is a legal successor of s.
func (s RequestStatus) CanTransitionTo(target RequestStatus) bool {
	for _, next := range statusTransitions[s] {
		if next == target {
			return true
		}
	}
	return false
}

// NextStatuses returns the legal successors of s.
func (s RequestStatus) NextStatuses() []RequestStatus {
	next := statusTransitions[s]
	out := make([]RequestStatus, len(next))
	copy(out, next)
	return out
}

// joinValues renders enum values for validator oneof tags and messages.
func joinValues[T ~string](values []T) string {
	parts := make([]string, len(values))
	for i, v := range values {
		parts[i] = string(v)
	}
	return strings.Join(parts, " ")
}

// WorkTypeOneOf is the validator oneof parameter for work types.
func WorkTypeOneOf() string { return joinValues(AllWorkTypes()) }

// CategoryOneOf is the validator oneof parameter for request categories.
func CategoryOneOf() string { return joinValues(AllRequestCategories()) }

// StatusOneOf is the validator oneof parameter for statuses.
func StatusOneOf() string { return joinValues(AllRequestStatuses()) }

// MaintenanceRequest is a single submitted request. Status changes happen in
// place; the row is never moved.
type MaintenanceRequest struct {
	ID               string          `db:"id" json:"id"`
	RequestNumber    string          `db:"request_number" json:"request_number"`
	RequesterID      string          `db:"requester_id" json:"requester_id"`
	RegNo            string          `db:"reg_no" json:"reg_no"`
	Name             string          `db:"name" json:"name"`
	Block            string          `db:"block" json:"block"`
	RoomNumber       string          `db:"room_number" json:"room_number"`
	WorkType         WorkType        `db:"work_type" json:"work_type"`
	RequestCategory  RequestCategory `db:"request_category" json:"request_category"`
	Description      string          `db:"description" json:"description"`
	ProofFileRef     *string         `db:"proof_file_ref" json:"-"`
	ProofContentType *string         `db:"proof_content_type" json:"proof_content_type,omitempty"`
	HasProof         bool            `db:"-" json:"has_proof"`
	Status           RequestStatus   `db:"status" json:"status"`
	ResponseComments *string         `db:"response_comments" json:"response_comments,omitempty"`
	HandledBy        *string         `db:"handled_by" json:"handled_by,omitempty"`
	HandledByName    *string         `db:"handled_by_name" json:"handled_by_name,omitempty"`
	CreatedAt        time.Time       `db:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `db:"updated_at" json:"updated_at"`
}

// RequestFilter narrows listings and reports. All set fields combine with AND.
type RequestFilter struct {
	RequesterID string
	Status      RequestStatus
	WorkType    WorkType
	Block       string
	// From and To bound created_at; To is exclusive.
	From     *time.Time
	To       *time.Time
	Page     int
	PageSize int
}

// FilterDateLayout is the calendar-day format accepted for from and to.
const FilterDateLayout = "2006-01-02"

// FilterDateError reports a from or to value that is not a calendar day.
type FilterDateError struct {
	Field string
	Err   error
}

func (e *FilterDateError) Error() string {
	return fmt.Sprintf("%s: expected %s: %v", e.Field, FilterDateLayout, e.Err)
}

func (e *FilterDateError) Unwrap() error { return e.Err }

// NewRequestFilter normalises raw filter values. from and to are inclusive
// calendar days in loc, so To is set to the start of the day after to.
func NewRequestFilter(status, workType, block, from, to string, loc *time.Location) (RequestFilter, error) {
	if loc == nil {
		loc = time.UTC
	}
	filter := RequestFilter{
		Status:   RequestStatus(strings.ToLower(strings.TrimSpace(status))),
		WorkType: WorkType(strings.ToLower(strings.TrimSpace(workType))),
		Block:    strings.TrimSpace(block),
	}
	if raw := strings.TrimSpace(from); raw != "" {
		day, err := time.ParseInLocation(FilterDateLayout, raw, loc)
		if err != nil {
			return filter, &FilterDateError{Field: "from", Err: err}
		}
		filter.From = &day
	}
	if raw := strings.TrimSpace(to); raw != "" {
		day, err := time.ParseInLocation(FilterDateLayout, raw, loc)
		if err != nil {
			return filter, &FilterDateError{Field: "to", Err: err}
		}
		end := day.AddDate(0, 0, 1)
		filter.To = &end
	}
	return filter, nil
}

// StatusUpdate is a conditional status change applied only while the row
// still holds Expected.
type StatusUpdate struct {
	ID        string
	Expected  RequestStatus
	Target    RequestStatus
	Comments  string
	HandledBy string
	UpdatedAt time.Time
}

// SubmitRequestPayload is the requester supplied part of a new request.
type SubmitRequestPayload struct {
	RegNo           string          `json:"reg_no" form:"reg_no" validate:"required"`
	Name            string          `json:"name" form:"name" validate:"required"`
	Block           string          `json:"block" form:"block" validate:"required"`
	RoomNumber      string          `json:"room_number" form:"room_number" validate:"required"`
	WorkType        WorkType        `json:"work_type" form:"work_type" validate:"required,work_type"`
	RequestCategory RequestCategory `json:"request_category" form:"request_category" validate:"omitempty,request_category"`
	Description     string          `json:"description" form:"description" validate:"required"`
}

// SubmitResult is returned after a request is accepted.
type SubmitResult struct {
	ID            string        `json:"id"`
	RequestNumber string        `json:"request_number"`
	Status        RequestStatus `json:"status"`
	CreatedAt     time.Time     `json:"created_at"`
}

// TransitionPayload asks for a status change with a mandatory comment.
type TransitionPayload struct {
	Status   RequestStatus `json:"status"`
	Comments string        `json:"comments"`
}

// TransitionResult reports the applied status change.
type TransitionResult struct {
	ID        string        `json:"id"`
	Status    RequestStatus `json:"status"`
	UpdatedAt time.Time     `json:"updated_at"`
}

// ProofLink is a short lived download link for a request's proof file.
type ProofLink struct {
	URL       string    `json:"url"`
	ExpiresAt time.Time `json:"expires_at"`
}
