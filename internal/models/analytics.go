package models

import "time"

// AnalyticsScope selects whose requests are aggregated.
type AnalyticsScope string

const (
	ScopeMine AnalyticsScope = "mine"
	ScopeAll  AnalyticsScope = "all"
)

// GroupCount is one row of a GROUP BY count query.
type GroupCount struct {
	Key   string `db:"key"`
	Count int    `db:"count"`
}

// MonthCount is a per-month count keyed by the first instant of the month.
type MonthCount struct {
	Month time.Time `db:"month"`
	Count int       `db:"count"`
}

// TypeBucket counts requests per work type.
type TypeBucket struct {
	WorkType WorkType `json:"work_type"`
	Count    int      `json:"count"`
}

// StatusBucket counts requests per status.
type StatusBucket struct {
	Status RequestStatus `json:"status"`
	Count  int           `json:"count"`
}

// BlockBucket counts requests per block.
type BlockBucket struct {
	Block string `json:"block"`
	Count int    `json:"count"`
}

// MonthBucket counts requests created in a calendar month.
type MonthBucket struct {
	Month string `json:"month"`
	Label string `json:"label"`
	Count int    `json:"count"`
}

// RequestAnalytics is the aggregated view over a set of requests.
type RequestAnalytics struct {
	Scope       AnalyticsScope `json:"scope"`
	Total       int            `json:"total"`
	ByType      []TypeBucket   `json:"by_type"`
	ByStatus    []StatusBucket `json:"by_status"`
	ByBlock     []BlockBucket  `json:"by_block"`
	ByMonth     []MonthBucket  `json:"by_month"`
	GeneratedAt time.Time      `json:"generated_at"`
}

// AnalyticsCounts is the raw aggregate read taken in one snapshot.
type AnalyticsCounts struct {
	Total    int
	ByType   []GroupCount
	ByStatus []GroupCount
	ByBlock  []GroupCount
	ByMonth  []MonthCount
}
