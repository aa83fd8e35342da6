package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

const maxMonthWindow = 24

type analyticsStore interface {
	Snapshot(ctx context.Context, since time.Time, requesterID string) (*models.AnalyticsCounts, error)
}

// AnalyticsConfig tunes the analytics service.
type AnalyticsConfig struct {
	MonthWindow int
	CacheTTL    time.Duration
}

// AnalyticsService aggregates requests by type, status, block and month.
type AnalyticsService struct {
	store  analyticsStore
	cache  *CacheService
	logger *zap.Logger
	cfg    AnalyticsConfig
	now    func() time.Time
}

// NewAnalyticsService creates an AnalyticsService.
func NewAnalyticsService(store analyticsStore, cache *CacheService, logger *zap.Logger, cfg AnalyticsConfig) *AnalyticsService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.MonthWindow <= 0 {
		cfg.MonthWindow = 6
	}
	return &AnalyticsService{store: store, cache: cache, logger: logger, cfg: cfg, now: time.Now}
}

// Requests returns the aggregated view for the caller. Students always get
// their own requests; employees default to all of them. The second return
// value reports whether the result came from cache.
func (s *AnalyticsService) Requests(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, months int) (*models.RequestAnalytics, bool, error) {
	switch {
	case actor.Role == models.RoleStudent:
		scope = models.ScopeMine
	case scope == "":
		scope = models.ScopeAll
	case scope != models.ScopeMine && scope != models.ScopeAll:
		return nil, false, invalidField("scope", "oneof=mine all", "unknown scope")
	}
	if months == 0 {
		months = s.cfg.MonthWindow
	}
	if months < 1 || months > maxMonthWindow {
		return nil, false, invalidField("months", fmt.Sprintf("range=1-%d", maxMonthWindow), "months out of range")
	}

	requesterID := ""
	key := fmt.Sprintf("analytics:%s:%d", scope, months)
	if scope == models.ScopeMine {
		requesterID = actor.UserID
		key = fmt.Sprintf("analytics:%s:%s:%d", scope, requesterID, months)
	}

	return Remember(ctx, s.cache, key, s.cfg.CacheTTL, func(ctx context.Context) (*models.RequestAnalytics, error) {
		now := s.now().UTC()
		since := monthStart(now).AddDate(0, -(months - 1), 0)
		counts, err := s.store.Snapshot(ctx, since, requesterID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to aggregate requests")
		}
		result := buildAnalytics(counts)
		result.Scope = scope
		result.GeneratedAt = now
		return result, nil
	})
}

func buildAnalytics(counts *models.AnalyticsCounts) *models.RequestAnalytics {
	result := &models.RequestAnalytics{
		Total:    counts.Total,
		ByType:   make([]models.TypeBucket, 0, len(counts.ByType)),
		ByStatus: make([]models.StatusBucket, 0, len(counts.ByStatus)),
		ByBlock:  make([]models.BlockBucket, 0, len(counts.ByBlock)),
		ByMonth:  make([]models.MonthBucket, 0, len(counts.ByMonth)),
	}

	for _, row := range counts.ByType {
		result.ByType = append(result.ByType, models.TypeBucket{WorkType: models.WorkType(row.Key), Count: row.Count})
	}
	sort.SliceStable(result.ByType, func(i, j int) bool {
		a, b := result.ByType[i], result.ByType[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.WorkType < b.WorkType
	})

	for _, row := range counts.ByStatus {
		result.ByStatus = append(result.ByStatus, models.StatusBucket{Status: models.RequestStatus(row.Key), Count: row.Count})
	}
	sort.SliceStable(result.ByStatus, func(i, j int) bool {
		a, b := result.ByStatus[i], result.ByStatus[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Status.Rank() < b.Status.Rank()
	})

	for _, row := range counts.ByBlock {
		result.ByBlock = append(result.ByBlock, models.BlockBucket{Block: row.Key, Count: row.Count})
	}
	sort.SliceStable(result.ByBlock, func(i, j int) bool {
		a, b := result.ByBlock[i], result.ByBlock[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Block < b.Block
	})

	months := append([]models.MonthCount(nil), counts.ByMonth...)
	sort.Slice(months, func(i, j int) bool { return months[i].Month.After(months[j].Month) })
	for _, row := range months {
		if row.Count == 0 {
			continue
		}
		m := row.Month.UTC()
		result.ByMonth = append(result.ByMonth, models.MonthBucket{
			Month: m.Format("2006-01"),
			Label: m.Format("Jan 2006"),
			Count: row.Count,
		})
	}
	return result
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
