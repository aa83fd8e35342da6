package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/pkg/jobs"
	"github.com/noah-isme/maintenance-portal-api/pkg/storage"
)

// ProofCleanupJob is the job type carrying an object key to delete.
const ProofCleanupJob = "proof.delete"

type proofReferences interface {
	ReferencedProofs(ctx context.Context, keys []string) (map[string]bool, error)
}

// SweepResult summarises one orphan sweep.
type SweepResult struct {
	Scanned int `json:"scanned"`
	Deleted int `json:"deleted"`
	Failed  int `json:"failed"`
}

// ProofJanitor removes proof objects that no request points at.
type ProofJanitor struct {
	proofs  ProofStore
	refs    proofReferences
	metrics *MetricsService
	logger  *zap.Logger
	grace   time.Duration
	now     func() time.Time
}

// NewProofJanitor constructs a janitor. Objects younger than grace are left
// alone so in-flight submissions are never swept.
func NewProofJanitor(proofs ProofStore, refs proofReferences, metrics *MetricsService, logger *zap.Logger, grace time.Duration) *ProofJanitor {
	if logger == nil {
		logger = zap.NewNop()
	}
	if grace <= 0 {
		grace = time.Hour
	}
	return &ProofJanitor{proofs: proofs, refs: refs, metrics: metrics, logger: logger, grace: grace, now: time.Now}
}

// Sweep deletes unreferenced proofs older than the grace period.
func (j *ProofJanitor) Sweep(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	objects, err := j.proofs.List(ctx, proofKeyPrefix, j.now().Add(-j.grace))
	if err != nil {
		return result, fmt.Errorf("list proofs: %w", err)
	}
	result.Scanned = len(objects)
	if len(objects) == 0 {
		return result, nil
	}

	keys := make([]string, len(objects))
	for i, obj := range objects {
		keys[i] = obj.Key
	}
	referenced, err := j.refs.ReferencedProofs(ctx, keys)
	if err != nil {
		return result, fmt.Errorf("check proof references: %w", err)
	}

	for _, key := range keys {
		if referenced[key] {
			continue
		}
		if err := j.proofs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			result.Failed++
			j.metrics.OrphanedProof("failed")
			j.logger.Warn("sweep orphaned proof", zap.String("key", key), zap.Error(err))
			continue
		}
		result.Deleted++
		j.metrics.OrphanedProof("deleted")
	}

	j.logger.Info("orphaned proof sweep finished",
		zap.Int("scanned", result.Scanned),
		zap.Int("deleted", result.Deleted),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

// Schedule registers Sweep on a cron spec. A tick that arrives while the
// previous sweep is still running is skipped. The caller starts and stops
// the returned scheduler.
func (j *ProofJanitor) Schedule(ctx context.Context, spec string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{j.logger.Sugar()})))
	_, err := c.AddFunc(spec, func() {
		if _, err := j.Sweep(ctx); err != nil {
			j.logger.Error("orphaned proof sweep failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule proof sweep %q: %w", spec, err)
	}
	return c, nil
}

// cronLogger routes cron's own messages through zap.
type cronLogger struct {
	l *zap.SugaredLogger
}

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debugw(msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Errorw(msg, append(keysAndValues, "error", err)...)
}

// HandleCleanup is the queue handler for ProofCleanupJob.
func (j *ProofJanitor) HandleCleanup(ctx context.Context, job jobs.Job) error {
	key, ok := job.Payload.(string)
	if !ok || key == "" {
		return fmt.Errorf("proof cleanup job %s: unexpected payload %T", job.ID, job.Payload)
	}
	if err := j.proofs.Delete(ctx, key); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
		return err
	}
	j.metrics.OrphanedProof("deleted")
	j.logger.Info("queued proof cleanup done", zap.String("key", key), zap.Int("attempt", job.Attempt))
	return nil
}
