package service

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
	"github.com/noah-isme/maintenance-portal-api/pkg/jobs"
	"github.com/noah-isme/maintenance-portal-api/pkg/logger"
	"github.com/noah-isme/maintenance-portal-api/pkg/storage"
)

const (
	analyticsCachePattern = "analytics:*"
	proofKeyPrefix        = "proofs/"
	sniffLen              = 3072
)

var (
	defaultProofExts  = []string{".pdf", ".doc", ".docx", ".jpg", ".jpeg", ".png"}
	defaultProofMIMEs = []string{
		"application/pdf",
		"application/msword",
		"application/x-ole-storage",
		"application/vnd.openxmlformats-officedocument.wordprocessingml.document",
		"image/jpeg",
		"image/png",
	}
	// proofExtMIMEs pairs each known extension with the content types it may
	// carry. Extensions missing here are checked against the allow-list only.
	proofExtMIMEs = map[string][]string{
		".pdf":  {"application/pdf"},
		".doc":  {"application/msword", "application/x-ole-storage"},
		".docx": {"application/vnd.openxmlformats-officedocument.wordprocessingml.document"},
		".jpg":  {"image/jpeg"},
		".jpeg": {"image/jpeg"},
		".png":  {"image/png"},
	}
)

type requestStore interface {
	Create(ctx context.Context, req *models.MaintenanceRequest) error
	GetByID(ctx context.Context, id string) (*models.MaintenanceRequest, error)
	List(ctx context.Context, filter models.RequestFilter) ([]models.MaintenanceRequest, int, error)
	UpdateStatus(ctx context.Context, update models.StatusUpdate) (time.Time, error)
}

// ProofStore stores proof attachments by object key.
type ProofStore interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Get(ctx context.Context, key string) (io.ReadCloser, error)
	Delete(ctx context.Context, key string) error
	List(ctx context.Context, prefix string, before time.Time) ([]storage.ObjectInfo, error)
}

type jobEnqueuer interface {
	Enqueue(job jobs.Job) error
}

// ProofUpload is an attachment handed in with a submission. The caller owns
// Reader and closes it.
type ProofUpload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// RequestServiceConfig bounds proof uploads.
type RequestServiceConfig struct {
	MaxFileBytes int64
	AllowedExts  []string
	AllowedMIMEs []string
}

// RequestService owns the request lifecycle: submission, transitions and reads.
type RequestService struct {
	store     requestStore
	proofs    ProofStore
	signer    *storage.SignedURLSigner
	cleanup   jobEnqueuer
	cache     *CacheService
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       RequestServiceConfig
	now       func() time.Time
}

// NewRequestService wires the request service.
func NewRequestService(store requestStore, proofs ProofStore, signer *storage.SignedURLSigner, cleanup jobEnqueuer, cache *CacheService, metrics *MetricsService, validate *validator.Validate, logger *zap.Logger, cfg RequestServiceConfig) *RequestService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = NewValidator()
	}
	if cfg.MaxFileBytes <= 0 {
		cfg.MaxFileBytes = 5 * 1024 * 1024
	}
	if len(cfg.AllowedExts) == 0 {
		cfg.AllowedExts = defaultProofExts
	}
	if len(cfg.AllowedMIMEs) == 0 {
		cfg.AllowedMIMEs = defaultProofMIMEs
	}
	return &RequestService{
		store:     store,
		proofs:    proofs,
		signer:    signer,
		cleanup:   cleanup,
		cache:     cache,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// Submit validates and records a new pending request. When a proof is
// attached it is stored first; a failed insert removes it again so no
// orphan is left behind.
func (s *RequestService) Submit(ctx context.Context, actor models.Actor, payload models.SubmitRequestPayload, proof *ProofUpload) (*models.SubmitResult, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students can submit requests")
	}

	payload = normalizePayload(payload)
	if err := s.validator.Struct(payload); err != nil {
		return nil, validationError(err, "invalid request payload")
	}

	var (
		body        io.Reader
		key         string
		contentType string
	)
	if proof != nil {
		var err error
		body, contentType, err = s.checkProof(proof)
		if err != nil {
			return nil, err
		}
		key = proofKeyPrefix + actor.UserID + "/" + uuid.NewString() + strings.ToLower(filepath.Ext(proof.Filename))
		if err := s.proofs.Put(ctx, key, body, proof.Size, contentType); err != nil {
			logger.WithContext(ctx, s.logger).Error("store proof", zap.String("key", key), zap.Error(err))
			return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, appErrors.ErrStorage.Message)
		}
	}

	req := &models.MaintenanceRequest{
		RequesterID:     actor.UserID,
		RegNo:           payload.RegNo,
		Name:            payload.Name,
		Block:           payload.Block,
		RoomNumber:      payload.RoomNumber,
		WorkType:        payload.WorkType,
		RequestCategory: payload.RequestCategory,
		Description:     payload.Description,
		Status:          models.StatusPending,
		CreatedAt:       s.now().UTC(),
	}
	if key != "" {
		req.ProofFileRef = &key
		req.ProofContentType = &contentType
	}

	if err := s.store.Create(ctx, req); err != nil {
		logger.WithContext(ctx, s.logger).Error("insert request", zap.String("requester_id", actor.UserID), zap.Error(err))
		if key != "" {
			s.discardProof(ctx, key)
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to save request")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.RequestSubmitted()
	logger.WithContext(ctx, s.logger).Info("request submitted",
		zap.String("request_id", req.ID),
		zap.String("request_number", req.RequestNumber),
		zap.Bool("has_proof", key != ""),
	)

	return &models.SubmitResult{
		ID:            req.ID,
		RequestNumber: req.RequestNumber,
		Status:        req.Status,
		CreatedAt:     req.CreatedAt,
	}, nil
}

// Transition moves a request to the target status. The change is applied only
// if the row still holds the status it was read with, so of two concurrent
// transitions on the same request at most one wins.
func (s *RequestService) Transition(ctx context.Context, actor models.Actor, id string, payload models.TransitionPayload) (*models.TransitionResult, error) {
	if actor.Role != models.RoleEmployee {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only employees can change request status")
	}
	comments := strings.TrimSpace(payload.Comments)
	if comments == "" {
		return nil, invalidField("comments", "required", "comments are required")
	}
	target := models.RequestStatus(strings.ToLower(strings.TrimSpace(string(payload.Status))))
	if !target.Valid() {
		return nil, invalidField("status", "oneof="+models.StatusOneOf(), "unknown status")
	}

	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !current.Status.CanTransitionTo(target) {
		return nil, appErrors.Clone(appErrors.ErrInvalidTransition,
			fmt.Sprintf("cannot move request from %s to %s", current.Status, target))
	}

	updatedAt, err := s.store.UpdateStatus(ctx, models.StatusUpdate{
		ID:        current.ID,
		Expected:  current.Status,
		Target:    target,
		Comments:  comments,
		HandledBy: actor.UserID,
		UpdatedAt: s.now().UTC(),
	})
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "request was changed by another action")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrPersistence.Code, appErrors.ErrPersistence.Status, "failed to update request")
	}

	s.invalidateAnalytics(ctx)
	s.metrics.RequestTransitioned(target)
	logger.WithContext(ctx, s.logger).Info("request transitioned",
		zap.String("request_id", current.ID),
		zap.String("from", string(current.Status)),
		zap.String("to", string(target)),
		zap.String("handled_by", actor.UserID),
	)

	return &models.TransitionResult{ID: current.ID, Status: target, UpdatedAt: updatedAt}, nil
}

// List returns requests in the given scope. Students only see their own.
func (s *RequestService) List(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, filter models.RequestFilter) ([]models.MaintenanceRequest, *models.Pagination, error) {
	switch scope {
	case "":
		scope = defaultScope(actor)
	case models.ScopeMine, models.ScopeAll:
	default:
		return nil, nil, invalidField("scope", "oneof=mine all", "unknown scope")
	}
	if scope == models.ScopeAll && actor.Role != models.RoleEmployee {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only employees can list all requests")
	}
	if err := validateFilter(filter); err != nil {
		return nil, nil, err
	}

	filter.RequesterID = ""
	if scope == models.ScopeMine {
		filter.RequesterID = actor.UserID
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	started := time.Now()
	items, total, err := s.store.List(ctx, filter)
	s.metrics.ObserveDBQuery("list_requests", time.Since(started))
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list requests")
	}
	if items == nil {
		items = []models.MaintenanceRequest{}
	}
	return items, &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}, nil
}

// Get returns a single request the actor may see.
func (s *RequestService) Get(ctx context.Context, actor models.Actor, id string) (*models.MaintenanceRequest, error) {
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if actor.Role != models.RoleEmployee && req.RequesterID != actor.UserID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "request belongs to another user")
	}
	return req, nil
}

// ProofURL issues a signed download link for the request's proof.
func (s *RequestService) ProofURL(ctx context.Context, actor models.Actor, id, baseURL string) (*models.ProofLink, error) {
	req, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	if req.ProofFileRef == nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request has no proof attached")
	}
	if s.signer == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "download signing is not configured")
	}
	token, expiresAt, err := s.signer.Generate(req.ID, *req.ProofFileRef)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}
	url := strings.TrimRight(baseURL, "/") + "/requests/" + req.ID + "/proof/download?token=" + token
	return &models.ProofLink{URL: url, ExpiresAt: expiresAt}, nil
}

// ProofDownload opens the proof referenced by a signed token. The caller
// closes the returned reader.
func (s *RequestService) ProofDownload(ctx context.Context, id, token string) (io.ReadCloser, string, string, error) {
	if s.signer == nil {
		return nil, "", "", appErrors.Clone(appErrors.ErrInternal, "download signing is not configured")
	}
	subject, key, err := s.signer.Parse(token)
	if err != nil || subject != id {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	req, err := s.load(ctx, id)
	if err != nil {
		return nil, "", "", err
	}
	if req.ProofFileRef == nil || *req.ProofFileRef != key {
		return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "proof not found")
	}

	rc, err := s.proofs.Get(ctx, key)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, "", "", appErrors.Clone(appErrors.ErrNotFound, "proof not found")
		}
		return nil, "", "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to read proof")
	}
	contentType := "application/octet-stream"
	if req.ProofContentType != nil && *req.ProofContentType != "" {
		contentType = *req.ProofContentType
	}
	filename := req.RequestNumber + path.Ext(key)
	return rc, contentType, filename, nil
}

func (s *RequestService) load(ctx context.Context, id string) (*models.MaintenanceRequest, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
	}
	req, err := s.store.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "request not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load request")
	}
	return req, nil
}

// checkProof enforces size and type limits and returns a reader replaying the
// sniffed prefix.
func (s *RequestService) checkProof(proof *ProofUpload) (io.Reader, string, error) {
	if proof.Reader == nil || proof.Size <= 0 {
		return nil, "", invalidField("proof", "required", "proof file is empty")
	}
	if proof.Size > s.cfg.MaxFileBytes {
		return nil, "", invalidField("proof", fmt.Sprintf("max=%d", s.cfg.MaxFileBytes), "proof file is too large")
	}
	ext := strings.ToLower(filepath.Ext(proof.Filename))
	if !contains(s.cfg.AllowedExts, ext) {
		return nil, "", invalidField("proof", "ext="+strings.Join(s.cfg.AllowedExts, " "), "proof file type is not allowed")
	}

	head := make([]byte, sniffLen)
	n, err := io.ReadFull(proof.Reader, head)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return nil, "", appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "failed to read proof file")
	}
	head = head[:n]
	detected := mimetype.Detect(head)
	if !matchesAny(detected, s.cfg.AllowedMIMEs) {
		return nil, "", invalidField("proof", "mime="+detected.String(), "proof file content is not allowed")
	}
	if expected, ok := proofExtMIMEs[ext]; ok && !matchesAny(detected, expected) {
		return nil, "", invalidField("proof", "mime="+detected.String()+" ext="+ext, "proof file content does not match its extension")
	}
	return io.MultiReader(bytes.NewReader(head), io.LimitReader(proof.Reader, proof.Size-int64(n))), detected.String(), nil
}

// discardProof removes a stored proof whose request was never written. It
// outlives a cancelled caller; a failed delete is retried on the cleanup queue.
func (s *RequestService) discardProof(parent context.Context, key string) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(parent), 10*time.Second)
	defer cancel()
	err := s.proofs.Delete(ctx, key)
	if err == nil || errors.Is(err, storage.ErrObjectNotFound) {
		s.metrics.OrphanedProof("deleted")
		return
	}
	logger.WithContext(ctx, s.logger).Warn("delete orphaned proof", zap.String("key", key), zap.Error(err))
	if s.cleanup == nil {
		s.metrics.OrphanedProof("failed")
		return
	}
	if qerr := s.cleanup.Enqueue(jobs.Job{Type: ProofCleanupJob, Payload: key}); qerr != nil {
		s.metrics.OrphanedProof("failed")
		logger.WithContext(ctx, s.logger).Error("queue proof cleanup", zap.String("key", key), zap.Error(qerr))
		return
	}
	s.metrics.OrphanedProof("queued")
}

func (s *RequestService) invalidateAnalytics(ctx context.Context) {
	_ = s.cache.Invalidate(ctx, analyticsCachePattern)
}

func normalizePayload(p models.SubmitRequestPayload) models.SubmitRequestPayload {
	p.RegNo = strings.TrimSpace(p.RegNo)
	p.Name = strings.TrimSpace(p.Name)
	p.Block = strings.TrimSpace(p.Block)
	p.RoomNumber = strings.TrimSpace(p.RoomNumber)
	p.Description = strings.TrimSpace(p.Description)
	p.WorkType = models.WorkType(strings.ToLower(strings.TrimSpace(string(p.WorkType))))
	p.RequestCategory = models.RequestCategory(strings.ToLower(strings.TrimSpace(string(p.RequestCategory))))
	if p.RequestCategory == "" {
		p.RequestCategory = models.CategoryRequisition
	}
	return p
}

func validateFilter(filter models.RequestFilter) error {
	if filter.Status != "" && !filter.Status.Valid() {
		return invalidField("status", "oneof="+models.StatusOneOf(), "unknown status filter")
	}
	if filter.WorkType != "" && !filter.WorkType.Valid() {
		return invalidField("work_type", "oneof="+models.WorkTypeOneOf(), "unknown work type filter")
	}
	if filter.From != nil && filter.To != nil && !filter.From.Before(*filter.To) {
		return invalidField("from", "ltefield=to", "from must not be after to")
	}
	return nil
}

func defaultScope(actor models.Actor) models.AnalyticsScope {
	if actor.Role == models.RoleEmployee {
		return models.ScopeAll
	}
	return models.ScopeMine
}

func matchesAny(detected *mimetype.MIME, types []string) bool {
	for _, m := range types {
		if detected.Is(m) {
			return true
		}
	}
	return false
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if strings.EqualFold(v, target) {
			return true
		}
	}
	return false
}
