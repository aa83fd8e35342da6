package handler

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/internal/service"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
	"github.com/noah-isme/maintenance-portal-api/pkg/response"
)

// multipartOverhead is the allowance for form fields on top of the proof size.
const multipartOverhead = 1 << 20

type requestService interface {
	Submit(ctx context.Context, actor models.Actor, payload models.SubmitRequestPayload, proof *service.ProofUpload) (*models.SubmitResult, error)
	Transition(ctx context.Context, actor models.Actor, id string, payload models.TransitionPayload) (*models.TransitionResult, error)
	List(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, filter models.RequestFilter) ([]models.MaintenanceRequest, *models.Pagination, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.MaintenanceRequest, error)
	ProofURL(ctx context.Context, actor models.Actor, id, baseURL string) (*models.ProofLink, error)
	ProofDownload(ctx context.Context, id, token string) (io.ReadCloser, string, string, error)
}

// RequestHandler exposes maintenance request endpoints.
type RequestHandler struct {
	service      requestService
	apiPrefix    string
	maxFileBytes int64
	location     *time.Location
}

// NewRequestHandler constructs the handler. apiPrefix is used to build proof
// download links.
func NewRequestHandler(svc requestService, apiPrefix string, maxFileBytes int64, location *time.Location) *RequestHandler {
	if maxFileBytes <= 0 {
		maxFileBytes = 5 << 20
	}
	return &RequestHandler{service: svc, apiPrefix: apiPrefix, maxFileBytes: maxFileBytes, location: location}
}

// Submit godoc
// @Summary Submit maintenance request
// @Description Students submit a request as JSON or as multipart form data with an optional proof file
// @Tags Requests
// @Accept json
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Param payload body models.SubmitRequestPayload true "Request payload"
// @Param proof formData file false "Proof attachment (pdf, doc, docx, jpg, jpeg, png)"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 502 {object} response.Envelope
// @Router /requests [post]
func (h *RequestHandler) Submit(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}

	var (
		payload models.SubmitRequestPayload
		proof   *service.ProofUpload
	)
	if strings.HasPrefix(c.ContentType(), "multipart/form-data") {
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxFileBytes+multipartOverhead)
		if err := c.ShouldBind(&payload); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request form"))
			return
		}
		file, header, err := c.Request.FormFile("proof")
		switch {
		case errors.Is(err, http.ErrMissingFile):
		case err != nil:
			response.Error(c, appErrors.WithDetails(appErrors.ErrValidation, "invalid proof upload", map[string]string{"proof": "file"}))
			return
		default:
			defer file.Close()
			proof = &service.ProofUpload{Filename: header.Filename, Size: header.Size, Reader: file}
		}
	} else if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid request payload"))
		return
	}

	res, err := h.service.Submit(c.Request.Context(), actor, payload, proof)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, res)
}

// List godoc
// @Summary List maintenance requests
// @Description Students see their own requests; employees may pass scope=all
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param scope query string false "mine or all"
// @Param status query string false "Status filter"
// @Param work_type query string false "Work type filter"
// @Param block query string false "Block filter"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Param page query int false "Page"
// @Param page_size query int false "Page size"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /requests [get]
func (h *RequestHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	filter, err := parseRequestFilter(c, h.location)
	if err != nil {
		response.Error(c, err)
		return
	}

	scope := models.AnalyticsScope(strings.ToLower(strings.TrimSpace(c.Query("scope"))))
	items, pagination, err := h.service.List(c.Request.Context(), actor, scope, filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, items, pagination)
}

// Get godoc
// @Summary Get maintenance request
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id} [get]
func (h *RequestHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	req, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, req, nil)
}

// Transition godoc
// @Summary Change request status
// @Description Employees approve, reject or complete a request with a mandatory comment
// @Tags Requests
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Param payload body models.TransitionPayload true "Target status and comments"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /requests/{id}/status [patch]
func (h *RequestHandler) Transition(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var payload models.TransitionPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid transition payload"))
		return
	}

	res, err := h.service.Transition(c.Request.Context(), actor, c.Param("id"), payload)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, res, nil)
}

// ProofURL godoc
// @Summary Proof download link
// @Description Issue a short lived signed link to the request's proof file
// @Tags Requests
// @Produce json
// @Security BearerAuth
// @Param id path string true "Request ID"
// @Success 200 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/proof [get]
func (h *RequestHandler) ProofURL(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	link, err := h.service.ProofURL(c.Request.Context(), actor, c.Param("id"), h.apiPrefix)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, link, nil)
}

// ProofDownload godoc
// @Summary Download proof
// @Description Stream the proof file referenced by a signed token
// @Tags Requests
// @Produce octet-stream
// @Param id path string true "Request ID"
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /requests/{id}/proof/download [get]
func (h *RequestHandler) ProofDownload(c *gin.Context) {
	rc, contentType, filename, err := h.service.ProofDownload(c.Request.Context(), c.Param("id"), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer rc.Close()

	response.Stream(c, contentType, filename, rc)
}
