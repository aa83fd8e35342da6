package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/maintenance-portal-api/internal/middleware"
	"github.com/noah-isme/maintenance-portal-api/internal/models"
	"github.com/noah-isme/maintenance-portal-api/internal/service"
	appErrors "github.com/noah-isme/maintenance-portal-api/pkg/errors"
)

type requestServiceMock struct {
	submitPayload models.SubmitRequestPayload
	submitProof   []byte
	proofName     string
	submitErr     error

	listScope  models.AnalyticsScope
	listFilter models.RequestFilter
	listItems  []models.MaintenanceRequest

	transitionID      string
	transitionPayload models.TransitionPayload
	transitionErr     error

	proofBaseURL string
}

func (m *requestServiceMock) Submit(ctx context.Context, actor models.Actor, payload models.SubmitRequestPayload, proof *service.ProofUpload) (*models.SubmitResult, error) {
	m.submitPayload = payload
	if proof != nil {
		m.proofName = proof.Filename
		m.submitProof, _ = io.ReadAll(proof.Reader)
	}
	if m.submitErr != nil {
		return nil, m.submitErr
	}
	return &models.SubmitResult{ID: "req-1", RequestNumber: "REQ-0001", Status: models.StatusPending}, nil
}

func (m *requestServiceMock) Transition(ctx context.Context, actor models.Actor, id string, payload models.TransitionPayload) (*models.TransitionResult, error) {
	m.transitionID = id
	m.transitionPayload = payload
	if m.transitionErr != nil {
		return nil, m.transitionErr
	}
	return &models.TransitionResult{ID: id, Status: payload.Status, UpdatedAt: time.Now()}, nil
}

func (m *requestServiceMock) List(ctx context.Context, actor models.Actor, scope models.AnalyticsScope, filter models.RequestFilter) ([]models.MaintenanceRequest, *models.Pagination, error) {
	m.listScope = scope
	m.listFilter = filter
	return m.listItems, &models.Pagination{Page: 1, PageSize: 20, TotalCount: len(m.listItems)}, nil
}

func (m *requestServiceMock) Get(ctx context.Context, actor models.Actor, id string) (*models.MaintenanceRequest, error) {
	return &models.MaintenanceRequest{ID: id, RequestNumber: "REQ-0001"}, nil
}

func (m *requestServiceMock) ProofURL(ctx context.Context, actor models.Actor, id, baseURL string) (*models.ProofLink, error) {
	m.proofBaseURL = baseURL
	return &models.ProofLink{URL: baseURL + "/requests/" + id + "/proof/download?token=t"}, nil
}

func (m *requestServiceMock) ProofDownload(ctx context.Context, id, token string) (io.ReadCloser, string, string, error) {
	if token != "good" {
		return nil, "", "", appErrors.Clone(appErrors.ErrUnauthorized, "invalid or expired download token")
	}
	return io.NopCloser(strings.NewReader("%PDF-1.4")), "application/pdf", "REQ-0001.pdf", nil
}

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

func withActor(c *gin.Context, id string, role models.UserRole) {
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: id, Role: role})
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body
}

func TestRequestHandlerSubmitJSON(t *testing.T) {
	mockSvc := &requestServiceMock{}
	h := NewRequestHandler(mockSvc, "/api/v1", 0, nil)

	payload, _ := json.Marshal(map[string]string{
		"reg_no": "S1", "name": "A", "block": "A", "room_number": "101", "work_type": "electrical", "description": "x",
	})
	c, w := newGinContext(http.MethodPost, "/requests", payload)
	withActor(c, "student-1", models.RoleStudent)

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, models.WorkTypeElectrical, mockSvc.submitPayload.WorkType)
	data := decodeEnvelope(t, w)["data"].(map[string]interface{})
	assert.Equal(t, "REQ-0001", data["request_number"])
}

func TestRequestHandlerSubmitMultipart(t *testing.T) {
	mockSvc := &requestServiceMock{}
	h := NewRequestHandler(mockSvc, "/api/v1", 1024, nil)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	for k, v := range map[string]string{"reg_no": "S1", "name": "A", "block": "A", "room_number": "101", "work_type": "plumbing", "request_category": "feedback", "description": "leak"} {
		require.NoError(t, writer.WriteField(k, v))
	}
	part, err := writer.CreateFormFile("proof", "leak.pdf")
	require.NoError(t, err)
	_, err = part.Write([]byte("%PDF-1.4\n"))
	require.NoError(t, err)
	require.NoError(t, writer.Close())

	c, w := newGinContext(http.MethodPost, "/requests", body.Bytes())
	c.Request.Header.Set("Content-Type", writer.FormDataContentType())
	withActor(c, "student-1", models.RoleStudent)

	h.Submit(c)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "leak.pdf", mockSvc.proofName)
	assert.Equal(t, []byte("%PDF-1.4\n"), mockSvc.submitProof)
	assert.Equal(t, models.CategoryFeedback, mockSvc.submitPayload.RequestCategory)
}

func TestRequestHandlerSubmitErrorEnvelope(t *testing.T) {
	mockSvc := &requestServiceMock{submitErr: appErrors.WithDetails(appErrors.ErrValidation, "invalid request payload", map[string]string{"name": "required"})}
	h := NewRequestHandler(mockSvc, "/api/v1", 0, nil)

	c, w := newGinContext(http.MethodPost, "/requests", []byte(`{}`))
	withActor(c, "student-1", models.RoleStudent)

	h.Submit(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
	errBody := decodeEnvelope(t, w)["error"].(map[string]interface{})
	assert.Equal(t, "VALIDATION_ERROR", errBody["code"])
	assert.Equal(t, "required", errBody["details"].(map[string]interface{})["name"])
}

func TestRequestHandlerSubmitRequiresActor(t *testing.T) {
	h := NewRequestHandler(&requestServiceMock{}, "/api/v1", 0, nil)
	c, w := newGinContext(http.MethodPost, "/requests", []byte(`{}`))

	h.Submit(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequestHandlerListParsesFilters(t *testing.T) {
	mockSvc := &requestServiceMock{listItems: []models.MaintenanceRequest{{ID: "req-1"}}}
	h := NewRequestHandler(mockSvc, "/api/v1", 0, nil)

	c, w := newGinContext(http.MethodGet, "/requests?scope=ALL&status=approved&block=B&from=2024-04-01&to=2024-04-30&page=2", nil)
	withActor(c, "employee-1", models.RoleEmployee)

	h.List(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.ScopeAll, mockSvc.listScope)
	assert.Equal(t, models.StatusApproved, mockSvc.listFilter.Status)
	assert.Equal(t, "B", mockSvc.listFilter.Block)
	assert.Equal(t, 2, mockSvc.listFilter.Page)
	require.NotNil(t, mockSvc.listFilter.To)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), *mockSvc.listFilter.To)
	assert.NotNil(t, decodeEnvelope(t, w)["pagination"])

	c, w = newGinContext(http.MethodGet, "/requests?from=yesterday", nil)
	withActor(c, "employee-1", models.RoleEmployee)
	h.List(c)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRequestHandlerTransition(t *testing.T) {
	mockSvc := &requestServiceMock{}
	h := NewRequestHandler(mockSvc, "/api/v1", 0, nil)

	c, w := newGinContext(http.MethodPatch, "/requests/req-1/status", []byte(`{"status":"approved","comments":"scheduled"}`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	withActor(c, "employee-1", models.RoleEmployee)

	h.Transition(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "req-1", mockSvc.transitionID)
	assert.Equal(t, "scheduled", mockSvc.transitionPayload.Comments)

	mockSvc.transitionErr = appErrors.Clone(appErrors.ErrInvalidTransition, "cannot move request from completed to approved")
	c, w = newGinContext(http.MethodPatch, "/requests/req-1/status", []byte(`{"status":"approved","comments":"retry"}`))
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	withActor(c, "employee-1", models.RoleEmployee)
	h.Transition(c)
	require.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "INVALID_TRANSITION", decodeEnvelope(t, w)["error"].(map[string]interface{})["code"])
}

func TestRequestHandlerProofEndpoints(t *testing.T) {
	mockSvc := &requestServiceMock{}
	h := NewRequestHandler(mockSvc, "/api/v1", 0, nil)

	c, w := newGinContext(http.MethodGet, "/requests/req-1/proof", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	withActor(c, "student-1", models.RoleStudent)
	h.ProofURL(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "/api/v1", mockSvc.proofBaseURL)

	c, w = newGinContext(http.MethodGet, "/requests/req-1/proof/download?token=good", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	h.ProofDownload(c)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/pdf", w.Header().Get("Content-Type"))
	assert.Equal(t, `attachment; filename="REQ-0001.pdf"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "%PDF-1.4", w.Body.String())

	c, w = newGinContext(http.MethodGet, "/requests/req-1/proof/download?token=bad", nil)
	c.Params = gin.Params{{Key: "id", Value: "req-1"}}
	h.ProofDownload(c)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}
