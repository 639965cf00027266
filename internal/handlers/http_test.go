package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/campaign"
	"github.com/campaignops/resource-factory/internal/lifecycle"
	"github.com/campaignops/resource-factory/internal/models"
)

type stubResourceService struct {
	generateReq lifecycle.GenerateRequest
	processReq  lifecycle.ProcessRequest
	job         *models.ResourceDetails
	err         error
}

func (s *stubResourceService) Generate(_ context.Context, req lifecycle.GenerateRequest) (*models.ResourceDetails, error) {
	s.generateReq = req
	return s.job, s.err
}

func (s *stubResourceService) Process(_ context.Context, req lifecycle.ProcessRequest) (*models.ResourceDetails, error) {
	s.processReq = req
	return s.job, s.err
}

func (s *stubResourceService) SearchGenerated(_ context.Context, _ models.SearchCriteria) ([]*models.ResourceDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.ResourceDetails{s.job}, nil
}

func (s *stubResourceService) SearchProcessed(_ context.Context, _ models.SearchCriteria) ([]*models.ResourceDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.ResourceDetails{s.job}, nil
}

func (s *stubResourceService) Retry(_ context.Context, _, _, _ string) (*models.ResourceDetails, error) {
	return s.job, s.err
}

type stubCampaignService struct {
	req      campaign.Request
	campaign *models.CampaignDetails
	err      error
}

func (s *stubCampaignService) Create(_ context.Context, req campaign.Request) (*models.CampaignDetails, error) {
	s.req = req
	return s.campaign, s.err
}

func (s *stubCampaignService) Update(_ context.Context, req campaign.Request) (*models.CampaignDetails, error) {
	s.req = req
	return s.campaign, s.err
}

func (s *stubCampaignService) Search(_ context.Context, _ models.CampaignSearchCriteria) ([]*models.CampaignDetails, error) {
	if s.err != nil {
		return nil, s.err
	}
	return []*models.CampaignDetails{s.campaign}, nil
}

func (s *stubCampaignService) Retry(_ context.Context, _, _, _ string) (*models.CampaignDetails, error) {
	return s.campaign, s.err
}

func setupRouter(resources *stubResourceService, campaigns *stubCampaignService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	NewResourceHandler(resources, campaigns, zap.NewNop()).RegisterRoutes(router)
	return router
}

func jsonBody(t *testing.T, v interface{}) *bytes.Reader {
	t.Helper()
	raw, err := json.Marshal(v)
	require.NoError(t, err)
	return bytes.NewReader(raw)
}

func requestInfoBody(tenantID string) map[string]interface{} {
	return map[string]interface{}{
		"RequestInfo": map[string]interface{}{
			"userInfo": map[string]interface{}{"uuid": "user-1", "tenantId": tenantID},
		},
	}
}

func doJSON(router *gin.Engine, method, target string, body *bytes.Reader) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, body)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder) map[string]json.RawMessage {
	t.Helper()
	var decoded map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	return decoded
}

func TestGenerateEndpoint(t *testing.T) {
	t.Run("SchedulesJob", func(t *testing.T) {
		resources := &stubResourceService{job: &models.ResourceDetails{ID: "job-1", TenantID: "mz", Status: models.StatusInProgress}}
		router := setupRouter(resources, &stubCampaignService{})

		rec := doJSON(router, http.MethodPost,
			"/v1/data/_generate?tenantId=mz&type=boundary&hierarchyType=HEALTH&forceUpdate=TRUE",
			jsonBody(t, requestInfoBody("mz")))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec), "GeneratedResource")
		assert.Equal(t, "mz", resources.generateReq.TenantID)
		assert.Equal(t, "boundary", resources.generateReq.ResourceType)
		assert.True(t, resources.generateReq.ForceUpdate)
		assert.Equal(t, "user-1", resources.generateReq.RequestedBy)
	})

	t.Run("TenantMismatchIsRejected", func(t *testing.T) {
		router := setupRouter(&stubResourceService{}, &stubCampaignService{})

		rec := doJSON(router, http.MethodPost,
			"/v1/data/_generate?tenantId=mz&type=boundary&hierarchyType=HEALTH",
			jsonBody(t, requestInfoBody("other")))

		require.Equal(t, http.StatusBadRequest, rec.Code)
		env := decodeEnvelope(t, rec)
		assert.Contains(t, env, "Errors")
		assert.Contains(t, string(env["Errors"]), "VALIDATION_ERROR")
	})

	t.Run("MissingTenantIsRejected", func(t *testing.T) {
		router := setupRouter(&stubResourceService{}, &stubCampaignService{})

		rec := doJSON(router, http.MethodPost,
			"/v1/data/_generate?type=boundary&hierarchyType=HEALTH",
			jsonBody(t, requestInfoBody("")))

		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})

	t.Run("NonJSONBodyIsRejected", func(t *testing.T) {
		router := setupRouter(&stubResourceService{}, &stubCampaignService{})

		req := httptest.NewRequest(http.MethodPost, "/v1/data/_generate?tenantId=mz", bytes.NewReader([]byte("tenantId=mz")))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
		assert.Contains(t, rec.Body.String(), "Errors")
	})
}

func TestProcessEndpoint(t *testing.T) {
	t.Run("AcceptsUpload", func(t *testing.T) {
		resources := &stubResourceService{job: &models.ResourceDetails{ID: "job-2", Status: models.StatusValidationStarted}}
		router := setupRouter(resources, &stubCampaignService{})

		body := requestInfoBody("mz")
		body["ResourceDetails"] = map[string]interface{}{
			"type":          "boundary",
			"tenantId":      "mz",
			"hierarchyType": "HEALTH",
			"fileStoreId":   "upload-1",
			"action":        "create",
		}
		rec := doJSON(router, http.MethodPost, "/v1/data/_process", jsonBody(t, body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec), "ResourceDetails")
		assert.Equal(t, "upload-1", resources.processReq.FileStoreID)
		assert.Equal(t, "create", resources.processReq.Action)
	})

	t.Run("ServiceErrorsKeepTheirStatus", func(t *testing.T) {
		resources := &stubResourceService{err: apperrors.New(apperrors.SchemaError)}
		router := setupRouter(resources, &stubCampaignService{})

		body := requestInfoBody("mz")
		body["ResourceDetails"] = map[string]interface{}{
			"type": "boundary", "tenantId": "mz", "fileStoreId": "upload-1", "action": "validate",
		}
		rec := doJSON(router, http.MethodPost, "/v1/data/_process", jsonBody(t, body))

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Contains(t, rec.Body.String(), "SCHEMA_ERROR")
	})
}

func TestSearchEndpoint(t *testing.T) {
	resources := &stubResourceService{job: &models.ResourceDetails{ID: "job-3", TenantID: "mz", Status: models.StatusCompleted}}
	router := setupRouter(resources, &stubCampaignService{})

	body := requestInfoBody("mz")
	body["SearchCriteria"] = map[string]interface{}{"tenantId": "mz", "status": "completed"}
	rec := doJSON(router, http.MethodPost, "/v1/data/_search", jsonBody(t, body))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "job-3")
}

func TestRetryEndpoint(t *testing.T) {
	t.Run("RequiresID", func(t *testing.T) {
		router := setupRouter(&stubResourceService{}, &stubCampaignService{})

		rec := doJSON(router, http.MethodPost, "/v1/data/_retry?tenantId=mz", jsonBody(t, requestInfoBody("mz")))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
		assert.Contains(t, rec.Body.String(), "id is required")
	})

	t.Run("ReturnsNewJob", func(t *testing.T) {
		resources := &stubResourceService{job: &models.ResourceDetails{ID: "job-5", ReferenceID: "job-4"}}
		router := setupRouter(resources, &stubCampaignService{})

		rec := doJSON(router, http.MethodPost, "/v1/data/_retry?tenantId=mz&id=job-4", jsonBody(t, requestInfoBody("mz")))
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "job-5")
	})
}

func TestCampaignEndpoints(t *testing.T) {
	t.Run("CreateForwardsRequest", func(t *testing.T) {
		campaigns := &stubCampaignService{campaign: &models.CampaignDetails{ID: "camp-1", Name: "Malaria IRS 2026"}}
		router := setupRouter(&stubResourceService{}, campaigns)

		body := requestInfoBody("mz")
		body["CampaignDetails"] = map[string]interface{}{
			"tenantId":     "mz",
			"campaignName": "Malaria IRS 2026",
			"projectType":  "IRS-mz",
		}
		rec := doJSON(router, http.MethodPost, "/v1/project-type/create", jsonBody(t, body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, decodeEnvelope(t, rec), "CampaignDetails")
		assert.Equal(t, "Malaria IRS 2026", campaigns.req.Name)
		assert.Equal(t, "user-1", campaigns.req.RequestedBy)
	})

	t.Run("SearchUsesCampaignCriteria", func(t *testing.T) {
		campaigns := &stubCampaignService{campaign: &models.CampaignDetails{ID: "camp-2"}}
		router := setupRouter(&stubResourceService{}, campaigns)

		body := requestInfoBody("mz")
		body["CampaignSearchCriteria"] = map[string]interface{}{"tenantId": "mz", "campaignName": "Malaria"}
		rec := doJSON(router, http.MethodPost, "/v1/project-type/search", jsonBody(t, body))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "camp-2")
	})

	t.Run("TenantMismatchIsRejected", func(t *testing.T) {
		router := setupRouter(&stubResourceService{}, &stubCampaignService{})

		body := requestInfoBody("other")
		body["CampaignDetails"] = map[string]interface{}{
			"tenantId": "mz", "campaignName": "x", "projectType": "y",
		}
		rec := doJSON(router, http.MethodPost, "/v1/project-type/update", jsonBody(t, body))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}

func TestHealthEndpoint(t *testing.T) {
	router := setupRouter(&stubResourceService{}, &stubCampaignService{})

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "healthy")
}
