package handlers

import (
	"context"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/campaign"
	"github.com/campaignops/resource-factory/internal/lifecycle"
	"github.com/campaignops/resource-factory/internal/models"
)

// ResourceService is the lifecycle surface the HTTP layer drives.
type ResourceService interface {
	Generate(ctx context.Context, req lifecycle.GenerateRequest) (*models.ResourceDetails, error)
	Process(ctx context.Context, req lifecycle.ProcessRequest) (*models.ResourceDetails, error)
	SearchGenerated(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error)
	SearchProcessed(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error)
	Retry(ctx context.Context, tenantID, id, requestedBy string) (*models.ResourceDetails, error)
}

// CampaignService is the campaign surface the HTTP layer drives.
type CampaignService interface {
	Create(ctx context.Context, req campaign.Request) (*models.CampaignDetails, error)
	Update(ctx context.Context, req campaign.Request) (*models.CampaignDetails, error)
	Search(ctx context.Context, criteria models.CampaignSearchCriteria) ([]*models.CampaignDetails, error)
	Retry(ctx context.Context, tenantID, id, requestedBy string) (*models.CampaignDetails, error)
}

// ResourceHandler handles resource and campaign HTTP requests
type ResourceHandler struct {
	resources ResourceService
	campaigns CampaignService
	logger    *zap.Logger
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(resources ResourceService, campaigns CampaignService, logger *zap.Logger) *ResourceHandler {
	return &ResourceHandler{
		resources: resources,
		campaigns: campaigns,
		logger:    logger,
	}
}

// RegisterRoutes registers all resource-related routes
func (h *ResourceHandler) RegisterRoutes(router *gin.Engine) {
	v1 := router.Group("/v1", requireJSON())

	data := v1.Group("/data")
	data.POST("/_generate", h.Generate)
	data.POST("/_download", h.Download)
	data.POST("/_process", h.Process)
	data.POST("/_search", h.Search)
	data.POST("/_retry", h.RetryJob)

	projectType := v1.Group("/project-type")
	projectType.POST("/create", h.CreateCampaign)
	projectType.POST("/update", h.UpdateCampaign)
	projectType.POST("/search", h.SearchCampaigns)
	projectType.POST("/retry", h.RetryCampaign)

	router.GET("/health", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// requireJSON rejects bodies that are not JSON before any binding runs.
func requireJSON() gin.HandlerFunc {
	return func(c *gin.Context) {
		ct := c.ContentType()
		if c.Request.ContentLength != 0 && !strings.HasPrefix(ct, "application/json") {
			appErr := apperrors.New(apperrors.ValidationError).WithDescription("request body must be application/json")
			c.AbortWithStatusJSON(http.StatusUnsupportedMediaType, apperrors.NewEnvelope(appErr))
			return
		}
		c.Next()
	}
}

type requestEnvelope struct {
	RequestInfo models.RequestInfo `json:"RequestInfo"`
}

// checkTenant enforces that the query tenant matches the authenticated
// caller's tenant.
func checkTenant(queryTenant string, info models.RequestInfo) error {
	if queryTenant == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	if info.UserInfo.TenantID != "" && info.UserInfo.TenantID != queryTenant {
		return apperrors.New(apperrors.ValidationError).WithDescription("tenantId does not match the authenticated user")
	}
	return nil
}

// Generate schedules template generation for a tenant, type and
// hierarchy. Parameters arrive as query params; the body only carries
// RequestInfo.
func (h *ResourceHandler) Generate(c *gin.Context) {
	var body requestEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}

	tenantID := c.Query("tenantId")
	if err := checkTenant(tenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	job, err := h.resources.Generate(c.Request.Context(), lifecycle.GenerateRequest{
		TenantID:      tenantID,
		ResourceType:  c.Query("type"),
		HierarchyType: c.Query("hierarchyType"),
		CampaignID:    c.Query("campaignId"),
		Locale:        c.Query("locale"),
		ForceUpdate:   strings.EqualFold(c.Query("forceUpdate"), "true"),
		RequestedBy:   body.RequestInfo.UserInfo.UUID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"GeneratedResource": []*models.ResourceDetails{job}})
}

// Download returns generation job rows, the completed ones carrying the
// template fileStoreId.
func (h *ResourceHandler) Download(c *gin.Context) {
	var body requestEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}

	tenantID := c.Query("tenantId")
	if err := checkTenant(tenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	criteria := models.SearchCriteria{
		TenantID: tenantID,
		Type:     c.Query("type"),
		Status:   c.Query("status"),
	}
	if id := c.Query("id"); id != "" {
		criteria.IDs = []string{id}
	}

	rows, err := h.resources.SearchGenerated(c.Request.Context(), criteria)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"GeneratedResource": rows})
}

type processEnvelope struct {
	RequestInfo     models.RequestInfo `json:"RequestInfo"`
	ResourceDetails struct {
		Type          string `json:"type"`
		TenantID      string `json:"tenantId"`
		HierarchyType string `json:"hierarchyType,omitempty"`
		FileStoreID   string `json:"fileStoreId"`
		Action        string `json:"action"`
		CampaignID    string `json:"campaignId,omitempty"`
		Locale        string `json:"locale,omitempty"`
	} `json:"ResourceDetails"`
}

// Process accepts an uploaded sheet for validation and, for the create
// action, persistence. The response carries the job in its initial
// state; progress is polled via _search.
func (h *ResourceHandler) Process(c *gin.Context) {
	var body processEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}
	if err := checkTenant(body.ResourceDetails.TenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	job, err := h.resources.Process(c.Request.Context(), lifecycle.ProcessRequest{
		TenantID:      body.ResourceDetails.TenantID,
		ResourceType:  body.ResourceDetails.Type,
		HierarchyType: body.ResourceDetails.HierarchyType,
		FileStoreID:   body.ResourceDetails.FileStoreID,
		Action:        body.ResourceDetails.Action,
		CampaignID:    body.ResourceDetails.CampaignID,
		Locale:        body.ResourceDetails.Locale,
		RequestedBy:   body.RequestInfo.UserInfo.UUID,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ResourceDetails": []*models.ResourceDetails{job}})
}

type searchEnvelope struct {
	RequestInfo    models.RequestInfo    `json:"RequestInfo"`
	SearchCriteria models.SearchCriteria `json:"SearchCriteria"`
}

// Search returns processing job rows for the criteria.
func (h *ResourceHandler) Search(c *gin.Context) {
	var body searchEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}
	if err := checkTenant(body.SearchCriteria.TenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	rows, err := h.resources.SearchProcessed(c.Request.Context(), body.SearchCriteria)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ResourceDetails": rows})
}

// RetryJob reruns a finished processing job as a new job row.
func (h *ResourceHandler) RetryJob(c *gin.Context) {
	var body requestEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}

	tenantID := c.Query("tenantId")
	if err := checkTenant(tenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}
	id := c.Query("id")
	if id == "" {
		h.writeError(c, apperrors.New(apperrors.ValidationError).WithDescription("id is required"))
		return
	}

	job, err := h.resources.Retry(c.Request.Context(), tenantID, id, body.RequestInfo.UserInfo.UUID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ResourceDetails": []*models.ResourceDetails{job}})
}

type campaignEnvelope struct {
	RequestInfo     models.RequestInfo `json:"RequestInfo"`
	CampaignDetails campaign.Request   `json:"CampaignDetails"`
}

// CreateCampaign records a new campaign.
func (h *ResourceHandler) CreateCampaign(c *gin.Context) {
	var body campaignEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}
	if err := checkTenant(body.CampaignDetails.TenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	body.CampaignDetails.RequestedBy = body.RequestInfo.UserInfo.UUID
	created, err := h.campaigns.Create(c.Request.Context(), body.CampaignDetails)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"CampaignDetails": created})
}

// UpdateCampaign replaces the mutable fields of a campaign.
func (h *ResourceHandler) UpdateCampaign(c *gin.Context) {
	var body campaignEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}
	if err := checkTenant(body.CampaignDetails.TenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	body.CampaignDetails.RequestedBy = body.RequestInfo.UserInfo.UUID
	updated, err := h.campaigns.Update(c.Request.Context(), body.CampaignDetails)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"CampaignDetails": updated})
}

type campaignSearchEnvelope struct {
	RequestInfo    models.RequestInfo            `json:"RequestInfo"`
	SearchCriteria models.CampaignSearchCriteria `json:"CampaignSearchCriteria"`
}

// SearchCampaigns returns campaigns matching the criteria.
func (h *ResourceHandler) SearchCampaigns(c *gin.Context) {
	var body campaignSearchEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}
	if err := checkTenant(body.SearchCriteria.TenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}

	campaigns, err := h.campaigns.Search(c.Request.Context(), body.SearchCriteria)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"CampaignDetails": campaigns})
}

// RetryCampaign re-announces an existing campaign downstream.
func (h *ResourceHandler) RetryCampaign(c *gin.Context) {
	var body requestEnvelope
	if err := c.ShouldBindJSON(&body); err != nil {
		h.writeError(c, apperrors.Wrap(apperrors.ValidationError, err))
		return
	}

	tenantID := c.Query("tenantId")
	if err := checkTenant(tenantID, body.RequestInfo); err != nil {
		h.writeError(c, err)
		return
	}
	id := c.Query("id")
	if id == "" {
		h.writeError(c, apperrors.New(apperrors.ValidationError).WithDescription("id is required"))
		return
	}

	retried, err := h.campaigns.Retry(c.Request.Context(), tenantID, id, body.RequestInfo.UserInfo.UUID)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"CampaignDetails": retried})
}

// HealthCheck reports service liveness.
func (h *ResourceHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "service": "resource-factory"})
}

func (h *ResourceHandler) writeError(c *gin.Context, err error) {
	appErr := apperrors.From(err)
	if appErr.Status >= http.StatusInternalServerError {
		h.logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
			zap.Error(err),
		)
	} else {
		h.logger.Info("request rejected",
			zap.String("path", c.FullPath()),
			zap.String("code", appErr.Code),
		)
	}
	c.JSON(appErr.Status, apperrors.NewEnvelope(appErr))
}
