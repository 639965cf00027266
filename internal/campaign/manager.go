package campaign

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/database"
	"github.com/campaignops/resource-factory/internal/metrics"
	"github.com/campaignops/resource-factory/internal/models"
)

// Campaign statuses.
const (
	StatusCreated = "created"
	StatusActive  = "active"
	StatusRetried = "retried"
)

// Store persists campaign rows.
type Store interface {
	Create(ctx context.Context, campaign *models.CampaignDetails) error
	Update(ctx context.Context, campaign *models.CampaignDetails) error
	GetByID(ctx context.Context, tenantID, id string) (*models.CampaignDetails, error)
	Search(ctx context.Context, criteria models.CampaignSearchCriteria) ([]*models.CampaignDetails, error)
}

// Publisher emits campaign events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// Manager owns the project-type campaign operations.
type Manager struct {
	store    Store
	producer Publisher
	topics   config.KafkaTopics
	metrics  *metrics.Collector
	logger   *zap.Logger
}

// NewManager wires a campaign manager.
func NewManager(store Store, producer Publisher, topics config.KafkaTopics, collector *metrics.Collector, logger *zap.Logger) *Manager {
	return &Manager{
		store:    store,
		producer: producer,
		topics:   topics,
		metrics:  metrics.Ensure(collector),
		logger:   logger,
	}
}

// Request carries campaign fields for create and update.
type Request struct {
	ID            string                        `json:"id,omitempty"`
	TenantID      string                        `json:"tenantId"`
	Name          string                        `json:"campaignName"`
	ProjectType   string                        `json:"projectType"`
	HierarchyType string                        `json:"hierarchyType,omitempty"`
	Boundaries    []models.BoundaryRelationship `json:"boundaries,omitempty"`
	DeliveryRules []models.DeliveryRule         `json:"deliveryRules,omitempty"`
	RequestedBy   string                        `json:"-"`
}

func (r *Request) validate() error {
	if r.TenantID == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	if r.Name == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("campaignName is required")
	}
	if r.ProjectType == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("projectType is required")
	}
	// Reject malformed conditions before anything is persisted.
	if _, err := EncodeRules(r.DeliveryRules); err != nil {
		return err
	}
	return nil
}

// Create records a new campaign and announces it.
func (m *Manager) Create(ctx context.Context, req Request) (*models.CampaignDetails, error) {
	m.metrics.IncCampaignRequests()
	if err := req.validate(); err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}

	now := models.NowMillis()
	campaign := &models.CampaignDetails{
		ID:            uuid.NewString(),
		TenantID:      req.TenantID,
		Name:          req.Name,
		ProjectType:   req.ProjectType,
		HierarchyType: req.HierarchyType,
		Status:        StatusCreated,
		Boundaries:    req.Boundaries,
		DeliveryRules: req.DeliveryRules,
		AuditDetails: models.AuditDetails{
			CreatedBy:        req.RequestedBy,
			CreatedTime:      now,
			LastModifiedBy:   req.RequestedBy,
			LastModifiedTime: now,
		},
	}
	if err := m.store.Create(ctx, campaign); err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}

	m.publish(ctx, campaign)
	m.logger.Info("campaign created",
		zap.String("campaign_id", campaign.ID),
		zap.String("tenant_id", campaign.TenantID),
		zap.String("project_type", campaign.ProjectType),
	)
	return campaign, nil
}

// Update replaces the mutable fields of an existing campaign and
// announces the new state.
func (m *Manager) Update(ctx context.Context, req Request) (*models.CampaignDetails, error) {
	m.metrics.IncCampaignRequests()
	if req.ID == "" {
		m.metrics.IncCampaignErrors()
		return nil, apperrors.New(apperrors.ValidationError).WithDescription("id is required")
	}
	if err := req.validate(); err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}

	campaign, err := m.store.GetByID(ctx, req.TenantID, req.ID)
	if err != nil {
		m.metrics.IncCampaignErrors()
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.ValidationError, "no campaign with id %s", req.ID)
		}
		return nil, err
	}

	campaign.Name = req.Name
	campaign.ProjectType = req.ProjectType
	campaign.HierarchyType = req.HierarchyType
	campaign.Boundaries = req.Boundaries
	campaign.DeliveryRules = req.DeliveryRules
	campaign.AuditDetails.LastModifiedBy = req.RequestedBy
	campaign.AuditDetails.LastModifiedTime = models.NowMillis()

	if err := m.store.Update(ctx, campaign); err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}

	m.publish(ctx, campaign)
	m.logger.Info("campaign updated", zap.String("campaign_id", campaign.ID))
	return campaign, nil
}

// Search returns campaigns matching the criteria.
func (m *Manager) Search(ctx context.Context, criteria models.CampaignSearchCriteria) ([]*models.CampaignDetails, error) {
	m.metrics.IncCampaignRequests()
	if criteria.TenantID == "" {
		m.metrics.IncCampaignErrors()
		return nil, apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	campaigns, err := m.store.Search(ctx, criteria)
	if err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}
	return campaigns, nil
}

// Retry re-announces an existing campaign so downstream consumers that
// missed or failed on the original event process it again.
func (m *Manager) Retry(ctx context.Context, tenantID, id, requestedBy string) (*models.CampaignDetails, error) {
	m.metrics.IncCampaignRequests()
	campaign, err := m.store.GetByID(ctx, tenantID, id)
	if err != nil {
		m.metrics.IncCampaignErrors()
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.ValidationError, "no campaign with id %s", id)
		}
		return nil, err
	}

	campaign.Status = StatusRetried
	campaign.AuditDetails.LastModifiedBy = requestedBy
	campaign.AuditDetails.LastModifiedTime = models.NowMillis()
	if err := m.store.Update(ctx, campaign); err != nil {
		m.metrics.IncCampaignErrors()
		return nil, err
	}

	m.publish(ctx, campaign)
	m.logger.Info("campaign retried", zap.String("campaign_id", campaign.ID))
	return campaign, nil
}

// campaignEvent is the wire shape of campaign announcements. Conditions
// carries the compact encodings consumers parse.
type campaignEvent struct {
	CampaignDetails *models.CampaignDetails `json:"CampaignDetails"`
	Conditions      map[string][]string     `json:"conditions,omitempty"`
}

func (m *Manager) publish(ctx context.Context, campaign *models.CampaignDetails) {
	if m.producer == nil {
		return
	}
	conditions, err := EncodeRules(campaign.DeliveryRules)
	if err != nil {
		// Rules were validated on the way in; this is a programming error.
		m.logger.Error("failed to encode delivery rules", zap.String("campaign_id", campaign.ID), zap.Error(err))
		return
	}
	event := campaignEvent{CampaignDetails: campaign, Conditions: conditions}
	if err := m.producer.Publish(ctx, m.topics.CampaignEvents, campaign.ID, event); err != nil {
		m.metrics.IncKafkaMessageErrors()
		m.logger.Error("failed to publish campaign event",
			zap.String("campaign_id", campaign.ID),
			zap.Error(fmt.Errorf("topic %s: %w", m.topics.CampaignEvents, err)),
		)
		return
	}
	m.metrics.IncKafkaMessages()
}
