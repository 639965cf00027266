package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/cache"
	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/database"
	"github.com/campaignops/resource-factory/internal/localization"
	"github.com/campaignops/resource-factory/internal/metrics"
	"github.com/campaignops/resource-factory/internal/models"
	"github.com/campaignops/resource-factory/internal/schema"
	"github.com/campaignops/resource-factory/internal/workbook"
)

// Background jobs get their own deadline; request contexts are gone by
// the time the pipeline runs.
const jobTimeout = 15 * time.Minute

// JobStore persists resource job rows. Terminal statuses are sticky at
// the store level.
type JobStore interface {
	Create(ctx context.Context, resource *models.ResourceDetails) error
	UpdateStatus(ctx context.Context, id string, update database.StatusUpdate) error
	UpdateFileStoreID(ctx context.Context, id, fileStoreID string) error
	GetByID(ctx context.Context, id string) (*models.ResourceDetails, error)
	Search(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error)
	FindLatest(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.ResourceDetails, error)
	ExpireStale(ctx context.Context, tenantID, resourceType, hierarchyType, modifiedBy string, modifiedTime int64) error
}

// TemplateBuilder produces downloadable workbook templates.
type TemplateBuilder interface {
	BuildTemplate(ctx context.Context, in workbook.TemplateInput) (*workbook.Artifact, error)
}

// SheetValidator downloads and validates one uploaded sheet.
type SheetValidator interface {
	Validate(ctx context.Context, in workbook.ValidateInput) (*workbook.Dataset, error)
}

// FileStore uploads finished artifacts.
type FileStore interface {
	Upload(ctx context.Context, tenantID, module, filename string, content []byte) (string, error)
}

// SchemaSource resolves column descriptors for a resource type.
type SchemaSource interface {
	ResolveColumns(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.SchemaDefinition, []schema.Column, error)
}

// LocaleSource resolves localization maps.
type LocaleSource interface {
	Messages(ctx context.Context, tenantID, module, locale string) (localization.Map, error)
	MessagesForHierarchy(ctx context.Context, tenantID, hierarchyType, locale string) (localization.Map, error)
}

// BoundarySource resolves hierarchy definitions and existing boundary data.
type BoundarySource interface {
	FetchHierarchy(ctx context.Context, tenantID, hierarchyType string) (*models.BoundaryHierarchy, error)
	FetchRelationships(ctx context.Context, tenantID, hierarchyType, rootCode string) ([]models.BoundaryRelationship, error)
}

// Publisher emits job lifecycle events.
type Publisher interface {
	Publish(ctx context.Context, topic, key string, payload interface{}) error
}

// Orchestrator turns an accepted boundary dataset into boundary entities,
// relationships and localization messages. It returns details to merge
// into the job row.
type Orchestrator interface {
	Execute(ctx context.Context, job *models.ResourceDetails, ds *workbook.Dataset, hierarchy *models.BoundaryHierarchy, locale string) (map[string]interface{}, error)
}

// Engine drives the generate and process job lifecycles.
type Engine struct {
	cfg          *config.Config
	generated    JobStore
	processed    JobStore
	builder      TemplateBuilder
	validator    SheetValidator
	files        FileStore
	schemas      SchemaSource
	locales      LocaleSource
	boundaries   BoundarySource
	producer     Publisher
	orchestrator Orchestrator
	debounce     *cache.Loader
	metrics      *metrics.Collector
	logger       *zap.Logger
}

// NewEngine wires the lifecycle engine.
func NewEngine(
	cfg *config.Config,
	generated, processed JobStore,
	builder TemplateBuilder,
	validator SheetValidator,
	files FileStore,
	schemas SchemaSource,
	locales LocaleSource,
	boundaries BoundarySource,
	producer Publisher,
	orchestrator Orchestrator,
	store cache.Store,
	collector *metrics.Collector,
	logger *zap.Logger,
) *Engine {
	return &Engine{
		cfg:          cfg,
		generated:    generated,
		processed:    processed,
		builder:      builder,
		validator:    validator,
		files:        files,
		schemas:      schemas,
		locales:      locales,
		boundaries:   boundaries,
		producer:     producer,
		orchestrator: orchestrator,
		debounce:     cache.NewLoader(store),
		metrics:      metrics.Ensure(collector),
		logger:       logger,
	}
}

// GenerateRequest asks for a fresh template workbook.
type GenerateRequest struct {
	TenantID      string `json:"tenantId"`
	ResourceType  string `json:"type"`
	HierarchyType string `json:"hierarchyType"`
	CampaignID    string `json:"campaignId,omitempty"`
	Locale        string `json:"locale,omitempty"`
	ForceUpdate   bool   `json:"forceUpdate,omitempty"`
	RequestedBy   string `json:"-"`
}

func (r *GenerateRequest) validate() error {
	if r.TenantID == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	if !models.IsKnownResourceType(r.ResourceType) {
		return apperrors.Newf(apperrors.ValidationError, "unknown resource type %q", r.ResourceType)
	}
	if r.HierarchyType == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("hierarchyType is required")
	}
	return nil
}

// Generate records a generation job and runs it in the background.
// Repeated identical requests inside the debounce window return the job
// already in flight; forceUpdate expires stale jobs and starts fresh.
func (e *Engine) Generate(ctx context.Context, req GenerateRequest) (*models.ResourceDetails, error) {
	e.metrics.IncGenerateRequests()
	if err := req.validate(); err != nil {
		e.metrics.IncGenerateErrors()
		return nil, err
	}
	if req.Locale == "" {
		req.Locale = e.cfg.Generation.DefaultLocale
	}

	key := generateKey(req.TenantID, req.ResourceType, req.HierarchyType)
	if req.ForceUpdate {
		if err := e.generated.ExpireStale(ctx, req.TenantID, req.ResourceType, req.HierarchyType, req.RequestedBy, models.NowMillis()); err != nil {
			e.metrics.IncGenerateErrors()
			return nil, fmt.Errorf("failed to expire stale generation jobs: %w", err)
		}
		if err := e.debounce.Invalidate(ctx, key); err != nil {
			e.logger.Warn("failed to invalidate generation debounce key", zap.String("key", key), zap.Error(err))
		}
	}

	job, err := e.debouncedJob(ctx, key, req)
	if err != nil {
		e.metrics.IncGenerateErrors()
		return nil, err
	}
	return job, nil
}

// debouncedJob returns the cached in-flight job when one exists, the
// database being authoritative: a cached id whose row is gone or already
// dead is discarded and a fresh job is started.
func (e *Engine) debouncedJob(ctx context.Context, key string, req GenerateRequest) (*models.ResourceDetails, error) {
	for attempt := 0; attempt < 2; attempt++ {
		id, err := e.debounce.GetOrLoad(ctx, key, e.cfg.Generation.CacheTTL, func(ctx context.Context) (string, error) {
			return e.startGeneration(ctx, req)
		})
		if err != nil {
			return nil, err
		}

		job, err := e.generated.GetByID(ctx, id)
		if err == nil && job.Status != models.StatusFailed && job.Status != models.StatusExpired {
			return job, nil
		}
		if err != nil && !errors.Is(err, database.ErrNotFound) {
			return nil, err
		}
		if err := e.debounce.Invalidate(ctx, key); err != nil {
			return nil, err
		}
	}
	return nil, apperrors.New(apperrors.InternalServerError).WithDescription("generation job could not be scheduled")
}

func (e *Engine) startGeneration(ctx context.Context, req GenerateRequest) (string, error) {
	now := models.NowMillis()
	job := &models.ResourceDetails{
		ID:            uuid.NewString(),
		Type:          req.ResourceType,
		TenantID:      req.TenantID,
		HierarchyType: req.HierarchyType,
		Status:        models.StatusInProgress,
		Action:        models.ActionCreate,
		CampaignID:    req.CampaignID,
		AuditDetails: models.AuditDetails{
			CreatedBy:        req.RequestedBy,
			CreatedTime:      now,
			LastModifiedBy:   req.RequestedBy,
			LastModifiedTime: now,
		},
	}
	if err := e.generated.Create(ctx, job); err != nil {
		return "", fmt.Errorf("failed to record generation job: %w", err)
	}

	e.logger.Info("generation job scheduled",
		zap.String("job_id", job.ID),
		zap.String("tenant_id", req.TenantID),
		zap.String("type", req.ResourceType),
		zap.String("hierarchy_type", req.HierarchyType),
	)
	go e.runGeneration(job, req)
	return job.ID, nil
}

func (e *Engine) runGeneration(job *models.ResourceDetails, req GenerateRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	e.metrics.JobStarted()
	defer e.metrics.JobFinished()
	started := time.Now()

	artifact, err := e.buildArtifact(ctx, req)
	if err != nil {
		e.failJob(ctx, e.generated, job, err)
		e.metrics.IncGenerateErrors()
		return
	}

	fileStoreID, err := e.files.Upload(ctx, req.TenantID, e.cfg.Generation.DefaultModule, artifact.Filename, artifact.Content)
	if err != nil {
		e.failJob(ctx, e.generated, job, err)
		e.metrics.IncGenerateErrors()
		return
	}
	if err := e.generated.UpdateFileStoreID(ctx, job.ID, fileStoreID); err != nil {
		e.failJob(ctx, e.generated, job, err)
		e.metrics.IncGenerateErrors()
		return
	}

	if err := e.generated.UpdateStatus(ctx, job.ID, database.StatusUpdate{
		Status:       models.StatusCompleted,
		ModifiedBy:   req.RequestedBy,
		ModifiedTime: models.NowMillis(),
	}); err != nil {
		e.logger.Error("failed to complete generation job", zap.String("job_id", job.ID), zap.Error(err))
		return
	}

	job.FileStoreID = fileStoreID
	job.Status = models.StatusCompleted
	e.metrics.ObserveGenerate(time.Since(started), len(artifact.Content))
	e.metrics.JobCompleted(time.Since(started))
	e.publishJob(ctx, e.cfg.Kafka.Topics.GeneratedResource, job)

	e.logger.Info("generation job completed",
		zap.String("job_id", job.ID),
		zap.String("file_store_id", fileStoreID),
		zap.Duration("took", time.Since(started)),
	)
}

// buildArtifact gathers schema, hierarchy, localization and existing
// boundary data concurrently, then renders the workbook.
func (e *Engine) buildArtifact(ctx context.Context, req GenerateRequest) (*workbook.Artifact, error) {
	var (
		columns   []schema.Column
		hierarchy *models.BoundaryHierarchy
		localizer localization.Map
		existing  []models.BoundaryRelationship
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, cols, err := e.schemas.ResolveColumns(gctx, req.TenantID, req.ResourceType, req.HierarchyType)
		if err != nil {
			return err
		}
		columns = cols
		return nil
	})
	g.Go(func() error {
		h, err := e.boundaries.FetchHierarchy(gctx, req.TenantID, req.HierarchyType)
		if err != nil {
			return err
		}
		hierarchy = h
		return nil
	})
	g.Go(func() error {
		m, err := e.locales.MessagesForHierarchy(gctx, req.TenantID, req.HierarchyType, req.Locale)
		if err != nil {
			return err
		}
		localizer = m
		return nil
	})
	g.Go(func() error {
		rels, err := e.boundaries.FetchRelationships(gctx, req.TenantID, req.HierarchyType, "")
		if err != nil {
			return err
		}
		existing = rels
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	return e.builder.BuildTemplate(ctx, workbook.TemplateInput{
		TenantID:      req.TenantID,
		ResourceType:  req.ResourceType,
		HierarchyType: req.HierarchyType,
		Hierarchy:     hierarchy,
		Columns:       columns,
		Existing:      existing,
		Localizer:     localizer,
	})
}

// ProcessRequest asks for validation, and optionally persistence, of an
// uploaded sheet.
type ProcessRequest struct {
	TenantID      string `json:"tenantId"`
	ResourceType  string `json:"type"`
	HierarchyType string `json:"hierarchyType,omitempty"`
	FileStoreID   string `json:"fileStoreId"`
	Action        string `json:"action"`
	CampaignID    string `json:"campaignId,omitempty"`
	ReferenceID   string `json:"referenceId,omitempty"`
	Locale        string `json:"locale,omitempty"`
	RequestedBy   string `json:"-"`
}

func (r *ProcessRequest) validate() error {
	if r.TenantID == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	if !models.IsKnownResourceType(r.ResourceType) {
		return apperrors.Newf(apperrors.ValidationError, "unknown resource type %q", r.ResourceType)
	}
	if r.Action != models.ActionCreate && r.Action != models.ActionValidate {
		return apperrors.Newf(apperrors.ValidationError, "unknown action %q", r.Action)
	}
	if r.FileStoreID == "" {
		return apperrors.New(apperrors.ValidationError).WithDescription("fileStoreId is required")
	}
	return nil
}

// Process records a processing job and runs validation, and for the
// create action persistence, in the background. The returned row is the
// job in validation-started state; callers poll via Search.
func (e *Engine) Process(ctx context.Context, req ProcessRequest) (*models.ResourceDetails, error) {
	e.metrics.IncProcessRequests()
	if err := req.validate(); err != nil {
		e.metrics.IncProcessErrors()
		return nil, err
	}
	if req.Locale == "" {
		req.Locale = e.cfg.Generation.DefaultLocale
	}

	now := models.NowMillis()
	job := &models.ResourceDetails{
		ID:            uuid.NewString(),
		Type:          req.ResourceType,
		TenantID:      req.TenantID,
		HierarchyType: req.HierarchyType,
		FileStoreID:   req.FileStoreID,
		Status:        models.StatusValidationStarted,
		Action:        req.Action,
		CampaignID:    req.CampaignID,
		ReferenceID:   req.ReferenceID,
		AuditDetails: models.AuditDetails{
			CreatedBy:        req.RequestedBy,
			CreatedTime:      now,
			LastModifiedBy:   req.RequestedBy,
			LastModifiedTime: now,
		},
	}
	if err := e.processed.Create(ctx, job); err != nil {
		e.metrics.IncProcessErrors()
		return nil, fmt.Errorf("failed to record processing job: %w", err)
	}

	e.logger.Info("processing job scheduled",
		zap.String("job_id", job.ID),
		zap.String("tenant_id", req.TenantID),
		zap.String("type", req.ResourceType),
		zap.String("action", req.Action),
	)
	go e.runProcessing(job, req)
	return job, nil
}

func (e *Engine) runProcessing(job *models.ResourceDetails, req ProcessRequest) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	e.metrics.JobStarted()
	defer e.metrics.JobFinished()
	started := time.Now()

	ds, hierarchy, err := e.validateUpload(ctx, req)
	if err != nil {
		appErr := apperrors.From(err)
		if appErr.IsValidation() {
			e.markInvalid(ctx, job, req.RequestedBy, appErr)
		} else {
			e.failJob(ctx, e.processed, job, err)
		}
		e.metrics.IncProcessErrors()
		return
	}

	rejected := 0
	e.metrics.ObserveValidation(len(ds.Rows), rejected)

	if req.Action == models.ActionValidate {
		e.finishJob(ctx, job, req.RequestedBy, models.StatusCompleted, nil)
		e.metrics.JobCompleted(time.Since(started))
		return
	}

	e.finishJob(ctx, job, req.RequestedBy, models.StatusDataAccepted, nil)

	var details map[string]interface{}
	if e.orchestrator != nil {
		details, err = e.orchestrator.Execute(ctx, job, ds, hierarchy, req.Locale)
		if err != nil {
			appErr := apperrors.From(err)
			if appErr.IsValidation() {
				e.markInvalid(ctx, job, req.RequestedBy, appErr)
			} else {
				e.failJob(ctx, e.processed, job, err)
			}
			e.metrics.IncProcessErrors()
			return
		}
	}

	e.finishJob(ctx, job, req.RequestedBy, models.StatusCompleted, details)
	e.metrics.JobCompleted(time.Since(started))
	e.logger.Info("processing job completed",
		zap.String("job_id", job.ID),
		zap.Int("rows", len(ds.Rows)),
		zap.Duration("took", time.Since(started)),
	)
}

// validateUpload resolves the expected sheet shape and validates the
// uploaded file against it.
func (e *Engine) validateUpload(ctx context.Context, req ProcessRequest) (*workbook.Dataset, *models.BoundaryHierarchy, error) {
	_, columns, err := e.schemas.ResolveColumns(ctx, req.TenantID, req.ResourceType, req.HierarchyType)
	if err != nil {
		return nil, nil, err
	}

	hierarchy := &models.BoundaryHierarchy{TenantID: req.TenantID, HierarchyType: req.HierarchyType}
	if req.HierarchyType != "" {
		hierarchy, err = e.boundaries.FetchHierarchy(ctx, req.TenantID, req.HierarchyType)
		if err != nil {
			return nil, nil, err
		}
	}

	var localizer localization.Map
	if req.HierarchyType != "" {
		localizer, err = e.locales.MessagesForHierarchy(ctx, req.TenantID, req.HierarchyType, req.Locale)
	} else {
		localizer, err = e.locales.Messages(ctx, req.TenantID, "", req.Locale)
	}
	if err != nil {
		return nil, nil, err
	}

	expected := workbook.ExpectedHeaders(workbook.TemplateInput{
		HierarchyType: req.HierarchyType,
		Hierarchy:     hierarchy,
		Columns:       columns,
		Localizer:     localizer,
	})

	rootColumn := ""
	if len(hierarchy.Levels) > 0 {
		rootColumn = localizer.LocalizedName(workbook.HierarchyColumnCode(req.HierarchyType, hierarchy.Levels[0].BoundaryType))
	}

	ds, err := e.validator.Validate(ctx, workbook.ValidateInput{
		TenantID:        req.TenantID,
		FileStoreID:     req.FileStoreID,
		SheetName:       workbook.DataSheetName(localizer),
		ExpectedHeaders: expected,
		RootColumn:      rootColumn,
		Columns:         localizeColumns(columns, localizer),
	})
	if err != nil {
		return nil, nil, err
	}
	return ds, hierarchy, nil
}

// localizeColumns rewrites descriptor names into the header text the
// sheet actually carries. Hidden columns never appear in templates.
func localizeColumns(columns []schema.Column, localizer localization.Map) []schema.Column {
	out := make([]schema.Column, 0, len(columns))
	for _, col := range columns {
		if col.Hidden {
			continue
		}
		col.Name = localizer.LocalizedName(col.Name)
		out = append(out, col)
	}
	return out
}

// PollDelay suggests how long a caller should wait before polling a
// processing job, scaled by sheet size and capped.
func (e *Engine) PollDelay(rows int) time.Duration {
	delay := time.Duration(rows) * e.cfg.Processing.BaseDelayPerRow
	if delay > e.cfg.Processing.MaxWaitCap {
		return e.cfg.Processing.MaxWaitCap
	}
	return delay
}

// SearchGenerated returns generation job rows for the criteria.
func (e *Engine) SearchGenerated(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error) {
	return e.search(ctx, e.generated, criteria)
}

// SearchProcessed returns processing job rows for the criteria.
func (e *Engine) SearchProcessed(ctx context.Context, criteria models.SearchCriteria) ([]*models.ResourceDetails, error) {
	return e.search(ctx, e.processed, criteria)
}

func (e *Engine) search(ctx context.Context, store JobStore, criteria models.SearchCriteria) ([]*models.ResourceDetails, error) {
	e.metrics.IncSearchRequests()
	if criteria.TenantID == "" {
		e.metrics.IncSearchErrors()
		return nil, apperrors.New(apperrors.ValidationError).WithDescription("tenantId is required")
	}
	rows, err := store.Search(ctx, criteria)
	if err != nil {
		e.metrics.IncSearchErrors()
		return nil, err
	}
	return rows, nil
}

// Retry reruns a finished processing job as a brand new job row. The
// original row keeps its terminal status; the new row references it.
func (e *Engine) Retry(ctx context.Context, tenantID, id, requestedBy string) (*models.ResourceDetails, error) {
	prior, err := e.processed.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, apperrors.Newf(apperrors.ValidationError, "no processing job with id %s", id)
		}
		return nil, err
	}
	if prior.TenantID != tenantID {
		return nil, apperrors.New(apperrors.ValidationError).WithDescription("tenantId does not match the requested job")
	}
	// A job still moving through the pipeline must not spawn a second
	// concurrent run for the same upload.
	if !models.IsTerminalStatus(prior.Status) {
		return nil, apperrors.Newf(apperrors.ValidationError,
			"job %s is still %s and cannot be retried", prior.ID, prior.Status)
	}

	return e.Process(ctx, ProcessRequest{
		TenantID:      prior.TenantID,
		ResourceType:  prior.Type,
		HierarchyType: prior.HierarchyType,
		FileStoreID:   prior.FileStoreID,
		Action:        prior.Action,
		CampaignID:    prior.CampaignID,
		ReferenceID:   prior.ID,
		RequestedBy:   requestedBy,
	})
}

func (e *Engine) finishJob(ctx context.Context, job *models.ResourceDetails, by, status string, details map[string]interface{}) {
	update := database.StatusUpdate{
		Status:            status,
		AdditionalDetails: details,
		ModifiedBy:        by,
		ModifiedTime:      models.NowMillis(),
	}
	if err := e.processed.UpdateStatus(ctx, job.ID, update); err != nil {
		e.logger.Error("failed to update job status",
			zap.String("job_id", job.ID),
			zap.String("status", status),
			zap.Error(err),
		)
		return
	}
	job.Status = status
	if details != nil {
		job.AdditionalDetails = details
	}
	e.publishJob(ctx, e.cfg.Kafka.Topics.ProcessedResource, job)
}

// markInvalid records validation failures on the job row so callers can
// read them back verbatim.
func (e *Engine) markInvalid(ctx context.Context, job *models.ResourceDetails, by string, appErr *apperrors.Error) {
	details := map[string]interface{}{
		"errors": apperrors.NewEnvelope(appErr).Errors,
	}
	if err := e.processed.UpdateStatus(ctx, job.ID, database.StatusUpdate{
		Status:            models.StatusInvalid,
		AdditionalDetails: details,
		ModifiedBy:        by,
		ModifiedTime:      models.NowMillis(),
	}); err != nil {
		e.logger.Error("failed to mark job invalid", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.Status = models.StatusInvalid
	job.AdditionalDetails = details
	e.metrics.JobFailed()
	e.publishJob(ctx, e.cfg.Kafka.Topics.ProcessedResource, job)
	e.logger.Info("job marked invalid", zap.String("job_id", job.ID), zap.String("reason", appErr.Message))
}

func (e *Engine) failJob(ctx context.Context, store JobStore, job *models.ResourceDetails, cause error) {
	appErr := apperrors.From(cause)
	details := map[string]interface{}{
		"error":     appErr.Message,
		"errorCode": appErr.Code,
	}
	if appErr.Description != "" {
		details["description"] = appErr.Description
	}
	if err := store.UpdateStatus(ctx, job.ID, database.StatusUpdate{
		Status:            models.StatusFailed,
		AdditionalDetails: details,
		ModifiedBy:        job.AuditDetails.CreatedBy,
		ModifiedTime:      models.NowMillis(),
	}); err != nil {
		e.logger.Error("failed to mark job failed", zap.String("job_id", job.ID), zap.Error(err))
		return
	}
	job.Status = models.StatusFailed
	job.AdditionalDetails = details
	e.metrics.JobFailed()
	e.publishJob(ctx, e.cfg.Kafka.Topics.ErrorEvents, job)
	e.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(cause))
}

type resourceEvent struct {
	ResourceDetails *models.ResourceDetails `json:"ResourceDetails"`
}

func (e *Engine) publishJob(ctx context.Context, topic string, job *models.ResourceDetails) {
	if e.producer == nil {
		return
	}
	if err := e.producer.Publish(ctx, topic, job.ID, resourceEvent{ResourceDetails: job}); err != nil {
		e.metrics.IncKafkaMessageErrors()
		e.logger.Error("failed to publish job event",
			zap.String("job_id", job.ID),
			zap.String("topic", topic),
			zap.Error(err),
		)
		return
	}
	e.metrics.IncKafkaMessages()
}

func generateKey(tenantID, resourceType, hierarchyType string) string {
	return fmt.Sprintf("generate:%s:%s:%s", tenantID, resourceType, hierarchyType)
}
