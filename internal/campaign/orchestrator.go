package campaign

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/batch"
	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/localization"
	"github.com/campaignops/resource-factory/internal/metrics"
	"github.com/campaignops/resource-factory/internal/models"
	"github.com/campaignops/resource-factory/internal/workbook"
)

const relationshipRetryBackoff = 2 * time.Second

// BoundaryService is the slice of the boundary client the orchestrator
// needs.
type BoundaryService interface {
	FetchRelationships(ctx context.Context, tenantID, hierarchyType, rootCode string) ([]models.BoundaryRelationship, error)
	CreateEntities(ctx context.Context, tenantID string, entities []models.BoundaryEntity) error
	CreateRelationship(ctx context.Context, tenantID, hierarchyType string, rel models.BoundaryRelationship) error
}

// LocalizationService is the slice of the localization client the
// orchestrator needs.
type LocalizationService interface {
	Upsert(ctx context.Context, tenantID string, messages []models.LocalizationMessage) error
	CacheBust(ctx context.Context, tenantID string) error
}

// Orchestrator persists an accepted boundary dataset: it mints codes for
// new nodes, creates entities and relationships parent first, and pushes
// display names into localization in rate-limited chunks.
type Orchestrator struct {
	cfg        config.ProcessingConfig
	boundaries BoundaryService
	locales    LocalizationService
	metrics    *metrics.Collector
	logger     *zap.Logger
}

// NewOrchestrator wires a campaign orchestrator.
func NewOrchestrator(cfg config.ProcessingConfig, boundaries BoundaryService, locales LocalizationService, collector *metrics.Collector, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		cfg:        cfg,
		boundaries: boundaries,
		locales:    locales,
		metrics:    metrics.Ensure(collector),
		logger:     logger,
	}
}

// newNode is a boundary discovered in the sheet that does not exist in
// the tenant tree yet. Nodes are recorded in parent-first order.
type newNode struct {
	rel  models.BoundaryRelationship
	name string
}

// Execute runs the orchestration for one accepted processing job. Types
// without boundary data pass through untouched. The returned map is
// merged into the job row so skipped work is visible to callers.
func (o *Orchestrator) Execute(ctx context.Context, job *models.ResourceDetails, ds *workbook.Dataset, hierarchy *models.BoundaryHierarchy, locale string) (map[string]interface{}, error) {
	if job.Type != models.TypeBoundary && job.Type != models.TypeBoundaryWithTarget {
		return nil, nil
	}
	if hierarchy == nil || len(hierarchy.Levels) == 0 {
		return nil, apperrors.New(apperrors.ValidationError).WithDescription("boundary data requires a hierarchy definition")
	}
	started := time.Now()

	existing, err := o.boundaries.FetchRelationships(ctx, job.TenantID, job.HierarchyType, "")
	if err != nil {
		return nil, err
	}

	nodes, err := o.collectNewNodes(ds, hierarchy, existing)
	if err != nil {
		return nil, err
	}
	if len(nodes) == 0 {
		o.logger.Info("no new boundaries in sheet", zap.String("job_id", job.ID))
		return map[string]interface{}{"boundariesCreated": 0}, nil
	}

	if err := o.createBoundaries(ctx, job, nodes); err != nil {
		return nil, err
	}

	details := map[string]interface{}{"boundariesCreated": len(nodes)}
	skipped, chunks, err := o.localizeNames(ctx, job, nodes, locale)
	if err != nil {
		return nil, err
	}
	if len(skipped) > 0 {
		details["skippedLocalizationChunks"] = skipped
	}

	o.metrics.ObserveOrchestration(time.Since(started), len(nodes), chunks, len(skipped))
	o.logger.Info("boundary orchestration finished",
		zap.String("job_id", job.ID),
		zap.Int("created", len(nodes)),
		zap.Int("localization_chunks", chunks),
		zap.Int("skipped_chunks", len(skipped)),
	)
	return details, nil
}

// collectNewNodes walks every row path root-to-leaf, reusing existing
// codes and minting new ones. A filled cell below an empty one means the
// row declares a child without its parent; those rows are rejected
// together.
func (o *Orchestrator) collectNewNodes(ds *workbook.Dataset, hierarchy *models.BoundaryHierarchy, existing []models.BoundaryRelationship) ([]newNode, error) {
	levelHeaders := ds.Headers[:len(hierarchy.Levels)]
	assigner := newCodeAssigner(existing)

	var nodes []newNode
	var gaps []string
	seen := make(map[string]bool)

	for _, row := range ds.Rows {
		parentCode := ""
		pathEnded := false
		for i, header := range levelHeaders {
			name := row.Value(header)
			if name == "" {
				pathEnded = true
				continue
			}
			if pathEnded {
				gaps = append(gaps, fmt.Sprintf("Row %d: %s is set but its parent level is empty", row.Number, header))
				break
			}

			code, created := assigner.Assign(parentCode, name)
			if created && !seen[code] {
				seen[code] = true
				nodes = append(nodes, newNode{
					rel: models.BoundaryRelationship{
						Code:         code,
						BoundaryType: hierarchy.Levels[i].BoundaryType,
						ParentCode:   parentCode,
						Name:         name,
					},
					name: name,
				})
			}
			parentCode = code
		}
	}

	if len(gaps) > 0 {
		return nil, apperrors.New(apperrors.ValidationError).WithDescription(strings.Join(gaps, "; "))
	}
	return nodes, nil
}

// createBoundaries creates entities in chunks, then relationships one by
// one in parent-first order. Both must fully succeed; a half-created
// tree is not recoverable by the uploader.
func (o *Orchestrator) createBoundaries(ctx context.Context, job *models.ResourceDetails, nodes []newNode) error {
	entities := make([]models.BoundaryEntity, len(nodes))
	for i, n := range nodes {
		entities[i] = models.BoundaryEntity{
			TenantID:     job.TenantID,
			Code:         n.rel.Code,
			BoundaryType: n.rel.BoundaryType,
			Name:         n.name,
		}
	}

	result, err := batch.Process(ctx, entities, batch.Options{
		Size:            o.cfg.ChunkSize,
		MaxRetries:      o.cfg.MaxRetries,
		RetryBackoff:    relationshipRetryBackoff,
		InterBatchDelay: o.cfg.InterChunkWait,
	}, o.logger, func(ctx context.Context, chunk []models.BoundaryEntity) error {
		return o.boundaries.CreateEntities(ctx, job.TenantID, chunk)
	})
	if err != nil {
		return err
	}
	if len(result.Failed) > 0 {
		return apperrors.Wrap(apperrors.BoundaryRelationshipCreateError, result.Failed[0].Err)
	}

	for _, n := range nodes {
		if err := o.createRelationshipWithRetry(ctx, job, n.rel); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) createRelationshipWithRetry(ctx context.Context, job *models.ResourceDetails, rel models.BoundaryRelationship) error {
	var lastErr error
	for attempt := 0; attempt <= o.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(relationshipRetryBackoff):
			}
		}
		if lastErr = o.boundaries.CreateRelationship(ctx, job.TenantID, job.HierarchyType, rel); lastErr == nil {
			return nil
		}
		o.logger.Warn("relationship create attempt failed",
			zap.String("code", rel.Code),
			zap.Int("attempt", attempt+1),
			zap.Error(lastErr),
		)
	}
	return apperrors.Wrap(apperrors.BoundaryRelationshipCreateError, lastErr)
}

// localizeNames upserts display names for the new codes in chunks. A
// chunk that exhausts its retries is skipped and reported, not fatal;
// the boundaries themselves already exist.
func (o *Orchestrator) localizeNames(ctx context.Context, job *models.ResourceDetails, nodes []newNode, locale string) ([]string, int, error) {
	module := localization.HierarchyModule(job.HierarchyType)
	messages := make([]models.LocalizationMessage, len(nodes))
	for i, n := range nodes {
		messages[i] = models.LocalizationMessage{
			Code:    n.rel.Code,
			Message: n.name,
			Module:  module,
			Locale:  locale,
		}
	}

	result, err := batch.Process(ctx, messages, batch.Options{
		Size:            o.cfg.ChunkSize,
		MaxRetries:      o.cfg.MaxRetries,
		RetryBackoff:    relationshipRetryBackoff,
		InterBatchDelay: o.cfg.InterChunkWait,
	}, o.logger, func(ctx context.Context, chunk []models.LocalizationMessage) error {
		return o.locales.Upsert(ctx, job.TenantID, chunk)
	})
	if err != nil {
		return nil, 0, err
	}

	var skipped []string
	for _, f := range result.Failed {
		skipped = append(skipped, fmt.Sprintf("chunk %d (%d messages) after %d attempts: %v", f.Index, f.Size, f.Attempts, f.Err))
	}

	if err := o.locales.CacheBust(ctx, job.TenantID); err != nil {
		o.logger.Warn("localization cache bust failed", zap.String("tenant_id", job.TenantID), zap.Error(err))
	}
	return skipped, result.Batches, nil
}
