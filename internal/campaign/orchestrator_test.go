package campaign

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/models"
	"github.com/campaignops/resource-factory/internal/workbook"
)

type fakeBoundaryService struct {
	existing      []models.BoundaryRelationship
	entities      []models.BoundaryEntity
	relationships []models.BoundaryRelationship
	entityErr     error
	upsertFails   bool
}

func (f *fakeBoundaryService) FetchRelationships(context.Context, string, string, string) ([]models.BoundaryRelationship, error) {
	return f.existing, nil
}

func (f *fakeBoundaryService) CreateEntities(_ context.Context, _ string, entities []models.BoundaryEntity) error {
	if f.entityErr != nil {
		return f.entityErr
	}
	f.entities = append(f.entities, entities...)
	return nil
}

func (f *fakeBoundaryService) CreateRelationship(_ context.Context, _, _ string, rel models.BoundaryRelationship) error {
	f.relationships = append(f.relationships, rel)
	return nil
}

type fakeLocalizationService struct {
	upserts    [][]models.LocalizationMessage
	upsertErr  error
	cacheBusts int
}

func (f *fakeLocalizationService) Upsert(_ context.Context, _ string, messages []models.LocalizationMessage) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.upserts = append(f.upserts, messages)
	return nil
}

func (f *fakeLocalizationService) CacheBust(context.Context, string) error {
	f.cacheBusts++
	return nil
}

func orchestratorConfig() config.ProcessingConfig {
	return config.ProcessingConfig{ChunkSize: 100, MaxRetries: 0}
}

func boundaryJob() *models.ResourceDetails {
	return &models.ResourceDetails{
		ID:            "job-1",
		Type:          models.TypeBoundary,
		TenantID:      "mz",
		HierarchyType: "HEALTH",
	}
}

func boundaryDataset(rows ...[]string) *workbook.Dataset {
	headers := []string{"Country", "Province", "Boundary Code"}
	ds := &workbook.Dataset{SheetName: "Boundary Data", Headers: headers}
	for i, row := range rows {
		values := make(map[string]string, len(headers))
		for j, h := range headers {
			if j < len(row) {
				values[h] = row[j]
			}
		}
		ds.Rows = append(ds.Rows, workbook.Row{Number: i + 2, Values: values})
	}
	return ds
}

func boundaryHierarchy() *models.BoundaryHierarchy {
	return &models.BoundaryHierarchy{
		TenantID:      "mz",
		HierarchyType: "HEALTH",
		Levels: []models.BoundaryTypeLevel{
			{BoundaryType: "COUNTRY"},
			{BoundaryType: "PROVINCE", ParentBoundaryType: "COUNTRY"},
		},
	}
}

func TestOrchestratorExecute(t *testing.T) {
	ctx := context.Background()

	t.Run("CreatesNewBoundariesParentFirst", func(t *testing.T) {
		boundaries := &fakeBoundaryService{}
		locales := &fakeLocalizationService{}
		o := NewOrchestrator(orchestratorConfig(), boundaries, locales, nil, zap.NewNop())

		ds := boundaryDataset(
			[]string{"Mozambique", "Maputo"},
			[]string{"Mozambique", "Gaza"},
		)
		details, err := o.Execute(ctx, boundaryJob(), ds, boundaryHierarchy(), "en_MZ")
		require.NoError(t, err)
		assert.Equal(t, 3, details["boundariesCreated"])

		require.Len(t, boundaries.relationships, 3)
		assert.Equal(t, "ADMIN_MOZAMBIQUE", boundaries.relationships[0].Code)
		assert.Equal(t, "", boundaries.relationships[0].ParentCode)
		assert.Equal(t, "ADMIN_MOZAMBIQUE", boundaries.relationships[1].ParentCode)
		assert.Equal(t, "ADMIN_MOZAMBIQUE", boundaries.relationships[2].ParentCode)
		assert.Equal(t, "COUNTRY", boundaries.relationships[0].BoundaryType)
		assert.Equal(t, "PROVINCE", boundaries.relationships[1].BoundaryType)

		require.Len(t, locales.upserts, 1)
		assert.Len(t, locales.upserts[0], 3)
		assert.Equal(t, "hcm-boundary-health", locales.upserts[0][0].Module)
		assert.Equal(t, 1, locales.cacheBusts)
	})

	t.Run("ReusesExistingNodes", func(t *testing.T) {
		boundaries := &fakeBoundaryService{existing: []models.BoundaryRelationship{
			{Code: "MZ", BoundaryType: "COUNTRY", Name: "Mozambique"},
			{Code: "MZ_01_MAPUTO", BoundaryType: "PROVINCE", ParentCode: "MZ", Name: "Maputo"},
		}}
		locales := &fakeLocalizationService{}
		o := NewOrchestrator(orchestratorConfig(), boundaries, locales, nil, zap.NewNop())

		ds := boundaryDataset(
			[]string{"Mozambique", "Maputo"},
			[]string{"Mozambique", "Gaza"},
		)
		details, err := o.Execute(ctx, boundaryJob(), ds, boundaryHierarchy(), "en_MZ")
		require.NoError(t, err)
		assert.Equal(t, 1, details["boundariesCreated"])
		require.Len(t, boundaries.relationships, 1)
		assert.Equal(t, "Gaza", boundaries.relationships[0].Name)
		assert.Equal(t, "MZ", boundaries.relationships[0].ParentCode)
	})

	t.Run("NoNewNodesSkipsWrites", func(t *testing.T) {
		boundaries := &fakeBoundaryService{existing: []models.BoundaryRelationship{
			{Code: "MZ", BoundaryType: "COUNTRY", Name: "Mozambique"},
		}}
		locales := &fakeLocalizationService{}
		o := NewOrchestrator(orchestratorConfig(), boundaries, locales, nil, zap.NewNop())

		details, err := o.Execute(ctx, boundaryJob(), boundaryDataset([]string{"Mozambique"}), boundaryHierarchy(), "en_MZ")
		require.NoError(t, err)
		assert.Equal(t, 0, details["boundariesCreated"])
		assert.Empty(t, boundaries.entities)
		assert.Empty(t, locales.upserts)
	})

	t.Run("GapInPathIsValidationError", func(t *testing.T) {
		boundaries := &fakeBoundaryService{}
		o := NewOrchestrator(orchestratorConfig(), boundaries, &fakeLocalizationService{}, nil, zap.NewNop())

		ds := boundaryDataset([]string{"", "Maputo"})
		_, err := o.Execute(ctx, boundaryJob(), ds, boundaryHierarchy(), "en_MZ")
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.True(t, appErr.IsValidation())
		assert.Contains(t, appErr.Description, "Row 2")
		assert.Empty(t, boundaries.entities)
	})

	t.Run("EntityCreateFailureIsFatal", func(t *testing.T) {
		boundaries := &fakeBoundaryService{entityErr: errors.New("boundary service down")}
		o := NewOrchestrator(orchestratorConfig(), boundaries, &fakeLocalizationService{}, nil, zap.NewNop())

		_, err := o.Execute(ctx, boundaryJob(), boundaryDataset([]string{"Mozambique"}), boundaryHierarchy(), "en_MZ")
		require.Error(t, err)
		assert.Equal(t, apperrors.BoundaryRelationshipCreateError, apperrors.From(err).Code)
	})

	t.Run("SkippedLocalizationChunksReported", func(t *testing.T) {
		boundaries := &fakeBoundaryService{}
		locales := &fakeLocalizationService{upsertErr: errors.New("localization down")}
		o := NewOrchestrator(orchestratorConfig(), boundaries, locales, nil, zap.NewNop())

		details, err := o.Execute(ctx, boundaryJob(), boundaryDataset([]string{"Mozambique"}), boundaryHierarchy(), "en_MZ")
		require.NoError(t, err)
		skipped, ok := details["skippedLocalizationChunks"].([]string)
		require.True(t, ok)
		require.Len(t, skipped, 1)
		assert.Contains(t, skipped[0], "localization down")
	})

	t.Run("IgnoresNonBoundaryTypes", func(t *testing.T) {
		o := NewOrchestrator(orchestratorConfig(), &fakeBoundaryService{}, &fakeLocalizationService{}, nil, zap.NewNop())
		job := boundaryJob()
		job.Type = models.TypeFacility

		details, err := o.Execute(ctx, job, boundaryDataset([]string{"Mozambique"}), boundaryHierarchy(), "en_MZ")
		require.NoError(t, err)
		assert.Nil(t, details)
	})

	t.Run("MissingHierarchyIsValidationError", func(t *testing.T) {
		o := NewOrchestrator(orchestratorConfig(), &fakeBoundaryService{}, &fakeLocalizationService{}, nil, zap.NewNop())
		_, err := o.Execute(ctx, boundaryJob(), boundaryDataset([]string{"Mozambique"}), nil, "en_MZ")
		require.Error(t, err)
		assert.True(t, apperrors.From(err).IsValidation())
	})
}
