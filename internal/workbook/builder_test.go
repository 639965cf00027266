package workbook

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/localization"
	"github.com/campaignops/resource-factory/internal/models"
	"github.com/campaignops/resource-factory/internal/schema"
)

func testLocalizer() localization.Map {
	return localization.Map{
		"HCM_ADMIN_CONSOLE_BOUNDARY_DATA": "Boundary Data",
		"HCM_README_SHEETNAME":            "ReadMe",
		"HCM_DROPDOWN_SHEETNAME":          "Dropdowns",
		"HEALTH_COUNTRY":                  "Country",
		"HEALTH_PROVINCE":                 "Province",
		"boundaryCode":                    "Boundary Code",
		"zoneKind":                        "Zone Kind",
	}
}

func testHierarchy() *models.BoundaryHierarchy {
	return &models.BoundaryHierarchy{
		TenantID:      "mz",
		HierarchyType: "HEALTH",
		Levels: []models.BoundaryTypeLevel{
			{BoundaryType: "COUNTRY", Active: true},
			{BoundaryType: "PROVINCE", ParentBoundaryType: "COUNTRY", Active: true},
		},
	}
}

func testColumns() []schema.Column {
	return []schema.Column{
		{Name: "boundaryCode", Kind: schema.KindString, Unique: true, Order: 1},
		{Name: "zoneKind", Kind: schema.KindEnum, Enum: []string{"URBAN", "RURAL"}, Order: 2},
	}
}

func testInput() TemplateInput {
	return TemplateInput{
		TenantID:      "mz",
		ResourceType:  models.TypeBoundary,
		HierarchyType: "HEALTH",
		Hierarchy:     testHierarchy(),
		Columns:       testColumns(),
		Existing: []models.BoundaryRelationship{
			{Code: "ADMIN_MOZAMBIQUE", BoundaryType: "COUNTRY", Name: "Mozambique"},
			{Code: "ADMIN_MOZAMBIQUE_01_MAPUTO", BoundaryType: "PROVINCE", ParentCode: "ADMIN_MOZAMBIQUE", Name: "Maputo"},
		},
		Localizer: testLocalizer(),
	}
}

func TestExpectedHeaders(t *testing.T) {
	headers := ExpectedHeaders(testInput())
	assert.Equal(t, []string{"Country", "Province", "Boundary Code", "Zone Kind"}, headers)

	t.Run("SkipsHiddenColumns", func(t *testing.T) {
		in := testInput()
		in.Columns = append(in.Columns, schema.Column{Name: "internalRef", Kind: schema.KindString, Hidden: true})
		assert.Equal(t, []string{"Country", "Province", "Boundary Code", "Zone Kind"}, ExpectedHeaders(in))
	})

	t.Run("FallsBackToCodesWithoutTranslations", func(t *testing.T) {
		in := testInput()
		in.Localizer = localization.Map{}
		assert.Equal(t, []string{"HEALTH_COUNTRY", "HEALTH_PROVINCE", "boundaryCode", "zoneKind"}, ExpectedHeaders(in))
	})
}

func TestBuildTemplate(t *testing.T) {
	builder := NewBuilder(config.GenerationConfig{UnfreezeTillRow: 100}, zap.NewNop())
	in := testInput()

	artifact, err := builder.BuildTemplate(context.Background(), in)
	require.NoError(t, err)
	require.NotEmpty(t, artifact.Content)
	assert.Contains(t, artifact.Filename, "boundary_HEALTH_")
	assert.Equal(t, []string{"ReadMe", "Boundary Data", "Dropdowns"}, artifact.Sheets)

	f, err := excelize.OpenReader(bytes.NewReader(artifact.Content))
	require.NoError(t, err)
	defer f.Close()

	t.Run("HeadersMatchExpected", func(t *testing.T) {
		rows, err := f.GetRows("Boundary Data")
		require.NoError(t, err)
		require.NotEmpty(t, rows)
		assert.Equal(t, ExpectedHeaders(in), rows[0][:4])
	})

	t.Run("ExistingBoundariesCarryFullPath", func(t *testing.T) {
		rows, err := f.GetRows("Boundary Data")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)

		assert.Equal(t, "Mozambique", rows[1][0])
		assert.Equal(t, "Mozambique", rows[2][0])
		assert.Equal(t, "Maputo", rows[2][1])
		// Unique schema column carries the stable boundary code.
		assert.Equal(t, "ADMIN_MOZAMBIQUE_01_MAPUTO", rows[2][2])
	})

	t.Run("DropdownSheetListsEnumOptions", func(t *testing.T) {
		rows, err := f.GetRows("Dropdowns")
		require.NoError(t, err)
		require.GreaterOrEqual(t, len(rows), 3)
		assert.Equal(t, "Zone Kind", rows[0][0])
		assert.Equal(t, "URBAN", rows[1][0])
		assert.Equal(t, "RURAL", rows[2][0])
	})

	t.Run("GeneratedTemplateValidates", func(t *testing.T) {
		ds, err := ValidateSheet(f, ValidateInput{
			SheetName:       "Boundary Data",
			ExpectedHeaders: ExpectedHeaders(in),
			RootColumn:      "Country",
			Columns: []schema.Column{
				{Name: "Boundary Code", Kind: schema.KindString, Unique: true},
				{Name: "Zone Kind", Kind: schema.KindEnum, Enum: []string{"URBAN", "RURAL"}},
			},
		})
		require.NoError(t, err)
		assert.Len(t, ds.Rows, 2)
	})

	t.Run("RequiresHierarchy", func(t *testing.T) {
		broken := testInput()
		broken.Hierarchy = nil
		_, err := builder.BuildTemplate(context.Background(), broken)
		assert.Error(t, err)
	})
}
