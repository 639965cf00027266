package workbook

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/schema"
)

const testSheet = "Boundary Data"

// sheetWith builds a workbook whose first row is headers and the rest data.
func sheetWith(t *testing.T, rows [][]string) *excelize.File {
	t.Helper()
	f := excelize.NewFile()
	require.NoError(t, f.SetSheetName("Sheet1", testSheet))
	for i, row := range rows {
		for j, value := range row {
			cell, err := excelize.CoordinatesToCellName(j+1, i+1)
			require.NoError(t, err)
			require.NoError(t, f.SetCellValue(testSheet, cell, value))
		}
	}
	return f
}

func validateInput() ValidateInput {
	return ValidateInput{
		SheetName:       testSheet,
		ExpectedHeaders: []string{"Country", "Province", "Boundary Code"},
		RootColumn:      "Country",
		Columns: []schema.Column{
			{Name: "Boundary Code", Kind: schema.KindString, Unique: true},
		},
	}
}

func TestValidateSheet(t *testing.T) {
	t.Run("AcceptsWellFormedSheet", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"Mozambique", "Maputo", "MZ_01"},
			{"Mozambique", "Gaza", "MZ_02"},
		})
		defer f.Close()

		ds, err := ValidateSheet(f, validateInput())
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		assert.Equal(t, 2, ds.Rows[0].Number)
		assert.Equal(t, "Maputo", ds.Rows[0].Value("Province"))
	})

	t.Run("SkipsFullyEmptyRows", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"Mozambique", "Maputo", "MZ_01"},
			{"", "", ""},
			{"Mozambique", "Gaza", "MZ_02"},
		})
		defer f.Close()

		ds, err := ValidateSheet(f, validateInput())
		require.NoError(t, err)
		require.Len(t, ds.Rows, 2)
		// Row numbers keep pointing at the physical sheet rows.
		assert.Equal(t, 4, ds.Rows[1].Number)
	})

	t.Run("MissingSheet", func(t *testing.T) {
		f := excelize.NewFile()
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		assert.Equal(t, apperrors.BoundarySheetHeaderError, apperrors.From(err).Code)
	})

	t.Run("RenamedHeaderNamesColumn", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "District", "Boundary Code"},
			{"Mozambique", "Maputo", "MZ_01"},
		})
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.BoundarySheetHeaderError, appErr.Code)
		assert.Contains(t, appErr.Message, `"Province"`)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province"},
			{"Mozambique", "Maputo"},
		})
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.BoundarySheetHeaderError, appErr.Code)
		assert.Contains(t, appErr.Message, `"Boundary Code"`)
	})

	t.Run("ExtraHeaderRejected", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code", "Notes"},
			{"Mozambique", "Maputo", "MZ_01", "x"},
		})
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.ValidationError, appErr.Code)
		assert.Contains(t, appErr.Message, `"Notes"`)
	})

	t.Run("EmptyRootColumn", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"", "Maputo", "MZ_01"},
		})
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.ValidationError, appErr.Code)
		assert.Contains(t, appErr.Message, `"Country"`)
	})

	t.Run("SheetWithoutHierarchySkipsRootCheck", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"Mozambique", "Maputo", "FAC_01"},
			{"Mozambique", "Gaza", "FAC_02"},
		})
		defer f.Close()

		// Facility and user uploads carry no hierarchy root column.
		in := validateInput()
		in.RootColumn = ""

		ds, err := ValidateSheet(f, in)
		require.NoError(t, err)
		assert.Len(t, ds.Rows, 2)
	})

	t.Run("DuplicatesReportEveryRow", func(t *testing.T) {
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"Mozambique", "Maputo", "MZ_01"},
			{"Mozambique", "Gaza", "MZ_02"},
			{"Mozambique ", " Maputo", "MZ_01 "},
		})
		defer f.Close()

		_, err := ValidateSheet(f, validateInput())
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.ValidationError, appErr.Code)
		assert.Contains(t, appErr.Message, "2, 4")
	})

	t.Run("SchemaViolationsAggregated", func(t *testing.T) {
		in := validateInput()
		in.Columns = []schema.Column{
			{Name: "Boundary Code", Kind: schema.KindString, Required: true, Unique: true},
			{Name: "Province", Kind: schema.KindString, MaxLength: intPtr(6)},
		}
		f := sheetWith(t, [][]string{
			{"Country", "Province", "Boundary Code"},
			{"Mozambique", "Inhambane", ""},
			{"Mozambique", "Gaza", "MZ_02"},
			{"Mozambique", "Tete", "MZ_02"},
		})
		defer f.Close()

		_, err := ValidateSheet(f, in)
		require.Error(t, err)
		appErr := apperrors.From(err)
		assert.Equal(t, apperrors.BoundarySheetUploadedInvalid, appErr.Code)
		assert.Contains(t, appErr.Message, "Row 2:")
		assert.Contains(t, appErr.Message, "Row 4:")
		assert.Contains(t, appErr.Message, "already appears at row 3")
	})
}

func intPtr(n int) *int { return &n }

func BenchmarkValidateSheet(b *testing.B) {
	f := excelize.NewFile()
	_ = f.SetSheetName("Sheet1", testSheet)
	_ = f.SetCellValue(testSheet, "A1", "Country")
	_ = f.SetCellValue(testSheet, "B1", "Province")
	_ = f.SetCellValue(testSheet, "C1", "Boundary Code")
	for i := 0; i < 500; i++ {
		row := i + 2
		_ = f.SetCellValue(testSheet, fmt.Sprintf("A%d", row), "Mozambique")
		_ = f.SetCellValue(testSheet, fmt.Sprintf("B%d", row), fmt.Sprintf("Province %d", i))
		_ = f.SetCellValue(testSheet, fmt.Sprintf("C%d", row), fmt.Sprintf("MZ_%04d", i))
	}
	in := validateInput()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if _, err := ValidateSheet(f, in); err != nil {
			b.Fatal(err)
		}
	}
}
