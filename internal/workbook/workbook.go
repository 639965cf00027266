package workbook

import (
	"strings"

	"github.com/campaignops/resource-factory/internal/localization"
)

// Row is one parsed data row. Number is the 1-based sheet row number so
// error messages point at what the uploader sees in the spreadsheet.
type Row struct {
	Number int
	Values map[string]string
}

// Value returns the trimmed cell value for a header.
func (r Row) Value(header string) string {
	return strings.TrimSpace(r.Values[header])
}

// Dataset is the validated in-memory content of one sheet.
type Dataset struct {
	SheetName string
	Headers   []string
	Rows      []Row
}

// DataSheetName returns the localized name of the data sheet, the same
// one templates are generated with.
func DataSheetName(localizer localization.Map) string {
	return localizer.LocalizedName(DataSheetCode)
}

// HierarchyColumnCode builds the localization code for one hierarchy level
// column: hierarchy-type-prefixed and uppercased.
func HierarchyColumnCode(hierarchyType, boundaryType string) string {
	return strings.ToUpper(hierarchyType) + "_" + strings.ToUpper(boundaryType)
}
