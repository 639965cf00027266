package workbook

import (
	"bytes"
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/filestore"
	"github.com/campaignops/resource-factory/internal/schema"
)

// Validator downloads uploaded workbooks and validates them against the
// expected hierarchy/schema column set. Checks run in a fixed order
// (headers, root column, duplicates, then per-field schema) since header
// correctness is a precondition for everything after it. Batch checks
// report every offending row in one pass to cut fix-and-reupload cycles.
type Validator struct {
	files  *filestore.Client
	logger *zap.Logger
}

// NewValidator creates a workbook validator.
func NewValidator(files *filestore.Client, logger *zap.Logger) *Validator {
	return &Validator{files: files, logger: logger}
}

// ValidateInput describes the expected shape of one uploaded sheet. Column
// descriptor names must already be localized header text.
type ValidateInput struct {
	TenantID        string
	FileStoreID     string
	SheetName       string
	ExpectedHeaders []string
	RootColumn      string
	Columns         []schema.Column
}

// Validate resolves and downloads the uploaded file, then validates the
// target sheet. A returned *apperrors.Error with validation status carries
// the full aggregated, user-facing message.
func (v *Validator) Validate(ctx context.Context, in ValidateInput) (*Dataset, error) {
	content, err := v.files.Download(ctx, in.TenantID, in.FileStoreID)
	if err != nil {
		return nil, err
	}

	f, err := excelize.OpenReader(bytes.NewReader(content))
	if err != nil {
		return nil, apperrors.Wrap(apperrors.InvalidFile, err)
	}
	defer f.Close()

	ds, err := ValidateSheet(f, in)
	if err != nil {
		return nil, err
	}

	v.logger.Info("workbook validated",
		zap.String("file_store_id", in.FileStoreID),
		zap.String("sheet", in.SheetName),
		zap.Int("rows", len(ds.Rows)),
	)
	return ds, nil
}

// ValidateSheet validates one sheet of an already-open workbook.
func ValidateSheet(f *excelize.File, in ValidateInput) (*Dataset, error) {
	rows, err := f.GetRows(in.SheetName)
	if err != nil || len(rows) == 0 {
		return nil, apperrors.Newf(apperrors.BoundarySheetHeaderError,
			"sheet %q was not found in the uploaded workbook", in.SheetName)
	}

	header := trimAll(rows[0])
	if err := validateHeaders(header, in.ExpectedHeaders, in.SheetName); err != nil {
		return nil, err
	}

	ds := &Dataset{SheetName: in.SheetName, Headers: header}
	for i, raw := range rows[1:] {
		values := make(map[string]string, len(header))
		empty := true
		for j, name := range header {
			var cell string
			if j < len(raw) {
				cell = strings.TrimSpace(raw[j])
			}
			values[name] = cell
			if cell != "" {
				empty = false
			}
		}
		if empty {
			continue
		}
		ds.Rows = append(ds.Rows, Row{Number: i + 2, Values: values})
	}

	if err := validateRootColumn(ds, in.RootColumn); err != nil {
		return nil, err
	}
	if err := validateDuplicates(ds); err != nil {
		return nil, err
	}
	if err := validateSchema(ds, in.Columns); err != nil {
		return nil, err
	}
	return ds, nil
}

func validateHeaders(actual, expected []string, sheetName string) error {
	for i, want := range expected {
		if i >= len(actual) {
			return apperrors.Newf(apperrors.BoundarySheetHeaderError,
				"sheet %q is missing expected column %q", sheetName, want)
		}
		if actual[i] != want {
			return apperrors.Newf(apperrors.BoundarySheetHeaderError,
				"sheet %q column %d is %q, expected %q", sheetName, i+1, actual[i], want)
		}
	}
	if len(actual) > len(expected) {
		return apperrors.Newf(apperrors.ValidationError,
			"sheet %q contains unexpected column %q", sheetName, actual[len(expected)])
	}
	return nil
}

// validateRootColumn enforces that every data row carries a value in the
// first (root) hierarchy column. Sheets without a hierarchy, such as
// facility or user uploads, have no root column and skip the check.
func validateRootColumn(ds *Dataset, rootColumn string) error {
	if rootColumn == "" {
		return nil
	}
	for _, row := range ds.Rows {
		if row.Value(rootColumn) == "" {
			return apperrors.Newf(apperrors.ValidationError,
				"sheet %q has rows where the root boundary column %q is empty", ds.SheetName, rootColumn)
		}
	}
	return nil
}

// validateDuplicates serializes each row canonically (trimmed values in
// header order, row number excluded) and reports every duplicate row
// number, not just the first collision.
func validateDuplicates(ds *Dataset) error {
	groups := make(map[string][]int)
	for _, row := range ds.Rows {
		parts := make([]string, len(ds.Headers))
		for i, name := range ds.Headers {
			parts[i] = row.Value(name)
		}
		key := strings.Join(parts, "\x1f")
		groups[key] = append(groups[key], row.Number)
	}

	var duplicates []int
	for _, numbers := range groups {
		if len(numbers) > 1 {
			duplicates = append(duplicates, numbers...)
		}
	}
	if len(duplicates) == 0 {
		return nil
	}

	sort.Ints(duplicates)
	rendered := make([]string, len(duplicates))
	for i, n := range duplicates {
		rendered[i] = strconv.Itoa(n)
	}
	return apperrors.Newf(apperrors.ValidationError,
		"sheet %q contains duplicate rows at row numbers: %s", ds.SheetName, strings.Join(rendered, ", "))
}

// validateSchema checks every cell against its column descriptor and every
// unique column for repeated values, aggregating all violations into one
// formatted message.
func validateSchema(ds *Dataset, columns []schema.Column) error {
	var messages []string

	for _, row := range ds.Rows {
		for _, col := range columns {
			for _, violation := range col.Validate(row.Value(col.Name)) {
				messages = append(messages, fmt.Sprintf("Row %d: %s", row.Number, violation.Format()))
			}
		}
	}

	for _, col := range columns {
		if !col.Unique {
			continue
		}
		seen := make(map[string]int)
		for _, row := range ds.Rows {
			value := row.Value(col.Name)
			if value == "" {
				continue
			}
			if first, ok := seen[value]; ok {
				messages = append(messages, fmt.Sprintf(
					"Row %d: %s Must be unique, value %q already appears at row %d",
					row.Number, col.Name, value, first))
				continue
			}
			seen[value] = row.Number
		}
	}

	if len(messages) == 0 {
		return nil
	}
	return apperrors.Newf(apperrors.BoundarySheetUploadedInvalid,
		"sheet %q has invalid data: %s", ds.SheetName, strings.Join(messages, "; "))
}

func trimAll(values []string) []string {
	trimmed := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			// Stop at the first empty header cell; excelize pads rows.
			break
		}
		trimmed = append(trimmed, v)
	}
	return trimmed
}
