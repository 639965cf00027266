package workbook

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/config"
	"github.com/campaignops/resource-factory/internal/localization"
	"github.com/campaignops/resource-factory/internal/models"
	"github.com/campaignops/resource-factory/internal/schema"
)

// Sheet name localization codes.
const (
	DataSheetCode     = "HCM_ADMIN_CONSOLE_BOUNDARY_DATA"
	ReadmeSheetCode   = "HCM_README_SHEETNAME"
	DropdownSheetCode = "HCM_DROPDOWN_SHEETNAME"
)

var readmeLineCodes = []string{
	"HCM_README_TEMPLATE_PURPOSE",
	"HCM_README_FILL_INSTRUCTIONS",
	"HCM_README_DO_NOT_EDIT_HEADERS",
	"HCM_README_UPLOAD_INSTRUCTIONS",
}

// Builder constructs template workbooks from schema descriptors plus the
// current boundary data, applying formatting and protection rules.
type Builder struct {
	cfg    config.GenerationConfig
	logger *zap.Logger
}

// NewBuilder creates a workbook builder.
func NewBuilder(cfg config.GenerationConfig, logger *zap.Logger) *Builder {
	return &Builder{cfg: cfg, logger: logger}
}

// TemplateInput carries everything a template build needs. Column names are
// schema codes; the localizer translates them and the hierarchy levels into
// header text.
type TemplateInput struct {
	TenantID      string
	ResourceType  string
	HierarchyType string
	Hierarchy     *models.BoundaryHierarchy
	Columns       []schema.Column
	Existing      []models.BoundaryRelationship
	Localizer     localization.Map
}

// Artifact is a finished workbook ready for upload.
type Artifact struct {
	Filename string
	Content  []byte
	Sheets   []string
}

// ExpectedHeaders returns the ordered header row a template for this input
// carries: localized hierarchy columns first, then schema columns in order.
func ExpectedHeaders(in TemplateInput) []string {
	headers := make([]string, 0, len(in.Hierarchy.Levels)+len(in.Columns))
	for _, level := range in.Hierarchy.Levels {
		code := HierarchyColumnCode(in.HierarchyType, level.BoundaryType)
		headers = append(headers, in.Localizer.LocalizedName(code))
	}
	for _, col := range in.Columns {
		if col.Hidden {
			continue
		}
		headers = append(headers, in.Localizer.LocalizedName(col.Name))
	}
	return headers
}

// BuildTemplate produces the downloadable workbook: README sheet, data
// sheet with headers and existing boundary rows, and a dropdown sheet
// backing enum column validations. Any failure is terminal; no partial
// artifact is returned.
func (b *Builder) BuildTemplate(ctx context.Context, in TemplateInput) (*Artifact, error) {
	if in.Hierarchy == nil || len(in.Hierarchy.Levels) == 0 {
		return nil, fmt.Errorf("cannot build template without a boundary hierarchy")
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	defer f.Close()

	dataSheet := in.Localizer.LocalizedName(DataSheetCode)
	if err := f.SetSheetName("Sheet1", dataSheet); err != nil {
		return nil, fmt.Errorf("failed to name data sheet: %w", err)
	}

	readmeSheet, err := b.addReadmeSheet(f, in)
	if err != nil {
		return nil, err
	}

	headers := ExpectedHeaders(in)
	if err := b.writeHeaders(f, dataSheet, headers); err != nil {
		return nil, err
	}

	rows, err := b.writeExistingData(f, dataSheet, in)
	if err != nil {
		return nil, err
	}

	dropdownSheet, err := b.addDropdownSheet(f, dataSheet, in, len(in.Hierarchy.Levels))
	if err != nil {
		return nil, err
	}

	if err := b.applyFormatting(f, dataSheet, len(headers), rows); err != nil {
		return nil, err
	}

	// Keep the README first so the uploader lands on instructions.
	if idx, err := f.GetSheetIndex(readmeSheet); err == nil {
		f.SetActiveSheet(idx)
	}

	var buf bytes.Buffer
	if err := f.Write(&buf); err != nil {
		return nil, fmt.Errorf("failed to serialize workbook: %w", err)
	}

	filename := fmt.Sprintf("%s_%s_%s.xlsx", in.ResourceType, in.HierarchyType, time.Now().Format("20060102150405"))
	sheets := []string{readmeSheet, dataSheet}
	if dropdownSheet != "" {
		sheets = append(sheets, dropdownSheet)
	}

	b.logger.Info("template workbook built",
		zap.String("tenant_id", in.TenantID),
		zap.String("type", in.ResourceType),
		zap.String("hierarchy_type", in.HierarchyType),
		zap.Int("existing_rows", rows),
	)

	return &Artifact{Filename: filename, Content: buf.Bytes(), Sheets: sheets}, nil
}

func (b *Builder) addReadmeSheet(f *excelize.File, in TemplateInput) (string, error) {
	name := in.Localizer.LocalizedName(ReadmeSheetCode)
	if _, err := f.NewSheet(name); err != nil {
		return "", fmt.Errorf("failed to create readme sheet: %w", err)
	}

	for i, code := range readmeLineCodes {
		cell := fmt.Sprintf("A%d", i+1)
		if err := f.SetCellValue(name, cell, in.Localizer.LocalizedName(code)); err != nil {
			return "", fmt.Errorf("failed to write readme line: %w", err)
		}
	}
	f.SetColWidth(name, "A", "A", 120)

	if b.cfg.SheetPassword != "" {
		if err := f.ProtectSheet(name, &excelize.SheetProtectionOptions{
			Password:          b.cfg.SheetPassword,
			SelectLockedCells: true,
		}); err != nil {
			return "", fmt.Errorf("failed to protect readme sheet: %w", err)
		}
	}
	return name, nil
}

func (b *Builder) writeHeaders(f *excelize.File, sheet string, headers []string) error {
	for i, header := range headers {
		cell, err := excelize.CoordinatesToCellName(i+1, 1)
		if err != nil {
			return fmt.Errorf("failed to compute header cell: %w", err)
		}
		if err := f.SetCellValue(sheet, cell, header); err != nil {
			return fmt.Errorf("failed to write header %q: %w", header, err)
		}
	}
	return nil
}

// writeExistingData fills one row per known boundary node, ancestors
// resolved through parent codes so each row carries its full path.
func (b *Builder) writeExistingData(f *excelize.File, sheet string, in TemplateInput) (int, error) {
	if len(in.Existing) == 0 {
		return 0, nil
	}

	byCode := make(map[string]models.BoundaryRelationship, len(in.Existing))
	for _, rel := range in.Existing {
		byCode[rel.Code] = rel
	}

	levelIndex := make(map[string]int, len(in.Hierarchy.Levels))
	for i, level := range in.Hierarchy.Levels {
		levelIndex[level.BoundaryType] = i
	}

	codeColumn := b.codeColumnIndex(in)

	rowNum := 1
	for _, rel := range in.Existing {
		depth, ok := levelIndex[rel.BoundaryType]
		if !ok {
			continue
		}
		rowNum++

		// Walk up the parent chain to fill ancestor cells.
		node := rel
		for i := depth; i >= 0; i-- {
			cell, err := excelize.CoordinatesToCellName(i+1, rowNum)
			if err != nil {
				return 0, fmt.Errorf("failed to compute data cell: %w", err)
			}
			name := node.Name
			if name == "" {
				name = in.Localizer.LocalizedName(node.Code)
			}
			if err := f.SetCellValue(sheet, cell, name); err != nil {
				return 0, fmt.Errorf("failed to write boundary row: %w", err)
			}
			parent, ok := byCode[node.ParentCode]
			if !ok {
				break
			}
			node = parent
		}

		if codeColumn > 0 {
			cell, err := excelize.CoordinatesToCellName(codeColumn, rowNum)
			if err != nil {
				return 0, fmt.Errorf("failed to compute code cell: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, rel.Code); err != nil {
				return 0, fmt.Errorf("failed to write boundary code: %w", err)
			}
		}
	}
	return rowNum - 1, nil
}

// codeColumnIndex returns the 1-based sheet column of the first unique
// schema column (the boundary code column), or 0 when the schema has none.
func (b *Builder) codeColumnIndex(in TemplateInput) int {
	offset := len(in.Hierarchy.Levels)
	visible := 0
	for _, col := range in.Columns {
		if col.Hidden {
			continue
		}
		visible++
		if col.Unique {
			return offset + visible
		}
	}
	return 0
}

func (b *Builder) addDropdownSheet(f *excelize.File, dataSheet string, in TemplateInput, hierarchyWidth int) (string, error) {
	var enumColumns []schema.Column
	for _, col := range in.Columns {
		if col.Kind == schema.KindEnum && !col.Hidden {
			enumColumns = append(enumColumns, col)
		}
	}
	if len(enumColumns) == 0 {
		return "", nil
	}

	name := in.Localizer.LocalizedName(DropdownSheetCode)
	if _, err := f.NewSheet(name); err != nil {
		return "", fmt.Errorf("failed to create dropdown sheet: %w", err)
	}

	visible := 0
	enumSeen := 0
	for _, col := range in.Columns {
		if col.Hidden {
			continue
		}
		visible++
		if col.Kind != schema.KindEnum {
			continue
		}
		enumSeen++

		// One option column per enum field on the dropdown sheet.
		optionCol, err := excelize.ColumnNumberToName(enumSeen)
		if err != nil {
			return "", fmt.Errorf("failed to compute dropdown column: %w", err)
		}
		if err := f.SetCellValue(name, optionCol+"1", in.Localizer.LocalizedName(col.Name)); err != nil {
			return "", fmt.Errorf("failed to write dropdown header: %w", err)
		}
		for i, option := range col.Enum {
			if err := f.SetCellValue(name, fmt.Sprintf("%s%d", optionCol, i+2), option); err != nil {
				return "", fmt.Errorf("failed to write dropdown option: %w", err)
			}
		}

		dataCol, err := excelize.ColumnNumberToName(hierarchyWidth + visible)
		if err != nil {
			return "", fmt.Errorf("failed to compute data column: %w", err)
		}
		dv := excelize.NewDataValidation(true)
		dv.Sqref = fmt.Sprintf("%s2:%s%d", dataCol, dataCol, b.unfreezeTillRow())
		dv.SetSqrefDropList(fmt.Sprintf("'%s'!$%s$2:$%s$%d", name, optionCol, optionCol, len(col.Enum)+1))
		if err := f.AddDataValidation(dataSheet, dv); err != nil {
			return "", fmt.Errorf("failed to add dropdown validation: %w", err)
		}
	}
	return name, nil
}

func (b *Builder) applyFormatting(f *excelize.File, sheet string, headerCount, dataRows int) error {
	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Pattern: 1, Color: []string{"#D9E1F2"}},
		Protection: &excelize.Protection{Locked: true},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	lastCol, err := excelize.ColumnNumberToName(headerCount)
	if err != nil {
		return fmt.Errorf("failed to compute last column: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A1", lastCol+"1", headerStyle); err != nil {
		return fmt.Errorf("failed to style header row: %w", err)
	}
	if err := f.SetColWidth(sheet, "A", lastCol, 28); err != nil {
		return fmt.Errorf("failed to set column widths: %w", err)
	}

	// Freeze the header row.
	if err := f.SetPanes(sheet, &excelize.Panes{
		Freeze: true, Split: false, XSplit: 0, YSplit: 1,
		TopLeftCell: "A2", ActivePane: "bottomLeft",
	}); err != nil {
		return fmt.Errorf("failed to freeze header row: %w", err)
	}

	// Lock the sheet but leave the data entry range editable.
	editableStyle, err := f.NewStyle(&excelize.Style{
		Protection: &excelize.Protection{Locked: false},
	})
	if err != nil {
		return fmt.Errorf("failed to create editable style: %w", err)
	}
	if err := f.SetCellStyle(sheet, "A2", fmt.Sprintf("%s%d", lastCol, b.unfreezeTillRow()), editableStyle); err != nil {
		return fmt.Errorf("failed to style editable range: %w", err)
	}

	if b.cfg.SheetPassword != "" {
		if err := f.ProtectSheet(sheet, &excelize.SheetProtectionOptions{
			Password:            b.cfg.SheetPassword,
			SelectLockedCells:   true,
			SelectUnlockedCells: true,
		}); err != nil {
			return fmt.Errorf("failed to protect data sheet: %w", err)
		}
	}
	return nil
}

func (b *Builder) unfreezeTillRow() int {
	if b.cfg.UnfreezeTillRow > 1 {
		return b.cfg.UnfreezeTillRow
	}
	return 2000
}
