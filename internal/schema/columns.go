package schema

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/campaignops/resource-factory/internal/models"
)

// ColumnKind is the resolved type of a schema column. Dynamic JSON schema
// properties are compiled into this tagged form once per request so row
// validation never inspects raw schema maps.
type ColumnKind int

const (
	KindString ColumnKind = iota
	KindInteger
	KindNumber
	KindBoolean
	KindEnum
)

func (k ColumnKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindInteger:
		return "integer"
	case KindNumber:
		return "number"
	case KindBoolean:
		return "boolean"
	case KindEnum:
		return "enum"
	}
	return "unknown"
}

// Column is a strongly-typed descriptor for one sheet column.
type Column struct {
	Name      string
	Kind      ColumnKind
	Required  bool
	Unique    bool
	MinLength *int
	MaxLength *int
	Minimum   *float64
	Maximum   *float64
	Enum      []string
	Order     int
	Freeze    bool
	Hidden    bool
}

// Compile resolves a schema definition into an ordered column descriptor
// list. Properties without an explicit order keep their registry order after
// the explicitly ordered ones.
func Compile(def *models.SchemaDefinition) ([]Column, error) {
	if def == nil || len(def.Definition.Properties) == 0 {
		return nil, fmt.Errorf("schema %s has no properties", schemaCode(def))
	}

	required := make(map[string]bool, len(def.Definition.Required))
	for _, name := range def.Definition.Required {
		required[name] = true
	}
	unique := make(map[string]bool, len(def.Definition.Unique))
	for _, name := range def.Definition.Unique {
		unique[name] = true
	}

	columns := make([]Column, 0, len(def.Definition.Properties))
	for name, prop := range def.Definition.Properties {
		kind, err := resolveKind(prop)
		if err != nil {
			return nil, fmt.Errorf("schema %s property %s: %w", schemaCode(def), name, err)
		}

		columns = append(columns, Column{
			Name:      name,
			Kind:      kind,
			Required:  required[name],
			Unique:    unique[name],
			MinLength: prop.MinLength,
			MaxLength: prop.MaxLength,
			Minimum:   prop.Minimum,
			Maximum:   prop.Maximum,
			Enum:      prop.Enum,
			Order:     prop.OrderNumber,
			Freeze:    prop.FreezeCol,
			Hidden:    prop.HideCol,
		})
	}

	sort.SliceStable(columns, func(i, j int) bool {
		return columns[i].Order < columns[j].Order
	})
	return columns, nil
}

func resolveKind(prop models.SchemaProperty) (ColumnKind, error) {
	if len(prop.Enum) > 0 {
		return KindEnum, nil
	}
	switch prop.Type {
	case "string", "":
		return KindString, nil
	case "integer":
		return KindInteger, nil
	case "number":
		return KindNumber, nil
	case "boolean":
		return KindBoolean, nil
	}
	return KindString, fmt.Errorf("unsupported column type %q", prop.Type)
}

func schemaCode(def *models.SchemaDefinition) string {
	if def == nil {
		return "<nil>"
	}
	return def.Code
}

// Violation is one cell-level validation failure. The dot-path plus message
// form matches the aggregated error format surfaced to uploaders.
type Violation struct {
	Path    string
	Message string
}

// Format renders a violation as "Path Message" with the first letter of the
// message capitalized.
func (v Violation) Format() string {
	return fmt.Sprintf("%s %s", v.Path, capitalize(v.Message))
}

// Validate checks one trimmed cell value against the descriptor and returns
// every violation found. An empty value only violates when required.
func (c Column) Validate(value string) []Violation {
	value = strings.TrimSpace(value)
	path := c.Name

	if value == "" {
		if c.Required {
			return []Violation{{Path: path, Message: "is required and must not be empty"}}
		}
		return nil
	}

	var violations []Violation
	switch c.Kind {
	case KindString:
		if c.MinLength != nil && len(value) < *c.MinLength {
			violations = append(violations, Violation{path, fmt.Sprintf("must be at least %d characters", *c.MinLength)})
		}
		if c.MaxLength != nil && len(value) > *c.MaxLength {
			violations = append(violations, Violation{path, fmt.Sprintf("must be at most %d characters", *c.MaxLength)})
		}
	case KindInteger:
		n, err := strconv.ParseInt(value, 10, 64)
		if err != nil {
			violations = append(violations, Violation{path, fmt.Sprintf("must be an integer, got %q", value)})
			break
		}
		violations = append(violations, c.checkBounds(float64(n), path)...)
	case KindNumber:
		n, err := strconv.ParseFloat(value, 64)
		if err != nil {
			violations = append(violations, Violation{path, fmt.Sprintf("must be a number, got %q", value)})
			break
		}
		violations = append(violations, c.checkBounds(n, path)...)
	case KindBoolean:
		if _, err := strconv.ParseBool(strings.ToLower(value)); err != nil {
			violations = append(violations, Violation{path, fmt.Sprintf("must be a boolean, got %q", value)})
		}
	case KindEnum:
		if !contains(c.Enum, value) {
			violations = append(violations, Violation{path,
				fmt.Sprintf("must be one of the allowed values: %s", strings.Join(c.Enum, ", "))})
		}
	}
	return violations
}

func (c Column) checkBounds(n float64, path string) []Violation {
	var violations []Violation
	if c.Minimum != nil && n < *c.Minimum {
		violations = append(violations, Violation{path, fmt.Sprintf("must be >= %v", *c.Minimum)})
	}
	if c.Maximum != nil && n > *c.Maximum {
		violations = append(violations, Violation{path, fmt.Sprintf("must be <= %v", *c.Maximum)})
	}
	return violations
}

func contains(values []string, target string) bool {
	for _, v := range values {
		if v == target {
			return true
		}
	}
	return false
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
