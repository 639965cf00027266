package models

import (
	"encoding/json"
	"time"
)

// Resource job statuses. Terminal statuses are never mutated again.
const (
	StatusValidationStarted = "validation-started"
	StatusInProgress        = "inprogress"
	StatusDataAccepted      = "data-accepted"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusInvalid           = "invalid"
	StatusExpired           = "expired"
)

// Resource actions.
const (
	ActionCreate   = "create"
	ActionValidate = "validate"
)

// Resource types accepted by the pipeline.
const (
	TypeBoundary           = "boundary"
	TypeFacility           = "facility"
	TypeUser               = "user"
	TypeBoundaryWithTarget = "boundaryWithTarget"
)

// IsTerminalStatus reports whether a status is sticky.
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusInvalid, StatusExpired:
		return true
	}
	return false
}

// IsKnownResourceType reports whether the pipeline handles the given type.
func IsKnownResourceType(t string) bool {
	switch t {
	case TypeBoundary, TypeFacility, TypeUser, TypeBoundaryWithTarget:
		return true
	}
	return false
}

// AuditDetails records who touched a row and when (epoch millis).
type AuditDetails struct {
	CreatedBy        string `json:"createdBy"`
	CreatedTime      int64  `json:"createdTime"`
	LastModifiedBy   string `json:"lastModifiedBy"`
	LastModifiedTime int64  `json:"lastModifiedTime"`
}

// ResourceDetails is a generated or processed resource job row.
type ResourceDetails struct {
	ID                   string                 `json:"id"`
	Type                 string                 `json:"type"`
	TenantID             string                 `json:"tenantId"`
	HierarchyType        string                 `json:"hierarchyType,omitempty"`
	FileStoreID          string                 `json:"fileStoreId,omitempty"`
	ProcessedFileStoreID string                 `json:"processedFileStoreId,omitempty"`
	Status               string                 `json:"status"`
	Action               string                 `json:"action,omitempty"`
	CampaignID           string                 `json:"campaignId,omitempty"`
	ReferenceID          string                 `json:"referenceId,omitempty"`
	AdditionalDetails    map[string]interface{} `json:"additionalDetails,omitempty"`
	AuditDetails         AuditDetails           `json:"auditDetails"`
}

// SearchCriteria filters resource job lookups.
type SearchCriteria struct {
	IDs      []string `json:"id,omitempty"`
	TenantID string   `json:"tenantId"`
	Type     string   `json:"type,omitempty"`
	Status   string   `json:"status,omitempty"`
}

// UserInfo is the authenticated caller forwarded by the gateway.
type UserInfo struct {
	UUID     string `json:"uuid"`
	UserName string `json:"userName,omitempty"`
	TenantID string `json:"tenantId"`
}

// RequestInfo is the standard request envelope header.
type RequestInfo struct {
	APIID    string   `json:"apiId,omitempty"`
	Ver      string   `json:"ver,omitempty"`
	MsgID    string   `json:"msgId,omitempty"`
	UserInfo UserInfo `json:"userInfo"`
}

// SchemaProperty is one column declaration inside a schema definition.
type SchemaProperty struct {
	Type        string          `json:"type"`
	Description string          `json:"description,omitempty"`
	MinLength   *int            `json:"minLength,omitempty"`
	MaxLength   *int            `json:"maxLength,omitempty"`
	Minimum     *float64        `json:"minimum,omitempty"`
	Maximum     *float64        `json:"maximum,omitempty"`
	Enum        []string        `json:"enum,omitempty"`
	OrderNumber int             `json:"orderNumber,omitempty"`
	FreezeCol   bool            `json:"freezeColumn,omitempty"`
	HideCol     bool            `json:"hideColumn,omitempty"`
	Raw         json.RawMessage `json:"-"`
}

// SchemaBody is the definition payload of a schema registry entry.
type SchemaBody struct {
	Type                 string                    `json:"type"`
	Required             []string                  `json:"required,omitempty"`
	Properties           map[string]SchemaProperty `json:"properties"`
	Unique               []string                  `json:"x-unique,omitempty"`
	RefSchema            []string                  `json:"x-ref-schema,omitempty"`
	AdditionalProperties bool                      `json:"additionalProperties,omitempty"`
}

// SchemaDefinition is a schema registry entry for a resource type.
type SchemaDefinition struct {
	Code       string     `json:"code"`
	TenantID   string     `json:"tenantId"`
	Definition SchemaBody `json:"definition"`
}

// BoundaryTypeLevel is one level of a boundary hierarchy definition.
type BoundaryTypeLevel struct {
	BoundaryType       string `json:"boundaryType"`
	ParentBoundaryType string `json:"parentBoundaryType,omitempty"`
	Active             bool   `json:"active"`
}

// BoundaryHierarchy is the ordered level list for a (tenant, hierarchyType).
type BoundaryHierarchy struct {
	TenantID      string              `json:"tenantId"`
	HierarchyType string              `json:"hierarchyType"`
	Levels        []BoundaryTypeLevel `json:"boundaryHierarchy"`
}

// LevelNames returns the boundary type names in hierarchy order.
func (h *BoundaryHierarchy) LevelNames() []string {
	names := make([]string, 0, len(h.Levels))
	for _, l := range h.Levels {
		names = append(names, l.BoundaryType)
	}
	return names
}

// BoundaryRelationship is one node of the tenant boundary tree, flattened.
type BoundaryRelationship struct {
	Code         string `json:"code"`
	BoundaryType string `json:"boundaryType"`
	ParentCode   string `json:"parentCode,omitempty"`
	Name         string `json:"name,omitempty"`
}

// BoundaryEntity is a boundary record to create in the boundary service.
type BoundaryEntity struct {
	TenantID     string `json:"tenantId"`
	Code         string `json:"code"`
	BoundaryType string `json:"boundaryType"`
	Name         string `json:"name,omitempty"`
}

// LocalizationMessage is one key/text pair in a localization module.
type LocalizationMessage struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Module  string `json:"module"`
	Locale  string `json:"locale"`
}

// DeliveryCondition encodes one delivery rule comparator for downstream
// campaign consumers. The textual form produced by Encode is parsed
// downstream and must not change.
type DeliveryCondition struct {
	Attribute string  `json:"attribute"`
	Operator  string  `json:"operator"`
	Value     float64 `json:"value"`
}

// DeliveryRule groups conditions applied to one campaign cycle.
type DeliveryRule struct {
	CycleNumber    int                 `json:"cycleNumber"`
	DeliveryNumber int                 `json:"deliveryNumber"`
	Conditions     []DeliveryCondition `json:"conditions,omitempty"`
}

// CampaignDetails is a project-type campaign entity.
type CampaignDetails struct {
	ID                string                 `json:"id"`
	TenantID          string                 `json:"tenantId"`
	Name              string                 `json:"campaignName"`
	ProjectType       string                 `json:"projectType"`
	HierarchyType     string                 `json:"hierarchyType,omitempty"`
	Status            string                 `json:"status"`
	Boundaries        []BoundaryRelationship `json:"boundaries,omitempty"`
	DeliveryRules     []DeliveryRule         `json:"deliveryRules,omitempty"`
	AdditionalDetails map[string]interface{} `json:"additionalDetails,omitempty"`
	AuditDetails      AuditDetails           `json:"auditDetails"`
}

// CampaignSearchCriteria filters campaign lookups.
type CampaignSearchCriteria struct {
	IDs      []string `json:"ids,omitempty"`
	TenantID string   `json:"tenantId"`
	Status   string   `json:"status,omitempty"`
	Name     string   `json:"campaignName,omitempty"`
}

// NowMillis returns the current time in epoch milliseconds, the unit used
// across audit fields.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
