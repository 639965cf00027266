package schema

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/cache"
	"github.com/campaignops/resource-factory/internal/httpclient"
	"github.com/campaignops/resource-factory/internal/models"
)

// Resolver fetches column schema definitions from the external schema
// registry and caches them per (tenant, type, hierarchy). The registry may
// return several versions; the hierarchy-scoped definition wins when present.
type Resolver struct {
	baseURL string
	http    *httpclient.Client
	loader  *cache.Loader
	ttl     time.Duration
	logger  *zap.Logger
}

// NewResolver creates a schema resolver with a TTL cache.
func NewResolver(baseURL string, http *httpclient.Client, store cache.Store, ttl time.Duration, logger *zap.Logger) *Resolver {
	return &Resolver{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    http,
		loader:  cache.NewLoader(store),
		ttl:     ttl,
		logger:  logger,
	}
}

type searchRequest struct {
	SchemaDefCriteria struct {
		TenantID string   `json:"tenantId"`
		Codes    []string `json:"codes"`
	} `json:"SchemaDefCriteria"`
}

type searchResponse struct {
	SchemaDefinitions []models.SchemaDefinition `json:"SchemaDefinitions"`
}

// Resolve returns the schema definition for a resource type, scoped to the
// hierarchy when the registry carries a hierarchy-specific version.
func (r *Resolver) Resolve(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.SchemaDefinition, error) {
	key := fmt.Sprintf("schema:%s:%s:%s", tenantID, resourceType, hierarchyType)

	raw, err := r.loader.GetOrLoad(ctx, key, r.ttl, func(ctx context.Context) (string, error) {
		def, err := r.fetch(ctx, tenantID, resourceType, hierarchyType)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(def)
		if err != nil {
			return "", fmt.Errorf("failed to encode schema for cache: %w", err)
		}
		return string(encoded), nil
	})
	if err != nil {
		return nil, err
	}

	var def models.SchemaDefinition
	if err := json.Unmarshal([]byte(raw), &def); err != nil {
		return nil, apperrors.Wrap(apperrors.SchemaError, err)
	}

	// A cached definition must never cross tenants.
	if def.TenantID != "" && def.TenantID != tenantID {
		return nil, apperrors.Newf(apperrors.SchemaError,
			"schema cache returned definition for tenant %s, expected %s", def.TenantID, tenantID)
	}
	return &def, nil
}

// ResolveColumns resolves a schema and compiles it into column descriptors.
func (r *Resolver) ResolveColumns(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.SchemaDefinition, []Column, error) {
	def, err := r.Resolve(ctx, tenantID, resourceType, hierarchyType)
	if err != nil {
		return nil, nil, err
	}
	columns, err := Compile(def)
	if err != nil {
		return nil, nil, apperrors.Wrap(apperrors.SchemaError, err)
	}
	return def, columns, nil
}

// Invalidate drops a cached definition, forcing the next resolve to refetch.
func (r *Resolver) Invalidate(ctx context.Context, tenantID, resourceType, hierarchyType string) error {
	return r.loader.Invalidate(ctx, fmt.Sprintf("schema:%s:%s:%s", tenantID, resourceType, hierarchyType))
}

func (r *Resolver) fetch(ctx context.Context, tenantID, resourceType, hierarchyType string) (*models.SchemaDefinition, error) {
	var req searchRequest
	req.SchemaDefCriteria.TenantID = tenantID
	req.SchemaDefCriteria.Codes = candidateCodes(resourceType, hierarchyType)

	var resp searchResponse
	if err := r.http.PostJSON(ctx, r.baseURL+"/schema/v1/_search", req, &resp); err != nil {
		return nil, apperrors.Wrap(apperrors.SchemaError, err)
	}

	def := SelectDefinition(resp.SchemaDefinitions, resourceType, hierarchyType)
	if def == nil {
		return nil, apperrors.Newf(apperrors.SchemaError,
			"schema registry returned no definition for type %s and hierarchy %s", resourceType, hierarchyType)
	}

	r.logger.Debug("schema resolved",
		zap.String("tenant_id", tenantID),
		zap.String("code", def.Code),
		zap.Int("properties", len(def.Definition.Properties)),
	)
	return def, nil
}

func candidateCodes(resourceType, hierarchyType string) []string {
	if hierarchyType == "" {
		return []string{resourceType}
	}
	return []string{resourceType + "." + hierarchyType, resourceType}
}

// SelectDefinition picks the most specific definition out of the registry
// response: a hierarchy-scoped code first, then the generic type code.
func SelectDefinition(defs []models.SchemaDefinition, resourceType, hierarchyType string) *models.SchemaDefinition {
	if hierarchyType != "" {
		scoped := resourceType + "." + hierarchyType
		for i := range defs {
			if defs[i].Code == scoped && len(defs[i].Definition.Properties) > 0 {
				return &defs[i]
			}
		}
	}
	for i := range defs {
		if defs[i].Code == resourceType && len(defs[i].Definition.Properties) > 0 {
			return &defs[i]
		}
	}
	return nil
}
