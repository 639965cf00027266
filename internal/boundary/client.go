package boundary

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/httpclient"
	"github.com/campaignops/resource-factory/internal/models"
)

// Client talks to the boundary service: hierarchy definitions, the tenant
// boundary relationship tree, and entity/relationship creation.
type Client struct {
	baseURL         string
	http            *httpclient.Client
	parallelLookups int
	logger          *zap.Logger
}

// NewClient creates a boundary service client.
func NewClient(baseURL string, http *httpclient.Client, parallelLookups int, logger *zap.Logger) *Client {
	if parallelLookups <= 0 {
		parallelLookups = 5
	}
	return &Client{
		baseURL:         strings.TrimRight(baseURL, "/"),
		http:            http,
		parallelLookups: parallelLookups,
		logger:          logger,
	}
}

type hierarchySearchRequest struct {
	BoundaryTypeHierarchySearchCriteria struct {
		TenantID      string `json:"tenantId"`
		HierarchyType string `json:"hierarchyType"`
	} `json:"BoundaryTypeHierarchySearchCriteria"`
}

type hierarchySearchResponse struct {
	BoundaryHierarchy []models.BoundaryHierarchy `json:"BoundaryHierarchy"`
}

// FetchHierarchy returns the ordered boundary level definition for a tenant
// and hierarchy type.
func (c *Client) FetchHierarchy(ctx context.Context, tenantID, hierarchyType string) (*models.BoundaryHierarchy, error) {
	var req hierarchySearchRequest
	req.BoundaryTypeHierarchySearchCriteria.TenantID = tenantID
	req.BoundaryTypeHierarchySearchCriteria.HierarchyType = hierarchyType

	var resp hierarchySearchResponse
	if err := c.http.PostJSON(ctx, c.baseURL+"/boundary-hierarchy-definition/_search", req, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch boundary hierarchy: %w", err)
	}

	if len(resp.BoundaryHierarchy) == 0 || len(resp.BoundaryHierarchy[0].Levels) == 0 {
		return nil, apperrors.Newf(apperrors.ValidationError,
			"no boundary hierarchy found for hierarchyType %s in tenant %s", hierarchyType, tenantID)
	}
	return &resp.BoundaryHierarchy[0], nil
}

type relationshipNode struct {
	Code         string             `json:"code"`
	BoundaryType string             `json:"boundaryType"`
	Name         string             `json:"name,omitempty"`
	Children     []relationshipNode `json:"children,omitempty"`
}

type relationshipSearchResponse struct {
	TenantBoundary []struct {
		TenantID      string             `json:"tenantId"`
		HierarchyType string             `json:"hierarchyType"`
		Boundary      []relationshipNode `json:"boundary"`
	} `json:"TenantBoundary"`
}

// FetchRelationships returns the flattened boundary relationship tree for
// the tenant, optionally rooted at one boundary code.
func (c *Client) FetchRelationships(ctx context.Context, tenantID, hierarchyType, rootCode string) ([]models.BoundaryRelationship, error) {
	endpoint := fmt.Sprintf(
		"%s/boundary-relationships/_search?tenantId=%s&hierarchyType=%s&includeChildren=true",
		c.baseURL, tenantID, hierarchyType,
	)
	if rootCode != "" {
		endpoint += "&codes=" + rootCode
	}

	var resp relationshipSearchResponse
	if err := c.http.PostJSON(ctx, endpoint, struct{}{}, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch boundary relationships: %w", err)
	}

	var flat []models.BoundaryRelationship
	for _, tb := range resp.TenantBoundary {
		for _, node := range tb.Boundary {
			flatten(node, "", &flat)
		}
	}
	return flat, nil
}

func flatten(node relationshipNode, parentCode string, out *[]models.BoundaryRelationship) {
	*out = append(*out, models.BoundaryRelationship{
		Code:         node.Code,
		BoundaryType: node.BoundaryType,
		ParentCode:   parentCode,
		Name:         node.Name,
	})
	for _, child := range node.Children {
		flatten(child, node.Code, out)
	}
}

// FetchRelationshipsForParents looks up subtrees for several parent codes in
// parallel. Fan-out is bounded and joined; one failure fails the whole call.
func (c *Client) FetchRelationshipsForParents(ctx context.Context, tenantID, hierarchyType string, parentCodes []string) (map[string][]models.BoundaryRelationship, error) {
	results := make(map[string][]models.BoundaryRelationship, len(parentCodes))
	var mu sync.Mutex

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(c.parallelLookups)

	for _, code := range parentCodes {
		code := code
		g.Go(func() error {
			rels, err := c.FetchRelationships(ctx, tenantID, hierarchyType, code)
			if err != nil {
				return fmt.Errorf("lookup for parent %s: %w", code, err)
			}
			mu.Lock()
			results[code] = rels
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

type entityCreateRequest struct {
	Boundary []models.BoundaryEntity `json:"Boundary"`
}

// CreateEntities creates boundary records in the boundary service.
func (c *Client) CreateEntities(ctx context.Context, tenantID string, entities []models.BoundaryEntity) error {
	if len(entities) == 0 {
		return nil
	}
	req := entityCreateRequest{Boundary: entities}
	if err := c.http.PostJSON(ctx, c.baseURL+"/boundary/_create?tenantId="+tenantID, req, nil); err != nil {
		return fmt.Errorf("failed to create %d boundary entities: %w", len(entities), err)
	}
	return nil
}

// CreateRelationship creates one parent-child boundary relationship.
func (c *Client) CreateRelationship(ctx context.Context, tenantID, hierarchyType string, rel models.BoundaryRelationship) error {
	body := map[string]interface{}{
		"BoundaryRelationship": map[string]interface{}{
			"tenantId":      tenantID,
			"hierarchyType": hierarchyType,
			"code":          rel.Code,
			"boundaryType":  rel.BoundaryType,
			"parent":        rel.ParentCode,
		},
	}
	if err := c.http.PostJSON(ctx, c.baseURL+"/boundary-relationships/_create", body, nil); err != nil {
		return apperrors.Wrap(apperrors.BoundaryRelationshipCreateError,
			fmt.Errorf("relationship %s -> %s: %w", rel.ParentCode, rel.Code, err))
	}
	return nil
}
