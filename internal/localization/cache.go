package localization

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/cache"
	"github.com/campaignops/resource-factory/internal/httpclient"
	"github.com/campaignops/resource-factory/internal/models"
)

// Map holds code → localized text mappings for one merged module view.
type Map map[string]string

// LocalizedName returns the text for code, falling back to the code itself.
// Missing localization is never fatal; it surfaces as unlocalized text.
func (m Map) LocalizedName(code string) string {
	if m == nil {
		return code
	}
	if text, ok := m[code]; ok && text != "" {
		return text
	}
	return code
}

// Merge overlays other onto m; keys in other win on collision.
func (m Map) Merge(other Map) Map {
	merged := make(Map, len(m)+len(other))
	for k, v := range m {
		merged[k] = v
	}
	for k, v := range other {
		merged[k] = v
	}
	return merged
}

// Cache fetches per-tenant localization modules from the localization
// service with a process-wide TTL cache and single-flight de-duplication.
type Cache struct {
	baseURL       string
	http          *httpclient.Client
	loader        *cache.Loader
	ttl           time.Duration
	defaultModule string
	logger        *zap.Logger
}

// NewCache creates a localization cache.
func NewCache(baseURL string, http *httpclient.Client, store cache.Store, ttl time.Duration, defaultModule string, logger *zap.Logger) *Cache {
	return &Cache{
		baseURL:       strings.TrimRight(baseURL, "/"),
		http:          http,
		loader:        cache.NewLoader(store),
		ttl:           ttl,
		defaultModule: defaultModule,
		logger:        logger,
	}
}

type searchResponse struct {
	Messages []models.LocalizationMessage `json:"messages"`
}

// Messages returns the key→text map for one (tenant, module, locale). When
// module is empty the tenant default module is used.
func (c *Cache) Messages(ctx context.Context, tenantID, module, locale string) (Map, error) {
	if module == "" {
		module = c.defaultModule
	}
	key := fmt.Sprintf("l10n:%s:%s:%s", tenantID, module, locale)

	raw, err := c.loader.GetOrLoad(ctx, key, c.ttl, func(ctx context.Context) (string, error) {
		m, err := c.fetch(ctx, tenantID, module, locale)
		if err != nil {
			return "", err
		}
		encoded, err := json.Marshal(m)
		if err != nil {
			return "", fmt.Errorf("failed to encode localization map: %w", err)
		}
		return string(encoded), nil
	})
	if err != nil {
		return nil, err
	}

	var m Map
	if err := json.Unmarshal([]byte(raw), &m); err != nil {
		return nil, fmt.Errorf("failed to decode cached localization map: %w", err)
	}
	return m, nil
}

// MessagesForHierarchy merges the hierarchy-specific module over the general
// module. Hierarchy-specific keys win on collision.
func (c *Cache) MessagesForHierarchy(ctx context.Context, tenantID, hierarchyType, locale string) (Map, error) {
	general, err := c.Messages(ctx, tenantID, "", locale)
	if err != nil {
		return nil, err
	}

	if hierarchyType == "" {
		return general, nil
	}

	hierarchy, err := c.Messages(ctx, tenantID, HierarchyModule(hierarchyType), locale)
	if err != nil {
		return nil, err
	}
	return general.Merge(hierarchy), nil
}

// HierarchyModule returns the localization module name for a hierarchy type.
func HierarchyModule(hierarchyType string) string {
	return "hcm-boundary-" + strings.ToLower(hierarchyType)
}

func (c *Cache) fetch(ctx context.Context, tenantID, module, locale string) (Map, error) {
	query := url.Values{}
	query.Set("tenantId", tenantID)
	query.Set("module", module)
	query.Set("locale", locale)

	var resp searchResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/messages/v1/_search", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to fetch localization messages: %w", err)
	}

	m := make(Map, len(resp.Messages))
	for _, msg := range resp.Messages {
		m[msg.Code] = msg.Message
	}

	c.logger.Debug("localization messages fetched",
		zap.String("tenant_id", tenantID),
		zap.String("module", module),
		zap.String("locale", locale),
		zap.Int("count", len(m)),
	)
	return m, nil
}

type upsertRequest struct {
	TenantID string                       `json:"tenantId"`
	Messages []models.LocalizationMessage `json:"messages"`
}

// Upsert pushes localization messages upstream. Callers chunk large batches
// through the batch processor; this sends one chunk.
func (c *Cache) Upsert(ctx context.Context, tenantID string, messages []models.LocalizationMessage) error {
	if len(messages) == 0 {
		return nil
	}
	req := upsertRequest{TenantID: tenantID, Messages: messages}
	if err := c.http.PostJSON(ctx, c.baseURL+"/messages/v1/_upsert", req, nil); err != nil {
		return fmt.Errorf("failed to upsert %d localization messages: %w", len(messages), err)
	}
	return nil
}

// CacheBust asks the localization service to drop its own caches, then
// drops the local maps for the tenant on the next TTL expiry.
func (c *Cache) CacheBust(ctx context.Context, tenantID string) error {
	query := url.Values{}
	query.Set("tenantId", tenantID)
	if err := c.http.GetJSON(ctx, c.baseURL+"/messages/cache-bust", query, nil); err != nil {
		return fmt.Errorf("failed to bust localization cache: %w", err)
	}
	return nil
}
