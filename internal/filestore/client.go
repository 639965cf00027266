package filestore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/campaignops/resource-factory/internal/apperrors"
	"github.com/campaignops/resource-factory/internal/httpclient"
)

// Client talks to the object file-store collaborator. Uploaded workbooks and
// processed error workbooks are durable file references, never local paths.
type Client struct {
	baseURL string
	http    *httpclient.Client
	logger  *zap.Logger
}

// NewClient creates a file-store client.
func NewClient(baseURL string, http *httpclient.Client, logger *zap.Logger) *Client {
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), http: http, logger: logger}
}

type fileURLResponse struct {
	FileStoreIDs []struct {
		ID  string `json:"id"`
		URL string `json:"url"`
	} `json:"fileStoreIds"`
}

type uploadResponse struct {
	FileStoreIDs []struct {
		FileStoreID string `json:"fileStoreId"`
	} `json:"fileStoreIds"`
}

// GetURLs resolves file store ids to signed download URLs.
func (c *Client) GetURLs(ctx context.Context, tenantID string, fileStoreIDs []string) (map[string]string, error) {
	query := url.Values{}
	query.Set("tenantId", tenantID)
	query.Set("fileStoreIds", strings.Join(fileStoreIDs, ","))

	var resp fileURLResponse
	if err := c.http.GetJSON(ctx, c.baseURL+"/files/url", query, &resp); err != nil {
		return nil, fmt.Errorf("failed to resolve file urls: %w", err)
	}

	urls := make(map[string]string, len(resp.FileStoreIDs))
	for _, f := range resp.FileStoreIDs {
		if f.URL != "" {
			urls[f.ID] = f.URL
		}
	}
	return urls, nil
}

// GetURL resolves a single file store id; a missing URL is an INVALID_FILE
// error because every processed upload must be downloadable.
func (c *Client) GetURL(ctx context.Context, tenantID, fileStoreID string) (string, error) {
	urls, err := c.GetURLs(ctx, tenantID, []string{fileStoreID})
	if err != nil {
		return "", err
	}
	fileURL, ok := urls[fileStoreID]
	if !ok || fileURL == "" {
		return "", apperrors.Newf(apperrors.InvalidFile, "no downloadable URL found for fileStoreId %s", fileStoreID)
	}
	return fileURL, nil
}

// Download fetches the raw content behind a file store id.
func (c *Client) Download(ctx context.Context, tenantID, fileStoreID string) ([]byte, error) {
	fileURL, err := c.GetURL(ctx, tenantID, fileStoreID)
	if err != nil {
		return nil, err
	}

	content, err := c.http.GetBytes(ctx, fileURL)
	if err != nil {
		return nil, fmt.Errorf("failed to download file %s: %w", fileStoreID, err)
	}
	return content, nil
}

// Upload stores a file and returns its durable file store id.
func (c *Client) Upload(ctx context.Context, tenantID, module, filename string, content []byte) (string, error) {
	fields := map[string]string{
		"tenantId": tenantID,
		"module":   module,
	}

	var resp uploadResponse
	if err := c.http.PostMultipart(ctx, c.baseURL+"/files", "file", filename, content, fields, &resp); err != nil {
		return "", fmt.Errorf("failed to upload file %s: %w", filename, err)
	}

	if len(resp.FileStoreIDs) == 0 || resp.FileStoreIDs[0].FileStoreID == "" {
		return "", fmt.Errorf("file store returned no id for %s", filename)
	}

	c.logger.Info("file uploaded",
		zap.String("filename", filename),
		zap.String("file_store_id", resp.FileStoreIDs[0].FileStoreID),
	)
	return resp.FileStoreIDs[0].FileStoreID, nil
}
