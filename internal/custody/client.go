package custody

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"arenasettle/internal/config"
)

// assetResponse 资产托管接口 GET /atomicassets/v1/assets/{id} 的返回
type assetResponse struct {
	Success bool `json:"success"`
	Data    struct {
		AssetID    string `json:"asset_id"`
		Owner      string `json:"owner"`
		Collection struct {
			CollectionName string `json:"collection_name"`
		} `json:"collection"`
		Template *struct {
			TemplateID string `json:"template_id"`
		} `json:"template"`
	} `json:"data"`
}

// Client 资产托管服务的 HTTP 客户端
type Client struct {
	baseURL    string
	collection string
	client     *http.Client
}

func NewClient(cfg *config.CustodyConfig, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: time.Duration(cfg.TimeoutSeconds) * time.Second}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		collection: cfg.Collection,
		client:     client,
	}
}

// Lookup owner 当前持有 assetID 时返回它的模板 ID；资产不存在、不属于 owner 或不在收藏集内时 found=false
func (c *Client) Lookup(ctx context.Context, owner string, assetID uint64) (uint64, bool, error) {
	url := fmt.Sprintf("%s/atomicassets/v1/assets/%d", c.baseURL, assetID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return 0, false, fmt.Errorf("build asset request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, false, fmt.Errorf("asset request: %w", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return 0, false, nil
	case resp.StatusCode != http.StatusOK:
		return 0, false, fmt.Errorf("asset request returned %s", resp.Status)
	}

	var body assetResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return 0, false, fmt.Errorf("decode asset response: %w", err)
	}
	if !body.Success || body.Data.Owner != owner || body.Data.Template == nil {
		return 0, false, nil
	}
	if c.collection != "" && body.Data.Collection.CollectionName != c.collection {
		return 0, false, nil
	}

	templateID, err := strconv.ParseUint(body.Data.Template.TemplateID, 10, 64)
	if err != nil {
		return 0, false, fmt.Errorf("parse template id %q: %w", body.Data.Template.TemplateID, err)
	}
	return templateID, true, nil
}
