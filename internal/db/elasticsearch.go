package db

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ElasticsearchClient wraps HTTP calls to the Elasticsearch REST API
// This avoids pulling in the full official client for the handful of
// endpoints the batch subsystem needs
type ElasticsearchClient struct {
	baseURL    string
	httpClient *http.Client
}

// ElasticsearchConfig holds configuration for the Elasticsearch connection
type ElasticsearchConfig struct {
	Host    string
	Port    int
	Timeout time.Duration
}

// DefaultElasticsearchConfig returns a configuration with sensible defaults
func DefaultElasticsearchConfig() ElasticsearchConfig {
	return ElasticsearchConfig{
		Host:    "localhost",
		Port:    9200,
		Timeout: 30 * time.Second,
	}
}

// BulkAction identifies the operation of a single bulk item
type BulkAction string

const (
	BulkActionIndex  BulkAction = "index"
	BulkActionUpdate BulkAction = "update"
	BulkActionDelete BulkAction = "delete"
)

// BulkOperation is one item in a bulk request
type BulkOperation struct {
	Action BulkAction
	Index  string
	ID     string
	Doc    map[string]interface{} // Document body (index) or partial doc (update)
}

// BulkResult summarizes a bulk response
type BulkResult struct {
	Took      int  `json:"took"`
	HasErrors bool `json:"errors"`
	Items     int  `json:"-"`
}

// SearchHit is a single document returned from search or scroll
type SearchHit struct {
	Index  string                 `json:"_index"`
	ID     string                 `json:"_id"`
	Source map[string]interface{} `json:"_source"`
}

// ScrollPage is one page of a scroll traversal
type ScrollPage struct {
	ScrollID string
	Total    int
	Hits     []SearchHit
}

type searchResponse struct {
	ScrollID string `json:"_scroll_id"`
	Hits     struct {
		Total struct {
			Value int `json:"value"`
		} `json:"total"`
		Hits []SearchHit `json:"hits"`
	} `json:"hits"`
}

// NewElasticsearchClient creates a new Elasticsearch client
func NewElasticsearchClient(config ElasticsearchConfig) *ElasticsearchClient {
	if config.Host == "" {
		config.Host = "localhost"
	}
	if config.Port == 0 {
		config.Port = 9200
	}
	if config.Timeout == 0 {
		config.Timeout = 30 * time.Second
	}

	return &ElasticsearchClient{
		baseURL: fmt.Sprintf("http://%s:%d", config.Host, config.Port),
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Heartbeat checks if the cluster is reachable
func (c *ElasticsearchClient) Heartbeat(ctx context.Context) error {
	reqURL := fmt.Sprintf("%s/_cluster/health", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "GET", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create heartbeat request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("heartbeat request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("heartbeat failed with status: %d", resp.StatusCode)
	}

	return nil
}

// Index stores a document under the given id, creating or replacing it
func (c *ElasticsearchClient) Index(ctx context.Context, index, id string, doc map[string]interface{}, refresh bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to marshal document: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/_doc/%s", c.baseURL, index, url.PathEscape(id))
	if refresh {
		reqURL += "?refresh=true"
	}

	req, err := http.NewRequestWithContext(ctx, "PUT", reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("index document failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Exists checks whether a document id is present in the index
func (c *ElasticsearchClient) Exists(ctx context.Context, index, id string) (bool, error) {
	reqURL := fmt.Sprintf("%s/%s/_doc/%s", c.baseURL, index, url.PathEscape(id))

	req, err := http.NewRequestWithContext(ctx, "HEAD", reqURL, nil)
	if err != nil {
		return false, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		return true, nil
	case http.StatusNotFound:
		return false, nil
	default:
		return false, fmt.Errorf("exists check failed with status: %d", resp.StatusCode)
	}
}

// Delete removes a document by id
func (c *ElasticsearchClient) Delete(ctx context.Context, index, id string, refresh bool) error {
	reqURL := fmt.Sprintf("%s/%s/_doc/%s", c.baseURL, index, url.PathEscape(id))
	if refresh {
		reqURL += "?refresh=true"
	}

	req, err := http.NewRequestWithContext(ctx, "DELETE", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return fmt.Errorf("document not found: %s", id)
	}

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete document failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Bulk executes a batch of operations in a single request
func (c *ElasticsearchClient) Bulk(ctx context.Context, ops []BulkOperation, refresh bool) (*BulkResult, error) {
	if len(ops) == 0 {
		return &BulkResult{}, nil
	}

	var buf bytes.Buffer
	for _, op := range ops {
		meta := map[string]map[string]string{
			string(op.Action): {"_index": op.Index, "_id": op.ID},
		}
		line, err := json.Marshal(meta)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')

		switch op.Action {
		case BulkActionIndex:
			line, err = json.Marshal(op.Doc)
		case BulkActionUpdate:
			line, err = json.Marshal(map[string]interface{}{"doc": op.Doc})
		case BulkActionDelete:
			continue
		default:
			return nil, fmt.Errorf("unsupported bulk action: %s", op.Action)
		}
		if err != nil {
			return nil, fmt.Errorf("failed to marshal bulk document: %w", err)
		}
		buf.Write(line)
		buf.WriteByte('\n')
	}

	reqURL := fmt.Sprintf("%s/_bulk", c.baseURL)
	if refresh {
		reqURL += "?refresh=true"
	}

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, &buf)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-ndjson")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("bulk request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var result BulkResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	result.Items = len(ops)

	return &result, nil
}

// OpenScroll starts a scroll traversal over an index, returning the first page
func (c *ElasticsearchClient) OpenScroll(ctx context.Context, index string, sourceFields []string, size int, keepAlive string) (*ScrollPage, error) {
	if size <= 0 {
		size = 100
	}
	if keepAlive == "" {
		keepAlive = "5m"
	}

	payload := map[string]interface{}{
		"size":  size,
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
	}
	if len(sourceFields) > 0 {
		payload["_source"] = sourceFields
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/%s/_search?scroll=%s", c.baseURL, index, keepAlive)

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return parseScrollPage(resp)
}

// ContinueScroll fetches the next page of an open scroll
func (c *ElasticsearchClient) ContinueScroll(ctx context.Context, scrollID, keepAlive string) (*ScrollPage, error) {
	if keepAlive == "" {
		keepAlive = "5m"
	}

	payload := map[string]interface{}{
		"scroll":    keepAlive,
		"scroll_id": scrollID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/_search/scroll", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return parseScrollPage(resp)
}

// ClearScroll releases server-side scroll state
func (c *ElasticsearchClient) ClearScroll(ctx context.Context, scrollID string) error {
	payload := map[string]interface{}{
		"scroll_id": scrollID,
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %w", err)
	}

	reqURL := fmt.Sprintf("%s/_search/scroll", c.baseURL)

	req, err := http.NewRequestWithContext(ctx, "DELETE", reqURL, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("clear scroll failed (status %d): %s", resp.StatusCode, string(body))
	}

	return nil
}

// Refresh makes recent writes visible to search
func (c *ElasticsearchClient) Refresh(ctx context.Context, index string) error {
	return c.indexAction(ctx, index, "_refresh")
}

// ForceMerge compacts index segments
func (c *ElasticsearchClient) ForceMerge(ctx context.Context, index string) error {
	return c.indexAction(ctx, index, "_forcemerge?max_num_segments=1")
}

// Flush commits the transaction log to disk
func (c *ElasticsearchClient) Flush(ctx context.Context, index string) error {
	return c.indexAction(ctx, index, "_flush")
}

// Close closes idle HTTP connections
func (c *ElasticsearchClient) Close() {
	c.httpClient.CloseIdleConnections()
}

func (c *ElasticsearchClient) indexAction(ctx context.Context, index, action string) error {
	reqURL := fmt.Sprintf("%s/%s/%s", c.baseURL, index, action)

	req, err := http.NewRequestWithContext(ctx, "POST", reqURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		name := action
		if i := strings.IndexByte(name, '?'); i >= 0 {
			name = name[:i]
		}
		return fmt.Errorf("%s failed (status %d): %s", strings.TrimPrefix(name, "_"), resp.StatusCode, string(body))
	}

	return nil
}

func parseScrollPage(resp *http.Response) (*ScrollPage, error) {
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("scroll request failed (status %d): %s", resp.StatusCode, string(body))
	}

	var sr searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &ScrollPage{
		ScrollID: sr.ScrollID,
		Total:    sr.Hits.Total.Value,
		Hits:     sr.Hits.Hits,
	}, nil
}
