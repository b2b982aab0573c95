// Package cache is the client side of the shared expansion cache. It
// talks to the cache store's HTTP surface and degrades gracefully: a
// failed cache call never takes an expansion down with it, the caller
// falls back to provider-only operation.
package cache

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/skein-labs/skein/backend/pkg/common"
)

const defaultTimeout = 10 * time.Second

// Node is a cache-resident entity as exchanged with the store. Label
// carries the edge annotation between the expansion source and this
// node.
type Node struct {
	ID          int64           `json:"id,omitempty"`
	Title       string          `json:"title"`
	Type        common.NodeType `json:"type"`
	Description string          `json:"description,omitempty"`
	Year        *int            `json:"year,omitempty"`
	ExternalRef string          `json:"externalRef,omitempty"`
	ImageURL    string          `json:"imageUrl,omitempty"`
	Summary     string          `json:"summary,omitempty"`
	Label       string          `json:"label,omitempty"`
}

// LookupResult is the outcome of an expansion lookup. Hit false means
// the store had neither an exact nor a similar-enough entry.
type LookupResult struct {
	Hit   bool   `json:"hit"`
	Exact bool   `json:"exact"`
	Nodes []Node `json:"nodes"`
}

// Client calls the cache store over HTTP.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// ClientParams configures a Client.
type ClientParams struct {
	BaseURL    string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// NewClient creates a cache store client.
func NewClient(params ClientParams) *Client {
	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := params.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(params.BaseURL, "/"),
		httpClient: httpClient,
	}
}

type upsertNodeResponse struct {
	ID int64 `json:"id"`
}

// UpsertNode registers a node with the store and returns its canonical
// id. The store keys on (title, type, externalRef), so repeated calls
// for the same entity return the same id.
func (c *Client) UpsertNode(ctx context.Context, node Node) (int64, error) {
	var res upsertNodeResponse
	if err := c.post(ctx, "/node", node, &res); err != nil {
		return 0, fmt.Errorf("upsert node %q: %w", node.Title, err)
	}
	if res.ID <= 0 {
		return 0, fmt.Errorf("upsert node %q: store returned id %d", node.Title, res.ID)
	}
	return res.ID, nil
}

// LookupExpansion asks the store for a cached expansion of sourceID
// under the given context. The context travels as raw ids; the store
// owns fingerprinting and similarity matching.
func (c *Client) LookupExpansion(ctx context.Context, sourceID int64, contextIDs []int64) (*LookupResult, error) {
	params := url.Values{}
	params.Set("sourceId", strconv.FormatInt(sourceID, 10))
	params.Set("context", joinIDs(contextIDs))

	var res LookupResult
	if err := c.get(ctx, "/expansion?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("lookup expansion of %d: %w", sourceID, err)
	}
	return &res, nil
}

type writeExpansionRequest struct {
	SourceID   int64   `json:"sourceId"`
	ContextIDs []int64 `json:"contextIds"`
	Nodes      []Node  `json:"nodes"`
}

type writeExpansionResponse struct {
	OK    bool    `json:"ok"`
	Nodes []Node  `json:"nodes"`
	IDs   []int64 `json:"ids"`
}

// WriteExpansion records an expansion result. The store upserts the
// nodes, links them to the source and remembers the context, all in
// one transaction. The returned ids are canonical, parallel to the
// request nodes.
func (c *Client) WriteExpansion(ctx context.Context, sourceID int64, contextIDs []int64, nodes []Node) ([]int64, error) {
	req := writeExpansionRequest{SourceID: sourceID, ContextIDs: contextIDs, Nodes: nodes}
	var res writeExpansionResponse
	if err := c.post(ctx, "/expansion", req, &res); err != nil {
		return nil, fmt.Errorf("write expansion of %d: %w", sourceID, err)
	}
	if !res.OK {
		return nil, fmt.Errorf("write expansion of %d: store rejected batch", sourceID)
	}
	if len(res.IDs) != len(nodes) {
		return nil, fmt.Errorf("write expansion of %d: got %d ids for %d nodes", sourceID, len(res.IDs), len(nodes))
	}
	return res.IDs, nil
}

// SimilarNodes returns search suggestions for a partial title.
func (c *Client) SimilarNodes(ctx context.Context, title string, limit int) ([]Node, error) {
	params := url.Values{}
	params.Set("title", title)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	var res struct {
		Nodes []Node `json:"nodes"`
	}
	if err := c.get(ctx, "/node/similar?"+params.Encode(), &res); err != nil {
		return nil, fmt.Errorf("similar nodes for %q: %w", title, err)
	}
	return res.Nodes, nil
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return common.ErrTimeout
		}
		var urlErr *url.Error
		if errors.As(err, &urlErr) && urlErr.Timeout() {
			return common.ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("store returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ",")
}
