package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/skein-labs/skein/backend/pkg/provider"

	"codeberg.org/readeck/go-readability/v2"
)

const defaultBaseURL = "https://en.wikipedia.org/api/rest_v1"

// Client resolves titles to summaries and images through a
// MediaWiki-style REST endpoint. When the endpoint has no extract for a
// page, the page HTML is fetched and the readable text extracted as a
// fallback summary.
type Client struct {
	baseURL    string
	httpClient *http.Client
	// maxSummaryRunes caps fallback summaries, which can otherwise be
	// whole articles.
	maxSummaryRunes int
}

// ClientParams configures a Client.
type ClientParams struct {
	BaseURL         string
	HTTPClient      *http.Client
	MaxSummaryRunes int
}

// NewClient creates a summary/image client.
func NewClient(params ClientParams) *Client {
	base := params.BaseURL
	if base == "" {
		base = defaultBaseURL
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	maxRunes := params.MaxSummaryRunes
	if maxRunes <= 0 {
		maxRunes = 1200
	}
	return &Client{
		baseURL:         strings.TrimRight(base, "/"),
		httpClient:      httpClient,
		maxSummaryRunes: maxRunes,
	}
}

type summaryResponse struct {
	Title     string `json:"title"`
	Extract   string `json:"extract"`
	PageID    int64  `json:"pageid"`
	Thumbnail struct {
		Source string `json:"source"`
	} `json:"thumbnail"`
	ContentURLs struct {
		Desktop struct {
			Page string `json:"page"`
		} `json:"desktop"`
	} `json:"content_urls"`
}

// Lookup resolves one title. A page without an extract falls back to
// readability over the page HTML; a missing page is an empty
// enrichment, not an error.
func (c *Client) Lookup(ctx context.Context, title, contextHint string) (*provider.Enrichment, error) {
	endpoint := fmt.Sprintf("%s/page/summary/%s", c.baseURL, url.PathEscape(strings.ReplaceAll(title, " ", "_")))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch summary: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return &provider.Enrichment{}, nil
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("summary endpoint returned status %d", resp.StatusCode)
	}

	var body summaryResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("failed to decode summary: %w", err)
	}

	enrichment := &provider.Enrichment{
		Summary:  body.Extract,
		ImageURL: body.Thumbnail.Source,
	}
	if body.PageID != 0 {
		enrichment.ExternalRef = strconv.FormatInt(body.PageID, 10)
	}

	if enrichment.Summary == "" && body.ContentURLs.Desktop.Page != "" {
		if text, err := c.readableText(ctx, body.ContentURLs.Desktop.Page); err == nil {
			enrichment.Summary = text
		}
	}
	return enrichment, nil
}

// readableText fetches a page and extracts its main content as text.
func (c *Client) readableText(ctx context.Context, pageURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	parsed, err := url.Parse(pageURL)
	if err != nil {
		return "", err
	}
	article, err := readability.FromReader(resp.Body, parsed)
	if err != nil {
		return "", fmt.Errorf("failed to parse html: %w", err)
	}
	var builder strings.Builder
	if err := article.RenderText(&builder); err != nil {
		return "", fmt.Errorf("failed to render article text: %w", err)
	}

	text := strings.TrimSpace(builder.String())
	runes := []rune(text)
	if len(runes) > c.maxSummaryRunes {
		text = string(runes[:c.maxSummaryRunes])
	}
	return text, nil
}
