package reranker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const (
	ProviderNone   = "none"
	ProviderJina   = "jina"
	ProviderCohere = "cohere"
)

var defaults = map[string]struct{ url, model string }{
	ProviderJina:   {"https://api.jina.ai/v1/rerank", "jina-reranker-v2-base-multilingual"},
	ProviderCohere: {"https://api.cohere.ai/v1/rerank", "rerank-multilingual-v3.0"},
}

// Client reorders similarity results through a hosted rerank API. Both
// supported providers share the request and response shape.
type Client struct {
	provider string
	apiKey   string
	baseURL  string
	client   *http.Client
}

func NewClient(provider, apiKey string) *Client {
	return &Client{
		provider: provider,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
}

func (c *Client) SetBaseURL(url string) {
	c.baseURL = url
}

// Enabled reports whether Rerank does anything besides the identity order.
func (c *Client) Enabled() bool {
	_, ok := defaults[c.provider]
	return ok
}

type rerankRequest struct {
	Model           string   `json:"model"`
	Query           string   `json:"query"`
	Documents       []string `json:"documents"`
	TopN            int      `json:"top_n"`
	ReturnDocuments bool     `json:"return_documents"`
}

type rerankResponse struct {
	Results []struct {
		Index int     `json:"index"`
		Score float64 `json:"relevance_score"`
	} `json:"results"`
}

// Rerank returns the indices of docs, best first. Indices the provider
// leaves out are appended in their original order so nothing is lost.
func (c *Client) Rerank(ctx context.Context, query string, docs []string) ([]int, error) {
	d, ok := defaults[c.provider]
	if !ok || len(docs) < 2 {
		return identity(len(docs)), nil
	}
	url := d.url
	if c.baseURL != "" {
		url = c.baseURL
	}

	body, err := json.Marshal(rerankRequest{
		Model:     d.model,
		Query:     query,
		Documents: docs,
		TopN:      len(docs),
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiKey)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s rerank request: %w", c.provider, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%s api error: %d", c.provider, resp.StatusCode)
	}

	var result rerankResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("%s rerank response: %w", c.provider, err)
	}

	seen := make([]bool, len(docs))
	indices := make([]int, 0, len(docs))
	for _, r := range result.Results {
		if r.Index < 0 || r.Index >= len(docs) || seen[r.Index] {
			continue
		}
		seen[r.Index] = true
		indices = append(indices, r.Index)
	}
	for i, ok := range seen {
		if !ok {
			indices = append(indices, i)
		}
	}
	return indices, nil
}

func identity(n int) []int {
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}
	return indices
}
