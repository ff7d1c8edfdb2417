package elastic

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

	"fleetsync/pkg/logging"
)

const (
	defaultTimeout = 30 * time.Second

	// policyPageSize caps how many policies and agents one listing call
	// returns. Matches the page size the upstream Fleet UI uses.
	policyPageSize = 5000
)

// Config carries the connection settings for an HTTPClient.
type Config struct {
	// KibanaURL is the base URL of the Kibana instance, e.g.
	// https://my-deployment.kb.europe-west1.gcp.cloud.es.io
	KibanaURL string

	// ElasticsearchURL is the base URL of the Elasticsearch instance. If
	// empty it is derived from KibanaURL by substituting the "kb."
	// subdomain, which works for cloud deployments but may not for
	// self-managed ones.
	ElasticsearchURL string

	// APIKey is the Elastic API key used for both Kibana and
	// Elasticsearch calls.
	APIKey string

	// Timeout applies per call. Zero means the 30s default.
	Timeout time.Duration
}

// DeriveElasticsearchURL guesses the Elasticsearch base URL from a Kibana
// URL by swapping the cloud subdomain markers.
func DeriveElasticsearchURL(kibanaURL string) string {
	return strings.Replace(kibanaURL, "kb.", "es.", 1)
}

// HTTPClient implements Client against the Elasticsearch REST API
// (component templates, ingest pipelines) and the Kibana Fleet API
// (agent policies, agents).
type HTTPClient struct {
	kibanaURL string
	esURL     string
	apiKey    string
	client    *http.Client
}

// NewHTTPClient creates a client from the given configuration.
func NewHTTPClient(cfg Config) (*HTTPClient, error) {
	if cfg.KibanaURL == "" {
		return nil, fmt.Errorf("kibana URL is required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}

	esURL := cfg.ElasticsearchURL
	if esURL == "" {
		esURL = DeriveElasticsearchURL(cfg.KibanaURL)
		logging.Warn("ElasticClient", "No Elasticsearch URL provided, derived %s from the Kibana URL", esURL)
	}

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	return &HTTPClient{
		kibanaURL: strings.TrimRight(cfg.KibanaURL, "/"),
		esURL:     strings.TrimRight(esURL, "/"),
		apiKey:    cfg.APIKey,
		client:    &http.Client{Timeout: timeout},
	}, nil
}

// do executes one API request with the Elastic auth headers and decodes
// the JSON response into out (when out is non-nil). A 404 response maps
// to ErrNotFound so callers can distinguish absence from failure.
func (c *HTTPClient) do(ctx context.Context, method, rawURL string, body interface{}, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request body: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, rawURL, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "ApiKey "+c.apiKey)
	req.Header.Set("kbn-xsrf", "true")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	logging.Debug("ElasticClient", "%s %s", method, rawURL)

	resp, err := c.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		// Drain so the connection can be reused.
		io.Copy(io.Discard, resp.Body)
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s %s: status %d: %s", method, rawURL, resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response from %s: %w", rawURL, err)
	}
	return nil
}

// GetComponentTemplate fetches one component template by name.
func (c *HTTPClient) GetComponentTemplate(ctx context.Context, name string) (Document, error) {
	var result struct {
		ComponentTemplates []struct {
			Name              string   `json:"name"`
			ComponentTemplate Document `json:"component_template"`
		} `json:"component_templates"`
	}
	err := c.do(ctx, http.MethodGet, c.esURL+"/_component_template/"+url.PathEscape(name), nil, &result)
	if err != nil {
		return nil, err
	}
	for _, tpl := range result.ComponentTemplates {
		if tpl.Name == name {
			return tpl.ComponentTemplate, nil
		}
	}
	return nil, ErrNotFound
}

// PutComponentTemplate creates or replaces a component template.
func (c *HTTPClient) PutComponentTemplate(ctx context.Context, name string, doc Document) error {
	return c.do(ctx, http.MethodPut, c.esURL+"/_component_template/"+url.PathEscape(name), doc, nil)
}

// GetIngestPipeline fetches one ingest pipeline by name.
func (c *HTTPClient) GetIngestPipeline(ctx context.Context, name string) (Document, error) {
	// Elasticsearch keys the response by pipeline name.
	var result map[string]Document
	err := c.do(ctx, http.MethodGet, c.esURL+"/_ingest/pipeline/"+url.PathEscape(name), nil, &result)
	if err != nil {
		return nil, err
	}
	doc, ok := result[name]
	if !ok {
		return nil, ErrNotFound
	}
	return doc, nil
}

// PutIngestPipeline creates or replaces an ingest pipeline.
func (c *HTTPClient) PutIngestPipeline(ctx context.Context, name string, doc Document) error {
	return c.do(ctx, http.MethodPut, c.esURL+"/_ingest/pipeline/"+url.PathEscape(name), doc, nil)
}

// ListPolicies returns all agent policies with their full documents.
func (c *HTTPClient) ListPolicies(ctx context.Context) ([]Policy, error) {
	var result struct {
		Items []Document `json:"items"`
	}
	listURL := fmt.Sprintf("%s/api/fleet/agent_policies?perPage=%d&full=true", c.kibanaURL, policyPageSize)
	if err := c.do(ctx, http.MethodGet, listURL, nil, &result); err != nil {
		return nil, err
	}

	policies := make([]Policy, 0, len(result.Items))
	for _, item := range result.Items {
		p := Policy{Document: item}
		if id, ok := item["id"].(string); ok {
			p.ID = id
		}
		if name, ok := item["name"].(string); ok {
			p.Name = name
		}
		if rev, ok := item["revision"].(float64); ok {
			p.Revision = int(rev)
		}
		policies = append(policies, p)
	}
	return policies, nil
}

// CreatePolicy creates a new agent policy and returns its remote id.
func (c *HTTPClient) CreatePolicy(ctx context.Context, doc Document) (string, error) {
	var result struct {
		Item struct {
			ID string `json:"id"`
		} `json:"item"`
	}
	err := c.do(ctx, http.MethodPost, c.kibanaURL+"/api/fleet/agent_policies", doc, &result)
	if err != nil {
		return "", err
	}
	return result.Item.ID, nil
}

// UpdatePolicy replaces the policy with the given remote id.
func (c *HTTPClient) UpdatePolicy(ctx context.Context, id string, doc Document) error {
	return c.do(ctx, http.MethodPut, c.kibanaURL+"/api/fleet/agent_policies/"+url.PathEscape(id), doc, nil)
}

// ListComponentTemplates returns all component templates by name.
func (c *HTTPClient) ListComponentTemplates(ctx context.Context) (map[string]Document, error) {
	var result struct {
		ComponentTemplates []struct {
			Name              string   `json:"name"`
			ComponentTemplate Document `json:"component_template"`
		} `json:"component_templates"`
	}
	if err := c.do(ctx, http.MethodGet, c.esURL+"/_component_template", nil, &result); err != nil {
		return nil, err
	}

	templates := make(map[string]Document, len(result.ComponentTemplates))
	for _, tpl := range result.ComponentTemplates {
		templates[tpl.Name] = tpl.ComponentTemplate
	}
	return templates, nil
}

// ListIngestPipelines returns all ingest pipelines by name.
func (c *HTTPClient) ListIngestPipelines(ctx context.Context) (map[string]Document, error) {
	var result map[string]Document
	if err := c.do(ctx, http.MethodGet, c.esURL+"/_ingest/pipeline", nil, &result); err != nil {
		return nil, err
	}
	return result, nil
}

// ListAgents returns all enrolled agents.
func (c *HTTPClient) ListAgents(ctx context.Context) ([]Document, error) {
	var result struct {
		Items []Document `json:"items"`
	}
	listURL := fmt.Sprintf("%s/api/fleet/agents?perPage=%d", c.kibanaURL, policyPageSize)
	if err := c.do(ctx, http.MethodGet, listURL, nil, &result); err != nil {
		return nil, err
	}
	return result.Items, nil
}
