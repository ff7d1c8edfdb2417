package elastic

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*HTTPClient, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewHTTPClient(Config{
		KibanaURL:        server.URL,
		ElasticsearchURL: server.URL,
		APIKey:           "test-key",
	})
	require.NoError(t, err)
	return client, server
}

func TestNewHTTPClientValidation(t *testing.T) {
	_, err := NewHTTPClient(Config{APIKey: "k"})
	assert.Error(t, err)

	_, err = NewHTTPClient(Config{KibanaURL: "https://kb.example.com"})
	assert.Error(t, err)
}

func TestDeriveElasticsearchURL(t *testing.T) {
	got := DeriveElasticsearchURL("https://deploy.kb.europe-west1.gcp.cloud.es.io")
	assert.Equal(t, "https://deploy.es.europe-west1.gcp.cloud.es.io", got)
}

func TestAuthHeaders(t *testing.T) {
	var gotAuth, gotXSRF string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotXSRF = r.Header.Get("kbn-xsrf")
		json.NewEncoder(w).Encode(map[string]interface{}{"items": []interface{}{}})
	}))

	_, err := client.ListPolicies(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "ApiKey test-key", gotAuth)
	assert.Equal(t, "true", gotXSRF)
}

func TestGetComponentTemplate(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_component_template/logs-base", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"component_templates": []interface{}{
				map[string]interface{}{
					"name":               "logs-base",
					"component_template": map[string]interface{}{"template": map[string]interface{}{"mappings": map[string]interface{}{}}},
				},
			},
		})
	}))

	doc, err := client.GetComponentTemplate(context.Background(), "logs-base")
	require.NoError(t, err)
	assert.Contains(t, doc, "template")
}

func TestGetComponentTemplateNotFound(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	_, err := client.GetComponentTemplate(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestGetIngestPipeline(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/_ingest/pipeline/cheese-log-parser", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"cheese-log-parser": map[string]interface{}{"description": "parses cheese"},
		})
	}))

	doc, err := client.GetIngestPipeline(context.Background(), "cheese-log-parser")
	require.NoError(t, err)
	assert.Equal(t, "parses cheese", doc["description"])
}

func TestPutIngestPipeline(t *testing.T) {
	var gotMethod, gotPath, gotContentType string
	var gotBody map[string]interface{}
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		gotContentType = r.Header.Get("Content-Type")
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte(`{"acknowledged": true}`))
	}))

	err := client.PutIngestPipeline(context.Background(), "cheese-log-parser", Document{"description": "parses cheese"})
	require.NoError(t, err)

	assert.Equal(t, http.MethodPut, gotMethod)
	assert.Equal(t, "/_ingest/pipeline/cheese-log-parser", gotPath)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, "parses cheese", gotBody["description"])
}

func TestListPolicies(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/fleet/agent_policies", r.URL.Path)
		assert.Equal(t, "5000", r.URL.Query().Get("perPage"))
		assert.Equal(t, "true", r.URL.Query().Get("full"))
		json.NewEncoder(w).Encode(map[string]interface{}{
			"items": []interface{}{
				map[string]interface{}{"id": "p-1", "name": "Cheese App Servers", "revision": 4},
			},
		})
	}))

	policies, err := client.ListPolicies(context.Background())
	require.NoError(t, err)
	require.Len(t, policies, 1)
	assert.Equal(t, "p-1", policies[0].ID)
	assert.Equal(t, "Cheese App Servers", policies[0].Name)
	assert.Equal(t, 4, policies[0].Revision)
}

func TestCreatePolicy(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/fleet/agent_policies", r.URL.Path)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"item": map[string]interface{}{"id": "new-id"},
		})
	}))

	id, err := client.CreatePolicy(context.Background(), Document{"name": "Fresh"})
	require.NoError(t, err)
	assert.Equal(t, "new-id", id)
}

func TestUpdatePolicy(t *testing.T) {
	var gotPath string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		assert.Equal(t, http.MethodPut, r.Method)
		w.Write([]byte(`{"item": {}}`))
	}))

	err := client.UpdatePolicy(context.Background(), "p-1", Document{"name": "Cheese App Servers"})
	require.NoError(t, err)
	assert.Equal(t, "/api/fleet/agent_policies/p-1", gotPath)
}

func TestErrorIncludesBody(t *testing.T) {
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"message": "namespace is invalid"}`))
	}))

	err := client.PutIngestPipeline(context.Background(), "p", Document{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 400")
	assert.Contains(t, err.Error(), "namespace is invalid")
}
