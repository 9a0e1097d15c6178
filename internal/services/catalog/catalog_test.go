package catalog

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/ditare/internal/models"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(server.URL+"/api", server.URL+"/graphql", "test-token")
}

func graphqlData(t *testing.T, w http.ResponseWriter, data interface{}) {
	t.Helper()
	payload, err := json.Marshal(data)
	require.NoError(t, err)
	_ = json.NewEncoder(w).Encode(map[string]json.RawMessage{"data": payload})
}

func TestFindServiceBySlug(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path)
		require.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))

		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "notion", req.Variables["slug"])

		graphqlData(t, w, map[string]interface{}{
			"services": []map[string]interface{}{
				{
					"documentId": "doc-1",
					"slug":       "notion",
					"name":       "Notion",
					"url":        "https://notion.so",
					"tags": []map[string]interface{}{
						{"documentId": "tag-1", "name": "Productivity", "tag_status": "active"},
						{"documentId": "tag-2", "name": "Spam", "excluded": true},
					},
				},
			},
		})
	}))

	record, err := client.FindServiceBySlug(context.Background(), "notion")
	require.NoError(t, err)
	require.NotNil(t, record)
	assert.Equal(t, "doc-1", record.ID)
	assert.Equal(t, "Notion", record.Name)
	require.Len(t, record.Tags, 2)
	assert.Equal(t, models.TagStatusActive, record.Tags[0].Status)
	assert.Equal(t, models.TagStatusExcluded, record.Tags[1].Status)
}

func TestFindServiceBySlug_NotFound(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		graphqlData(t, w, map[string]interface{}{"services": []interface{}{}})
	}))

	record, err := client.FindServiceBySlug(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestGetServiceByID_MissingLocaleVariant(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "de", req.Variables["locale"])
		graphqlData(t, w, map[string]interface{}{"service": nil})
	}))

	record, err := client.GetServiceByID(context.Background(), "doc-1", "de")
	require.NoError(t, err)
	assert.Nil(t, record)
}

func TestCreateService(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/services", r.URL.Path)

		var body restDocument
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body.Data.(map[string]interface{})
		assert.Equal(t, "notion", data["slug"])

		_ = json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{"documentId": "doc-9"},
		})
	}))

	draft := models.ServiceDraft{"slug": "notion", "name": "Notion"}
	id, err := client.CreateService(context.Background(), draft)
	require.NoError(t, err)
	assert.Equal(t, "doc-9", id)
}

func TestUpdateServiceTranslation_WritesDraftVerbatim(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/services/doc-1", r.URL.Path)
		require.Equal(t, "de", r.URL.Query().Get("locale"))

		var body restDocument
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body.Data.(map[string]interface{})
		assert.Equal(t, "Zusammenfassung", data["abstract"])
		value, hasDescription := data["description"]
		assert.True(t, hasDescription, "an empty string clears the variant field")
		assert.Equal(t, "", value)
		_, hasPricing := data["pricing"]
		assert.False(t, hasPricing, "omitted fields stay omitted")

		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"data":{"documentId":"doc-1"}}`))
	}))

	draft := models.ServiceDraft{"abstract": "Zusammenfassung", "description": ""}
	err := client.UpdateServiceTranslation(context.Background(), "doc-1", "de", draft)
	require.NoError(t, err)
}

func TestCreateTag_ReturnsExistingID(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/graphql", r.URL.Path, "an existing tag must not trigger a create")
		graphqlData(t, w, map[string]interface{}{
			"tags": []map[string]interface{}{
				{"documentId": "tag-7", "name": "Design", "tag_status": "active"},
			},
		})
	}))

	id, err := client.CreateTag(context.Background(), "design", models.TagStatusProposed)
	require.NoError(t, err)
	assert.Equal(t, "tag-7", id)
}

func TestCreateTag_UniqueConflictResolvesToWinner(t *testing.T) {
	lookups := 0
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/graphql" {
			lookups++
			if lookups == 1 {
				graphqlData(t, w, map[string]interface{}{"tags": []interface{}{}})
				return
			}
			graphqlData(t, w, map[string]interface{}{
				"tags": []map[string]interface{}{
					{"documentId": "tag-3", "name": "Design", "tag_status": "proposed"},
				},
			})
			return
		}

		require.Equal(t, "/api/tags", r.URL.Path)
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":{"message":"This attribute must be unique"}}`))
	}))

	id, err := client.CreateTag(context.Background(), "Design", models.TagStatusProposed)
	require.NoError(t, err)
	assert.Equal(t, "tag-3", id)
	assert.Equal(t, 2, lookups)
}

func TestListQueueItems(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "new", req.Variables["status"])

		graphqlData(t, w, map[string]interface{}{
			"queues": []map[string]interface{}{
				{"documentId": "q-1", "slug": "notion", "fields": "url, description", "queuestatus": "new"},
				{"documentId": "q-2", "slug": "canva", "fields": "", "queuestatus": "new"},
			},
		})
	}))

	items, err := client.ListQueueItems(context.Background(), models.QueueStatusNew)
	require.NoError(t, err)
	require.Len(t, items, 2)
	assert.Equal(t, []string{"url", "description"}, items[0].Fields)
	assert.Nil(t, items[1].Fields)
}

func TestCreateQueueItem_DefaultsToNew(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/api/queues", r.URL.Path)

		var body restDocument
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		data := body.Data.(map[string]interface{})
		assert.Equal(t, "new", data["queuestatus"])
		assert.Equal(t, "notion", data["slug"])

		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"data":{"documentId":"q-5"}}`))
	}))

	err := client.CreateQueueItem(context.Background(), models.QueueItem{Slug: "notion"})
	require.NoError(t, err)
}

func TestDeleteQueueItem_APIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"error":{"message":"Not Found"}}`))
	}))

	err := client.DeleteQueueItem(context.Background(), "q-404")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "q-404")
}
