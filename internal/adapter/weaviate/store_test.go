package weaviate_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/weaviate/weaviate-go-client/v5/weaviate"

	adapter "talentrag/apps/backend/internal/adapter/weaviate"
	"talentrag/apps/backend/internal/vector"
)

func mockWeaviate(t *testing.T, handler http.HandlerFunc) (*weaviate.Client, *httptest.Server) {
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/v1/meta" {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"version": "1.19.0"}`))
			return
		}
		handler(w, r)
	}))
	cfg := weaviate.Config{Host: ts.Listener.Addr().String(), Scheme: "http"}
	client, err := weaviate.NewClient(cfg)
	assert.NoError(t, err)
	return client, ts
}

// fakeSchema answers class reads with a property list that grows as the
// store adds properties.
type fakeSchema struct {
	mu    sync.Mutex
	props []map[string]interface{}
	added []string
}

func newFakeSchema() *fakeSchema {
	return &fakeSchema{props: []map[string]interface{}{
		{"name": "content", "dataType": []string{"text"}},
		{"name": "record_id", "dataType": []string{"text"}},
		{"name": "source_id", "dataType": []string{"text"}},
		{"name": "source_type", "dataType": []string{"text"}},
		{"name": "chunk_index", "dataType": []string{"int"}},
	}}
}

// serve handles schema requests for class and reports whether it did.
func (f *fakeSchema) serve(w http.ResponseWriter, r *http.Request, class string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	switch {
	case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/"+class:
		json.NewEncoder(w).Encode(map[string]interface{}{"class": class, "properties": f.props})
		return true
	case r.Method == http.MethodPost && r.URL.Path == "/v1/schema/"+class+"/properties":
		var p map[string]interface{}
		json.NewDecoder(r.Body).Decode(&p)
		f.props = append(f.props, p)
		f.added = append(f.added, p["name"].(string))
		json.NewEncoder(w).Encode(p)
		return true
	}
	return false
}

func graphqlQuery(t *testing.T, r *http.Request) string {
	var body map[string]interface{}
	require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
	return body["query"].(string)
}

func TestStore_CreateCollection(t *testing.T) {
	var created map[string]interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/"+vector.ClassName("facts__chat-1"):
			w.WriteHeader(http.StatusNotFound)
		case r.Method == http.MethodPost && r.URL.Path == "/v1/schema":
			json.NewDecoder(r.Body).Decode(&created)
			json.NewEncoder(w).Encode(created)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	exists, err := store.CollectionExists(context.Background(), "facts__chat-1")
	require.NoError(t, err)
	assert.False(t, exists)

	require.NoError(t, store.CreateCollection(context.Background(), "facts__chat-1"))
	require.NotNil(t, created)
	assert.Equal(t, vector.ClassName("facts__chat-1"), created["class"])
	assert.NotEqual(t, vector.ClassName("facts__chat_1"), created["class"])
	assert.Equal(t, "none", created["vectorizer"])
	cfg := created["vectorIndexConfig"].(map[string]interface{})
	assert.Equal(t, "cosine", cfg["distance"])
}

func TestStore_Add(t *testing.T) {
	schema := newFakeSchema()
	var objects []interface{}
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		assert.Equal(t, "/v1/batch/objects", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		objects = body["objects"].([]interface{})
		w.Write([]byte(`[]`))
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.Add(context.Background(), "resumes", []vector.Record{
		{
			ID:   "R1_resume_0",
			Text: "Go developer",
			Metadata: vector.Metadata{
				"source_id":   "R1",
				"chunk_index": 0,
				"structured_data.total_experience_months": 30,
				"content":                                 "ignored",
			},
			Vector: []float32{0.1, 0.2},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"structured_data__dtotal_experience_months"}, schema.added)
	require.Len(t, objects, 1)
	obj := objects[0].(map[string]interface{})
	assert.Equal(t, "Resumes", obj["class"])
	assert.Equal(t, adapter.ObjectID("resumes", "R1_resume_0").String(), obj["id"])
	props := obj["properties"].(map[string]interface{})
	assert.Equal(t, "Go developer", props["content"])
	assert.Equal(t, "R1_resume_0", props["record_id"])
	assert.Equal(t, "R1", props["source_id"])
	assert.EqualValues(t, 30, props["structured_data__dtotal_experience_months"])
	assert.Len(t, obj["vector"], 2)
}

func TestStore_Add_BatchError(t *testing.T) {
	schema := newFakeSchema()
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		w.Write([]byte(`[{"id":"x","result":{"errors":{"error":[{"message":"vector lengths don't match"}]}}}]`))
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.Add(context.Background(), "resumes", []vector.Record{{ID: "a", Text: "t", Vector: []float32{1}}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "vector lengths")
}

func TestStore_Get(t *testing.T) {
	schema := newFakeSchema()
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		assert.Equal(t, "/v1/graphql", r.URL.Path)
		query := graphqlQuery(t, r)
		assert.Contains(t, query, "Resumes")
		assert.Contains(t, query, "source_id")
		assert.Contains(t, query, `"R1"`)
		assert.Contains(t, query, "limit")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"Resumes": []interface{}{
						map[string]interface{}{
							"content":     "chunk",
							"record_id":   "R1_resume_0",
							"source_id":   "R1",
							"source_type": nil,
							"chunk_index": 2.0,
							"_additional": map[string]interface{}{"id": "abc"},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	got, err := store.Get(context.Background(), "resumes", vector.Clause("source_id", vector.OpEq, "R1"), 10)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "R1_resume_0", got[0].ID)
	assert.Equal(t, "chunk", got[0].Text)
	assert.Equal(t, vector.Metadata{"source_id": "R1", "chunk_index": 2}, got[0].Metadata)
	assert.Nil(t, got[0].Distance)
}

func TestStore_Get_UnknownFieldMatchesNothing(t *testing.T) {
	schema := newFakeSchema()
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	got, err := store.Get(context.Background(), "resumes", vector.Clause("city", vector.OpNe, "Kazan"), 10)
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_Query(t *testing.T) {
	schema := newFakeSchema()
	schema.props = append(schema.props, map[string]interface{}{
		"name": "structured_data__dtotal_experience_months", "dataType": []string{"int"},
	})
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		query := graphqlQuery(t, r)
		assert.Contains(t, query, "nearVector")
		assert.Contains(t, query, "structured_data__dtotal_experience_months")
		assert.Contains(t, query, "GreaterThanEqual")
		assert.Contains(t, query, "valueInt")
		assert.Contains(t, query, "distance")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Get": map[string]interface{}{
					"Resumes": []interface{}{
						map[string]interface{}{
							"content":   "senior go",
							"record_id": "R2_resume_0",
							"structured_data__dtotal_experience_months": 48.0,
							"_additional": map[string]interface{}{"distance": 0.25},
						},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	where := vector.Clause("structured_data.total_experience_months", vector.OpGte, 24.0)
	got, err := store.Query(context.Background(), "resumes", []float32{0.1, 0.2}, where, 3)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.NotNil(t, got[0].Distance)
	assert.InDelta(t, 0.25, *got[0].Distance, 1e-6)
	assert.Equal(t, 48, got[0].Metadata["structured_data.total_experience_months"])
}

func TestStore_Query_ListOperators(t *testing.T) {
	schema := newFakeSchema()
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Resumes") {
			return
		}
		query := graphqlQuery(t, r)
		assert.Contains(t, query, "Or")
		assert.Contains(t, query, "NotEqual")
		assert.Contains(t, query, `"R1"`)
		assert.Contains(t, query, `"R2"`)
		assert.Contains(t, query, `"dialogue"`)
		json.NewEncoder(w).Encode(map[string]interface{}{"data": map[string]interface{}{"Get": map[string]interface{}{"Resumes": []interface{}{}}}})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	where := vector.And(
		vector.Clause("source_id", vector.OpIn, []string{"R1", "R2"}),
		vector.Clause("source_type", vector.OpNin, []string{"dialogue"}),
	)
	got, err := store.Query(context.Background(), "resumes", []float32{1}, where, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	_, err = store.Query(context.Background(), "resumes", []float32{1}, vector.Clause("source_id", vector.OpIn, []string{}), 5)
	assert.Error(t, err)
}

func TestStore_Update(t *testing.T) {
	schema := newFakeSchema()
	var patched []string
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		if schema.serve(w, r, "Facts__1") {
			return
		}
		assert.Equal(t, http.MethodPatch, r.Method)
		patched = append(patched, r.URL.Path)
		var body map[string]interface{}
		json.NewDecoder(r.Body).Decode(&body)
		props := body["properties"].(map[string]interface{})
		assert.Equal(t, "confirmed", props["status"])
		w.WriteHeader(http.StatusNoContent)
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	err := store.Update(context.Background(), "facts__1", []string{"f1"}, []vector.Metadata{{"status": "confirmed"}})
	require.NoError(t, err)

	assert.Equal(t, []string{"status"}, schema.added)
	require.Len(t, patched, 1)
	assert.True(t, strings.HasSuffix(patched[0], adapter.ObjectID("facts__1", "f1").String()))
}

func TestStore_Count(t *testing.T) {
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		query := graphqlQuery(t, r)
		assert.Contains(t, query, "Aggregate")
		assert.Contains(t, query, "Resumes")
		assert.Contains(t, query, "count")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"data": map[string]interface{}{
				"Aggregate": map[string]interface{}{
					"Resumes": []interface{}{
						map[string]interface{}{"meta": map[string]interface{}{"count": 7.0}},
					},
				},
			},
		})
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	n, err := store.Count(context.Background(), "resumes")
	require.NoError(t, err)
	assert.Equal(t, 7, n)
}

func TestStore_DeleteCollection(t *testing.T) {
	var deleted bool
	client, ts := mockWeaviate(t, func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/v1/schema/Resumes":
			json.NewEncoder(w).Encode(map[string]interface{}{"class": "Resumes"})
		case r.Method == http.MethodDelete && r.URL.Path == "/v1/schema/Resumes":
			deleted = true
			w.WriteHeader(http.StatusOK)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
	})
	defer ts.Close()

	store := adapter.NewStore(client)
	require.NoError(t, store.DeleteCollection(context.Background(), "resumes"))
	assert.True(t, deleted)
}

func TestPropertyName(t *testing.T) {
	assert.Equal(t, "structured_data__dtotal_experience_months", adapter.PropertyName("structured_data.total_experience_months"))
	assert.Equal(t, "source_id", adapter.PropertyName("source_id"))
	assert.Equal(t, "first__x2d_name", adapter.PropertyName("first-name"))
	assert.Equal(t, "__n2fa", adapter.PropertyName("2fa"))
	assert.Equal(t, "structured_data.city", adapter.MetadataKey("structured_data__dcity"))
	assert.Equal(t, adapter.ObjectID("c", "1"), adapter.ObjectID("c", "1"))
	assert.NotEqual(t, adapter.ObjectID("c", "1"), adapter.ObjectID("d", "1"))
}

func TestPropertyName_RoundTrip(t *testing.T) {
	keys := []string{
		"source_id", "structured_data.total_experience_months",
		"first-name", "first_name", "first.name", "first__name",
		"my__key", "my.key", "my_.key", "a_", "_a", "__", "_", ".",
		"город", "страна", "город.район", "2fa", "_2fa", "name 1", "x-_y",
	}

	seen := make(map[string]string)
	for _, k := range keys {
		t.Run(k, func(t *testing.T) {
			p := adapter.PropertyName(k)
			assert.Regexp(t, `^[_A-Za-z][_0-9A-Za-z]*$`, p)
			assert.Equal(t, k, adapter.MetadataKey(p))
			if prev, ok := seen[p]; ok {
				t.Errorf("%q and %q both map to %q", k, prev, p)
			}
			seen[p] = k
		})
	}
}

func TestMetadataKey_InvalidEncodingUnchanged(t *testing.T) {
	assert.Equal(t, "bad__q", adapter.MetadataKey("bad__q"))
	assert.Equal(t, "bad__x", adapter.MetadataKey("bad__x"))
	assert.Equal(t, "bad__xzz_", adapter.MetadataKey("bad__xzz_"))
}
