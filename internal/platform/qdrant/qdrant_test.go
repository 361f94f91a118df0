package qdrant

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docindex/internal/model"
)

func testClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return New(Config{URL: server.URL, Collection: "fragments"})
}

func TestEnsureCollection_CreatesWhenMissing(t *testing.T) {
	var created map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			http.Error(w, "not found", http.StatusNotFound)
		case http.MethodPut:
			require.NoError(t, json.NewDecoder(r.Body).Decode(&created))
			w.WriteHeader(http.StatusOK)
		}
	})

	require.NoError(t, client.EnsureCollection(context.Background(), 1536))

	vectors, ok := created["vectors"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, float64(1536), vectors["size"])
	assert.Equal(t, "Cosine", vectors["distance"])
}

func TestEnsureCollection_AcceptsMatchingDimension(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": 1536},
					},
				},
			},
		})
	})

	assert.NoError(t, client.EnsureCollection(context.Background(), 1536))
}

func TestEnsureCollection_RejectsDimensionMismatch(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"config": map[string]any{
					"params": map[string]any{
						"vectors": map[string]any{"size": 768},
					},
				},
			},
		})
	})

	err := client.EnsureCollection(context.Background(), 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "768")
}

func TestEnsureCollection_ServerErrorDoesNotCreate(t *testing.T) {
	var putCalls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			putCalls++
		}
		http.Error(w, "internal error", http.StatusInternalServerError)
	})

	err := client.EnsureCollection(context.Background(), 1536)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
	assert.Equal(t, 0, putCalls)
}

func TestUpsert_WaitsForIndexing(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/fragments/points", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		w.WriteHeader(http.StatusOK)
	})

	err := client.Upsert(context.Background(), []Point{
		{ID: "11111111-1111-1111-1111-111111111111", Vector: []float32{0.1, 0.2}},
	})
	assert.NoError(t, err)
}

func TestUpsert_WrapsWriteErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})

	err := client.Upsert(context.Background(), []Point{{ID: "x"}})
	assert.ErrorIs(t, err, model.ErrIndexWrite)
}

func TestSearch_SendsFilterAndParsesHits(t *testing.T) {
	var gotReq map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/collections/fragments/points/search", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))
		json.NewEncoder(w).Encode(map[string]any{
			"result": []map[string]any{
				{"id": "p1", "score": 0.93, "payload": map[string]any{"text": "hit one"}},
				{"id": "p2", "score": 0.81, "payload": map[string]any{"text": "hit two"}},
			},
		})
	})

	hits, err := client.Search(context.Background(), []float32{0.1, 0.2}, 3, Filter{"tenant_id": "t1"})
	require.NoError(t, err)

	assert.Equal(t, float64(3), gotReq["limit"])
	assert.Equal(t, true, gotReq["with_payload"])
	filter, ok := gotReq["filter"].(map[string]any)
	require.True(t, ok)
	must, ok := filter["must"].([]any)
	require.True(t, ok)
	require.Len(t, must, 1)
	clause := must[0].(map[string]any)
	assert.Equal(t, "tenant_id", clause["key"])

	require.Len(t, hits, 2)
	assert.Equal(t, "p1", hits[0].ID)
	assert.Equal(t, 0.93, hits[0].Score)
	assert.Equal(t, "hit one", hits[0].Payload["text"])
}

func TestSearch_WrapsReadErrors(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusBadGateway)
	})

	_, err := client.Search(context.Background(), []float32{0.1}, 3, nil)
	assert.ErrorIs(t, err, model.ErrIndexRead)
}

func TestScroll_FollowsPagination(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))

		if calls == 1 {
			assert.Nil(t, req["offset"])
			json.NewEncoder(w).Encode(map[string]any{
				"result": map[string]any{
					"points":           []map[string]any{{"id": "p1"}, {"id": "p2"}},
					"next_page_offset": "cursor-1",
				},
			})
			return
		}
		assert.Equal(t, "cursor-1", req["offset"])
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points":           []map[string]any{{"id": "p3"}},
				"next_page_offset": nil,
			},
		})
	})

	points, err := client.Scroll(context.Background(), nil, 2)
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	require.Len(t, points, 3)
	assert.Equal(t, "p3", points[2].ID)
}

func TestScroll_StopsOnEmptyPage(t *testing.T) {
	var calls int
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		json.NewEncoder(w).Encode(map[string]any{
			"result": map[string]any{
				"points":           []map[string]any{},
				"next_page_offset": "stuck-cursor",
			},
		})
	})

	points, err := client.Scroll(context.Background(), nil, 10)
	require.NoError(t, err)
	assert.Empty(t, points)
	assert.Equal(t, 1, calls)
}

func TestDeletePoints_SingleBatchedCall(t *testing.T) {
	var calls int
	var gotBody map[string]any
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		calls++
		assert.Equal(t, "/collections/fragments/points/delete", r.URL.Path)
		assert.Equal(t, "true", r.URL.Query().Get("wait"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusOK)
	})

	err := client.DeletePoints(context.Background(), []string{"p1", "p2", "p3"})
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Len(t, gotBody["points"], 3)
}

func TestDeletePoints_EmptyIsNoop(t *testing.T) {
	client := testClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("no request expected")
	})
	assert.NoError(t, client.DeletePoints(context.Background(), nil))
}
