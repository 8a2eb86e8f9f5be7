package vectorstore

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/errors"
)

type fakeQdrant struct {
	points map[string]qdrantPoint // point id -> point
}

func newFakeQdrant() *fakeQdrant {
	return &fakeQdrant{points: make(map[string]qdrantPoint)}
}

func (f *fakeQdrant) handler() http.Handler {
	mux := http.NewServeMux()
	reply := func(w http.ResponseWriter, result any) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"result": result,
			"status": "ok",
			"time":   0.001,
		})
	}
	mux.HandleFunc("/collections/book_chunks", func(w http.ResponseWriter, r *http.Request) {
		reply(w, map[string]any{})
	})
	mux.HandleFunc("/collections/book_chunks/points", func(w http.ResponseWriter, r *http.Request) {
		if r.Method == http.MethodPut {
			var req struct {
				Points []qdrantPoint `json:"points"`
			}
			_ = json.NewDecoder(r.Body).Decode(&req)
			for _, p := range req.Points {
				f.points[p.ID] = p
			}
			reply(w, map[string]any{"status": "completed"})
			return
		}
		var req struct {
			IDs []string `json:"ids"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([]qdrantPoint, 0)
		for _, id := range req.IDs {
			if p, ok := f.points[id]; ok {
				out = append(out, qdrantPoint{ID: p.ID, Payload: p.Payload})
			}
		}
		reply(w, out)
	})
	mux.HandleFunc("/collections/book_chunks/points/search", func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			Vector         []float32      `json:"vector"`
			Limit          int            `json:"limit"`
			ScoreThreshold float32        `json:"score_threshold"`
			Filter         map[string]any `json:"filter"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		out := make([]map[string]any, 0)
		for _, p := range f.points {
			score := dot(req.Vector, p.Vector)
			if score < req.ScoreThreshold {
				continue
			}
			if !f.matchFilter(p, req.Filter) {
				continue
			}
			out = append(out, map[string]any{
				"id":      p.ID,
				"score":   score,
				"payload": p.Payload,
			})
		}
		reply(w, out)
	})
	return mux
}

func (f *fakeQdrant) matchFilter(p qdrantPoint, filter map[string]any) bool {
	if filter == nil {
		return true
	}
	must, _ := filter["must"].([]any)
	for _, raw := range must {
		cond, _ := raw.(map[string]any)
		key, _ := cond["key"].(string)
		match, _ := cond["match"].(map[string]any)
		want := match["value"]
		if p.Payload[key] != want {
			return false
		}
	}
	return true
}

func dot(a, b []float32) float32 {
	var sum float32
	for i := range a {
		if i < len(b) {
			sum += a[i] * b[i]
		}
	}
	return sum
}

func newTestQdrantStore(t *testing.T, url string) Store {
	st, err := New(Config{
		Type: "qdrant",
		Data: map[string]interface{}{
			"url":        url,
			"collection": "book_chunks",
			"vector_dim": 3,
		},
	})
	require.NoError(t, err)
	return st
}

func testChunk(id string, embedding []float32, module string) model.Chunk {
	return model.Chunk{
		ChunkID:    id,
		Content:    "content of " + id,
		SourceURL:  "https://docs.example.com/" + module,
		Title:      "Title " + id,
		Module:     module,
		Chapter:    "Chapter One",
		Anchor:     "intro",
		TokenCount: 420,
		Embedding:  embedding,
	}
}

func TestQdrantUpsertAndRetrieve(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	st := newTestQdrantStore(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []model.Chunk{
		testChunk("https_docs.example.com_guide_0", []float32{1, 0, 0}, "guide"),
	}))

	ck, err := st.Retrieve(ctx, "https_docs.example.com_guide_0")
	require.NoError(t, err)
	require.Equal(t, "https_docs.example.com_guide_0", ck.ChunkID)
	require.Equal(t, "guide", ck.Module)
	require.Equal(t, "Chapter One", ck.Chapter)
	require.Equal(t, 420, ck.TokenCount)

	_, err = st.Retrieve(ctx, "missing_chunk_9")
	require.True(t, errors.IsNotFound(err))
}

func TestQdrantUpsertIdempotent(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	st := newTestQdrantStore(t, srv.URL)

	ctx := context.Background()
	ck := testChunk("https_docs.example.com_guide_0", []float32{1, 0, 0}, "guide")
	require.NoError(t, st.Upsert(ctx, []model.Chunk{ck}))
	ck.Content = "updated content"
	require.NoError(t, st.Upsert(ctx, []model.Chunk{ck}))
	require.Len(t, fake.points, 1)

	got, err := st.Retrieve(ctx, ck.ChunkID)
	require.NoError(t, err)
	require.Equal(t, "updated content", got.Content)
}

func TestQdrantSearchThresholdAndOrder(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	st := newTestQdrantStore(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []model.Chunk{
		testChunk("chunk_high", []float32{1, 0, 0}, "guide"),
		testChunk("chunk_mid", []float32{0.5, 0.5, 0}, "guide"),
		testChunk("chunk_low", []float32{0.1, 0, 0.9}, "guide"),
	}))

	got, err := st.Search(ctx, []float32{1, 0, 0}, 10, nil, 0.2)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, "chunk_high", got[0].ChunkID)
	require.Equal(t, "chunk_mid", got[1].ChunkID)
	require.True(t, got[0].Score >= got[1].Score)
	for _, ck := range got {
		require.Equal(t, model.SourceQdrantRetrieved, ck.Source)
	}
}

func TestQdrantSearchPayloadFilter(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	st := newTestQdrantStore(t, srv.URL)

	ctx := context.Background()
	require.NoError(t, st.Upsert(ctx, []model.Chunk{
		testChunk("chunk_a", []float32{1, 0, 0}, "memory"),
		testChunk("chunk_b", []float32{0.9, 0.1, 0}, "scheduler"),
	}))

	got, err := st.Search(ctx, []float32{1, 0, 0}, 10, map[string]string{"module": "memory"}, 0.2)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "chunk_a", got[0].ChunkID)
}

func TestQdrantDimensionMismatch(t *testing.T) {
	fake := newFakeQdrant()
	srv := httptest.NewServer(fake.handler())
	defer srv.Close()
	st := newTestQdrantStore(t, srv.URL)

	ctx := context.Background()
	err := st.Upsert(ctx, []model.Chunk{
		testChunk("chunk_bad", []float32{1, 0}, "guide"),
	})
	require.Error(t, err)
	_, err = st.Search(ctx, []float32{1}, 10, nil, 0.2)
	require.Error(t, err)
}
