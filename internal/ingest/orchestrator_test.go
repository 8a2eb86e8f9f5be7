package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
)

type staticEmbedder struct{}

func (e *staticEmbedder) Embed(_ context.Context, _ string, _ string) ([]float32, error) {
	return []float32{1, 0}, nil
}

func (e *staticEmbedder) ModelName() string {
	return "static-test-model"
}

type memoryStore struct {
	mu     sync.Mutex
	chunks map[string]model.Chunk
}

func newMemoryStore() *memoryStore {
	return &memoryStore{chunks: make(map[string]model.Chunk)}
}

func (s *memoryStore) EnsureCollection(context.Context) error { return nil }

func (s *memoryStore) Upsert(_ context.Context, chunks []model.Chunk) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, ck := range chunks {
		s.chunks[ck.ChunkID] = ck
	}
	return nil
}

func (s *memoryStore) Search(context.Context, []float32, int, map[string]string, float32) ([]model.RetrievedChunk, error) {
	return nil, nil
}

func (s *memoryStore) Retrieve(context.Context, string) (*model.Chunk, error) {
	return nil, nil
}

func (s *memoryStore) DeleteBySource(context.Context, string) error { return nil }

func (s *memoryStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.chunks)
}

func TestOrchestratorFailureIsolation(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/good":
			fmt.Fprint(w, `<html><head><title>Good</title></head><body><main>
A perfectly reasonable page about robot arms. It explains joints and links in detail.
</main></body></html>`)
		case "/broken":
			w.WriteHeader(http.StatusInternalServerError)
		case "/garbage":
			fmt.Fprint(w, `<html><body><main>@@@###$$$%%%^^^&amp;&amp;&amp;***</main></body></html>`)
		}
	}))
	defer srv.Close()

	store := newMemoryStore()
	manager := ai.NewManager(nil, &staticEmbedder{}, ai.ManagerConfig{Timeout: 5})
	chunker := NewChunker(ChunkerConfig{MinTokens: 5, MaxTokens: 10, OverlapRatio: 0.2})
	extractor := NewExtractor(srv.Client(), "test-agent", nil)
	orchestrator := NewOrchestrator(NewSitemapResolver(srv.Client(), "test-agent"),
		extractor, chunker, manager, store)

	job := model.NewIngestJob("job-1", time.Now())
	job.SetURLs([]string{srv.URL + "/good", srv.URL + "/broken", srv.URL + "/garbage"})
	orchestrator.Run(context.Background(), job, false)

	status := job.Snapshot()
	require.Equal(t, model.JobStateComplete, status.State)
	require.Equal(t, model.URLOutcomeDone, status.Outcomes[srv.URL+"/good"].Outcome)
	require.Equal(t, model.URLOutcomeFailed, status.Outcomes[srv.URL+"/broken"].Outcome)
	require.Equal(t, model.URLOutcomeSkipped, status.Outcomes[srv.URL+"/garbage"].Outcome)
	require.Greater(t, store.count(), 0)
	require.Equal(t, status.ChunkCount, store.count())
}

func TestOrchestratorResolveURLsDedup(t *testing.T) {
	orchestrator := NewOrchestrator(nil, nil, nil, nil, nil)
	urls, err := orchestrator.ResolveURLs(context.Background(), &model.IngestRequest{
		URLs: []string{"https://a", "https://b", "https://a", "https://c", "https://b"},
	})
	require.NoError(t, err)
	require.Equal(t, []string{"https://a", "https://b", "https://c"}, urls)
}

func TestOrchestratorResolveURLsCombinesSitemapAndExplicit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<?xml version="1.0" encoding="UTF-8"?>
<urlset xmlns="http://www.sitemaps.org/schemas/sitemap/0.9">
  <url><loc>https://book.example.com/intro</loc></url>
  <url><loc>https://book.example.com/chapter-1</loc></url>
</urlset>`)
	}))
	defer srv.Close()

	orchestrator := NewOrchestrator(NewSitemapResolver(srv.Client(), "test-agent"),
		nil, nil, nil, nil)
	urls, err := orchestrator.ResolveURLs(context.Background(), &model.IngestRequest{
		SitemapURL: srv.URL + "/sitemap.xml",
		URLs: []string{
			"https://book.example.com/chapter-1", // already in the sitemap
			"https://book.example.com/appendix",
		},
	})
	require.NoError(t, err)
	// Sitemap pages keep document order, explicit additions follow, the
	// duplicate is dropped.
	require.Equal(t, []string{
		"https://book.example.com/intro",
		"https://book.example.com/chapter-1",
		"https://book.example.com/appendix",
	}, urls)
}

func TestOrchestratorResolveURLsSitemapFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	orchestrator := NewOrchestrator(NewSitemapResolver(srv.Client(), "test-agent"),
		nil, nil, nil, nil)
	_, err := orchestrator.ResolveURLs(context.Background(), &model.IngestRequest{
		SitemapURL: srv.URL + "/sitemap.xml",
		URLs:       []string{"https://book.example.com/appendix"},
	})
	require.Error(t, err)
}
