package service

import (
	"context"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
)

type staticEmbedder struct {
	vector []float32
}

func (e *staticEmbedder) Embed(context.Context, string, string) ([]float32, error) {
	return e.vector, nil
}

func (e *staticEmbedder) ModelName() string { return "static-test-model" }

type fakeStore struct {
	results []model.RetrievedChunk
	calls   int
}

func (s *fakeStore) EnsureCollection(context.Context) error { return nil }

func (s *fakeStore) Upsert(context.Context, []model.Chunk) error { return nil }

func (s *fakeStore) Search(context.Context, []float32, int, map[string]string, float32) ([]model.RetrievedChunk, error) {
	s.calls++
	return s.results, nil
}

func (s *fakeStore) Retrieve(context.Context, string) (*model.Chunk, error) { return nil, nil }

func (s *fakeStore) DeleteBySource(context.Context, string) error { return nil }

type recordingRecorder struct {
	mu    sync.Mutex
	items []*model.Interaction
}

func (r *recordingRecorder) Record(_ context.Context, it *model.Interaction) {
	r.mu.Lock()
	r.items = append(r.items, it)
	r.mu.Unlock()
}

func newTestQueryService(store *fakeStore, gen *scriptedGenerator, recorder InteractionRecorder) *QueryService {
	manager := ai.NewManager(gen, &staticEmbedder{vector: []float32{1, 0}}, ai.ManagerConfig{Timeout: 5})
	retrieval := NewRetrievalService(manager, store, 0.2, 10)
	return NewQueryService(retrieval, NewAnswerService(manager), recorder)
}

func TestQueryNoResultsAnswersSentinel(t *testing.T) {
	store := &fakeStore{}
	gen := &scriptedGenerator{answer: "should never be used"}
	svc := newTestQueryService(store, gen, nil)

	rsp := svc.Query(context.Background(), &model.QueryRequest{Query: "what is kinematics?"})
	require.Equal(t, InsufficientContextAnswer, rsp.Answer)
	require.Empty(t, rsp.Citations)
	require.Equal(t, 1, store.calls)
	require.Zero(t, gen.calls)
}

func TestQueryWithResultsReturnsCitations(t *testing.T) {
	store := &fakeStore{results: retrievedChunks()}
	gen := &scriptedGenerator{answer: "Answer from context."}
	recorder := &recordingRecorder{}
	svc := newTestQueryService(store, gen, recorder)

	rsp := svc.Query(context.Background(), &model.QueryRequest{Query: "how do robots work?", SessionID: "sess-1"})
	require.Equal(t, "Answer from context.", rsp.Answer)
	require.Len(t, rsp.Citations, 2)
	require.Equal(t, "sess-1", rsp.SessionID)
	require.Len(t, recorder.items, 1)
	require.Equal(t, 2, recorder.items[0].CitationCount)
}

func TestQueryUserSelectedContextBypassesRetrieval(t *testing.T) {
	store := &fakeStore{}
	gen := &scriptedGenerator{answer: "Grounded in the selection."}
	svc := newTestQueryService(store, gen, nil)

	rsp := svc.Query(context.Background(), &model.QueryRequest{
		Query: "what does this passage say?",
		Context: &model.QueryContext{UserSelected: &model.UserSelectedContext{
			Content:   "The selected passage about inverse kinematics.",
			SourceURL: "https://example.com/robotics/ik",
		}},
	})
	require.Equal(t, "Grounded in the selection.", rsp.Answer)
	require.Zero(t, store.calls)
	require.Len(t, rsp.Citations, 1)
	require.True(t, strings.HasPrefix(rsp.Citations[0].ChunkID, "user_selected_"))
	require.Equal(t, "https://example.com/robotics/ik", rsp.Citations[0].URL)
}

func TestWrapUserText(t *testing.T) {
	svc := NewRetrievalService(nil, nil, 0.2, 10)
	chunks := svc.WrapUserText("some selected text", "https://example.com/page")
	require.Len(t, chunks, 1)
	require.Equal(t, model.SourceUserSelected, chunks[0].Source)
	require.Equal(t, "User Selection", chunks[0].Module)
	require.Equal(t, "User Provided", chunks[0].Chapter)
	require.Equal(t, float32(1.0), chunks[0].Score)
	require.True(t, strings.HasPrefix(chunks[0].ChunkID, "user_selected_"))

	again := svc.WrapUserText("some selected text", "https://example.com/page")
	require.Equal(t, chunks[0].ChunkID, again[0].ChunkID)
}
