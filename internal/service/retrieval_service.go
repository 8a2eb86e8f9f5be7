package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/vectorstore"
)

const (
	DefaultScoreThreshold = 0.2
	DefaultMaxChunks      = 10
)

// RetrievalService turns a query into the chunk context the answer is
// grounded on: either similarity search over the vector store or a
// user-selected passage wrapped as a synthetic chunk.
type RetrievalService struct {
	manager   *ai.Manager
	store     vectorstore.Store
	threshold float32
	maxChunks int
}

func NewRetrievalService(manager *ai.Manager, store vectorstore.Store, threshold float32, maxChunks int) *RetrievalService {
	if threshold <= 0 {
		threshold = DefaultScoreThreshold
	}
	if maxChunks <= 0 {
		maxChunks = DefaultMaxChunks
	}
	return &RetrievalService{
		manager:   manager,
		store:     store,
		threshold: threshold,
		maxChunks: maxChunks,
	}
}

// RetrieveRelevant embeds the query and searches the store. An empty
// result is the normal no-context signal, not an error.
func (s *RetrievalService) RetrieveRelevant(ctx context.Context, query string,
	filters map[string]string, limit int) ([]model.RetrievedChunk, error) {

	if limit <= 0 || limit > s.maxChunks {
		limit = s.maxChunks
	}
	vector, err := s.manager.Embed(ctx, query, ai.TaskTypeQuery)
	if err != nil {
		return nil, err
	}
	chunks, err := s.store.Search(ctx, vector, limit, filters, s.threshold)
	if err != nil {
		return nil, err
	}
	logutil.GetLogger(ctx).Debug("retrieved chunks",
		zap.Int("count", len(chunks)), zap.Float32("threshold", s.threshold))
	return chunks, nil
}

// WrapUserText builds the single synthetic chunk used when the caller
// supplies the grounding passage directly.
func (s *RetrievalService) WrapUserText(text, sourceURL string) []model.RetrievedChunk {
	sum := sha256.Sum256([]byte(text))
	return []model.RetrievedChunk{{
		ChunkID: "user_selected_" + hex.EncodeToString(sum[:])[:16],
		Content: text,
		Source:  model.SourceUserSelected,
		Module:  "User Selection",
		Chapter: "User Provided",
		URL:     sourceURL,
		Score:   1.0,
	}}
}
