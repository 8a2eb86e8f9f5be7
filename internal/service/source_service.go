package service

import (
	"context"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/vectorstore"
)

// SourceService resolves chunk ids back to their source references so
// clients can render citation links.
type SourceService struct {
	store vectorstore.Store
}

func NewSourceService(store vectorstore.Store) *SourceService {
	return &SourceService{store: store}
}

func (s *SourceService) Get(ctx context.Context, chunkID string) (*model.SourceReference, error) {
	ck, err := s.store.Retrieve(ctx, chunkID)
	if err != nil {
		return nil, err
	}
	return &model.SourceReference{
		ChunkID: ck.ChunkID,
		Module:  ck.Module,
		Chapter: ck.Chapter,
		Anchor:  ck.Anchor,
		URL:     ck.SourceURL,
	}, nil
}
