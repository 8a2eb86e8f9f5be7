package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/repo"
)

// InteractionService persists answered queries for later analysis.
// Persistence is fire-and-forget so a slow or broken database never
// affects query latency.
type InteractionService struct {
	interactions *repo.InteractionRepo
}

func NewInteractionService(interactions *repo.InteractionRepo) *InteractionService {
	return &InteractionService{interactions: interactions}
}

func (s *InteractionService) Record(_ context.Context, it *model.Interaction) {
	it.InteractionID = uuid.NewString()
	it.Ctime = time.Now().Unix()
	go func() {
		// Detached from the request context so cancellation of the
		// response does not lose the record.
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := s.interactions.Create(ctx, it); err != nil {
			logutil.GetLogger(ctx).Warn("record interaction failed",
				zap.String("interaction_id", it.InteractionID), zap.Error(err))
		}
	}()
}

func (s *InteractionService) ListBySession(ctx context.Context, sessionID string, limit int) ([]model.Interaction, error) {
	return s.interactions.ListBySession(ctx, sessionID, limit)
}
