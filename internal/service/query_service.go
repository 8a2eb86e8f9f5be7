package service

import (
	"context"
	"strings"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
)

// InteractionRecorder persists query interactions. Recording is
// best-effort and never blocks or fails the query path.
type InteractionRecorder interface {
	Record(ctx context.Context, interaction *model.Interaction)
}

// QueryService composes retrieval and answering into the full query
// pipeline. Every failure past request validation degrades to the
// insufficient-context answer rather than an error response.
type QueryService struct {
	retrieval *RetrievalService
	answerer  *AnswerService
	recorder  InteractionRecorder
}

func NewQueryService(retrieval *RetrievalService, answerer *AnswerService, recorder InteractionRecorder) *QueryService {
	return &QueryService{
		retrieval: retrieval,
		answerer:  answerer,
		recorder:  recorder,
	}
}

func (s *QueryService) Query(ctx context.Context, req *model.QueryRequest) *model.QueryResponse {
	logger := logutil.GetLogger(ctx).With(zap.String("session_id", req.SessionID))
	chunks, err := s.resolveContext(ctx, req)
	if err != nil {
		logger.Error("context resolution failed", zap.Error(err))
		chunks = nil
	}
	answer, citations := s.answerer.Answer(ctx, req.Query, chunks)
	rsp := &model.QueryResponse{
		Answer:    answer,
		Citations: citations,
		SessionID: req.SessionID,
	}
	if s.recorder != nil {
		s.recorder.Record(ctx, &model.Interaction{
			SessionID:     req.SessionID,
			Query:         req.Query,
			Answer:        answer,
			CitationCount: len(citations),
		})
	}
	return rsp
}

// SelectText answers a question grounded exclusively in the passage the
// user selected.
func (s *QueryService) SelectText(ctx context.Context, req *model.SelectedTextRequest) *model.SelectedTextResponse {
	chunks := s.retrieval.WrapUserText(req.Text, req.SourceURL)
	return &model.SelectedTextResponse{
		Status:          "success",
		Message:         "Selected text registered for grounding",
		ProcessedTextID: chunks[0].ChunkID,
	}
}

// resolveContext dispatches on the request's context union: user
// selected text wraps directly, everything else goes through retrieval.
func (s *QueryService) resolveContext(ctx context.Context, req *model.QueryRequest) ([]model.RetrievedChunk, error) {
	if req.Context != nil && req.Context.UserSelected != nil {
		sel := req.Context.UserSelected
		if strings.TrimSpace(sel.Content) == "" {
			return nil, nil
		}
		return s.retrieval.WrapUserText(sel.Content, sel.SourceURL), nil
	}
	var filters map[string]string
	limit := 0
	if req.Context != nil && req.Context.Qdrant != nil {
		filters = req.Context.Qdrant.Filters
		limit = req.Context.Qdrant.MaxChunks
	}
	return s.retrieval.RetrieveRelevant(ctx, req.Query, filters, limit)
}
