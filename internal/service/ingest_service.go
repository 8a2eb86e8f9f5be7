package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/ingest"
	"github.com/xxxsen/bookrag/internal/model"
	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

// IngestService accepts ingestion requests, runs them on a background
// goroutine and keeps job state in memory for status lookups.
type IngestService struct {
	orchestrator *ingest.Orchestrator

	mu   sync.Mutex
	jobs map[string]*model.IngestJob
}

func NewIngestService(orchestrator *ingest.Orchestrator) *IngestService {
	return &IngestService{
		orchestrator: orchestrator,
		jobs:         make(map[string]*model.IngestJob),
	}
}

// Start validates the request, registers a job and kicks off processing.
// It returns immediately with the job id.
func (s *IngestService) Start(ctx context.Context, req *model.IngestRequest) (*model.IngestResponse, error) {
	if req.SitemapURL == "" && len(req.URLs) == 0 {
		return nil, fmt.Errorf("%w: either sitemap_url or urls is required", appErr.ErrInvalid)
	}
	job := model.NewIngestJob(uuid.NewString(), time.Now())
	s.mu.Lock()
	s.jobs[job.JobID] = job
	s.mu.Unlock()

	// The job outlives the request, so it runs detached from the
	// request context.
	go s.run(context.Background(), job, req)

	return &model.IngestResponse{
		Status:  "started",
		JobID:   job.JobID,
		Message: "ingestion started",
	}, nil
}

// Job returns a point-in-time snapshot of a job's progress.
func (s *IngestService) Job(jobID string) (*model.IngestJobStatus, error) {
	s.mu.Lock()
	job := s.jobs[jobID]
	s.mu.Unlock()
	if job == nil {
		return nil, fmt.Errorf("job %s: %w", jobID, appErr.ErrNotFound)
	}
	status := job.Snapshot()
	return &status, nil
}

func (s *IngestService) run(ctx context.Context, job *model.IngestJob, req *model.IngestRequest) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", job.JobID))
	defer func() {
		if r := recover(); r != nil {
			logger.Error("ingest job panicked", zap.Any("panic", r))
			job.Finish(time.Now())
		}
	}()
	job.SetState(model.JobStateResolvingURLs)
	urls, err := s.orchestrator.ResolveURLs(ctx, req)
	if err != nil {
		logger.Error("resolve urls failed", zap.Error(err))
		job.Finish(time.Now())
		return
	}
	job.SetURLs(urls)
	s.orchestrator.Run(ctx, job, req.ForceRefresh)
}
