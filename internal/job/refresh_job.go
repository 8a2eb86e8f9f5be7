// Package job holds the scheduled maintenance jobs.
package job

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/service"
)

// RefreshJob re-ingests the configured sitemap so drifted or newly
// published pages get picked up without manual intervention.
type RefreshJob struct {
	ingest     *service.IngestService
	sitemapURL string
}

func NewRefreshJob(ingest *service.IngestService, sitemapURL string) *RefreshJob {
	return &RefreshJob{ingest: ingest, sitemapURL: sitemapURL}
}

func (j *RefreshJob) Name() string {
	return "sitemap_refresh"
}

func (j *RefreshJob) Run(ctx context.Context) error {
	rsp, err := j.ingest.Start(ctx, &model.IngestRequest{
		SitemapURL:   j.sitemapURL,
		ForceRefresh: true,
	})
	if err != nil {
		return fmt.Errorf("start refresh ingestion: %w", err)
	}
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", rsp.JobID))
	logger.Info("refresh ingestion started", zap.String("sitemap_url", j.sitemapURL))

	// Wait for the background job so the scheduler's overlap guard
	// covers the whole run, not just the kickoff.
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			status, err := j.ingest.Job(rsp.JobID)
			if err != nil {
				return err
			}
			if status.State == model.JobStateComplete {
				logger.Info("refresh ingestion complete",
					zap.Int("urls", len(status.URLs)), zap.Int("chunks", status.ChunkCount))
				return nil
			}
		}
	}
}
