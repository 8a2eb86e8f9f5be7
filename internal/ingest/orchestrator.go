package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/ai"
	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/vectorstore"
)

// Orchestrator drives the full pipeline for one ingestion job: resolve
// URLs, then per URL extract, chunk, embed and store. A failure on one
// URL never aborts the rest of the job.
type Orchestrator struct {
	resolver  *SitemapResolver
	extractor *Extractor
	chunker   *Chunker
	aiMgr     *ai.Manager
	store     vectorstore.Store
}

func NewOrchestrator(resolver *SitemapResolver, extractor *Extractor,
	chunker *Chunker, aiMgr *ai.Manager, store vectorstore.Store) *Orchestrator {

	return &Orchestrator{
		resolver:  resolver,
		extractor: extractor,
		chunker:   chunker,
		aiMgr:     aiMgr,
		store:     store,
	}
}

// ResolveURLs expands the request into the final URL list: pages from
// the sitemap first, then explicitly supplied urls, duplicates keeping
// their first occurrence.
func (o *Orchestrator) ResolveURLs(ctx context.Context, req *model.IngestRequest) ([]string, error) {
	var urls []string
	if req.SitemapURL != "" {
		resolved, err := o.resolver.Resolve(ctx, req.SitemapURL)
		if err != nil {
			return nil, fmt.Errorf("resolve sitemap %s: %w", req.SitemapURL, err)
		}
		urls = append(urls, resolved...)
	}
	urls = append(urls, req.URLs...)
	seen := make(map[string]struct{}, len(urls))
	out := make([]string, 0, len(urls))
	for _, u := range urls {
		if _, ok := seen[u]; ok {
			continue
		}
		seen[u] = struct{}{}
		out = append(out, u)
	}
	return out, nil
}

// Run executes the job in place, mutating its state and per-URL
// outcomes as it goes.
func (o *Orchestrator) Run(ctx context.Context, job *model.IngestJob, forceRefresh bool) {
	logger := logutil.GetLogger(ctx).With(zap.String("job_id", job.JobID))
	job.SetState(model.JobStateProcessingURLs)
	for _, pageURL := range job.URLs {
		count, err := o.processURL(ctx, pageURL, forceRefresh)
		if err != nil {
			logger.Error("ingest url failed", zap.String("url", pageURL), zap.Error(err))
			job.SetOutcome(pageURL, model.URLOutcomeFailed, err.Error())
			continue
		}
		if count == 0 {
			logger.Info("ingest url skipped, no usable content", zap.String("url", pageURL))
			job.SetOutcome(pageURL, model.URLOutcomeSkipped, "no usable content")
			continue
		}
		job.SetOutcome(pageURL, model.URLOutcomeDone, "")
		job.AddChunks(count)
		logger.Info("ingest url done", zap.String("url", pageURL), zap.Int("chunks", count))
	}
	job.Finish(time.Now())
	logger.Info("ingest job complete",
		zap.Int("urls", len(job.URLs)), zap.Int("chunks", job.ChunkCount))
}

// processURL runs extract, chunk, embed and store for a single page and
// returns the number of chunks written.
func (o *Orchestrator) processURL(ctx context.Context, pageURL string, forceRefresh bool) (int, error) {
	doc, err := o.extractor.Extract(ctx, pageURL)
	if err != nil {
		return 0, fmt.Errorf("extract: %w", err)
	}
	chunks := o.chunker.Chunk(ctx, doc)
	if len(chunks) == 0 {
		return 0, nil
	}
	texts := make([]string, 0, len(chunks))
	for _, ck := range chunks {
		texts = append(texts, ck.Content)
	}
	embeddings, err := o.aiMgr.EmbedBatch(ctx, texts, ai.TaskTypeDocument)
	if err != nil {
		return 0, fmt.Errorf("embed: %w", err)
	}
	for i := range chunks {
		chunks[i].Embedding = embeddings[i]
	}
	if forceRefresh {
		if err := o.store.DeleteBySource(ctx, pageURL); err != nil {
			return 0, fmt.Errorf("purge previous chunks: %w", err)
		}
	}
	if err := o.store.Upsert(ctx, chunks); err != nil {
		return 0, fmt.Errorf("store: %w", err)
	}
	return len(chunks), nil
}
