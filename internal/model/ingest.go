package model

import (
	"sync"
	"time"
)

type IngestRequest struct {
	SitemapURL   string   `json:"sitemap_url,omitempty"`
	URLs         []string `json:"urls,omitempty"`
	ForceRefresh bool     `json:"force_refresh,omitempty"`
}

type IngestResponse struct {
	Status  string `json:"status"`
	JobID   string `json:"job_id"`
	Message string `json:"message"`
}

type JobState string

const (
	JobStatePending        JobState = "pending"
	JobStateResolvingURLs  JobState = "resolving_urls"
	JobStateProcessingURLs JobState = "processing_urls"
	JobStateComplete       JobState = "complete"
)

type URLOutcome string

const (
	URLOutcomeDone    URLOutcome = "done"
	URLOutcomeSkipped URLOutcome = "skipped"
	URLOutcomeFailed  URLOutcome = "failed"
)

// URLResult records how a single URL fared within an ingestion job.
type URLResult struct {
	Outcome URLOutcome `json:"outcome"`
	Message string     `json:"message,omitempty"`
}

// IngestJob tracks one ingestion run. It is terminal once every URL has
// been attempted; a fresh call reprocesses everything (upsert by chunk_id).
// Jobs are mutated from a background goroutine while handlers read their
// snapshots, so all access goes through the methods below.
type IngestJob struct {
	mu         sync.Mutex
	JobID      string
	State      JobState
	URLs       []string
	Outcomes   map[string]URLResult
	ChunkCount int
	StartedAt  time.Time
	FinishedAt *time.Time
}

func NewIngestJob(jobID string, startedAt time.Time) *IngestJob {
	return &IngestJob{
		JobID:     jobID,
		State:     JobStatePending,
		Outcomes:  make(map[string]URLResult),
		StartedAt: startedAt,
	}
}

func (j *IngestJob) SetState(state JobState) {
	j.mu.Lock()
	j.State = state
	j.mu.Unlock()
}

func (j *IngestJob) SetURLs(urls []string) {
	j.mu.Lock()
	j.URLs = urls
	j.mu.Unlock()
}

func (j *IngestJob) SetOutcome(url string, outcome URLOutcome, message string) {
	j.mu.Lock()
	j.Outcomes[url] = URLResult{Outcome: outcome, Message: message}
	j.mu.Unlock()
}

func (j *IngestJob) AddChunks(n int) {
	j.mu.Lock()
	j.ChunkCount += n
	j.mu.Unlock()
}

func (j *IngestJob) Finish(at time.Time) {
	j.mu.Lock()
	j.State = JobStateComplete
	j.FinishedAt = &at
	j.mu.Unlock()
}

// Snapshot returns a copy safe to serialize while the job is running.
func (j *IngestJob) Snapshot() IngestJobStatus {
	j.mu.Lock()
	defer j.mu.Unlock()
	outcomes := make(map[string]URLResult, len(j.Outcomes))
	for k, v := range j.Outcomes {
		outcomes[k] = v
	}
	urls := make([]string, len(j.URLs))
	copy(urls, j.URLs)
	return IngestJobStatus{
		JobID:      j.JobID,
		State:      j.State,
		URLs:       urls,
		Outcomes:   outcomes,
		ChunkCount: j.ChunkCount,
		StartedAt:  j.StartedAt,
		FinishedAt: j.FinishedAt,
	}
}

// IngestJobStatus is the serializable view of a job.
type IngestJobStatus struct {
	JobID      string               `json:"job_id"`
	State      JobState             `json:"state"`
	URLs       []string             `json:"urls"`
	Outcomes   map[string]URLResult `json:"outcomes"`
	ChunkCount int                  `json:"chunk_count"`
	StartedAt  time.Time            `json:"started_at"`
	FinishedAt *time.Time           `json:"finished_at,omitempty"`
}
