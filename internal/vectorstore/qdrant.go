package vectorstore

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/xxxsen/common/logutil"
	"go.uber.org/zap"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/errors"
)

const maxErrorBodyBytes = 1024

// Stable namespace for deriving point UUIDs from chunk ids, so the same
// chunk always maps to the same point.
var pointIDNamespace = uuid.MustParse("7a3c9f02-15be-4d6a-8c41-2f90de6b1a54")

type qdrantConfig struct {
	URL        string `json:"url"`
	APIKey     string `json:"api_key"`
	Collection string `json:"collection"`
	VectorDim  int    `json:"vector_dim"`
	Timeout    int64  `json:"timeout"` // seconds
}

type qdrantStore struct {
	cfg    *qdrantConfig
	base   string
	client *http.Client
}

type qdrantEnvelope struct {
	Result json.RawMessage `json:"result"`
	Status json.RawMessage `json:"status"`
	Time   float64         `json:"time"`
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector,omitempty"`
	Payload map[string]any `json:"payload"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float32         `json:"score"`
	Payload map[string]any  `json:"payload"`
}

func init() {
	Register("qdrant", newQdrantStore)
}

func newQdrantStore(args interface{}) (Store, error) {
	cfg := &qdrantConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("qdrant store: url is required")
	}
	if cfg.Collection == "" {
		return nil, fmt.Errorf("qdrant store: collection is required")
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("qdrant store: vector_dim must be positive")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10
	}
	return &qdrantStore{
		cfg:  cfg,
		base: strings.TrimRight(cfg.URL, "/"),
		client: &http.Client{
			Timeout: time.Duration(cfg.Timeout) * time.Second,
		},
	}, nil
}

func (s *qdrantStore) EnsureCollection(ctx context.Context) error {
	err := s.doJSON(ctx, http.MethodGet, s.collectionPath(""), nil, nil)
	if err == nil {
		return nil
	}
	req := map[string]any{
		"vectors": map[string]any{
			"size":     s.cfg.VectorDim,
			"distance": "Cosine",
		},
	}
	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath(""), req, nil); err != nil {
		return fmt.Errorf("create collection %s: %w", s.cfg.Collection, err)
	}
	logutil.GetLogger(ctx).Info("qdrant collection created",
		zap.String("collection", s.cfg.Collection), zap.Int("vector_dim", s.cfg.VectorDim))
	return nil
}

func (s *qdrantStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	points := make([]qdrantPoint, 0, len(chunks))
	for _, ck := range chunks {
		if ck.ChunkID == "" {
			return fmt.Errorf("chunk id is required")
		}
		if len(ck.Embedding) != s.cfg.VectorDim {
			return fmt.Errorf("chunk %s dimension mismatch: expect %d, got %d",
				ck.ChunkID, s.cfg.VectorDim, len(ck.Embedding))
		}
		points = append(points, qdrantPoint{
			ID:      pointID(ck.ChunkID),
			Vector:  ck.Embedding,
			Payload: chunkPayload(&ck),
		})
	}
	req := map[string]any{"points": points}
	if err := s.doJSON(ctx, http.MethodPut, s.collectionPath("/points?wait=true"), req, nil); err != nil {
		return fmt.Errorf("upsert %d points: %w", len(points), err)
	}
	return nil
}

func (s *qdrantStore) Search(ctx context.Context, vector []float32, limit int,
	filters map[string]string, threshold float32) ([]model.RetrievedChunk, error) {

	if len(vector) != s.cfg.VectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: expect %d, got %d",
			s.cfg.VectorDim, len(vector))
	}
	if limit <= 0 {
		limit = 10
	}
	req := map[string]any{
		"vector":          vector,
		"limit":           limit,
		"with_payload":    true,
		"with_vector":     false,
		"score_threshold": threshold,
	}
	if flt := buildFilter(filters); flt != nil {
		req["filter"] = flt
	}
	var items []qdrantScoredPoint
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/search"), req, &items); err != nil {
		return nil, fmt.Errorf("search points: %w", err)
	}
	out := make([]model.RetrievedChunk, 0, len(items))
	for _, item := range items {
		ck := payloadChunk(item.Payload)
		if ck.ChunkID == "" {
			continue
		}
		out = append(out, model.RetrievedChunk{
			ChunkID: ck.ChunkID,
			Content: ck.Content,
			Source:  model.SourceQdrantRetrieved,
			Module:  ck.Module,
			Chapter: ck.Chapter,
			Anchor:  ck.Anchor,
			URL:     ck.SourceURL,
			Score:   item.Score,
		})
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Score == out[j].Score {
			return out[i].ChunkID < out[j].ChunkID
		}
		return out[i].Score > out[j].Score
	})
	return out, nil
}

func (s *qdrantStore) Retrieve(ctx context.Context, chunkID string) (*model.Chunk, error) {
	req := map[string]any{
		"ids":          []string{pointID(chunkID)},
		"with_payload": true,
	}
	var items []qdrantPoint
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points"), req, &items); err != nil {
		return nil, fmt.Errorf("retrieve point: %w", err)
	}
	if len(items) == 0 {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, errors.ErrNotFound)
	}
	ck := payloadChunk(items[0].Payload)
	return ck, nil
}

func (s *qdrantStore) DeleteBySource(ctx context.Context, sourceURL string) error {
	req := map[string]any{
		"filter": buildFilter(map[string]string{"source_url": sourceURL}),
	}
	if err := s.doJSON(ctx, http.MethodPost, s.collectionPath("/points/delete?wait=true"), req, nil); err != nil {
		return fmt.Errorf("delete points of %s: %w", sourceURL, err)
	}
	return nil
}

func (s *qdrantStore) collectionPath(suffix string) string {
	return "/collections/" + s.cfg.Collection + suffix
}

func (s *qdrantStore) doJSON(ctx context.Context, method, path string, in any, out any) error {
	var body io.Reader
	if in != nil {
		var buf bytes.Buffer
		if err := json.NewEncoder(&buf).Encode(in); err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = &buf
	}
	req, err := http.NewRequestWithContext(ctx, method, s.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		req.Header.Set("api-key", s.cfg.APIKey)
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("call qdrant: %w", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 10*maxErrorBodyBytes))
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("qdrant status %d: %s", resp.StatusCode, truncateBody(raw))
	}
	var envelope qdrantEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return fmt.Errorf("decode envelope: %w", err)
	}
	if out == nil || len(envelope.Result) == 0 || string(envelope.Result) == "null" {
		return nil
	}
	if err := json.Unmarshal(envelope.Result, out); err != nil {
		return fmt.Errorf("decode result: %w", err)
	}
	return nil
}

func pointID(chunkID string) string {
	return uuid.NewSHA1(pointIDNamespace, []byte(chunkID)).String()
}

func chunkPayload(ck *model.Chunk) map[string]any {
	return map[string]any{
		"chunk_id":    ck.ChunkID,
		"content":     ck.Content,
		"source_url":  ck.SourceURL,
		"title":       ck.Title,
		"module":      ck.Module,
		"chapter":     ck.Chapter,
		"anchor":      ck.Anchor,
		"token_count": ck.TokenCount,
	}
}

func payloadChunk(payload map[string]any) *model.Chunk {
	str := func(key string) string {
		v, _ := payload[key].(string)
		return v
	}
	tokenCount := 0
	if v, ok := payload["token_count"].(float64); ok {
		tokenCount = int(v)
	}
	return &model.Chunk{
		ChunkID:    str("chunk_id"),
		Content:    str("content"),
		SourceURL:  str("source_url"),
		Title:      str("title"),
		Module:     str("module"),
		Chapter:    str("chapter"),
		Anchor:     str("anchor"),
		TokenCount: tokenCount,
	}
}

func buildFilter(filters map[string]string) map[string]any {
	if len(filters) == 0 {
		return nil
	}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	must := make([]any, 0, len(keys))
	for _, k := range keys {
		must = append(must, map[string]any{
			"key":   k,
			"match": map[string]any{"value": filters[k]},
		})
	}
	return map[string]any{"must": must}
}

func truncateBody(raw []byte) string {
	if len(raw) <= maxErrorBodyBytes {
		return string(raw)
	}
	return string(raw[:maxErrorBodyBytes]) + "..."
}
