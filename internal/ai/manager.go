package ai

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	appErr "github.com/xxxsen/bookrag/internal/pkg/errors"
)

const (
	TaskTypeQuery    = "RETRIEVAL_QUERY"
	TaskTypeDocument = "RETRIEVAL_DOCUMENT"
)

type ManagerConfig struct {
	Timeout       int // seconds per upstream call
	EmbedCacheTTL int // seconds; 0 disables the cache
}

// Manager fronts the configured generator and embedder with per-call
// timeouts and a content-hash embedding cache.
type Manager struct {
	generator IGenerator
	embedder  IEmbedder
	cfg       ManagerConfig
	cache     *expirable.LRU[string, []float32]
}

func NewManager(generator IGenerator, embedder IEmbedder, cfg ManagerConfig) *Manager {
	var cache *expirable.LRU[string, []float32]
	if cfg.EmbedCacheTTL > 0 {
		cache = expirable.NewLRU[string, []float32](10000, nil, time.Duration(cfg.EmbedCacheTTL)*time.Second)
	}
	return &Manager{
		generator: generator,
		embedder:  embedder,
		cfg:       cfg,
		cache:     cache,
	}
}

func (m *Manager) Generate(ctx context.Context, prompt string) (string, error) {
	if m.generator == nil {
		return "", fmt.Errorf("generator not configured")
	}
	ctx, cancel := m.callContext(ctx)
	defer cancel()
	return m.generator.Generate(ctx, prompt)
}

func (m *Manager) Embed(ctx context.Context, text string, taskType string) ([]float32, error) {
	if m.embedder == nil {
		return nil, fmt.Errorf("embedder not configured")
	}
	key := m.cacheKey(text, taskType)
	if m.cache != nil {
		if vec, ok := m.cache.Get(key); ok {
			return vec, nil
		}
	}
	callCtx, cancel := m.callContext(ctx)
	defer cancel()
	vec, err := m.embedder.Embed(callCtx, text, taskType)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrEmbedding, err)
	}
	if m.cache != nil {
		m.cache.Add(key, vec)
	}
	return vec, nil
}

// EmbedBatch embeds texts in input order, one vector per text. Empty input
// yields an empty output. A failure on any text fails the whole batch.
func (m *Manager) EmbedBatch(ctx context.Context, texts []string, taskType string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for i, text := range texts {
		vec, err := m.Embed(ctx, text, taskType)
		if err != nil {
			return nil, fmt.Errorf("embed text %d/%d: %w", i+1, len(texts), err)
		}
		out = append(out, vec)
	}
	return out, nil
}

func (m *Manager) EmbedderModel() string {
	if m.embedder == nil {
		return ""
	}
	return m.embedder.ModelName()
}

func (m *Manager) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	timeout := time.Duration(m.cfg.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return context.WithTimeout(ctx, timeout)
}

func (m *Manager) cacheKey(text, taskType string) string {
	sum := sha256.Sum256([]byte(taskType + "\x00" + m.EmbedderModel() + "\x00" + text))
	return hex.EncodeToString(sum[:])
}
