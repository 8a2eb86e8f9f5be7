// Package vectorstore persists chunk embeddings and answers similarity
// searches over them.
package vectorstore

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/xxxsen/bookrag/internal/model"
)

// Store is the embedding persistence layer. Implementations must keep
// upserts idempotent on chunk id and return search results ordered by
// descending score.
type Store interface {
	// EnsureCollection creates the backing collection if it does not
	// exist yet.
	EnsureCollection(ctx context.Context) error
	// Upsert writes chunks with their embeddings, replacing any
	// existing points with the same chunk id.
	Upsert(ctx context.Context, chunks []model.Chunk) error
	// Search returns at most limit chunks whose similarity to vector is
	// at least threshold, filtered by exact payload matches.
	Search(ctx context.Context, vector []float32, limit int, filters map[string]string, threshold float32) ([]model.RetrievedChunk, error)
	// Retrieve looks up a single chunk by its chunk id. Returns
	// errors.ErrNotFound when absent.
	Retrieve(ctx context.Context, chunkID string) (*model.Chunk, error)
	// DeleteBySource removes every chunk ingested from the given page URL.
	DeleteBySource(ctx context.Context, sourceURL string) error
}

type Factory func(args interface{}) (Store, error)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{}
)

func Register(name string, factory Factory) {
	key := strings.ToLower(strings.TrimSpace(name))
	if key == "" || factory == nil {
		return
	}
	registryMu.Lock()
	registry[key] = factory
	registryMu.Unlock()
}

type Config struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func New(cfg Config) (Store, error) {
	key := strings.ToLower(strings.TrimSpace(cfg.Type))
	if key == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	registryMu.RLock()
	factory := registry[key]
	registryMu.RUnlock()
	if factory == nil {
		return nil, fmt.Errorf("unsupported vector store type: %s", cfg.Type)
	}
	return factory(cfg.Data)
}

func decodeConfig(args interface{}, dst interface{}) error {
	if args == nil {
		return fmt.Errorf("vector store config is required")
	}
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encode vector store config: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode vector store config: %w", err)
	}
	return nil
}
