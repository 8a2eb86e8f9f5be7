package vectorstore

import (
	"context"
	"database/sql"
	goerrors "errors"
	"fmt"
	"sort"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/bookrag/internal/model"
	"github.com/xxxsen/bookrag/internal/pkg/errors"
)

type pgvectorConfig struct {
	DSN       string `json:"dsn"`
	Table     string `json:"table"`
	VectorDim int    `json:"vector_dim"`
}

type pgvectorStore struct {
	cfg *pgvectorConfig
	db  *sqlx.DB
}

type pgChunkRow struct {
	ChunkID    string          `db:"chunk_id"`
	Content    string          `db:"content"`
	SourceURL  string          `db:"source_url"`
	Title      string          `db:"title"`
	Module     string          `db:"module"`
	Chapter    string          `db:"chapter"`
	Anchor     string          `db:"anchor"`
	TokenCount int             `db:"token_count"`
	Embedding  pgvector.Vector `db:"embedding"`
	Score      float32         `db:"score"`
}

func init() {
	Register("pgvector", newPgvectorStore)
}

func newPgvectorStore(args interface{}) (Store, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector store: dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = "chunk_embedding"
	}
	if cfg.VectorDim <= 0 {
		return nil, fmt.Errorf("pgvector store: vector_dim must be positive")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("open pgvector database: %w", err)
	}
	return &pgvectorStore{cfg: cfg, db: db}, nil
}

func (s *pgvectorStore) EnsureCollection(ctx context.Context) error {
	stmts := []string{
		"CREATE EXTENSION IF NOT EXISTS vector",
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			chunk_id    TEXT PRIMARY KEY,
			content     TEXT NOT NULL,
			source_url  TEXT NOT NULL,
			title       TEXT NOT NULL DEFAULT '',
			module      TEXT NOT NULL DEFAULT '',
			chapter     TEXT NOT NULL DEFAULT '',
			anchor      TEXT NOT NULL DEFAULT '',
			token_count INTEGER NOT NULL DEFAULT 0,
			embedding   vector(%d) NOT NULL
		)`, s.cfg.Table, s.cfg.VectorDim),
		fmt.Sprintf("CREATE INDEX IF NOT EXISTS idx_%s_source_url ON %s (source_url)", s.cfg.Table, s.cfg.Table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("ensure pgvector table: %w", err)
		}
	}
	return nil
}

func (s *pgvectorStore) Upsert(ctx context.Context, chunks []model.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	query := fmt.Sprintf(`INSERT INTO %s
		(chunk_id, content, source_url, title, module, chapter, anchor, token_count, embedding)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (chunk_id) DO UPDATE SET
			content = EXCLUDED.content,
			source_url = EXCLUDED.source_url,
			title = EXCLUDED.title,
			module = EXCLUDED.module,
			chapter = EXCLUDED.chapter,
			anchor = EXCLUDED.anchor,
			token_count = EXCLUDED.token_count,
			embedding = EXCLUDED.embedding`, s.cfg.Table)
	for _, ck := range chunks {
		if len(ck.Embedding) != s.cfg.VectorDim {
			return fmt.Errorf("chunk %s dimension mismatch: expect %d, got %d",
				ck.ChunkID, s.cfg.VectorDim, len(ck.Embedding))
		}
		_, err := s.db.ExecContext(ctx, query,
			ck.ChunkID, ck.Content, ck.SourceURL, ck.Title, ck.Module,
			ck.Chapter, ck.Anchor, ck.TokenCount, pgvector.NewVector(ck.Embedding))
		if err != nil {
			return fmt.Errorf("upsert chunk %s: %w", ck.ChunkID, err)
		}
	}
	return nil
}

func (s *pgvectorStore) Search(ctx context.Context, vector []float32, limit int,
	filters map[string]string, threshold float32) ([]model.RetrievedChunk, error) {

	if len(vector) != s.cfg.VectorDim {
		return nil, fmt.Errorf("query vector dimension mismatch: expect %d, got %d",
			s.cfg.VectorDim, len(vector))
	}
	if limit <= 0 {
		limit = 10
	}
	conds := []string{"1 - (embedding <=> $1) >= $2"}
	args := []interface{}{pgvector.NewVector(vector), threshold}
	keys := make([]string, 0, len(filters))
	for k := range filters {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if !isFilterColumn(k) {
			return nil, fmt.Errorf("unsupported filter field: %s", k)
		}
		args = append(args, filters[k])
		conds = append(conds, fmt.Sprintf("%s = $%d", k, len(args)))
	}
	args = append(args, limit)
	query := fmt.Sprintf(`SELECT chunk_id, content, source_url, title, module, chapter, anchor,
		token_count, 1 - (embedding <=> $1) AS score
		FROM %s WHERE %s ORDER BY embedding <=> $1 LIMIT $%d`,
		s.cfg.Table, strings.Join(conds, " AND "), len(args))
	rows := make([]pgChunkRow, 0, limit)
	if err := s.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, fmt.Errorf("search chunks: %w", err)
	}
	out := make([]model.RetrievedChunk, 0, len(rows))
	for _, row := range rows {
		out = append(out, model.RetrievedChunk{
			ChunkID: row.ChunkID,
			Content: row.Content,
			Source:  model.SourceQdrantRetrieved,
			Module:  row.Module,
			Chapter: row.Chapter,
			Anchor:  row.Anchor,
			URL:     row.SourceURL,
			Score:   row.Score,
		})
	}
	return out, nil
}

func (s *pgvectorStore) Retrieve(ctx context.Context, chunkID string) (*model.Chunk, error) {
	query := fmt.Sprintf(`SELECT chunk_id, content, source_url, title, module, chapter, anchor,
		token_count, embedding, 0 AS score FROM %s WHERE chunk_id = $1`, s.cfg.Table)
	row := pgChunkRow{}
	err := s.db.GetContext(ctx, &row, query, chunkID)
	if goerrors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("chunk %s: %w", chunkID, errors.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("retrieve chunk %s: %w", chunkID, err)
	}
	return &model.Chunk{
		ChunkID:    row.ChunkID,
		Content:    row.Content,
		SourceURL:  row.SourceURL,
		Title:      row.Title,
		Module:     row.Module,
		Chapter:    row.Chapter,
		Anchor:     row.Anchor,
		TokenCount: row.TokenCount,
		Embedding:  row.Embedding.Slice(),
	}, nil
}

func (s *pgvectorStore) DeleteBySource(ctx context.Context, sourceURL string) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE source_url = $1", s.cfg.Table)
	if _, err := s.db.ExecContext(ctx, query, sourceURL); err != nil {
		return fmt.Errorf("delete chunks of %s: %w", sourceURL, err)
	}
	return nil
}

func isFilterColumn(name string) bool {
	switch name {
	case "module", "chapter", "source_url", "title":
		return true
	default:
		return false
	}
}
