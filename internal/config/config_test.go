package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

const validConfig = `{
	"port": 8080,
	"session_secret": "secret",
	"database": {"host": "localhost", "port": 5432, "user": "app", "db_name": "bookrag"},
	"vector_store": {"type": "qdrant", "data": {"url": "http://localhost:6333", "collection": "chunks", "vector_dim": 768}},
	"ai": {"providers": [
		{"provider": "gemini", "generate_model": "gemini-2.5-flash", "embed_model": "gemini-embedding-001", "data": {"api_key": "k"}}
	]}
}`

func TestLoadValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validConfig))
	require.NoError(t, err)
	require.Equal(t, 8080, cfg.Port)
	require.Equal(t, "qdrant", cfg.VectorStore.Type)
	// Defaults kick in for everything not set explicitly.
	require.Equal(t, "info", cfg.LogConfig.Level)
	require.Equal(t, 30, cfg.AI.Timeout)
	require.Equal(t, 15, cfg.Ingest.FetchTimeout)
	require.InDelta(t, 0.2, cfg.Retrieval.ScoreThreshold, 1e-9)
	require.Equal(t, 10, cfg.Retrieval.MaxChunks)
}

func TestLoadRejectsIncompleteConfig(t *testing.T) {
	cases := map[string]string{
		"missing_port":         `{"session_secret":"s","database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","generate_model":"g","embed_model":"e"}]}}`,
		"missing_secret":       `{"port":8080,"database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","generate_model":"g","embed_model":"e"}]}}`,
		"missing_database":     `{"port":8080,"session_secret":"s","vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","generate_model":"g","embed_model":"e"}]}}`,
		"missing_vector_store": `{"port":8080,"session_secret":"s","database":{"host":"h"},"ai":{"providers":[{"provider":"gemini","generate_model":"g","embed_model":"e"}]}}`,
		"no_providers":         `{"port":8080,"session_secret":"s","database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[]}}`,
		"no_generate_model":    `{"port":8080,"session_secret":"s","database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","embed_model":"e"}]}}`,
		"no_embed_model":       `{"port":8080,"session_secret":"s","database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","generate_model":"g"}]}}`,
		"refresh_without_url":  `{"port":8080,"session_secret":"s","database":{"host":"h"},"vector_store":{"type":"qdrant"},"ai":{"providers":[{"provider":"gemini","generate_model":"g","embed_model":"e"}]},"refresh":{"cron_spec":"0 3 * * *"}}`,
	}
	for name, content := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, content))
			require.Error(t, err)
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.Error(t, err)
}
