package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port          int              `json:"port"`
	SessionSecret string           `json:"session_secret"`
	CORSOrigins   []string         `json:"cors_origins"`
	LogConfig     logger.LogConfig `json:"log_config"`
	Database      DatabaseConfig   `json:"database"`
	VectorStore   TypedConfig      `json:"vector_store"`
	Snapshot      TypedConfig      `json:"snapshot"`
	AI            AIConfig         `json:"ai"`
	Ingest        IngestConfig     `json:"ingest"`
	Retrieval     RetrievalConfig  `json:"retrieval"`
	Refresh       RefreshConfig    `json:"refresh"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"db_name"`
	SSLMode  string `json:"ssl_mode"`
}

// TypedConfig selects a pluggable backend and carries its backend
// specific settings opaquely.
type TypedConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type AIProviderConfig struct {
	Provider      string      `json:"provider"`
	GenerateModel string      `json:"generate_model"`
	EmbedModel    string      `json:"embed_model"`
	Data          interface{} `json:"data"`
}

type AIConfig struct {
	Providers     []AIProviderConfig `json:"providers"`
	Timeout       int                `json:"timeout"`         // seconds per upstream call
	EmbedCacheTTL int                `json:"embed_cache_ttl"` // seconds, 0 disables
}

type IngestConfig struct {
	UserAgent     string  `json:"user_agent"`
	FetchTimeout  int     `json:"fetch_timeout"` // seconds
	MinTokens     int     `json:"min_tokens"`
	MaxTokens     int     `json:"max_tokens"`
	OverlapRatio  float64 `json:"overlap_ratio"`
	SaveSnapshots bool    `json:"save_snapshots"`
	RateLimit     int     `json:"rate_limit"` // seconds between ingest kickoffs per client, 0 disables
}

type RetrievalConfig struct {
	ScoreThreshold float64 `json:"score_threshold"`
	MaxChunks      int     `json:"max_chunks"`
}

type RefreshConfig struct {
	CronSpec   string `json:"cron_spec"`
	SitemapURL string `json:"sitemap_url"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if cfg.Port == 0 {
		return nil, fmt.Errorf("port is required")
	}
	if cfg.SessionSecret == "" {
		return nil, fmt.Errorf("session_secret is required")
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return nil, fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.VectorStore.Type == "" {
		return nil, fmt.Errorf("vector_store.type is required")
	}
	if len(cfg.AI.Providers) == 0 {
		return nil, fmt.Errorf("at least one ai provider is required")
	}
	hasGenerate, hasEmbed := false, false
	for i, p := range cfg.AI.Providers {
		if p.Provider == "" {
			return nil, fmt.Errorf("ai.providers[%d].provider is required", i)
		}
		hasGenerate = hasGenerate || p.GenerateModel != ""
		hasEmbed = hasEmbed || p.EmbedModel != ""
	}
	if !hasGenerate {
		return nil, fmt.Errorf("no ai provider configures a generate_model")
	}
	if !hasEmbed {
		return nil, fmt.Errorf("no ai provider configures an embed_model")
	}
	if cfg.Refresh.CronSpec != "" && cfg.Refresh.SitemapURL == "" {
		return nil, fmt.Errorf("refresh.sitemap_url is required when refresh.cron_spec is set")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.AI.Timeout <= 0 {
		cfg.AI.Timeout = 30
	}
	if cfg.Ingest.FetchTimeout <= 0 {
		cfg.Ingest.FetchTimeout = 15
	}
	if cfg.Retrieval.ScoreThreshold <= 0 {
		cfg.Retrieval.ScoreThreshold = 0.2
	}
	if cfg.Retrieval.MaxChunks <= 0 {
		cfg.Retrieval.MaxChunks = 10
	}
	return &cfg, nil
}
