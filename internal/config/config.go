// Package config loads the assistant configuration from a JSON file at an
// XDG-compatible path, with UPRAVDOM_* environment variables taking
// precedence. Everything has a working default; only a missing corpus file
// fails later, at load time.
package config

import (
	"fmt"
	"os"
	"path/filepath"
)

type Config struct {
	Server    ServerConfig
	Engine    EngineConfig
	Retrieval RetrievalConfig
	Storage   StorageConfig
	Search    SearchConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port int
}

type EngineConfig struct {
	BaseURL string
	// ChatModel produces answers; ClarifyModel runs the cheaper
	// clarification-need analysis.
	ChatModel    string
	ClarifyModel string
	EmbedModel   string
	// AnswerTimeout bounds a single generation call, e.g. "90s".
	AnswerTimeout string
}

type RetrievalConfig struct {
	TopK int
	// MaxContextTokens caps the assembled context block.
	MaxContextTokens int
}

type StorageConfig struct {
	// DataDir holds the corpus file and the feedback database.
	DataDir string
	// CorpusPath defaults to <DataDir>/corpus.json.
	CorpusPath string
}

type SearchConfig struct {
	// Enabled toggles web-search supplementation on low-confidence
	// retrievals.
	Enabled bool
}

type LogConfig struct {
	Level string
}

func defaults() Config {
	dataDir := defaultDataDir()
	return Config{
		Server: ServerConfig{
			Port: 4600,
		},
		Engine: EngineConfig{
			BaseURL:       "http://localhost:11434",
			ChatModel:     "qwen2.5",
			ClarifyModel:  "qwen2.5:3b",
			EmbedModel:    "nomic-embed-text",
			AnswerTimeout: "90s",
		},
		Retrieval: RetrievalConfig{
			TopK:             5,
			MaxContextTokens: 4000,
		},
		Storage: StorageConfig{
			DataDir: dataDir,
		},
		Search: SearchConfig{
			Enabled: true,
		},
		Log: LogConfig{
			Level: "info",
		},
	}
}

// Load reads configuration from the JSON file backend and applies
// environment overrides.
func Load() (Config, error) {
	return loadWith(newFileBackend(configFilePath()))
}

func loadWith(b backend) (Config, error) {
	cfg := defaults()

	if err := applyBackend(&cfg, b); err != nil {
		return Config{}, err
	}
	applyEnvOverrides(&cfg)

	if cfg.Storage.CorpusPath == "" {
		cfg.Storage.CorpusPath = filepath.Join(cfg.Storage.DataDir, "corpus.json")
	}
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		return Config{}, fmt.Errorf("invalid server port %d", cfg.Server.Port)
	}

	return cfg, nil
}

func defaultDataDir() string {
	dir := os.Getenv("XDG_DATA_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".local", "share")
		} else {
			return "upravdom-data"
		}
	}
	return filepath.Join(dir, "upravdom")
}

func configFilePath() string {
	dir := os.Getenv("XDG_CONFIG_HOME")
	if dir == "" {
		if home, err := os.UserHomeDir(); err == nil {
			dir = filepath.Join(home, ".config")
		} else {
			dir = "."
		}
	}
	return filepath.Join(dir, "upravdom", "config.json")
}
