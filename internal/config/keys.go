package config

import (
	"fmt"
	"os"
	"strconv"
)

type keyType int

const (
	kString keyType = iota
	kInt
	kBool
)

type keySpec struct {
	key   string
	typ   keyType
	env   string
	apply func(cfg *Config, v any)
}

var specs = []keySpec{
	{
		key: "server.port", typ: kInt, env: "UPRAVDOM_SERVER_PORT",
		apply: func(cfg *Config, v any) { cfg.Server.Port = v.(int) },
	},
	{
		key: "engine.base_url", typ: kString, env: "UPRAVDOM_ENGINE_BASE_URL",
		apply: func(cfg *Config, v any) { cfg.Engine.BaseURL = v.(string) },
	},
	{
		key: "engine.chat_model", typ: kString, env: "UPRAVDOM_ENGINE_CHAT_MODEL",
		apply: func(cfg *Config, v any) { cfg.Engine.ChatModel = v.(string) },
	},
	{
		key: "engine.clarify_model", typ: kString, env: "UPRAVDOM_ENGINE_CLARIFY_MODEL",
		apply: func(cfg *Config, v any) { cfg.Engine.ClarifyModel = v.(string) },
	},
	{
		key: "engine.embed_model", typ: kString, env: "UPRAVDOM_ENGINE_EMBED_MODEL",
		apply: func(cfg *Config, v any) { cfg.Engine.EmbedModel = v.(string) },
	},
	{
		key: "engine.answer_timeout", typ: kString, env: "UPRAVDOM_ENGINE_ANSWER_TIMEOUT",
		apply: func(cfg *Config, v any) { cfg.Engine.AnswerTimeout = v.(string) },
	},
	{
		key: "retrieval.top_k", typ: kInt, env: "UPRAVDOM_RETRIEVAL_TOP_K",
		apply: func(cfg *Config, v any) { cfg.Retrieval.TopK = v.(int) },
	},
	{
		key: "retrieval.max_context_tokens", typ: kInt, env: "UPRAVDOM_RETRIEVAL_MAX_CONTEXT_TOKENS",
		apply: func(cfg *Config, v any) { cfg.Retrieval.MaxContextTokens = v.(int) },
	},
	{
		key: "storage.data_dir", typ: kString, env: "UPRAVDOM_STORAGE_DATA_DIR",
		apply: func(cfg *Config, v any) { cfg.Storage.DataDir = v.(string) },
	},
	{
		key: "storage.corpus_path", typ: kString, env: "UPRAVDOM_STORAGE_CORPUS_PATH",
		apply: func(cfg *Config, v any) { cfg.Storage.CorpusPath = v.(string) },
	},
	{
		key: "search.enabled", typ: kBool, env: "UPRAVDOM_SEARCH_ENABLED",
		apply: func(cfg *Config, v any) { cfg.Search.Enabled = v.(bool) },
	},
	{
		key: "log.level", typ: kString, env: "UPRAVDOM_LOG_LEVEL",
		apply: func(cfg *Config, v any) { cfg.Log.Level = v.(string) },
	},
}

func applyBackend(cfg *Config, b backend) error {
	for _, s := range specs {
		switch s.typ {
		case kString:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kInt:
			v, ok, err := b.GetInt(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok {
				s.apply(cfg, v)
			}
		case kBool:
			v, ok, err := b.GetString(s.key)
			if err != nil {
				return fmt.Errorf("reading %s: %w", s.key, err)
			}
			if ok && v != "" {
				if bv, err := strconv.ParseBool(v); err == nil {
					s.apply(cfg, bv)
				} else {
					fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from config key %s=%q: %v. Using default value.\n", s.key, v, err)
				}
			}
		}
	}
	return nil
}

func applyEnvOverrides(cfg *Config) {
	for _, s := range specs {
		if s.env == "" {
			continue
		}
		raw := os.Getenv(s.env)
		if raw == "" {
			continue
		}
		switch s.typ {
		case kString:
			s.apply(cfg, raw)
		case kInt:
			if i, err := strconv.Atoi(raw); err == nil {
				s.apply(cfg, i)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse integer from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		case kBool:
			if b, err := strconv.ParseBool(raw); err == nil {
				s.apply(cfg, b)
			} else {
				fmt.Fprintf(os.Stderr, "[WARN] could not parse bool from env var %s=%q: %v. Using default value.\n", s.env, raw, err)
			}
		}
	}
}
