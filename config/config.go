package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Store backends understood by StoreConfig.Kind.
const (
	StoreFile   = "file"
	StoreMemory = "memory"
	StoreRedis  = "redis"
)

// Config holds everything the client, its presentations and the reference backend need.
type Config struct {
	APIBaseURL            string      `json:"api_base_url" yaml:"api_base_url"`
	ServerAddr            string      `json:"server_addr,omitempty" yaml:"server_addr,omitempty"`
	BackendAddr           string      `json:"backend_addr,omitempty" yaml:"backend_addr,omitempty"`
	RequestTimeoutSeconds int         `json:"request_timeout_seconds,omitempty" yaml:"request_timeout_seconds,omitempty"`
	LogFile               string      `json:"log_file,omitempty" yaml:"log_file,omitempty"`
	Store                 StoreConfig `json:"store" yaml:"store"`
	LLM                   *LLMConfig  `json:"llm,omitempty" yaml:"llm,omitempty"`
}

// StoreConfig selects the session store backend.
type StoreConfig struct {
	Kind      string `json:"kind" yaml:"kind"`
	Dir       string `json:"dir,omitempty" yaml:"dir,omitempty"`
	RedisURL  string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
	KeyPrefix string `json:"key_prefix,omitempty" yaml:"key_prefix,omitempty"`
}

// LLMConfig configures the reference backend's model (optional, client modes ignore it).
type LLMConfig struct {
	Provider   string `json:"provider,omitempty" yaml:"provider,omitempty"`
	Model      string `json:"model,omitempty" yaml:"model,omitempty"`
	ImageModel string `json:"image_model,omitempty" yaml:"image_model,omitempty"`
	APIKey     string `json:"api_key,omitempty" yaml:"api_key,omitempty"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty"`
}

// DefaultLLMModel is used when an LLM section or OPENAI_API_KEY is present
// without a model name.
const DefaultLLMModel = "gpt-4o-mini"

// Default returns the configuration used when no file is present.
func Default() Config {
	return Config{
		APIBaseURL:            "http://localhost:5000",
		ServerAddr:            ":8080",
		BackendAddr:           ":5000",
		RequestTimeoutSeconds: 300,
		Store: StoreConfig{
			Kind: StoreFile,
			Dir:  ".blog-sessions",
		},
	}
}

// RequestTimeout converts RequestTimeoutSeconds; zero means no client-side limit.
func (c Config) RequestTimeout() time.Duration {
	if c.RequestTimeoutSeconds <= 0 {
		return 0
	}
	return time.Duration(c.RequestTimeoutSeconds) * time.Second
}

// Load reads path (JSON, or YAML for .yaml/.yml) over the defaults, then applies
// .env and environment overrides. A missing file is not an error.
func Load(path string) (Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("[config] .env not found, using process environment")
	}

	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
			log.Printf("[config] %s not found, using defaults", path)
		case err != nil:
			return Config{}, fmt.Errorf("config: read %s: %w", path, err)
		default:
			if err := decode(path, data, &cfg); err != nil {
				return Config{}, err
			}
		}
	}

	applyEnv(&cfg)
	if cfg.LLM != nil && cfg.LLM.Model == "" {
		cfg.LLM.Model = DefaultLLMModel
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse yaml %s: %w", path, err)
		}
	default:
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("config: parse json %s: %w", path, err)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.APIBaseURL = getEnv("BLOG_API_BASE_URL", cfg.APIBaseURL)
	cfg.ServerAddr = getEnv("BLOG_SERVER_ADDR", cfg.ServerAddr)
	cfg.BackendAddr = getEnv("BLOG_BACKEND_ADDR", cfg.BackendAddr)
	cfg.LogFile = getEnv("BLOG_LOG_FILE", cfg.LogFile)
	cfg.RequestTimeoutSeconds = getEnvAsInt("BLOG_REQUEST_TIMEOUT_SECONDS", cfg.RequestTimeoutSeconds)
	cfg.Store.Kind = getEnv("BLOG_STORE", cfg.Store.Kind)
	cfg.Store.Dir = getEnv("BLOG_STORE_DIR", cfg.Store.Dir)
	cfg.Store.RedisURL = getEnv("BLOG_REDIS_URL", cfg.Store.RedisURL)

	key := os.Getenv("OPENAI_API_KEY")
	model := os.Getenv("LLM_MODEL")
	baseURL := os.Getenv("LLM_BASE_URL")
	if key == "" && model == "" && baseURL == "" {
		return
	}
	if cfg.LLM == nil {
		cfg.LLM = &LLMConfig{Provider: "openai"}
	}
	if key != "" {
		cfg.LLM.APIKey = key
	}
	if model != "" {
		cfg.LLM.Model = model
	}
	if baseURL != "" {
		cfg.LLM.BaseURL = baseURL
	}
}

// Validate rejects configurations the client cannot start with.
func (c Config) Validate() error {
	if strings.TrimSpace(c.APIBaseURL) == "" {
		return errors.New("config: api_base_url is required")
	}
	switch c.Store.Kind {
	case StoreFile:
		if c.Store.Dir == "" {
			return errors.New("config: store.dir is required for the file store")
		}
	case StoreMemory:
	case StoreRedis:
		if c.Store.RedisURL == "" {
			return errors.New("config: store.redis_url is required for the redis store")
		}
	default:
		return fmt.Errorf("config: unknown store kind %q", c.Store.Kind)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) int {
	v := getEnv(key, "")
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
