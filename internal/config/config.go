// Package config loads the process configuration from per-environment YAML
// files with ${VAR:-default} environment expansion.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"runtime"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds the ragdex process configuration.
type Config struct {
	HTTP          HTTPConfig          `yaml:"http"`
	Database      DatabaseConfig      `yaml:"database"`
	Storage       StorageConfig       `yaml:"storage"`
	Queue         QueueConfig         `yaml:"queue"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Chat          ChatConfig          `yaml:"chat"`
	DocIntel      DocIntelConfig      `yaml:"document_intelligence"`
	Safety        SafetyConfig        `yaml:"content_safety"`
	Orchestration OrchestrationConfig `yaml:"orchestration"`
	Auth          AuthConfig          `yaml:"auth"`
	Logging       LoggingConfig       `yaml:"logging"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `yaml:"level"` // debug, info, warn, error (default: determined by env)
}

// AuthConfig holds admin API authentication settings.
type AuthConfig struct {
	APIKeys       []string `yaml:"api_keys"`
	AdminDisabled bool     `yaml:"admin_auth_disabled"`
}

// HTTPConfig holds HTTP server settings.
type HTTPConfig struct {
	Port            int `yaml:"port"`
	ReadTimeoutSec  int `yaml:"read_timeout_sec"`
	WriteTimeoutSec int `yaml:"write_timeout_sec"`
	ShutdownSec     int `yaml:"shutdown_timeout_sec"`
	RequestDeadline int `yaml:"request_deadline_sec"`
}

// DatabaseConfig holds database connection settings.
type DatabaseConfig struct {
	Addrs            []string `yaml:"addrs"`
	Username         string   `yaml:"username"`
	Password         string   `yaml:"password"`
	ReadinessTimeout int      `yaml:"readiness_timeout_sec"`
}

// StorageConfig holds configuration persistence and index tuning settings.
type StorageConfig struct {
	LoadFromStore bool `yaml:"load_config_from_store"`
	HNSWM         int  `yaml:"hnsw_m"`
	HNSWEFConstr  int  `yaml:"hnsw_ef_construction"`
}

// QueueConfig holds ingestion queue settings.
type QueueConfig struct {
	Stream            string `yaml:"stream"`
	Group             string `yaml:"group"`
	Workers           int    `yaml:"workers"`
	BlockSec          int    `yaml:"block_sec"`
	VisibilitySec     int    `yaml:"visibility_timeout_sec"`
	MaxDeliveries     int    `yaml:"max_deliveries"`
	DeadLetterStream  string `yaml:"dead_letter_stream"`
	ClaimSweepSec     int    `yaml:"claim_sweep_sec"`
	ClaimBatchSize    int    `yaml:"claim_batch_size"`
	EmbedTimeoutSec   int    `yaml:"embed_timeout_sec"`
	StartProcessLimit int    `yaml:"start_processing_limit"`
}

// EmbeddingConfig holds the embedding provider settings.
type EmbeddingConfig struct {
	APIKey     string `yaml:"api_key"`
	BaseURL    string `yaml:"base_url"`
	Model      string `yaml:"model"`
	Dimensions int    `yaml:"dimensions"`
}

// ChatConfig holds the chat completion provider settings.
type ChatConfig struct {
	APIKey      string  `yaml:"api_key"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// DocIntelConfig holds the remote OCR/layout service settings.
type DocIntelConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	PollIntervalMS int    `yaml:"poll_interval_ms"`
	PollTimeoutSec int    `yaml:"poll_timeout_sec"`
}

// SafetyConfig holds the content safety service settings.
type SafetyConfig struct {
	Endpoint          string `yaml:"endpoint"`
	APIKey            string `yaml:"api_key"`
	SeverityThreshold int    `yaml:"severity_threshold"`
}

// OrchestrationConfig holds orchestrator defaults.
type OrchestrationConfig struct {
	DefaultStrategy         string `yaml:"default_strategy"`
	IntegratedVectorization bool   `yaml:"integrated_vectorization"`
	MaxToolHops             int    `yaml:"max_tool_hops"`
	TopK                    int    `yaml:"top_k"`
}

// Load reads configuration from a YAML file by environment name (local, dev, prod).
func Load(env string) (Config, error) {
	configPath := findConfigPath(env)

	data, err := os.ReadFile(filepath.Clean(configPath))
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", configPath, err)
	}

	// Substitute env variables of the form ${VAR} / ${VAR:-default}
	data = expandEnvVars(data)

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// MustLoad loads configuration or panics.
func MustLoad(env string) Config {
	cfg, err := Load(env)
	if err != nil {
		panic(err)
	}
	return cfg
}

// GetEnv returns the current environment from the ENV variable, defaulting to "local".
func GetEnv() string {
	if env := os.Getenv("ENV"); env != "" {
		return env
	}
	return "local"
}

// ApplyDefaults fills empty fields with default values.
func (c *Config) ApplyDefaults() {
	if c.HTTP.ReadTimeoutSec <= 0 {
		c.HTTP.ReadTimeoutSec = 10
	}
	if c.HTTP.WriteTimeoutSec <= 0 {
		c.HTTP.WriteTimeoutSec = 120
	}
	if c.HTTP.ShutdownSec <= 0 {
		c.HTTP.ShutdownSec = 10
	}
	if c.HTTP.RequestDeadline <= 0 {
		c.HTTP.RequestDeadline = 90
	}
	if c.Database.ReadinessTimeout <= 0 {
		c.Database.ReadinessTimeout = 10
	}
	if c.Storage.HNSWM <= 0 {
		c.Storage.HNSWM = 16
	}
	if c.Storage.HNSWEFConstr <= 0 {
		c.Storage.HNSWEFConstr = 200
	}
	if c.Queue.Stream == "" {
		c.Queue.Stream = "ragdex:ingest"
	}
	if c.Queue.Group == "" {
		c.Queue.Group = "ragdex:workers"
	}
	if c.Queue.DeadLetterStream == "" {
		c.Queue.DeadLetterStream = c.Queue.Stream + ":dead"
	}
	if c.Queue.Workers <= 0 {
		c.Queue.Workers = 2
	}
	if c.Queue.BlockSec <= 0 {
		c.Queue.BlockSec = 5
	}
	// Visibility timeout must exceed the worst-case embed time; the claim
	// sweep re-delivers anything idle longer than this.
	if c.Queue.VisibilitySec <= 0 {
		c.Queue.VisibilitySec = 600
	}
	if c.Queue.MaxDeliveries <= 0 {
		c.Queue.MaxDeliveries = 5
	}
	if c.Queue.ClaimSweepSec <= 0 {
		c.Queue.ClaimSweepSec = 60
	}
	if c.Queue.ClaimBatchSize <= 0 {
		c.Queue.ClaimBatchSize = 10
	}
	if c.Queue.EmbedTimeoutSec <= 0 {
		c.Queue.EmbedTimeoutSec = 540
	}
	if c.Embedding.Model == "" {
		c.Embedding.Model = "text-embedding-ada-002"
	}
	if c.Embedding.Dimensions <= 0 {
		c.Embedding.Dimensions = 1536
	}
	if c.Chat.Model == "" {
		c.Chat.Model = "gpt-4o"
	}
	if c.Chat.MaxTokens <= 0 {
		c.Chat.MaxTokens = 1000
	}
	if c.DocIntel.PollIntervalMS <= 0 {
		c.DocIntel.PollIntervalMS = 1000
	}
	if c.DocIntel.PollTimeoutSec <= 0 {
		c.DocIntel.PollTimeoutSec = 120
	}
	if c.Safety.SeverityThreshold <= 0 {
		c.Safety.SeverityThreshold = 2
	}
	if c.Orchestration.DefaultStrategy == "" {
		c.Orchestration.DefaultStrategy = "openai_function"
	}
	if c.Orchestration.MaxToolHops <= 0 {
		c.Orchestration.MaxToolHops = 5
	}
	if c.Orchestration.TopK <= 0 {
		c.Orchestration.TopK = 4
	}
}

// Validate checks the configuration for correctness.
func (c *Config) Validate() error {
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("http.port must be between 1 and 65535, got %d", c.HTTP.Port)
	}
	if len(c.Database.Addrs) == 0 {
		return fmt.Errorf("database.addrs is required")
	}
	switch c.Orchestration.DefaultStrategy {
	case "openai_function", "langchain", "semantic_kernel", "prompt_flow":
	default:
		return fmt.Errorf(
			"orchestration.default_strategy %q is not a known strategy",
			c.Orchestration.DefaultStrategy,
		)
	}
	if c.Queue.VisibilitySec <= c.Queue.EmbedTimeoutSec {
		return fmt.Errorf(
			"queue.visibility_timeout_sec (%d) must exceed queue.embed_timeout_sec (%d)",
			c.Queue.VisibilitySec, c.Queue.EmbedTimeoutSec,
		)
	}
	return nil
}

// findConfigPath locates the config file.
func findConfigPath(env string) string {
	filename := fmt.Sprintf("%s.yaml", env)

	// 1. Check ./config/
	if path := filepath.Join("config", filename); fileExists(path) {
		return path
	}

	// 2. Check relative to the source file
	_, b, _, _ := runtime.Caller(0)
	projectRoot := filepath.Dir(filepath.Dir(filepath.Dir(b))) // internal/config -> project root
	if path := filepath.Join(projectRoot, "config", filename); fileExists(path) {
		return path
	}

	// 3. Fallback to ./config/
	return filepath.Join("config", filename)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// expandEnvVars replaces ${VAR} and ${VAR:-default} with environment variable values.
var envVarRegex = regexp.MustCompile(`\$\{([^}]+)\}`)

func expandEnvVars(data []byte) []byte {
	return envVarRegex.ReplaceAllFunc(data, func(match []byte) []byte {
		expr := string(match[2 : len(match)-1]) // strip ${ and }
		varName, defaultVal, hasDefault := strings.Cut(expr, ":-")
		val := os.Getenv(varName)
		if val == "" && hasDefault {
			val = defaultVal
		}
		return []byte(val)
	})
}
