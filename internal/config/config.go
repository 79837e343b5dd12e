// Package config provides configuration for the agent engine.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config holds the engine configuration.
type Config struct {
	// Server settings
	HTTPPort int `yaml:"http_port"`
	RPCPort  int `yaml:"rpc_port"`

	// Database
	DatabaseURL string `yaml:"database_url"`

	// Completion provider
	LLMBaseURL         string        `yaml:"llm_base_url"`
	LLMAPIKey          string        `yaml:"llm_api_key"`
	LLMTimeout         time.Duration `yaml:"llm_timeout"`
	LLMRateLimitRPS    float64       `yaml:"llm_rate_limit_rps"`
	LLMRateBurst       int           `yaml:"llm_rate_burst"`
	LLMBreakerFailures int           `yaml:"llm_breaker_max_failures"`
	LLMBreakerTimeout  time.Duration `yaml:"llm_breaker_timeout"`

	// Delivery channels
	IngressURL    string `yaml:"ingress_url"`
	SlackBotToken string `yaml:"slack_bot_token"`
	SlackAPIURL   string `yaml:"slack_api_url"`

	// Per-conversation lock. Zero values are derived from the action and
	// completion timeouts.
	RedisURL string        `yaml:"redis_url"`
	LockTTL  time.Duration `yaml:"lock_ttl"`
	LockWait time.Duration `yaml:"lock_wait"`

	// Actions
	ActionDefaultTimeout time.Duration `yaml:"action_default_timeout"`
	ActionMaxRetries     int           `yaml:"action_max_retries"`
	ActionPolicyFile     string        `yaml:"action_policy_file"`
	ActionBlocklist      []string      `yaml:"action_blocklist"`

	// Conversation context
	HistoryLimit int `yaml:"history_limit"`

	Logger LoggerConfig `yaml:"logger"`
	Tracer TracerConfig `yaml:"tracer"`
}

// LoggerConfig configures structured logging.
type LoggerConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// TracerConfig configures OpenTelemetry tracing.
type TracerConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Exporter string `yaml:"exporter"`
}

// Upper bound of the executor's backoff between two attempts.
const actionMaxBackoff = 2 * time.Second

// Default returns the built-in configuration.
func Default() *Config {
	cfg := defaults()
	cfg.derive()
	return cfg
}

func defaults() *Config {
	return &Config{
		HTTPPort:             8080,
		RPCPort:              8081,
		DatabaseURL:          "file:ondesk.db?cache=shared&mode=rwc",
		LLMBaseURL:           "http://localhost:4000",
		LLMTimeout:           60 * time.Second,
		LLMRateBurst:         1,
		LLMBreakerFailures:   5,
		LLMBreakerTimeout:    30 * time.Second,
		IngressURL:           "http://localhost:8090",
		SlackAPIURL:          "https://slack.com/api/",
		ActionDefaultTimeout: 30 * time.Second,
		ActionMaxRetries:     5,
		HistoryLimit:         20,
		Logger: LoggerConfig{
			Level:  "info",
			Format: "text",
			Output: "stderr",
		},
		Tracer: TracerConfig{Exporter: "stdout"},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// CONFIG_FILE and environment variables, in increasing precedence. A .env file
// in the working directory is loaded first when present.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := defaults()
	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadYAML(path, cfg); err != nil {
			return nil, err
		}
	}
	applyEnv(cfg)
	cfg.derive()
	return cfg, nil
}

// RunBudget is the worst-case duration of one response generation: two
// completion calls plus one action with every retry and backoff.
func (c *Config) RunBudget() time.Duration {
	retries := max(c.ActionMaxRetries, 0)
	action := c.ActionDefaultTimeout*time.Duration(retries+1) + actionMaxBackoff*time.Duration(retries)
	return 2*c.LLMTimeout + action
}

func (c *Config) derive() {
	if c.LockTTL <= 0 {
		c.LockTTL = c.RunBudget()
	}
	if c.LockWait <= 0 {
		c.LockWait = c.LockTTL
	}
}

func loadYAML(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.HTTPPort = getEnvInt("HTTP_PORT", cfg.HTTPPort)
	cfg.RPCPort = getEnvInt("RPC_PORT", cfg.RPCPort)
	cfg.DatabaseURL = getEnv("DATABASE_URL", cfg.DatabaseURL)

	cfg.LLMBaseURL = getEnv("LLM_BASE_URL", cfg.LLMBaseURL)
	cfg.LLMAPIKey = getEnv("LLM_API_KEY", cfg.LLMAPIKey)
	cfg.LLMTimeout = getEnvMillis("LLM_TIMEOUT_MS", cfg.LLMTimeout)
	cfg.LLMRateLimitRPS = getEnvFloat("LLM_RATE_LIMIT_RPS", cfg.LLMRateLimitRPS)
	cfg.LLMRateBurst = getEnvInt("LLM_RATE_BURST", cfg.LLMRateBurst)
	cfg.LLMBreakerFailures = getEnvInt("LLM_BREAKER_MAX_FAILURES", cfg.LLMBreakerFailures)
	cfg.LLMBreakerTimeout = getEnvMillis("LLM_BREAKER_TIMEOUT_MS", cfg.LLMBreakerTimeout)

	cfg.IngressURL = getEnv("INGRESS_URL", cfg.IngressURL)
	cfg.SlackBotToken = getEnv("SLACK_BOT_TOKEN", cfg.SlackBotToken)
	cfg.SlackAPIURL = getEnv("SLACK_API_URL", cfg.SlackAPIURL)

	cfg.RedisURL = getEnv("REDIS_URL", cfg.RedisURL)
	cfg.LockTTL = getEnvMillis("LOCK_TTL_MS", cfg.LockTTL)
	cfg.LockWait = getEnvMillis("LOCK_WAIT_MS", cfg.LockWait)

	cfg.ActionDefaultTimeout = getEnvMillis("ACTION_DEFAULT_TIMEOUT_MS", cfg.ActionDefaultTimeout)
	cfg.ActionMaxRetries = getEnvInt("ACTION_MAX_RETRIES", cfg.ActionMaxRetries)
	cfg.ActionPolicyFile = getEnv("ACTION_POLICY_FILE", cfg.ActionPolicyFile)
	cfg.ActionBlocklist = getEnvList("ACTION_BLOCKLIST", cfg.ActionBlocklist)

	cfg.HistoryLimit = getEnvInt("HISTORY_LIMIT", cfg.HistoryLimit)

	cfg.Logger.Level = getEnv("LOG_LEVEL", cfg.Logger.Level)
	cfg.Logger.Format = getEnv("LOG_FORMAT", cfg.Logger.Format)
	cfg.Logger.Output = getEnv("LOG_OUTPUT", cfg.Logger.Output)

	cfg.Tracer.Enabled = getEnvBool("TRACING_ENABLED", cfg.Tracer.Enabled)
	cfg.Tracer.Exporter = getEnv("TRACING_EXPORTER", cfg.Tracer.Exporter)
}

func getEnv(key, defaultVal string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	if val := os.Getenv(key); val != "" {
		if intVal, err := strconv.Atoi(val); err == nil {
			return intVal
		}
	}
	return defaultVal
}

func getEnvFloat(key string, defaultVal float64) float64 {
	if val := os.Getenv(key); val != "" {
		if f, err := strconv.ParseFloat(val, 64); err == nil {
			return f
		}
	}
	return defaultVal
}

func getEnvBool(key string, defaultVal bool) bool {
	if val := os.Getenv(key); val != "" {
		if b, err := strconv.ParseBool(val); err == nil {
			return b
		}
	}
	return defaultVal
}

func getEnvMillis(key string, defaultVal time.Duration) time.Duration {
	if val := os.Getenv(key); val != "" {
		if ms, err := strconv.Atoi(val); err == nil {
			return time.Duration(ms) * time.Millisecond
		}
	}
	return defaultVal
}

func getEnvList(key string, defaultVal []string) []string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	var out []string
	for _, item := range strings.Split(val, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
