package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	_ "time/tzdata"

	"github.com/joho/godotenv"
)

const (
	StoreSQLite   = "sqlite"
	StorePostgres = "postgres"

	BackendOpenAI  = "openai"
	BackendGateway = "gateway"
)

type LLMConfig struct {
	Backend     string
	BaseURL     string
	APIKey      string
	Model       string
	ProxyURL    string
	ProxyAPIKey string
	MaxTokens   int
	Temperature float64
	Timeout     time.Duration
}

type StoreConfig struct {
	Driver      string
	DBPath      string
	PostgresDSN string
}

type Config struct {
	Host           string
	Port           int
	LogMode        string
	LogRedaction   bool
	LogHashSalt    string
	Store          StoreConfig
	LLM            LLMConfig
	MaxInputChars  int
	Location       *time.Location
	AllowedOrigins []string
	DailyGoal      int
}

// Load reads configuration from the environment, after merging an optional .env
// file. Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	cfg := &Config{
		Host:         str("MEAL_LOG_HOST", "0.0.0.0"),
		Port:         intEnv("MEAL_LOG_PORT", 8011),
		LogMode:      str("LOG_MODE", "dev"),
		LogRedaction: boolEnv("LOG_REDACTION_ENABLED", true),
		LogHashSalt:  str("LOG_HASH_SALT", ""),
		Store: StoreConfig{
			Driver:      strings.ToLower(str("MEAL_LOG_STORE", StoreSQLite)),
			DBPath:      str("MEAL_LOG_DB_PATH", "/data/meal-log.db"),
			PostgresDSN: str("MEAL_LOG_POSTGRES_DSN", ""),
		},
		LLM: LLMConfig{
			Backend:     strings.ToLower(str("MEAL_LOG_LLM_BACKEND", BackendOpenAI)),
			BaseURL:     strings.TrimRight(str("OPENAI_BASE_URL", "https://api.openai.com"), "/"),
			APIKey:      str("OPENAI_API_KEY", ""),
			Model:       str("OPENAI_MODEL", "gpt-4o-mini"),
			ProxyURL:    strings.TrimRight(str("MCP_PROXY_URL", "http://mcp-compose-http-proxy:9876"), "/"),
			ProxyAPIKey: str("MCP_PROXY_API_KEY", ""),
			MaxTokens:   intEnv("MEAL_LOG_MAX_TOKENS", 800),
			Temperature: 0,
			Timeout:     time.Duration(intEnv("MEAL_LOG_LLM_TIMEOUT_SECONDS", 60)) * time.Second,
		},
		MaxInputChars:  intEnv("MEAL_LOG_MAX_INPUT_CHARS", 1000),
		AllowedOrigins: list("MEAL_LOG_CORS_ORIGINS", []string{"*"}),
		DailyGoal:      intEnv("MEAL_LOG_DAILY_GOAL", 2000),
	}

	loc, err := time.LoadLocation(str("MEAL_LOG_TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid MEAL_LOG_TIMEZONE: %w", err)
	}
	cfg.Location = loc

	return cfg, cfg.Validate()
}

func (c *Config) Validate() error {
	switch c.Store.Driver {
	case StoreSQLite:
		if c.Store.DBPath == "" {
			return fmt.Errorf("sqlite store requires a database path")
		}
	case StorePostgres:
		if c.Store.PostgresDSN == "" {
			return fmt.Errorf("postgres store requires MEAL_LOG_POSTGRES_DSN")
		}
	default:
		return fmt.Errorf("unknown store driver %q", c.Store.Driver)
	}
	switch c.LLM.Backend {
	case BackendOpenAI, BackendGateway:
	default:
		return fmt.Errorf("unknown llm backend %q", c.LLM.Backend)
	}
	if c.MaxInputChars <= 0 {
		return fmt.Errorf("max input chars must be positive")
	}
	if c.LLM.MaxTokens <= 0 {
		return fmt.Errorf("max tokens must be positive")
	}
	return nil
}

func (c *Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func str(name, def string) string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	return v
}

func intEnv(name string, def int) int {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func list(name string, def []string) []string {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func boolEnv(name string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(name))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}
