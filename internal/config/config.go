package config

import (
	"errors"
	"io/fs"
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/leadgen-cli/internal/store"
)

// EnvPrefix prefixes every environment override, e.g. LEADGEN_STORE_DRIVER.
const EnvPrefix = "LEADGEN"

// Config holds the full application configuration.
type Config struct {
	LLM        LLMConfig        `yaml:"llm" mapstructure:"llm"`
	Search     SearchConfig     `yaml:"search" mapstructure:"search"`
	Anthropic  AnthropicConfig  `yaml:"anthropic" mapstructure:"anthropic"`
	Perplexity PerplexityConfig `yaml:"perplexity" mapstructure:"perplexity"`
	Jina       JinaConfig       `yaml:"jina" mapstructure:"jina"`
	Firecrawl  FirecrawlConfig  `yaml:"firecrawl" mapstructure:"firecrawl"`
	Serper     SerperConfig     `yaml:"serper" mapstructure:"serper"`
	Scrape     ScrapeConfig     `yaml:"scrape" mapstructure:"scrape"`
	Store      StoreConfig      `yaml:"store" mapstructure:"store"`
	Retry      RetryConfig      `yaml:"retry" mapstructure:"retry"`
	Breaker    BreakerConfig    `yaml:"breaker" mapstructure:"breaker"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Server     ServerConfig     `yaml:"server" mapstructure:"server"`
	Log        LogConfig        `yaml:"log" mapstructure:"log"`
}

// LLMConfig selects the completion provider.
type LLMConfig struct {
	Provider    string  `yaml:"provider" mapstructure:"provider"` // anthropic | perplexity
	MaxTokens   int64   `yaml:"max_tokens" mapstructure:"max_tokens"`
	Temperature float64 `yaml:"temperature" mapstructure:"temperature"`
}

// SearchConfig selects the web search provider.
type SearchConfig struct {
	Provider string `yaml:"provider" mapstructure:"provider"` // serper | jina
	Country  string `yaml:"country" mapstructure:"country"`
	Language string `yaml:"language" mapstructure:"language"`
	Num      int    `yaml:"num" mapstructure:"num"`
}

// AnthropicConfig holds Anthropic API settings.
type AnthropicConfig struct {
	Key             string `yaml:"key" mapstructure:"key"`
	BaseURL         string `yaml:"base_url" mapstructure:"base_url"`
	ExtractionModel string `yaml:"extraction_model" mapstructure:"extraction_model"`
	EmailModel      string `yaml:"email_model" mapstructure:"email_model"`
}

// PerplexityConfig holds Perplexity API settings.
type PerplexityConfig struct {
	Key           string   `yaml:"key" mapstructure:"key"`
	BaseURL       string   `yaml:"base_url" mapstructure:"base_url"`
	Model         string   `yaml:"model" mapstructure:"model"`
	RateLimit     float64  `yaml:"rate_limit" mapstructure:"rate_limit"`
	SearchDomains []string `yaml:"search_domains" mapstructure:"search_domains"`
	SearchRecency string   `yaml:"search_recency" mapstructure:"search_recency"` // day | week | month | year
}

// JinaConfig holds Jina Reader and Search settings.
type JinaConfig struct {
	Key           string  `yaml:"key" mapstructure:"key"`
	BaseURL       string  `yaml:"base_url" mapstructure:"base_url"`
	SearchBaseURL string  `yaml:"search_base_url" mapstructure:"search_base_url"`
	RateLimit     float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// FirecrawlConfig holds Firecrawl API settings (scrape fallback only).
type FirecrawlConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// SerperConfig holds Serper search API settings.
type SerperConfig struct {
	Key       string  `yaml:"key" mapstructure:"key"`
	BaseURL   string  `yaml:"base_url" mapstructure:"base_url"`
	RateLimit float64 `yaml:"rate_limit" mapstructure:"rate_limit"`
}

// ScrapeConfig configures the scrape chain.
type ScrapeConfig struct {
	TimeoutSecs int  `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	LocalFirst  bool `yaml:"local_first" mapstructure:"local_first"`
}

// StoreConfig configures the database backend.
type StoreConfig struct {
	Driver      string           `yaml:"driver" mapstructure:"driver"` // sqlite | postgres
	DatabaseURL string           `yaml:"database_url" mapstructure:"database_url"`
	Pool        store.PoolConfig `yaml:"pool" mapstructure:"pool"`
}

// RetryConfig configures retries of search and store calls.
type RetryConfig struct {
	MaxAttempts int `yaml:"max_attempts" mapstructure:"max_attempts"`
	DelaySecs   int `yaml:"delay_secs" mapstructure:"delay_secs"`
}

// BreakerConfig configures the circuit breaker in front of Jina Reader.
type BreakerConfig struct {
	Threshold    int `yaml:"threshold" mapstructure:"threshold"`
	WindowSecs   int `yaml:"window_secs" mapstructure:"window_secs"`
	CooldownSecs int `yaml:"cooldown_secs" mapstructure:"cooldown_secs"`
}

// OutputConfig locates the profile document, trace log and reports.
type OutputConfig struct {
	Dir       string `yaml:"dir" mapstructure:"dir"`
	TraceFile string `yaml:"trace_file" mapstructure:"trace_file"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port        int      `yaml:"port" mapstructure:"port"`
	CORSOrigins []string `yaml:"cors_origins" mapstructure:"cors_origins"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config.yaml and the environment, in
// increasing order of precedence.
func Load() (*Config, error) {
	// .env is optional; real environment variables win over it.
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, eris.Wrap(err, "config: load .env")
	}

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("llm.provider", "anthropic")
	v.SetDefault("llm.max_tokens", 1024)
	v.SetDefault("llm.temperature", 0.2)
	v.SetDefault("search.provider", "serper")
	v.SetDefault("search.country", "ar")
	v.SetDefault("search.language", "es")
	v.SetDefault("search.num", 10)
	v.SetDefault("anthropic.extraction_model", "claude-haiku-4-5-20251001")
	v.SetDefault("anthropic.email_model", "claude-sonnet-4-5-20250929")
	v.SetDefault("perplexity.base_url", "https://api.perplexity.ai")
	v.SetDefault("perplexity.model", "sonar-pro")
	v.SetDefault("perplexity.rate_limit", 1)
	v.SetDefault("jina.base_url", "https://r.jina.ai")
	v.SetDefault("jina.search_base_url", "https://s.jina.ai")
	v.SetDefault("jina.rate_limit", 2)
	v.SetDefault("firecrawl.base_url", "https://api.firecrawl.dev/v1")
	v.SetDefault("firecrawl.rate_limit", 1)
	v.SetDefault("serper.base_url", "https://google.serper.dev")
	v.SetDefault("serper.rate_limit", 5)
	v.SetDefault("scrape.timeout_secs", 30)
	v.SetDefault("scrape.local_first", true)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.database_url", "outputs/leads.db")
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.delay_secs", 10)
	v.SetDefault("breaker.threshold", 5)
	v.SetDefault("breaker.window_secs", 60)
	v.SetDefault("breaker.cooldown_secs", 30)
	v.SetDefault("output.dir", "outputs")
	v.SetDefault("output.trace_file", "research_log.jsonl")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// Validate checks the settings a command mode needs. Modes: "run" (full
// pipeline), "store" (lead and run lookups), "profile" and "serve".
func (c *Config) Validate(mode string) error {
	var errs []string
	require := func(ok bool, msg string) {
		if !ok {
			errs = append(errs, msg)
		}
	}

	checkStore := func() {
		switch c.Store.Driver {
		case "sqlite", "postgres":
		default:
			errs = append(errs, "store.driver must be sqlite or postgres")
		}
		require(c.Store.DatabaseURL != "", "store.database_url is required")
	}
	checkPipeline := func() {
		switch c.LLM.Provider {
		case "anthropic":
			require(c.Anthropic.Key != "", "anthropic.key is required")
		case "perplexity":
			require(c.Perplexity.Key != "", "perplexity.key is required")
		default:
			errs = append(errs, "llm.provider must be anthropic or perplexity")
		}
		switch c.Search.Provider {
		case "serper":
			require(c.Serper.Key != "", "serper.key is required")
		case "jina":
			require(c.Jina.Key != "", "jina.key is required")
		default:
			errs = append(errs, "search.provider must be serper or jina")
		}
		require(c.Retry.MaxAttempts >= 1, "retry.max_attempts must be >= 1")
		require(c.Retry.DelaySecs >= 0, "retry.delay_secs must be >= 0")
		require(c.Output.Dir != "", "output.dir is required")
	}

	switch mode {
	case "run":
		checkStore()
		checkPipeline()
	case "store":
		checkStore()
	case "profile":
		require(c.Output.Dir != "", "output.dir is required")
	case "serve":
		checkStore()
		checkPipeline()
		require(c.Server.Port > 0, "server.port must be > 0")
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	if len(errs) > 0 {
		return eris.Errorf("config: %s", strings.Join(errs, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
