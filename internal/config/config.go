package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	DefaultAPIVersion  = "2025-10"
	DefaultClaudeModel = "claude-sonnet-4-5-20250929"
	DefaultOpenAIModel = "gpt-5"
	DefaultGeminiModel = "gemini-2.5-flash"
)

type Config struct {
	Shopify     ShopifyConfig
	AI          AIConfig
	Paths       PathsConfig
	Run         RunConfig
	State       StateConfig
	Mysql       MysqlConfig
	TelegramBot TelegramBotConfig
	Log         LogConfig
}

type ShopifyConfig struct {
	ShopDomain        string
	Token             string
	APIVer            string
	Timeout           time.Duration
	RequestsPerSecond float64
	AllowedHosts      []string
	AllowExternalURLs bool
}

type AIConfig struct {
	Enabled        bool
	Provider       string
	ClaudeAPIKey   string
	ClaudeModel    string
	OpenAIAPIKey   string
	OpenAIModel    string
	GeminiAPIKey   string
	GeminiModel    string
	Timeout        time.Duration
	GuidelineFiles []string
}

type PathsConfig struct {
	InputFile             string
	ProductOutputFile     string
	CollectionsOutputFile string
	LogFile               string
	StateDir              string
	MetricsFile           string
}

type RunConfig struct {
	Mode            string
	ItemDelay       time.Duration
	CollectionDelay time.Duration
	SkipCollections bool
}

type StateConfig struct {
	Backend string
}

type MysqlConfig struct {
	Host     string
	Port     int
	Username string
	Password string
	Database string
}

type TelegramBotConfig struct {
	ChatId string
	Token  string
}

type LogConfig struct {
	Level  string
	Format string
}

const (
	StateBackendFile  = "file"
	StateBackendMysql = "mysql"
)

// Load builds the runtime configuration. Environment variables (including a
// local .env file) take precedence over the settings document.
func Load(settingsPath string) (Config, Settings, error) {
	_ = godotenv.Load()

	store := NewSettingsStore(settingsPath)
	settings, err := store.Load()
	if err != nil {
		return Config{}, nil, err
	}
	cfg, err := FromSource(newSource(settings))
	if err != nil {
		return Config{}, settings, err
	}
	return cfg, settings, nil
}

func FromSource(src Source) (Config, error) {
	var (
		cfg Config
		err error
	)

	cfg.Shopify.ShopDomain = src.stringWithDefault("SHOPIFY_STORE_URL", "")
	cfg.Shopify.Token = src.stringWithDefault("SHOPIFY_ACCESS_TOKEN", "")
	cfg.Shopify.APIVer = src.stringWithDefault("SHOPIFY_API_VERSION", DefaultAPIVersion)
	if cfg.Shopify.Timeout, err = src.durationWithDefault("SHOPIFY_TIMEOUT", 30*time.Second); err != nil {
		return cfg, err
	}
	if cfg.Shopify.RequestsPerSecond, err = src.floatWithDefault("SHOPIFY_REQUESTS_PER_SECOND", 2); err != nil {
		return cfg, err
	}
	cfg.Shopify.AllowedHosts = src.listWithDefault("ALLOWED_URL_HOSTS", []string{"cdn.shopify.com", "shopify.com"})
	if cfg.Shopify.AllowExternalURLs, err = src.boolWithDefault("ALLOW_EXTERNAL_URLS", false); err != nil {
		return cfg, err
	}

	if cfg.AI.Enabled, err = src.boolWithDefault("USE_AI_ENHANCEMENT", false); err != nil {
		return cfg, err
	}
	cfg.AI.Provider = strings.ToLower(src.stringWithDefault("AI_PROVIDER", "claude"))
	cfg.AI.ClaudeAPIKey = src.stringWithDefault("CLAUDE_API_KEY", "")
	cfg.AI.ClaudeModel = src.stringWithDefault("CLAUDE_MODEL", DefaultClaudeModel)
	cfg.AI.OpenAIAPIKey = src.stringWithDefault("OPENAI_API_KEY", "")
	cfg.AI.OpenAIModel = src.stringWithDefault("OPENAI_MODEL", DefaultOpenAIModel)
	cfg.AI.GeminiAPIKey = src.stringWithDefault("GEMINI_API_KEY", "")
	cfg.AI.GeminiModel = src.stringWithDefault("GEMINI_MODEL", DefaultGeminiModel)
	if cfg.AI.Timeout, err = src.durationWithDefault("AI_TIMEOUT", 120*time.Second); err != nil {
		return cfg, err
	}
	cfg.AI.GuidelineFiles = src.listWithDefault("AI_GUIDELINE_FILES", nil)

	cfg.Paths.InputFile = src.stringWithDefault("INPUT_FILE", "")
	cfg.Paths.ProductOutputFile = src.stringWithDefault("PRODUCT_OUTPUT_FILE", "")
	cfg.Paths.CollectionsOutputFile = src.stringWithDefault("COLLECTIONS_OUTPUT_FILE", "")
	cfg.Paths.LogFile = src.stringWithDefault("LOG_FILE", "")
	cfg.Paths.StateDir = src.stringWithDefault("STATE_DIR", ".")
	cfg.Paths.MetricsFile = src.stringWithDefault("METRICS_FILE", "")

	cfg.Run.Mode = src.stringWithDefault("EXECUTION_MODE", "resume")
	if cfg.Run.ItemDelay, err = src.durationWithDefault("ITEM_DELAY", 500*time.Millisecond); err != nil {
		return cfg, err
	}
	if cfg.Run.CollectionDelay, err = src.durationWithDefault("COLLECTION_DELAY", 500*time.Millisecond); err != nil {
		return cfg, err
	}

	cfg.State.Backend = strings.ToLower(src.stringWithDefault("STATE_BACKEND", StateBackendFile))
	cfg.Mysql.Host = src.stringWithDefault("MYSQL_HOST", "")
	if cfg.Mysql.Port, err = src.intWithDefault("MYSQL_PORT", 3306); err != nil {
		return cfg, err
	}
	cfg.Mysql.Username = src.stringWithDefault("MYSQL_USER", "")
	cfg.Mysql.Password = src.stringWithDefault("MYSQL_PASSWORD", "")
	cfg.Mysql.Database = src.stringWithDefault("MYSQL_DATABASE", "")

	cfg.TelegramBot.ChatId = src.stringWithDefault("TELEGRAM_CHAT_ID", "")
	cfg.TelegramBot.Token = src.stringWithDefault("TELEGRAM_BOT_TOKEN", "")

	cfg.Log.Level = src.stringWithDefault("LOG_LEVEL", "info")
	cfg.Log.Format = src.stringWithDefault("LOG_FORMAT", "console")

	return cfg, nil
}

// Validate reports problems that must stop a run before any remote call.
func (c Config) Validate() error {
	var missing []string
	if strings.TrimSpace(c.Shopify.ShopDomain) == "" {
		missing = append(missing, "SHOPIFY_STORE_URL")
	}
	if strings.TrimSpace(c.Shopify.Token) == "" {
		missing = append(missing, "SHOPIFY_ACCESS_TOKEN")
	}
	if c.AI.Enabled {
		switch c.AI.Provider {
		case "claude":
			if c.AI.ClaudeAPIKey == "" {
				missing = append(missing, "CLAUDE_API_KEY")
			}
		case "openai":
			if c.AI.OpenAIAPIKey == "" {
				missing = append(missing, "OPENAI_API_KEY")
			}
		case "gemini":
			if c.AI.GeminiAPIKey == "" {
				missing = append(missing, "GEMINI_API_KEY")
			}
		default:
			return fmt.Errorf("unknown AI_PROVIDER %q", c.AI.Provider)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing required settings: %s", strings.Join(missing, ", "))
	}
	switch c.State.Backend {
	case StateBackendFile, StateBackendMysql:
	default:
		return fmt.Errorf("unknown STATE_BACKEND %q", c.State.Backend)
	}
	return nil
}

func (p PathsConfig) StatePath(name string) string {
	dir := p.StateDir
	if dir == "" {
		dir = "."
	}
	return filepath.Join(dir, name)
}
