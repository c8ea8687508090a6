package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"
)

const (
	defaultTimezone = "UTC"
	defaultCron     = "0 3 * * 0"

	configPathEnv     = "PERSONA_PIPELINE_CONFIG"
	databaseURLEnv    = "DATABASE_URL"
	databaseDriverEnv = "DATABASE_DRIVER"
	youtubeDLURLEnv   = "YOUTUBEDL_URL"
	apifyURLEnv       = "APIFY_URL"
	whisperURLEnv     = "WHISPERFLOW_GPU_URL"
	ollamaURLEnv      = "OLLAMA_URL"
	llmModelEnv       = "DEFAULT_LLM_MODEL"
	llmAPIKeyEnv      = "LLM_API_KEY"
	maxVideosEnv      = "MAX_VIDEOS_DEFAULT"
	refreshCronEnv    = "REFRESH_CRON"
	refreshTZEnv      = "REFRESH_TIMEZONE"
	apiKeyEnv         = "PERSONA_API_KEY"
	apiBindEnv        = "API_BIND"
	runGuardEnv       = "RUN_GUARD"
	redisAddrEnv      = "REDIS_ADDR"
	dataDirEnv        = "DATA_DIR"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
	logLevelEnv       = "LOG_LEVEL"
)

// Run guard kinds.
const (
	GuardMemory = "memory"
	GuardFile   = "file"
	GuardRedis  = "redis"
)

// Config holds high-level settings required across the application.
type Config struct {
	Database      DatabaseConfig     `yaml:"database"`
	Services      ServicesConfig     `yaml:"services"`
	LLM           LLMConfig          `yaml:"llm"`
	Pipeline      PipelineConfig     `yaml:"pipeline"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	API           APIConfig          `yaml:"api"`
	Guard         GuardConfig        `yaml:"guard"`
	Notifications NotificationConfig `yaml:"notifications"`
	LogLevel      string             `yaml:"logLevel"`
}

// DatabaseConfig selects the driver and connection string.
type DatabaseConfig struct {
	Driver string `yaml:"driver"`
	URL    string `yaml:"url"`
}

// ServicesConfig points at the acquisition and transcription backends.
type ServicesConfig struct {
	YouTubeDLURL       string        `yaml:"youtubedlUrl"`
	ApifyURL           string        `yaml:"apifyUrl"`
	ApifyAPIKey        string        `yaml:"apifyApiKey"`
	WhisperURL         string        `yaml:"whisperUrl"`
	ListTimeout        time.Duration `yaml:"listTimeout"`
	AudioTimeout       time.Duration `yaml:"audioTimeout"`
	TranscribeTimeout  time.Duration `yaml:"transcribeTimeout"`
	DisablePageScraper bool          `yaml:"disablePageScraper"`
}

// LLMConfig defines how to contact the OpenAI-compatible endpoint.
type LLMConfig struct {
	BaseURL string        `yaml:"baseUrl"`
	Model   string        `yaml:"model"`
	APIKey  string        `yaml:"apiKey"`
	Timeout time.Duration `yaml:"timeout"`
}

// PipelineConfig tunes acquisition.
type PipelineConfig struct {
	MaxVideosDefault int    `yaml:"maxVideosDefault"`
	DataDir          string `yaml:"dataDir"`
	AudioDir         string `yaml:"audioDir"`
}

// SchedulerConfig defines when refresh jobs fire.
type SchedulerConfig struct {
	CronExpression string         `yaml:"cronExpression"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, _ := time.LoadLocation(defaultTimezone)
	return loc
}

// APIConfig configures the HTTP trigger surface.
type APIConfig struct {
	Bind   string `yaml:"bind"`
	APIKey string `yaml:"apiKey"`
}

// GuardConfig selects the run guard implementation.
type GuardConfig struct {
	Kind          string        `yaml:"kind"`
	RedisAddr     string        `yaml:"redisAddr"`
	RedisPassword string        `yaml:"redisPassword"`
	RedisDB       int           `yaml:"redisDb"`
	TTL           time.Duration `yaml:"ttl"`
}

// NotificationConfig encapsulates outbound channels (Telegram, etc.).
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
}

// Enabled reports whether both token and chat are set.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.ChatID != ""
}

// LockDir holds run guard and daemon lock files.
func (c Config) LockDir() string {
	return filepath.Join(c.Pipeline.DataDir, "locks")
}

// Load reads .env, then YAML configuration (if present), then applies
// environment overrides.
func Load() Config {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot read .env: %v", err)
	}

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else {
			var fileCfg Config
			if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
				log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
			} else {
				cfg = mergeConfig(cfg, fileCfg)
			}
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()
	if cfg.Pipeline.AudioDir == "" {
		cfg.Pipeline.AudioDir = filepath.Join(cfg.Pipeline.DataDir, "audio")
	}

	return cfg
}

// Validate reports settings that would make the service misbehave.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Database.URL) == "" {
		errs = append(errs, fmt.Errorf("%s is required", databaseURLEnv))
	}
	switch strings.ToLower(c.Database.Driver) {
	case "postgres", "postgresql", "pq", "sqlite", "sqlite3":
	default:
		errs = append(errs, fmt.Errorf("unsupported database driver %q", c.Database.Driver))
	}
	if _, err := cron.ParseStandard(c.Scheduler.CronExpression); err != nil {
		errs = append(errs, fmt.Errorf("invalid refresh cron %q: %w", c.Scheduler.CronExpression, err))
	}
	switch c.Guard.Kind {
	case GuardMemory, GuardFile:
	case GuardRedis:
		if c.Guard.RedisAddr == "" {
			errs = append(errs, fmt.Errorf("%s is required for the redis run guard", redisAddrEnv))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown run guard %q", c.Guard.Kind))
	}
	if c.Pipeline.MaxVideosDefault <= 0 {
		errs = append(errs, fmt.Errorf("max videos default must be positive, got %d", c.Pipeline.MaxVideosDefault))
	}
	return errors.Join(errs...)
}

func (c *Config) applyEnvOverrides() {
	setString(&c.Database.URL, databaseURLEnv)
	setString(&c.Database.Driver, databaseDriverEnv)
	setString(&c.Services.YouTubeDLURL, youtubeDLURLEnv)
	setString(&c.Services.ApifyURL, apifyURLEnv)
	setString(&c.Services.WhisperURL, whisperURLEnv)
	setString(&c.LLM.BaseURL, ollamaURLEnv)
	setString(&c.LLM.Model, llmModelEnv)
	setString(&c.LLM.APIKey, llmAPIKeyEnv)
	setString(&c.Scheduler.CronExpression, refreshCronEnv)
	setString(&c.Scheduler.Timezone, refreshTZEnv)
	setString(&c.API.APIKey, apiKeyEnv)
	setString(&c.API.Bind, apiBindEnv)
	setString(&c.Guard.Kind, runGuardEnv)
	setString(&c.Guard.RedisAddr, redisAddrEnv)
	setString(&c.Pipeline.DataDir, dataDirEnv)
	setString(&c.Notifications.Telegram.BotToken, telegramTokenEnv)
	setString(&c.Notifications.Telegram.ChatID, telegramChatIDEnv)
	setString(&c.LogLevel, logLevelEnv)

	if v := os.Getenv(maxVideosEnv); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			log.Printf("config: ignoring %s=%q: %v", maxVideosEnv, v, err)
		} else {
			c.Pipeline.MaxVideosDefault = n
		}
	}
}

func setString(dst *string, env string) {
	if v := os.Getenv(env); v != "" {
		*dst = v
	}
}

func (c *Config) bindTimezone() {
	tz := c.Scheduler.Timezone
	if tz == "" {
		tz = defaultTimezone
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		log.Printf("config: unknown timezone %s, reverting to %s", tz, defaultTimezone)
		loc, _ = time.LoadLocation(defaultTimezone)
	}
	c.Scheduler.location = loc
}

func mergeConfig(base, override Config) Config {
	mergeString(&base.Database.Driver, override.Database.Driver)
	mergeString(&base.Database.URL, override.Database.URL)

	mergeString(&base.Services.YouTubeDLURL, override.Services.YouTubeDLURL)
	mergeString(&base.Services.ApifyURL, override.Services.ApifyURL)
	mergeString(&base.Services.ApifyAPIKey, override.Services.ApifyAPIKey)
	mergeString(&base.Services.WhisperURL, override.Services.WhisperURL)
	mergeDuration(&base.Services.ListTimeout, override.Services.ListTimeout)
	mergeDuration(&base.Services.AudioTimeout, override.Services.AudioTimeout)
	mergeDuration(&base.Services.TranscribeTimeout, override.Services.TranscribeTimeout)
	if override.Services.DisablePageScraper {
		base.Services.DisablePageScraper = true
	}

	mergeString(&base.LLM.BaseURL, override.LLM.BaseURL)
	mergeString(&base.LLM.Model, override.LLM.Model)
	mergeString(&base.LLM.APIKey, override.LLM.APIKey)
	mergeDuration(&base.LLM.Timeout, override.LLM.Timeout)

	if override.Pipeline.MaxVideosDefault > 0 {
		base.Pipeline.MaxVideosDefault = override.Pipeline.MaxVideosDefault
	}
	mergeString(&base.Pipeline.DataDir, override.Pipeline.DataDir)
	mergeString(&base.Pipeline.AudioDir, override.Pipeline.AudioDir)

	mergeString(&base.Scheduler.CronExpression, override.Scheduler.CronExpression)
	mergeString(&base.Scheduler.Timezone, override.Scheduler.Timezone)

	mergeString(&base.API.Bind, override.API.Bind)
	mergeString(&base.API.APIKey, override.API.APIKey)

	mergeString(&base.Guard.Kind, override.Guard.Kind)
	mergeString(&base.Guard.RedisAddr, override.Guard.RedisAddr)
	mergeString(&base.Guard.RedisPassword, override.Guard.RedisPassword)
	if override.Guard.RedisDB != 0 {
		base.Guard.RedisDB = override.Guard.RedisDB
	}
	mergeDuration(&base.Guard.TTL, override.Guard.TTL)

	mergeString(&base.Notifications.Telegram.BotToken, override.Notifications.Telegram.BotToken)
	mergeString(&base.Notifications.Telegram.ChatID, override.Notifications.Telegram.ChatID)

	mergeString(&base.LogLevel, override.LogLevel)

	return base
}

func mergeString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func mergeDuration(dst *time.Duration, v time.Duration) {
	if v > 0 {
		*dst = v
	}
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Database: DatabaseConfig{Driver: "postgres"},
		Services: ServicesConfig{
			YouTubeDLURL:      "http://raiser-youtubedl:8000",
			ApifyURL:          "http://raiser-apify:8400",
			WhisperURL:        "http://10.25.10.60:8765",
			ListTimeout:       2 * time.Minute,
			AudioTimeout:      10 * time.Minute,
			TranscribeTimeout: 30 * time.Minute,
		},
		LLM: LLMConfig{
			BaseURL: "http://10.25.10.60:11434",
			Model:   "llama3.2",
			Timeout: 10 * time.Minute,
		},
		Pipeline:  PipelineConfig{MaxVideosDefault: 50, DataDir: "data"},
		Scheduler: SchedulerConfig{CronExpression: defaultCron, Timezone: defaultTimezone, location: tz},
		API:       APIConfig{Bind: ":8000"},
		Guard:     GuardConfig{Kind: GuardFile, TTL: 6 * time.Hour},
		LogLevel:  "info",
	}
}
