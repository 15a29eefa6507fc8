package config

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"ContentFactory/internal/domain"
)

const (
	defaultTimezone   = "Europe/Moscow"
	configPathEnv     = "CONTENT_FACTORY_CONFIG"
	envFileEnv        = "CONTENT_FACTORY_ENV_FILE"
	logLevelEnv       = "LOG_LEVEL"
	databaseDSNEnv    = "DATABASE_DSN"
	httpAddrEnv       = "HTTP_ADDR"
	rendererKeyEnv    = "RENDERER_API_KEY"
	publisherKeyEnv   = "PUBLISHER_API_KEY"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// EnvConfigPath names the variable holding the YAML config path.
const EnvConfigPath = configPathEnv

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Governor      GovernorConfig     `yaml:"governor"`
	Publisher     PublisherConfig    `yaml:"publisher"`
	Renderer      RendererConfig     `yaml:"renderer"`
	Trends        TrendsConfig       `yaml:"trends"`
	Storage       StorageConfig      `yaml:"storage"`
	Health        HealthConfig       `yaml:"health"`
	HTTP          HTTPConfig         `yaml:"http"`
	Audience      AudienceConfig     `yaml:"audience"`
	Production    ProductionConfig   `yaml:"production"`
	Notifications NotificationConfig `yaml:"notifications"`
	Accounts      []AccountConfig    `yaml:"accounts" validate:"dive"`
}

// LoggingConfig controls the slog handler and the optional rotating file.
type LoggingConfig struct {
	Level      string `yaml:"level" validate:"omitempty,oneof=debug info warn warning error"`
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"maxSizeMb" validate:"gte=0"`
	MaxBackups int    `yaml:"maxBackups" validate:"gte=0"`
	MaxAgeDays int    `yaml:"maxAgeDays" validate:"gte=0"`
	Compress   bool   `yaml:"compress"`
}

// SchedulerConfig defines the daily planning and report times.
type SchedulerConfig struct {
	PlanningTime   string         `yaml:"planningTime" validate:"required"`
	ReportTime     string         `yaml:"reportTime" validate:"required"`
	ReplanInterval time.Duration  `yaml:"replanInterval" validate:"gte=0"`
	Timezone       string         `yaml:"timezone"`
	location       *time.Location `yaml:"-"`
}

// Location resolves the scheduler timezone string to a time.Location.
func (s SchedulerConfig) Location() *time.Location {
	if s.location != nil {
		return s.location
	}
	loc, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// GovernorConfig bounds concurrent production.
type GovernorConfig struct {
	MinLimit          int           `yaml:"minLimit" validate:"gte=1"`
	MaxLimit          int           `yaml:"maxLimit" validate:"gte=1"`
	DefaultLimit      int           `yaml:"defaultLimit" validate:"gte=1"`
	RebalanceInterval time.Duration `yaml:"rebalanceInterval" validate:"gt=0"`
	DrainTimeout      time.Duration `yaml:"drainTimeout" validate:"gte=0"`
	AdmitPoll         time.Duration `yaml:"admitPoll" validate:"gt=0"`
}

// PublisherConfig covers dispatching and the HTTP publisher gateway.
type PublisherConfig struct {
	MaxRetryAttempts  int           `yaml:"maxRetryAttempts" validate:"gte=0,lte=10"`
	BaseDelay         time.Duration `yaml:"baseDelay" validate:"gte=0"`
	MaxWait           time.Duration `yaml:"maxWait" validate:"gt=0"`
	RateLimitCalls    int           `yaml:"rateLimitCalls" validate:"gt=0"`
	RateLimitWindow   time.Duration `yaml:"rateLimitWindow" validate:"gt=0"`
	QueueTimeout      time.Duration `yaml:"queueTimeout" validate:"gt=0"`
	AnalyticsInterval time.Duration `yaml:"analyticsInterval" validate:"gte=0"`
	Endpoint          string        `yaml:"endpoint" validate:"omitempty,url"`
	APIKey            string        `yaml:"apiKey"`
	Privacy           string        `yaml:"privacy" validate:"oneof=public private unlisted"`
	Platforms         []string      `yaml:"platforms"`
}

// RendererConfig describes the media renderer service.
type RendererConfig struct {
	Endpoint  string        `yaml:"endpoint" validate:"omitempty,url"`
	APIKey    string        `yaml:"apiKey"`
	OutputDir string        `yaml:"outputDir"`
	Timeout   time.Duration `yaml:"timeout" validate:"gte=0"`
}

// TrendsConfig groups trend sources and the query used against them.
type TrendsConfig struct {
	Enabled    bool              `yaml:"enabled"`
	Sites      []TrendSiteConfig `yaml:"sites" validate:"dive"`
	Categories []string          `yaml:"categories"`
	Platforms  []string          `yaml:"platforms"`
	MinViews   int               `yaml:"minViews" validate:"gte=0"`
	MaxAgeDays int               `yaml:"maxAgeDays" validate:"gte=0"`
}

// TrendSiteConfig describes a single trend site with its scanner strategy.
type TrendSiteConfig struct {
	Name       string            `yaml:"name" validate:"required"`
	Scanner    string            `yaml:"scanner" validate:"required"`
	Categories []CategoryConfig  `yaml:"categories" validate:"dive"`
	Options    map[string]string `yaml:"options"`
}

// CategoryConfig holds the concrete endpoint of one trend category.
type CategoryConfig struct {
	Name string `yaml:"name" validate:"required"`
	URL  string `yaml:"url" validate:"required,url"`
}

// StorageConfig lists every persisted artifact.
type StorageConfig struct {
	DatabaseDSN   string `yaml:"databaseDsn"`
	LedgerPath    string `yaml:"ledgerPath" validate:"required"`
	ResultLogPath string `yaml:"resultLogPath" validate:"required"`
	SchedulePath  string `yaml:"schedulePath" validate:"required"`
	ReportDir     string `yaml:"reportDir" validate:"required"`
}

// HealthConfig sets the sampling cadence.
type HealthConfig struct {
	SampleInterval  time.Duration `yaml:"sampleInterval" validate:"gt=0"`
	CriticalSamples int           `yaml:"criticalSamples" validate:"gte=1"`
}

// HTTPConfig configures the status API. An empty address disables it.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// AudienceConfig feeds the publication time scorer.
type AudienceConfig struct {
	TimezoneShare  map[string]float64 `yaml:"timezoneShare"`
	PreferredHours map[string][]int   `yaml:"preferredHours"`
}

// ProductionConfig holds the per content type default quotas.
type ProductionConfig struct {
	DailyQuotas map[string]int `yaml:"dailyQuotas"`
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

// AccountConfig is one producing/publishing account.
type AccountConfig struct {
	ID          string            `yaml:"id" validate:"required"`
	ContentType string            `yaml:"contentType" validate:"required"`
	DailyQuota  *int              `yaml:"dailyQuota" validate:"omitempty,gte=0"`
	Platforms   []string          `yaml:"platforms" validate:"required,min=1"`
	Timezone    string            `yaml:"timezone"`
	Credentials map[string]string `yaml:"credentials"`
}

// Quota returns the account quota, falling back to the content type default.
func (c Config) Quota(acc AccountConfig) int {
	if acc.DailyQuota != nil {
		return *acc.DailyQuota
	}
	return c.Production.DailyQuotas[acc.ContentType]
}

// Account looks an account up by id.
func (c Config) Account(id string) (AccountConfig, bool) {
	for _, acc := range c.Accounts {
		if acc.ID == id {
			return acc, true
		}
	}
	return AccountConfig{}, false
}

// Load reads .env and YAML configuration (if present) and applies environment overrides.
func Load() Config {
	loadDotEnv()

	cfg := defaultConfig()

	if path := os.Getenv(configPathEnv); path != "" {
		if raw, err := os.ReadFile(path); err != nil {
			log.Printf("config: cannot read %s: %v (falling back to defaults)", path, err)
		} else if merged, err := mergeConfig(cfg, raw); err != nil {
			log.Printf("config: cannot parse %s: %v (falling back to defaults)", path, err)
		} else {
			cfg = merged
		}
	}

	cfg.applyEnvOverrides()
	cfg.bindTimezone()

	return cfg
}

func loadDotEnv() {
	path := os.Getenv(envFileEnv)
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		log.Printf("config: cannot load %s: %v", path, err)
	}
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(databaseDSNEnv); v != "" {
		c.Storage.DatabaseDSN = v
	}

	if v := os.Getenv(httpAddrEnv); v != "" {
		c.HTTP.Addr = v
	}

	if v := os.Getenv(rendererKeyEnv); v != "" {
		c.Renderer.APIKey = v
	}

	if v := os.Getenv(publisherKeyEnv); v != "" {
		c.Publisher.APIKey = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
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
		loc, err = time.LoadLocation(defaultTimezone)
		if err != nil {
			loc = time.UTC
		}
	}
	c.Scheduler.location = loc
}

// mergeConfig decodes raw YAML over base: scalars present in the file win,
// lists replace the defaults, maps are merged key by key.
func mergeConfig(base Config, raw []byte) (Config, error) {
	merged := base
	merged.Audience.TimezoneShare = cloneMap(base.Audience.TimezoneShare)
	merged.Audience.PreferredHours = cloneMap(base.Audience.PreferredHours)
	merged.Production.DailyQuotas = cloneMap(base.Production.DailyQuotas)

	if err := yaml.Unmarshal(raw, &merged); err != nil {
		return base, err
	}
	return merged, nil
}

func cloneMap[V any](in map[string]V) map[string]V {
	out := make(map[string]V, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and cross-field rules.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			first := verrs[0]
			return &domain.ConfigurationError{
				Field: first.Namespace(),
				Msg:   fmt.Sprintf("failed %q constraint (value %v)", first.Tag(), first.Value()),
			}
		}
		return &domain.ConfigurationError{Msg: err.Error()}
	}

	g := c.Governor
	if g.MinLimit > g.MaxLimit || g.DefaultLimit < g.MinLimit || g.DefaultLimit > g.MaxLimit {
		return &domain.ConfigurationError{
			Field: "governor",
			Msg:   fmt.Sprintf("need minLimit <= defaultLimit <= maxLimit, got %d/%d/%d", g.MinLimit, g.DefaultLimit, g.MaxLimit),
		}
	}

	for _, field := range []struct{ name, value string }{
		{"scheduler.planningTime", c.Scheduler.PlanningTime},
		{"scheduler.reportTime", c.Scheduler.ReportTime},
	} {
		if _, _, err := ParseClock(field.value); err != nil {
			return &domain.ConfigurationError{Field: field.name, Msg: err.Error()}
		}
	}

	for ct := range c.Production.DailyQuotas {
		if _, err := domain.ParseContentType(ct); err != nil {
			return err
		}
	}
	for ct := range c.Audience.PreferredHours {
		if _, err := domain.ParseContentType(ct); err != nil {
			return err
		}
	}

	seen := map[string]struct{}{}
	for _, acc := range c.Accounts {
		if _, err := domain.ParseContentType(acc.ContentType); err != nil {
			return &domain.ConfigurationError{Field: "accounts." + acc.ID, Msg: err.Error()}
		}
		if _, dup := seen[acc.ID]; dup {
			return &domain.ConfigurationError{Field: "accounts", Msg: "duplicate account id " + acc.ID}
		}
		seen[acc.ID] = struct{}{}
		if acc.Timezone != "" {
			if _, err := time.LoadLocation(acc.Timezone); err != nil {
				return &domain.ConfigurationError{Field: "accounts." + acc.ID + ".timezone", Msg: err.Error()}
			}
		}
	}

	return nil
}

// ParseClock parses "HH:MM".
func ParseClock(value string) (hour, minute int, err error) {
	h, m, ok := strings.Cut(strings.TrimSpace(value), ":")
	if !ok {
		return 0, 0, fmt.Errorf("time %q is not HH:MM", value)
	}
	hour, err = strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return 0, 0, fmt.Errorf("time %q has invalid hour", value)
	}
	minute, err = strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return 0, 0, fmt.Errorf("time %q has invalid minute", value)
	}
	return hour, minute, nil
}

// Default returns the built-in configuration without reading files or env.
func Default() Config { return defaultConfig() }

func defaultConfig() Config {
	tz, err := time.LoadLocation(defaultTimezone)
	if err != nil {
		tz = time.UTC
	}
	return Config{
		Logging: LoggingConfig{Level: "info", MaxSizeMB: 100, MaxBackups: 5, MaxAgeDays: 14},
		Scheduler: SchedulerConfig{
			PlanningTime:   "06:00",
			ReportTime:     "23:30",
			ReplanInterval: time.Hour,
			Timezone:       defaultTimezone,
			location:       tz,
		},
		Governor: GovernorConfig{
			MinLimit:          2,
			MaxLimit:          8,
			DefaultLimit:      5,
			RebalanceInterval: 30 * time.Minute,
			DrainTimeout:      30 * time.Second,
			AdmitPoll:         time.Second,
		},
		Publisher: PublisherConfig{
			MaxRetryAttempts:  3,
			BaseDelay:         5 * time.Second,
			MaxWait:           time.Hour,
			RateLimitCalls:    100,
			RateLimitWindow:   time.Hour,
			QueueTimeout:      30 * time.Second,
			AnalyticsInterval: 6 * time.Hour,
			Privacy:           "public",
			Platforms:         []string{"youtube", "instagram", "tiktok"},
		},
		Renderer: RendererConfig{OutputDir: "generated_content", Timeout: 10 * time.Minute},
		Trends: TrendsConfig{
			Categories: []string{"motivation", "facts", "money"},
			Platforms:  []string{"youtube", "instagram"},
			MinViews:   10000,
			MaxAgeDays: 7,
		},
		Storage: StorageConfig{
			LedgerPath:    "data/ledger.db",
			ResultLogPath: "data/publications.jsonl",
			SchedulePath:  "config/schedules.yaml",
			ReportDir:     "data/analytics",
		},
		Health: HealthConfig{SampleInterval: time.Minute, CriticalSamples: 3},
		HTTP:   HTTPConfig{Addr: ":8080"},
		Audience: AudienceConfig{
			TimezoneShare: map[string]float64{
				"Europe/Moscow": 0.45,
				"Europe/Kiev":   0.25,
				"Asia/Almaty":   0.15,
				"Europe/Minsk":  0.15,
			},
			PreferredHours: map[string][]int{
				"ai_video":    {12, 18, 21},
				"trend_short": {15, 18, 19, 22},
				"movie_clip":  {19, 20, 21, 22},
			},
		},
		Production: ProductionConfig{
			DailyQuotas: map[string]int{"ai_video": 10, "trend_short": 15, "movie_clip": 8},
		},
	}
}
