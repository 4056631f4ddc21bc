package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"CreatorWatch/internal/domain"
)

const (
	defaultTimezone   = "UTC"
	defaultConfigPath = "creatorwatch.yaml"
	configPathEnv     = "CREATORWATCH_CONFIG"
	ledgerDSNEnv      = "LEDGER_DSN"
	logLevelEnv       = "LOG_LEVEL"
	telegramTokenEnv  = "TELEGRAM_BOT_TOKEN"
	telegramChatIDEnv = "TELEGRAM_CHAT_ID"
)

// ErrInvalid marks configuration that cannot start the service.
var ErrInvalid = errors.New("invalid configuration")

// Config holds high-level settings required across the application.
type Config struct {
	Logging       LoggingConfig      `yaml:"logging"`
	Scheduler     SchedulerConfig    `yaml:"scheduler"`
	Ledger        LedgerConfig       `yaml:"ledger"`
	Downloads     DownloadsConfig    `yaml:"downloads"`
	Source        SourceConfig       `yaml:"source"`
	Delivery      DeliveryConfig     `yaml:"delivery"`
	Notifications NotificationConfig `yaml:"notifications"`
	Topics        map[string]int     `yaml:"topics"`
	Accounts      []AccountConfig    `yaml:"accounts"`
}

// LoggingConfig selects slog level and handler.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SchedulerConfig defines how long to wait between cycles. A cron expression,
// when set, wins over the fixed interval.
type SchedulerConfig struct {
	Interval       string         `yaml:"interval"`
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

// IntervalDuration parses Interval; Validate guarantees it succeeds.
func (s SchedulerConfig) IntervalDuration() time.Duration {
	d, _ := time.ParseDuration(s.Interval)
	return d
}

// LedgerConfig picks the dedup ledger backend.
type LedgerConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
	DSN    string `yaml:"dsn"`
}

// DownloadsConfig controls where artifacts land.
type DownloadsConfig struct {
	Folder    string `yaml:"folder"`
	Extension string `yaml:"extension"`
}

// SourceConfig groups settings for reaching creator pages.
type SourceConfig struct {
	RequestTimeout  string `yaml:"requestTimeout"`
	DownloadTimeout string `yaml:"downloadTimeout"`
	UserAgent       string `yaml:"userAgent"`
	CookiesFile     string `yaml:"cookiesFile"`
	YtDlpPath       string `yaml:"ytdlpPath"`
}

// RequestTimeoutDuration parses RequestTimeout; Validate guarantees it succeeds.
func (s SourceConfig) RequestTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.RequestTimeout)
	return d
}

// DownloadTimeoutDuration parses DownloadTimeout; Validate guarantees it succeeds.
func (s SourceConfig) DownloadTimeoutDuration() time.Duration {
	d, _ := time.ParseDuration(s.DownloadTimeout)
	return d
}

// DeliveryConfig tunes the sink and the recording policy.
type DeliveryConfig struct {
	Policy        string  `yaml:"policy"`
	SendAs        string  `yaml:"sendAs"`
	RatePerSecond float64 `yaml:"ratePerSecond"`
	RetryMax      int     `yaml:"retryMax"`
}

// NotificationConfig encapsulates outbound channels.
type NotificationConfig struct {
	Telegram TelegramConfig `yaml:"telegram"`
}

// TelegramConfig wires all data required to send messages.
type TelegramConfig struct {
	BotToken string `yaml:"botToken"`
	ChatID   string `yaml:"chatId"`
	APIURL   string `yaml:"apiUrl"`
}

// ChatIDValue parses ChatID; Validate guarantees it succeeds.
func (t TelegramConfig) ChatIDValue() int64 {
	id, _ := strconv.ParseInt(strings.TrimSpace(t.ChatID), 10, 64)
	return id
}

// AccountConfig describes one monitored creator.
type AccountConfig struct {
	Handle     string   `yaml:"handle"`
	Scanner    string   `yaml:"scanner"`
	Categories []string `yaml:"categories"`
}

// DomainAccounts converts the account list into domain values.
func (c Config) DomainAccounts() []domain.Account {
	out := make([]domain.Account, 0, len(c.Accounts))
	for _, a := range c.Accounts {
		out = append(out, domain.Account{
			Handle:     strings.TrimSpace(a.Handle),
			Scanner:    strings.TrimSpace(a.Scanner),
			Categories: append([]string(nil), a.Categories...),
		})
	}
	return out
}

// Load reads the YAML file named by CREATORWATCH_CONFIG (or creatorwatch.yaml
// when unset), applies environment overrides and validates the result.
// A missing default file is tolerated; an explicitly named one is not.
func Load() (Config, error) {
	path, explicit := os.LookupEnv(configPathEnv)
	if !explicit || strings.TrimSpace(path) == "" {
		path = defaultConfigPath
		explicit = false
	}

	cfg := defaultConfig()
	raw, err := os.ReadFile(path)
	switch {
	case err == nil:
		var fileCfg Config
		if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
			return Config{}, fmt.Errorf("%w: parse %s: %v", ErrInvalid, path, err)
		}
		cfg = mergeConfig(cfg, fileCfg)
	case explicit || !errors.Is(err, os.ErrNotExist):
		return Config{}, fmt.Errorf("%w: read %s: %v", ErrInvalid, path, err)
	}

	cfg.applyEnvOverrides()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Parse builds a configuration from YAML bytes without consulting the environment.
func Parse(raw []byte) (Config, error) {
	var fileCfg Config
	if err := yaml.Unmarshal(raw, &fileCfg); err != nil {
		return Config{}, fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	cfg := mergeConfig(defaultConfig(), fileCfg)
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate rejects settings the service cannot run with and binds the timezone.
func (c *Config) Validate() error {
	var problems []string
	add := func(format string, args ...any) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}

	if strings.TrimSpace(c.Notifications.Telegram.BotToken) == "" {
		add("notifications.telegram.botToken is required")
	}
	if _, err := strconv.ParseInt(strings.TrimSpace(c.Notifications.Telegram.ChatID), 10, 64); err != nil {
		add("notifications.telegram.chatId %q is not numeric", c.Notifications.Telegram.ChatID)
	}

	if len(c.Accounts) == 0 {
		add("accounts: at least one account is required")
	}
	for i, a := range c.Accounts {
		if strings.TrimSpace(a.Handle) == "" {
			add("accounts[%d].handle is empty", i)
		}
	}

	if !domain.LedgerPolicy(c.Delivery.Policy).Valid() {
		add("delivery.policy %q is unknown", c.Delivery.Policy)
	}
	switch c.Delivery.SendAs {
	case "document", "video":
	default:
		add("delivery.sendAs %q is unknown", c.Delivery.SendAs)
	}
	if c.Delivery.RatePerSecond <= 0 {
		add("delivery.ratePerSecond must be positive")
	}
	if c.Delivery.RetryMax < 0 {
		add("delivery.retryMax must not be negative")
	}

	switch strings.ToLower(c.Ledger.Driver) {
	case "file", "sqlite", "sqlite3":
		if strings.TrimSpace(c.Ledger.Path) == "" {
			add("ledger.path is required for driver %s", c.Ledger.Driver)
		}
	case "postgres", "postgresql":
		if strings.TrimSpace(c.Ledger.DSN) == "" {
			add("ledger.dsn is required for driver %s", c.Ledger.Driver)
		}
	default:
		add("ledger.driver %q is unknown", c.Ledger.Driver)
	}

	for name, value := range map[string]string{
		"scheduler.interval":     c.Scheduler.Interval,
		"source.requestTimeout":  c.Source.RequestTimeout,
		"source.downloadTimeout": c.Source.DownloadTimeout,
	} {
		if d, err := time.ParseDuration(value); err != nil || d <= 0 {
			add("%s %q is not a positive duration", name, value)
		}
	}

	loc, err := time.LoadLocation(c.Scheduler.Timezone)
	if err != nil {
		add("scheduler.timezone %q: %v", c.Scheduler.Timezone, err)
	} else {
		c.Scheduler.location = loc
	}
	if expr := strings.TrimSpace(c.Scheduler.CronExpression); expr != "" {
		parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
		if _, err := parser.Parse(expr); err != nil {
			add("scheduler.cronExpression %q: %v", expr, err)
		}
	}

	if strings.TrimSpace(c.Downloads.Folder) == "" {
		add("downloads.folder is required")
	}

	if len(problems) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv(ledgerDSNEnv); v != "" {
		c.Ledger.DSN = v
	}

	if v := os.Getenv(logLevelEnv); v != "" {
		c.Logging.Level = v
	}

	if v := os.Getenv(telegramTokenEnv); v != "" {
		c.Notifications.Telegram.BotToken = v
	}

	if v := os.Getenv(telegramChatIDEnv); v != "" {
		c.Notifications.Telegram.ChatID = v
	}
}

func mergeConfig(base, override Config) Config {
	if override.Logging.Level != "" {
		base.Logging.Level = override.Logging.Level
	}
	if override.Logging.Format != "" {
		base.Logging.Format = override.Logging.Format
	}

	if override.Scheduler.Interval != "" {
		base.Scheduler.Interval = override.Scheduler.Interval
	}
	if override.Scheduler.CronExpression != "" {
		base.Scheduler.CronExpression = override.Scheduler.CronExpression
	}
	if override.Scheduler.Timezone != "" {
		base.Scheduler.Timezone = override.Scheduler.Timezone
	}

	if override.Ledger.Driver != "" {
		base.Ledger.Driver = override.Ledger.Driver
	}
	if override.Ledger.Path != "" {
		base.Ledger.Path = override.Ledger.Path
	}
	if override.Ledger.DSN != "" {
		base.Ledger.DSN = override.Ledger.DSN
	}

	if override.Downloads.Folder != "" {
		base.Downloads.Folder = override.Downloads.Folder
	}
	if override.Downloads.Extension != "" {
		base.Downloads.Extension = override.Downloads.Extension
	}

	if override.Source.RequestTimeout != "" {
		base.Source.RequestTimeout = override.Source.RequestTimeout
	}
	if override.Source.DownloadTimeout != "" {
		base.Source.DownloadTimeout = override.Source.DownloadTimeout
	}
	if override.Source.UserAgent != "" {
		base.Source.UserAgent = override.Source.UserAgent
	}
	if override.Source.CookiesFile != "" {
		base.Source.CookiesFile = override.Source.CookiesFile
	}
	if override.Source.YtDlpPath != "" {
		base.Source.YtDlpPath = override.Source.YtDlpPath
	}

	if override.Delivery.Policy != "" {
		base.Delivery.Policy = override.Delivery.Policy
	}
	if override.Delivery.SendAs != "" {
		base.Delivery.SendAs = override.Delivery.SendAs
	}
	if override.Delivery.RatePerSecond != 0 {
		base.Delivery.RatePerSecond = override.Delivery.RatePerSecond
	}
	if override.Delivery.RetryMax != 0 {
		base.Delivery.RetryMax = override.Delivery.RetryMax
	}

	if override.Notifications.Telegram.BotToken != "" {
		base.Notifications.Telegram.BotToken = override.Notifications.Telegram.BotToken
	}
	if override.Notifications.Telegram.ChatID != "" {
		base.Notifications.Telegram.ChatID = override.Notifications.Telegram.ChatID
	}
	if override.Notifications.Telegram.APIURL != "" {
		base.Notifications.Telegram.APIURL = override.Notifications.Telegram.APIURL
	}

	if len(override.Topics) > 0 {
		base.Topics = override.Topics
	}

	if len(override.Accounts) > 0 {
		base.Accounts = override.Accounts
	}

	return base
}

func defaultConfig() Config {
	tz, _ := time.LoadLocation(defaultTimezone)
	return Config{
		Logging:   LoggingConfig{Level: "info", Format: "text"},
		Scheduler: SchedulerConfig{Interval: "600s", Timezone: defaultTimezone, location: tz},
		Ledger:    LedgerConfig{Driver: "file", Path: "downloaded_videos.json"},
		Downloads: DownloadsConfig{Folder: "Downloaded Videos", Extension: "mp4"},
		Source: SourceConfig{
			RequestTimeout:  "30s",
			DownloadTimeout: "10m",
			UserAgent:       "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0 Safari/537.36",
			YtDlpPath:       "yt-dlp",
		},
		Delivery: DeliveryConfig{
			Policy:        string(domain.PolicyAlways),
			SendAs:        "document",
			RatePerSecond: 1,
			RetryMax:      3,
		},
		Topics: map[string]int{},
	}
}
