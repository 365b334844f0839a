package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

type Config struct {
	App     AppConfig     `mapstructure:"app" yaml:"app" json:"app"`
	Log     LogConfig     `mapstructure:"log" yaml:"log" json:"log"`
	Mailbox MailboxConfig `mapstructure:"mailbox" yaml:"mailbox" json:"mailbox"`
	Sync    SyncConfig    `mapstructure:"sync" yaml:"sync" json:"sync"`
}

type AppConfig struct {
	Port    int    `mapstructure:"port" yaml:"port" json:"port"`
	DataDir string `mapstructure:"data_dir" yaml:"data_dir" json:"data_dir"`
}

type LogConfig struct {
	Level string `mapstructure:"level" yaml:"level" json:"level"`
}

type MailboxConfig struct {
	// Provider is "gmail" or "imap".
	Provider          string      `mapstructure:"provider" yaml:"provider" json:"provider"`
	Gmail             GmailConfig `mapstructure:"gmail" yaml:"gmail" json:"gmail"`
	IMAP              IMAPConfig  `mapstructure:"imap" yaml:"imap" json:"imap"`
	SearchQuery       string      `mapstructure:"search_query" yaml:"search_query" json:"search_query"`
	LookbackDays      int         `mapstructure:"lookback_days" yaml:"lookback_days" json:"lookback_days"`
	RequestsPerSecond float64     `mapstructure:"requests_per_second" yaml:"requests_per_second" json:"requests_per_second"`
	Burst             int         `mapstructure:"burst" yaml:"burst" json:"burst"`
}

type GmailConfig struct {
	ClientID     string `mapstructure:"client_id" yaml:"client_id" json:"client_id"`
	ClientSecret string `mapstructure:"client_secret" yaml:"client_secret" json:"-"`
	RedirectURL  string `mapstructure:"redirect_url" yaml:"redirect_url" json:"redirect_url"`
}

// IMAPConfig carries no password; it lives in the OS keychain.
type IMAPConfig struct {
	Host     string `mapstructure:"host" yaml:"host" json:"host"`
	Port     int    `mapstructure:"port" yaml:"port" json:"port"`
	Username string `mapstructure:"username" yaml:"username" json:"username"`
	Folder   string `mapstructure:"folder" yaml:"folder" json:"folder"`
}

type SyncConfig struct {
	IntervalMinutes     int     `mapstructure:"interval_minutes" yaml:"interval_minutes" json:"interval_minutes"`
	AutoImportThreshold float64 `mapstructure:"auto_import_threshold" yaml:"auto_import_threshold" json:"auto_import_threshold"`
}

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

func Default() Config {
	return Config{
		App: AppConfig{Port: 38471},
		Log: LogConfig{Level: "info"},
		Mailbox: MailboxConfig{
			Provider:          ProviderGmail,
			Gmail:             GmailConfig{RedirectURL: "http://127.0.0.1:38471/api/gmail/callback"},
			IMAP:              IMAPConfig{Port: 993, Folder: "INBOX"},
			LookbackDays:      90,
			RequestsPerSecond: 5,
			Burst:             10,
		},
		Sync: SyncConfig{IntervalMinutes: 30, AutoImportThreshold: 0.6},
	}
}

func setDefaults(v *viper.Viper) {
	d := Default()
	v.SetDefault("app.port", d.App.Port)
	v.SetDefault("app.data_dir", d.App.DataDir)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("mailbox.provider", d.Mailbox.Provider)
	v.SetDefault("mailbox.gmail.client_id", "")
	v.SetDefault("mailbox.gmail.client_secret", "")
	v.SetDefault("mailbox.gmail.redirect_url", d.Mailbox.Gmail.RedirectURL)
	v.SetDefault("mailbox.imap.host", "")
	v.SetDefault("mailbox.imap.port", d.Mailbox.IMAP.Port)
	v.SetDefault("mailbox.imap.username", "")
	v.SetDefault("mailbox.imap.folder", d.Mailbox.IMAP.Folder)
	v.SetDefault("mailbox.search_query", "")
	v.SetDefault("mailbox.lookback_days", d.Mailbox.LookbackDays)
	v.SetDefault("mailbox.requests_per_second", d.Mailbox.RequestsPerSecond)
	v.SetDefault("mailbox.burst", d.Mailbox.Burst)
	v.SetDefault("sync.interval_minutes", d.Sync.IntervalMinutes)
	v.SetDefault("sync.auto_import_threshold", d.Sync.AutoImportThreshold)
}

// Load reads path over the defaults. A missing file yields the defaults.
// Any key can be overridden from the environment, e.g. JOBTRACK_APP_PORT.
func Load(path string) (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix("JOBTRACK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) && !errors.Is(err, os.ErrNotExist) {
				return Config{}, fmt.Errorf("read config %s: %w", path, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}
