// This file defines the configuration structure for the application.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/Masterminds/semver/v3"
	"github.com/fsnotify/fsnotify"
	"github.com/joho/godotenv"
	// use Viper for loading the config.yml file.
	"github.com/spf13/viper"
)

// Config holds all configuration settings for the application.
// It maps directly to the structure of config.yml.
type Config struct {
	Port int `mapstructure:"port"`
	App  struct {
		Name    string `mapstructure:"name"`
		Version string `mapstructure:"version"`
	} `mapstructure:"app"`
	Log struct {
		Level string `mapstructure:"level"`
	} `mapstructure:"log"`
	API struct {
		BaseURL string        `mapstructure:"base_url"`
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"api"`
	Hinting struct {
		UpstreamURL string        `mapstructure:"upstream_url"`
		Debounce    time.Duration `mapstructure:"debounce"`
		StaleTime   time.Duration `mapstructure:"stale_time"`
		GCTime      time.Duration `mapstructure:"gc_time"`
	} `mapstructure:"hinting"`
	Polling struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"polling"`
	Cache struct {
		Size     int           `mapstructure:"size"`
		GCTime   time.Duration `mapstructure:"gc_time"`
		RedisURL string        `mapstructure:"redis_url"`
	} `mapstructure:"cache"`
	Tracker struct {
		TTL           time.Duration `mapstructure:"ttl"`
		IdleTimeout   time.Duration `mapstructure:"idle_timeout"`
		SweepInterval int           `mapstructure:"sweep_interval"`
	} `mapstructure:"tracker"`
	Upload struct {
		FileSizeLimitKB int64 `mapstructure:"file_size_limit_kb"`
	} `mapstructure:"upload"`
	Viewer struct {
		Background string `mapstructure:"background"`
		ShowUI     bool   `mapstructure:"show_ui"`
	} `mapstructure:"viewer"`
}

// UploadLimitBytes is the largest structure file accepted from a browser.
func (c *Config) UploadLimitBytes() int64 {
	return c.Upload.FileSizeLimitKB * 1024
}

// Default returns a Config populated with the built-in defaults only.
// Tests use it to avoid touching the working directory.
func Default() *Config {
	v := viper.New()
	setDefaults(v)
	var cfg Config
	// Unmarshal of plain defaults cannot fail.
	_ = v.Unmarshal(&cfg)
	return &cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("port", 3000)
	v.SetDefault("app.name", "PROPTIMus")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("log.level", "info")
	v.SetDefault("api.base_url", "http://localhost:5000")
	v.SetDefault("api.timeout", 30*time.Second)
	v.SetDefault("hinting.upstream_url", "https://dev.af2.alphafind.dyn.cloud.e-infra.cz")
	v.SetDefault("hinting.debounce", 300*time.Millisecond)
	v.SetDefault("hinting.stale_time", 5*time.Minute)
	v.SetDefault("hinting.gc_time", 10*time.Minute)
	v.SetDefault("polling.interval", 2*time.Second)
	v.SetDefault("cache.size", 512)
	v.SetDefault("cache.gc_time", 30*time.Minute)
	v.SetDefault("cache.redis_url", "")
	v.SetDefault("tracker.ttl", 60*time.Minute)
	v.SetDefault("tracker.idle_timeout", 2*time.Minute)
	v.SetDefault("tracker.sweep_interval", 1)
	v.SetDefault("upload.file_size_limit_kb", 51200)
	v.SetDefault("viewer.background", "#ffffff")
	v.SetDefault("viewer.show_ui", true)
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetConfigName("config") // name of config file (without extension)
	v.SetConfigType("yml")    // or "yaml"
	v.AddConfigPath(".")      // looking for config in the current directory

	// --- Environment Variable Overrides ---
	// e.g., PROPTIMUS_API_BASE_URL will override the `api.base_url` key.
	v.SetEnvPrefix("PROPTIMUS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)
	return v
}

func decode(v *viper.Viper) (*Config, error) {
	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, err
	}
	if _, err := semver.NewVersion(strings.TrimPrefix(config.App.Version, "v")); err != nil {
		return nil, fmt.Errorf("invalid app.version %q: %w", config.App.Version, err)
	}
	return &config, nil
}

// Load reads configuration from a file named "config.yml" in the
// current directory and unmarshals it into a Config struct. A .env file,
// when present, is loaded into the process environment first.
func Load() (*Config, error) {
	// A missing .env is the normal case outside development.
	_ = godotenv.Load()

	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found; ignore error and use defaults
		} else {
			// Config file was found but another error was produced
			return nil, err
		}
	}
	return decode(v)
}

// Watch re-reads config.yml whenever it changes on disk and hands the new
// configuration to onChange. Invalid edits are reported through onError and
// otherwise ignored. It is a no-op when no config file is in use.
func Watch(onChange func(*Config), onError func(error)) {
	v := newViper()
	if err := v.ReadInConfig(); err != nil {
		return
	}
	v.OnConfigChange(func(e fsnotify.Event) {
		if e.Op&fsnotify.Write != fsnotify.Write && e.Op&fsnotify.Create != fsnotify.Create {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			if onError != nil {
				onError(err)
			}
			return
		}
		onChange(cfg)
	})
	v.WatchConfig()
}
