package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config is the application configuration
type Config struct {
	App       App                     `mapstructure:"app"`
	HTTP      HTTP                    `mapstructure:"http"`
	Browser   Browser                 `mapstructure:"browser"`
	Cache     Cache                   `mapstructure:"cache"`
	Output    Output                  `mapstructure:"output"`
	Sources   map[string]SourceConfig `mapstructure:"sources"`
	Filter    Filter                  `mapstructure:"filter"`
	Mirrors   Mirrors                 `mapstructure:"mirrors"`
	Telemetry Telemetry               `mapstructure:"telemetry"`
	Server    Server                  `mapstructure:"server"`
}

type App struct {
	DataDir   string `mapstructure:"data_dir"`
	LogLevel  string `mapstructure:"log_level"`
	LogFormat string `mapstructure:"log_format"`
	Selectors string `mapstructure:"selectors"`
}

type HTTP struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	RatePerSecond float64       `mapstructure:"rate_per_second"`
	Burst         int           `mapstructure:"burst"`
	ClientType    string        `mapstructure:"client_type"`
	UserAgent     string        `mapstructure:"user_agent"`
}

type Browser struct {
	Backend  string        `mapstructure:"backend"`
	MaxWait  time.Duration `mapstructure:"max_wait"`
	Headless bool          `mapstructure:"headless"`
	ExecPath string        `mapstructure:"exec_path"`
}

type Cache struct {
	// File is a directory-relative name; each preset gets its own file when empty.
	File    string `mapstructure:"file"`
	Refresh bool   `mapstructure:"refresh"`
}

type Output struct {
	Dir      string `mapstructure:"dir"`
	Template string `mapstructure:"template"`
}

// SourceConfig overrides one preset's listing
type SourceConfig struct {
	BaseURL     string `mapstructure:"base_url"`
	MaxPages    int    `mapstructure:"max_pages"`
	FeedURL     string `mapstructure:"feed_url"`
	PagePattern string `mapstructure:"page_pattern"`
	File        string `mapstructure:"file"`
}

type Filter struct {
	MinRating float64 `mapstructure:"min_rating"`
	MaxWeeks  int     `mapstructure:"max_weeks"`
}

type Mirrors struct {
	MongoURI         string `mapstructure:"mongo_uri"`
	MongoDB          string `mapstructure:"mongo_db"`
	MongoCollection  string `mapstructure:"mongo_collection"`
	PostgresDSN      string `mapstructure:"postgres_dsn"`
	SupabaseURL      string `mapstructure:"supabase_url"`
	SupabaseKey      string `mapstructure:"supabase_key"`
	SupabasePassword string `mapstructure:"supabase_password"`
	SQLitePath       string `mapstructure:"sqlite_path"`
}

type Telemetry struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	ServiceName  string `mapstructure:"service_name"`
}

type Server struct {
	Addr string `mapstructure:"addr"`
}

// EnvPrefix prefixes environment overrides, e.g. SCREENLIST_BROWSER_BACKEND
const EnvPrefix = "SCREENLIST"

var (
	globalConfig *Config
	mu           sync.Mutex
)

// Load reads .env, the config file and the environment. An explicit configFile must exist;
// otherwise screenlist.yaml is looked up in the working directory and $HOME.
func Load(configFile string) (*Config, error) {
	mu.Lock()
	defer mu.Unlock()

	if globalConfig != nil {
		return globalConfig, nil
	}

	cfg, err := load(viper.New(), configFile)
	if err != nil {
		return nil, err
	}
	globalConfig = cfg
	return cfg, nil
}

// Get returns the loaded configuration, loading defaults on first use
func Get() *Config {
	cfg, err := Load("")
	if err != nil {
		panic(fmt.Sprintf("Failed to load configuration: %v", err))
	}
	return cfg
}

// Reset forgets the loaded configuration
func Reset() {
	mu.Lock()
	defer mu.Unlock()
	globalConfig = nil
}

func load(v *viper.Viper, configFile string) (*Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			slog.Warn("Config: error loading .env file", "error", err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		v.SetConfigName("screenlist")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	postProcess(cfg)
	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.data_dir", ".screenlist")
	v.SetDefault("app.log_level", "info")
	v.SetDefault("app.log_format", "text")
	v.SetDefault("app.selectors", "selectors.json5")

	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.rate_per_second", 1.0)
	v.SetDefault("http.burst", 1)
	v.SetDefault("http.client_type", "browser")
	v.SetDefault("http.user_agent", "")

	v.SetDefault("browser.backend", "static")
	v.SetDefault("browser.max_wait", "30s")
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.exec_path", "")

	v.SetDefault("cache.file", "")
	v.SetDefault("cache.refresh", false)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.template", "")

	v.SetDefault("filter.min_rating", 6.0)
	v.SetDefault("filter.max_weeks", 8)

	// empty mirror settings disable the mirror; the defaults make them visible to env overrides
	v.SetDefault("mirrors.mongo_uri", "")
	v.SetDefault("mirrors.mongo_db", "screenlist")
	v.SetDefault("mirrors.mongo_collection", "records")
	v.SetDefault("mirrors.postgres_dsn", "")
	v.SetDefault("mirrors.supabase_url", "")
	v.SetDefault("mirrors.supabase_key", "")
	v.SetDefault("mirrors.supabase_password", "")
	v.SetDefault("mirrors.sqlite_path", "")

	v.SetDefault("telemetry.otlp_endpoint", "")
	v.SetDefault("telemetry.service_name", "screenlist")

	v.SetDefault("server.addr", ":8080")
}

func postProcess(cfg *Config) {
	if cfg.Sources == nil {
		cfg.Sources = map[string]SourceConfig{}
	}
	if cfg.App.DataDir != "" && !filepath.IsAbs(cfg.App.DataDir) {
		if abs, err := filepath.Abs(cfg.App.DataDir); err == nil {
			cfg.App.DataDir = abs
		}
	}
}

func validate(cfg *Config) error {
	switch cfg.Browser.Backend {
	case "static", "chrome":
	default:
		return fmt.Errorf("invalid browser.backend %q: want static or chrome", cfg.Browser.Backend)
	}
	switch cfg.HTTP.ClientType {
	case "browser", "cloudflare":
	default:
		return fmt.Errorf("invalid http.client_type %q: want browser or cloudflare", cfg.HTTP.ClientType)
	}
	if cfg.Browser.MaxWait <= 0 {
		return fmt.Errorf("browser.max_wait must be positive")
	}
	return nil
}

// CachePath returns the cache file for a preset
func (c *Config) CachePath(preset string) string {
	name := c.Cache.File
	if name == "" {
		name = preset + ".json"
	}
	if filepath.IsAbs(name) {
		return name
	}
	return filepath.Join(c.App.DataDir, name)
}

// Source returns the overrides for a preset; missing entries are zero
func (c *Config) Source(preset string) SourceConfig {
	return c.Sources[preset]
}
