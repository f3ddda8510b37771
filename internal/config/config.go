// Package config loads importrisk settings from a config file, the
// environment and built-in defaults.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/1homsi/importrisk/internal/registry"
	"github.com/spf13/viper"
)

// Config is the resolved, validated configuration.
type Config struct {
	KnownPackages []string
	PyPIAPI       string
	NPMAPI        string
	HTTPTimeout   time.Duration
	Popularity    Popularity
	Similarity    Similarity
	Workers       int
	Server        Server

	// File is the config file that was read, empty when none was found.
	File string
}

type Popularity struct {
	SearchURL     string
	Token         string
	RatePerSecond float64
	Burst         int
}

type Similarity struct {
	Embedder   string
	Dimensions int
	Model      string
	ModelDir   string
	BaseURL    string
	APIKey     string
}

type Server struct {
	Addr           string
	RateLimitRPS   int
	RateLimitBurst int
}

// Error reports a missing or malformed setting.
type Error struct {
	Key string
	Err error
}

func (e *Error) Error() string {
	if e.Key == "" {
		return fmt.Sprintf("config: %v", e.Err)
	}
	return fmt.Sprintf("config %s: %v", e.Key, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

var embedders = map[string]bool{"minilm": true, "ngram": true, "openai": true, "ollama": true}

func setDefaults(v *viper.Viper) {
	v.SetDefault("pypi_api", registry.DefaultEndpoints.PyPI)
	v.SetDefault("npm_api", registry.DefaultEndpoints.NPM)
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("popularity.search_url", "https://api.github.com/search/repositories")
	v.SetDefault("popularity.rate_per_second", 0.5)
	v.SetDefault("popularity.burst", 5)
	v.SetDefault("similarity.embedder", "minilm")
	v.SetDefault("similarity.dimensions", 384)
	v.SetDefault("analysis.workers", 10)
	v.SetDefault("server.addr", ":8088")
	v.SetDefault("server.rate_limit_rps", 10)
	v.SetDefault("server.rate_limit_burst", 20)
}

// Load reads file, or searches ./configs, . and $HOME/.importrisk for
// importrisk.{yaml,json,toml} when file is empty. IMPORTRISK_* environment
// variables override file values (IMPORTRISK_HTTP_TIMEOUT for http.timeout).
func Load(file string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix("IMPORTRISK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	_ = v.BindEnv("popularity.token", "IMPORTRISK_POPULARITY_TOKEN", "IMPORTRISK_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("similarity.api_key", "IMPORTRISK_SIMILARITY_API_KEY", "OPENAI_API_KEY")

	if file != "" {
		if _, err := os.Stat(file); err != nil {
			return nil, &Error{Err: fmt.Errorf("read config: %w", err)}
		}
		v.SetConfigFile(file)
	} else {
		v.SetConfigName("importrisk")
		v.AddConfigPath("configs")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME/.importrisk")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, &Error{Err: fmt.Errorf("read config: %w", err)}
		}
	}

	return fromViper(v)
}

func fromViper(v *viper.Viper) (*Config, error) {
	if !v.IsSet("known_packages") {
		return nil, &Error{Key: "known_packages", Err: errors.New("required setting is missing")}
	}

	cfg := &Config{
		KnownPackages: v.GetStringSlice("known_packages"),
		PyPIAPI:       strings.TrimSpace(v.GetString("pypi_api")),
		NPMAPI:        strings.TrimSpace(v.GetString("npm_api")),
		HTTPTimeout:   v.GetDuration("http.timeout"),
		Popularity: Popularity{
			SearchURL:     v.GetString("popularity.search_url"),
			Token:         strings.TrimSpace(v.GetString("popularity.token")),
			RatePerSecond: v.GetFloat64("popularity.rate_per_second"),
			Burst:         v.GetInt("popularity.burst"),
		},
		Similarity: Similarity{
			Embedder:   strings.ToLower(strings.TrimSpace(v.GetString("similarity.embedder"))),
			Dimensions: v.GetInt("similarity.dimensions"),
			Model:      v.GetString("similarity.model"),
			ModelDir:   v.GetString("similarity.model_dir"),
			BaseURL:    v.GetString("similarity.base_url"),
			APIKey:     v.GetString("similarity.api_key"),
		},
		Workers: v.GetInt("analysis.workers"),
		Server: Server{
			Addr:           v.GetString("server.addr"),
			RateLimitRPS:   v.GetInt("server.rate_limit_rps"),
			RateLimitBurst: v.GetInt("server.rate_limit_burst"),
		},
		File: v.ConfigFileUsed(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every setting and returns the first problem as *Error.
func (c *Config) Validate() error {
	if err := registry.ValidateTemplate(c.PyPIAPI); err != nil {
		return &Error{Key: "pypi_api", Err: err}
	}
	if err := registry.ValidateTemplate(c.NPMAPI); err != nil {
		return &Error{Key: "npm_api", Err: err}
	}
	if c.HTTPTimeout <= 0 {
		return &Error{Key: "http.timeout", Err: fmt.Errorf("must be positive, got %s", c.HTTPTimeout)}
	}
	if c.Popularity.RatePerSecond < 0 {
		return &Error{Key: "popularity.rate_per_second", Err: errors.New("must not be negative")}
	}
	if c.Popularity.Burst < 0 {
		return &Error{Key: "popularity.burst", Err: errors.New("must not be negative")}
	}
	if !embedders[c.Similarity.Embedder] {
		return &Error{Key: "similarity.embedder", Err: fmt.Errorf("unknown embedder %q; choose minilm|ngram|openai|ollama", c.Similarity.Embedder)}
	}
	if c.Similarity.Dimensions <= 0 {
		return &Error{Key: "similarity.dimensions", Err: errors.New("must be positive")}
	}
	if c.Workers <= 0 {
		return &Error{Key: "analysis.workers", Err: errors.New("must be positive")}
	}
	return nil
}

// Endpoints returns the registry URL templates.
func (c *Config) Endpoints() registry.Endpoints {
	return registry.Endpoints{PyPI: c.PyPIAPI, NPM: c.NPMAPI}
}
