package main

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/nlstn/go-csdl/internal/docstore"
	"github.com/spf13/viper"
)

// Config is read from csdl.yaml in the working directory, an explicit --config file, and
// CSDL_* environment variables such as CSDL_STORE_DSN.
type Config struct {
	Store      StoreConfig      `mapstructure:"store"`
	References ReferencesConfig `mapstructure:"references"`
	Serve      ServeConfig      `mapstructure:"serve"`
	Log        LogConfig        `mapstructure:"log"`
	Output     OutputConfig     `mapstructure:"output"`
}

// StoreConfig selects the document store database.
type StoreConfig struct {
	Dialect string `mapstructure:"dialect"`
	DSN     string `mapstructure:"dsn"`
}

// ReferencesConfig controls how referenced documents are loaded.
type ReferencesConfig struct {
	// Dir is the directory relative reference URIs are resolved against. Empty means the
	// directory of the document being read.
	Dir string `mapstructure:"dir"`
	// UseStore consults the document store before the file system.
	UseStore bool `mapstructure:"use_store"`
}

// ServeConfig configures the metadata preview server.
type ServeConfig struct {
	Addr string `mapstructure:"addr"`
}

// LogConfig sets the log level: debug, info, warn or error.
type LogConfig struct {
	Level string `mapstructure:"level"`
}

// OutputConfig sets the default target format of convert.
type OutputConfig struct {
	Format string `mapstructure:"format"`
}

// Load reads the configuration. A missing csdl.yaml is not an error; a missing explicit
// file is.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("store.dialect", docstore.DialectSQLite)
	v.SetDefault("store.dsn", "csdl.db")
	v.SetDefault("references.dir", "")
	v.SetDefault("references.use_store", false)
	v.SetDefault("serve.addr", ":8080")
	v.SetDefault("log.level", "warn")
	v.SetDefault("output.format", "json")

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("csdl")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("CSDL")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Store.Dialect {
	case docstore.DialectSQLite, docstore.DialectPostgres:
	default:
		return fmt.Errorf("store.dialect must be %s or %s, got %q", docstore.DialectSQLite, docstore.DialectPostgres, cfg.Store.Dialect)
	}
	if _, err := parseLevel(cfg.Log.Level); err != nil {
		return err
	}
	return nil
}

func parseLevel(s string) (slog.Level, error) {
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log.level: %w", err)
	}
	return level, nil
}
