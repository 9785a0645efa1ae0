// Package config loads service settings in three layers: built-in defaults,
// an optional YAML file, then STARMAP_* environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

const (
	EnvPrefix = "STARMAP_"
	// PathEnvVar overrides the config file location.
	PathEnvVar = "STARMAP_CONFIG"
	// DefaultPath is read when present and PathEnvVar is unset.
	DefaultPath = "config.yaml"
)

type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	FileStore FileStoreConfig `koanf:"filestore"`
	Redis     RedisConfig     `koanf:"redis"`
	Log       LogConfig       `koanf:"log"`
	Seed      SeedConfig      `koanf:"seed"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr"`
	StaticDir    string        `koanf:"static_dir"`
	ReadTimeout  time.Duration `koanf:"read_timeout"`
	WriteTimeout time.Duration `koanf:"write_timeout"`
	Mode         string        `koanf:"mode"` // gin mode: debug, release, test
}

type DatabaseConfig struct {
	Enabled      bool   `koanf:"enabled"`
	DSN          string `koanf:"dsn"`
	MaxOpenConns int    `koanf:"max_open_conns"`
	MaxIdleConns int    `koanf:"max_idle_conns"`
	LogSQL       bool   `koanf:"log_sql"`
}

type FileStoreConfig struct {
	Path string `koanf:"path"`
}

// RedisConfig is optional; an empty Addr turns the like-count syncer off.
type RedisConfig struct {
	Addr         string        `koanf:"addr"`
	Password     string        `koanf:"password"`
	DB           int           `koanf:"db"`
	SyncInterval time.Duration `koanf:"sync_interval"`
}

type LogConfig struct {
	Level  string `koanf:"level"`
	Format string `koanf:"format"`
}

type SeedConfig struct {
	SampleData bool `koanf:"sample_data"`
}

func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:         ":8000",
			StaticDir:    "dist",
			ReadTimeout:  15 * time.Second,
			WriteTimeout: 15 * time.Second,
			Mode:         "release",
		},
		Database: DatabaseConfig{
			Enabled:      true,
			DSN:          "root:123456@tcp(127.0.0.1:3306)/star_map?charset=utf8mb4&parseTime=True&loc=Local",
			MaxOpenConns: 10,
			MaxIdleConns: 5,
		},
		FileStore: FileStoreConfig{Path: "data.json"},
		Redis:     RedisConfig{SyncInterval: time.Minute},
		Log:       LogConfig{Level: "info", Format: "json"},
		Seed:      SeedConfig{SampleData: true},
	}
}

// Load builds the configuration. A missing default config file is not an
// error; a missing file named by STARMAP_CONFIG is.
func Load() (*Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("load defaults: %w", err)
	}

	path, explicit := os.LookupEnv(PathEnvVar)
	if !explicit {
		path = DefaultPath
	}
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("load config file %s: %w", path, err)
		}
	} else if explicit {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("load environment: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// envKey maps STARMAP_DATABASE_MAX_OPEN_CONNS to database.max_open_conns.
// Only the first underscore after the prefix separates section from key.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	if s == "config" {
		return ""
	}
	return strings.Replace(s, "_", ".", 1)
}

func (c *Config) Validate() error {
	var errs []error
	if c.Server.Addr == "" {
		errs = append(errs, errors.New("server.addr is required"))
	}
	if c.FileStore.Path == "" {
		errs = append(errs, errors.New("filestore.path is required"))
	}
	if c.Database.Enabled && c.Database.DSN == "" {
		errs = append(errs, errors.New("database.dsn is required when the database is enabled"))
	}
	if c.Redis.Addr != "" && c.Redis.SyncInterval <= 0 {
		errs = append(errs, errors.New("redis.sync_interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}
