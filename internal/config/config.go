// Package config loads service settings from an optional YAML file and
// environment variables. Environment wins over the file.
package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

type Config struct {
	HTTPAddr string   `yaml:"http_addr"`
	Database Database `yaml:"database"`
	Log      Log      `yaml:"log"`
	// OperationTimeout bounds the lifetime of one engine transaction.
	OperationTimeout time.Duration `yaml:"operation_timeout"`
}

type Database struct {
	Driver     string `yaml:"driver"`
	Host       string `yaml:"host"`
	User       string `yaml:"user"`
	Password   string `yaml:"password"`
	Name       string `yaml:"name"`
	Port       string `yaml:"port"`
	SQLitePath string `yaml:"sqlite_path"`
}

type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

func Default() Config {
	return Config{
		HTTPAddr: ":8080",
		Database: Database{
			Driver:     DriverSQLite,
			Port:       "5432",
			SQLitePath: "dealflow.db",
		},
		Log:              Log{Level: "info", Format: "text"},
		OperationTimeout: 10 * time.Second,
	}
}

// Load reads path (skipped when empty) over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	str := map[string]*string{
		"DB_HOST":                 &c.Database.Host,
		"DB_USER":                 &c.Database.User,
		"DB_PASSWORD":             &c.Database.Password,
		"DB_NAME":                 &c.Database.Name,
		"DB_PORT":                 &c.Database.Port,
		"DEALFLOW_STORAGE_DRIVER": &c.Database.Driver,
		"DEALFLOW_SQLITE_PATH":    &c.Database.SQLitePath,
		"DEALFLOW_HTTP_ADDR":      &c.HTTPAddr,
		"DEALFLOW_LOG_LEVEL":      &c.Log.Level,
		"DEALFLOW_LOG_FORMAT":     &c.Log.Format,
	}
	for key, dst := range str {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}

	// The docker-compose setup only sets DB_HOST; treat it as a postgres deployment.
	if _, explicit := lookup("DEALFLOW_STORAGE_DRIVER"); !explicit {
		if host, ok := lookup("DB_HOST"); ok && host != "" {
			c.Database.Driver = DriverPostgres
		}
	}

	if v, ok := lookup("DEALFLOW_OPERATION_TIMEOUT"); ok && v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("DEALFLOW_OPERATION_TIMEOUT: %w", err)
		}
		c.OperationTimeout = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case DriverPostgres:
		if c.Database.Host == "" {
			errs = append(errs, errors.New("database.host is required for postgres"))
		}
	case DriverSQLite:
		if c.Database.SQLitePath == "" {
			errs = append(errs, errors.New("database.sqlite_path is required for sqlite"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown storage driver %q", c.Database.Driver))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("operation_timeout must be positive"))
	}
	if c.HTTPAddr == "" {
		errs = append(errs, errors.New("http_addr is required"))
	}
	return errors.Join(errs...)
}
