// Package config loads the connection and pool settings pgdoc needs to
// reach its Postgres backend, from environment variables prefixed PGDOC_
// (and an optional .env file), via spf13/viper.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/spf13/viper"
)

// Config holds everything a Driver needs to connect and size its pool.
type Config struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	Database        string        `mapstructure:"database"`
	User            string        `mapstructure:"user"`
	Password        string        `mapstructure:"password"`
	SSLMode         string        `mapstructure:"sslmode"`
	PoolMaxConns    int           `mapstructure:"pool_max_conns"`
	PoolIdleTimeout time.Duration `mapstructure:"pool_idle_timeout"`
	ConnectTimeout  time.Duration `mapstructure:"connect_timeout"`
}

func defaults() Config {
	return Config{
		Host:            "localhost",
		Port:            5432,
		Database:        "pgdoc",
		User:            "postgres",
		SSLMode:         "disable",
		PoolMaxConns:    10,
		PoolIdleTimeout: 5 * time.Minute,
		ConnectTimeout:  5 * time.Second,
	}
}

// Load reads PGDOC_-prefixed environment variables (and ./.env, if
// present) into a Config, falling back to sane local defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.SetEnvPrefix("pgdoc")
	v.AutomaticEnv()

	v.SetConfigFile(".env")
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("config: reading .env: %w", err)
		}
	}

	for _, key := range []string{
		"host", "port", "database", "user", "password", "sslmode",
		"pool_max_conns", "pool_idle_timeout", "connect_timeout",
	} {
		_ = v.BindEnv(key)
	}

	cfg := defaults()
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	return &cfg, nil
}

// DSN renders the libpq connection string pgxpool.New expects.
func (c *Config) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d dbname=%s user=%s password=%s sslmode=%s connect_timeout=%d pool_max_conns=%d",
		c.Host, c.Port, c.Database, c.User, c.Password, c.SSLMode,
		int(c.ConnectTimeout.Seconds()), c.PoolMaxConns,
	)
}
