package config

import (
	"time"

	"github.com/dmitrijs2005/goalboard/internal/flagx"
)

// fileConfig is a DTO used exclusively for TOML decoding.
type fileConfig struct {
	HTTPAddr        *string  `toml:"http_addr"`
	GRPCAddr        *string  `toml:"grpc_addr"`
	DatabaseDSN     string   `toml:"database_dsn"`
	Memory          *bool    `toml:"memory"`
	AllowedOrigins  []string `toml:"allowed_origins"`
	HealthInterval  string   `toml:"health_interval"`
	ShutdownTimeout string   `toml:"shutdown_timeout"`

	Redis struct {
		Addr    string `toml:"addr"`
		Channel string `toml:"channel"`
	} `toml:"redis"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`
}

func parseFile(path string, cfg *Config) error {
	var fc fileConfig
	if err := flagx.ReadTOML(path, &fc); err != nil {
		return err
	}

	if fc.HTTPAddr != nil {
		cfg.HTTPAddr = *fc.HTTPAddr
	}
	// an explicit empty grpc_addr turns the health listener off
	if fc.GRPCAddr != nil {
		cfg.GRPCAddr = *fc.GRPCAddr
	}
	if fc.Memory != nil {
		cfg.Memory = *fc.Memory
	}
	if fc.AllowedOrigins != nil {
		cfg.AllowedOrigins = fc.AllowedOrigins
	}

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.HealthInterval, &cfg.HealthInterval},
		{fc.ShutdownTimeout, &cfg.ShutdownTimeout},
	} {
		if d.raw == "" {
			continue
		}
		v, err := flagx.ParseDuration(d.raw)
		if err != nil {
			return err
		}
		*d.dst = v
	}

	for _, s := range []struct {
		v   string
		dst *string
	}{
		{fc.DatabaseDSN, &cfg.DatabaseDSN},
		{fc.Redis.Addr, &cfg.RedisAddr},
		{fc.Redis.Channel, &cfg.RedisChannel},
		{fc.Log.Level, &cfg.LogLevel},
		{fc.Log.Format, &cfg.LogFormat},
	} {
		if s.v != "" {
			*s.dst = s.v
		}
	}
	return nil
}
