package config

import (
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/goalboard/internal/flagx"
)

// RegisterFlags declares the server flags on fs.
//
//	-a, --http-addr string      REST and realtime bind address
//	-g, --grpc-addr string      gRPC health bind address ("" disables it)
//	-d, --database-dsn string   PostgreSQL DSN
//	    --memory                keep records in memory
//	-r, --redis string          Redis address for cross-instance fan-out
//	    --origins strings       allowed CORS origins
//	    --log-level string
//	    --log-format string
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("http-addr", "a", d.HTTPAddr, "REST and realtime bind address")
	fs.StringP("grpc-addr", "g", d.GRPCAddr, "gRPC health bind address (empty disables it)")
	fs.StringP("database-dsn", "d", d.DatabaseDSN, "PostgreSQL DSN")
	fs.Bool("memory", false, "keep records in memory instead of PostgreSQL")
	fs.StringP("redis", "r", d.RedisAddr, "Redis address for cross-instance notifications")
	fs.StringSlice("origins", d.AllowedOrigins, "allowed CORS origins")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text, json or auto")
}

func parseFlags(fs *pflag.FlagSet, cfg *Config) {
	str := func(name string, dst *string) {
		flagx.Changed(fs, name, func() { *dst, _ = fs.GetString(name) })
	}

	str("http-addr", &cfg.HTTPAddr)
	str("grpc-addr", &cfg.GRPCAddr)
	str("database-dsn", &cfg.DatabaseDSN)
	flagx.Changed(fs, "memory", func() { cfg.Memory, _ = fs.GetBool("memory") })
	str("redis", &cfg.RedisAddr)
	flagx.Changed(fs, "origins", func() { cfg.AllowedOrigins, _ = fs.GetStringSlice("origins") })
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
}
