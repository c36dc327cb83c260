package config

import "github.com/dmitrijs2005/goalboard/internal/flagx"

// parseEnv overlays cfg with GOALBOARD_SERVER_* variables.
func parseEnv(env *flagx.Env, cfg *Config) error {
	env.String("HTTP_ADDR", &cfg.HTTPAddr)
	env.String("GRPC_ADDR", &cfg.GRPCAddr)
	env.String("DATABASE_DSN", &cfg.DatabaseDSN)
	env.Bool("MEMORY", &cfg.Memory)
	env.String("REDIS_ADDR", &cfg.RedisAddr)
	env.String("REDIS_CHANNEL", &cfg.RedisChannel)
	env.List("ALLOWED_ORIGINS", &cfg.AllowedOrigins)
	env.Duration("HEALTH_INTERVAL", &cfg.HealthInterval)
	env.Duration("SHUTDOWN_TIMEOUT", &cfg.ShutdownTimeout)
	env.String("LOG_LEVEL", &cfg.LogLevel)
	env.String("LOG_FORMAT", &cfg.LogFormat)
	return env.Err()
}
