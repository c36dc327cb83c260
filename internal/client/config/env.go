package config

import "github.com/dmitrijs2005/goalboard/internal/flagx"

// parseEnv overlays cfg with GOALBOARD_* variables.
func parseEnv(env *flagx.Env, cfg *Config) error {
	env.String("SERVER_URL", &cfg.ServerURL)
	env.String("HEALTH_ADDR", &cfg.HealthAddr)
	env.String("DATA_DIR", &cfg.DataDir)
	env.Bool("EPHEMERAL", &cfg.Ephemeral)
	env.Bool("OFFLINE", &cfg.Offline)
	env.Duration("ONLINE_CHECK_INTERVAL", &cfg.OnlineCheckInterval)
	env.Duration("QUEUE_INTERVAL", &cfg.QueueInterval)
	env.Duration("DEBOUNCE", &cfg.Debounce)
	env.Duration("LOAD_TIMEOUT", &cfg.LoadTimeout)
	env.Duration("RETRY_DELAY", &cfg.RetryDelay)
	env.Int("MAX_RETRIES", &cfg.MaxRetries)
	env.String("LOG_LEVEL", &cfg.LogLevel)
	env.String("LOG_FORMAT", &cfg.LogFormat)
	env.String("EXPORT_DIR", &cfg.ExportDir)
	env.String("S3_REGION", &cfg.S3.Region)
	env.String("S3_ACCESS_KEY", &cfg.S3.AccessKey)
	env.String("S3_SECRET_KEY", &cfg.S3.SecretKey)
	env.String("S3_ENDPOINT", &cfg.S3.Endpoint)
	env.String("S3_BUCKET", &cfg.S3.Bucket)
	env.String("S3_PREFIX", &cfg.S3.Prefix)
	return env.Err()
}
