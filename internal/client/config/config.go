package config

import (
	"fmt"
	"time"

	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/goalboard/internal/flagx"
)

const EnvPrefix = "GOALBOARD_"

type S3Config struct {
	Region    string
	AccessKey string
	SecretKey string
	Endpoint  string
	Bucket    string
	Prefix    string
}

// Config holds runtime settings for the goalboard client.
//
// Fields:
//   - ServerURL: base URL of the remote mirror REST API; empty means not configured.
//   - HealthAddr: host:port of the gRPC health endpoint used as the connectivity
//     source. When empty the client pings ServerURL instead.
//   - DataDir / Ephemeral: where the SQLite store lives, or keep it in memory.
//   - Offline: force the offline state regardless of probes.
//   - OnlineCheckInterval / QueueInterval: connectivity polling and periodic drain.
//   - LoadTimeout / RetryDelay / MaxRetries: bootstrap knobs.
//   - Debounce: delay of collection auto-save.
type Config struct {
	ServerURL           string
	HealthAddr          string
	DataDir             string
	Ephemeral           bool
	Offline             bool
	OnlineCheckInterval time.Duration
	QueueInterval       time.Duration
	LoadTimeout         time.Duration
	RetryDelay          time.Duration
	MaxRetries          int
	Debounce            time.Duration
	LogLevel            string
	LogFormat           string
	ExportDir           string
	S3                  S3Config
}

// LoadDefaults populates c with sensible defaults.
func (c *Config) LoadDefaults() {
	c.ServerURL = "http://127.0.0.1:8080"
	c.HealthAddr = "127.0.0.1:50051"
	c.DataDir = ".goalboard"
	c.OnlineCheckInterval = 3 * time.Second
	c.QueueInterval = 30 * time.Second
	c.LoadTimeout = 10 * time.Second
	c.RetryDelay = 2 * time.Second
	c.MaxRetries = 2
	c.Debounce = time.Second
	c.LogLevel = "info"
	c.LogFormat = "auto"
	c.ExportDir = "exports"
	c.S3.Region = "us-east-1"
}

// Load builds a Config from defaults, the TOML file at path, the environment
// and the flags of fs that were explicitly set.
func Load(path string, fs *pflag.FlagSet) (*Config, error) {
	cfg := &Config{}
	cfg.LoadDefaults()

	if err := parseFile(path, cfg); err != nil {
		return nil, err
	}
	if err := flagx.LoadDotenv(".env"); err != nil {
		return nil, err
	}
	if err := parseEnv(flagx.NewEnv(EnvPrefix), cfg); err != nil {
		return nil, err
	}
	parseFlags(fs, cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.MaxRetries < 0 {
		return fmt.Errorf("max retries must not be negative, got %d", c.MaxRetries)
	}
	for name, d := range map[string]time.Duration{
		"online check interval": c.OnlineCheckInterval,
		"queue interval":        c.QueueInterval,
		"load timeout":          c.LoadTimeout,
	} {
		if d <= 0 {
			return fmt.Errorf("%s must be positive, got %s", name, d)
		}
	}
	return nil
}
