package config

import (
	"time"

	"github.com/dmitrijs2005/goalboard/internal/flagx"
)

// fileConfig is a DTO used exclusively for TOML decoding. Durations stay
// strings here and are parsed with flagx.ParseDuration.
type fileConfig struct {
	ServerURL           *string `toml:"server_url"`
	HealthAddr          *string `toml:"health_addr"`
	DataDir             *string `toml:"data_dir"`
	Ephemeral           *bool   `toml:"ephemeral"`
	Offline             *bool   `toml:"offline"`
	OnlineCheckInterval string  `toml:"online_check_interval"`
	QueueInterval       string  `toml:"queue_interval"`
	Debounce            string  `toml:"debounce"`

	Bootstrap struct {
		LoadTimeout string `toml:"load_timeout"`
		RetryDelay  string `toml:"retry_delay"`
		MaxRetries  *int   `toml:"max_retries"`
	} `toml:"bootstrap"`

	Log struct {
		Level  string `toml:"level"`
		Format string `toml:"format"`
	} `toml:"log"`

	Export struct {
		Dir string `toml:"dir"`
		S3  struct {
			Region    string `toml:"region"`
			AccessKey string `toml:"access_key"`
			SecretKey string `toml:"secret_key"`
			Endpoint  string `toml:"endpoint"`
			Bucket    string `toml:"bucket"`
			Prefix    string `toml:"prefix"`
		} `toml:"s3"`
	} `toml:"export"`
}

// parseFile overlays cfg with the values present in the TOML file at path.
// Absent keys keep their current value; pointers distinguish an explicit
// empty server_url (remote disabled) from a missing one.
func parseFile(path string, cfg *Config) error {
	var fc fileConfig
	if err := flagx.ReadTOML(path, &fc); err != nil {
		return err
	}

	setPtr(&cfg.ServerURL, fc.ServerURL)
	setPtr(&cfg.HealthAddr, fc.HealthAddr)
	setPtr(&cfg.DataDir, fc.DataDir)
	setPtr(&cfg.Ephemeral, fc.Ephemeral)
	setPtr(&cfg.Offline, fc.Offline)
	setPtr(&cfg.MaxRetries, fc.Bootstrap.MaxRetries)

	for _, d := range []struct {
		raw string
		dst *time.Duration
	}{
		{fc.OnlineCheckInterval, &cfg.OnlineCheckInterval},
		{fc.QueueInterval, &cfg.QueueInterval},
		{fc.Debounce, &cfg.Debounce},
		{fc.Bootstrap.LoadTimeout, &cfg.LoadTimeout},
		{fc.Bootstrap.RetryDelay, &cfg.RetryDelay},
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

	setStr(&cfg.LogLevel, fc.Log.Level)
	setStr(&cfg.LogFormat, fc.Log.Format)
	setStr(&cfg.ExportDir, fc.Export.Dir)
	setStr(&cfg.S3.Region, fc.Export.S3.Region)
	setStr(&cfg.S3.AccessKey, fc.Export.S3.AccessKey)
	setStr(&cfg.S3.SecretKey, fc.Export.S3.SecretKey)
	setStr(&cfg.S3.Endpoint, fc.Export.S3.Endpoint)
	setStr(&cfg.S3.Bucket, fc.Export.S3.Bucket)
	setStr(&cfg.S3.Prefix, fc.Export.S3.Prefix)
	return nil
}

func setPtr[T any](dst *T, v *T) {
	if v != nil {
		*dst = *v
	}
}

func setStr(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
