package config

import (
	"github.com/spf13/pflag"

	"github.com/dmitrijs2005/goalboard/internal/flagx"
)

// RegisterFlags declares the client flags on fs with defaults for help output.
//
//	-s, --server string          remote mirror base URL ("" disables the remote)
//	    --health string          gRPC health endpoint host:port
//	-d, --data-dir string        directory of the local database
//	    --ephemeral              keep the local store in memory
//	    --offline                force offline mode
//	-i, --online-check duration  connectivity probe interval
//	    --queue-interval duration
//	    --log-level string
//	    --log-format string      text, json or auto
//	    --export-dir string
//	    --s3-bucket string
func RegisterFlags(fs *pflag.FlagSet) {
	var d Config
	d.LoadDefaults()

	fs.StringP("server", "s", d.ServerURL, "remote mirror base URL (empty disables the remote)")
	fs.String("health", d.HealthAddr, "gRPC health endpoint host:port")
	fs.StringP("data-dir", "d", d.DataDir, "directory of the local database")
	fs.Bool("ephemeral", false, "keep the local store in memory")
	fs.Bool("offline", false, "force offline mode")
	fs.DurationP("online-check", "i", d.OnlineCheckInterval, "connectivity probe interval")
	fs.Duration("queue-interval", d.QueueInterval, "periodic sync queue drain interval")
	fs.String("log-level", d.LogLevel, "debug, info, warn or error")
	fs.String("log-format", d.LogFormat, "text, json or auto")
	fs.String("export-dir", d.ExportDir, "directory for local exports")
	fs.String("s3-bucket", d.S3.Bucket, "bucket for S3 exports")
}

// parseFlags overlays cfg with the flags of fs that were explicitly set.
func parseFlags(fs *pflag.FlagSet, cfg *Config) {
	str := func(name string, dst *string) {
		flagx.Changed(fs, name, func() { *dst, _ = fs.GetString(name) })
	}
	boolean := func(name string, dst *bool) {
		flagx.Changed(fs, name, func() { *dst, _ = fs.GetBool(name) })
	}

	str("server", &cfg.ServerURL)
	str("health", &cfg.HealthAddr)
	str("data-dir", &cfg.DataDir)
	boolean("ephemeral", &cfg.Ephemeral)
	boolean("offline", &cfg.Offline)
	flagx.Changed(fs, "online-check", func() { cfg.OnlineCheckInterval, _ = fs.GetDuration("online-check") })
	flagx.Changed(fs, "queue-interval", func() { cfg.QueueInterval, _ = fs.GetDuration("queue-interval") })
	str("log-level", &cfg.LogLevel)
	str("log-format", &cfg.LogFormat)
	str("export-dir", &cfg.ExportDir)
	str("s3-bucket", &cfg.S3.Bucket)
}
