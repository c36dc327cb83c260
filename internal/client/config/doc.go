// Package config loads runtime configuration for the goalboard client.
//
// Sources & precedence
//
//  1. Built-in defaults (see (*Config).LoadDefaults).
//  2. Optional TOML file selected with --config.
//  3. Environment variables prefixed GOALBOARD_, seeded from ./.env when present.
//  4. Command-line flags, but only those explicitly set.
//
// # TOML schema
//
// Durations are strings like "3s" or bare seconds:
//
//	server_url = "http://127.0.0.1:8080"
//	health_addr = "127.0.0.1:50051"
//	data_dir = ".goalboard"
//	online_check_interval = "3s"
//	queue_interval = "30s"
//
//	[bootstrap]
//	load_timeout = "10s"
//	retry_delay = "2s"
//	max_retries = 2
//
//	[log]
//	level = "info"
//	format = "auto"
//
//	[export]
//	dir = "exports"
//
//	[export.s3]
//	bucket = "goalboard"
//	region = "us-east-1"
//
// An empty server_url leaves the remote mirror unconfigured: every write stays
// local and nothing is queued.
package config
