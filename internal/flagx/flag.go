// Package flagx layers configuration sources: a TOML file, the process
// environment (optionally seeded from .env files) and explicitly set
// command-line flags. Later sources override earlier ones.
package flagx

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/spf13/pflag"
)

// ReadTOML decodes the file at path into dst. An empty path is a no-op.
//
// Unknown keys are rejected so that typos surface at startup instead of
// being silently ignored.
func ReadTOML(path string, dst any) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("cannot read config %s: %w", path, err)
	}
	defer f.Close()

	dec := toml.NewDecoder(f).DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return fmt.Errorf("cannot parse config %s: %w", path, err)
	}
	return nil
}

// LoadDotenv loads the given .env files into the process environment without
// overriding variables that are already set. Missing files are skipped.
func LoadDotenv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("cannot load %s: %w", f, err)
		}
	}
	return nil
}

// Env reads prefixed environment variables. Lookups with a malformed value
// record the first error, which Err returns.
type Env struct {
	Prefix string
	lookup func(string) (string, bool)
	err    error
}

func NewEnv(prefix string) *Env {
	return &Env{Prefix: prefix, lookup: os.LookupEnv}
}

func (e *Env) get(name string) (string, bool) {
	v, ok := e.lookup(e.Prefix + name)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (e *Env) fail(name string, err error) {
	if e.err == nil {
		e.err = fmt.Errorf("%s%s: %w", e.Prefix, name, err)
	}
}

func (e *Env) String(name string, dst *string) {
	if v, ok := e.get(name); ok {
		*dst = v
	}
}

func (e *Env) Bool(name string, dst *bool) {
	if v, ok := e.get(name); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = b
	}
}

func (e *Env) Int(name string, dst *int) {
	if v, ok := e.get(name); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = n
	}
}

// List splits a comma-separated value, dropping empty items.
func (e *Env) List(name string, dst *[]string) {
	if v, ok := e.get(name); ok {
		var out []string
		for _, item := range strings.Split(v, ",") {
			if item = strings.TrimSpace(item); item != "" {
				out = append(out, item)
			}
		}
		*dst = out
	}
}

// Duration accepts Go duration strings ("3s") or plain seconds ("3").
func (e *Env) Duration(name string, dst *time.Duration) {
	if v, ok := e.get(name); ok {
		d, err := ParseDuration(v)
		if err != nil {
			e.fail(name, err)
			return
		}
		*dst = d
	}
}

func (e *Env) Err() error {
	return e.err
}

// ParseDuration parses a Go duration string or a bare number of seconds.
func ParseDuration(s string) (time.Duration, error) {
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second, nil
	}
	return time.ParseDuration(s)
}

// Changed runs apply only when the named flag was set on the command line,
// so flag defaults never clobber values from the file or the environment.
func Changed(fs *pflag.FlagSet, name string, apply func()) {
	if fs == nil {
		return
	}
	if f := fs.Lookup(name); f != nil && f.Changed {
		apply()
	}
}
