// Package config loads monodb's configuration from CLI flags, MONODB_*
// environment variables, a YAML file, and finally defaults, in that
// precedence order — the same layering marmos91-dittofs/pkg/config
// documents for DittoFS, reapplied to a single WAL-plus-server process
// instead of a filesystem daemon.
package config

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

// Config is the whole of monodb's static configuration: where the WAL
// lives, how big its segments are, where the socket server listens, and
// how to log. Nothing dynamic (tables, rows, schema) lives here — NSQL
// statements are the only way to change that, and they go through the
// WAL, not a config file.
type Config struct {
	WAL     WALConfig     `mapstructure:"wal" yaml:"wal"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging"`
}

// WALConfig configures the write-ahead log.
type WALConfig struct {
	// Dir is the directory segment files live in.
	Dir string `mapstructure:"dir" yaml:"dir"`

	// SegmentSize is the fixed size, in bytes, of each preallocated
	// segment file. Human-readable strings ("16MB") are accepted.
	SegmentSize uint32 `mapstructure:"segment_size" yaml:"segment_size"`
}

// ServerConfig configures the NSQL socket server.
type ServerConfig struct {
	// Addr is the "host:port" the server listens on.
	Addr string `mapstructure:"addr" yaml:"addr"`
}

// LoggingConfig controls logrus output.
type LoggingConfig struct {
	// Level is the minimum log level: debug, info, warn, or error.
	Level string `mapstructure:"level" yaml:"level"`

	// Format is "text" or "json".
	Format string `mapstructure:"format" yaml:"format"`
}

// Defaults, applied when a config file is absent or a field is unset.
const (
	DefaultDir         = "./monodb-data"
	DefaultSegmentSize = 16 * 1024 * 1024 // 16 MiB
	DefaultAddr        = "127.0.0.1:5433"
	DefaultLevel       = "info"
	DefaultFormat      = "text"
)

// Load reads configuration from configPath (YAML; empty uses no file at
// all, just env and defaults), overlays MONODB_* environment variables,
// and fills in defaults for anything still unset. CLI flags are applied
// by the caller via v.BindPFlag before Load is called, so they take the
// highest precedence of all.
func Load(v *viper.Viper, configPath string) (*Config, error) {
	setDefaults(v)

	v.SetEnvPrefix("MONODB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("config: read %s: %w", configPath, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg, viper.DecodeHook(stringToByteSizeHookFunc())); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("wal.dir", DefaultDir)
	v.SetDefault("wal.segment_size", DefaultSegmentSize)
	v.SetDefault("server.addr", DefaultAddr)
	v.SetDefault("logging.level", DefaultLevel)
	v.SetDefault("logging.format", DefaultFormat)
}

// stringToByteSizeHookFunc lets wal.segment_size be written as either a
// plain integer or a human-readable size string ("16MB", "512KiB") in a
// YAML file or MONODB_WAL_SEGMENT_SIZE env var; humanize.ParseBytes does
// the actual parsing, the same library wal/segment.go uses to format sizes
// back into log messages.
func stringToByteSizeHookFunc() mapstructure.DecodeHookFunc {
	return func(from reflect.Type, to reflect.Type, data interface{}) (interface{}, error) {
		if from.Kind() != reflect.String {
			return data, nil
		}
		switch to.Kind() {
		case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		default:
			return data, nil
		}
		s, ok := data.(string)
		if !ok {
			return data, nil
		}
		n, err := humanize.ParseBytes(s)
		if err != nil {
			return nil, fmt.Errorf("config: %q is not a valid byte size: %w", s, err)
		}
		return n, nil
	}
}

func validate(cfg *Config) error {
	if cfg.WAL.Dir == "" {
		return fmt.Errorf("config: wal.dir must not be empty")
	}
	if cfg.WAL.SegmentSize == 0 {
		return fmt.Errorf("config: wal.segment_size must be positive")
	}
	if cfg.Server.Addr == "" {
		return fmt.Errorf("config: server.addr must not be empty")
	}
	return nil
}
