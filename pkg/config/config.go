// Package config loads pipeline configuration for embedding applications:
// which filters, masks and sort order to apply, how packets are compressed,
// and how the root logger is built.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"github.com/tabwire/tabwire/pkg/compress"
	"github.com/tabwire/tabwire/pkg/filter"
	"github.com/tabwire/tabwire/pkg/mask"
	"github.com/tabwire/tabwire/pkg/rowcodec"
	"github.com/tabwire/tabwire/pkg/sorting"
)

// Config holds everything an embedding application needs to assemble a
// packet pipeline. The Filters, Masks and Sort sections come out as the
// engine types so they can be handed over without translation.
type Config struct {
	Logging     LoggingConfig
	Codec       CodecConfig
	Compression CompressionConfig
	Filters     []filter.Spec
	Masks       []mask.Config
	Sort        []sorting.Spec
}

type LoggingConfig struct {
	Level  string // debug, info, warn, error, fatal, panic
	Format string // json or console
}

type CodecConfig struct {
	LengthPolicy string // reject or truncate, for bounded TEXT overflow
}

type CompressionConfig struct {
	Mode    string // none, zstd, gzip, snappy
	Level   int    // zstd level; the registry clamps to 1..19
	MinSize int    // row blocks below this many bytes ship uncompressed
}

// Load reads configuration from defaults, an optional config file and the
// environment. A non-empty path names the file explicitly and must exist;
// with an empty path, tabwire.yaml is searched in ".", "/etc/tabwire/" and
// "$HOME/.tabwire/", and a missing file just means defaults. Environment
// variables use the TABWIRE_ prefix with underscores for dots, e.g.
// TABWIRE_COMPRESSION_MODE.
func Load(path string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("TABWIRE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	} else {
		v.SetConfigName("tabwire")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("/etc/tabwire/")
		v.AddConfigPath("$HOME/.tabwire/")

		if err := v.ReadInConfig(); err != nil {
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config: %w", err)
			}
			// Config file not found is OK, use defaults
		}
	}

	cfg := &Config{
		Logging: LoggingConfig{
			Level:  v.GetString("logging.level"),
			Format: v.GetString("logging.format"),
		},
		Codec: CodecConfig{
			LengthPolicy: v.GetString("codec.length_policy"),
		},
		Compression: CompressionConfig{
			Mode:    v.GetString("compression.mode"),
			Level:   v.GetInt("compression.level"),
			MinSize: v.GetInt("compression.min_size"),
		},
	}

	if err := v.UnmarshalKey("filters", &cfg.Filters); err != nil {
		return nil, fmt.Errorf("invalid filters section: %w", err)
	}
	if err := v.UnmarshalKey("masks", &cfg.Masks); err != nil {
		return nil, fmt.Errorf("invalid masks section: %w", err)
	}

	// Sort accepts the compact string form too, so TABWIRE_SORT can carry
	// it; a list of maps cannot come in through the environment.
	if s := v.GetString("sort"); s != "" {
		specs, err := ParseSortList(s)
		if err != nil {
			return nil, fmt.Errorf("invalid sort: %w", err)
		}
		cfg.Sort = specs
	} else if err := v.UnmarshalKey("sort", &cfg.Sort); err != nil {
		return nil, fmt.Errorf("invalid sort section: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	// Codec defaults
	v.SetDefault("codec.length_policy", "reject")

	// Compression defaults
	v.SetDefault("compression.mode", "none")
	v.SetDefault("compression.level", 3)      // zstd speed/ratio sweet spot
	v.SetDefault("compression.min_size", 512) // tiny row blocks gain nothing
}

// Validate cross-checks every closed set the sections reference. Loaded
// configs are already validated; call it again after mutating one.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Logging.Format) {
	case "", "json", "console":
	default:
		return fmt.Errorf("unknown logging.format %q (use json or console)", c.Logging.Format)
	}
	if _, err := rowcodec.ParseLengthPolicy(c.Codec.LengthPolicy); err != nil {
		return fmt.Errorf("invalid codec.length_policy: %w", err)
	}
	if _, err := compress.ParseMode(c.Compression.Mode); err != nil {
		return fmt.Errorf("invalid compression.mode: %w", err)
	}
	if c.Compression.MinSize < 0 {
		return fmt.Errorf("compression.min_size cannot be negative: %d", c.Compression.MinSize)
	}

	for i, spec := range c.Filters {
		if strings.TrimSpace(spec.Field) == "" {
			return fmt.Errorf("filters[%d]: field is required", i)
		}
		if _, err := filter.ParseOp(string(spec.Op)); err != nil {
			return fmt.Errorf("filters[%d]: %w", i, err)
		}
	}
	for i, mc := range c.Masks {
		if err := mc.Validate(); err != nil {
			return fmt.Errorf("masks[%d]: %w", i, err)
		}
	}
	for i, sp := range c.Sort {
		if strings.TrimSpace(sp.Field) == "" {
			return fmt.Errorf("sort[%d]: field is required", i)
		}
		if _, err := sorting.ParseDirection(string(sp.Direction)); err != nil {
			return fmt.Errorf("sort[%d]: %w", i, err)
		}
	}
	return nil
}

// LengthPolicy returns the codec section's policy as the rowcodec type.
func (c *Config) LengthPolicy() (rowcodec.LengthPolicy, error) {
	return rowcodec.ParseLengthPolicy(c.Codec.LengthPolicy)
}

// CompressionMode returns the compression section's mode as the compress
// type.
func (c *Config) CompressionMode() (compress.Mode, error) {
	return compress.ParseMode(c.Compression.Mode)
}
