package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
	"github.com/subosito/gotenv"

	"github.com/yurifrl/planillas/pkg/fixedwidth"
	"github.com/yurifrl/planillas/pkg/layout"
)

const envPrefix = "PLANILLAS"

type Config struct {
	Log     LogConfig     `mapstructure:"log"`
	Server  ServerConfig  `mapstructure:"server"`
	WorkDir string        `mapstructure:"work_dir"`
	History HistoryConfig `mapstructure:"history"`
	Session SessionConfig `mapstructure:"session"`
	Cruce   CruceConfig   `mapstructure:"cruce"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	// MaxUpload caps multipart bodies, in bytes.
	MaxUpload int64 `mapstructure:"max_upload"`
}

type HistoryConfig struct {
	// Path of the history database. Empty disables history.
	Path string `mapstructure:"path"`
}

type SessionConfig struct {
	TTL time.Duration `mapstructure:"ttl"`
}

type CruceConfig struct {
	Months         int      `mapstructure:"months"`
	MonthDays      int      `mapstructure:"month_days"`
	Preset         string   `mapstructure:"preset"`
	TypeMarker     string   `mapstructure:"type_marker"`
	Extensions     []string `mapstructure:"extensions"`
	LayoutFile     string   `mapstructure:"layout_file"`
	OutputEncoding string   `mapstructure:"output_encoding"`
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"log-level":   "log.level",
	"addr":        "server.addr",
	"work-dir":    "work_dir",
	"history":     "history.path",
	"session-ttl": "session.ttl",
	"months":      "cruce.months",
	"month-days":  "cruce.month_days",
	"preset":      "cruce.preset",
	"layout":      "cruce.layout_file",
	"encoding":    "cruce.output_encoding",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("log.level", "info")
	v.SetDefault("server.addr", ":8000")
	v.SetDefault("server.max_upload", 512<<20)
	v.SetDefault("work_dir", filepath.Join(os.TempDir(), "planillas"))
	v.SetDefault("history.path", "planillas.db")
	v.SetDefault("session.ttl", "2h")
	v.SetDefault("cruce.months", 1)
	v.SetDefault("cruce.month_days", 30)
	v.SetDefault("cruce.preset", layout.RegexDigits)
	v.SetDefault("cruce.type_marker", "_I_")
	v.SetDefault("cruce.extensions", []string{".txt"})
	v.SetDefault("cruce.layout_file", "")
	v.SetDefault("cruce.output_encoding", string(fixedwidth.Latin1))
}

// AddFlags registers the flags Build knows how to bind.
func AddFlags(flags *pflag.FlagSet) {
	flags.String("log-level", "info", "Log level (debug, info, warn, error)")
	flags.String("work-dir", "", "Directory for per-run working files")
	flags.String("history", "", "History database path (empty string keeps the configured one)")
	flags.Int("months", 1, "Months back from today still counted as current")
	flags.Int("month-days", 30, "Days per month when computing the cutoff")
	flags.String("preset", layout.RegexDigits, "Layout preset ("+strings.Join(layout.Names(), ", ")+")")
	flags.String("layout", "", "YAML layout file overriding the preset")
	flags.String("encoding", "", "Output encoding (latin1, windows1252, utf8)")
}

// Build reads configuration from defaults, an optional .env file, the
// config file, PLANILLAS_* environment variables and changed flags, in
// increasing order of precedence.
func Build(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			f := flags.Lookup(name)
			if f == nil || !f.Changed {
				continue
			}
			if err := v.BindPFlag(key, f); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) Validate() error {
	if _, err := log.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("log.level: %w", err)
	}
	if c.Cruce.Months < 0 {
		return fmt.Errorf("cruce.months must not be negative")
	}
	if _, err := fixedwidth.ParseCharset(c.Cruce.OutputEncoding); err != nil {
		return fmt.Errorf("cruce.output_encoding: %w", err)
	}
	if c.Cruce.LayoutFile == "" {
		if _, err := layout.Get(c.Cruce.Preset); err != nil {
			return fmt.Errorf("cruce.preset: %w", err)
		}
	}
	return nil
}

// Logger builds the process logger at the configured level.
func (c *Config) Logger(prefix string) *log.Logger {
	level, _ := log.ParseLevel(c.Log.Level)
	return log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    true,
		ReportTimestamp: true,
		Prefix:          prefix,
		Level:           level,
	})
}

// Preset resolves the layout: the layout file when set, otherwise the named
// preset, with the configured type marker and extensions applied on top.
func (c *Config) Preset() (layout.Preset, error) {
	var p layout.Preset
	var err error
	if c.Cruce.LayoutFile != "" {
		p, err = layout.Load(c.Cruce.LayoutFile)
	} else {
		p, err = layout.Get(c.Cruce.Preset)
	}
	if err != nil {
		return layout.Preset{}, err
	}
	if c.Cruce.TypeMarker != "" {
		p.Detail.TypeMarker = c.Cruce.TypeMarker
	}
	if len(c.Cruce.Extensions) > 0 {
		p.Detail.Extensions = c.Cruce.Extensions
	}
	return p, p.Validate()
}

func (c *Config) Charset() fixedwidth.Charset {
	cs, _ := fixedwidth.ParseCharset(c.Cruce.OutputEncoding)
	return cs
}
