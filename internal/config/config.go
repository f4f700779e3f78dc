package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// Config holds file- and environment-driven configuration.
type Config struct {
	Storage struct {
		Driver string `mapstructure:"driver"` // sqlite (default) or mysql
		Path   string `mapstructure:"path"`   // sqlite database file
		DSN    string `mapstructure:"dsn"`    // e.g., user:pass@tcp(host:3306)/dbname
	} `mapstructure:"storage"`
	HTTP struct {
		Addr        string   `mapstructure:"addr"`
		CORSOrigins []string `mapstructure:"cors_origins"`
	} `mapstructure:"http"`
	Log struct {
		Level string `mapstructure:"level"`
		File  string `mapstructure:"file"`
	} `mapstructure:"log"`
	View struct {
		Interval time.Duration `mapstructure:"interval"`
	} `mapstructure:"view"`
	Shutdown struct {
		Timeout time.Duration `mapstructure:"timeout"`
	} `mapstructure:"shutdown"`

	// Path is the file the configuration was read from.
	Path string `mapstructure:"-"`
}

// EnvPrefix prefixes environment overrides, e.g. TRACKER_STORAGE_DRIVER.
const EnvPrefix = "TRACKER"

// Dir returns the per-user application directory.
func Dir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".time-tracker"
	}
	return filepath.Join(home, ".time-tracker")
}

// DefaultPath returns the config file location used when none is given.
func DefaultPath() string {
	return filepath.Join(Dir(), "config.yaml")
}

func setDefaults(v *viper.Viper, dir string) {
	v.SetDefault("storage.driver", "sqlite")
	v.SetDefault("storage.path", filepath.Join(dir, "trackers.db"))
	v.SetDefault("storage.dsn", "")
	v.SetDefault("http.addr", "127.0.0.1:7421")
	v.SetDefault("http.cors_origins", []string{"http://localhost", "http://127.0.0.1"})
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("view.interval", time.Second)
	v.SetDefault("shutdown.timeout", 10*time.Second)
}

// Load reads path (DefaultPath when empty), writing an annotated default file
// first if none exists. TRACKER_* variables override file values; MYSQL_DSN
// is honoured for storage.dsn.
func Load(path string) (Config, error) {
	var cfg Config
	if path == "" {
		path = DefaultPath()
	}
	dir := filepath.Dir(path)

	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := WriteDefault(path); err != nil {
			return cfg, fmt.Errorf("write default config: %w", err)
		}
	}

	v := viper.New()
	setDefaults(v, dir)
	v.SetConfigFile(path)
	v.SetConfigType("yaml")
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("storage.dsn", EnvPrefix+"_STORAGE_DSN", "MYSQL_DSN"); err != nil {
		return cfg, err
	}

	if err := v.ReadInConfig(); err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := v.Unmarshal(&cfg); err != nil {
		return cfg, fmt.Errorf("decode config %s: %w", path, err)
	}
	cfg.Path = path
	cfg.Storage.Driver = strings.ToLower(strings.TrimSpace(cfg.Storage.Driver))
	return cfg, cfg.Validate()
}

// Validate checks the values the application cannot start without.
func (c Config) Validate() error {
	switch c.Storage.Driver {
	case "sqlite", "sqlite3":
		if c.Storage.Path == "" {
			return errors.New("storage.path is required for sqlite")
		}
	case "mysql":
		if c.Storage.DSN == "" {
			return errors.New("storage.dsn (or MYSQL_DSN) is required for mysql")
		}
	default:
		return fmt.Errorf("storage.driver must be sqlite or mysql, got %q", c.Storage.Driver)
	}
	if c.View.Interval <= 0 {
		return errors.New("view.interval must be positive")
	}
	if c.Shutdown.Timeout <= 0 {
		return errors.New("shutdown.timeout must be positive")
	}
	return nil
}

type defaultFile struct {
	Storage struct {
		Driver string `yaml:"driver"`
		Path   string `yaml:"path"`
		DSN    string `yaml:"dsn"`
	} `yaml:"storage"`
	HTTP struct {
		Addr        string   `yaml:"addr"`
		CORSOrigins []string `yaml:"cors_origins"`
	} `yaml:"http"`
	Log struct {
		Level string `yaml:"level"`
		File  string `yaml:"file"`
	} `yaml:"log"`
	View struct {
		Interval string `yaml:"interval"`
	} `yaml:"view"`
	Shutdown struct {
		Timeout string `yaml:"timeout"`
	} `yaml:"shutdown"`
}

// WriteDefault writes the default configuration to path, creating parent
// directories as needed.
func WriteDefault(path string) error {
	v := viper.New()
	setDefaults(v, filepath.Dir(path))

	var f defaultFile
	f.Storage.Driver = v.GetString("storage.driver")
	f.Storage.Path = v.GetString("storage.path")
	f.HTTP.Addr = v.GetString("http.addr")
	f.HTTP.CORSOrigins = v.GetStringSlice("http.cors_origins")
	f.Log.Level = v.GetString("log.level")
	f.View.Interval = v.GetDuration("view.interval").String()
	f.Shutdown.Timeout = v.GetDuration("shutdown.timeout").String()

	var doc yaml.Node
	if err := doc.Encode(&f); err != nil {
		return err
	}
	doc.HeadComment = "time-tracker configuration. Environment variables TRACKER_<SECTION>_<KEY> override these values."
	annotate(&doc, map[string]string{
		"storage":  "driver: sqlite or mysql; dsn is used by mysql only",
		"log":      "level: debug, info, warn or error; file enables a rotating JSON log",
		"view":     "how often the in-memory view is reconciled",
		"shutdown": "time allowed to stop running sessions on exit",
	})

	data, err := yaml.Marshal(&doc)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// annotate attaches head comments to top-level mapping keys.
func annotate(doc *yaml.Node, comments map[string]string) {
	if doc.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(doc.Content); i += 2 {
		if c, ok := comments[doc.Content[i].Value]; ok {
			doc.Content[i].HeadComment = c
		}
	}
}
