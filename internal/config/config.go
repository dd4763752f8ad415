// Package config layers configuration: defaults, then a YAML or JSON file,
// then RESFORGE_* environment variables. Command line flags are applied last
// by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"runtime"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Profile     string `yaml:"profile" json:"profile"`
	SpecDir     string `yaml:"specDir" json:"specDir"`
	SpecPattern string `yaml:"specPattern" json:"specPattern"`
	EnumsDir    string `yaml:"enumsDir" json:"enumsDir"`
	OutDir      string `yaml:"outDir" json:"outDir"`

	// Force overwrites files that differ from the rendered content.
	Force bool `yaml:"force" json:"force"`
	// Strict withholds emission when artifacts disagree.
	Strict  bool `yaml:"strict" json:"strict"`
	Workers int  `yaml:"workers" json:"workers"`

	Port  string `yaml:"port" json:"port"`
	DBURL string `yaml:"dbUrl" json:"dbUrl"`

	LogLevel  string `yaml:"logLevel" json:"logLevel"`
	LogFormat string `yaml:"logFormat" json:"logFormat"` // json | console

	WatchDebounce time.Duration `yaml:"watchDebounce" json:"watchDebounce"`
}

func Default() Config {
	return Config{
		Profile:       "gogin",
		SpecDir:       "specs",
		SpecPattern:   "**/*.{dsl,yaml,yml}",
		EnumsDir:      "reference/enums",
		OutDir:        ".",
		Workers:       runtime.GOMAXPROCS(0),
		Port:          "8080",
		LogLevel:      "info",
		LogFormat:     "console",
		WatchDebounce: 300 * time.Millisecond,
	}
}

// DefaultPath is read when no path is given and the file exists.
const DefaultPath = "resforge.yaml"

// Load applies the file at path (if any) and the environment over the
// defaults. A missing file is an error only when path was given explicitly.
func Load(path string) (Config, error) {
	cfg := Default()
	explicit := path != ""
	if !explicit {
		path = DefaultPath
	}
	if err := loadFile(path, &cfg); err != nil {
		if explicit || !errors.Is(err, os.ErrNotExist) {
			return cfg, err
		}
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// loadFile decodes YAML; JSON files decode the same way.
func loadFile(path string, cfg *Config) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return fmt.Errorf("config %s: %w", path, err)
	}
	return nil
}

func getenv(k, fallback string) string {
	if v, ok := os.LookupEnv(k); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return fallback
}

func getenvBool(k string, fallback bool) bool {
	if v, ok := os.LookupEnv(k); ok {
		v = strings.TrimSpace(strings.ToLower(v))
		if v == "1" || v == "true" || v == "yes" {
			return true
		}
		if v == "0" || v == "false" || v == "no" {
			return false
		}
	}
	return fallback
}

func applyEnv(cfg *Config) error {
	cfg.Profile = getenv("RESFORGE_PROFILE", cfg.Profile)
	cfg.SpecDir = getenv("RESFORGE_SPEC_DIR", cfg.SpecDir)
	cfg.SpecPattern = getenv("RESFORGE_SPEC_PATTERN", cfg.SpecPattern)
	cfg.EnumsDir = getenv("RESFORGE_ENUMS_DIR", cfg.EnumsDir)
	cfg.OutDir = getenv("RESFORGE_OUT_DIR", cfg.OutDir)
	cfg.Force = getenvBool("RESFORGE_FORCE", cfg.Force)
	cfg.Strict = getenvBool("RESFORGE_STRICT", cfg.Strict)
	cfg.Port = getenv("RESFORGE_PORT", cfg.Port)
	cfg.DBURL = getenv("RESFORGE_DB_URL", cfg.DBURL)
	cfg.LogLevel = getenv("RESFORGE_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getenv("RESFORGE_LOG_FORMAT", cfg.LogFormat)

	if v := getenv("RESFORGE_WORKERS", ""); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("RESFORGE_WORKERS: %w", err)
		}
		cfg.Workers = n
	}
	if v := getenv("RESFORGE_WATCH_DEBOUNCE", ""); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("RESFORGE_WATCH_DEBOUNCE: %w", err)
		}
		cfg.WatchDebounce = d
	}
	return nil
}

func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Profile) == "" {
		errs = append(errs, errors.New("profile is empty"))
	}
	if strings.TrimSpace(c.OutDir) == "" {
		errs = append(errs, errors.New("outDir is empty"))
	}
	if c.Workers <= 0 {
		errs = append(errs, fmt.Errorf("workers must be positive, got %d", c.Workers))
	}
	if c.WatchDebounce < 0 {
		errs = append(errs, errors.New("watchDebounce is negative"))
	}
	switch c.LogFormat {
	case "json", "console":
	default:
		errs = append(errs, fmt.Errorf("logFormat must be json or console, got %q", c.LogFormat))
	}
	return errors.Join(errs...)
}
