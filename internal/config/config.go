// Package config loads the YAML workspace file that tells lsifq which
// databases serve which workspace roots.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/jward/lsifq/internal/uris"
)

// Config is the workspace file.
type Config struct {
	LogLevel      string      `yaml:"logLevel,omitempty" validate:"omitempty,oneof=debug info warn error"`
	MaxChainDepth int         `yaml:"maxChainDepth,omitempty" validate:"gte=0"`
	Workspaces    []Workspace `yaml:"workspaces" validate:"required,min=1,unique=Root,dive"`
}

// Workspace binds one database to the root its documents are served under.
type Workspace struct {
	// Root is the client-side root URI. Paths are converted to file URIs.
	Root string `yaml:"root" validate:"required,rooturi"`
	// Database is the dump or SQLite file, relative to the config file.
	Database string `yaml:"database" validate:"required"`
	// Format forces a backend instead of detecting it.
	Format string `yaml:"format,omitempty" validate:"omitempty,oneof=lsif graph blob"`
	// Scheme, when set, exposes documents under a virtual URI scheme.
	Scheme string `yaml:"scheme,omitempty" validate:"omitempty,alpha,lowercase"`
	// Version selects a blob build version by tag.
	Version string `yaml:"version,omitempty"`
}

var validate *validator.Validate

func init() {
	validate = validator.New()
	_ = validate.RegisterValidation("rooturi", validateRootURI)
}

// validateRootURI accepts absolute URIs with a path.
func validateRootURI(fl validator.FieldLevel) bool {
	u, err := url.Parse(fl.Field().String())
	return err == nil && u.Scheme != "" && u.Path != ""
}

// Load reads and validates the config file at path.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	cfg, err := Parse(data, filepath.Dir(path))
	if err != nil {
		return nil, fmt.Errorf("config %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes and validates a config. Relative database paths are
// resolved against baseDir.
func Parse(data []byte, baseDir string) (*Config, error) {
	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		return nil, fmt.Errorf("parse: %w", err)
	}
	for i := range cfg.Workspaces {
		ws := &cfg.Workspaces[i]
		if ws.Root != "" {
			ws.Root = strings.TrimSuffix(uris.FromPath(ws.Root), "/")
		}
		if ws.Database != "" && !filepath.IsAbs(ws.Database) {
			ws.Database = filepath.Join(baseDir, ws.Database)
		}
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the struct tags of c and its workspaces.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %q", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Level returns the slog level named by LogLevel, defaulting to info.
func (c *Config) Level() slog.Level {
	return ParseLevel(c.LogLevel)
}

// ParseLevel maps debug, info, warn and error to slog levels. Anything
// else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
