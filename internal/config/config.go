// Package config loads the dalgen manifest: project layout, logging, and the
// entity list (inline plus JSONPath imports).
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
	"golang.org/x/mod/modfile"

	"github.com/agentic-research/dalgen/api"
	"github.com/agentic-research/dalgen/internal/builder"
	"github.com/agentic-research/dalgen/internal/synth"
)

// DefaultFileName is looked up from the working directory upward.
const DefaultFileName = "dalgen.yaml"

var (
	ErrNotFound        = errors.New("config file not found")
	ErrInvalidManifest = errors.New("invalid manifest")
)

type Config struct {
	api.Manifest `mapstructure:",squash"`

	// Root is the project directory. Relative paths resolve against the
	// directory of the config file.
	Root        string    `mapstructure:"root"`
	Paths       Paths     `mapstructure:"paths"`
	Concurrency int       `mapstructure:"concurrency"`
	Ledger      string    `mapstructure:"ledger"` // SQLite run history; empty disables
	Log         LogConfig `mapstructure:"log"`

	file string
	v    *viper.Viper
}

// Paths are artifact locations relative to Root.
type Paths struct {
	UnitOfWork     string `mapstructure:"unit_of_work"`
	Repositories   string `mapstructure:"repositories"`
	Abstract       string `mapstructure:"abstract"`
	Configurations string `mapstructure:"configurations"`
	Entities       string `mapstructure:"entities"`
}

type LogConfig struct {
	Level      string `mapstructure:"level"` // debug/info/warn/error
	File       string `mapstructure:"file"`
	MaxSize    int    `mapstructure:"max_size"` // MB
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAge     int    `mapstructure:"max_age"` // days
	Compress   bool   `mapstructure:"compress"`
}

// File returns the path of the config file that was read.
func (c *Config) File() string { return c.file }

// Package returns the import path of a directory under Root.
func (c *Config) Package(dir string) string {
	return c.Module + "/" + filepath.ToSlash(dir)
}

// Load reads the config at path, or searches for DefaultFileName upward
// from the working directory when path is empty.
func Load(path string) (*Config, error) {
	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, err
		}
		if path, err = findUpward(wd); err != nil {
			return nil, err
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, err
	}
	if _, err := os.Stat(abs); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, abs)
	}

	v := viper.New()
	v.SetConfigFile(abs)
	v.SetEnvPrefix("DALGEN")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	return read(v, abs)
}

// Watch calls onChange with a freshly loaded config (or the load error)
// every time the config file changes on disk.
func (c *Config) Watch(onChange func(*Config, error)) {
	c.v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		onChange(read(c.v, c.file))
	})
	c.v.WatchConfig()
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("version", "v1")
	v.SetDefault("root", ".")
	v.SetDefault("module", "")
	v.SetDefault("paths.unit_of_work", synth.DefaultUnitOfWorkPath)
	v.SetDefault("paths.repositories", synth.DefaultRepositoriesPath)
	v.SetDefault("paths.abstract", builder.DefaultRepositoryDir)
	v.SetDefault("paths.configurations", builder.DefaultConfigurationDir)
	v.SetDefault("paths.entities", builder.DefaultEntitiesDir)
	v.SetDefault("concurrency", 4)
	v.SetDefault("ledger", ".dalgen/ledger.db")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 3)
	v.SetDefault("log.max_age", 28)
	v.SetDefault("log.compress", false)
}

func read(v *viper.Viper, file string) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config %s: %w", file, err)
	}
	c := &Config{file: file, v: v}
	if err := v.Unmarshal(c); err != nil {
		return nil, fmt.Errorf("decode config %s: %w", file, err)
	}

	if !filepath.IsAbs(c.Root) {
		c.Root = filepath.Join(filepath.Dir(file), c.Root)
	}
	if c.Ledger != "" && !filepath.IsAbs(c.Ledger) {
		c.Ledger = filepath.Join(c.Root, c.Ledger)
	}
	if c.Concurrency < 1 {
		c.Concurrency = 1
	}
	if c.Module == "" {
		mod, err := modulePath(c.Root)
		if err != nil {
			return nil, err
		}
		c.Module = mod
	}

	imported, err := LoadImports(c.Root, c.Imports)
	if err != nil {
		return nil, err
	}
	c.Entities = append(c.Entities, imported...)
	if err := Validate(c.Entities); err != nil {
		return nil, err
	}
	return c, nil
}

// modulePath reads the module directive of <root>/go.mod.
func modulePath(root string) (string, error) {
	gomod := filepath.Join(root, "go.mod")
	data, err := os.ReadFile(gomod)
	if err != nil {
		return "", fmt.Errorf("%w: no module configured and %s unreadable: %v", ErrInvalidManifest, gomod, err)
	}
	mod := modfile.ModulePath(data)
	if mod == "" {
		return "", fmt.Errorf("%w: cannot find module path in %s", ErrInvalidManifest, gomod)
	}
	return mod, nil
}

func findUpward(start string) (string, error) {
	dir := start
	for {
		candidate := filepath.Join(dir, DefaultFileName)
		if _, err := os.Stat(candidate); err == nil {
			return candidate, nil
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return "", fmt.Errorf("%w: searched %s upward from %s", ErrNotFound, DefaultFileName, start)
		}
		dir = parent
	}
}
