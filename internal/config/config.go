// Package config loads the sitesync configuration file.
//
// The file is named by the --config flag or the SITESYNC_CONFIG environment
// variable and is decoded over Default(). Without either, Default() is used
// as is.
package config

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"regexp"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/petrijr/sitesync/pkg/api"
)

// EnvConfig names the environment variable holding the config file path.
const EnvConfig = "SITESYNC_CONFIG"

// Store backends.
const (
	BackendMongo    = "mongo"
	BackendSQLite   = "sqlite"
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

// Config is the sitesync configuration.
type Config struct {
	Store     StoreConfig              `yaml:"store"`
	Mongo     MongoConfig              `yaml:"mongo"`
	SQL       SQLConfig                `yaml:"sql"`
	Redis     RedisConfig              `yaml:"redis"`
	Sync      SyncConfig               `yaml:"sync"`
	Projects  map[string]ProjectConfig `yaml:"projects"`
	Farm      FarmConfig               `yaml:"farm"`
	Workfiles WorkfilesConfig          `yaml:"workfiles"`
	Log       LogConfig                `yaml:"log"`
}

// StoreConfig selects the representation store.
type StoreConfig struct {
	// Backend is one of mongo, sqlite, postgres or memory.
	Backend string `yaml:"backend"`
}

// MongoConfig configures the document store. Each project is a collection
// of Database.
type MongoConfig struct {
	URI      string `yaml:"uri"`
	Database string `yaml:"database"`
}

// SQLConfig configures the SQL stores. DSN is a file path for sqlite and a
// connection string for postgres.
type SQLConfig struct {
	DSN string `yaml:"dsn"`
}

// RedisConfig configures change notifications. An empty Addr uses the
// in-process notifier.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
}

// SyncConfig configures the sync status views.
type SyncConfig struct {
	PageSize        int           `yaml:"page_size"`
	DetailPageSize  int           `yaml:"detail_page_size"`
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// LocalSite and RemoteSite apply to projects without their own entry.
	LocalSite  string `yaml:"local_site"`
	RemoteSite string `yaml:"remote_site"`
}

// ProjectConfig holds the sites of one project.
type ProjectConfig struct {
	LocalSite  string `yaml:"local_site"`
	RemoteSite string `yaml:"remote_site"`
}

// FarmConfig points at the farm settings files.
type FarmConfig struct {
	SystemSettings  string `yaml:"system_settings"`
	ProjectSettings string `yaml:"project_settings"`
	Host            string `yaml:"host"`
}

// WorkfilesConfig configures the work files tool.
type WorkfilesConfig struct {
	// Root is a template of the work directory, e.g.
	// "${HOME}/work/{project[name]}/{asset}/{task}".
	Root        string   `yaml:"root"`
	Template    string   `yaml:"template"`
	Extensions  []string `yaml:"extensions"`
	OpenCommand []string `yaml:"open_command"`
	SaveCommand []string `yaml:"save_command"`
}

// LogConfig configures the process logger.
type LogConfig struct {
	// Level is debug, info, warn or error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// Default returns the configuration used before a file is applied.
func Default() *Config {
	return &Config{
		Store: StoreConfig{Backend: BackendMongo},
		Mongo: MongoConfig{
			URI:      "mongodb://localhost:27017",
			Database: "avalon",
		},
		SQL:   SQLConfig{DSN: "sitesync.db"},
		Redis: RedisConfig{Prefix: "sitesync:"},
		Sync: SyncConfig{
			PageSize:        19,
			DetailPageSize:  30,
			RefreshInterval: 5 * time.Second,
		},
		Projects: map[string]ProjectConfig{},
		Farm:     FarmConfig{Host: "nuke"},
		Workfiles: WorkfilesConfig{
			Root:       "${HOME}/work/{project[name]}/{asset}/{task}",
			Template:   "{project[code]}_{asset}_{task}_v{version:0>3}<_{comment}>{ext}",
			Extensions: []string{".ma", ".mb"},
		},
		Log: LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the file named by path, or by SITESYNC_CONFIG when path is
// empty. With neither it returns Default().
func Load(path string) (*Config, error) {
	if path == "" {
		path = os.Getenv(EnvConfig)
	}
	if path == "" {
		cfg := Default()
		cfg.expandVariables()
		return cfg, cfg.Validate()
	}
	return LoadFile(path)
}

// LoadFile decodes the file at path over Default() and validates it.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	return Parse(data)
}

// Parse decodes a YAML document over Default() and validates it.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Projects == nil {
		cfg.Projects = map[string]ProjectConfig{}
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) expandVariables() {
	c.SQL.DSN = expandVars(c.SQL.DSN)
	c.Farm.SystemSettings = expandVars(c.Farm.SystemSettings)
	c.Farm.ProjectSettings = expandVars(c.Farm.ProjectSettings)
	c.Workfiles.Root = expandVars(c.Workfiles.Root)
}

// varPattern matches ${VAR} and ${VAR:-default}.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if v := os.Getenv(parts[1]); v != "" {
			return v
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	switch c.Store.Backend {
	case BackendMongo:
		if c.Mongo.URI == "" {
			errs = append(errs, errors.New("mongo.uri is required"))
		}
	case BackendSQLite, BackendPostgres:
		if c.SQL.DSN == "" {
			errs = append(errs, errors.New("sql.dsn is required"))
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("invalid store.backend: %q", c.Store.Backend))
	}

	if c.Sync.PageSize <= 0 {
		errs = append(errs, errors.New("sync.page_size must be positive"))
	}
	if c.Sync.DetailPageSize <= 0 {
		errs = append(errs, errors.New("sync.detail_page_size must be positive"))
	}
	if c.Sync.RefreshInterval <= 0 {
		errs = append(errs, errors.New("sync.refresh_interval must be positive"))
	}
	for name, p := range c.Projects {
		if p.LocalSite == "" || p.RemoteSite == "" {
			errs = append(errs, fmt.Errorf("projects.%s needs local_site and remote_site", name))
		}
	}
	if _, err := parseLevel(c.Log.Level); err != nil {
		errs = append(errs, err)
	}
	if f := c.Log.Format; f != "text" && f != "json" {
		errs = append(errs, fmt.Errorf("invalid log.format: %q", f))
	}

	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

// SitesForProject returns the sites configured for project, falling back
// to the sync section's sites.
func (c *Config) SitesForProject(ctx context.Context, project string) (string, string, error) {
	if p, ok := c.Projects[project]; ok {
		return p.LocalSite, p.RemoteSite, nil
	}
	if c.Sync.LocalSite != "" && c.Sync.RemoteSite != "" {
		return c.Sync.LocalSite, c.Sync.RemoteSite, nil
	}
	return "", "", fmt.Errorf("%w: %s", api.ErrUnknownProject, project)
}

var _ api.SiteResolver = (*Config)(nil)

func parseLevel(s string) (slog.Level, error) {
	var l slog.Level
	if err := l.UnmarshalText([]byte(strings.ToUpper(s))); err != nil {
		return 0, fmt.Errorf("invalid log.level: %q", s)
	}
	return l, nil
}

// NewLogger builds the process logger writing to w.
func (l LogConfig) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := parseLevel(l.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch l.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "text", "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log.format: %q", l.Format)
	}
}
