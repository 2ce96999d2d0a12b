package config

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sitesync/pkg/api"
)

const sample = `
store:
  backend: sqlite
sql:
  dsn: ${SITESYNC_TEST_DIR:-/tmp}/sync.db
redis:
  addr: localhost:6379
sync:
  page_size: 50
  refresh_interval: 2s
  local_site: studio
  remote_site: gdrive
projects:
  commercial:
    local_site: london
    remote_site: sftp
workfiles:
  extensions: [".nk"]
log:
  level: debug
  format: json
`

func TestParse_OverlaysDefaults(t *testing.T) {
	t.Setenv("SITESYNC_TEST_DIR", "/data")

	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	assert.Equal(t, BackendSQLite, cfg.Store.Backend)
	assert.Equal(t, "/data/sync.db", cfg.SQL.DSN)
	assert.Equal(t, 50, cfg.Sync.PageSize)
	assert.Equal(t, 30, cfg.Sync.DetailPageSize, "default kept")
	assert.Equal(t, 2*time.Second, cfg.Sync.RefreshInterval)
	assert.Equal(t, "sitesync:", cfg.Redis.Prefix, "default kept")
	assert.Equal(t, []string{".nk"}, cfg.Workfiles.Extensions)
	assert.Equal(t, "avalon", cfg.Mongo.Database)
}

func TestParse_ExpandsDefaultValue(t *testing.T) {
	t.Setenv("SITESYNC_TEST_DIR", "")
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/sync.db", cfg.SQL.DSN)
}

func TestSitesForProject(t *testing.T) {
	ctx := context.Background()
	cfg, err := Parse([]byte(sample))
	require.NoError(t, err)

	local, remote, err := cfg.SitesForProject(ctx, "commercial")
	require.NoError(t, err)
	assert.Equal(t, "london", local)
	assert.Equal(t, "sftp", remote)

	local, remote, err = cfg.SitesForProject(ctx, "feature")
	require.NoError(t, err)
	assert.Equal(t, "studio", local)
	assert.Equal(t, "gdrive", remote)

	_, _, err = Default().SitesForProject(ctx, "feature")
	assert.ErrorIs(t, err, api.ErrUnknownProject)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"backend", "store: {backend: cassandra}", "store.backend"},
		{"page size", "sync: {page_size: 0}", "sync.page_size"},
		{"interval", "sync: {refresh_interval: -1s}", "sync.refresh_interval"},
		{"project sites", "projects: {p: {local_site: a}}", "projects.p"},
		{"log level", "log: {level: loud}", "log.level"},
		{"log format", "log: {format: xml}", "log.format"},
		{"sql dsn", "store: {backend: postgres}\nsql: {dsn: ''}", "sql.dsn"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.doc))
			require.Error(t, err)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sitesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte("store: {backend: memory}\n"), 0o644))

	t.Setenv(EnvConfig, path)
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMemory, cfg.Store.Backend)

	t.Setenv(EnvConfig, "")
	cfg, err = Load("")
	require.NoError(t, err)
	assert.Equal(t, BackendMongo, cfg.Store.Backend)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestLogConfig_NewLogger(t *testing.T) {
	var buf bytes.Buffer
	logger, err := LogConfig{Level: "warn", Format: "json"}.NewLogger(&buf)
	require.NoError(t, err)

	logger.Info("hidden")
	logger.Warn("shown", "k", "v")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), `"msg":"shown"`)
	assert.Contains(t, buf.String(), `"k":"v"`)

	_, err = LogConfig{Level: "info", Format: "xml"}.NewLogger(&buf)
	assert.Error(t, err)
}
