package main

import (
	"bytes"
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sitesync"
	"github.com/petrijr/sitesync/internal/config"
)

// execute runs the command tree with args and returns stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd(args, &stdout, &stderr)
	err := cmd.ExecuteContext(context.Background())
	return stdout.String(), err
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sitesync.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func sqliteConfig(t *testing.T) string {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "sync.db")
	return writeConfig(t, `
store:
  backend: sqlite
sql:
  dsn: `+dsn+`
projects:
  demo:
    local_site: studio
    remote_site: gdrive
log:
  level: error
`)
}

func TestSync_ImportListDetailReset(t *testing.T) {
	cfg := sqliteConfig(t)

	out, err := execute(t, "--config", cfg, "sync", "import", "demo", "testdata/representations.yaml")
	require.NoError(t, err)
	assert.Equal(t, "imported 2 representations into demo\n", out)

	out, err = execute(t, "--config", cfg, "sync", "list", "demo")
	require.NoError(t, err)
	assert.Contains(t, out, "ASSET")
	assert.Contains(t, out, "REMOTE_SITE")
	assert.Contains(t, out, "Synced OK")
	assert.Contains(t, out, "gdrive 0.5")
	assert.Contains(t, out, "2 of 2 rows")

	out, err = execute(t, "--config", cfg, "sync", "list", "demo", "--filter", "LAMP")
	require.NoError(t, err)
	assert.NotContains(t, out, "chair")
	assert.Contains(t, out, "1 of 1 rows")

	out, err = execute(t, "--config", cfg, "sync", "detail", "demo", "lamp-look", "--errors")
	require.NoError(t, err)
	assert.Contains(t, out, "lamp_look.ma")
	assert.Contains(t, out, "Failed")
	assert.Contains(t, out, "2 tries")
	assert.Contains(t, out, "  quota exceeded\n")

	_, err = execute(t, "--config", cfg, "sync", "reset", "demo", "chair-model", "f1", "--site", "remote")
	require.NoError(t, err)

	out, err = execute(t, "--config", cfg, "sync", "detail", "demo", "chair-model")
	require.NoError(t, err)
	assert.Contains(t, out, "gdrive 0")
	assert.Contains(t, out, "Queued")
}

func TestSync_Errors(t *testing.T) {
	cfg := sqliteConfig(t)

	_, err := execute(t, "--config", cfg, "sync", "list", "demo", "--sort", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown column")

	_, err = execute(t, "--config", cfg, "sync", "reset", "demo", "x", "f1", "--site", "both")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "must be local or remote")

	_, err = execute(t, "--config", cfg, "sync", "list", "unconfigured")
	assert.Error(t, err)

	_, err = execute(t, "--config", cfg, "sync", "detail", "demo", "missing")
	assert.Error(t, err)
}

func TestRoot_InvalidConfig(t *testing.T) {
	cfg := writeConfig(t, "store:\n  backend: cassandra\n")
	_, err := execute(t, "--config", cfg, "sync", "list", "demo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid store.backend")
}

func TestParseRepresentations_JSON(t *testing.T) {
	repres, err := parseRepresentations([]byte(`[{"id": "r1", "asset": "chair", "version": 2,
		"files": [{"id": "f1", "path": "/p/a.abc", "size": 3,
			"sites": [{"name": "studio", "created_dt": "2024-03-01T12:00:00+02:00"}]}]}]`))
	require.NoError(t, err)
	require.Len(t, repres, 1)
	assert.Equal(t, 2, repres[0].Context.Version)
	site := repres[0].Files[0].Sites[0]
	require.NotNil(t, site.CreatedAt)
	assert.Equal(t, "2024-03-01T10:00:00Z", site.CreatedAt.Format("2006-01-02T15:04:05Z07:00"))

	_, err = parseRepresentations([]byte(`[{"asset": "chair"}]`))
	assert.Error(t, err)

	_, err = parseRepresentations([]byte(`[{"id": "r1", "colour": "red"}]`))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	scene := filepath.Join("..", "..", "internal", "validate", "testdata", "chair.yaml")
	cfg := writeConfig(t, "store:\n  backend: memory\nlog:\n  level: error\n")

	out, err := execute(t, "--config", cfg, "validate", scene, "modelMain")
	require.NoError(t, err)
	assert.Equal(t, "ok    modelMain\n", out)

	out, err = execute(t, "--config", cfg, "validate", scene)
	require.Error(t, err)
	assert.Contains(t, out, "FAIL  withCamera\n      |cam_GRP|persp\n")

	_, err = execute(t, "--config", cfg, "validate", scene, "nope")
	assert.Error(t, err)
}

func TestFarm(t *testing.T) {
	dir := filepath.Join("..", "..", "internal", "farm", "testdata")
	cfg := writeConfig(t, `
store:
  backend: memory
farm:
  system_settings: `+filepath.Join(dir, "system.yaml")+`
  project_settings: `+filepath.Join(dir, "project.yaml")+`
log:
  level: error
`)

	out, err := execute(t, "--config", cfg, "farm")
	require.NoError(t, err)
	assert.Contains(t, out, "module: deadline\n")
	assert.Contains(t, out, "plugin: NukeSubmitDeadline\n")
	assert.Contains(t, out, "  chunk_size: 10\n")
	assert.Contains(t, out, "  concurrent_tasks: 2\n")
	assert.NotContains(t, out, "use_gpu")

	_, err = execute(t, "--config", cfg, "farm", "--host", "maya")
	assert.Error(t, err)
}

func TestWorkfiles(t *testing.T) {
	work := t.TempDir()
	cfg := writeConfig(t, `
store:
  backend: memory
workfiles:
  root: `+work+`/{project[name]}/{asset}/{task}
  extensions: [".ma", ".mb"]
log:
  level: error
`)
	session := []string{"--project", "demo", "--code", "dm", "--asset", "chair", "--task", "modeling"}
	root := filepath.Join(work, "demo", "chair", "modeling")

	args := append([]string{"--config", cfg, "workfiles", "save-as", "--dry-run", "--comment", "blockout"}, session...)
	out, err := execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dm_chair_modeling_v001_blockout.ma")+"\n", out)

	src := filepath.Join(t.TempDir(), "incoming.mb")
	require.NoError(t, os.WriteFile(src, []byte("scene"), 0o644))
	require.NoError(t, os.MkdirAll(root, 0o755))

	args = append([]string{"--config", cfg, "workfiles", "duplicate", src}, session...)
	out, err = execute(t, args...)
	require.NoError(t, err)
	dup := strings.TrimSpace(out)
	assert.Equal(t, filepath.Join(root, "dm_chair_modeling_v001.mb"), dup)
	assert.FileExists(t, dup)

	args = append([]string{"--config", cfg, "workfiles", "list"}, session...)
	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Contains(t, out, "dm_chair_modeling_v001.mb")
	assert.Contains(t, out, "5 B")

	args = append([]string{"--config", cfg, "workfiles", "open"}, session...)
	out, err = execute(t, args...)
	require.NoError(t, err)
	assert.Equal(t, dup+"\n", out)

	_, err = execute(t, "--config", cfg, "workfiles", "list", "--project", "demo")
	assert.Error(t, err)
}

func TestWatch_StopsWithContext(t *testing.T) {
	var logs bytes.Buffer
	cfg := config.Default()
	cfg.Sync.RefreshInterval = 10 * time.Millisecond
	opts := &rootOptions{cfg: cfg, logger: slog.New(slog.NewTextHandler(&logs, nil))}

	b := sitesync.NewInMemoryBundle(sitesync.StaticSites{Local: "studio", Remote: "gdrive"})
	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, watch(ctx, b, []string{"demo"}, 50*time.Millisecond, opts))
	assert.Contains(t, logs.String(), "sync_metrics")
	assert.Contains(t, logs.String(), "refreshes=")
}
