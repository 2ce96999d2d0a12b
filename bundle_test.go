package sitesync

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/petrijr/sitesync/internal/storetest"
)

var demoSites = StaticSites{Local: storetest.LocalSite, Remote: storetest.RemoteSite}

func TestNewBundle_Validates(t *testing.T) {
	_, err := NewBundle(nil, nil, demoSites)
	assert.Error(t, err)

	_, err = NewBundle(NewInMemoryStore(), nil, nil)
	assert.Error(t, err)

	b, err := NewBundle(NewInMemoryStore(), nil, demoSites)
	require.NoError(t, err)
	assert.NotNil(t, b.Notifier)
}

func TestInMemoryBundle_ImportAndReset(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	b := NewInMemoryBundle(demoSites)
	events, err := b.Notifier.Subscribe(ctx, storetest.Project)
	require.NoError(t, err)

	require.NoError(t, b.Import(ctx, storetest.Project, storetest.Fixtures()...))
	ev := <-events
	assert.Equal(t, "aaa", ev.RepresentationID)

	m, err := b.Model(ctx, storetest.Project)
	require.NoError(t, err)
	assert.Equal(t, 5, m.Total())

	require.NoError(t, b.Reset(ctx, storetest.Project, "aaa", "f1", SiteRemote))
	require.NoError(t, m.Refresh(ctx))
	rec, ok := m.Record(m.IndexOf("aaa"))
	require.True(t, ok)
	assert.Equal(t, StatusQueued, rec.Status)

	d, err := b.Detail(ctx, storetest.Project, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "gdrive 0", d.Data(0, 4))
}

func TestBundle_ResetUnknownProject(t *testing.T) {
	b := NewInMemoryBundle(StaticSites{})
	err := b.Reset(context.Background(), "nope", "aaa", "f1", SiteLocal)
	assert.ErrorIs(t, err, ErrUnknownProject)
}

type downNotifier struct {
	Notifier
}

func (downNotifier) Publish(context.Context, ChangeEvent) error {
	return errors.New("redis: connection refused")
}

func TestBundle_ResetSurvivesPublishFailure(t *testing.T) {
	ctx := context.Background()
	var logs bytes.Buffer
	b, err := NewBundle(NewInMemoryStore(), downNotifier{NewHub()}, demoSites)
	require.NoError(t, err)
	b.Logger = slog.New(slog.NewTextHandler(&logs, nil))

	for _, r := range storetest.Fixtures() {
		require.NoError(t, b.Store.SaveRepresentation(ctx, storetest.Project, r))
	}

	require.NoError(t, b.Reset(ctx, storetest.Project, "aaa", "f1", SiteRemote))
	assert.Contains(t, logs.String(), "sync_publish_failed")

	d, err := b.Detail(ctx, storetest.Project, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "gdrive 0", d.Data(0, 4))
}

func TestBundle_ResetRejectsUnknownRole(t *testing.T) {
	ctx := context.Background()
	b := NewInMemoryBundle(demoSites)
	require.NoError(t, b.Import(ctx, storetest.Project, storetest.Fixtures()...))

	err := b.Reset(ctx, storetest.Project, "aaa", "f1", SiteRole("remtoe"))
	assert.ErrorIs(t, err, ErrInvalidSiteRole)

	d, err := b.Detail(ctx, storetest.Project, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "studio 1", d.Data(0, 3), "local site must be untouched")
}

// TestSQLiteBundle_DurableAcrossRestart demonstrates that imported sync state
// survives reopening the database.
func TestSQLiteBundle_DurableAcrossRestart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	dbPath := filepath.Join(t.TempDir(), "sitesync_bundle.db")
	dsn := "file:" + dbPath + "?_journal=WAL"

	// --- Phase 1: import and reset one file.

	db1, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)

	bundle1, err := NewSQLiteBundle(db1, demoSites)
	require.NoError(t, err)
	require.NoError(t, bundle1.Import(ctx, storetest.Project, storetest.Fixtures()...))
	require.NoError(t, bundle1.Reset(ctx, storetest.Project, "aaa", "f2", SiteLocal))
	require.NoError(t, db1.Close())

	// --- Phase 2: reopen and read back.

	db2, err := sql.Open("sqlite", dsn)
	require.NoError(t, err)
	defer db2.Close()

	bundle2, err := NewSQLiteBundle(db2, demoSites)
	require.NoError(t, err)

	m, err := bundle2.Model(ctx, storetest.Project, WithPageSize(2))
	require.NoError(t, err)
	assert.Equal(t, 5, m.Total())
	assert.Equal(t, 2, m.RowCount())

	d, err := bundle2.Detail(ctx, storetest.Project, "aaa")
	require.NoError(t, err)
	assert.Equal(t, "studio 0", d.Data(1, 3))
	assert.Equal(t, "Queued", d.Data(1, 7))
}
