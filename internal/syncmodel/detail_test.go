package syncmodel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/petrijr/sitesync/internal/notify"
	"github.com/petrijr/sitesync/internal/storetest"
	"github.com/petrijr/sitesync/pkg/api"
)

func newLampDetail(t *testing.T, opts ...Option) (*DetailModel, *recordingStore) {
	t.Helper()
	store := newSeededStore(t)
	d, err := NewDetail(context.Background(), store, testSites, storetest.Project, "ccc", opts...)
	require.NoError(t, err)
	return d, store
}

func TestNewDetail_ListsFilesByPath(t *testing.T) {
	d, store := newLampDetail(t)

	assert.Equal(t, "ccc", d.RepresentationID())
	assert.Equal(t, []string{"f1", "f2"}, rowIDs(d))
	assert.Equal(t, 2, d.Total())
	assert.False(t, d.CanFetchMore())

	q := store.details[len(store.details)-1]
	assert.Equal(t, api.SortPath, q.Sort)
	assert.False(t, q.Descending)
	assert.Equal(t, DefaultDetailPageSize, q.Limit)
	assert.Equal(t, storetest.LocalSite, q.LocalSite)
	assert.Equal(t, storetest.RemoteSite, q.RemoteSite)
}

func TestNewDetail_UnknownRepresentation(t *testing.T) {
	_, err := NewDetail(context.Background(), newSeededStore(t), testSites, storetest.Project, "zzz")
	assert.ErrorIs(t, err, api.ErrRepresentationNotFound)
}

func TestDetail_FormatsCells(t *testing.T) {
	d, _ := newLampDetail(t)

	assert.Equal(t, "lamp_look.ma", d.Data(0, 0))
	assert.Equal(t, "studio 1", d.Data(0, 3))
	assert.Equal(t, "gdrive 0.5", d.Data(0, 4))
	assert.Equal(t, "20 B", d.Data(0, 5))
	assert.Equal(t, "1", d.Data(0, 6))
	assert.Equal(t, "Failed", d.Data(0, 7))
	assert.Equal(t, "Synced OK", d.Data(1, 7))
	assert.Empty(t, d.Data(5, 0))
}

func TestDetail_Actions(t *testing.T) {
	d, _ := newLampDetail(t)

	assert.Equal(t, []Action{ActionShowError, ActionResetRemote}, d.Actions(0))
	assert.Equal(t, []Action{ActionResetLocal, ActionResetRemote}, d.Actions(1))
	assert.Nil(t, d.Actions(7))

	assert.Equal(t, "Open error detail", ActionShowError.String())
	assert.Equal(t, "Reset local site", ActionResetLocal.String())
	assert.Equal(t, "Reset remote site", ActionResetRemote.String())
}

func TestDetail_ErrorDetail(t *testing.T) {
	d, _ := newLampDetail(t)

	detail, err := d.ErrorDetail(0)
	require.NoError(t, err)
	assert.Equal(t, "f1", detail.FileID)
	assert.Equal(t, storetest.Project, detail.Project)
	assert.Equal(t, 3, detail.Tries)
	assert.Equal(t, "quota exceeded\nstale lock", detail.Message)
	require.NotNil(t, detail.Updated)
	assert.True(t, detail.Updated.Equal(storetest.T0.Add(3*time.Hour)))

	_, err = d.ErrorDetail(1)
	assert.ErrorIs(t, err, ErrActionUnavailable)

	_, err = d.ErrorDetail(9)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestDetail_ResetFilePublishesAndRefreshes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	hub := notify.NewHub()
	events, err := hub.Subscribe(ctx, storetest.Project)
	require.NoError(t, err)

	metrics := &api.BasicMetrics{}
	d, _ := newLampDetail(t, WithNotifier(hub), WithObserver(metrics))

	require.NoError(t, d.ResetFile(ctx, 1, api.SiteRemote))

	select {
	case ev := <-events:
		assert.Equal(t, api.ChangeEvent{
			Project:          storetest.Project,
			RepresentationID: "ccc",
			FileID:           "f2",
			Site:             storetest.RemoteSite,
		}, ev)
	case <-time.After(time.Second):
		t.Fatal("no change event published")
	}

	assert.Equal(t, "f2", d.RowID(1))
	assert.Equal(t, "gdrive 0", d.Data(1, 4))
	assert.Equal(t, "Queued", d.Data(1, 7))
	assert.Equal(t, int64(1), metrics.Snapshot().Resets)
	assert.Equal(t, int64(2), metrics.Snapshot().Refreshes)
}

func TestDetail_ResetFileOutOfRange(t *testing.T) {
	d, _ := newLampDetail(t)
	assert.ErrorIs(t, d.ResetFile(context.Background(), 4, api.SiteLocal), ErrRowOutOfRange)
}

func TestDetail_ResetFileRejectsUnknownRole(t *testing.T) {
	metrics := &api.BasicMetrics{}
	d, _ := newLampDetail(t, WithObserver(metrics))
	before := d.Data(1, 3)

	err := d.ResetFile(context.Background(), 1, api.SiteRole("studio"))
	assert.ErrorIs(t, err, api.ErrInvalidSiteRole)
	assert.Equal(t, before, d.Data(1, 3))
	assert.Equal(t, int64(0), metrics.Snapshot().Resets)
}

func TestDetail_SortAndFilter(t *testing.T) {
	ctx := context.Background()
	d, _ := newLampDetail(t)

	require.NoError(t, d.Sort(ctx, 5, Descending))
	assert.Equal(t, []string{"f2", "f1"}, rowIDs(d))

	require.NoError(t, d.SetFilter(ctx, "TEX"))
	assert.Equal(t, []string{"f2"}, rowIDs(d))
}

func TestModel_DetailOpensRepresentationAtRow(t *testing.T) {
	ctx := context.Background()
	m, err := New(ctx, newSeededStore(t), testSites, storetest.Project)
	require.NoError(t, err)

	d, err := m.Detail(ctx, m.IndexOf("aaa"))
	require.NoError(t, err)
	assert.Equal(t, "aaa", d.RepresentationID())
	assert.Equal(t, 2, d.RowCount())

	_, err = m.Detail(ctx, 42)
	assert.ErrorIs(t, err, ErrRowOutOfRange)
}

func TestFormatHelpers(t *testing.T) {
	ts := time.Date(2021, 1, 2, 3, 4, 5, 0, time.FixedZone("X", 3600))
	assert.Equal(t, "20210102T020405Z", FormatTimestamp(&ts))
	assert.Empty(t, FormatTimestamp(nil))
	assert.Equal(t, "v012", FormatVersion(12))
	assert.Equal(t, "studio 0.25", FormatSite("studio", 0.25))
	assert.Equal(t, "1.5 KiB", FormatSize(1536))
}
