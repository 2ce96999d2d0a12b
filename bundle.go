package sitesync

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/petrijr/sitesync/internal/notify"
	"github.com/petrijr/sitesync/internal/persistence"
	"github.com/petrijr/sitesync/internal/syncmodel"
	"github.com/petrijr/sitesync/pkg/api"
)

// Bundle wires together a Store, the Notifier that announces changes made to
// it, and the SiteResolver of its projects.
type Bundle struct {
	Store    Store
	Notifier Notifier
	Sites    SiteResolver

	// Logger receives failures that do not fail an operation. Nil selects
	// slog.Default.
	Logger *slog.Logger
}

// NewBundle validates and returns a Bundle. A nil notifier selects an
// in-process hub.
func NewBundle(store Store, notifier Notifier, sites SiteResolver) (*Bundle, error) {
	if store == nil {
		return nil, errors.New("sitesync: bundle needs a store")
	}
	if sites == nil {
		return nil, errors.New("sitesync: bundle needs a site resolver")
	}
	if notifier == nil {
		notifier = notify.NewHub()
	}
	return &Bundle{Store: store, Notifier: notifier, Sites: sites}, nil
}

// NewInMemoryBundle returns a non-durable bundle for tests and demos.
func NewInMemoryBundle(sites SiteResolver) *Bundle {
	return &Bundle{
		Store:    persistence.NewInMemoryStore(),
		Notifier: notify.NewHub(),
		Sites:    sites,
	}
}

// NewSQLiteBundle constructs a durable bundle whose representations are kept
// in the provided *sql.DB. Views of the bundle are notified in-process.
//
// Typical usage:
//
//	db, _ := sql.Open("sqlite", "file:sitesync.db?_journal=WAL")
//	bundle, err := sitesync.NewSQLiteBundle(db, sitesync.StaticSites{Local: "studio", Remote: "gdrive"})
//	m, err := bundle.Model(ctx, "demo")
func NewSQLiteBundle(db *sql.DB, sites SiteResolver) (*Bundle, error) {
	store, err := persistence.NewSQLiteStore(db)
	if err != nil {
		return nil, err
	}
	return NewBundle(store, notify.NewHub(), sites)
}

// Model opens the summary of project, subscribed to the bundle's notifier.
func (b *Bundle) Model(ctx context.Context, project string, opts ...Option) (*Model, error) {
	opts = append([]Option{syncmodel.WithNotifier(b.Notifier)}, opts...)
	return syncmodel.New(ctx, b.Store, b.Sites, project, opts...)
}

// Detail opens the file list of a representation, subscribed to the
// bundle's notifier.
func (b *Bundle) Detail(ctx context.Context, project, representationID string, opts ...Option) (*DetailModel, error) {
	opts = append([]Option{syncmodel.WithNotifier(b.Notifier)}, opts...)
	return syncmodel.NewDetail(ctx, b.Store, b.Sites, project, representationID, opts...)
}

// Import saves representations into project and announces each of them.
func (b *Bundle) Import(ctx context.Context, project string, repres ...Representation) error {
	for _, r := range repres {
		if err := b.Store.SaveRepresentation(ctx, project, r); err != nil {
			return fmt.Errorf("save representation %s: %w", r.ID, err)
		}
		if err := b.Notifier.Publish(ctx, api.ChangeEvent{Project: project, RepresentationID: r.ID}); err != nil {
			return err
		}
	}
	return nil
}

// Reset resets one file of a representation on the site playing role in
// project and announces the change. It is the headless counterpart of
// DetailModel.ResetFile: a failed announcement is logged, not returned.
func (b *Bundle) Reset(ctx context.Context, project, representationID, fileID string, role SiteRole) error {
	local, remote, err := b.Sites.SitesForProject(ctx, project)
	if err != nil {
		return err
	}
	site, err := role.Site(local, remote)
	if err != nil {
		return err
	}
	if err := b.Store.ResetSite(ctx, project, representationID, fileID, site); err != nil {
		return err
	}

	err = b.Notifier.Publish(ctx, api.ChangeEvent{
		Project:          project,
		RepresentationID: representationID,
		FileID:           fileID,
		Site:             site,
	})
	if err != nil {
		b.logger().WarnContext(ctx, "sync_publish_failed", "project", project, "error", err)
	}
	return nil
}

func (b *Bundle) logger() *slog.Logger {
	if b.Logger != nil {
		return b.Logger
	}
	return slog.Default()
}
