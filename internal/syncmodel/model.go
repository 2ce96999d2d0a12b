// Package syncmodel implements the paged, sortable, filterable views of
// site synchronization state: Model lists representations, DetailModel
// lists the files of one representation.
//
// Both materialize rows page by page. The store reports the total match
// count with every page, so CanFetchMore never queries. Refresh re-reads the
// whole materialized window and replaces it.
package syncmodel

import (
	"context"
	"fmt"
	"sync"

	"github.com/petrijr/sitesync/pkg/api"
)

// Model is the representation summary table of one project.
type Model struct {
	*table[api.SyncRecord]

	store api.Store
	sites api.SiteResolver
	cfg   config

	mu     sync.RWMutex
	local  string
	remote string

	// scope is what query asks the store for. It runs ahead of the
	// committed project while SetProject loads. Guarded by opMu.
	scope api.SummaryQuery
}

// New resolves the sites of project and loads the first page.
func New(ctx context.Context, store api.Store, sites api.SiteResolver, project string, opts ...Option) (*Model, error) {
	cfg := newConfig(DefaultPageSize, summarySyncDtColumn, Descending, opts)

	m := &Model{store: store, sites: sites, cfg: cfg}
	t, err := newTable("summary", SummaryColumns, cfg, func(r api.SyncRecord) string { return r.ID }, m.query)
	if err != nil {
		return nil, err
	}
	m.table = t

	if err := m.SetProject(ctx, project); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Model) query(ctx context.Context, req pageRequest) ([]api.SyncRecord, int, error) {
	page, err := m.store.QuerySummary(ctx, api.SummaryQuery{
		Project:    m.scope.Project,
		LocalSite:  m.scope.LocalSite,
		RemoteSite: m.scope.RemoteSite,
		Filter:     req.Filter,
		Sort:       req.Sort,
		Descending: req.Desc,
		Skip:       req.Skip,
		Limit:      req.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Records, page.Total, nil
}

// SetProject switches to project, resolving its sites, and loads the first
// page. On failure the model keeps the previous project, sites and rows.
func (m *Model) SetProject(ctx context.Context, project string) error {
	local, remote, err := m.sites.SitesForProject(ctx, project)
	if err != nil {
		return fmt.Errorf("resolve sites of %q: %w", project, err)
	}

	m.opMu.Lock()
	defer m.opMu.Unlock()

	prev := m.scope
	m.scope = api.SummaryQuery{Project: project, LocalSite: local, RemoteSite: remote}

	err = m.replace(ctx, m.pageSize, func() {
		m.table.project = project
		m.mu.Lock()
		m.local, m.remote = local, remote
		m.mu.Unlock()
	})
	if err != nil {
		m.scope = prev
		return err
	}
	return nil
}

// Project returns the current project.
func (m *Model) Project() string {
	m.table.mu.RLock()
	defer m.table.mu.RUnlock()
	return m.table.project
}

// Sites returns the local and remote site of the current project.
func (m *Model) Sites() (local, remote string) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.local, m.remote
}

// Data returns the display text of a cell, or "" when out of range.
func (m *Model) Data(row, col int) string {
	r, ok := m.row(row)
	if !ok {
		return ""
	}
	local, remote := m.Sites()
	return summaryCell(r, col, local, remote)
}

// Record returns the record at row.
func (m *Model) Record(row int) (api.SyncRecord, bool) {
	return m.row(row)
}

// Run refreshes the model every refresh interval and whenever the notifier
// reports a change of the project. It returns the first refresh error or
// ctx.Err().
func (m *Model) Run(ctx context.Context) error {
	return run(ctx, m.cfg.interval, m.cfg.notifier, m.Project, m.Refresh, m.cfg.logger)
}

// Detail opens the per-file view of the representation at row.
func (m *Model) Detail(ctx context.Context, row int, opts ...Option) (*DetailModel, error) {
	id := m.RowID(row)
	if id == "" {
		return nil, fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	local, remote := m.Sites()
	base := []Option{
		WithObserver(m.cfg.observer),
		WithNotifier(m.cfg.notifier),
		WithLogger(m.cfg.logger),
		WithRefreshInterval(m.cfg.interval),
	}
	return NewDetail(ctx, m.store, api.StaticSites{Local: local, Remote: remote}, m.Project(), id, append(base, opts...)...)
}
