package syncmodel

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

// ErrActionUnavailable is returned when a row action does not apply to the
// row's current state.
var ErrActionUnavailable = errors.New("action not available for row")

// Action is a row action of the detail table.
type Action int

const (
	ActionShowError Action = iota
	ActionResetLocal
	ActionResetRemote
)

func (a Action) String() string {
	switch a {
	case ActionShowError:
		return "Open error detail"
	case ActionResetLocal:
		return "Reset local site"
	case ActionResetRemote:
		return "Reset remote site"
	default:
		return "< No action >"
	}
}

// ErrorDetail describes the last failure of a file.
type ErrorDetail struct {
	FileID  string
	Project string
	Updated *time.Time
	Tries   int
	Message string
}

// DetailModel lists the files of one representation.
type DetailModel struct {
	*table[api.SyncDetailRecord]

	store            api.Store
	cfg              config
	representationID string
	local            string
	remote           string
}

// NewDetail resolves the sites of project and loads the first page of files
// of representationID.
func NewDetail(ctx context.Context, store api.Store, sites api.SiteResolver, project, representationID string, opts ...Option) (*DetailModel, error) {
	local, remote, err := sites.SitesForProject(ctx, project)
	if err != nil {
		return nil, fmt.Errorf("resolve sites of %q: %w", project, err)
	}

	cfg := newConfig(DefaultDetailPageSize, detailFileColumn, Ascending, opts)
	d := &DetailModel{
		store:            store,
		cfg:              cfg,
		representationID: representationID,
		local:            local,
		remote:           remote,
	}
	t, err := newTable("detail", DetailColumns, cfg, func(r api.SyncDetailRecord) string { return r.ID }, d.query)
	if err != nil {
		return nil, err
	}
	t.project = project
	d.table = t

	if err := d.Refresh(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *DetailModel) query(ctx context.Context, req pageRequest) ([]api.SyncDetailRecord, int, error) {
	page, err := d.store.QueryDetail(ctx, api.DetailQuery{
		Project:          d.project,
		RepresentationID: d.representationID,
		LocalSite:        d.local,
		RemoteSite:       d.remote,
		Filter:           req.Filter,
		Sort:             req.Sort,
		Descending:       req.Desc,
		Skip:             req.Skip,
		Limit:            req.Limit,
	})
	if err != nil {
		return nil, 0, err
	}
	return page.Records, page.Total, nil
}

// RepresentationID returns the id of the listed representation.
func (d *DetailModel) RepresentationID() string {
	return d.representationID
}

// Data returns the display text of a cell, or "" when out of range.
func (d *DetailModel) Data(row, col int) string {
	r, ok := d.row(row)
	if !ok {
		return ""
	}
	return detailCell(r, col, d.local, d.remote)
}

// Record returns the record at row.
func (d *DetailModel) Record(row int) (api.SyncDetailRecord, bool) {
	return d.row(row)
}

// Actions lists the actions applicable to row, in menu order.
func (d *DetailModel) Actions(row int) []Action {
	r, ok := d.row(row)
	if !ok {
		return nil
	}
	var out []Action
	if r.Status == api.StatusFailed {
		out = append(out, ActionShowError)
	}
	if r.RemoteProgress == 1 {
		out = append(out, ActionResetLocal)
	}
	if r.LocalProgress == 1 {
		out = append(out, ActionResetRemote)
	}
	return out
}

// ErrorDetail returns the failure details of a failed row.
func (d *DetailModel) ErrorDetail(row int) (ErrorDetail, error) {
	r, ok := d.row(row)
	if !ok {
		return ErrorDetail{}, fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}
	if r.Status != api.StatusFailed {
		return ErrorDetail{}, fmt.Errorf("%w: %s", ErrActionUnavailable, ActionShowError)
	}
	updated := r.LocalUpdated
	if r.RemoteUpdated != nil && (updated == nil || r.RemoteUpdated.After(*updated)) {
		updated = r.RemoteUpdated
	}
	return ErrorDetail{
		FileID:  r.ID,
		Project: d.project,
		Updated: updated,
		Tries:   r.Tries,
		Message: r.Error,
	}, nil
}

// ResetFile clears the state of the file at row on the site of role, so
// that it is transferred again, then publishes the change and refreshes.
func (d *DetailModel) ResetFile(ctx context.Context, row int, role api.SiteRole) error {
	site, err := role.Site(d.local, d.remote)
	if err != nil {
		return err
	}
	r, ok := d.row(row)
	if !ok {
		return fmt.Errorf("%w: %d", ErrRowOutOfRange, row)
	}

	if err := d.store.ResetSite(ctx, d.project, d.representationID, r.ID, site); err != nil {
		return fmt.Errorf("reset %s site of %s: %w", role, r.ID, err)
	}

	ev := api.ChangeEvent{
		Project:          d.project,
		RepresentationID: d.representationID,
		FileID:           r.ID,
		Site:             site,
	}
	d.cfg.observer.OnSiteReset(ctx, ev)
	if d.cfg.notifier != nil {
		if err := d.cfg.notifier.Publish(ctx, ev); err != nil {
			d.cfg.logger.Warn("sync_publish_failed", "project", d.project, "error", err)
		}
	}

	return d.Refresh(ctx)
}

// Run refreshes the model every refresh interval and on change events of
// the project. It returns the first refresh error or ctx.Err().
func (d *DetailModel) Run(ctx context.Context) error {
	return run(ctx, d.cfg.interval, d.cfg.notifier, func() string { return d.project }, d.Refresh, d.cfg.logger)
}
