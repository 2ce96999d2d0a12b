package syncmodel

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/petrijr/sitesync/pkg/api"
)

var (
	// ErrRowOutOfRange is returned for row indexes outside the materialized
	// rows.
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrColumnOutOfRange is returned when sorting by an unknown column.
	ErrColumnOutOfRange = errors.New("column out of range")
)

type pageRequest struct {
	Sort   api.SortField
	Desc   bool
	Filter string
	Skip   int
	Limit  int
}

type pageFunc[R any] func(ctx context.Context, req pageRequest) (rows []R, total int, err error)

// table is the paging core shared by Model and DetailModel.
//
// opMu serializes operations that query the store; mu guards the fields
// and is never held across a store call or a listener callback.
type table[R any] struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	view     string
	columns  []Column
	pageSize int
	sortCol  int
	order    Order
	filter   string
	project  string
	rows     []R
	total    int

	idOf     func(R) string
	fetch    pageFunc[R]
	observer api.Observer
	listener Listener
}

func newTable[R any](view string, columns []Column, cfg config, idOf func(R) string, fetch pageFunc[R]) (*table[R], error) {
	if cfg.sortCol < 0 || cfg.sortCol >= len(columns) {
		return nil, fmt.Errorf("%w: %d", ErrColumnOutOfRange, cfg.sortCol)
	}
	return &table[R]{
		view:     view,
		columns:  columns,
		pageSize: cfg.pageSize,
		sortCol:  cfg.sortCol,
		order:    cfg.order,
		filter:   cfg.filter,
		idOf:     idOf,
		fetch:    fetch,
		observer: cfg.observer,
		listener: cfg.listener,
	}, nil
}

func (t *table[R]) request(skip, limit int) pageRequest {
	return pageRequest{
		Sort:   t.columns[t.sortCol].Sort,
		Desc:   t.order == Descending,
		Filter: t.filter,
		Skip:   skip,
		Limit:  limit,
	}
}

func (t *table[R]) event(req pageRequest, rows, total int, d time.Duration) api.QueryEvent {
	return api.QueryEvent{
		View:     t.view,
		Project:  t.project,
		Skip:     req.Skip,
		Limit:    req.Limit,
		Rows:     rows,
		Total:    total,
		Duration: d,
	}
}

// reload replaces all rows with the first limit rows. Caller holds opMu.
func (t *table[R]) reload(ctx context.Context, limit int) error {
	return t.replace(ctx, limit, nil)
}

// replace fetches the first limit rows and swaps them in. commit, when set,
// runs under mu together with the swap. A failed fetch changes nothing.
// Caller holds opMu.
func (t *table[R]) replace(ctx context.Context, limit int, commit func()) error {
	t.mu.RLock()
	req := t.request(0, limit)
	project := t.project
	t.mu.RUnlock()

	start := time.Now()
	rows, total, err := t.fetch(ctx, req)
	if err != nil {
		t.observer.OnQueryFailed(ctx, t.view, project, err)
		return err
	}

	t.mu.Lock()
	t.rows = rows
	t.total = total
	if commit != nil {
		commit()
	}
	ev := t.event(req, len(rows), total, time.Since(start))
	t.mu.Unlock()

	t.observer.OnRefresh(ctx, ev)
	if t.listener != nil {
		t.listener.ModelReset()
	}
	return nil
}

// Refresh re-queries the current window. The limit covers every row
// already materialized so a background refresh never shrinks a scrolled
// view.
func (t *table[R]) Refresh(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.RLock()
	limit := max(t.pageSize, len(t.rows))
	t.mu.RUnlock()

	return t.reload(ctx, limit)
}

// CanFetchMore reports whether the last query saw more rows than are
// materialized.
func (t *table[R]) CanFetchMore() bool {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total > len(t.rows)
}

// FetchMore appends the next page. Rows already materialized (shifted by
// concurrent inserts) are dropped.
func (t *table[R]) FetchMore(ctx context.Context) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	if !t.CanFetchMore() {
		return nil
	}

	t.mu.RLock()
	req := t.request(len(t.rows), t.pageSize)
	project := t.project
	seen := make(map[string]struct{}, len(t.rows))
	for _, r := range t.rows {
		seen[t.idOf(r)] = struct{}{}
	}
	t.mu.RUnlock()

	start := time.Now()
	page, total, err := t.fetch(ctx, req)
	if err != nil {
		t.observer.OnQueryFailed(ctx, t.view, project, err)
		return err
	}

	fresh := make([]R, 0, len(page))
	for _, r := range page {
		id := t.idOf(r)
		if _, dup := seen[id]; dup {
			continue
		}
		seen[id] = struct{}{}
		fresh = append(fresh, r)
	}

	t.mu.Lock()
	first := len(t.rows)
	t.rows = append(t.rows, fresh...)
	t.total = total
	if len(fresh) == 0 {
		// Nothing new at this offset; wait for the next refresh instead of
		// asking for the same window again.
		t.total = len(t.rows)
	}
	ev := t.event(req, len(t.rows), total, time.Since(start))
	t.mu.Unlock()

	t.observer.OnPageFetched(ctx, ev, len(fresh))
	if len(fresh) > 0 && t.listener != nil {
		t.listener.RowsInserted(first, len(fresh))
	}
	return nil
}

// Sort re-queries from the start ordered by col. Negative columns are
// ignored.
func (t *table[R]) Sort(ctx context.Context, col int, order Order) error {
	if col < 0 {
		return nil
	}
	if col >= len(t.columns) {
		return fmt.Errorf("%w: %d", ErrColumnOutOfRange, col)
	}

	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.Lock()
	t.sortCol = col
	t.order = order
	t.mu.Unlock()

	return t.reload(ctx, t.pageSize)
}

// SetFilter re-queries from the start with text as filter.
func (t *table[R]) SetFilter(ctx context.Context, text string) error {
	t.opMu.Lock()
	defer t.opMu.Unlock()

	t.mu.Lock()
	t.filter = text
	t.mu.Unlock()

	return t.reload(ctx, t.pageSize)
}

func (t *table[R]) SortColumn() (int, Order) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.sortCol, t.order
}

func (t *table[R]) Filter() string {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.filter
}

func (t *table[R]) RowCount() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.rows)
}

// Total is the number of matching rows reported by the last query.
func (t *table[R]) Total() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.total
}

func (t *table[R]) ColumnCount() int {
	return len(t.columns)
}

// Header returns the header of col, or "" when out of range.
func (t *table[R]) Header(col int) string {
	if col < 0 || col >= len(t.columns) {
		return ""
	}
	return t.columns[col].Header
}

func (t *table[R]) row(i int) (R, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	if i < 0 || i >= len(t.rows) {
		var zero R
		return zero, false
	}
	return t.rows[i], true
}

// RowID returns the id of row i, or "" when out of range.
func (t *table[R]) RowID(i int) string {
	r, ok := t.row(i)
	if !ok {
		return ""
	}
	return t.idOf(r)
}

// IndexOf returns the row holding id, or -1.
func (t *table[R]) IndexOf(id string) int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for i, r := range t.rows {
		if t.idOf(r) == id {
			return i
		}
	}
	return -1
}
