// Package tui is a terminal table view over the sync status models.
package tui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/petrijr/sitesync/internal/syncmodel"
	"github.com/petrijr/sitesync/pkg/api"
)

// pager is the part of Model and DetailModel the view drives.
type pager interface {
	RowCount() int
	ColumnCount() int
	Header(col int) string
	Data(row, col int) string
	RowID(row int) string
	IndexOf(id string) int
	Total() int
	CanFetchMore() bool
	FetchMore(ctx context.Context) error
	Refresh(ctx context.Context) error
	Sort(ctx context.Context, col int, order syncmodel.Order) error
	SortColumn() (int, syncmodel.Order)
	SetFilter(ctx context.Context, text string) error
	Filter() string
}

type (
	tickMsg   struct{}
	loadedMsg struct {
		err error
	}
	detailMsg struct {
		detail *syncmodel.DetailModel
		err    error
	}
	statusMsg struct {
		text string
		err  error
	}
)

var (
	titleStyle  = lipgloss.NewStyle().Bold(true)
	mutedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	statusStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	tableStyles = func() table.Styles {
		s := table.DefaultStyles()
		s.Header = s.Header.BorderStyle(lipgloss.NormalBorder()).BorderBottom(true).Bold(true)
		s.Selected = s.Selected.Foreground(lipgloss.Color("229")).Background(lipgloss.Color("57"))
		return s
	}()
)

// columnWidths by header; unknown headers use defaultWidth.
var columnWidths = map[string]int{
	"asset":          16,
	"subset":         14,
	"version":        7,
	"representation": 8,
	"created_dt":     16,
	"sync_dt":        16,
	"local_site":     14,
	"remote_site":    14,
	"files_count":    5,
	"files_size":     9,
	"priority":       4,
	"state":          12,
	"file":           36,
	"size":           9,
}

const defaultWidth = 12

// Model is the bubbletea model of the sync status view. A failed refresh
// shows the error and stops auto refresh until the next manual refresh.
type Model struct {
	ctx      context.Context
	summary  *syncmodel.Model
	detail   *syncmodel.DetailModel
	interval time.Duration

	table     table.Model
	filter    textinput.Model
	filtering bool
	help      help.Model
	keys      keyMap
	selection syncmodel.Selection

	loading bool
	err     error
	status  string
	height  int
}

// New returns a view over summary. Store calls use ctx.
func New(ctx context.Context, summary *syncmodel.Model, interval time.Duration) *Model {
	fi := textinput.New()
	fi.Placeholder = "Filter..."
	fi.CharLimit = 64
	fi.Width = 40
	fi.SetValue(summary.Filter())

	m := &Model{
		ctx:      ctx,
		summary:  summary,
		interval: interval,
		table: table.New(
			table.WithFocused(true),
			table.WithHeight(syncmodel.DefaultPageSize),
			table.WithStyles(tableStyles),
		),
		filter: fi,
		help:   help.New(),
		keys:   defaultKeys(),
	}
	m.rebuild()
	return m
}

func (m *Model) active() pager {
	if m.detail != nil {
		return m.detail
	}
	return m.summary
}

func (m *Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(time.Time) tea.Msg { return tickMsg{} })
}

// Init starts auto refresh.
func (m *Model) Init() tea.Cmd {
	return m.tick()
}

func (m *Model) load(fn func(context.Context) error) tea.Cmd {
	m.loading = true
	ctx := m.ctx
	return func() tea.Msg {
		return loadedMsg{err: fn(ctx)}
	}
}

func (m *Model) rebuild() {
	p := m.active()
	sortCol, order := p.SortColumn()

	cols := make([]table.Column, p.ColumnCount())
	for i := range cols {
		title := p.Header(i)
		w, ok := columnWidths[title]
		if !ok {
			w = defaultWidth
		}
		if i == sortCol {
			if order == syncmodel.Descending {
				title += " ▼"
			} else {
				title += " ▲"
			}
		}
		cols[i] = table.Column{Title: title, Width: w}
	}

	rows := make([]table.Row, p.RowCount())
	for r := range rows {
		row := make(table.Row, len(cols))
		for c := range cols {
			row[c] = p.Data(r, c)
		}
		rows[r] = row
	}

	// Rows must be cleared before columns shrink.
	m.table.SetRows(nil)
	m.table.SetColumns(cols)
	m.table.SetRows(rows)

	if i := m.selection.Restore(p); i >= 0 {
		m.table.SetCursor(i)
	} else if m.table.Cursor() >= len(rows) {
		m.table.SetCursor(max(len(rows)-1, 0))
	}
}

func (m *Model) remember() {
	m.selection.Select(m.active(), m.table.Cursor())
}

// Update handles messages.
func (m *Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = msg.Height
		m.table.SetHeight(max(msg.Height-6, 3))
		m.table.SetWidth(msg.Width)
		return m, nil

	case tickMsg:
		if m.err != nil {
			return m, nil
		}
		if m.loading {
			return m, m.tick()
		}
		m.remember()
		return m, tea.Batch(m.load(m.active().Refresh), m.tick())

	case loadedMsg:
		m.loading = false
		m.err = msg.err
		if msg.err == nil {
			m.rebuild()
		}
		return m, nil

	case detailMsg:
		m.loading = false
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.detail = msg.detail
		m.selection.Clear()
		m.table.SetCursor(0)
		m.filter.SetValue("")
		m.rebuild()
		return m, nil

	case statusMsg:
		m.loading = false
		m.status = msg.text
		if msg.err != nil {
			m.status = ""
			m.err = msg.err
		}
		m.rebuild()
		return m, nil

	case tea.KeyMsg:
		if m.filtering {
			return m.updateFilter(msg)
		}
		return m.updateKeys(msg)
	}
	return m, nil
}

func (m *Model) updateFilter(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		m.filtering = false
		m.filter.Blur()
		text := m.filter.Value()
		m.selection.Clear()
		return m, m.load(func(ctx context.Context) error { return m.active().SetFilter(ctx, text) })
	case "esc":
		m.filtering = false
		m.filter.Blur()
		m.filter.SetValue(m.active().Filter())
		return m, nil
	}
	var cmd tea.Cmd
	m.filter, cmd = m.filter.Update(msg)
	return m, cmd
}

func (m *Model) updateKeys(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	p := m.active()

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Filter):
		m.filtering = true
		return m, m.filter.Focus()

	case key.Matches(msg, m.keys.Refresh):
		m.err = nil
		m.remember()
		return m, tea.Batch(m.load(p.Refresh), m.tick())

	case key.Matches(msg, m.keys.NextSort):
		col, order := p.SortColumn()
		next := (col + 1) % p.ColumnCount()
		m.remember()
		return m, m.load(func(ctx context.Context) error { return p.Sort(ctx, next, order) })

	case key.Matches(msg, m.keys.Order):
		col, order := p.SortColumn()
		if order == syncmodel.Descending {
			order = syncmodel.Ascending
		} else {
			order = syncmodel.Descending
		}
		m.remember()
		return m, m.load(func(ctx context.Context) error { return p.Sort(ctx, col, order) })

	case key.Matches(msg, m.keys.Back):
		if m.detail == nil {
			return m, nil
		}
		m.detail = nil
		m.status = ""
		m.filter.SetValue(m.summary.Filter())
		m.rebuild()
		return m, nil

	case key.Matches(msg, m.keys.Open):
		if m.detail != nil || m.summary.RowCount() == 0 {
			return m, nil
		}
		m.remember()
		row, ctx, summary := m.table.Cursor(), m.ctx, m.summary
		m.loading = true
		return m, func() tea.Msg {
			d, err := summary.Detail(ctx, row)
			return detailMsg{detail: d, err: err}
		}
	}

	if m.detail != nil {
		if cmd, ok := m.detailAction(msg); ok {
			return m, cmd
		}
	}

	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)

	// Scrolling onto the last row pulls the next page.
	if !m.loading && m.table.Cursor() >= p.RowCount()-1 && p.CanFetchMore() {
		m.remember()
		return m, tea.Batch(cmd, m.load(p.FetchMore))
	}
	return m, cmd
}

func (m *Model) detailAction(msg tea.KeyMsg) (tea.Cmd, bool) {
	d, row := m.detail, m.table.Cursor()

	var want syncmodel.Action
	var role api.SiteRole
	switch {
	case key.Matches(msg, m.keys.ShowError):
		info, err := d.ErrorDetail(row)
		if err != nil {
			m.status = err.Error()
			return nil, true
		}
		m.status = fmt.Sprintf("%s tries=%d %s", info.FileID, info.Tries, strings.ReplaceAll(info.Message, "\n", " | "))
		return nil, true
	case key.Matches(msg, m.keys.ResetLocal):
		want, role = syncmodel.ActionResetLocal, api.SiteLocal
	case key.Matches(msg, m.keys.ResetRemote):
		want, role = syncmodel.ActionResetRemote, api.SiteRemote
	default:
		return nil, false
	}

	allowed := false
	for _, a := range d.Actions(row) {
		allowed = allowed || a == want
	}
	if !allowed {
		m.status = fmt.Sprintf("%s: %v", want, syncmodel.ErrActionUnavailable)
		return nil, true
	}

	m.remember()
	m.loading = true
	ctx := m.ctx
	return func() tea.Msg {
		if err := d.ResetFile(ctx, row, role); err != nil {
			if errors.Is(err, context.Canceled) {
				return statusMsg{}
			}
			return statusMsg{err: err}
		}
		return statusMsg{text: want.String() + " done"}
	}, true
}

// View renders the view.
func (m *Model) View() string {
	var b strings.Builder
	p := m.active()

	local, remote := m.summary.Sites()
	title := fmt.Sprintf("%s  %s ⇄ %s", m.summary.Project(), local, remote)
	if m.detail != nil {
		title += "  / " + m.detail.RepresentationID()
	}
	b.WriteString(titleStyle.Render(title))
	b.WriteString(mutedStyle.Render(fmt.Sprintf("  %d of %d", p.RowCount(), p.Total())))
	b.WriteString("\n")

	if m.filtering {
		b.WriteString(m.filter.View())
	} else if f := p.Filter(); f != "" {
		b.WriteString(mutedStyle.Render("filter: " + f))
	}
	b.WriteString("\n")

	b.WriteString(m.table.View())
	b.WriteString("\n")

	switch {
	case m.err != nil:
		b.WriteString(errorStyle.Render("error: " + m.err.Error() + " (g to retry)"))
	case m.status != "":
		b.WriteString(statusStyle.Render(m.status))
	case m.loading:
		b.WriteString(mutedStyle.Render("loading..."))
	}
	b.WriteString("\n")

	if m.detail != nil {
		b.WriteString(m.help.ShortHelpView(m.keys.detailHelp()))
	} else {
		b.WriteString(m.help.ShortHelpView(m.keys.summaryHelp()))
	}
	return b.String()
}

// Run runs the view full screen until the user quits or ctx ends.
func Run(ctx context.Context, summary *syncmodel.Model, interval time.Duration) error {
	_, err := tea.NewProgram(New(ctx, summary, interval), tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	if errors.Is(err, tea.ErrProgramKilled) && ctx.Err() != nil {
		return nil
	}
	return err
}
