package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/petrijr/sitesync"
	"github.com/petrijr/sitesync/internal/syncmodel"
	"github.com/petrijr/sitesync/internal/tui"
)

func newSyncCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Browse and control the sync state of a project.",
	}
	cmd.AddCommand(
		newSyncListCmd(opts),
		newSyncDetailCmd(opts),
		newSyncResetCmd(opts),
		newSyncImportCmd(opts),
		newSyncWatchCmd(opts),
		newSyncTUICmd(opts),
	)
	return cmd
}

// withBackend opens the backend, runs fn and closes it.
func withBackend(ctx context.Context, opts *rootOptions, fn func(*backend) error) error {
	b, err := openBackend(ctx, opts.cfg, opts.logger)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := b.Close(); cerr != nil {
			opts.logger.Warn("backend_close_failed", "error", cerr)
		}
	}()
	return fn(b)
}

// columnIndex returns the index of the column named header.
func columnIndex(columns []syncmodel.Column, header string) (int, error) {
	for i, c := range columns {
		if c.Header == header {
			return i, nil
		}
	}
	names := make([]string, len(columns))
	for i, c := range columns {
		names[i] = c.Header
	}
	return 0, fmt.Errorf("unknown column %q (one of %s)", header, strings.Join(names, ", "))
}

// viewFlags are the paging and ordering flags shared by list and detail.
type viewFlags struct {
	filter string
	sortBy string
	desc   bool
	all    bool
}

func (f *viewFlags) register(cmd *cobra.Command, defaultSort string, defaultDesc bool) {
	cmd.Flags().StringVar(&f.filter, "filter", "", "Show only rows containing this text (case-insensitive)")
	cmd.Flags().StringVar(&f.sortBy, "sort", defaultSort, "Column to sort by")
	cmd.Flags().BoolVar(&f.desc, "desc", defaultDesc, "Sort in descending order")
	cmd.Flags().BoolVar(&f.all, "all", false, "Fetch all pages instead of the first one")
}

func (f *viewFlags) options(columns []syncmodel.Column) ([]sitesync.Option, error) {
	col, err := columnIndex(columns, f.sortBy)
	if err != nil {
		return nil, err
	}
	order := sitesync.Ascending
	if f.desc {
		order = sitesync.Descending
	}
	return []sitesync.Option{sitesync.WithSort(col, order), sitesync.WithFilter(f.filter)}, nil
}

// table is what printTable needs from a model.
type table interface {
	RowCount() int
	ColumnCount() int
	Header(col int) string
	Data(row, col int) string
	Total() int
	CanFetchMore() bool
	FetchMore(ctx context.Context) error
}

func fetchAll(ctx context.Context, t table) error {
	for t.CanFetchMore() {
		if err := t.FetchMore(ctx); err != nil {
			return err
		}
	}
	return nil
}

func printTable(w io.Writer, t table) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	headers := make([]string, t.ColumnCount())
	for c := range headers {
		headers[c] = strings.ToUpper(t.Header(c))
	}
	fmt.Fprintln(tw, strings.Join(headers, "\t"))
	for r := 0; r < t.RowCount(); r++ {
		cells := make([]string, t.ColumnCount())
		for c := range cells {
			cells[c] = t.Data(r, c)
		}
		fmt.Fprintln(tw, strings.Join(cells, "\t"))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "%d of %d rows\n", t.RowCount(), t.Total())
	return err
}

func (opts *rootOptions) modelOptions() []sitesync.Option {
	return []sitesync.Option{
		sitesync.WithPageSize(opts.cfg.Sync.PageSize),
		sitesync.WithRefreshInterval(opts.cfg.Sync.RefreshInterval),
		sitesync.WithLogger(opts.logger),
	}
}

func (opts *rootOptions) detailOptions() []sitesync.Option {
	return []sitesync.Option{
		sitesync.WithPageSize(opts.cfg.Sync.DetailPageSize),
		sitesync.WithRefreshInterval(opts.cfg.Sync.RefreshInterval),
		sitesync.WithLogger(opts.logger),
	}
}

func newSyncListCmd(opts *rootOptions) *cobra.Command {
	var flags viewFlags
	cmd := &cobra.Command{
		Use:   "list <project>",
		Short: "List the sync state of the representations of a project.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewOpts, err := flags.options(syncmodel.SummaryColumns)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withBackend(ctx, opts, func(b *backend) error {
				m, err := b.Model(ctx, args[0], append(opts.modelOptions(), viewOpts...)...)
				if err != nil {
					return err
				}
				if flags.all {
					if err := fetchAll(ctx, m); err != nil {
						return err
					}
				}
				return printTable(cmd.OutOrStdout(), m)
			})
		},
	}
	flags.register(cmd, "sync_dt", true)
	return cmd
}

func newSyncDetailCmd(opts *rootOptions) *cobra.Command {
	var (
		flags      viewFlags
		showErrors bool
	)
	cmd := &cobra.Command{
		Use:   "detail <project> <representation-id>",
		Short: "List the files of a representation with their per-site state.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			viewOpts, err := flags.options(syncmodel.DetailColumns)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withBackend(ctx, opts, func(b *backend) error {
				d, err := b.Detail(ctx, args[0], args[1], append(opts.detailOptions(), viewOpts...)...)
				if err != nil {
					return err
				}
				if flags.all {
					if err := fetchAll(ctx, d); err != nil {
						return err
					}
				}
				out := cmd.OutOrStdout()
				if err := printTable(out, d); err != nil {
					return err
				}
				if showErrors {
					printErrors(out, d)
				}
				return nil
			})
		},
	}
	flags.register(cmd, "file", false)
	cmd.Flags().BoolVar(&showErrors, "errors", false, "Print the error detail of failed files")
	return cmd
}

func printErrors(w io.Writer, d *sitesync.DetailModel) {
	for r := 0; r < d.RowCount(); r++ {
		detail, err := d.ErrorDetail(r)
		if err != nil {
			continue
		}
		updated := "never"
		if detail.Updated != nil {
			updated = humanize.Time(*detail.Updated)
		}
		fmt.Fprintf(w, "\n%s (%s, %d tries, failed %s)\n", d.Data(r, 0), detail.FileID, detail.Tries, updated)
		for _, line := range strings.Split(detail.Message, "\n") {
			fmt.Fprintf(w, "  %s\n", line)
		}
	}
}

func parseSiteRole(s string) (sitesync.SiteRole, error) {
	role := sitesync.SiteRole(s)
	if _, err := role.Site("", ""); err != nil {
		return "", fmt.Errorf("invalid site: %w", err)
	}
	return role, nil
}

func newSyncResetCmd(opts *rootOptions) *cobra.Command {
	var site string
	cmd := &cobra.Command{
		Use:   "reset <project> <representation-id> <file-id>",
		Short: "Reset a file on one site so that it is transferred again.",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			role, err := parseSiteRole(site)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withBackend(ctx, opts, func(b *backend) error {
				if err := b.Reset(ctx, args[0], args[1], args[2], role); err != nil {
					return err
				}
				opts.logger.Info("file_reset", "project", args[0], "representation", args[1], "file", args[2], "site", role)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&site, "site", string(sitesync.SiteRemote), "Site to reset: local or remote")
	return cmd
}

func newSyncImportCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <project> <file>",
		Short: "Save representations from a YAML or JSON file into a project.",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			repres, err := loadRepresentations(args[1])
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			return withBackend(ctx, opts, func(b *backend) error {
				if ix, ok := b.Store.(indexer); ok {
					if err := ix.EnsureIndexes(ctx, args[0]); err != nil {
						return err
					}
				}
				if err := b.Import(ctx, args[0], repres...); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "imported %s representations into %s\n",
					humanize.Comma(int64(len(repres))), args[0])
				return nil
			})
		},
	}
	return cmd
}

func newSyncWatchCmd(opts *rootOptions) *cobra.Command {
	var every time.Duration
	cmd := &cobra.Command{
		Use:   "watch <project>...",
		Short: "Keep the sync views of projects current and log their progress.",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			return withBackend(ctx, opts, func(b *backend) error {
				return watch(ctx, b.Bundle, args, every, opts)
			})
		},
	}
	cmd.Flags().DurationVar(&every, "report", time.Minute, "Interval of the metrics report")
	return cmd
}

func watch(ctx context.Context, b *sitesync.Bundle, projects []string, every time.Duration, opts *rootOptions) error {
	metrics := &sitesync.BasicMetrics{}
	obs := sitesync.NewCompositeObserver(metrics, sitesync.NewLoggingObserver(opts.logger))

	views := make([]sitesync.Refresher, 0, len(projects))
	for _, p := range projects {
		m, err := b.Model(ctx, p, append(opts.modelOptions(), sitesync.WithObserver(obs))...)
		if err != nil {
			return fmt.Errorf("open %s: %w", p, err)
		}
		views = append(views, m)
	}

	w := sitesync.NewWatcher(opts.logger)
	if err := w.Start(ctx, views...); err != nil {
		return err
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			err := w.Stop()
			reportMetrics(opts.logger, metrics.Snapshot())
			return err
		case <-ticker.C:
			reportMetrics(opts.logger, metrics.Snapshot())
		}
	}
}

func reportMetrics(logger *slog.Logger, s sitesync.BasicMetricsSnapshot) {
	logger.Info("sync_metrics",
		"refreshes", s.Refreshes,
		"pages_fetched", s.PagesFetched,
		"rows_appended", s.RowsAppended,
		"queries_failed", s.QueriesFailed,
		"resets", s.Resets,
		"avg_query", s.AvgQueryDuration,
	)
}

func newSyncTUICmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tui <project>",
		Short: "Browse the sync state of a project in a terminal table.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			// The table owns the terminal; keep the logger quiet.
			opts.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
			return withBackend(ctx, opts, func(b *backend) error {
				m, err := b.Model(ctx, args[0], opts.modelOptions()...)
				if err != nil {
					return err
				}
				return tui.Run(ctx, m, opts.cfg.Sync.RefreshInterval)
			})
		},
	}
	return cmd
}
