package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/petrijr/sitesync/internal/workfiles"
)

type sessionFlags struct {
	session workfiles.Session
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	pf := cmd.PersistentFlags()
	pf.StringVar(&f.session.Project, "project", "", "Project name")
	pf.StringVar(&f.session.ProjectCode, "code", "", "Project code (default the project name)")
	pf.StringVar(&f.session.Asset, "asset", "", "Asset name")
	pf.StringVar(&f.session.Task, "task", "", "Task name")
	pf.StringVar(&f.session.App, "app", "", "Host application name")
}

func (f *sessionFlags) validate() error {
	if f.session.Project == "" || f.session.Asset == "" || f.session.Task == "" {
		return errors.New("--project, --asset and --task are required")
	}
	return nil
}

// openBrowser builds the host and app from config and opens the session.
// The caller closes the returned app.
func openBrowser(opts *rootOptions, f *sessionFlags) (*workfiles.App, *workfiles.Browser, error) {
	if err := f.validate(); err != nil {
		return nil, nil, err
	}
	wc := opts.cfg.Workfiles
	host, err := workfiles.NewExecHost(wc.Root, wc.Extensions, wc.OpenCommand, wc.SaveCommand)
	if err != nil {
		return nil, nil, err
	}
	tpl, err := workfiles.ParseTemplate(wc.Template)
	if err != nil {
		return nil, nil, err
	}
	app := workfiles.NewApp(host, tpl, opts.logger)
	b, err := app.Open(f.session)
	if err != nil {
		return nil, nil, err
	}
	return app, b, nil
}

// withBrowser opens the session's browser, runs fn and closes the app.
func withBrowser(opts *rootOptions, f *sessionFlags, fn func(*workfiles.Browser) error) error {
	app, b, err := openBrowser(opts, f)
	if err != nil {
		return err
	}
	defer app.Close()
	return fn(b)
}

func newWorkfilesCmd(opts *rootOptions) *cobra.Command {
	f := &sessionFlags{}
	cmd := &cobra.Command{
		Use:   "workfiles",
		Short: "List, save, open and duplicate the work files of a task.",
	}
	f.register(cmd)
	cmd.AddCommand(
		newWorkfilesListCmd(opts, f),
		newWorkfilesSaveAsCmd(opts, f),
		newWorkfilesOpenCmd(opts, f),
		newWorkfilesDuplicateCmd(opts, f),
		newWorkfilesWatchCmd(opts, f),
	)
	return cmd
}

func printFiles(w io.Writer, files []workfiles.File) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "NAME\tSIZE\tMODIFIED")
	for _, file := range files {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", file.Name, humanize.IBytes(uint64(file.Size)), humanize.Time(file.Modified))
	}
	return tw.Flush()
}

func newWorkfilesListCmd(opts *rootOptions, f *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the work files of the task, oldest name first.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(opts, f, func(b *workfiles.Browser) error {
				files, err := b.Files()
				if err != nil {
					return err
				}
				return printFiles(cmd.OutOrStdout(), files)
			})
		},
	}
}

type workfileNameFlags struct {
	workfiles.NameOptions
}

func (o *workfileNameFlags) register(cmd *cobra.Command) {
	cmd.Flags().IntVar(&o.Version, "version", 0, "Version to save as (default next available)")
	cmd.Flags().StringVar(&o.Comment, "comment", "", "Comment appended to the file name")
	cmd.Flags().StringVar(&o.Ext, "ext", "", "File extension (default the host's first extension)")
}

func newWorkfilesSaveAsCmd(opts *rootOptions, f *sessionFlags) *cobra.Command {
	var name workfileNameFlags
	var dryRun bool
	cmd := &cobra.Command{
		Use:   "save-as",
		Short: "Save the current scene as a new work file version.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(opts, f, func(b *workfiles.Browser) error {
				if dryRun {
					n, err := b.WorkFileName(name.NameOptions)
					if err != nil {
						return err
					}
					fmt.Fprintln(cmd.OutOrStdout(), filepath.Join(b.Root(), n))
					return nil
				}
				path, err := b.SaveAs(cmd.Context(), name.NameOptions)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	name.register(cmd)
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Print the path without saving")
	return cmd
}

func newWorkfilesOpenCmd(opts *rootOptions, f *sessionFlags) *cobra.Command {
	var unsaved string
	cmd := &cobra.Command{
		Use:   "open [file]",
		Short: "Open a work file, by default the last modified one.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var answer workfiles.PromptResult
			switch unsaved {
			case "cancel":
				answer = workfiles.PromptCancel
			case "save":
				answer = workfiles.PromptSave
			case "discard":
				answer = workfiles.PromptDiscard
			default:
				return fmt.Errorf("invalid --unsaved %q: must be cancel, save or discard", unsaved)
			}

			return withBrowser(opts, f, func(b *workfiles.Browser) error {
				var path string
				if len(args) == 1 {
					path = args[0]
					if !filepath.IsAbs(path) {
						path = filepath.Join(b.Root(), path)
					}
				} else {
					last, ok, err := b.LastModified()
					if err != nil {
						return err
					}
					if !ok {
						return fmt.Errorf("no work files in %s", b.Root())
					}
					path = last.Path
				}

				opened, err := b.Open(cmd.Context(), path, func() workfiles.PromptResult { return answer })
				if err != nil {
					return err
				}
				if !opened {
					fmt.Fprintln(cmd.OutOrStdout(), "cancelled: current scene has unsaved changes")
					return nil
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&unsaved, "unsaved", "cancel", "What to do with unsaved changes: cancel, save or discard")
	return cmd
}

func newWorkfilesDuplicateCmd(opts *rootOptions, f *sessionFlags) *cobra.Command {
	var name workfileNameFlags
	cmd := &cobra.Command{
		Use:   "duplicate <file>",
		Short: "Copy a file into the work directory as a new version.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(opts, f, func(b *workfiles.Browser) error {
				path, err := b.Duplicate(args[0], name.NameOptions)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), path)
				return nil
			})
		},
	}
	name.register(cmd)
	return cmd
}

func newWorkfilesWatchCmd(opts *rootOptions, f *sessionFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Print the work file list whenever the work directory changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withBrowser(opts, f, func(b *workfiles.Browser) error {
				return watchFiles(cmd.Context(), cmd.OutOrStdout(), b)
			})
		},
	}
}

func watchFiles(ctx context.Context, w io.Writer, b *workfiles.Browser) error {
	changes, err := b.Watch(ctx, workfiles.DefaultDebounce)
	if err != nil {
		return err
	}
	for {
		files, err := b.Files()
		if err != nil {
			return err
		}
		if err := printFiles(w, files); err != nil {
			return err
		}
		select {
		case <-ctx.Done():
			return nil
		case _, ok := <-changes:
			if !ok {
				return nil
			}
			fmt.Fprintln(w)
		}
	}
}
