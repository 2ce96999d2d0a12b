package main

import (
	"errors"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/petrijr/sitesync/internal/farm"
)

type farmReport struct {
	Module     string         `yaml:"module"`
	Plugin     string         `yaml:"plugin"`
	Attributes map[string]any `yaml:"attributes"`
	Submission struct {
		ChunkSize       int `yaml:"chunk_size"`
		Priority        int `yaml:"priority"`
		ConcurrentTasks int `yaml:"concurrent_tasks"`
	} `yaml:"submission"`
}

func newFarmCmd(opts *rootOptions) *cobra.Command {
	var systemPath, projectPath, host string
	cmd := &cobra.Command{
		Use:   "farm",
		Short: "Resolve the render farm and submission attributes of a project.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			fc := opts.cfg.Farm
			if systemPath == "" {
				systemPath = fc.SystemSettings
			}
			if projectPath == "" {
				projectPath = fc.ProjectSettings
			}
			if host == "" {
				host = fc.Host
			}
			if systemPath == "" || projectPath == "" {
				return errors.New("farm settings files are not configured (farm.system_settings, farm.project_settings)")
			}

			system, err := farm.LoadSettings(systemPath)
			if err != nil {
				return err
			}
			project, err := farm.LoadSettings(projectPath)
			if err != nil {
				return err
			}

			r, err := farm.NewResolver(system, project, farm.WithHost(host), farm.WithLogger(opts.logger))
			if err != nil {
				return err
			}

			var report farmReport
			report.Module = r.ActiveFarmModule()
			if report.Plugin, err = r.Plugin(); err != nil {
				return err
			}
			if report.Attributes, err = r.RenderingAttributes(); err != nil {
				return err
			}
			params, err := r.SubmissionParams()
			if err != nil {
				return err
			}
			report.Submission.ChunkSize = params.ChunkSize
			report.Submission.Priority = params.Priority
			report.Submission.ConcurrentTasks = params.ConcurrentTasks

			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(report); err != nil {
				return err
			}
			return enc.Close()
		},
	}
	cmd.Flags().StringVar(&systemPath, "system", "", "System settings file (default farm.system_settings)")
	cmd.Flags().StringVar(&projectPath, "project", "", "Project settings file (default farm.project_settings)")
	cmd.Flags().StringVar(&host, "host", "", "Host application whose submit plugin is used (default farm.host)")
	return cmd
}
