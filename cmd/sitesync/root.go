package main

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/petrijr/sitesync/internal/config"
)

// rootOptions is the state shared by all subcommands. It is filled by the
// root command's PersistentPreRunE.
type rootOptions struct {
	configPath string
	stdout     io.Writer
	stderr     io.Writer

	cfg    *config.Config
	logger *slog.Logger
}

// newRootCmd returns the root of the cobra command tree.
func newRootCmd(args []string, stdout, stderr io.Writer) *cobra.Command {
	opts := &rootOptions{stdout: stdout, stderr: stderr}

	rootCmd := &cobra.Command{
		Use:          "sitesync",
		Short:        "Inspect and control file synchronization between studio sites.",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := cfg.Log.NewLogger(opts.stderr)
			if err != nil {
				return err
			}
			opts.cfg = cfg
			opts.logger = logger
			return nil
		},
	}

	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "",
		"Path of the YAML configuration file (default $"+config.EnvConfig+")")

	rootCmd.AddCommand(
		newSyncCmd(opts),
		newValidateCmd(opts),
		newFarmCmd(opts),
		newWorkfilesCmd(opts),
	)
	return rootCmd
}
