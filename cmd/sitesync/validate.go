package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/petrijr/sitesync/internal/validate"
)

func newValidateCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <scene.yaml> [instance...]",
		Short: "Check that model instances hold only publishable content.",
		Long: "Check that model instances hold only publishable content.\n\n" +
			"Without instance names every instance declared in the scene file is checked.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scene, err := validate.LoadScene(args[0])
			if err != nil {
				return err
			}

			var instances []validate.Instance
			if len(args) == 1 {
				instances = scene.Instances()
			} else {
				for _, name := range args[1:] {
					inst, ok := scene.Instance(name)
					if !ok {
						return fmt.Errorf("instance %q not found in %s", name, args[0])
					}
					instances = append(instances, inst)
				}
			}

			v := validate.NewModelContent(opts.logger)
			out := cmd.OutOrStdout()
			var errs []error
			for _, inst := range instances {
				if err := v.Process(scene, inst); err != nil {
					errs = append(errs, err)
					fmt.Fprintf(out, "FAIL  %s\n", inst.Name)
					for _, path := range v.Validate(scene, inst).Invalid {
						fmt.Fprintf(out, "      %s\n", path)
					}
					continue
				}
				fmt.Fprintf(out, "ok    %s\n", inst.Name)
			}
			return errors.Join(errs...)
		},
	}
	return cmd
}
