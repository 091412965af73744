// The version command: build and resolved-configuration summary.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/render"
)

func init() {
	flags := &connectionFlags{}
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Show version and resolved configuration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(flags.overrides())
			if err != nil {
				return err
			}
			path, err := config.Path()
			if err != nil {
				return err
			}
			keyPresent := "no"
			if cfg.HasAPIKey() {
				keyPresent = "yes"
			}
			caBundle := cfg.CABundle
			if caBundle == "" {
				caBundle = "default"
			}
			render.PrintPanel("saga-code", fmt.Sprintf(
				"Version: %s\nBase URL: %s\nAPI key present: %s\nCA bundle: %s\nConfig file: %s",
				cmd.Root().Version, cfg.BaseURL, keyPresent, caBundle, path))
			return nil
		},
	}
	flags.register(cmd)
	rootCmd.AddCommand(cmd)
}
