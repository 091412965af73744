// The models command: discovery via listing with probe fallback.
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/render"
)

func init() {
	flags := &connectionFlags{}
	var (
		preferEndpoint string
		candidates     []string
		asJSON         bool
		verbose        bool
	)
	cmd := &cobra.Command{
		Use:   "models",
		Short: "Discover available models",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			prefer, err := llm.ParsePreferEndpoint(preferEndpoint)
			if err != nil {
				return err
			}
			overrides := flags.overrides()
			overrides.Candidates = candidates
			cfg, err := config.Load(overrides)
			if err != nil {
				return err
			}
			client, err := newClient(cfg, verbose)
			if err != nil {
				return err
			}

			if !asJSON {
				fmt.Println("Querying models...")
			}
			results, err := llm.Discover(cmd.Context(), client, prefer, cfg.Candidates)
			if err != nil {
				return err
			}

			if asJSON {
				return render.PrintJSON(results)
			}
			if len(results) == 0 {
				fmt.Println("No models discovered.")
				return nil
			}
			fmt.Println(render.ModelsTable(results))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&preferEndpoint, "prefer-endpoint", "auto", "Discovery strategy: models, probe, or auto")
	cmd.Flags().StringArrayVar(&candidates, "candidate", nil, "Candidate model ID to probe (repeatable)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output machine-readable JSON")
	cmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Verbose request logging")
	rootCmd.AddCommand(cmd)
}
