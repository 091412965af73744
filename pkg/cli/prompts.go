// The prompts command: inspect and configure prompt layers.
package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/prompt"
	"github.com/saga-labs/saga-code/pkg/render"
)

func init() {
	var (
		promptsDir   string
		asJSON       bool
		showResolved string
		renderTarget string
		validate     bool
	)
	cmd := &cobra.Command{
		Use:   "prompts [stack]",
		Short: "List or configure prompt layers",
		Long: `Without arguments, lists available layers, the active stack, and
discovered bundles. With a comma-separated stack argument, validates and
persists it as the active stack.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(config.Overrides{PromptsDir: promptsDir})
			if err != nil {
				return err
			}
			manager := prompt.NewManager(cfg.PromptsDir)

			if len(args) == 1 && (showResolved != "" || renderTarget != "" || validate) {
				return errors.New("cannot combine stack updates with --show-resolved, --render, or --validate")
			}

			switch {
			case len(args) == 1:
				return setActiveStack(manager, args[0])
			case validate:
				return validateActiveStack(manager)
			case showResolved != "":
				return showResolvedPrompt(manager, showResolved)
			case renderTarget != "":
				return renderPrompt(manager, renderTarget)
			default:
				return listPrompts(manager, asJSON)
			}
		},
	}
	cmd.Flags().StringVar(&promptsDir, "prompts-dir", "", "Prompts directory (default ./prompts)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Output machine-readable JSON")
	cmd.Flags().StringVar(&showResolved, "show-resolved", "", "Show composed template for BUNDLE/ROLE")
	cmd.Flags().StringVar(&renderTarget, "render", "", "Render BUNDLE/ROLE with merged variables")
	cmd.Flags().BoolVar(&validate, "validate", false, "Validate the active prompt stack")
	rootCmd.AddCommand(cmd)
}

func setActiveStack(manager *prompt.Manager, raw string) error {
	stack, err := prompt.ParseStack(raw)
	if err != nil {
		return err
	}
	if err := manager.WriteActiveStack(stack); err != nil {
		return err
	}
	fmt.Printf("Active prompt stack set to: %s\n", strings.Join(stack, ","))
	return nil
}

func validateActiveStack(manager *prompt.Manager) error {
	stack, err := manager.ReadActiveStack()
	if err != nil {
		return err
	}
	if err := manager.Validate(stack); err != nil {
		return err
	}
	fmt.Println("Prompt stack validation passed.")
	return nil
}

func showResolvedPrompt(manager *prompt.Manager, target string) error {
	bundle, role, err := parseBundleRole(target)
	if err != nil {
		return err
	}
	stack, err := manager.ReadActiveStack()
	if err != nil {
		return err
	}
	text, sources, err := manager.ComposeText(stack, bundle, role, "")
	if err != nil {
		return err
	}
	fmt.Println("Resolved prompt stack:")
	fmt.Printf("  Stack: %s\n", strings.Join(sources.Stack, ", "))
	fmt.Printf("  Body: %s\n", sources.Body.Path)
	if len(sources.Prepends) > 0 {
		fmt.Println("  Prepends:")
		for _, fragment := range sources.Prepends {
			fmt.Printf("    - %s\n", fragment.Path)
		}
	}
	if len(sources.Appends) > 0 {
		fmt.Println("  Appends:")
		for _, fragment := range sources.Appends {
			fmt.Printf("    - %s\n", fragment.Path)
		}
	}
	fmt.Println("\nComposed template:")
	fmt.Println()
	fmt.Println(text)
	return nil
}

func renderPrompt(manager *prompt.Manager, target string) error {
	bundle, role, err := parseBundleRole(target)
	if err != nil {
		return err
	}
	stack, err := manager.ReadActiveStack()
	if err != nil {
		return err
	}
	rendered, err := manager.Render(stack, bundle, role, nil)
	if err != nil {
		return err
	}
	fmt.Println(rendered)
	return nil
}

func listPrompts(manager *prompt.Manager, asJSON bool) error {
	layers, err := manager.ListLayers()
	if err != nil {
		return err
	}
	stack, err := manager.ReadActiveStack()
	if err != nil {
		return err
	}
	stackLabel := "Recommended stack"
	if _, statErr := os.Stat(filepath.Join(manager.Root(), "active_stack.txt")); statErr == nil {
		stackLabel = "Active stack"
	}
	bundles, err := manager.ListBundles(layers)
	if err != nil {
		return err
	}

	if asJSON {
		return render.PrintJSON(map[string]any{
			"layers":      layers,
			"stack":       stack,
			"stack_label": stackLabel,
			"bundles":     bundles,
		})
	}

	fmt.Println("Available prompt layers:")
	if len(layers) == 0 {
		fmt.Println("  (none)")
	}
	for _, layer := range layers {
		fmt.Printf("  - %s\n", layer)
	}
	fmt.Printf("%s: %s\n", stackLabel, strings.Join(stack, ", "))
	if len(bundles) == 0 {
		fmt.Println("No prompt bundles found.")
		return nil
	}
	fmt.Println("Discovered prompt bundles:")
	for _, bundle := range bundles {
		fmt.Printf("  - %s\n", bundle)
	}
	return nil
}

func parseBundleRole(raw string) (string, string, error) {
	bundle, role, found := strings.Cut(raw, "/")
	if !found || bundle == "" || role == "" {
		return "", "", errors.New("expected bundle/role format")
	}
	if role != "system" && role != "user" {
		return "", "", fmt.Errorf("role must be 'system' or 'user', got %q", role)
	}
	return bundle, role, nil
}
