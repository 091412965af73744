// Package cli implements the saga-code command-line interface using Cobra.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/saga-labs/saga-code/pkg/config"
	"github.com/saga-labs/saga-code/pkg/llm"
	"github.com/saga-labs/saga-code/pkg/render"
)

var rootCmd = &cobra.Command{
	Use:   "saga-code",
	Short: "saga-code — model discovery, chat, and layered prompt tooling",
	Long: `saga-code talks to an OpenAI-compatible API server: it discovers
available models, runs interactive chat sessions, and explains C/C++ sources
using layered prompt templates.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command. Called from main.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		render.PrintErrorPanel(err.Error())
		os.Exit(1)
	}
}

// connectionFlags are the transport flags shared by networked commands.
type connectionFlags struct {
	baseURL  string
	apiKey   string
	timeout  int
	caBundle string
}

func (f *connectionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.baseURL, "base-url", "", "Override the API base URL")
	cmd.Flags().StringVar(&f.apiKey, "api-key", "", "Override the API key")
	cmd.Flags().IntVar(&f.timeout, "timeout", 0, "Request timeout in seconds")
	cmd.Flags().StringVar(&f.caBundle, "ca-bundle", "", "Path to a PEM-encoded CA bundle for TLS verification")
}

func (f *connectionFlags) overrides() config.Overrides {
	return config.Overrides{
		BaseURL:  f.baseURL,
		APIKey:   f.apiKey,
		Timeout:  f.timeout,
		CABundle: f.caBundle,
	}
}

// newClient builds an API client from resolved configuration.
func newClient(cfg config.Config, verbose bool) (*llm.Client, error) {
	return llm.NewClient(llm.ClientConfig{
		BaseURL:  cfg.BaseURL,
		APIKey:   cfg.APIKey,
		Timeout:  time.Duration(cfg.Timeout) * time.Second,
		CABundle: cfg.CABundle,
		Verbose:  verbose,
	})
}
