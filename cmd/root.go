// Package cmd defines and implements the CLI commands for the title-relay executable.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/title-relay/internal/config"
)

var cfgFile string

// newRootCmd creates and configures the root command.
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "title-relay",
		Short: "Fetches web pages and answers with their <title>.",
		Long: `title-relay is a small HTTP service for chat and link-preview clients.
A request such as GET /https/example.com/page is answered with the title of
https://example.com/page as plain text. Redirects are followed up to a limit,
payloads are capped, and a few sites are answered from a static table.`,
		Version:       config.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default searches ./titlerelay.* and /etc/titlerelay/titlerelay.*)")

	cmd.AddCommand(newServeCmd())

	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "title-relay: %v\n", err)
		os.Exit(1)
	}
}
