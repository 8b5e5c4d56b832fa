/*
Copyright © 2023 sanix-darker <s4nixd@gmail.com>

*/

package cmd

import (
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "ucr",
	Short: "A universal reverse proxy for Claude-shaped API requests.",
	Long: `ucr accepts requests in the canonical Anthropic /v1/messages shape
and forwards them to whichever configured upstream provider (Anthropic,
OpenAI-compatible, Google Gemini, Cohere, Ollama, Replicate, ...) is best
suited for the request, reshaping the response back into the same
canonical dialect.`,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "path to config file (default ~/.ucr/config.json)")
}
