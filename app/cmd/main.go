package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "0.1.0"

func main() {
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	var opts globalOptions

	root := &cobra.Command{
		Use:     "scaffoldgen",
		Short:   "Generate complete frontend projects with a staged LLM pipeline",
		Version: version,
		Long: `scaffoldgen drives a language model through analysis, planning, generation,
composition, validation and improvement stages and writes the resulting project.

Commands:
  serve      Run the HTTP API, the generation worker and the metrics endpoint
  generate   Generate one project from the command line
  validate   Check an existing project directory`,
		SilenceUsage: true,
	}

	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	root.PersistentFlags().StringVar(&opts.stackFile, "stack", "", "HCL stack file with templates and token budgets")
	root.PersistentFlags().StringVar(&opts.catalogFile, "catalog", "", "YAML feature catalog")

	root.AddCommand(serveCmd(&opts))
	root.AddCommand(generateCmd(&opts))
	root.AddCommand(validateCmd(&opts))
	return root
}
