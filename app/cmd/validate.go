package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"scaffoldgen/app/config"
	"scaffoldgen/internal/domain/entity"
	"scaffoldgen/internal/infrastructure/store/filesystem"
	"scaffoldgen/internal/infrastructure/validator"
)

func validateCmd(opts *globalOptions) *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "validate DIR",
		Short: "Run the project checks against a directory",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			report, err := validateDir(loadConfig(opts), args[0])
			if err != nil {
				return err
			}
			if err := printReport(cmd.OutOrStdout(), report, asJSON); err != nil {
				return err
			}
			if !report.Passed {
				return fmt.Errorf("%w: %d errors", entity.ErrValidationFailed, len(report.Errors()))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the report as JSON")
	return cmd
}

func validateDir(cfg *config.Config, dir string) (*entity.ValidationReport, error) {
	logger := newLogger(os.Stderr, cfg.LogLevel, false)

	stack, err := config.LoadStack(cfg.StackFile)
	if err != nil {
		return nil, err
	}
	files, err := filesystem.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	logger.Debug("loaded project", "dir", dir, "files", len(files))

	return validator.NewPipeline(stack.Stack, logger).ValidateFiles(files), nil
}

func printReport(out io.Writer, report *entity.ValidationReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}
	for _, issue := range report.Issues {
		mark := "!"
		if issue.Severity == entity.SeverityError {
			mark = "✗"
		}
		fmt.Fprintf(out, "%s %s\n", mark, issue)
	}
	if report.Passed {
		fmt.Fprintf(out, "passed with %d warnings\n", len(report.Warnings()))
	} else {
		fmt.Fprintf(out, "failed: %d errors, %d warnings\n", len(report.Errors()), len(report.Warnings()))
	}
	return nil
}
