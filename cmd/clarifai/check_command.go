package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"clarifai/internal/preflight"
)

func newCheckCommand(ctx *commandContext) *cobra.Command {
	var skipLLM bool

	cmd := &cobra.Command{
		Use:   "check",
		Short: "Verify external tools, directories and the oracle",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			results := preflight.RunAll(cmd.Context(), cfg, preflight.Options{SkipLLM: skipLLM})

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range checkLines(results, colorize) {
				fmt.Fprintln(out, line)
			}
			if failed := preflight.Failed(results); len(failed) > 0 {
				return fmt.Errorf("%d check(s) failed", len(failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&skipLLM, "skip-llm", false, "Skip the oracle round trip")
	return cmd
}

func checkLines(results []preflight.Result, colorize bool) []string {
	lines := make([]string, 0, len(results))
	for _, result := range results {
		kind := statusOK
		switch {
		case result.Passed:
		case result.Optional:
			kind = statusWarn
		default:
			kind = statusError
		}
		lines = append(lines, renderStatusLine(result.Name, kind, result.Detail, colorize))
	}
	return lines
}
