package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"clarifai/internal/jobs"
	"clarifai/internal/textutil"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "status <job-id>",
		Short: "Show a job's status, clips and log",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			job, err := store.Get(cmd.Context(), args[0])
			if errors.Is(err, jobs.ErrNotFound) {
				return fmt.Errorf("job %s not found", args[0])
			}
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(cmd, job)
			}

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			for _, line := range renderJobSummary(job, colorize) {
				fmt.Fprintln(out, line)
			}
			if len(job.Scenes) > 0 {
				fmt.Fprintln(out, renderTable([]string{"Scene", "Description", "Clip"}, sceneRows(job), 0))
			}
			for _, line := range job.LogLines() {
				fmt.Fprintf(out, "  %s\n", line)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print the job as JSON")
	return cmd
}

func sceneRows(job *jobs.ConceptJob) [][]string {
	rows := make([][]string, 0, len(job.Scenes))
	for i, scene := range job.Scenes {
		clip := "-"
		if i < len(job.ClipPaths) {
			clip = job.ClipPaths[i]
		}
		rows = append(rows, []string{
			strconv.Itoa(scene.Number()),
			textutil.Truncate(scene.Description, 60),
			clip,
		})
	}
	return rows
}
