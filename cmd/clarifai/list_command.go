package main

import (
	"fmt"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"clarifai/internal/jobs"
	"clarifai/internal/textutil"
)

func newListCommand(ctx *commandContext) *cobra.Command {
	var owner string
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List jobs, newest first",
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := ctx.ensureStore()
			if err != nil {
				return err
			}
			list, err := store.List(cmd.Context(), owner)
			if err != nil {
				return err
			}
			if jsonOutput {
				if list == nil {
					list = []*jobs.ConceptJob{}
				}
				return writeJSON(cmd, list)
			}
			out := cmd.OutOrStdout()
			if len(list) == 0 {
				fmt.Fprintln(out, "No jobs")
				return nil
			}
			fmt.Fprintln(out, renderTable(
				[]string{"ID", "Concept", "Owner", "Status", "Scenes", "Updated"},
				jobRows(list, time.Now()),
				4,
			))
			return nil
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "Only list jobs for this owner")
	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Print jobs as JSON")
	return cmd
}

func jobRows(list []*jobs.ConceptJob, now time.Time) [][]string {
	rows := make([][]string, 0, len(list))
	for _, job := range list {
		rows = append(rows, []string{
			job.ID,
			textutil.DisplayTitle(job.ConceptName),
			job.Owner,
			string(job.Status),
			strconv.Itoa(len(job.Scenes)),
			formatAge(job.UpdatedAt, now),
		})
	}
	return rows
}

func formatAge(t, now time.Time) string {
	if t.IsZero() {
		return "-"
	}
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	default:
		return t.Local().Format("2006-01-02")
	}
}
