package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"clarifai/internal/jobs"
	"clarifai/internal/logging"
	"clarifai/internal/textutil"
	"clarifai/internal/workflow"
)

type generateOptions struct {
	owner       string
	name        string
	description string
	quality     string
	outputDir   string
	jsonOutput  bool
	resultLine  bool
}

func newGenerateCommand(ctx *commandContext) *cobra.Command {
	opts := generateOptions{}

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a video for a concept",
		Long: "Plan the concept into scenes, render each scene with manim (correcting\n" +
			"failed programs up to three times) and join the clips into one video.\n" +
			"Pass --description - to read the description from stdin.",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runGenerate(cmd, ctx, opts)
		},
	}

	cmd.Flags().StringVar(&opts.owner, "owner", defaultOwner(), "Owner the job runs for (one job per owner at a time)")
	cmd.Flags().StringVarP(&opts.name, "name", "n", "", "Concept name")
	cmd.Flags().StringVarP(&opts.description, "description", "d", "", "Concept description")
	cmd.Flags().StringVarP(&opts.quality, "quality", "q", "", "Render quality: low, medium or high")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Directory for clips and the final video")
	cmd.Flags().BoolVar(&opts.jsonOutput, "json", false, "Print the finished job as JSON")
	cmd.Flags().BoolVar(&opts.resultLine, "result-line", false, "Print a single RESULT: {...} line")
	_ = cmd.MarkFlagRequired("name")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func runGenerate(cmd *cobra.Command, ctx *commandContext, opts generateOptions) error {
	cfg, err := ctx.ensureConfig()
	if err != nil {
		return err
	}
	if err := cfg.RequireLLM(); err != nil {
		return err
	}
	logger, err := ctx.ensureLogger()
	if err != nil {
		return err
	}
	store, err := ctx.ensureStore()
	if err != nil {
		return err
	}

	description := opts.description
	if strings.TrimSpace(description) == "-" {
		data, err := io.ReadAll(cmd.InOrStdin())
		if err != nil {
			return fmt.Errorf("read description: %w", err)
		}
		description = string(data)
	}

	manager, err := ctx.newManager(cfg, store, logger)
	if err != nil {
		return err
	}
	defer manager.Stop()

	runCtx := cmd.Context()
	if runCtx == nil {
		runCtx = context.Background()
	}
	if _, err := manager.ReclaimStale(runCtx); err != nil {
		logger.Warn("stale job check failed", logging.Error(err))
	}

	job, err := manager.Submit(runCtx, workflow.Request{
		Owner:              opts.owner,
		ConceptName:        opts.name,
		ConceptDescription: description,
		Quality:            opts.quality,
		OutputDir:          opts.outputDir,
	})
	if err != nil {
		if opts.resultLine {
			_ = writeResultLine(cmd, resultLine{Error: err.Error()})
		}
		return err
	}
	quiet := opts.jsonOutput || opts.resultLine
	if !quiet {
		fmt.Fprintf(cmd.OutOrStdout(), "Generating %q (job %s)\n", textutil.DisplayTitle(job.ConceptName), job.ID)
	}

	final, err := manager.Wait(runCtx, job.ID)
	if err != nil {
		if !errors.Is(err, context.Canceled) {
			return err
		}
		manager.Stop()
		if final, err = manager.Get(context.Background(), job.ID); err != nil {
			return err
		}
	}

	switch {
	case opts.resultLine:
		line := resultLine{Success: final.Status == jobs.StatusCompleted, JobID: final.ID}
		if line.Success {
			line.FinalVideoPath = final.FinalVideoPath
		} else {
			line.Error = final.ErrorMessage
		}
		if err := writeResultLine(cmd, line); err != nil {
			return err
		}
	case opts.jsonOutput:
		if err := writeJSON(cmd, final); err != nil {
			return err
		}
	default:
		printJobSummary(cmd.OutOrStdout(), final)
	}

	if final.Status != jobs.StatusCompleted {
		return fmt.Errorf("generation failed: %s", final.ErrorMessage)
	}
	return nil
}

func printJobSummary(out io.Writer, job *jobs.ConceptJob) {
	for _, line := range job.LogLines() {
		fmt.Fprintf(out, "  %s\n", line)
	}
	if job.Status == jobs.StatusCompleted {
		fmt.Fprintf(out, "Video ready: %s\n", job.FinalVideoPath)
		return
	}
	fmt.Fprintf(out, "Job %s %s: %s\n", job.ID, job.Status, job.ErrorMessage)
}

func defaultOwner() string {
	if user := strings.TrimSpace(os.Getenv("USER")); user != "" {
		return user
	}
	return "default"
}
