package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

// writeJSON encodes v as indented JSON to the command's stdout.
func writeJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// resultLine is the single-line summary printed by `generate --result-line`
// for callers that drive clarifai as a subprocess.
type resultLine struct {
	Success        bool   `json:"success"`
	JobID          string `json:"job_id,omitempty"`
	FinalVideoPath string `json:"final_video_path,omitempty"`
	Error          string `json:"error,omitempty"`
}

func writeResultLine(cmd *cobra.Command, line resultLine) error {
	data, err := json.Marshal(line)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(cmd.OutOrStdout(), "RESULT: %s\n", data)
	return err
}
