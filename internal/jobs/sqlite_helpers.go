package jobs

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// timestampLayout is fixed width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

const jobColumns = "id, owner, concept_name, concept_description, output_dir, quality, status, scenes_json, log_json, clip_paths_json, final_video_path, failure_reason, error_message, created_at, updated_at, last_heartbeat"

func scanJob(scanner interface{ Scan(dest ...any) error }) (*ConceptJob, error) {
	var (
		id                 string
		owner              string
		conceptName        string
		conceptDescription string
		outputDir          sql.NullString
		quality            sql.NullString
		statusStr          string
		scenesRaw          sql.NullString
		logRaw             sql.NullString
		clipsRaw           sql.NullString
		finalPath          sql.NullString
		failureReason      sql.NullString
		errorMessage       sql.NullString
		createdRaw         sql.NullString
		updatedRaw         sql.NullString
		heartbeatRaw       sql.NullString
	)
	if err := scanner.Scan(
		&id,
		&owner,
		&conceptName,
		&conceptDescription,
		&outputDir,
		&quality,
		&statusStr,
		&scenesRaw,
		&logRaw,
		&clipsRaw,
		&finalPath,
		&failureReason,
		&errorMessage,
		&createdRaw,
		&updatedRaw,
		&heartbeatRaw,
	); err != nil {
		return nil, err
	}

	job := &ConceptJob{
		ID:                 id,
		Owner:              owner,
		ConceptName:        conceptName,
		ConceptDescription: conceptDescription,
		OutputDir:          outputDir.String,
		Quality:            quality.String,
		Status:             Status(statusStr),
		FinalVideoPath:     finalPath.String,
		FailureReason:      failureReason.String,
		ErrorMessage:       errorMessage.String,
	}
	if err := decodeJSON(scenesRaw.String, &job.Scenes); err != nil {
		return nil, fmt.Errorf("decode scenes for %s: %w", id, err)
	}
	if err := decodeJSON(logRaw.String, &job.Log); err != nil {
		return nil, fmt.Errorf("decode log for %s: %w", id, err)
	}
	if err := decodeJSON(clipsRaw.String, &job.ClipPaths); err != nil {
		return nil, fmt.Errorf("decode clip paths for %s: %w", id, err)
	}
	if created, err := parseTimeString(createdRaw.String); err == nil {
		job.CreatedAt = created
	}
	if updated, err := parseTimeString(updatedRaw.String); err == nil {
		job.UpdatedAt = updated
	}
	if heartbeatRaw.Valid {
		if heartbeat, err := parseTimeString(heartbeatRaw.String); err == nil {
			job.LastHeartbeat = &heartbeat
		}
	}
	return job, nil
}

func encodeJSON(value any) (string, error) {
	data, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func decodeJSON(raw string, target any) error {
	if raw == "" || raw == "null" {
		return nil
	}
	return json.Unmarshal([]byte(raw), target)
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableTime(value *time.Time) any {
	if value == nil {
		return nil
	}
	return value.UTC().Format(timestampLayout)
}

func parseTimeString(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}
