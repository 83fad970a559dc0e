package models

import (
	"time"

	"comfy-studio/server/internal/workflow"
)

// ArtifactRecord is the durable history row for one produced artifact.
type ArtifactRecord struct {
	ID           string    `json:"id" gorm:"primaryKey;size:36"`
	RunID        string    `json:"run_id" gorm:"size:36;index"`
	Kind         string    `json:"kind" gorm:"size:32;index"`
	Prompt       string    `json:"prompt" gorm:"type:text"`
	URL          string    `json:"url" gorm:"size:1024"`
	Filename     string    `json:"filename" gorm:"size:255"`
	IsVolumetric bool      `json:"is_volumetric"`
	CreatedAt    time.Time `json:"created_at"`
}

// FromArtifact builds a history row from a run's artifact.
func FromArtifact(runID string, a workflow.Artifact) ArtifactRecord {
	return ArtifactRecord{
		ID:           a.ID,
		RunID:        runID,
		Kind:         string(a.Kind),
		Prompt:       a.Prompt,
		URL:          a.URL,
		Filename:     a.Filename,
		IsVolumetric: a.IsVolumetric,
	}
}

// ToArtifact converts a history row back to the API shape.
func (r ArtifactRecord) ToArtifact() workflow.Artifact {
	return workflow.Artifact{
		ID:           r.ID,
		URL:          r.URL,
		Kind:         workflow.Kind(r.Kind),
		Prompt:       r.Prompt,
		IsVolumetric: r.IsVolumetric,
		Filename:     r.Filename,
	}
}

// RunRecord is the durable history row for one generation run.
type RunRecord struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	Kind      string    `json:"kind" gorm:"size:32;index"`
	State     string    `json:"state" gorm:"size:24;index"`
	JobID     string    `json:"job_id" gorm:"size:64"`
	Prompt    string    `json:"prompt" gorm:"type:text"`
	Error     string    `json:"error" gorm:"type:text"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}
