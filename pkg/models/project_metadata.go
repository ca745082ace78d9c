package models

import (
	"time"

	"github.com/google/uuid"
)

// FirstCommitType classifies what a project's first commit touched.
type FirstCommitType string

const (
	FirstCommitSetup     FirstCommitType = "setup"
	FirstCommitAuth      FirstCommitType = "auth"
	FirstCommitUI        FirstCommitType = "ui"
	FirstCommitDataModel FirstCommitType = "data_model"
	FirstCommitAPI       FirstCommitType = "api"
)

// FirstCommitTypes lists the known first-commit classifications in a stable order.
var FirstCommitTypes = []FirstCommitType{
	FirstCommitSetup, FirstCommitAuth, FirstCommitUI, FirstCommitDataModel, FirstCommitAPI,
}

// ProjectMetadata holds engineering facts about a project.
// Stored in graveyard_project_metadata, one row per project.
// Estimated rows are synthesised from the project record rather than measured,
// detectors that read them operate on low-confidence inputs.
type ProjectMetadata struct {
	ProjectID            uuid.UUID          `json:"project_id"`
	TotalDaysActive      int                `json:"total_days_active"`
	EstimatedLinesOfCode int                `json:"estimated_lines_of_code"`
	EstimatedCommitCount int                `json:"estimated_commit_count"`
	LibrariesCount       int                `json:"libraries_count"`
	FilesCount           int                `json:"files_count"`
	FirstCommitType      FirstCommitType    `json:"first_commit_type"`
	HasReadme            bool               `json:"has_readme"`
	HasTests             bool               `json:"has_tests"`
	HasDocumentation     bool               `json:"has_documentation"`
	Provenance           MetadataProvenance `json:"provenance"`
	CreatedAt            time.Time          `json:"created_at"`
	UpdatedAt            time.Time          `json:"updated_at"`
}

// IsEstimated returns true if the metadata was not measured.
func (m *ProjectMetadata) IsEstimated() bool {
	return m != nil && m.Provenance != ProvenanceMeasured
}
