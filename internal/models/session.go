package models

import "time"

// StatusReady marks a session whose tailored document is on disk.
const StatusReady = "ready"

// TailorSession records one processed résumé upload and its rewrite result.
type TailorSession struct {
	ID               string    `json:"id"`
	OriginalFilename string    `json:"original_filename"`
	UploadPath       string    `json:"-"`
	OutputPath       string    `json:"-"`
	JobDescription   string    `json:"job_description"`
	OriginalText     string    `json:"original_cv"`
	ModifiedText     string    `json:"modified_cv"`
	MatchScore       string    `json:"match_score"`
	ChangesSummary   string    `json:"changes_summary"`
	ModelUsed        string    `json:"model_used"`
	Status           string    `json:"status"`
	CreatedAt        time.Time `json:"created_at"`
	ExpiresAt        time.Time `json:"expires_at"`
}
