package models

// RewriteResult is the parsed outcome of one successful model call.
type RewriteResult struct {
	ModifiedCV     string `json:"modified_cv"`
	MatchScore     string `json:"match_score"`
	ChangesSummary string `json:"changes_summary"`
	Model          string `json:"model"`
}
