package rewrite

import (
	"regexp"
	"strings"

	"cvtailor/internal/models"
)

const (
	labelModifiedCV     = "MODIFIED_CV:"
	labelMatchScore     = "MATCH_SCORE:"
	labelChangesSummary = "CHANGES_SUMMARY:"

	defaultChangesSummary = "CV optimized for job requirements with enhanced keywords and relevant experience highlighting."
)

var scoreDigitsRe = regexp.MustCompile(`\d+`)

// parseResponse splits the model reply into its labelled sections. Models do
// not always follow the format; when the labels are missing the whole reply
// is treated as the modified CV.
func parseResponse(reply string) *models.RewriteResult {
	result := &models.RewriteResult{
		ModifiedCV:     strings.TrimSpace(reply),
		MatchScore:     "N/A",
		ChangesSummary: defaultChangesSummary,
	}

	_, rest, found := strings.Cut(reply, labelModifiedCV)
	if !found {
		return result
	}

	cv, rest, found := strings.Cut(rest, labelMatchScore)
	result.ModifiedCV = strings.TrimSpace(cv)
	if !found {
		return result
	}

	score, summary, found := strings.Cut(rest, labelChangesSummary)
	if digits := scoreDigitsRe.FindString(score); digits != "" {
		result.MatchScore = digits + "%"
	}
	if found {
		if summary = strings.TrimSpace(summary); summary != "" {
			result.ChangesSummary = summary
		}
	}
	return result
}
