package worker

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"cvtailor/internal/document"
	"cvtailor/internal/models"
	"cvtailor/internal/service/tailor"

	"go.uber.org/zap"
)

// A posting shorter than this is almost certainly a scrape miss rather than
// a real job description.
const minJobDescriptionLength = 50

// ErrJobDescriptionTooShort is returned when neither the pasted text nor the
// scraped page yields a usable job description.
var ErrJobDescriptionTooShort = errors.New("job description too short")

// TailorRequest carries one upload through the tailoring pipeline. Exactly
// one of JobURL and JobText is expected; JobText wins when both are set.
type TailorRequest struct {
	Context          context.Context
	SessionID        string
	UploadPath       string
	OriginalFilename string
	JobURL           string
	JobText          string
}

// Rewriter produces the tailored CV text for a posting.
type Rewriter interface {
	Rewrite(ctx context.Context, cvText, jobDescription string) (*models.RewriteResult, error)
}

// JobScraper extracts a job description from a posting URL.
type JobScraper interface {
	ExtractJobDescription(ctx context.Context, rawURL string) (string, error)
}

// Manager executes tailoring jobs on behalf of the worker pool.
type Manager struct {
	tailor   *tailor.Service
	scraper  JobScraper
	rewriter Rewriter
	logger   *zap.Logger
}

func NewManager(tailorSvc *tailor.Service, scraper JobScraper, rewriter Rewriter, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		tailor:   tailorSvc,
		scraper:  scraper,
		rewriter: rewriter,
		logger:   logger,
	}
}

func (m *Manager) handleTailor(task *tailorTask) {
	req := task.req
	ctx := req.Context
	if ctx == nil {
		ctx = context.Background()
	}

	started := time.Now()
	session, err := m.runPipeline(ctx, req)
	if err != nil {
		m.logger.Warn("tailoring failed",
			zap.String("session", req.SessionID),
			zap.Duration("took", time.Since(started)),
			zap.Error(err))
		task.resultCh <- tailorReturn{err: err}
		return
	}

	m.logger.Info("tailoring done",
		zap.String("session", session.ID),
		zap.String("model", session.ModelUsed),
		zap.String("score", session.MatchScore),
		zap.Duration("took", time.Since(started)))
	task.resultCh <- tailorReturn{session: session}
}

func (m *Manager) runPipeline(ctx context.Context, req TailorRequest) (*models.TailorSession, error) {
	jobDescription := strings.TrimSpace(req.JobText)
	if jobDescription == "" {
		scraped, err := m.scraper.ExtractJobDescription(ctx, req.JobURL)
		if err != nil {
			return nil, err
		}
		jobDescription = scraped
	}
	if len(jobDescription) < minJobDescriptionLength {
		return nil, ErrJobDescriptionTooShort
	}

	originalText, err := document.ExtractText(req.UploadPath)
	if err != nil {
		return nil, fmt.Errorf("read uploaded cv: %w", err)
	}
	if strings.TrimSpace(originalText) == "" {
		return nil, errors.New("uploaded document contains no text")
	}

	result, err := m.rewriter.Rewrite(ctx, originalText, jobDescription)
	if err != nil {
		return nil, err
	}

	outputPath := m.tailor.OutputPath(req.SessionID)
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	if err := document.PatchText(req.UploadPath, outputPath, result.ModifiedCV); err != nil {
		return nil, fmt.Errorf("patch document: %w", err)
	}

	session := &models.TailorSession{
		ID:               req.SessionID,
		OriginalFilename: req.OriginalFilename,
		UploadPath:       req.UploadPath,
		OutputPath:       outputPath,
		JobDescription:   jobDescription,
		OriginalText:     originalText,
		ModifiedText:     result.ModifiedCV,
		MatchScore:       result.MatchScore,
		ChangesSummary:   result.ChangesSummary,
		ModelUsed:        result.Model,
	}
	if err := m.tailor.CreateSession(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}
