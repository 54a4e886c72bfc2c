package tailor

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"cvtailor/internal/models"

	"go.uber.org/zap"
)

// Service persists tailoring sessions and manages their files on disk.
type Service struct {
	db          *sql.DB
	uploadDir   string
	modifiedDir string
	sessionTTL  time.Duration
	logger      *zap.Logger
}

// NewService constructs the session service and ensures both data
// directories exist.
func NewService(db *sql.DB, uploadDir, modifiedDir string, sessionTTL time.Duration, logger *zap.Logger) (*Service, error) {
	if sessionTTL <= 0 {
		sessionTTL = time.Hour
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	for _, dir := range []string{uploadDir, modifiedDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create data dir %s: %w", dir, err)
		}
	}
	return &Service{
		db:          db,
		uploadDir:   uploadDir,
		modifiedDir: modifiedDir,
		sessionTTL:  sessionTTL,
		logger:      logger,
	}, nil
}

// SessionTTL reports the configured session lifetime.
func (s *Service) SessionTTL() time.Duration {
	return s.sessionTTL
}

// UploadPath returns the on-disk location for a session's uploaded CV.
func (s *Service) UploadPath(sessionID, filename string) string {
	return filepath.Join(s.uploadDir, sessionID, filepath.Base(filename))
}

// OutputPath returns the on-disk location for a session's tailored CV.
func (s *Service) OutputPath(sessionID string) string {
	return filepath.Join(s.modifiedDir, sessionID, "tailored.docx")
}

// CreateSession inserts a completed session record. Timestamps are filled in
// when the caller left them zero.
func (s *Service) CreateSession(ctx context.Context, session *models.TailorSession) error {
	if session.ID == "" {
		return errors.New("session id is required")
	}
	if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	if session.ExpiresAt.IsZero() {
		session.ExpiresAt = session.CreatedAt.Add(s.sessionTTL)
	}
	if session.Status == "" {
		session.Status = models.StatusReady
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO tailor_sessions
			(id, original_filename, upload_path, output_path, job_description, original_text, modified_text, match_score, changes_summary, model_used, status, created_at, expires_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		session.ID, session.OriginalFilename, session.UploadPath, session.OutputPath,
		session.JobDescription, session.OriginalText, session.ModifiedText,
		session.MatchScore, session.ChangesSummary, session.ModelUsed,
		session.Status, session.CreatedAt, session.ExpiresAt,
	)
	if err != nil {
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// GetSession returns one session by id. Missing sessions surface as
// sql.ErrNoRows.
func (s *Service) GetSession(ctx context.Context, id string) (*models.TailorSession, error) {
	var session models.TailorSession
	err := s.db.QueryRowContext(ctx,
		`SELECT id, original_filename, upload_path, output_path, job_description, original_text, modified_text, match_score, changes_summary, model_used, status, created_at, expires_at
			FROM tailor_sessions WHERE id = ?`, id,
	).Scan(&session.ID, &session.OriginalFilename, &session.UploadPath, &session.OutputPath,
		&session.JobDescription, &session.OriginalText, &session.ModifiedText,
		&session.MatchScore, &session.ChangesSummary, &session.ModelUsed,
		&session.Status, &session.CreatedAt, &session.ExpiresAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return &session, nil
}

// DeleteSession removes a session row; download tokens cascade.
func (s *Service) DeleteSession(ctx context.Context, id string) error {
	if id == "" {
		return errors.New("invalid session id")
	}
	res, err := s.db.ExecContext(ctx, `DELETE FROM tailor_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("session rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// RemoveSessionFiles deletes the session's upload and output directories.
func (s *Service) RemoveSessionFiles(sessionID string) {
	if sessionID == "" {
		return
	}
	for _, dir := range []string{
		filepath.Join(s.uploadDir, sessionID),
		filepath.Join(s.modifiedDir, sessionID),
	} {
		if err := os.RemoveAll(dir); err != nil {
			s.logger.Warn("remove session files", zap.String("dir", dir), zap.Error(err))
		}
	}
}
