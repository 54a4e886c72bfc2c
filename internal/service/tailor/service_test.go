package tailor

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"cvtailor/internal/config"
	"cvtailor/internal/models"
	"cvtailor/internal/storage"
)

func newTestService(t *testing.T, ttl time.Duration) (*Service, *sql.DB) {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {DSN: ":memory:"},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}

	base := t.TempDir()
	svc, err := NewService(db, filepath.Join(base, "uploads"), filepath.Join(base, "modified"), ttl, nil)
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc, db
}

func TestCreateAndGetSession(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	session := &models.TailorSession{
		ID:               "abc-123",
		OriginalFilename: "resume.docx",
		UploadPath:       svc.UploadPath("abc-123", "resume.docx"),
		OutputPath:       svc.OutputPath("abc-123"),
		JobDescription:   "Go developer role",
		OriginalText:     "old cv",
		ModifiedText:     "new cv",
		MatchScore:       "85%",
		ChangesSummary:   "reworded bullets",
		ModelUsed:        "gemini/gemini-2.5-flash",
	}
	if err := svc.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if session.CreatedAt.IsZero() || session.ExpiresAt.IsZero() {
		t.Fatalf("timestamps not filled in: %+v", session)
	}
	if session.Status != models.StatusReady {
		t.Fatalf("status = %q", session.Status)
	}

	got, err := svc.GetSession(ctx, "abc-123")
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	if got.ModifiedText != "new cv" || got.ModelUsed != "gemini/gemini-2.5-flash" {
		t.Fatalf("unexpected session: %+v", got)
	}
}

func TestGetSessionNotFound(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	if _, err := svc.GetSession(context.Background(), "missing"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("err = %v, want sql.ErrNoRows", err)
	}
}

func TestDeleteSession(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)
	ctx := context.Background()

	session := &models.TailorSession{ID: "to-delete", OriginalFilename: "cv.docx"}
	if err := svc.CreateSession(ctx, session); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if err := svc.DeleteSession(ctx, "to-delete"); err != nil {
		t.Fatalf("delete session: %v", err)
	}
	if err := svc.DeleteSession(ctx, "to-delete"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("second delete err = %v, want sql.ErrNoRows", err)
	}
}

func TestRemoveSessionFiles(t *testing.T) {
	svc, _ := newTestService(t, time.Hour)

	uploadPath := svc.UploadPath("sess-files", "cv.docx")
	if err := os.MkdirAll(filepath.Dir(uploadPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(uploadPath, []byte("docx bytes"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	svc.RemoveSessionFiles("sess-files")
	if _, err := os.Stat(filepath.Dir(uploadPath)); !os.IsNotExist(err) {
		t.Fatalf("session upload dir still exists")
	}
}

func TestCleanupExpired(t *testing.T) {
	svc, db := newTestService(t, time.Hour)
	ctx := context.Background()

	expired := &models.TailorSession{
		ID:        "expired",
		CreatedAt: time.Now().UTC().Add(-2 * time.Hour),
		ExpiresAt: time.Now().UTC().Add(-time.Hour),
	}
	fresh := &models.TailorSession{ID: "fresh"}
	if err := svc.CreateSession(ctx, expired); err != nil {
		t.Fatalf("create expired: %v", err)
	}
	if err := svc.CreateSession(ctx, fresh); err != nil {
		t.Fatalf("create fresh: %v", err)
	}

	outputPath := svc.OutputPath("expired")
	if err := os.MkdirAll(filepath.Dir(outputPath), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(outputPath, []byte("tailored"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	if err := svc.cleanupExpired(ctx); err != nil {
		t.Fatalf("cleanup: %v", err)
	}

	if _, err := svc.GetSession(ctx, "expired"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expired session still present: %v", err)
	}
	if _, err := svc.GetSession(ctx, "fresh"); err != nil {
		t.Fatalf("fresh session removed: %v", err)
	}
	if _, err := os.Stat(filepath.Dir(outputPath)); !os.IsNotExist(err) {
		t.Fatalf("expired session files still exist")
	}

	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM tailor_sessions`).Scan(&count); err != nil {
		t.Fatalf("count: %v", err)
	}
	if count != 1 {
		t.Fatalf("rows = %d, want 1", count)
	}
}
