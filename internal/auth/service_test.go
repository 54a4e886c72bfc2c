package auth

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"cvtailor/internal/config"
	"cvtailor/internal/storage"
)

func TestIssueValidateRevoke(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertSession(t, db, "sess-1")

	svc := NewService(db, time.Hour)
	token, err := svc.IssueToken(context.Background(), "sess-1")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	if token == "" {
		t.Fatalf("expected token")
	}
	if err := svc.ValidateToken(context.Background(), token, "sess-1"); err != nil {
		t.Fatalf("ValidateToken failed: %v", err)
	}
	if err := svc.ValidateToken(context.Background(), token, "other-session"); err == nil {
		t.Fatalf("token validated against the wrong session")
	}
	if err := svc.RevokeSessionTokens(context.Background(), "sess-1"); err != nil {
		t.Fatalf("RevokeSessionTokens error: %v", err)
	}
	if err := svc.ValidateToken(context.Background(), token, "sess-1"); err == nil {
		t.Fatalf("expected error after revoke")
	}
}

func TestValidateExpiredToken(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()
	insertSession(t, db, "sess-2")

	svc := NewService(db, 10*time.Millisecond)
	token, err := svc.IssueToken(context.Background(), "sess-2")
	if err != nil {
		t.Fatalf("IssueToken error: %v", err)
	}
	time.Sleep(20 * time.Millisecond)
	if err := svc.ValidateToken(context.Background(), token, "sess-2"); err == nil {
		t.Fatalf("expected expiration error")
	}
	// ensure token removed
	var count int
	if err := db.QueryRow(`SELECT COUNT(*) FROM download_tokens WHERE token = ?`, token).Scan(&count); err != nil {
		t.Fatalf("query tokens: %v", err)
	}
	if count != 0 {
		t.Fatalf("expired token not purged")
	}
}

func TestIssueTokenRequiresSession(t *testing.T) {
	db := openTestDB(t)
	defer db.Close()

	svc := NewService(db, time.Hour)
	if _, err := svc.IssueToken(context.Background(), ""); err == nil {
		t.Fatalf("expected error for empty session id")
	}
}

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	cfg := &config.Config{
		Databases: map[string]config.DatabaseConfig{
			"sqlite3": {
				DSN: ":memory:",
			},
		},
	}
	db, err := storage.Open("sqlite3", cfg)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := storage.Migrate(db, "sqlite3"); err != nil {
		t.Fatalf("migrate db: %v", err)
	}
	return db
}

func insertSession(t *testing.T, db *sql.DB, id string) {
	t.Helper()
	now := time.Now().UTC()
	_, err := db.Exec(`INSERT INTO tailor_sessions
		(id, original_filename, upload_path, output_path, job_description, original_text, modified_text, match_score, changes_summary, model_used, status, created_at, expires_at)
		VALUES (?, 'cv.docx', '', '', '', '', '', '', '', '', 'ready', ?, ?)`,
		id, now, now.Add(time.Hour))
	if err != nil {
		t.Fatalf("insert session: %v", err)
	}
}
