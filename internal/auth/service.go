package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"time"
)

// Service issues, validates, and revokes single-session download tokens.
// A token grants access to exactly one tailoring session's output file.
type Service struct {
	db       *sql.DB
	tokenTTL time.Duration
}

// NewService constructs a token service with the supplied token lifetime.
func NewService(db *sql.DB, ttl time.Duration) *Service {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Service{db: db, tokenTTL: ttl}
}

// IssueToken mints a new random download token bound to the session.
func (s *Service) IssueToken(ctx context.Context, sessionID string) (string, error) {
	if sessionID == "" {
		return "", errors.New("invalid session id")
	}
	now := time.Now().UTC()
	expiresAt := now.Add(s.tokenTTL)
	for i := 0; i < 5; i++ {
		token, err := generateToken()
		if err != nil {
			return "", err
		}
		_, err = s.db.ExecContext(ctx,
			`INSERT INTO download_tokens (token, session_id, created_at, expires_at) VALUES (?, ?, ?, ?)`,
			token, sessionID, now, expiresAt,
		)
		if err == nil {
			return token, nil
		}
	}
	return "", errors.New("could not issue token")
}

// ValidateToken verifies the token exists, belongs to the session, and has
// not expired.
func (s *Service) ValidateToken(ctx context.Context, token, sessionID string) error {
	if token == "" {
		return errors.New("token required")
	}
	var boundSession string
	var expires time.Time
	err := s.db.QueryRowContext(ctx,
		`SELECT session_id, expires_at FROM download_tokens WHERE token = ?`, token,
	).Scan(&boundSession, &expires)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("invalid token")
		}
		return fmt.Errorf("lookup token: %w", err)
	}
	if boundSession != sessionID {
		return errors.New("invalid token")
	}
	if time.Now().UTC().After(expires) {
		_, _ = s.db.ExecContext(ctx, `DELETE FROM download_tokens WHERE token = ?`, token)
		return errors.New("token expired")
	}
	return nil
}

// RevokeSessionTokens removes all tokens belonging to the session.
func (s *Service) RevokeSessionTokens(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return nil
	}
	if _, err := s.db.ExecContext(ctx, `DELETE FROM download_tokens WHERE session_id = ?`, sessionID); err != nil {
		return fmt.Errorf("revoke session tokens: %w", err)
	}
	return nil
}

// TokenTTL reports the configured token lifetime.
func (s *Service) TokenTTL() time.Duration {
	return s.tokenTTL
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
