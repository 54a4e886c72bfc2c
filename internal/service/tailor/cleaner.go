package tailor

import (
	"context"
	"time"

	"go.uber.org/zap"
)

const DefaultCleanInterval = 10 * time.Minute

// StartCleaner periodically removes expired sessions together with their
// files until ctx is cancelled.
func (s *Service) StartCleaner(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultCleanInterval
	}
	go s.cleanupLoop(ctx, interval)
}

func (s *Service) cleanupLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.cleanupExpired(ctx); err != nil {
				s.logger.Error("cleanup expired sessions", zap.Error(err))
			}
		}
	}
}

func (s *Service) cleanupExpired(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM tailor_sessions WHERE expires_at <= ?`, time.Now().UTC())
	if err != nil {
		return err
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	// files first so a failed row delete retries the whole session later
	for _, id := range ids {
		s.RemoveSessionFiles(id)
		if _, err := s.db.ExecContext(ctx, `DELETE FROM tailor_sessions WHERE id = ?`, id); err != nil {
			s.logger.Warn("delete expired session", zap.String("session", id), zap.Error(err))
			continue
		}
		s.logger.Debug("expired session removed", zap.String("session", id))
	}
	return nil
}
