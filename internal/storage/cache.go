package storage

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
)

// CacheKey hashes a normalized app and title into a response cache key.
func CacheKey(app, title string) string {
	sum := sha256.Sum256([]byte(knowledge.NormalizeApp(app) + "|" + strings.ToLower(strings.TrimSpace(title))))
	return hex.EncodeToString(sum[:])
}

// CacheReaction stores a reaction produced for app and title. Storing the
// same context again replaces the text and counts another success.
func (s *Store) CacheReaction(ctx context.Context, app, title, contextType, reaction string) error {
	now := s.now().UTC()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO response_cache (context_hash, context_type, response, created_at, last_used)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(context_hash) DO UPDATE SET
			response = excluded.response,
			success_count = success_count + 1,
			last_used = excluded.last_used
	`, CacheKey(app, title), contextType, reaction, now, now)
	return err
}

// CachedReaction returns a cached reaction for app and title.
func (s *Store) CachedReaction(ctx context.Context, app, title string) (string, bool, error) {
	key := CacheKey(app, title)
	var resp string
	err := s.db.QueryRowContext(ctx, `SELECT response FROM response_cache WHERE context_hash = ?`, key).Scan(&resp)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}

	// Usage bookkeeping only; a failure here must not hide the hit.
	if _, err := s.db.ExecContext(ctx, `UPDATE response_cache SET last_used = ? WHERE context_hash = ?`, s.now().UTC(), key); err != nil {
		s.logger.Debug("touch cached reaction failed", zap.Error(err))
	}
	return resp, true, nil
}
