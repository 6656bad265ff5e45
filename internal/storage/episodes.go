package storage

import (
	"context"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/episode"
)

// EpisodeRecord is a closed episode as archived in the database.
type EpisodeRecord struct {
	ID               string        `json:"id"`
	Seq              int64         `json:"seq"`
	StartTime        time.Time     `json:"start_time"`
	EndTime          time.Time     `json:"end_time"`
	Duration         time.Duration `json:"duration"`
	App              string        `json:"app"`
	Activity         string        `json:"activity"`
	Platform         string        `json:"platform"`
	ObservationCount int           `json:"observations"`
	Passive          bool          `json:"passive"`
	Focused          bool          `json:"focused"`
	Keyboard         bool          `json:"keyboard"`
	Mouse            bool          `json:"mouse"`
	ImagePath        string        `json:"image_path,omitempty"`
	RunID            string        `json:"run_id,omitempty"`
}

// ArchiveEpisode stores a closed episode. Archiving the same episode twice
// is a no-op.
func (s *Store) ArchiveEpisode(ctx context.Context, ep *episode.Episode, runID string) error {
	if ep.State() == episode.StateActive {
		return fmt.Errorf("archive %s: %w", ep.ID(), episode.ErrInvalidTransition)
	}

	var imagePath string
	if img := ep.Image(); len(img) > 0 {
		exists, err := s.episodeExists(ctx, ep.ID())
		if err != nil {
			return err
		}
		if exists {
			return nil
		}
		imagePath, err = s.saveRawData(ep.ID(), ep.StartTime(), ".png", img)
		if err != nil {
			return fmt.Errorf("failed to save episode image: %w", err)
		}
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO episodes
			(id, seq, start_time, end_time, duration_ms, app, activity, platform, observation_count,
			 passive, focused, keyboard, mouse, image_path, run_id, archived_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, ep.ID(), ep.Seq(), ep.StartTime().UTC(), ep.EndTime().UTC(), ep.TotalDuration().Milliseconds(),
		ep.PrimaryApp(), string(ep.PrimaryActivity()), ep.PrimaryPlatform(), ep.ObservationCount(),
		ep.IsPassive(), ep.IsFocused(), ep.KeyboardActive(), ep.MouseActive(), imagePath, runID,
		s.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to insert episode: %w", err)
	}
	return nil
}

func (s *Store) episodeExists(ctx context.Context, id string) (bool, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM episodes WHERE id = ?`, id).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

// RecentEpisodes returns the most recently started archived episodes.
func (s *Store) RecentEpisodes(ctx context.Context, limit int) ([]EpisodeRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, seq, start_time, end_time, duration_ms, app, activity, platform, observation_count,
			passive, focused, keyboard, mouse, COALESCE(image_path, ''), COALESCE(run_id, '')
		FROM episodes
		ORDER BY start_time DESC, seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []EpisodeRecord
	for rows.Next() {
		var r EpisodeRecord
		var durationMS int64
		if err := rows.Scan(&r.ID, &r.Seq, &r.StartTime, &r.EndTime, &durationMS, &r.App, &r.Activity,
			&r.Platform, &r.ObservationCount, &r.Passive, &r.Focused, &r.Keyboard, &r.Mouse,
			&r.ImagePath, &r.RunID); err != nil {
			return nil, err
		}
		r.Duration = time.Duration(durationMS) * time.Millisecond
		records = append(records, r)
	}
	return records, rows.Err()
}

// PruneEpisodes deletes archived episodes that started before now minus
// retention, along with their image files, and returns how many went.
func (s *Store) PruneEpisodes(ctx context.Context, retention time.Duration) (int64, error) {
	cutoff := s.now().Add(-retention).UTC()

	rows, err := s.db.QueryContext(ctx, `
		SELECT image_path FROM episodes
		WHERE start_time < ? AND image_path IS NOT NULL AND image_path != ''
	`, cutoff)
	if err != nil {
		return 0, err
	}
	var paths []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			rows.Close()
			return 0, err
		}
		paths = append(paths, p)
	}
	rows.Close()

	res, err := s.db.ExecContext(ctx, `DELETE FROM episodes WHERE start_time < ?`, cutoff)
	if err != nil {
		return 0, err
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			s.logger.Warn("failed to remove episode image", zap.String("path", p), zap.Error(err))
		}
	}
	return res.RowsAffected()
}
