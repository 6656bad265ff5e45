package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Atharva-Kanherkar/rin/internal/knowledge"
)

// defaultConfidence is used for new entries that carry none.
const defaultConfidence = 0.5

// ErrNotFound is returned when a knowledge entry does not exist.
var ErrNotFound = errors.New("storage: not found")

// Learn records an entry in a tier. Learning the same app and title pattern
// again refreshes the text fields, bumps the evidence count and raises
// confidence by 0.1, capped at 1.0.
func (s *Store) Learn(ctx context.Context, tier knowledge.Source, e knowledge.Entry) (knowledge.Entry, error) {
	if tier == knowledge.SourceBaseline {
		return knowledge.Entry{}, fmt.Errorf("%w: baseline is read-only", knowledge.ErrUnknownTier)
	}
	appPattern := joinApps(e.Apps)
	titlePattern := strings.ToLower(strings.TrimSpace(e.TitleContains))
	if appPattern == "" && titlePattern == "" {
		return knowledge.Entry{}, fmt.Errorf("knowledge entry needs an app or a title pattern")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return knowledge.Entry{}, err
	}
	defer tx.Rollback()

	now := s.now().UTC()
	var id string
	err = tx.QueryRowContext(ctx, `
		SELECT id FROM knowledge_entries
		WHERE tier = ? AND app_pattern = ? AND title_pattern = ?
	`, string(tier), appPattern, titlePattern).Scan(&id)

	switch {
	case errors.Is(err, sql.ErrNoRows):
		id = uuid.NewString()
		conf := e.Confidence
		if conf <= 0 {
			conf = defaultConfidence
		}
		_, err = tx.ExecContext(ctx, `
			INSERT INTO knowledge_entries
				(id, tier, app_pattern, title_pattern, category, behavior, description, reaction,
				 confidence, evidence_count, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)
		`, id, string(tier), appPattern, titlePattern, e.Category, e.Behavior, e.Description, e.Reaction,
			math.Min(conf, 1.0), now, now)
		if err != nil {
			return knowledge.Entry{}, fmt.Errorf("insert knowledge: %w", err)
		}
	case err != nil:
		return knowledge.Entry{}, fmt.Errorf("find knowledge: %w", err)
	default:
		_, err = tx.ExecContext(ctx, `
			UPDATE knowledge_entries SET
				category = COALESCE(NULLIF(?, ''), category),
				behavior = COALESCE(NULLIF(?, ''), behavior),
				description = COALESCE(NULLIF(?, ''), description),
				reaction = COALESCE(NULLIF(?, ''), reaction),
				confidence = MIN(1.0, confidence + 0.1),
				evidence_count = evidence_count + 1,
				updated_at = ?
			WHERE id = ?
		`, e.Category, e.Behavior, e.Description, e.Reaction, now, id)
		if err != nil {
			return knowledge.Entry{}, fmt.Errorf("update knowledge: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return knowledge.Entry{}, err
	}

	out, err := s.Entry(ctx, id)
	if err != nil {
		return knowledge.Entry{}, err
	}
	s.logger.Info("learned",
		zap.String("tier", string(tier)),
		zap.String("id", id),
		zap.Float64("confidence", out.Confidence),
		zap.Int("evidence", out.EvidenceCount))
	return out, nil
}

// Entry returns a single entry by id.
func (s *Store) Entry(ctx context.Context, id string) (knowledge.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+` WHERE id = ?`, id)
	if err != nil {
		return knowledge.Entry{}, err
	}
	entries, err := scanEntries(rows)
	if err != nil {
		return knowledge.Entry{}, err
	}
	if len(entries) == 0 {
		return knowledge.Entry{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return entries[0], nil
}

// Entries lists a tier's entries, highest confidence first.
func (s *Store) Entries(ctx context.Context, tier knowledge.Source) ([]knowledge.Entry, error) {
	rows, err := s.db.QueryContext(ctx, selectEntries+`
		WHERE tier = ?
		ORDER BY confidence DESC, updated_at DESC
	`, string(tier))
	if err != nil {
		return nil, err
	}
	return scanEntries(rows)
}

// Forget deletes an entry.
func (s *Store) Forget(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM knowledge_entries WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

const selectEntries = `
	SELECT id, tier, app_pattern, title_pattern, category, behavior, description, reaction,
		confidence, evidence_count, updated_at
	FROM knowledge_entries`

func scanEntries(rows *sql.Rows) ([]knowledge.Entry, error) {
	defer rows.Close()

	var entries []knowledge.Entry
	for rows.Next() {
		var e knowledge.Entry
		var tier, apps, title string
		var category, behavior, description, reaction sql.NullString
		var updated time.Time

		if err := rows.Scan(&e.ID, &tier, &apps, &title, &category, &behavior, &description, &reaction,
			&e.Confidence, &e.EvidenceCount, &updated); err != nil {
			return nil, err
		}
		e.Source = knowledge.Source(tier)
		e.Apps = splitApps(apps)
		e.TitleContains = title
		e.Category = category.String
		e.Behavior = behavior.String
		e.Description = description.String
		e.Reaction = reaction.String
		e.UpdatedAt = updated
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// joinApps normalizes and sorts app names into a stable key.
func joinApps(apps []string) string {
	seen := make(map[string]bool, len(apps))
	var out []string
	for _, a := range apps {
		n := knowledge.NormalizeApp(a)
		if n == "" || seen[n] {
			continue
		}
		seen[n] = true
		out = append(out, n)
	}
	sort.Strings(out)
	return strings.Join(out, ",")
}

func splitApps(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(s, ",")
}

// KnowledgeTier is a knowledge.Tier backed by one tier of the store.
type KnowledgeTier struct {
	store *Store
	tier  knowledge.Source
}

// Tier returns the user or shared tier view of the store.
func (s *Store) Tier(tier knowledge.Source) *KnowledgeTier {
	return &KnowledgeTier{store: s, tier: tier}
}

// Source implements knowledge.Tier.
func (t *KnowledgeTier) Source() knowledge.Source { return t.tier }

// Lookup implements knowledge.Tier.
func (t *KnowledgeTier) Lookup(ctx context.Context, app, title string) (knowledge.Entry, bool, error) {
	entries, err := t.store.Entries(ctx, t.tier)
	if err != nil {
		return knowledge.Entry{}, false, fmt.Errorf("load %s tier: %w", t.tier, err)
	}
	e, ok := knowledge.Best(entries, app, title)
	return e, ok, nil
}
