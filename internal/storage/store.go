// Package storage persists what rin learns and what it has seen.
//
// Architecture:
// - SQLite database for knowledge tiers, the reaction cache and the
//   closed-episode archive
// - File system for the representative screenshot of each episode
//
// Directory structure:
// ~/.local/share/rin/
// ├── rin.db                    # SQLite database
// ├── episodes/
// │   ├── 2026/
// │   │   ├── 10/
// │   │   │   ├── 14/
// │   │   │   │   ├── ep_12_1760432400_ab12cd34.png
package storage

import (
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
	"go.uber.org/zap"
)

const dbName = "rin.db"

// Store handles persistence.
type Store struct {
	db      *sql.DB
	baseDir string
	dataDir string
	now     func() time.Time
	logger  *zap.Logger
}

// Open creates the storage directories and opens the database.
func Open(baseDir string, logger *zap.Logger) (*Store, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := os.MkdirAll(baseDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}

	dataDir := filepath.Join(baseDir, "episodes")
	if err := os.MkdirAll(dataDir, 0o700); err != nil {
		return nil, fmt.Errorf("failed to create episodes directory: %w", err)
	}

	dbPath := filepath.Join(baseDir, dbName)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{
		db:      db,
		baseDir: baseDir,
		dataDir: dataDir,
		now:     time.Now,
		logger:  logger.Named("store"),
	}

	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	s.logger.Debug("store opened", zap.String("path", dbPath))
	return s, nil
}

// initSchema creates the tables and applies migrations.
func (s *Store) initSchema() error {
	if err := s.createBaseSchema(); err != nil {
		return err
	}
	return s.migrateSchema()
}

// createBaseSchema creates the initial database tables.
func (s *Store) createBaseSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS knowledge_entries (
		id TEXT PRIMARY KEY,
		tier TEXT NOT NULL,
		app_pattern TEXT NOT NULL DEFAULT '',
		title_pattern TEXT NOT NULL DEFAULT '',
		category TEXT,
		behavior TEXT,
		description TEXT,
		reaction TEXT,
		confidence REAL NOT NULL DEFAULT 0.5,
		evidence_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_knowledge_key ON knowledge_entries(tier, app_pattern, title_pattern);
	CREATE INDEX IF NOT EXISTS idx_knowledge_tier ON knowledge_entries(tier);

	CREATE TABLE IF NOT EXISTS response_cache (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		context_hash TEXT NOT NULL UNIQUE,
		context_type TEXT,
		response TEXT NOT NULL,
		success_count INTEGER NOT NULL DEFAULT 1,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		last_used DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS episodes (
		id TEXT PRIMARY KEY,
		seq INTEGER NOT NULL,
		start_time DATETIME NOT NULL,
		end_time DATETIME NOT NULL,
		duration_ms INTEGER NOT NULL,
		app TEXT,
		activity TEXT NOT NULL,
		platform TEXT,
		observation_count INTEGER NOT NULL,
		passive INTEGER NOT NULL DEFAULT 0,
		focused INTEGER NOT NULL DEFAULT 0,
		keyboard INTEGER NOT NULL DEFAULT 0,
		mouse INTEGER NOT NULL DEFAULT 0,
		image_path TEXT,
		run_id TEXT,
		archived_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE INDEX IF NOT EXISTS idx_episodes_start ON episodes(start_time);
	CREATE INDEX IF NOT EXISTS idx_episodes_activity ON episodes(activity);
	`

	_, err := s.db.Exec(schema)
	return err
}

// migrateSchema handles schema migrations for existing databases.
func (s *Store) migrateSchema() error {
	migrations := []string{
		`ALTER TABLE episodes ADD COLUMN run_id TEXT`,
	}

	for _, migration := range migrations {
		// Fails if the column already exists, which is fine
		_, _ = s.db.Exec(migration)
	}

	return nil
}

// saveRawData writes binary data under episodes/YYYY/MM/DD and returns the path.
func (s *Store) saveRawData(name string, t time.Time, ext string, data []byte) (string, error) {
	dir := filepath.Join(s.dataDir,
		fmt.Sprintf("%04d", t.Year()),
		fmt.Sprintf("%02d", t.Month()),
		fmt.Sprintf("%02d", t.Day()))

	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", err
	}

	randomBytes := make([]byte, 4)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", err
	}

	filename := fmt.Sprintf("%s_%s%s", name, hex.EncodeToString(randomBytes), ext)
	path := filepath.Join(dir, filename)

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return "", err
	}
	return path, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Stats holds storage statistics.
type Stats struct {
	Knowledge     map[string]int64 `json:"knowledge"`
	CachedReplies int64            `json:"cached_replies"`
	Episodes      int64            `json:"episodes"`
	DatabaseSize  int64            `json:"database_size"`
	DataSize      int64            `json:"data_size"`
}

// Stats returns statistics about stored data.
func (s *Store) Stats() (Stats, error) {
	stats := Stats{Knowledge: make(map[string]int64)}

	rows, err := s.db.Query("SELECT tier, COUNT(*) FROM knowledge_entries GROUP BY tier")
	if err != nil {
		return stats, fmt.Errorf("count knowledge: %w", err)
	}
	for rows.Next() {
		var tier string
		var count int64
		if err := rows.Scan(&tier, &count); err != nil {
			rows.Close()
			return stats, err
		}
		stats.Knowledge[tier] = count
	}
	rows.Close()

	if err := s.db.QueryRow("SELECT COUNT(*) FROM response_cache").Scan(&stats.CachedReplies); err != nil {
		return stats, fmt.Errorf("count cache: %w", err)
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM episodes").Scan(&stats.Episodes); err != nil {
		return stats, fmt.Errorf("count episodes: %w", err)
	}

	if info, err := os.Stat(filepath.Join(s.baseDir, dbName)); err == nil {
		stats.DatabaseSize = info.Size()
	}

	// Approximate: sum of file sizes
	filepath.Walk(s.dataDir, func(path string, info os.FileInfo, err error) error {
		if err == nil && !info.IsDir() {
			stats.DataSize += info.Size()
		}
		return nil
	})

	return stats, nil
}
