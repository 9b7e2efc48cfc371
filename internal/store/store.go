// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package store persists pipeline outputs in a SQLite database: canonical
// mentions, window statistics, readiness scores, and the unknown-skill
// curation queue. Window stats and scores are safe to recompute and rewrite
// idempotently; they carry no independent mutable state.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/mlpulse/skill-pulse/internal/normalize"
	"github.com/mlpulse/skill-pulse/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "pulse.db"
)

// timeFormat is the canonical column encoding for timestamps. Fractional
// seconds are fixed-width so that lexical TEXT comparison in range queries
// matches chronological order; RFC3339Nano trims trailing zeros and would
// sort "00:00:00.5Z" before "00:00:00Z".
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// Store manages the pipeline SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the database at dataDir/index/pulse.db and
// creates the schema if it does not exist.
func NewStore(cfg types.StoreConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.DataDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Store{db: db}
	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}
	return s, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) createSchema() error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS documents (
			id TEXT PRIMARY KEY,
			source TEXT NOT NULL,
			published_at TEXT NOT NULL,
			fetched_at TEXT,
			run_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_documents_published_at ON documents(published_at)`,
		`CREATE TABLE IF NOT EXISTS mentions (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			skill_id TEXT NOT NULL,
			document_id TEXT NOT NULL REFERENCES documents(id),
			source TEXT NOT NULL,
			timestamp TEXT NOT NULL,
			category TEXT,
			run_id TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_skill_id ON mentions(skill_id)`,
		`CREATE INDEX IF NOT EXISTS idx_mentions_timestamp ON mentions(timestamp)`,
		`CREATE TABLE IF NOT EXISTS window_stats (
			skill_id TEXT NOT NULL,
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			mention_count INTEGER NOT NULL,
			distinct_document_count INTEGER NOT NULL,
			prevalence_ratio REAL NOT NULL,
			rank INTEGER NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (skill_id, window_start, window_end)
		)`,
		`CREATE TABLE IF NOT EXISTS readiness_scores (
			skill_id TEXT NOT NULL,
			window_start TEXT NOT NULL,
			window_end TEXT NOT NULL,
			score REAL NOT NULL,
			prevalence REAL NOT NULL,
			persistence REAL NOT NULL,
			growth REAL NOT NULL,
			computed_at TEXT NOT NULL,
			PRIMARY KEY (skill_id, window_start, window_end)
		)`,
		`CREATE TABLE IF NOT EXISTS unknown_skills (
			raw_text TEXT PRIMARY KEY,
			count INTEGER NOT NULL,
			first_seen TEXT NOT NULL
		)`,
	}

	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}
	return nil
}

// SaveRun records the documents and canonical mentions of one collection
// run. Re-collecting a document replaces its previous mentions, so reruns
// do not double-count.
func (s *Store) SaveRun(ctx context.Context, runID string, docs []types.Document, mentions []types.CanonicalMention) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, doc := range docs {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO documents (id, source, published_at, fetched_at, run_id)
			 VALUES (?, ?, ?, ?, ?)`,
			doc.ID, string(doc.Source),
			doc.PublishedAt.UTC().Format(timeFormat),
			doc.FetchedAt.UTC().Format(timeFormat),
			runID,
		); err != nil {
			return fmt.Errorf("inserting document %s: %w", doc.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`DELETE FROM mentions WHERE document_id = ?`, doc.ID,
		); err != nil {
			return fmt.Errorf("clearing mentions for %s: %w", doc.ID, err)
		}
	}

	for _, m := range mentions {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO mentions (skill_id, document_id, source, timestamp, category, run_id)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			m.SkillID, m.DocumentID, string(m.Source),
			m.Timestamp.UTC().Format(timeFormat),
			string(m.Category), runID,
		); err != nil {
			return fmt.Errorf("inserting mention of %s: %w", m.SkillID, err)
		}
	}

	return tx.Commit()
}

// MentionsBetween returns all canonical mentions with timestamps in
// [start, end), ordered by timestamp.
func (s *Store) MentionsBetween(ctx context.Context, start, end time.Time) ([]types.CanonicalMention, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT skill_id, document_id, source, timestamp, category
		 FROM mentions WHERE timestamp >= ? AND timestamp < ?
		 ORDER BY timestamp`,
		start.UTC().Format(timeFormat), end.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("querying mentions: %w", err)
	}
	defer rows.Close()

	var mentions []types.CanonicalMention
	for rows.Next() {
		var (
			m        types.CanonicalMention
			source   string
			ts       string
			category string
		)
		if err := rows.Scan(&m.SkillID, &m.DocumentID, &source, &ts, &category); err != nil {
			return nil, fmt.Errorf("scanning mention: %w", err)
		}
		m.Source = types.DocumentSource(source)
		m.Category = types.SkillCategory(category)
		if m.Timestamp, err = time.Parse(timeFormat, ts); err != nil {
			return nil, fmt.Errorf("parsing mention timestamp %q: %w", ts, err)
		}
		mentions = append(mentions, m)
	}
	return mentions, rows.Err()
}

// CountDocuments returns the number of documents published within the window.
func (s *Store) CountDocuments(ctx context.Context, window types.TimeWindow) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx,
		`SELECT count(*) FROM documents WHERE published_at >= ? AND published_at < ?`,
		window.Start.UTC().Format(timeFormat), window.End.UTC().Format(timeFormat),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting documents: %w", err)
	}
	return count, nil
}

// SaveWindowStats upserts the stats for one aggregation run. Keyed by
// (skill, window), so recomputing a window overwrites its previous rows.
func (s *Store) SaveWindowStats(ctx context.Context, stats []types.WindowStat) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	computedAt := time.Now().UTC().Format(timeFormat)
	for _, st := range stats {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO window_stats
			 (skill_id, window_start, window_end, mention_count, distinct_document_count, prevalence_ratio, rank, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			st.SkillID,
			st.WindowStart.UTC().Format(timeFormat),
			st.WindowEnd.UTC().Format(timeFormat),
			st.MentionCount, st.DistinctDocumentCount, st.PrevalenceRatio, st.Rank,
			computedAt,
		); err != nil {
			return fmt.Errorf("upserting stat for %s: %w", st.SkillID, err)
		}
	}
	return tx.Commit()
}

// StatsForWindow returns the stored stats for one exact window, ordered by rank.
func (s *Store) StatsForWindow(ctx context.Context, window types.TimeWindow) ([]types.WindowStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT skill_id, window_start, window_end, mention_count, distinct_document_count, prevalence_ratio, rank
		 FROM window_stats WHERE window_start = ? AND window_end = ?
		 ORDER BY rank`,
		window.Start.UTC().Format(timeFormat), window.End.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("querying window stats: %w", err)
	}
	defer rows.Close()
	return scanStats(rows)
}

// StatsHistory returns all stored stats for skillID with window_end at or
// before end, ordered oldest window first.
func (s *Store) StatsHistory(ctx context.Context, skillID string, end time.Time) ([]types.WindowStat, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT skill_id, window_start, window_end, mention_count, distinct_document_count, prevalence_ratio, rank
		 FROM window_stats WHERE skill_id = ? AND window_end <= ?
		 ORDER BY window_start`,
		skillID, end.UTC().Format(timeFormat),
	)
	if err != nil {
		return nil, fmt.Errorf("querying stats history: %w", err)
	}
	defer rows.Close()
	return scanStats(rows)
}

func scanStats(rows *sql.Rows) ([]types.WindowStat, error) {
	var stats []types.WindowStat
	for rows.Next() {
		var (
			st         types.WindowStat
			start, end string
		)
		if err := rows.Scan(&st.SkillID, &start, &end, &st.MentionCount,
			&st.DistinctDocumentCount, &st.PrevalenceRatio, &st.Rank); err != nil {
			return nil, fmt.Errorf("scanning window stat: %w", err)
		}
		var err error
		if st.WindowStart, err = time.Parse(timeFormat, start); err != nil {
			return nil, fmt.Errorf("parsing window start %q: %w", start, err)
		}
		if st.WindowEnd, err = time.Parse(timeFormat, end); err != nil {
			return nil, fmt.Errorf("parsing window end %q: %w", end, err)
		}
		stats = append(stats, st)
	}
	return stats, rows.Err()
}

// SaveScores upserts readiness scores, keyed by (skill, window).
func (s *Store) SaveScores(ctx context.Context, scores []types.MarketReadinessScore) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	computedAt := time.Now().UTC().Format(timeFormat)
	for _, sc := range scores {
		if _, err := tx.ExecContext(ctx,
			`INSERT OR REPLACE INTO readiness_scores
			 (skill_id, window_start, window_end, score, prevalence, persistence, growth, computed_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			sc.SkillID,
			sc.Window.Start.UTC().Format(timeFormat),
			sc.Window.End.UTC().Format(timeFormat),
			sc.Score, sc.Components.Prevalence, sc.Components.Persistence, sc.Components.Growth,
			computedAt,
		); err != nil {
			return fmt.Errorf("upserting score for %s: %w", sc.SkillID, err)
		}
	}
	return tx.Commit()
}

// QueueUnknown merges unmatched surface forms into the curation queue,
// accumulating occurrence counts and keeping the earliest first-seen time.
func (s *Store) QueueUnknown(ctx context.Context, skills []normalize.UnknownSkill) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, u := range skills {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO unknown_skills (raw_text, count, first_seen) VALUES (?, ?, ?)
			 ON CONFLICT(raw_text) DO UPDATE SET count = count + excluded.count`,
			u.RawText, u.Count, u.FirstSeen.UTC().Format(timeFormat),
		); err != nil {
			return fmt.Errorf("queueing unknown skill %q: %w", u.RawText, err)
		}
	}
	return tx.Commit()
}
