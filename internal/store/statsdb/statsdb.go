// Package statsdb keeps usage counters and scrape bookkeeping in SQLite.
// The badger store holds the cached catalog itself; everything that is
// written on every read request lives here instead, so hot counters never
// churn the catalog snapshots.
package statsdb

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"log/slog"
	"time"

	"github.com/yomihub/yomihub-server/internal/domain"
	"github.com/yomihub/yomihub-server/internal/errors"

	_ "modernc.org/sqlite"
)

//go:embed schema.sql
var schemaSQL string

// SourceStats summarizes local activity for one source.
type SourceStats struct {
	SourceID    string `json:"sourceId"`
	SeriesCount int64  `json:"seriesCount"`
	TotalViews  int64  `json:"totalViews"`
}

// ScrapeRun records the most recent rescan for a source.
type ScrapeRun struct {
	SourceID   string     `json:"sourceId"`
	StartedAt  time.Time  `json:"startedAt"`
	FinishedAt *time.Time `json:"finishedAt,omitzero"`
	SeriesSeen int64      `json:"seriesSeen"`
	Errors     int64      `json:"errors"`
}

// Store provides SQLite-backed persistence for view counters and scrape runs.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates the stats database at the given path.
// It configures WAL mode, sets pragmas, and runs schema migrations.
func Open(path string, logger *slog.Logger) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	db.SetMaxOpenConns(4)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(time.Hour)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", pragma, err)
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close()
		return nil, fmt.Errorf("exec schema: %w", err)
	}

	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Store{db: db, logger: logger}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// IncrementSeriesViews bumps the view counter for a series.
func (s *Store) IncrementSeriesViews(ctx context.Context, seriesID string) error {
	sourceID, _ := domain.SplitID(seriesID)
	if sourceID == "" {
		return errors.Validationf("malformed series id %q", seriesID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO series_views (series_id, source_id, views, last_view)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(series_id) DO UPDATE SET
			views = views + 1,
			last_view = excluded.last_view`,
		seriesID, sourceID, formatTime(time.Now()))
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "increment series views")
	}
	return nil
}

// IncrementChapterViews bumps the view counter for a chapter.
func (s *Store) IncrementChapterViews(ctx context.Context, seriesID, chapterID string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO chapter_views (series_id, chapter_id, views, last_view)
		VALUES (?, ?, 1, ?)
		ON CONFLICT(series_id, chapter_id) DO UPDATE SET
			views = views + 1,
			last_view = excluded.last_view`,
		seriesID, chapterID, formatTime(time.Now()))
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "increment chapter views")
	}
	return nil
}

// SeriesViews returns the recorded view count for a series, zero when unseen.
func (s *Store) SeriesViews(ctx context.Context, seriesID string) (int64, error) {
	var views int64
	err := s.db.QueryRowContext(ctx,
		`SELECT views FROM series_views WHERE series_id = ?`, seriesID).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeCacheIO, "read series views")
	}
	return views, nil
}

// ChapterViews returns the recorded view count for a chapter, zero when unseen.
func (s *Store) ChapterViews(ctx context.Context, seriesID, chapterID string) (int64, error) {
	var views int64
	err := s.db.QueryRowContext(ctx,
		`SELECT views FROM chapter_views WHERE series_id = ? AND chapter_id = ?`,
		seriesID, chapterID).Scan(&views)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, errors.CodeCacheIO, "read chapter views")
	}
	return views, nil
}

// TopSeries returns locally viewed series ids ordered by view count.
func (s *Store) TopSeries(ctx context.Context, limit int) (map[string]int64, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT series_id, views FROM series_views ORDER BY views DESC, series_id LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "query top series")
	}
	defer rows.Close()

	out := make(map[string]int64, limit)
	for rows.Next() {
		var id string
		var views int64
		if err := rows.Scan(&id, &views); err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheIO, "scan top series")
		}
		out[id] = views
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "iterate top series")
	}
	return out, nil
}

// BySource aggregates counters per source.
func (s *Store) BySource(ctx context.Context) ([]SourceStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, COUNT(*), COALESCE(SUM(views), 0)
		FROM series_views
		GROUP BY source_id
		ORDER BY source_id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "query source stats")
	}
	defer rows.Close()

	var out []SourceStats
	for rows.Next() {
		var st SourceStats
		if err := rows.Scan(&st.SourceID, &st.SeriesCount, &st.TotalViews); err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheIO, "scan source stats")
		}
		out = append(out, st)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "iterate source stats")
	}
	return out, nil
}

// BeginScrape records the start of a rescan for a source, replacing any
// previous run record.
func (s *Store) BeginScrape(ctx context.Context, sourceID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO scrape_runs (source_id, started_at, finished_at, series_seen, errors)
		VALUES (?, ?, NULL, 0, 0)
		ON CONFLICT(source_id) DO UPDATE SET
			started_at = excluded.started_at,
			finished_at = NULL,
			series_seen = 0,
			errors = 0`,
		sourceID, formatTime(startedAt))
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "record scrape start")
	}
	return nil
}

// FinishScrape marks a rescan complete with its totals.
func (s *Store) FinishScrape(ctx context.Context, sourceID string, finishedAt time.Time, seriesSeen, errCount int64) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE scrape_runs
		SET finished_at = ?, series_seen = ?, errors = ?
		WHERE source_id = ?`,
		formatTime(finishedAt), seriesSeen, errCount, sourceID)
	if err != nil {
		return errors.Wrap(err, errors.CodeCacheIO, "record scrape finish")
	}
	return nil
}

// LastScrape returns the most recent run for a source.
func (s *Store) LastScrape(ctx context.Context, sourceID string) (*ScrapeRun, error) {
	var run ScrapeRun
	var started string
	var finished sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT source_id, started_at, finished_at, series_seen, errors
		FROM scrape_runs WHERE source_id = ?`, sourceID).
		Scan(&run.SourceID, &started, &finished, &run.SeriesSeen, &run.Errors)
	if err == sql.ErrNoRows {
		return nil, errors.NotFoundf("no scrape recorded for source %s", sourceID)
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "read scrape run")
	}

	if run.StartedAt, err = parseTime(started); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "parse scrape start time")
	}
	if finished.Valid {
		t, err := parseTime(finished.String)
		if err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheIO, "parse scrape finish time")
		}
		run.FinishedAt = &t
	}
	return &run, nil
}

// ScrapeRuns returns all recorded runs ordered by source id.
func (s *Store) ScrapeRuns(ctx context.Context) ([]ScrapeRun, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT source_id, started_at, finished_at, series_seen, errors
		FROM scrape_runs ORDER BY source_id`)
	if err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "query scrape runs")
	}
	defer rows.Close()

	var out []ScrapeRun
	for rows.Next() {
		var run ScrapeRun
		var started string
		var finished sql.NullString
		if err := rows.Scan(&run.SourceID, &started, &finished, &run.SeriesSeen, &run.Errors); err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheIO, "scan scrape run")
		}
		if run.StartedAt, err = parseTime(started); err != nil {
			return nil, errors.Wrap(err, errors.CodeCacheIO, "parse scrape start time")
		}
		if finished.Valid {
			t, err := parseTime(finished.String)
			if err != nil {
				return nil, errors.Wrap(err, errors.CodeCacheIO, "parse scrape finish time")
			}
			run.FinishedAt = &t
		}
		out = append(out, run)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.CodeCacheIO, "iterate scrape runs")
	}
	return out, nil
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
