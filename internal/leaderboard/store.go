// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package leaderboard

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"

	"github.com/pdiddy/sota-engine/pkg/types"
)

const (
	indexDir = "index"
	dbFile   = "leaderboard.db"
)

// Store manages the queryable leaderboard SQLite database at
// outputDir/index/leaderboard.db. It is derived state: Rebuild
// reconstructs it from extraction results at any time.
type Store struct {
	db         *sql.DB
	maxResults int
}

// NewStore opens or creates the leaderboard database and its schema.
func NewStore(cfg types.LeaderboardConfig) (*Store, error) {
	dbDir := filepath.Join(cfg.OutputDir, indexDir)
	if err := os.MkdirAll(dbDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating index directory: %w", err)
	}

	dbPath := filepath.Join(dbDir, dbFile)
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	maxResults := cfg.MaxResults
	if maxResults <= 0 {
		maxResults = 20
	}

	s := &Store{db: db, maxResults: maxResults}
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
		`CREATE TABLE IF NOT EXISTS papers (
			id TEXT PRIMARY KEY,
			title TEXT,
			paper_type TEXT,
			application_field TEXT,
			domain TEXT,
			model TEXT,
			extracted_at TEXT
		)`,
		`CREATE TABLE IF NOT EXISTS results (
			rowid INTEGER PRIMARY KEY AUTOINCREMENT,
			paper_id TEXT NOT NULL REFERENCES papers(id),
			method TEXT NOT NULL,
			benchmark TEXT,
			metric TEXT,
			value REAL,
			split TEXT,
			taxonomy_level_1 TEXT,
			taxonomy_level_2 TEXT,
			evidence TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_results_paper_id ON results(paper_id)`,
		`CREATE INDEX IF NOT EXISTS idx_results_benchmark ON results(benchmark)`,
		`CREATE INDEX IF NOT EXISTS idx_results_metric ON results(metric)`,
	}
	for _, stmt := range statements {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("executing schema statement: %w", err)
		}
	}

	// FTS5 virtual table with triggers for sync.
	var ftsExists int
	if err := s.db.QueryRow(
		`SELECT count(*) FROM sqlite_master WHERE type='table' AND name='results_fts'`,
	).Scan(&ftsExists); err != nil {
		return fmt.Errorf("checking FTS table: %w", err)
	}

	if ftsExists == 0 {
		ftsStatements := []string{
			`CREATE VIRTUAL TABLE results_fts USING fts5(method, evidence, content=results, content_rowid=rowid)`,
			`CREATE TRIGGER results_ai AFTER INSERT ON results BEGIN
				INSERT INTO results_fts(rowid, method, evidence) VALUES (new.rowid, new.method, new.evidence);
			END`,
			`CREATE TRIGGER results_ad AFTER DELETE ON results BEGIN
				INSERT INTO results_fts(results_fts, rowid, method, evidence) VALUES('delete', old.rowid, old.method, old.evidence);
			END`,
			`CREATE TRIGGER results_au AFTER UPDATE ON results BEGIN
				INSERT INTO results_fts(results_fts, rowid, method, evidence) VALUES('delete', old.rowid, old.method, old.evidence);
				INSERT INTO results_fts(rowid, method, evidence) VALUES (new.rowid, new.method, new.evidence);
			END`,
		}
		for _, stmt := range ftsStatements {
			if _, err := s.db.Exec(stmt); err != nil {
				return fmt.Errorf("creating FTS infrastructure: %w", err)
			}
		}
	}
	return nil
}

// RebuildSummary holds counts from one index rebuild.
type RebuildSummary struct {
	Papers int
	Rows   int
	Failed int
}

// Rebuild replaces the indexed rows for every given result:
// delete-then-insert per paper, so re-running over the same results is
// idempotent. Failed extraction results clear any rows left from an
// earlier successful run.
func (s *Store) Rebuild(ctx context.Context, results []*types.ExtractionResult, w io.Writer) (RebuildSummary, error) {
	var summary RebuildSummary
	for _, result := range results {
		rows := RowsFromResult(result)
		if err := s.indexPaper(ctx, result, rows); err != nil {
			fmt.Fprintf(w, "failed:  %s (%v)\n", result.PaperID, err)
			summary.Failed++
			continue
		}
		fmt.Fprintf(w, "indexed: %s (%d rows)\n", result.PaperID, len(rows))
		summary.Papers++
		summary.Rows += len(rows)
	}
	fmt.Fprintf(w, "\nIndex summary: %d papers, %d rows, %d failed\n",
		summary.Papers, summary.Rows, summary.Failed)
	return summary, nil
}

func (s *Store) indexPaper(ctx context.Context, result *types.ExtractionResult, rows []Row) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM results WHERE paper_id = ?`, result.PaperID); err != nil {
		return fmt.Errorf("deleting old rows: %w", err)
	}

	title, paperType, field, domain := "", "", "", ""
	if result.Entry != nil {
		title = result.Entry.PaperTitle
		paperType = string(result.Entry.PaperType)
		field = result.Entry.ApplicationField
		domain = result.Entry.Domain
	}
	_, err = tx.ExecContext(ctx,
		`INSERT INTO papers (id, title, paper_type, application_field, domain, model, extracted_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			title=excluded.title, paper_type=excluded.paper_type,
			application_field=excluded.application_field, domain=excluded.domain,
			model=excluded.model, extracted_at=excluded.extracted_at`,
		result.PaperID, title, paperType, field, domain,
		result.Model, result.ExtractedAt.UTC().Format("2006-01-02T15:04:05Z"),
	)
	if err != nil {
		return fmt.Errorf("upserting paper: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO results (paper_id, method, benchmark, metric, value, split, taxonomy_level_1, taxonomy_level_2, evidence)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing insert: %w", err)
	}
	defer stmt.Close()

	for _, row := range rows {
		_, err := stmt.ExecContext(ctx,
			row.PaperID, row.Method, row.Benchmark, row.Metric, row.Value,
			row.Split, row.TaxonomyLevel1, row.TaxonomyLevel2, row.Evidence,
		)
		if err != nil {
			return fmt.Errorf("inserting row for %s: %w", row.Method, err)
		}
	}

	return tx.Commit()
}

// QueryOptions holds parameters for leaderboard queries.
type QueryOptions struct {
	// Query is an FTS5 search over method names and evidence quotes.
	Query string

	// Benchmark filters rows by exact benchmark name.
	Benchmark string

	// Metric filters rows by exact metric name.
	Metric string

	// TaxonomyLevel1 filters rows by top-level taxonomy category.
	TaxonomyLevel1 string

	// MaxResults limits result count. Zero uses the store default.
	MaxResults int
}

// Query returns leaderboard rows matching the options. Full-text
// queries rank by relevance; structured queries rank by value
// descending, the leaderboard order.
func (s *Store) Query(ctx context.Context, opts QueryOptions) ([]Row, error) {
	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = s.maxResults
	}

	var (
		qb     strings.Builder
		args   []any
		useFTS = opts.Query != ""
	)

	if useFTS {
		qb.WriteString(
			`SELECT r.method, r.benchmark, r.metric, r.value, r.split,
				r.paper_id, p.title, r.taxonomy_level_1, r.taxonomy_level_2, r.evidence
			FROM results_fts
			JOIN results r ON r.rowid = results_fts.rowid
			LEFT JOIN papers p ON r.paper_id = p.id
			WHERE results_fts MATCH ?`)
		args = append(args, opts.Query)
	} else {
		qb.WriteString(
			`SELECT r.method, r.benchmark, r.metric, r.value, r.split,
				r.paper_id, p.title, r.taxonomy_level_1, r.taxonomy_level_2, r.evidence
			FROM results r
			LEFT JOIN papers p ON r.paper_id = p.id
			WHERE 1=1`)
	}

	if opts.Benchmark != "" {
		qb.WriteString(` AND r.benchmark = ?`)
		args = append(args, opts.Benchmark)
	}
	if opts.Metric != "" {
		qb.WriteString(` AND r.metric = ?`)
		args = append(args, opts.Metric)
	}
	if opts.TaxonomyLevel1 != "" {
		qb.WriteString(` AND r.taxonomy_level_1 = ?`)
		args = append(args, opts.TaxonomyLevel1)
	}

	if useFTS {
		qb.WriteString(` ORDER BY results_fts.rank`)
	} else {
		qb.WriteString(` ORDER BY r.value DESC, r.method, r.benchmark`)
	}
	qb.WriteString(` LIMIT ?`)
	args = append(args, maxResults)

	dbRows, err := s.db.QueryContext(ctx, qb.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("querying leaderboard: %w", err)
	}
	defer dbRows.Close()

	var rows []Row
	for dbRows.Next() {
		var (
			row   Row
			title sql.NullString
		)
		if err := dbRows.Scan(
			&row.Method, &row.Benchmark, &row.Metric, &row.Value, &row.Split,
			&row.PaperID, &title, &row.TaxonomyLevel1, &row.TaxonomyLevel2, &row.Evidence,
		); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		if title.Valid {
			row.PaperTitle = title.String
		}
		rows = append(rows, row)
	}
	return rows, dbRows.Err()
}
