/**
 * PostgreSQL job ledger for the PDF OCR worker
 *
 * Records one row per processed document: where it came from, where its
 * text went, how it was batched and how it ended.
 */

package storage

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/lib/pq"
)

// Job statuses
const (
	StatusProcessing = "processing"
	StatusCompleted  = "completed"
	StatusFailed     = "failed"
)

// PostgresClient handles database operations
type PostgresClient struct {
	db *sql.DB
}

// JobRecord represents one document's row in the ledger
type JobRecord struct {
	ID               string
	PDFPath          string
	OutputPath       string
	Status           string
	PageCount        int
	BatchCount       int
	FailedFirstPage  int
	FailedLastPage   int
	ErrorCode        string
	ErrorMessage     string
	ProcessingTimeMs int64
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

const schemaSQL = `
	CREATE SCHEMA IF NOT EXISTS pdfocr;
	CREATE TABLE IF NOT EXISTS pdfocr.jobs (
		id                 UUID PRIMARY KEY,
		pdf_path           TEXT NOT NULL,
		output_path        TEXT NOT NULL DEFAULT '',
		status             TEXT NOT NULL,
		page_count         INTEGER,
		batch_count        INTEGER,
		failed_first_page  INTEGER,
		failed_last_page   INTEGER,
		error_code         TEXT,
		error_message      TEXT,
		processing_time_ms BIGINT,
		created_at         TIMESTAMPTZ NOT NULL DEFAULT NOW(),
		updated_at         TIMESTAMPTZ NOT NULL DEFAULT NOW()
	);
`

// NewPostgresClient creates a new PostgreSQL client
func NewPostgresClient(databaseURL string) (*PostgresClient, error) {
	if databaseURL == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)
	db.SetConnMaxIdleTime(2 * time.Minute)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresClient{db: db}, nil
}

// EnsureSchema creates the ledger table if it does not exist
func (p *PostgresClient) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create ledger schema: %w", err)
	}
	return nil
}

// UpsertJob inserts or updates a job row. Zero-valued counts and empty
// strings never overwrite values already stored, so a start record followed
// by a finish record keeps the union of both.
func (p *PostgresClient) UpsertJob(ctx context.Context, rec *JobRecord) error {
	if rec.ID == "" {
		return fmt.Errorf("job ID is required")
	}

	if rec.Status == "" {
		return fmt.Errorf("status is required")
	}

	query := `
		INSERT INTO pdfocr.jobs (
			id, pdf_path, output_path, status,
			page_count, batch_count, failed_first_page, failed_last_page,
			error_code, error_message, processing_time_ms,
			created_at, updated_at
		) VALUES (
			$1::uuid, $2, $3, $4,
			NULLIF($5, 0), NULLIF($6, 0), NULLIF($7, 0), NULLIF($8, 0),
			NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, 0),
			NOW(), NOW()
		)
		ON CONFLICT (id) DO UPDATE SET
			status = EXCLUDED.status,
			pdf_path = COALESCE(NULLIF(EXCLUDED.pdf_path, ''), pdfocr.jobs.pdf_path),
			output_path = COALESCE(NULLIF(EXCLUDED.output_path, ''), pdfocr.jobs.output_path),
			page_count = COALESCE(EXCLUDED.page_count, pdfocr.jobs.page_count),
			batch_count = COALESCE(EXCLUDED.batch_count, pdfocr.jobs.batch_count),
			failed_first_page = EXCLUDED.failed_first_page,
			failed_last_page = EXCLUDED.failed_last_page,
			error_code = EXCLUDED.error_code,
			error_message = EXCLUDED.error_message,
			processing_time_ms = COALESCE(EXCLUDED.processing_time_ms, pdfocr.jobs.processing_time_ms),
			updated_at = NOW()
		RETURNING id
	`

	var returnedID string
	err := p.db.QueryRowContext(
		ctx,
		query,
		rec.ID,
		rec.PDFPath,
		rec.OutputPath,
		rec.Status,
		rec.PageCount,
		rec.BatchCount,
		rec.FailedFirstPage,
		rec.FailedLastPage,
		rec.ErrorCode,
		sanitizeForPostgres(rec.ErrorMessage),
		rec.ProcessingTimeMs,
	).Scan(&returnedID)
	if err != nil {
		return fmt.Errorf("failed to upsert job (job=%s, status=%s): %w", rec.ID, rec.Status, err)
	}

	return nil
}

// GetJob retrieves a job by ID
func (p *PostgresClient) GetJob(ctx context.Context, jobID string) (*JobRecord, error) {
	query := `
		SELECT
			id, pdf_path, output_path, status,
			COALESCE(page_count, 0), COALESCE(batch_count, 0),
			COALESCE(failed_first_page, 0), COALESCE(failed_last_page, 0),
			COALESCE(error_code, ''), COALESCE(error_message, ''),
			COALESCE(processing_time_ms, 0),
			created_at, updated_at
		FROM pdfocr.jobs
		WHERE id = $1::uuid
	`

	var rec JobRecord
	err := p.db.QueryRowContext(ctx, query, jobID).Scan(
		&rec.ID, &rec.PDFPath, &rec.OutputPath, &rec.Status,
		&rec.PageCount, &rec.BatchCount,
		&rec.FailedFirstPage, &rec.FailedLastPage,
		&rec.ErrorCode, &rec.ErrorMessage,
		&rec.ProcessingTimeMs,
		&rec.CreatedAt, &rec.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("job not found: %s", jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &rec, nil
}

// Ping checks database connectivity
func (p *PostgresClient) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the database connection
func (p *PostgresClient) Close() error {
	return p.db.Close()
}

// GetStats returns database connection statistics
func (p *PostgresClient) GetStats() sql.DBStats {
	return p.db.Stats()
}

// sanitizeForPostgres strips NUL bytes, which PostgreSQL TEXT rejects, and
// replaces other C0 control characters except tab and newline with spaces.
// OCR engine error output occasionally contains both.
func sanitizeForPostgres(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == 0:
			return -1
		case r < 0x20 && r != '\t' && r != '\n':
			return ' '
		default:
			return r
		}
	}, s)
}
