package db

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/XSAM/otelsql"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	"github.com/patrickwarner/mediahub/internal/migration"
	"github.com/patrickwarner/mediahub/internal/models"
)

// Postgres wraps a postgres DB connection holding the migration run log and
// the manual review queue.
type Postgres struct {
	DB *sql.DB
}

// schemaSQL sets up the necessary tables if they don't exist.
const schemaSQL = `CREATE TABLE IF NOT EXISTS format_migration_runs (
    run_id TEXT PRIMARY KEY,
    apply BOOLEAN NOT NULL,
    started_at TIMESTAMP NOT NULL,
    finished_at TIMESTAMP NOT NULL,
    publications INT NOT NULL,
    ads INT NOT NULL,
    mapped INT NOT NULL,
    inferred INT NOT NULL,
    needs_review INT NOT NULL,
    already_migrated INT NOT NULL,
    publications_updated INT NOT NULL,
    ads_updated INT NOT NULL,
    errors INT NOT NULL
);

CREATE TABLE IF NOT EXISTS format_review_items (
    id BIGSERIAL PRIMARY KEY,
    run_id TEXT REFERENCES format_migration_runs(run_id),
    publication_id TEXT NOT NULL,
    publication_name TEXT NOT NULL,
    newsletter_name TEXT NOT NULL,
    newsletter_index INT NOT NULL,
    ad_name TEXT NOT NULL,
    ad_index INT NOT NULL,
    raw_dimensions TEXT,
    reason TEXT NOT NULL,
    status VARCHAR(20) NOT NULL DEFAULT 'pending',
    resolution TEXT[],
    created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
    resolved_at TIMESTAMP NULL
);

-- one open review per ad slot
CREATE UNIQUE INDEX IF NOT EXISTS idx_review_items_pending_slot
    ON format_review_items (publication_id, newsletter_index, ad_index) WHERE status = 'pending';
CREATE INDEX IF NOT EXISTS idx_review_items_status ON format_review_items (status);
`

// InitPostgres connects to Postgres with connection pooling configuration.
func InitPostgres(dsn string, maxOpenConns, maxIdleConns int, connMaxLifetime, connMaxIdleTime time.Duration) (*Postgres, error) {
	// Register the otelsql wrapper for postgres
	driverName, err := otelsql.Register("postgres",
		otelsql.WithAttributes(
			attribute.String("db.system", "postgresql"),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("register otelsql: %w", err)
	}

	db, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres open: %w", err)
	}

	db.SetMaxOpenConns(maxOpenConns)
	db.SetMaxIdleConns(maxIdleConns)
	db.SetConnMaxLifetime(connMaxLifetime)
	db.SetConnMaxIdleTime(connMaxIdleTime)

	if err := db.PingContext(context.Background()); err != nil {
		return nil, fmt.Errorf("postgres ping: %w", err)
	}
	p := &Postgres{DB: db}
	if err := p.ensureSchema(context.Background()); err != nil {
		return nil, err
	}
	zap.L().Info("Connected to Postgres with connection pooling",
		zap.Int("max_open_conns", maxOpenConns),
		zap.Int("max_idle_conns", maxIdleConns),
		zap.Duration("conn_max_lifetime", connMaxLifetime))
	return p, nil
}

// Close terminates the Postgres connection.
func (p *Postgres) Close() {
	if p != nil && p.DB != nil {
		if err := p.DB.Close(); err != nil {
			zap.L().Error("postgres close", zap.Error(err))
		}
	}
}

// ensureSchema creates the required tables if they do not exist.
func (p *Postgres) ensureSchema(ctx context.Context) error {
	if _, err := p.DB.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// RecordRun stores the run summary and queues every ad that needs review.
// Ads that already have an open review are not queued twice.
func (p *Postgres) RecordRun(ctx context.Context, r *migration.Report) error {
	tx, err := p.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	_, err = tx.ExecContext(ctx, `INSERT INTO format_migration_runs (
            run_id, apply, started_at, finished_at, publications, ads, mapped, inferred,
            needs_review, already_migrated, publications_updated, ads_updated, errors)
            VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)`,
		r.RunID, r.Apply, r.StartedAt, r.FinishedAt, r.Publications, r.Ads,
		r.ByOutcome[migration.OutcomeMapped], r.ByOutcome[migration.OutcomeInferred],
		r.ByOutcome[migration.OutcomeNeedsReview], r.ByOutcome[migration.OutcomeAlreadyMigrated],
		r.PublicationsUpdated, r.AdsUpdated, len(r.Errors))
	if err != nil {
		return fmt.Errorf("insert migration run: %w", err)
	}

	for _, it := range r.NeedsReview {
		var raw sql.NullString
		if it.Raw != nil {
			raw = sql.NullString{String: *it.Raw, Valid: true}
		}
		_, err := tx.ExecContext(ctx, `INSERT INTO format_review_items (
                run_id, publication_id, publication_name, newsletter_name, newsletter_index,
                ad_name, ad_index, raw_dimensions, reason)
                VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
                ON CONFLICT DO NOTHING`,
			r.RunID, it.PublicationID.Hex(), it.PublicationName, it.NewsletterName, it.NewsletterIndex,
			it.AdName, it.AdIndex, raw, it.Reason)
		if err != nil {
			return fmt.Errorf("insert review item %s/%s: %w", it.PublicationName, it.AdName, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit migration run: %w", err)
	}
	return nil
}

const reviewColumns = `id, run_id, publication_id, publication_name, newsletter_name, newsletter_index,
    ad_name, ad_index, raw_dimensions, reason, status, resolution, created_at, resolved_at`

// ListReviews returns review items with the given status, oldest first.
func (p *Postgres) ListReviews(ctx context.Context, status string, limit int) ([]models.ReviewItem, error) {
	rows, err := p.DB.QueryContext(ctx, `SELECT `+reviewColumns+` FROM format_review_items
        WHERE status = $1 ORDER BY id LIMIT $2`, status, limit)
	if err != nil {
		return nil, fmt.Errorf("query review items: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var items []models.ReviewItem
	for rows.Next() {
		it, err := scanReview(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return items, nil
}

// GetReview returns one review item.
func (p *Postgres) GetReview(ctx context.Context, id int64) (*models.ReviewItem, error) {
	row := p.DB.QueryRowContext(ctx, `SELECT `+reviewColumns+` FROM format_review_items WHERE id = $1`, id)
	it, err := scanReview(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, models.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &it, nil
}

// ResolveReview closes a pending review item with the chosen dimensions.
func (p *Postgres) ResolveReview(ctx context.Context, id int64, resolution []string) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE format_review_items
        SET status = $1, resolution = $2, resolved_at = NOW()
        WHERE id = $3 AND status = $4`,
		models.ReviewResolved, pq.Array(resolution), id, models.ReviewPending)
	if err != nil {
		return fmt.Errorf("resolve review item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("resolve review item %d: %w", id, err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

// ReopenReview returns a resolved item to the pending state. It undoes a
// claim whose format write failed.
func (p *Postgres) ReopenReview(ctx context.Context, id int64) error {
	res, err := p.DB.ExecContext(ctx, `UPDATE format_review_items
        SET status = $1, resolution = NULL, resolved_at = NULL
        WHERE id = $2 AND status = $3`,
		models.ReviewPending, id, models.ReviewResolved)
	if err != nil {
		return fmt.Errorf("reopen review item %d: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen review item %d: %w", id, err)
	}
	if n == 0 {
		return models.ErrNotFound
	}
	return nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanReview(row rowScanner) (models.ReviewItem, error) {
	var it models.ReviewItem
	var runID, raw sql.NullString
	var resolvedAt sql.NullTime
	var resolution []string
	if err := row.Scan(&it.ID, &runID, &it.PublicationID, &it.PublicationName, &it.NewsletterName,
		&it.NewsletterIndex, &it.AdName, &it.AdIndex, &raw, &it.Reason, &it.Status,
		pq.Array(&resolution), &it.CreatedAt, &resolvedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return it, err
		}
		return it, fmt.Errorf("scan review item: %w", err)
	}
	if runID.Valid {
		it.RunID = runID.String
	}
	if raw.Valid {
		s := raw.String
		it.RawDimensions = &s
	}
	if resolvedAt.Valid {
		t := resolvedAt.Time
		it.ResolvedAt = &t
	}
	it.Resolution = resolution
	return it, nil
}
