package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/therealutkarshpriyadarshi/substills/internal/logging"
	"github.com/therealutkarshpriyadarshi/substills/internal/metrics"
	"github.com/therealutkarshpriyadarshi/substills/pkg/models"
)

// ErrNotFound is returned when a capture does not exist
var ErrNotFound = errors.New("capture not found")

// Repository provides database operations
type Repository struct {
	db     *DB
	logger *logging.Logger
}

// NewRepository creates a new repository
func NewRepository(db *DB) *Repository {
	return &Repository{db: db, logger: logging.Nop()}
}

// WithLogger sets the logger used for query outcomes
func (r *Repository) WithLogger(logger *logging.Logger) *Repository {
	if logger != nil {
		r.logger = logger.WithComponent("database")
	}
	return r
}

// CaptureFilter narrows ListCaptures
type CaptureFilter struct {
	TabID  string
	Source string
	Limit  int
	Offset int
}

// CaptureStats summarises the history
type CaptureStats struct {
	Total      int64            `json:"total"`
	BySource   map[string]int64 `json:"by_source"`
	TotalBytes int64            `json:"total_bytes"`
}

// observe times an operation; defer the returned func with the named error.
// A missing capture is not counted as a failure.
func (r *Repository) observe(operation string) func(*error) {
	start := time.Now()
	return func(err *error) {
		failure := *err
		if errors.Is(failure, ErrNotFound) {
			failure = nil
		}
		status := "success"
		if failure != nil {
			status = "error"
		}
		elapsed := time.Since(start)
		metrics.RecordDatabaseOperation(operation, status, elapsed.Seconds())
		r.logger.LogDatabaseOperation(operation, elapsed, failure)
	}
}

// Captures

// CreateCapture records a finished capture
func (r *Repository) CreateCapture(ctx context.Context, capture *models.Capture) (err error) {
	defer r.observe("create_capture")(&err)

	if capture.ID == "" {
		capture.ID = uuid.New().String()
	}
	if capture.CreatedAt.IsZero() {
		capture.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO captures (id, tab_id, filename, format, mime_type, width, height, size,
		                      source, include_subtitles, title, timestamp, object_key, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
	`

	_, err = r.db.Pool.Exec(ctx, query,
		capture.ID, capture.TabID, capture.Filename, capture.Format, capture.MIMEType,
		capture.Width, capture.Height, capture.Size, capture.Source, capture.IncludeSubtitles,
		capture.Title, capture.Timestamp, capture.ObjectKey, capture.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create capture: %w", err)
	}
	return nil
}

const captureColumns = `id, tab_id, filename, format, mime_type, width, height, size,
		       source, include_subtitles, title, timestamp, object_key, created_at`

func scanCapture(row pgx.Row) (*models.Capture, error) {
	var capture models.Capture
	err := row.Scan(
		&capture.ID, &capture.TabID, &capture.Filename, &capture.Format, &capture.MIMEType,
		&capture.Width, &capture.Height, &capture.Size, &capture.Source, &capture.IncludeSubtitles,
		&capture.Title, &capture.Timestamp, &capture.ObjectKey, &capture.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &capture, nil
}

// GetCapture retrieves a capture by ID
func (r *Repository) GetCapture(ctx context.Context, id string) (_ *models.Capture, err error) {
	defer r.observe("get_capture")(&err)

	query := `SELECT ` + captureColumns + ` FROM captures WHERE id = $1`
	capture, err := scanCapture(r.db.Pool.QueryRow(ctx, query, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get capture: %w", err)
	}
	return capture, nil
}

// ListCaptures returns captures newest first
func (r *Repository) ListCaptures(ctx context.Context, filter CaptureFilter) (_ []*models.Capture, err error) {
	defer r.observe("list_captures")(&err)

	if filter.Limit <= 0 || filter.Limit > 100 {
		filter.Limit = 20
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	query := `
		SELECT ` + captureColumns + `
		FROM captures
		WHERE ($1 = '' OR tab_id = $1) AND ($2 = '' OR source = $2)
		ORDER BY created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.Pool.Query(ctx, query, filter.TabID, filter.Source, filter.Limit, filter.Offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	defer rows.Close()

	var captures []*models.Capture
	for rows.Next() {
		capture, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan capture: %w", err)
		}
		captures = append(captures, capture)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list captures: %w", err)
	}
	return captures, nil
}

// SetObjectKey records where a capture was saved after the fact
func (r *Repository) SetObjectKey(ctx context.Context, id, key string) (err error) {
	defer r.observe("set_object_key")(&err)

	tag, err := r.db.Pool.Exec(ctx, `UPDATE captures SET object_key = $2 WHERE id = $1`, id, key)
	if err != nil {
		return fmt.Errorf("failed to update capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteCapture removes a capture record
func (r *Repository) DeleteCapture(ctx context.Context, id string) (err error) {
	defer r.observe("delete_capture")(&err)

	tag, err := r.db.Pool.Exec(ctx, `DELETE FROM captures WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete capture: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// Stats counts captures per source
func (r *Repository) Stats(ctx context.Context) (_ *CaptureStats, err error) {
	defer r.observe("capture_stats")(&err)

	rows, err := r.db.Pool.Query(ctx, `SELECT source, COUNT(*), COALESCE(SUM(size), 0)::BIGINT FROM captures GROUP BY source`)
	if err != nil {
		return nil, fmt.Errorf("failed to get capture stats: %w", err)
	}
	defer rows.Close()

	stats := &CaptureStats{BySource: make(map[string]int64)}
	for rows.Next() {
		var source string
		var count, bytes int64
		if err := rows.Scan(&source, &count, &bytes); err != nil {
			return nil, fmt.Errorf("failed to scan capture stats: %w", err)
		}
		stats.BySource[source] = count
		stats.Total += count
		stats.TotalBytes += bytes
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get capture stats: %w", err)
	}
	return stats, nil
}
