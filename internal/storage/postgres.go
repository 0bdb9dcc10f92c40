package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/benvon/scam-hunter/internal/models"
	"github.com/google/uuid"
	_ "github.com/lib/pq"
)

const schema = `
CREATE TABLE IF NOT EXISTS scam_analyses (
	id         TEXT PRIMARY KEY,
	user_id    TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	record     JSONB NOT NULL
);
CREATE INDEX IF NOT EXISTS scam_analyses_user_created_idx ON scam_analyses (user_id, created_at DESC);
CREATE TABLE IF NOT EXISTS scam_sessions (
	user_id        TEXT PRIMARY KEY,
	created_at     TIMESTAMPTZ NOT NULL,
	last_active    TIMESTAMPTZ NOT NULL,
	analysis_count INTEGER NOT NULL DEFAULT 0,
	feedback_given INTEGER NOT NULL DEFAULT 0
);
`

// PostgresProvider stores records in PostgreSQL. Analyses are kept as JSONB documents
// keyed by id, with a (user_id, created_at) index serving history queries.
type PostgresProvider struct {
	db  *sql.DB
	now func() time.Time
}

// NewPostgresProvider connects, verifies the connection and ensures the schema exists
func NewPostgresProvider(ctx context.Context, dsn string) (*PostgresProvider, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if _, err := db.ExecContext(pingCtx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate schema: %w", err)
	}
	return &PostgresProvider{db: db, now: time.Now}, nil
}

// Close closes the connection pool
func (p *PostgresProvider) Close() error {
	return p.db.Close()
}

// Ping checks that the database is reachable
func (p *PostgresProvider) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// encodeAnalysis serializes a record for the record column. Times are written as
// ISO-8601 strings.
func encodeAnalysis(a *models.StoredAnalysis) ([]byte, error) {
	data, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal analysis: %w", err)
	}
	return data, nil
}

// decodeAnalysis parses a record column back into a record with time values
func decodeAnalysis(data []byte) (*models.StoredAnalysis, error) {
	a := &models.StoredAnalysis{}
	if err := json.Unmarshal(data, a); err != nil {
		return nil, fmt.Errorf("failed to unmarshal analysis: %w", err)
	}
	return a, nil
}

// SaveAnalysis upserts the record, assigning an id when it has none
func (p *PostgresProvider) SaveAnalysis(ctx context.Context, analysis *models.StoredAnalysis) (string, error) {
	if err := validateRecord(analysis); err != nil {
		return "", err
	}
	rec := analysis.Clone()
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	data, err := encodeAnalysis(rec)
	if err != nil {
		return "", err
	}

	_, err = p.db.ExecContext(ctx, `
		INSERT INTO scam_analyses (id, user_id, created_at, record)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			user_id = EXCLUDED.user_id,
			created_at = EXCLUDED.created_at,
			record = EXCLUDED.record
	`, rec.ID, rec.UserID, rec.Timestamp, data)
	if err != nil {
		return "", fmt.Errorf("failed to save analysis: %w", err)
	}
	return rec.ID, nil
}

// GetAnalysis loads a record by id, or nil if unknown
func (p *PostgresProvider) GetAnalysis(ctx context.Context, id string) (*models.StoredAnalysis, error) {
	var data []byte
	err := p.db.QueryRowContext(ctx, `SELECT record FROM scam_analyses WHERE id = $1`, id).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get analysis: %w", err)
	}
	return decodeAnalysis(data)
}

// GetUserHistory returns the user's most recent records
func (p *PostgresProvider) GetUserHistory(ctx context.Context, userID string, limit int) ([]*models.StoredAnalysis, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT record FROM scam_analyses
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, userID, normalizeLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query history: %w", err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var out []*models.StoredAnalysis
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("failed to scan analysis: %w", err)
		}
		a, err := decodeAnalysis(data)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating history: %w", err)
	}
	return out, nil
}

// UpdateAnalysisFeedback sets the feedback field in place; unknown ids match no rows
func (p *PostgresProvider) UpdateAnalysisFeedback(ctx context.Context, id string, feedback models.Feedback) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE scam_analyses
		SET record = jsonb_set(record, '{feedback}', to_jsonb($2::text))
		WHERE id = $1
	`, id, string(feedback))
	if err != nil {
		return fmt.Errorf("failed to update feedback: %w", err)
	}
	return nil
}

// CreateSession starts a fresh session for userID, replacing any existing one
func (p *PostgresProvider) CreateSession(ctx context.Context, userID string) (*models.UserSession, error) {
	now := p.now().UTC()
	_, err := p.db.ExecContext(ctx, `
		INSERT INTO scam_sessions (user_id, created_at, last_active, analysis_count, feedback_given)
		VALUES ($1, $2, $2, 0, 0)
		ON CONFLICT (user_id) DO UPDATE SET
			created_at = EXCLUDED.created_at,
			last_active = EXCLUDED.last_active,
			analysis_count = 0,
			feedback_given = 0
	`, userID, now)
	if err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}
	return &models.UserSession{ID: userID, CreatedAt: now, LastActive: now}, nil
}

// UpdateSession merges the non-nil fields of update and refreshes last_active
func (p *PostgresProvider) UpdateSession(ctx context.Context, userID string, update models.SessionUpdate) error {
	_, err := p.db.ExecContext(ctx, `
		UPDATE scam_sessions
		SET analysis_count = COALESCE($2::integer, analysis_count),
		    feedback_given = COALESCE($3::integer, feedback_given),
		    last_active = $4
		WHERE user_id = $1
	`, userID, update.AnalysisCount, update.FeedbackGiven, p.now().UTC())
	if err != nil {
		return fmt.Errorf("failed to update session: %w", err)
	}
	return nil
}

// GetSession loads a session, or nil if unknown
func (p *PostgresProvider) GetSession(ctx context.Context, userID string) (*models.UserSession, error) {
	s := &models.UserSession{}
	err := p.db.QueryRowContext(ctx, `
		SELECT user_id, created_at, last_active, analysis_count, feedback_given
		FROM scam_sessions WHERE user_id = $1
	`, userID).Scan(&s.ID, &s.CreatedAt, &s.LastActive, &s.AnalysisCount, &s.FeedbackGiven)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return s, nil
}
