package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/leadgen-mx/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite, for local
// development and single-node deployments.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid              TEXT NOT NULL UNIQUE,
	company_name      TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	source_url        TEXT NOT NULL DEFAULT '',
	confidence_score  REAL NOT NULL DEFAULT 0,
	validation_status TEXT NOT NULL DEFAULT 'pending',
	status            TEXT NOT NULL DEFAULT 'new',
	session_id        TEXT NOT NULL DEFAULT '',
	created_at        DATETIME NOT NULL,
	updated_at        DATETIME NOT NULL,
	UNIQUE (company_name, phone, source)
);

CREATE TABLE IF NOT EXISTS scraping_sessions (
	id               INTEGER PRIMARY KEY AUTOINCREMENT,
	uuid             TEXT NOT NULL UNIQUE,
	session_type     TEXT NOT NULL DEFAULT 'manual',
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       DATETIME NOT NULL,
	completed_at     DATETIME,
	duration_seconds REAL NOT NULL DEFAULT 0,
	final_stats      TEXT,
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_session_id ON leads(session_id);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON scraping_sessions(status);
`

func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	res, err := s.db.ExecContext(ctx,
		`INSERT INTO leads (uuid, company_name, phone, email, website, address, category, source, source_url, confidence_score, validation_status, status, session_id, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		lead.UUID, lead.CompanyName, lead.Phone, lead.Email, lead.Website, lead.Address,
		lead.Category, string(lead.Source), lead.SourceURL, lead.ConfidenceScore,
		string(lead.ValidationStatus), string(lead.Status), lead.SessionID, now, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateLead
		}
		return eris.Wrap(err, "sqlite: insert lead")
	}
	lead.ID, err = res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	return nil
}

func (s *SQLiteStore) LeadExists(ctx context.Context, companyName, phone string, source model.Source) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE company_name = ? AND phone = ? AND source = ?)`,
		companyName, phone, string(source),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "sqlite: lead exists")
	}
	return exists, nil
}

func (s *SQLiteStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []any{}
	if filter.Source != "" {
		query += ` AND source = ?`
		args = append(args, string(filter.Source))
	}
	if filter.SessionID != "" {
		query += ` AND session_id = ?`
		args = append(args, filter.SessionID)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)
	if filter.Offset > 0 {
		query += ` OFFSET ?`
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		var l model.Lead
		var source, validation, status string
		if err := rows.Scan(&l.ID, &l.UUID, &l.CompanyName, &l.Phone, &l.Email, &l.Website,
			&l.Address, &l.Category, &source, &l.SourceURL, &l.ConfidenceScore,
			&validation, &status, &l.SessionID, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan lead")
		}
		l.Source = model.Source(source)
		l.ValidationStatus = model.ValidationStatus(validation)
		l.Status = model.LeadStatus(status)
		leads = append(leads, l)
	}
	return leads, eris.Wrap(rows.Err(), "sqlite: list leads rows")
}

func (s *SQLiteStore) CountLeads(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "sqlite: count leads")
	}
	return n, nil
}

func (s *SQLiteStore) CreateSession(ctx context.Context, session *model.Session) error {
	res, err := s.db.ExecContext(ctx,
		`INSERT INTO scraping_sessions (uuid, session_type, status, started_at) VALUES (?, ?, ?, ?)`,
		session.UUID, string(session.Type), string(model.SessionRunning), session.StartedAt,
	)
	if err != nil {
		return eris.Wrap(err, "sqlite: insert session")
	}
	session.ID, err = res.LastInsertId()
	if err != nil {
		return eris.Wrap(err, "sqlite: last insert id")
	}
	session.Status = model.SessionRunning
	return nil
}

func (s *SQLiteStore) CloseSession(ctx context.Context, uuid string, status model.SessionStatus, completedAt time.Time, durationSeconds float64, finalStats []byte, errorMessage string) error {
	if !status.Terminal() {
		return eris.Errorf("sqlite: close session with non-terminal status %q", status)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE scraping_sessions SET status = ?, completed_at = ?, duration_seconds = ?, final_stats = ?, error_message = ? WHERE uuid = ? AND status = 'running'`,
		string(status), completedAt, durationSeconds, string(finalStats), errorMessage, uuid,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: close session %s", uuid)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrap(err, "sqlite: rows affected")
	}
	if n == 0 {
		return ErrSessionNotRunning
	}
	return nil
}

func (s *SQLiteStore) GetSession(ctx context.Context, uuid string) (*model.Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+sessionColumns+` FROM scraping_sessions WHERE uuid = ?`, uuid)
	sess, err := scanSQLiteSession(row.Scan)
	if err != nil {
		return nil, eris.Wrapf(err, "sqlite: get session %s", uuid)
	}
	return sess, nil
}

func scanSQLiteSession(scan func(dest ...any) error) (*model.Session, error) {
	var sess model.Session
	var sessType, status string
	var completedAt sql.NullTime
	var finalStats sql.NullString
	err := scan(&sess.ID, &sess.UUID, &sessType, &status, &sess.StartedAt,
		&completedAt, &sess.DurationSeconds, &finalStats, &sess.ErrorMessage)
	if err != nil {
		return nil, err
	}
	sess.Type = model.SessionType(sessType)
	sess.Status = model.SessionStatus(status)
	if completedAt.Valid {
		sess.CompletedAt = &completedAt.Time
	}
	if finalStats.Valid {
		sess.FinalStats = []byte(finalStats.String)
	}
	return &sess, nil
}

func (s *SQLiteStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+sessionColumns+` FROM scraping_sessions ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSQLiteSession(rows.Scan)
		if err != nil {
			return nil, eris.Wrap(err, "sqlite: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "sqlite: list sessions rows")
}

// SessionStats aggregates totals over completed sessions. SQLite stores
// final_stats as JSON text, so new-lead totals come from json_extract.
func (s *SQLiteStore) SessionStats(ctx context.Context) (*model.SessionStats, error) {
	var stats model.SessionStats
	var lastRun sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(CAST(json_extract(final_stats, '$.new_leads') AS INTEGER)), 0), MAX(completed_at)
		 FROM scraping_sessions WHERE status = 'completed'`,
	).Scan(&stats.TotalSessions, &stats.TotalLeads, &lastRun)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return &stats, nil
		}
		return nil, eris.Wrap(err, "sqlite: session stats")
	}
	if lastRun.Valid {
		stats.LastRun = &lastRun.Time
	}
	return &stats, nil
}
