package store

import (
	"context"
	"errors"
	"strconv"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"

	"github.com/sells-group/leadgen-mx/internal/db"
	"github.com/sells-group/leadgen-mx/internal/model"
)

// ErrDuplicateLead is returned by SaveLead when the (company_name, phone,
// source) unique constraint rejects the insert. The dedup check runs before
// saving, but a cache false negative can still race into the constraint.
var ErrDuplicateLead = eris.New("store: duplicate lead")

// ErrSessionNotRunning is returned by CloseSession when the session is
// missing or already terminal. Terminal status is set exactly once.
var ErrSessionNotRunning = eris.New("store: session not running")

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// preparedStatements lists queries to prepare on each new connection for
// faster execution of the hot path (per-lead dedup check and insert).
var preparedStatements = map[string]string{
	"lead_exists": `SELECT EXISTS (SELECT 1 FROM leads WHERE company_name = $1 AND phone = $2 AND source = $3)`,
	"insert_lead": `INSERT INTO leads (uuid, company_name, phone, email, website, address, category, source, source_url, confidence_score, validation_status, status, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
	"insert_session": `INSERT INTO scraping_sessions (uuid, session_type, status, started_at) VALUES ($1, $2, $3, $4) RETURNING id`,
	"close_session":  `UPDATE scraping_sessions SET status = $1, completed_at = $2, duration_seconds = $3, final_stats = $4, error_message = $5 WHERE uuid = $6 AND status = 'running'`,
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(10)
	minConns := int32(2)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pgxCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		for name, sql := range preparedStatements {
			if _, err := conn.Prepare(ctx, name, sql); err != nil {
				return eris.Wrapf(err, "postgres: prepare %s", name)
			}
		}
		return nil
	}

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

const postgresMigration = `
CREATE TABLE IF NOT EXISTS leads (
	id                BIGSERIAL PRIMARY KEY,
	uuid              TEXT NOT NULL UNIQUE,
	company_name      TEXT NOT NULL,
	phone             TEXT NOT NULL DEFAULT '',
	email             TEXT NOT NULL DEFAULT '',
	website           TEXT NOT NULL DEFAULT '',
	address           TEXT NOT NULL DEFAULT '',
	category          TEXT NOT NULL DEFAULT '',
	source            TEXT NOT NULL,
	source_url        TEXT NOT NULL DEFAULT '',
	confidence_score  DOUBLE PRECISION NOT NULL DEFAULT 0,
	validation_status TEXT NOT NULL DEFAULT 'pending',
	status            TEXT NOT NULL DEFAULT 'new',
	session_id        TEXT NOT NULL DEFAULT '',
	created_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	updated_at        TIMESTAMPTZ NOT NULL DEFAULT now(),
	UNIQUE (company_name, phone, source)
);

CREATE TABLE IF NOT EXISTS scraping_sessions (
	id               BIGSERIAL PRIMARY KEY,
	uuid             TEXT NOT NULL UNIQUE,
	session_type     TEXT NOT NULL DEFAULT 'manual',
	status           TEXT NOT NULL DEFAULT 'running',
	started_at       TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at     TIMESTAMPTZ,
	duration_seconds DOUBLE PRECISION NOT NULL DEFAULT 0,
	final_stats      JSONB,
	error_message    TEXT NOT NULL DEFAULT ''
);

CREATE INDEX IF NOT EXISTS idx_leads_source ON leads(source);
CREATE INDEX IF NOT EXISTS idx_leads_session_id ON leads(session_id);
CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
CREATE INDEX IF NOT EXISTS idx_sessions_status ON scraping_sessions(status);
CREATE INDEX IF NOT EXISTS idx_sessions_started_at ON scraping_sessions(started_at);
`

func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	return nil
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

func (s *PostgresStore) SaveLead(ctx context.Context, lead *model.Lead) error {
	now := time.Now().UTC()
	lead.CreatedAt = now
	lead.UpdatedAt = now

	err := s.pool.QueryRow(ctx,
		`INSERT INTO leads (uuid, company_name, phone, email, website, address, category, source, source_url, confidence_score, validation_status, status, session_id, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15) RETURNING id`,
		lead.UUID, lead.CompanyName, lead.Phone, lead.Email, lead.Website, lead.Address,
		lead.Category, string(lead.Source), lead.SourceURL, lead.ConfidenceScore,
		string(lead.ValidationStatus), string(lead.Status), lead.SessionID, now, now,
	).Scan(&lead.ID)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrDuplicateLead
		}
		return eris.Wrap(err, "postgres: insert lead")
	}
	return nil
}

func (s *PostgresStore) LeadExists(ctx context.Context, companyName, phone string, source model.Source) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM leads WHERE company_name = $1 AND phone = $2 AND source = $3)`,
		companyName, phone, string(source),
	).Scan(&exists)
	if err != nil {
		return false, eris.Wrap(err, "postgres: lead exists")
	}
	return exists, nil
}

const leadColumns = `id, uuid, company_name, phone, email, website, address, category, source, source_url, confidence_score, validation_status, status, session_id, created_at, updated_at`

func (s *PostgresStore) ListLeads(ctx context.Context, filter model.LeadFilter) ([]model.Lead, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	query := `SELECT ` + leadColumns + ` FROM leads WHERE 1=1`
	args := []any{}
	idx := 1
	if filter.Source != "" {
		query += ` AND source = $` + strconv.Itoa(idx)
		args = append(args, string(filter.Source))
		idx++
	}
	if filter.SessionID != "" {
		query += ` AND session_id = $` + strconv.Itoa(idx)
		args = append(args, filter.SessionID)
		idx++
	}
	query += ` ORDER BY created_at DESC LIMIT $` + strconv.Itoa(idx)
	args = append(args, limit)
	idx++
	if filter.Offset > 0 {
		query += ` OFFSET $` + strconv.Itoa(idx)
		args = append(args, filter.Offset)
	}

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list leads")
	}
	defer rows.Close()

	var leads []model.Lead
	for rows.Next() {
		l, err := scanLead(rows)
		if err != nil {
			return nil, err
		}
		leads = append(leads, *l)
	}
	return leads, eris.Wrap(rows.Err(), "postgres: list leads rows")
}

func scanLead(row pgx.Row) (*model.Lead, error) {
	var l model.Lead
	var source, validation, status string
	err := row.Scan(&l.ID, &l.UUID, &l.CompanyName, &l.Phone, &l.Email, &l.Website,
		&l.Address, &l.Category, &source, &l.SourceURL, &l.ConfidenceScore,
		&validation, &status, &l.SessionID, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: scan lead")
	}
	l.Source = model.Source(source)
	l.ValidationStatus = model.ValidationStatus(validation)
	l.Status = model.LeadStatus(status)
	return &l, nil
}

func (s *PostgresStore) CountLeads(ctx context.Context) (int, error) {
	var n int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM leads`).Scan(&n); err != nil {
		return 0, eris.Wrap(err, "postgres: count leads")
	}
	return n, nil
}

func (s *PostgresStore) CreateSession(ctx context.Context, session *model.Session) error {
	err := s.pool.QueryRow(ctx,
		`INSERT INTO scraping_sessions (uuid, session_type, status, started_at) VALUES ($1, $2, $3, $4) RETURNING id`,
		session.UUID, string(session.Type), string(model.SessionRunning), session.StartedAt,
	).Scan(&session.ID)
	if err != nil {
		return eris.Wrap(err, "postgres: insert session")
	}
	session.Status = model.SessionRunning
	return nil
}

func (s *PostgresStore) CloseSession(ctx context.Context, uuid string, status model.SessionStatus, completedAt time.Time, durationSeconds float64, finalStats []byte, errorMessage string) error {
	if !status.Terminal() {
		return eris.Errorf("postgres: close session with non-terminal status %q", status)
	}
	tag, err := s.pool.Exec(ctx,
		`UPDATE scraping_sessions SET status = $1, completed_at = $2, duration_seconds = $3, final_stats = $4, error_message = $5 WHERE uuid = $6 AND status = 'running'`,
		string(status), completedAt, durationSeconds, finalStats, errorMessage, uuid,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: close session %s", uuid)
	}
	if tag.RowsAffected() == 0 {
		return ErrSessionNotRunning
	}
	return nil
}

const sessionColumns = `id, uuid, session_type, status, started_at, completed_at, duration_seconds, final_stats, error_message`

func (s *PostgresStore) GetSession(ctx context.Context, uuid string) (*model.Session, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+sessionColumns+` FROM scraping_sessions WHERE uuid = $1`, uuid)
	sess, err := scanSession(row)
	if err != nil {
		return nil, eris.Wrapf(err, "postgres: get session %s", uuid)
	}
	return sess, nil
}

func scanSession(row pgx.Row) (*model.Session, error) {
	var sess model.Session
	var sessType, status string
	err := row.Scan(&sess.ID, &sess.UUID, &sessType, &status, &sess.StartedAt,
		&sess.CompletedAt, &sess.DurationSeconds, &sess.FinalStats, &sess.ErrorMessage)
	if err != nil {
		return nil, err
	}
	sess.Type = model.SessionType(sessType)
	sess.Status = model.SessionStatus(status)
	return &sess, nil
}

func (s *PostgresStore) ListSessions(ctx context.Context, limit int) ([]model.Session, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.pool.Query(ctx,
		`SELECT `+sessionColumns+` FROM scraping_sessions ORDER BY started_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list sessions")
	}
	defer rows.Close()

	var sessions []model.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, eris.Wrap(err, "postgres: scan session")
		}
		sessions = append(sessions, *sess)
	}
	return sessions, eris.Wrap(rows.Err(), "postgres: list sessions rows")
}

// SessionStats recomputes running totals by aggregating over completed
// sessions, so counters survive process restarts without a counter store.
func (s *PostgresStore) SessionStats(ctx context.Context) (*model.SessionStats, error) {
	var stats model.SessionStats
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*), COALESCE(SUM((final_stats->>'new_leads')::int), 0), MAX(completed_at)
		 FROM scraping_sessions WHERE status = 'completed'`,
	).Scan(&stats.TotalSessions, &stats.TotalLeads, &stats.LastRun)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: session stats")
	}
	return &stats, nil
}
