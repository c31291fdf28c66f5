package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/samber/lo"
	"go.uber.org/zap"

	"flowscope/internal/apperr"
	"flowscope/internal/metrics"
	"flowscope/internal/vitals"
)

const schema = `
CREATE TABLE IF NOT EXISTS users (
	id         BIGSERIAL PRIMARY KEY,
	username   TEXT NOT NULL,
	password   TEXT NOT NULL DEFAULT '',
	first_name TEXT NOT NULL DEFAULT '',
	last_name  TEXT NOT NULL DEFAULT '',
	email      TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS health_samples (
	id                       BIGSERIAL PRIMARY KEY,
	user_id                  BIGINT NOT NULL REFERENCES users(id),
	timestamp                TIMESTAMPTZ NOT NULL,
	ecg_data                 JSONB,
	heart_rate               INTEGER,
	blood_oxygen             INTEGER,
	blood_pressure_systolic  INTEGER,
	blood_pressure_diastolic INTEGER,
	respiratory_rate         INTEGER,
	recovery_rate            INTEGER,
	health_status            TEXT NOT NULL CHECK (health_status IN ('healthy', 'concerning', 'critical'))
);

CREATE INDEX IF NOT EXISTS health_samples_user_ts ON health_samples (user_id, timestamp DESC);

CREATE TABLE IF NOT EXISTS reports (
	id            BIGSERIAL PRIMARY KEY,
	user_id       BIGINT NOT NULL REFERENCES users(id),
	title         TEXT NOT NULL,
	summary       TEXT NOT NULL,
	health_status TEXT NOT NULL CHECK (health_status IN ('healthy', 'concerning', 'critical')),
	created_at    TIMESTAMPTZ NOT NULL,
	report_data   JSONB
);

CREATE INDEX IF NOT EXISTS reports_user_created ON reports (user_id, created_at DESC);
`

const sampleColumns = `id, user_id, timestamp, ecg_data, heart_rate, blood_oxygen,
	blood_pressure_systolic, blood_pressure_diastolic, respiratory_rate, recovery_rate, health_status`

const reportColumns = `id, user_id, title, summary, health_status, created_at, report_data`

// foreign_key_violation
const pqForeignKeyViolation = "23503"

// PostgresStore is the durable Store backed by database/sql and lib/pq.
type PostgresStore struct {
	db      *sql.DB
	opts    Options
	metrics *metrics.Registry
	logger  *zap.Logger
}

// OpenPostgres opens and pings a connection pool.
func OpenPostgres(ctx context.Context, dsn string, maxConns int) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if maxConns > 0 {
		db.SetMaxOpenConns(maxConns)
		db.SetMaxIdleConns(maxConns)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

// NewPostgresStore wraps an open pool. Call Migrate once before use.
func NewPostgresStore(db *sql.DB, opts Options, metricsRegistry *metrics.Registry, logger *zap.Logger) *PostgresStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostgresStore{db: db, opts: opts, metrics: metricsRegistry, logger: logger}
}

// Migrate creates the tables and indexes if they do not exist.
func (p *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("migrate schema: %w", err)
	}
	return nil
}

/* ---------------- users ---------------- */

func (p *PostgresStore) CreateUser(ctx context.Context, u User) (User, error) {
	if err := validateUser(u); err != nil {
		return User{}, err
	}

	if p.opts.EnforceUniqueUsername {
		var taken bool
		err := p.db.QueryRowContext(ctx,
			`SELECT EXISTS (SELECT 1 FROM users WHERE username = $1 OR lower(email) = lower($2))`,
			u.Username, u.Email,
		).Scan(&taken)
		if err != nil {
			return User{}, apperr.Internal("check username", err)
		}
		if taken {
			return User{}, usernameTaken()
		}
	}

	err := p.db.QueryRowContext(ctx,
		`INSERT INTO users (username, password, first_name, last_name, email)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		u.Username, u.Password, u.FirstName, u.LastName, u.Email,
	).Scan(&u.ID)
	if err != nil {
		return User{}, apperr.Internal("insert user", err)
	}

	p.metrics.Inc(metrics.UsersCreatedTotal)
	return u, nil
}

func (p *PostgresStore) GetUser(ctx context.Context, id int64) (User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, username, password, first_name, last_name, email FROM users WHERE id = $1`, id)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("user", id)
	}
	if err != nil {
		return User{}, apperr.Internal("get user", err)
	}
	return u, nil
}

func (p *PostgresStore) GetUserByUsername(ctx context.Context, username string) (User, error) {
	row := p.db.QueryRowContext(ctx,
		`SELECT id, username, password, first_name, last_name, email FROM users
		 WHERE username = $1 ORDER BY id LIMIT 1`, username)
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return User{}, apperr.NotFound("user", username)
	}
	if err != nil {
		return User{}, apperr.Internal("get user by username", err)
	}
	return u, nil
}

func scanUser(row *sql.Row) (User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.Password, &u.FirstName, &u.LastName, &u.Email)
	return u, err
}

/* ---------------- health samples ---------------- */

func (p *PostgresStore) CreateHealthSample(ctx context.Context, s HealthSample) (HealthSample, error) {
	if err := validateSample(s); err != nil {
		return HealthSample{}, err
	}

	ecg, err := json.Marshal(s.ECGData)
	if err != nil {
		return HealthSample{}, apperr.Internal("encode ecg data", err)
	}

	err = p.db.QueryRowContext(ctx,
		`INSERT INTO health_samples (user_id, timestamp, ecg_data, heart_rate, blood_oxygen,
			blood_pressure_systolic, blood_pressure_diastolic, respiratory_rate, recovery_rate, health_status)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10) RETURNING id`,
		s.UserID, s.Timestamp.UTC(), ecg,
		nullInt(s.HeartRate), nullInt(s.BloodOxygen),
		nullInt(s.BloodPressureSystolic), nullInt(s.BloodPressureDiastolic),
		nullInt(s.RespiratoryRate), nullInt(s.RecoveryRate),
		string(s.HealthStatus),
	).Scan(&s.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return HealthSample{}, apperr.NotFound("user", s.UserID)
		}
		return HealthSample{}, apperr.Internal("insert health sample", err)
	}

	p.metrics.Inc(metrics.SamplesCreatedTotal)
	return cloneSample(s), nil
}

func (p *PostgresStore) GetSamplesForUser(ctx context.Context, userID int64, limit int) ([]HealthSample, error) {
	query := `SELECT ` + sampleColumns + ` FROM health_samples
		WHERE user_id = $1 ORDER BY timestamp DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}
	return p.querySamples(ctx, "list health samples", query, args...)
}

func (p *PostgresStore) GetLatestSample(ctx context.Context, userID int64) (HealthSample, error) {
	latest, err := p.GetSamplesForUser(ctx, userID, 1)
	if err != nil {
		return HealthSample{}, err
	}
	if len(latest) == 0 {
		return HealthSample{}, apperr.NotFound("health data for user", userID)
	}
	return latest[0], nil
}

func (p *PostgresStore) GetSamplesInRange(ctx context.Context, userID int64, start, end time.Time) ([]HealthSample, error) {
	return p.querySamples(ctx, "range health samples",
		`SELECT `+sampleColumns+` FROM health_samples
		 WHERE user_id = $1 AND timestamp >= $2 AND timestamp <= $3
		 ORDER BY timestamp ASC, id ASC`,
		userID, start.UTC(), end.UTC())
}

func (p *PostgresStore) DeleteSamplesBefore(ctx context.Context, cutoff time.Time) (Pruned, error) {
	rows, err := p.db.QueryContext(ctx,
		`DELETE FROM health_samples WHERE timestamp < $1 RETURNING user_id`, cutoff.UTC())
	if err != nil {
		return Pruned{}, apperr.Internal("delete health samples", err)
	}
	defer rows.Close()

	var (
		out     Pruned
		userIDs []int64
	)
	for rows.Next() {
		var userID int64
		if err := rows.Scan(&userID); err != nil {
			return Pruned{}, apperr.Internal("delete health samples", err)
		}
		userIDs = append(userIDs, userID)
		out.Samples++
	}
	if err := rows.Err(); err != nil {
		return Pruned{}, apperr.Internal("delete health samples", err)
	}

	out.UserIDs = lo.Uniq(userIDs)
	sort.Slice(out.UserIDs, func(i, j int) bool { return out.UserIDs[i] < out.UserIDs[j] })
	return out, nil
}

func (p *PostgresStore) querySamples(ctx context.Context, op, query string, args ...any) ([]HealthSample, error) {
	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal(op, err)
	}
	defer rows.Close()

	out := make([]HealthSample, 0)
	for rows.Next() {
		var (
			s                          HealthSample
			ecg                        []byte
			hr, spo2, sys, dia, rr, rc sql.NullInt64
			status                     string
		)
		if err := rows.Scan(&s.ID, &s.UserID, &s.Timestamp, &ecg,
			&hr, &spo2, &sys, &dia, &rr, &rc, &status); err != nil {
			return nil, apperr.Internal(op, err)
		}
		if len(ecg) > 0 {
			if err := json.Unmarshal(ecg, &s.ECGData); err != nil {
				return nil, apperr.Internal(op, fmt.Errorf("decode ecg data of sample %d: %w", s.ID, err))
			}
		}
		s.HeartRate = intFromNull(hr)
		s.BloodOxygen = intFromNull(spo2)
		s.BloodPressureSystolic = intFromNull(sys)
		s.BloodPressureDiastolic = intFromNull(dia)
		s.RespiratoryRate = intFromNull(rr)
		s.RecoveryRate = intFromNull(rc)
		s.HealthStatus = vitals.Status(status)
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal(op, err)
	}
	return out, nil
}

/* ---------------- reports ---------------- */

func (p *PostgresStore) CreateReport(ctx context.Context, r Report) (Report, error) {
	if err := validateReport(r); err != nil {
		return Report{}, err
	}

	var data any
	if len(r.ReportData) > 0 {
		data = []byte(r.ReportData)
	}

	err := p.db.QueryRowContext(ctx,
		`INSERT INTO reports (user_id, title, summary, health_status, created_at, report_data)
		 VALUES ($1, $2, $3, $4, $5, $6) RETURNING id`,
		r.UserID, r.Title, r.Summary, string(r.HealthStatus), r.CreatedAt.UTC(), data,
	).Scan(&r.ID)
	if err != nil {
		if isForeignKeyViolation(err) {
			return Report{}, apperr.NotFound("user", r.UserID)
		}
		return Report{}, apperr.Internal("insert report", err)
	}

	p.metrics.Inc(metrics.ReportsCreatedTotal)
	return cloneReport(r), nil
}

func (p *PostgresStore) GetReportsForUser(ctx context.Context, userID int64, limit int) ([]Report, error) {
	query := `SELECT ` + reportColumns + ` FROM reports
		WHERE user_id = $1 ORDER BY created_at DESC, id DESC`
	args := []any{userID}
	if limit > 0 {
		query += ` LIMIT $2`
		args = append(args, limit)
	}

	rows, err := p.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, apperr.Internal("list reports", err)
	}
	defer rows.Close()

	out := make([]Report, 0)
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, apperr.Internal("list reports", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Internal("list reports", err)
	}
	return out, nil
}

func (p *PostgresStore) GetReportByID(ctx context.Context, id int64) (Report, error) {
	row := p.db.QueryRowContext(ctx, `SELECT `+reportColumns+` FROM reports WHERE id = $1`, id)
	r, err := scanReport(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Report{}, apperr.NotFound("report", id)
	}
	if err != nil {
		return Report{}, apperr.Internal("get report", err)
	}
	return r, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanReport(row scanner) (Report, error) {
	var (
		r      Report
		status string
		data   []byte
	)
	if err := row.Scan(&r.ID, &r.UserID, &r.Title, &r.Summary, &status, &r.CreatedAt, &data); err != nil {
		return Report{}, err
	}
	r.HealthStatus = vitals.Status(status)
	if len(data) > 0 {
		r.ReportData = json.RawMessage(data)
	}
	return r, nil
}

func (p *PostgresStore) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := p.db.QueryRowContext(ctx, `SELECT
		(SELECT count(*) FROM users),
		(SELECT count(*) FROM health_samples),
		(SELECT count(*) FROM reports)`,
	).Scan(&st.Users, &st.Samples, &st.Reports)
	if err != nil {
		return Stats{}, apperr.Internal("count rows", err)
	}
	return st, nil
}

// Close releases the pool.
func (p *PostgresStore) Close() error {
	if p.db == nil {
		return nil
	}
	p.logger.Info("closing postgres store")
	return p.db.Close()
}

func nullInt(v *int) any {
	if v == nil {
		return nil
	}
	return int64(*v)
}

func intFromNull(n sql.NullInt64) *int {
	if !n.Valid {
		return nil
	}
	v := int(n.Int64)
	return &v
}

func isForeignKeyViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == pqForeignKeyViolation
	}
	return strings.Contains(err.Error(), "violates foreign key constraint")
}
