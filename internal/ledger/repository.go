package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverPostgres = "postgres"
	DriverSQLite   = "sqlite"
)

var _ Ledger = (*Repository)(nil)

type Repository struct {
	db     *sql.DB
	driver string
}

func NewRepository(driver, dsn string) (*Repository, error) {
	switch driver {
	case DriverPostgres, DriverSQLite:
	default:
		return nil, fmt.Errorf("unsupported ledger driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// One connection keeps an in-memory database alive and serializes writers.
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(20)
		db.SetMaxIdleConns(5)
	}
	return &Repository{db: db, driver: driver}, nil
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	if r.driver == DriverSQLite {
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	} else {
		driver, err = postgres.WithInstance(r.db, &postgres.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func (r *Repository) RecordSubmission(ctx context.Context, s Submission) error {
	if s.CreatedAt.IsZero() {
		s.CreatedAt = time.Now().UTC()
	}
	query := r.rebind(`
		INSERT INTO order_submissions (idempotency_key, draft_id, user_id, order_id, order_number, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		s.IdempotencyKey, s.DraftID, s.UserID, s.OrderID, s.OrderNumber, s.CreatedAt)
	if isUniqueViolation(err) {
		return ErrDuplicateSubmission
	}
	if err != nil {
		return fmt.Errorf("failed to insert submission: %w", err)
	}
	return nil
}

func (r *Repository) GetSubmission(ctx context.Context, idempotencyKey string) (*Submission, error) {
	query := r.rebind(`
		SELECT idempotency_key, draft_id, user_id, order_id, order_number, created_at
		FROM order_submissions
		WHERE idempotency_key = ?
	`)
	s := &Submission{}
	err := r.db.QueryRowContext(ctx, query, idempotencyKey).Scan(
		&s.IdempotencyKey,
		&s.DraftID,
		&s.UserID,
		&s.OrderID,
		&s.OrderNumber,
		&s.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrSubmissionNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query submission: %w", err)
	}
	return s, nil
}

func (r *Repository) RecordVerification(ctx context.Context, v Verification) error {
	if v.ID == "" {
		v.ID = uuid.NewString()
	}
	if v.AttemptedAt.IsZero() {
		v.AttemptedAt = time.Now().UTC()
	}
	query := r.rebind(`
		INSERT INTO payment_verifications (id, reference, order_id, outcome, detail, attempted_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if _, err := r.db.ExecContext(ctx, query,
		v.ID, v.Reference, v.OrderID, string(v.Outcome), v.Detail, v.AttemptedAt); err != nil {
		return fmt.Errorf("failed to insert verification: %w", err)
	}
	return nil
}

func (r *Repository) ListVerifications(ctx context.Context, reference string) ([]Verification, error) {
	query := r.rebind(`
		SELECT id, reference, order_id, outcome, detail, attempted_at
		FROM payment_verifications
		WHERE reference = ?
		ORDER BY attempted_at
	`)
	rows, err := r.db.QueryContext(ctx, query, reference)
	if err != nil {
		return nil, fmt.Errorf("failed to query verifications: %w", err)
	}
	defer rows.Close()

	var out []Verification
	for rows.Next() {
		var v Verification
		var outcome string
		if err := rows.Scan(&v.ID, &v.Reference, &v.OrderID, &outcome, &v.Detail, &v.AttemptedAt); err != nil {
			return nil, fmt.Errorf("failed to scan verification: %w", err)
		}
		v.Outcome = Outcome(outcome)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate verifications: %w", err)
	}
	return out, nil
}

// rebind turns ? placeholders into $n for postgres.
func (r *Repository) rebind(query string) string {
	if r.driver != DriverPostgres {
		return query
	}
	var b strings.Builder
	n := 0
	for _, c := range query {
		if c == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(c)
	}
	return b.String()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) {
		code := liteErr.Code()
		return code == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY || code == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	}
	return false
}
