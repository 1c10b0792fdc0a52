// Package pgvector implements vectorstore.Store on PostgreSQL with the
// pgvector extension. Collections are tables with a BIGSERIAL primary key
// and a fixed-dimension vector column; the inner-product IVF-flat
// requirement maps onto an ivfflat index with the vector_ip_ops operator
// class, and searches use the <#> operator inside a transaction that sets
// the probe count.
package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"sync"
	"time"

	_ "github.com/lib/pq"
	pgv "github.com/pgvector/pgvector-go"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

// identPattern restricts collection and field names, which are interpolated
// into DDL and cannot be bound as parameters.
var identPattern = regexp.MustCompile(`^[a-z_][a-z0-9_]*$`)

// Store is a PostgreSQL + pgvector implementation of vectorstore.Store.
type Store struct {
	cfg *config.StoreConfig

	mu sync.Mutex
	db *sql.DB
}

var _ vectorstore.Store = (*Store)(nil)

// New creates a Store for the given configuration. No connection is made
// until Connect.
func New(cfg *config.StoreConfig) *Store {
	return &Store{cfg: cfg}
}

// Connect opens the connection pool and verifies connectivity. Calling it
// again on a connected store only re-pings, which is always safe.
func (s *Store) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.db != nil {
		if err := s.db.PingContext(ctx); err != nil {
			return fmt.Errorf("ping database: %w", err)
		}
		return nil
	}

	if s.cfg.DatabaseURL == "" {
		return errors.New("database URL is required")
	}

	db, err := sql.Open("postgres", s.cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(s.cfg.MaxOpenConns)
	db.SetMaxIdleConns(s.cfg.MaxIdleConns)
	db.SetConnMaxLifetime(time.Hour)
	db.SetConnMaxIdleTime(10 * time.Minute)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("ping database: %w", err)
	}

	s.db = db
	return nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil
	}
	err := s.db.Close()
	s.db = nil
	if err != nil {
		return fmt.Errorf("closing database connection: %w", err)
	}
	return nil
}

func (s *Store) conn() (*sql.DB, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.db == nil {
		return nil, errors.New("store not connected")
	}
	return s.db, nil
}

func ident(name string) (string, error) {
	if !identPattern.MatchString(name) {
		return "", fmt.Errorf("invalid identifier %q", name)
	}
	return name, nil
}

func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	db, err := s.conn()
	if err != nil {
		return false, err
	}
	var exists bool
	err = db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)
	`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check collection exists: %w", err)
	}
	return exists, nil
}

func (s *Store) CreateCollection(ctx context.Context, schema vectorstore.Schema) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	table, err := ident(schema.Name)
	if err != nil {
		return err
	}

	if _, err := db.ExecContext(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
		return fmt.Errorf("create vector extension: %w", err)
	}

	var cols []string
	cols = append(cols, "id BIGSERIAL PRIMARY KEY")
	cols = append(cols, fmt.Sprintf("embedding vector(%d) NOT NULL", schema.Dim))
	for _, f := range schema.Scalars {
		col, err := ident(f.Name)
		if err != nil {
			return err
		}
		switch f.Type {
		case vectorstore.ScalarInt64:
			cols = append(cols, col+" BIGINT NOT NULL")
		case vectorstore.ScalarVarChar:
			cols = append(cols, fmt.Sprintf("%s VARCHAR(%d) NOT NULL", col, f.MaxLen))
		default:
			return fmt.Errorf("unsupported scalar type for field %q", f.Name)
		}
	}

	ddl := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)", table, strings.Join(cols, ", "))
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create collection table: %w", err)
	}

	// Scalar filters always hit user_id; index it when present.
	for _, f := range schema.Scalars {
		if f.Name == vectorstore.FieldUserID {
			stmt := fmt.Sprintf("CREATE INDEX IF NOT EXISTS %s_user_id_idx ON %s (user_id)", table, table)
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("create user_id index: %w", err)
			}
		}
	}
	return nil
}

// Load verifies the collection is present and readable. PostgreSQL tables
// are queryable as soon as they exist, so this is a cheap probe rather than
// a segment load.
func (s *Store) Load(ctx context.Context, name string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	table, err := ident(name)
	if err != nil {
		return err
	}
	if _, err := db.ExecContext(ctx, fmt.Sprintf("SELECT 1 FROM %s LIMIT 1", table)); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, schema vectorstore.Schema, rows []vectorstore.Row) error {
	if len(rows) == 0 {
		return nil
	}
	db, err := s.conn()
	if err != nil {
		return err
	}
	table, err := ident(schema.Name)
	if err != nil {
		return err
	}

	cols := []string{"embedding"}
	for _, f := range schema.Scalars {
		cols = append(cols, f.Name)
	}
	placeholders := make([]string, len(cols))
	for i := range cols {
		placeholders[i] = fmt.Sprintf("$%d", i+1)
	}
	stmt := fmt.Sprintf(
		"INSERT INTO %s (%s) VALUES (%s)",
		table, strings.Join(cols, ", "), strings.Join(placeholders, ", "),
	)

	for _, row := range rows {
		args := make([]any, 0, len(cols))
		args = append(args, pgv.NewVector(row.Vector))
		for _, f := range schema.Scalars {
			v, ok := row.Scalars[f.Name]
			if !ok {
				return fmt.Errorf("row missing scalar field %q", f.Name)
			}
			args = append(args, v)
		}
		if _, err := db.ExecContext(ctx, stmt, args...); err != nil {
			return fmt.Errorf("insert row: %w", err)
		}
	}
	return nil
}

// Flush is a no-op: committed Postgres rows are immediately visible to
// subsequent searches.
func (s *Store) Flush(ctx context.Context, name string) error {
	return nil
}

func (s *Store) Search(ctx context.Context, schema vectorstore.Schema, vector []float32, filter *vectorstore.Filter, topK int) ([]vectorstore.Hit, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	table, err := ident(schema.Name)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	selectCols := []string{"id"}
	for _, f := range schema.Scalars {
		selectCols = append(selectCols, f.Name)
	}
	// <#> is the negative inner product; negate it back into a similarity.
	selectCols = append(selectCols, "(embedding <#> $1) * -1 AS score")

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectCols, ", "), table)
	args := []any{pgv.NewVector(vector)}
	if filter != nil {
		col, err := ident(filter.Field)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" WHERE %s = $2", col)
		args = append(args, filter.Value)
	}
	query += fmt.Sprintf(" ORDER BY embedding <#> $1 LIMIT %d", topK)

	// Raise the probe count inside the transaction for better recall.
	tx, err := db.BeginTx(ctx, &sql.TxOptions{ReadOnly: true})
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, fmt.Sprintf("SET LOCAL ivfflat.probes = %d", constants.SearchProbes)); err != nil {
		return nil, fmt.Errorf("set search probes: %w", err)
	}

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("search collection: %w", err)
	}
	defer rows.Close()

	hits, err := scanHits(rows, schema.Scalars, true)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit search transaction: %w", err)
	}
	return hits, nil
}

func (s *Store) Query(ctx context.Context, schema vectorstore.Schema, filter *vectorstore.Filter, outputFields []string) ([]vectorstore.Hit, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	table, err := ident(schema.Name)
	if err != nil {
		return nil, err
	}

	fields := schema.Scalars
	if outputFields != nil {
		fields = selectFields(schema.Scalars, outputFields)
	}

	selectCols := []string{"id"}
	for _, f := range fields {
		selectCols = append(selectCols, f.Name)
	}

	query := fmt.Sprintf("SELECT %s FROM %s", strings.Join(selectCols, ", "), table)
	var args []any
	if filter != nil {
		col, err := ident(filter.Field)
		if err != nil {
			return nil, err
		}
		query += fmt.Sprintf(" WHERE %s = $1", col)
		args = append(args, filter.Value)
	}
	query += " ORDER BY id"

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query collection: %w", err)
	}
	defer rows.Close()

	return scanHits(rows, fields, false)
}

func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	db, err := s.conn()
	if err != nil {
		return 0, err
	}
	table, err := ident(name)
	if err != nil {
		return 0, err
	}
	var count int64
	if err := db.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", table)).Scan(&count); err != nil {
		return 0, fmt.Errorf("count rows: %w", err)
	}
	return count, nil
}

// selectFields keeps the schema fields whose names appear in wanted,
// preserving schema order.
func selectFields(scalars []vectorstore.ScalarField, wanted []string) []vectorstore.ScalarField {
	set := make(map[string]struct{}, len(wanted))
	for _, w := range wanted {
		set[w] = struct{}{}
	}
	var out []vectorstore.ScalarField
	for _, f := range scalars {
		if _, ok := set[f.Name]; ok {
			out = append(out, f)
		}
	}
	return out
}

// scanHits scans result rows shaped as (id, scalars..., [score]).
func scanHits(rows *sql.Rows, scalars []vectorstore.ScalarField, withScore bool) ([]vectorstore.Hit, error) {
	var hits []vectorstore.Hit
	for rows.Next() {
		var id int64
		dests := []any{&id}

		ints := make([]sql.NullInt64, len(scalars))
		strs := make([]sql.NullString, len(scalars))
		for i, f := range scalars {
			switch f.Type {
			case vectorstore.ScalarInt64:
				dests = append(dests, &ints[i])
			case vectorstore.ScalarVarChar:
				dests = append(dests, &strs[i])
			}
		}

		var score float64
		if withScore {
			dests = append(dests, &score)
		}

		if err := rows.Scan(dests...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}

		scalarValues := make(map[string]any, len(scalars))
		for i, f := range scalars {
			switch f.Type {
			case vectorstore.ScalarInt64:
				scalarValues[f.Name] = ints[i].Int64
			case vectorstore.ScalarVarChar:
				scalarValues[f.Name] = strs[i].String
			}
		}

		hits = append(hits, vectorstore.Hit{ID: id, Score: score, Scalars: scalarValues})
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate rows: %w", err)
	}
	return hits, nil
}
