package pgvector

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

// Operator class and access method names used by pgvector.
var (
	metricToOpclass = map[vectorstore.Metric]string{
		vectorstore.MetricInnerProduct: "vector_ip_ops",
		vectorstore.MetricCosine:       "vector_cosine_ops",
		vectorstore.MetricL2:           "vector_l2_ops",
	}
	opclassToMetric = map[string]vectorstore.Metric{
		"vector_ip_ops":     vectorstore.MetricInnerProduct,
		"vector_cosine_ops": vectorstore.MetricCosine,
		"vector_l2_ops":     vectorstore.MetricL2,
	}
	familyToAm = map[vectorstore.Family]string{
		vectorstore.FamilyIVFFlat: "ivfflat",
		vectorstore.FamilyHNSW:    "hnsw",
	}
	amToFamily = map[string]vectorstore.Family{
		"ivfflat": vectorstore.FamilyIVFFlat,
		"hnsw":    vectorstore.FamilyHNSW,
	}
)

// DescribeIndex reports the vector index on the given field by inspecting
// the system catalogs, or nil when the field carries none.
func (s *Store) DescribeIndex(ctx context.Context, collection, field string) (*vectorstore.IndexInfo, error) {
	db, err := s.conn()
	if err != nil {
		return nil, err
	}
	if _, err := ident(collection); err != nil {
		return nil, err
	}
	if _, err := ident(field); err != nil {
		return nil, err
	}

	var name, amname, opcname string
	err = db.QueryRowContext(ctx, `
		SELECT idx.relname, am.amname, opc.opcname
		FROM pg_index i
		JOIN pg_class idx ON idx.oid = i.indexrelid
		JOIN pg_class tbl ON tbl.oid = i.indrelid
		JOIN pg_am am ON am.oid = idx.relam
		JOIN pg_opclass opc ON opc.oid = ANY (i.indclass)
		JOIN pg_attribute a ON a.attrelid = tbl.oid AND a.attnum = ANY (i.indkey)
		WHERE tbl.relname = $1
		  AND a.attname = $2
		  AND am.amname IN ('ivfflat', 'hnsw')
		ORDER BY idx.relname
		LIMIT 1
	`, collection, field).Scan(&name, &amname, &opcname)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("describe index: %w", err)
	}

	metric, ok := opclassToMetric[opcname]
	if !ok {
		metric = vectorstore.Metric(opcname)
	}
	family, ok := amToFamily[amname]
	if !ok {
		family = vectorstore.Family(amname)
	}

	return &vectorstore.IndexInfo{Name: name, Field: field, Metric: metric, Family: family}, nil
}

// CreateIndex creates the vector index described by spec on the field.
func (s *Store) CreateIndex(ctx context.Context, collection, field string, spec vectorstore.IndexSpec) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	table, err := ident(collection)
	if err != nil {
		return err
	}
	col, err := ident(field)
	if err != nil {
		return err
	}

	opclass, ok := metricToOpclass[spec.Metric]
	if !ok {
		return fmt.Errorf("unsupported index metric %q", spec.Metric)
	}
	am, ok := familyToAm[spec.Family]
	if !ok {
		return fmt.Errorf("unsupported index family %q", spec.Family)
	}

	stmt := fmt.Sprintf(
		"CREATE INDEX IF NOT EXISTS %s_%s_idx ON %s USING %s (%s %s)",
		table, col, table, am, col, opclass,
	)
	if am == "ivfflat" && spec.Lists > 0 {
		stmt += fmt.Sprintf(" WITH (lists = %d)", spec.Lists)
	}
	if _, err := db.ExecContext(ctx, stmt); err != nil {
		return fmt.Errorf("create vector index: %w", err)
	}
	return nil
}

// DropIndex drops every vector index on the field, whatever it was named.
func (s *Store) DropIndex(ctx context.Context, collection, field string) error {
	db, err := s.conn()
	if err != nil {
		return err
	}
	if _, err := ident(collection); err != nil {
		return err
	}
	if _, err := ident(field); err != nil {
		return err
	}

	rows, err := db.QueryContext(ctx, `
		SELECT idx.relname
		FROM pg_index i
		JOIN pg_class idx ON idx.oid = i.indexrelid
		JOIN pg_class tbl ON tbl.oid = i.indrelid
		JOIN pg_am am ON am.oid = idx.relam
		JOIN pg_attribute a ON a.attrelid = tbl.oid AND a.attnum = ANY (i.indkey)
		WHERE tbl.relname = $1
		  AND a.attname = $2
		  AND am.amname IN ('ivfflat', 'hnsw')
	`, collection, field)
	if err != nil {
		return fmt.Errorf("list vector indexes: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return fmt.Errorf("scan index name: %w", err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("iterate indexes: %w", err)
	}

	for _, name := range names {
		idx, err := ident(name)
		if err != nil {
			return err
		}
		if _, err := db.ExecContext(ctx, fmt.Sprintf("DROP INDEX IF EXISTS %s", idx)); err != nil {
			return fmt.Errorf("drop index %s: %w", name, err)
		}
	}
	return nil
}
