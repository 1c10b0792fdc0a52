// Package vectorstore defines the vector-collection abstraction the
// verification engine is built on: typed collection schemas, index
// requirements, and an idempotent bootstrapper that brings a named
// collection into a queryable state exactly once per process.
//
// The Store interface mirrors the primitives of an external vector database
// (has/create collection, create/drop index, load, insert, flush, search,
// query). Backends are pluggable: PostgreSQL with pgvector for production
// and an in-memory index for tests and embedded deployments.
package vectorstore

import "context"

// Well-known field names shared by all collections.
const (
	FieldID        = "id"
	FieldEmbedding = "embedding"
	FieldUserID    = "user_id"
	FieldCreatedAt = "created_at"
	FieldSource    = "source"
)

// ScalarType identifies the type of a scalar collection field.
type ScalarType int

const (
	ScalarInt64 ScalarType = iota
	ScalarVarChar
)

// ScalarField describes one scalar field of a collection schema.
type ScalarField struct {
	Name   string
	Type   ScalarType
	MaxLen int // VarChar only
}

// Schema describes a vector collection: an auto-assigned int64 primary key,
// a fixed-dimension float vector field, and optional scalar fields.
type Schema struct {
	Name    string
	Dim     int
	Scalars []ScalarField
}

// CurrentSchema returns the schema of the current-embeddings collection.
func CurrentSchema(name string, dim int) Schema {
	return Schema{Name: name, Dim: dim}
}

// HistorySchema returns the schema of the per-user embedding history
// collection: the vector plus user id, creation timestamp (ms since epoch)
// and a bounded provenance tag.
func HistorySchema(name string, dim, maxSourceLen int) Schema {
	return Schema{
		Name: name,
		Dim:  dim,
		Scalars: []ScalarField{
			{Name: FieldUserID, Type: ScalarInt64},
			{Name: FieldCreatedAt, Type: ScalarInt64},
			{Name: FieldSource, Type: ScalarVarChar, MaxLen: maxSourceLen},
		},
	}
}

// Metric identifies the distance metric of a vector index.
type Metric string

const (
	MetricInnerProduct Metric = "IP"
	MetricCosine       Metric = "COSINE"
	MetricL2           Metric = "L2"
)

// Family identifies the index family of a vector index.
type Family string

const (
	FamilyIVFFlat Family = "IVF_FLAT"
	FamilyHNSW    Family = "HNSW"
)

// IndexSpec describes the index to maintain on a vector field.
type IndexSpec struct {
	Metric Metric
	Family Family
	Lists  int // IVF partition count
}

// IndexInfo describes an index as reported by the store.
type IndexInfo struct {
	Name   string
	Field  string
	Metric Metric
	Family Family
}

// Row is one record to insert: the vector plus scalar field values keyed by
// field name. The primary key is always store-assigned.
type Row struct {
	Vector  []float32
	Scalars map[string]any
}

// Hit is one search or query result. Score is only meaningful for search
// results (higher means more similar under the inner-product metric).
type Hit struct {
	ID      int64
	Score   float64
	Scalars map[string]any
}

// Filter restricts a search or query to rows whose field equals the given
// value. This is an exact equality filter, never a range or fuzzy match.
type Filter struct {
	Field string
	Value int64
}

// Eq builds an equality filter.
func Eq(field string, value int64) *Filter {
	return &Filter{Field: field, Value: value}
}

// Store is the set of primitives consumed from the vector database backend.
// Implementations must be safe for concurrent use.
type Store interface {
	// Connect establishes connectivity. Reconnecting is always safe and
	// never an error if already connected.
	Connect(ctx context.Context) error

	HasCollection(ctx context.Context, name string) (bool, error)
	CreateCollection(ctx context.Context, schema Schema) error

	// DescribeIndex returns the vector index on the given field, or nil if
	// no such index exists.
	DescribeIndex(ctx context.Context, collection, field string) (*IndexInfo, error)
	CreateIndex(ctx context.Context, collection, field string, spec IndexSpec) error
	DropIndex(ctx context.Context, collection, field string) error

	// Load brings the collection into a queryable state.
	Load(ctx context.Context, name string) error

	Insert(ctx context.Context, schema Schema, rows []Row) error
	// Flush makes previously inserted rows visible to subsequent searches.
	Flush(ctx context.Context, name string) error

	// Search returns up to topK rows ranked by descending inner-product
	// score against the query vector, optionally restricted by an equality
	// filter. Fewer rows than topK is a valid, non-error outcome.
	Search(ctx context.Context, schema Schema, vector []float32, filter *Filter, topK int) ([]Hit, error)

	// Query returns rows matching the filter (all rows when filter is nil)
	// with the requested scalar output fields populated.
	Query(ctx context.Context, schema Schema, filter *Filter, outputFields []string) ([]Hit, error)

	// Count returns the number of rows in the collection.
	Count(ctx context.Context, name string) (int64, error)

	Close() error
}
