// Package memory provides an in-memory vectorstore.Store backed by a
// coder/hnsw graph. It serves unit tests (with error injection) and the
// embedded STORE_BACKEND=memory deployment mode, where no external vector
// database is available.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/coder/hnsw"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

// maxNeighbors is the HNSW M parameter for in-memory graphs.
const maxNeighbors = 16

type storedRow struct {
	id      int64
	vector  []float32
	scalars map[string]any
}

type collection struct {
	schema  vectorstore.Schema
	index   *vectorstore.IndexInfo
	nextID  int64
	rows    []storedRow // flushed, searchable
	pending []storedRow // inserted, not yet visible
	graph   *hnsw.Graph[int64]
	loaded  bool
}

// Store is an in-memory implementation of vectorstore.Store.
// Safe for concurrent use.
type Store struct {
	mu          sync.RWMutex
	collections map[string]*collection
	connected   bool

	// Error injection for tests. When set, the corresponding operation
	// fails with that error.
	ConnectErr error
	InsertErr  error
	FlushErr   error
	SearchErr  error
	QueryErr   error

	counters Counters
}

// Counters records how many times each mutating primitive ran.
type Counters struct {
	CreateCollection int
	CreateIndex      int
	DropIndex        int
}

// New creates an empty in-memory store.
func New() *Store {
	return &Store{collections: make(map[string]*collection)}
}

// Counters returns a snapshot of the operation counters.
func (s *Store) Counters() Counters {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.counters
}

// Connect marks the store connected. Reconnecting is a no-op.
func (s *Store) Connect(ctx context.Context) error {
	if s.ConnectErr != nil {
		return s.ConnectErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = true
	return nil
}

func (s *Store) HasCollection(ctx context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.collections[name]
	return ok, nil
}

func (s *Store) CreateCollection(ctx context.Context, schema vectorstore.Schema) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.collections[schema.Name]; ok {
		return fmt.Errorf("collection %q already exists", schema.Name)
	}
	s.collections[schema.Name] = &collection{schema: schema, nextID: 1}
	s.counters.CreateCollection++
	return nil
}

func (s *Store) DescribeIndex(ctx context.Context, name, field string) (*vectorstore.IndexInfo, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.get(name)
	if err != nil {
		return nil, err
	}
	if coll.index == nil || coll.index.Field != field {
		return nil, nil
	}
	info := *coll.index
	return &info, nil
}

func (s *Store) CreateIndex(ctx context.Context, name, field string, spec vectorstore.IndexSpec) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.get(name)
	if err != nil {
		return err
	}
	if coll.index != nil && coll.index.Field == field {
		return fmt.Errorf("index on %q.%s already exists", name, field)
	}
	coll.index = &vectorstore.IndexInfo{
		Name:   name + "_" + field + "_idx",
		Field:  field,
		Metric: spec.Metric,
		Family: spec.Family,
	}
	if spec.Family == vectorstore.FamilyHNSW || spec.Family == vectorstore.FamilyIVFFlat {
		coll.rebuildGraph()
	}
	s.counters.CreateIndex++
	return nil
}

func (s *Store) DropIndex(ctx context.Context, name, field string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.get(name)
	if err != nil {
		return err
	}
	if coll.index != nil && coll.index.Field == field {
		coll.index = nil
		coll.graph = nil
	}
	s.counters.DropIndex++
	return nil
}

func (s *Store) Load(ctx context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.get(name)
	if err != nil {
		return err
	}
	coll.loaded = true
	return nil
}

func (s *Store) Insert(ctx context.Context, schema vectorstore.Schema, rows []vectorstore.Row) error {
	if s.InsertErr != nil {
		return s.InsertErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.get(schema.Name)
	if err != nil {
		return err
	}
	for _, row := range rows {
		scalars := make(map[string]any, len(row.Scalars))
		for k, v := range row.Scalars {
			scalars[k] = v
		}
		vec := make([]float32, len(row.Vector))
		copy(vec, row.Vector)

		coll.pending = append(coll.pending, storedRow{
			id:      coll.nextID,
			vector:  vec,
			scalars: scalars,
		})
		coll.nextID++
	}
	return nil
}

func (s *Store) Flush(ctx context.Context, name string) error {
	if s.FlushErr != nil {
		return s.FlushErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	coll, err := s.get(name)
	if err != nil {
		return err
	}
	for i := range coll.pending {
		row := coll.pending[i]
		coll.rows = append(coll.rows, row)
		if coll.graph != nil {
			coll.graph.Add(hnsw.MakeNode(row.id, row.vector))
		}
	}
	coll.pending = nil
	return nil
}

func (s *Store) Search(ctx context.Context, schema vectorstore.Schema, vector []float32, filter *vectorstore.Filter, topK int) ([]vectorstore.Hit, error) {
	if s.SearchErr != nil {
		return nil, s.SearchErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.get(schema.Name)
	if err != nil {
		return nil, err
	}
	if topK <= 0 {
		return nil, nil
	}

	// The graph cannot evaluate scalar filters, so filtered searches scan
	// the flushed rows directly.
	if filter == nil && coll.graph != nil {
		return coll.searchGraph(vector, topK), nil
	}
	return coll.searchScan(vector, filter, topK), nil
}

func (s *Store) Query(ctx context.Context, schema vectorstore.Schema, filter *vectorstore.Filter, outputFields []string) ([]vectorstore.Hit, error) {
	if s.QueryErr != nil {
		return nil, s.QueryErr
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.get(schema.Name)
	if err != nil {
		return nil, err
	}

	var hits []vectorstore.Hit
	for _, row := range coll.rows {
		if !row.matches(filter) {
			continue
		}
		hits = append(hits, vectorstore.Hit{ID: row.id, Scalars: row.project(outputFields)})
	}
	return hits, nil
}

func (s *Store) Count(ctx context.Context, name string) (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	coll, err := s.get(name)
	if err != nil {
		return 0, err
	}
	return int64(len(coll.rows)), nil
}

func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.connected = false
	return nil
}

// get looks up a collection. Callers must hold s.mu.
func (s *Store) get(name string) (*collection, error) {
	coll, ok := s.collections[name]
	if !ok {
		return nil, fmt.Errorf("collection %q does not exist", name)
	}
	return coll, nil
}

func (r *storedRow) matches(filter *vectorstore.Filter) bool {
	if filter == nil {
		return true
	}
	v, ok := r.scalars[filter.Field]
	if !ok {
		return false
	}
	n, ok := v.(int64)
	return ok && n == filter.Value
}

func (r *storedRow) project(fields []string) map[string]any {
	if fields == nil {
		fields = make([]string, 0, len(r.scalars))
		for k := range r.scalars {
			fields = append(fields, k)
		}
	}
	out := make(map[string]any, len(fields))
	for _, f := range fields {
		if v, ok := r.scalars[f]; ok {
			out[f] = v
		}
	}
	return out
}

// rebuildGraph rebuilds the HNSW graph from the flushed rows.
func (c *collection) rebuildGraph() {
	g := hnsw.NewGraph[int64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors) // Standard HNSW formula
	g.Distance = hnsw.CosineDistance

	for _, row := range c.rows {
		g.Add(hnsw.MakeNode(row.id, row.vector))
	}
	c.graph = g
}

func (c *collection) searchGraph(vector []float32, topK int) []vectorstore.Hit {
	byID := make(map[int64]*storedRow, len(c.rows))
	for i := range c.rows {
		byID[c.rows[i].id] = &c.rows[i]
	}

	neighbors := c.graph.Search(vector, topK)
	hits := make([]vectorstore.Hit, 0, len(neighbors))
	for _, n := range neighbors {
		row, ok := byID[n.Key]
		if !ok {
			continue
		}
		hits = append(hits, vectorstore.Hit{
			ID:      row.id,
			Score:   dot(vector, row.vector),
			Scalars: row.project(nil),
		})
	}
	sortHits(hits)
	return hits
}

func (c *collection) searchScan(vector []float32, filter *vectorstore.Filter, topK int) []vectorstore.Hit {
	var hits []vectorstore.Hit
	for i := range c.rows {
		row := &c.rows[i]
		if !row.matches(filter) {
			continue
		}
		hits = append(hits, vectorstore.Hit{
			ID:      row.id,
			Score:   dot(vector, row.vector),
			Scalars: row.project(nil),
		})
	}
	sortHits(hits)
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits
}

func sortHits(hits []vectorstore.Hit) {
	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
}

// dot computes the inner product, which equals cosine similarity on unit
// vectors.
func dot(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var sum float64
	for i := range a {
		sum += float64(a[i]) * float64(b[i])
	}
	return sum
}
