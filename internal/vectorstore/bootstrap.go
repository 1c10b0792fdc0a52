package vectorstore

import (
	"context"
	"fmt"
	"sync"
)

// Collection is a bootstrapped, queryable handle to a named collection.
// A Collection is only ever produced by Bootstrapper.Ensure, so holding one
// guarantees the backing collection exists, carries a correctly-typed index
// and has been loaded.
type Collection struct {
	schema Schema
	store  Store
}

// Schema returns the collection schema.
func (c *Collection) Schema() Schema { return c.schema }

// Name returns the collection name.
func (c *Collection) Name() string { return c.schema.Name }

// Insert adds rows to the collection.
func (c *Collection) Insert(ctx context.Context, rows []Row) error {
	return c.store.Insert(ctx, c.schema, rows)
}

// Flush makes previously inserted rows visible to subsequent searches.
func (c *Collection) Flush(ctx context.Context) error {
	return c.store.Flush(ctx, c.schema.Name)
}

// Search ranks up to topK rows by descending similarity to the query vector.
func (c *Collection) Search(ctx context.Context, vector []float32, filter *Filter, topK int) ([]Hit, error) {
	return c.store.Search(ctx, c.schema, vector, filter, topK)
}

// Query returns rows matching the filter with the given output fields.
func (c *Collection) Query(ctx context.Context, filter *Filter, outputFields []string) ([]Hit, error) {
	return c.store.Query(ctx, c.schema, filter, outputFields)
}

// Count returns the number of rows in the collection.
func (c *Collection) Count(ctx context.Context) (int64, error) {
	return c.store.Count(ctx, c.schema.Name)
}

// Bootstrapper idempotently ensures collections exist with the required
// schema and index, and caches the resulting handles for the process
// lifetime. It is constructed once at startup and injected where needed;
// the cache exists purely to avoid redundant bootstrap round-trips.
type Bootstrapper struct {
	store Store
	index IndexSpec

	mu    sync.Mutex
	cache map[string]*Collection
}

// NewBootstrapper creates a Bootstrapper over the given store, requiring
// the default inner-product/IVF-flat index on every collection it ensures.
func NewBootstrapper(store Store) *Bootstrapper {
	return &Bootstrapper{
		store: store,
		index: DefaultIndexSpec(),
		cache: make(map[string]*Collection),
	}
}

// Ensure returns a queryable handle for the collection described by schema,
// creating the collection and its index as needed. It is idempotent and
// safe to call concurrently and repeatedly: racing first-time callers
// bootstrap under a mutex, so exactly one collection and one index are
// created and every caller receives a usable handle.
//
// Any failure surfaces wrapped in ErrUnavailable and leaves the cache
// empty for that name, so a later call may retry.
func (b *Bootstrapper) Ensure(ctx context.Context, schema Schema) (*Collection, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if coll, ok := b.cache[schema.Name]; ok {
		return coll, nil
	}

	if err := b.bootstrap(ctx, schema); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	coll := &Collection{schema: schema, store: b.store}
	b.cache[schema.Name] = coll
	return coll, nil
}

// bootstrap performs the store round-trips for a cache miss.
func (b *Bootstrapper) bootstrap(ctx context.Context, schema Schema) error {
	if err := b.store.Connect(ctx); err != nil {
		return fmt.Errorf("connect: %w", err)
	}

	exists, err := b.store.HasCollection(ctx, schema.Name)
	if err != nil {
		return fmt.Errorf("check collection %q: %w", schema.Name, err)
	}

	if !exists {
		if err := b.store.CreateCollection(ctx, schema); err != nil {
			return fmt.Errorf("create collection %q: %w", schema.Name, err)
		}
		if err := b.store.CreateIndex(ctx, schema.Name, FieldEmbedding, b.index); err != nil {
			return fmt.Errorf("create index on %q: %w", schema.Name, err)
		}
	} else if err := b.ensureIndex(ctx, schema.Name); err != nil {
		return err
	}

	if err := b.store.Load(ctx, schema.Name); err != nil {
		return fmt.Errorf("load collection %q: %w", schema.Name, err)
	}
	return nil
}

// ensureIndex reconciles the embedding index of an existing collection
// with the required spec.
func (b *Bootstrapper) ensureIndex(ctx context.Context, name string) error {
	info, err := b.store.DescribeIndex(ctx, name, FieldEmbedding)
	if err != nil {
		return fmt.Errorf("describe index on %q: %w", name, err)
	}

	switch PlanIndex(info, b.index) {
	case PlanKeep:
		return nil
	case PlanRebuild:
		if err := b.store.DropIndex(ctx, name, FieldEmbedding); err != nil {
			return fmt.Errorf("drop index on %q: %w", name, err)
		}
		fallthrough
	case PlanCreate:
		if err := b.store.CreateIndex(ctx, name, FieldEmbedding, b.index); err != nil {
			return fmt.Errorf("create index on %q: %w", name, err)
		}
	}
	return nil
}
