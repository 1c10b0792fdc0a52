//go:build integration

package pgvector

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	ctx := context.Background()

	req := testcontainers.ContainerRequest{
		Image:        "pgvector/pgvector:pg16",
		ExposedPorts: []string{"5432/tcp"},
		Env: map[string]string{
			"POSTGRES_USER":     "test",
			"POSTGRES_PASSWORD": "test",
			"POSTGRES_DB":       "testdb",
		},
		WaitingFor: wait.ForLog("database system is ready to accept connections").
			WithOccurrence(2).
			WithStartupTimeout(60 * time.Second),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("Docker not available or container failed to start, skipping integration test: %v", err)
		return nil, func() {}
	}
	if container == nil {
		t.Skip("Docker not available, skipping integration test")
		return nil, func() {}
	}

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("Failed to get container host: %v", err)
	}
	port, err := container.MappedPort(ctx, "5432")
	if err != nil {
		t.Fatalf("Failed to get container port: %v", err)
	}

	store := New(&config.StoreConfig{
		DatabaseURL:  fmt.Sprintf("postgres://test:test@%s:%s/testdb?sslmode=disable", host, port.Port()),
		MaxOpenConns: 5,
		MaxIdleConns: 2,
	})
	if err := store.Connect(ctx); err != nil {
		container.Terminate(ctx)
		t.Fatalf("Failed to connect store: %v", err)
	}

	cleanup := func() {
		store.Close()
		container.Terminate(ctx)
	}
	return store, cleanup
}

func TestBootstrapAndRoundTrip(t *testing.T) {
	store, cleanup := setupTestStore(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	b := vectorstore.NewBootstrapper(store)

	schema := vectorstore.HistorySchema("face_embeddings_history", 4, constants.MaxSourceLen)
	coll, err := b.Ensure(ctx, schema)
	if err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	info, err := store.DescribeIndex(ctx, schema.Name, vectorstore.FieldEmbedding)
	if err != nil {
		t.Fatalf("DescribeIndex failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected an index after bootstrap")
	}
	if info.Metric != vectorstore.MetricInnerProduct || info.Family != vectorstore.FamilyIVFFlat {
		t.Errorf("wrong index: metric=%s family=%s", info.Metric, info.Family)
	}

	// Insert a normalized vector for one user, search it back.
	row := vectorstore.Row{
		Vector: []float32{1, 0, 0, 0},
		Scalars: map[string]any{
			vectorstore.FieldUserID:    int64(42),
			vectorstore.FieldCreatedAt: int64(1700000000000),
			vectorstore.FieldSource:    "signup",
		},
	}
	if err := coll.Insert(ctx, []vectorstore.Row{row}); err != nil {
		t.Fatalf("Insert failed: %v", err)
	}
	if err := coll.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	hits, err := coll.Search(ctx, []float32{1, 0, 0, 0}, vectorstore.Eq(vectorstore.FieldUserID, 42), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 1 {
		t.Fatalf("expected 1 hit, got %d", len(hits))
	}
	if hits[0].Score < 0.999 || hits[0].Score > 1.001 {
		t.Errorf("expected score ~1.0, got %f", hits[0].Score)
	}
	if hits[0].Scalars[vectorstore.FieldSource] != "signup" {
		t.Errorf("expected source=signup, got %v", hits[0].Scalars[vectorstore.FieldSource])
	}

	// A different user must see no rows.
	hits, err = coll.Search(ctx, []float32{1, 0, 0, 0}, vectorstore.Eq(vectorstore.FieldUserID, 999), 3)
	if err != nil {
		t.Fatalf("Search failed: %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected no hits for unknown user, got %d", len(hits))
	}
}

func TestReindexMismatchedMetric(t *testing.T) {
	store, cleanup := setupTestStore(t)
	if store == nil {
		return
	}
	defer cleanup()

	ctx := context.Background()
	schema := vectorstore.CurrentSchema("face_embeddings", 4)

	if err := store.CreateCollection(ctx, schema); err != nil {
		t.Fatalf("CreateCollection failed: %v", err)
	}
	// Wrong metric on purpose.
	if err := store.CreateIndex(ctx, schema.Name, vectorstore.FieldEmbedding, vectorstore.IndexSpec{
		Metric: vectorstore.MetricCosine,
		Family: vectorstore.FamilyIVFFlat,
		Lists:  constants.IndexLists,
	}); err != nil {
		t.Fatalf("CreateIndex failed: %v", err)
	}

	b := vectorstore.NewBootstrapper(store)
	if _, err := b.Ensure(ctx, schema); err != nil {
		t.Fatalf("Ensure failed: %v", err)
	}

	info, err := store.DescribeIndex(ctx, schema.Name, vectorstore.FieldEmbedding)
	if err != nil {
		t.Fatalf("DescribeIndex failed: %v", err)
	}
	if info == nil {
		t.Fatal("expected an index after reindex")
	}
	if info.Metric != vectorstore.MetricInnerProduct {
		t.Errorf("expected inner-product metric after rebuild, got %s", info.Metric)
	}
}
