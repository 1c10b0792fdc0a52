package memory

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

func historySchema() vectorstore.Schema {
	return vectorstore.HistorySchema("history_test", 4, 64)
}

func TestInsertVisibleAfterFlush(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	require.NoError(t, store.Connect(ctx))
	require.NoError(t, store.CreateCollection(ctx, schema))
	require.NoError(t, store.CreateIndex(ctx, schema.Name, vectorstore.FieldEmbedding, vectorstore.DefaultIndexSpec()))

	row := vectorstore.Row{
		Vector:  []float32{1, 0, 0, 0},
		Scalars: map[string]any{vectorstore.FieldUserID: int64(7)},
	}
	require.NoError(t, store.Insert(ctx, schema, []vectorstore.Row{row}))

	// Not flushed yet: search sees nothing.
	hits, err := store.Search(ctx, schema, []float32{1, 0, 0, 0}, nil, 10)
	require.NoError(t, err)
	assert.Empty(t, hits)

	require.NoError(t, store.Flush(ctx, schema.Name))

	hits, err = store.Search(ctx, schema, []float32{1, 0, 0, 0}, nil, 10)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.InDelta(t, 1.0, hits[0].Score, 1e-6)
}

func TestSearchEqualityFilter(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	require.NoError(t, store.CreateCollection(ctx, schema))
	rows := []vectorstore.Row{
		{Vector: []float32{1, 0, 0, 0}, Scalars: map[string]any{vectorstore.FieldUserID: int64(1)}},
		{Vector: []float32{0.9, 0.1, 0, 0}, Scalars: map[string]any{vectorstore.FieldUserID: int64(2)}},
		{Vector: []float32{0, 1, 0, 0}, Scalars: map[string]any{vectorstore.FieldUserID: int64(1)}},
	}
	require.NoError(t, store.Insert(ctx, schema, rows))
	require.NoError(t, store.Flush(ctx, schema.Name))

	hits, err := store.Search(ctx, schema, []float32{1, 0, 0, 0}, vectorstore.Eq(vectorstore.FieldUserID, 1), 10)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, int64(1), h.Scalars[vectorstore.FieldUserID])
	}
	// Descending by score.
	assert.GreaterOrEqual(t, hits[0].Score, hits[1].Score)
}

func TestSearchTopK(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	require.NoError(t, store.CreateCollection(ctx, schema))
	for i := 0; i < 5; i++ {
		require.NoError(t, store.Insert(ctx, schema, []vectorstore.Row{
			{Vector: []float32{1, float32(i) * 0.1, 0, 0}, Scalars: map[string]any{vectorstore.FieldUserID: int64(1)}},
		}))
	}
	require.NoError(t, store.Flush(ctx, schema.Name))

	hits, err := store.Search(ctx, schema, []float32{1, 0, 0, 0}, vectorstore.Eq(vectorstore.FieldUserID, 1), 2)
	require.NoError(t, err)
	assert.Len(t, hits, 2)
}

func TestMonotonicIDs(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	require.NoError(t, store.CreateCollection(ctx, schema))
	for i := 0; i < 3; i++ {
		require.NoError(t, store.Insert(ctx, schema, []vectorstore.Row{
			{Vector: []float32{1, 0, 0, 0}, Scalars: map[string]any{vectorstore.FieldUserID: int64(1)}},
		}))
	}
	require.NoError(t, store.Flush(ctx, schema.Name))

	hits, err := store.Query(ctx, schema, nil, nil)
	require.NoError(t, err)
	require.Len(t, hits, 3)

	seen := make(map[int64]bool)
	for _, h := range hits {
		assert.False(t, seen[h.ID], "id %d assigned twice", h.ID)
		seen[h.ID] = true
	}
}

func TestDescribeAndDropIndex(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	require.NoError(t, store.CreateCollection(ctx, schema))

	info, err := store.DescribeIndex(ctx, schema.Name, vectorstore.FieldEmbedding)
	require.NoError(t, err)
	assert.Nil(t, info)

	spec := vectorstore.IndexSpec{Metric: vectorstore.MetricL2, Family: vectorstore.FamilyHNSW}
	require.NoError(t, store.CreateIndex(ctx, schema.Name, vectorstore.FieldEmbedding, spec))

	info, err = store.DescribeIndex(ctx, schema.Name, vectorstore.FieldEmbedding)
	require.NoError(t, err)
	require.NotNil(t, info)
	assert.Equal(t, vectorstore.MetricL2, info.Metric)
	assert.Equal(t, vectorstore.FamilyHNSW, info.Family)

	require.NoError(t, store.DropIndex(ctx, schema.Name, vectorstore.FieldEmbedding))
	info, err = store.DescribeIndex(ctx, schema.Name, vectorstore.FieldEmbedding)
	require.NoError(t, err)
	assert.Nil(t, info)
}

func TestMissingCollection(t *testing.T) {
	ctx := context.Background()
	store := New()
	schema := historySchema()

	_, err := store.Search(ctx, schema, []float32{1, 0, 0, 0}, nil, 1)
	assert.Error(t, err)

	err = store.Insert(ctx, schema, []vectorstore.Row{{Vector: []float32{1, 0, 0, 0}}})
	assert.Error(t, err)
}
