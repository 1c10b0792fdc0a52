// Package history maintains the append-only per-user embedding log used by
// the reauthentication flow. Records are written once, never updated and
// never deleted; retention is out of scope.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/similarity"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

// Record is one immutable stored embedding tied to a user.
type Record struct {
	ID        int64  `json:"id"`
	UserID    int64  `json:"user_id"`
	CreatedAt int64  `json:"created_at"` // milliseconds since epoch
	Source    string `json:"source"`
}

// Match is one history search result, ranked by similarity.
type Match struct {
	Score  float64
	Record Record
}

// Store provides append and nearest-neighbor search over a bootstrapped
// history collection.
type Store struct {
	coll *vectorstore.Collection
	now  func() time.Time
}

// New creates a history store over the given collection handle.
func New(coll *vectorstore.Collection) *Store {
	return &Store{coll: coll, now: time.Now}
}

// Append normalizes the embedding and inserts a new history record tagged
// with the source, flushing so the record is immediately visible to
// subsequent searches. History is strictly additive: this never touches an
// existing record.
func (s *Store) Append(ctx context.Context, userID int64, embedding []float32, source string) error {
	if len(source) > constants.MaxSourceLen {
		return fmt.Errorf("source tag too long (%d > %d)", len(source), constants.MaxSourceLen)
	}

	normalized, err := similarity.Normalize(embedding)
	if err != nil {
		return fmt.Errorf("normalize embedding: %w", err)
	}

	row := vectorstore.Row{
		Vector: normalized,
		Scalars: map[string]any{
			vectorstore.FieldUserID:    userID,
			vectorstore.FieldCreatedAt: s.now().UnixMilli(),
			vectorstore.FieldSource:    source,
		},
	}
	if err := s.coll.Insert(ctx, []vectorstore.Row{row}); err != nil {
		return fmt.Errorf("insert history record: %w", err)
	}
	if err := s.coll.Flush(ctx); err != nil {
		return fmt.Errorf("flush history collection: %w", err)
	}
	return nil
}

// Search returns up to topK history records for the user ranked by
// descending similarity to the query embedding. An empty result means the
// user has no history; it is a valid outcome, distinct from a store error.
func (s *Store) Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]Match, error) {
	normalized, err := similarity.Normalize(embedding)
	if err != nil {
		return nil, fmt.Errorf("normalize query embedding: %w", err)
	}

	hits, err := s.coll.Search(ctx, normalized, vectorstore.Eq(vectorstore.FieldUserID, userID), topK)
	if err != nil {
		return nil, fmt.Errorf("search user history: %w", err)
	}

	matches := make([]Match, 0, len(hits))
	for _, hit := range hits {
		matches = append(matches, Match{Score: hit.Score, Record: recordFromHit(hit)})
	}
	return matches, nil
}

// All returns every history record in the collection across all users,
// intended for export tooling rather than the verification flows.
func (s *Store) All(ctx context.Context) ([]Record, error) {
	hits, err := s.coll.Query(ctx, nil, []string{
		vectorstore.FieldUserID,
		vectorstore.FieldCreatedAt,
		vectorstore.FieldSource,
	})
	if err != nil {
		return nil, fmt.Errorf("query history records: %w", err)
	}
	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, recordFromHit(hit))
	}
	return records, nil
}

// Count returns the total number of stored history records.
func (s *Store) Count(ctx context.Context) (int64, error) {
	return s.coll.Count(ctx)
}

func recordFromHit(hit vectorstore.Hit) Record {
	rec := Record{ID: hit.ID}
	if v, ok := hit.Scalars[vectorstore.FieldUserID].(int64); ok {
		rec.UserID = v
	}
	if v, ok := hit.Scalars[vectorstore.FieldCreatedAt].(int64); ok {
		rec.CreatedAt = v
	}
	if v, ok := hit.Scalars[vectorstore.FieldSource].(string); ok {
		rec.Source = v
	}
	return rec
}
