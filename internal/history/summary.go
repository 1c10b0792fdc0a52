package history

import (
	"context"
	"fmt"
	"sort"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

// Summary is a read-only aggregate over a user's history records.
type Summary struct {
	UserID    int64          `json:"user_id"`
	Total     int            `json:"total"`
	FirstSeen *int64         `json:"first_seen,omitempty"` // ms since epoch
	LastSeen  *int64         `json:"last_seen,omitempty"`  // ms since epoch
	BySource  map[string]int `json:"by_source"`
	// Recent holds the most recent records in reverse chronological order.
	Recent []Record `json:"recent"`
	// AverageIntervalMS is the mean gap between consecutive inserts.
	AverageIntervalMS int64 `json:"average_interval_ms"`
}

// Summarize aggregates all history records for a user. A user with no
// records yields a zero-valued summary, never an error.
func (s *Store) Summarize(ctx context.Context, userID int64) (*Summary, error) {
	hits, err := s.coll.Query(ctx, vectorstore.Eq(vectorstore.FieldUserID, userID), []string{
		vectorstore.FieldUserID,
		vectorstore.FieldCreatedAt,
		vectorstore.FieldSource,
	})
	if err != nil {
		return nil, fmt.Errorf("query user history: %w", err)
	}

	summary := &Summary{
		UserID:   userID,
		Total:    len(hits),
		BySource: make(map[string]int),
		Recent:   []Record{},
	}
	if len(hits) == 0 {
		return summary, nil
	}

	records := make([]Record, 0, len(hits))
	for _, hit := range hits {
		records = append(records, recordFromHit(hit))
	}
	sort.Slice(records, func(i, j int) bool { return records[i].CreatedAt < records[j].CreatedAt })

	first := records[0].CreatedAt
	last := records[len(records)-1].CreatedAt
	summary.FirstSeen = &first
	summary.LastSeen = &last

	for _, rec := range records {
		summary.BySource[rec.Source]++
	}

	if len(records) > 1 {
		summary.AverageIntervalMS = (last - first) / int64(len(records)-1)
	}

	limit := constants.SummaryRecentLimit
	if limit > len(records) {
		limit = len(records)
	}
	for i := 0; i < limit; i++ {
		summary.Recent = append(summary.Recent, records[len(records)-1-i])
	}

	return summary, nil
}
