// Package constants provides shared constants used across the codebase.
// Centralizing these values ensures consistency and makes them easier to modify.
package constants

// Upload constants
const (
	// MaxUploadSize is the maximum accepted size of a single uploaded image in bytes
	MaxUploadSize = 5 << 20 // 5 MiB

	// MaxMultipartMemory is the in-memory buffer limit when parsing multipart forms
	MaxMultipartMemory = 10 << 20
)

// Verification constants
const (
	// DefaultThreshold is the minimum cosine similarity required to accept a match
	DefaultThreshold = 0.35

	// DefaultEmbeddingDim is the embedding dimension of the face-analysis model (buffalo_l/ResNet100)
	DefaultEmbeddingDim = 512

	// HistoryTopK is the number of nearest history records fetched during reauthentication
	HistoryTopK = 3

	// DefaultConcurrency is the default number of embedding extractions allowed in flight
	DefaultConcurrency = 4
)

// History constants
const (
	// SourceSignup tags history records persisted by the identity-proof flow
	SourceSignup = "signup"

	// SourceReauth tags history records persisted by the reauthentication flow
	SourceReauth = "reauth"

	// MaxSourceLen is the maximum length of a history record source tag
	MaxSourceLen = 64

	// SummaryRecentLimit is the number of most recent records included in a history summary
	SummaryRecentLimit = 5
)

// Vector index constants
const (
	// IndexLists is the number of IVF partitions for the embedding index
	IndexLists = 128

	// SearchProbes is the number of IVF partitions probed during a search
	SearchProbes = 10
)
