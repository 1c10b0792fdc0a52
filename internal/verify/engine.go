// Package verify implements the verification decision engine: the
// cross-image identity-proof flow and the history-based reauthentication
// flow. Every path through either flow terminates in exactly one Result;
// face-detection and threshold outcomes never escape as errors.
package verify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/semaphore"

	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/history"
	"github.com/kozaktomas/face-auth/internal/similarity"
)

// Embedder extracts the highest-confidence face embedding from raw image
// bytes. It returns embedder.ErrNoFace when the image holds no detectable
// face.
type Embedder interface {
	ExtractBestFace(ctx context.Context, image []byte) ([]float32, error)
}

// History is the per-user embedding log consumed by the engine.
type History interface {
	Append(ctx context.Context, userID int64, embedding []float32, source string) error
	Search(ctx context.Context, embedding []float32, userID int64, topK int) ([]history.Match, error)
}

// Engine orchestrates the two verification flows.
type Engine struct {
	embedder  Embedder
	history   History
	threshold float64

	// sem bounds concurrent embedding extractions so a burst of uploads
	// cannot saturate the process.
	sem *semaphore.Weighted
}

// NewEngine creates a verification engine with the given decision threshold
// and extraction concurrency limit.
func NewEngine(emb Embedder, hist History, threshold float64, concurrency int) *Engine {
	if concurrency <= 0 {
		concurrency = constants.DefaultConcurrency
	}
	return &Engine{
		embedder:  emb,
		history:   hist,
		threshold: threshold,
		sem:       semaphore.NewWeighted(int64(concurrency)),
	}
}

// Threshold returns the configured decision boundary.
func (e *Engine) Threshold() float64 { return e.threshold }

// extract runs the embedder under the concurrency gate.
func (e *Engine) extract(ctx context.Context, image []byte) ([]float32, error) {
	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire extraction slot: %w", err)
	}
	defer e.sem.Release(1)
	return e.embedder.ExtractBestFace(ctx, image)
}

// VerifyIdentity compares two freshly captured images: the passport image
// first, then the selfie. The first image without a detectable face
// short-circuits the flow. On acceptance and when userID is positive, the
// selfie embedding is persisted to history tagged "signup" — best-effort,
// since the decision is already made.
func (e *Engine) VerifyIdentity(ctx context.Context, passportImage, selfieImage []byte, userID int64) (*Result, error) {
	passportEmb, err := e.extract(ctx, passportImage)
	if errors.Is(err, embedder.ErrNoFace) {
		return e.rejected(DetailNoFacePassport), nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract passport embedding: %w", err)
	}

	selfieEmb, err := e.extract(ctx, selfieImage)
	if errors.Is(err, embedder.ErrNoFace) {
		return e.rejected(DetailNoFaceSelfie), nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract selfie embedding: %w", err)
	}

	passportNorm, err := similarity.Normalize(passportEmb)
	if err != nil {
		return nil, fmt.Errorf("normalize passport embedding: %w", err)
	}
	selfieNorm, err := similarity.Normalize(selfieEmb)
	if err != nil {
		return nil, fmt.Errorf("normalize selfie embedding: %w", err)
	}

	sim := similarity.Cosine(passportNorm, selfieNorm)
	if !similarity.Decide(sim, e.threshold) {
		return e.rejectedWithScore(sim, DetailBelowThreshold), nil
	}

	if userID > 0 && e.history != nil {
		if err := e.history.Append(ctx, userID, selfieNorm, constants.SourceSignup); err != nil {
			// The decision stands; persistence is best-effort.
			log.Printf("warning: failed to persist signup embedding for user %d: %v", userID, err)
		}
	}
	return e.accepted(sim), nil
}

// Reauthenticate compares one new selfie against the user's stored
// embedding history. Store unavailability, empty history and a
// below-threshold best match each reject with their own detail so the
// caller can decide whether to fall back to the full identity flow.
func (e *Engine) Reauthenticate(ctx context.Context, selfieImage []byte, userID int64) (*Result, error) {
	selfieEmb, err := e.extract(ctx, selfieImage)
	if errors.Is(err, embedder.ErrNoFace) {
		return e.rejected(DetailNoFaceSelfie), nil
	}
	if err != nil {
		return nil, fmt.Errorf("extract selfie embedding: %w", err)
	}

	matches, err := e.history.Search(ctx, selfieEmb, userID, constants.HistoryTopK)
	if err != nil {
		log.Printf("warning: history search failed for user %d: %v", userID, err)
		return e.rejected(DetailHistoryUnavailable), nil
	}
	if len(matches) == 0 {
		return e.rejected(DetailNoHistory), nil
	}

	best := matches[0]
	if !similarity.Decide(best.Score, e.threshold) {
		return e.rejectedWithScore(best.Score, DetailBelowThreshold), nil
	}

	if err := e.history.Append(ctx, userID, selfieEmb, constants.SourceReauth); err != nil {
		log.Printf("warning: failed to persist reauth embedding for user %d: %v", userID, err)
	}
	return e.accepted(best.Score), nil
}
