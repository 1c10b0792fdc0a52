package cmd

import (
	"context"
	"fmt"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/constants"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
	"github.com/kozaktomas/face-auth/internal/vectorstore/memory"
	"github.com/kozaktomas/face-auth/internal/vectorstore/pgvector"
)

// openStore selects the vector store backend from configuration.
func openStore(cfg *config.Config) (vectorstore.Store, error) {
	switch cfg.Store.Backend {
	case "memory":
		return memory.New(), nil
	case "postgres":
		return pgvector.New(&cfg.Store), nil
	default:
		return nil, fmt.Errorf("unknown store backend %q", cfg.Store.Backend)
	}
}

// ensureCollections bootstraps the current and history collections. A store
// that cannot be reached here is fatal for the calling command.
func ensureCollections(ctx context.Context, cfg *config.Config, store vectorstore.Store) (*vectorstore.Collection, *vectorstore.Collection, error) {
	bootstrapper := vectorstore.NewBootstrapper(store)

	current, err := bootstrapper.Ensure(ctx, vectorstore.CurrentSchema(cfg.Store.Collection, cfg.Embedding.Dim))
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap collection %s: %w", cfg.Store.Collection, err)
	}

	hist, err := bootstrapper.Ensure(ctx, vectorstore.HistorySchema(cfg.Store.HistoryCollection, cfg.Embedding.Dim, constants.MaxSourceLen))
	if err != nil {
		return nil, nil, fmt.Errorf("bootstrap collection %s: %w", cfg.Store.HistoryCollection, err)
	}

	return current, hist, nil
}
