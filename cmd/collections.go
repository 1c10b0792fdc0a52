package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/vectorstore"
)

var collectionsCmd = &cobra.Command{
	Use:   "collections",
	Short: "Show vector collection and index status",
	Long: `Bootstraps both collections if needed and prints their row counts and
embedding index configuration. Useful for checking that the store is
reachable and the indexes carry the expected metric.`,
	RunE: runCollections,
}

func init() {
	rootCmd.AddCommand(collectionsCmd)
}

func runCollections(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	store, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	current, historyColl, err := ensureCollections(cmd.Context(), cfg, store)
	if err != nil {
		return err
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "COLLECTION\tROWS\tINDEX\tMETRIC\tFAMILY\n")
	for _, coll := range []*vectorstore.Collection{current, historyColl} {
		count, err := coll.Count(cmd.Context())
		if err != nil {
			return fmt.Errorf("counting %s: %w", coll.Name(), err)
		}
		info, err := store.DescribeIndex(cmd.Context(), coll.Name(), vectorstore.FieldEmbedding)
		if err != nil {
			return fmt.Errorf("describing index on %s: %w", coll.Name(), err)
		}
		if info == nil {
			fmt.Fprintf(w, "%s\t%d\t-\t-\t-\n", coll.Name(), count)
			continue
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\n", coll.Name(), count, info.Name, info.Metric, info.Family)
	}
	return w.Flush()
}
