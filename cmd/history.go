package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/history"
)

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Inspect and export the verification history",
}

var historySummaryCmd = &cobra.Command{
	Use:   "summary [user-id]",
	Short: "Print a user's verification history summary",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistorySummary,
}

var historyExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export all history records as JSON lines",
	Long: `Streams every history record (all users) to a file or stdout as one
JSON object per line. Embeddings themselves are not exported.`,
	RunE: runHistoryExport,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.AddCommand(historySummaryCmd)
	historyCmd.AddCommand(historyExportCmd)

	historyExportCmd.Flags().String("output", "", "Output file (default stdout)")
}

// openHistoryStore wires a history store over the configured backend.
func openHistoryStore(ctx context.Context, cfg *config.Config) (*history.Store, func(), error) {
	store, err := openStore(cfg)
	if err != nil {
		return nil, nil, err
	}
	_, historyColl, err := ensureCollections(ctx, cfg, store)
	if err != nil {
		store.Close()
		return nil, nil, err
	}
	return history.New(historyColl), func() { store.Close() }, nil
}

func runHistorySummary(cmd *cobra.Command, args []string) error {
	userID, err := strconv.ParseInt(args[0], 10, 64)
	if err != nil || userID <= 0 {
		return fmt.Errorf("invalid user id %q", args[0])
	}

	cfg := config.Load()
	store, closeStore, err := openHistoryStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	summary, err := store.Summarize(cmd.Context(), userID)
	if err != nil {
		return fmt.Errorf("summarizing history: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "User:\t%d\n", summary.UserID)
	fmt.Fprintf(w, "Records:\t%d\n", summary.Total)
	if summary.FirstSeen != nil {
		fmt.Fprintf(w, "First seen:\t%s\n", time.UnixMilli(*summary.FirstSeen).Format(time.RFC3339))
	}
	if summary.LastSeen != nil {
		fmt.Fprintf(w, "Last seen:\t%s\n", time.UnixMilli(*summary.LastSeen).Format(time.RFC3339))
	}
	for source, count := range summary.BySource {
		fmt.Fprintf(w, "Source %s:\t%d\n", source, count)
	}
	if summary.AverageIntervalMS > 0 {
		fmt.Fprintf(w, "Average interval:\t%s\n", (time.Duration(summary.AverageIntervalMS) * time.Millisecond).String())
	}
	for _, rec := range summary.Recent {
		fmt.Fprintf(w, "  %s\t%s\n", time.UnixMilli(rec.CreatedAt).Format(time.RFC3339), rec.Source)
	}
	return w.Flush()
}

func runHistoryExport(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	store, closeStore, err := openHistoryStore(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	out := os.Stdout
	if path := mustGetString(cmd, "output"); path != "" {
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	total, err := store.Count(cmd.Context())
	if err != nil {
		return fmt.Errorf("counting history records: %w", err)
	}

	records, err := store.All(cmd.Context())
	if err != nil {
		return fmt.Errorf("reading history records: %w", err)
	}

	bar := progressbar.NewOptions64(total,
		progressbar.OptionSetDescription("Exporting history"),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)

	encoder := json.NewEncoder(out)
	for _, rec := range records {
		if err := encoder.Encode(rec); err != nil {
			return fmt.Errorf("writing record %d: %w", rec.ID, err)
		}
		bar.Add(1)
	}
	bar.Finish()

	fmt.Fprintf(os.Stderr, "Exported %d records\n", len(records))
	return nil
}
