package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-auth/internal/config"
	"github.com/kozaktomas/face-auth/internal/embedder"
	"github.com/kozaktomas/face-auth/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify [imageA] [imageB]",
	Short: "Compare two face images against the embedding service",
	Long: `Runs the identity-proof flow offline: extracts the best face from each
image via the embedding service, compares them, and prints the decision.
Nothing is persisted.`,
	Args: cobra.ExactArgs(2),
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().Float64("threshold", 0, "Override the similarity threshold (0 = use config)")
}

func runVerify(cmd *cobra.Command, args []string) error {
	cfg := config.Load()

	threshold := cfg.Verify.Threshold
	if t := mustGetFloat64(cmd, "threshold"); t > 0 {
		threshold = t
	}

	imageA, err := os.ReadFile(args[0])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[0], err)
	}
	imageB, err := os.ReadFile(args[1])
	if err != nil {
		return fmt.Errorf("reading %s: %w", args[1], err)
	}

	embeddingClient := embedder.NewClient(cfg.Embedding.URL)
	engine := verify.NewEngine(embeddingClient, nil, threshold, 1)

	result, err := engine.VerifyIdentity(cmd.Context(), imageA, imageB, 0)
	if err != nil {
		return fmt.Errorf("verification failed: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintf(w, "Authenticated:\t%t\n", result.IsAuthenticated)
	if result.Similarity != nil {
		fmt.Fprintf(w, "Similarity:\t%.4f\n", *result.Similarity)
	} else {
		fmt.Fprintf(w, "Similarity:\t-\n")
	}
	fmt.Fprintf(w, "Threshold:\t%.4f\n", result.Threshold)
	if result.Detail != nil {
		fmt.Fprintf(w, "Detail:\t%s\n", *result.Detail)
	}
	return w.Flush()
}
