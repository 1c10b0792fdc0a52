package cmd

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "face-auth",
	Short: "Face verification service backed by a vector store",
	Long: `Face Auth verifies a person's identity by comparing face embeddings:
a passport photo page against a live selfie for the initial identity proof,
and a live selfie against the user's stored embedding history for
reauthentication. Embeddings come from an external face-analysis service
and are persisted in PostgreSQL with the pgvector extension.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)
}

func initConfig() {
	// .env file is optional, don't fail if not found
	_ = godotenv.Load()
}
