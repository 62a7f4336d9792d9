package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/seed"
)

var (
	seedFile          string
	seedSkipDocuments bool
	premiumsFile      string
	premiumsSheet     string
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load vehicles, plans, premiums and policy documents from a YAML fixture",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		fx, err := seed.LoadFile(seedFile)
		if err != nil {
			return err
		}

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		counts, err := seed.Apply(ctx, st, fx, seedSkipDocuments)
		if err != nil {
			return err
		}
		if counts.Documents > 0 {
			zap.L().Info("documents stored without embeddings, run `zeus ingest` to make them searchable",
				zap.Int64("documents", counts.Documents))
		}
		return nil
	},
}

var importPremiumsCmd = &cobra.Command{
	Use:   "import-premiums",
	Short: "Upsert the premium matrix from an XLSX workbook",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		n, err := seed.ImportPremiums(ctx, st, premiumsFile, premiumsSheet)
		if err != nil {
			return err
		}
		zap.L().Info("import complete", zap.Int64("premiums", n), zap.String("file", premiumsFile))
		return nil
	},
}

func init() {
	seedCmd.Flags().StringVar(&seedFile, "file", "", "path to YAML fixture (required)")
	seedCmd.Flags().BoolVar(&seedSkipDocuments, "skip-documents", false, "only upsert the catalog")
	_ = seedCmd.MarkFlagRequired("file")

	importPremiumsCmd.Flags().StringVar(&premiumsFile, "file", "", "path to XLSX workbook (required)")
	importPremiumsCmd.Flags().StringVar(&premiumsSheet, "sheet", "", "sheet name (default first sheet)")
	_ = importPremiumsCmd.MarkFlagRequired("file")

	rootCmd.AddCommand(seedCmd, importPremiumsCmd)
}
