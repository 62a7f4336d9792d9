package main

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/zeus-insurance/zeus-agent/internal/ingest"
)

var ingestLimit int

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Embed policy documents that have no embedding yet",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		if err := cfg.Validate("ingest"); err != nil {
			return err
		}
		st, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		res, err := ingest.NewBackfiller(st, initEmbedding(), ingest.Options{
			BatchSize:         cfg.Embedding.BatchSize,
			RequestsPerSecond: cfg.Embedding.RequestsPerSecond,
			Dimension:         cfg.Embedding.Dimension,
			Limit:             ingestLimit,
		}).Run(ctx)
		if err != nil {
			return err
		}

		zap.L().Info("ingest complete",
			zap.Int("pending", res.Pending),
			zap.Int("embedded", res.Embedded),
			zap.Int("failed", res.Failed),
		)
		return nil
	},
}

func init() {
	ingestCmd.Flags().IntVar(&ingestLimit, "limit", 0, "max documents to embed (0 for all)")
	rootCmd.AddCommand(ingestCmd)
}
