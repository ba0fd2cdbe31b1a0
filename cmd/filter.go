package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/ingest"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

var filterCmd = &cobra.Command{
	Use:   "filter",
	Short: "Narrow stored contracts to strict civil-works codes",
	Long:  "Rewrites the contract table keeping only records whose classification code matches the strict civil-works prefixes.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		contracts, err := st.ListContracts(ctx)
		if err != nil {
			return err
		}

		kept := make([]model.ContractRecord, 0, len(contracts))
		for _, c := range contracts {
			if ingest.HasPrefix(c.CPVCode, cfg.Catalog.StrictPrefixes) {
				kept = append(kept, c)
			}
		}

		if err := st.ReplaceContracts(ctx, kept); err != nil {
			return err
		}

		zap.L().Info("strict filter applied",
			zap.Int("before", len(contracts)),
			zap.Int("after", len(kept)),
		)
		fmt.Printf("Kept %d of %d contracts\n", len(kept), len(contracts))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(filterCmd)
}
