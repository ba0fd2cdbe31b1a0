package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/canonical"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/risk"
)

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Canonicalize buyer names and drop unusable rows",
	Long:  "Clusters buyer-name variants into canonical representatives, rewrites the contract table, deduplicates by identifier, drops rows without a positive contract value, and stores the buyer map.",
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

		names := make([]string, 0, len(contracts))
		for _, c := range contracts {
			names = append(names, c.BuyerName)
		}
		mappings := canonical.BuildMap(names)
		canonicalized := canonical.Apply(contracts, mappings)

		seen := make(map[string]struct{}, len(canonicalized))
		kept := make([]model.ContractRecord, 0, len(canonicalized))
		dropped := 0
		for _, c := range canonicalized {
			if _, dup := seen[c.OCID]; dup {
				dropped++
				continue
			}
			if risk.ParseSpend(c.ValueAmount) <= 0 {
				dropped++
				continue
			}
			seen[c.OCID] = struct{}{}
			kept = append(kept, c)
		}

		if err := st.ReplaceContracts(ctx, kept); err != nil {
			return err
		}
		if err := st.ReplaceBuyerMap(ctx, mappings); err != nil {
			return err
		}

		zap.L().Info("clean finished",
			zap.Int("contracts_in", len(contracts)),
			zap.Int("contracts_out", len(kept)),
			zap.Int("dropped", dropped),
			zap.Int("buyer_mappings", len(mappings)),
		)
		fmt.Printf("Cleaned %d contracts (%d dropped), %d buyer mappings\n", len(kept), dropped, len(mappings))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cleanCmd)
}
