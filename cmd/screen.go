package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/export"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/materials"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/risk"
)

var screenCmd = &cobra.Command{
	Use:   "screen",
	Short: "Estimate embodied-carbon risk for stored contracts",
	Long:  "Matches contract text against the material reference table, estimates CO2e from spend, assigns risk tiers, and stores one risk record per contract.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		profiles, err := materials.Load(cfg.Screen.ReferencePath)
		if err != nil {
			return err
		}

		contracts, err := st.ListContracts(ctx)
		if err != nil {
			return err
		}

		engine := risk.NewEngine(profiles, cfg.Screen.MinSpend)
		records := engine.Screen(contracts)

		if err := st.ReplaceRiskRecords(ctx, records); err != nil {
			return err
		}

		calculated := 0
		for _, r := range records {
			if r.Status == model.StatusCalculated {
				calculated++
			}
		}
		zap.L().Info("screening stored",
			zap.Int("records", len(records)),
			zap.Int("calculated", calculated),
		)

		fmt.Printf("Screened %d contracts (%d calculated)\n", len(records), calculated)
		if lines := export.PreviewTop(records, 5); len(lines) > 0 {
			fmt.Println("\nTop 5 Highest Carbon Risks:")
			for _, l := range lines {
				fmt.Println(l)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(screenCmd)
}
