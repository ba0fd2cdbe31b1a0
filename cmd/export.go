package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/export"
)

var exportDir string

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write CSV and XLSX artifacts",
	Long:  "Exports the contract table, buyer map, and risk table to CSV, plus an XLSX workbook of the risk table.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		dir := exportDir
		if dir == "" {
			dir = cfg.Export.Dir
		}
		contractsPath, buyerMapPath, riskCSVPath, riskXLSXPath := export.ArtifactPaths(dir)

		contracts, err := st.ListContracts(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteContractsCSV(contractsPath, contracts); err != nil {
			return err
		}

		mappings, err := st.ListBuyerMap(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteBuyerMapCSV(buyerMapPath, mappings); err != nil {
			return err
		}

		riskRecords, err := st.ListRiskRecords(ctx)
		if err != nil {
			return err
		}
		if err := export.WriteRiskCSV(riskCSVPath, riskRecords); err != nil {
			return err
		}
		if err := export.WriteRiskXLSX(riskXLSXPath, riskRecords); err != nil {
			return err
		}

		zap.L().Info("artifacts written",
			zap.String("dir", dir),
			zap.Int("contracts", len(contracts)),
			zap.Int("buyer_mappings", len(mappings)),
			zap.Int("risk_records", len(riskRecords)),
		)
		fmt.Printf("Wrote %s, %s, %s, %s\n", contractsPath, buyerMapPath, riskCSVPath, riskXLSXPath)
		return nil
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default from config)")
	rootCmd.AddCommand(exportCmd)
}
