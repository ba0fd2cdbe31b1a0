package main

import (
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/fetcher"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/ingest"
	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

var (
	ingestFrom  string
	ingestTo    string
	ingestReset bool
)

var ingestCmd = &cobra.Command{
	Use:   "ingest",
	Short: "Fetch procurement notices from the catalog",
	Long:  "Pages through the notice catalog, keeps civil-works records, and resumes from the persisted cursor when one exists.",
	RunE: func(cmd *cobra.Command, _ []string) error {
		ctx := cmd.Context()

		st, err := initStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close() //nolint:errcheck

		catalog := cfg.Catalog
		if ingestFrom != "" {
			catalog.PublishedFrom = ingestFrom
		}
		if ingestTo != "" {
			catalog.PublishedTo = ingestTo
		}

		cursor := ingest.NewCursorStore(catalog.CursorPath)
		if ingestReset {
			if err := cursor.Clear(); err != nil {
				return eris.Wrap(err, "reset cursor")
			}
			zap.L().Info("cursor cleared, starting from the initial query")
		}

		client := fetcher.New(fetcher.Options{
			UserAgent:   cfg.Fetch.UserAgent,
			Timeout:     time.Duration(cfg.Fetch.TimeoutSecs) * time.Second,
			MaxRetries:  cfg.Fetch.MaxRetries,
			BackoffBase: time.Duration(cfg.Fetch.BackoffSecs) * time.Second,
		})

		started := time.Now().UTC()
		result := ingest.New(client, cursor, catalog).Run(ctx)

		kept, err := st.UpsertContracts(ctx, result.Records)
		if err != nil {
			return err
		}

		run := model.IngestRun{
			ID:          uuid.New().String(),
			StartedAt:   started,
			FinishedAt:  time.Now().UTC(),
			Status:      result.Status,
			Pages:       result.Pages,
			RecordsKept: int(kept),
			LastCursor:  result.LastCursor,
		}
		if result.Err != nil {
			run.Error = result.Err.Error()
		}
		if err := st.RecordRun(ctx, run); err != nil {
			return err
		}

		zap.L().Info("ingestion finished",
			zap.String("status", string(result.Status)),
			zap.Int("pages", result.Pages),
			zap.Int("records_fetched", len(result.Records)),
			zap.Int64("records_stored", kept),
		)

		switch result.Status {
		case model.RunStatusAborted:
			return eris.Wrap(result.Err, "ingest aborted")
		case model.RunStatusStopped:
			fmt.Fprintln(os.Stderr, "Catalog returned an error status; partial results and cursor were kept. Rerun to resume.")
		}

		fmt.Printf("Ingested %d new records over %d pages (%s)\n", kept, result.Pages, result.Status)
		return nil
	},
}

func init() {
	ingestCmd.Flags().StringVar(&ingestFrom, "from", "", "publishedFrom date override (YYYY-MM-DD)")
	ingestCmd.Flags().StringVar(&ingestTo, "to", "", "publishedTo date override (YYYY-MM-DD)")
	ingestCmd.Flags().BoolVar(&ingestReset, "reset", false, "discard the persisted cursor and start from the initial query")
	rootCmd.AddCommand(ingestCmd)
}
