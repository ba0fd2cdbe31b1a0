package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/greenbook-analytics/carbonscreen-cli/internal/model"
)

func TestRootCommand_HasSubcommands(t *testing.T) {
	cmds := rootCmd.Commands()

	names := make(map[string]bool)
	for _, c := range cmds {
		names[c.Name()] = true
	}

	expected := []string{"ingest", "filter", "clean", "screen", "export", "runs"}
	for _, name := range expected {
		assert.True(t, names[name], "expected subcommand %q not found", name)
	}
}

func TestRootCommand_Metadata(t *testing.T) {
	assert.Equal(t, "carbonscreen", rootCmd.Use)
	assert.NotEmpty(t, rootCmd.Short)
	assert.NotEmpty(t, rootCmd.Long)
}

func TestIngestCommand_Flags(t *testing.T) {
	for _, name := range []string{"from", "to", "reset"} {
		flag := ingestCmd.Flags().Lookup(name)
		require.NotNil(t, flag, "ingest command should have --%s flag", name)
	}
}

func TestExportCommand_DirFlag(t *testing.T) {
	flag := exportCmd.Flags().Lookup("dir")
	require.NotNil(t, flag)
}

func TestFormatRunsList(t *testing.T) {
	now := time.Date(2026, 2, 1, 10, 30, 0, 0, time.UTC)
	runs := []model.IngestRun{
		{
			ID:          "abc12345-6789-0000-0000-000000000000",
			StartedAt:   now,
			FinishedAt:  now.Add(2 * time.Minute),
			Status:      model.RunStatusDone,
			Pages:       4,
			RecordsKept: 120,
		},
		{
			ID:          "def12345-6789-0000-0000-000000000000",
			StartedAt:   now.Add(-time.Hour),
			FinishedAt:  now.Add(-50 * time.Minute),
			Status:      model.RunStatusStopped,
			Pages:       1,
			RecordsKept: 12,
			Error:       "catalog returned 503",
		},
	}

	var buf bytes.Buffer
	formatRunsList(&buf, runs)

	output := buf.String()
	assert.Contains(t, output, "STATUS")
	assert.Contains(t, output, "abc12345")
	assert.Contains(t, output, "done")
	assert.Contains(t, output, "2026-02-01 10:30:00")
	assert.Contains(t, output, "stopped")
	assert.Contains(t, output, "catalog returned 503")
}
