package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"anonlab/internal/config"
	"anonlab/internal/report"
)

func TestConfigInit(t *testing.T) {
	t.Run("Should write defaults and refuse to overwrite without --force", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "anonlab.yaml")
		rootCmd.SetArgs([]string{"config", "init", path})
		require.NoError(t, rootCmd.Execute())

		cfg, err := config.Load(path)
		require.NoError(t, err)
		assert.Equal(t, config.Default(), cfg)

		rootCmd.SetArgs([]string{"config", "init", path})
		assert.Error(t, rootCmd.Execute())

		rootCmd.SetArgs([]string{"config", "init", "--force", path})
		assert.NoError(t, rootCmd.Execute())
		configForce = false
	})
}

func TestWriteReports(t *testing.T) {
	t.Run("Should name one file per source when several reports are written", func(t *testing.T) {
		dir := t.TempDir()
		reports := []*report.Report{
			{RunID: "aaaaaaaa-1111", Document: report.DocumentInfo{Source: "in/lease.txt"}},
			{RunID: "bbbbbbbb-2222", Document: report.DocumentInfo{Source: "in/brief.pdf"}},
		}
		require.NoError(t, writeReports(reports, report.FormatJSON, dir))
		assert.FileExists(t, filepath.Join(dir, "lease.aaaaaaaa.json"))
		assert.FileExists(t, filepath.Join(dir, "brief.bbbbbbbb.json"))
	})

	t.Run("Should treat out as a file for a single report", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "report.md")
		r := &report.Report{RunID: "cccccccc-3333", Document: report.DocumentInfo{Source: "memo.txt"}}
		require.NoError(t, writeReports([]*report.Report{r}, report.FormatMarkdown, path))
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Contains(t, string(data), "# Anonymization report: memo.txt")
	})
}

func TestPreview(t *testing.T) {
	assert.Equal(t, "a b c", preview("a\n\tb   c"))
	long := "Lorem ipsum dolor sit amet, consectetur adipiscing elit, sed do"
	assert.Equal(t, long[:previewRunes]+"...", preview(long))
}
