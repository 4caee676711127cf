package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"anonlab/internal/pipeline"
)

const previewRunes = 40

var chunkCmd = &cobra.Command{
	Use:   "chunk FILE",
	Short: "Print the chunk plan of a document without anonymizing it",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := pipeline.FromConfig(appCfg, nil)
		if err != nil {
			return err
		}
		in, err := svc.Ingest(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		chunks, err := svc.Plan(in.Document)
		if err != nil {
			return err
		}
		t := table.New().
			Border(lipgloss.NormalBorder()).
			Headers("#", "start", "end", "tokens", "overlap", "text")
		for _, c := range chunks {
			t.Row(
				strconv.Itoa(c.Index+1),
				strconv.Itoa(c.Start),
				strconv.Itoa(c.End),
				strconv.Itoa(c.TokenCount),
				strconv.Itoa(c.OverlapTokens),
				preview(c.Text(in.Document)),
			)
		}
		fmt.Printf("%s: %d words, %d tokens, %d chunks (budget %d, overlap %d)\n",
			in.Document.Source, in.Document.WordCount, in.Document.TokenCount, len(chunks),
			appCfg.Chunker.BudgetTokens, appCfg.Chunker.OverlapTokens)
		fmt.Println(t.Render())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(chunkCmd)
}

func preview(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= previewRunes {
		return s
	}
	return string(r[:previewRunes]) + "..."
}
