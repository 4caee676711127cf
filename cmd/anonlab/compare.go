package main

import (
	"os"

	"github.com/spf13/cobra"

	"anonlab/internal/anonymize"
	"anonlab/internal/pipeline"
	"anonlab/internal/report"
)

var (
	compareStrategies []string
	compareGuidelines string
	compareFormat     string
	compareOut        string
)

var compareCmd = &cobra.Command{
	Use:   "compare FILE",
	Short: "Run one document through several strategies and rank them",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		strategies := make([]anonymize.Strategy, 0, len(compareStrategies))
		for _, s := range compareStrategies {
			st, err := anonymize.ParseStrategy(s)
			if err != nil {
				return err
			}
			strategies = append(strategies, st)
		}
		format := report.FormatMarkdown
		if cmd.Flags().Changed("format") {
			f, err := report.ParseFormat(compareFormat)
			if err != nil {
				return err
			}
			format = f
		}
		svc, err := pipeline.FromConfig(appCfg, nil)
		if err != nil {
			return err
		}
		cmp, err := svc.Compare(cmd.Context(), args[0], strategies, compareGuidelines)
		if err != nil {
			return err
		}
		if compareOut != "" {
			return saveReport(compareOut, cmp, format)
		}
		return report.Write(os.Stdout, cmp, format)
	},
}

func init() {
	compareCmd.Flags().StringSliceVar(&compareStrategies, "strategies",
		[]string{string(anonymize.LiteralRedaction), string(anonymize.StrategyPreserving), string(anonymize.Abstraction)},
		"strategies to compare")
	compareCmd.Flags().StringVarP(&compareGuidelines, "guidelines", "g", "", "guidelines for the custom-guided strategy")
	compareCmd.Flags().StringVarP(&compareFormat, "format", "f", "md", "output format: json, yaml, md, html")
	compareCmd.Flags().StringVarP(&compareOut, "out", "o", "", "output file (default stdout)")
	rootCmd.AddCommand(compareCmd)
}
