package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"anonlab/internal/anonymize"
	"anonlab/internal/pipeline"
	"anonlab/internal/report"
	"anonlab/internal/tui"
	"anonlab/pkg/logger"
)

var (
	runStrategy   string
	runGuidelines string
	runCorpus     []string
	runFormat     string
	runOut        string
	runTUI        bool
)

var runCmd = &cobra.Command{
	Use:   "run FILE...",
	Short: "Anonymize documents, test the result and write a report",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		strategy, guidelines, err := strategyFromFlags(cmd)
		if err != nil {
			return err
		}
		format, err := formatFromFlags(cmd)
		if err != nil {
			return err
		}
		svc, err := pipeline.FromConfig(appCfg, nil)
		if err != nil {
			return err
		}
		if len(runCorpus) > 0 {
			if err := svc.AddToCorpus(ctx, runCorpus); err != nil {
				logger.FromContext(ctx).Warn("some corpus documents were skipped", "error", err)
			}
		}
		reports, runErr := svc.Run(ctx, args, strategy, guidelines)
		if len(reports) == 0 {
			return runErr
		}
		if runTUI {
			if _, err := tea.NewProgram(tui.New(reports...), tea.WithContext(ctx)).Run(); err != nil {
				return err
			}
			return runErr
		}
		if err := writeReports(reports, format, runOut); err != nil {
			return err
		}
		return runErr
	},
}

func init() {
	runCmd.Flags().StringVarP(&runStrategy, "strategy", "s", "", "anonymization strategy (default from config)")
	runCmd.Flags().StringVarP(&runGuidelines, "guidelines", "g", "", "guidelines for the custom-guided strategy")
	runCmd.Flags().StringSliceVar(&runCorpus, "corpus", nil, "reference documents for the cross-reference test")
	runCmd.Flags().StringVarP(&runFormat, "format", "f", "", "report format: json, yaml, md, html (default from config)")
	runCmd.Flags().StringVarP(&runOut, "out", "o", "", "report file, or directory when several files are given (default stdout)")
	runCmd.Flags().BoolVar(&runTUI, "tui", false, "browse the reports interactively")
	rootCmd.AddCommand(runCmd)
}

func strategyFromFlags(cmd *cobra.Command) (anonymize.Strategy, string, error) {
	name := appCfg.Anonymization.Strategy
	if cmd.Flags().Changed("strategy") {
		name = runStrategy
	}
	guidelines := appCfg.Anonymization.Guidelines
	if cmd.Flags().Changed("guidelines") {
		guidelines = runGuidelines
	}
	st, err := anonymize.ParseStrategy(name)
	if err != nil {
		return "", "", err
	}
	return st, guidelines, st.Validate(guidelines)
}

func formatFromFlags(cmd *cobra.Command) (report.Format, error) {
	if cmd.Flags().Changed("format") {
		return report.ParseFormat(runFormat)
	}
	return report.ParseFormat(appCfg.Report.Format)
}

// writeReports prints to stdout when out is empty. With several reports out
// is a directory and each file is named after its source.
func writeReports(reports []*report.Report, format report.Format, out string) error {
	if out == "" {
		for _, r := range reports {
			if err := report.Write(os.Stdout, r, format); err != nil {
				return err
			}
		}
		return nil
	}
	if len(reports) == 1 {
		return saveReport(out, reports[0], format)
	}
	for _, r := range reports {
		base := strings.TrimSuffix(filepath.Base(r.Document.Source), filepath.Ext(r.Document.Source))
		path := filepath.Join(out, fmt.Sprintf("%s.%s.%s", base, r.RunID[:8], format))
		if err := saveReport(path, r, format); err != nil {
			return err
		}
	}
	return nil
}

func saveReport(path string, doc report.Document, format report.Format) error {
	if err := report.Save(path, doc, format); err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "report written to %s\n", path)
	return nil
}
