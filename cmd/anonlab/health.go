package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"anonlab/internal/pipeline"
)

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check that the inference service is reachable and the model is available",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		svc, err := pipeline.FromConfig(appCfg, nil)
		if err != nil {
			return err
		}
		h, err := svc.Health(cmd.Context())
		if err != nil {
			return fmt.Errorf("%s: %w", h.Generator, err)
		}
		fmt.Printf("%s: ok\n", h.Generator)
		if len(h.Models) > 0 {
			fmt.Printf("models: %s\n", strings.Join(h.Models, ", "))
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(healthCmd)
}
