package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/daemon"
)

var reconstructRefs string

var reconstructCmd = &cobra.Command{
	Use:   "reconstruct",
	Short: "Reconstruct products from a reference rendezvous file",
	Long: `Read fixed-size bundle references (offset and source path) written by
another process and reconstruct the products they point at. The sources
are followed as growing files. The command ends once no reference arrives
within the worker timeout.

Examples:
  grbr reconstruct --refs /run/grbr/refs`,
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(configFile, daemon.Options{Follow: true, LogLevel: logLevel})
		if err != nil {
			return err
		}
		return runReconstruct(eng, reconstructRefs)
	},
}

func init() {
	reconstructCmd.Flags().StringVar(&reconstructRefs, "refs", "",
		"reference file to read (required)")
	reconstructCmd.MarkFlagRequired("refs")
}

func runReconstruct(eng engine, refs string) error {
	if err := eng.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return eng.Run(func() error { return eng.Reconstruct(refs) })
}
