package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/daemon"
)

var dispatchFollow bool

var dispatchCmd = &cobra.Command{
	Use:   "dispatch FILE...",
	Short: "Reconstruct products from packet stream files",
	Long: `Scan one or more GRB packet stream files and reconstruct every product
they contain. Each file is scanned by its own dispatcher.

With --follow the files are treated as live captures that are still
growing: reads past the end wait for more data until the worker timeout
passes without a new bundle.

Examples:
  grbr dispatch grb.dat
  grbr dispatch -c grbr.yaml --follow /data/capture/grb.live`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		eng, err := newEngine(configFile, daemon.Options{Follow: dispatchFollow, LogLevel: logLevel})
		if err != nil {
			return err
		}
		return runDispatch(eng, args)
	},
}

func init() {
	dispatchCmd.Flags().BoolVarP(&dispatchFollow, "follow", "f", false,
		"follow growing files")
}

func runDispatch(eng engine, paths []string) error {
	if err := eng.Start(); err != nil {
		return fmt.Errorf("start: %w", err)
	}
	return eng.Run(func() error { return eng.Dispatch(paths) })
}
