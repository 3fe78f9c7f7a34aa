package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/config"
	"firestige.xyz/grbr/internal/core/decoder"
	"firestige.xyz/grbr/internal/daemon"
	"firestige.xyz/grbr/internal/dispatch"
	logpkg "firestige.xyz/grbr/internal/log"
	"firestige.xyz/grbr/internal/source"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Check packet stream files without reconstructing",
	Long: `Read packet stream files through the integrity gate and print per file
statistics: bundles, packets, CRC failures, header validation errors,
sequence gaps and bundles per APID.

The exit status is 1 when any file has an integrity problem.

Examples:
  grbr validate grb.dat
  grbr validate --log-level error *.dat`,
	Args: cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := config.Load(configFile)
		if err != nil {
			exitWithError("failed to load config", err)
		}
		if logLevel != "" {
			cfg.Log.Level = logLevel
		}
		if err := logpkg.Init(cfg.Log); err != nil {
			exitWithError("failed to initialize logging", err)
		}
		if err := runValidate(cmd.Context(), daemon.Reassembly(cfg), args, os.Stdout); err != nil {
			exitWithError("validation failed", err)
		}
	},
}

func runValidate(ctx context.Context, cfg decoder.ReassemblyConfig, paths []string, w io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	var bad int
	for i, path := range paths {
		if i > 0 {
			fmt.Fprintln(w)
		}
		src, err := source.OpenFile(path)
		if err != nil {
			return err
		}
		rep, err := dispatch.Validate(ctx, src, cfg)
		src.Close()
		if _, werr := rep.WriteTo(w); werr != nil {
			return werr
		}
		if err != nil {
			fmt.Fprintf(w, "INVALID: %v\n", err)
			bad++
			continue
		}
		if !rep.Clean() {
			bad++
		}
	}
	if bad > 0 {
		return fmt.Errorf("%d of %d files have integrity problems", bad, len(paths))
	}
	return nil
}
