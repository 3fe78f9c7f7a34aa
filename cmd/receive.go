package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/config"
	logpkg "firestige.xyz/grbr/internal/log"
	"firestige.xyz/grbr/internal/source/multicast"
)

var (
	receiveGroup string
	receivePort  int
	receiveIface string
	receiveOut   string
)

var receiveCmd = &cobra.Command{
	Use:   "receive",
	Short: "Capture the GRB multicast stream into a growing file",
	Long: `Join the GRB multicast group and append every datagram payload to the
output file until interrupted. Run "grbr dispatch --follow" on the same
file to reconstruct products live.

Examples:
  grbr receive --group 239.0.0.1 --port 50000 --iface eth1 --out /data/grb.live`,
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

		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()
		if err := runReceive(ctx, multicast.Config{
			Group:     receiveGroup,
			Port:      receivePort,
			Interface: receiveIface,
		}, receiveOut); err != nil {
			exitWithError("receive failed", err)
		}
	},
}

func init() {
	receiveCmd.Flags().StringVar(&receiveGroup, "group", "", "multicast group (required)")
	receiveCmd.Flags().IntVar(&receivePort, "port", 0, "UDP port (required)")
	receiveCmd.Flags().StringVar(&receiveIface, "iface", "", "interface to join on")
	receiveCmd.Flags().StringVarP(&receiveOut, "out", "o", "", "capture file to append to (required)")
	receiveCmd.MarkFlagRequired("group")
	receiveCmd.MarkFlagRequired("port")
	receiveCmd.MarkFlagRequired("out")
}

func runReceive(ctx context.Context, cfg multicast.Config, out string) error {
	r, err := multicast.Open(cfg)
	if err != nil {
		return err
	}
	defer r.Close()

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", out, err)
	}
	return closeAfter(f, r.Run(ctx, f))
}
