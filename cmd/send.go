package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/dispatch"
	"firestige.xyz/grbr/internal/source"
)

var sendSleep time.Duration

var sendCmd = &cobra.Command{
	Use:   "send IN OUT",
	Short: "Replay a packet stream file into a growing file",
	Long: `Append the bundles of IN to OUT one at a time, sleeping between bundles,
so that "grbr dispatch --follow OUT" can be exercised against recorded
data.

Examples:
  grbr send grb.dat /tmp/grb.live --sleep 10ms`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		n, err := runSend(cmd.Context(), args[0], args[1], sendSleep)
		if err != nil {
			exitWithError("send failed", err)
		}
		fmt.Printf("sent %d bundles\n", n)
	},
}

func init() {
	sendCmd.Flags().DurationVar(&sendSleep, "sleep", 0, "pause between bundles")
}

func runSend(ctx context.Context, in, out string, sleep time.Duration) (int, error) {
	if ctx == nil {
		ctx = context.Background()
	}
	src, err := source.OpenFile(in)
	if err != nil {
		return 0, err
	}
	defer src.Close()

	f, err := os.OpenFile(out, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return 0, fmt.Errorf("open %s: %w", out, err)
	}
	n, err := dispatch.Replay(ctx, src, f, sleep)
	return n, closeAfter(f, err)
}

func closeAfter(c io.Closer, err error) error {
	if cerr := c.Close(); err == nil {
		return cerr
	}
	return err
}
