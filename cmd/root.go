// Package cmd implements CLI commands using cobra framework.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/daemon"
)

var (
	// Global flags
	configFile string
	logLevel   string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "grbr",
	Short: "GRB-R - GOES Rebroadcast packet reassembly and product reconstruction",
	Long: `grbr reassembles the CCSDS space packets of the GOES Rebroadcast (GRB)
downlink and reconstructs complete instrument products.

Packets are integrity checked, bundled, and routed by product key to one
worker per product. A worker seals its product when the product metadata
arrives, or abandons it after a period of inactivity.`,
	Version:       daemon.Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "",
		"config file path (defaults and GRBR_* environment variables when empty)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"override log.level (debug, info, warn, error)")

	// Add subcommands
	rootCmd.AddCommand(dispatchCmd)
	rootCmd.AddCommand(reconstructCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(apidCmd)
	rootCmd.AddCommand(sendCmd)
	rootCmd.AddCommand(receiveCmd)
}

// exitWithError prints error message and exits with code 1
func exitWithError(msg string, err error) {
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s: %v\n", msg, err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %s\n", msg)
	}
	os.Exit(1)
}
