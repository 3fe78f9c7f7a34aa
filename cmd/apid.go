package cmd

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"firestige.xyz/grbr/internal/apid"
)

var (
	apidHex   bool
	apidTable bool
)

var apidCmd = &cobra.Command{
	Use:   "apid [APID...]",
	Short: "Look up GRB application process identifiers",
	Long: `Print the instrument, class and product name of APIDs, or the whole
APID table with --table. APIDs are decimal unless prefixed with 0x or
-x is given.

Examples:
  grbr apid 0x301
  grbr apid -x 108 118
  grbr apid --table`,
	Run: func(cmd *cobra.Command, args []string) {
		if err := runAPID(args, apidHex, apidTable, os.Stdout); err != nil {
			exitWithError("apid lookup failed", err)
		}
	},
}

func init() {
	apidCmd.Flags().BoolVarP(&apidHex, "hex", "x", false, "parse APIDs as hexadecimal")
	apidCmd.Flags().BoolVar(&apidTable, "table", false, "print the whole APID table")
}

func runAPID(args []string, hex, table bool, w io.Writer) error {
	if table {
		for _, e := range apid.Table() {
			fmt.Fprintln(w, e)
		}
		return nil
	}
	if len(args) == 0 {
		return fmt.Errorf("no APID given")
	}
	for _, arg := range args {
		a, err := parseAPID(arg, hex)
		if err != nil {
			return err
		}
		e, ok := apid.Lookup(a)
		if !ok {
			e.Name = "(unassigned)"
		}
		fmt.Fprintln(w, e)
	}
	return nil
}

func parseAPID(s string, hex bool) (uint16, error) {
	base := 0
	if hex {
		base = 16
		s = strings.TrimPrefix(strings.ToLower(s), "0x")
	}
	v, err := strconv.ParseUint(s, base, 11)
	if err != nil {
		return 0, fmt.Errorf("invalid APID %q: %w", s, err)
	}
	return uint16(v), nil
}
