package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"

	"github.com/bandwidth-hero/bandwidth-hero-proxy/internal/domain/model"
)

// Version is the application version
const Version = "1.0.0"

var versionShort bool

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Show version",
	Long:  `Print the proxy version, the websocket protocol version and the Go runtime it was built with.`,
	Run: func(cmd *cobra.Command, args []string) {
		out := cmd.OutOrStdout()
		if versionShort {
			fmt.Fprintln(out, Version)
			return
		}
		fmt.Fprintf(out, "bandwidth-hero-proxy %s\n", Version)
		fmt.Fprintf(out, "  websocket protocol: %s\n", model.ProtocolVersion)
		fmt.Fprintf(out, "  user agent:         %s\n", model.UserAgent)
		fmt.Fprintf(out, "  go:                 %s %s/%s\n", runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	versionCmd.Flags().BoolVar(&versionShort, "short", false, "Print only the version number")
	RootCmd.AddCommand(versionCmd)
}
