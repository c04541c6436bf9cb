package cmd

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

// Stamped at build time via -ldflags -X.
var (
	buildVersion = "0.3.0"
	buildCommit  = "none"
	buildDate    = "unknown"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("warden %s (commit %s, built %s, %s %s/%s)\n",
			buildVersion, buildCommit, buildDate,
			runtime.Version(), runtime.GOOS, runtime.GOARCH)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
