package main

import (
	"fmt"
	"os"

	"github.com/ehrlich-b/cinch/internal/version"
	"github.com/spf13/cobra"
)

func main() {
	rootCmd := &cobra.Command{
		Use:     "cim-monitor",
		Short:   "Crawl a code-forge's CI metadata into a local object store",
		Version: version.Version,
	}

	rootCmd.AddCommand(
		runCmd(),
		migrateCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
