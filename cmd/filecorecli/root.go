// Package main is a small command-line harness over the library's core
// operations, exactly as spec.md §6 describes: self-test, rename, and
// thumbnail, each exiting 0 on success and non-zero otherwise, with no
// interactive input. It exists for smoke-testing the module from a
// terminal or a CI job, not as the module's primary interface.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:           "filecorecli",
	Short:         "Exercise the file-attribute cache and task scheduler from the command line",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(selfTestCmd)
	rootCmd.AddCommand(renameCmd)
	rootCmd.AddCommand(thumbnailCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "filecorecli:", err)
		os.Exit(1)
	}
}
