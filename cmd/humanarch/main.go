// Package main provides the humanarch entry point: the HTTP API server and
// the terminal tools built on the same content tables.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:          "humanarch",
	Short:        "Human Architecture site engine",
	Long:         "humanarch serves the Human Architecture site state (routing, structural audit, library checkout and guild board) over HTTP, and runs the audit and journal in the terminal.",
	SilenceUsage: true,
}

var contentDir string

func init() {
	rootCmd.PersistentFlags().StringVar(&contentDir, "content-dir", "", "Directory with content tables (defaults to the embedded set)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
