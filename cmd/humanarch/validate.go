package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/terra-clan/humanarch/internal/content"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate a content directory",
	Long:  "Loads and validates a content directory without serving it. Without --content-dir the embedded tables are checked.",
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, _ []string) error {
	loader := content.NewLoader()
	if err := loader.Load(contentDir); err != nil {
		return fmt.Errorf("content is invalid: %w", err)
	}

	source := contentDir
	if source == "" {
		source = "embedded defaults"
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%s: ok\n", source)
	fmt.Fprintf(out, "  products:    %d\n", len(loader.Products()))
	fmt.Fprintf(out, "  questions:   %d\n", len(loader.Questions()))
	fmt.Fprintf(out, "  posts:       %d\n", len(loader.Posts()))
	fmt.Fprintf(out, "  guild seeds: %d\n", len(loader.SeedPosts()))
	return nil
}
