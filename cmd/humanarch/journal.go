package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"

	"github.com/terra-clan/humanarch/internal/models"
)

var journalCmd = &cobra.Command{
	Use:   "journal [slug]",
	Short: "List journal posts or read one",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runJournal,
}

var (
	journalLang  string
	journalWidth int
)

func init() {
	journalCmd.Flags().StringVarP(&journalLang, "lang", "l", "", "Language (en or ru); defaults to $LANG")
	journalCmd.Flags().IntVar(&journalWidth, "width", 80, "Word wrap width")

	rootCmd.AddCommand(journalCmd)
}

// localeFromEnv turns LC_ALL/LANG (ru_RU.UTF-8) into a language tag (ru-RU)
func localeFromEnv() string {
	for _, key := range []string{"LC_ALL", "LC_MESSAGES", "LANG"} {
		if v := os.Getenv(key); v != "" && v != "C" && v != "POSIX" {
			v, _, _ = strings.Cut(v, ".")
			return strings.ReplaceAll(v, "_", "-")
		}
	}
	return ""
}

func renderPost(post models.Post, lang models.Language, width int) (string, error) {
	renderer, err := glamour.NewTermRenderer(
		glamour.WithAutoStyle(),
		glamour.WithWordWrap(width),
	)
	if err != nil {
		return "", fmt.Errorf("failed to create renderer: %w", err)
	}

	var md strings.Builder
	fmt.Fprintf(&md, "# %s\n\n", post.Title.Get(lang))
	fmt.Fprintf(&md, "*%s*", post.Date)
	if len(post.Tags) > 0 {
		fmt.Fprintf(&md, " · %s", strings.Join(post.Tags, ", "))
	}
	md.WriteString("\n\n")
	md.WriteString(post.Body)

	return renderer.Render(md.String())
}

func runJournal(cmd *cobra.Command, args []string) error {
	lang, err := resolveLanguage(journalLang)
	if err != nil {
		return err
	}

	loader, err := loadContent()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()

	if len(args) == 0 {
		for _, post := range loader.Posts() {
			fmt.Fprintf(out, "%s  %-28s %s\n", post.Date, post.Slug, post.Title.Get(lang))
		}
		return nil
	}

	post, err := loader.Post(args[0])
	if err != nil {
		return err
	}

	rendered, err := renderPost(post, lang, journalWidth)
	if err != nil {
		return err
	}
	fmt.Fprint(out, rendered)
	return nil
}
