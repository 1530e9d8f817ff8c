package main

import (
	"fmt"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/terra-clan/humanarch/internal/app"
	"github.com/terra-clan/humanarch/internal/content"
	"github.com/terra-clan/humanarch/internal/models"
	"github.com/terra-clan/humanarch/internal/tui"
)

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Take the structural audit in the terminal",
	RunE:  runAudit,
}

var (
	auditLang  string
	auditTheme string
)

func init() {
	auditCmd.Flags().StringVarP(&auditLang, "lang", "l", "", "Language (en or ru); defaults to $LANG")
	auditCmd.Flags().StringVar(&auditTheme, "theme", string(models.DefaultTheme), "Color theme (dark or light)")

	rootCmd.AddCommand(auditCmd)
}

// resolveLanguage prefers the flag, then the locale environment
func resolveLanguage(flag string) (models.Language, error) {
	if flag != "" {
		lang, ok := models.ParseLanguage(flag)
		if !ok {
			return "", fmt.Errorf("unsupported language: %s", flag)
		}
		return lang, nil
	}
	return content.NegotiateLanguage(localeFromEnv()), nil
}

func loadContent() (*content.Loader, error) {
	loader := content.NewLoader()
	if err := loader.Load(contentDir); err != nil {
		return nil, fmt.Errorf("failed to load content: %w", err)
	}
	return loader, nil
}

func runAudit(_ *cobra.Command, _ []string) error {
	lang, err := resolveLanguage(auditLang)
	if err != nil {
		return err
	}
	theme, ok := models.ParseTheme(auditTheme)
	if !ok {
		return fmt.Errorf("unsupported theme: %s", auditTheme)
	}

	loader, err := loadContent()
	if err != nil {
		return err
	}

	shell, err := app.NewShell(uuid.New().String(), loader, app.Config{})
	if err != nil {
		return err
	}
	defer shell.Close()

	model := tui.NewAuditModel(shell, loader, lang, theme)
	if _, err := tea.NewProgram(model).Run(); err != nil {
		return fmt.Errorf("audit failed: %w", err)
	}
	return nil
}
