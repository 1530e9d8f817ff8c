package api

import (
	"context"

	"github.com/terra-clan/humanarch/internal/app"
)

type contextKey string

const shellContextKey contextKey = "session_shell"

// ShellFromContext extracts the session shell from context
func ShellFromContext(ctx context.Context) *app.Shell {
	shell, ok := ctx.Value(shellContextKey).(*app.Shell)
	if !ok {
		return nil
	}
	return shell
}

// ContextWithShell adds the session shell to context
func ContextWithShell(ctx context.Context, shell *app.Shell) context.Context {
	return context.WithValue(ctx, shellContextKey, shell)
}
