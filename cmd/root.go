// Package cmd defines and implements the CLI commands for the turboduck executable.
package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/turboduck/internal/api"
	"github.com/JakeFAU/turboduck/internal/config"
	"github.com/JakeFAU/turboduck/internal/server"
)

// appKeyType is the key for storing the App in the context.
type appKeyType string

const appKey appKeyType = "app"

// App defines the application interface that commands use.
type App interface {
	Gateway() api.Gateway
	Run(ctx context.Context) error
	Close(ctx context.Context) error
}

// appFactory builds the application from loaded configuration.
type appFactory func(ctx context.Context, cfg *config.Config) (App, error)

type serverApp struct {
	*server.App
}

func (a serverApp) Gateway() api.Gateway { return a.App.Gateway() }

func buildServerApp(ctx context.Context, cfg *config.Config) (App, error) {
	app, err := server.Build(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return serverApp{App: app}, nil
}

// newRootCmd creates and configures the root command.
func newRootCmd(newApp appFactory) *cobra.Command {
	var cfgFile string
	cmd := &cobra.Command{
		Use:   "turboduck",
		Short: "A caching, rate-limited search gateway over DuckDuckGo.",
		Long: `turboduck aggregates DuckDuckGo web, news, image and video results behind
a single JSON API with per-client admission control, a TTL cache, result
deduplication and optional page enrichment. The search, extract and
transcript subcommands run the same pipeline once and print JSON.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			appInstance, err := newApp(cmd.Context(), &cfg)
			if err != nil {
				return fmt.Errorf("failed to initialize application services: %w", err)
			}
			cmd.SetContext(context.WithValue(cmd.Context(), appKey, appInstance))
			return nil
		},

		PersistentPostRunE: func(cmd *cobra.Command, _ []string) error {
			if appInstance, ok := cmd.Context().Value(appKey).(App); ok && appInstance != nil {
				return appInstance.Close(context.WithoutCancel(cmd.Context()))
			}
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (YAML, TOML or JSON); env TURBODUCK_* overrides")

	cmd.AddCommand(newServeCmd(), newSearchCmd(), newExtractCmd(), newTranscriptCmd())
	return cmd
}

// Execute is the main entry point.
func Execute() {
	if err := newRootCmd(buildServerApp).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Command execution failed:", err)
		os.Exit(1)
	}
}

func resolveApp(ctx context.Context) (App, error) {
	appInstance, ok := ctx.Value(appKey).(App)
	if !ok || appInstance == nil {
		return nil, errors.New("application services not initialized")
	}
	return appInstance, nil
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
