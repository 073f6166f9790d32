package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"contentgraph/backend/internal/app"
	"contentgraph/backend/pkg/config"
	"contentgraph/backend/pkg/logger"
)

var (
	outputFormat string
	contentDir   string
	storeBackend string
)

var rootCmd = &cobra.Command{
	Use:   "contentgraph",
	Short: "Inspect content relationships, hierarchies, queries and menus",
	Long: `Reads a content directory (or the configured entry store) and prints
relationship graphs, collection hierarchies, query results and menus.

Configuration comes from the environment and .env, as for the server.
Flags override CONTENT_DIR and STORE_BACKEND.

Examples:
  contentgraph graph
  contentgraph relations blog hello-world
  contentgraph tree docs
  contentgraph query blog --where status=published --sort date:date:desc --limit 5
  contentgraph menu main`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "json", "output format: json or yaml")
	rootCmd.PersistentFlags().StringVar(&contentDir, "content", "", "content directory (overrides CONTENT_DIR)")
	rootCmd.PersistentFlags().StringVar(&storeBackend, "store", "", "entry store backend: fs, memory or neo4j")

	rootCmd.AddCommand(graphCmd, relationsCmd, treeCmd, queryCmd, menuCmd, seedCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the environment and applies flag overrides
func loadConfig() (*config.Config, error) {
	if contentDir != "" {
		_ = os.Setenv("CONTENT_DIR", contentDir)
	}
	if storeBackend != "" {
		_ = os.Setenv("STORE_BACKEND", storeBackend)
	}
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if err := logger.InitWithLevel(cfg.Env, cfg.LogLevel); err != nil {
		return nil, fmt.Errorf("failed to initialize logger: %w", err)
	}
	return cfg, nil
}

// withApp builds the application bundle for one command run
func withApp(ctx context.Context, fn func(*app.App) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	defer logger.Sync()

	a, err := app.New(ctx, cfg, logger.Get())
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			a.Logger.Warn("Failed to close entry store", zap.Error(err))
		}
	}()
	return fn(a)
}

func printResult(w io.Writer, v any) error {
	switch outputFormat {
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		defer enc.Close()
		return enc.Encode(toPlain(v))
	case "json", "":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	}
	return fmt.Errorf("unknown output format %q", outputFormat)
}

// toPlain round-trips through JSON so YAML output uses the JSON field names
func toPlain(v any) any {
	raw, err := json.Marshal(v)
	if err != nil {
		return v
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return v
	}
	return out
}
