package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"taiga-telemetry/internal/app"
	"taiga-telemetry/internal/config"
	"taiga-telemetry/internal/logging"
)

// Execute runs the root command.
func Execute(ctx context.Context, version, commit string) error {
	return newRootCommand(version, commit).ExecuteContext(ctx)
}

// env carries what every subcommand needs; loadConfig and openApp are swapped in tests.
type env struct {
	version    string
	jsonLogs   bool
	loadConfig func() (*config.Config, error)
	openApp    func(ctx context.Context, cfg *config.Config, version string) (*app.App, error)
}

func newRootCommand(version, commit string) *cobra.Command {
	e := &env{
		version:    version,
		loadConfig: config.Load,
		openApp:    app.New,
	}
	return e.rootCommand(commit)
}

func (e *env) rootCommand(commit string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "telemetry",
		Short: "Taiga usage telemetry",
		Long: `Collects anonymous usage aggregates of a Taiga installation and sends them
as a single "Daily telemetry" event to the RudderStack data plane.

The long-running worker (cmd/worker) sends on TELEMETRY_SCHEDULE; this tool runs
the same job once, or inspects what it would send.`,
		Version:       fmt.Sprintf("%s (commit: %s)", e.version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().BoolVar(&e.jsonLogs, "json-logs", false, "write logs as JSON lines instead of console output")

	rootCmd.AddCommand(e.sendCommand())
	rootCmd.AddCommand(e.reportCommand())
	rootCmd.AddCommand(e.instanceIDCommand())
	rootCmd.AddCommand(e.settingsCommand())
	rootCmd.AddCommand(e.relayCommand())
	return rootCmd
}

// config loads the configuration and applies its logging settings.
func (e *env) config() (*config.Config, error) {
	cfg, err := e.loadConfig()
	if err != nil {
		return nil, err
	}
	format := "console"
	if e.jsonLogs {
		format = "json"
	}
	logging.Setup(os.Stderr, cfg.LogLevel, format)
	return cfg, nil
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
