package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kilianp07/flipnotify/app"
	"github.com/kilianp07/flipnotify/config"
	"github.com/kilianp07/flipnotify/infra/logger"
)

var (
	cfgPath  string
	logLevel string
	listen   string
)

var rootCmd = &cobra.Command{
	Use:   "flipnotify",
	Short: "Flip notification dispatcher",
	Long: `flipnotify receives candidate flip batches from the configured source,
filters them per connected session and delivers them over websocket.

The configuration file (yaml or json) can be overridden by K_ prefixed
environment variables, nested keys separated by a double underscore:

  K_SERVER__ADDR=:9090 K_LOGGING__LEVEL=debug flipnotify -c config.yaml`,
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.PersistentFlags()
	f.StringVarP(&cfgPath, "config", "c", "config.yaml", "configuration file (.yaml, .yml or .json)")
	f.StringVar(&logLevel, "log-level", "", "override logging.level (trace, debug, info, warn, error)")
	f.StringVar(&listen, "addr", "", "override server.addr")
}

// Execute runs the CLI.
func Execute() error { return rootCmd.Execute() }

// loadConfig reads cfgPath and applies the command line overrides on top of
// the file and environment values.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}
	if listen != "" {
		cfg.Server.Addr = listen
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("command line overrides: %w", err)
	}
	return cfg, nil
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("main").Errorf("service close: %v", err)
		}
	}()
	return svc.Run(ctx)
}
