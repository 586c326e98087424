package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/codesync-dev/codesync/internal/config"
	"github.com/codesync-dev/codesync/pkg/sandbox"
	"github.com/codesync-dev/codesync/pkg/server"
	"github.com/codesync-dev/codesync/pkg/session"
)

func serveCmd() *cobra.Command {
	var (
		addr       string
		configPath string
		logLevel   string
		logJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the collaboration server",
		Long: `Start the HTTP/WebSocket server.

Configuration is read from codesync.json in the working directory (or
the file given with --config); flags override the file. A missing
config file is fine: every setting has a default.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := buildLogger(logLevel, logJSON)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)

			var cfg *config.Config
			if configPath != "" {
				cfg, err = config.LoadFile(configPath)
			} else {
				cfg, err = config.Load(".")
			}
			if err != nil {
				return err
			}
			if addr != "" {
				cfg.Address = addr
			}

			if cfg.Path() != "" {
				logger.Info("config loaded", "path", cfg.Path())
			}

			store := session.NewStore(cfg.DefaultLanguage, logger)
			executor := sandbox.New(cfg.SandboxConfig(), logger)
			srv := server.New(store, executor, cfg.ServerConfig(), logger)

			return srv.Run()
		},
	}

	cmd.Flags().StringVarP(&addr, "addr", "a", "", "Listen address (overrides config)")
	cmd.Flags().StringVarP(&configPath, "config", "c", "", "Path to codesync.json")
	cmd.Flags().StringVar(&logLevel, "log-level", "info", "Log level (debug, info, warn, error)")
	cmd.Flags().BoolVar(&logJSON, "log-json", false, "Emit logs as JSON")

	return cmd
}

func buildLogger(level string, asJSON bool) (*slog.Logger, error) {
	var lvl slog.Level
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "info":
		lvl = slog.LevelInfo
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	opts := &slog.HandlerOptions{Level: lvl}
	if asJSON {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts)), nil
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts)), nil
}
