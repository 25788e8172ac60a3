package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/DasSecurity-HatLab/roundworm/internal/config"
	"github.com/DasSecurity-HatLab/roundworm/internal/core/agent"
	pkgconfig "github.com/DasSecurity-HatLab/roundworm/pkg/config"
	legacy "github.com/DasSecurity-HatLab/roundworm/pkg/logger/legacy"
	"github.com/DasSecurity-HatLab/roundworm/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

const syslogTag = "roundworm"

// options holds the command line. Only flags that were set override the
// configuration file and environment.
type options struct {
	configPath string
	host       string
	port       uint16
	roots      string
	intervalMS int
	daemon     bool
	logLevel   string
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "roundworm",
		Short: "Host telemetry agent for attack/defense competitions",
		Long: `RoundWorm watches directory trees for file changes and polls the process
table for new processes, streaming both as newline-delimited JSON to a
collector over TCP.`,
		Example: `  roundworm -s 10.0.0.5 -p 8023 -w "/var/www;/home/ctf" -i 200`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return run(cmd, opts)
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.configPath, "config", "", "path to configuration file")
	flags.StringVarP(&opts.host, "server", "s", "", "collector host (default 127.0.0.1)")
	flags.Uint16VarP(&opts.port, "port", "p", 0, "collector port (default 8023)")
	flags.StringVarP(&opts.roots, "watch", "w", "", `directories to watch, separated by ";" (default "/tmp")`)
	flags.IntVarP(&opts.intervalMS, "interval", "i", 0, "process poll interval in milliseconds (default 100)")
	flags.BoolVarP(&opts.daemon, "daemon", "d", false, "log to syslog instead of stdout")
	flags.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	return cmd
}

// overrides turns the flags that were given into a configuration override.
func overrides(cmd *cobra.Command, opts *options) config.Override {
	flags := cmd.Flags()
	return func(cfg *models.Config) {
		if flags.Changed("server") {
			cfg.Collector.Host = opts.host
		}
		if flags.Changed("port") {
			cfg.Collector.Port = opts.port
		}
		if flags.Changed("watch") {
			cfg.Watcher.Roots = pkgconfig.ParseRoots(opts.roots)
		}
		if flags.Changed("interval") {
			cfg.Monitor.PollInterval = time.Duration(opts.intervalMS) * time.Millisecond
		}
		if flags.Changed("daemon") {
			cfg.Logging.Syslog = opts.daemon
		}
		if flags.Changed("log-level") {
			cfg.Logging.Level = opts.logLevel
		}
	}
}

func run(cmd *cobra.Command, opts *options) error {
	loader := config.NewLoader(opts.configPath)
	loader.AddOverride(overrides(cmd, opts))
	cfg, err := loader.Load()
	if err != nil {
		legacy.L.Fatalf("Failed to load initial configuration: %v", err)
	}

	if cfg.Logging.Syslog {
		if err := legacy.UseSyslog(syslogTag); err != nil {
			legacy.L.WithError(err).Warn("Syslog unavailable, logging to stdout")
		}
	}
	legacy.SetLevel(cfg.Logging.Level)
	legacy.L.Info("RoundWorm is starting...")

	a, err := agent.New(cfg)
	if err != nil {
		legacy.L.Fatalf("Failed to start agent: %v", err)
	}
	defer a.Close()

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	if opts.configPath != "" {
		configWatcher, err := config.NewWatcher(loader, a.UpdateConfig)
		if err != nil {
			legacy.L.WithError(err).Warn("Failed to create configuration watcher, hot-reload will be unavailable")
		} else if err := configWatcher.Start(ctx); err != nil {
			legacy.L.WithError(err).Warn("Failed to start configuration watcher, hot-reload will be unavailable")
		} else {
			defer configWatcher.Stop()
		}
	}

	go handleSignals(ctx, cancel)

	return a.Run(ctx)
}

func handleSignals(ctx context.Context, cancel context.CancelFunc) {
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(sigChan)

	select {
	case sig := <-sigChan:
		legacy.L.WithFields(logrus.Fields{
			"signal": sig.String(),
		}).Info("Received shutdown signal, preparing graceful shutdown...")
		cancel()
	case <-ctx.Done():
	}
}
