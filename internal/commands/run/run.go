// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package run

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/tombee/shepherd/internal/config"
	"github.com/tombee/shepherd/internal/history"
	"github.com/tombee/shepherd/internal/keeper"
	"github.com/tombee/shepherd/internal/log"
	"github.com/tombee/shepherd/pkg/supervisor"
)

// NewRunCommand creates the run command.
func NewRunCommand() *cobra.Command {
	var (
		configPath  string
		metricsAddr string
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Supervise a process described by a config file",
		Long: `Launch the configured process and supervise it until it reaches a
terminal state or shepherd receives SIGINT/SIGTERM, in which case the
child is stopped gracefully within the configured grace period. The
child's stdout and stderr are forwarded line by line.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			if metricsAddr != "" {
				cfg.Metrics.Addr = metricsAddr
			}
			applyLogOverrides(cmd.Flags(), cfg)
			return runSupervised(cmd.Context(), cfg)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", "shepherd.yaml", "Path to the supervision config file")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Listen address for the Prometheus /metrics endpoint")
	cmd.Flags().String("log-level", "", "Override log level (debug, info, warn, error)")
	cmd.Flags().String("log-format", "", "Override log format (text, json)")
	return cmd
}

// applyLogOverrides lets explicit flags win over both the environment and
// the config file.
func applyLogOverrides(flags *pflag.FlagSet, cfg *config.Config) {
	if flags.Changed("log-level") {
		cfg.Log.Level, _ = flags.GetString("log-level")
	}
	if flags.Changed("log-format") {
		cfg.Log.Format, _ = flags.GetString("log-format")
	}
}

func runSupervised(parent context.Context, cfg *config.Config) error {
	logCfg := log.FromEnv()
	if cfg.Log.Level != "" {
		logCfg.Level = cfg.Log.Level
	}
	if cfg.Log.Format != "" {
		logCfg.Format = log.Format(cfg.Log.Format)
	}
	logger := log.New(logCfg)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sup := supervisor.New(cfg.Supervisor()).
		WithLogger(logger).
		WithOutput(func(line supervisor.OutputLine) {
			switch line.Stream {
			case supervisor.Stderr:
				fmt.Fprintln(os.Stderr, line.Text)
			default:
				fmt.Fprintln(os.Stdout, line.Text)
			}
		})

	opts := keeper.Options{
		GracePeriod:          cfg.Stop.GracePeriod.Std(),
		Restart:              cfg.Restart.Enabled,
		MaxRestartsPerMinute: cfg.Restart.MaxPerMinute,
		WatchExecutable:      cfg.Restart.WatchExecutable,
		PIDFile:              cfg.PIDFile,
		Logger:               logger,
	}

	if cfg.History.Path != "" {
		store, err := history.Open(cfg.History.Path)
		if err != nil {
			return fmt.Errorf("failed to open history store: %w", err)
		}
		defer store.Close()
		opts.Recorder = store
	}

	if cfg.Metrics.Addr != "" {
		shutdown := serveMetrics(cfg.Metrics.Addr, logger)
		defer shutdown()
	}

	state, err := keeper.New(sup, opts).Run(ctx)
	switch {
	case err == nil:
	case errors.Is(err, context.Canceled):
		// Operator-requested shutdown is a clean exit.
	default:
		return err
	}

	if state == supervisor.ExitedWithError {
		if info := sup.LastExitInfo(); info != nil {
			return fmt.Errorf("process exited with code %d", info.Code)
		}
		return fmt.Errorf("process exited with an error")
	}
	return nil
}

// serveMetrics exposes /metrics on addr and returns a shutdown func.
func serveMetrics(addr string, logger *slog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	server := &http.Server{Addr: addr, Handler: mux}

	go func() {
		logger.Info("serving metrics", "addr", addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", "error", err)
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
