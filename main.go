package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"oxidecast/config"
	qhttp "oxidecast/http"
	"oxidecast/journal"
	"oxidecast/logging"
	"oxidecast/registry"
	"oxidecast/watch"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

const shutdownTimeout = 10 * time.Second

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

// app carries state shared by every command once the config is loaded.
type app struct {
	configPath string
	cfg        *config.Config
}

func newRootCmd() *cobra.Command {
	a := &app{}
	root := &cobra.Command{
		Use:          "oxidecast",
		Short:        "Predict oxide composition from spectral samples",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if cmd.Name() == "version" {
				return nil
			}
			cfg, err := config.Load(a.configPath)
			if err != nil {
				return err
			}
			a.cfg = cfg
			return nil
		},
		RunE: a.runServe,
	}
	root.PersistentFlags().StringVarP(&a.configPath, "config", "c", "", "config file (default ./config.yaml when present)")

	root.AddCommand(
		&cobra.Command{
			Use:   "serve",
			Short: "Serve POST /predict",
			Args:  cobra.NoArgs,
			RunE:  a.runServe,
		},
		a.checkCmd(),
		a.predictCmd(),
		a.journalCmd(),
		&cobra.Command{
			Use:   "version",
			Short: "Print the version",
			Run: func(cmd *cobra.Command, args []string) {
				fmt.Fprintln(cmd.OutOrStdout(), "oxidecast", version)
			},
		},
	)
	return root
}

func (a *app) runServe(cmd *cobra.Command, args []string) error {
	// 1. Logger
	logger, err := logging.New(a.cfg.Log)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	// 2. Models; the service never starts without all four
	reg, err := registry.Load(a.cfg.Models.Sources())
	if err != nil {
		logger.Error("failed to load models", zap.String("dir", a.cfg.Models.Dir), zap.Error(err))
		return fmt.Errorf("load models: %w", err)
	}
	logger.Info("models loaded",
		zap.Strings("oxides", reg.Labels()),
		zap.Int("n_features", reg.NumFeatures()))

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	opts := []qhttp.HandlerOption{
		qhttp.WithLogger(logger),
		qhttp.WithLegacyErrors(a.cfg.HTTP.LegacyErrors),
	}

	// 3. Optional journal and artifact watcher
	if a.cfg.Journal.Enabled {
		store, err := journal.Open(a.cfg.Journal.Path)
		if err != nil {
			return fmt.Errorf("open journal: %w", err)
		}
		defer store.Close()
		opts = append(opts, qhttp.WithJournal(store))
		logger.Info("journal enabled", zap.String("path", a.cfg.Journal.Path))
	}
	if a.cfg.Watch.Enabled {
		w, err := watch.New(artifactPaths(a.cfg.Models.Sources()), logger, nil)
		if err != nil {
			return fmt.Errorf("watch artifacts: %w", err)
		}
		go w.Run(ctx)
	}

	// 4. HTTP server
	server := qhttp.NewServer(a.cfg.Server, qhttp.NewHandler(reg, opts...), logger, a.cfg.Metrics.Enabled)
	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	// 5. Graceful shutdown
	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Stop(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	logger.Info("exiting")
	return nil
}

func artifactPaths(sources []registry.Source) []string {
	paths := make([]string, 0, 2*len(sources))
	for _, s := range sources {
		paths = append(paths, s.ModelPath, s.ScalerPath)
	}
	return paths
}
