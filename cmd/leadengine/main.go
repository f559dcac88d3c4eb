package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/leadscout/engine/internal/api"
	"github.com/leadscout/engine/internal/config"
	"github.com/leadscout/engine/internal/export"
	"github.com/leadscout/engine/internal/feed"
	"github.com/leadscout/engine/internal/feedclient"
	"github.com/leadscout/engine/internal/job"
	"github.com/leadscout/engine/internal/logging"
)

var (
	configPath string
	cfg        *config.Config
	logger     *zap.Logger
)

var rootCmd = &cobra.Command{
	Use:           "leadengine",
	Short:         "Simulated lead acquisition engine.",
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A missing .env is fine.
		_ = godotenv.Load()

		if configPath == "" {
			configPath = os.Getenv("CONFIG_FILE")
		}
		c, err := config.LoadFile(configPath)
		if err != nil {
			return err
		}
		if err := c.Validate(); err != nil {
			return fmt.Errorf("invalid config:\n%w", err)
		}
		l, err := logging.New(c.LogLevel, c.Debug)
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		cfg, logger = c, l
		return nil
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServer(cmd.Context(), cfg, logger)
	},
}

var (
	runLocation string
	runKeyword  string
	runCount    int
	runList     string
	runOut      string
)

var runCmd = &cobra.Command{
	Use:     "run",
	Short:   "Run one job locally and write its records as CSV",
	Example: "  leadengine run --location Austin --keyword bbq --out bbq.csv",
	RunE: func(cmd *cobra.Command, args []string) error {
		req := job.Request{Location: runLocation, Keyword: runKeyword, TargetCount: runCount, ListName: runList}
		return runOnce(cmd.Context(), cfg, req, runOut, logger)
	},
}

var tailJob string

var tailCmd = &cobra.Command{
	Use:     "tail <ws-url>",
	Short:   "Follow a server's activity feed",
	Example: "  leadengine tail ws://localhost:8000/ws/feed --job <id>",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTail(cmd.Context(), args[0], tailJob, logger)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to a YAML config file (default $CONFIG_FILE)")

	runCmd.Flags().StringVar(&runLocation, "location", "", "Search location")
	runCmd.Flags().StringVar(&runKeyword, "keyword", "", "Search keyword")
	runCmd.Flags().IntVar(&runCount, "count", 100, "Number of leads to collect")
	runCmd.Flags().StringVar(&runList, "list", "", "List to attach the job to on completion")
	runCmd.Flags().StringVar(&runOut, "out", "", "CSV output path (default stdout)")

	tailCmd.Flags().StringVar(&tailJob, "job", "", "Only show events for this job")

	rootCmd.AddCommand(runCmd, tailCmd)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	if logger != nil {
		_ = logger.Sync()
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func runServer(ctx context.Context, cfg *config.Config, logger *zap.Logger) error {
	logger.Info("starting lead engine",
		zap.String("node_id", cfg.NodeID),
		zap.Int("http_port", cfg.HTTPPort),
		zap.String("store_backend", cfg.StoreBackend),
		zap.String("list_backend", cfg.ListBackend),
	)

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			logger.Error("close backends", zap.Error(err))
		}
	}()

	if err := a.resume(ctx, logger); err != nil {
		return err
	}

	server := &http.Server{
		Addr: cfg.Addr(),
		Handler: api.NewRouter(api.Deps{
			Config:  cfg,
			Engine:  a.engine,
			Runner:  a.runner,
			Metrics: a.metrics,
			Logger:  logger,
		}),
		ReadTimeout: 15 * time.Second,
		IdleTimeout: 60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("server listening", zap.String("addr", cfg.Addr()))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := server.Shutdown(shutdownCtx)
		a.runner.Shutdown()
		return err
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}

// runOnce drives a single job to a terminal status in-process and writes
// whatever it collected.
func runOnce(ctx context.Context, cfg *config.Config, req job.Request, out string, logger *zap.Logger) error {
	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	j, err := a.engine.Start(ctx, req)
	if err != nil {
		return err
	}
	logger.Info("job started", zap.String("job_id", j.ID))

	ticker := time.NewTicker(cfg.TickInterval)
	defer ticker.Stop()

	for !j.Status.IsTerminal() {
		select {
		case <-ctx.Done():
			if j, err = a.engine.Cancel(context.Background(), j.ID); err != nil {
				return err
			}
		case <-ticker.C:
			if j, err = a.engine.Tick(ctx, j.ID); err != nil {
				return err
			}
			logger.Debug("tick", zap.Int("progress", j.Progress), zap.Int("found", j.Found))
		}
	}

	j, err = a.engine.Get(context.Background(), j.ID)
	if err != nil {
		return err
	}
	logger.Info("job finished",
		zap.String("status", string(j.Status)),
		zap.Int("found", j.Found),
		zap.Int("with_email", j.WithEmail),
		zap.Float64("avg_rating", j.AvgRating),
	)

	w := os.Stdout
	if out != "" {
		f, err := os.Create(out)
		if err != nil {
			return fmt.Errorf("create %s: %w", out, err)
		}
		defer f.Close()
		w = f
	}
	if err := export.Write(w, j.Records); err != nil {
		return fmt.Errorf("write csv: %w", err)
	}
	if j.Status == job.StatusFailed {
		return fmt.Errorf("job failed: %s", j.Error)
	}
	return nil
}

func runTail(ctx context.Context, url, jobID string, logger *zap.Logger) error {
	c := feedclient.New(url, func(msg feed.Message) {
		logger.Info("feed", zap.String("type", msg.Type), zap.ByteString("data", msg.Data))
	}, logger).WithJob(jobID)
	return c.Run(ctx)
}
