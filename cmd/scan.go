package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/metabolink/hmdbscan/internal/api"
	"github.com/metabolink/hmdbscan/internal/config"
	"github.com/metabolink/hmdbscan/internal/fetch"
	"github.com/metabolink/hmdbscan/internal/logging"
	"github.com/metabolink/hmdbscan/internal/pipeline"
	"github.com/metabolink/hmdbscan/internal/progress"
	"github.com/metabolink/hmdbscan/internal/progress/sinks"
	"github.com/metabolink/hmdbscan/internal/scan"
	"github.com/metabolink/hmdbscan/internal/sink"
	"github.com/metabolink/hmdbscan/internal/source"
)

// newScanCmd creates and configures the 'scan' subcommand.
func newScanCmd() *cobra.Command {
	var (
		outPath string
		resume  bool
		workers int
	)
	cmd := &cobra.Command{
		Use:   "scan <metabolites.xml>",
		Short: "Starts the MetaboCard scan",
		Long: `Stream-parses the given XML dump for accession IDs and crawls the
MetaboCard page of each one concurrently. Interrupt with Ctrl-C at any
time; rerun with --resume to pick up where the report left off.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}
			if cmd.Flags().Changed("out") {
				cfg.Scan.OutputPath = outPath
			}
			if cmd.Flags().Changed("resume") {
				cfg.Scan.Resume = resume
			}
			if cmd.Flags().Changed("workers") {
				cfg.Scan.Workers = workers
			}
			if err := cfg.Validate(); err != nil {
				return err
			}
			return runScan(cmd.Context(), cfg, args[0])
		},
	}
	cmd.Flags().StringVar(&outPath, "out", "", "output TSV report path")
	cmd.Flags().BoolVar(&resume, "resume", false, "resume a cancelled run by appending to the existing report")
	cmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent fetch workers")
	return cmd
}

func runScan(parent context.Context, cfg config.Config, inputPath string) error {
	logger, err := logging.New(cfg.Logging.Development)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	resumeSet := scan.ResumeSet{}
	if cfg.Scan.Resume {
		resumeSet, err = sink.LoadResumeSet(cfg.Scan.OutputPath, logger)
		if err != nil {
			return fmt.Errorf("resume requested but report unreadable: %w", err)
		}
		logger.Info("resume set loaded",
			zap.String("path", cfg.Scan.OutputPath),
			zap.Int("completed", len(resumeSet)),
		)
	}

	src, err := source.NewXML(inputPath, cfg.Input.RecordElement, cfg.Input.IDElement, logger)
	if err != nil {
		return fmt.Errorf("open source: %w", err)
	}
	defer func() {
		if cerr := src.Close(); cerr != nil {
			logger.Warn("close source", zap.Error(cerr))
		}
	}()

	out, err := sink.NewTSV(cfg.Scan.OutputPath, cfg.Scan.Resume, cfg.Scan.FlushEvery, logger)
	if err != nil {
		return fmt.Errorf("open report: %w", err)
	}

	client := fetch.NewClient(fetch.Config{
		BaseURL:        cfg.Fetch.BaseURL,
		UserAgent:      cfg.Fetch.UserAgent,
		Timeout:        cfg.FetchTimeout(),
		MaxRetries:     cfg.Fetch.MaxRetries,
		BackoffInitial: cfg.BackoffInitial(),
		BackoffMax:     cfg.BackoffMax(),
	}, fetch.NewPageClassifier(), logger)

	hub, err := buildProgressHub(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := hub.Close(closeCtx); cerr != nil {
			logger.Warn("close progress hub", zap.Error(cerr))
		}
	}()

	coordinator := pipeline.New(
		src,
		client,
		out,
		resumeSet,
		&scan.Counters{},
		hub,
		pipeline.Config{
			Workers:    cfg.Scan.Workers,
			QueueDepth: cfg.Scan.QueueDepth,
		},
		logger,
	)

	if cfg.Server.Enabled {
		shutdown := startStatusServer(cfg, coordinator, logger)
		defer shutdown()
	}

	summary, runErr := coordinator.Run(ctx)

	if cerr := out.Close(); cerr != nil {
		logger.Error("close report", zap.Error(cerr))
		if runErr == nil {
			runErr = cerr
		}
	}

	switch {
	case runErr == nil:
		return nil
	case errors.Is(runErr, context.Canceled):
		// Interrupted; the report stays valid and resumable.
		return nil
	case errors.Is(runErr, pipeline.ErrFetchesFailed):
		return fmt.Errorf("scan completed with %d failed fetches", summary.Failed)
	default:
		return fmt.Errorf("run scan: %w", runErr)
	}
}

func buildProgressHub(cfg config.Config, logger *zap.Logger) (*progress.Hub, error) {
	hubSinks := []progress.Sink{
		sinks.NewLogSink(logger.Named("progress")),
	}
	if cfg.Server.Enabled {
		prom, err := sinks.NewPrometheusSink(prometheus.DefaultRegisterer)
		if err != nil {
			return nil, fmt.Errorf("init prometheus sink: %w", err)
		}
		hubSinks = append(hubSinks, prom)
	}
	return progress.NewHub(progress.Config{Logger: logger}, hubSinks...), nil
}

func startStatusServer(cfg config.Config, status api.StatusSource, logger *zap.Logger) func() {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:           api.NewServer(status, logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("status server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("status server stopped", zap.Error(err))
		}
	}()
	return func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("status server shutdown", zap.Error(err))
		}
	}
}
