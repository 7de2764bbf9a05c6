package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/urfave/cli/v2"

	"github.com/modsentry/orchestrator/adapter"
	redisadapter "github.com/modsentry/orchestrator/adapter/redis"
	"github.com/modsentry/orchestrator/chain"
	"github.com/modsentry/orchestrator/cli/config"
	"github.com/modsentry/orchestrator/dispatch"
	"github.com/modsentry/orchestrator/executor"
	"github.com/modsentry/orchestrator/external"
	"github.com/modsentry/orchestrator/httpapi"
	"github.com/modsentry/orchestrator/log"
	"github.com/modsentry/orchestrator/metrics"
	"github.com/modsentry/orchestrator/queue"
	"github.com/modsentry/orchestrator/registry"
	"github.com/modsentry/orchestrator/report"
	"github.com/modsentry/orchestrator/store"
)

// ServeCommand runs the orchestrator's HTTP surface, dispatcher, and
// background health prober until interrupted.
func ServeCommand() *cli.Command {
	return &cli.Command{
		Name:   "serve",
		Usage:  "Run the orchestrator HTTP server",
		Flags:  []cli.Flag{ConfigFlag},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	logger := log.NewLogger()
	collector := metrics.NewCollector()
	prometheus.MustRegister(metrics.NewPrometheusExporter(collector))

	backend, err := newStoreBackend(c.Context, cfg.Storage)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	artifactStore := store.New(backend)
	artifactStore.Metrics = collector

	reports := report.NewMemRepository()

	chainsPath := cfg.Chains.Path
	if chainsPath == "" {
		chainsPath = "chains.yaml"
	}
	chains, err := chain.NewFileRepository(chainsPath)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}

	reg := registry.New()
	for _, dir := range cfg.Registry.ModuleDirs {
		modules, derr := registry.DiscoverInternal(dir)
		if derr != nil {
			return cli.Exit(derr.Error(), 1)
		}
		for _, m := range modules {
			if err := reg.Put(c.Context, m); err != nil {
				return cli.Exit(err.Error(), 1)
			}
		}
	}

	plane, err := newQueuePlane(cfg.Queue)
	if err != nil {
		return cli.Exit(err.Error(), 1)
	}
	defer plane.Close()

	execCfg := executor.DefaultConfig()
	mgr := executor.NewManager(reg, plane, reports, artifactStore, execCfg, logger, collector)
	notifier := external.NewNotifier(external.NotifierConfig{})
	mgr.ExternalNotifier = notifier
	defer notifier.Close()
	if redisURL := cfg.Queue.URL; redisURL != "" {
		if notifier, nerr := redisadapter.New(redisadapter.Config{URL: redisURL}); nerr == nil {
			mgr.Notifier = notifier
			defer notifier.Close()
		} else {
			logger.Warn("chain-run completion notifier disabled", map[string]any{"error": nerr.Error()})
		}
	}

	disp := dispatch.New(chains, mgr)
	disp.Store(cfg.AutoRun)

	results := external.NewResultIngester(reg, artifactStore, plane, reports)

	prober := registry.NewProber(reg, registry.NewHTTPHealthChecker(), &registry.QueueHeartbeatChecker{Plane: plane}, cfg.Registry.HealthcheckPeriod.Duration, logger)
	prober.Metrics = collector

	ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	go prober.Run(ctx)

	srv := &httpapi.Server{
		Store:      artifactStore,
		Chains:     chains,
		Registry:   reg,
		Reports:    reports,
		Dispatcher: disp,
		Results:    results,
		Logger:     logger,
	}

	addr := cfg.HTTP.ListenAddr
	if addr == "" {
		addr = ":8080"
	}
	httpServer := &http.Server{Addr: addr, Handler: httpapi.NewRouter(srv)}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", map[string]any{"addr": addr})
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return cli.Exit(fmt.Sprintf("shutdown: %v", err), 1)
		}
		return nil
	case err := <-errCh:
		return cli.Exit(err.Error(), 1)
	}
}

func newStoreBackend(ctx context.Context, cfg config.StorageConfig) (store.Backend, error) {
	switch cfg.Backend {
	case "", "local":
		path := cfg.Path
		if path == "" {
			path = "data"
		}
		return store.NewLocalBackend(path)
	case "s3":
		bucket, prefix := store.ParseS3Path(cfg.Path)
		return store.NewS3Backend(ctx, store.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Region,
			Endpoint:     cfg.Endpoint,
			UsePathStyle: cfg.S3PathStyle,
		})
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
}

func newQueuePlane(cfg config.QueueConfig) (queue.Plane, error) {
	if cfg.URL == "" {
		return queue.NewMemPlane(), nil
	}
	return queue.NewRedisPlane(cfg.URL, cfg.TaskTTL.Duration)
}

var _ adapter.Adapter = (*redisadapter.Adapter)(nil)
