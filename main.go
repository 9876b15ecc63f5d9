package main

import (
	"context"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/catalog"
	"media-ingest/internal/discovery"
	"media-ingest/internal/lifecycle"
	"media-ingest/internal/logging"
	"media-ingest/internal/memory"
	"media-ingest/internal/metrics"
	"media-ingest/internal/middleware"
	"media-ingest/internal/netadvisor"
	"media-ingest/internal/pipeline"
	"media-ingest/internal/queue"
	"media-ingest/internal/remote"
	"media-ingest/internal/startup"
	"media-ingest/internal/storage"
	"media-ingest/internal/transcode"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func main() {
	startTime := time.Now()

	// Set GOMEMLIMIT before anything allocates
	memResult := memory.ConfigureFromEnv()

	// Load configuration
	config, err := startup.LoadConfig()
	if err != nil {
		startup.LogFatal("Configuration error: %v", err)
	}
	startup.LogMemoryConfig(memResult)

	if len(os.Args) < 2 {
		startup.LogFatal("Usage: %s <file> [file ...]", os.Args[0])
	}

	// Resource lifecycle tracker owns scratch files, child processes and
	// cancellation scopes for the whole session.
	tracker, err := lifecycle.NewTracker(config.ScratchDir)
	if err != nil {
		startup.LogFatal("Failed to initialize lifecycle tracker: %v", err)
	}

	// Probe what this host can actually do
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	prober := capability.NewProber(config.FFmpegPath, config.ScratchDir)
	caps := prober.Probe(ctx)
	startup.LogCapabilityProbe(caps, config.FFmpegPath)

	// Initialize catalog
	catStart := time.Now()
	cat, backend, err := openCatalog(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to initialize catalog: %v", err)
	}
	defer func() {
		if err := cat.Close(); err != nil {
			logging.Warn("Catalog close error: %v", err)
		}
	}()
	startup.LogCatalogInit(backend, time.Since(catStart))

	// Initialize storage
	store, storageBackend, err := openStore(ctx, config)
	if err != nil {
		startup.LogFatal("Failed to initialize storage: %v", err)
	}
	startup.LogStorageInit(storageBackend)

	// Remote transcode service (optional)
	var remoteClient *remote.Client
	if config.RemoteURL != "" {
		remoteCfg := remote.DefaultConfig(config.RemoteURL)
		remoteCfg.APIKey = config.RemoteAPIKey
		remoteCfg.PollInterval = config.RemotePollInterval
		remoteClient = remote.New(remoteCfg)
	}

	// Transcoders
	runner := transcode.NewExecRunner(tracker)

	imageCfg := transcode.DefaultImageConfig()
	imageCfg.MaxEdge = config.MaxImageEdge

	videoCfg := transcode.DefaultVideoConfig()
	videoCfg.FFmpegPath = config.FFmpegPath
	videoCfg.MaxEdge = config.CaptureMaxEdge
	videoCfg.CaptureFPS = config.CaptureFPS
	videoCfg.ThumbnailTimeout = config.ThumbnailTimeout

	heicCfg := transcode.DefaultHEICConfig()
	heicCfg.WorkerTimeout = config.HEICWorkerTimeout
	heicCfg.MaxEdge = config.MaxImageEdge

	var invoker transcode.Invoker
	if remoteClient != nil {
		invoker = remoteClient
	}
	heic := transcode.NewHEICTranscoder(
		heicCfg,
		transcode.NewSubprocessConverter(runner, config.FFmpegPath),
		&stagerAdapter{store: store},
		invoker,
		tracker,
	)

	pipelineCfg := pipeline.DefaultConfig()
	pipelineCfg.MaxFileBytes = config.MaxFileBytes
	orchestrator := pipeline.New(pipelineCfg, caps, pipeline.Transcoders{
		Image: transcode.NewImageTranscoder(imageCfg),
		Video: transcode.NewVideoTranscoder(videoCfg, runner, tracker),
		Audio: transcode.NewAudioTranscoder(),
		HEIC:  heic,
	}, tracker)

	// Network advisory: seed one RTT measurement, best effort
	advisorCfg := netadvisor.DefaultConfig()
	advisorCfg.ProbeHost = config.ProbeHost
	advisor := netadvisor.New(advisorCfg)
	if _, err := advisor.Measure(ctx); err != nil {
		logging.Debug("Initial network measurement failed: %v", err)
	}

	// Memory backpressure monitor
	monitor := memory.NewMonitor(memory.DefaultConfig())
	monitor.Start()
	defer monitor.Stop()

	// Observability listener
	var metricsSrv *http.Server
	if config.MetricsEnabled {
		metrics.InitializeMetrics()
		collector := metrics.NewCollector(tracker, 15*time.Second)
		collector.Start()
		defer collector.Stop()
		metricsSrv = startMetricsServer(config.MetricsPort)
	}

	// Upload queue
	queueCfg := queue.DefaultConfig()
	queueCfg.MandatoryArtifacts = config.MandatoryArtifacts
	queueCfg.EvictDelay = config.EvictDelay
	queueCfg.UploadIdleTimeout = config.UploadIdleTimeout

	deps := queue.Deps{
		Processor: orchestrator,
		Store:     store,
		Catalog:   cat,
		Advisor:   advisor,
		Memory:    monitor,
		Tracker:   tracker,
		OnEvent:   logEvent,
	}
	if remoteClient != nil {
		deps.Poller = remoteClient
	}
	q := queue.New(queueCfg, deps)

	paths, err := expandArgs(ctx, os.Args[1:])
	if err != nil {
		startup.LogFatal("Scan error: %v", err)
	}
	if len(paths) == 0 {
		startup.LogFatal("Nothing to ingest")
	}

	ids, err := q.AddFiles(paths...)
	if err != nil {
		startup.LogFatal("Enqueue error: %v", err)
	}

	startup.LogBatchStarted(len(ids), time.Since(startTime))

	batchStart := time.Now()
	summary := q.Run(ctx)

	startup.LogBatchComplete(summary.Attempted, summary.Completed, summary.Failed, summary.NeedsRetry, time.Since(batchStart))

	// Graceful teardown
	if ctx.Err() != nil {
		startup.LogShutdownInitiated("signal")
	}
	shutdown(metricsSrv, tracker)

	if summary.Failed > 0 {
		os.Exit(1)
	}
}

func openCatalog(ctx context.Context, config *startup.Config) (catalog.Catalog, string, error) {
	if config.CatalogPath == "" || config.CatalogPath == ":memory:" {
		return catalog.NewMemory(), "in-memory", nil
	}
	cat, err := catalog.NewSQLite(ctx, config.CatalogPath)
	if err != nil {
		return nil, "", err
	}
	return cat, "sqlite", nil
}

func openStore(ctx context.Context, config *startup.Config) (storage.Store, string, error) {
	var inner storage.Store
	var backend string

	if config.S3Bucket != "" {
		s3, err := storage.NewS3Store(ctx, config.S3Bucket, config.S3Region)
		if err != nil {
			return nil, "", err
		}
		inner, backend = s3, "S3"
	} else {
		local, err := storage.NewLocalStore(config.StorageDir)
		if err != nil {
			return nil, "", err
		}
		inner, backend = local, "local"
	}

	return storage.NewRetryingStore(inner, storage.DefaultRetryConfig()), backend, nil
}

// expandArgs resolves command-line arguments to files: directories are
// scanned for recognized media, explicit file paths pass through as-is.
func expandArgs(ctx context.Context, args []string) ([]string, error) {
	var files, dirs []string
	for _, arg := range args {
		info, err := os.Stat(arg)
		if err != nil {
			return nil, err
		}
		if info.IsDir() {
			dirs = append(dirs, arg)
		} else {
			files = append(files, arg)
		}
	}

	if len(dirs) > 0 {
		findings, err := discovery.Scan(ctx, discovery.DefaultConfig(), dirs...)
		if err != nil {
			return nil, err
		}
		for _, f := range findings {
			files = append(files, f.Path)
		}
	}
	return files, nil
}

// stagerAdapter narrows the storage client to the staging seam the HEIC
// transcoder needs.
type stagerAdapter struct {
	store storage.Store
}

func (a *stagerAdapter) Upload(ctx context.Context, path string, r io.Reader, contentType string) (string, error) {
	return a.store.Upload(ctx, path, r, storage.UploadOptions{ContentType: contentType})
}

func logEvent(ev queue.Event) {
	if ev.Message == "" {
		return
	}
	logging.Info("[%s] %3d%% %s", ev.Status, ev.Progress, ev.Message)
}

func startMetricsServer(port string) *http.Server {
	router := mux.NewRouter()
	router.Handle("/metrics", promhttp.Handler()).Methods("GET").Name("Metrics")
	router.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("ok")); err != nil {
			logging.Debug("healthz write failed: %v", err)
		}
	}).Methods("GET").Name("Health")

	startup.LogHTTPRoutes(router)

	handler := middleware.Logger(middleware.DefaultLoggingConfig())(router)

	srv := &http.Server{
		Addr:         ":" + port,
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	go func() {
		if err := srv.ListenAndServe(); err != http.ErrServerClosed {
			logging.Warn("Metrics server error: %v", err)
		}
	}()
	logging.Info("  Metrics: http://localhost:%s/metrics", port)
	return srv
}

func shutdown(metricsSrv *http.Server, tracker *lifecycle.Tracker) {
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if metricsSrv != nil {
		startup.LogShutdownStep("Stopping metrics server")
		if err := metricsSrv.Shutdown(shutdownCtx); err != nil {
			logging.Warn("Metrics server shutdown error: %v", err)
		} else {
			startup.LogShutdownStepComplete("Metrics server stopped")
		}
	}

	startup.LogShutdownStep("Releasing tracked resources")
	tracker.Shutdown()
	startup.LogShutdownStepComplete("Tracked resources released")

	startup.LogShutdownStep("Shutting down libvips")
	capability.ShutdownVips()
	startup.LogShutdownStepComplete("libvips stopped")

	startup.LogShutdownComplete()
}
