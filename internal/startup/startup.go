package startup

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"sort"
	"strconv"
	"strings"
	"time"

	"media-ingest/internal/capability"
	"media-ingest/internal/logging"
	"media-ingest/internal/mediatypes"

	"github.com/gorilla/mux"
)

// Build-time variables (injected via -ldflags)
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
	GoVersion = runtime.Version()
)

// BuildInfo contains version and build information
type BuildInfo struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	BuildTime string `json:"buildTime"`
	GoVersion string `json:"goVersion"`
	OS        string `json:"os"`
	Arch      string `json:"arch"`
}

// GetBuildInfo returns the current build information
func GetBuildInfo() BuildInfo {
	return BuildInfo{
		Version:   Version,
		Commit:    Commit,
		BuildTime: BuildTime,
		GoVersion: GoVersion,
		OS:        runtime.GOOS,
		Arch:      runtime.GOARCH,
	}
}

// RouteInfo contains information about a registered route
type RouteInfo struct {
	Method string
	Path   string
	Name   string
}

// Config holds all application configuration
type Config struct {
	DataDir    string
	ScratchDir string

	// Storage backend: S3 when S3Bucket is set, the local object
	// directory otherwise.
	S3Bucket   string
	S3Region   string
	StorageDir string

	// CatalogPath is the sqlite database file. Empty selects the
	// in-memory catalog.
	CatalogPath string

	// Remote transcode service. Empty RemoteURL disables delegation.
	RemoteURL    string
	RemoteAPIKey string

	FFmpegPath string

	MetricsPort    string
	MetricsEnabled bool

	MaxFileBytes      int64
	UploadIdleTimeout time.Duration
	EvictDelay        time.Duration

	// Processing policy knobs. The defaults are product policy; none of
	// them is a correctness requirement.
	MaxImageEdge       int
	CaptureMaxEdge     int
	CaptureFPS         int
	HEICWorkerTimeout  time.Duration
	ThumbnailTimeout   time.Duration
	RemotePollInterval time.Duration

	// MandatoryArtifacts are categories that must yield a processed
	// artifact; without one the item parks as needs_retry instead of
	// delivering original-only.
	MandatoryArtifacts map[mediatypes.Category]bool

	ProbeHost string
}

// LoadConfig loads and validates configuration from environment variables
func LoadConfig() (*Config, error) {
	printBanner()
	logSystemInfo()

	logging.Info("------------------------------------------------------------")
	logging.Info("CONFIGURATION")
	logging.Info("------------------------------------------------------------")

	dataDir := getEnv("DATA_DIR", "/data")
	scratchDir := getEnv("SCRATCH_DIR", filepath.Join(os.TempDir(), "media-ingest"))
	s3Bucket := getEnv("S3_BUCKET", "")
	s3Region := getEnv("S3_REGION", "")
	remoteURL := getEnv("REMOTE_TRANSCODE_URL", "")
	remoteAPIKey := getEnv("REMOTE_TRANSCODE_API_KEY", "")
	ffmpegPath := getEnv("FFMPEG_PATH", "ffmpeg")
	metricsPort := getEnv("METRICS_PORT", "9090")
	metricsEnabled := getEnvBool("METRICS_ENABLED", true)
	maxFileBytes := getEnvInt64("MAX_FILE_BYTES", 500*1024*1024)
	uploadIdleTimeout := getEnvDuration("UPLOAD_IDLE_TIMEOUT", 60*time.Second)
	evictDelay := getEnvDuration("EVICT_DELAY", 3*time.Second)
	mandatory := parseCategories(getEnv("MANDATORY_ARTIFACTS", ""))
	probeHost := getEnv("NET_PROBE_HOST", "1.1.1.1")
	maxImageEdge := int(getEnvInt64("MAX_IMAGE_EDGE", 1920))
	captureMaxEdge := int(getEnvInt64("CAPTURE_MAX_EDGE", 1280))
	captureFPS := int(getEnvInt64("CAPTURE_FPS", 15))
	heicWorkerTimeout := getEnvDuration("HEIC_WORKER_TIMEOUT", 2*time.Second)
	thumbnailTimeout := getEnvDuration("THUMBNAIL_TIMEOUT", 10*time.Second)
	remotePollInterval := getEnvDuration("REMOTE_POLL_INTERVAL", 2*time.Second)

	logging.Info("  DATA_DIR:             %s", dataDir)
	logging.Info("  SCRATCH_DIR:          %s", scratchDir)
	if s3Bucket != "" {
		logging.Info("  S3_BUCKET:            %s", s3Bucket)
		logging.Info("  S3_REGION:            %s", s3Region)
	}
	if remoteURL != "" {
		logging.Info("  REMOTE_TRANSCODE_URL: %s", remoteURL)
	}
	logging.Info("  FFMPEG_PATH:          %s", ffmpegPath)
	logging.Info("  METRICS_PORT:         %s", metricsPort)
	logging.Info("  METRICS_ENABLED:      %v", metricsEnabled)
	logging.Info("  MAX_FILE_BYTES:       %d", maxFileBytes)
	logging.Info("  UPLOAD_IDLE_TIMEOUT:  %s", uploadIdleTimeout)
	logging.Info("  LOG_LEVEL:            %s", logging.GetLevel())
	logging.Debug("  MAX_IMAGE_EDGE:       %d", maxImageEdge)
	logging.Debug("  CAPTURE_MAX_EDGE:     %d", captureMaxEdge)
	logging.Debug("  CAPTURE_FPS:          %d", captureFPS)
	logging.Debug("  HEIC_WORKER_TIMEOUT:  %s", heicWorkerTimeout)
	logging.Debug("  THUMBNAIL_TIMEOUT:    %s", thumbnailTimeout)
	logging.Debug("  REMOTE_POLL_INTERVAL: %s", remotePollInterval)

	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("DIRECTORY SETUP")
	logging.Info("------------------------------------------------------------")

	dataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve data directory path: %w", err)
	}
	logging.Info("  Data directory (absolute):    %s", dataDir)

	scratchDir, err = filepath.Abs(scratchDir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve scratch directory path: %w", err)
	}
	logging.Info("  Scratch directory (absolute): %s", scratchDir)

	if err := ensureDirectory(dataDir, "data"); err != nil {
		return nil, fmt.Errorf("data directory error: %w", err)
	}

	logging.Debug("  Testing data directory write access...")
	if err := testWriteAccess(dataDir); err != nil {
		return nil, fmt.Errorf("data directory is not writable: %w", err)
	}
	logging.Info("  [OK] Data directory is writable")

	if err := ensureDirectory(scratchDir, "scratch"); err != nil {
		return nil, fmt.Errorf("scratch directory error: %w", err)
	}

	config := &Config{
		DataDir:            dataDir,
		ScratchDir:         scratchDir,
		S3Bucket:           s3Bucket,
		S3Region:           s3Region,
		StorageDir:         filepath.Join(dataDir, "objects"),
		CatalogPath:        getEnv("CATALOG_PATH", filepath.Join(dataDir, "catalog.db")),
		RemoteURL:          remoteURL,
		RemoteAPIKey:       remoteAPIKey,
		FFmpegPath:         ffmpegPath,
		MetricsPort:        metricsPort,
		MetricsEnabled:     metricsEnabled,
		MaxFileBytes:       maxFileBytes,
		UploadIdleTimeout:  uploadIdleTimeout,
		EvictDelay:         evictDelay,
		MandatoryArtifacts: mandatory,
		ProbeHost:          probeHost,
		MaxImageEdge:       maxImageEdge,
		CaptureMaxEdge:     captureMaxEdge,
		CaptureFPS:         captureFPS,
		HEICWorkerTimeout:  heicWorkerTimeout,
		ThumbnailTimeout:   thumbnailTimeout,
		RemotePollInterval: remotePollInterval,
	}

	logging.Info("")
	logging.Info("  Feature availability:")
	if config.S3Bucket != "" {
		logging.Info("    Storage:     S3 (%s)", config.S3Bucket)
	} else {
		logging.Info("    Storage:     local (%s)", config.StorageDir)
	}
	logging.Info("    Catalog:     %s", config.CatalogPath)
	logging.Info("    Delegation:  %s", enabledString(config.RemoteURL != ""))
	logging.Info("    Metrics:     %s", enabledString(config.MetricsEnabled))

	return config, nil
}

// parseCategories parses a comma-separated category list.
func parseCategories(raw string) map[mediatypes.Category]bool {
	out := map[mediatypes.Category]bool{}
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(strings.ToLower(part))
		switch mediatypes.Category(part) {
		case mediatypes.CategoryImage, mediatypes.CategoryVideo, mediatypes.CategoryAudio:
			out[mediatypes.Category(part)] = true
		case "":
		default:
			logging.Warn("Ignoring unknown category %q in MANDATORY_ARTIFACTS", part)
		}
	}
	return out
}

func enabledString(enabled bool) string {
	if enabled {
		return "ENABLED"
	}
	return "DISABLED"
}

// LogCatalogInit logs catalog initialization
func LogCatalogInit(backend string, duration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CATALOG INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] %s catalog initialized in %v", backend, duration)
}

// LogCapabilityProbe logs the capability probe outcome and checks FFmpeg
// when encoders came back empty.
func LogCapabilityProbe(set capability.CapabilitySet, ffmpegPath string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("CAPABILITY PROBE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Native decode:   %v", set.NativeDecode)
	logging.Info("  Encoders:        %d usable", len(set.RecorderCodecs))
	logging.Info("  libvips:         %v", set.VipsAvailable)
	logging.Info("  Helper spawn:    %v", set.HelperAvailable)
	logging.Info("  Shared scratch:  %v", set.SharedScratch)

	if len(set.RecorderCodecs) == 0 {
		if err := checkFFmpeg(ffmpegPath); err != nil {
			logging.Warn("  FFmpeg check failed: %v", err)
			logging.Warn("  Video re-encoding is disabled; videos deliver original-only")
		}
	}
}

// LogStorageInit logs which storage backend was selected.
func LogStorageInit(backend string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("STORAGE INITIALIZATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  [OK] Using %s storage", backend)
}

// GetRoutes extracts all registered routes from a mux.Router
func GetRoutes(router *mux.Router) ([]RouteInfo, error) {
	var routes []RouteInfo

	err := router.Walk(func(route *mux.Route, _ *mux.Router, _ []*mux.Route) error {
		pathTemplate, err := route.GetPathTemplate()
		if err != nil {
			return err
		}

		methods, err := route.GetMethods()
		if err != nil {
			// Route might not have methods specified
			methods = []string{"*"}
		}

		name := route.GetName()

		for _, method := range methods {
			routes = append(routes, RouteInfo{
				Method: method,
				Path:   pathTemplate,
				Name:   name,
			})
		}

		return nil
	})

	return routes, err
}

// LogHTTPRoutes logs the observability listener's registered routes
func LogHTTPRoutes(router *mux.Router) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("OBSERVABILITY LISTENER")
	logging.Info("------------------------------------------------------------")

	if logging.IsDebugEnabled() {
		routes, err := GetRoutes(router)
		if err != nil {
			logging.Warn("error walking routes: %v", err)
		}

		logging.Debug("  Registered routes (%d total):", len(routes))

		sort.Slice(routes, func(i, j int) bool { return routes[i].Path < routes[j].Path })
		for _, route := range routes {
			logging.Debug("    %-6s %s", route.Method, route.Path)
		}
	}
}

// LogBatchStarted logs the start of a batch run.
func LogBatchStarted(items int, startupDuration time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BATCH STARTED")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Startup time: %v", startupDuration)
	logging.Info("  Items queued: %d", items)
	logging.Info("")
	logging.Info("  Press Ctrl+C to stop after the in-flight item")
	logging.Info("------------------------------------------------------------")
	logging.Info("")
}

// LogBatchComplete logs the end-of-batch summary.
func LogBatchComplete(attempted, completed, failed, needsRetry int, elapsed time.Duration) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("BATCH COMPLETE")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Attempted:   %d", attempted)
	logging.Info("  Completed:   %d", completed)
	logging.Info("  Failed:      %d", failed)
	logging.Info("  Needs retry: %d", needsRetry)
	logging.Info("  Elapsed:     %v", elapsed)
}

// LogShutdownInitiated logs shutdown start
func LogShutdownInitiated(signal string) {
	logging.Info("")
	logging.Info("------------------------------------------------------------")
	logging.Info("SHUTDOWN INITIATED (received %s)", signal)
	logging.Info("------------------------------------------------------------")
}

// LogShutdownStep logs a shutdown step
func LogShutdownStep(step string) {
	logging.Debug("  %s...", step)
}

// LogShutdownStepComplete logs a completed shutdown step
func LogShutdownStepComplete(step string) {
	logging.Info("  [OK] %s", step)
}

// LogShutdownComplete logs shutdown completion
func LogShutdownComplete() {
	logging.Info("  [OK] Shutdown complete")
}

// LogFatal logs a fatal error and exits
func LogFatal(format string, args ...interface{}) {
	logging.Fatal(format, args...)
}

// Helper functions

func printBanner() {
	banner := `
------------------------------------------------------------
    __  ___         ___         ____                      __
   /  |/  /__  ____/ (_)___ _  /  _/___  ____ ____  _____/ /_
  / /|_/ / _ \/ __  / / __ '/  / // __ \/ __ '/ _ \/ ___/ __/
 / /  / /  __/ /_/ / / /_/ /  / // / / / /_/ /  __(__  ) /_
/_/  /_/\___/\__,_/_/\__,_/  /_//_/ /_/\__, /\___/____/\__/
                                      /____/
------------------------------------------------------------`
	fmt.Println(banner)
	logging.Info("  Version:    %s", Version)
	logging.Info("  Commit:     %s", Commit)
	logging.Info("  Build Time: %s", BuildTime)
	logging.Info("  Started:    %s", time.Now().Format(time.RFC1123))
	logging.Info("")
}

func logSystemInfo() {
	logging.Info("------------------------------------------------------------")
	logging.Info("SYSTEM INFORMATION")
	logging.Info("------------------------------------------------------------")
	logging.Info("  Go version:      %s", runtime.Version())
	logging.Info("  OS/Arch:         %s/%s", runtime.GOOS, runtime.GOARCH)
	logging.Info("  CPUs available:  %d", runtime.NumCPU())
	logging.Info("  GOMAXPROCS:      %d", runtime.GOMAXPROCS(0))

	if runtime.GOMAXPROCS(0) < runtime.NumCPU() {
		logging.Info("  (Container CPU limit detected)")
	}

	if logging.IsDebugEnabled() {
		logging.Debug("  Goroutines:      %d", runtime.NumGoroutine())

		if wd, err := os.Getwd(); err == nil {
			logging.Debug("  Working dir:     %s", wd)
		}

		if hostname, err := os.Hostname(); err == nil {
			logging.Debug("  Hostname:        %s", hostname)
		}
	}

	logging.Info("")
}

func ensureDirectory(path, name string) error {
	logging.Debug("  Checking %s directory: %s", name, path)

	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		logging.Debug("    Directory does not exist, creating...")
		if err := os.MkdirAll(path, 0o755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		logging.Debug("    [OK] Created directory: %s", path)
		return nil
	}

	if err != nil {
		return fmt.Errorf("failed to stat directory: %w", err)
	}

	if !info.IsDir() {
		return fmt.Errorf("path exists but is not a directory")
	}

	logging.Debug("    [OK] Directory exists")
	return nil
}

func testWriteAccess(dir string) error {
	testFile := filepath.Join(dir, ".write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return err
	}
	if err := os.Remove(testFile); err != nil {
		logging.Warn("failed to remove write test file %s: %v", testFile, err)
		// Don't return error since write access was confirmed
	}
	return nil
}

func checkFFmpeg(ffmpegPath string) error {
	path, err := exec.LookPath(ffmpegPath)
	if err != nil {
		return fmt.Errorf("%s not found in PATH", ffmpegPath)
	}
	logging.Debug("  FFmpeg path: %s", path)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	cmd := exec.CommandContext(ctx, path, "-version")
	output, err := cmd.Output()
	if err != nil {
		return fmt.Errorf("failed to get ffmpeg version: %w", err)
	}

	lines := strings.Split(string(output), "\n")
	if len(lines) > 0 {
		logging.Debug("  FFmpeg version: %s", strings.TrimSpace(lines[0]))
	}

	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseBool(value)
	if err != nil {
		logging.Warn("Invalid boolean value for %s: %q, using default: %v", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvInt64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		logging.Warn("Invalid integer value for %s: %q, using default: %d", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	parsed, err := time.ParseDuration(value)
	if err != nil {
		logging.Warn("Invalid duration value for %s: %q, using default: %s", key, value, defaultValue)
		return defaultValue
	}
	return parsed
}
