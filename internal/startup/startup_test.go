package startup

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"media-ingest/internal/mediatypes"
)

func TestGetBuildInfo(t *testing.T) {
	info := GetBuildInfo()

	// Check that all fields are populated
	if info.Version == "" {
		t.Error("Expected Version to be set")
	}
	if info.GoVersion == "" {
		t.Error("Expected GoVersion to be set")
	}
	if info.OS == "" {
		t.Error("Expected OS to be set")
	}
	if info.Arch == "" {
		t.Error("Expected Arch to be set")
	}

	// Verify that runtime values are correct
	if info.GoVersion != GoVersion {
		t.Errorf("Expected GoVersion=%s, got %s", GoVersion, info.GoVersion)
	}
}

func TestGetEnv(t *testing.T) {
	tests := []struct {
		name         string
		key          string
		defaultValue string
		envValue     string
		want         string
		setEnv       bool
	}{
		{
			name:         "Returns default when env var not set",
			key:          "TEST_UNSET_VAR",
			defaultValue: "default",
			want:         "default",
			setEnv:       false,
		},
		{
			name:         "Returns env value when set",
			key:          "TEST_SET_VAR",
			defaultValue: "default",
			envValue:     "custom",
			want:         "custom",
			setEnv:       true,
		},
		{
			name:         "Returns default when env var is empty",
			key:          "TEST_EMPTY_VAR",
			defaultValue: "default",
			envValue:     "",
			want:         "default",
			setEnv:       true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.setEnv {
				t.Setenv(tt.key, tt.envValue)
			} else {
				// Ensure the variable is not set
				os.Unsetenv(tt.key)
				t.Cleanup(func() {
					os.Unsetenv(tt.key)
				})
			}

			got := getEnv(tt.key, tt.defaultValue)
			if got != tt.want {
				t.Errorf("getEnv(%q, %q) = %q, want %q", tt.key, tt.defaultValue, got, tt.want)
			}
		})
	}
}

func TestParseCategories(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want []mediatypes.Category
	}{
		{
			name: "Empty string yields no categories",
			raw:  "",
			want: nil,
		},
		{
			name: "Single category",
			raw:  "image",
			want: []mediatypes.Category{mediatypes.CategoryImage},
		},
		{
			name: "Multiple categories with spaces",
			raw:  "image, video",
			want: []mediatypes.Category{mediatypes.CategoryImage, mediatypes.CategoryVideo},
		},
		{
			name: "Case insensitive",
			raw:  "IMAGE,Audio",
			want: []mediatypes.Category{mediatypes.CategoryImage, mediatypes.CategoryAudio},
		},
		{
			name: "Unknown categories ignored",
			raw:  "image,spreadsheet",
			want: []mediatypes.Category{mediatypes.CategoryImage},
		},
		{
			name: "Document is not accepted",
			raw:  "document",
			want: nil,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseCategories(tt.raw)
			if len(got) != len(tt.want) {
				t.Fatalf("parseCategories(%q) = %v, want %v", tt.raw, got, tt.want)
			}
			for _, cat := range tt.want {
				if !got[cat] {
					t.Errorf("parseCategories(%q) missing %s", tt.raw, cat)
				}
			}
		})
	}
}

func TestLoadConfigDefaults(t *testing.T) {
	dataDir := t.TempDir()
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("SCRATCH_DIR", filepath.Join(t.TempDir(), "scratch"))

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.CatalogPath != filepath.Join(dataDir, "catalog.db") {
		t.Errorf("CatalogPath = %s", config.CatalogPath)
	}
	if config.StorageDir != filepath.Join(dataDir, "objects") {
		t.Errorf("StorageDir = %s", config.StorageDir)
	}
	if config.S3Bucket != "" {
		t.Errorf("S3Bucket should default empty, got %s", config.S3Bucket)
	}
	if config.MaxFileBytes != 500*1024*1024 {
		t.Errorf("MaxFileBytes = %d", config.MaxFileBytes)
	}
	if config.UploadIdleTimeout != 60*time.Second {
		t.Errorf("UploadIdleTimeout = %s", config.UploadIdleTimeout)
	}
	if !config.MetricsEnabled {
		t.Error("Metrics should default enabled")
	}
	if len(config.MandatoryArtifacts) != 0 {
		t.Errorf("MandatoryArtifacts should default empty, got %v", config.MandatoryArtifacts)
	}
	if config.MaxImageEdge != 1920 || config.CaptureMaxEdge != 1280 || config.CaptureFPS != 15 {
		t.Errorf("processing knobs = %d/%d/%d", config.MaxImageEdge, config.CaptureMaxEdge, config.CaptureFPS)
	}
	if config.HEICWorkerTimeout != 2*time.Second {
		t.Errorf("HEICWorkerTimeout = %s", config.HEICWorkerTimeout)
	}

	// The scratch directory is created during load.
	if _, err := os.Stat(config.ScratchDir); err != nil {
		t.Errorf("Scratch directory not created: %v", err)
	}
}

func TestLoadConfigOverrides(t *testing.T) {
	t.Setenv("DATA_DIR", t.TempDir())
	t.Setenv("SCRATCH_DIR", filepath.Join(t.TempDir(), "scratch"))
	t.Setenv("S3_BUCKET", "ingest-bucket")
	t.Setenv("S3_REGION", "eu-west-1")
	t.Setenv("REMOTE_TRANSCODE_URL", "https://transcode.internal")
	t.Setenv("MAX_FILE_BYTES", "1048576")
	t.Setenv("UPLOAD_IDLE_TIMEOUT", "5s")
	t.Setenv("MANDATORY_ARTIFACTS", "image,video")
	t.Setenv("MAX_IMAGE_EDGE", "1280")
	t.Setenv("HEIC_WORKER_TIMEOUT", "500ms")

	config, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if config.S3Bucket != "ingest-bucket" || config.S3Region != "eu-west-1" {
		t.Errorf("S3 config = %s/%s", config.S3Bucket, config.S3Region)
	}
	if config.RemoteURL != "https://transcode.internal" {
		t.Errorf("RemoteURL = %s", config.RemoteURL)
	}
	if config.MaxFileBytes != 1048576 {
		t.Errorf("MaxFileBytes = %d", config.MaxFileBytes)
	}
	if config.UploadIdleTimeout != 5*time.Second {
		t.Errorf("UploadIdleTimeout = %s", config.UploadIdleTimeout)
	}
	if !config.MandatoryArtifacts[mediatypes.CategoryImage] || !config.MandatoryArtifacts[mediatypes.CategoryVideo] {
		t.Errorf("MandatoryArtifacts = %v", config.MandatoryArtifacts)
	}
	if config.MaxImageEdge != 1280 {
		t.Errorf("MaxImageEdge = %d", config.MaxImageEdge)
	}
	if config.HEICWorkerTimeout != 500*time.Millisecond {
		t.Errorf("HEICWorkerTimeout = %s", config.HEICWorkerTimeout)
	}
}

func TestRouteInfo(t *testing.T) {
	route := RouteInfo{
		Method: "GET",
		Path:   "/metrics",
		Name:   "Metrics",
	}

	if route.Method != "GET" {
		t.Errorf("Expected Method=GET, got %s", route.Method)
	}
	if route.Path != "/metrics" {
		t.Errorf("Expected Path=/metrics, got %s", route.Path)
	}
	if route.Name != "Metrics" {
		t.Errorf("Expected Name=Metrics, got %s", route.Name)
	}
}
