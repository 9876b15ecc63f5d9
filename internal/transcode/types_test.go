package transcode

import "testing"

func TestCompressionRatio(t *testing.T) {
	tests := []struct {
		name      string
		original  int64
		processed int64
		want      int
	}{
		{"HalfSize", 1000, 500, 50},
		{"NoChange", 1000, 1000, 0},
		{"Rounding", 3000, 2000, 33},
		{"RoundingUp", 1000, 333, 67},
		{"Grew", 1000, 1500, -50},
		{"ZeroOriginal", 0, 100, 0},
		{"NegativeOriginal", -5, 100, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := CompressionRatio(tt.original, tt.processed); got != tt.want {
				t.Errorf("CompressionRatio(%d, %d) = %d, want %d", tt.original, tt.processed, got, tt.want)
			}
		})
	}
}

func TestArtifactKindExt(t *testing.T) {
	tests := []struct {
		kind ArtifactKind
		mime string
		want string
	}{
		{KindImage, "image/webp", "webp"},
		{KindImage, "image/jpeg", "jpg"},
		{KindVideo, "video/webm", "webm"},
		{KindVideo, "video/mp4", "mp4"},
		{KindThumbnail, "", "jpg"},
		{KindImage, "", "jpg"},
		{KindVideo, "", "mp4"},
		{KindAudio, "", "bin"},
	}

	for _, tt := range tests {
		if got := tt.kind.Ext(tt.mime); got != tt.want {
			t.Errorf("%s.Ext(%q) = %q, want %q", tt.kind, tt.mime, got, tt.want)
		}
	}
}

func TestHasArtifacts(t *testing.T) {
	empty := &ProcessedMedia{Artifacts: map[ArtifactKind][]byte{}}
	if empty.HasArtifacts() {
		t.Error("Expected empty mapping to report no artifacts")
	}

	full := &ProcessedMedia{Artifacts: map[ArtifactKind][]byte{KindImage: {1}}}
	if !full.HasArtifacts() {
		t.Error("Expected mapping with an entry to report artifacts")
	}
}

func TestBoundEdge(t *testing.T) {
	tests := []struct {
		name         string
		w, h, max    int
		wantW, wantH int
	}{
		{"LandscapeOver", 3840, 2160, 1920, 1920, 1080},
		{"PortraitOver", 1000, 4000, 1920, 480, 1920},
		{"WithinBounds", 800, 600, 1920, 800, 600},
		{"ExactBound", 1920, 1080, 1920, 1920, 1080},
		{"NoBound", 5000, 5000, 0, 5000, 5000},
		{"ExtremeAspect", 10000, 1, 1920, 1920, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w, h := boundEdge(tt.w, tt.h, tt.max)
			if w != tt.wantW || h != tt.wantH {
				t.Errorf("boundEdge(%d, %d, %d) = (%d, %d), want (%d, %d)",
					tt.w, tt.h, tt.max, w, h, tt.wantW, tt.wantH)
			}
		})
	}
}
