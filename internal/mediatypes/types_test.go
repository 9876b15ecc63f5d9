package mediatypes

import "testing"

func TestCategorize(t *testing.T) {
	tests := []struct {
		name string
		mime string
		want Category
	}{
		{"photo.jpg", "image/jpeg", CategoryImage},
		{"clip.mp4", "video/mp4", CategoryVideo},
		{"song.mp3", "audio/mpeg", CategoryAudio},
		{"notes.pdf", "application/pdf", CategoryDocument},

		// Missing MIME: extension decides.
		{"photo.png", "", CategoryImage},
		{"clip.mov", "", CategoryVideo},
		{"song.flac", "", CategoryAudio},
		{"notes.txt", "", CategoryDocument},

		// Wrong MIME wins over extension only when it is a media MIME.
		{"clip.mp4", "application/octet-stream", CategoryVideo},
		{"IMG_0001.HEIC", "", CategoryImage},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.mime, func(t *testing.T) {
			if got := Categorize(tt.name, tt.mime); got != tt.want {
				t.Errorf("Categorize(%q, %q) = %v, want %v", tt.name, tt.mime, got, tt.want)
			}
		})
	}
}

func TestGetMimeType(t *testing.T) {
	tests := []struct {
		name string
		want string
	}{
		{"a.jpg", "image/jpeg"},
		{"a.JPG", "image/jpeg"},
		{"a.webm", "video/webm"},
		{"a.opus", "audio/opus"},
		{"a.xyz", "application/octet-stream"},
		{"noext", "application/octet-stream"},
	}

	for _, tt := range tests {
		if got := GetMimeType(tt.name); got != tt.want {
			t.Errorf("GetMimeType(%q) = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestIsHEIC(t *testing.T) {
	heicHeader := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'}
	mp4Header := []byte{0x00, 0x00, 0x00, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}

	tests := []struct {
		name   string
		mime   string
		header []byte
		want   bool
	}{
		{"IMG_0001.heic", "", nil, true},
		{"IMG_0001.HEIF", "", nil, true},
		{"photo.bin", "image/heic", nil, true},
		{"photo.bin", "image/heif-sequence", nil, true},

		// Misdeclared MIME and unhelpful name: magic bytes decide.
		{"upload.tmp", "application/octet-stream", heicHeader, true},
		{"upload.tmp", "application/octet-stream", mp4Header, false},
		{"photo.jpg", "image/jpeg", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.mime, func(t *testing.T) {
			if got := IsHEIC(tt.name, tt.mime, tt.header); got != tt.want {
				t.Errorf("IsHEIC(%q, %q) = %v, want %v", tt.name, tt.mime, got, tt.want)
			}
		})
	}
}

func TestSniffFormat(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		want   string
	}{
		{"JPEG", []byte{0xFF, 0xD8, 0xFF, 0xE0}, "jpeg"},
		{"PNG", []byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "png"},
		{"GIF", []byte{0x47, 0x49, 0x46, 0x38, 0x39, 0x61}, "gif"},
		{"WebP", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'E', 'B', 'P'}, "webp"},
		{"WAV", []byte{'R', 'I', 'F', 'F', 0, 0, 0, 0, 'W', 'A', 'V', 'E'}, "wav"},
		{"HEIC", []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'h', 'e', 'i', 'c'}, "heif"},
		{"AVIF", []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'a', 'v', 'i', 'f'}, "avif"},
		{"MP4", []byte{0, 0, 0, 0x18, 'f', 't', 'y', 'p', 'i', 's', 'o', 'm'}, "mp4"},
		{"Matroska", []byte{0x1A, 0x45, 0xDF, 0xA3}, "matroska"},
		{"MP3-ID3", []byte{'I', 'D', '3', 0x03}, "mp3"},
		{"FLAC", []byte{'f', 'L', 'a', 'C'}, "flac"},
		{"Ogg", []byte{'O', 'g', 'g', 'S'}, "ogg"},
		{"Empty", nil, "unknown"},
		{"Garbage", []byte{0x00, 0x01, 0x02, 0x03}, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SniffFormat(tt.header); got != tt.want {
				t.Errorf("SniffFormat = %q, want %q", got, tt.want)
			}
		})
	}
}
