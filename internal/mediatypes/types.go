package mediatypes

import (
	"path/filepath"
	"strings"
)

// Category represents the broad content category of an input file.
type Category string

const (
	// CategoryImage represents still image files.
	CategoryImage Category = "image"
	// CategoryVideo represents video files.
	CategoryVideo Category = "video"
	// CategoryAudio represents audio files.
	CategoryAudio Category = "audio"
	// CategoryDocument represents anything that is not image, video or audio.
	CategoryDocument Category = "document"
)

// ImageExtensions maps file extensions to whether they are recognized image formats.
var ImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".gif":  true,
	".bmp":  true,
	".webp": true,
	".tiff": true,
	".tif":  true,
	".heic": true,
	".heif": true,
	".avif": true,
}

// VideoExtensions maps file extensions to whether they are recognized video formats.
var VideoExtensions = map[string]bool{
	".mp4":  true,
	".mkv":  true,
	".avi":  true,
	".mov":  true,
	".wmv":  true,
	".flv":  true,
	".webm": true,
	".m4v":  true,
	".mpeg": true,
	".mpg":  true,
	".3gp":  true,
	".ts":   true,
}

// AudioExtensions maps file extensions to whether they are recognized audio formats.
var AudioExtensions = map[string]bool{
	".mp3":  true,
	".wav":  true,
	".flac": true,
	".aac":  true,
	".ogg":  true,
	".m4a":  true,
	".opus": true,
	".wma":  true,
}

// HEICExtensions maps file extensions used by HEIF-family containers.
var HEICExtensions = map[string]bool{
	".heic": true,
	".heif": true,
}

// MimeTypes maps file extensions to their MIME types.
var MimeTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".bmp":  "image/bmp",
	".webp": "image/webp",
	".tiff": "image/tiff",
	".tif":  "image/tiff",
	".heic": "image/heic",
	".heif": "image/heif",
	".avif": "image/avif",

	".mp4":  "video/mp4",
	".mkv":  "video/x-matroska",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
	".webm": "video/webm",
	".m4v":  "video/x-m4v",
	".mpeg": "video/mpeg",
	".mpg":  "video/mpeg",
	".3gp":  "video/3gpp",
	".ts":   "video/mp2t",

	".mp3":  "audio/mpeg",
	".wav":  "audio/wav",
	".flac": "audio/flac",
	".aac":  "audio/aac",
	".ogg":  "audio/ogg",
	".m4a":  "audio/mp4",
	".opus": "audio/opus",
	".wma":  "audio/x-ms-wma",
}

// Categorize infers the content category from the declared MIME type,
// falling back to the file extension when the MIME type is missing or
// unrecognized.
func Categorize(name, declaredMIME string) Category {
	mime := strings.ToLower(strings.TrimSpace(declaredMIME))
	switch {
	case strings.HasPrefix(mime, "image/"):
		return CategoryImage
	case strings.HasPrefix(mime, "video/"):
		return CategoryVideo
	case strings.HasPrefix(mime, "audio/"):
		return CategoryAudio
	}

	ext := strings.ToLower(filepath.Ext(name))
	switch {
	case ImageExtensions[ext]:
		return CategoryImage
	case VideoExtensions[ext]:
		return CategoryVideo
	case AudioExtensions[ext]:
		return CategoryAudio
	}
	return CategoryDocument
}

// GetMimeType returns the MIME type for a file name based on its
// extension, or "application/octet-stream" if unrecognized.
func GetMimeType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if mime, ok := MimeTypes[ext]; ok {
		return mime
	}
	return "application/octet-stream"
}

// IsHEIC reports whether a file is a HEIF-family image. The declared MIME
// type, file extension, and (when provided) the leading bytes are all
// consulted because HEIC files frequently arrive with missing or wrong
// MIME types.
func IsHEIC(name, declaredMIME string, header []byte) bool {
	mime := strings.ToLower(strings.TrimSpace(declaredMIME))
	if mime == "image/heic" || mime == "image/heif" || mime == "image/heic-sequence" || mime == "image/heif-sequence" {
		return true
	}
	if HEICExtensions[strings.ToLower(filepath.Ext(name))] {
		return true
	}
	if len(header) > 0 {
		return SniffFormat(header) == "heif"
	}
	return false
}
