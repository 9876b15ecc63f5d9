// Package mediatypes classifies user-submitted files into content
// categories and detects on-disk formats from magic bytes.
//
// Declared MIME types on incoming files are frequently missing or wrong
// (HEIC in particular often arrives as application/octet-stream), so
// classification consults the declared MIME type, the file extension, and
// where available the first bytes of the file, in that order of
// increasing authority.
package mediatypes
