package validation

import (
	"bytes"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
)

var (
	ErrEmptyFile       = errors.New("file is empty")
	ErrInvalidFileType = errors.New("invalid file type")
	ErrFileTooLarge    = errors.New("file too large")
	ErrMissingFilename = errors.New("filename is required")
)

// minMagicLength is the shortest payload accepted for signature checks.
const minMagicLength = 8

// ImageContentTypes lists the declared MIME types accepted for image uploads.
var ImageContentTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
}

// ImageExtensions maps accepted extensions to their content type.
var ImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
}

// storageExtensions is the extension written into storage keys per content type.
var storageExtensions = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
}

var imageSignatures = []struct {
	magic       []byte
	contentType string
}{
	{[]byte{0xFF, 0xD8, 0xFF}, "image/jpeg"},
	{[]byte{0x89, 0x50, 0x4E, 0x47, 0x0D, 0x0A, 0x1A, 0x0A}, "image/png"},
	{[]byte("GIF87a"), "image/gif"},
	{[]byte("GIF89a"), "image/gif"},
}

// ValidateImage checks the declared content type against the allow-list and
// the leading bytes against known image signatures. head needs only the
// first few bytes of the payload.
func ValidateImage(contentType string, head []byte) error {
	if len(head) == 0 {
		return ErrEmptyFile
	}

	ct := normalizeContentType(contentType)
	if !ImageContentTypes[ct] {
		return fmt.Errorf("%w: content type %q is not allowed", ErrInvalidFileType, contentType)
	}

	if !HasImageSignature(head) {
		return fmt.Errorf("%w: content does not match a jpeg, png or gif signature", ErrInvalidFileType)
	}

	return nil
}

// HasImageSignature reports whether data starts with a JPEG, PNG or GIF magic number.
func HasImageSignature(data []byte) bool {
	return DetectImageType(data) != ""
}

// DetectImageType returns the content type whose magic number data starts
// with, or "" when none matches.
func DetectImageType(data []byte) string {
	if len(data) < minMagicLength {
		return ""
	}
	for _, sig := range imageSignatures {
		if bytes.HasPrefix(data, sig.magic) {
			return sig.contentType
		}
	}
	return ""
}

// StorageExtension returns the key extension for an accepted content type.
func StorageExtension(contentType string) string {
	return storageExtensions[normalizeContentType(contentType)]
}

// ValidateImageExtension checks a bare filename, used when no bytes exist yet.
func ValidateImageExtension(filename string) error {
	if strings.TrimSpace(filename) == "" {
		return ErrMissingFilename
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if _, ok := ImageExtensions[ext]; !ok {
		return fmt.Errorf("%w: extension %q is not allowed (jpg, jpeg, png, gif)", ErrInvalidFileType, ext)
	}

	return nil
}

// InferContentType derives a content type from the filename extension.
func InferContentType(filename string) string {
	ct, ok := ImageExtensions[strings.ToLower(filepath.Ext(filename))]
	if !ok {
		return "application/octet-stream"
	}
	return ct
}

// ValidateSize rejects payloads above max bytes.
func ValidateSize(size, max int64) error {
	if size > max {
		return fmt.Errorf("%w: maximum size is %d MB", ErrFileTooLarge, max/(1<<20))
	}
	return nil
}

func normalizeContentType(contentType string) string {
	ct, _, _ := strings.Cut(contentType, ";")
	return strings.ToLower(strings.TrimSpace(ct))
}
