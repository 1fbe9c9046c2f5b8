// Package filehandler loads, inspects and prepares image files for rating.
//
// Images are decoded in pure Go (JPEG, PNG, GIF, WebP). HEIC/HEIF is converted
// with ffmpeg when it is installed and passed through otherwise. EXIF metadata
// is read with evanoberholster/imagemeta, which only reads the metadata block
// rather than the whole file.
package filehandler

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// SupportedImageExtensions defines the file extensions accepted into a batch.
var SupportedImageExtensions = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".heic": "image/heic",
	".heif": "image/heif",
}

// ImageFile represents an image on disk that can be added to a batch.
type ImageFile struct {
	Path     string
	MIMEType string
	Size     int64
	Metadata *ImageMetadata
}

// Name returns the base file name.
func (f *ImageFile) Name() string {
	return filepath.Base(f.Path)
}

// ReadData reads the full original payload from disk.
func (f *ImageFile) ReadData() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}
	return data, nil
}

// LoadImageFile stats an image file and extracts its EXIF metadata.
// The payload itself is not loaded; call ReadData for that.
func LoadImageFile(filePath string) (*ImageFile, error) {
	log.Debug().Str("path", filePath).Msg("Loading image file")

	info, err := os.Stat(filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("file not found: %s", filePath)
		}
		return nil, fmt.Errorf("failed to stat file: %w", err)
	}

	if info.IsDir() {
		return nil, fmt.Errorf("path is a directory, not a file: %s", filePath)
	}

	ext := strings.ToLower(filepath.Ext(filePath))
	mimeType, err := GetMIMEType(ext)
	if err != nil {
		return nil, err
	}

	imageFile := &ImageFile{
		Path:     filePath,
		MIMEType: mimeType,
		Size:     info.Size(),
	}

	f, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	meta, err := ExtractImageMetadata(f)
	if err != nil {
		log.Debug().Err(err).Str("path", filePath).Msg("No EXIF metadata, continuing without it")
	} else {
		imageFile.Metadata = meta
	}

	log.Debug().
		Str("path", filePath).
		Str("mime_type", mimeType).
		Int64("size_bytes", info.Size()).
		Bool("has_metadata", imageFile.Metadata != nil).
		Msg("Image file loaded")

	return imageFile, nil
}

// MetadataFromBytes extracts EXIF metadata from an in-memory payload.
// Returns nil when the payload carries no readable EXIF block.
func MetadataFromBytes(data []byte) *ImageMetadata {
	meta, err := ExtractImageMetadata(bytes.NewReader(data))
	if err != nil {
		log.Debug().Err(err).Msg("No EXIF metadata in payload")
		return nil
	}
	return meta
}

// GetMIMEType returns the MIME type for a given file extension.
func GetMIMEType(ext string) (string, error) {
	if mimeType, ok := SupportedImageExtensions[strings.ToLower(ext)]; ok {
		return mimeType, nil
	}
	return "", fmt.Errorf("unsupported file extension: %s", ext)
}

// IsImage returns true if the file extension corresponds to a supported image.
func IsImage(ext string) bool {
	_, ok := SupportedImageExtensions[strings.ToLower(ext)]
	return ok
}
