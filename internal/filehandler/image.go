package filehandler

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/evanoberholster/imagemeta"
	"github.com/rs/zerolog/log"
)

// ImageMetadata contains the EXIF fields shown on item cards and passed to
// the rating prompt as context.
type ImageMetadata struct {
	// Timestamp (with timezone if available in OffsetTimeOriginal)
	DateTaken time.Time
	HasDate   bool

	CameraMake  string
	CameraModel string
	LensModel   string
}

// Camera returns "Make Model", collapsing the make when the model already
// starts with it (e.g. "Canon Canon EOS R5").
func (m *ImageMetadata) Camera() string {
	if m == nil {
		return ""
	}
	if m.CameraMake != "" && strings.HasPrefix(strings.ToLower(m.CameraModel), strings.ToLower(m.CameraMake)) {
		return m.CameraModel
	}
	return strings.TrimSpace(m.CameraMake + " " + m.CameraModel)
}

// ExtractImageMetadata reads EXIF metadata from an image stream.
// Only the metadata block is read, not the pixel data.
// Date falls back from DateTimeOriginal to CreateDate to ModifyDate.
func ExtractImageMetadata(r io.ReadSeeker) (*ImageMetadata, error) {
	exifData, err := imagemeta.Decode(r)
	if err != nil {
		return nil, fmt.Errorf("failed to decode EXIF metadata: %w", err)
	}

	metadata := &ImageMetadata{}

	if !exifData.DateTimeOriginal().IsZero() {
		metadata.DateTaken = exifData.DateTimeOriginal()
		metadata.HasDate = true
	} else if !exifData.CreateDate().IsZero() {
		metadata.DateTaken = exifData.CreateDate()
		metadata.HasDate = true
	} else if !exifData.ModifyDate().IsZero() {
		metadata.DateTaken = exifData.ModifyDate()
		metadata.HasDate = true
	}

	metadata.CameraMake = strings.TrimSpace(exifData.Make)
	metadata.CameraModel = strings.TrimSpace(exifData.Model)
	metadata.LensModel = strings.TrimSpace(exifData.LensModel)

	log.Debug().
		Bool("has_date", metadata.HasDate).
		Str("camera", metadata.Camera()).
		Msg("Image metadata extraction complete")

	return metadata, nil
}

// FormatMetadataContext formats the metadata as a short text block for the
// rating prompt. Returns "" when there is nothing worth telling the model.
func (m *ImageMetadata) FormatMetadataContext() string {
	if m == nil {
		return ""
	}

	var sb strings.Builder
	if camera := m.Camera(); camera != "" {
		sb.WriteString(fmt.Sprintf("- Camera: %s\n", camera))
	}
	if m.LensModel != "" {
		sb.WriteString(fmt.Sprintf("- Lens: %s\n", m.LensModel))
	}
	if m.HasDate {
		sb.WriteString(fmt.Sprintf("- Taken: %s\n", m.DateTaken.Format("Monday, January 2, 2006 at 3:04 PM")))
	}
	return sb.String()
}
