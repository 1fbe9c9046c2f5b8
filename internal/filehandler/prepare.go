package filehandler

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"

	// Registered decoders for image.Decode.
	_ "image/gif"
	_ "image/png"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

// DefaultMaxDimension is the maximum dimension (width or height) of an image
// sent to the rating backend.
const DefaultMaxDimension = 1024

// preparedJPEGQuality keeps the payload small while preserving enough detail
// for the model to judge focus and noise.
const preparedJPEGQuality = 85

// MaxPixels bounds the decoded size of an image. Decoding allocates roughly
// four bytes per pixel, so a small file declaring huge dimensions is rejected
// from its header before any pixel data is read.
const MaxPixels = 100_000_000

// ErrImageTooLarge is returned when an image header declares more than
// MaxPixels pixels.
var ErrImageTooLarge = errors.New("image exceeds pixel budget")

// PreparedImage is a downsized, transport-ready encoding of an image.
type PreparedImage struct {
	Data       []byte
	MIMEType   string
	Width      int
	Height     int
	OrigWidth  int
	OrigHeight int
}

// PrepareImage decodes an image payload (JPEG, PNG, GIF or WebP), downsizes it
// so neither side exceeds maxDimension, flattens transparency onto white and
// re-encodes it as JPEG. Images already within bounds are re-encoded at their
// original size. HEIC/HEIF payloads are converted with ffmpeg first; see
// prepareHEIC.
func PrepareImage(data []byte, maxDimension int) (*PreparedImage, error) {
	if maxDimension <= 0 {
		maxDimension = DefaultMaxDimension
	}
	if IsHEIC(data) {
		return prepareHEIC(data, maxDimension)
	}
	return prepareRaster(data, maxDimension)
}

// prepareRaster handles the formats registered with the image package.
func prepareRaster(data []byte, maxDimension int) (*PreparedImage, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image header: %w", err)
	}
	if int64(cfg.Width)*int64(cfg.Height) > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d", ErrImageTooLarge, cfg.Width, cfg.Height)
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	origWidth, origHeight := bounds.Dx(), bounds.Dy()
	if origWidth == 0 || origHeight == 0 {
		return nil, fmt.Errorf("image has empty bounds (%dx%d)", origWidth, origHeight)
	}

	newWidth, newHeight := calculateTargetDimensions(origWidth, origHeight, maxDimension)

	dst := image.NewRGBA(image.Rect(0, 0, newWidth, newHeight))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.CatmullRom.Scale(dst, dst.Bounds(), img, bounds, draw.Over, nil)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: preparedJPEGQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}

	log.Debug().
		Str("format", format).
		Int("orig_width", origWidth).
		Int("orig_height", origHeight).
		Int("new_width", newWidth).
		Int("new_height", newHeight).
		Int("input_bytes", len(data)).
		Int("output_bytes", buf.Len()).
		Msg("Image prepared for rating")

	return &PreparedImage{
		Data:       buf.Bytes(),
		MIMEType:   "image/jpeg",
		Width:      newWidth,
		Height:     newHeight,
		OrigWidth:  origWidth,
		OrigHeight: origHeight,
	}, nil
}

// calculateTargetDimensions calculates new dimensions maintaining aspect ratio.
func calculateTargetDimensions(width, height, maxDimension int) (int, int) {
	if width <= maxDimension && height <= maxDimension {
		return width, height
	}

	if width > height {
		newHeight := int(float64(height) * float64(maxDimension) / float64(width))
		return maxDimension, max(newHeight, 1)
	}

	newWidth := int(float64(width) * float64(maxDimension) / float64(height))
	return max(newWidth, 1), maxDimension
}
