package filehandler

import (
	"fmt"
	"os"
	"os/exec"

	"github.com/rs/zerolog/log"
)

// lookPath locates external tools. Tests replace it to simulate a host
// without ffmpeg.
var lookPath = exec.LookPath

// heicBrands are the ISO BMFF major brands used by HEIC/HEIF stills.
var heicBrands = map[string]string{
	"heic": "image/heic",
	"heix": "image/heic",
	"heim": "image/heic",
	"heis": "image/heic",
	"mif1": "image/heif",
	"msf1": "image/heif",
}

// IsHEIC reports whether data starts with an ftyp box carrying a HEIC/HEIF
// brand.
func IsHEIC(data []byte) bool {
	_, ok := heicMIMEType(data)
	return ok
}

func heicMIMEType(data []byte) (string, bool) {
	if len(data) < 12 || string(data[4:8]) != "ftyp" {
		return "", false
	}
	mimeType, ok := heicBrands[string(data[8:12])]
	return mimeType, ok
}

// prepareHEIC converts a HEIC/HEIF payload to PNG with ffmpeg and prepares the
// result like any other raster. Without ffmpeg, or when the conversion fails,
// the original bytes are returned under their HEIC MIME type, which the
// Gemini backend accepts as is.
func prepareHEIC(data []byte, maxDimension int) (*PreparedImage, error) {
	mimeType, _ := heicMIMEType(data)
	passthrough := &PreparedImage{Data: data, MIMEType: mimeType}

	ffmpegPath, err := lookPath("ffmpeg")
	if err != nil {
		log.Warn().Msg("ffmpeg not found, sending original HEIC bytes")
		return passthrough, nil
	}

	converted, err := convertHEIC(ffmpegPath, data, maxDimension)
	if err != nil {
		log.Warn().Err(err).Msg("ffmpeg HEIC conversion failed, sending original HEIC bytes")
		return passthrough, nil
	}

	return prepareRaster(converted, maxDimension)
}

// convertHEIC runs ffmpeg over a temp copy of data and returns the first frame
// as PNG, scaled down so its width does not exceed maxDimension.
func convertHEIC(ffmpegPath string, data []byte, maxDimension int) ([]byte, error) {
	in, err := os.CreateTemp("", "rate-*.heic")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	inPath := in.Name()
	defer os.Remove(inPath)

	if _, err := in.Write(data); err != nil {
		in.Close()
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}
	if err := in.Close(); err != nil {
		return nil, fmt.Errorf("failed to write temp file: %w", err)
	}

	out, err := os.CreateTemp("", "rate-*.png")
	if err != nil {
		return nil, fmt.Errorf("failed to create temp file: %w", err)
	}
	outPath := out.Name()
	out.Close()
	defer os.Remove(outPath)

	vf := fmt.Sprintf("scale='min(%d,iw)':-2", maxDimension)
	cmd := exec.Command(ffmpegPath,
		"-i", inPath,
		"-vf", vf,
		"-frames:v", "1",
		"-y", outPath,
	)
	if output, err := cmd.CombinedOutput(); err != nil {
		return nil, fmt.Errorf("ffmpeg: %w: %s", err, output)
	}

	converted, err := os.ReadFile(outPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read converted frame: %w", err)
	}
	return converted, nil
}
