package thumbnails

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif" // Register GIF decoder
	"image/jpeg"
	_ "image/png" // Register PNG decoder

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp" // Register WebP decoder
)

// Processor turns an uploaded image into a thumbnail
type Processor interface {
	// Process returns data resized per preset and encoded as JPEG
	Process(data []byte, preset Preset) ([]byte, error)
}

// ImageProcessor implements Processor with the imaging library
type ImageProcessor struct{}

// NewProcessor creates a new ImageProcessor
func NewProcessor() Processor {
	return &ImageProcessor{}
}

// Process decodes data, fits it within preset and re-encodes it as JPEG.
// Re-encoding also drops any metadata the upload carried (EXIF location etc).
func (p *ImageProcessor) Process(data []byte, preset Preset) ([]byte, error) {
	if err := preset.Validate(); err != nil {
		return nil, err
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", ErrUnsupportedFormat)
	}

	// Sniff first so garbage is reported as a format problem, not a decode failure
	if _, _, err := image.DecodeConfig(bytes.NewReader(data)); errors.Is(err, image.ErrFormat) {
		return nil, fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}

	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to decode image: %v", ErrProcessingFailed, err)
	}

	out := contain(img, preset.Width, preset.Height)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, out, &jpeg.Options{Quality: preset.Quality}); err != nil {
		return nil, fmt.Errorf("%w: failed to encode JPEG: %v", ErrProcessingFailed, err)
	}
	return buf.Bytes(), nil
}

// contain never upscales. maxHeight 0 bounds by width only.
func contain(img image.Image, maxWidth, maxHeight int) image.Image {
	b := img.Bounds()
	if b.Dx() <= maxWidth && (maxHeight == 0 || b.Dy() <= maxHeight) {
		return img
	}
	if maxHeight == 0 {
		return imaging.Resize(img, maxWidth, 0, imaging.Lanczos)
	}
	return imaging.Fit(img, maxWidth, maxHeight, imaging.Lanczos)
}
