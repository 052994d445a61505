package thumbnails

import "errors"

var (
	// ErrInvalidPreset is returned for malformed presets
	ErrInvalidPreset = errors.New("invalid image preset")

	// ErrUnsupportedFormat is returned when the source is not a JPEG, PNG, GIF or WebP image
	ErrUnsupportedFormat = errors.New("unsupported image format")

	// ErrProcessingFailed is returned when a recognised image cannot be decoded or re-encoded
	ErrProcessingFailed = errors.New("image processing failed")
)
