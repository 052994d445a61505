package thumbnails

// Preset is a named fit-within-bounds + JPEG encode configuration.
// Images are scaled down to fit Width x Height with their aspect ratio kept,
// and never upscaled. Height 0 bounds by width only.
type Preset struct {
	Name    string
	Width   int
	Height  int
	Quality int
}

// Validate reports ErrInvalidPreset for unusable configurations
func (p Preset) Validate() error {
	if p.Name == "" || p.Width <= 0 || p.Height < 0 {
		return ErrInvalidPreset
	}
	if p.Quality < 1 || p.Quality > 100 {
		return ErrInvalidPreset
	}
	return nil
}

// PostThumbnail is the image shown by the post list and detail views
var PostThumbnail = Preset{Name: "post_thumbnail", Width: 1024, Height: 1024, Quality: 82}
