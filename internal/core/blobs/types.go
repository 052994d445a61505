package blobs

import (
	"context"
	"fmt"
	"net/http"
	"path"
	"strings"

	"github.com/ipfs/go-cid"
	mh "github.com/multiformats/go-multihash"

	"Commons/internal/core/errs"
)

// MaxImageBytes bounds an uploaded thumbnail
const MaxImageBytes = 10 * 1024 * 1024

// Store is the external blob store images are uploaded to
type Store interface {
	// Upload writes data at path and returns its public URL
	Upload(ctx context.Context, data []byte, path string) (string, error)
}

var imageExtensions = map[string]string{
	"image/jpeg": "jpg",
	"image/png":  "png",
	"image/gif":  "gif",
	"image/webp": "webp",
}

// ImagePath validates data as an image and names it by content under dir,
// e.g. "posts/bafkrei....jpg". Identical uploads share a path.
func ImagePath(dir string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", errs.NewValidationError("image", "image is empty")
	}
	if len(data) > MaxImageBytes {
		return "", errs.NewValidationError("image", fmt.Sprintf("image exceeds %d bytes", MaxImageBytes))
	}

	mimeType := http.DetectContentType(data)
	ext, ok := imageExtensions[mimeType]
	if !ok {
		return "", errs.NewValidationError("image", fmt.Sprintf("unsupported image type %s", mimeType))
	}

	id, err := ContentID(data)
	if err != nil {
		return "", err
	}
	return path.Join(dir, id+"."+ext), nil
}

// ContentID returns the CIDv1 (raw codec, sha2-256) of data
func ContentID(data []byte) (string, error) {
	prefix := cid.Prefix{
		Version:  1,
		Codec:    cid.Raw,
		MhType:   mh.SHA2_256,
		MhLength: -1,
	}
	c, err := prefix.Sum(data)
	if err != nil {
		return "", fmt.Errorf("failed to compute content id: %w", err)
	}
	return c.String(), nil
}

// cleanPath rejects absolute or escaping blob paths
func cleanPath(p string) (string, error) {
	if p == "" || strings.HasPrefix(p, "/") || strings.Contains(p, "\\") {
		return "", fmt.Errorf("invalid blob path: %q", p)
	}
	cleaned := path.Clean(p)
	if cleaned == "." || cleaned == ".." || strings.HasPrefix(cleaned, "../") {
		return "", fmt.Errorf("invalid blob path: %q", p)
	}
	return cleaned, nil
}
