package vision

import (
	"encoding/base64"
	"errors"
	"fmt"
	"mime"
	"os"
	"path/filepath"
	"strings"
)

// DefaultMediaType is used when the extension does not map to a known type.
// The remote server sniffs the payload itself, so a lenient default is enough.
const DefaultMediaType = "image/png"

// ErrImageNotFound is returned when no regular file exists at the resolved path
var ErrImageNotFound = errors.New("image not found")

// Image is a request-scoped encoded image
type Image struct {
	Path      string
	MediaType string
	Data      string
}

// EncodeImage resolves path, guesses its media type from the extension and
// base64-encodes the full file content.
func EncodeImage(path string) (Image, error) {
	resolved, err := ResolvePath(path)
	if err != nil {
		return Image{}, err
	}

	info, err := os.Stat(resolved)
	if err != nil || !info.Mode().IsRegular() {
		return Image{}, fmt.Errorf("%w: %s", ErrImageNotFound, resolved)
	}

	raw, err := os.ReadFile(resolved)
	if err != nil {
		return Image{}, fmt.Errorf("read image %s: %w", resolved, err)
	}

	return Image{
		Path:      resolved,
		MediaType: MediaTypeFor(resolved),
		Data:      base64.StdEncoding.EncodeToString(raw),
	}, nil
}

// ResolvePath expands a leading ~ and makes path absolute
func ResolvePath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, strings.TrimPrefix(path, "~"))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolve %q: %w", path, err)
	}
	if real, err := filepath.EvalSymlinks(abs); err == nil {
		abs = real
	}
	return abs, nil
}

// MediaTypeFor maps a file extension to a media type, without parameters
func MediaTypeFor(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return DefaultMediaType
	}
	typ := mime.TypeByExtension(ext)
	if typ == "" {
		return DefaultMediaType
	}
	if mt, _, err := mime.ParseMediaType(typ); err == nil {
		return mt
	}
	return typ
}
