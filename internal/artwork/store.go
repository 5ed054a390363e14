// ABOUTME: Slideshow image store for MOT objects
// ABOUTME: Maps MOT content sub-types to extensions and writes payloads next to a service log
package artwork

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/dabdump/dabdump/internal/dab"
)

// FallbackExtension is used for sub-types that are not JPEG or PNG
const FallbackExtension = "bin"

// Store writes slideshow objects as <prefix>-<unix>.<ext>
type Store struct {
	prefix string
}

// NewStore creates a store writing beside prefix (directory must exist)
func NewStore(prefix string) *Store {
	return &Store{prefix: prefix}
}

// Extension maps a MOT content sub-type to a file extension
func Extension(subType int) string {
	switch subType {
	case dab.MOTSubTypeJFIF:
		return "jpg"
	case dab.MOTSubTypePNG:
		return "png"
	default:
		return FallbackExtension
	}
}

// PathFor returns the file a MOT object received at ts is written to
func (s *Store) PathFor(ts int64, subType int) string {
	return fmt.Sprintf("%s-%d.%s", s.prefix, ts, Extension(subType))
}

// Save writes data and returns the base name recorded in the service log.
// An object arriving in the same second as the previous one with the same
// sub-type replaces it.
func (s *Store) Save(ts int64, subType int, data []byte) (string, error) {
	path := s.PathFor(ts, subType)

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create slide file: %w", err)
	}

	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to save slide: %w", err)
	}
	if err := f.Close(); err != nil {
		return "", fmt.Errorf("failed to save slide: %w", err)
	}

	return filepath.Base(path), nil
}
