// Package storage keeps complaint attachments, on local disk or in an
// S3-compatible bucket.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"path/filepath"
	"strings"
	"time"
)

// ErrInvalidPath is returned for keys that would escape the store root.
var ErrInvalidPath = errors.New("storage: invalid path")

// FileInfo describes a stored file.
type FileInfo struct {
	Key      string `json:"key"`
	URL      string `json:"url"`
	FileName string `json:"fileName"`
	FileSize int64  `json:"fileSize"`
	FileType string `json:"fileType"`
}

// Store is implemented by every attachment backend.
type Store interface {
	Save(ctx context.Context, key string, file io.Reader, contentType string) (*FileInfo, error)
	Delete(ctx context.Context, key string) error
	URL(key string) string
}

// AttachmentKey builds the key of a complaint attachment:
// complaints/<owner>/<unix>_<sanitized name>.
func AttachmentKey(ownerID, fileName string, now time.Time) string {
	owner := SanitizeFilename(ownerID)
	if owner == "" {
		owner = "anonymous"
	}
	return fmt.Sprintf("complaints/%s/%d_%s", owner, now.Unix(), SanitizeFilename(fileName))
}

// SanitizeFilename keeps the base name and replaces characters that are
// awkward in URLs.
func SanitizeFilename(name string) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	if name == "." || name == "/" || name == ".." {
		return ""
	}
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		}
		return '_'
	}, name)
}

// cleanKey normalizes a key and rejects traversal.
func cleanKey(key string) (string, error) {
	k := path.Clean("/" + strings.ReplaceAll(key, "\\", "/"))
	k = strings.TrimPrefix(k, "/")
	if k == "" || k == "." || strings.HasPrefix(k, "..") {
		return "", fmt.Errorf("%w: %q", ErrInvalidPath, key)
	}
	return k, nil
}
