// Package uploads stores message images and avatars. Clients submit
// images as base64 data URIs; the disk store decodes them, writes them
// under the upload directory and returns the URL they are served from.
package uploads

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrUpload wraps any object-store failure. Callers surface it and
// abort the send; no partial message is created.
var ErrUpload = errors.New("image upload failed")

type Store interface {
	// Upload persists a base64 data URI and returns the public URL.
	Upload(ctx context.Context, dataURI string) (string, error)
}

// DiskStore writes images under dir and serves them from baseURL+"/uploads/images".
type DiskStore struct {
	dir     string
	baseURL string
}

func NewDiskStore(dir, baseURL string) (*DiskStore, error) {
	if err := os.MkdirAll(filepath.Join(dir, "images"), 0755); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUpload, err)
	}
	return &DiskStore{dir: dir, baseURL: baseURL}, nil
}

var extByMIME = map[string]string{
	"image/png":  ".png",
	"image/jpeg": ".jpg",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

func (s *DiskStore) Upload(ctx context.Context, dataURI string) (string, error) {
	mime, raw, err := decodeDataURI(dataURI)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	ext, ok := extByMIME[mime]
	if !ok {
		return "", fmt.Errorf("%w: unsupported content type %q", ErrUpload, mime)
	}

	filename := fmt.Sprintf("%d_%s%s", time.Now().UnixNano(), uuid.NewString(), ext)
	destPath := filepath.Join(s.dir, "images", filename)
	if err := os.WriteFile(destPath, raw, 0644); err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	if s.baseURL == "" {
		return "/uploads/images/" + filename, nil
	}
	return fmt.Sprintf("%s/uploads/images/%s", s.baseURL, filename), nil
}

// decodeDataURI splits "data:<mime>;base64,<payload>" into its parts.
func decodeDataURI(uri string) (mime string, raw []byte, err error) {
	rest, ok := strings.CutPrefix(uri, "data:")
	if !ok {
		return "", nil, errors.New("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return "", nil, errors.New("malformed data URI")
	}
	mime, _, _ = strings.Cut(header, ";")
	if !strings.Contains(header, ";base64") {
		return "", nil, errors.New("data URI is not base64 encoded")
	}
	raw, err = base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return "", nil, err
	}
	return mime, raw, nil
}
