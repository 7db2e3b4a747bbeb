// Package upload implements the Uploader interface on local disk.
// Captured image bytes are written under an uploads directory with a
// generated filename; the returned URL is what the stored image records
// carry and what decoded display forms point at.
package upload

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"richsync/core"
)

// maxUploadSize caps a single image at 5 MB.
const maxUploadSize = 5 * 1024 * 1024

// allowedExtensions are the image types the service accepts.
var allowedExtensions = map[string]bool{
	".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true,
}

// DiskUploader stores uploads on the local filesystem.
type DiskUploader struct {
	dir     string
	baseURL string
}

// New creates a DiskUploader writing into dir and building URLs from
// baseURL. The directory is created if missing.
func New(dir, baseURL string) (*DiskUploader, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating uploads directory %s: %w", dir, err)
	}
	return &DiskUploader{
		dir:     dir,
		baseURL: strings.TrimSuffix(baseURL, "/"),
	}, nil
}

// Upload writes the image bytes to disk under a unique filename keeping the
// original extension, and returns the durable location.
func (u *DiskUploader) Upload(ctx context.Context, name string, data []byte) (core.UploadResult, error) {
	if err := ctx.Err(); err != nil {
		return core.UploadResult{}, err
	}
	if len(data) == 0 {
		return core.UploadResult{}, fmt.Errorf("upload %s: no data", name)
	}
	if len(data) > maxUploadSize {
		return core.UploadResult{}, fmt.Errorf("upload %s: %d bytes exceeds the %d byte limit", name, len(data), maxUploadSize)
	}

	ext := strings.ToLower(filepath.Ext(name))
	if !allowedExtensions[ext] {
		return core.UploadResult{}, fmt.Errorf("upload %s: file type %q not allowed", name, ext)
	}

	filename := uuid.New().String() + ext
	path := filepath.Join(u.dir, filename)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return core.UploadResult{}, fmt.Errorf("writing upload %s: %w", path, err)
	}

	return core.UploadResult{
		URL:        u.baseURL + "/" + filename,
		ServerPath: path,
	}, nil
}
