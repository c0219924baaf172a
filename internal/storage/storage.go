// Package storage keeps uploaded images (avatars and featured images) either in
// an S3-compatible bucket or on local disk, and returns the public URL of each
// stored object.
package storage

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

const (
	AvatarFolder   = "avatars"
	FeaturedFolder = "featured"

	// MaxAvatarSize is the largest accepted profile photo.
	MaxAvatarSize int64 = 1 << 20
	// MaxFeaturedImageSize is the largest accepted featured image.
	MaxFeaturedImageSize int64 = 5 << 20
)

var (
	ErrTooLarge        = errors.New("file is too large")
	ErrUnsupportedType = errors.New("only image files are allowed")
)

// allowedImageTypes are the sniffed MIME types accepted for upload.
var allowedImageTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/gif":  ".gif",
	"image/webp": ".webp",
}

// Store persists objects and hands back their public URL.
type Store interface {
	Save(ctx context.Context, folder, filename, contentType string, body io.Reader, size int64) (string, error)
	// Delete removes the object behind url. URLs the store did not produce are ignored.
	Delete(ctx context.Context, url string) error
}

// Upload is a validated image read from a multipart form.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

// Size returns the byte length of the upload.
func (u *Upload) Size() int64 { return int64(len(u.Data)) }

// SaveTo writes the upload into folder of store.
func (u *Upload) SaveTo(ctx context.Context, store Store, folder string) (string, error) {
	return store.Save(ctx, folder, u.Filename, u.ContentType, bytes.NewReader(u.Data), u.Size())
}

// ReadImage loads a multipart file, rejecting anything over limit bytes or
// whose content does not sniff as a supported image.
func ReadImage(header *multipart.FileHeader, limit int64) (*Upload, error) {
	if header.Size > limit {
		return nil, fmt.Errorf("%w: maximum is %d KiB", ErrTooLarge, limit>>10)
	}
	file, err := header.Open()
	if err != nil {
		return nil, fmt.Errorf("open upload: %w", err)
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, limit+1))
	if err != nil {
		return nil, fmt.Errorf("read upload: %w", err)
	}
	return NewUpload(header.Filename, data, limit)
}

// NewUpload validates raw image bytes.
func NewUpload(filename string, data []byte, limit int64) (*Upload, error) {
	if int64(len(data)) > limit {
		return nil, fmt.Errorf("%w: maximum is %d KiB", ErrTooLarge, limit>>10)
	}
	contentType := http.DetectContentType(data)
	if _, ok := allowedImageTypes[contentType]; !ok {
		return nil, ErrUnsupportedType
	}
	return &Upload{Filename: filename, ContentType: contentType, Data: data}, nil
}

// objectName builds a collision-free name that keeps a sensible extension.
func objectName(folder, filename, contentType string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	if want, ok := allowedImageTypes[contentType]; ok && ext != want && !(want == ".jpg" && ext == ".jpeg") {
		ext = want
	}
	return folder + "/" + uuid.New().String() + ext
}
