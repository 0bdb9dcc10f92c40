package blob

import (
	"context"
	"errors"
	"fmt"
	"path"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// MaxImageSize is the largest accepted upload (5 MiB)
const MaxImageSize = 5 << 20

var (
	// ErrTooLarge is returned for uploads over MaxImageSize
	ErrTooLarge = errors.New("image exceeds maximum size")
	// ErrUnsupportedType is returned for content that is not an allowed image type
	ErrUnsupportedType = errors.New("unsupported image type")
	// ErrEmpty is returned for zero-byte uploads
	ErrEmpty = errors.New("image is empty")
)

var allowedTypes = map[string]string{
	"image/jpeg": ".jpg",
	"image/png":  ".png",
	"image/webp": ".webp",
	"image/gif":  ".gif",
}

// Store saves uploaded objects and returns a URL they can be fetched from
type Store interface {
	Put(ctx context.Context, key, contentType string, data []byte) (string, error)
}

// DetectImageType sniffs data and returns its media type when it is an allowed image.
// The declared Content-Type of an upload is not trusted.
func DetectImageType(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmpty
	}
	if len(data) > MaxImageSize {
		return "", ErrTooLarge
	}
	mt := mimetype.Detect(data).String()
	if _, ok := allowedTypes[mt]; !ok {
		return "", fmt.Errorf("%w: %s", ErrUnsupportedType, mt)
	}
	return mt, nil
}

// ObjectKey builds a unique key for an upload under owner's prefix
func ObjectKey(owner, contentType string) string {
	if owner == "" {
		owner = "anonymous"
	}
	return path.Join("uploads", owner, uuid.NewString()+allowedTypes[contentType])
}
