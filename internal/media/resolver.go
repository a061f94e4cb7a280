// Package media turns images posted by clients into durable URLs.
package media

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"
)

// DefaultMaxBytes caps a decoded image.
const DefaultMaxBytes = 10 << 20

var (
	ErrEmptyImage   = errors.New("image is empty")
	ErrInvalidImage = errors.New("image is not valid base64")
	ErrNotAnImage   = errors.New("content is not an image")
	ErrTooLarge     = errors.New("image too large")
)

// ObjectPutter stores a blob under a key.
type ObjectPutter interface {
	PutObject(ctx context.Context, key string, body io.Reader, size int64, contentType string) error
}

// Resolver uploads images and returns their public URL.
type Resolver struct {
	store    ObjectPutter
	baseURL  string
	prefix   string
	maxBytes int
}

// NewResolver builds a Resolver. baseURL is the public address objects are served from.
func NewResolver(store ObjectPutter, baseURL, prefix string, maxBytes int) *Resolver {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Resolver{
		store:    store,
		baseURL:  strings.TrimRight(baseURL, "/"),
		prefix:   strings.Trim(prefix, "/"),
		maxBytes: maxBytes,
	}
}

// Upload accepts a data URL or bare base64 image, stores it and returns its URL.
func (r *Resolver) Upload(ctx context.Context, raw string) (string, error) {
	data, err := decode(raw)
	if err != nil {
		return "", err
	}
	if len(data) > r.maxBytes {
		return "", fmt.Errorf("%w: %d bytes", ErrTooLarge, len(data))
	}
	mt := mimetype.Detect(data)
	if !strings.HasPrefix(mt.String(), "image/") {
		return "", fmt.Errorf("%w: %s", ErrNotAnImage, mt.String())
	}

	key := uuid.NewString() + mt.Extension()
	if r.prefix != "" {
		key = r.prefix + "/" + key
	}
	if err := r.store.PutObject(ctx, key, bytes.NewReader(data), int64(len(data)), mt.String()); err != nil {
		return "", fmt.Errorf("put object: %w", err)
	}
	return r.baseURL + "/" + key, nil
}

// decode strips an optional "data:<mime>;base64," header. The declared mime is
// ignored; content is sniffed instead.
func decode(raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, ErrEmptyImage
	}
	if strings.HasPrefix(raw, "data:") {
		i := strings.Index(raw, ",")
		if i < 0 || !strings.HasSuffix(raw[:i], ";base64") {
			return nil, ErrInvalidImage
		}
		raw = raw[i+1:]
	}
	data, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		if data, err = base64.RawStdEncoding.DecodeString(raw); err != nil {
			return nil, ErrInvalidImage
		}
	}
	if len(data) == 0 {
		return nil, ErrEmptyImage
	}
	return data, nil
}

// ErrDisabled is returned when no object storage is configured.
var ErrDisabled = errors.New("media storage not configured")

// Disabled rejects every upload.
type Disabled struct{}

func (Disabled) Upload(context.Context, string) (string, error) { return "", ErrDisabled }
