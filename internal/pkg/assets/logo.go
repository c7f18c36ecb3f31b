package assets

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/disintegration/imaging"
)

const (
	MaxLogoBytes = 5 << 20
	MaxLogoSize  = 512
)

var (
	ErrLogoTooLarge   = errors.New("logo exceeds 5 MB")
	ErrInvalidImage   = errors.New("logo is not a supported image")
	ErrStorageMissing = errors.New("asset storage is not configured")
)

// ProcessLogo decodes an uploaded image, fits it into 512x512 and encodes it
// as PNG.
func ProcessLogo(r io.Reader) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxLogoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > MaxLogoBytes {
		return nil, ErrLogoTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}

	b := img.Bounds()
	if b.Dx() > MaxLogoSize || b.Dy() > MaxLogoSize {
		img = imaging.Fit(img, MaxLogoSize, MaxLogoSize, imaging.Lanczos)
	}

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.PNG); err != nil {
		return nil, fmt.Errorf("encode logo: %w", err)
	}
	return buf.Bytes(), nil
}

// LogoUploader processes and stores tenant logos.
type LogoUploader struct {
	store ObjectStore
}

// NewLogoUploader creates an uploader; store may be nil when no bucket is
// configured.
func NewLogoUploader(store ObjectStore) *LogoUploader {
	return &LogoUploader{store: store}
}

// Upload stores the logo of the tenant with slug and returns its public URL.
func (u *LogoUploader) Upload(ctx context.Context, slug string, r io.Reader) (string, error) {
	if u == nil || u.store == nil {
		return "", ErrStorageMissing
	}
	png, err := ProcessLogo(r)
	if err != nil {
		return "", err
	}
	return u.store.Put(ctx, LogoKey(slug), png, "image/png")
}
