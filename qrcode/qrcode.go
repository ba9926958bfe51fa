package qrcode

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"

	skip2 "github.com/skip2/go-qrcode"
)

const (
	DefaultSize = 256
	minSize     = 21
	maxSize     = 4096
)

var (
	ErrEmptyContent = errors.New("qrcode: content is empty")
	ErrInvalidSize  = errors.New("qrcode: invalid image size")
)

// RecoveryLevel is the error correction level of the generated code.
type RecoveryLevel int

const (
	RecoveryLow RecoveryLevel = iota
	RecoveryMedium
	RecoveryHigh
	RecoveryHighest
)

func (l RecoveryLevel) skip2() skip2.RecoveryLevel {
	switch l {
	case RecoveryLow:
		return skip2.Low
	case RecoveryHigh:
		return skip2.High
	case RecoveryHighest:
		return skip2.Highest
	default:
		return skip2.Medium
	}
}

type Config struct {
	// Size is the PNG edge length in pixels. Zero means DefaultSize.
	Size     int
	Recovery RecoveryLevel
	// DisableBorder drops the quiet zone around the code.
	DisableBorder bool
}

// Renderer turns content into PNG bytes. It holds no state besides its
// configuration and is safe for concurrent use.
type Renderer struct {
	cfg Config
}

func New(cfg Config) (*Renderer, error) {
	if cfg.Size == 0 {
		cfg.Size = DefaultSize
	}
	if cfg.Size < minSize || cfg.Size > maxSize {
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, cfg.Size)
	}
	if cfg.Recovery < RecoveryLow || cfg.Recovery > RecoveryHighest {
		cfg.Recovery = RecoveryMedium
	}
	return &Renderer{cfg: cfg}, nil
}

// Render encodes content as a PNG QR code.
func (r *Renderer) Render(ctx context.Context, content string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if content == "" {
		return nil, ErrEmptyContent
	}

	code, err := skip2.New(content, r.cfg.Recovery.skip2())
	if err != nil {
		return nil, fmt.Errorf("qrcode: encode: %w", err)
	}
	code.DisableBorder = r.cfg.DisableBorder

	png, err := code.PNG(r.cfg.Size)
	if err != nil {
		return nil, fmt.Errorf("qrcode: png: %w", err)
	}
	return png, nil
}

// GenerateBase64 renders content at size with Medium recovery and returns
// the PNG as standard base64.
func GenerateBase64(content string, size int) (string, error) {
	r, err := New(Config{Size: size})
	if err != nil {
		return "", err
	}
	png, err := r.Render(context.Background(), content)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(png), nil
}

// GenerateDataURI is GenerateBase64 wrapped as a data:image/png URI.
func GenerateDataURI(content string, size int) (string, error) {
	encoded, err := GenerateBase64(content, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + encoded, nil
}
