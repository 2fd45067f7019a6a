// Package qr renders check-in QR codes as PNG images.
package qr

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"

	"guestpass/internal/domain"
)

// DefaultSize is the PNG edge length in pixels used in confirmation emails.
const DefaultSize = 320

type pngGenerator struct {
	size  int
	level qrcode.RecoveryLevel
}

// NewGenerator returns a QRGenerator producing size x size PNGs with medium error correction.
func NewGenerator(size int) domain.QRGenerator {
	if size <= 0 {
		size = DefaultSize
	}
	return &pngGenerator{size: size, level: qrcode.Medium}
}

func (g *pngGenerator) PNG(content string) ([]byte, error) {
	png, err := qrcode.Encode(content, g.level, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}
