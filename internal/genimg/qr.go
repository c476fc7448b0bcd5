// Package genimg generates QR code and avatar PNGs.
package genimg

import (
	"fmt"

	qrcode "github.com/skip2/go-qrcode"
)

// QRPNG encodes a URL as a QR code PNG of the given edge size in pixels.
func QRPNG(targetURL string, size int) ([]byte, error) {
	if targetURL == "" {
		return nil, fmt.Errorf("qr target url required")
	}
	if size <= 0 {
		size = 256
	}
	png, err := qrcode.Encode(targetURL, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}
