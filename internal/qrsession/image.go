package qrsession

import (
	"encoding/base64"

	"github.com/skip2/go-qrcode"
)

// DefaultImageSize is the edge length of generated QR images in pixels.
const DefaultImageSize = 256

// EncodePNG renders the payload as a QR code PNG.
func EncodePNG(p Payload, size int) ([]byte, error) {
	text, err := p.Encode()
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = DefaultImageSize
	}
	return qrcode.Encode(text, qrcode.Medium, size)
}

// DataURL renders the payload as a base64 PNG data URL for inline display.
func DataURL(p Payload, size int) (string, error) {
	png, err := EncodePNG(p, size)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
