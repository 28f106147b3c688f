package render

import (
	"bytes"
	"fmt"
	"image/png"

	"github.com/boombuler/barcode"
	"github.com/boombuler/barcode/code128"
	"github.com/boombuler/barcode/ean"
)

// Barcode image size in pixels.
const (
	BarcodeWidth  = 230
	BarcodeHeight = 70
)

// BarcodePNG draws code as a PNG. Codes that are not valid EAN-13 (a
// supplier code with a foreign check digit) fall back to Code 128.
func BarcodePNG(code string, width, height int) ([]byte, error) {
	var (
		bc  barcode.Barcode
		err error
	)
	bc, err = ean.Encode(code)
	if err != nil {
		if bc, err = code128.Encode(code); err != nil {
			return nil, fmt.Errorf("encode barcode %q: %w", code, err)
		}
	}

	scaled, err := barcode.Scale(bc, width, height)
	if err != nil {
		return nil, fmt.Errorf("scale barcode %q: %w", code, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, scaled); err != nil {
		return nil, fmt.Errorf("encode png: %w", err)
	}
	return buf.Bytes(), nil
}
