package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
)

const jpegQuality = 85

// pdfImage is an image re-encoded for embedding
type pdfImage struct {
	name   string
	data   []byte
	width  int
	height int
}

// normalizeImage decodes any supported format and re-encodes it as a baseline
// JPEG on a white background. gofpdf rejects interlaced and 16-bit PNGs.
func normalizeImage(name string, data []byte) (*pdfImage, error) {
	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode image %s: %w", name, err)
	}
	bounds := src.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("image %s has no pixels", name)
	}

	canvas := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(canvas, canvas.Bounds(), &image.Uniform{C: color.White}, image.Point{}, draw.Src)
	draw.Draw(canvas, canvas.Bounds(), src, bounds.Min, draw.Over)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, canvas, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("encode image %s: %w", name, err)
	}
	return &pdfImage{name: name, data: buf.Bytes(), width: bounds.Dx(), height: bounds.Dy()}, nil
}
