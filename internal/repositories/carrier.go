package repositories

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

const (
	carrierWidth  = 200
	carrierHeight = 100
	// DefaultCarrierSize is the fixed slot every chunk's cover image is padded
	// to, so readers can skip it without decoding.
	DefaultCarrierSize = 20 << 10
)

var (
	carrierBackground = color.RGBA{R: 240, G: 240, B: 240, A: 255}
	carrierInk        = color.RGBA{R: 50, G: 50, B: 50, A: 255}
)

// carrierPNG renders a small labelled PNG and zero-pads it to exactly size
// bytes. Decoders stop at IEND, so the padding and any payload appended after
// it are ignored by image viewers.
func carrierPNG(label string, size int) ([]byte, error) {
	img := image.NewRGBA(image.Rect(0, 0, carrierWidth, carrierHeight))
	draw.Draw(img, img.Bounds(), image.NewUniform(carrierBackground), image.Point{}, draw.Src)

	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(carrierInk),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(10, 50),
	}
	d.DrawString(label)

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("encode carrier: %w", err)
	}
	if buf.Len() > size {
		return nil, fmt.Errorf("carrier is %d bytes, slot is %d", buf.Len(), size)
	}
	out := make([]byte, size)
	copy(out, buf.Bytes())
	return out, nil
}
