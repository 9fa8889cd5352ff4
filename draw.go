package main

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"image/png"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

//---------------- Raster helpers ----------------

// fillFrame paints the whole frame with a solid opaque color.
func fillFrame(frame *image.RGBA, clr color.RGBA) {
	bounds := frame.Bounds()
	for i := 0; i < bounds.Dx()*bounds.Dy()*4; i += 4 {
		frame.Pix[i] = clr.R
		frame.Pix[i+1] = clr.G
		frame.Pix[i+2] = clr.B
		frame.Pix[i+3] = 255
	}
}

// toRGBA returns img as *image.RGBA, converting only when necessary.
func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok {
		return rgba
	}
	bounds := img.Bounds()
	rgba := image.NewRGBA(image.Rect(0, 0, bounds.Dx(), bounds.Dy()))
	draw.Draw(rgba, rgba.Bounds(), img, bounds.Min, draw.Src)
	return rgba
}

// cloneRGBA returns an independent copy of img.
func cloneRGBA(img *image.RGBA) *image.RGBA {
	out := image.NewRGBA(img.Bounds())
	copy(out.Pix, img.Pix)
	return out
}

// blendImageAt composites src onto dst at (x0,y0) using the over operator.
// Fully transparent source pixels are skipped, fully opaque ones copied
// directly; everything in between is mixed in 16-bit space.
func blendImageAt(dst *image.RGBA, src *image.RGBA, x0, y0 int) error {
	if dst == nil || src == nil {
		return fmt.Errorf("nil image provided")
	}
	if x0 < 0 || y0 < 0 {
		return fmt.Errorf("negative offset: %d,%d", x0, y0)
	}

	w := src.Bounds().Dx()
	h := src.Bounds().Dy()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			sample := src.RGBAAt(src.Bounds().Min.X+x, src.Bounds().Min.Y+y)
			switch sample.A {
			case 0:
				continue
			case 255:
				dst.SetRGBA(x0+x, y0+y, sample)
			default:
				prev := dst.RGBAAt(x0+x, y0+y)
				a := uint16(sample.A)
				inv := uint16(255 - sample.A)
				dst.SetRGBA(x0+x, y0+y, color.RGBA{
					R: uint8((uint16(sample.R)*a + uint16(prev.R)*inv) / 255),
					G: uint8((uint16(sample.G)*a + uint16(prev.G)*inv) / 255),
					B: uint8((uint16(sample.B)*a + uint16(prev.B)*inv) / 255),
					A: uint8(uint16(sample.A) + uint16(prev.A)*inv/255),
				})
			}
		}
	}
	return nil
}

// drawTextCentered draws text horizontally centered on centerX with the
// baseline placed so the glyph block sits vertically centered on centerY.
// Returns the advance width in pixels.
func drawTextCentered(img *image.RGBA, text string, centerX, centerY int, face font.Face, clr color.Color) int {
	d := &font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(clr),
		Face: face,
	}
	width := d.MeasureString(text).Round()
	metrics := face.Metrics()
	ascent := metrics.Ascent.Round()
	descent := metrics.Descent.Round()

	x := centerX - width/2
	y := centerY + (ascent+descent)/2 - descent

	d.Dot = fixed.P(x, y)
	d.DrawString(text)
	return width
}

// encodePNG renders img into a PNG byte slice.
func encodePNG(img image.Image) ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// encodeImageDataURI encodes img as the base64 PNG data URI the button host
// expects in setImage payloads.
func encodeImageDataURI(img image.Image) (string, error) {
	raw, err := encodePNG(img)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(raw), nil
}
