package main

import (
	"image"
	"math"
)

// RGB is a color triple with each channel in 0..255.
type RGB struct {
	R, G, B uint8
}

// HSL holds hue, saturation and lightness, each normalized to [0,1].
type HSL struct {
	H, S, L float64
}

const (
	SAMPLE_STRIDE    = 8   // sample every 8th pixel in both axes
	OPAQUE_ALPHA_MIN = 128 // pixels below this alpha are ignored
	QUANT_STEP       = 32  // channel quantization bucket size
)

// dominantColor scans the image on a fixed stride, quantizes each channel to
// the nearest lower multiple of QUANT_STEP and returns the most frequent
// bucket. Ties keep the bucket that was seen first. Transparent-ish pixels
// (alpha < 128) are skipped; if nothing opaque was sampled, mid-gray wins.
func dominantColor(img *image.RGBA) RGB {
	bounds := img.Bounds()
	counts := make(map[RGB]int)
	var order []RGB

	for y := bounds.Min.Y; y < bounds.Max.Y; y += SAMPLE_STRIDE {
		for x := bounds.Min.X; x < bounds.Max.X; x += SAMPLE_STRIDE {
			px := img.RGBAAt(x, y)
			if px.A < OPAQUE_ALPHA_MIN {
				continue
			}
			bucket := RGB{
				R: px.R - px.R%QUANT_STEP,
				G: px.G - px.G%QUANT_STEP,
				B: px.B - px.B%QUANT_STEP,
			}
			if _, seen := counts[bucket]; !seen {
				order = append(order, bucket)
			}
			counts[bucket]++
		}
	}

	best := RGB{128, 128, 128}
	bestCount := 0
	for _, bucket := range order {
		if counts[bucket] > bestCount {
			best = bucket
			bestCount = counts[bucket]
		}
	}
	return best
}

// rgbToHsl converts an RGB triple to HSL with all components in [0,1].
func rgbToHsl(c RGB) HSL {
	r := float64(c.R) / 255
	g := float64(c.G) / 255
	b := float64(c.B) / 255

	max := math.Max(r, math.Max(g, b))
	min := math.Min(r, math.Min(g, b))
	l := (max + min) / 2

	if max == min {
		return HSL{H: 0, S: 0, L: l} // achromatic
	}

	d := max - min
	var s float64
	if l > 0.5 {
		s = d / (2 - max - min)
	} else {
		s = d / (max + min)
	}

	var h float64
	switch max {
	case r:
		h = (g - b) / d
		if g < b {
			h += 6
		}
	case g:
		h = (b-r)/d + 2
	default:
		h = (r-g)/d + 4
	}
	h /= 6

	return HSL{H: h, S: s, L: l}
}

// hslToRgb converts HSL (each component in [0,1]) back to RGB.
func hslToRgb(c HSL) RGB {
	if c.S == 0 {
		v := uint8(math.Round(c.L * 255))
		return RGB{v, v, v}
	}

	var q float64
	if c.L < 0.5 {
		q = c.L * (1 + c.S)
	} else {
		q = c.L + c.S - c.L*c.S
	}
	p := 2*c.L - q

	return RGB{
		R: uint8(math.Round(hueToChannel(p, q, c.H+1.0/3) * 255)),
		G: uint8(math.Round(hueToChannel(p, q, c.H) * 255)),
		B: uint8(math.Round(hueToChannel(p, q, c.H-1.0/3) * 255)),
	}
}

func hueToChannel(p, q, t float64) float64 {
	if t < 0 {
		t++
	}
	if t > 1 {
		t--
	}
	switch {
	case t < 1.0/6:
		return p + (q-p)*6*t
	case t < 1.0/2:
		return q
	case t < 2.0/3:
		return p + (q-p)*(2.0/3-t)*6
	}
	return p
}

// complementaryColor rotates the hue by 160/360 rather than a true 180
// complement, which reads better against most avatars. If the rotated color
// comes out dark (lightness below 0.4) it is recomputed with boosted
// saturation and lightness so the result is always visibly light.
func complementaryColor(c RGB) RGB {
	hsl := rgbToHsl(c)
	rotated := HSL{
		H: math.Mod(hsl.H+160.0/360, 1),
		S: hsl.S,
		L: hsl.L,
	}
	if rotated.L < 0.4 {
		rotated.S = math.Max(hsl.S, 0.7)
		rotated.L = math.Max(rotated.L, 0.8)
	}
	return hslToRgb(rotated)
}
