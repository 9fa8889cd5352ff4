package main

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"log"
	"strconv"
	"strings"
	"sync"
	"unicode/utf16"

	svg "github.com/ajstarks/svgo"
	"github.com/golang/freetype/truetype"
	"github.com/llgcode/draw2d"
	"github.com/llgcode/draw2d/draw2dimg"
	"github.com/srwiley/oksvg"
	"github.com/srwiley/rasterx"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
)

const (
	KEY_SIZE           = 144 // logical button canvas, square
	BADGE_FONT_SIZE    = 144 // fixed; large counts overflow on purpose
	BADGE_STROKE_WIDTH = 5
	INITIALS_FONT_SIZE = 64
	GLYPH_SIZE         = 40
)

// StaticState names a fixed informational image shown in lieu of an avatar.
type StaticState string

const (
	StateLoading        StaticState = "loading"
	StateConfigRequired StaticState = "configRequired"
	StateError          StaticState = "error"
	StateTestOK         StaticState = "testOk"
	StateTestFail       StaticState = "testFail"
	StateTestError      StaticState = "testError"
	StateNoUsers        StaticState = "noUsers"
	StateInvalidData    StaticState = "invalidData"
)

type staticSpec struct {
	bg    color.RGBA
	lines []string
	glyph string
}

var staticSpecs = map[StaticState]staticSpec{
	StateLoading:        {color.RGBA{58, 70, 84, 255}, []string{"Loading"}, "dots"},
	StateConfigRequired: {color.RGBA{204, 122, 0, 255}, []string{"Config", "Required"}, "gear"},
	StateError:          {color.RGBA{178, 44, 44, 255}, []string{"Error"}, "cross"},
	StateTestOK:         {color.RGBA{38, 148, 82, 255}, []string{"Test", "OK"}, "check"},
	StateTestFail:       {color.RGBA{178, 44, 44, 255}, []string{"Test", "Fail"}, "cross"},
	StateTestError:      {color.RGBA{116, 22, 22, 255}, []string{"Test", "Error"}, "cross"},
	StateNoUsers:        {color.RGBA{98, 116, 130, 255}, []string{"No", "Users"}, "person"},
	StateInvalidData:    {color.RGBA{112, 64, 142, 255}, []string{"Invalid", "Data"}, "question"},
}

// 8-color pastel palette for initials backgrounds, indexed by name hash.
var pastelPalette = []color.RGBA{
	{255, 179, 186, 255},
	{255, 223, 186, 255},
	{253, 255, 182, 255},
	{186, 255, 201, 255},
	{186, 225, 255, 255},
	{204, 187, 255, 255},
	{255, 186, 244, 255},
	{209, 216, 224, 255},
}

//---------------- Fonts ----------------

// FontConfig maps a logical font name to embedded TTF data and a point size.
type FontConfig struct {
	Data     []byte
	FontSize float64
}

var fonts = map[string]FontConfig{
	"title":      {Data: gobold.TTF, FontSize: 26},
	"titleSmall": {Data: gobold.TTF, FontSize: 20},
	"reg":        {Data: goregular.TTF, FontSize: 16},
}

var (
	faceMu    sync.Mutex
	faceCache = make(map[string]font.Face)

	badgeFontData = draw2d.FontData{Name: "gobold", Family: draw2d.FontFamilySans, Style: draw2d.FontStyleBold}
)

func init() {
	fnt, err := truetype.Parse(gobold.TTF)
	if err != nil {
		log.Fatalf("failed to parse embedded font: %v", err)
	}
	draw2d.RegisterFont(badgeFontData, fnt)
}

// getFontFace returns a cached face for one of the named font configs.
func getFontFace(fontName string) (font.Face, int, error) {
	faceMu.Lock()
	defer faceMu.Unlock()

	if face, ok := faceCache[fontName]; ok {
		metrics := face.Metrics()
		return face, metrics.Ascent.Round() + metrics.Descent.Round(), nil
	}

	cfg, ok := fonts[fontName]
	if !ok {
		return nil, 0, fmt.Errorf("font %s not found in mapping", fontName)
	}
	parsed, err := opentype.Parse(cfg.Data)
	if err != nil {
		return nil, 0, fmt.Errorf("error parsing font: %v", err)
	}
	face, err := opentype.NewFace(parsed, &opentype.FaceOptions{
		Size:    cfg.FontSize,
		DPI:     72,
		Hinting: font.HintingFull,
	})
	if err != nil {
		return nil, 0, err
	}
	faceCache[fontName] = face

	metrics := face.Metrics()
	return face, metrics.Ascent.Round() + metrics.Descent.Round(), nil
}

//---------------- Status glyphs (SVG, generated and rastered in memory) ----------------

var (
	glyphMu    sync.Mutex
	glyphCache = make(map[string]*image.RGBA)
)

// statusGlyphSVG builds a small white outline glyph as an SVG document.
func statusGlyphSVG(kind string) []byte {
	var buf bytes.Buffer
	canvas := svg.New(&buf)
	canvas.Start(GLYPH_SIZE, GLYPH_SIZE)

	stroke := "stroke:white;stroke-width:4;stroke-linecap:round;fill:none"
	switch kind {
	case "dots":
		canvas.Circle(8, 20, 4, "fill:white")
		canvas.Circle(20, 20, 4, "fill:white")
		canvas.Circle(32, 20, 4, "fill:white")
	case "gear":
		canvas.Circle(20, 20, 9, stroke)
		canvas.Line(20, 4, 20, 10, stroke)
		canvas.Line(20, 30, 20, 36, stroke)
		canvas.Line(4, 20, 10, 20, stroke)
		canvas.Line(30, 20, 36, 20, stroke)
	case "cross":
		canvas.Line(12, 12, 28, 28, stroke)
		canvas.Line(28, 12, 12, 28, stroke)
	case "check":
		canvas.Polyline([]int{9, 17, 31}, []int{21, 29, 11}, stroke)
	case "person":
		canvas.Circle(20, 13, 6, stroke)
		canvas.Roundrect(9, 24, 22, 13, 6, 6, stroke)
	case "question":
		canvas.Circle(20, 14, 8, stroke)
		canvas.Line(20, 22, 20, 28, stroke)
		canvas.Circle(20, 35, 2, "fill:white")
	}
	canvas.End()
	return buf.Bytes()
}

// rasterizeSVG renders an in-memory SVG document onto a transparent canvas.
func rasterizeSVG(svgData []byte, w, h int) (*image.RGBA, error) {
	icon, err := oksvg.ReadIconStream(bytes.NewReader(svgData))
	if err != nil {
		return nil, err
	}
	if w == 0 {
		w = int(icon.ViewBox.W)
	}
	if h == 0 {
		h = int(icon.ViewBox.H)
	}
	rgba := image.NewRGBA(image.Rect(0, 0, w, h))
	icon.SetTarget(0, 0, float64(w), float64(h))
	scanner := rasterx.NewScannerGV(w, h, rgba, rgba.Bounds())
	dasher := rasterx.NewDasher(w, h, scanner)
	icon.Draw(dasher, 1.0)
	return rgba, nil
}

func statusGlyph(kind string) *image.RGBA {
	glyphMu.Lock()
	defer glyphMu.Unlock()

	if img, ok := glyphCache[kind]; ok {
		return img
	}
	img, err := rasterizeSVG(statusGlyphSVG(kind), GLYPH_SIZE, GLYPH_SIZE)
	if err != nil {
		log.Printf("Error rasterizing %s glyph: %v", kind, err)
		return nil
	}
	glyphCache[kind] = img
	return img
}

//---------------- Renderers ----------------

// renderStatic draws one of the fixed informational images: a solid
// background, a glyph near the top and one or two centered bold title lines.
func renderStatic(kind StaticState) *image.RGBA {
	spec, ok := staticSpecs[kind]
	if !ok {
		spec = staticSpecs[StateError]
	}

	frame := image.NewRGBA(image.Rect(0, 0, KEY_SIZE, KEY_SIZE))
	fillFrame(frame, spec.bg)

	if glyph := statusGlyph(spec.glyph); glyph != nil {
		blendImageAt(frame, glyph, (KEY_SIZE-GLYPH_SIZE)/2, 14)
	}

	face, fontHeight, err := getFontFace("title")
	if len(spec.lines) > 1 {
		face, fontHeight, err = getFontFace("titleSmall")
	}
	if err != nil {
		log.Printf("Error loading font: %v", err)
		return frame
	}

	textTop := 66
	lineStep := fontHeight + 4
	for i, line := range spec.lines {
		drawTextCentered(frame, line, KEY_SIZE/2, textTop+i*lineStep+lineStep/2, face, color.White)
	}
	return frame
}

// nameHash is the 32-bit signed rolling hash used to pick initials colors:
// hash = hash*31 + codeUnit, wrapping in int32. It runs over UTF-16 code
// units, so names with characters outside the BMP hash as surrogate pairs.
func nameHash(name string) int32 {
	var h int32
	for _, u := range utf16.Encode([]rune(name)) {
		h = h*31 + int32(u)
	}
	return h
}

func paletteIndex(name string) int {
	idx := int(nameHash(name)) % len(pastelPalette)
	if idx < 0 {
		idx += len(pastelPalette)
	}
	return idx
}

// initialsFor takes the first letter of the first two space-separated tokens,
// uppercased.
func initialsFor(displayName string) string {
	var initials []rune
	for _, tok := range strings.Fields(displayName) {
		initials = append(initials, []rune(strings.ToUpper(tok))[0])
		if len(initials) == 2 {
			break
		}
	}
	return string(initials)
}

// botInitialsOverride returns the hard-coded initials for bot display names
// that should not go through token derivation.
func botInitialsOverride(displayName string) string {
	if displayName == "Workflows" {
		return "WF"
	}
	return ""
}

// renderInitials synthesizes an avatar: a pastel background picked by hashing
// the full display name, with the initials drawn black-stroked under a white
// fill. overrideInitials, when non-empty, is used verbatim.
func renderInitials(displayName string, overrideInitials string) *image.RGBA {
	initials := overrideInitials
	if initials == "" {
		initials = initialsFor(displayName)
	}

	frame := image.NewRGBA(image.Rect(0, 0, KEY_SIZE, KEY_SIZE))
	fillFrame(frame, pastelPalette[paletteIndex(displayName)])

	if initials == "" {
		return frame
	}

	gc := draw2dimg.NewGraphicContext(frame)
	gc.SetDPI(72)
	gc.SetFontData(badgeFontData)
	gc.SetFontSize(INITIALS_FONT_SIZE)

	left, top, right, bottom := gc.GetStringBounds(initials)
	x := float64(KEY_SIZE)/2 - (left+right)/2
	y := float64(KEY_SIZE)/2 - (top+bottom)/2

	gc.SetLineWidth(2)
	gc.SetStrokeColor(color.RGBA{0, 0, 0, 255})
	gc.StrokeStringAt(initials, x, y)
	gc.SetFillColor(color.RGBA{255, 255, 255, 255})
	gc.FillStringAt(initials, x, y)
	return frame
}

// overlayCount composites the unread-count badge onto base. A zero count
// returns base untouched. The dominant/complementary color pair is computed
// for every badged image and logged; the visible stroke stays black at 50%.
func overlayCount(base *image.RGBA, count int) *image.RGBA {
	if count == 0 {
		return base
	}

	out := image.NewRGBA(image.Rect(0, 0, KEY_SIZE, KEY_SIZE))
	draw.Draw(out, out.Bounds(), base, base.Bounds().Min, draw.Src)

	dominant := dominantColor(out)
	complement := complementaryColor(dominant)
	log.Printf("badge colors: dominant #%02X%02X%02X, complement #%02X%02X%02X",
		dominant.R, dominant.G, dominant.B, complement.R, complement.G, complement.B)

	text := strconv.Itoa(count)
	gc := draw2dimg.NewGraphicContext(out)
	gc.SetDPI(72)
	gc.SetFontData(badgeFontData)
	gc.SetFontSize(BADGE_FONT_SIZE)

	left, top, right, bottom := gc.GetStringBounds(text)
	x := float64(KEY_SIZE)/2 - (left+right)/2
	// sits at 5/8 of the height, deliberately below center
	y := float64(KEY_SIZE)*5/8 - (top+bottom)/2

	gc.SetLineWidth(BADGE_STROKE_WIDTH)
	gc.SetStrokeColor(color.RGBA{0, 0, 0, 128})
	gc.StrokeStringAt(text, x, y)
	gc.SetFillColor(color.RGBA{255, 255, 255, 255})
	gc.FillStringAt(text, x, y)
	return out
}
