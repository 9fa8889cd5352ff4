package main

import (
	"bytes"
	"testing"
)

func TestNameHash(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want int32
	}{
		{"empty", "", 0},
		{"single char", "A", 65},
		{"two chars", "Ab", 65*31 + 98},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := nameHash(tt.in); got != tt.want {
				t.Errorf("nameHash(%q) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNameHashUsesUTF16CodeUnits(t *testing.T) {
	// U+1F600 is the surrogate pair 0xD83D 0xDE00; both units feed the hash
	want := int32(0xD83D)*31 + int32(0xDE00)
	if got := nameHash("\U0001F600"); got != want {
		t.Errorf("nameHash(emoji) = %d, want %d", got, want)
	}
}

func TestNameHashDeterministic(t *testing.T) {
	a := nameHash("Ada Lovelace")
	b := nameHash("Ada Lovelace")
	if a != b {
		t.Errorf("same name hashed differently: %d vs %d", a, b)
	}
}

func TestPaletteIndexInRange(t *testing.T) {
	// Long names overflow int32 and can go negative; the index must still
	// land inside the palette.
	names := []string{"", "A", "Workflows", "A Very Long Display Name That Overflows The Hash For Sure"}
	for _, name := range names {
		idx := paletteIndex(name)
		if idx < 0 || idx >= len(pastelPalette) {
			t.Errorf("paletteIndex(%q) = %d, out of range", name, idx)
		}
	}
}

func TestInitialsFor(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"Ada Lovelace", "AL"},
		{"ada lovelace", "AL"},
		{"Plato", "P"},
		{"Ada Byron Lovelace", "AB"},
		{"", ""},
		{"  spaced   out  ", "SO"},
	}

	for _, tt := range tests {
		if got := initialsFor(tt.in); got != tt.want {
			t.Errorf("initialsFor(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestBotInitialsOverride(t *testing.T) {
	if got := botInitialsOverride("Workflows"); got != "WF" {
		t.Errorf("Workflows override = %q, want WF", got)
	}
	if got := botInitialsOverride("SomeOtherBot"); got != "" {
		t.Errorf("unknown bot override = %q, want empty", got)
	}
}

func TestRenderInitialsDeterministic(t *testing.T) {
	a := renderInitials("Ada Lovelace", "")
	b := renderInitials("Ada Lovelace", "")
	if !bytes.Equal(a.Pix, b.Pix) {
		t.Error("renderInitials is not deterministic for the same name")
	}
}

func TestRenderInitialsBackgroundFromFullName(t *testing.T) {
	// Names sharing initials but hashing to different palette slots must get
	// different backgrounds.
	a := renderInitials("Ada Lovelace", "")
	b := renderInitials("Alan Lovelace", "")
	if paletteIndex("Ada Lovelace") == paletteIndex("Alan Lovelace") {
		t.Skip("names landed in the same palette slot")
	}
	if a.RGBAAt(2, 2) == b.RGBAAt(2, 2) {
		t.Error("different names in different slots share a background color")
	}
}

func TestOverlayCountZeroReturnsBase(t *testing.T) {
	base := renderInitials("Ada Lovelace", "")
	out := overlayCount(base, 0)
	if out != base {
		t.Error("overlayCount(0) should return the base image unchanged")
	}
}

func TestOverlayCountDrawsBadge(t *testing.T) {
	base := renderInitials("Ada Lovelace", "")
	out := overlayCount(base, 7)
	if out == base {
		t.Error("overlayCount with a nonzero count must not alias the base")
	}
	if bytes.Equal(out.Pix, base.Pix) {
		t.Error("badge overlay left the image pixel-identical")
	}
	if out.Bounds().Dx() != KEY_SIZE || out.Bounds().Dy() != KEY_SIZE {
		t.Errorf("badged image bounds = %v, want %dx%d", out.Bounds(), KEY_SIZE, KEY_SIZE)
	}
}

func TestRenderStaticKnownStates(t *testing.T) {
	states := []StaticState{
		StateLoading, StateConfigRequired, StateError, StateTestOK,
		StateTestFail, StateTestError, StateNoUsers, StateInvalidData,
	}
	for _, st := range states {
		img := renderStatic(st)
		if img == nil {
			t.Fatalf("renderStatic(%s) returned nil", st)
		}
		if img.Bounds().Dx() != KEY_SIZE || img.Bounds().Dy() != KEY_SIZE {
			t.Errorf("renderStatic(%s) bounds = %v", st, img.Bounds())
		}
		bg := staticSpecs[st].bg
		if px := img.RGBAAt(2, KEY_SIZE-2); px != bg {
			t.Errorf("renderStatic(%s) corner = %v, want background %v", st, px, bg)
		}
	}
}

func TestStatusGlyphCached(t *testing.T) {
	a := statusGlyph("check")
	b := statusGlyph("check")
	if a == nil {
		t.Fatal("check glyph failed to rasterize")
	}
	if a != b {
		t.Error("glyph cache returned distinct images for the same kind")
	}
}
