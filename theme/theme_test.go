package theme

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadGPL(t *testing.T) {
	path := filepath.Join(t.TempDir(), "p.gpl")
	body := "GIMP Palette\nName: test\nColumns: 2\n# comment\n0 0 0\tblack\n255 128 0 orange\n300 0 0 bad\n"
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}
	p, err := LoadGPL(path)
	if err != nil {
		t.Fatal(err)
	}
	if p.Name != "test" || len(p.Colors) != 2 {
		t.Fatalf("palette = %+v", p)
	}
	if p.Colors[1] != (RGB{255, 128, 0}) {
		t.Fatalf("second color = %v", p.Colors[1])
	}
}

func TestLoadGPLEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.gpl")
	if err := os.WriteFile(path, []byte("GIMP Palette\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadGPL(path); err == nil {
		t.Fatal("expected error for palette with no colors")
	}
}

func TestLookupEnds(t *testing.T) {
	p := &Palette{Colors: []RGB{{0, 0, 0}, {255, 255, 255}}}
	if p.Lookup(-1) != p.Colors[0] || p.Lookup(2) != p.Colors[1] {
		t.Fatal("lookup does not clamp")
	}
	mid := p.Lookup(0.5)
	if mid[0] == 0 || mid[0] == 255 {
		t.Fatalf("midpoint not blended: %v", mid)
	}
}

func TestKeyStylePressedDiffers(t *testing.T) {
	th := New(nil)
	for _, k := range []KeyKind{KindWhite, KindBlack, KindTop, KindButton} {
		a := th.KeyStyle(k, false).GetBackground()
		b := th.KeyStyle(k, true).GetBackground()
		if a == b {
			t.Errorf("kind %d: pressed background equals resting", k)
		}
	}
}

func TestHex(t *testing.T) {
	if got := (RGB{1, 2, 255}).Hex(); got != "#0102ff" {
		t.Fatalf("Hex = %s", got)
	}
}
