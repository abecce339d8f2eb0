package meadow

import (
	"image"
	"image/color"
	"strings"
	"testing"
)

// --- Test JSON fixtures ---

const singlePageJSON = `{
  "frames": {
    "hero.png": {
      "frame": {"x": 0, "y": 0, "w": 64, "h": 64},
      "rotated": false,
      "trimmed": false,
      "spriteSourceSize": {"x": 0, "y": 0, "w": 64, "h": 64},
      "sourceSize": {"w": 64, "h": 64}
    },
    "enemy.png": {
      "frame": {"x": 64, "y": 0, "w": 32, "h": 48},
      "rotated": false,
      "trimmed": false,
      "spriteSourceSize": {"x": 0, "y": 0, "w": 32, "h": 48},
      "sourceSize": {"w": 32, "h": 48}
    },
    "trimmed.png": {
      "frame": {"x": 100, "y": 50, "w": 60, "h": 58},
      "rotated": false,
      "trimmed": true,
      "spriteSourceSize": {"x": 2, "y": 3, "w": 60, "h": 58},
      "sourceSize": {"w": 64, "h": 64}
    },
    "rotated.png": {
      "frame": {"x": 200, "y": 0, "w": 48, "h": 32},
      "rotated": true,
      "trimmed": false,
      "spriteSourceSize": {"x": 0, "y": 0, "w": 48, "h": 32},
      "sourceSize": {"w": 32, "h": 48}
    }
  },
  "meta": {
    "image": "atlas.png",
    "size": {"w": 1024, "h": 1024}
  }
}`

const multiPageJSON = `{
  "textures": [
    {
      "image": "atlas-0.png",
      "frames": {
        "page0_sprite.png": {
          "frame": {"x": 0, "y": 0, "w": 64, "h": 64},
          "rotated": false,
          "trimmed": false,
          "spriteSourceSize": {"x": 0, "y": 0, "w": 64, "h": 64},
          "sourceSize": {"w": 64, "h": 64}
        }
      }
    },
    {
      "image": "atlas-1.png",
      "frames": {
        "page1_sprite.png": {
          "frame": {"x": 10, "y": 20, "w": 50, "h": 50},
          "rotated": false,
          "trimmed": false,
          "spriteSourceSize": {"x": 0, "y": 0, "w": 50, "h": 50},
          "sourceSize": {"w": 50, "h": 50}
        }
      }
    }
  ]
}`

// --- ParseSheet tests ---

func TestParseSheet_SinglePage_FrameCount(t *testing.T) {
	sheet, err := ParseSheet([]byte(singlePageJSON))
	if err != nil {
		t.Fatalf("ParseSheet: %v", err)
	}
	if got := sheet.Len(); got != 4 {
		t.Errorf("frame count = %d, want 4", got)
	}
	want := []string{"enemy.png", "hero.png", "rotated.png", "trimmed.png"}
	names := sheet.Names()
	for i := range want {
		if names[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, names[i], want[i])
		}
	}
}

func TestParseSheet_FrameLookup(t *testing.T) {
	sheet, err := ParseSheet([]byte(singlePageJSON))
	if err != nil {
		t.Fatalf("ParseSheet: %v", err)
	}
	f, ok := sheet.Frame("enemy.png")
	if !ok {
		t.Fatal("enemy.png missing")
	}
	if f.Rect != image.Rect(64, 0, 96, 48) {
		t.Errorf("enemy rect = %v", f.Rect)
	}
	if _, ok := sheet.Frame("nope.png"); ok {
		t.Error("unknown frame reported present")
	}
}

func TestParseSheet_TrimmedFrame(t *testing.T) {
	sheet, _ := ParseSheet([]byte(singlePageJSON))
	f, _ := sheet.Frame("trimmed.png")
	if f.OffsetX != 2 || f.OffsetY != 3 {
		t.Errorf("offset = %d,%d, want 2,3", f.OffsetX, f.OffsetY)
	}
	if f.SourceW != 64 || f.SourceH != 64 {
		t.Errorf("source = %dx%d, want 64x64", f.SourceW, f.SourceH)
	}
}

func TestParseSheet_RotatedFrame(t *testing.T) {
	sheet, _ := ParseSheet([]byte(singlePageJSON))
	f, _ := sheet.Frame("rotated.png")
	if !f.Rotated {
		t.Fatal("Rotated = false")
	}
	// Page rectangle has the authored width and height swapped.
	if f.Rect.Dx() != 32 || f.Rect.Dy() != 48 {
		t.Errorf("page rect = %dx%d, want 32x48", f.Rect.Dx(), f.Rect.Dy())
	}
}

func TestParseSheet_MultiPage(t *testing.T) {
	sheet, err := ParseSheet([]byte(multiPageJSON))
	if err != nil {
		t.Fatalf("ParseSheet: %v", err)
	}
	f0, _ := sheet.Frame("page0_sprite.png")
	f1, _ := sheet.Frame("page1_sprite.png")
	if f0.Page != 0 || f1.Page != 1 {
		t.Errorf("pages = %d,%d, want 0,1", f0.Page, f1.Page)
	}
}

func TestParseSheet_InvalidJSON(t *testing.T) {
	if _, err := ParseSheet([]byte("{not json")); err == nil {
		t.Error("expected error for invalid JSON")
	}
}

func TestParseSheet_NoFramesOrTextures(t *testing.T) {
	_, err := ParseSheet([]byte(`{"meta": {}}`))
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "neither") {
		t.Errorf("error = %q", err)
	}
}

// --- SliceSheet tests ---

func newTestCache(t *testing.T) *TextureCache {
	t.Helper()
	c, err := NewTextureCache(TextureCacheOptions{Clock: NewFrameClock(), Logger: nullLogger()})
	if err != nil {
		t.Fatalf("NewTextureCache: %v", err)
	}
	return c
}

func TestSliceSheet_TrimmedFramePlacedAtOffset(t *testing.T) {
	c := newTestCache(t)
	page := image.NewRGBA(image.Rect(0, 0, 256, 128))
	red := color.RGBA{R: 255, A: 255}
	page.SetRGBA(100, 50, red) // first pixel of trimmed.png

	sheet, _ := ParseSheet([]byte(singlePageJSON))
	pageTex := c.Put("atlas.png", page, TextureOptions{})
	out, err := SliceSheet(c, sheet, []*Texture{pageTex}, "ui/", TextureOptions{Nearest: true})
	if err != nil {
		t.Fatalf("SliceSheet: %v", err)
	}
	if len(out) != 4 {
		t.Fatalf("sliced %d frames, want 4", len(out))
	}
	tex, ok := c.Get("ui/trimmed.png")
	if !ok {
		t.Fatal("ui/trimmed.png not cached")
	}
	if tex.Width() != 64 || tex.Height() != 64 {
		t.Errorf("size = %dx%d, want 64x64", tex.Width(), tex.Height())
	}
	if got := tex.Pixels().RGBAAt(2, 3); got != red {
		t.Errorf("pixel at trim offset = %v, want red", got)
	}
	if !tex.Nearest() {
		t.Error("sliced texture lost the nearest flag")
	}
}

func TestSliceSheet_RotatedFrameUnrotated(t *testing.T) {
	c := newTestCache(t)
	page := image.NewRGBA(image.Rect(0, 0, 256, 128))
	green := color.RGBA{G: 255, A: 255}
	// Frame pixel (0,0) of a clockwise-rotated region lives at the
	// region's top-right corner.
	page.SetRGBA(200+31, 0, green)

	sheet, _ := ParseSheet([]byte(singlePageJSON))
	pageTex := c.Put("atlas.png", page, TextureOptions{})
	if _, err := SliceSheet(c, sheet, []*Texture{pageTex}, "", TextureOptions{}); err != nil {
		t.Fatalf("SliceSheet: %v", err)
	}
	tex, _ := c.Get("rotated.png")
	if tex.Width() < 48 || tex.Height() < 32 {
		t.Fatalf("size = %dx%d, want at least 48x32", tex.Width(), tex.Height())
	}
	if got := tex.Pixels().RGBAAt(0, 0); got != green {
		t.Errorf("pixel (0,0) = %v, want green", got)
	}
}

func TestSliceSheet_MissingPageReported(t *testing.T) {
	c := newTestCache(t)
	sheet, _ := ParseSheet([]byte(multiPageJSON))
	page0 := c.Put("atlas-0.png", image.NewRGBA(image.Rect(0, 0, 64, 64)), TextureOptions{})

	out, err := SliceSheet(c, sheet, []*Texture{page0}, "", TextureOptions{})
	if err == nil {
		t.Fatal("expected error for missing page")
	}
	if len(out) != 1 {
		t.Errorf("sliced %d frames, want 1", len(out))
	}
	if _, ok := c.Get("page0_sprite.png"); !ok {
		t.Error("frame on the present page was not cached")
	}
}

func BenchmarkParseSheet_SinglePage(b *testing.B) {
	data := []byte(singlePageJSON)
	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		_, _ = ParseSheet(data)
	}
}
