package meadow

import (
	"encoding/json"
	"fmt"
	"image"
	"sort"

	xdraw "golang.org/x/image/draw"
)

// SheetFrame describes one named frame within a composite sheet page.
type SheetFrame struct {
	Page    int             // page index within the sheet
	Rect    image.Rectangle // pixels on the page (width/height swapped when Rotated)
	Rotated bool            // stored 90 degrees clockwise on the page
	SourceW int             // untrimmed frame width as authored
	SourceH int             // untrimmed frame height as authored
	OffsetX int             // trim offset inside the untrimmed frame
	OffsetY int
}

// Sheet is a parsed TexturePacker descriptor: a map of frame names to page
// rectangles.
type Sheet struct {
	frames map[string]SheetFrame
}

// Frame returns the frame registered under name.
func (s *Sheet) Frame(name string) (SheetFrame, bool) {
	f, ok := s.frames[name]
	return f, ok
}

// Names returns the frame names in sorted order.
func (s *Sheet) Names() []string {
	names := make([]string, 0, len(s.frames))
	for name := range s.frames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Len returns the number of frames.
func (s *Sheet) Len() int {
	return len(s.frames)
}

// ParseSheet parses TexturePacker JSON data. Supports both the hash format
// (single "frames" object) and the array format ("textures" array with
// per-page frame lists).
func ParseSheet(jsonData []byte) (*Sheet, error) {
	// Peek at the top-level keys to detect the format.
	var head struct {
		Frames   json.RawMessage `json:"frames"`
		Textures json.RawMessage `json:"textures"`
	}
	if err := json.Unmarshal(jsonData, &head); err != nil {
		return nil, fmt.Errorf("meadow: failed to parse sheet JSON: %w", err)
	}

	sheet := &Sheet{frames: make(map[string]SheetFrame)}

	switch {
	case head.Textures != nil:
		if err := parseArrayFormat(head.Textures, sheet); err != nil {
			return nil, err
		}
	case head.Frames != nil:
		if err := parseHashFrames(head.Frames, 0, sheet); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("meadow: sheet JSON has neither \"frames\" nor \"textures\" key")
	}
	return sheet, nil
}

// --- JSON structure types ---

type jsonRect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type jsonSize struct {
	W int `json:"w"`
	H int `json:"h"`
}

type jsonFrame struct {
	Frame            jsonRect `json:"frame"`
	Rotated          bool     `json:"rotated"`
	Trimmed          bool     `json:"trimmed"`
	SpriteSourceSize jsonRect `json:"spriteSourceSize"`
	SourceSize       jsonSize `json:"sourceSize"`
}

type jsonTexturePage struct {
	Image  string               `json:"image"`
	Frames map[string]jsonFrame `json:"frames"`
}

// parseHashFrames parses the hash format: {"name": {frame...}, ...}
func parseHashFrames(raw json.RawMessage, page int, sheet *Sheet) error {
	var frames map[string]jsonFrame
	if err := json.Unmarshal(raw, &frames); err != nil {
		return fmt.Errorf("meadow: failed to parse sheet frames: %w", err)
	}
	for name, f := range frames {
		sheet.frames[name] = toSheetFrame(f, page)
	}
	return nil
}

// parseArrayFormat parses the array format: [{"image":"...", "frames":{...}}, ...]
func parseArrayFormat(raw json.RawMessage, sheet *Sheet) error {
	var textures []jsonTexturePage
	if err := json.Unmarshal(raw, &textures); err != nil {
		return fmt.Errorf("meadow: failed to parse sheet textures array: %w", err)
	}
	for i, tex := range textures {
		for name, f := range tex.Frames {
			sheet.frames[name] = toSheetFrame(f, i)
		}
	}
	return nil
}

func toSheetFrame(f jsonFrame, page int) SheetFrame {
	w, h := f.Frame.W, f.Frame.H
	if f.Rotated {
		w, h = h, w
	}
	sw, sh := f.SourceSize.W, f.SourceSize.H
	if sw == 0 || sh == 0 {
		sw, sh = f.Frame.W, f.Frame.H
	}
	return SheetFrame{
		Page:    page,
		Rect:    image.Rect(f.Frame.X, f.Frame.Y, f.Frame.X+w, f.Frame.Y+h),
		Rotated: f.Rotated,
		SourceW: sw,
		SourceH: sh,
		OffsetX: f.SpriteSourceSize.X,
		OffsetY: f.SpriteSourceSize.Y,
	}
}

// sliceFrame copies a frame out of its page into an untrimmed, unrotated
// image of the frame's source size.
func sliceFrame(page *image.RGBA, f SheetFrame) (*image.RGBA, error) {
	if !f.Rect.In(page.Rect) {
		return nil, fmt.Errorf("meadow: frame %v outside page %v", f.Rect, page.Rect)
	}
	fw, fh := f.Rect.Dx(), f.Rect.Dy()
	if f.Rotated {
		fw, fh = fh, fw
	}
	dst := image.NewRGBA(image.Rect(0, 0, max(f.SourceW, f.OffsetX+fw), max(f.SourceH, f.OffsetY+fh)))
	if !f.Rotated {
		at := image.Rect(f.OffsetX, f.OffsetY, f.OffsetX+f.Rect.Dx(), f.OffsetY+f.Rect.Dy())
		xdraw.Draw(dst, at, page, f.Rect.Min, xdraw.Src)
		return dst, nil
	}
	// Stored rotated clockwise: frame pixel (x, y) sits at page
	// (minX + pageW-1-y, minY + x).
	pw := f.Rect.Dx()
	for y := 0; y < fh; y++ {
		for x := 0; x < fw; x++ {
			c := page.RGBAAt(f.Rect.Min.X+pw-1-y, f.Rect.Min.Y+x)
			dst.SetRGBA(f.OffsetX+x, f.OffsetY+y, c)
		}
	}
	return dst, nil
}

// SliceSheet cuts every frame of sheet out of pages and caches each as its
// own texture under prefix+frameName. Frames whose page is missing are
// reported in the returned error but do not stop the others.
func SliceSheet(cache *TextureCache, sheet *Sheet, pages []*Texture, prefix string, opts TextureOptions) ([]*Texture, error) {
	out := make([]*Texture, 0, sheet.Len())
	var firstErr error
	for _, name := range sheet.Names() {
		f := sheet.frames[name]
		if f.Page < 0 || f.Page >= len(pages) || pages[f.Page] == nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("meadow: frame %q references missing page %d", name, f.Page)
			}
			continue
		}
		img, err := sliceFrame(pages[f.Page].Pixels(), f)
		if err != nil {
			if firstErr == nil {
				firstErr = fmt.Errorf("meadow: frame %q: %w", name, err)
			}
			continue
		}
		out = append(out, cache.Put(prefix+name, img, opts))
	}
	return out, firstErr
}
