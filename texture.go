package meadow

import (
	"fmt"
	"image"
	"image/color"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
	xdraw "golang.org/x/image/draw"
)

// MissingColor is the fill of fallback textures substituted for assets
// that failed to load.
var MissingColor = Color{R: 1, G: 0, B: 1, A: 1}

// fallbackSize is the edge length of generated fallback textures.
const fallbackSize = 16

// TextureOptions control how a texture is cached and sampled.
type TextureOptions struct {
	// Nearest selects nearest-neighbor sampling (pixel-art fidelity).
	Nearest bool
	// Persistent textures live until Destroy and are never reclaimed by
	// Cleanup.
	Persistent bool
	// Frames splits the image into that many equal columns, one per growth
	// stage. Zero and one mean a single frame.
	Frames int
}

// Texture is an immutable decoded pixel buffer. The GPU-side image is
// created on first draw.
type Texture struct {
	key        string
	pix        *image.RGBA
	nearest    bool
	persistent bool
	fallback   bool
	frames     int

	img      *ebiten.Image
	refs     int
	lastUsed time.Duration
}

func newTexture(key string, src image.Image, opts TextureOptions) *Texture {
	b := src.Bounds()
	rgba, ok := src.(*image.RGBA)
	if !ok || b.Min != (image.Point{}) {
		rgba = image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
		xdraw.Draw(rgba, rgba.Bounds(), src, b.Min, xdraw.Src)
	}
	frames := max(opts.Frames, 1)
	if frames > b.Dx() {
		frames = 1
	}
	return &Texture{
		key:        key,
		pix:        rgba,
		nearest:    opts.Nearest,
		persistent: opts.Persistent,
		frames:     frames,
	}
}

// Key returns the asset key the texture is cached under.
func (t *Texture) Key() string { return t.key }

// Width returns the width in pixels.
func (t *Texture) Width() int { return t.pix.Rect.Dx() }

// Height returns the height in pixels.
func (t *Texture) Height() int { return t.pix.Rect.Dy() }

// FrameCount returns the number of stage frames in the texture.
func (t *Texture) FrameCount() int { return max(t.frames, 1) }

// FrameRect returns the bounds of frame i, clamped to the last frame.
// A single-frame texture returns its full bounds.
func (t *Texture) FrameRect(i int) image.Rectangle {
	n := t.FrameCount()
	fw := t.Width() / n
	i = min(max(i, 0), n-1)
	return image.Rect(i*fw, 0, (i+1)*fw, t.Height())
}

// Pixels returns the decoded pixel buffer. It must not be modified.
func (t *Texture) Pixels() *image.RGBA { return t.pix }

// Nearest reports whether the texture samples nearest-neighbor.
func (t *Texture) Nearest() bool { return t.nearest }

// IsFallback reports whether the texture stands in for a failed asset.
func (t *Texture) IsFallback() bool { return t.fallback }

// Refs returns the number of outstanding references.
func (t *Texture) Refs() int { return t.refs }

// Filter returns the ebiten sampling filter for this texture.
func (t *Texture) Filter() ebiten.Filter {
	if t.nearest {
		return ebiten.FilterNearest
	}
	return ebiten.FilterLinear
}

// Image returns the GPU image, uploading the pixels on first use.
func (t *Texture) Image() *ebiten.Image {
	if t.img == nil {
		t.img = ebiten.NewImageFromImage(t.pix)
	}
	return t.img
}

func (t *Texture) bytes() int64 {
	return int64(len(t.pix.Pix))
}

func (t *Texture) dispose() {
	if t.img != nil {
		t.img.Deallocate()
		t.img = nil
	}
}

// TextureCacheOptions configures a TextureCache.
type TextureCacheOptions struct {
	// Clock stamps texture use for idle cleanup. Nil uses a SystemClock.
	Clock Clock
	// FrameCacheBytes bounds the sub-image cache. Zero uses 32 MiB.
	FrameCacheBytes int64
	Logger          logrus.FieldLogger
}

// TextureCache owns decoded textures keyed by asset key and hands out
// shared handles. Sub-image frames cut from cached textures are kept in a
// cost-bounded ristretto cache.
//
// The cache is written by the preloader goroutine before the first frame
// and by the frame callback afterwards, so its map is guarded.
type TextureCache struct {
	mu       sync.RWMutex
	textures map[string]*Texture
	frames   *ristretto.Cache[string, *ebiten.Image]
	clock    Clock
	log      logrus.FieldLogger
}

// NewTextureCache creates an empty cache.
func NewTextureCache(opts TextureCacheOptions) (*TextureCache, error) {
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	maxCost := opts.FrameCacheBytes
	if maxCost <= 0 {
		maxCost = 32 << 20
	}
	frames, err := ristretto.NewCache(&ristretto.Config[string, *ebiten.Image]{
		NumCounters: 10_000,
		MaxCost:     maxCost,
		BufferItems: 64,
	})
	if err != nil {
		return nil, fmt.Errorf("meadow: frame cache: %w", err)
	}
	return &TextureCache{
		textures: make(map[string]*Texture),
		frames:   frames,
		clock:    opts.Clock,
		log:      opts.Logger.WithField("component", "textures"),
	}, nil
}

// Put caches an already decoded image under key, replacing any previous
// texture with that key. References held on the old texture carry over.
func (c *TextureCache) Put(key string, src image.Image, opts TextureOptions) *Texture {
	t := newTexture(key, src, opts)
	c.store(t)
	return t
}

func (c *TextureCache) store(t *Texture) {
	t.lastUsed = c.clock.Now()
	c.mu.Lock()
	old, replaced := c.textures[t.key]
	if replaced && old != t {
		t.refs = old.refs
		old.dispose()
	}
	c.textures[t.key] = t
	c.mu.Unlock()
	if replaced && old != t {
		// Cached frames point into the old image.
		c.frames.Clear()
	}
}

// Get returns the texture cached under key without taking a reference.
func (c *TextureCache) Get(key string) (*Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.textures[key]
	if ok {
		t.lastUsed = c.clock.Now()
	}
	return t, ok
}

// Acquire returns the texture cached under key and takes a reference that
// keeps it from being reclaimed by Cleanup.
func (c *TextureCache) Acquire(key string) (*Texture, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	t, ok := c.textures[key]
	if !ok {
		return nil, false
	}
	t.refs++
	t.lastUsed = c.clock.Now()
	return t, true
}

// Release drops a reference taken by Acquire.
func (c *TextureCache) Release(t *Texture) {
	if t == nil {
		return
	}
	c.mu.Lock()
	if t.refs > 0 {
		t.refs--
	} else {
		c.log.WithField("texture", t.key).Warn("texture released more often than acquired")
	}
	t.lastUsed = c.clock.Now()
	c.mu.Unlock()
}

// Placeholder returns the texture cached under key, generating procedural
// pixel art of the given size and base color when it is missing. Generated
// placeholders are reclaimable.
func (c *TextureCache) Placeholder(key string, w, h int, base Color) *Texture {
	if t, ok := c.Get(key); ok {
		return t
	}
	return c.Put(key, placeholderImage(w, h, base), TextureOptions{Nearest: true})
}

// Fallback caches and returns the missing-asset texture for key.
func (c *TextureCache) Fallback(key string) *Texture {
	t := newTexture(key, fallbackImage(), TextureOptions{Nearest: true, Persistent: true})
	t.fallback = true
	c.store(t)
	return t
}

// Frame returns the sub-image r of t, cached by texture key and rectangle.
// The renderer draws stage frames through it.
func (c *TextureCache) Frame(t *Texture, r image.Rectangle) *ebiten.Image {
	fk := frameKey(t, r)
	if img, ok := c.frames.Get(fk); ok {
		return img
	}
	img := t.Image().SubImage(r).(*ebiten.Image)
	c.frames.Set(fk, img, int64(r.Dx()*r.Dy()*4))
	return img
}

func frameKey(t *Texture, r image.Rectangle) string {
	return fmt.Sprintf("%s@%p#%d,%d,%d,%d", t.key, t, r.Min.X, r.Min.Y, r.Dx(), r.Dy())
}

// Remove evicts key regardless of references. Reports whether it existed.
func (c *TextureCache) Remove(key string) bool {
	c.mu.Lock()
	t, ok := c.textures[key]
	if ok {
		delete(c.textures, key)
		t.dispose()
	}
	c.mu.Unlock()
	if ok {
		c.frames.Clear()
	}
	return ok
}

// Cleanup reclaims non-persistent textures that have no outstanding
// references and were not used for at least maxIdle. It is advisory:
// nothing guarantees when the underlying memory is collected. Returns the
// number of textures removed.
func (c *TextureCache) Cleanup(maxIdle time.Duration) int {
	now := c.clock.Now()
	removed := 0
	c.mu.Lock()
	for key, t := range c.textures {
		if t.persistent || t.refs > 0 || now-t.lastUsed < maxIdle {
			continue
		}
		delete(c.textures, key)
		t.dispose()
		removed++
	}
	c.mu.Unlock()
	if removed > 0 {
		c.frames.Clear()
		c.log.WithField("removed", removed).Debug("texture cleanup")
	}
	return removed
}

// Len returns the number of cached textures.
func (c *TextureCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.textures)
}

// Bytes returns the decoded size of all cached textures.
func (c *TextureCache) Bytes() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	var n int64
	for _, t := range c.textures {
		n += t.bytes()
	}
	return n
}

// Destroy releases every texture and the frame cache. The cache is empty
// but still usable afterwards.
func (c *TextureCache) Destroy() {
	c.mu.Lock()
	for key, t := range c.textures {
		t.dispose()
		delete(c.textures, key)
	}
	c.mu.Unlock()
	c.frames.Clear()
}

// --- Procedural art ---

// placeholderImage draws a w x h tile of base color with a darker one pixel
// border and a lighter top-left highlight.
func placeholderImage(w, h int, base Color) *image.RGBA {
	if w <= 0 {
		w = 1
	}
	if h <= 0 {
		h = 1
	}
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	fill := base.toRGBA()
	dark := Color{base.R * 0.6, base.G * 0.6, base.B * 0.6, base.A}.toRGBA()
	light := Color{
		R: base.R + (1-base.R)*0.35,
		G: base.G + (1-base.G)*0.35,
		B: base.B + (1-base.B)*0.35,
		A: base.A,
	}.toRGBA()
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			c := fill
			switch {
			case x == 0 || y == 0 || x == w-1 || y == h-1:
				c = dark
			case x+y < (w+h)/6:
				c = light
			}
			img.SetRGBA(x, y, c)
		}
	}
	return img
}

// fallbackImage is a magenta/black checkerboard that is hard to miss.
func fallbackImage() *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, fallbackSize, fallbackSize))
	magenta := MissingColor.toRGBA()
	black := color.RGBA{A: 255}
	const cell = fallbackSize / 2
	for y := 0; y < fallbackSize; y++ {
		for x := 0; x < fallbackSize; x++ {
			if (x/cell+y/cell)%2 == 0 {
				img.SetRGBA(x, y, magenta)
			} else {
				img.SetRGBA(x, y, black)
			}
		}
	}
	return img
}
