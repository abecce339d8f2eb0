package meadow

import (
	"errors"
	"image/color"
	"math/rand/v2"

	"github.com/hajimehoshi/ebiten/v2"
)

var (
	// ErrSurfaceUnavailable is returned when the renderer cannot be created
	// for the requested drawing surface.
	ErrSurfaceUnavailable = errors.New("meadow: rendering surface unavailable")
	// ErrStageFailed is returned when every asset of a preload stage failed.
	ErrStageFailed = errors.New("meadow: preload stage failed")
	// ErrPreloadIncomplete is returned when the engine is used before the
	// preloader finished.
	ErrPreloadIncomplete = errors.New("meadow: preloading incomplete")
	// ErrUnknownPool is returned when a pool lookup misses or has the wrong
	// element type.
	ErrUnknownPool = errors.New("meadow: unknown pool")
)

// Color is a straight-alpha RGBA tint with components in [0, 1]. Alpha is
// premultiplied only when a command is submitted.
type Color struct {
	R, G, B, A float64
}

// ColorWhite leaves texture colors unchanged.
var ColorWhite = Color{1, 1, 1, 1}

// toRGBA premultiplies and quantizes c.
func (c Color) toRGBA() color.RGBA {
	return color.RGBA{
		R: uint8(clamp01(c.R*c.A) * 255),
		G: uint8(clamp01(c.G*c.A) * 255),
		B: uint8(clamp01(c.B*c.A) * 255),
		A: uint8(clamp01(c.A) * 255),
	}
}

// Vec2 is a point or offset in world or screen units.
type Vec2 struct {
	X, Y float64
}

// Rect is an axis-aligned rectangle with Y growing downward.
type Rect struct {
	X, Y, Width, Height float64
}

// Contains reports whether (x, y) lies in r, edges included.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.Width &&
		y >= r.Y && y <= r.Y+r.Height
}

// Intersects reports whether r and other overlap. Touching edges count.
func (r Rect) Intersects(other Rect) bool {
	return r.X <= other.X+other.Width &&
		r.X+r.Width >= other.X &&
		r.Y <= other.Y+other.Height &&
		r.Y+r.Height >= other.Y
}

// Inset returns r grown by m on every side (shrunk when m is negative).
func (r Rect) Inset(m float64) Rect {
	return Rect{X: r.X - m, Y: r.Y - m, Width: r.Width + 2*m, Height: r.Height + 2*m}
}

// Range is a closed interval sampled by Random.
type Range struct {
	Min, Max float64
}

// Random returns a uniform value in [Min, Max].
func (r Range) Random() float64 {
	if r.Min == r.Max {
		return r.Min
	}
	return r.Min + rand.Float64()*(r.Max-r.Min)
}

// BlendMode selects how a sprite composites onto the target.
type BlendMode uint8

const (
	BlendNormal BlendMode = iota
	BlendAdd                     // particle glow
	BlendNone                    // opaque copy
)

// EbitenBlend maps b to its ebiten.Blend.
func (b BlendMode) EbitenBlend() ebiten.Blend {
	switch b {
	case BlendAdd:
		return ebiten.BlendLighter
	case BlendNone:
		return ebiten.BlendCopy
	default:
		return ebiten.BlendSourceOver
	}
}

// whitePixel backs untextured drawables such as burst particles. It is
// allocated lazily so importing the package never touches the GPU.
var whitePixel *ebiten.Image

func ensureWhitePixel() *ebiten.Image {
	if whitePixel == nil {
		whitePixel = ebiten.NewImage(1, 1)
		whitePixel.Fill(ColorWhite.toRGBA())
	}
	return whitePixel
}

func clamp01(v float64) float64 {
	return min(max(v, 0), 1)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
