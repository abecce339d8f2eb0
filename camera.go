package meadow

import (
	"math"
	"time"

	"github.com/tanema/gween"
	"github.com/tanema/gween/ease"
)

// Default zoom limits used when a CameraConfig leaves them unset.
const (
	DefaultMinZoom = 0.25
	DefaultMaxZoom = 4.0
)

// wheelStep is the zoom factor applied per wheel notch.
const wheelStep = 1.1

// dragThreshold is the pointer travel in screen pixels below which a press
// and release count as a click rather than a drag.
const dragThreshold = 4.0

// scrollAnim holds active scroll-to tweens for the camera center.
type scrollAnim struct {
	tweenX *gween.Tween
	tweenY *gween.Tween
	doneX  bool
	doneY  bool
}

// DragState is the camera's pointer-drag state.
type DragState uint8

const (
	DragIdle DragState = iota
	Dragging
)

func (s DragState) String() string {
	if s == Dragging {
		return "dragging"
	}
	return "idle"
}

// CameraConfig configures a new Camera.
type CameraConfig struct {
	// Viewport is the screen-space rectangle the camera renders into.
	Viewport Rect
	// World is the world-space rectangle the view is clamped to. A zero
	// size disables clamping.
	World Rect
	// MinZoom and MaxZoom bound the zoom factor. Zero uses the defaults.
	MinZoom, MaxZoom float64
	// Zoom is the initial zoom. Zero means 1.
	Zoom float64
}

// Camera owns pan and zoom state and the world/screen transform.
//
// The camera stores the world point shown at the viewport center. Every
// public mutator re-clamps the view so that a world smaller than the
// viewport is centered on that axis and a larger world never shows empty
// margin past its edges.
type Camera struct {
	x, y     float64
	zoom     float64
	minZoom  float64
	maxZoom  float64
	viewport Rect
	world    Rect

	followTarget  *Drawable
	followOffsetX float64
	followOffsetY float64
	followLerp    float64

	scrollTween *scrollAnim

	drag      DragState
	lastX     float64
	lastY     float64
	dragTotal float64

	viewMatrix    [6]float64
	invViewMatrix [6]float64
	dirty         bool
}

// NewCamera creates a camera centered on the world.
func NewCamera(cfg CameraConfig) *Camera {
	if cfg.MinZoom <= 0 {
		cfg.MinZoom = DefaultMinZoom
	}
	if cfg.MaxZoom <= 0 {
		cfg.MaxZoom = DefaultMaxZoom
	}
	if cfg.MaxZoom < cfg.MinZoom {
		cfg.MinZoom, cfg.MaxZoom = cfg.MaxZoom, cfg.MinZoom
	}
	if cfg.Zoom <= 0 {
		cfg.Zoom = 1
	}
	c := &Camera{
		zoom:     cfg.Zoom,
		minZoom:  cfg.MinZoom,
		maxZoom:  cfg.MaxZoom,
		viewport: cfg.Viewport,
		world:    cfg.World,
		x:        cfg.World.X + cfg.World.Width/2,
		y:        cfg.World.Y + cfg.World.Height/2,
		dirty:    true,
	}
	c.zoom = c.clampZoom(c.zoom)
	c.clampPan()
	return c
}

// Zoom returns the current zoom factor.
func (c *Camera) Zoom() float64 { return c.zoom }

// ZoomLimits returns the configured zoom bounds.
func (c *Camera) ZoomLimits() (lo, hi float64) { return c.minZoom, c.maxZoom }

// Center returns the world point shown at the viewport center.
func (c *Camera) Center() (x, y float64) { return c.x, c.y }

// Pan returns the world coordinate shown at the viewport's top-left corner.
func (c *Camera) Pan() (x, y float64) {
	return c.x - c.viewport.Width/(2*c.zoom), c.y - c.viewport.Height/(2*c.zoom)
}

// Viewport returns the screen-space viewport.
func (c *Camera) Viewport() Rect { return c.viewport }

// World returns the world bounds the view is clamped to.
func (c *Camera) World() Rect { return c.world }

// --- Mutators ---

// Move pans the view by a screen-space delta. The world shift is the delta
// divided by the current zoom.
func (c *Camera) Move(dx, dy float64) {
	c.x += dx / c.zoom
	c.y += dy / c.zoom
	c.changed()
}

// CenterOn moves the view center to the world point (x, y).
func (c *Camera) CenterOn(x, y float64) {
	c.x, c.y = x, y
	c.changed()
}

// SetZoom sets the zoom factor, clamped to the zoom limits, keeping the
// view center fixed.
func (c *Camera) SetZoom(z float64) {
	c.zoom = c.clampZoom(z)
	c.changed()
}

// ZoomBy multiplies the zoom factor, keeping the view center fixed.
func (c *Camera) ZoomBy(factor float64) {
	c.SetZoom(c.zoom * factor)
}

// ZoomAt multiplies the zoom factor and re-pans so the world point under
// the screen point (sx, sy) stays under it.
func (c *Camera) ZoomAt(factor, sx, sy float64) {
	wx, wy := c.ScreenToWorld(sx, sy)
	c.zoom = c.clampZoom(c.zoom * factor)
	vcx, vcy := c.viewportCenter()
	c.x = wx - (sx-vcx)/c.zoom
	c.y = wy - (sy-vcy)/c.zoom
	c.changed()
}

// Resize changes the viewport size, keeping its origin.
func (c *Camera) Resize(w, h float64) {
	c.viewport.Width, c.viewport.Height = w, h
	c.changed()
}

// SetViewport replaces the screen-space viewport.
func (c *Camera) SetViewport(r Rect) {
	c.viewport = r
	c.changed()
}

// SetWorld replaces the world bounds. A zero size disables clamping.
func (c *Camera) SetWorld(r Rect) {
	c.world = r
	c.changed()
}

// Follow makes the camera track a drawable with the given offset and lerp
// factor. A lerp of 1 snaps immediately; lower values follow smoothly.
func (c *Camera) Follow(d *Drawable, offsetX, offsetY, lerp float64) {
	c.followTarget = d
	c.followOffsetX = offsetX
	c.followOffsetY = offsetY
	c.followLerp = lerp
}

// Unfollow stops tracking the current target.
func (c *Camera) Unfollow() {
	c.followTarget = nil
}

// ScrollTo animates the view center to (x, y) over duration.
func (c *Camera) ScrollTo(x, y float64, duration time.Duration, easeFn ease.TweenFunc) {
	if easeFn == nil {
		easeFn = ease.Linear
	}
	secs := float32(duration.Seconds())
	c.scrollTween = &scrollAnim{
		tweenX: gween.New(float32(c.x), float32(x), secs, easeFn),
		tweenY: gween.New(float32(c.y), float32(y), secs, easeFn),
	}
}

// Scrolling reports whether a ScrollTo animation is in progress.
func (c *Camera) Scrolling() bool {
	return c.scrollTween != nil
}

// Update advances follow and scroll animations by dt and re-clamps.
func (c *Camera) Update(dt time.Duration) {
	if c.followTarget != nil {
		if c.followTarget.IsDisposed() {
			c.followTarget = nil
		} else {
			tx := c.followTarget.worldTransform[4] + c.followOffsetX
			ty := c.followTarget.worldTransform[5] + c.followOffsetY
			c.x += (tx - c.x) * c.followLerp
			c.y += (ty - c.y) * c.followLerp
		}
	}

	if c.scrollTween != nil {
		step := float32(dt.Seconds())
		if !c.scrollTween.doneX {
			val, done := c.scrollTween.tweenX.Update(step)
			c.x = float64(val)
			c.scrollTween.doneX = done
		}
		if !c.scrollTween.doneY {
			val, done := c.scrollTween.tweenY.Update(step)
			c.y = float64(val)
			c.scrollTween.doneY = done
		}
		if c.scrollTween.doneX && c.scrollTween.doneY {
			c.scrollTween = nil
		}
	}
	c.changed()
}

// --- Pointer drag ---

// DragState returns the current drag state.
func (c *Camera) DragState() DragState { return c.drag }

// PointerDown starts a drag when (sx, sy) lies inside the viewport.
func (c *Camera) PointerDown(sx, sy float64) {
	if !c.viewport.Contains(sx, sy) {
		return
	}
	c.drag = Dragging
	c.lastX, c.lastY = sx, sy
	c.dragTotal = 0
	c.scrollTween = nil
}

// PointerMove pans by the pointer delta while dragging. The content follows
// the pointer.
func (c *Camera) PointerMove(sx, sy float64) {
	if c.drag != Dragging {
		return
	}
	dx, dy := sx-c.lastX, sy-c.lastY
	c.lastX, c.lastY = sx, sy
	if dx == 0 && dy == 0 {
		return
	}
	c.dragTotal += math.Hypot(dx, dy)
	c.Move(-dx, -dy)
}

// PointerUp applies the final delta and ends the drag. It reports whether
// the gesture travelled far enough to count as a drag; a false result on
// a gesture that started inside the viewport is a click.
func (c *Camera) PointerUp(sx, sy float64) (dragged bool) {
	if c.drag != Dragging {
		return false
	}
	c.PointerMove(sx, sy)
	c.drag = DragIdle
	return c.dragTotal >= dragThreshold
}

// PointerUpOutside ends the drag when the pointer was released outside the
// interactive surface. Moves already applied are kept; nothing further is
// applied.
func (c *Camera) PointerUpOutside() {
	c.drag = DragIdle
}

// Wheel zooms around the screen point (ox, oy). Positive deltaY scrolls
// down and zooms out.
func (c *Camera) Wheel(deltaY, ox, oy float64) {
	switch {
	case deltaY > 0:
		c.ZoomAt(1/wheelStep, ox, oy)
	case deltaY < 0:
		c.ZoomAt(wheelStep, ox, oy)
	}
}

// --- Transforms ---

func (c *Camera) changed() {
	c.clampPan()
	c.dirty = true
}

func (c *Camera) clampZoom(z float64) float64 {
	return math.Max(c.minZoom, math.Min(z, c.maxZoom))
}

func (c *Camera) viewportCenter() (float64, float64) {
	return c.viewport.X + c.viewport.Width/2, c.viewport.Y + c.viewport.Height/2
}

// clampPan restricts the view center so the visible area stays within the
// world, centering on any axis where the world is smaller than the view.
func (c *Camera) clampPan() {
	if c.world.Width <= 0 || c.world.Height <= 0 {
		return
	}
	halfW := c.viewport.Width / (2 * c.zoom)
	halfH := c.viewport.Height / (2 * c.zoom)

	minX := c.world.X + halfW
	maxX := c.world.X + c.world.Width - halfW
	minY := c.world.Y + halfH
	maxY := c.world.Y + c.world.Height - halfH

	if minX > maxX {
		c.x = c.world.X + c.world.Width/2
	} else {
		c.x = math.Max(minX, math.Min(c.x, maxX))
	}
	if minY > maxY {
		c.y = c.world.Y + c.world.Height/2
	} else {
		c.y = math.Max(minY, math.Min(c.y, maxY))
	}
}

// computeViewMatrix recomputes the cached view matrix if dirty.
//
// viewMatrix = Translate(cx, cy) * Scale(zoom) * Translate(-X, -Y)
// where cx, cy = viewport center.
func (c *Camera) computeViewMatrix() [6]float64 {
	if !c.dirty {
		return c.viewMatrix
	}
	c.dirty = false

	cx, cy := c.viewportCenter()
	z := c.zoom
	c.viewMatrix = [6]float64{z, 0, 0, z, cx - z*c.x, cy - z*c.y}
	c.invViewMatrix = invertAffine(c.viewMatrix)
	return c.viewMatrix
}

// ViewMatrix returns the world-to-screen affine matrix.
func (c *Camera) ViewMatrix() [6]float64 {
	return c.computeViewMatrix()
}

// WorldToScreen converts world coordinates to screen coordinates.
func (c *Camera) WorldToScreen(wx, wy float64) (sx, sy float64) {
	c.computeViewMatrix()
	return transformPoint(c.viewMatrix, wx, wy)
}

// ScreenToWorld converts screen coordinates to world coordinates.
func (c *Camera) ScreenToWorld(sx, sy float64) (wx, wy float64) {
	c.computeViewMatrix()
	return transformPoint(c.invViewMatrix, sx, sy)
}

// VisibleBounds returns the world-space rectangle shown in the viewport.
func (c *Camera) VisibleBounds() Rect {
	w := c.viewport.Width / c.zoom
	h := c.viewport.Height / c.zoom
	return Rect{X: c.x - w/2, Y: c.y - h/2, Width: w, Height: h}
}

// --- Culling ---

// worldAABB computes the axis-aligned bounding box for a rectangle of size (w, h)
// transformed by the given affine matrix. Zero allocations.
func worldAABB(transform [6]float64, w, h float64) Rect {
	a, b, cc, d, tx, ty := transform[0], transform[2], transform[1], transform[3], transform[4], transform[5]

	x0, y0 := tx, ty
	x1, y1 := a*w+tx, cc*w+ty
	x2, y2 := a*w+b*h+tx, cc*w+d*h+ty
	x3, y3 := b*h+tx, d*h+ty

	minX := math.Min(math.Min(x0, x1), math.Min(x2, x3))
	minY := math.Min(math.Min(y0, y1), math.Min(y2, y3))
	maxX := math.Max(math.Max(x0, x1), math.Max(x2, x3))
	maxY := math.Max(math.Max(y0, y1), math.Max(y2, y3))

	return Rect{X: minX, Y: minY, Width: maxX - minX, Height: maxY - minY}
}

// shouldCull reports whether d lies entirely outside bounds. Drawables
// without a size are never culled.
func shouldCull(d *Drawable, bounds Rect) bool {
	w, h := d.Size()
	if w == 0 && h == 0 {
		return false
	}
	return !worldAABB(d.worldTransform, w, h).Intersects(bounds)
}
