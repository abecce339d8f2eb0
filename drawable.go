package meadow

import "image"

// drawableIDCounter is a plain counter (no atomic: meadow mutates the scene
// graph only from the frame callback).
var drawableIDCounter uint32

func nextDrawableID() uint32 {
	drawableIDCounter++
	return drawableIDCounter
}

// Drawable is a mutable visual node: a transform, an appearance and an
// optional texture. Drawables form a tree; children inherit their parent's
// transform and alpha. Drawables are normally issued by a Pool and returned
// to it when no longer shown.
type Drawable struct {
	// Identity
	ID   uint32
	Name string

	// Hierarchy
	Parent   *Drawable
	children []*Drawable

	// Transform (local). OffsetX/OffsetY are a visual displacement added to
	// the position, used by bobbing and shake effects so the logical
	// position stays intact.
	X, Y             float64
	OffsetX, OffsetY float64
	ScaleX           float64
	ScaleY           float64
	Rotation         float64
	PivotX           float64
	PivotY           float64

	worldTransform [6]float64
	worldAlpha     float64
	transformDirty bool

	// Appearance
	Alpha     float64
	Color     Color
	Visible   bool
	BlendMode BlendMode

	// Texture is drawn when set. Without a texture the drawable renders a
	// solid Color rectangle of Width x Height (zero size renders nothing).
	Texture       *Texture
	Width, Height float64
	// Region selects a frame of Texture. Empty draws the whole texture.
	Region image.Rectangle

	// Ordering
	ZIndex int

	// Metadata
	EntityID string
	UserData any

	// Internal
	disposed       bool
	childrenSorted bool
	sortedChildren []*Drawable
}

// resetDefaults sets the canonical field values shared by constructors and Reset.
func (d *Drawable) resetDefaults() {
	d.Name = ""
	d.X, d.Y = 0, 0
	d.OffsetX, d.OffsetY = 0, 0
	d.ScaleX, d.ScaleY = 1, 1
	d.Rotation = 0
	d.PivotX, d.PivotY = 0, 0
	d.Alpha = 1
	d.Color = ColorWhite
	d.Visible = true
	d.BlendMode = BlendNormal
	d.Texture = nil
	d.Region = image.Rectangle{}
	d.Width, d.Height = 0, 0
	d.ZIndex = 0
	d.EntityID = ""
	d.UserData = nil
	d.worldTransform = identityTransform
	d.worldAlpha = 1
	d.transformDirty = true
	d.childrenSorted = true
}

// NewDrawable creates a drawable with identity transform and full alpha.
func NewDrawable(name string) *Drawable {
	d := &Drawable{ID: nextDrawableID()}
	d.resetDefaults()
	d.Name = name
	return d
}

// NewSprite creates a drawable showing tex.
func NewSprite(name string, tex *Texture) *Drawable {
	d := NewDrawable(name)
	d.Texture = tex
	return d
}

// Reset restores the canonical default state: identity transform, full
// alpha, white tint, no texture, detached from its parent and with no
// children. The ID is preserved.
func (d *Drawable) Reset() {
	d.RemoveFromParent()
	d.RemoveChildren()
	d.resetDefaults()
}

// Size returns the unscaled local size used for culling and hit testing.
func (d *Drawable) Size() (w, h float64) {
	if d.Texture != nil && !d.Region.Empty() {
		return float64(d.Region.Dx()), float64(d.Region.Dy())
	}
	if d.Texture != nil {
		return float64(d.Texture.Width()), float64(d.Texture.Height())
	}
	return d.Width, d.Height
}

// --- Tree manipulation ---

// AddChild appends child to this drawable's children.
// If child already has a parent, it is removed from that parent first.
// Panics if child is nil or child is an ancestor of this drawable (cycle).
func (d *Drawable) AddChild(child *Drawable) {
	if child == nil {
		panic("meadow: cannot add nil child")
	}
	if globalDebug {
		debugCheckDisposed(d, "AddChild (parent)")
		debugCheckDisposed(child, "AddChild (child)")
	}
	if isAncestor(child, d) {
		panic("meadow: adding child would create a cycle")
	}
	if child.Parent != nil {
		child.Parent.removeChildByPtr(child)
	}
	child.Parent = d
	d.children = append(d.children, child)
	d.childrenSorted = false
	markSubtreeDirty(child)
	if globalDebug {
		debugCheckChildCount(d)
	}
}

// RemoveChild detaches child from this drawable.
// Panics if child.Parent != d.
func (d *Drawable) RemoveChild(child *Drawable) {
	if child.Parent != d {
		panic("meadow: child's parent is not this drawable")
	}
	d.removeChildByPtr(child)
	child.Parent = nil
	d.childrenSorted = false
	markSubtreeDirty(child)
}

// RemoveFromParent detaches this drawable from its parent.
// No-op if it has no parent.
func (d *Drawable) RemoveFromParent() {
	if d.Parent == nil {
		return
	}
	d.Parent.RemoveChild(d)
}

// RemoveChildren detaches all children. Children are NOT disposed.
func (d *Drawable) RemoveChildren() {
	for _, child := range d.children {
		child.Parent = nil
		markSubtreeDirty(child)
	}
	clear(d.children)
	d.children = d.children[:0]
	d.sortedChildren = d.sortedChildren[:0]
	d.childrenSorted = true
}

// Children returns the child list. The returned slice MUST NOT be mutated by the caller.
func (d *Drawable) Children() []*Drawable {
	return d.children
}

// NumChildren returns the number of children.
func (d *Drawable) NumChildren() int {
	return len(d.children)
}

// SetZIndex sets the drawable's ZIndex and marks the parent's children as unsorted.
func (d *Drawable) SetZIndex(z int) {
	if d.ZIndex == z {
		return
	}
	d.ZIndex = z
	if d.Parent != nil {
		d.Parent.childrenSorted = false
	}
}

// --- Disposal ---

// Dispose removes this drawable from its parent, marks it as disposed,
// and recursively disposes all descendants. Pools dispose the drawables
// they refuse to keep.
func (d *Drawable) Dispose() {
	if d.disposed {
		return
	}
	d.RemoveFromParent()
	d.dispose()
}

func (d *Drawable) dispose() {
	d.disposed = true
	for _, child := range d.children {
		child.Parent = nil
		child.dispose()
	}
	d.children = nil
	d.sortedChildren = nil
	d.Parent = nil
	d.Texture = nil
	d.UserData = nil
}

// IsDisposed returns true if this drawable has been disposed.
func (d *Drawable) IsDisposed() bool {
	return d.disposed
}

// --- Animation channels ---

// ChannelValue returns the current value of ch. Every channel is supported
// by Drawable.
func (d *Drawable) ChannelValue(ch Channel) (float64, bool) {
	switch ch {
	case ChannelX:
		return d.X, true
	case ChannelY:
		return d.Y, true
	case ChannelOffsetX:
		return d.OffsetX, true
	case ChannelOffsetY:
		return d.OffsetY, true
	case ChannelScaleX:
		return d.ScaleX, true
	case ChannelScaleY:
		return d.ScaleY, true
	case ChannelRotation:
		return d.Rotation, true
	case ChannelAlpha:
		return d.Alpha, true
	case ChannelTintR:
		return d.Color.R, true
	case ChannelTintG:
		return d.Color.G, true
	case ChannelTintB:
		return d.Color.B, true
	}
	return 0, false
}

// SetChannelValue writes v to ch and marks the transform dirty.
func (d *Drawable) SetChannelValue(ch Channel, v float64) bool {
	switch ch {
	case ChannelX:
		d.X = v
	case ChannelY:
		d.Y = v
	case ChannelOffsetX:
		d.OffsetX = v
	case ChannelOffsetY:
		d.OffsetY = v
	case ChannelScaleX:
		d.ScaleX = v
	case ChannelScaleY:
		d.ScaleY = v
	case ChannelRotation:
		d.Rotation = v
	case ChannelAlpha:
		d.Alpha = v
	case ChannelTintR:
		d.Color.R = v
	case ChannelTintG:
		d.Color.G = v
	case ChannelTintB:
		d.Color.B = v
	default:
		return false
	}
	d.transformDirty = true
	return true
}

// --- Helpers ---

// isAncestor reports whether candidate is an ancestor of d.
func isAncestor(candidate, d *Drawable) bool {
	for p := d; p != nil; p = p.Parent {
		if p == candidate {
			return true
		}
	}
	return false
}

// removeChildByPtr removes child from d.children without clearing child.Parent.
// Uses copy+nil to avoid retaining a dangling pointer in the backing array.
func (d *Drawable) removeChildByPtr(child *Drawable) {
	for i, c := range d.children {
		if c == child {
			copy(d.children[i:], d.children[i+1:])
			d.children[len(d.children)-1] = nil
			d.children = d.children[:len(d.children)-1]
			return
		}
	}
}

// markSubtreeDirty sets transformDirty on d and all its descendants.
func markSubtreeDirty(d *Drawable) {
	d.transformDirty = true
	for _, child := range d.children {
		markSubtreeDirty(child)
	}
}
