package meadow

import (
	"image"

	"github.com/hajimehoshi/ebiten/v2"
)

// Render layers, drawn in ascending order. Within a layer, commands are
// sorted by depth (the drawable's Y) so sprites further down the screen
// overlap the ones above them.
const (
	layerEntities uint8 = iota + 1
	layerEffects
)

// color32 is a compact RGBA color using float32, for render commands only.
type color32 struct {
	R, G, B, A float32
}

// renderCommand is a single draw instruction emitted while walking the
// drawable tree.
type renderCommand struct {
	transform [6]float32 // screen space
	texture   *Texture   // nil draws a solid width x height rectangle
	region    image.Rectangle
	width     float32
	height    float32
	color     color32
	blend     BlendMode
	layer     uint8
	depth     float64
	treeOrder int // assigned during traversal for stable sort
}

// affine32 converts a [6]float64 affine matrix to [6]float32.
func affine32(m [6]float64) [6]float32 {
	return [6]float32{float32(m[0]), float32(m[1]), float32(m[2]), float32(m[3]), float32(m[4]), float32(m[5])}
}

// emit walks the subtree under d depth-first and appends a command for every
// visible drawable that has something to draw and survives culling.
// Children are always visited: a culled parent says nothing about where its
// children are.
func (r *Renderer) emit(d *Drawable, layer uint8, view [6]float64, treeOrder *int) {
	if !d.Visible {
		return
	}
	w, h := d.Size()
	if w > 0 && h > 0 && !shouldCull(d, r.cullBounds) {
		*treeOrder++
		c := d.Color
		blend := d.BlendMode
		if !r.settings.ShaderEnabled {
			c = ColorWhite
			blend = BlendNormal
		}
		cmd := renderCommand{
			transform: affine32(multiplyAffine(view, d.worldTransform)),
			texture:   d.Texture,
			region:    d.Region,
			color:     color32{float32(c.R), float32(c.G), float32(c.B), float32(d.worldAlpha)},
			blend:     blend,
			layer:     layer,
			depth:     d.Y,
			treeOrder: *treeOrder,
		}
		if d.Texture == nil {
			cmd.width, cmd.height = float32(d.Width), float32(d.Height)
		}
		r.commands = append(r.commands, cmd)
	}
	for _, child := range d.children {
		r.emit(child, layer, view, treeOrder)
	}
}

// --- Merge sort ---

// commandLessOrEqual returns true if a should sort before or at the same position as b.
// Using <= for treeOrder ensures stability.
func commandLessOrEqual(a, b *renderCommand) bool {
	if a.layer != b.layer {
		return a.layer < b.layer
	}
	if a.depth != b.depth {
		return a.depth < b.depth
	}
	return a.treeOrder <= b.treeOrder
}

// mergeSort sorts r.commands in-place using r.sortBuf as scratch space.
// Bottom-up merge sort: zero allocations after the sort buffer reaches high-water mark.
func (r *Renderer) mergeSort() {
	n := len(r.commands)
	if n <= 1 {
		return
	}
	if cap(r.sortBuf) < n {
		r.sortBuf = make([]renderCommand, n)
	}
	r.sortBuf = r.sortBuf[:n]

	a := r.commands
	b := r.sortBuf
	swapped := false

	for width := 1; width < n; width *= 2 {
		for i := 0; i < n; i += 2 * width {
			lo := i
			mid := min(lo+width, n)
			hi := min(lo+2*width, n)
			mergeRun(a, b, lo, mid, hi)
		}
		a, b = b, a
		swapped = !swapped
	}

	if swapped {
		copy(r.commands, r.sortBuf)
	}
}

// mergeRun merges two sorted runs [lo, mid) and [mid, hi) from src into dst.
func mergeRun(src, dst []renderCommand, lo, mid, hi int) {
	i, j, k := lo, mid, lo
	for i < mid && j < hi {
		if commandLessOrEqual(&src[i], &src[j]) {
			dst[k] = src[i]
			i++
		} else {
			dst[k] = src[j]
			j++
		}
		k++
	}
	for i < mid {
		dst[k] = src[i]
		i++
		k++
	}
	for j < hi {
		dst[k] = src[j]
		j++
		k++
	}
}

// --- Submission ---

// batchKey groups commands that ebiten can merge into one draw call.
type batchKey struct {
	texture *Texture
	blend   BlendMode
}

// countBatches counts contiguous groups of commands sharing the same batchKey.
func countBatches(commands []renderCommand) int {
	if len(commands) == 0 {
		return 0
	}
	count := 1
	prev := batchKey{commands[0].texture, commands[0].blend}
	for i := 1; i < len(commands); i++ {
		cur := batchKey{commands[i].texture, commands[i].blend}
		if cur != prev {
			count++
			prev = cur
		}
	}
	return count
}

// commandGeoM converts a command's transform into an ebiten.GeoM.
func commandGeoM(cmd *renderCommand) ebiten.GeoM {
	var m ebiten.GeoM
	m.SetElement(0, 0, float64(cmd.transform[0]))
	m.SetElement(1, 0, float64(cmd.transform[1]))
	m.SetElement(0, 1, float64(cmd.transform[2]))
	m.SetElement(1, 1, float64(cmd.transform[3]))
	m.SetElement(0, 2, float64(cmd.transform[4]))
	m.SetElement(1, 2, float64(cmd.transform[5]))
	return m
}

// submit draws the sorted commands onto target and returns the number of
// DrawImage calls issued.
func (r *Renderer) submit(target *ebiten.Image) int {
	var op ebiten.DrawImageOptions
	for i := range r.commands {
		cmd := &r.commands[i]

		op.GeoM.Reset()
		var img *ebiten.Image
		if cmd.texture != nil {
			img = cmd.texture.Image()
			if !cmd.region.Empty() {
				img = r.textures.Frame(cmd.texture, cmd.region)
			}
			op.Filter = ebiten.FilterNearest
			if r.settings.SmoothFiltering {
				op.Filter = cmd.texture.Filter()
			}
		} else {
			img = ensureWhitePixel()
			op.GeoM.Scale(float64(cmd.width), float64(cmd.height))
			op.Filter = ebiten.FilterNearest
		}
		op.GeoM.Concat(commandGeoM(cmd))

		// Premultiplied color scale.
		a := cmd.color.A
		op.ColorScale.Reset()
		op.ColorScale.Scale(cmd.color.R*a, cmd.color.G*a, cmd.color.B*a, a)
		op.Blend = cmd.blend.EbitenBlend()

		target.DrawImage(img, &op)
	}
	return len(r.commands)
}
