package meadow

import "math"

// identityTransform is the identity affine matrix.
var identityTransform = [6]float64{1, 0, 0, 1, 0, 0}

// computeLocalTransform computes the local affine matrix from the drawable's
// transform properties. Returns [a, b, c, d, tx, ty].
//
// Composition order:
//
//	Translate(-PivotX, -PivotY) -> Scale -> Rotate -> Translate(X+OffsetX, Y+OffsetY)
func computeLocalTransform(d *Drawable) [6]float64 {
	sx := d.ScaleX
	sy := d.ScaleY

	sin, cos := math.Sincos(d.Rotation)

	preTx := -d.PivotX * sx
	preTy := -d.PivotY * sy

	return [6]float64{
		cos * sx,
		sin * sx,
		-sin * sy,
		cos * sy,
		cos*preTx - sin*preTy + d.X + d.OffsetX,
		sin*preTx + cos*preTy + d.Y + d.OffsetY,
	}
}

// multiplyAffine multiplies two 2D affine matrices: result = parent * child.
//
//	Matrix layout: [a, b, c, d, tx, ty]
//	| a  c  tx |
//	| b  d  ty |
//	| 0  0   1 |
func multiplyAffine(p, c [6]float64) [6]float64 {
	return [6]float64{
		p[0]*c[0] + p[2]*c[1],
		p[1]*c[0] + p[3]*c[1],
		p[0]*c[2] + p[2]*c[3],
		p[1]*c[2] + p[3]*c[3],
		p[0]*c[4] + p[2]*c[5] + p[4],
		p[1]*c[4] + p[3]*c[5] + p[5],
	}
}

// invertAffine computes the inverse of a 2D affine matrix.
// Returns the identity matrix if the matrix is singular.
func invertAffine(m [6]float64) [6]float64 {
	det := m[0]*m[3] - m[2]*m[1]
	if det > -1e-12 && det < 1e-12 {
		return identityTransform
	}
	invDet := 1.0 / det
	a := m[3] * invDet
	b := -m[1] * invDet
	c := -m[2] * invDet
	d := m[0] * invDet
	return [6]float64{
		a, b, c, d,
		-(a*m[4] + c*m[5]),
		-(b*m[4] + d*m[5]),
	}
}

// transformPoint applies an affine matrix to a point.
func transformPoint(m [6]float64, x, y float64) (float64, float64) {
	return m[0]*x + m[2]*y + m[4], m[1]*x + m[3]*y + m[5]
}

// updateWorldTransform recomputes a drawable's worldTransform and worldAlpha.
// parentRecomputed indicates whether the parent was recomputed this frame,
// which forces recomputation of this drawable even if it's not dirty.
func updateWorldTransform(d *Drawable, parentTransform [6]float64, parentAlpha float64, parentRecomputed bool) {
	recompute := d.transformDirty || parentRecomputed
	if recompute {
		local := computeLocalTransform(d)
		d.worldTransform = multiplyAffine(parentTransform, local)
		d.worldAlpha = parentAlpha * d.Alpha
		d.transformDirty = false
	}

	for _, child := range d.children {
		updateWorldTransform(child, d.worldTransform, d.worldAlpha, recompute)
	}
}

// --- Transform property setters ---

// SetPosition sets the drawable's local X and Y and marks it dirty.
func (d *Drawable) SetPosition(x, y float64) {
	d.X = x
	d.Y = y
	d.transformDirty = true
}

// SetScale sets the drawable's ScaleX and ScaleY and marks it dirty.
func (d *Drawable) SetScale(sx, sy float64) {
	d.ScaleX = sx
	d.ScaleY = sy
	d.transformDirty = true
}

// SetRotation sets the drawable's rotation (in radians) and marks it dirty.
func (d *Drawable) SetRotation(r float64) {
	d.Rotation = r
	d.transformDirty = true
}

// SetPivot sets the drawable's PivotX and PivotY and marks it dirty.
func (d *Drawable) SetPivot(px, py float64) {
	d.PivotX = px
	d.PivotY = py
	d.transformDirty = true
}

// SetAlpha sets the drawable's alpha and marks it dirty.
func (d *Drawable) SetAlpha(a float64) {
	d.Alpha = a
	d.transformDirty = true
}

// MarkDirty marks the transform as dirty, forcing recomputation on the next
// frame. Useful after bulk-setting fields directly.
func (d *Drawable) MarkDirty() {
	d.transformDirty = true
}

// WorldTransform returns the world matrix computed during the last update.
func (d *Drawable) WorldTransform() [6]float64 {
	return d.worldTransform
}

// --- Coordinate conversion ---

// WorldToLocal converts a world-space point to this drawable's local coordinate space.
func (d *Drawable) WorldToLocal(wx, wy float64) (lx, ly float64) {
	inv := invertAffine(d.worldTransform)
	return transformPoint(inv, wx, wy)
}

// LocalToWorld converts a local-space point to world-space.
func (d *Drawable) LocalToWorld(lx, ly float64) (wx, wy float64) {
	return transformPoint(d.worldTransform, lx, ly)
}
