package meadow

import (
	"image"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
)

// GID flag bits (same convention as Tiled TMX format).
const (
	TileFlipH    uint32 = 1 << 31 // horizontal flip
	TileFlipV    uint32 = 1 << 30 // vertical flip
	TileFlipD    uint32 = 1 << 29 // diagonal flip (90° rotation)
	tileFlagMask uint32 = TileFlipH | TileFlipV | TileFlipD
)

// maxTilesPerDraw is the maximum number of tiles per DrawTriangles call.
// Limited by uint16 index buffer: 65535 / 4 vertices per tile = 16383.
const maxTilesPerDraw = 16383

// defaultTileMargin is the number of extra tiles kept buffered beyond the
// visible edge.
const defaultTileMargin = 2

// AnimFrame describes a single frame in a tile animation sequence.
type AnimFrame struct {
	GID      uint32 // tile GID for this frame (no flag bits)
	Duration time.Duration
}

// uvOrder defines vertex UV assignment for each combination of flip flags.
// Indexed by 3-bit flag value: (flipH << 2) | (flipV << 1) | flipD.
// Each entry contains 4 corner indices: TL=0, TR=1, BL=2, BR=3.
var uvOrder = [8][4]int{
	{0, 1, 2, 3}, // no flags
	{2, 0, 3, 1}, // D only (90° CW + H flip)
	{2, 3, 0, 1}, // V flip
	{3, 2, 1, 0}, // V+D (90° CCW)
	{1, 0, 3, 2}, // H flip
	{0, 2, 1, 3}, // H+D (90° CW)
	{3, 2, 1, 0}, // H+V
	{1, 3, 0, 2}, // H+V+D (90° CW + V flip)
}

// TileLayer is a grid of tile GIDs drawn from one tileset texture. It keeps
// a vertex buffer covering only the tiles inside the camera bounds plus a
// margin, rebuilt when the covered range crosses a tile boundary and
// transformed to screen space each frame.
type TileLayer struct {
	tileW, tileH int
	cols, rows   int
	data         []uint32 // row-major GIDs, len = cols * rows

	tileset *Texture
	regions []image.Rectangle // indexed by GID (flags masked)

	// Margin is the number of tiles buffered beyond the visible edge.
	Margin int
	// Visible hides the layer when false.
	Visible bool

	vertices  []ebiten.Vertex // 4 per tile slot
	indices   []uint16        // 6 per tile slot
	worldX    []float32
	worldY    []float32
	slotGID   []uint32 // GID with flags per slot, for animation
	tileCount int

	bufStartCol, bufStartRow int
	bufEndCol, bufEndRow     int
	bufDirty                 bool
	rebuilds                 int

	anims       map[uint32][]AnimFrame
	animElapsed time.Duration
}

// NewTileLayer creates a layer of cols x rows tiles. data is row-major and
// is used in place. regions maps each GID to its rectangle in tileset;
// index 0 is unused since GID 0 means "no tile".
func NewTileLayer(cols, rows, tileW, tileH int, data []uint32, tileset *Texture, regions []image.Rectangle) *TileLayer {
	if len(data) != cols*rows {
		panic("meadow: tile data length does not match layer size")
	}
	return &TileLayer{
		tileW:       tileW,
		tileH:       tileH,
		cols:        cols,
		rows:        rows,
		data:        data,
		tileset:     tileset,
		regions:     regions,
		Margin:      defaultTileMargin,
		Visible:     true,
		bufDirty:    true,
		bufStartCol: -1,
		bufStartRow: -1,
	}
}

// TilesetRegions cuts a tileset image into tile rectangles, indexed by GID
// starting at firstGID. Margin and spacing follow the Tiled definitions.
func TilesetRegions(imageW, imageH, tileW, tileH, margin, spacing int, firstGID uint32) []image.Rectangle {
	if tileW <= 0 || tileH <= 0 {
		return nil
	}
	columns := (imageW - 2*margin + spacing) / (tileW + spacing)
	rows := (imageH - 2*margin + spacing) / (tileH + spacing)
	regions := make([]image.Rectangle, int(firstGID)+columns*rows)
	for r := 0; r < rows; r++ {
		for c := 0; c < columns; c++ {
			x := margin + c*(tileW+spacing)
			y := margin + r*(tileH+spacing)
			regions[int(firstGID)+r*columns+c] = image.Rect(x, y, x+tileW, y+tileH)
		}
	}
	return regions
}

// Bounds returns the world-space rectangle covered by the layer.
func (l *TileLayer) Bounds() Rect {
	return Rect{Width: float64(l.cols * l.tileW), Height: float64(l.rows * l.tileH)}
}

// TileSize returns the tile dimensions in pixels.
func (l *TileLayer) TileSize() (w, h int) { return l.tileW, l.tileH }

// Tile returns the GID at (col, row), or 0 outside the grid.
func (l *TileLayer) Tile(col, row int) uint32 {
	if col < 0 || col >= l.cols || row < 0 || row >= l.rows {
		return 0
	}
	return l.data[row*l.cols+col]
}

// SetTile updates a single tile. The buffer is rebuilt on the next frame if
// the tile is currently buffered.
func (l *TileLayer) SetTile(col, row int, gid uint32) {
	if col < 0 || col >= l.cols || row < 0 || row >= l.rows {
		return
	}
	l.data[row*l.cols+col] = gid
	if col >= l.bufStartCol && col <= l.bufEndCol && row >= l.bufStartRow && row <= l.bufEndRow {
		l.bufDirty = true
	}
}

// InvalidateBuffer forces a full buffer rebuild on the next frame.
func (l *TileLayer) InvalidateBuffer() {
	l.bufDirty = true
	l.bufStartCol = -1
	l.bufStartRow = -1
}

// SetAnimations sets tile animations keyed by base GID (no flag bits).
func (l *TileLayer) SetAnimations(anims map[uint32][]AnimFrame) {
	l.anims = anims
	l.bufDirty = true
}

// BufferedTiles returns the number of non-empty tiles currently buffered.
func (l *TileLayer) BufferedTiles() int { return l.tileCount }

// Rebuilds returns how many times the buffer has been rebuilt.
func (l *TileLayer) Rebuilds() int { return l.rebuilds }

// update fits the buffer to bounds (world space) and advances animations.
func (l *TileLayer) update(bounds Rect, dt time.Duration) {
	if !l.Visible || l.cols == 0 || l.rows == 0 {
		return
	}
	tw := float64(l.tileW)
	th := float64(l.tileH)

	startCol := max(int(math.Floor(bounds.X/tw))-l.Margin, 0)
	startRow := max(int(math.Floor(bounds.Y/th))-l.Margin, 0)
	endCol := min(int(math.Ceil((bounds.X+bounds.Width)/tw))+l.Margin, l.cols-1)
	endRow := min(int(math.Ceil((bounds.Y+bounds.Height)/th))+l.Margin, l.rows-1)

	if l.bufDirty || startCol != l.bufStartCol || startRow != l.bufStartRow ||
		endCol != l.bufEndCol || endRow != l.bufEndRow {
		l.rebuildBuffer(startCol, startRow, endCol, endRow)
	}

	if dt > 0 && l.anims != nil {
		l.animElapsed += dt
		l.updateAnimations()
	}
}

// ensureBuffer grows the geometry buffer if needed.
func (l *TileLayer) ensureBuffer(n int) {
	if n <= len(l.worldX) {
		return
	}
	l.worldX = make([]float32, n)
	l.worldY = make([]float32, n)
	l.slotGID = make([]uint32, n)
	l.vertices = make([]ebiten.Vertex, n*4)

	// Index topology never changes; batches index from their own base.
	per := min(n, maxTilesPerDraw)
	l.indices = make([]uint16, per*6)
	for i := 0; i < per; i++ {
		base := uint16(i * 4)
		off := i * 6
		l.indices[off+0] = base + 0
		l.indices[off+1] = base + 1
		l.indices[off+2] = base + 2
		l.indices[off+3] = base + 1
		l.indices[off+4] = base + 3
		l.indices[off+5] = base + 2
	}
}

// rebuildBuffer fills the vertex buffer with the tiles in the inclusive
// range [startCol, endCol] x [startRow, endRow].
func (l *TileLayer) rebuildBuffer(startCol, startRow, endCol, endRow int) {
	l.bufStartCol, l.bufStartRow = startCol, startRow
	l.bufEndCol, l.bufEndRow = endCol, endRow
	l.bufDirty = false
	l.rebuilds++

	l.ensureBuffer(max(endCol-startCol+1, 0) * max(endRow-startRow+1, 0))

	tw := float32(l.tileW)
	th := float32(l.tileH)
	n := 0
	for row := startRow; row <= endRow; row++ {
		rowOffset := row * l.cols
		for col := startCol; col <= endCol; col++ {
			gid := l.data[rowOffset+col]
			if gid == 0 {
				continue
			}
			region, ok := l.region(gid &^ tileFlagMask)
			if !ok {
				continue
			}
			l.worldX[n] = float32(col) * tw
			l.worldY[n] = float32(row) * th
			l.slotGID[n] = gid
			setTileUVs(l.vertices[n*4:], region, gid&tileFlagMask)
			n++
		}
	}
	l.tileCount = n
	if l.anims != nil {
		l.updateAnimations()
	}
}

func (l *TileLayer) region(gid uint32) (image.Rectangle, bool) {
	if int(gid) >= len(l.regions) {
		return image.Rectangle{}, false
	}
	r := l.regions[gid]
	return r, !r.Empty()
}

// setTileUVs sets the source coordinates of a tile's four vertices,
// applying flip flags via the lookup table.
func setTileUVs(verts []ebiten.Vertex, region image.Rectangle, flags uint32) {
	sx := float32(region.Min.X)
	sy := float32(region.Min.Y)
	ex := float32(region.Max.X)
	ey := float32(region.Max.Y)

	// TL(0), TR(1), BL(2), BR(3).
	uvX := [4]float32{sx, ex, sx, ex}
	uvY := [4]float32{sy, sy, ey, ey}

	flagIdx := 0
	if flags&TileFlipH != 0 {
		flagIdx |= 4
	}
	if flags&TileFlipV != 0 {
		flagIdx |= 2
	}
	if flags&TileFlipD != 0 {
		flagIdx |= 1
	}
	order := uvOrder[flagIdx]

	for i := 0; i < 4; i++ {
		verts[i].SrcX = uvX[order[i]]
		verts[i].SrcY = uvY[order[i]]
	}
}

// updateAnimations points animated tile slots at their current frame.
func (l *TileLayer) updateAnimations() {
	for i := 0; i < l.tileCount; i++ {
		gid := l.slotGID[i]
		frames, ok := l.anims[gid&^tileFlagMask]
		if !ok || len(frames) == 0 {
			continue
		}
		if region, ok := l.region(animFrameGID(frames, l.animElapsed)); ok {
			setTileUVs(l.vertices[i*4:], region, gid&tileFlagMask)
		}
	}
}

// animFrameGID returns the frame shown after elapsed time.
func animFrameGID(frames []AnimFrame, elapsed time.Duration) uint32 {
	var total time.Duration
	for _, f := range frames {
		total += f.Duration
	}
	if total <= 0 {
		return frames[0].GID
	}
	elapsed %= total
	var acc time.Duration
	for _, f := range frames {
		acc += f.Duration
		if elapsed < acc {
			return f.GID
		}
	}
	return frames[0].GID
}

// draw transforms the buffered tiles with view and issues DrawTriangles
// calls onto target. Returns the number of draw calls.
func (l *TileLayer) draw(target *ebiten.Image, view [6]float64, smooth bool) int {
	if !l.Visible || l.tileCount == 0 || l.tileset == nil {
		return 0
	}
	l.transformVertices(view)

	op := ebiten.DrawTrianglesOptions{Filter: ebiten.FilterNearest}
	if smooth {
		op.Filter = l.tileset.Filter()
	}
	img := l.tileset.Image()
	calls := 0
	for offset := 0; offset < l.tileCount; offset += maxTilesPerDraw {
		end := min(offset+maxTilesPerDraw, l.tileCount)
		target.DrawTriangles(l.vertices[offset*4:end*4], l.indices[:(end-offset)*6], img, &op)
		calls++
	}
	return calls
}

// transformVertices writes screen positions for every buffered tile.
func (l *TileLayer) transformVertices(view [6]float64) {
	va, vb := float32(view[0]), float32(view[1])
	vc, vd := float32(view[2]), float32(view[3])
	vtx, vty := float32(view[4]), float32(view[5])

	// Axis-aligned cameras only.
	tileScreenW := va * float32(l.tileW)
	tileScreenH := vd * float32(l.tileH)

	for i := 0; i < l.tileCount; i++ {
		wx := l.worldX[i]
		wy := l.worldY[i]
		screenX := va*wx + vc*wy + vtx
		screenY := vb*wx + vd*wy + vty

		v := l.vertices[i*4 : i*4+4]
		v[0].DstX, v[0].DstY = screenX, screenY
		v[1].DstX, v[1].DstY = screenX+tileScreenW, screenY
		v[2].DstX, v[2].DstY = screenX, screenY+tileScreenH
		v[3].DstX, v[3].DstY = screenX+tileScreenW, screenY+tileScreenH
		for j := range v {
			v[j].ColorR, v[j].ColorG, v[j].ColorB, v[j].ColorA = 1, 1, 1, 1
		}
	}
}
