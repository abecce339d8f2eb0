package meadow

import (
	"math"
	"sort"
	"testing"
)

// emitRenderer returns a bare renderer suitable for command emission tests
// (no ebiten.Image needed).
func emitRenderer() *Renderer {
	return &Renderer{
		settings:   DefaultQualitySettings(QualityHigh),
		cullBounds: Rect{X: -1e6, Y: -1e6, Width: 2e6, Height: 2e6},
	}
}

// emitTree refreshes world transforms then emits root with identity view.
func emitTree(r *Renderer, root *Drawable) {
	r.commands = r.commands[:0]
	updateWorldTransform(root, identityTransform, 1.0, false)
	treeOrder := 0
	r.emit(root, layerEntities, identityTransform, &treeOrder)
}

func solid(name string, w, h float64) *Drawable {
	d := NewDrawable(name)
	d.Width, d.Height = w, h
	return d
}

// --- Command emission ---

func TestSizedDrawableEmitsOneCommand(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	root.AddChild(solid("s", 32, 32))

	emitTree(r, root)

	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.commands))
	}
	if r.commands[0].width != 32 || r.commands[0].height != 32 {
		t.Errorf("size = %vx%v, want 32x32", r.commands[0].width, r.commands[0].height)
	}
}

func TestInvisibleDrawableNoCommands(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	s := solid("s", 32, 32)
	s.Visible = false
	root.AddChild(s)

	emitTree(r, root)

	if len(r.commands) != 0 {
		t.Errorf("commands = %d, want 0 for invisible drawable", len(r.commands))
	}
}

func TestInvisibleSubtreeSkipped(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	parent := NewDrawable("parent")
	parent.Visible = false
	parent.AddChild(solid("child", 32, 32))
	root.AddChild(parent)

	emitTree(r, root)

	if len(r.commands) != 0 {
		t.Errorf("commands = %d, want 0 for invisible subtree", len(r.commands))
	}
}

func TestUnsizedDrawableNoCommand(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	root.AddChild(NewDrawable("container"))

	emitTree(r, root)

	if len(r.commands) != 0 {
		t.Errorf("unsized drawables should not emit commands, got %d", len(r.commands))
	}
}

func TestCulledDrawableSkippedButChildrenVisited(t *testing.T) {
	r := emitRenderer()
	r.cullBounds = Rect{X: 0, Y: 0, Width: 100, Height: 100}
	root := NewDrawable("root")
	far := solid("far", 10, 10)
	far.SetPosition(500, 500)
	near := solid("near", 10, 10)
	near.SetPosition(-450, -450) // world (50, 50)
	far.AddChild(near)
	root.AddChild(far)

	emitTree(r, root)

	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1 (child only)", len(r.commands))
	}
	if got := r.commands[0].transform[4]; got != 50 {
		t.Errorf("child tx = %v, want 50", got)
	}
}

func TestTreeOrderAssignment(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	for i := 1; i <= 3; i++ {
		root.AddChild(solid("", float64(i), 1))
	}

	emitTree(r, root)

	if len(r.commands) != 3 {
		t.Fatalf("commands = %d, want 3", len(r.commands))
	}
	for i := 1; i < len(r.commands); i++ {
		if r.commands[i].treeOrder <= r.commands[i-1].treeOrder {
			t.Errorf("treeOrder not strictly increasing: [%d]=%d, [%d]=%d",
				i-1, r.commands[i-1].treeOrder, i, r.commands[i].treeOrder)
		}
	}
}

func TestWorldAlphaInCommand(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	parent := NewDrawable("parent")
	parent.Alpha = 0.5
	child := solid("child", 32, 32)
	child.Alpha = 0.8
	parent.AddChild(child)
	root.AddChild(parent)

	emitTree(r, root)

	if len(r.commands) != 1 {
		t.Fatalf("commands = %d, want 1", len(r.commands))
	}
	// worldAlpha = 0.5 * 0.8 = 0.4
	if got := float64(r.commands[0].color.A); math.Abs(got-0.4) > 1e-6 {
		t.Errorf("cmd.color.A = %v, want ~0.4", got)
	}
}

func TestTintDroppedWhenShaderDisabled(t *testing.T) {
	r := emitRenderer()
	r.settings.ShaderEnabled = false
	root := NewDrawable("root")
	s := solid("s", 8, 8)
	s.Color = Color{R: 0.2, G: 0.4, B: 0.6, A: 1}
	s.BlendMode = BlendAdd
	root.AddChild(s)

	emitTree(r, root)

	c := r.commands[0].color
	if c.R != 1 || c.G != 1 || c.B != 1 {
		t.Errorf("color = %+v, want untinted", c)
	}
	if r.commands[0].blend != BlendNormal {
		t.Errorf("blend = %d, want BlendNormal", r.commands[0].blend)
	}
}

func TestViewAppliedToCommandTransform(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	s := solid("s", 8, 8)
	s.SetPosition(10, 20)
	root.AddChild(s)

	r.commands = r.commands[:0]
	updateWorldTransform(root, identityTransform, 1.0, false)
	treeOrder := 0
	r.emit(root, layerEntities, [6]float64{2, 0, 0, 2, 100, 50}, &treeOrder)

	tr := r.commands[0].transform
	if tr[0] != 2 || tr[4] != 120 || tr[5] != 90 {
		t.Errorf("transform = %v, want scale 2 at (120, 90)", tr)
	}
}

// --- Sorting ---

func TestDepthSorting(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	low := solid("low", 1, 1)
	low.SetPosition(0, 200)
	high := solid("high", 2, 1)
	high.SetPosition(0, 100)
	root.AddChild(low)
	root.AddChild(high)

	emitTree(r, root)
	r.mergeSort()

	if r.commands[0].width != 2 {
		t.Errorf("first command should be the higher drawable, got width %v", r.commands[0].width)
	}
}

func TestLayerSortsBeforeDepth(t *testing.T) {
	r := emitRenderer()
	r.commands = []renderCommand{
		{layer: layerEffects, depth: 0, treeOrder: 1},
		{layer: layerEntities, depth: 500, treeOrder: 2},
	}
	r.mergeSort()
	if r.commands[0].layer != layerEntities {
		t.Errorf("first layer = %d, want entities", r.commands[0].layer)
	}
}

func TestTreeOrderPreservedAtEqualDepth(t *testing.T) {
	r := emitRenderer()
	root := NewDrawable("root")
	for i := 0; i < 5; i++ {
		root.AddChild(solid("", float64(i+1), 1))
	}

	emitTree(r, root)
	r.mergeSort()

	for i := 0; i < 5; i++ {
		if r.commands[i].width != float32(i+1) {
			t.Errorf("commands[%d].width = %v, want %d", i, r.commands[i].width, i+1)
		}
	}
}

// --- Merge sort ---

func TestMergeSortMatchesStdlib(t *testing.T) {
	r := emitRenderer()
	cmds := []renderCommand{
		{layer: 2, depth: 0, treeOrder: 1},
		{layer: 0, depth: 3, treeOrder: 2},
		{layer: 0, depth: 1, treeOrder: 3},
		{layer: 1, depth: 0, treeOrder: 4},
		{layer: 0, depth: 1, treeOrder: 5},
		{layer: 2, depth: 0, treeOrder: 6},
		{layer: 0, depth: 0, treeOrder: 7},
	}

	ref := make([]renderCommand, len(cmds))
	copy(ref, cmds)
	sort.SliceStable(ref, func(i, j int) bool {
		a, b := ref[i], ref[j]
		if a.layer != b.layer {
			return a.layer < b.layer
		}
		if a.depth != b.depth {
			return a.depth < b.depth
		}
		return a.treeOrder < b.treeOrder
	})

	r.commands = make([]renderCommand, len(cmds))
	copy(r.commands, cmds)
	r.mergeSort()

	for i := range r.commands {
		a, b := r.commands[i], ref[i]
		if a.layer != b.layer || a.depth != b.depth || a.treeOrder != b.treeOrder {
			t.Errorf("index %d: mergeSort=(%d,%v,%d), stdlib=(%d,%v,%d)",
				i, a.layer, a.depth, a.treeOrder, b.layer, b.depth, b.treeOrder)
		}
	}
}

func TestMergeSortStable(t *testing.T) {
	r := emitRenderer()
	r.commands = make([]renderCommand, 100)
	for i := range r.commands {
		r.commands[i] = renderCommand{treeOrder: i}
	}

	r.mergeSort()

	for i := range r.commands {
		if r.commands[i].treeOrder != i {
			t.Fatalf("stability broken at index %d: treeOrder=%d", i, r.commands[i].treeOrder)
		}
	}
}

func TestMergeSortBufferReuse(t *testing.T) {
	r := emitRenderer()

	r.commands = make([]renderCommand, 50)
	for i := range r.commands {
		r.commands[i] = renderCommand{treeOrder: 50 - i}
	}
	r.mergeSort()
	bufCap := cap(r.sortBuf)

	r.commands = make([]renderCommand, 30)
	for i := range r.commands {
		r.commands[i] = renderCommand{treeOrder: 30 - i}
	}
	r.mergeSort()

	if cap(r.sortBuf) != bufCap {
		t.Errorf("sortBuf reallocated: was %d, now %d", bufCap, cap(r.sortBuf))
	}
}

func TestMergeSortEmpty(t *testing.T) {
	r := emitRenderer()
	r.commands = nil
	r.mergeSort() // should not panic
}

func TestCountBatches(t *testing.T) {
	a := &Texture{key: "a"}
	b := &Texture{key: "b"}
	cmds := []renderCommand{
		{texture: a}, {texture: a}, {texture: b}, {texture: b, blend: BlendAdd}, {texture: a},
	}
	if got := countBatches(cmds); got != 4 {
		t.Errorf("countBatches = %d, want 4", got)
	}
	if got := countBatches(nil); got != 0 {
		t.Errorf("countBatches(nil) = %d, want 0", got)
	}
}

func BenchmarkMergeSort1000(b *testing.B) {
	r := emitRenderer()
	src := make([]renderCommand, 1000)
	for i := range src {
		src[i] = renderCommand{layer: uint8(i % 3), depth: float64((i * 7919) % 1000), treeOrder: i}
	}
	r.commands = make([]renderCommand, len(src))
	for b.Loop() {
		copy(r.commands, src)
		r.mergeSort()
	}
}
