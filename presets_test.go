package meadow

import (
	"math"
	"testing"
	"time"
)

func newTestPresets(maxParticles int) (*Presets, *Scheduler, *FrameClock, *Pool[*Drawable]) {
	s, clock := newTestScheduler()
	pool := NewDrawablePool("particles", maxParticles, nullLogger())
	return NewPresets(s, pool), s, clock, pool
}

func TestGrowStartsFromZeroAndSettles(t *testing.T) {
	p, s, clock, _ := newTestPresets(0)
	d := NewDrawable("crop")
	id := p.Grow(d, 1.5)
	if d.ScaleX != 0 || d.ScaleY != 0 {
		t.Fatalf("scale = %v,%v, want 0", d.ScaleX, d.ScaleY)
	}
	clock.Advance(GrowDuration + time.Duration(GrowStagger.Max))
	s.Update()
	if s.IsActive(id) {
		t.Error("grow still active after duration plus max stagger")
	}
	assertNear(t, "scaleX", d.ScaleX, 1.5)
}

func TestGrowStaggerDelaysStart(t *testing.T) {
	p, s, clock, _ := newTestPresets(0)
	// With a non-zero minimum stagger no scale is written on the first tick.
	old := GrowStagger
	GrowStagger = Range{Min: float64(50 * time.Millisecond), Max: float64(100 * time.Millisecond)}
	defer func() { GrowStagger = old }()

	d := NewDrawable("crop")
	p.Grow(d, 1)
	clock.Advance(40 * time.Millisecond)
	s.Update()
	if d.ScaleX != 0 {
		t.Errorf("scale written during stagger: %v", d.ScaleX)
	}
}

func TestHarvestFadesAndCallsDone(t *testing.T) {
	p, s, clock, _ := newTestPresets(0)
	d := NewDrawable("crop")
	done := 0
	p.Harvest(d, func() { done++ })
	clock.Advance(HarvestDuration)
	s.Update()
	s.Update()
	if done != 1 {
		t.Errorf("done called %d times, want 1", done)
	}
	if d.Alpha != 0 || d.ScaleX != 0 {
		t.Errorf("alpha=%v scale=%v, want 0", d.Alpha, d.ScaleX)
	}
	assertNear(t, "offsetY", d.OffsetY, -harvestLift)
}

func TestWitherTintsAndDims(t *testing.T) {
	p, s, clock, _ := newTestPresets(0)
	d := NewDrawable("crop")
	p.Wither(d)
	clock.Advance(WitherDuration)
	s.Update()
	if d.Color.R != WitherTint.R || d.Color.G != WitherTint.G || d.Color.B != WitherTint.B {
		t.Errorf("tint = %+v", d.Color)
	}
	assertNear(t, "alpha", d.Alpha, witherAlpha)
}

func TestWalkMovesLinearlyAndStopsBob(t *testing.T) {
	p, s, clock, _ := newTestPresets(0)
	d := NewDrawable("farmer")
	arrived := false
	move, bob := p.Walk(d, 100, 0, 50, func() { arrived = true })

	clock.Advance(time.Second)
	s.Update()
	assertNear(t, "x@1s", d.X, 50)
	if d.OffsetY == 0 {
		t.Error("bob not applied while walking")
	}

	clock.Advance(time.Second)
	s.Update()
	if !arrived {
		t.Fatal("arrived not called")
	}
	if s.IsActive(move) || s.IsActive(bob) {
		t.Error("walk animations still active after arrival")
	}
	if d.OffsetY != 0 {
		t.Errorf("OffsetY = %v, want 0 after arrival", d.OffsetY)
	}
	assertNear(t, "x", d.X, 100)
}

func TestBurstRadiatesAndReturnsToPool(t *testing.T) {
	p, s, clock, pool := newTestPresets(32)
	layer := NewDrawable("effects")
	ids := p.Burst(layer, 10, 20, 8, Color{1, 0.9, 0.3, 1})
	if len(ids) != 8 || layer.NumChildren() != 8 {
		t.Fatalf("ids=%d children=%d, want 8", len(ids), layer.NumChildren())
	}
	if got := pool.Stats().Active; got != 8 {
		t.Errorf("active = %d, want 8", got)
	}

	clock.Advance(BurstDuration / 2)
	s.Update()
	for _, c := range layer.Children() {
		dist := math.Hypot(c.X-10, c.Y-20)
		if dist < 1 {
			t.Errorf("particle did not move: (%v,%v)", c.X, c.Y)
		}
		if c.Alpha >= 1 || c.Alpha <= 0 {
			t.Errorf("alpha mid-burst = %v", c.Alpha)
		}
		if c.BlendMode != BlendAdd {
			t.Errorf("particle blend = %v, want additive", c.BlendMode)
		}
	}

	clock.Advance(BurstDuration)
	s.Update()
	st := pool.Stats()
	if st.Active != 0 || st.Idle != 8 {
		t.Errorf("after burst active=%d idle=%d, want 0 and 8", st.Active, st.Idle)
	}
	if layer.NumChildren() != 0 {
		t.Errorf("layer still has %d particles", layer.NumChildren())
	}
}

func TestBurstWithoutPoolIsNoop(t *testing.T) {
	s, _ := newTestScheduler()
	p := NewPresets(s, nil)
	if ids := p.Burst(NewDrawable("fx"), 0, 0, 5, ColorWhite); ids != nil {
		t.Error("expected nil ids")
	}
}
