package meadow

import (
	"math"
	"time"

	"github.com/tanema/gween/ease"
)

// Preset timings.
const (
	GrowDuration    = 800 * time.Millisecond
	HarvestDuration = 500 * time.Millisecond
	WitherDuration  = 1500 * time.Millisecond
	BobPeriod       = 180 * time.Millisecond
	BurstDuration   = 600 * time.Millisecond
)

// GrowStagger is the random start delay range applied to Grow so that a
// field of crops does not pop up in lockstep.
var GrowStagger = Range{Min: 0, Max: float64(200 * time.Millisecond)}

// WitherTint is the color withering crops fade towards.
var WitherTint = Color{R: 0.6, G: 0.5, B: 0.3, A: 1}

const (
	witherAlpha   = 0.75
	harvestLift   = 24.0
	bobHeight     = 3.0
	burstSize     = 3.0
	burstEndScale = 0.3
)

// burstDistance is how far burst particles travel from the origin.
var burstDistance = Range{Min: 20, Max: 44}

// Presets are the stock farm animations, expressed as Animate calls on a
// shared Scheduler. Burst particles come from a pooled drawable set.
type Presets struct {
	sched     *Scheduler
	particles *Pool[*Drawable]
}

// NewPresets creates presets on sched. particles may be nil when Burst is
// never used.
func NewPresets(sched *Scheduler, particles *Pool[*Drawable]) *Presets {
	return &Presets{sched: sched, particles: particles}
}

// Grow scales d up from zero to scale with an elastic overshoot after a
// random stagger delay.
func (p *Presets) Grow(d *Drawable, scale float64) AnimationID {
	d.SetScale(0, 0)
	return p.sched.Animate(d, Props{ChannelScaleX: scale, ChannelScaleY: scale}, AnimationConfig{
		Duration: GrowDuration,
		Easing:   ease.OutElastic,
		Delay:    time.Duration(GrowStagger.Random()),
	})
}

// Harvest shrinks, lifts and fades d, then calls done.
func (p *Presets) Harvest(d *Drawable, done func()) AnimationID {
	return p.sched.Animate(d, Props{
		ChannelScaleX:  0,
		ChannelScaleY:  0,
		ChannelAlpha:   0,
		ChannelOffsetY: d.OffsetY - harvestLift,
	}, AnimationConfig{
		Duration:   HarvestDuration,
		Easing:     ease.InQuad,
		OnComplete: done,
	})
}

// Wither fades d's tint towards brown and drops its alpha.
func (p *Presets) Wither(d *Drawable) AnimationID {
	return p.sched.Animate(d, Props{
		ChannelTintR: WitherTint.R,
		ChannelTintG: WitherTint.G,
		ChannelTintB: WitherTint.B,
		ChannelAlpha: witherAlpha,
	}, AnimationConfig{
		Duration: WitherDuration,
		Easing:   ease.OutQuad,
	})
}

// Walk moves d linearly to (x, y) at speed world units per second while
// bobbing it vertically. The bob stops and settles on arrival, then
// arrived is called. Returns the move and bob animation ids.
func (p *Presets) Walk(d *Drawable, x, y, speed float64, arrived func()) (move, bob AnimationID) {
	dist := math.Hypot(x-d.X, y-d.Y)
	dur := time.Duration(0)
	if speed > 0 {
		dur = time.Duration(dist / speed * float64(time.Second))
	}
	baseY := d.OffsetY
	bob = p.sched.Animate(d, Props{ChannelOffsetY: baseY - bobHeight}, AnimationConfig{
		Duration: BobPeriod,
		Easing:   ease.InOutQuad,
		Loop:     true,
		Yoyo:     true,
	})
	move = p.sched.Animate(d, Props{ChannelX: x, ChannelY: y}, AnimationConfig{
		Duration: dur,
		OnComplete: func() {
			p.sched.Stop(bob)
			d.OffsetY = baseY
			d.MarkDirty()
			if arrived != nil {
				arrived()
			}
		},
	})
	return move, bob
}

// Burst spawns count pooled particles of color at (x, y) under parent.
// They radiate outwards while shrinking and fading and return to the pool
// when done.
func (p *Presets) Burst(parent *Drawable, x, y float64, count int, color Color) []AnimationID {
	if p.particles == nil || count <= 0 {
		return nil
	}
	ids := make([]AnimationID, 0, count)
	step := 2 * math.Pi / float64(count)
	for i := 0; i < count; i++ {
		part := p.particles.Acquire()
		part.Width, part.Height = burstSize, burstSize
		part.PivotX, part.PivotY = burstSize/2, burstSize/2
		part.Color = color
		part.BlendMode = BlendAdd
		part.SetPosition(x, y)
		parent.AddChild(part)

		angle := step * float64(i)
		dist := burstDistance.Random()
		ids = append(ids, p.sched.Animate(part, Props{
			ChannelX:      x + math.Cos(angle)*dist,
			ChannelY:      y + math.Sin(angle)*dist,
			ChannelAlpha:  0,
			ChannelScaleX: burstEndScale,
			ChannelScaleY: burstEndScale,
		}, AnimationConfig{
			Duration:   BurstDuration,
			Easing:     ease.OutQuad,
			OnComplete: func() { p.particles.Release(part) },
		}))
	}
	return ids
}
