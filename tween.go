package meadow

import (
	"time"

	"github.com/sirupsen/logrus"
)

// Channel identifies an animatable property. The set is closed: every
// target type maps each channel it supports to a typed field.
type Channel uint8

const (
	ChannelX Channel = iota
	ChannelY
	ChannelOffsetX
	ChannelOffsetY
	ChannelScaleX
	ChannelScaleY
	ChannelRotation
	ChannelAlpha
	ChannelTintR
	ChannelTintG
	ChannelTintB
	channelCount
)

var channelNames = [channelCount]string{
	"x", "y", "offsetX", "offsetY", "scaleX", "scaleY",
	"rotation", "alpha", "tintR", "tintG", "tintB",
}

func (c Channel) String() string {
	if c < channelCount {
		return channelNames[c]
	}
	return "unknown"
}

// Animatable is a tween target. ChannelValue reports false for channels the
// target does not have; SetChannelValue reports whether the write landed.
type Animatable interface {
	ChannelValue(ch Channel) (float64, bool)
	SetChannelValue(ch Channel, v float64) bool
}

// Props maps channels to their end values.
type Props map[Channel]float64

// AnimationConfig controls timing and callbacks of a single animation.
type AnimationConfig struct {
	// Duration of one pass. Zero completes on the first tick.
	Duration time.Duration
	// Easing shapes interpolation. Nil is linear.
	Easing Easing
	// Delay postpones the first pass. Ticks during the delay write nothing.
	Delay time.Duration
	// Loop restarts the animation each time it completes.
	Loop bool
	// Yoyo swaps start and end values on every loop (ping-pong).
	Yoyo bool
	// OnUpdate receives the raw, pre-easing progress each tick.
	OnUpdate func(progress float64)
	// OnComplete fires once when a non-looping animation finishes.
	OnComplete func()
}

// AnimationID identifies an animation registered with a Scheduler. Zero is
// never issued.
type AnimationID uint64

type track struct {
	ch       Channel
	from, to float64
}

type animation struct {
	id      AnimationID
	target  Animatable
	tracks  []track
	cfg     AnimationConfig
	start   time.Duration
	delay   time.Duration
	paused  bool
	removed bool
}

// apply writes the eased ratio to every track. A ratio of 1 writes the end
// values exactly.
func (a *animation) apply(eased float64) {
	for i := range a.tracks {
		tr := &a.tracks[i]
		v := tr.to
		if eased != 1 {
			v = lerp(tr.from, tr.to, eased)
		}
		a.target.SetChannelValue(tr.ch, v)
	}
}

func (a *animation) swap() {
	for i := range a.tracks {
		tr := &a.tracks[i]
		tr.from, tr.to = tr.to, tr.from
	}
}

// Scheduler advances property animations against a shared Clock. It is
// driven by Update once per update tick, independent of the render rate.
//
// Not safe for concurrent use; call it from the frame callback only.
type Scheduler struct {
	clock  Clock
	log    logrus.FieldLogger
	anims  []*animation
	byID   map[AnimationID]*animation
	nextID AnimationID

	updating bool
}

// NewScheduler creates a scheduler reading time from clock. A nil logger
// uses the logrus standard logger.
func NewScheduler(clock Clock, logger logrus.FieldLogger) *Scheduler {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Scheduler{
		clock: clock,
		log:   logger.WithField("component", "tween"),
		byID:  make(map[AnimationID]*animation),
	}
}

// Animate snapshots the target's current values for every channel in props
// as start values and registers a new active animation towards props.
// Channels the target lacks start at 0 and are logged.
func (s *Scheduler) Animate(target Animatable, props Props, cfg AnimationConfig) AnimationID {
	if target == nil {
		panic("meadow: Animate with nil target")
	}
	s.nextID++
	a := &animation{
		id:     s.nextID,
		target: target,
		tracks: make([]track, 0, len(props)),
		cfg:    cfg,
		start:  s.clock.Now(),
		delay:  cfg.Delay,
	}
	// Iterate in channel order so writes are deterministic.
	for ch := Channel(0); ch < channelCount; ch++ {
		to, ok := props[ch]
		if !ok {
			continue
		}
		from, ok := target.ChannelValue(ch)
		if !ok {
			s.log.WithFields(logrus.Fields{"animation": a.id, "channel": ch.String()}).
				Warn("animation target has no such channel, starting from 0")
		}
		a.tracks = append(a.tracks, track{ch: ch, from: from, to: to})
	}
	s.anims = append(s.anims, a)
	s.byID[a.id] = a
	return a.id
}

// Update advances every active animation to the clock's current time.
// Animations registered from callbacks during Update start on the next tick.
func (s *Scheduler) Update() {
	now := s.clock.Now()
	s.updating = true
	n := len(s.anims)
	for i := 0; i < n; i++ {
		a := s.anims[i]
		if a.removed || a.paused {
			continue
		}
		if d, ok := a.target.(interface{ IsDisposed() bool }); ok && d.IsDisposed() {
			s.remove(a)
			continue
		}
		s.step(a, now)
	}
	s.updating = false
	s.compact()
}

func (s *Scheduler) step(a *animation, now time.Duration) {
	elapsed := now - a.start - a.delay
	if elapsed < 0 {
		return
	}

	dur := a.cfg.Duration
	progress := 1.0
	if dur > 0 {
		if a.cfg.Loop && elapsed >= dur {
			periods := elapsed / dur
			elapsed -= periods * dur
			a.start = now - elapsed
			a.delay = 0
			if elapsed == 0 {
				s.finishPass(a, periods)
				return
			}
			if a.cfg.Yoyo && periods%2 == 1 {
				a.swap()
			}
		}
		progress = float64(elapsed) / float64(dur)
		if progress > 1 {
			progress = 1
		}
	} else if a.cfg.Loop && a.cfg.Yoyo {
		a.swap()
	}

	eased := 1.0
	if progress < 1 {
		eased = easeRatio(a.cfg.Easing, progress)
	}
	a.apply(eased)
	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate(progress)
	}

	if progress >= 1 && !a.cfg.Loop {
		s.remove(a)
		if a.cfg.OnComplete != nil {
			a.cfg.OnComplete()
		}
	}
}

// finishPass handles a looping tick that lands exactly on a pass boundary
// after periods whole passes: the pass that just ended is shown at its end
// values, and the next pass starts from here.
func (s *Scheduler) finishPass(a *animation, periods time.Duration) {
	reversed := a.cfg.Yoyo && (periods-1)%2 == 1
	if reversed {
		a.swap()
	}
	a.apply(1)
	if a.cfg.OnUpdate != nil {
		a.cfg.OnUpdate(1)
	}
	if a.cfg.Yoyo {
		a.swap()
	}
}

// Stop cancels an animation immediately, leaving the target at its last
// written values. Reports whether the id was active.
func (s *Scheduler) Stop(id AnimationID) bool {
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	s.remove(a)
	return true
}

// StopTarget cancels every animation writing to target and returns how many
// were stopped.
func (s *Scheduler) StopTarget(target Animatable) int {
	stopped := 0
	for _, a := range s.anims {
		if !a.removed && a.target == target {
			s.remove(a)
			stopped++
		}
	}
	return stopped
}

// Pause suspends an animation without removing it.
func (s *Scheduler) Pause(id AnimationID) bool {
	a, ok := s.byID[id]
	if !ok {
		return false
	}
	a.paused = true
	return true
}

// Resume continues a paused animation. The start reference is reset to the
// current time, so the pass restarts from its beginning rather than from
// the paused progress.
func (s *Scheduler) Resume(id AnimationID) bool {
	a, ok := s.byID[id]
	if !ok || !a.paused {
		return false
	}
	a.paused = false
	a.start = s.clock.Now()
	return true
}

// IsActive reports whether id is registered (running, delayed or paused).
func (s *Scheduler) IsActive(id AnimationID) bool {
	_, ok := s.byID[id]
	return ok
}

// Len returns the number of registered animations.
func (s *Scheduler) Len() int {
	return len(s.byID)
}

// Clear cancels every animation without firing callbacks.
func (s *Scheduler) Clear() {
	for _, a := range s.anims {
		a.removed = true
	}
	clear(s.byID)
	if !s.updating {
		s.compact()
	}
}

func (s *Scheduler) remove(a *animation) {
	a.removed = true
	delete(s.byID, a.id)
}

// compact drops removed animations in place, preserving order.
func (s *Scheduler) compact() {
	kept := s.anims[:0]
	for _, a := range s.anims {
		if !a.removed {
			kept = append(kept, a)
		}
	}
	clear(s.anims[len(kept):])
	s.anims = kept
}

// --- Single-purpose helpers ---

// MoveTo animates d's position to (x, y).
func (s *Scheduler) MoveTo(d *Drawable, x, y float64, cfg AnimationConfig) AnimationID {
	return s.Animate(d, Props{ChannelX: x, ChannelY: y}, cfg)
}

// ScaleTo animates d's scale to (sx, sy).
func (s *Scheduler) ScaleTo(d *Drawable, sx, sy float64, cfg AnimationConfig) AnimationID {
	return s.Animate(d, Props{ChannelScaleX: sx, ChannelScaleY: sy}, cfg)
}

// FadeTo animates d's alpha to a.
func (s *Scheduler) FadeTo(d *Drawable, a float64, cfg AnimationConfig) AnimationID {
	return s.Animate(d, Props{ChannelAlpha: a}, cfg)
}

// TintTo animates d's tint RGB to c. Alpha is left alone.
func (s *Scheduler) TintTo(d *Drawable, c Color, cfg AnimationConfig) AnimationID {
	return s.Animate(d, Props{ChannelTintR: c.R, ChannelTintG: c.G, ChannelTintB: c.B}, cfg)
}

// RotateTo animates d's rotation to r radians.
func (s *Scheduler) RotateTo(d *Drawable, r float64, cfg AnimationConfig) AnimationID {
	return s.Animate(d, Props{ChannelRotation: r}, cfg)
}
