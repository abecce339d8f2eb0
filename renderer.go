package meadow

import (
	"errors"
	"image"
	"slices"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

// Pool names registered by the renderer.
const (
	SpritePoolName   = "meadow.sprites"
	ParticlePoolName = "meadow.particles"
)

// Renderer defaults.
const (
	DefaultCleanupInterval = 30 * time.Second
	DefaultCleanupIdle     = 60 * time.Second
	DefaultWalkSpeed       = 48.0
)

// HarvestColor is the color of the particle burst played on harvest.
var HarvestColor = Color{R: 1, G: 0.85, B: 0.3, A: 1}

// HealthBand is the coarse health of a crop or creature.
type HealthBand uint8

const (
	HealthHealthy HealthBand = iota
	HealthStressed
	HealthWithering
	HealthDead
)

var stressedTint = Color{R: 0.9, G: 0.9, B: 0.7, A: 1}

func (h HealthBand) String() string {
	switch h {
	case HealthHealthy:
		return "healthy"
	case HealthStressed:
		return "stressed"
	case HealthWithering:
		return "withering"
	case HealthDead:
		return "dead"
	}
	return "unknown"
}

// appearance returns the tint and alpha an entity rests at in band h.
func (h HealthBand) appearance() (Color, float64) {
	switch h {
	case HealthStressed:
		return stressedTint, 1
	case HealthWithering, HealthDead:
		return WitherTint, witherAlpha
	}
	return ColorWhite, 1
}

// EntityState is the discrete visual state of an entity.
type EntityState struct {
	// Stage is the growth stage. An increase plays the grow animation.
	Stage int
	// Health is the health band. Dropping to withering or dead plays the
	// wither animation.
	Health HealthBand
	// Moving makes a position change walk to the new position instead of
	// jumping there.
	Moving bool
}

// Entity is one item of the scene snapshot. Position is the bottom centre
// of the sprite in world units.
type Entity struct {
	ID        string
	SpriteKey string
	X, Y      float64
	State     EntityState
}

// Snapshot is the complete list of entities to show. Entities missing from
// a snapshot are harvested.
type Snapshot struct {
	Entities []Entity
}

// entityView is the renderer-side state of one entity.
type entityView struct {
	ent    Entity
	tex    *Texture
	sprite *Drawable // nil while culled

	// x, y is the displayed position; it trails ent during a walk.
	x, y float64

	intro      bool
	harvesting bool
	gone       bool
	walk       AnimationID
	bob        AnimationID
	wither     AnimationID
}

func (v *entityView) bounds() Rect {
	fr := v.tex.FrameRect(v.ent.State.Stage)
	w, h := float64(fr.Dx()), float64(fr.Dy())
	return Rect{X: v.x - w/2, Y: v.y - h, Width: w, Height: h}
}

// RendererOptions configures a Renderer. Camera and Textures are required.
type RendererOptions struct {
	Camera   *Camera
	Textures *TextureCache
	// Clock is the update clock, advanced by Update. Nil creates one.
	Clock *FrameClock
	// Scheduler must read Clock. Nil creates one.
	Scheduler *Scheduler
	Pools     *PoolRegistry
	// Monitor samples real frame timing. Nil creates one on a SystemClock.
	Monitor *Monitor
	// Quality supplies settings. Nil creates an automatic manager attached
	// to Monitor; a supplied manager is left for the caller to attach.
	Quality *AdaptiveQuality
	// Ground is drawn below every entity. Optional.
	Ground          *TileLayer
	CleanupInterval time.Duration
	CleanupIdle     time.Duration
	// WalkSpeed is in world units per second.
	WalkSpeed float64
	Logger    logrus.FieldLogger
}

// Renderer turns scene snapshots into drawn frames. Each frame the host
// calls Update once and Draw once; Update advances time, the camera and
// the animations and applies the latest snapshot, Draw culls, draws and
// records performance.
type Renderer struct {
	clock     *FrameClock
	camera    *Camera
	textures  *TextureCache
	sched     *Scheduler
	pools     *PoolRegistry
	sprites   *Pool[*Drawable]
	particles *Pool[*Drawable]
	presets   *Presets
	monitor   *Monitor
	quality   *AdaptiveQuality
	ground    *TileLayer
	log       logrus.FieldLogger

	settings QualitySettings

	root     *Drawable
	entities *Drawable
	effects  *Drawable
	anchor   *Drawable
	followID string

	views   map[string]*entityView
	order   []*entityView
	pending *Snapshot
	seen    map[string]struct{}

	cullBounds Rect
	commands   []renderCommand
	sortBuf    []renderCommand
	visible    int

	cleanupInterval time.Duration
	cleanupIdle     time.Duration
	lastCleanup     time.Duration
	walkSpeed       float64

	debug bool
}

const defaultCommandCap = 1024

// NewRenderer wires the renderer to its services.
func NewRenderer(opts RendererOptions) (*Renderer, error) {
	if opts.Camera == nil || opts.Textures == nil {
		return nil, errors.New("meadow: renderer needs a camera and a texture cache")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Clock == nil {
		opts.Clock = NewFrameClock()
	}
	if opts.Scheduler == nil {
		opts.Scheduler = NewScheduler(opts.Clock, opts.Logger)
	}
	if opts.Pools == nil {
		opts.Pools = NewPoolRegistry(opts.Logger)
	}
	wall := NewSystemClock()
	if opts.Monitor == nil {
		opts.Monitor = NewMonitor(MonitorOptions{Clock: wall, Thresholds: DefaultThresholds(), Logger: opts.Logger})
	}
	if opts.Quality == nil {
		opts.Quality = NewAdaptiveQuality(AdaptiveQualityOptions{Clock: wall, Initial: QualityHigh, Logger: opts.Logger})
		opts.Quality.Attach(opts.Monitor)
	}
	if opts.CleanupInterval <= 0 {
		opts.CleanupInterval = DefaultCleanupInterval
	}
	if opts.CleanupIdle <= 0 {
		opts.CleanupIdle = DefaultCleanupIdle
	}
	if opts.WalkSpeed <= 0 {
		opts.WalkSpeed = DefaultWalkSpeed
	}

	settings := opts.Quality.Settings()
	r := &Renderer{
		clock:           opts.Clock,
		camera:          opts.Camera,
		textures:        opts.Textures,
		sched:           opts.Scheduler,
		pools:           opts.Pools,
		sprites:         Ensure(opts.Pools, SpritePoolName, drawablePoolConfig(SpritePoolName, settings.SpritePoolSize)),
		particles:       Ensure(opts.Pools, ParticlePoolName, drawablePoolConfig(ParticlePoolName, settings.ParticlePoolSize)),
		monitor:         opts.Monitor,
		quality:         opts.Quality,
		ground:          opts.Ground,
		log:             opts.Logger.WithField("component", "renderer"),
		settings:        settings,
		root:            NewDrawable("root"),
		entities:        NewDrawable("entities"),
		effects:         NewDrawable("effects"),
		anchor:          NewDrawable("follow"),
		views:           make(map[string]*entityView),
		seen:            make(map[string]struct{}),
		commands:        make([]renderCommand, 0, defaultCommandCap),
		sortBuf:         make([]renderCommand, 0, defaultCommandCap),
		cleanupInterval: opts.CleanupInterval,
		cleanupIdle:     opts.CleanupIdle,
		lastCleanup:     opts.Clock.Now(),
		walkSpeed:       opts.WalkSpeed,
	}
	r.presets = NewPresets(r.sched, r.particles)
	r.root.AddChild(r.entities)
	r.root.AddChild(r.effects)
	r.root.AddChild(r.anchor)
	r.quality.Subscribe(r.applyQuality)
	return r, nil
}

// Camera returns the renderer's camera.
func (r *Renderer) Camera() *Camera { return r.camera }

// Scheduler returns the animation scheduler.
func (r *Renderer) Scheduler() *Scheduler { return r.sched }

// Presets returns the stock animations bound to the renderer's scheduler.
func (r *Renderer) Presets() *Presets { return r.presets }

// Pools returns the pool registry.
func (r *Renderer) Pools() *PoolRegistry { return r.pools }

// Monitor returns the performance monitor.
func (r *Renderer) Monitor() *Monitor { return r.monitor }

// Quality returns the adaptive quality manager.
func (r *Renderer) Quality() *AdaptiveQuality { return r.quality }

// Textures returns the texture cache.
func (r *Renderer) Textures() *TextureCache { return r.textures }

// Ground returns the ground layer, or nil.
func (r *Renderer) Ground() *TileLayer { return r.ground }

// SetGround replaces the ground layer. Nil removes it.
func (r *Renderer) SetGround(l *TileLayer) { r.ground = l }

// Metrics returns the latest performance snapshot. Non-blocking and O(1).
func (r *Renderer) Metrics() PerformanceMetrics { return r.monitor.Metrics() }

// EntityCount returns the number of entities known to the renderer,
// including ones still playing their harvest animation.
func (r *Renderer) EntityCount() int { return len(r.views) }

// VisibleCount returns the number of entities that had a sprite at the
// last Draw.
func (r *Renderer) VisibleCount() int { return r.visible }

// SetDebugMode enables or disables debug mode. When enabled, disposed
// drawable access panics and per-frame figures are logged at debug level.
func (r *Renderer) SetDebugMode(enabled bool) {
	r.debug = enabled
	globalDebug = enabled
}

// UpdateScene queues snapshot to be applied on the next Update. Only the
// most recent snapshot queued before an Update is applied. The entity
// slice is copied.
func (r *Renderer) UpdateScene(snapshot Snapshot) {
	s := Snapshot{Entities: slices.Clone(snapshot.Entities)}
	r.pending = &s
}

// Follow keeps the camera centred on the entity with id. An empty id stops
// following.
func (r *Renderer) Follow(id string, lerp float64) {
	r.followID = id
	if id == "" {
		r.camera.Unfollow()
		return
	}
	r.syncAnchor()
	r.camera.Follow(r.anchor, 0, 0, lerp)
}

// Update runs the update tick: it advances the clock by dt, moves the
// camera, applies the pending snapshot and steps every animation.
func (r *Renderer) Update(dt time.Duration) {
	start := time.Now()
	r.clock.Advance(dt)
	if r.followID != "" {
		r.syncAnchor()
	}
	r.camera.Update(dt)
	if r.pending != nil {
		s := r.pending
		r.pending = nil
		r.reconcile(*s)
	}
	r.sched.Update()
	if r.ground != nil {
		r.ground.update(r.camera.VisibleBounds(), dt)
	}
	r.maybeCleanup()
	r.monitor.ReportUpdate(time.Since(start))
}

// Draw runs the render tick onto screen and then records the frame with
// the performance monitor.
func (r *Renderer) Draw(screen *ebiten.Image) {
	start := time.Now()
	stats := r.prepare()

	vp := r.camera.Viewport()
	target := screen.SubImage(image.Rect(
		int(vp.X), int(vp.Y),
		int(vp.X+vp.Width), int(vp.Y+vp.Height),
	)).(*ebiten.Image)

	t0 := time.Now()
	calls := 0
	if r.ground != nil {
		calls += r.ground.draw(target, r.camera.ViewMatrix(), r.settings.SmoothFiltering)
	}
	calls += r.submit(target)
	stats.submitTime = time.Since(t0)
	stats.drawCalls = calls

	r.monitor.ReportRender(time.Since(start), calls, r.pools.ActiveObjects())
	r.monitor.Tick()
	r.debugLog(stats)
}

// prepare culls entities against the camera, acquires and releases pooled
// sprites, refreshes transforms and builds the sorted command list.
func (r *Renderer) prepare() debugStats {
	var stats debugStats
	t0 := time.Now()

	r.cullBounds = r.camera.VisibleBounds().Inset(r.settings.CullMargin)
	r.visible = 0
	for _, v := range r.order {
		if v.gone {
			continue
		}
		if v.sprite != nil {
			v.x, v.y = v.sprite.X, v.sprite.Y
		}
		visible := v.bounds().Intersects(r.cullBounds)
		switch {
		case visible && v.sprite == nil:
			r.showSprite(v)
		case !visible && v.sprite != nil:
			if v.harvesting {
				r.dropView(v)
				continue
			}
			r.hideSprite(v)
		}
		v.intro = false
		if v.sprite != nil {
			r.visible++
		}
	}
	r.order = slices.DeleteFunc(r.order, func(v *entityView) bool { return v.gone })

	view := r.camera.ViewMatrix()
	updateWorldTransform(r.root, identityTransform, 1, false)
	if r.ground != nil {
		r.ground.update(r.camera.VisibleBounds(), 0)
	}

	r.commands = r.commands[:0]
	treeOrder := 0
	r.emit(r.entities, layerEntities, view, &treeOrder)
	r.emit(r.effects, layerEffects, view, &treeOrder)
	stats.prepareTime = time.Since(t0)

	t0 = time.Now()
	r.mergeSort()
	stats.sortTime = time.Since(t0)
	stats.commands = len(r.commands)
	stats.batches = countBatches(r.commands)
	stats.visible = r.visible
	return stats
}

// EntityAt returns the id of the topmost entity drawn under the screen
// point (sx, sy). Entities being harvested are ignored.
func (r *Renderer) EntityAt(sx, sy float64) (string, bool) {
	wx, wy := r.camera.ScreenToWorld(sx, sy)
	var hit *entityView
	for _, v := range r.order {
		if v.gone || v.harvesting || v.sprite == nil {
			continue
		}
		if !v.bounds().Contains(wx, wy) {
			continue
		}
		if hit == nil || v.y >= hit.y {
			hit = v
		}
	}
	if hit == nil {
		return "", false
	}
	return hit.ent.ID, true
}

// Click hit-tests a click at screen point (sx, sy). Clicks outside the
// viewport hit nothing.
func (r *Renderer) Click(sx, sy float64) (string, bool) {
	if !r.camera.Viewport().Contains(sx, sy) {
		return "", false
	}
	return r.EntityAt(sx, sy)
}

// Destroy releases every sprite, particle and texture reference the
// renderer holds.
func (r *Renderer) Destroy() {
	for _, v := range r.order {
		if !v.gone {
			r.dropView(v)
		}
	}
	r.order = r.order[:0]
	r.pending = nil
	r.sched.Clear()
	// Bursts release their particles on completion, which Clear skips.
	for _, part := range slices.Clone(r.effects.Children()) {
		r.particles.Release(part)
	}
	r.pools.Clear()
}

// --- Snapshot reconciliation ---

func (r *Renderer) reconcile(s Snapshot) {
	clear(r.seen)
	for _, e := range s.Entities {
		if e.ID == "" {
			r.log.WithField("sprite", e.SpriteKey).Warn("entity without id ignored")
			continue
		}
		r.seen[e.ID] = struct{}{}
		if v, ok := r.views[e.ID]; ok {
			r.updateView(v, e)
			continue
		}
		r.addView(e)
	}
	for _, v := range r.order {
		if v.gone || v.harvesting {
			continue
		}
		if _, ok := r.seen[v.ent.ID]; !ok {
			r.removeView(v)
		}
	}
}

func (r *Renderer) addView(e Entity) {
	v := &entityView{ent: e, x: e.X, y: e.Y, intro: true}
	v.tex = r.acquireTexture(e.SpriteKey)
	r.views[e.ID] = v
	r.order = append(r.order, v)
}

func (r *Renderer) updateView(v *entityView, e Entity) {
	if v.harvesting {
		// Re-added while leaving: cancel the harvest and settle.
		v.harvesting = false
		if v.sprite != nil {
			r.sched.StopTarget(v.sprite)
			v.sprite.Visible = true
			r.settle(v)
		}
	}
	prev := v.ent
	v.ent = e

	if e.SpriteKey != prev.SpriteKey {
		r.textures.Release(v.tex)
		v.tex = r.acquireTexture(e.SpriteKey)
		if v.sprite != nil {
			r.dressSprite(v)
		}
	}

	if e.X != prev.X || e.Y != prev.Y {
		r.stopWalk(v)
		if v.sprite != nil && r.settings.EffectsEnabled && e.State.Moving {
			v.walk, v.bob = r.presets.Walk(v.sprite, e.X, e.Y, r.walkSpeed, nil)
		} else {
			v.x, v.y = e.X, e.Y
			if v.sprite != nil {
				v.sprite.SetPosition(e.X, e.Y)
			}
		}
	}

	if e.State.Stage != prev.State.Stage && v.sprite != nil && v.tex.FrameCount() > 1 {
		r.dressSprite(v)
	}
	if e.State.Stage > prev.State.Stage && v.sprite != nil && r.settings.EffectsEnabled {
		r.presets.Grow(v.sprite, 1)
	}

	if e.State.Health != prev.State.Health {
		if v.wither != 0 {
			r.sched.Stop(v.wither)
			v.wither = 0
		}
		worse := e.State.Health > prev.State.Health && e.State.Health >= HealthWithering
		if worse && prev.State.Health < HealthWithering && v.sprite != nil && r.settings.EffectsEnabled {
			v.wither = r.presets.Wither(v.sprite)
		} else if v.sprite != nil {
			v.sprite.Color, v.sprite.Alpha = e.State.Health.appearance()
			v.sprite.MarkDirty()
		}
	}
}

func (r *Renderer) removeView(v *entityView) {
	if v.sprite == nil || !r.settings.EffectsEnabled {
		r.dropView(v)
		return
	}
	v.harvesting = true
	r.sched.StopTarget(v.sprite)
	v.walk, v.bob, v.wither = 0, 0, 0
	v.sprite.OffsetY = 0
	v.sprite.MarkDirty()

	_, h := v.sprite.Size()
	r.presets.Burst(r.effects, v.x, v.y-h/2, r.settings.ParticleCount, HarvestColor)
	r.presets.Harvest(v.sprite, func() {
		if v.harvesting {
			r.dropView(v)
		}
	})
}

// dropView forgets v, returning its sprite and texture reference.
func (r *Renderer) dropView(v *entityView) {
	if v.sprite != nil {
		r.hideSprite(v)
	}
	r.textures.Release(v.tex)
	v.tex = nil
	v.gone = true
	v.harvesting = false
	if r.views[v.ent.ID] == v {
		delete(r.views, v.ent.ID)
	}
	if r.followID == v.ent.ID {
		r.followID = ""
		r.camera.Unfollow()
	}
}

func (r *Renderer) acquireTexture(key string) *Texture {
	if t, ok := r.textures.Acquire(key); ok {
		return t
	}
	r.log.WithField("sprite", key).Warn("sprite texture missing, using fallback")
	r.textures.Fallback(key)
	t, _ := r.textures.Acquire(key)
	return t
}

// --- Sprites ---

func (r *Renderer) showSprite(v *entityView) {
	d := r.sprites.Acquire()
	d.EntityID = v.ent.ID
	r.entities.AddChild(d)
	v.sprite = d
	v.x, v.y = v.ent.X, v.ent.Y
	r.dressSprite(v)
	r.settle(v)
	if v.intro && r.settings.EffectsEnabled {
		r.presets.Grow(d, 1)
	}
}

// hideSprite returns v's sprite to the pool. Animations on it are stopped
// first so nothing writes to a released drawable, and the displayed
// position snaps to the logical one.
func (r *Renderer) hideSprite(v *entityView) {
	r.sched.StopTarget(v.sprite)
	r.sprites.Release(v.sprite)
	v.sprite = nil
	v.walk, v.bob, v.wither = 0, 0, 0
	v.x, v.y = v.ent.X, v.ent.Y
}

// dressSprite sets the texture, picks the stage frame of a strip texture and
// anchors the sprite at its bottom centre.
func (r *Renderer) dressSprite(v *entityView) {
	d := v.sprite
	d.Texture = v.tex
	d.Region = image.Rectangle{}
	if v.tex.FrameCount() > 1 {
		d.Region = v.tex.FrameRect(v.ent.State.Stage)
	}
	d.Name = v.ent.SpriteKey
	w, h := d.Size()
	d.SetPivot(w/2, h)
}

// settle puts the sprite in the resting state for the entity's state.
func (r *Renderer) settle(v *entityView) {
	d := v.sprite
	d.SetPosition(v.x, v.y)
	d.OffsetX, d.OffsetY = 0, 0
	d.SetScale(1, 1)
	d.Color, d.Alpha = v.ent.State.Health.appearance()
	d.MarkDirty()
}

func (r *Renderer) stopWalk(v *entityView) {
	if v.walk == 0 && v.bob == 0 {
		return
	}
	r.sched.Stop(v.walk)
	r.sched.Stop(v.bob)
	v.walk, v.bob = 0, 0
	if v.sprite != nil {
		v.x, v.y = v.sprite.X, v.sprite.Y
		v.sprite.OffsetY = 0
		v.sprite.MarkDirty()
	}
}

func (r *Renderer) syncAnchor() {
	v, ok := r.views[r.followID]
	if !ok {
		return
	}
	x, y := v.x, v.y
	if v.sprite != nil {
		x, y = v.sprite.X, v.sprite.Y
	}
	r.anchor.SetPosition(x, y)
	updateWorldTransform(r.anchor, identityTransform, 1, false)
}

// --- Quality and housekeeping ---

// applyQuality reacts to a tier change: pool caps follow the new settings
// and, when effects are turned off, running entity animations snap to
// their end state.
func (r *Renderer) applyQuality(c QualityChange) {
	r.settings = c.Settings
	r.sprites.SetMaxSize(c.Settings.SpritePoolSize)
	r.particles.SetMaxSize(c.Settings.ParticlePoolSize)
	if c.Settings.EffectsEnabled {
		return
	}
	for _, v := range r.order {
		if v.gone || v.sprite == nil {
			continue
		}
		if v.harvesting {
			r.dropView(v)
			continue
		}
		r.sched.StopTarget(v.sprite)
		v.walk, v.bob, v.wither = 0, 0, 0
		v.x, v.y = v.ent.X, v.ent.Y
		r.settle(v)
	}
}

func (r *Renderer) maybeCleanup() {
	now := r.clock.Now()
	if now-r.lastCleanup < r.cleanupInterval {
		return
	}
	r.lastCleanup = now
	if n := r.textures.Cleanup(r.cleanupIdle); n > 0 {
		r.log.WithField("removed", n).Debug("reclaimed idle textures")
	}
}
