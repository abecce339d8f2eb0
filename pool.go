package meadow

import (
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"
)

// PoolConfig configures a Pool.
type PoolConfig[T comparable] struct {
	// New constructs a fresh object. Required. Panics propagate to the
	// caller of Acquire.
	New func() T
	// Reset restores an object to its canonical state on release.
	Reset func(T)
	// Destroy is called for objects dropped because the idle set is full.
	Destroy func(T)
	// MaxSize caps the idle set. Zero or negative means unbounded.
	MaxSize int
}

// PoolStats is a diagnostics snapshot of a pool.
type PoolStats struct {
	Name      string
	Idle      int
	Active    int
	Total     int
	Created   int
	Destroyed int
	MaxSize   int
}

// Pool is a bounded store of reusable objects. Acquire prefers idle objects
// and constructs new ones when none are idle; Release resets an issued
// object and returns it to the idle set, destroying it instead when the set
// is full. idle + active always equals created - destroyed.
//
// Not safe for concurrent use.
type Pool[T comparable] struct {
	name      string
	cfg       PoolConfig[T]
	idle      []T
	active    map[T]struct{}
	created   int
	destroyed int
	log       logrus.FieldLogger
}

// NewPool creates an empty pool. A nil logger uses the logrus standard logger.
func NewPool[T comparable](name string, cfg PoolConfig[T], logger logrus.FieldLogger) *Pool[T] {
	if cfg.New == nil {
		panic("meadow: pool " + name + " has no New function")
	}
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Pool[T]{
		name:   name,
		cfg:    cfg,
		active: make(map[T]struct{}),
		log:    logger.WithFields(logrus.Fields{"component": "pool", "pool": name}),
	}
}

// Name returns the pool's registry name.
func (p *Pool[T]) Name() string {
	return p.name
}

// Acquire returns an idle object, or a freshly constructed one when the idle
// set is empty. The object is tracked as active until released.
func (p *Pool[T]) Acquire() T {
	var obj T
	if n := len(p.idle); n > 0 {
		obj = p.idle[n-1]
		var zero T
		p.idle[n-1] = zero
		p.idle = p.idle[:n-1]
	} else {
		obj = p.cfg.New()
		p.created++
	}
	p.active[obj] = struct{}{}
	return obj
}

// Release resets obj and returns it to the idle set. Releasing an object
// that is not currently active in this pool is logged and ignored. Reports
// whether obj was accepted.
func (p *Pool[T]) Release(obj T) bool {
	if _, ok := p.active[obj]; !ok {
		p.log.WithField("type", fmt.Sprintf("%T", obj)).Warn("release of object not active in pool ignored")
		return false
	}
	delete(p.active, obj)
	if p.cfg.Reset != nil {
		p.cfg.Reset(obj)
	}
	if p.cfg.MaxSize > 0 && len(p.idle) >= p.cfg.MaxSize {
		p.destroy(obj)
		return true
	}
	p.idle = append(p.idle, obj)
	return true
}

// Owns reports whether obj is currently issued by this pool.
func (p *Pool[T]) Owns(obj T) bool {
	_, ok := p.active[obj]
	return ok
}

// Prewarm constructs objects until the idle set holds n (capped at MaxSize).
func (p *Pool[T]) Prewarm(n int) {
	if p.cfg.MaxSize > 0 && n > p.cfg.MaxSize {
		n = p.cfg.MaxSize
	}
	for len(p.idle) < n {
		p.idle = append(p.idle, p.cfg.New())
		p.created++
	}
}

// SetMaxSize changes the idle cap, destroying idle objects above it.
// Active objects are not affected until they are released.
func (p *Pool[T]) SetMaxSize(n int) {
	p.cfg.MaxSize = n
	if n <= 0 {
		return
	}
	for len(p.idle) > n {
		last := len(p.idle) - 1
		obj := p.idle[last]
		var zero T
		p.idle[last] = zero
		p.idle = p.idle[:last]
		p.destroy(obj)
	}
}

// MaxSize returns the idle cap.
func (p *Pool[T]) MaxSize() int {
	return p.cfg.MaxSize
}

// Clear destroys every idle object. Active objects stay issued.
func (p *Pool[T]) Clear() {
	for i, obj := range p.idle {
		p.destroy(obj)
		var zero T
		p.idle[i] = zero
	}
	p.idle = p.idle[:0]
}

// Stats returns idle, active and lifetime counts.
func (p *Pool[T]) Stats() PoolStats {
	return PoolStats{
		Name:      p.name,
		Idle:      len(p.idle),
		Active:    len(p.active),
		Total:     len(p.idle) + len(p.active),
		Created:   p.created,
		Destroyed: p.destroyed,
		MaxSize:   p.cfg.MaxSize,
	}
}

func (p *Pool[T]) destroy(obj T) {
	if p.cfg.Destroy != nil {
		p.cfg.Destroy(obj)
	}
	p.destroyed++
}

// pooler is the type-erased view the registry keeps of each pool.
type pooler interface {
	Name() string
	Stats() PoolStats
	SetMaxSize(n int)
	Clear()
}

// PoolRegistry lets subsystems share pools by name instead of constructing
// their own. One registry is created per engine and passed to consumers.
type PoolRegistry struct {
	pools map[string]pooler
	log   logrus.FieldLogger
}

// NewPoolRegistry creates an empty registry. A nil logger uses the logrus
// standard logger.
func NewPoolRegistry(logger logrus.FieldLogger) *PoolRegistry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &PoolRegistry{pools: make(map[string]pooler), log: logger}
}

// Register adds p under its name, replacing any pool with the same name.
func Register[T comparable](r *PoolRegistry, p *Pool[T]) {
	r.pools[p.Name()] = p
}

// Lookup returns the pool registered under name. It fails with
// ErrUnknownPool when the name is missing or the element type differs.
func Lookup[T comparable](r *PoolRegistry, name string) (*Pool[T], error) {
	raw, ok := r.pools[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPool, name)
	}
	p, ok := raw.(*Pool[T])
	if !ok {
		return nil, fmt.Errorf("%w: %q holds %T", ErrUnknownPool, name, raw)
	}
	return p, nil
}

// Ensure returns the pool registered under name, creating it from cfg when
// absent. Panics if a pool of a different element type owns the name.
func Ensure[T comparable](r *PoolRegistry, name string, cfg PoolConfig[T]) *Pool[T] {
	if raw, ok := r.pools[name]; ok {
		p, ok := raw.(*Pool[T])
		if !ok {
			panic(fmt.Sprintf("meadow: pool %q already registered as %T", name, raw))
		}
		return p
	}
	p := NewPool(name, cfg, r.log)
	r.pools[name] = p
	return p
}

// SetMaxSize changes the idle cap of the named pool. Unknown names are ignored.
func (r *PoolRegistry) SetMaxSize(name string, n int) {
	if p, ok := r.pools[name]; ok {
		p.SetMaxSize(n)
	}
}

// Stats returns a snapshot of every pool, sorted by name.
func (r *PoolRegistry) Stats() []PoolStats {
	out := make([]PoolStats, 0, len(r.pools))
	for _, p := range r.pools {
		out = append(out, p.Stats())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// ActiveObjects sums active objects across pools.
func (r *PoolRegistry) ActiveObjects() int {
	n := 0
	for _, p := range r.pools {
		n += p.Stats().Active
	}
	return n
}

// Clear destroys idle objects in every pool.
func (r *PoolRegistry) Clear() {
	for _, p := range r.pools {
		p.Clear()
	}
}

// NewDrawablePool creates a pool of Drawables that resets released
// drawables to their defaults and disposes the ones it drops.
func NewDrawablePool(name string, maxSize int, logger logrus.FieldLogger) *Pool[*Drawable] {
	return NewPool(name, drawablePoolConfig(name, maxSize), logger)
}

func drawablePoolConfig(name string, maxSize int) PoolConfig[*Drawable] {
	return PoolConfig[*Drawable]{
		New:     func() *Drawable { return NewDrawable(name) },
		Reset:   func(d *Drawable) { d.Reset(); d.Name = name },
		Destroy: func(d *Drawable) { d.Dispose() },
		MaxSize: maxSize,
	}
}
