package meadow

import (
	"runtime"
	"time"

	"github.com/sirupsen/logrus"
)

// Recommendation cut-offs for RecommendedQuality.
const (
	lowFPS       = 30
	mediumFPS    = 45
	lowMemory    = 400 << 20
	mediumMemory = 200 << 20
)

// DefaultWindow is the number of frame deltas in the rolling window.
const DefaultWindow = 60

// PerformanceMetrics is a snapshot of the rolling frame statistics and the
// most recently reported render-side figures.
type PerformanceMetrics struct {
	FPS           float64
	FrameTime     time.Duration // mean frame delta over the window
	MemoryBytes   uint64
	RenderTime    time.Duration
	UpdateTime    time.Duration
	DrawCalls     int
	ActiveObjects int
	Samples       int // deltas currently in the window
}

// Thresholds are the limits whose breach produces a diagnostic. Zero
// disables a limit.
type Thresholds struct {
	MinFPS        float64
	MaxFrameTime  time.Duration
	MaxMemory     uint64
	MaxRenderTime time.Duration
	MaxDrawCalls  int
}

// DefaultThresholds returns limits suited to a 60 Hz target on modest
// hardware.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinFPS:        30,
		MaxFrameTime:  33 * time.Millisecond,
		MaxMemory:     400 << 20,
		MaxRenderTime: 16 * time.Millisecond,
		MaxDrawCalls:  500,
	}
}

// Breach names a threshold exceeded by the current metrics.
type Breach string

const (
	BreachFPS        Breach = "fps"
	BreachFrameTime  Breach = "frame_time"
	BreachMemory     Breach = "memory"
	BreachRenderTime Breach = "render_time"
	BreachDrawCalls  Breach = "draw_calls"
)

var breachSuggestions = map[Breach]string{
	BreachFPS:        "frame rate is low: lower the quality tier or reduce effects",
	BreachFrameTime:  "frames are slow: reduce visible sprites or disable effects",
	BreachMemory:     "memory is high: run texture cleanup and shrink pool caps",
	BreachRenderTime: "rendering is slow: reduce visible sprites or zoom in",
	BreachDrawCalls:  "draw calls are high: reduce sprite count or merge textures into sheets",
}

// MonitorOptions configures a Monitor.
type MonitorOptions struct {
	Clock      Clock
	Window     int
	Thresholds Thresholds
	// MemoryEvery samples memory once per this many ticks. Zero means 30.
	MemoryEvery int
	// ReadMemory returns the current memory estimate in bytes. Nil reads
	// the Go heap size from the runtime.
	ReadMemory func() uint64
	// WarnInterval rate-limits breach diagnostics per threshold. Zero
	// means one second.
	WarnInterval time.Duration
	Logger       logrus.FieldLogger
}

// Monitor samples frame timing and memory into a fixed rolling window and
// derives a recommended quality tier. Metrics is O(1) and never blocks.
type Monitor struct {
	clock      Clock
	thresholds Thresholds
	log        logrus.FieldLogger

	deltas []time.Duration
	head   int
	count  int
	sum    time.Duration

	lastTick time.Duration
	ticked   bool

	readMemory   func() uint64
	memoryEvery  int
	memoryTick   int
	warnInterval time.Duration
	lastWarn     map[Breach]time.Duration

	metrics  PerformanceMetrics
	breaches []Breach
	subs     []func(PerformanceMetrics)
}

// NewMonitor creates a monitor with an empty window.
func NewMonitor(opts MonitorOptions) *Monitor {
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	if opts.Window <= 0 {
		opts.Window = DefaultWindow
	}
	if opts.MemoryEvery <= 0 {
		opts.MemoryEvery = 30
	}
	if opts.ReadMemory == nil {
		opts.ReadMemory = readHeapBytes
	}
	if opts.WarnInterval <= 0 {
		opts.WarnInterval = time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Monitor{
		clock:        opts.Clock,
		thresholds:   opts.Thresholds,
		log:          opts.Logger.WithField("component", "perf"),
		deltas:       make([]time.Duration, opts.Window),
		readMemory:   opts.ReadMemory,
		memoryEvery:  opts.MemoryEvery,
		warnInterval: opts.WarnInterval,
		lastWarn:     make(map[Breach]time.Duration),
	}
}

// Subscribe registers fn to receive the metrics after every Tick.
func (m *Monitor) Subscribe(fn func(PerformanceMetrics)) {
	m.subs = append(m.subs, fn)
}

// ReportRender records externally measured render cost for the current
// frame.
func (m *Monitor) ReportRender(renderTime time.Duration, drawCalls, activeObjects int) {
	m.metrics.RenderTime = renderTime
	m.metrics.DrawCalls = drawCalls
	m.metrics.ActiveObjects = activeObjects
}

// ReportUpdate records the update tick's cost for the current frame.
func (m *Monitor) ReportUpdate(updateTime time.Duration) {
	m.metrics.UpdateTime = updateTime
}

// Tick samples a frame timestamp from the clock, pushes the delta since the
// previous tick into the window, evaluates thresholds and notifies
// subscribers. The first tick only establishes the reference time.
func (m *Monitor) Tick() {
	now := m.clock.Now()
	if m.ticked {
		m.push(now - m.lastTick)
	}
	m.lastTick = now
	m.ticked = true

	if m.memoryTick == 0 {
		m.metrics.MemoryBytes = m.readMemory()
	}
	m.memoryTick = (m.memoryTick + 1) % m.memoryEvery

	m.evaluate(now)
	for _, fn := range m.subs {
		fn(m.metrics)
	}
}

func (m *Monitor) push(delta time.Duration) {
	if m.count == len(m.deltas) {
		m.sum -= m.deltas[m.head]
	} else {
		m.count++
	}
	m.deltas[m.head] = delta
	m.sum += delta
	m.head = (m.head + 1) % len(m.deltas)

	m.metrics.Samples = m.count
	m.metrics.FrameTime = m.sum / time.Duration(m.count)
	if m.sum > 0 {
		m.metrics.FPS = 1000 / (durationMillis(m.sum) / float64(m.count))
	}
}

func (m *Monitor) evaluate(now time.Duration) {
	m.breaches = m.breaches[:0]
	t := m.thresholds
	mt := m.metrics
	if mt.Samples > 0 {
		if t.MinFPS > 0 && mt.FPS < t.MinFPS {
			m.breaches = append(m.breaches, BreachFPS)
		}
		if t.MaxFrameTime > 0 && mt.FrameTime > t.MaxFrameTime {
			m.breaches = append(m.breaches, BreachFrameTime)
		}
	}
	if t.MaxMemory > 0 && mt.MemoryBytes > t.MaxMemory {
		m.breaches = append(m.breaches, BreachMemory)
	}
	if t.MaxRenderTime > 0 && mt.RenderTime > t.MaxRenderTime {
		m.breaches = append(m.breaches, BreachRenderTime)
	}
	if t.MaxDrawCalls > 0 && mt.DrawCalls > t.MaxDrawCalls {
		m.breaches = append(m.breaches, BreachDrawCalls)
	}

	for _, b := range m.breaches {
		if last, ok := m.lastWarn[b]; ok && now-last < m.warnInterval {
			continue
		}
		m.lastWarn[b] = now
		m.log.WithFields(logrus.Fields{
			"breach":      string(b),
			"fps":         mt.FPS,
			"frame_ms":    durationMillis(mt.FrameTime),
			"render_ms":   durationMillis(mt.RenderTime),
			"memory_mb":   mt.MemoryBytes >> 20,
			"draw_calls":  mt.DrawCalls,
			"active_objs": mt.ActiveObjects,
		}).Warn("performance threshold breached")
	}
}

// Metrics returns the latest snapshot.
func (m *Monitor) Metrics() PerformanceMetrics {
	return m.metrics
}

// Breaches returns the thresholds breached at the last tick. The slice is
// reused by the next tick.
func (m *Monitor) Breaches() []Breach {
	return m.breaches
}

// Suggestions returns human-readable advice for the current breaches.
func (m *Monitor) Suggestions() []string {
	out := make([]string, 0, len(m.breaches))
	for _, b := range m.breaches {
		out = append(out, breachSuggestions[b])
	}
	return out
}

// RecommendedQuality maps the rolling metrics to a tier: low below 30 fps
// or above 400 MB, medium below 45 fps or above 200 MB, otherwise high.
// An empty window recommends high.
func (m *Monitor) RecommendedQuality() QualityTier {
	return recommend(m.metrics)
}

func recommend(mt PerformanceMetrics) QualityTier {
	fpsKnown := mt.Samples > 0
	switch {
	case fpsKnown && mt.FPS < lowFPS, mt.MemoryBytes > lowMemory:
		return QualityLow
	case fpsKnown && mt.FPS < mediumFPS, mt.MemoryBytes > mediumMemory:
		return QualityMedium
	default:
		return QualityHigh
	}
}

// Reset empties the window. The next Tick only sets the reference time.
func (m *Monitor) Reset() {
	clear(m.deltas)
	m.head, m.count, m.sum = 0, 0, 0
	m.ticked = false
	m.metrics = PerformanceMetrics{}
	m.breaches = m.breaches[:0]
}

func readHeapBytes() uint64 {
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)
	return ms.HeapAlloc
}
