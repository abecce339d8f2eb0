package meadow

import (
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// QualityTier is a named bundle of rendering-cost settings.
type QualityTier uint8

const (
	QualityLow QualityTier = iota
	QualityMedium
	QualityHigh
	qualityTierCount
)

var qualityTierNames = [qualityTierCount]string{"low", "medium", "high"}

func (q QualityTier) String() string {
	if q < qualityTierCount {
		return qualityTierNames[q]
	}
	return fmt.Sprintf("QualityTier(%d)", uint8(q))
}

// ParseQualityTier parses "low", "medium" or "high" (case-insensitive).
func ParseQualityTier(s string) (QualityTier, error) {
	for i, name := range qualityTierNames {
		if strings.EqualFold(s, name) {
			return QualityTier(i), nil
		}
	}
	return 0, fmt.Errorf("meadow: unknown quality tier %q", s)
}

// QualitySettings are the renderer-side toggles and caps a tier applies.
type QualitySettings struct {
	// SpritePoolSize caps idle entity sprites kept for reuse.
	SpritePoolSize int
	// ParticlePoolSize caps idle particles kept for reuse.
	ParticlePoolSize int
	// ParticleCount is the number of particles per burst.
	ParticleCount int
	// EffectsEnabled turns on grow/wither/harvest presets. When off, state
	// changes are applied instantly.
	EffectsEnabled bool
	// ShaderEnabled turns on tinting and additive blending. When off,
	// sprites are drawn untinted with normal blending.
	ShaderEnabled bool
	// SmoothFiltering draws non pixel-art textures with linear filtering.
	SmoothFiltering bool
	// CullMargin grows the camera bounds used for culling, in world units.
	CullMargin float64
}

// DefaultQualitySettings returns the built-in settings for tier.
func DefaultQualitySettings(tier QualityTier) QualitySettings {
	switch tier {
	case QualityLow:
		return QualitySettings{
			SpritePoolSize:   64,
			ParticlePoolSize: 16,
			ParticleCount:    4,
			CullMargin:       0,
		}
	case QualityMedium:
		return QualitySettings{
			SpritePoolSize:   256,
			ParticlePoolSize: 64,
			ParticleCount:    8,
			EffectsEnabled:   true,
			CullMargin:       32,
		}
	default:
		return QualitySettings{
			SpritePoolSize:   1024,
			ParticlePoolSize: 256,
			ParticleCount:    16,
			EffectsEnabled:   true,
			ShaderEnabled:    true,
			SmoothFiltering:  true,
			CullMargin:       64,
		}
	}
}

// QualityChange is broadcast when the applied tier changes.
type QualityChange struct {
	From     QualityTier
	To       QualityTier
	Settings QualitySettings
	At       time.Duration
	Manual   bool
}

// qualityState pairs a tier with the settings actually applied for it so
// that readers never see one without the other.
type qualityState struct {
	tier     QualityTier
	settings QualitySettings
}

// AdaptiveQualityOptions configures an AdaptiveQuality.
type AdaptiveQualityOptions struct {
	Clock Clock
	// Cooldown is the minimum time between evaluations, and so between
	// automatic changes. Zero means five seconds.
	Cooldown time.Duration
	// Initial is the starting tier. The zero value is QualityLow, so a
	// manager starts cheap unless told otherwise.
	Initial QualityTier
	// Presets overrides the settings per tier. Missing tiers use
	// DefaultQualitySettings.
	Presets map[QualityTier]QualitySettings
	// Manual disables the automatic control loop.
	Manual bool
	Logger logrus.FieldLogger
}

// AdaptiveQuality turns the monitor's recommendations into quality tier
// changes. It evaluates at most once per cooldown window, so automatic
// changes are never closer together than the cooldown.
type AdaptiveQuality struct {
	clock    Clock
	cooldown time.Duration
	presets  [qualityTierCount]QualitySettings
	log      logrus.FieldLogger

	state     atomic.Pointer[qualityState]
	auto      bool
	lastCheck time.Duration
	observers []func(QualityChange)
}

// NewAdaptiveQuality creates a manager starting at opts.Initial. The first
// evaluation happens one cooldown after construction.
func NewAdaptiveQuality(opts AdaptiveQualityOptions) *AdaptiveQuality {
	if opts.Clock == nil {
		opts.Clock = NewSystemClock()
	}
	if opts.Cooldown <= 0 {
		opts.Cooldown = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	if opts.Initial >= qualityTierCount {
		opts.Initial = QualityHigh
	}
	q := &AdaptiveQuality{
		clock:     opts.Clock,
		cooldown:  opts.Cooldown,
		log:       opts.Logger.WithField("component", "quality"),
		auto:      !opts.Manual,
		lastCheck: opts.Clock.Now(),
	}
	for t := QualityTier(0); t < qualityTierCount; t++ {
		if s, ok := opts.Presets[t]; ok {
			q.presets[t] = s
		} else {
			q.presets[t] = DefaultQualitySettings(t)
		}
	}
	q.state.Store(&qualityState{tier: opts.Initial, settings: q.presets[opts.Initial]})
	return q
}

// Attach subscribes q to m's metrics stream.
func (q *AdaptiveQuality) Attach(m *Monitor) {
	m.Subscribe(q.Observe)
}

// Subscribe registers fn to be called on every tier change.
func (q *AdaptiveQuality) Subscribe(fn func(QualityChange)) {
	q.observers = append(q.observers, fn)
}

// Current returns the applied tier and its settings from one snapshot.
func (q *AdaptiveQuality) Current() (QualityTier, QualitySettings) {
	s := q.state.Load()
	return s.tier, s.settings
}

// Tier returns the applied tier.
func (q *AdaptiveQuality) Tier() QualityTier {
	return q.state.Load().tier
}

// Settings returns the applied settings.
func (q *AdaptiveQuality) Settings() QualitySettings {
	return q.state.Load().settings
}

// Auto reports whether the control loop is enabled.
func (q *AdaptiveQuality) Auto() bool { return q.auto }

// SetAuto enables or disables the control loop. Enabling it restarts the
// cooldown window.
func (q *AdaptiveQuality) SetAuto(on bool) {
	if on && !q.auto {
		q.lastCheck = q.clock.Now()
	}
	q.auto = on
}

// Observe evaluates metrics against the current tier once the cooldown has
// elapsed since the previous evaluation. Calls inside the window are
// ignored.
func (q *AdaptiveQuality) Observe(mt PerformanceMetrics) {
	if !q.auto {
		return
	}
	now := q.clock.Now()
	if now-q.lastCheck < q.cooldown {
		return
	}
	q.lastCheck = now
	if rec := recommend(mt); rec != q.Tier() {
		q.apply(rec, now, false)
	}
}

// SetTier applies tier immediately, regardless of the cooldown, and
// restarts the cooldown window.
func (q *AdaptiveQuality) SetTier(tier QualityTier) {
	if tier >= qualityTierCount {
		return
	}
	now := q.clock.Now()
	q.lastCheck = now
	if tier == q.Tier() {
		return
	}
	q.apply(tier, now, true)
}

func (q *AdaptiveQuality) apply(tier QualityTier, now time.Duration, manual bool) {
	next := &qualityState{tier: tier, settings: q.presets[tier]}
	prev := q.state.Swap(next)
	change := QualityChange{
		From:     prev.tier,
		To:       tier,
		Settings: next.settings,
		At:       now,
		Manual:   manual,
	}
	q.log.WithFields(logrus.Fields{
		"from":   prev.tier.String(),
		"to":     tier.String(),
		"manual": manual,
	}).Info("quality tier changed")
	for _, fn := range q.observers {
		fn(change)
	}
}
