package meadow

import (
	"testing"
	"time"
)

func newTestQuality(initial QualityTier) (*AdaptiveQuality, *FrameClock) {
	clock := NewFrameClock()
	q := NewAdaptiveQuality(AdaptiveQualityOptions{
		Clock:    clock,
		Cooldown: 5 * time.Second,
		Initial:  initial,
		Logger:   nullLogger(),
	})
	return q, clock
}

var (
	slowMetrics = PerformanceMetrics{FPS: 20, Samples: 60}
	fastMetrics = PerformanceMetrics{FPS: 60, Samples: 60}
)

func TestQualityTierParseAndString(t *testing.T) {
	for _, tier := range []QualityTier{QualityLow, QualityMedium, QualityHigh} {
		got, err := ParseQualityTier(tier.String())
		if err != nil || got != tier {
			t.Errorf("ParseQualityTier(%q) = %v, %v", tier.String(), got, err)
		}
	}
	if _, err := ParseQualityTier("ultra"); err == nil {
		t.Error("unknown tier accepted")
	}
}

func TestQualityInitialTier(t *testing.T) {
	q := NewAdaptiveQuality(AdaptiveQualityOptions{Clock: NewFrameClock(), Logger: nullLogger()})
	if q.Tier() != QualityLow {
		t.Errorf("unset initial tier = %v, want low", q.Tier())
	}

	f := newTestRenderer(t, QualityLow)
	r, err := NewRenderer(RendererOptions{Camera: f.camera, Textures: f.cache, Logger: nullLogger()})
	if err != nil {
		t.Fatal(err)
	}
	if got := r.Quality().Tier(); got != QualityHigh {
		t.Errorf("renderer default tier = %v, want high", got)
	}
}

func TestQualityChangesNeverInsideCooldown(t *testing.T) {
	q, clock := newTestQuality(QualityHigh)
	var changes []QualityChange
	q.Subscribe(func(c QualityChange) { changes = append(changes, c) })

	// A stream that flips its recommendation every tick.
	for i := 0; i < 60*30; i++ {
		clock.Advance(time.Second / 60)
		if i%2 == 0 {
			q.Observe(slowMetrics)
		} else {
			q.Observe(fastMetrics)
		}
	}
	if len(changes) == 0 {
		t.Fatal("no changes at all")
	}
	for i := 1; i < len(changes); i++ {
		if gap := changes[i].At - changes[i-1].At; gap < 5*time.Second {
			t.Errorf("changes %d and %d only %v apart", i-1, i, gap)
		}
	}
	if changes[0].At < 5*time.Second {
		t.Errorf("first change at %v, inside the initial cooldown", changes[0].At)
	}
}

func TestQualityLabelMatchesSettings(t *testing.T) {
	q, clock := newTestQuality(QualityHigh)
	q.Subscribe(func(c QualityChange) {
		tier, settings := q.Current()
		if tier != c.To || settings != DefaultQualitySettings(c.To) {
			t.Errorf("observer saw tier %v with settings of another tier", tier)
		}
		if c.Settings != settings {
			t.Error("event settings differ from applied settings")
		}
	})
	clock.Advance(6 * time.Second)
	q.Observe(slowMetrics)
	if q.Tier() != QualityLow {
		t.Fatalf("Tier = %v, want low", q.Tier())
	}
	if q.Settings() != DefaultQualitySettings(QualityLow) {
		t.Error("settings do not match the low tier")
	}
}

func TestQualityNoChangeWhenRecommendationMatches(t *testing.T) {
	q, clock := newTestQuality(QualityHigh)
	changed := false
	q.Subscribe(func(QualityChange) { changed = true })
	clock.Advance(10 * time.Second)
	q.Observe(fastMetrics)
	if changed {
		t.Error("change broadcast without a tier change")
	}
}

func TestQualityManualOverride(t *testing.T) {
	q, clock := newTestQuality(QualityHigh)
	var got []QualityChange
	q.Subscribe(func(c QualityChange) { got = append(got, c) })

	q.SetAuto(false)
	q.SetTier(QualityMedium)
	if len(got) != 1 || !got[0].Manual || got[0].To != QualityMedium {
		t.Fatalf("changes = %+v", got)
	}
	clock.Advance(time.Minute)
	q.Observe(slowMetrics)
	if q.Tier() != QualityMedium {
		t.Error("control loop ran while disabled")
	}

	q.SetAuto(true)
	clock.Advance(time.Second)
	q.Observe(slowMetrics)
	if q.Tier() != QualityMedium {
		t.Error("re-enabling auto should restart the cooldown")
	}
	clock.Advance(5 * time.Second)
	q.Observe(slowMetrics)
	if q.Tier() != QualityLow {
		t.Errorf("Tier = %v, want low", q.Tier())
	}
}

func TestQualityAttachToMonitor(t *testing.T) {
	clock := NewFrameClock()
	m := NewMonitor(MonitorOptions{Clock: clock, ReadMemory: func() uint64 { return 0 }, Logger: nullLogger()})
	q := NewAdaptiveQuality(AdaptiveQualityOptions{Clock: clock, Cooldown: time.Second, Logger: nullLogger()})
	q.Attach(m)

	m.Tick()
	for i := 0; i < 120; i++ {
		clock.Advance(50 * time.Millisecond) // 20 fps
		m.Tick()
	}
	if q.Tier() != QualityLow {
		t.Errorf("Tier = %v, want low", q.Tier())
	}
}

func TestQualityPresetsOverride(t *testing.T) {
	custom := QualitySettings{SpritePoolSize: 7}
	q := NewAdaptiveQuality(AdaptiveQualityOptions{
		Clock:   NewFrameClock(),
		Initial: QualityLow,
		Presets: map[QualityTier]QualitySettings{QualityLow: custom},
		Logger:  nullLogger(),
	})
	if q.Settings() != custom {
		t.Errorf("Settings = %+v, want %+v", q.Settings(), custom)
	}
}
