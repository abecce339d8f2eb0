package meadow

import (
	"fmt"
	"strings"

	"github.com/tanema/gween/ease"
)

// Easing maps linear progress to eased progress. meadow uses the gween
// easing catalogue, whose functions take (elapsed, begin, change, duration);
// the scheduler always calls them normalised as fn(t, 0, 1, 1).
type Easing = ease.TweenFunc

// easings is the name lookup used by configuration and presets.
var easings = map[string]Easing{
	"linear":       ease.Linear,
	"quad-in":      ease.InQuad,
	"quad-out":     ease.OutQuad,
	"quad-in-out":  ease.InOutQuad,
	"cubic-in":     ease.InCubic,
	"cubic-out":    ease.OutCubic,
	"cubic-in-out": ease.InOutCubic,
	"sine-in-out":  ease.InOutSine,
	"elastic-in":   ease.InElastic,
	"elastic-out":  ease.OutElastic,
	"bounce-in":    ease.InBounce,
	"bounce-out":   ease.OutBounce,
}

// EasingByName returns the easing registered under name (case-insensitive).
func EasingByName(name string) (Easing, error) {
	fn, ok := easings[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("meadow: unknown easing %q", name)
	}
	return fn, nil
}

// easeRatio applies fn to a progress ratio t in [0, 1]. A nil fn is linear.
func easeRatio(fn Easing, t float64) float64 {
	if fn == nil {
		return t
	}
	return float64(fn(float32(t), 0, 1, 1))
}
