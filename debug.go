package meadow

import (
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// globalDebug mirrors the most recently set Renderer debug flag so that
// drawable operations (which lack a Renderer pointer) can check it cheaply.
var globalDebug bool

// debugStats holds per-frame timing and draw-call figures.
// Only populated when the renderer is in debug mode.
type debugStats struct {
	prepareTime time.Duration
	sortTime    time.Duration
	submitTime  time.Duration
	commands    int
	batches     int
	drawCalls   int
	visible     int
}

// debugLog writes the frame figures at debug level.
func (r *Renderer) debugLog(stats debugStats) {
	if !r.debug {
		return
	}
	r.log.WithFields(logrus.Fields{
		"prepare":    stats.prepareTime,
		"sort":       stats.sortTime,
		"submit":     stats.submitTime,
		"total":      stats.prepareTime + stats.sortTime + stats.submitTime,
		"commands":   stats.commands,
		"batches":    stats.batches,
		"draw_calls": stats.drawCalls,
		"visible":    stats.visible,
	}).Debug("frame")
}

// debugCheckDisposed panics with a descriptive message when a disposed
// drawable is used in a tree operation. Callers skip it outside debug mode.
func debugCheckDisposed(d *Drawable, op string) {
	if d.disposed {
		panic(fmt.Sprintf("meadow debug: %s on disposed drawable %q (ID was %d)", op, d.Name, d.ID))
	}
}

const debugMaxChildCount = 1000

// debugCheckChildCount warns if a drawable has more than 1000 children.
func debugCheckChildCount(d *Drawable) {
	if len(d.children) > debugMaxChildCount {
		logrus.WithFields(logrus.Fields{
			"component": "renderer",
			"drawable":  d.Name,
			"children":  len(d.children),
			"threshold": debugMaxChildCount,
		}).Warn("drawable has too many children")
	}
}
