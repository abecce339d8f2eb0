package meadow

import (
	"fmt"
	"image/color"
	"strings"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
)

// overlayRefresh is how often the overlay text is regenerated.
const overlayRefresh = 500 * time.Millisecond

// Overlay draws the renderer's performance figures in the top-left corner.
// The text is rendered into its own image and refreshed twice a second.
type Overlay struct {
	r        *Renderer
	img      *ebiten.Image
	text     string
	sinceRef time.Duration
}

// NewOverlay creates an overlay reading from r.
func NewOverlay(r *Renderer) *Overlay {
	return &Overlay{r: r, sinceRef: overlayRefresh}
}

// Update advances the refresh timer by dt.
func (o *Overlay) Update(dt time.Duration) {
	o.sinceRef += dt
	if o.sinceRef < overlayRefresh {
		return
	}
	o.sinceRef = 0
	o.text = overlayText(o.r.Metrics(), o.r.Quality().Tier(), o.r.EntityCount(), o.r.VisibleCount(), o.r.Monitor().Suggestions())
	o.redraw()
}

func (o *Overlay) redraw() {
	// The debug font is 6x16 per glyph.
	lines := strings.Split(o.text, "\n")
	longest := 0
	for _, l := range lines {
		longest = max(longest, len(l))
	}
	w, h := longest*6+8, len(lines)*16+4
	if o.img == nil || o.img.Bounds().Dx() != w || o.img.Bounds().Dy() != h {
		if o.img != nil {
			o.img.Deallocate()
		}
		o.img = ebiten.NewImage(w, h)
	}
	o.img.Fill(color.RGBA{0, 0, 0, 128})
	ebitenutil.DebugPrint(o.img, o.text)
}

// Draw draws the overlay onto screen.
func (o *Overlay) Draw(screen *ebiten.Image) {
	if o.img == nil {
		return
	}
	var op ebiten.DrawImageOptions
	op.GeoM.Translate(4, 4)
	screen.DrawImage(o.img, &op)
}

func overlayText(m PerformanceMetrics, tier QualityTier, entities, visible int, suggestions []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "FPS: %.1f (%.1fms)\n", m.FPS, durationMillis(m.FrameTime))
	fmt.Fprintf(&b, "TPS: %.1f\n", ebiten.ActualTPS())
	fmt.Fprintf(&b, "update %.2fms  render %.2fms\n", durationMillis(m.UpdateTime), durationMillis(m.RenderTime))
	fmt.Fprintf(&b, "draws %d  pooled %d\n", m.DrawCalls, m.ActiveObjects)
	fmt.Fprintf(&b, "entities %d  visible %d\n", entities, visible)
	fmt.Fprintf(&b, "heap %.1fMB  quality %s", float64(m.MemoryBytes)/(1<<20), tier)
	for _, s := range suggestions {
		b.WriteString("\n! ")
		b.WriteString(s)
	}
	return b.String()
}
