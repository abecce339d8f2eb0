package meadow

import (
	"errors"
	"fmt"
	"image/color"
	"sync/atomic"
	"time"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/sirupsen/logrus"
)

// tipInterval is how long each loading tip stays on screen.
const tipInterval = 3 * time.Second

// LoadingTips rotate under the progress bar while assets load.
var LoadingTips = []string{
	"Drag to look around the farm.",
	"Scroll or pinch to zoom.",
	"Click a crop to inspect it.",
	"Withered crops turn brown before they die.",
}

// GameOptions configures a Game.
type GameOptions struct {
	Renderer *Renderer
	// Preload is awaited before the first scene frame. Nil starts the scene
	// on the first tick.
	Preload *PreloadFuture
	// Input, Overlay and the callbacks are optional.
	Input   *Input
	Overlay *Overlay
	// OnReady runs once, on the first tick after Preload resolved. An
	// error puts the game in its failure state.
	OnReady func() error
	// OnUpdate runs every tick before the renderer updates; hosts push
	// their snapshot from here.
	OnUpdate func(dt time.Duration)
	Logger   logrus.FieldLogger
}

// Game adapts a Renderer to ebiten.Game: a loading surface until the
// preloader resolves, then input, host update and renderer each tick.
// Failures are shown on screen instead of ending the process.
type Game struct {
	opts     GameOptions
	log      logrus.FieldLogger
	progress atomic.Pointer[Progress]

	ready   bool
	failure error
	elapsed time.Duration
	width   int
	height  int
}

// NewGame creates a game around opts.Renderer.
func NewGame(opts GameOptions) (*Game, error) {
	if opts.Renderer == nil {
		return nil, errors.New("meadow: game needs a renderer")
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Game{
		opts: opts,
		log:  opts.Logger.WithField("component", "game"),
	}, nil
}

// ReportProgress records preload progress for the loading surface. Safe to
// call from the preloader goroutine.
func (g *Game) ReportProgress(p Progress) {
	g.progress.Store(&p)
}

// SetPreload makes the game wait for f before running the scene. It must
// be called before the first Update.
func (g *Game) SetPreload(f *PreloadFuture) {
	g.opts.Preload = f
}

// Ready reports whether preloading finished and the scene is running.
func (g *Game) Ready() bool { return g.ready && g.failure == nil }

// Failure returns the error that stopped the game, if any.
func (g *Game) Failure() error { return g.failure }

// Update implements ebiten.Game.
func (g *Game) Update() error {
	dt := time.Second / time.Duration(ebiten.TPS())
	g.elapsed += dt
	if g.failure != nil {
		return nil
	}
	if !g.ready {
		if p := g.opts.Preload; p != nil {
			if !p.Resolved() {
				return nil
			}
			if err := p.Err(); err != nil {
				g.fail(err)
				return nil
			}
		}
		g.ready = true
		if g.opts.OnReady != nil {
			if err := g.opts.OnReady(); err != nil {
				g.fail(err)
				return nil
			}
		}
		g.log.Info("scene ready")
	}

	if g.opts.Input != nil {
		g.opts.Input.Update()
	}
	if g.opts.OnUpdate != nil {
		g.opts.OnUpdate(dt)
	}
	g.opts.Renderer.Update(dt)
	if g.opts.Overlay != nil {
		g.opts.Overlay.Update(dt)
	}
	return nil
}

func (g *Game) fail(err error) {
	g.failure = err
	g.log.WithError(err).Error("engine stopped")
}

// Draw implements ebiten.Game.
func (g *Game) Draw(screen *ebiten.Image) {
	switch {
	case g.failure != nil:
		screen.Fill(color.RGBA{40, 16, 16, 255})
		ebitenutil.DebugPrintAt(screen, failureText(g.failure), 16, 16)
	case !g.ready:
		g.drawLoading(screen)
	default:
		screen.Fill(color.RGBA{28, 44, 24, 255})
		g.opts.Renderer.Draw(screen)
		if g.opts.Overlay != nil {
			g.opts.Overlay.Draw(screen)
		}
	}
}

func (g *Game) drawLoading(screen *ebiten.Image) {
	screen.Fill(color.RGBA{20, 28, 20, 255})
	var p Progress
	if cur := g.progress.Load(); cur != nil {
		p = *cur
	}
	w := float32(screen.Bounds().Dx())
	h := float32(screen.Bounds().Dy())
	barW, barH := w*0.6, float32(12)
	x, y := (w-barW)/2, h/2
	vector.FillRect(screen, x, y, barW, barH, color.RGBA{60, 70, 60, 255}, false)
	vector.FillRect(screen, x, y, barW*float32(p.Percentage/100), barH, color.RGBA{140, 200, 90, 255}, false)
	ebitenutil.DebugPrintAt(screen, loadingText(p, g.tip()), int(x), int(y)+int(barH)+8)
}

func (g *Game) tip() string {
	if len(LoadingTips) == 0 {
		return ""
	}
	return LoadingTips[int(g.elapsed/tipInterval)%len(LoadingTips)]
}

// Layout implements ebiten.Game. The camera viewport follows the window.
func (g *Game) Layout(outsideWidth, outsideHeight int) (int, int) {
	if outsideWidth != g.width || outsideHeight != g.height {
		g.width, g.height = outsideWidth, outsideHeight
		g.opts.Renderer.Camera().Resize(float64(outsideWidth), float64(outsideHeight))
	}
	return outsideWidth, outsideHeight
}

func loadingText(p Progress, tip string) string {
	s := fmt.Sprintf("Loading %s %d/%d (%.0f%%)", p.Stage, p.Loaded, p.Total, p.Percentage)
	if p.CurrentAsset != "" {
		s += "\n" + p.CurrentAsset
	}
	if tip != "" {
		s += "\n\n" + tip
	}
	return s
}

func failureText(err error) string {
	return "The farm could not be shown.\n\n" + err.Error()
}

// Run opens a window of the given size and runs g until the window closes.
// A window or graphics failure is reported as ErrSurfaceUnavailable.
func Run(g *Game, title string, width, height int) error {
	ebiten.SetWindowTitle(title)
	ebiten.SetWindowSize(width, height)
	ebiten.SetWindowResizingMode(ebiten.WindowResizingModeEnabled)
	if err := ebiten.RunGame(g); err != nil {
		return fmt.Errorf("%w: %w", ErrSurfaceUnavailable, err)
	}
	return nil
}
