package meadow

import (
	"math"

	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

// keyPanSpeed is the keyboard pan speed in screen pixels per tick.
const keyPanSpeed = 8.0

// pointerInput is one tick of polled input. Touches, when present, take
// over from the mouse.
type pointerInput struct {
	x, y    float64
	pressed bool
	touches []Vec2
	wheelY  float64 // ebiten convention: positive scrolls up
	focused bool
	panX    float64 // keyboard pan direction, -1..1
	panY    float64
}

// pinchState tracks a two-finger zoom between ticks.
type pinchState struct {
	active   bool
	prevDist float64
}

// Input polls ebiten once per tick and routes pointer gestures: drags pan
// the camera, short presses become clicks hit-tested by the renderer,
// the wheel and two-finger pinches zoom around the pointer.
type Input struct {
	camera   *Camera
	renderer *Renderer
	log      logrus.FieldLogger

	// OnClick receives the id of the entity under a click.
	OnClick func(id string)

	down     bool
	touching bool
	lastX    float64
	lastY    float64
	pinch    pinchState
	touchIDs []ebiten.TouchID
}

// NewInput routes input to r and its camera.
func NewInput(r *Renderer, logger logrus.FieldLogger) *Input {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	return &Input{
		camera:   r.Camera(),
		renderer: r,
		log:      logger.WithField("component", "input"),
	}
}

// Update polls the current input state and applies it.
func (in *Input) Update() {
	in.apply(in.poll())
}

func (in *Input) poll() pointerInput {
	mx, my := ebiten.CursorPosition()
	p := pointerInput{
		x:       float64(mx),
		y:       float64(my),
		pressed: ebiten.IsMouseButtonPressed(ebiten.MouseButtonLeft),
		focused: ebiten.IsFocused(),
	}
	in.touchIDs = ebiten.AppendTouchIDs(in.touchIDs[:0])
	for _, id := range in.touchIDs {
		tx, ty := ebiten.TouchPosition(id)
		p.touches = append(p.touches, Vec2{X: float64(tx), Y: float64(ty)})
	}
	_, p.wheelY = ebiten.Wheel()

	if ebiten.IsKeyPressed(ebiten.KeyArrowLeft) || ebiten.IsKeyPressed(ebiten.KeyA) {
		p.panX--
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowRight) || ebiten.IsKeyPressed(ebiten.KeyD) {
		p.panX++
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowUp) || ebiten.IsKeyPressed(ebiten.KeyW) {
		p.panY--
	}
	if ebiten.IsKeyPressed(ebiten.KeyArrowDown) || ebiten.IsKeyPressed(ebiten.KeyS) {
		p.panY++
	}
	return p
}

func (in *Input) apply(p pointerInput) {
	if len(p.touches) >= 2 {
		in.applyPinch(p.touches[0], p.touches[1])
		return
	}
	in.pinch.active = false

	x, y, pressed := p.x, p.y, p.pressed
	touch := len(p.touches) == 1
	if touch {
		x, y, pressed = p.touches[0].X, p.touches[0].Y, true
	} else if in.down && in.touching {
		// A lifted finger reports no position; release where it was.
		x, y = in.lastX, in.lastY
	}

	inside := in.camera.Viewport().Contains(x, y)
	switch {
	case in.down && (!p.focused || !inside):
		in.camera.PointerUpOutside()
		in.down = false
	case !in.down && pressed && inside && p.focused:
		in.camera.PointerDown(x, y)
		in.down = true
		in.touching = touch
	case in.down && pressed:
		in.camera.PointerMove(x, y)
	case in.down && !pressed:
		in.down = false
		if dragged := in.camera.PointerUp(x, y); !dragged {
			in.click(x, y)
		}
	}
	in.lastX, in.lastY = x, y

	if p.wheelY != 0 && inside {
		in.camera.Wheel(-p.wheelY, x, y)
	}
	if p.panX != 0 || p.panY != 0 {
		in.camera.Move(p.panX*keyPanSpeed, p.panY*keyPanSpeed)
	}
}

func (in *Input) click(x, y float64) {
	id, ok := in.renderer.Click(x, y)
	if !ok {
		return
	}
	in.log.WithField("entity", id).Debug("entity clicked")
	if in.OnClick != nil {
		in.OnClick(id)
	}
}

// applyPinch zooms by the change in finger distance around their midpoint.
// Any drag in progress is abandoned.
func (in *Input) applyPinch(a, b Vec2) {
	if in.down {
		in.camera.PointerUpOutside()
		in.down = false
	}
	dist := math.Hypot(b.X-a.X, b.Y-a.Y)
	if !in.pinch.active {
		in.pinch = pinchState{active: true, prevDist: dist}
		return
	}
	if in.pinch.prevDist > 0 && dist > 0 {
		in.camera.ZoomAt(dist/in.pinch.prevDist, (a.X+b.X)/2, (a.Y+b.Y)/2)
	}
	in.pinch.prevDist = dist
}
