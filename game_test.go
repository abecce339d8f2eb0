package meadow

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestNewGameRequiresRenderer(t *testing.T) {
	if _, err := NewGame(GameOptions{}); err == nil {
		t.Error("expected error without renderer")
	}
}

func TestGameWaitsForPreload(t *testing.T) {
	f := newTestRenderer(t, QualityLow)
	p, _ := newTestPreloader(t, Manifest{
		Textures: []TextureAsset{{Key: "grass", Path: "img/grass.png"}},
	}, nil, nullLogger())

	readyCalls := 0
	updates := 0
	g, err := NewGame(GameOptions{
		Renderer: f.r,
		OnReady:  func() error { readyCalls++; return nil },
		OnUpdate: func(time.Duration) { updates++ },
		Logger:   nullLogger(),
	})
	if err != nil {
		t.Fatal(err)
	}
	future := p.Preload(context.Background(), g.ReportProgress)
	g.SetPreload(future)
	if g.Ready() {
		t.Fatal("game should wait for the preload")
	}
	if err := waitPreload(t, future); err != nil {
		t.Fatalf("preload: %v", err)
	}

	for range 3 {
		if err := g.Update(); err != nil {
			t.Fatalf("Update: %v", err)
		}
	}
	if !g.Ready() {
		t.Fatal("game should be ready once the preload resolved")
	}
	if readyCalls != 1 {
		t.Errorf("OnReady called %d times, want 1", readyCalls)
	}
	if updates != 3 {
		t.Errorf("OnUpdate called %d times, want 3", updates)
	}
	if cur := g.progress.Load(); cur == nil || cur.Percentage != 100 {
		t.Errorf("last progress = %+v, want 100%%", cur)
	}
}

func TestGameWithoutPreloadStartsOnFirstTick(t *testing.T) {
	f := newTestRenderer(t, QualityLow)
	readyCalls := 0
	g, _ := NewGame(GameOptions{
		Renderer: f.r,
		OnReady:  func() error { readyCalls++; return nil },
		Logger:   nullLogger(),
	})
	_ = g.Update()
	_ = g.Update()
	if !g.Ready() || readyCalls != 1 {
		t.Errorf("Ready = %v, OnReady calls = %d; want true, 1", g.Ready(), readyCalls)
	}
}

func TestGameShowsPreloadFailure(t *testing.T) {
	f := newTestRenderer(t, QualityLow)
	p, _ := newTestPreloader(t, Manifest{
		Textures: []TextureAsset{{Key: "a", Path: "img/missing.png"}},
	}, nil, nullLogger())
	future := p.Preload(context.Background(), nil)
	_ = waitPreload(t, future)

	updates := 0
	g, _ := NewGame(GameOptions{
		Renderer: f.r,
		Preload:  future,
		OnUpdate: func(time.Duration) { updates++ },
		Logger:   nullLogger(),
	})
	if err := g.Update(); err != nil {
		t.Fatalf("Update should not end the game loop: %v", err)
	}
	if !errors.Is(g.Failure(), ErrStageFailed) {
		t.Errorf("Failure = %v, want ErrStageFailed", g.Failure())
	}
	if g.Ready() || updates != 0 {
		t.Error("failed game should not run the scene")
	}
}

func TestGameOnReadyError(t *testing.T) {
	f := newTestRenderer(t, QualityLow)
	boom := errors.New("no ground")
	g, _ := NewGame(GameOptions{
		Renderer: f.r,
		Preload:  resolvedFuture(nil),
		OnReady:  func() error { return boom },
		Logger:   nullLogger(),
	})
	_ = g.Update()
	if !errors.Is(g.Failure(), boom) {
		t.Errorf("Failure = %v, want %v", g.Failure(), boom)
	}
}

func TestGameLayoutResizesViewport(t *testing.T) {
	f := newTestRenderer(t, QualityLow)
	g, _ := NewGame(GameOptions{Renderer: f.r, Logger: nullLogger()})
	w, h := g.Layout(1024, 768)
	if w != 1024 || h != 768 {
		t.Errorf("Layout = %dx%d", w, h)
	}
	if vp := f.camera.Viewport(); vp.Width != 1024 || vp.Height != 768 {
		t.Errorf("viewport = %+v, want 1024x768", vp)
	}
}

func TestLoadingText(t *testing.T) {
	got := loadingText(Progress{Loaded: 2, Total: 4, Percentage: 50, CurrentAsset: "soil", Stage: StageTextures}, "Scroll to zoom.")
	want := "Loading textures 2/4 (50%)\nsoil\n\nScroll to zoom."
	if got != want {
		t.Errorf("loadingText = %q, want %q", got, want)
	}
}

func TestFailureText(t *testing.T) {
	if got := failureText(ErrSurfaceUnavailable); !strings.Contains(got, ErrSurfaceUnavailable.Error()) {
		t.Errorf("failure text %q does not name the error", got)
	}
}

func resolvedFuture(err error) *PreloadFuture {
	f := &PreloadFuture{done: make(chan struct{}), err: err}
	close(f.done)
	return f
}
