package meadow

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io/fs"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/webp"
)

// Stage names a preload stage. Stages run in declaration order.
type Stage string

const (
	StageTextures Stage = "textures"
	StageSheets   Stage = "sheets"
	StageAudio    Stage = "audio"
)

// TextureAsset is an image file cached under Key.
type TextureAsset struct {
	Key        string
	Path       string
	Nearest    bool
	Persistent bool
	Frames     int // stage frames in a horizontal strip
}

// SheetAsset is a TexturePacker descriptor whose pages were loaded as
// textures in the textures stage. Each frame is cached as Prefix+frame.
type SheetAsset struct {
	Key     string
	Path    string
	Pages   []string // texture keys, in page order
	Prefix  string
	Nearest bool
}

// AudioAsset is a sound file handed to the AudioSink.
type AudioAsset struct {
	Key  string
	Path string
}

// Manifest lists everything the preloader loads.
type Manifest struct {
	Textures []TextureAsset
	Sheets   []SheetAsset
	Audio    []AudioAsset
}

// Progress is reported after every asset.
type Progress struct {
	Loaded       int
	Total        int
	Percentage   float64
	CurrentAsset string
	Stage        Stage
}

// AudioSink receives raw audio data. Playback lives outside the engine.
type AudioSink interface {
	LoadAudio(key string, data []byte) error
}

// PreloaderOptions configures a Preloader.
type PreloaderOptions struct {
	FS       fs.FS
	Cache    *TextureCache
	Manifest Manifest
	// Audio receives the audio stage. Nil skips audio.
	Audio  AudioSink
	Logger logrus.FieldLogger
}

// PreloadFuture resolves when the preload pass ends.
type PreloadFuture struct {
	done chan struct{}
	err  error
}

// Done is closed when the pass ends.
func (f *PreloadFuture) Done() <-chan struct{} { return f.done }

// Resolved reports whether the pass has ended, without blocking.
func (f *PreloadFuture) Resolved() bool {
	select {
	case <-f.done:
		return true
	default:
		return false
	}
}

// Err returns the pass error once resolved, and ErrPreloadIncomplete
// before that.
func (f *PreloadFuture) Err() error {
	if !f.Resolved() {
		return ErrPreloadIncomplete
	}
	return f.err
}

// Wait blocks until the pass ends or ctx is done.
func (f *PreloadFuture) Wait(ctx context.Context) error {
	select {
	case <-f.done:
		return f.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Preloader loads the manifest in stages: textures, then sheets, then
// audio. Individual asset failures are replaced by fallbacks and logged;
// the pass fails only when a whole stage fails or orchestration breaks.
type Preloader struct {
	opts     PreloaderOptions
	log      logrus.FieldLogger
	once     sync.Once
	future   *PreloadFuture
	complete atomic.Bool
}

// NewPreloader creates a preloader. Nothing is loaded until Preload.
func NewPreloader(opts PreloaderOptions) *Preloader {
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}
	return &Preloader{
		opts: opts,
		log:  opts.Logger.WithField("component", "preload"),
	}
}

// Preload starts the pass in its own goroutine and returns its future.
// Only one pass ever runs: later calls return the same future and their
// onProgress is ignored. onProgress is called from the loading goroutine.
func (p *Preloader) Preload(ctx context.Context, onProgress func(Progress)) *PreloadFuture {
	p.once.Do(func() {
		p.future = &PreloadFuture{done: make(chan struct{})}
		go func() {
			defer close(p.future.done)
			p.future.err = p.run(ctx, onProgress)
			if p.future.err == nil {
				p.complete.Store(true)
			}
		}()
	})
	return p.future
}

// IsComplete reports whether the pass finished successfully.
func (p *Preloader) IsComplete() bool {
	return p.complete.Load()
}

func (p *Preloader) run(ctx context.Context, onProgress func(Progress)) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("meadow: preload panicked: %v", r)
			p.log.WithError(err).Error("preload aborted")
		}
	}()
	if p.opts.Cache == nil || p.opts.FS == nil {
		return errors.New("meadow: preloader needs a texture cache and a file system")
	}
	if onProgress == nil {
		onProgress = func(Progress) {}
	}

	m := p.opts.Manifest
	if err := p.stage(ctx, StageTextures, len(m.Textures), onProgress, func(i int) (string, bool) {
		a := m.Textures[i]
		return a.Key, p.loadTexture(a)
	}); err != nil {
		return err
	}
	if err := p.stage(ctx, StageSheets, len(m.Sheets), onProgress, func(i int) (string, bool) {
		a := m.Sheets[i]
		return a.Key, p.loadSheet(a)
	}); err != nil {
		return err
	}
	if p.opts.Audio == nil {
		if len(m.Audio) > 0 {
			p.log.WithField("count", len(m.Audio)).Debug("no audio sink, skipping audio stage")
		}
		return nil
	}
	return p.stage(ctx, StageAudio, len(m.Audio), onProgress, func(i int) (string, bool) {
		a := m.Audio[i]
		return a.Key, p.loadAudio(a)
	})
}

// stage loads n assets via load, reporting progress after each. It fails
// when ctx is cancelled or when every asset of a non-empty stage failed.
func (p *Preloader) stage(ctx context.Context, s Stage, n int, onProgress func(Progress), load func(i int) (string, bool)) error {
	failed := 0
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("meadow: preload %s: %w", s, err)
		}
		key, ok := load(i)
		if !ok {
			failed++
		}
		onProgress(Progress{
			Loaded:       i + 1,
			Total:        n,
			Percentage:   float64(i+1) / float64(n) * 100,
			CurrentAsset: key,
			Stage:        s,
		})
	}
	if n > 0 && failed == n {
		return fmt.Errorf("%w: %s (%d of %d assets)", ErrStageFailed, s, failed, n)
	}
	p.log.WithFields(logrus.Fields{"stage": string(s), "assets": n, "failed": failed}).Info("preload stage done")
	return nil
}

func (p *Preloader) loadTexture(a TextureAsset) bool {
	img, err := p.decode(a.Path)
	if err != nil {
		p.log.WithError(err).WithField("asset", a.Key).Warn("texture failed to load, using fallback")
		p.opts.Cache.Fallback(a.Key)
		return false
	}
	p.opts.Cache.Put(a.Key, img, TextureOptions{Nearest: a.Nearest, Persistent: a.Persistent, Frames: a.Frames})
	return true
}

func (p *Preloader) decode(path string) (image.Image, error) {
	data, err := fs.ReadFile(p.opts.FS, path)
	if err != nil {
		return nil, err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", path, err)
	}
	return img, nil
}

func (p *Preloader) loadSheet(a SheetAsset) bool {
	log := p.log.WithField("asset", a.Key)
	data, err := fs.ReadFile(p.opts.FS, a.Path)
	if err != nil {
		log.WithError(err).Warn("sheet failed to load")
		return false
	}
	sheet, err := ParseSheet(data)
	if err != nil {
		log.WithError(err).Warn("sheet failed to parse")
		return false
	}

	pages := make([]*Texture, len(a.Pages))
	usable := true
	for i, key := range a.Pages {
		t, ok := p.opts.Cache.Get(key)
		if !ok || t.IsFallback() {
			usable = false
			break
		}
		pages[i] = t
	}
	if !usable {
		log.Warn("sheet page missing, using fallback frames")
		for _, name := range sheet.Names() {
			p.opts.Cache.Fallback(a.Prefix + name)
		}
		return false
	}

	if _, err := SliceSheet(p.opts.Cache, sheet, pages, a.Prefix, TextureOptions{Nearest: a.Nearest, Persistent: true}); err != nil {
		log.WithError(err).Warn("sheet partially sliced")
	}
	return true
}

func (p *Preloader) loadAudio(a AudioAsset) bool {
	data, err := fs.ReadFile(p.opts.FS, a.Path)
	if err == nil {
		err = p.opts.Audio.LoadAudio(a.Key, data)
	}
	if err != nil {
		p.log.WithError(err).WithField("asset", a.Key).Warn("audio failed to load")
		return false
	}
	return true
}
