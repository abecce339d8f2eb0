// Command meadow runs a small farm scene on the meadow renderer.
//
//	meadow -config meadow.yaml
//
// Assets are read from the configured asset directory. A ground map at
// maps/farm.tmx and sprites under sprites/ are used when present;
// anything missing is drawn with generated placeholders.
package main

import (
	"context"
	"flag"
	"fmt"
	"image"
	"io"
	"io/fs"
	"math/rand/v2"
	"os"
	"time"

	"github.com/phanxgames/meadow"
	"github.com/phanxgames/meadow/ecs"
	"github.com/sirupsen/logrus"
	"gopkg.in/natefinch/lumberjack.v2"
)

const (
	groundMap   = "maps/farm.tmx"
	groundLayer = "ground"
	groundKey   = "ground"
)

// placeholders are generated for every sprite key without an image file.
var placeholders = []struct {
	key  string
	w, h int
	base meadow.Color
}{
	{cropKey(0), 8, 6, meadow.Color{R: 0.45, G: 0.35, B: 0.2, A: 1}},
	{cropKey(1), 10, 10, meadow.Color{R: 0.4, G: 0.7, B: 0.3, A: 1}},
	{cropKey(2), 12, 16, meadow.Color{R: 0.5, G: 0.8, B: 0.3, A: 1}},
	{cropKey(3), 14, 20, meadow.Color{R: 0.9, G: 0.8, B: 0.3, A: 1}},
	{"cow", 24, 16, meadow.Color{R: 0.95, G: 0.95, B: 0.9, A: 1}},
}

func main() {
	configPath := flag.String("config", "", "path to a YAML, TOML or JSON config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	cfg, err := meadow.LoadConfig(configPath)
	if err != nil {
		return err
	}
	log := newLogger(cfg)
	log.WithField("config", configPath).Debug("configuration loaded")

	clock := meadow.NewFrameClock()
	textures, err := meadow.NewTextureCache(meadow.TextureCacheOptions{
		Clock:           clock,
		FrameCacheBytes: cfg.FrameCacheBytes(),
		Logger:          log,
	})
	if err != nil {
		return err
	}

	initial, auto := cfg.InitialTier(), cfg.Quality.Auto
	var store *meadow.QualityStore
	if cfg.Quality.Persist {
		if store, err = meadow.OpenQualityStore("meadow", log); err != nil {
			log.WithError(err).Warn("quality will not be remembered")
		} else if tier, savedAuto, ok := store.Load(); ok {
			initial, auto = tier, savedAuto
		}
	}

	monitor := meadow.NewMonitor(meadow.MonitorOptions{
		Window:     cfg.Perf.Window,
		Thresholds: cfg.Thresholds(),
		Logger:     log,
	})
	quality := meadow.NewAdaptiveQuality(meadow.AdaptiveQualityOptions{
		Cooldown: cfg.Quality.Cooldown,
		Initial:  initial,
		Presets:  cfg.QualityPresets(),
		Manual:   !auto,
		Logger:   log,
	})
	quality.Attach(monitor)
	if store != nil {
		store.Attach(quality)
	}

	renderer, err := meadow.NewRenderer(meadow.RendererOptions{
		Camera:          meadow.NewCamera(cfg.CameraConfig()),
		Textures:        textures,
		Clock:           clock,
		Monitor:         monitor,
		Quality:         quality,
		CleanupInterval: cfg.Textures.CleanupInterval,
		CleanupIdle:     cfg.Textures.CleanupIdle,
		Logger:          log,
	})
	if err != nil {
		return err
	}
	defer renderer.Destroy()
	renderer.SetDebugMode(cfg.Debug)

	world := meadow.Rect{Width: float64(cfg.World.Width), Height: float64(cfg.World.Height)}
	sim := newFarm(world, 64, 6, uint64(time.Now().UnixNano()), log)
	ecs.BridgeQuality(sim.world, quality)

	assets := os.DirFS(cfg.AssetDir)
	preloader := meadow.NewPreloader(meadow.PreloaderOptions{
		FS:       assets,
		Cache:    textures,
		Manifest: manifest(assets, log),
		Logger:   log,
	})

	input := meadow.NewInput(renderer, log)
	input.OnClick = ecs.PublishClick(sim.world)

	opts := meadow.GameOptions{
		Renderer: renderer,
		Input:    input,
		Logger:   log,
		OnReady: func() error {
			for _, p := range placeholders {
				textures.Placeholder(p.key, p.w, p.h, p.base)
			}
			ground, err := loadGround(assets, textures, cfg)
			if err != nil {
				return err
			}
			renderer.SetGround(ground)
			renderer.UpdateScene(sim.snapshot())
			return nil
		},
		OnUpdate: func(dt time.Duration) {
			sim.update(dt)
			renderer.UpdateScene(sim.snapshot())
		},
	}
	if cfg.Debug {
		opts.Overlay = meadow.NewOverlay(renderer)
	}
	game, err := meadow.NewGame(opts)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	game.SetPreload(preloader.Preload(ctx, game.ReportProgress))

	return meadow.Run(game, "Meadow", cfg.Viewport.Width, cfg.Viewport.Height)
}

func newLogger(cfg meadow.Config) *logrus.Logger {
	log := logrus.New()
	log.SetLevel(cfg.LogLevel())
	log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	if cfg.Log.File != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   cfg.Log.File,
			MaxSize:    cfg.Log.MaxSizeMB,
			MaxBackups: cfg.Log.MaxBackups,
			MaxAge:     cfg.Log.MaxAgeDays,
		}))
	}
	return log
}

// manifest lists the asset files that exist under fsys.
func manifest(fsys fs.FS, log logrus.FieldLogger) meadow.Manifest {
	var m meadow.Manifest
	if img, err := meadow.TMXTilesetImage(fsys, groundMap); err == nil {
		m.Textures = append(m.Textures, meadow.TextureAsset{Key: groundKey, Path: img, Nearest: true, Persistent: true})
	} else {
		log.WithError(err).Debug("no ground map, generating one")
	}
	for _, p := range placeholders {
		path := "sprites/" + p.key + ".png"
		if _, err := fs.Stat(fsys, path); err == nil {
			m.Textures = append(m.Textures, meadow.TextureAsset{Key: p.key, Path: path, Nearest: true})
		}
	}
	if _, err := fs.Stat(fsys, "sprites/farm.json"); err == nil {
		m.Sheets = append(m.Sheets, meadow.SheetAsset{Key: "farm", Path: "sprites/farm.json", Pages: []string{"farm-0"}, Nearest: true})
		m.Textures = append(m.Textures, meadow.TextureAsset{Key: "farm-0", Path: "sprites/farm.png", Nearest: true, Persistent: true})
	}
	return m
}

// loadGround reads the ground layer from the TMX map, or generates a grass
// field covering the world when there is none.
func loadGround(fsys fs.FS, textures *meadow.TextureCache, cfg meadow.Config) (*meadow.TileLayer, error) {
	if _, err := fs.Stat(fsys, groundMap); err == nil {
		return meadow.LoadTMXLayer(fsys, groundMap, groundLayer, textures, groundKey)
	}

	const variants = 4
	ts := cfg.TileSize
	sheet := image.NewRGBA(image.Rect(0, 0, ts*variants, ts))
	for v := range variants {
		tile := textures.Placeholder(fmt.Sprintf("grass-%d", v), ts, ts, meadow.Color{R: 0.25, G: 0.45 + 0.05*float64(v), B: 0.2, A: 1})
		src := tile.Pixels()
		for y := range ts {
			for x := range ts {
				sheet.Set(v*ts+x, y, src.At(x, y))
			}
		}
	}
	tileset := textures.Put(groundKey, sheet, meadow.TextureOptions{Nearest: true, Persistent: true})

	cols, rows := cfg.World.Width/ts, cfg.World.Height/ts
	data := make([]uint32, cols*rows)
	for i := range data {
		data[i] = uint32(rand.IntN(variants)) + 1
	}
	regions := meadow.TilesetRegions(ts*variants, ts, ts, ts, 0, 0, 1)
	return meadow.NewTileLayer(cols, rows, ts, ts, data, tileset, regions), nil
}
