// Package meadow renders a large tile-based farm inside a fixed viewport on
// [Ebitengine], holding a stable frame budget on modest hardware.
//
// The host owns the simulation and hands the renderer a [Snapshot] of
// entities each tick. The renderer culls them against the [Camera], draws
// the visible ones from pooled sprites, and plays grow, harvest, wither and
// walk animations when an entity's state changes between snapshots.
//
// # Quick start
//
// [Game] adapts a [Renderer] to [ebiten.Game], showing a loading surface
// until the [Preloader] resolves:
//
//	cfg, _ := meadow.LoadConfig("meadow.yaml")
//	textures, _ := meadow.NewTextureCache(meadow.TextureCacheOptions{})
//	r, _ := meadow.NewRenderer(meadow.RendererOptions{
//		Camera:   meadow.NewCamera(cfg.CameraConfig()),
//		Textures: textures,
//	})
//	g, _ := meadow.NewGame(meadow.GameOptions{
//		Renderer: r,
//		OnUpdate: func(dt time.Duration) { r.UpdateScene(mySnapshot()) },
//	})
//	meadow.Run(g, "Farm", 960, 640)
//
// # Frame order
//
// Each frame runs the update tick and then the render tick. [Renderer.Update]
// advances the [FrameClock], the camera, the latest snapshot and the
// [Scheduler]; [Renderer.Draw] culls, draws the ground [TileLayer] and the
// sorted sprites, and reports the frame to the [Monitor].
//
// # Quality
//
// The [Monitor] keeps a rolling window of frame times and recommends a
// [QualityTier]. [AdaptiveQuality] applies the recommendation at most once
// per cooldown and notifies subscribers; the renderer resizes its pools and
// toggles effects in response. [QualityStore] remembers the tier between
// runs.
//
// # Services
//
//   - [TextureCache]: decoded textures, placeholders and the missing-asset fallback
//   - [PoolRegistry] and [Pool]: named object pools with per-tier caps
//   - [Scheduler] and [Presets]: property tweens and the farm animations
//   - [Preloader]: staged asset loading with progress reporting
//   - [Input]: mouse, touch and keyboard routed to the camera and clicks
//   - [Overlay]: the debug metrics panel
//
// Package ecs feeds snapshots from a Donburi world.
//
// [Ebitengine]: https://ebitengine.org
package meadow
