package meadow

import (
	"fmt"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides: MEADOW_QUALITY_INITIAL=low sets
// quality.initial.
const EnvPrefix = "MEADOW"

// Config is the host configuration. Durations are written as strings
// ("5s", "750ms"); memory limits are in MiB.
type Config struct {
	Viewport SizeConfig     `mapstructure:"viewport"`
	World    SizeConfig     `mapstructure:"world"`
	TileSize int            `mapstructure:"tile_size"`
	Zoom     ZoomConfig     `mapstructure:"zoom"`
	Quality  QualityConfig  `mapstructure:"quality"`
	Perf     PerfConfig     `mapstructure:"perf"`
	Pools    PoolsConfig    `mapstructure:"pools"`
	Textures TexturesConfig `mapstructure:"textures"`
	AssetDir string         `mapstructure:"asset_dir"`
	Debug    bool           `mapstructure:"debug"`
	Log      LogConfig      `mapstructure:"log"`
}

type SizeConfig struct {
	Width  int `mapstructure:"width"`
	Height int `mapstructure:"height"`
}

type ZoomConfig struct {
	Min     float64 `mapstructure:"min"`
	Max     float64 `mapstructure:"max"`
	Initial float64 `mapstructure:"initial"`
}

type QualityConfig struct {
	Auto     bool          `mapstructure:"auto"`
	Initial  string        `mapstructure:"initial"`
	Cooldown time.Duration `mapstructure:"cooldown"`
	// Persist stores the applied tier between runs.
	Persist bool `mapstructure:"persist"`
}

type PerfConfig struct {
	Window        int           `mapstructure:"window"`
	MinFPS        float64       `mapstructure:"min_fps"`
	MaxFrameTime  time.Duration `mapstructure:"max_frame_time"`
	MaxMemoryMB   int           `mapstructure:"max_memory_mb"`
	MaxRenderTime time.Duration `mapstructure:"max_render_time"`
	MaxDrawCalls  int           `mapstructure:"max_draw_calls"`
}

// PoolsConfig sets the pool caps used before the first quality change.
type PoolsConfig struct {
	Sprites   int `mapstructure:"sprites"`
	Particles int `mapstructure:"particles"`
}

type TexturesConfig struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
	CleanupIdle     time.Duration `mapstructure:"cleanup_idle"`
	FrameCacheMB    int           `mapstructure:"frame_cache_mb"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	// File enables a rotating log file next to stderr.
	File       string `mapstructure:"file"`
	MaxSizeMB  int    `mapstructure:"max_size_mb"`
	MaxBackups int    `mapstructure:"max_backups"`
	MaxAgeDays int    `mapstructure:"max_age_days"`
}

// DefaultConfig returns the built-in configuration.
func DefaultConfig() Config {
	high := DefaultQualitySettings(QualityHigh)
	th := DefaultThresholds()
	return Config{
		Viewport: SizeConfig{Width: 960, Height: 640},
		World:    SizeConfig{Width: 2048, Height: 2048},
		TileSize: 16,
		Zoom:     ZoomConfig{Min: DefaultMinZoom, Max: DefaultMaxZoom, Initial: 1},
		Quality:  QualityConfig{Auto: true, Initial: QualityHigh.String(), Cooldown: 5 * time.Second, Persist: true},
		Perf: PerfConfig{
			Window:        DefaultWindow,
			MinFPS:        th.MinFPS,
			MaxFrameTime:  th.MaxFrameTime,
			MaxMemoryMB:   int(th.MaxMemory >> 20),
			MaxRenderTime: th.MaxRenderTime,
			MaxDrawCalls:  th.MaxDrawCalls,
		},
		Pools:    PoolsConfig{Sprites: high.SpritePoolSize, Particles: high.ParticlePoolSize},
		Textures: TexturesConfig{CleanupInterval: DefaultCleanupInterval, CleanupIdle: DefaultCleanupIdle, FrameCacheMB: 32},
		AssetDir: "assets",
		Log:      LogConfig{Level: "info", MaxSizeMB: 10, MaxBackups: 3, MaxAgeDays: 7},
	}
}

// setDefaults registers every key of d so that env overrides apply even
// when the config file omits the key.
func setDefaults(v *viper.Viper, d Config) {
	v.SetDefault("viewport.width", d.Viewport.Width)
	v.SetDefault("viewport.height", d.Viewport.Height)
	v.SetDefault("world.width", d.World.Width)
	v.SetDefault("world.height", d.World.Height)
	v.SetDefault("tile_size", d.TileSize)
	v.SetDefault("zoom.min", d.Zoom.Min)
	v.SetDefault("zoom.max", d.Zoom.Max)
	v.SetDefault("zoom.initial", d.Zoom.Initial)
	v.SetDefault("quality.auto", d.Quality.Auto)
	v.SetDefault("quality.initial", d.Quality.Initial)
	v.SetDefault("quality.cooldown", d.Quality.Cooldown)
	v.SetDefault("quality.persist", d.Quality.Persist)
	v.SetDefault("perf.window", d.Perf.Window)
	v.SetDefault("perf.min_fps", d.Perf.MinFPS)
	v.SetDefault("perf.max_frame_time", d.Perf.MaxFrameTime)
	v.SetDefault("perf.max_memory_mb", d.Perf.MaxMemoryMB)
	v.SetDefault("perf.max_render_time", d.Perf.MaxRenderTime)
	v.SetDefault("perf.max_draw_calls", d.Perf.MaxDrawCalls)
	v.SetDefault("pools.sprites", d.Pools.Sprites)
	v.SetDefault("pools.particles", d.Pools.Particles)
	v.SetDefault("textures.cleanup_interval", d.Textures.CleanupInterval)
	v.SetDefault("textures.cleanup_idle", d.Textures.CleanupIdle)
	v.SetDefault("textures.frame_cache_mb", d.Textures.FrameCacheMB)
	v.SetDefault("asset_dir", d.AssetDir)
	v.SetDefault("debug", d.Debug)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.file", d.Log.File)
	v.SetDefault("log.max_size_mb", d.Log.MaxSizeMB)
	v.SetDefault("log.max_backups", d.Log.MaxBackups)
	v.SetDefault("log.max_age_days", d.Log.MaxAgeDays)
}

// LoadConfig reads the config file at path (YAML, TOML or JSON, chosen by
// extension) over the defaults and applies MEADOW_ environment overrides.
// An empty path loads defaults and environment only.
func LoadConfig(path string) (Config, error) {
	v := viper.New()
	setDefaults(v, DefaultConfig())
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("meadow: read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("meadow: decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Viewport.Width <= 0 || c.Viewport.Height <= 0:
		return fmt.Errorf("meadow: config: viewport must be positive, got %dx%d", c.Viewport.Width, c.Viewport.Height)
	case c.World.Width <= 0 || c.World.Height <= 0:
		return fmt.Errorf("meadow: config: world must be positive, got %dx%d", c.World.Width, c.World.Height)
	case c.TileSize <= 0:
		return fmt.Errorf("meadow: config: tile_size must be positive, got %d", c.TileSize)
	case c.Zoom.Min <= 0 || c.Zoom.Max < c.Zoom.Min:
		return fmt.Errorf("meadow: config: bad zoom range [%v, %v]", c.Zoom.Min, c.Zoom.Max)
	}
	if _, err := ParseQualityTier(c.Quality.Initial); err != nil {
		return fmt.Errorf("meadow: config: %w", err)
	}
	if _, err := logrus.ParseLevel(c.Log.Level); err != nil {
		return fmt.Errorf("meadow: config: %w", err)
	}
	return nil
}

// CameraConfig returns the camera settings.
func (c Config) CameraConfig() CameraConfig {
	return CameraConfig{
		Viewport: Rect{Width: float64(c.Viewport.Width), Height: float64(c.Viewport.Height)},
		World:    Rect{Width: float64(c.World.Width), Height: float64(c.World.Height)},
		MinZoom:  c.Zoom.Min,
		MaxZoom:  c.Zoom.Max,
		Zoom:     c.Zoom.Initial,
	}
}

// Thresholds returns the monitor limits.
func (c Config) Thresholds() Thresholds {
	return Thresholds{
		MinFPS:        c.Perf.MinFPS,
		MaxFrameTime:  c.Perf.MaxFrameTime,
		MaxMemory:     uint64(c.Perf.MaxMemoryMB) << 20,
		MaxRenderTime: c.Perf.MaxRenderTime,
		MaxDrawCalls:  c.Perf.MaxDrawCalls,
	}
}

// InitialTier returns the configured starting tier. Validate has already
// rejected unknown names; High is returned for an unvalidated bad value.
func (c Config) InitialTier() QualityTier {
	t, err := ParseQualityTier(c.Quality.Initial)
	if err != nil {
		return QualityHigh
	}
	return t
}

// LogLevel returns the configured level, Info when unparsable.
func (c Config) LogLevel() logrus.Level {
	lvl, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}

// FrameCacheBytes returns the texture frame cache budget.
func (c Config) FrameCacheBytes() int64 {
	return int64(c.Textures.FrameCacheMB) << 20
}

// QualityPresets returns the per-tier settings with the configured pool
// caps applied to the high tier.
func (c Config) QualityPresets() map[QualityTier]QualitySettings {
	high := DefaultQualitySettings(QualityHigh)
	if c.Pools.Sprites > 0 {
		high.SpritePoolSize = c.Pools.Sprites
	}
	if c.Pools.Particles > 0 {
		high.ParticlePoolSize = c.Pools.Particles
	}
	return map[QualityTier]QualitySettings{QualityHigh: high}
}
