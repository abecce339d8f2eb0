package meadow

import (
	"testing"
	"testing/fstest"
	"time"
)

const farmTMX = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" tiledversion="1.10.2" orientation="orthogonal" renderorder="right-down" width="4" height="2" tilewidth="16" tileheight="16" infinite="0" nextlayerid="3" nextobjectid="1">
 <tileset firstgid="1" name="farm" tilewidth="16" tileheight="16" tilecount="8" columns="4">
  <image source="tiles.png" width="64" height="32"/>
  <tile id="4">
   <animation>
    <frame tileid="4" duration="250"/>
    <frame tileid="5" duration="250"/>
   </animation>
  </tile>
 </tileset>
 <layer id="1" name="ground" width="4" height="2" visible="1">
  <data encoding="csv">
1,2,0,3,
5,2147483649,1,1
</data>
 </layer>
 <layer id="2" name="paths" width="4" height="2" visible="0">
  <data encoding="csv">
0,0,0,0,
0,0,4,4
</data>
 </layer>
</map>
`

func farmFS() fstest.MapFS {
	return fstest.MapFS{
		"maps/farm.tmx": {Data: []byte(farmTMX)},
	}
}

func TestLoadTMXLayer(t *testing.T) {
	cache := newTestCache(t)
	cache.Placeholder("tiles", 64, 32, ColorWhite)

	l, err := LoadTMXLayer(farmFS(), "maps/farm.tmx", "", cache, "tiles")
	if err != nil {
		t.Fatalf("LoadTMXLayer: %v", err)
	}
	if got, want := l.Bounds(), (Rect{Width: 64, Height: 32}); got != want {
		t.Errorf("Bounds = %+v, want %+v", got, want)
	}
	tests := []struct {
		col, row int
		want     uint32
	}{
		{0, 0, 1},
		{1, 0, 2},
		{2, 0, 0},
		{3, 0, 3},
		{0, 1, 5},
		{1, 1, 1 | TileFlipH},
	}
	for _, tt := range tests {
		if got := l.Tile(tt.col, tt.row); got != tt.want {
			t.Errorf("Tile(%d, %d) = %#x, want %#x", tt.col, tt.row, got, tt.want)
		}
	}
	if !l.Visible {
		t.Error("ground layer should be visible")
	}
}

func TestLoadTMXLayerAnimations(t *testing.T) {
	cache := newTestCache(t)
	cache.Placeholder("tiles", 64, 32, ColorWhite)

	l, err := LoadTMXLayer(farmFS(), "maps/farm.tmx", "ground", cache, "tiles")
	if err != nil {
		t.Fatalf("LoadTMXLayer: %v", err)
	}
	frames, ok := l.anims[5]
	if !ok || len(frames) != 2 {
		t.Fatalf("animation for GID 5 = %v, want 2 frames", frames)
	}
	if frames[1].GID != 6 || frames[1].Duration != 250*time.Millisecond {
		t.Errorf("frame[1] = %+v, want GID 6 for 250ms", frames[1])
	}
}

func TestLoadTMXLayerByName(t *testing.T) {
	cache := newTestCache(t)
	cache.Placeholder("tiles", 64, 32, ColorWhite)

	l, err := LoadTMXLayer(farmFS(), "maps/farm.tmx", "paths", cache, "tiles")
	if err != nil {
		t.Fatalf("LoadTMXLayer: %v", err)
	}
	if l.Tile(2, 1) != 4 || l.Tile(0, 0) != 0 {
		t.Error("loaded the wrong layer")
	}
	if l.Visible {
		t.Error("hidden TMX layer should load hidden")
	}
}

func TestLoadTMXLayerUnknownLayer(t *testing.T) {
	cache := newTestCache(t)
	if _, err := LoadTMXLayer(farmFS(), "maps/farm.tmx", "water", cache, "tiles"); err == nil {
		t.Error("expected error for unknown layer")
	}
}

func TestLoadTMXLayerMissingFile(t *testing.T) {
	cache := newTestCache(t)
	if _, err := LoadTMXLayer(farmFS(), "maps/nope.tmx", "", cache, "tiles"); err == nil {
		t.Error("expected error for missing map")
	}
}

func TestLoadTMXLayerMissingTilesetTexture(t *testing.T) {
	cache := newTestCache(t)
	l, err := LoadTMXLayer(farmFS(), "maps/farm.tmx", "", cache, "tiles")
	if err != nil {
		t.Fatalf("LoadTMXLayer: %v", err)
	}
	if l.tileset == nil || !l.tileset.IsFallback() {
		t.Error("missing tileset should draw with the fallback texture")
	}
}

func TestTMXTilesetImage(t *testing.T) {
	got, err := TMXTilesetImage(farmFS(), "maps/farm.tmx")
	if err != nil {
		t.Fatalf("TMXTilesetImage: %v", err)
	}
	if got != "maps/tiles.png" {
		t.Errorf("path = %q, want maps/tiles.png", got)
	}
}
