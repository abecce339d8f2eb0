package meadow

import (
	"errors"
	"fmt"
	"io/fs"
	"path"
	"time"

	"github.com/lafriks/go-tiled"
)

// LoadTMXLayer reads the orthogonal TMX map at mapPath from fsys and builds
// a TileLayer from the tile layer named layerName (the first tile layer
// when layerName is empty). All tiles must come from a single tileset whose
// image is cached in textures under tilesetKey. Tile animations carry
// over.
func LoadTMXLayer(fsys fs.FS, mapPath, layerName string, textures *TextureCache, tilesetKey string) (*TileLayer, error) {
	m, err := tiled.LoadFile(mapPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return nil, fmt.Errorf("meadow: load tmx %s: %w", mapPath, err)
	}

	var layer *tiled.Layer
	for _, l := range m.Layers {
		if layerName == "" || l.Name == layerName {
			layer = l
			break
		}
	}
	if layer == nil {
		return nil, fmt.Errorf("meadow: tmx %s has no tile layer %q", mapPath, layerName)
	}
	if len(m.Tilesets) == 0 {
		return nil, errors.New("meadow: tmx " + mapPath + " has no tileset")
	}
	ts := m.Tilesets[0]
	if len(m.Tilesets) > 1 {
		for _, t := range layer.Tiles {
			if !t.IsNil() && t.Tileset != ts {
				return nil, fmt.Errorf("meadow: tmx layer %q uses more than one tileset", layer.Name)
			}
		}
	}

	// A tileset that was never loaded draws as the missing-asset texture.
	tex, ok := textures.Get(tilesetKey)
	if !ok {
		tex = textures.Fallback(tilesetKey)
	}

	data := make([]uint32, m.Width*m.Height)
	for i, t := range layer.Tiles {
		if i >= len(data) || t.IsNil() {
			continue
		}
		gid := ts.FirstGID + t.ID
		if t.HorizontalFlip {
			gid |= TileFlipH
		}
		if t.VerticalFlip {
			gid |= TileFlipV
		}
		if t.DiagonalFlip {
			gid |= TileFlipD
		}
		data[i] = gid
	}

	regions := TilesetRegions(tex.Width(), tex.Height(), ts.TileWidth, ts.TileHeight, ts.Margin, ts.Spacing, ts.FirstGID)
	tl := NewTileLayer(m.Width, m.Height, m.TileWidth, m.TileHeight, data, tex, regions)
	tl.Visible = layer.Visible

	anims := make(map[uint32][]AnimFrame)
	for _, tt := range ts.Tiles {
		if len(tt.Animation) == 0 {
			continue
		}
		frames := make([]AnimFrame, 0, len(tt.Animation))
		for _, f := range tt.Animation {
			frames = append(frames, AnimFrame{
				GID:      ts.FirstGID + f.TileID,
				Duration: time.Duration(f.Duration) * time.Millisecond,
			})
		}
		anims[ts.FirstGID+tt.ID] = frames
	}
	if len(anims) > 0 {
		tl.SetAnimations(anims)
	}
	return tl, nil
}

// TMXTilesetImage returns the path, relative to fsys, of the image used by
// the first tileset of the TMX map at mapPath. Hosts preload it as a
// texture before calling LoadTMXLayer.
func TMXTilesetImage(fsys fs.FS, mapPath string) (string, error) {
	m, err := tiled.LoadFile(mapPath, tiled.WithFileSystem(fsys))
	if err != nil {
		return "", fmt.Errorf("meadow: load tmx %s: %w", mapPath, err)
	}
	if len(m.Tilesets) == 0 || m.Tilesets[0].Image == nil {
		return "", errors.New("meadow: tmx " + mapPath + " has no tileset image")
	}
	return path.Join(path.Dir(mapPath), m.Tilesets[0].Image.Source), nil
}
