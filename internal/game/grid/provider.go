package grid

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"

	"github.com/alienfall/tactics/internal/config"
)

// Provider supplies battle maps by id.
type Provider interface {
	Load(mapID string) (*Grid, error)
}

// yamlMap is the on-disk map layout: a gid tileset plus floor and wall layers.
type yamlMap struct {
	ID      string        `yaml:"id"`
	Width   int           `yaml:"width"`
	Height  int           `yaml:"height"`
	Tileset []yamlTileDef `yaml:"tileset"`
	Layers  struct {
		Floor [][]int `yaml:"floor"`
		Wall  [][]int `yaml:"wall"`
	} `yaml:"layers"`
}

type yamlTileDef struct {
	GID        int            `yaml:"gid"`
	Name       string         `yaml:"name"`
	Properties []yamlProperty `yaml:"properties"`
}

type yamlProperty struct {
	Name  string `yaml:"name"`
	Value string `yaml:"value"`
}

// YAMLProvider reads maps from <Dir>/<mapID>.yaml.
type YAMLProvider struct {
	Dir string
}

// Load reads and validates one map.
//
// Postcondition: returns a Grid or an error; malformed content is a
// *config.ConfigurationError.
func (p YAMLProvider) Load(mapID string) (*Grid, error) {
	path := filepath.Join(p.Dir, mapID+".yaml")
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading map %s: %w", path, err)
	}
	return LoadMapFromBytes(path, data)
}

// LoadMapFromBytes parses a map document. source names it in errors.
func LoadMapFromBytes(source string, data []byte) (*Grid, error) {
	var m yamlMap
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parsing map YAML %s: %w", source, err)
	}
	cfgErr := func(field, format string, args ...any) error {
		return &config.ConfigurationError{Source: source, Record: m.ID, Field: field, Reason: fmt.Sprintf(format, args...)}
	}
	if m.ID == "" {
		return nil, cfgErr("id", "must not be empty")
	}
	if m.Width <= 0 || m.Height <= 0 {
		return nil, cfgErr("size", "width and height must be positive, got %dx%d", m.Width, m.Height)
	}

	defs := make(map[int]yamlTileDef, len(m.Tileset))
	for _, d := range m.Tileset {
		if d.GID <= 0 {
			return nil, cfgErr("tileset", "gid must be positive, got %d", d.GID)
		}
		if _, dup := defs[d.GID]; dup {
			return nil, cfgErr("tileset", "duplicate gid %d", d.GID)
		}
		defs[d.GID] = d
	}

	g := New(m.ID, m.Width, m.Height)
	if err := checkLayer(m.Layers.Floor, m.Width, m.Height, true); err != nil {
		return nil, cfgErr("layers.floor", "%v", err)
	}
	if err := checkLayer(m.Layers.Wall, m.Width, m.Height, false); err != nil {
		return nil, cfgErr("layers.wall", "%v", err)
	}

	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			t := g.tile(Coord{x, y})
			t.Props = map[string]string{}
			if err := applyGID(t, m.Layers.Floor[y][x], defs, false); err != nil {
				return nil, cfgErr("layers.floor", "%v at %v", err, t.Coord)
			}
			if len(m.Layers.Wall) > 0 && m.Layers.Wall[y][x] != 0 {
				if err := applyGID(t, m.Layers.Wall[y][x], defs, true); err != nil {
					return nil, cfgErr("layers.wall", "%v at %v", err, t.Coord)
				}
			}
		}
	}
	return g, nil
}

func checkLayer(rows [][]int, w, h int, required bool) error {
	if len(rows) == 0 && !required {
		return nil
	}
	if len(rows) != h {
		return fmt.Errorf("expected %d rows, got %d", h, len(rows))
	}
	for i, r := range rows {
		if len(r) != w {
			return fmt.Errorf("row %d: expected %d columns, got %d", i, w, len(r))
		}
	}
	return nil
}

// applyGID layers a tileset entry onto t. gid 0 on the floor layer is void.
// Wall entries default to opaque, unwalkable full cover before their own
// properties apply.
func applyGID(t *Tile, gid int, defs map[int]yamlTileDef, wall bool) error {
	if gid == 0 {
		t.Terrain, t.Walkable = "void", false
		return nil
	}
	d, ok := defs[gid]
	if !ok {
		return fmt.Errorf("unknown gid %d", gid)
	}
	t.Terrain = d.Name
	if wall {
		t.Walkable, t.SightBlock, t.CoverValue = false, 100, 100
	}
	for _, p := range d.Properties {
		t.Props[p.Name] = p.Value
		if err := applyProperty(t, p); err != nil {
			return fmt.Errorf("gid %d property %s: %w", gid, p.Name, err)
		}
	}
	return nil
}

func applyProperty(t *Tile, p yamlProperty) error {
	switch p.Name {
	case "walkable":
		b, err := strconv.ParseBool(p.Value)
		if err != nil {
			return err
		}
		t.Walkable = b
	case "move_cost":
		return setInt(&t.MoveCost, p.Value, 1, 10)
	case "cover_value":
		return setInt(&t.CoverValue, p.Value, 0, 100)
	case "sight_block":
		return setInt(&t.SightBlock, p.Value, 0, 100)
	case "vision_penalty":
		return setInt(&t.VisionPenalty, p.Value, 0, 100)
	case "terrain":
		t.Terrain = p.Value
	case "object":
		t.Object = p.Value
	}
	return nil
}

func setInt(dst *int, raw string, lo, hi int) error {
	n, err := strconv.Atoi(raw)
	if err != nil {
		return err
	}
	if n < lo || n > hi {
		return fmt.Errorf("%d outside [%d, %d]", n, lo, hi)
	}
	*dst = n
	return nil
}
