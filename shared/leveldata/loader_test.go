package leveldata

import (
	"testing"
	"testing/fstest"
)

const testTMX = `<?xml version="1.0" encoding="UTF-8"?>
<map version="1.10" tiledversion="1.10.2" orientation="orthogonal" renderorder="right-down" width="4" height="3" tilewidth="16" tileheight="16" infinite="0" nextlayerid="3" nextobjectid="3">
 <tileset firstgid="1" name="walls" tilewidth="16" tileheight="16" tilecount="1" columns="1"/>
 <layer id="1" name="colliders" width="4" height="3">
  <data encoding="csv">
1,1,1,1,
0,0,0,1,
1,1,1,1
</data>
 </layer>
 <objectgroup id="2" name="Targets">
  <object id="1" name="dummy" x="32" y="16" width="8" height="8"/>
  <object id="2" x="4" y="20" width="6" height="6"/>
 </objectgroup>
</map>
`

func TestLoadArena(t *testing.T) {
	fsys := fstest.MapFS{
		"arenas/pit.tmx": {Data: []byte(testTMX)},
	}

	data, err := LoadArena(fsys, "arenas/pit.tmx")
	if err != nil {
		t.Fatalf("LoadArena: %v", err)
	}

	if data.Width != 64 || data.Height != 48 {
		t.Fatalf("size = %dx%d, want 64x48", data.Width, data.Height)
	}
	if len(data.Solids) != 9 {
		t.Fatalf("got %d solids, want 9", len(data.Solids))
	}
	// Row 1 only has the right-most tile.
	found := false
	for _, r := range data.Solids {
		if r.Y == 16 {
			if r.X != 48 {
				t.Fatalf("unexpected solid in middle row at x=%v", r.X)
			}
			found = true
		}
	}
	if !found {
		t.Fatal("missing middle-row solid")
	}

	if len(data.Targets) != 2 {
		t.Fatalf("got %d targets, want 2", len(data.Targets))
	}
	if data.Targets[0].Name != "dummy" || data.Targets[0].W != 8 {
		t.Fatalf("targets[0] = %+v", data.Targets[0])
	}
	if data.Targets[1].Name != "target-2" {
		t.Fatalf("unnamed target got %q", data.Targets[1].Name)
	}
}

func TestLoadAllArenas(t *testing.T) {
	fsys := fstest.MapFS{
		"arenas/b.tmx": {Data: []byte(testTMX)},
		"arenas/a.tmx": {Data: []byte(testTMX)},
	}
	arenas, names, err := LoadAllArenas(fsys, "arenas")
	if err != nil {
		t.Fatal(err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("names = %v", names)
	}
	if arenas["a"] == nil || arenas["b"] == nil {
		t.Fatal("missing arena")
	}

	if _, _, err := LoadAllArenas(fstest.MapFS{}, "arenas"); err == nil {
		t.Fatal("expected error for empty dir")
	}
}

func TestBox(t *testing.T) {
	b := Box(100, 50, 4)
	if len(b.Solids) != 4 || b.Width != 100 || b.Height != 50 {
		t.Fatalf("Box = %+v", b)
	}
}
