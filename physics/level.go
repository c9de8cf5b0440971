package physics

import (
	"fmt"
	"log"
	"os"

	"github.com/automoto/boomsync/shared/leveldata"
)

const (
	levelsDir = "levels"

	defaultArenaW         = 1280
	defaultArenaH         = 720
	defaultArenaThickness = 32
)

// LoadArena builds the collision arena for level from assetsDir. An empty
// level gives a walled box.
func LoadArena(assetsDir, level string) (*Arena, error) {
	if level == "" {
		log.Printf("[level] no level given, using a %dx%d box", defaultArenaW, defaultArenaH)
		return NewArena(leveldata.Box(defaultArenaW, defaultArenaH, defaultArenaThickness)), nil
	}

	arenas, names, err := LoadAllArenas(assetsDir)
	if err != nil {
		return nil, err
	}
	arena, ok := arenas[level]
	if !ok {
		return nil, fmt.Errorf("level %q not found (have %v)", level, names)
	}
	return arena, nil
}

// LoadAllArenas loads every .tmx level under assetsDir, keyed by stem name,
// plus the sorted name list.
func LoadAllArenas(assetsDir string) (map[string]*Arena, []string, error) {
	data, names, err := leveldata.LoadAllArenas(os.DirFS(assetsDir), levelsDir)
	if err != nil {
		return nil, nil, fmt.Errorf("load all arenas: %w", err)
	}

	arenas := make(map[string]*Arena, len(names))
	for _, name := range names {
		arenas[name] = NewArena(data[name])
	}
	return arenas, names, nil
}
