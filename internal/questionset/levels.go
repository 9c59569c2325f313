package questionset

import (
	_ "embed"
	"fmt"
	"log/slog"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed levels.yaml
var defaultLevels []byte

// LevelTable maps a skill and part to the CEFR level of its question sets.
type LevelTable struct {
	levels map[Skill]map[int]Level
}

// DefaultLevels returns the built-in level table.
func DefaultLevels() *LevelTable {
	t, err := ParseLevels(defaultLevels)
	if err != nil {
		panic(fmt.Sprintf("embedded level table: %v", err))
	}
	return t
}

// LoadLevels reads a level table from a YAML file. An empty path yields the
// built-in table.
func LoadLevels(path string) (*LevelTable, error) {
	if path == "" {
		return DefaultLevels(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading level table: %w", err)
	}
	t, err := ParseLevels(data)
	if err != nil {
		return nil, err
	}
	slog.Info("level table loaded", "path", path)
	return t, nil
}

// ParseLevels decodes a YAML level table of the form
//
//	reading:
//	  1: A2
func ParseLevels(data []byte) (*LevelTable, error) {
	var raw map[string]map[int]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing level table: %w", err)
	}

	t := &LevelTable{levels: make(map[Skill]map[int]Level)}
	for skillName, parts := range raw {
		skill, err := ParseSkill(skillName)
		if err != nil {
			return nil, fmt.Errorf("level table: %w", err)
		}
		t.levels[skill] = make(map[int]Level, len(parts))
		for part, name := range parts {
			if !ValidPart(part) {
				return nil, fmt.Errorf("level table: %s part %d out of range", skill, part)
			}
			level := Level(name)
			if !level.Valid() {
				return nil, fmt.Errorf("level table: %s part %d has unknown level %q", skill, part, name)
			}
			t.levels[skill][part] = level
		}
	}
	return t, nil
}

// Level returns the level for skill and part.
func (t *LevelTable) Level(skill Skill, part int) (Level, error) {
	level, ok := t.levels[skill][part]
	if !ok {
		return "", fmt.Errorf("no level configured for %s part %d", skill, part)
	}
	return level, nil
}
