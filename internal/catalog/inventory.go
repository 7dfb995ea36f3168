package catalog

import (
	"fmt"
	"os"
	"strings"

	"dapcheck/pkg/logging"

	"gopkg.in/yaml.v3"
)

// boardInventory is the on-disk format listing attached boards.
type boardInventory struct {
	Boards []Board `yaml:"boards"`
}

// LoadBoardInventory reads the boards listed in a yaml inventory file.
// When a board has no boardId its first four unique id digits are used.
// Board names end up in result file names, so path separators are rejected.
func LoadBoardInventory(path string) ([]Board, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read board inventory %s: %w", path, err)
	}
	var inv boardInventory
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return nil, fmt.Errorf("error parsing board inventory %s: %w", path, err)
	}

	for i := range inv.Boards {
		b := &inv.Boards[i]
		if b.BoardID == 0 && b.UniqueID != "" {
			id, err := ParseBoardID(b.UniqueID)
			if err != nil {
				return nil, fmt.Errorf("board %d in %s: %w", i, path, err)
			}
			b.BoardID = id
		}
		if b.Name == "" {
			b.Name = b.UniqueID
		}
		if b.Name == "" {
			return nil, fmt.Errorf("board %d in %s has neither name nor uniqueId", i, path)
		}
		if strings.ContainsAny(b.Name, `/\`) {
			return nil, fmt.Errorf("board %d in %s: name %q must not contain a path separator", i, path, b.Name)
		}
	}
	logging.Info("Catalog", "Loaded %d boards from %s", len(inv.Boards), path)
	return inv.Boards, nil
}
