package catalog

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dapcheck/pkg/logging"
)

// TargetBundle is the set of valid targets found in a directory.
type TargetBundle struct {
	dir     string
	targets []Target
}

// LoadTargetBundle scans dir for target images. Each target is a
// <name>.hex / <name>.bin pair whose name is known to table. Targets with
// only one of the two files, or with an unknown name, are left out.
func LoadTargetBundle(dir string, table *IDTable) (*TargetBundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read target directory %s: %w", dir, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve target directory %s: %w", dir, err)
	}

	// os.ReadDir sorts by file name, so order here is stable across runs.
	var order []string
	byName := make(map[string]*Target)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".hex" && ext != ".bin" {
			continue
		}
		base := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		target, ok := byName[base]
		if !ok {
			target = &Target{Name: base}
			byName[base] = target
			order = append(order, base)
		}
		path := filepath.Join(absDir, entry.Name())
		if ext == ".hex" {
			target.HexPath = path
		} else {
			target.BinPath = path
		}
	}

	bundle := &TargetBundle{dir: absDir}
	for _, name := range order {
		target := byName[name]
		boardID, known := table.TargetBoard(name)
		if !known {
			logging.Debug("Catalog", "Ignoring target %s: no board id known for this name", name)
			continue
		}
		target.BoardID = boardID
		if !target.Valid() {
			logging.Warn("Catalog", "Ignoring target %s: both .hex and .bin are required", name)
			continue
		}
		bundle.targets = append(bundle.targets, *target)
	}
	logging.Info("Catalog", "Loaded %d targets from %s", len(bundle.targets), absDir)
	return bundle, nil
}

// Dir is the absolute directory the bundle was loaded from.
func (b *TargetBundle) Dir() string {
	return b.dir
}

// TargetList returns a copy of the valid targets in directory order.
func (b *TargetBundle) TargetList() []Target {
	out := make([]Target, len(b.targets))
	copy(out, b.targets)
	return out
}
