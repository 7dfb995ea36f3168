package catalog

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"dapcheck/pkg/logging"

	"gopkg.in/yaml.v3"
)

// buildInfoFile is the optional metadata file written next to a release.
const buildInfoFile = "build.yaml"

type buildInfo struct {
	GitSHA    string `yaml:"gitSha"`
	LocalMods bool   `yaml:"localMods"`
}

// ReleaseBundle is a FirmwareBundle read from a directory of pre-built
// images named after their project, e.g. k20dx_k22f_if.hex.
type ReleaseBundle struct {
	firmware  []Firmware
	sha       string
	localMods bool
}

var _ FirmwareBundle = (*ReleaseBundle)(nil)

// LoadReleaseBundle reads every <name>.hex / <name>.bin in dir. Names that
// do not follow the project naming scheme, or whose HDK is unknown to table,
// are skipped with a warning, as is firmware shipped without a .hex image.
// Interface firmware without a board id in table is kept; it can only be
// matched through its bootloader.
func LoadReleaseBundle(dir string, table *IDTable) (*ReleaseBundle, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read firmware directory %s: %w", dir, err)
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve firmware directory %s: %w", dir, err)
	}

	bundle := &ReleaseBundle{}
	if err := bundle.loadBuildInfo(filepath.Join(absDir, buildInfoFile)); err != nil {
		return nil, err
	}

	var order []string
	byName := make(map[string]*Firmware)
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(entry.Name()))
		if ext != ".hex" && ext != ".bin" {
			continue
		}
		name := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		fw, ok := byName[name]
		if !ok {
			kind, hdkName, err := ParseFirmwareName(name)
			if err != nil {
				logging.Warn("Catalog", "Skipping %s: %v", entry.Name(), err)
				continue
			}
			hdkID, known := table.HDK(hdkName)
			if !known {
				logging.Warn("Catalog", "Skipping %s: unknown HDK %q", entry.Name(), hdkName)
				continue
			}
			fw = &Firmware{Name: name, Kind: kind, HDKID: hdkID}
			if kind == KindInterface {
				fw.BoardID, fw.HasBoardID = table.FirmwareBoard(name)
				if !fw.HasBoardID {
					logging.Info("Catalog", "Firmware %s has no board id", name)
				}
			}
			byName[name] = fw
			order = append(order, name)
		}
		path := filepath.Join(absDir, entry.Name())
		if ext == ".hex" {
			fw.HexPath = path
		} else {
			fw.BinPath = path
		}
	}

	for _, name := range order {
		fw := byName[name]
		if err := fw.Validate(); err != nil {
			logging.Warn("Catalog", "Skipping firmware %s: %v", name, err)
			continue
		}
		bundle.firmware = append(bundle.firmware, *fw)
	}
	logging.Info("Catalog", "Loaded %d firmware images from %s", len(bundle.firmware), absDir)
	return bundle, nil
}

func (b *ReleaseBundle) loadBuildInfo(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	var info buildInfo
	if err := yaml.Unmarshal(data, &info); err != nil {
		return fmt.Errorf("error parsing %s: %w", path, err)
	}
	b.sha = info.GitSHA
	b.localMods = info.LocalMods
	return nil
}

// FirmwareList returns a copy of the firmware in directory order.
func (b *ReleaseBundle) FirmwareList() []Firmware {
	out := make([]Firmware, len(b.firmware))
	copy(out, b.firmware)
	return out
}

// BuildSHA implements FirmwareBundle.
func (b *ReleaseBundle) BuildSHA() string {
	return b.sha
}

// BuildLocalMods implements FirmwareBundle.
func (b *ReleaseBundle) BuildLocalMods() bool {
	return b.localMods
}
