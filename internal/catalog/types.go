package catalog

import (
	"errors"
	"fmt"
)

// FirmwareKind distinguishes interface firmware from bootloaders.
type FirmwareKind int

const (
	KindInterface FirmwareKind = iota + 1
	KindBootloader
)

// String returns a lower case name for the kind.
func (k FirmwareKind) String() string {
	switch k {
	case KindInterface:
		return "interface"
	case KindBootloader:
		return "bootloader"
	default:
		return "unknown"
	}
}

// Firmware describes one built interface or bootloader image.
type Firmware struct {
	// Name is unique within a bundle, e.g. "k20dx_k22f_if".
	Name string
	Kind FirmwareKind
	// HDKID is the hardware family this image runs on.
	HDKID HDKID
	// BoardID is only meaningful when HasBoardID is set.
	BoardID    BoardID
	HasBoardID bool
	HexPath    string
	BinPath    string
}

// Validate checks the fields every firmware must carry. A hex image is
// required since the drive loader only programs .hex files.
func (f Firmware) Validate() error {
	var errs []error
	if f.Name == "" {
		errs = append(errs, errors.New("firmware name is empty"))
	}
	if f.Kind != KindInterface && f.Kind != KindBootloader {
		errs = append(errs, fmt.Errorf("firmware %q has unsupported kind %d", f.Name, f.Kind))
	}
	if f.HexPath == "" {
		errs = append(errs, fmt.Errorf("firmware %q has no .hex image", f.Name))
	}
	return errors.Join(errs...)
}

// FirmwareBundle is a set of firmware produced by one build or release.
// BuildSHA and BuildLocalMods are reporting metadata only.
type FirmwareBundle interface {
	FirmwareList() []Firmware
	// BuildSHA is the git revision the bundle was built at, or "".
	BuildSHA() string
	// BuildLocalMods is true if the build had uncommitted changes.
	BuildLocalMods() bool
}

// Board describes one attached device as seen at enumeration time.
type Board struct {
	Name       string  `yaml:"name"`
	UniqueID   string  `yaml:"uniqueId"`
	BoardID    BoardID `yaml:"boardId"`
	HDKID      HDKID   `yaml:"hdkId"`
	MountPoint string  `yaml:"mountPoint"`
	SerialPort string  `yaml:"serialPort,omitempty"`
	// Capability flags for the USB endpoints the hardware exposes.
	MSD bool `yaml:"msd"`
	CDC bool `yaml:"cdc"`
	HID bool `yaml:"hid"`
}

// Target is a known-good payload used to exercise a board's endpoints.
type Target struct {
	Name    string
	BoardID BoardID
	HexPath string
	BinPath string
}

// Valid reports whether both image formats are present.
func (t Target) Valid() bool {
	return t.HexPath != "" && t.BinPath != ""
}
