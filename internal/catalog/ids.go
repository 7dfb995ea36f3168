package catalog

import (
	"fmt"
	"regexp"
	"strconv"

	"gopkg.in/yaml.v3"
)

// HDKID identifies a hardware/microcontroller family. Bootloaders and
// interface firmware are only compatible with boards of the same HDK.
type HDKID uint32

// String formats the id the way details.txt and the reports show it.
func (h HDKID) String() string {
	return fmt.Sprintf("0x%08x", uint32(h))
}

// UnmarshalYAML accepts plain integers as well as "0x" prefixed strings.
func (h *HDKID) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 32)
	if err != nil {
		return fmt.Errorf("invalid hdk id %q: %w", node.Value, err)
	}
	*h = HDKID(v)
	return nil
}

// MarshalYAML writes the hex form.
func (h HDKID) MarshalYAML() (interface{}, error) {
	return h.String(), nil
}

// BoardID identifies a product/board variant. It is narrower than HDKID.
type BoardID uint16

// String formats the id as four hex digits.
func (b BoardID) String() string {
	return fmt.Sprintf("0x%04x", uint16(b))
}

// UnmarshalYAML accepts plain integers as well as "0x" prefixed strings.
func (b *BoardID) UnmarshalYAML(node *yaml.Node) error {
	v, err := strconv.ParseUint(node.Value, 0, 16)
	if err != nil {
		return fmt.Errorf("invalid board id %q: %w", node.Value, err)
	}
	*b = BoardID(v)
	return nil
}

// MarshalYAML writes the hex form.
func (b BoardID) MarshalYAML() (interface{}, error) {
	return b.String(), nil
}

// ParseBoardID parses the first four hex digits of a DAPLink unique id.
func ParseBoardID(uniqueID string) (BoardID, error) {
	if len(uniqueID) < 4 {
		return 0, fmt.Errorf("unique id %q too short", uniqueID)
	}
	v, err := strconv.ParseUint(uniqueID[:4], 16, 16)
	if err != nil {
		return 0, fmt.Errorf("unique id %q: %w", uniqueID, err)
	}
	return BoardID(v), nil
}

// IDTable maps the names used by bundles to hardware identities. It is
// built once and never mutated; copies are handed out by the accessors.
type IDTable struct {
	hdkByName     map[string]HDKID
	boardByFwName map[string]BoardID
	boardByTarget map[string]BoardID
}

// IDTableSpec is the serializable form of an IDTable.
type IDTableSpec struct {
	HDKs     map[string]HDKID   `yaml:"hdks"`
	Firmware map[string]BoardID `yaml:"firmware"`
	Targets  map[string]BoardID `yaml:"targets"`
}

// NewIDTable builds an immutable table from spec.
func NewIDTable(spec IDTableSpec) *IDTable {
	t := &IDTable{
		hdkByName:     make(map[string]HDKID, len(spec.HDKs)),
		boardByFwName: make(map[string]BoardID, len(spec.Firmware)),
		boardByTarget: make(map[string]BoardID, len(spec.Targets)),
	}
	for k, v := range spec.HDKs {
		t.hdkByName[k] = v
	}
	for k, v := range spec.Firmware {
		t.boardByFwName[k] = v
	}
	for k, v := range spec.Targets {
		t.boardByTarget[k] = v
	}
	return t
}

// DefaultIDTableSpec returns the identities of the boards supported out of the box.
func DefaultIDTableSpec() IDTableSpec {
	return IDTableSpec{
		HDKs: map[string]HDKID{
			"k20dx":    0x646c0000,
			"kl26z":    0x646c0001,
			"lpc11u35": 0x646c0002,
			"sam3u2c":  0x646c0003,
		},
		Firmware: map[string]BoardID{
			"k20dx_k22f_if":           0x0231,
			"k20dx_k64f_if":           0x0240,
			"kl26z_microbit_if":       0x9900,
			"kl26z_nrf51822_if":       0x9900,
			"lpc11u35_lpc812_if":      0x1050,
			"lpc11u35_lpc1114_if":     0x1114,
			"lpc11u35_efm32gg_stk_if": 0x2015,
			"sam3u2c_nrf51822_if":     0x1100,
		},
		Targets: map[string]BoardID{
			"FRDM-K22F":       0x0231,
			"NXP-LPC800-MAX":  0x1050,
			"FRDM-K64F":       0x0240,
			"Microbit":        0x9900,
			"Nordic-nRF51-DK": 0x1100,
		},
	}
}

// DefaultIDTable returns NewIDTable(DefaultIDTableSpec()).
func DefaultIDTable() *IDTable {
	return NewIDTable(DefaultIDTableSpec())
}

// HDK looks up an HDK id by name (e.g. "k20dx").
func (t *IDTable) HDK(name string) (HDKID, bool) {
	v, ok := t.hdkByName[name]
	return v, ok
}

// FirmwareBoard looks up the board id hard coded for a firmware name.
func (t *IDTable) FirmwareBoard(name string) (BoardID, bool) {
	v, ok := t.boardByFwName[name]
	return v, ok
}

// TargetBoard looks up the board id of a target image name.
func (t *IDTable) TargetBoard(name string) (BoardID, bool) {
	v, ok := t.boardByTarget[name]
	return v, ok
}

var (
	interfaceNameExp  = regexp.MustCompile(`^([a-z0-9]+)_([a-z0-9_]+)_if$`)
	bootloaderNameExp = regexp.MustCompile(`^([a-z0-9]+)_bl$`)
)

// ParseFirmwareName splits a firmware project name into its kind and HDK
// name. Interface firmware is named <hdk>_<board>_if, bootloaders <hdk>_bl.
func ParseFirmwareName(name string) (FirmwareKind, string, error) {
	if m := interfaceNameExp.FindStringSubmatch(name); m != nil {
		return KindInterface, m[1], nil
	}
	if m := bootloaderNameExp.FindStringSubmatch(name); m != nil {
		return KindBootloader, m[1], nil
	}
	return 0, "", fmt.Errorf("invalid firmware name %q", name)
}
