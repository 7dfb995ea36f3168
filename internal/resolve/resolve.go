// Package resolve turns the firmware, board and target catalogs into an
// ordered list of runnable test configurations.
package resolve

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"dapcheck/internal/catalog"
	"dapcheck/internal/testinfo"
	"dapcheck/pkg/logging"
)

// Policy controls how strictly the catalogs are matched.
type Policy struct {
	// FirstBoardOnly keeps only the first board of each board id.
	FirstBoardOnly bool
	// FirmwareFilter restricts the interface firmware considered. A nil
	// filter means every interface firmware is considered.
	FirmwareFilter []string
	// TargetRequired routes firmware without a target to the untested list.
	TargetRequired bool
	// BootloaderRequired routes firmware without a bootloader to the
	// untested list.
	BootloaderRequired bool
	// StrictHDK turns firmware/board and firmware/bootloader HDK mismatches
	// into errors instead of warnings.
	StrictHDK bool
}

// Reason says why a firmware could not be tested.
type Reason int

const (
	ReasonNoBoard Reason = iota + 1
	ReasonNoTarget
	ReasonNoBootloader
)

// String returns a short human readable reason.
func (r Reason) String() string {
	switch r {
	case ReasonNoBoard:
		return "no board"
	case ReasonNoTarget:
		return "no target"
	case ReasonNoBootloader:
		return "no bootloader"
	default:
		return "unknown"
	}
}

// Untested is an interface firmware for which no configuration exists.
type Untested struct {
	Firmware catalog.Firmware
	Reason   Reason
}

// Configuration is one runnable (firmware, bootloader, board, target) tuple.
// Board and IFFirmware are always set; BLFirmware and Target may be nil.
type Configuration struct {
	Name       string
	Board      catalog.Board
	IFFirmware catalog.Firmware
	BLFirmware *catalog.Firmware
	Target     *catalog.Target
}

// String summarizes the configuration on one line.
func (c Configuration) String() string {
	bl := "<None>"
	if c.BLFirmware != nil {
		bl = c.BLFirmware.Name
	}
	target := "<None>"
	if c.Target != nil {
		target = c.Target.Name
	}
	return fmt.Sprintf("APP=%s BL=%s Board=%s Target=%s", c.IFFirmware.Name, bl, c.Board.Name, target)
}

// Plan is the result of a successful resolution.
type Plan struct {
	Configurations []Configuration
	Untested       []Untested
}

// Resolve matches interface firmware to boards, bootloaders and targets.
//
// Output order follows input order only: firmware order first, then board
// order, so identical catalogs always give identical plans. Configuration
// errors (unknown filtered firmware, duplicate bootloader or target) are
// returned together and no plan is produced. Coverage gaps are not errors;
// the firmware ends up in Plan.Untested.
//
// log receives info and warning entries and may be nil.
func Resolve(firmware []catalog.Firmware, boards []catalog.Board, targets []catalog.Target, policy Policy, log *testinfo.TestInfo) (*Plan, error) {
	if log == nil {
		log = testinfo.New("resolve")
	}

	var errs []error

	// Split firmware by kind and apply the filter to interfaces.
	var filter map[string]bool
	if policy.FirmwareFilter != nil {
		filter = make(map[string]bool, len(policy.FirmwareFilter))
		for _, name := range policy.FirmwareFilter {
			filter[name] = true
		}
	}
	seenNames := make(map[string]bool, len(firmware))
	var bootloaders, interfaces []catalog.Firmware
	for _, fw := range firmware {
		if seenNames[fw.Name] {
			errs = append(errs, newError(ErrDuplicateFirmware, "%q", fw.Name))
			continue
		}
		seenNames[fw.Name] = true

		switch fw.Kind {
		case catalog.KindBootloader:
			bootloaders = append(bootloaders, fw)
		case catalog.KindInterface:
			if filter == nil || filter[fw.Name] {
				interfaces = append(interfaces, fw)
			}
		default:
			errs = append(errs, newError(ErrUnsupportedKind, "%q has kind %s", fw.Name, fw.Kind))
		}
	}
	if filter != nil {
		if missing := missingFromFilter(filter, interfaces); len(missing) > 0 {
			errs = append(errs, newError(ErrUnknownFirmware, "%s", strings.Join(missing, ", ")))
		}
	}

	// Group boards by board id, keeping input order within each group.
	boardsByID := make(map[catalog.BoardID][]catalog.Board)
	for _, board := range boards {
		group := boardsByID[board.BoardID]
		if policy.FirstBoardOnly && len(group) >= 1 {
			log.Info("Ignoring extra boards of type %s", board.BoardID)
			continue
		}
		boardsByID[board.BoardID] = append(group, board)
	}

	bootloaderByHDK := make(map[catalog.HDKID]catalog.Firmware)
	for _, bl := range bootloaders {
		if prev, dup := bootloaderByHDK[bl.HDKID]; dup {
			errs = append(errs, newError(ErrDuplicateBootloader, "%s and %s both target HDK %s", prev.Name, bl.Name, bl.HDKID))
			continue
		}
		bootloaderByHDK[bl.HDKID] = bl
	}

	targetByBoard := make(map[catalog.BoardID]catalog.Target)
	for _, target := range targets {
		if prev, dup := targetByBoard[target.BoardID]; dup {
			errs = append(errs, newError(ErrDuplicateTarget, "%s and %s both target board id %s", prev.Name, target.Name, target.BoardID))
			continue
		}
		targetByBoard[target.BoardID] = target
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	plan := &Plan{
		Configurations: []Configuration{},
		Untested:       []Untested{},
	}
	for _, fw := range interfaces {
		group, haveBoard := boardsByID[fw.BoardID]
		if !fw.HasBoardID || !haveBoard {
			plan.Untested = append(plan.Untested, Untested{Firmware: fw, Reason: ReasonNoBoard})
			log.Info("No board to test firmware %s", fw.Name)
			continue
		}

		var target *catalog.Target
		if t, ok := targetByBoard[fw.BoardID]; ok {
			target = &t
		} else if policy.TargetRequired {
			plan.Untested = append(plan.Untested, Untested{Firmware: fw, Reason: ReasonNoTarget})
			log.Info("No target to test firmware %s", fw.Name)
			continue
		}

		var bootloader *catalog.Firmware
		if bl, ok := bootloaderByHDK[fw.HDKID]; ok {
			bootloader = &bl
		} else if policy.BootloaderRequired {
			plan.Untested = append(plan.Untested, Untested{Firmware: fw, Reason: ReasonNoBootloader})
			log.Info("No bootloader to test firmware %s", fw.Name)
			continue
		}

		for _, board := range group {
			if fw.HDKID != board.HDKID {
				if policy.StrictHDK {
					errs = append(errs, newError(ErrHDKMismatch, "firmware %s HDK %s != board %s HDK %s", fw.Name, fw.HDKID, board.Name, board.HDKID))
					continue
				}
				log.Warning("FW HDK ID %s != Board HDK ID %s", fw.HDKID, board.HDKID)
			}
			if bootloader != nil && fw.HDKID != bootloader.HDKID {
				if policy.StrictHDK {
					errs = append(errs, newError(ErrHDKMismatch, "firmware %s HDK %s != bootloader %s HDK %s", fw.Name, fw.HDKID, bootloader.Name, bootloader.HDKID))
					continue
				}
				log.Warning("FW HDK ID %s != BL HDK ID %s", fw.HDKID, bootloader.HDKID)
			}
			if target != nil && target.BoardID != fw.BoardID {
				errs = append(errs, newError(ErrTargetMismatch, "target %s board id %s, firmware %s board id %s", target.Name, target.BoardID, fw.Name, fw.BoardID))
				continue
			}

			plan.Configurations = append(plan.Configurations, Configuration{
				Name:       fw.Name + " " + board.Name,
				Board:      board,
				IFFirmware: fw,
				BLFirmware: bootloader,
				Target:     target,
			})
		}
	}

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	logging.Debug("Resolve", "Resolved %d configurations, %d firmware untested", len(plan.Configurations), len(plan.Untested))
	return plan, nil
}

func missingFromFilter(filter map[string]bool, interfaces []catalog.Firmware) []string {
	found := make(map[string]bool, len(interfaces))
	for _, fw := range interfaces {
		found[fw.Name] = true
	}
	var missing []string
	for name := range filter {
		if !found[name] {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}
