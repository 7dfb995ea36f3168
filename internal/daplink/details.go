package daplink

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"dapcheck/internal/testinfo"
)

// Keys found in details.txt.
const (
	KeyUniqueID          = "unique_id"
	KeyHDKID             = "hdk_id"
	KeyMode              = "daplink_mode"
	KeyBootloaderVersion = "bootloader_version"
	KeyInterfaceVersion  = "interface_version"
	KeyGitSHA            = "git_sha"
	KeyLocalMods         = "local_mods"
	KeyUSBInterfaces     = "usb_interfaces"
	KeyBootloaderCRC     = "bootloader_crc"
	KeyInterfaceCRC      = "interface_crc"
)

// Well known files on the drive.
const (
	DetailsFile    = "details.txt"
	FailFile       = "FAIL.TXT"
	AssertFile     = "assert.txt"
	StartBLFile    = "START_BL.CFG"
	StartIFFile    = "START_IF.CFG"
	bootloaderPage = "HELP_FAQ.HTM"
	interfacePage  = "MBED.HTM"
)

// Mode is the firmware currently running on the board.
type Mode string

const (
	ModeInterface  Mode = "interface"
	ModeBootloader Mode = "bootloader"
)

var errUnknownMode = errors.New("could not determine board mode")

// DetectMode works out the board mode from details.txt, or from the landing
// page present on drives without a daplink_mode entry.
func DetectMode(mountPoint string, details map[string]string) (Mode, error) {
	if value, ok := details[KeyMode]; ok {
		switch Mode(value) {
		case ModeInterface, ModeBootloader:
			return Mode(value), nil
		default:
			return "", fmt.Errorf("%w: details.txt reports %q", errUnknownMode, value)
		}
	}
	if isFile(filepath.Join(mountPoint, bootloaderPage)) {
		return ModeBootloader, nil
	}
	if isFile(filepath.Join(mountPoint, interfacePage)) {
		return ModeInterface, nil
	}
	return "", errUnknownMode
}

type keyFormat struct {
	key     string
	pattern *regexp.Regexp
}

var requiredDetails = []keyFormat{
	{KeyUniqueID, regexp.MustCompile(`^[a-f0-9]{48}$`)},
	{KeyHDKID, regexp.MustCompile(`^[a-f0-9]{8}$`)},
	{KeyGitSHA, regexp.MustCompile(`^[a-f0-9]{40}$`)},
	{KeyLocalMods, regexp.MustCompile(`^[01]{1}$`)},
	{KeyUSBInterfaces, regexp.MustCompile(`^.+$`)},
	{KeyMode, regexp.MustCompile(`(interface|bootloader)`)},
}

var optionalDetails = []keyFormat{
	{KeyBootloaderVersion, regexp.MustCompile(`^[0-9]{4}$`)},
	{KeyInterfaceVersion, regexp.MustCompile(`^[0-9]{4}$`)},
	{KeyBootloaderCRC, regexp.MustCompile(`^0x[a-f0-9]{8}$`)},
	{KeyInterfaceCRC, regexp.MustCompile(`^0x[a-f0-9]{8}$`)},
}

// CheckDetails validates details.txt on the drive mounted at mountPoint.
// uniqueID is the identity the board was enumerated with; when empty the
// unique id cross check is skipped.
func CheckDetails(mountPoint, uniqueID string, parent *testinfo.TestInfo) {
	log := parent.CreateSubtest("test_details_txt")

	details, err := ParseKVPFile(filepath.Join(mountPoint, DetailsFile), log)
	if err != nil {
		log.Failure("Could not read details.txt: %v", err)
		return
	}
	if len(details) == 0 {
		log.Failure("Could not parse details.txt")
		return
	}

	for _, kf := range requiredDetails {
		value, ok := details[kf.key]
		if !ok {
			log.Failure("Missing detail.txt entry: %s", kf.key)
			continue
		}
		if !kf.pattern.MatchString(value) {
			log.Failure("Bad format detail.txt %s: %s", kf.key, value)
		}
	}
	for _, kf := range optionalDetails {
		value, ok := details[kf.key]
		if !ok {
			continue
		}
		if !kf.pattern.MatchString(value) {
			log.Failure("Bad format detail.txt %s: %s", kf.key, value)
		}
	}

	detailsUID, haveUID := details[KeyUniqueID]
	if !haveUID {
		return
	}
	if uniqueID != "" && !strings.EqualFold(detailsUID, uniqueID) {
		log.Failure("Unique ID mismatch in details.txt")
	}
	if hdk, ok := details[KeyHDKID]; ok && len(detailsUID) >= 8 {
		if hdk != detailsUID[len(detailsUID)-8:] {
			log.Failure("HDK ID is not the last 8 digits of unique ID")
		}
	}
}

// AssertInfo is the location of a firmware assertion reported in assert.txt.
type AssertInfo struct {
	File string
	Line string
}

// ReadAssert returns the assertion recorded on the drive, or nil if there is
// none.
func ReadAssert(mountPoint string) (*AssertInfo, error) {
	path := filepath.Join(mountPoint, AssertFile)
	if !isFile(path) {
		return nil, nil
	}
	kvp, err := ParseKVPFile(path, nil)
	if err != nil {
		return nil, err
	}
	file, okFile := kvp["file"]
	line, okLine := kvp["line"]
	if !okFile || !okLine {
		return nil, fmt.Errorf("%s is missing file or line", AssertFile)
	}
	return &AssertInfo{File: file, Line: line}, nil
}

func isFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
