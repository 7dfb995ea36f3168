package daplink

import (
	"os"
	"path/filepath"
	"regexp"

	"dapcheck/internal/testinfo"
)

var (
	nonASCII      = regexp.MustCompile(`[^\x20-\x7F\r\n]`)
	nonCRLF       = regexp.MustCompile(`\r[^\n]|[^\r]\n`)
	trailingWhite = regexp.MustCompile(`(?: \r| \n)`)
	endsWithCRLF  = regexp.MustCompile(`\r\n$`)
)

// CheckFSContents verifies every file at the root of the drive: contents
// must be ASCII with CRLF line endings. Trailing whitespace and a missing
// final CRLF are warnings. details.txt is then checked with CheckDetails.
func CheckFSContents(mountPoint, uniqueID string, parent *testinfo.TestInfo) {
	log := parent.CreateSubtest("test_fs_contents")

	entries, err := os.ReadDir(mountPoint)
	if err != nil {
		log.Failure("Could not list drive %s: %v", mountPoint, err)
		return
	}
	for _, entry := range entries {
		if !entry.Type().IsRegular() {
			continue
		}
		path := filepath.Join(mountPoint, entry.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			log.Failure("Could not read %s: %v", path, err)
			continue
		}
		switch {
		case nonASCII.Match(data):
			log.Failure("Non ascii characters in %s", path)
		case nonCRLF.Match(data):
			log.Failure("File has non-standard line endings %s", path)
		case trailingWhite.Match(data):
			log.Warning("File trailing whitespace %s", path)
		case !endsWithCRLF.Match(data):
			log.Warning("No newline at end of file %s", path)
		default:
			log.Info("File %s valid", path)
		}
	}

	CheckDetails(mountPoint, uniqueID, log)
}
