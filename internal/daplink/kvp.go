package daplink

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"regexp"
	"strings"

	"dapcheck/internal/testinfo"
)

var kvpLine = regexp.MustCompile(`^([a-zA-Z0-9 ]+): +(.+)$`)

// ParseKVP reads "Key: value" lines. Keys are lowercased with spaces turned
// into underscores, values are lowercased. Lines starting with '#' are
// comments. Malformed lines and duplicate keys are reported to log, which
// may be nil, and skipped.
func ParseKVP(r io.Reader, log *testinfo.TestInfo) (map[string]string, error) {
	kvp := make(map[string]string)
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSuffix(scanner.Text(), "\r")
		if line == "" {
			if log != nil {
				log.Failure("Empty line")
			}
			continue
		}
		if line[0] == '#' {
			continue
		}

		match := kvpLine.FindStringSubmatch(line)
		if match == nil {
			if log != nil {
				log.Failure("Invalid line: %s", line)
			}
			continue
		}

		key := strings.ReplaceAll(strings.ToLower(match[1]), " ", "_")
		value := strings.ToLower(match[2])
		if _, dup := kvp[key]; dup {
			if log != nil {
				log.Failure("Duplicate key %s", key)
			}
			continue
		}
		kvp[key] = value
	}
	if err := scanner.Err(); err != nil {
		return kvp, fmt.Errorf("reading key/value file: %w", err)
	}
	return kvp, nil
}

// ParseKVPFile parses the file at path. A missing file yields an empty map;
// older firmware does not provide details.txt.
func ParseKVPFile(path string, parent *testinfo.TestInfo) (map[string]string, error) {
	var log *testinfo.TestInfo
	if parent != nil {
		log = parent.CreateSubtest("parse_kvp_file")
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("opening %s: %w", path, err)
	}
	defer f.Close()
	return ParseKVP(f, log)
}
