// Package config loads the dapcheck configuration file.
//
// Configuration lives in config.yaml inside the configuration directory,
// ~/.config/dapcheck unless overridden with --config-path. A missing file is
// not an error; the defaults from GetDefaultConfig are used. Values present
// in the file override the defaults, and entries under idTable extend the
// built-in identity table rather than replacing it.
//
// Example:
//
//	logDir: ../test_results
//	verbosity: Normal
//	targetDir: /srv/daplink/targets
//	firmwareDir: /srv/daplink/release
//	boardInventory: /srv/daplink/boards.yaml
//	remountTimeout: 15s
//	strictHDK: false
//	idTable:
//	  firmware:
//	    k20dx_custom_if: 0x0250
//	report:
//	  format: json
//	  headerTemplate: '{{ .Board | upper }} {{ if .Passed }}PASS{{ else }}FAIL{{ end }}'
//
// Command line flags take precedence over every value in the file.
package config
