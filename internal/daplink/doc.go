// Package daplink drives DAPLink boards through their USB mass storage
// drive.
//
// A DAPLink drive exposes a details.txt file describing the board and
// firmware, accepts firmware images copied onto it and reports programming
// errors through FAIL.TXT. Every reset makes the drive disappear and come
// back, which Drive observes with fsnotify and falls back to polling when
// fsnotify is unavailable.
//
// Drive implements runner.BoardLoader. ProductValidator and
// EndpointValidator implement runner.Validator.
package daplink
