// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"fmt"
	"strconv"
)

const (
	// DefaultBackupSeparator sits between the original name and the sequence.
	DefaultBackupSeparator = "."
	// DefaultBackupExtension keeps backups out of Tomcat's *.jar and *.xml globs.
	DefaultBackupExtension = ".old"
	// MaxBackupSequence bounds the probe loop.
	MaxBackupSequence = 10000
)

// ExistsFunc reports whether a path is currently occupied.
type ExistsFunc func(path string) (bool, error)

// NextBackupPath returns original+separator+n+extension for the smallest
// n >= 0 that exists reports as free.
func NextBackupPath(exists ExistsFunc, original, separator, extension string) (string, error) {
	for n := 0; n < MaxBackupSequence; n++ {
		candidate := original + separator + strconv.Itoa(n) + extension
		taken, err := exists(candidate)
		if err != nil {
			return "", classify("probe backup", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: %s (tried %d names)", ErrExhaustedNamespace, original, MaxBackupSequence)
}

// BackupNamer applies the naming scheme to one filesystem.
type BackupNamer struct {
	Separator string
	Extension string
	fs        FS
}

// NewBackupNamer returns a namer probing fsys. Empty separator and extension
// fall back to the defaults.
func NewBackupNamer(fsys FS, separator, extension string) BackupNamer {
	if separator == "" {
		separator = DefaultBackupSeparator
	}
	if extension == "" {
		extension = DefaultBackupExtension
	}
	return BackupNamer{Separator: separator, Extension: extension, fs: fsys}
}

// Next returns the backup path to use for original.
func (b BackupNamer) Next(original string) (string, error) {
	return NextBackupPath(func(p string) (bool, error) {
		return Exists(b.fs, p)
	}, original, b.Separator, b.Extension)
}
