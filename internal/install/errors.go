// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"errors"
	"fmt"
	"io/fs"
	"syscall"
)

var (
	// ErrPermissionDenied is returned when the reconciler may not touch a path.
	ErrPermissionDenied = errors.New("permission denied")
	// ErrNoSpace is returned when the filesystem is full.
	ErrNoSpace = errors.New("no space left on device")
	// ErrNotADirectory is returned when a parent of the target is not a directory.
	ErrNotADirectory = errors.New("not a directory")
	// ErrExhaustedNamespace is returned when no free backup name could be found.
	ErrExhaustedNamespace = errors.New("backup namespace exhausted")
	// ErrPathEscapesRoot is returned for action paths that are not local to the root.
	ErrPathEscapesRoot = errors.New("path escapes installation root")
	// ErrDuplicatePath is returned by Plan.Validate when a path is declared twice.
	ErrDuplicatePath = errors.New("duplicate action path")
)

// ActionError names the action that aborted a plan.
type ActionError struct {
	Kind Kind
	Path string // Relative to the installation root.
	Err  error
}

func (e *ActionError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Kind, e.Path, e.Err)
}

func (e *ActionError) Unwrap() error {
	return e.Err
}

// classify maps low-level filesystem errors onto the package's sentinel
// errors while keeping the original error in the chain.
func classify(op, path string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrPermissionDenied) || errors.Is(err, ErrNoSpace) || errors.Is(err, ErrNotADirectory) || errors.Is(err, ErrExhaustedNamespace) {
		return err
	}
	switch {
	case errors.Is(err, fs.ErrPermission):
		return fmt.Errorf("%w: %s %s: %w", ErrPermissionDenied, op, path, err)
	case errors.Is(err, syscall.ENOSPC):
		return fmt.Errorf("%w: %s %s: %w", ErrNoSpace, op, path, err)
	case errors.Is(err, syscall.ENOTDIR):
		return fmt.Errorf("%w: %s %s: %w", ErrNotADirectory, op, path, err)
	}
	return fmt.Errorf("%s %s: %w", op, path, err)
}
