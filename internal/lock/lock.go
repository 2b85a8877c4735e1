// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package lock keeps two passes from reconciling the same installation root
// at once, whether they run in one process or in several.
package lock

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/gofrs/flock"
)

// ErrRootBusy is returned when another pass holds the root's lock.
var ErrRootBusy = errors.New("installation root is busy")

// RootLock is an advisory lock on one installation root.
type RootLock struct {
	root string
	fl   *flock.Flock
}

// PathFor returns the lock file used for root below lockDir.
func PathFor(lockDir, root string) string {
	name := url.PathEscape(strings.TrimPrefix(filepath.Clean(root), string(filepath.Separator)))
	return filepath.Join(lockDir, name+".lock")
}

// ForRoot returns the lock for root, creating lockDir if needed.
func ForRoot(lockDir, root string) (*RootLock, error) {
	if err := os.MkdirAll(lockDir, 0o750); err != nil {
		return nil, fmt.Errorf("create lock directory %s: %w", lockDir, err)
	}
	return &RootLock{root: root, fl: flock.New(PathFor(lockDir, root))}, nil
}

// TryLock takes the lock without waiting.
func (l *RootLock) TryLock() error {
	ok, err := l.fl.TryLock()
	if err != nil {
		return fmt.Errorf("lock %s: %w", l.fl.Path(), err)
	}
	if !ok {
		return fmt.Errorf("%w: %s", ErrRootBusy, l.root)
	}
	return nil
}

// Unlock releases the lock. The lock file stays in place.
func (l *RootLock) Unlock() error {
	return l.fl.Unlock()
}

// Path returns the lock file path.
func (l *RootLock) Path() string {
	return l.fl.Path()
}
