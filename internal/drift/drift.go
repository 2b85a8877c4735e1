// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package drift hands generated files over to the administrator of a site in
// manual mode. A managed file starts with a known banner; stripping the
// banner leaves the administrator's content in place and marks the file as
// no longer managed.
package drift

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/spf13/afero"
)

// ErrStripFailed marks a banner that could not be removed. Resolve only
// ever logs it.
var ErrStripFailed = errors.New("drift strip failed")

// Banner is a literal prefix that marks a file as managed.
type Banner struct {
	Name string
	Text string
}

// Resolver strips banners in a fixed attempt order.
type Resolver struct {
	fs      install.FS
	banners []Banner
}

// NewResolver returns a Resolver that tries banners in the given order. The
// first exact prefix match wins.
func NewResolver(fsys install.FS, banners ...Banner) *Resolver {
	return &Resolver{fs: fsys, banners: append([]Banner(nil), banners...)}
}

// Banners returns the attempt order.
func (r *Resolver) Banners() []Banner {
	return append([]Banner(nil), r.banners...)
}

// Strip removes the first matching banner from the file at path and rewrites
// the remainder in place, keeping mode and owner. It reports which banner was
// removed; a file without a banner is left untouched.
func (r *Resolver) Strip(path string) (Banner, bool, error) {
	info, _, err := r.fs.LstatIfPossible(path)
	if err != nil {
		return Banner{}, false, fmt.Errorf("%w: %s: %w", ErrStripFailed, path, err)
	}
	if !info.Mode().IsRegular() {
		return Banner{}, false, fmt.Errorf("%w: %s is not a regular file", ErrStripFailed, path)
	}
	content, err := afero.ReadFile(r.fs, path)
	if err != nil {
		return Banner{}, false, fmt.Errorf("%w: read %s: %w", ErrStripFailed, path, err)
	}
	for _, b := range r.banners {
		if b.Text == "" || !bytes.HasPrefix(content, []byte(b.Text)) {
			continue
		}
		if err := r.rewrite(path, info, content[len(b.Text):]); err != nil {
			return Banner{}, false, fmt.Errorf("%w: %w", ErrStripFailed, err)
		}
		return b, true, nil
	}
	return Banner{}, false, nil
}

// Resolve strips a banner from path and logs the outcome. Failures are
// swallowed: files of a manual site may be symlinked or locked down on
// purpose. It reports whether a banner was removed.
func (r *Resolver) Resolve(path string) bool {
	b, stripped, err := r.Strip(path)
	if err != nil {
		logging.Warnf("leaving %s as is: %v", path, err)
		return false
	}
	if stripped {
		logging.Infof("removed %s banner from %s, file is now administrator owned", b.Name, path)
	}
	return stripped
}

func (r *Resolver) rewrite(path string, info os.FileInfo, rest []byte) error {
	tmp, err := afero.TempFile(r.fs, filepath.Dir(path), "."+filepath.Base(path)+".strip-")
	if err != nil {
		return fmt.Errorf("create temporary file for %s: %w", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = r.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(rest); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write %s: %w", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync %s: %w", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close %s: %w", tmpName, err)
	}
	if err := r.fs.Chmod(tmpName, info.Mode().Perm()); err != nil {
		return fmt.Errorf("chmod %s: %w", tmpName, err)
	}
	if uid, gid, ok := install.FileOwner(info); ok {
		if err := r.fs.Chown(tmpName, uid, gid); err != nil {
			return fmt.Errorf("chown %s: %w", tmpName, err)
		}
	}
	if err := r.fs.Rename(tmpName, path); err != nil {
		return fmt.Errorf("rename %s: %w", path, err)
	}
	committed = true
	return nil
}
