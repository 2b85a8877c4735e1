// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"errors"
	"io/fs"
	"os"

	"github.com/spf13/afero"
)

// FS is the filesystem an installation root lives on. Symlink support and
// Lchown are required because installation trees are mostly links.
type FS interface {
	afero.Fs
	afero.Symlinker
	Lchown(name string, uid, gid int) error
}

// OsFs is the production FS backed by the host filesystem.
type OsFs struct {
	afero.OsFs
}

// NewOsFs returns the host filesystem.
func NewOsFs() FS {
	return &OsFs{}
}

// Lchown changes the owner of a symlink itself rather than its target.
func (OsFs) Lchown(name string, uid, gid int) error {
	return os.Lchown(name, uid, gid)
}

// lstat reports the entry at name without following a final symlink.
// A missing entry is not an error.
func lstat(fsys FS, name string) (os.FileInfo, bool, error) {
	info, _, err := fsys.LstatIfPossible(name)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, false, nil
		}
		return nil, false, err
	}
	return info, true, nil
}

// Exists reports whether name is occupied by any kind of entry, dangling
// symlinks included.
func Exists(fsys FS, name string) (bool, error) {
	_, ok, err := lstat(fsys, name)
	return ok, err
}

func isSymlink(info os.FileInfo) bool {
	return info.Mode()&os.ModeSymlink != 0
}
