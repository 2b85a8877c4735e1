// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"

	"github.com/spf13/afero"
)

// Outcome reports whether an operation mutated the filesystem.
type Outcome int

const (
	Unchanged Outcome = iota
	Changed
)

func (o Outcome) String() string {
	if o == Changed {
		return "changed"
	}
	return "unchanged"
}

// Writer performs the backup-then-commit protocol for one installation root.
// A Writer is not safe for concurrent use; each pass gets its own.
type Writer struct {
	fs      FS
	namer   BackupNamer
	backups []string
}

// NewWriter returns a Writer that names backups with separator and extension.
func NewWriter(fsys FS, separator, extension string) *Writer {
	return &Writer{fs: fsys, namer: NewBackupNamer(fsys, separator, extension)}
}

// Backups returns the backup paths created so far, in creation order.
func (w *Writer) Backups() []string {
	return append([]string(nil), w.backups...)
}

// WriteFile makes path hold exactly data. Equal content is left alone so the
// mtime is preserved and no restart is triggered.
func (w *Writer) WriteFile(path string, data []byte, mode os.FileMode, uid, gid int) (Outcome, error) {
	info, exists, err := lstat(w.fs, path)
	if err != nil {
		return Unchanged, classify("stat", path, err)
	}
	if exists && info.Mode().IsRegular() {
		current, err := afero.ReadFile(w.fs, path)
		if err != nil {
			return Unchanged, classify("read", path, err)
		}
		if bytes.Equal(current, data) {
			return Unchanged, nil
		}
	}

	tmp, err := afero.TempFile(w.fs, filepath.Dir(path), "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return Unchanged, classify("create temporary file for", path, err)
	}
	tmpName := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			_ = w.fs.Remove(tmpName)
		}
	}()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return Unchanged, classify("write", tmpName, err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return Unchanged, classify("sync", tmpName, err)
	}
	if err := tmp.Close(); err != nil {
		return Unchanged, classify("close", tmpName, err)
	}
	if err := w.fs.Chmod(tmpName, mode.Perm()); err != nil {
		return Unchanged, classify("chmod", tmpName, err)
	}
	if err := w.chown(tmpName, uid, gid); err != nil {
		return Unchanged, err
	}

	if err := w.commit(tmpName, path, info, exists); err != nil {
		return Unchanged, err
	}
	committed = true
	return Changed, nil
}

// EnsureSymlink makes path a symlink to target.
func (w *Writer) EnsureSymlink(path, target string, uid, gid int) (Outcome, error) {
	info, exists, err := lstat(w.fs, path)
	if err != nil {
		return Unchanged, classify("stat", path, err)
	}
	if exists && isSymlink(info) {
		current, err := w.fs.ReadlinkIfPossible(path)
		if err != nil {
			return Unchanged, classify("readlink", path, err)
		}
		if current == target {
			return Unchanged, nil
		}
	}

	tmpName, err := w.freeSibling(path, ".lnk-")
	if err != nil {
		return Unchanged, err
	}
	if err := w.fs.SymlinkIfPossible(target, tmpName); err != nil {
		return Unchanged, classify("symlink", tmpName, err)
	}
	committed := false
	defer func() {
		if !committed {
			_ = w.fs.Remove(tmpName)
		}
	}()
	if err := w.lchown(tmpName, uid, gid); err != nil {
		return Unchanged, err
	}

	if err := w.commit(tmpName, path, info, exists); err != nil {
		return Unchanged, err
	}
	committed = true
	return Changed, nil
}

// EnsureDirectory makes path a directory with the given mode and owner. A
// symlink resolving to a directory is accepted as is.
func (w *Writer) EnsureDirectory(path string, mode os.FileMode, uid, gid int) (Outcome, error) {
	info, exists, err := lstat(w.fs, path)
	if err != nil {
		return Unchanged, classify("stat", path, err)
	}
	if exists && isSymlink(info) {
		if target, err := w.fs.Stat(path); err == nil && target.IsDir() {
			return Unchanged, nil
		}
	}
	if exists && info.IsDir() {
		return w.fixDirectory(path, info, mode, uid, gid)
	}
	if exists {
		if _, err := w.preserve(path, info, true); err != nil {
			return Unchanged, err
		}
	}
	if err := w.fs.Mkdir(path, mode.Perm()); err != nil {
		return Unchanged, classify("mkdir", path, err)
	}
	// Mkdir is subject to the umask.
	if err := w.fs.Chmod(path, mode.Perm()); err != nil {
		return Unchanged, classify("chmod", path, err)
	}
	if err := w.chown(path, uid, gid); err != nil {
		return Unchanged, err
	}
	return Changed, nil
}

func (w *Writer) fixDirectory(path string, info os.FileInfo, mode os.FileMode, uid, gid int) (Outcome, error) {
	outcome := Unchanged
	if info.Mode().Perm() != mode.Perm() {
		if err := w.fs.Chmod(path, mode.Perm()); err != nil {
			return Unchanged, classify("chmod", path, err)
		}
		outcome = Changed
	}
	if curUID, curGID, ok := FileOwner(info); ok && ownerDiffers(curUID, curGID, uid, gid) {
		if err := w.chown(path, uid, gid); err != nil {
			return outcome, err
		}
		outcome = Changed
	}
	return outcome, nil
}

// Delete moves path to a backup location. A missing path is not an error.
func (w *Writer) Delete(path string) (Outcome, error) {
	info, exists, err := lstat(w.fs, path)
	if err != nil {
		return Unchanged, classify("stat", path, err)
	}
	if !exists {
		return Unchanged, nil
	}
	if _, err := w.preserve(path, info, true); err != nil {
		return Unchanged, err
	}
	return Changed, nil
}

// preserve keeps the current entry at path recoverable. With move set the
// entry is renamed away; otherwise a regular file is copied and a symlink
// duplicated, leaving path in place for an atomic rename over it.
// commit renames tmpName onto path after backing up the entry already there.
// Directories cannot be renamed over, so they move aside first and are moved
// back when the rename fails.
func (w *Writer) commit(tmpName, path string, info os.FileInfo, exists bool) error {
	var backup string
	if exists {
		var err error
		if backup, err = w.preserve(path, info, info.IsDir()); err != nil {
			return err
		}
	}
	if err := w.fs.Rename(tmpName, path); err != nil {
		err = classify("rename", path, err)
		if backup != "" {
			if rerr := w.restore(backup, path); rerr != nil {
				return errors.Join(err, rerr)
			}
		}
		return err
	}
	return nil
}

// restore moves backup back to path when path was left empty. A backup made
// by copying leaves path in place and is kept.
func (w *Writer) restore(backup, path string) error {
	occupied, err := Exists(w.fs, path)
	if err != nil || occupied {
		return err
	}
	if err := w.fs.Rename(backup, path); err != nil {
		return classify("restore", path, err)
	}
	w.backups = slices.DeleteFunc(w.backups, func(b string) bool { return b == backup })
	return nil
}

func (w *Writer) preserve(path string, info os.FileInfo, move bool) (string, error) {
	backup, err := w.namer.Next(path)
	if err != nil {
		return "", err
	}
	switch {
	case move:
		if err := w.fs.Rename(path, backup); err != nil {
			return "", classify("back up", path, err)
		}
	case isSymlink(info):
		target, err := w.fs.ReadlinkIfPossible(path)
		if err != nil {
			return "", classify("readlink", path, err)
		}
		if err := w.fs.SymlinkIfPossible(target, backup); err != nil {
			return "", classify("back up", path, err)
		}
	case info.Mode().IsRegular():
		if err := w.copyFile(path, backup, info); err != nil {
			return "", err
		}
	default:
		if err := w.fs.Rename(path, backup); err != nil {
			return "", classify("back up", path, err)
		}
	}
	w.backups = append(w.backups, backup)
	return backup, nil
}

func (w *Writer) copyFile(src, dst string, info os.FileInfo) error {
	in, err := w.fs.Open(src)
	if err != nil {
		return classify("open", src, err)
	}
	defer in.Close()
	out, err := w.fs.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, info.Mode().Perm())
	if err != nil {
		return classify("create backup", dst, err)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		_ = w.fs.Remove(dst)
		return classify("copy backup", dst, err)
	}
	if err := out.Close(); err != nil {
		_ = w.fs.Remove(dst)
		return classify("close backup", dst, err)
	}
	if uid, gid, ok := FileOwner(info); ok {
		// Best effort: the backup content is what matters.
		_ = w.fs.Chown(dst, uid, gid)
	}
	return nil
}

// freeSibling returns an unused name next to path for staging a new entry.
func (w *Writer) freeSibling(path, infix string) (string, error) {
	base := filepath.Join(filepath.Dir(path), "."+filepath.Base(path)+infix)
	for n := 0; n < MaxBackupSequence; n++ {
		candidate := base + strconv.Itoa(n)
		taken, err := Exists(w.fs, candidate)
		if err != nil {
			return "", classify("stat", candidate, err)
		}
		if !taken {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("%w: no staging name for %s", ErrExhaustedNamespace, path)
}

func (w *Writer) chown(path string, uid, gid int) error {
	if uid < 0 && gid < 0 {
		return nil
	}
	if err := w.fs.Chown(path, uid, gid); err != nil {
		return classify("chown", path, err)
	}
	return nil
}

func (w *Writer) lchown(path string, uid, gid int) error {
	if uid < 0 && gid < 0 {
		return nil
	}
	if err := w.fs.Lchown(path, uid, gid); err != nil {
		return classify("lchown", path, err)
	}
	return nil
}

func ownerDiffers(curUID, curGID, uid, gid int) bool {
	return (uid >= 0 && curUID != uid) || (gid >= 0 && curGID != gid)
}
