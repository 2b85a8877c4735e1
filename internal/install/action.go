// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package install

import (
	"fmt"
	"os"
	"path"
	"path/filepath"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/spf13/afero"
)

// Kind tags the closed set of action variants.
type Kind string

const (
	KindDelete     Kind = "delete"
	KindMkdir      Kind = "mkdir"
	KindSymlink    Kind = "symlink"
	KindSymlinkAll Kind = "symlink-all"
	KindCopy       Kind = "copy"
	KindGenerated  Kind = "generated"
)

// RuntimeVisible reports whether a change made by this kind of action can
// alter what a running instance sees. Creating an empty directory cannot.
func (k Kind) RuntimeVisible() bool {
	return k != KindMkdir
}

// ManualResolver handles generated files that the administrator owns.
// Resolve is best effort and never fails the pass.
type ManualResolver interface {
	Resolve(path string) bool
}

// Env is everything an action needs to apply itself below one root.
type Env struct {
	Site        model.Site
	Root        string // Absolute installation root.
	VersionBase string // Directory holding the read-only version trees, e.g. /opt.
	VersionDir  string // Version tree name below VersionBase, e.g. apache-tomcat-9.0.
	UID         int
	GID         int
	Manual      bool
	FS          FS
	Writer      *Writer
	Resolver    ManualResolver
}

// Abs resolves a plan path below the root.
func (e *Env) Abs(rel string) (string, error) {
	local := filepath.FromSlash(rel)
	if !filepath.IsLocal(local) {
		return "", fmt.Errorf("%w: %q", ErrPathEscapesRoot, rel)
	}
	return filepath.Join(e.Root, local), nil
}

// VersionPath returns the absolute path of rel inside the version tree.
func (e *Env) VersionPath(rel string) string {
	return filepath.Join(e.VersionBase, e.VersionDir, filepath.FromSlash(rel))
}

// LinkTarget returns the relative symlink target that makes the link at
// linkRel (below the root) point at dest (an absolute path).
func (e *Env) LinkTarget(linkRel, dest string) (string, error) {
	link, err := e.Abs(linkRel)
	if err != nil {
		return "", err
	}
	return filepath.Rel(filepath.Dir(link), dest)
}

// GenContext is the only input a Generator receives.
type GenContext struct {
	RelPath     string
	Root        string
	VersionDir  string
	VersionBase string
	Site        model.Site
}

// Generator produces the content of a generated file. It must be pure.
type Generator func(GenContext) []byte

// Action is one unit of desired state for a path below the root.
type Action interface {
	Kind() Kind
	Path() string
	Apply(env *Env) (Outcome, error)
}

type base struct {
	path string
}

func (b base) Path() string { return b.path }

// DeleteAction retires whatever is at its path into a backup.
type DeleteAction struct{ base }

// Delete declares that path must not exist.
func Delete(path string) DeleteAction { return DeleteAction{base{path}} }

func (DeleteAction) Kind() Kind { return KindDelete }

func (a DeleteAction) Apply(env *Env) (Outcome, error) {
	abs, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	return env.Writer.Delete(abs)
}

// MkdirAction ensures a directory.
type MkdirAction struct {
	base
	mode os.FileMode
}

// Mkdir declares a directory with mode.
func Mkdir(path string, mode os.FileMode) MkdirAction {
	return MkdirAction{base{path}, mode}
}

func (MkdirAction) Kind() Kind { return KindMkdir }

func (a MkdirAction) Apply(env *Env) (Outcome, error) {
	abs, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	return env.Writer.EnsureDirectory(abs, a.mode, env.UID, env.GID)
}

// SymlinkAction ensures a symlink. Without an explicit target it points at
// the same relative path inside the version tree.
type SymlinkAction struct {
	base
	target string
}

// Symlink declares a symlink with a literal target.
func Symlink(path, target string) SymlinkAction {
	return SymlinkAction{base{path}, target}
}

// LinkVersion declares a symlink into the version tree at the same path.
func LinkVersion(path string) SymlinkAction {
	return SymlinkAction{base: base{path}}
}

func (SymlinkAction) Kind() Kind { return KindSymlink }

func (a SymlinkAction) Apply(env *Env) (Outcome, error) {
	abs, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	target := a.target
	if target == "" {
		target, err = env.LinkTarget(a.path, env.VersionPath(a.path))
		if err != nil {
			return Unchanged, err
		}
	}
	return env.Writer.EnsureSymlink(abs, target, env.UID, env.GID)
}

// SymlinkAllAction mirrors every entry of a version tree directory as a
// symlink, for directories whose members vary between patch releases.
type SymlinkAllAction struct{ base }

// SymlinkAll declares that every entry of the version tree's path is linked.
func SymlinkAll(path string) SymlinkAllAction {
	return SymlinkAllAction{base{path}}
}

func (SymlinkAllAction) Kind() Kind { return KindSymlinkAll }

func (a SymlinkAllAction) Apply(env *Env) (Outcome, error) {
	dir, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	srcDir := env.VersionPath(a.path)
	entries, err := afero.ReadDir(env.FS, srcDir)
	if err != nil {
		return Unchanged, classify("list", srcDir, err)
	}
	outcome := Unchanged
	wanted := make(map[string]bool, len(entries))
	for _, entry := range entries {
		wanted[entry.Name()] = true
		childRel := path.Join(a.path, entry.Name())
		child, err := env.Abs(childRel)
		if err != nil {
			return outcome, err
		}
		target, err := env.LinkTarget(childRel, filepath.Join(srcDir, entry.Name()))
		if err != nil {
			return outcome, err
		}
		o, err := env.Writer.EnsureSymlink(child, target, env.UID, env.GID)
		if err != nil {
			return outcome, err
		}
		if o == Changed {
			outcome = Changed
		}
	}
	o, err := retireStaleLinks(env, dir, srcDir, wanted)
	if o == Changed {
		outcome = Changed
	}
	return outcome, err
}

// retireStaleLinks backs up links in dir that were created for a member of
// srcDir that no longer exists. Links with a different base name, including
// earlier backups, are left alone.
func retireStaleLinks(env *Env, dir, srcDir string, wanted map[string]bool) (Outcome, error) {
	present, err := afero.ReadDir(env.FS, dir)
	if err != nil {
		return Unchanged, classify("list", dir, err)
	}
	outcome := Unchanged
	for _, entry := range present {
		if wanted[entry.Name()] || !isSymlink(entry) {
			continue
		}
		link := filepath.Join(dir, entry.Name())
		target, err := env.FS.ReadlinkIfPossible(link)
		if err != nil {
			return outcome, classify("readlink", link, err)
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(dir, target)
		}
		if filepath.Clean(target) != filepath.Join(srcDir, entry.Name()) {
			continue
		}
		o, err := env.Writer.Delete(link)
		if err != nil {
			return outcome, err
		}
		if o == Changed {
			outcome = Changed
		}
	}
	return outcome, nil
}

// CopyAction copies a file out of the version tree.
type CopyAction struct {
	base
	mode os.FileMode
}

// Copy declares a private copy of the version tree's file at path.
func Copy(path string, mode os.FileMode) CopyAction {
	return CopyAction{base{path}, mode}
}

func (CopyAction) Kind() Kind { return KindCopy }

func (a CopyAction) Apply(env *Env) (Outcome, error) {
	abs, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	src := env.VersionPath(a.path)
	data, err := afero.ReadFile(env.FS, src)
	if err != nil {
		return Unchanged, classify("read", src, err)
	}
	return env.Writer.WriteFile(abs, data, a.mode, env.UID, env.GID)
}

// GeneratedAction writes the output of a Generator.
type GeneratedAction struct {
	base
	mode     os.FileMode
	gen      Generator
	editable bool
}

// Generate declares a file whose content is always owned by the reconciler.
func Generate(path string, mode os.FileMode, gen Generator) GeneratedAction {
	return GeneratedAction{base: base{path}, mode: mode, gen: gen}
}

// GenerateEditable declares a generated file that becomes administrator
// owned once the site is switched to manual mode.
func GenerateEditable(path string, mode os.FileMode, gen Generator) GeneratedAction {
	return GeneratedAction{base: base{path}, mode: mode, gen: gen, editable: true}
}

func (GeneratedAction) Kind() Kind { return KindGenerated }

// Editable reports whether manual mode hands the file to the administrator.
func (a GeneratedAction) Editable() bool { return a.editable }

// Content runs the generator for env without touching the filesystem.
func (a GeneratedAction) Content(env *Env) []byte {
	return a.gen(GenContext{
		RelPath:     a.path,
		Root:        env.Root,
		VersionDir:  env.VersionDir,
		VersionBase: env.VersionBase,
		Site:        env.Site,
	})
}

func (a GeneratedAction) Apply(env *Env) (Outcome, error) {
	abs, err := env.Abs(a.path)
	if err != nil {
		return Unchanged, err
	}
	if a.editable && env.Manual {
		exists, err := Exists(env.FS, abs)
		if err != nil {
			return Unchanged, classify("stat", abs, err)
		}
		if exists {
			if env.Resolver != nil {
				env.Resolver.Resolve(abs)
			}
			return Unchanged, nil
		}
	}
	return env.Writer.WriteFile(abs, a.Content(env), a.mode, env.UID, env.GID)
}
