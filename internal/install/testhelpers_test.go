package install

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

var errInjected = errors.New("injected fault")

// faultFs wraps the host filesystem and fails or panics on selected renames.
type faultFs struct {
	FS
	failRename  func(oldname, newname string) bool
	panicRename func(oldname, newname string) bool
}

func (f *faultFs) Rename(oldname, newname string) error {
	if f.panicRename != nil && f.panicRename(oldname, newname) {
		panic(errInjected)
	}
	if f.failRename != nil && f.failRename(oldname, newname) {
		return errInjected
	}
	return f.FS.Rename(oldname, newname)
}

func ids() (int, int) {
	return os.Getuid(), os.Getgid()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read %s: %v", path, err)
	}
	return string(data)
}

func ageFile(t *testing.T, path string) time.Time {
	t.Helper()
	old := time.Now().Add(-time.Hour).Truncate(time.Second)
	if err := os.Chtimes(path, old, old); err != nil {
		t.Fatal(err)
	}
	return old
}

// newEnv returns an Env rooted in a fresh temp dir with an empty version tree.
func newEnv(t *testing.T) *Env {
	t.Helper()
	tmp := t.TempDir()
	uid, gid := ids()
	fsys := NewOsFs()
	env := &Env{
		Root:        filepath.Join(tmp, "srv", "site1"),
		VersionBase: filepath.Join(tmp, "opt"),
		VersionDir:  "apache-tomcat-9.0",
		UID:         uid,
		GID:         gid,
		FS:          fsys,
		Writer:      NewWriter(fsys, "", ""),
	}
	if err := os.MkdirAll(env.Root, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(filepath.Join(env.VersionBase, env.VersionDir), 0o755); err != nil {
		t.Fatal(err)
	}
	return env
}
