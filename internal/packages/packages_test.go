package packages

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRequire(t *testing.T) {
	c := NewStatic("apache-tomcat_9_0", "jdk17")
	if err := Require(context.Background(), c, "apache-tomcat_9_0", "jdk17"); err != nil {
		t.Fatalf("expected all packages present, got %v", err)
	}
	err := Require(context.Background(), c, "apache-tomcat_10_1", "jdk17", "jdk21")
	if !errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected ErrMissingDependency, got %v", err)
	}
	if !strings.Contains(err.Error(), "apache-tomcat_10_1, jdk21") {
		t.Fatalf("expected missing packages to be named, got %v", err)
	}
}

type failingChecker struct{}

func (failingChecker) Installed(context.Context, string) (bool, error) {
	return false, errors.New("rpmdb locked")
}

func TestRequire_CheckerError(t *testing.T) {
	err := Require(context.Background(), failingChecker{}, "jdk17")
	if err == nil || errors.Is(err, ErrMissingDependency) {
		t.Fatalf("expected a plain checker error, got %v", err)
	}
}

// fakeRPM writes a shell script that accepts only the package "present".
func fakeRPM(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "rpm")
	script := "#!/bin/sh\n[ \"$3\" = present ]\n"
	if err := os.WriteFile(path, []byte(script), 0o755); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestRPM(t *testing.T) {
	if _, err := os.Stat("/bin/sh"); err != nil {
		t.Skip("no /bin/sh")
	}
	r := &RPM{Command: fakeRPM(t)}
	ok, err := r.Installed(context.Background(), "present")
	if err != nil || !ok {
		t.Fatalf("expected present to be installed, got %v, %v", ok, err)
	}
	ok, err = r.Installed(context.Background(), "absent")
	if err != nil || ok {
		t.Fatalf("expected absent to be missing, got %v, %v", ok, err)
	}
	r.Command = filepath.Join(t.TempDir(), "gone")
	if ok, err := r.Installed(context.Background(), "present"); err != nil || !ok {
		t.Fatalf("expected cached answer, got %v, %v", ok, err)
	}
}

func TestRPM_MissingBinary(t *testing.T) {
	r := &RPM{Command: filepath.Join(t.TempDir(), "no-rpm")}
	if _, err := r.Installed(context.Background(), "jdk17"); err == nil {
		t.Fatal("expected error when rpm cannot be started")
	}
}
