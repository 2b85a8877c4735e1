// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package packages answers whether the OS packages a Tomcat release depends
// on are installed. Installing them is somebody else's job.
package packages

import (
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"sync"
)

// ErrMissingDependency is returned when a required package is not installed.
var ErrMissingDependency = errors.New("missing dependency")

// Checker reports whether a named package is installed.
type Checker interface {
	Installed(ctx context.Context, name string) (bool, error)
}

// Require fails with ErrMissingDependency naming every package that is not
// installed.
func Require(ctx context.Context, c Checker, names ...string) error {
	var missing []string
	for _, name := range names {
		ok, err := c.Installed(ctx, name)
		if err != nil {
			return fmt.Errorf("checking package %s: %w", name, err)
		}
		if !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrMissingDependency, strings.Join(missing, ", "))
	}
	return nil
}

// Static is a fixed package list, used on hosts without an RPM database and
// in tests.
type Static map[string]bool

// NewStatic returns a Static holding names.
func NewStatic(names ...string) Static {
	s := make(Static, len(names))
	for _, n := range names {
		s[n] = true
	}
	return s
}

func (s Static) Installed(_ context.Context, name string) (bool, error) {
	return s[name], nil
}

// RPM queries the RPM database. Answers are cached for the lifetime of the
// checker; create one per pass.
type RPM struct {
	// Command is the rpm binary; empty means "rpm" from PATH.
	Command string

	mu    sync.Mutex
	cache map[string]bool
}

// NewRPM returns an RPM checker using the rpm binary from PATH.
func NewRPM() *RPM {
	return &RPM{}
}

func (r *RPM) Installed(ctx context.Context, name string) (bool, error) {
	r.mu.Lock()
	if ok, hit := r.cache[name]; hit {
		r.mu.Unlock()
		return ok, nil
	}
	r.mu.Unlock()

	bin := r.Command
	if bin == "" {
		bin = "rpm"
	}
	cmd := exec.CommandContext(ctx, bin, "-q", "--quiet", name)
	err := cmd.Run()
	installed := err == nil
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			return false, fmt.Errorf("run %s: %w", bin, err)
		}
	}

	r.mu.Lock()
	if r.cache == nil {
		r.cache = make(map[string]bool)
	}
	r.cache[name] = installed
	r.mu.Unlock()
	return installed, nil
}
