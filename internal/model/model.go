// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// package model defines the site descriptors and reconciliation records shared
// by the reconciler, its site sources and the CLI.
package model // import "github.com/ao-apps/aoserv-daemon-sub001/internal/model"

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"
	"time"
)

// siteName matches the names accepted for sites and shared instances. The
// name ends up in generated XML and shell scripts.
var siteName = regexp.MustCompile(`^[a-z0-9]([a-z0-9._]|-[a-z0-9._])*$`)

// rootUnsafe lists characters an installation root may not contain.
const rootUnsafe = "\"'`$<>&;|"

// Site describes one independently administered Tomcat site. It is owned by
// the external configuration source; the reconciler only reads it.
type Site struct {
	Name           string `yaml:"name"`
	Root           string `yaml:"root"`            // Absolute installation root, exclusively owned by this site.
	UID            int    `yaml:"uid"`             // Owner applied to everything written below Root.
	GID            int    `yaml:"gid"`             // Group applied to everything written below Root.
	Manual         bool   `yaml:"manual"`          // The administrator owns generated config files.
	Version        string `yaml:"version"`         // Declared Tomcat version identifier, e.g. "9.0.X".
	SharedInstance string `yaml:"shared_instance"` // Runtime instance serving this site; empty for a dedicated JVM.
	HTTPPort       int    `yaml:"http_port"`
	ShutdownPort   int    `yaml:"shutdown_port"`
	Disabled       bool   `yaml:"disabled"`
}

// String returns the site name, or the root when the site is unnamed.
func (s Site) String() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Root
}

// IsShared reports whether the site runs inside a shared runtime instance.
func (s Site) IsShared() bool {
	return s.SharedInstance != ""
}

// Validate checks the fields the reconciler depends on.
func (s Site) Validate() error {
	if s.Name == "" {
		return errors.New("site name is required")
	}
	if !siteName.MatchString(s.Name) {
		return fmt.Errorf("site name %q: use lower case letters, digits, '.', '_' and single '-'", s.Name)
	}
	if s.SharedInstance != "" && !siteName.MatchString(s.SharedInstance) {
		return fmt.Errorf("site %s: invalid shared instance name %q", s.Name, s.SharedInstance)
	}
	if s.Root == "" || !filepath.IsAbs(s.Root) {
		return fmt.Errorf("site %s: installation root must be an absolute path, got %q", s.Name, s.Root)
	}
	if filepath.Clean(s.Root) == string(filepath.Separator) {
		return fmt.Errorf("site %s: installation root may not be the filesystem root", s.Name)
	}
	if i := strings.IndexFunc(s.Root, unsafeRootRune); i >= 0 {
		return fmt.Errorf("site %s: installation root %q contains unsupported character %q", s.Name, s.Root, s.Root[i])
	}
	if s.Version == "" {
		return fmt.Errorf("site %s: version is required", s.Name)
	}
	return nil
}

func unsafeRootRune(r rune) bool {
	return r < 0x20 || r == 0x7f || r == ' ' || strings.ContainsRune(rootUnsafe, r)
}

// ReconciliationResult is what a single reconcile pass reports back to the
// scheduler.
type ReconciliationResult struct {
	PassID          string
	Site            string
	RestartRequired bool
	Provisioned     bool     // The complete layout was applied to a new or unfinished root.
	Upgraded        bool     // Upgrade-in-place ran as part of the pass.
	Changed         []string // Relative paths that were (re)written, linked, created or retired.
	Backups         []string // Absolute backup paths created during the pass.
}

// PassRecord is one journal row describing a finished pass.
type PassRecord struct {
	ID              int64
	PassID          string
	Site            string
	Version         string
	Upgrade         bool
	RestartRequired bool
	Changed         int
	Error           string
	StartedAt       time.Time
	FinishedAt      time.Time
}

// Failed reports whether the pass ended with an error.
func (p PassRecord) Failed() bool {
	return p.Error != ""
}

// Duration returns how long the pass took.
func (p PassRecord) Duration() time.Duration {
	return p.FinishedAt.Sub(p.StartedAt)
}
