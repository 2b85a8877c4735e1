// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package tomcat knows the installation layout of every supported Apache
// Tomcat release. Each release is a Strategy selected by version identifier
// from a Registry; releases of one family share their layout helpers.
package tomcat

import (
	"context"
	"errors"
	"fmt"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
)

var (
	// ErrUnsupportedVersion is returned for a version identifier outside the
	// supported set.
	ErrUnsupportedVersion = errors.New("unsupported tomcat version")
	// ErrUnsupportedOperation is returned when an upgrade is requested for a
	// release that cannot be upgraded in place.
	ErrUnsupportedOperation = errors.New("unsupported operation")
)

// Strategy is the version specific half of a reconciliation pass.
type Strategy interface {
	// Version is the identifier sites declare, e.g. "9.0.X".
	Version() string
	// VersionDir is the shared tree below the version base, e.g. "apache-tomcat-9.0".
	VersionDir() string
	// RequiredPackages lists the OS packages that must be installed first.
	RequiredPackages() []string
	// SupportsUpgrade reports whether UpgradeInPlace is implemented.
	SupportsUpgrade() bool
	// Plan is the complete layout of an installation root.
	Plan() install.Plan
	// BuildInstallation applies the complete layout. It is used for first
	// provisioning and for upgrades.
	BuildInstallation(ctx context.Context, env *install.Env, isUpgrade bool) (install.Result, error)
	// RebuildGenerated recomputes every generated file on a provisioned root.
	RebuildGenerated(ctx context.Context, env *install.Env) (install.Result, error)
	// UpgradeInPlace swaps shared library links for their replacements.
	UpgradeInPlace(ctx context.Context, env *install.Env) (install.Result, error)
}

type family string

const (
	family3X        family = "3.X"
	familyClassic   family = "classic"
	familyVersioned family = "versioned"
)

// release is the one Strategy implementation; the differences between
// releases are data plus the family's layout function.
type release struct {
	id         string
	versionDir string
	family     family
	jdk        string
	servlet    servlet
	connector  string
	confFiles  []string
	splitLibs  bool
	packages   []string
	upgradable bool
	upgrades   []UpgradeSymlink
	layout     func(*release) install.Plan

	plan install.Plan
}

func (r *release) Version() string    { return r.id }
func (r *release) VersionDir() string { return r.versionDir }

func (r *release) RequiredPackages() []string {
	return append([]string(nil), r.packages...)
}

func (r *release) SupportsUpgrade() bool { return r.upgradable }

func (r *release) Plan() install.Plan {
	return append(install.Plan(nil), r.plan...)
}

// UpgradeSymlinks returns the release's link swap table.
func (r *release) UpgradeSymlinks() []UpgradeSymlink {
	return append([]UpgradeSymlink(nil), r.upgrades...)
}

func (r *release) BuildInstallation(ctx context.Context, env *install.Env, isUpgrade bool) (install.Result, error) {
	if isUpgrade && !r.upgradable {
		return install.Result{}, fmt.Errorf("%w: in-place upgrade of tomcat %s", ErrUnsupportedOperation, r.id)
	}
	return r.plan.Apply(ctx, env)
}

func (r *release) RebuildGenerated(ctx context.Context, env *install.Env) (install.Result, error) {
	return r.plan.Filter(install.KindMkdir, install.KindGenerated).Apply(ctx, env)
}

func (r *release) UpgradeInPlace(ctx context.Context, env *install.Env) (install.Result, error) {
	var res install.Result
	if !r.upgradable {
		return res, fmt.Errorf("%w: in-place upgrade of tomcat %s", ErrUnsupportedOperation, r.id)
	}
	for _, u := range r.upgrades {
		if err := ctx.Err(); err != nil {
			return res, fmt.Errorf("upgrade interrupted before %s: %w", u.OldLink, err)
		}
		// A failed swap may already have retired the old link.
		outcome, err := u.Apply(env)
		if outcome == install.Changed {
			path := u.NewLink
			if path == "" || err != nil {
				path = u.OldLink
			}
			res.Changes = append(res.Changes, install.Change{Kind: install.KindSymlink, Path: path})
		}
		if err != nil {
			return res, &install.ActionError{Kind: install.KindSymlink, Path: u.OldLink, Err: err}
		}
	}
	return res, nil
}

func (r *release) String() string {
	return fmt.Sprintf("tomcat %s (%s, %s)", r.id, r.versionDir, r.family)
}
