// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package core runs reconciliation passes: it selects the release strategy
// for a site, converges the site's installation root and records which
// runtime instances must be restarted.
package core

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/drift"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/lock"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/metrics"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/packages"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/restart"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/tomcat"
)

// DefaultVersionBase is where the shared release trees are installed.
const DefaultVersionBase = "/opt"

// Selector picks the strategy for a declared version. *tomcat.Registry
// implements it.
type Selector interface {
	Select(version, site string) (tomcat.Strategy, error)
}

// Journal persists one row per finished pass.
type Journal interface {
	RecordPass(ctx context.Context, rec model.PassRecord) error
}

// Options tune a Reconciler. Zero values select the defaults.
type Options struct {
	VersionBase     string
	BackupSeparator string
	BackupExtension string
	// LockDir holds per-root lock files; empty disables locking.
	LockDir string
	// Parallel bounds ReconcileAll; values below 1 mean one at a time.
	Parallel int
}

// Reconciler converges installation roots. It is safe for concurrent use on
// distinct roots.
type Reconciler struct {
	Registry Selector
	FS       install.FS
	Packages packages.Checker
	Restarts *restart.Aggregator
	Banners  []drift.Banner
	Journal  Journal            // Optional.
	Metrics  *metrics.Collector // Optional.
	Options

	now func() time.Time
}

// New returns a Reconciler with its own restart set and the default banners.
func New(reg Selector, fsys install.FS, checker packages.Checker, opts Options) *Reconciler {
	if opts.VersionBase == "" {
		opts.VersionBase = DefaultVersionBase
	}
	return &Reconciler{
		Registry: reg,
		FS:       fsys,
		Packages: checker,
		Restarts: restart.NewAggregator(),
		Banners:  tomcat.Banners(),
		Options:  opts,
		now:      time.Now,
	}
}

// SiteError is the per-site failure report: the site and the first failing
// path relative to its root, when one is known.
type SiteError struct {
	Site string
	Path string
	Err  error
}

func (e *SiteError) Error() string {
	if e.Path == "" {
		return fmt.Sprintf("site %s: %v", e.Site, e.Err)
	}
	return fmt.Sprintf("site %s: path %s: %v", e.Site, e.Path, e.Err)
}

func (e *SiteError) Unwrap() error {
	return e.Err
}

func siteError(site model.Site, err error) error {
	se := &SiteError{Site: site.String(), Err: err}
	var ae *install.ActionError
	if errors.As(err, &ae) {
		se.Path = ae.Path
		se.Err = ae.Err
	}
	return se
}

// NewPassID returns a fresh identifier for a reconciliation pass.
func NewPassID() string {
	return uuid.NewString()
}

// Reconcile runs one pass for site. With isUpgrade the complete layout is
// applied and shared library links are swapped; otherwise a provisioned root
// only has its generated files recomputed. Failures are *SiteError values.
func (r *Reconciler) Reconcile(ctx context.Context, site model.Site, isUpgrade bool) (model.ReconciliationResult, error) {
	return r.reconcile(ctx, NewPassID(), site, isUpgrade)
}

func (r *Reconciler) reconcile(ctx context.Context, passID string, site model.Site, isUpgrade bool) (model.ReconciliationResult, error) {
	started := r.clock()
	result, err := r.run(ctx, passID, site, isUpgrade)
	finished := r.clock()

	outcome := metrics.ResultOK
	if err != nil {
		outcome = metrics.ResultFailed
		logging.Errorf("reconcile %s failed: %v", site, err)
	} else if len(result.Changed) > 0 {
		logging.Infof("reconciled %s: %d change(s), restart=%v", site, len(result.Changed), result.RestartRequired)
	} else {
		logging.Debugf("reconciled %s: no changes", site)
	}
	if r.Metrics != nil {
		r.Metrics.ObservePass(outcome, len(result.Changed), result.RestartRequired, finished.Sub(started))
	}
	if r.Journal != nil {
		rec := model.PassRecord{
			PassID:          passID,
			Site:            site.Name,
			Version:         site.Version,
			Upgrade:         isUpgrade,
			RestartRequired: result.RestartRequired,
			Changed:         len(result.Changed),
			StartedAt:       started,
			FinishedAt:      finished,
		}
		if err != nil {
			rec.Error = err.Error()
		}
		if jerr := r.Journal.RecordPass(ctx, rec); jerr != nil {
			logging.Warnf("journal write for %s failed: %v", site, jerr)
		}
	}
	return result, err
}

func (r *Reconciler) run(ctx context.Context, passID string, site model.Site, isUpgrade bool) (model.ReconciliationResult, error) {
	result := model.ReconciliationResult{PassID: passID, Site: site.Name}
	if err := site.Validate(); err != nil {
		return result, siteError(site, err)
	}
	strat, err := r.Registry.Select(site.Version, site.Name)
	if err != nil {
		return result, siteError(site, err)
	}
	if isUpgrade && !strat.SupportsUpgrade() {
		return result, siteError(site, fmt.Errorf("%w: in-place upgrade of tomcat %s", tomcat.ErrUnsupportedOperation, strat.Version()))
	}
	if r.Packages != nil {
		if err := packages.Require(ctx, r.Packages, strat.RequiredPackages()...); err != nil {
			return result, siteError(site, err)
		}
	}
	if r.LockDir != "" {
		l, err := lock.ForRoot(r.LockDir, site.Root)
		if err != nil {
			return result, siteError(site, err)
		}
		if err := l.TryLock(); err != nil {
			return result, siteError(site, err)
		}
		defer func() {
			if err := l.Unlock(); err != nil {
				logging.Warnf("unlock %s: %v", l.Path(), err)
			}
		}()
	}

	writer := install.NewWriter(r.FS, r.BackupSeparator, r.BackupExtension)
	env := &install.Env{
		Site:        site,
		Root:        filepath.Clean(site.Root),
		VersionBase: r.VersionBase,
		VersionDir:  strat.VersionDir(),
		UID:         site.UID,
		GID:         site.GID,
		Manual:      site.Manual,
		FS:          r.FS,
		Writer:      writer,
		Resolver:    drift.NewResolver(r.FS, r.Banners...),
	}

	state, err := r.ensureRoot(env)
	if err != nil {
		return result, siteError(site, err)
	}
	provisioning := state != rootReady
	result.Provisioned = provisioning

	var res install.Result
	switch {
	case provisioning || isUpgrade:
		res, err = strat.BuildInstallation(ctx, env, isUpgrade)
		if err == nil && provisioning {
			err = r.finishProvisioning(env)
		}
		if err == nil && isUpgrade {
			var up install.Result
			up, err = strat.UpgradeInPlace(ctx, env)
			res = res.Merge(up)
			result.Upgraded = err == nil
		}
	default:
		res, err = strat.RebuildGenerated(ctx, env)
	}

	result.Changed = res.Paths()
	result.Backups = writer.Backups()
	if state == rootCreated {
		result.Changed = append([]string{"."}, result.Changed...)
	}
	// Committed actions stay committed even when a later one fails, so the
	// restart signal reflects them either way.
	if res.RestartRequired() {
		result.RestartRequired = true
		r.Restarts.MarkDirty(restart.ForSite(site))
	}
	if err != nil {
		return result, siteError(site, err)
	}
	return result, nil
}

type rootState int

const (
	rootReady rootState = iota
	rootCreated
	rootIncomplete
)

// provisioningMarker names the file next to root that exists from the
// moment root is created until its first complete layout has been applied.
func provisioningMarker(root string) string {
	return filepath.Join(filepath.Dir(root), "."+filepath.Base(root)+".provisioning")
}

// ensureRoot creates the installation root when it is missing. A root whose
// provisioning marker is still present was left behind by an interrupted
// first pass and is provisioned again from scratch.
func (r *Reconciler) ensureRoot(env *install.Env) (rootState, error) {
	marker := provisioningMarker(env.Root)
	pending, err := install.Exists(r.FS, marker)
	if err != nil {
		return rootReady, fmt.Errorf("stat %s: %w", marker, err)
	}
	_, _, err = r.FS.LstatIfPossible(env.Root)
	if err == nil {
		if pending {
			logging.Warnf("resuming interrupted provisioning of %s", env.Root)
			return rootIncomplete, nil
		}
		return rootReady, nil
	}
	if !errors.Is(err, fs.ErrNotExist) {
		return rootReady, fmt.Errorf("stat %s: %w", env.Root, err)
	}
	if err := r.FS.MkdirAll(filepath.Dir(env.Root), 0o755); err != nil {
		return rootReady, fmt.Errorf("create parent of %s: %w", env.Root, err)
	}
	if err := afero.WriteFile(r.FS, marker, nil, 0o600); err != nil {
		return rootReady, fmt.Errorf("write %s: %w", marker, err)
	}
	if _, err := env.Writer.EnsureDirectory(env.Root, 0o755, env.UID, env.GID); err != nil {
		return rootReady, err
	}
	return rootCreated, nil
}

// finishProvisioning records that root holds a complete layout.
func (r *Reconciler) finishProvisioning(env *install.Env) error {
	marker := provisioningMarker(env.Root)
	if err := r.FS.Remove(marker); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove %s: %w", marker, err)
	}
	return nil
}

func (r *Reconciler) clock() time.Time {
	if r.now == nil {
		return time.Now()
	}
	return r.now()
}
