// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package tomcat

import (
	"errors"
	"fmt"
	"io/fs"
	"path/filepath"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
)

// UpgradeSymlink swaps one site link from an old shared artifact to its
// replacement. Links are relative to the installation root; targets are
// relative to the version base directory. An empty NewLink retires the old
// link without a replacement.
type UpgradeSymlink struct {
	OldLink   string
	OldTarget string
	NewLink   string
	NewTarget string
}

// Apply performs the swap when OldLink still points at OldTarget. Anything
// else at OldLink belongs to the administrator and is left alone.
func (u UpgradeSymlink) Apply(env *install.Env) (install.Outcome, error) {
	matched, err := u.oldLinkMatches(env)
	if err != nil || !matched {
		return install.Unchanged, err
	}
	oldAbs, err := env.Abs(u.OldLink)
	if err != nil {
		return install.Unchanged, err
	}
	if u.NewLink == "" {
		return env.Writer.Delete(oldAbs)
	}
	newAbs, err := env.Abs(u.NewLink)
	if err != nil {
		return install.Unchanged, err
	}
	outcome := install.Unchanged
	if newAbs != oldAbs {
		if outcome, err = env.Writer.Delete(oldAbs); err != nil {
			return install.Unchanged, err
		}
	}
	target, err := env.LinkTarget(u.NewLink, filepath.Join(env.VersionBase, filepath.FromSlash(u.NewTarget)))
	if err != nil {
		return outcome, err
	}
	o, err := env.Writer.EnsureSymlink(newAbs, target, env.UID, env.GID)
	if err != nil {
		return outcome, err
	}
	if o == install.Changed {
		outcome = install.Changed
	}
	return outcome, nil
}

func (u UpgradeSymlink) oldLinkMatches(env *install.Env) (bool, error) {
	abs, err := env.Abs(u.OldLink)
	if err != nil {
		return false, err
	}
	info, _, err := env.FS.LstatIfPossible(abs)
	if errors.Is(err, fs.ErrNotExist) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("stat %s: %w", abs, err)
	}
	if info.Mode()&fs.ModeSymlink == 0 {
		return false, nil
	}
	current, err := env.FS.ReadlinkIfPossible(abs)
	if err != nil {
		return false, fmt.Errorf("readlink %s: %w", abs, err)
	}
	oldDest := filepath.Join(env.VersionBase, filepath.FromSlash(u.OldTarget))
	if current == oldDest {
		return true, nil
	}
	rel, err := env.LinkTarget(u.OldLink, oldDest)
	if err != nil {
		return false, err
	}
	return current == rel, nil
}

// Shared JDBC drivers and mail jars live next to the version trees. Their
// upgrades apply to every release that supports in-place upgrade.
var jdbcUpgrades = []UpgradeSymlink{
	{
		OldLink: "lib/postgresql.jar", OldTarget: "postgresql-jdbc/postgresql-42.2.jar",
		NewLink: "lib/postgresql.jar", NewTarget: "postgresql-jdbc/postgresql-42.7.jar",
	},
	{
		OldLink: "lib/mysql-connector-java.jar", OldTarget: "mysql-connector-java/mysql-connector-java-5.1.jar",
		NewLink: "lib/mysql-connector-j.jar", NewTarget: "mysql-connector-j/mysql-connector-j-8.4.jar",
	},
	{
		OldLink: "lib/mysql-connector-java-8.jar", OldTarget: "mysql-connector-java/mysql-connector-java-8.0.jar",
		NewLink: "lib/mysql-connector-j.jar", NewTarget: "mysql-connector-j/mysql-connector-j-8.4.jar",
	},
}

var classicUpgrades = []UpgradeSymlink{
	{OldLink: "lib/ecj.jar", OldTarget: "eclipse-jdt/ecj-3.7.jar"},
	{
		OldLink: "lib/javax.mail.jar", OldTarget: "javamail/javax.mail-1.5.jar",
		NewLink: "lib/javax.mail.jar", NewTarget: "javamail/javax.mail-1.6.jar",
	},
}

var jakartaUpgrades = []UpgradeSymlink{
	{
		OldLink: "lib/javax.mail.jar", OldTarget: "javamail/javax.mail-1.6.jar",
		NewLink: "lib/jakarta.mail.jar", NewTarget: "jakarta-mail/jakarta.mail-2.1.jar",
	},
	{OldLink: "lib/jakartaee-migration.jar", OldTarget: "jakartaee-migration/jakartaee-migration-1.0.jar"},
}

func upgrades(tables ...[]UpgradeSymlink) []UpgradeSymlink {
	var out []UpgradeSymlink
	for _, t := range tables {
		out = append(out, t...)
	}
	return out
}
