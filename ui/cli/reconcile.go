// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/core"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/logging"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/metrics"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/report"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/sites"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/tomcat"
)

func newReconcileCmd(s *session) *cobra.Command {
	var all, upgrade bool
	cmd := &cobra.Command{
		Use:   "reconcile [site...]",
		Short: "Bring site installation roots in line with their Tomcat version",
		Long: `Reconciles the named sites, or every enabled site with --all.

A root that does not exist yet is provisioned with the complete layout of the
site's version; so is a root whose first provisioning did not finish. An
existing root only has its generated configuration files
recomputed, unless --upgrade is given, in which case the complete layout is
applied and shared library links are moved to their current releases.

Every file that is replaced or removed is kept next to the original as
<name>.<n>.old. The instances that need a restart are listed at the end.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			src, err := s.source()
			if err != nil {
				return err
			}
			selected, err := selectSites(ctx, src, args, all)
			if err != nil {
				return err
			}

			r := core.New(tomcat.Default(), install.NewOsFs(), s.checker(), core.Options{
				VersionBase:     s.cfg.Versions.BaseDir,
				BackupSeparator: s.cfg.Backup.Separator,
				BackupExtension: s.cfg.Backup.Extension,
				LockDir:         s.cfg.LockDir,
				Parallel:        s.cfg.Parallel,
			})
			r.Metrics = metrics.NewCollector()
			if st, err := s.openStore(); err != nil {
				logging.Warnf("pass journal disabled: %v", err)
			} else {
				r.Journal = st
			}

			batch := r.ReconcileAll(ctx, selected, upgrade)
			report.New(cmd.OutOrStdout()).Batch(batch)

			if s.cfg.MetricsFile != "" {
				if err := r.Metrics.WriteTextfile(s.cfg.MetricsFile); err != nil {
					logging.Warnf("write metrics to %s: %v", s.cfg.MetricsFile, err)
				}
			}
			if failed := len(batch.Failed()); failed > 0 {
				return errors.New(i18n.T("cli.reconcile_failed", failed))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Reconcile every enabled site")
	cmd.Flags().BoolVar(&upgrade, "upgrade", false, "Apply the complete layout and upgrade shared library links in place")
	cmd.Flags().Int("parallel", 4, "Number of sites reconciled at once")
	return cmd
}

// selectSites resolves the command arguments to site descriptors.
func selectSites(ctx context.Context, src sites.Source, names []string, all bool) ([]model.Site, error) {
	if all {
		return src.Sites(ctx)
	}
	if len(names) == 0 {
		return nil, errors.New(i18n.T("cli.no_sites_selected"))
	}
	out := make([]model.Site, 0, len(names))
	for _, name := range names {
		site, err := src.Site(ctx, name)
		if errors.Is(err, sites.ErrSiteNotFound) {
			return nil, errors.New(i18n.T("cli.error_unknown_site", name))
		}
		if err != nil {
			return nil, fmt.Errorf("load site %s: %w", name, err)
		}
		out = append(out, site)
	}
	return out, nil
}

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions",
		Short: "List the supported Tomcat version identifiers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			report.NewPlain(cmd.OutOrStdout()).Lines(tomcat.Default().Versions())
		},
	}
}
