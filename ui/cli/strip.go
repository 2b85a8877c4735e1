// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/drift"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/install"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/tomcat"
)

func newStripBannerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "strip-banner <file>",
		Short: "Remove the generated-file banner from a configuration file",
		Long: `Removes the "generated, do not edit" banner from a file an administrator
has taken over, so later passes on a manual site recognize it as hand
maintained. Files without a known banner are left untouched.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := drift.NewResolver(install.NewOsFs(), tomcat.Banners()...)
			banner, stripped, err := r.Strip(args[0])
			if err != nil {
				return err
			}
			if stripped {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.banner_stripped", banner.Name, args[0]))
			} else {
				fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.banner_none", args[0]))
			}
			return nil
		},
	}
}
