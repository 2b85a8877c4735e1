// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/report"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/sites"
)

func newSitesCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sites",
		Short: "Inspect and import site descriptors",
	}

	list := &cobra.Command{
		Use:   "list",
		Short: "List the configured sites",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			src, err := s.source()
			if err != nil {
				return err
			}
			all, err := src.Sites(cmd.Context())
			if err != nil {
				return err
			}
			report.New(cmd.OutOrStdout()).Sites(all)
			return nil
		},
	}

	importCmd := &cobra.Command{
		Use:   "import <file>",
		Short: "Import a YAML site inventory into the database",
		Long: `Reads a YAML inventory ("sites:" list) and creates or updates each site in
the database. Sites missing from the file are left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read inventory: %w", err)
			}
			inv, err := sites.ParseInventory(data)
			if err != nil {
				return err
			}
			st, err := s.openStore()
			if err != nil {
				return err
			}
			created := 0
			for _, site := range inv {
				isNew, err := st.UpsertSite(cmd.Context(), site)
				if err != nil {
					return fmt.Errorf("import site %s: %w", site.Name, err)
				}
				if isNew {
					created++
				}
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.sites_imported", len(inv), created, len(inv)-created))
			return nil
		},
	}

	cmd.AddCommand(list, importCmd)
	return cmd
}
