// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/config"
)

func newConfigCmd(s *session) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect or persist the effective configuration",
	}

	var system bool
	var to string
	write := &cobra.Command{
		Use:   "write",
		Short: "Write the effective configuration to a config file",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			path := to
			if path == "" {
				p, err := config.GetConfigPath(system)
				if err != nil {
					return err
				}
				path = p
			}
			if err := config.WriteConfigFileTo(&s.cfg, path); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), path)
			return nil
		},
	}
	write.Flags().BoolVar(&system, "system", false, "Write the system-wide file instead of the user file")
	write.Flags().StringVar(&to, "to", "", "Write to this path")

	cmd.AddCommand(write)
	return cmd
}
