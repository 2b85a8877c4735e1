// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

package cli

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/db"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/report"
)

// passExport is the JSON shape of one exported journal row.
type passExport struct {
	PassID          string `json:"pass_id"`
	Site            string `json:"site"`
	Version         string `json:"version"`
	Upgrade         bool   `json:"upgrade"`
	RestartRequired bool   `json:"restart_required"`
	Changed         int    `json:"changed"`
	Error           string `json:"error,omitempty"`
	StartedAt       string `json:"started_at"`
	FinishedAt      string `json:"finished_at"`
}

func newHistoryCmd(s *session) *cobra.Command {
	var filter db.PassFilter
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recorded reconciliation passes, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			st, err := s.openStore()
			if err != nil {
				return err
			}
			recs, err := st.ListPasses(cmd.Context(), filter)
			if err != nil {
				return err
			}
			report.New(cmd.OutOrStdout()).History(recs)
			return nil
		},
	}
	cmd.Flags().StringVar(&filter.Site, "site", "", "Only show passes of this site")
	cmd.Flags().IntVar(&filter.Limit, "limit", 20, "Maximum number of passes shown (0 for all)")

	export := &cobra.Command{
		Use:   "export <file>",
		Short: "Write the complete journal as zstd-compressed JSON",
		Long: `Writes every recorded pass to a Zstandard-compressed JSON file.
'.zst' is appended to the name if it is not already present.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := s.openStore()
			if err != nil {
				return err
			}
			recs, err := st.ListPasses(cmd.Context(), db.PassFilter{})
			if err != nil {
				return err
			}
			path := args[0]
			if !strings.HasSuffix(path, ".zst") {
				path += ".zst"
			}
			if err := writeCompressedHistory(path, recs); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), i18n.T("cli.history_exported", len(recs), path))
			return nil
		},
	}
	cmd.AddCommand(export)
	return cmd
}

// writeCompressedHistory streams recs as JSON through a zstd writer.
func writeCompressedHistory(filename string, recs []model.PassRecord) (err error) {
	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("could not create file: %w", err)
	}
	defer func() {
		if cerr := file.Close(); err == nil && cerr != nil {
			err = cerr
		}
	}()

	zw, err := zstd.NewWriter(file)
	if err != nil {
		return fmt.Errorf("could not create zstd writer: %w", err)
	}
	out := make([]passExport, 0, len(recs))
	for _, r := range recs {
		out = append(out, passExport{
			PassID:          r.PassID,
			Site:            r.Site,
			Version:         r.Version,
			Upgrade:         r.Upgrade,
			RestartRequired: r.RestartRequired,
			Changed:         r.Changed,
			Error:           r.Error,
			StartedAt:       r.StartedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
			FinishedAt:      r.FinishedAt.UTC().Format("2006-01-02T15:04:05.000Z07:00"),
		})
	}
	enc := json.NewEncoder(zw)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_ = zw.Close()
		return fmt.Errorf("could not encode json to zstd writer: %w", err)
	}
	if err := zw.Close(); err != nil {
		return fmt.Errorf("could not finish zstd stream: %w", err)
	}
	return nil
}
