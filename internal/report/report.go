// Copyright (c) 2026 AOServ Team
// AOServ Daemon - Tomcat installation reconciler
// This source code is licensed under the MIT license found in the LICENSE file.

// Package report renders reconciliation results, the pass journal and the
// site list for humans. Output is styled with lipgloss on a terminal and
// plain otherwise.
package report

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"golang.org/x/term"

	"github.com/ao-apps/aoserv-daemon-sub001/internal/core"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/i18n"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/model"
	"github.com/ao-apps/aoserv-daemon-sub001/internal/restart"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	cellStyle   = lipgloss.NewStyle().Padding(0, 1)
	okStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("2"))
	failStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	plainCell   = lipgloss.NewStyle().PaddingRight(2)
)

// Printer writes reports to one output.
type Printer struct {
	w      io.Writer
	styled bool
	now    func() time.Time
}

// New returns a Printer that styles its output when w is a terminal.
func New(w io.Writer) *Printer {
	styled := false
	if f, ok := w.(*os.File); ok {
		styled = term.IsTerminal(int(f.Fd()))
	}
	return &Printer{w: w, styled: styled, now: time.Now}
}

// NewPlain returns a Printer that never emits escape sequences.
func NewPlain(w io.Writer) *Printer {
	return &Printer{w: w, now: time.Now}
}

// Batch prints one row per site, the restart set and a summary line.
func (p *Printer) Batch(b core.Batch) {
	rows := make([][]string, 0, len(b.Outcomes))
	failed, skipped := 0, 0
	for _, o := range b.Outcomes {
		status := p.status(o)
		switch {
		case o.Skipped:
			skipped++
		case o.Err != nil:
			failed++
		}
		rows = append(rows, []string{
			o.Site.Name,
			o.Site.Version,
			status,
			strconv.Itoa(len(o.Result.Changed)),
			p.yesNo(o.Result.RestartRequired),
		})
	}
	p.table([]string{
		i18n.T("report.header.site"),
		i18n.T("report.header.version"),
		i18n.T("report.header.result"),
		i18n.T("report.header.changes"),
		i18n.T("report.header.restart"),
	}, rows)

	for _, o := range b.Outcomes {
		if o.Err != nil {
			fmt.Fprintf(p.w, "%s\n", p.paint(failStyle, o.Err.Error()))
		}
	}
	p.Restarts(b.Restarts)
	fmt.Fprintln(p.w, i18n.T("report.summary", len(b.Outcomes), failed, skipped))
}

// Restarts prints the instances that must be restarted.
func (p *Printer) Restarts(targets []restart.Target) {
	if len(targets) == 0 {
		fmt.Fprintln(p.w, i18n.T("report.no_restarts"))
		return
	}
	names := make([]string, len(targets))
	for i, t := range targets {
		names[i] = t.String()
	}
	fmt.Fprintln(p.w, i18n.T("report.restarts", strings.Join(names, ", ")))
}

// History prints journal rows, newest first as given.
func (p *Printer) History(recs []model.PassRecord) {
	if len(recs) == 0 {
		fmt.Fprintln(p.w, i18n.T("report.no_history"))
		return
	}
	now := p.now()
	rows := make([][]string, 0, len(recs))
	for _, r := range recs {
		result := p.paint(okStyle, i18n.T("report.result.ok"))
		if r.Failed() {
			result = p.paint(failStyle, i18n.T("report.result.failed"))
		}
		rows = append(rows, []string{
			humanize.RelTime(r.StartedAt, now, "ago", "from now"),
			r.Site,
			r.Version,
			result,
			strconv.Itoa(r.Changed),
			p.yesNo(r.RestartRequired),
			r.Duration().Round(time.Millisecond).String(),
		})
	}
	p.table([]string{
		i18n.T("report.header.when"),
		i18n.T("report.header.site"),
		i18n.T("report.header.version"),
		i18n.T("report.header.result"),
		i18n.T("report.header.changes"),
		i18n.T("report.header.restart"),
		i18n.T("report.header.duration"),
	}, rows)
}

// Sites prints the configured sites.
func (p *Printer) Sites(sites []model.Site) {
	if len(sites) == 0 {
		fmt.Fprintln(p.w, i18n.T("report.no_sites"))
		return
	}
	rows := make([][]string, 0, len(sites))
	for _, s := range sites {
		var notes []string
		if s.Manual {
			notes = append(notes, i18n.T("report.manual"))
		}
		if s.IsShared() {
			notes = append(notes, i18n.T("report.shared", s.SharedInstance))
		}
		if s.Disabled {
			notes = append(notes, i18n.T("report.result.skipped"))
		}
		rows = append(rows, []string{s.Name, s.Version, s.Root, p.paint(dimStyle, strings.Join(notes, ", "))})
	}
	p.table([]string{i18n.T("report.header.site"), i18n.T("report.header.version"), "Root", ""}, rows)
}

// Lines prints one value per line.
func (p *Printer) Lines(values []string) {
	for _, v := range values {
		fmt.Fprintln(p.w, v)
	}
}

func (p *Printer) status(o core.Outcome) string {
	switch {
	case o.Skipped:
		return p.paint(dimStyle, i18n.T("report.result.skipped"))
	case o.Err != nil:
		return p.paint(failStyle, i18n.T("report.result.failed"))
	case o.Result.Provisioned:
		return p.paint(okStyle, i18n.T("report.result.provisioned"))
	case o.Result.Upgraded:
		return p.paint(okStyle, i18n.T("report.result.upgraded"))
	case len(o.Result.Changed) == 0:
		return i18n.T("report.result.unchanged")
	default:
		return p.paint(okStyle, i18n.T("report.result.ok"))
	}
}

func (p *Printer) yesNo(b bool) string {
	if b {
		return i18n.T("report.yes")
	}
	return i18n.T("report.no")
}

func (p *Printer) paint(s lipgloss.Style, text string) string {
	if !p.styled {
		return text
	}
	return s.Render(text)
}

func (p *Printer) table(headers []string, rows [][]string) {
	t := table.New().Headers(headers...).Rows(rows...)
	if p.styled {
		t = t.Border(lipgloss.RoundedBorder()).
			BorderStyle(dimStyle).
			StyleFunc(func(row, _ int) lipgloss.Style {
				if row == table.HeaderRow {
					return headerStyle
				}
				return cellStyle
			})
	} else {
		t = t.Border(lipgloss.HiddenBorder()).
			BorderTop(false).BorderBottom(false).BorderLeft(false).BorderRight(false).
			BorderHeader(false).BorderColumn(false).
			StyleFunc(func(int, int) lipgloss.Style { return plainCell })
	}
	fmt.Fprintln(p.w, t.Render())
}
