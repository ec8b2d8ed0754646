package main

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"timesplit/internal/domain"
	"timesplit/internal/usecase"
)

var (
	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	splitStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("42")).
			Bold(true)

	failStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196")).
			Bold(true)

	dimStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("243"))
)

var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// newTable lays out styled cells by their display width, so colour codes
// do not shift the columns.
func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers(headers...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle.Padding(0, 1)
			}
			return cellStyle
		})
}

func writeTable(w io.Writer, t *table.Table) error {
	_, err := fmt.Fprintln(w, t.Render())
	return err
}

func idText(id *int64) string {
	if id == nil {
		return dimStyle.Render("new")
	}
	return strconv.FormatInt(*id, 10)
}

func hoursText(h *float64) string {
	if h == nil {
		return "-"
	}
	return strconv.FormatFloat(*h, 'f', 2, 64)
}

func notesText(n *string) string {
	if n == nil {
		return ""
	}
	return *n
}

func projectText(id domain.ProjectID, projects map[domain.ProjectID]domain.Project) string {
	if p, ok := projects[id]; ok {
		return p.Label()
	}
	return string(id)
}

func renderPreview(w io.Writer, p usecase.Preview) error {
	if len(p.Views) == 0 {
		_, err := fmt.Fprintf(w, "No timers on %s.\n", p.Day.Date.Format("2006-01-02"))
		return err
	}
	projects := p.Day.ProjectByID()
	t := newTable("ID", "PROJECT", "HOURS", "ACTIVE", "SPLIT", "SPLIT PROJECTS", "NOTES")
	for _, v := range p.Views {
		split := dimStyle.Render("no")
		if v.ShouldSplit {
			split = splitStyle.Render(v.Rule.Prefix)
		}
		t.Row(
			idText(v.Timer.ID),
			projectText(v.Timer.ProjectID, projects),
			hoursText(v.Timer.Hours),
			strconv.FormatBool(v.Timer.Active),
			split,
			v.Projects,
			notesText(v.Timer.Notes),
		)
	}
	return writeTable(w, t)
}

func renderReport(w io.Writer, r usecase.Report) error {
	if len(r.Results) == 0 {
		_, err := fmt.Fprintln(w, "Nothing to split.")
		return err
	}
	t := newTable("OPERATION", "ID", "PROJECT", "HOURS", "RESULT", "NOTES")
	for _, res := range r.Results {
		status := splitStyle.Render("ok")
		switch {
		case r.DryRun:
			status = dimStyle.Render("dry run")
		case !res.Succeeded():
			status = failStyle.Render("failed: " + res.Err.Error())
		}
		id := res.Timer.ID
		if res.Saved != nil && res.Saved.ID != nil {
			id = res.Saved.ID
		}
		t.Row(
			string(res.Operation),
			idText(id),
			string(res.Timer.ProjectID),
			hoursText(res.Timer.Hours),
			status,
			notesText(res.Timer.Notes),
		)
	}
	if err := writeTable(w, t); err != nil {
		return err
	}
	_, err := fmt.Fprintln(w, dimStyle.Render("run "+r.RunID))
	return err
}

func renderRules(w io.Writer, cfg domain.SplitConfiguration) error {
	if len(cfg.Rules) == 0 {
		_, err := fmt.Fprintln(w, "No split rules configured. Add one with: timesplit rules add PREFIX PROJECT_ID...")
		return err
	}
	t := newTable("INDEX", "PREFIX", "PROJECTS")
	for i, r := range cfg.Rules {
		ids := make([]string, 0, len(r.ProjectIDs))
		for _, p := range r.ProjectIDs {
			ids = append(ids, string(p))
		}
		t.Row(strconv.Itoa(i), r.Prefix, strings.Join(ids, ", "))
	}
	return writeTable(w, t)
}
