package main

import (
	"bytes"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"timesplit/internal/domain"
	"timesplit/internal/usecase"
)

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestRulesCommands(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "splits.yaml"))
	t.Setenv("LOG_LEVEL", "error")

	out, err := run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "No split rules configured")

	out, err = run(t, "rules", "add", "SPLIT", "1", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Added rule 0 (SPLIT)")

	_, err = run(t, "rules", "add", "SPLITALL", "1", "2", "3")
	require.NoError(t, err)
	_, err = run(t, "rules", "toggle", "1", "4")
	require.NoError(t, err)
	_, err = run(t, "rules", "rename", "0", "HALF")
	require.NoError(t, err)

	out, err = run(t, "rules", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "HALF")
	assert.Contains(t, out, "1, 2, 3, 4")

	_, err = run(t, "rules", "remove", "0")
	require.NoError(t, err)
	out, err = run(t, "rules", "list")
	require.NoError(t, err)
	assert.NotContains(t, out, "HALF")
	assert.Contains(t, out, "SPLITALL")

	_, err = run(t, "rules", "remove", "5")
	assert.ErrorIs(t, err, domain.ErrRuleNotFound)
	_, err = run(t, "rules", "rename", "x", "A")
	assert.Error(t, err)
}

func TestHarvestCommandsNeedCredentials(t *testing.T) {
	t.Setenv("STORE_BACKEND", "file")
	t.Setenv("STORE_PATH", filepath.Join(t.TempDir(), "splits.yaml"))
	t.Setenv("HARVEST_SUBDOMAIN", "")
	t.Setenv("HARVEST_BASE_URL", "")
	t.Setenv("HARVEST_USERNAME", "")
	t.Setenv("HARVEST_PASSWORD", "")

	_, err := run(t, "timers")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "HARVEST_USERNAME")
}

func TestRenderPreview(t *testing.T) {
	id, hours, notes := int64(7), 4.0, "SPLIT review"
	rule := domain.SplitRule{Prefix: "SPLIT", ProjectIDs: []domain.ProjectID{"1", "2"}}
	p := usecase.Preview{
		Day: domain.Day{
			Date:     time.Date(2017, 7, 23, 0, 0, 0, 0, time.UTC),
			Projects: []domain.Project{{ID: "2", Name: "Website", Code: "WEB"}},
		},
		Views: []usecase.TimerView{{
			Timer:       domain.Timer{ID: &id, ProjectID: "2", Hours: &hours, Notes: &notes},
			ShouldSplit: true,
			Rule:        &rule,
			Projects:    "1, 2",
		}},
	}

	var buf bytes.Buffer
	require.NoError(t, renderPreview(&buf, p))
	out := buf.String()
	assert.Contains(t, out, "WEB - Website")
	assert.Contains(t, out, "4.00")
	assert.Contains(t, out, "SPLIT review")
	assert.Contains(t, out, "1, 2")

	buf.Reset()
	require.NoError(t, renderPreview(&buf, usecase.Preview{Day: p.Day}))
	assert.Contains(t, buf.String(), "No timers on 2017-07-23")
}

func TestRenderReport(t *testing.T) {
	hours, notes := 2.0, "review"
	r := usecase.Report{
		RunID: "run-1",
		Results: []domain.DispatchResult{
			{Timer: domain.Timer{ProjectID: "1", Hours: &hours, Notes: &notes}, Operation: domain.OperationCreate, Err: assert.AnError},
		},
	}
	var buf bytes.Buffer
	require.NoError(t, renderReport(&buf, r))
	assert.Contains(t, buf.String(), "failed")
	assert.Contains(t, buf.String(), "run run-1")
}

func TestParseIndex(t *testing.T) {
	i, err := parseIndex("3")
	require.NoError(t, err)
	assert.Equal(t, 3, i)
	_, err = parseIndex("-1")
	assert.Error(t, err)
}

func TestTableAlignsColouredCells(t *testing.T) {
	tbl := newTable("ID", "SPLIT", "NOTES")
	tbl.Row("7", "\x1b[38;5;243mno\x1b[0m", "plain")
	tbl.Row("\x1b[1;38;5;42mnew\x1b[0m", "\x1b[1;38;5;42mSPLITALL\x1b[0m", "review")
	tbl.Row("12345", "SPLIT", "")

	var buf bytes.Buffer
	require.NoError(t, writeTable(&buf, tbl))

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Greater(t, len(lines), 3)
	want := lipgloss.Width(lines[0])
	for _, l := range lines {
		assert.Equal(t, want, lipgloss.Width(l), "line %q", l)
	}
}
