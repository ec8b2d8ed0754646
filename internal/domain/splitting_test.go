package domain

import (
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func projectSet(timers []Timer) map[ProjectID]bool {
	m := make(map[ProjectID]bool)
	for _, t := range timers {
		m[t.ProjectID] = true
	}
	return m
}

func countPersisted(timers []Timer) int {
	n := 0
	for _, t := range timers {
		if t.Persisted() {
			n++
		}
	}
	return n
}

func TestSplitTimerDoesntSplitUnprefixedNotes(t *testing.T) {
	timer := Timer{ProjectID: "1", Hours: ptr(4.0), Notes: ptr("This is what I did for three hours.")}

	got := SplitTimer(timer, testConfiguration())

	require.Len(t, got, 1)
	assert.Equal(t, 4.0, *got[0].Hours)
	if diff := cmp.Diff([]Timer{timer}, got); diff != "" {
		t.Errorf("SplitTimer() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitTimerSplitsAll(t *testing.T) {
	timer := Timer{
		ID:        ptr(int64(123456789)),
		ProjectID: "2",
		Hours:     ptr(4.0),
		Active:    true,
		Notes:     ptr("SPLITALL This is what I did for three hours."),
	}

	got := SplitTimer(timer, testConfiguration())

	require.Len(t, got, 4)
	for _, tm := range got {
		assert.Equal(t, 1.0, *tm.Hours)
		assert.False(t, tm.Active)
		assert.Equal(t, "This is what I did for three hours.", *tm.Notes)
	}
	assert.Equal(t, 1, countPersisted(got))
	assert.Equal(t, int64(123456789), *got[0].ID)
	assert.Equal(t, map[ProjectID]bool{"1": true, "2": true, "3": true, "4": true}, projectSet(got))
}

func TestSplitTimerSplitsTwo(t *testing.T) {
	timer := Timer{
		ID:        ptr(int64(123456789)),
		ProjectID: "2",
		Hours:     ptr(4.0),
		Active:    true,
		Notes:     ptr("SPLIT This is what I did for three hours."),
	}

	got := SplitTimer(timer, testConfiguration())

	require.Len(t, got, 2)
	for _, tm := range got {
		assert.Equal(t, 2.0, *tm.Hours)
		assert.False(t, tm.Active)
		assert.Equal(t, "This is what I did for three hours.", *tm.Notes)
	}
	assert.Equal(t, 1, countPersisted(got))
	assert.Equal(t, map[ProjectID]bool{"1": true, "2": true}, projectSet(got))
}

func TestSplitTimerResultLayout(t *testing.T) {
	spent := time.Date(2017, 7, 23, 0, 0, 0, 0, time.UTC)
	timer := Timer{
		ID:        ptr(int64(7)),
		ProjectID: "3",
		TaskID:    "99",
		Hours:     ptr(6.0),
		Active:    true,
		Notes:     ptr("SPLIT did things"),
		SpentAt:   spent,
	}
	cfg := SplitConfiguration{Rules: []SplitRule{{Prefix: "SPLIT", ProjectIDs: []ProjectID{"1", "2", "3"}}}}

	got := SplitTimer(timer, cfg)

	want := []Timer{
		{ID: ptr(int64(7)), ProjectID: "3", TaskID: "99", Hours: ptr(2.0), Notes: ptr("did things"), SpentAt: spent},
		{ProjectID: "1", TaskID: "99", Hours: ptr(2.0), Notes: ptr("did things"), SpentAt: spent},
		{ProjectID: "2", TaskID: "99", Hours: ptr(2.0), Notes: ptr("did things"), SpentAt: spent},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("SplitTimer() mismatch (-want +got):\n%s", diff)
	}
}

func TestSplitTimerTimerOutsideRuleProjects(t *testing.T) {
	timer := Timer{ID: ptr(int64(1)), ProjectID: "9", Hours: ptr(4.0), Notes: ptr("SPLIT x")}

	got := SplitTimer(timer, testConfiguration())

	// The original keeps its own project and still takes one share.
	require.Len(t, got, 3)
	assert.Equal(t, ProjectID("9"), got[0].ProjectID)
	sum := 0.0
	for _, tm := range got {
		sum += *tm.Hours
	}
	assert.InDelta(t, 6.0, sum, 1e-9)
	assert.Equal(t, 2.0, *got[0].Hours)
}

func TestSplitTimerNoOpCases(t *testing.T) {
	cfg := SplitConfiguration{Rules: []SplitRule{
		{Prefix: "SELF", ProjectIDs: []ProjectID{"1"}},
		{Prefix: "EMPTY", ProjectIDs: nil},
		ruleTwo,
	}}
	tests := []struct {
		name  string
		timer Timer
	}{
		{name: "nil notes", timer: Timer{ID: ptr(int64(1)), ProjectID: "1", Hours: ptr(4.0), Active: true}},
		{name: "nil hours", timer: Timer{ID: ptr(int64(1)), ProjectID: "1", Notes: ptr("SPLIT x"), Active: true}},
		{name: "no match", timer: Timer{ProjectID: "1", Hours: ptr(4.0), Notes: ptr("SPLITx")}},
		{name: "only own project", timer: Timer{ID: ptr(int64(1)), ProjectID: "1", Hours: ptr(4.0), Notes: ptr("SELF x"), Active: true}},
		{name: "rule without projects", timer: Timer{ProjectID: "1", Hours: ptr(4.0), Notes: ptr("EMPTY")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SplitTimer(tt.timer, cfg)
			if diff := cmp.Diff([]Timer{tt.timer}, got); diff != "" {
				t.Errorf("SplitTimer() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestSplitTimerStrippedNotes(t *testing.T) {
	tests := []struct {
		notes string
		want  string
	}{
		{notes: "SPLIT", want: ""},
		{notes: "SPLIT ", want: ""},
		{notes: "SPLIT x", want: "x"},
		{notes: "SPLIT  extra space", want: " extra space"},
		{notes: "SPLIT a  b ", want: "a  b "},
	}
	for _, tt := range tests {
		t.Run(tt.notes, func(t *testing.T) {
			timer := Timer{ProjectID: "2", Hours: ptr(1.0), Notes: ptr(tt.notes)}
			got := SplitTimer(timer, testConfiguration())
			require.Len(t, got, 2)
			for _, tm := range got {
				assert.Equal(t, tt.want, *tm.Notes)
			}
		})
	}
}

func TestSplitTimerPreservesTotalHours(t *testing.T) {
	cfg := SplitConfiguration{Rules: []SplitRule{
		{Prefix: "THREE", ProjectIDs: []ProjectID{"a", "b", "c"}},
		{Prefix: "SEVEN", ProjectIDs: []ProjectID{"a", "b", "c", "d", "e", "f", "g"}},
	}}
	for _, hours := range []float64{0, 0.1, 1, 2.5, 4, 7.75, 10.333} {
		for _, notes := range []string{"THREE x", "SEVEN", "SEVEN y"} {
			for _, own := range []ProjectID{"a", "z"} {
				timer := Timer{ID: ptr(int64(42)), ProjectID: own, Hours: ptr(hours), Notes: ptr(notes)}
				got := SplitTimer(timer, cfg)

				rule, ok := cfg.Match(notes)
				require.True(t, ok)
				remaining := 0
				for _, p := range rule.ProjectIDs {
					if p != own {
						remaining++
					}
				}
				require.Len(t, got, remaining+1)

				sum := 0.0
				for _, tm := range got {
					sum += *tm.Hours
				}
				// A timer outside the rule's projects keeps a share too, so
				// the shares only add up when it is one of the targets.
				if rule.Includes(own) {
					assert.InDelta(t, hours, sum, 1e-9, "hours=%v notes=%q", hours, notes)
				}
				assert.Equal(t, 1, countPersisted(got))
				assert.Equal(t, int64(42), *got[0].ID)
			}
		}
	}
}

func TestSplitTimerDoesNotMutateInput(t *testing.T) {
	timer := Timer{ID: ptr(int64(5)), ProjectID: "2", Hours: ptr(4.0), Active: true, Notes: ptr("SPLIT x")}
	before := timer
	beforeHours, beforeNotes, beforeID := *timer.Hours, *timer.Notes, *timer.ID

	got := SplitTimer(timer, testConfiguration())
	*got[0].ID = 999
	*got[0].Hours = 999
	*got[1].Notes = "changed"

	assert.Equal(t, before.Active, timer.Active)
	assert.Equal(t, beforeHours, *timer.Hours)
	assert.Equal(t, beforeNotes, *timer.Notes)
	assert.Equal(t, beforeID, *timer.ID)
}

func TestSplitTimerUnpersistedInput(t *testing.T) {
	timer := Timer{ProjectID: "2", Hours: ptr(4.0), Notes: ptr("SPLIT x")}

	got := SplitTimer(timer, testConfiguration())

	require.Len(t, got, 2)
	assert.Equal(t, 0, countPersisted(got))
}
