package domain

// SplitTimer splits t according to the first rule in cfg whose prefix
// matches its notes.
//
// The result always starts with the original timer. When nothing is split
// it is returned unchanged; otherwise it is deactivated, its hours reduced
// to an equal share and the prefix stripped from its notes, and it is
// followed by one new timer (no ID) per other project of the rule. Hours are
// divided by the total number of projects in the rule, so the shares add up
// to the original hours.
func SplitTimer(t Timer, cfg SplitConfiguration) []Timer {
	if t.Notes == nil || t.Hours == nil {
		return []Timer{t}
	}
	notes := *t.Notes
	rule, ok := cfg.Match(notes)
	if !ok {
		return []Timer{t}
	}

	newTimerProjects := make([]ProjectID, 0, len(rule.ProjectIDs))
	for _, p := range rule.ProjectIDs {
		if p != t.ProjectID {
			newTimerProjects = append(newTimerProjects, p)
		}
	}
	if len(newTimerProjects) == 0 {
		return []Timer{t}
	}

	eachHours := *t.Hours / float64(len(rule.ProjectIDs))
	strippedNotes := ""
	if notes != rule.Prefix {
		// Only the single separating space goes; "SPLIT  x" leaves " x".
		strippedNotes = notes[len(rule.Prefix)+1:]
	}

	out := make([]Timer, 0, 1+len(newTimerProjects))
	original := t
	if t.ID != nil {
		id := *t.ID
		original.ID = &id
	}
	original.Active = false
	original.Hours = float64Ptr(eachHours)
	original.Notes = stringPtr(strippedNotes)
	out = append(out, original)

	for _, p := range newTimerProjects {
		nt := t
		nt.ID = nil
		nt.Active = false
		nt.ProjectID = p
		nt.Hours = float64Ptr(eachHours)
		nt.Notes = stringPtr(strippedNotes)
		out = append(out, nt)
	}
	return out
}

func float64Ptr(v float64) *float64 { return &v }

func stringPtr(v string) *string { return &v }
