package domain

import (
	"errors"
	"slices"
	"strings"
)

var (
	ErrInvalidPrefix        = errors.New("split prefix must be non-empty and must not start or end with whitespace")
	ErrRuleNotFound         = errors.New("split rule not found")
	ErrCorruptConfiguration = errors.New("stored split configuration is corrupt")
)

// SplitRule is a prefix that can be used in a timer's notes to split its
// hours across several projects.
type SplitRule struct {
	Prefix     string
	ProjectIDs []ProjectID
}

// ValidatePrefix checks that prefix can be matched against notes.
func ValidatePrefix(prefix string) error {
	if prefix == "" || strings.TrimSpace(prefix) != prefix {
		return ErrInvalidPrefix
	}
	return nil
}

// Matches reports whether notes select this rule: either notes is exactly
// the prefix, or the prefix is followed by a single space. "SPLIT" must not
// match "SPLITALL".
func (r SplitRule) Matches(notes string) bool {
	return notes == r.Prefix || strings.HasPrefix(notes, r.Prefix+" ")
}

// Equal compares prefix and project order.
func (r SplitRule) Equal(o SplitRule) bool {
	return r.Prefix == o.Prefix && slices.Equal(r.ProjectIDs, o.ProjectIDs)
}

// Includes reports whether id is one of the rule's target projects.
func (r SplitRule) Includes(id ProjectID) bool {
	return slices.Contains(r.ProjectIDs, id)
}

// ToggleProject adds id when absent and removes it when present.
func (r *SplitRule) ToggleProject(id ProjectID) {
	if i := slices.Index(r.ProjectIDs, id); i >= 0 {
		r.ProjectIDs = slices.Delete(r.ProjectIDs, i, i+1)
		return
	}
	r.ProjectIDs = append(r.ProjectIDs, id)
}

// SetProjects replaces the target projects, dropping duplicates while keeping
// first-seen order.
func (r *SplitRule) SetProjects(ids []ProjectID) {
	out := make([]ProjectID, 0, len(ids))
	for _, id := range ids {
		if !slices.Contains(out, id) {
			out = append(out, id)
		}
	}
	r.ProjectIDs = out
}

func (r SplitRule) clone() SplitRule {
	return SplitRule{Prefix: r.Prefix, ProjectIDs: slices.Clone(r.ProjectIDs)}
}

// SplitConfiguration is the ordered set of rules a user has configured.
type SplitConfiguration struct {
	Rules []SplitRule
}

// Match returns the first rule, in configuration order, whose prefix
// selects notes.
func (c SplitConfiguration) Match(notes string) (SplitRule, bool) {
	for _, r := range c.Rules {
		if r.Matches(notes) {
			return r, true
		}
	}
	return SplitRule{}, false
}

// Rule returns the rule at index i.
func (c SplitConfiguration) Rule(i int) (SplitRule, error) {
	if i < 0 || i >= len(c.Rules) {
		return SplitRule{}, ErrRuleNotFound
	}
	return c.Rules[i].clone(), nil
}

// Add appends r after validating its prefix.
func (c *SplitConfiguration) Add(r SplitRule) error {
	if err := ValidatePrefix(r.Prefix); err != nil {
		return err
	}
	c.Rules = append(c.Rules, r.clone())
	return nil
}

// Remove deletes the rule at index i.
func (c *SplitConfiguration) Remove(i int) error {
	if i < 0 || i >= len(c.Rules) {
		return ErrRuleNotFound
	}
	c.Rules = slices.Delete(c.Rules, i, i+1)
	return nil
}

// Replace overwrites the rule at index i.
func (c *SplitConfiguration) Replace(i int, r SplitRule) error {
	if i < 0 || i >= len(c.Rules) {
		return ErrRuleNotFound
	}
	if err := ValidatePrefix(r.Prefix); err != nil {
		return err
	}
	c.Rules[i] = r.clone()
	return nil
}

// Clone returns a deep copy.
func (c SplitConfiguration) Clone() SplitConfiguration {
	out := SplitConfiguration{Rules: make([]SplitRule, 0, len(c.Rules))}
	for _, r := range c.Rules {
		out.Rules = append(out.Rules, r.clone())
	}
	return out
}
