// Package codec converts split configurations to and from the versioned
// document stored by the configuration stores.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"

	"gopkg.in/yaml.v3"

	"timesplit/internal/domain"
)

// Version is the only document version this build reads and writes.
const Version = 1

type document struct {
	Version int         `json:"version" yaml:"version"`
	Splits  []ruleEntry `json:"splits" yaml:"splits"`
}

type ruleEntry struct {
	Prefix   string   `json:"prefix" yaml:"prefix"`
	Projects []string `json:"projects" yaml:"projects"`
}

func toDocument(cfg domain.SplitConfiguration) document {
	doc := document{Version: Version, Splits: make([]ruleEntry, 0, len(cfg.Rules))}
	for _, r := range cfg.Rules {
		projects := make([]string, 0, len(r.ProjectIDs))
		for _, p := range r.ProjectIDs {
			projects = append(projects, string(p))
		}
		doc.Splits = append(doc.Splits, ruleEntry{Prefix: r.Prefix, Projects: projects})
	}
	return doc
}

func fromDocument(doc document) (*domain.SplitConfiguration, error) {
	if doc.Version != Version {
		return nil, fmt.Errorf("%w: unsupported version %d", domain.ErrCorruptConfiguration, doc.Version)
	}
	cfg := &domain.SplitConfiguration{Rules: make([]domain.SplitRule, 0, len(doc.Splits))}
	for i, s := range doc.Splits {
		if err := domain.ValidatePrefix(s.Prefix); err != nil {
			return nil, fmt.Errorf("%w: split %d: %w", domain.ErrCorruptConfiguration, i, err)
		}
		ids := make([]domain.ProjectID, 0, len(s.Projects))
		for _, p := range s.Projects {
			if p == "" {
				return nil, fmt.Errorf("%w: split %q has an empty project identifier", domain.ErrCorruptConfiguration, s.Prefix)
			}
			ids = append(ids, domain.ProjectID(p))
		}
		cfg.Rules = append(cfg.Rules, domain.SplitRule{Prefix: s.Prefix, ProjectIDs: ids})
	}
	return cfg, nil
}

// MarshalJSON encodes cfg as a versioned JSON document.
func MarshalJSON(cfg domain.SplitConfiguration) ([]byte, error) {
	return json.Marshal(toDocument(cfg))
}

// UnmarshalJSON decodes a document written by MarshalJSON. Any decoding
// problem is reported as domain.ErrCorruptConfiguration.
func UnmarshalJSON(b []byte) (*domain.SplitConfiguration, error) {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptConfiguration, err)
	}
	return fromDocument(doc)
}

// MarshalYAML encodes cfg as a versioned YAML document.
func MarshalYAML(cfg domain.SplitConfiguration) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toDocument(cfg)); err != nil {
		return nil, err
	}
	if err := enc.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// UnmarshalYAML decodes a document written by MarshalYAML.
func UnmarshalYAML(b []byte) (*domain.SplitConfiguration, error) {
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrCorruptConfiguration, err)
	}
	return fromDocument(doc)
}
