package bridge

import (
	"fmt"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// SubjectMapping is one subject translation rule. Source is a subject
// prefix; the matching prefix is replaced with Target. Drop acknowledges
// without forwarding.
type SubjectMapping struct {
	Source string `yaml:"source"`
	Target string `yaml:"target"`
	Drop   bool   `yaml:"drop"`
}

// LoadSubjectMappings parses a YAML file of translation rules.
func LoadSubjectMappings(path string) ([]SubjectMapping, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read subject map: %w", err)
	}

	var file struct {
		Mappings []SubjectMapping `yaml:"mappings"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parse subject map: %w", err)
	}
	if len(file.Mappings) == 0 {
		return nil, fmt.Errorf("subject map %q contains no mappings", path)
	}

	out := make([]SubjectMapping, 0, len(file.Mappings))
	for i, m := range file.Mappings {
		m.Source = strings.TrimSpace(m.Source)
		m.Target = strings.TrimSpace(m.Target)
		if m.Source == "" {
			return nil, fmt.Errorf("subject map entry %d: source is required", i)
		}
		if !m.Drop && m.Target == "" {
			return nil, fmt.Errorf("subject map entry %d: target is required unless drop is set", i)
		}
		out = append(out, m)
	}
	return out, nil
}

// subjectMap resolves subjects against prefix rules, longest source
// prefix first, so a rule for "raydium.swap" beats one for "raydium.".
// Unmatched subjects pass through unchanged.
type subjectMap struct {
	rules []SubjectMapping
}

func newSubjectMap(mappings []SubjectMapping) (*subjectMap, error) {
	if len(mappings) == 0 {
		return nil, fmt.Errorf("subject map requires at least one mapping")
	}

	rules := append([]SubjectMapping(nil), mappings...)
	sort.SliceStable(rules, func(i, j int) bool {
		return len(rules[i].Source) > len(rules[j].Source)
	})
	return &subjectMap{rules: rules}, nil
}

func (m *subjectMap) resolve(subject string) (string, bool) {
	for _, rule := range m.rules {
		if !strings.HasPrefix(subject, rule.Source) {
			continue
		}
		if rule.Drop {
			return "", false
		}
		return rule.Target + subject[len(rule.Source):], true
	}
	return subject, true
}
