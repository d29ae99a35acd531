package contract

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/huangsam/ers/schema"
)

// LoadSubjectFile reads scoring subjects from a YAML or JSON file.
// The document may be a single subject, a list of subjects, or a
// mapping with a "subjects" list.
func LoadSubjectFile(path string) ([]schema.ScoringSubject, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read subject file %q: %w", path, err)
	}
	return ParseSubjects(data)
}

// ParseSubjects decodes subjects from YAML or JSON bytes.
func ParseSubjects(data []byte) ([]schema.ScoringSubject, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse subjects: %w", err)
	}
	if len(doc.Content) == 0 {
		return nil, fmt.Errorf("no subjects found")
	}
	root := doc.Content[0]

	var subjects []schema.ScoringSubject
	switch root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&subjects); err != nil {
			return nil, fmt.Errorf("failed to decode subject list: %w", err)
		}
	case yaml.MappingNode:
		var wrapper struct {
			Subjects []schema.ScoringSubject `yaml:"subjects"`
		}
		if err := root.Decode(&wrapper); err == nil && len(wrapper.Subjects) > 0 {
			subjects = wrapper.Subjects
			break
		}
		var single schema.ScoringSubject
		if err := root.Decode(&single); err != nil {
			return nil, fmt.Errorf("failed to decode subject: %w", err)
		}
		subjects = []schema.ScoringSubject{single}
	default:
		return nil, fmt.Errorf("unexpected document kind in subject file")
	}

	if len(subjects) == 0 {
		return nil, fmt.Errorf("no subjects found")
	}
	return subjects, nil
}
