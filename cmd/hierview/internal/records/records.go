// Package records reads domain record files for the CLI.
package records

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/recera/hierview/pkg/processor"
)

// ErrNotAList is returned when a file does not hold a list of records
var ErrNotAList = errors.New("records file must hold a list of mappings or a mapping with a records key")

// document is the wrapped form: {records: [...]}
type document struct {
	Records []processor.Record `yaml:"records"`
}

// Load reads records from a YAML or JSON file. The file holds either a list
// of records or a mapping with a "records" list. An empty file is an empty
// list, not an error.
func Load(path string) ([]processor.Record, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	recs, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return recs, nil
}

// Parse decodes records from YAML or JSON bytes
func Parse(data []byte) ([]processor.Record, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, err
	}
	if len(node.Content) == 0 {
		return []processor.Record{}, nil
	}

	root := node.Content[0]
	switch root.Kind {
	case yaml.SequenceNode:
		var recs []processor.Record
		if err := root.Decode(&recs); err != nil {
			return nil, err
		}
		return nonNil(recs), nil
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, err
		}
		if doc.Records == nil {
			return nil, ErrNotAList
		}
		return doc.Records, nil
	default:
		return nil, ErrNotAList
	}
}

func nonNil(recs []processor.Record) []processor.Record {
	if recs == nil {
		return []processor.Record{}
	}
	return recs
}
