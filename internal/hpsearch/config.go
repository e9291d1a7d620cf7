package hpsearch

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// ParseGrid decodes a YAML search config. Flag order inside the grid mapping
// is preserved (it becomes command-line order), which is why decoding goes
// through yaml.Node instead of a plain map.
//
//	script: train_resnet_bbb.py
//	out_arg: out_dir
//	grid:
//	  lr: [0.005, 0.001]
//	  use_adam: [true]
//	conditions:
//	  - when: {clip_grad_value: ["1."]}
//	    then: {clip_grad_norm: ["-1"]}
func ParseGrid(input []byte) (Grid, error) {
	var doc struct {
		Script     string    `yaml:"script"`
		OutArg     string    `yaml:"out_arg"`
		Grid       yaml.Node `yaml:"grid"`
		Conditions []struct {
			When yaml.Node `yaml:"when"`
			Then yaml.Node `yaml:"then"`
		} `yaml:"conditions"`
	}
	if err := yaml.Unmarshal(input, &doc); err != nil {
		return Grid{}, fmt.Errorf("decode grid config: %w", err)
	}

	grid := Grid{
		Script: strings.TrimSpace(doc.Script),
		OutArg: strings.TrimSpace(doc.OutArg),
	}
	if grid.OutArg == "" {
		grid.OutArg = DefaultOutArg
	}

	entries, err := decodeEntries(&doc.Grid, "grid")
	if err != nil {
		return Grid{}, err
	}
	grid.Entries = entries

	for i, cond := range doc.Conditions {
		when, err := decodeEntries(&cond.When, fmt.Sprintf("conditions[%d].when", i))
		if err != nil {
			return Grid{}, err
		}
		then, err := decodeEntries(&cond.Then, fmt.Sprintf("conditions[%d].then", i))
		if err != nil {
			return Grid{}, err
		}
		if len(when) == 0 || len(then) == 0 {
			return Grid{}, fmt.Errorf("conditions[%d]: when and then are both required", i)
		}
		grid.Conditions = append(grid.Conditions, Condition{When: when, Then: then})
	}

	if err := grid.Validate(); err != nil {
		return Grid{}, err
	}
	return grid, nil
}

func decodeEntries(node *yaml.Node, where string) ([]Entry, error) {
	if node == nil || node.Kind == 0 || node.Tag == "!!null" {
		return nil, nil
	}
	if node.Kind != yaml.MappingNode {
		return nil, fmt.Errorf("%s: expected a mapping of flag to candidate list", where)
	}
	entries := make([]Entry, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		key := node.Content[i]
		valuesNode := node.Content[i+1]
		entry := Entry{Flag: strings.TrimSpace(key.Value)}
		if valuesNode.Kind != yaml.SequenceNode {
			return nil, fmt.Errorf("%s.%s: candidate values must be a list", where, entry.Flag)
		}
		for _, item := range valuesNode.Content {
			candidate, err := decodeCandidate(item)
			if err != nil {
				return nil, fmt.Errorf("%s.%s: %w", where, entry.Flag, err)
			}
			entry.Values = append(entry.Values, candidate)
		}
		entries = append(entries, entry)
	}
	return entries, nil
}

func decodeCandidate(node *yaml.Node) (Candidate, error) {
	if node.Kind != yaml.ScalarNode {
		return Candidate{}, fmt.Errorf("candidate values must be scalars")
	}
	if node.Tag == "!!bool" {
		var b bool
		if err := node.Decode(&b); err != nil {
			return Candidate{}, fmt.Errorf("decode bool candidate: %w", err)
		}
		return Candidate{Bool: b, IsBool: true}, nil
	}
	return Candidate{Text: node.Value}, nil
}
