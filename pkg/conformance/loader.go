package conformance

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"
)

// Loaded is a test case together with the suite and file it came from.
type Loaded struct {
	File  string
	Suite *Suite
	Case  Case
}

// Name identifies the case as file/case.
func (l Loaded) Name() string { return l.File + "/" + l.Case.Name }

// LoadDir loads every .yaml suite below dir, in lexical path order.
func LoadDir(dir string) ([]Loaded, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if !d.IsDir() && filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	var loaded []Loaded
	for _, path := range paths {
		tests, err := LoadFile(path)
		if err != nil {
			return nil, err
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			rel = path
		}
		for i := range tests {
			tests[i].File = rel
		}
		loaded = append(loaded, tests...)
	}
	return loaded, nil
}

// LoadFile parses one suite file.
func LoadFile(path string) ([]Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	suite, err := ParseSuite(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	tests := make([]Loaded, 0, len(suite.Tests))
	for _, tc := range suite.Tests {
		tests = append(tests, Loaded{File: path, Suite: suite, Case: tc})
	}
	return tests, nil
}

func ParseSuite(data []byte) (*Suite, error) {
	var suite Suite
	if err := yaml.Unmarshal(data, &suite); err != nil {
		return nil, err
	}
	if suite.Name == "" {
		return nil, fmt.Errorf("suite has no name")
	}
	return &suite, nil
}
