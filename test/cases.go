// Package test holds the set evaluation cases shared by package tests.
package test

import (
	"embed"
	"io/fs"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed cases
var casesFS embed.FS

type TestCase struct {
	// Description is a simple description for the test case.
	Description string
	// Kind is either boolean or number.
	Kind string
	// Sets is the set to evaluate in its JSON form.
	Sets any
	// Snapshots is the snapshot map passed to every evaluation.
	Snapshots map[string]string
	// Expect maps each evaluated DID to its expected result.
	Expect map[string]any
	// Error is the expected failure kind. Expect is ignored when set.
	Error string
	// DIDs evaluated when an error is expected.
	DIDs []string `yaml:"dids"`
}

// TestCasePaths returns a list of all test case file paths.
func TestCasePaths() (paths []string, _ error) {
	return paths, fs.WalkDir(casesFS, "cases", func(path string, d fs.DirEntry, err error) error {
		if filepath.Ext(path) == ".yaml" {
			paths = append(paths, path)
		}
		return err
	})
}

// LoadTestCase loads and parses a test case file.
func LoadTestCase(path string) (*TestCase, error) {
	data, err := fs.ReadFile(casesFS, path)
	if err != nil {
		return nil, err
	}
	var testCase TestCase
	if err := yaml.Unmarshal(data, &testCase); err != nil {
		return nil, err
	}
	return &testCase, nil
}
