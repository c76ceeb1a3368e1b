package conformance

import (
	"strings"
	"testing"

	"github.com/atrim11/decafc/pkg/config"
)

func newTestRunner() *Runner {
	cfg := config.NewConfig()
	cfg.MaxSteps = 1_000_000
	return NewRunner(cfg)
}

func TestConformance(t *testing.T) {
	tests, err := LoadDir("testdata")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(tests) == 0 {
		t.Fatal("no tests loaded")
	}

	runner := newTestRunner()
	var all []Result
	for _, test := range tests {
		test := test
		t.Run(test.Name(), func(t *testing.T) {
			results := runner.Run(test)
			all = append(all, results...)
			for _, res := range results {
				switch {
				case res.Skipped:
					t.Skipf("skipped: %s", res.SkipReason)
				case !res.Passed:
					t.Errorf("%s: %v", res.Name(), res.Err)
				}
			}
		})
	}
	t.Logf("\n%s", FormatStats(ComputeStats(all)))
}

func TestLoadDirOrder(t *testing.T) {
	tests, err := LoadDir("testdata")
	if err != nil {
		t.Fatal(err)
	}
	if tests[0].File != "arrays.yaml" {
		t.Errorf("first file = %s, want arrays.yaml", tests[0].File)
	}
	for _, test := range tests {
		if test.Suite == nil || test.Case.Name == "" {
			t.Fatalf("incomplete test %+v", test)
		}
	}
}

func TestRegisterCounts(t *testing.T) {
	suite := &Suite{Name: "s", Registers: []int{3}}
	if got := (&Case{}).RegisterCounts(suite); len(got) != 1 || got[0] != 3 {
		t.Errorf("suite default not used: %v", got)
	}
	if got := (&Case{Registers: []int{5}}).RegisterCounts(suite); got[0] != 5 {
		t.Errorf("case list not preferred: %v", got)
	}
	if got := (&Case{}).RegisterCounts(&Suite{}); len(got) != len(DefaultRegisters) {
		t.Errorf("fallback = %v, want %v", got, DefaultRegisters)
	}
}

const mismatchSuite = `
name: mismatch
registers: [2]
tests:
  - name: wrong value
    program:
      functions:
        - name: main
          returns: int
          body: [{return: 3}]
    expect: {value: 4}
  - name: error expected
    program:
      functions:
        - name: main
          returns: int
          body: [{return: 3}]
    expect: {error: "division by zero"}
  - name: disabled
    skip: "not ready"
    program: {functions: []}
    expect: {}
`

func TestFailuresAreReported(t *testing.T) {
	suite, err := ParseSuite([]byte(mismatchSuite))
	if err != nil {
		t.Fatal(err)
	}
	var tests []Loaded
	for _, tc := range suite.Tests {
		tests = append(tests, Loaded{File: "mismatch.yaml", Suite: suite, Case: tc})
	}
	results := newTestRunner().RunAll(tests)

	// two variants (virtual and K=2) per runnable case, one result for the skipped one
	stats := ComputeStats(results)
	if stats.Total != 5 || stats.Failed != 4 || stats.Skipped != 1 || stats.Passed != 0 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if !strings.Contains(results[0].Err.Error(), "-want +got") {
		t.Errorf("value mismatch should carry a diff, got %v", results[0].Err)
	}
	if got := results[1].Name(); got != "mismatch.yaml/wrong value/K=2" {
		t.Errorf("Name() = %q", got)
	}
}

func TestParseSuiteNeedsName(t *testing.T) {
	if _, err := ParseSuite([]byte("tests: []\n")); err == nil {
		t.Fatal("expected an error for a suite without a name")
	}
}
