// Package conformance runs YAML scenario suites through the whole backend: each
// program is generated, allocated for every register count a test lists, executed
// in the simulator and checked against the expected result.
package conformance

import "github.com/atrim11/decafc/pkg/loader"

// Suite is one YAML test file.
type Suite struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`
	// Registers is the default list of register counts for the suite's tests.
	Registers []int  `yaml:"registers,omitempty"`
	Tests     []Case `yaml:"tests"`
}

// Case is a single program with its expected outcome.
type Case struct {
	Name        string         `yaml:"name"`
	Description string         `yaml:"description,omitempty"`
	Skip        interface{}    `yaml:"skip,omitempty"` // bool or string
	Registers   []int          `yaml:"registers,omitempty"`
	Features    []string       `yaml:"features,omitempty"` // e.g. no-block-spill
	Program     loader.Program `yaml:"program"`
	Expect      Expectation    `yaml:"expect"`
}

// Expectation holds what a run must produce. Unset fields are not checked.
type Expectation struct {
	Value  *int64  `yaml:"value,omitempty"`
	Output *string `yaml:"output,omitempty"`
	Error  string  `yaml:"error,omitempty"` // substring of the error message
}

// IsSkipped reports whether the case is disabled and why.
func (c *Case) IsSkipped() (bool, string) {
	switch v := c.Skip.(type) {
	case bool:
		if v {
			return true, "skipped"
		}
	case string:
		return true, v
	}
	return false, ""
}

// DefaultRegisters is used when neither the case nor its suite lists register counts.
var DefaultRegisters = []int{1, 2, 4, 16}

// RegisterCounts returns the register counts the case runs with.
func (c *Case) RegisterCounts(s *Suite) []int {
	switch {
	case len(c.Registers) > 0:
		return c.Registers
	case len(s.Registers) > 0:
		return s.Registers
	}
	return DefaultRegisters
}
