package conformance

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/atrim11/decafc/pkg/codegen"
	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
	"github.com/atrim11/decafc/pkg/loader"
	"github.com/atrim11/decafc/pkg/regalloc"
	"github.com/atrim11/decafc/pkg/sim"
	"github.com/google/go-cmp/cmp"
)

// Result is the outcome of one case at one register count.
type Result struct {
	Test       Loaded
	Registers  int // 0 when the program ran on virtual registers
	Passed     bool
	Skipped    bool
	SkipReason string
	Err        error
	Alloc      regalloc.Stats
	Steps      int
}

func (r Result) Name() string {
	if r.Registers == 0 {
		return r.Test.Name() + "/virtual"
	}
	return fmt.Sprintf("%s/K=%d", r.Test.Name(), r.Registers)
}

// observed holds the parts of a run an Expectation can check.
type observed struct {
	Value  *int64
	Output *string
}

type Runner struct {
	cfg *config.Config
}

// NewRunner returns a runner that starts every case from a copy of cfg.
func NewRunner(cfg *config.Config) *Runner {
	return &Runner{cfg: cfg}
}

// Run executes test once without allocation and once per register count.
func (r *Runner) Run(test Loaded) []Result {
	if skipped, reason := test.Case.IsSkipped(); skipped {
		return []Result{{Test: test, Skipped: true, SkipReason: reason}}
	}
	counts := append([]int{0}, test.Case.RegisterCounts(test.Suite)...)
	results := make([]Result, 0, len(counts))
	for _, k := range counts {
		results = append(results, r.runWith(test, k))
	}
	return results
}

func (r *Runner) RunAll(tests []Loaded) []Result {
	var results []Result
	for _, test := range tests {
		results = append(results, r.Run(test)...)
	}
	return results
}

func (r *Runner) runWith(test Loaded, k int) Result {
	res := Result{Test: test, Registers: k}
	cfg := r.cfg.Clone()
	cfg.ProcessFlags(strings.Join(test.Case.Features, " "))
	if k > 0 {
		cfg.Registers = k
	}

	want := test.Case.Expect
	value, output, err := r.execute(&test.Case.Program, cfg, k > 0, &res)
	if err != nil {
		if want.Error != "" && strings.Contains(err.Error(), want.Error) {
			res.Passed = true
			return res
		}
		res.Err = err
		return res
	}
	if want.Error != "" {
		res.Err = fmt.Errorf("expected an error containing %q, got value %d", want.Error, value)
		return res
	}

	var got observed
	if want.Value != nil {
		got.Value = &value
	}
	if want.Output != nil {
		got.Output = &output
	}
	if diff := cmp.Diff(observed{want.Value, want.Output}, got); diff != "" {
		res.Err = fmt.Errorf("result mismatch (-want +got):\n%s", diff)
		return res
	}
	res.Passed = true
	return res
}

func (r *Runner) execute(prog *loader.Program, cfg *config.Config, allocate bool, res *Result) (int64, string, error) {
	root, err := prog.Compile(cfg)
	if err != nil {
		return 0, "", err
	}
	list, err := codegen.NewContext(cfg).Generate(root)
	if err != nil {
		return 0, "", err
	}
	if allocate {
		stats, err := regalloc.New(cfg).Allocate(list)
		if err != nil {
			return 0, "", err
		}
		res.Alloc = stats
		if n := list.CountKind(iloc.VirtualReg); n != 0 {
			return 0, "", fmt.Errorf("%d virtual register operands left after allocation", n)
		}
	}

	var out bytes.Buffer
	run, err := sim.Run(list, cfg, cfg.Entry, &out)
	res.Steps = run.Steps
	if err != nil {
		return 0, out.String(), err
	}
	return run.Value, out.String(), nil
}

// Stats summarises a set of results.
type Stats struct {
	Total   int
	Passed  int
	Failed  int
	Skipped int
	Spills  int // spill slots created across all allocated runs
}

func ComputeStats(results []Result) Stats {
	var s Stats
	for _, r := range results {
		s.Total++
		switch {
		case r.Skipped:
			s.Skipped++
		case r.Passed:
			s.Passed++
		default:
			s.Failed++
		}
		s.Spills += r.Alloc.Slots()
	}
	return s
}

func FormatStats(s Stats) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Total:   %d\n", s.Total)
	fmt.Fprintf(&b, "Passed:  %d\n", s.Passed)
	fmt.Fprintf(&b, "Failed:  %d\n", s.Failed)
	fmt.Fprintf(&b, "Skipped: %d\n", s.Skipped)
	fmt.Fprintf(&b, "Spill slots: %d\n", s.Spills)
	return b.String()
}
