// gtest runs conformance suites in parallel and keeps a JSON report of the results,
// including per-function allocation counts so changes in spill behaviour show up
// between runs.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/conformance"
	"github.com/cespare/xxhash/v2"
	"github.com/google/go-cmp/cmp"
)

type CaseResult struct {
	Name      string        `json:"name"`
	Registers int           `json:"registers"`
	Status    string        `json:"status"` // PASS, FAIL, SKIP
	Message   string        `json:"message,omitempty"`
	Steps     int           `json:"steps"`
	Slots     int           `json:"slots"`
	Reloads   int           `json:"reloads"`
	Overflow  int           `json:"overflow"`
	Duration  time.Duration `json:"duration"`
}

type FileTestResult struct {
	File    string       `json:"file"`
	Hash    string       `json:"hash"`
	Status  string       `json:"status"` // PASS, FAIL, SKIP, ERROR
	Message string       `json:"message,omitempty"`
	Cases   []CaseResult `json:"cases,omitempty"`
}

type TestSuiteResults map[string]*FileTestResult

var (
	testFiles  = flag.String("test-files", "pkg/conformance/testdata/*.yaml", "Glob pattern(s) for suites to run (space-separated).")
	skipFiles  = flag.String("skip-files", "", "Files to skip (space-separated).")
	outputJSON = flag.String("output", ".test_results.json", "Output file for the JSON test report.")
	registers  = flag.String("registers", "", "Register counts to run every case with, overriding the suites (space-separated).")
	features   = flag.String("features", "", "Feature flags applied to every run, e.g. \"-Fno-block-spill\".")
	maxSteps   = flag.Int("max-steps", 1_000_000, "Simulator step limit per run.")
	jobs       = flag.Int("j", 4, "Number of parallel test jobs.")
	verbose    = flag.Bool("v", false, "Print every case and allocation changes since the last report.")
)

const (
	cRed    = "\x1b[91m"
	cYellow = "\x1b[93m"
	cGreen  = "\x1b[92m"
	cCyan   = "\x1b[96m"
	cNone   = "\x1b[0m"
)

func main() {
	flag.Parse()
	log.SetFlags(0)

	if *jobs < 1 {
		*jobs = 1
	}
	counts, err := parseCounts(*registers)
	if err != nil {
		log.Fatalf("%s[ERROR]%s %v\n", cRed, cNone, err)
	}

	cfg := config.NewConfig()
	cfg.ApplyEnv()
	cfg.MaxSteps = *maxSteps
	cfg.ProcessFlags(*features)

	files, err := expandGlobPatterns(*testFiles)
	if err != nil {
		log.Fatalf("%s[ERROR]%s Invalid glob pattern(s): %v\n", cRed, cNone, err)
	}
	if len(files) == 0 {
		log.Println("No test files found matching the pattern(s).")
		return
	}

	previous := make(TestSuiteResults)
	if data, err := os.ReadFile(*outputJSON); err == nil {
		if json.Unmarshal(data, &previous) != nil {
			log.Printf("%s[WARN]%s Could not parse previous report %s; allocation changes will not be shown.\n", cYellow, cNone, *outputJSON)
			previous = make(TestSuiteResults)
		}
	}

	results := runAll(files, cfg, counts)
	printSummary(os.Stdout, results, previous)
	report := writeJSONReport(results)
	if hasFailures(report) {
		os.Exit(1)
	}
}

func parseCounts(s string) ([]int, error) {
	var counts []int
	for _, field := range strings.Fields(s) {
		k, err := strconv.Atoi(field)
		if err != nil || k < 1 {
			return nil, fmt.Errorf("bad register count %q", field)
		}
		counts = append(counts, k)
	}
	return counts, nil
}

// hashFile computes the xxhash of a file's content
func hashFile(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	h := xxhash.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", err
	}
	return fmt.Sprintf("%x", h.Sum64()), nil
}

type task struct {
	file string
	hash string
}

func runAll(files []string, cfg *config.Config, counts []int) []*FileTestResult {
	skipList := make(map[string]bool)
	for _, f := range strings.Fields(*skipFiles) {
		skipList[f] = true
	}

	tasks := make(chan task, len(files))
	resultsChan := make(chan *FileTestResult, len(files))
	var wg sync.WaitGroup

	for i := 0; i < *jobs; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			runner := conformance.NewRunner(cfg)
			for t := range tasks {
				resultsChan <- testFile(runner, t, counts)
			}
		}()
	}

	// Files with identical content are run once.
	seenHashes := make(map[string]string)
	for _, file := range files {
		if skipList[file] || skipList[filepath.Base(file)] {
			resultsChan <- &FileTestResult{File: file, Status: "SKIP", Message: "Explicitly skipped"}
			continue
		}
		hash, err := hashFile(file)
		if err != nil {
			resultsChan <- &FileTestResult{File: file, Status: "ERROR", Message: fmt.Sprintf("Failed to read file for hashing: %v", err)}
			continue
		}
		if original, seen := seenHashes[hash]; seen {
			resultsChan <- &FileTestResult{File: file, Hash: hash, Status: "SKIP", Message: fmt.Sprintf("Content is identical to %s", original)}
			continue
		}
		seenHashes[hash] = file
		tasks <- task{file, hash}
	}
	close(tasks)

	wg.Wait()
	close(resultsChan)

	var all []*FileTestResult
	for r := range resultsChan {
		all = append(all, r)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].File < all[j].File })
	return all
}

func testFile(runner *conformance.Runner, t task, counts []int) *FileTestResult {
	result := &FileTestResult{File: t.file, Hash: t.hash, Status: "PASS"}
	tests, err := conformance.LoadFile(t.file)
	if err != nil {
		result.Status, result.Message = "ERROR", err.Error()
		return result
	}

	failed := 0
	for _, test := range tests {
		if len(counts) > 0 {
			test.Case.Registers = counts
		}
		start := time.Now()
		runs := runner.Run(test)
		elapsed := time.Since(start) / time.Duration(len(runs))
		for _, r := range runs {
			cr := CaseResult{
				Name:      test.Case.Name,
				Registers: r.Registers,
				Steps:     r.Steps,
				Slots:     r.Alloc.Slots(),
				Duration:  elapsed,
			}
			for _, f := range r.Alloc.Functions {
				cr.Reloads += f.Reloads
				cr.Overflow += f.Overflow
			}
			switch {
			case r.Skipped:
				cr.Status, cr.Message = "SKIP", r.SkipReason
			case r.Passed:
				cr.Status = "PASS"
			default:
				cr.Status, cr.Message = "FAIL", r.Err.Error()
				failed++
			}
			result.Cases = append(result.Cases, cr)
		}
	}
	if failed > 0 {
		result.Status = "FAIL"
		result.Message = fmt.Sprintf("%d of %d runs failed", failed, len(result.Cases))
	} else {
		result.Message = fmt.Sprintf("%d runs passed", len(result.Cases))
	}
	return result
}

// allocation keys spill counts by case and register count for comparison
// against an earlier report.
func allocation(r *FileTestResult) map[string][2]int {
	out := make(map[string][2]int)
	if r == nil {
		return out
	}
	for _, c := range r.Cases {
		if c.Registers > 0 && c.Status == "PASS" {
			out[fmt.Sprintf("%s/K=%d", c.Name, c.Registers)] = [2]int{c.Slots, c.Reloads}
		}
	}
	return out
}

func printSummary(w io.Writer, results []*FileTestResult, previous TestSuiteResults) {
	var passed, failed, skipped, errored int
	for _, result := range results {
		fmt.Fprintln(w, "----------------------------------------------------------------------")
		fmt.Fprintf(w, "Testing %s%s%s...\n", cCyan, result.File, cNone)

		switch result.Status {
		case "PASS":
			passed++
			fmt.Fprintf(w, "  [%sPASS%s] %s\n", cGreen, cNone, result.Message)
		case "FAIL":
			failed++
			fmt.Fprintf(w, "  [%sFAIL%s] %s\n", cRed, cNone, result.Message)
		case "SKIP":
			skipped++
			fmt.Fprintf(w, "  [%sSKIP%s] %s\n", cYellow, cNone, result.Message)
		case "ERROR":
			errored++
			fmt.Fprintf(w, "  [%sERROR%s] %s\n", cRed, cNone, result.Message)
		}

		for _, c := range result.Cases {
			if c.Status == "FAIL" {
				fmt.Fprintf(w, "    %s (K=%d)\n", c.Name, c.Registers)
				fmt.Fprint(w, formatDiff(c.Message))
			} else if *verbose {
				fmt.Fprintf(w, "    %-40s K=%-3d %-4s %8d steps %3d slots\n", c.Name, c.Registers, c.Status, c.Steps, c.Slots)
			}
		}

		if prev, ok := previous[result.File]; *verbose && ok && prev.Hash == result.Hash {
			if diff := cmp.Diff(allocation(prev), allocation(result)); diff != "" {
				fmt.Fprintf(w, "  [%sALLOC%s] spill counts changed since the last report (-old +new):\n", cYellow, cNone)
				fmt.Fprint(w, formatDiff(diff))
			}
		}
	}
	fmt.Fprintln(w, "----------------------------------------------------------------------")
	fmt.Fprintf(w, "Summary: %s%d passed%s, %s%d failed%s, %s%d skipped%s, %d errors\n",
		cGreen, passed, cNone, cRed, failed, cNone, cYellow, skipped, cNone, errored)
}

func formatDiff(diff string) string {
	if diff == "" {
		return ""
	}
	var builder strings.Builder
	for _, line := range strings.Split(strings.TrimRight(diff, "\n"), "\n") {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "-") {
			builder.WriteString(cRed)
		} else if strings.HasPrefix(trimmed, "+") {
			builder.WriteString(cGreen)
		}
		builder.WriteString("      " + line)
		builder.WriteString(cNone)
		builder.WriteString("\n")
	}
	return builder.String()
}

func writeJSONReport(results []*FileTestResult) TestSuiteResults {
	resultsMap := make(TestSuiteResults, len(results))
	for _, r := range results {
		resultsMap[r.File] = r
	}

	jsonData, err := json.MarshalIndent(resultsMap, "", "  ")
	if err != nil {
		log.Printf("%s[ERROR]%s Failed to marshal results to JSON: %v\n", cRed, cNone, err)
		return resultsMap
	}
	if err := os.WriteFile(*outputJSON, jsonData, 0644); err != nil {
		log.Printf("%s[ERROR]%s Failed to write JSON report to %s: %v\n", cRed, cNone, *outputJSON, err)
	} else {
		fmt.Printf("Full test report saved to %s\n", *outputJSON)
	}
	return resultsMap
}

func hasFailures(results TestSuiteResults) bool {
	for _, result := range results {
		if result.Status == "FAIL" || result.Status == "ERROR" {
			return true
		}
	}
	return false
}

func expandGlobPatterns(patterns string) ([]string, error) {
	var allFiles []string
	seen := make(map[string]bool)
	for _, pattern := range strings.Fields(patterns) {
		files, err := filepath.Glob(pattern)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %s: %w", pattern, err)
		}
		for _, file := range files {
			abs, err := filepath.Abs(file)
			if err != nil {
				continue
			}
			if seen[abs] {
				continue
			}
			if info, err := os.Stat(abs); err == nil && info.Mode().IsRegular() {
				allFiles = append(allFiles, abs)
				seen[abs] = true
			}
		}
	}
	return allFiles, nil
}
