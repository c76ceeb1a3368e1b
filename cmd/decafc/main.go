package main

import (
	"fmt"
	"io"
	"os"

	"github.com/atrim11/decafc/pkg/cli"
	"github.com/atrim11/decafc/pkg/codegen"
	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
	"github.com/atrim11/decafc/pkg/loader"
	"github.com/atrim11/decafc/pkg/regalloc"
	"github.com/atrim11/decafc/pkg/sim"
	"github.com/atrim11/decafc/pkg/util"
)

func main() {
	app := cli.NewApp("decafc")
	app.Synopsis = "[options] <program.yaml>"
	app.Description = "Generates ILOC for an analysed Decaf program and maps its virtual registers onto a fixed number of physical registers. With --run the result is executed in the ILOC simulator; the listing is then only written when -o is given."
	app.Repository = "<https://github.com/atrim11/decafc>"

	cfg := config.NewConfig()
	cfg.ApplyEnv()

	var (
		outFile   string
		entry     string
		registers int
		maxSteps  int
		noAlloc   bool
		run       bool
		stats     bool
		trace     bool
		verbose   bool
	)

	fs := app.FlagSet
	fs.String(&outFile, "output", "o", "", "Write the ILOC listing to <file> instead of standard output.", "file")
	fs.String(&entry, "entry", "e", cfg.Entry, "Function the simulator starts in.", "name")
	fs.Int(&registers, "registers", "k", cfg.Registers, "Number of physical registers available to the allocator.", "n")
	fs.Int(&maxSteps, "max-steps", "", cfg.MaxSteps, "Stop the simulator after this many instructions.", "n")
	fs.Bool(&noAlloc, "no-alloc", "", false, "Skip register allocation and emit virtual registers.")
	fs.Bool(&run, "run", "r", false, "Execute the program in the simulator.")
	fs.Bool(&stats, "stats", "s", false, "Report spill slots, stores and reloads per function.")
	fs.Bool(&trace, "trace", "", cfg.Trace, "Log every spill, reload and block flush to standard error.")
	fs.Bool(&verbose, "verbose", "v", false, "Report each compilation stage.")
	features := cfg.SetupFlagGroups(fs)

	app.Action = func(args []string) error {
		if len(args) != 1 {
			util.Error("expected one input program, got %d", len(args))
		}
		cfg.Entry = entry
		cfg.Registers = registers
		cfg.MaxSteps = maxSteps
		cfg.Trace = trace
		cfg.ApplyFlagGroups(features)
		if err := cfg.Validate(); err != nil {
			util.Error("%v", err)
		}

		progress := func(format string, a ...interface{}) {
			if verbose {
				util.Info(format, a...)
			}
		}

		progress("loading %s", args[0])
		root, err := loader.Load(args[0], cfg)
		if err != nil {
			util.Error("%v", err)
		}

		progress("generating ILOC")
		list, err := codegen.NewContext(cfg).Generate(root)
		if err != nil {
			util.Error("code generation failed: %v", err)
		}
		progress("%d instructions, %d virtual registers", list.Len(), list.MaxVirtual()+1)

		if !noAlloc {
			progress("allocating %d registers", cfg.Registers)
			alloc := regalloc.New(cfg)
			if cfg.Trace {
				alloc.Trace = util.Stderr
			}
			st, err := alloc.Allocate(list)
			if err != nil {
				util.Error("register allocation failed: %v", err)
			}
			if stats {
				printStats(util.Stderr, st)
			}
		}

		if outFile != "" || !run {
			if err := writeListing(outFile, list, cfg); err != nil {
				util.Error("%v", err)
			}
		}

		if run {
			progress("running %s", cfg.Entry)
			res, err := sim.Run(list, cfg, cfg.Entry, os.Stdout)
			if err != nil {
				util.Error("simulation failed after %d steps: %v", res.Steps, err)
			}
			util.Info("%s returned %d after %d steps", cfg.Entry, res.Value, res.Steps)
		}
		return nil
	}

	if err := app.Run(os.Args[1:]); err != nil {
		os.Exit(1)
	}
}

func writeListing(path string, list *iloc.List, cfg *config.Config) error {
	buf, err := codegen.NewILOCBackend().Generate(list, cfg)
	if err != nil {
		return err
	}
	if path == "" {
		_, err = buf.WriteTo(os.Stdout)
		return err
	}
	return os.WriteFile(path, buf.Bytes(), 0644)
}

func printStats(w io.Writer, st regalloc.Stats) {
	fmt.Fprintf(w, "%-16s %6s %6s %7s %8s %6s\n", "function", "slots", "stores", "reloads", "overflow", "frame")
	for _, f := range st.Functions {
		fmt.Fprintf(w, "%-16s %6d %6d %7d %8d %6d\n", f.Name, f.Slots, f.Stores, f.Reloads, f.Overflow, f.FrameSize)
	}
}
