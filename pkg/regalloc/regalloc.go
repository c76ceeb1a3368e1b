// Package regalloc maps the virtual registers of an instruction list onto K physical
// registers with a local furthest-next-use allocator, inserting spill and reload code
// and growing each function's frame as slots are created.
package regalloc

import (
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
)

var (
	ErrRegisters = errors.New("regalloc: need at least one physical register")
	ErrNoFrame   = errors.New("regalloc: spill in a function without a frame allocation")
	ErrInternal  = errors.New("regalloc: internal error")
)

const (
	free     = -1
	noSlot   = 0 // slots sit below BP, so a real slot offset is never zero
	infinite = math.MaxInt
)

type allocError struct {
	err error
	msg string
}

// FunctionStats records what allocation did to one function.
type FunctionStats struct {
	Name      string
	Slots     int   // spill slots created
	Stores    int   // spill stores inserted
	Reloads   int   // reloads inserted
	Overflow  int   // reloads that went to a register numbered K or above
	FrameSize int64 // final frame size in bytes, locals included
}

type Stats struct {
	Functions []FunctionStats
}

// Slots returns the number of spill slots created across all functions.
func (s Stats) Slots() int {
	n := 0
	for _, f := range s.Functions {
		n += f.Slots
	}
	return n
}

func (s Stats) Function(name string) (FunctionStats, bool) {
	for _, f := range s.Functions {
		if f.Name == name {
			return f, true
		}
	}
	return FunctionStats{}, false
}

type Allocator struct {
	k          int
	word       int64
	reuse      bool
	blockSpill bool
	freeDead   bool

	// Trace, when set, receives one line per spill, reload and block flush.
	Trace io.Writer

	list     *iloc.List
	name     []int   // physical register -> resident virtual register or free
	offset   []int64 // virtual register -> spill slot or noSlot
	frame    *iloc.Instruction
	fn       *FunctionStats
	pos      int
	overflow int
	stats    Stats
}

func New(cfg *config.Config) *Allocator {
	return &Allocator{
		k:          cfg.Registers,
		word:       int64(cfg.WordSize),
		blockSpill: cfg.IsFeatureEnabled(config.FeatBlockSpill),
		// Slot reuse relies on every block boundary storing live values.
		reuse:    cfg.IsFeatureEnabled(config.FeatSpillReuse) && cfg.IsFeatureEnabled(config.FeatBlockSpill),
		freeDead: cfg.IsFeatureEnabled(config.FeatFreeDead),
	}
}

func (a *Allocator) fail(err error, format string, args ...interface{}) {
	panic(allocError{err: err, msg: fmt.Sprintf(format, args...)})
}

func (a *Allocator) trace(format string, args ...interface{}) {
	if a.Trace != nil {
		fmt.Fprintf(a.Trace, format+"\n", args...)
	}
}

// Allocate rewrites list in place so that no virtual register remains. An empty
// or nil list is left alone.
func (a *Allocator) Allocate(list *iloc.List) (stats Stats, err error) {
	if a.k < 1 {
		return Stats{}, fmt.Errorf("%w (K = %d)", ErrRegisters, a.k)
	}
	if list.Len() == 0 {
		return Stats{}, nil
	}

	defer func() {
		if r := recover(); r != nil {
			ae, ok := r.(allocError)
			if !ok {
				panic(r)
			}
			stats, err = a.stats, fmt.Errorf("%w: %s", ae.err, ae.msg)
		}
	}()

	a.list = list
	a.name = make([]int, a.k)
	a.offset = make([]int64, list.MaxVirtual()+1)
	a.frame, a.fn = nil, nil
	a.stats = Stats{}
	a.resetRegisters()

	for a.pos = 0; a.pos < list.Len(); a.pos++ {
		inst := list.At(a.pos)
		if inst.IsFunctionStart() {
			a.beginFunction(inst)
			continue
		}
		a.rewrite(inst)
	}
	a.endFunction()
	return a.stats, nil
}

func (a *Allocator) resetRegisters() {
	for r := range a.name {
		a.name[r] = free
	}
}

func (a *Allocator) beginFunction(label *iloc.Instruction) {
	a.endFunction()
	a.resetRegisters()
	for v := range a.offset {
		a.offset[v] = noSlot
	}
	a.fn = &FunctionStats{Name: label.Ops[0].Text}
	a.frame = nil
	for i := a.pos + 1; i < a.list.Len(); i++ {
		inst := a.list.At(i)
		if inst.IsFunctionStart() {
			break
		}
		if inst.IsFrameAlloc() {
			a.frame = inst
			break
		}
	}
}

func (a *Allocator) endFunction() {
	if a.fn == nil {
		return
	}
	if a.frame != nil {
		a.fn.FrameSize = -a.frame.Ops[1].Imm
	}
	a.stats.Functions = append(a.stats.Functions, *a.fn)
	a.fn = nil
}

func (a *Allocator) rewrite(inst *iloc.Instruction) {
	switch inst.Op {
	case iloc.OpLabel:
		if a.blockSpill {
			a.flush()
		}
		return
	case iloc.OpCall:
		a.spillForCall()
		return
	}

	a.overflow = 0
	pinned := make([]bool, a.k)
	seen := make(map[int]int)
	var read []int

	for _, s := range inst.Reads() {
		op := inst.Ops[s]
		if !op.IsVirtual() {
			continue
		}
		r := a.ensure(op.ID, pinned, seen)
		if r < a.k {
			pinned[r] = true
		}
		inst.Ops[s] = iloc.Physical(r)
		read = append(read, op.ID)
	}

	// Freed only once every operand is in place, so a reload for a later operand
	// cannot land on a register this instruction still has to read.
	for _, v := range read {
		if a.dist(v, a.pos+1) == infinite {
			a.release(v)
		}
	}

	for _, s := range inst.Writes() {
		op := inst.Ops[s]
		if !op.IsVirtual() {
			continue
		}
		r := a.allocate(op.ID, nil)
		inst.Ops[s] = iloc.Physical(r)
		if a.freeDead && a.dist(op.ID, a.pos+1) == infinite {
			a.name[r] = free
		}
	}

	if a.blockSpill && (inst.Op == iloc.OpJump || inst.Op == iloc.OpCBR) {
		a.flush()
	}
}

// insert places inst before the instruction being rewritten.
func (a *Allocator) insert(inst *iloc.Instruction) {
	a.list.Insert(a.pos, inst)
	a.pos++
}

// dist counts instructions from index from to the next one that reads or writes
// v, stopping at the start of the next function.
func (a *Allocator) dist(v int, from int) int {
	r := iloc.Virtual(v)
	for i := from; i < a.list.Len(); i++ {
		inst := a.list.At(i)
		if inst.IsFunctionStart() {
			break
		}
		if inst.Uses(r) {
			return i - from
		}
	}
	return infinite
}

func (a *Allocator) resident(v int) int {
	for r, held := range a.name {
		if held == v {
			return r
		}
	}
	return free
}

func (a *Allocator) release(v int) {
	if r := a.resident(v); r != free {
		a.name[r] = free
	}
}

// ensure returns a register holding v, reloading it when v is not resident.
// Registers in pinned are not evicted; if nothing else is left the value goes to
// a transient overflow register numbered from K.
func (a *Allocator) ensure(v int, pinned []bool, seen map[int]int) int {
	if r, ok := seen[v]; ok {
		return r
	}
	if r := a.resident(v); r != free {
		seen[v] = r
		return r
	}
	if a.offset[v] == noSlot {
		a.fail(ErrInternal, "r%d is read before it is written", v)
	}
	r := a.allocate(v, pinned)
	if r == free {
		r = a.k + a.overflow
		a.overflow++
		a.fn.Overflow++
		a.trace("reload r%d into overflow R%d from BP%+d", v, r, a.offset[v])
	} else {
		a.trace("reload r%d into R%d from BP%+d", v, r, a.offset[v])
	}
	a.insert(iloc.New(iloc.OpLoadAI, iloc.BP, iloc.Imm(a.offset[v]), iloc.Physical(r)))
	a.fn.Reloads++
	seen[v] = r
	return r
}

// allocate gives v a register, evicting the resident value with the furthest next
// use when none is free. Ties go to the lowest register. It returns free only when
// every register is pinned.
func (a *Allocator) allocate(v int, pinned []bool) int {
	for r, held := range a.name {
		if held == free {
			a.name[r] = v
			return r
		}
	}
	victim, best := free, -1
	for r, held := range a.name {
		if pinned != nil && pinned[r] {
			continue
		}
		if d := a.dist(held, a.pos); d > best {
			victim, best = r, d
		}
	}
	if victim == free {
		return free
	}
	if a.freeDead && best == infinite {
		a.trace("drop dead r%d from R%d", a.name[victim], victim)
	} else {
		a.spill(victim)
	}
	a.name[victim] = v
	return victim
}

// spill stores the value in register r to its stack slot and frees r.
func (a *Allocator) spill(r int) {
	v := a.name[r]
	a.name[r] = free
	if a.reuse && a.offset[v] != noSlot {
		return
	}
	if a.frame == nil {
		name := "<no function>"
		if a.fn != nil {
			name = a.fn.Name
		}
		a.fail(ErrNoFrame, "cannot spill r%d in %s", v, name)
	}
	a.frame.Ops[1].Imm -= a.word
	off := a.frame.Ops[1].Imm
	a.offset[v] = off
	a.fn.Slots++
	a.fn.Stores++
	a.insert(iloc.New(iloc.OpStoreAI, iloc.Physical(r), iloc.BP, iloc.Imm(off)))
	a.trace("spill r%d from R%d to BP%+d", v, r, off)
}

// spillForCall empties the register file before a call; the callee may clobber
// every physical register.
func (a *Allocator) spillForCall() {
	for r, held := range a.name {
		if held == free {
			continue
		}
		if a.freeDead && a.dist(held, a.pos+1) == infinite {
			a.name[r] = free
			continue
		}
		a.spill(r)
	}
}

// flush stores every value still needed and empties the register file, so values
// reach a label or leave through a branch in memory only.
func (a *Allocator) flush() {
	for r, held := range a.name {
		if held == free {
			continue
		}
		if a.dist(held, a.pos+1) == infinite {
			a.name[r] = free
			continue
		}
		a.spill(r)
	}
	a.trace("flush at %s", a.list.At(a.pos))
}
