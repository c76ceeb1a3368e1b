// Package sim executes ILOC instruction lists. It runs both virtual-register code
// straight out of the generator and physical-register code after allocation.
package sim

import (
	"errors"
	"fmt"
	"io"
	"strconv"

	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
)

var (
	ErrUndefinedLabel = errors.New("undefined label")
	ErrUnsetRegister  = errors.New("read of unset register")
	ErrDivideByZero   = errors.New("division by zero")
	ErrStepLimit      = errors.New("step limit exceeded")
	ErrBadOperand     = errors.New("bad operand")
	ErrDuplicateLabel = errors.New("duplicate label")
)

// haltIndex is the return address the entry function returns to.
const haltIndex = -1

type regKey struct {
	kind iloc.Kind
	id   int
}

// Machine is the state of one run.
type Machine struct {
	list     *iloc.List
	labels   map[string]int
	anon     map[int]int
	regs     map[regKey]int64
	virt     map[int]int64
	saved    []map[int]int64
	Memory   map[int64]int64
	PC       int
	Steps    int
	MaxSteps int
	wordSize int64

	// Output receives print output. If nil, io.Discard is used.
	Output io.Writer
}

// Result is the outcome of a completed run.
type Result struct {
	Value int64 // RET when the entry function returned
	Steps int
}

// New indexes the labels of list and sets up an empty machine.
func New(list *iloc.List, cfg *config.Config) (*Machine, error) {
	m := &Machine{
		list:     list,
		labels:   make(map[string]int),
		anon:     make(map[int]int),
		regs:     make(map[regKey]int64),
		virt:     make(map[int]int64),
		Memory:   make(map[int64]int64),
		MaxSteps: cfg.MaxSteps,
		wordSize: int64(cfg.WordSize),
	}
	for i, inst := range list.Instructions() {
		if inst.Op != iloc.OpLabel {
			continue
		}
		l := inst.Ops[0]
		if _, err := m.target(l); err == nil {
			return nil, fmt.Errorf("%w %s at %d", ErrDuplicateLabel, l, i)
		}
		if l.IsCallLabel() {
			m.labels[l.Text] = i
		} else {
			m.anon[l.ID] = i
		}
	}
	m.setReg(iloc.SP, cfg.StackTop)
	m.setReg(iloc.BP, cfg.StackTop)
	m.setReg(iloc.RET, 0)
	return m, nil
}

// Run executes list from the call label entry until it returns.
func Run(list *iloc.List, cfg *config.Config, entry string, out io.Writer) (Result, error) {
	m, err := New(list, cfg)
	if err != nil {
		return Result{}, err
	}
	m.Output = out
	return m.Call(entry)
}

// Call enters the function labelled name and runs until it returns.
func (m *Machine) Call(name string) (Result, error) {
	start, ok := m.labels[name]
	if !ok {
		return Result{}, fmt.Errorf("%w %q", ErrUndefinedLabel, name)
	}
	m.push(haltIndex)
	m.PC = start
	for m.PC != haltIndex {
		if err := m.Step(); err != nil {
			return Result{Steps: m.Steps}, fmt.Errorf("at %d (%s): %w", m.PC, m.describe(), err)
		}
	}
	ret, _ := m.Reg(iloc.RET)
	return Result{Value: ret, Steps: m.Steps}, nil
}

func (m *Machine) describe() string {
	if m.PC >= 0 && m.PC < m.list.Len() {
		return m.list.At(m.PC).String()
	}
	return "end of list"
}

// Virtual registers belong to the activation that wrote them; physical ones
// are shared by every activation.
func (m *Machine) setReg(r iloc.Operand, v int64) {
	if r.Kind == iloc.VirtualReg {
		m.virt[r.ID] = v
		return
	}
	m.regs[regKey{r.Kind, r.ID}] = v
}

// Reg returns the value of a register in the current activation and whether it
// was ever written.
func (m *Machine) Reg(r iloc.Operand) (int64, bool) {
	if r.Kind == iloc.VirtualReg {
		v, ok := m.virt[r.ID]
		return v, ok
	}
	v, ok := m.regs[regKey{r.Kind, r.ID}]
	return v, ok
}

// enter saves the caller's virtual registers and gives the callee a fresh set.
func (m *Machine) enter() {
	m.saved = append(m.saved, m.virt)
	m.virt = make(map[int]int64)
}

// leave restores the caller's virtual registers. Returning from the entry
// function keeps the current set so it can still be inspected.
func (m *Machine) leave() {
	if n := len(m.saved); n > 0 {
		m.virt = m.saved[n-1]
		m.saved = m.saved[:n-1]
	}
}

func (m *Machine) value(o iloc.Operand) (int64, error) {
	switch o.Kind {
	case iloc.Immediate:
		return o.Imm, nil
	case iloc.VirtualReg, iloc.PhysicalReg:
		v, ok := m.Reg(o)
		if !ok {
			return 0, fmt.Errorf("%w %s", ErrUnsetRegister, o)
		}
		return v, nil
	}
	return 0, fmt.Errorf("%w %s operand %s", ErrBadOperand, o.Kind, o)
}

func (m *Machine) target(o iloc.Operand) (int, error) {
	if o.Kind != iloc.Label {
		return 0, fmt.Errorf("%w: %s is not a label", ErrBadOperand, o)
	}
	idx, ok := m.anon[o.ID]
	if o.IsCallLabel() {
		idx, ok = m.labels[o.Text]
	}
	if !ok {
		return 0, fmt.Errorf("%w %s", ErrUndefinedLabel, o)
	}
	return idx, nil
}

func (m *Machine) push(v int64) {
	sp, _ := m.Reg(iloc.SP)
	sp -= m.wordSize
	m.Memory[sp] = v
	m.setReg(iloc.SP, sp)
}

func (m *Machine) pop() int64 {
	sp, _ := m.Reg(iloc.SP)
	v := m.Memory[sp]
	m.setReg(iloc.SP, sp+m.wordSize)
	return v
}

func boolInt(b bool) int64 {
	if b {
		return 1
	}
	return 0
}

// Step executes the instruction at PC.
func (m *Machine) Step() error {
	if m.PC < 0 || m.PC >= m.list.Len() {
		return fmt.Errorf("%w: fell off the instruction list", ErrBadOperand)
	}
	if m.MaxSteps > 0 && m.Steps >= m.MaxSteps {
		return fmt.Errorf("%w (%d)", ErrStepLimit, m.MaxSteps)
	}
	m.Steps++

	inst := m.list.At(m.PC)
	o := inst.Ops
	next := m.PC + 1

	// Every read happens before any write, like a real register file.
	var in [3]int64
	for _, s := range inst.Reads() {
		v, err := m.value(o[s])
		if err != nil {
			return err
		}
		in[s] = v
	}

	switch {
	case inst.Op == iloc.OpLabel:
	case inst.Op == iloc.OpLoadI:
		m.setReg(o[1], o[0].Imm)
	case inst.Op == iloc.OpLoadAI:
		m.setReg(o[2], m.Memory[in[0]+o[1].Imm])
	case inst.Op == iloc.OpLoadAO:
		m.setReg(o[2], m.Memory[in[0]+in[1]])
	case inst.Op == iloc.OpStoreAI:
		m.Memory[in[1]+o[2].Imm] = in[0]
	case inst.Op == iloc.OpStoreAO:
		m.Memory[in[1]+in[2]] = in[0]
	case inst.Op == iloc.OpAddI:
		m.setReg(o[2], in[0]+o[1].Imm)
	case inst.Op == iloc.OpMultI:
		m.setReg(o[2], in[0]*o[1].Imm)
	case inst.Op.IsBinary():
		v, err := binary(inst.Op, in[0], in[1])
		if err != nil {
			return err
		}
		m.setReg(o[2], v)
	case inst.Op == iloc.OpNeg:
		m.setReg(o[1], -in[0])
	case inst.Op == iloc.OpNot:
		m.setReg(o[1], boolInt(in[0] == 0))
	case inst.Op == iloc.OpI2I:
		m.setReg(o[1], in[0])
	case inst.Op == iloc.OpJump:
		t, err := m.target(o[0])
		if err != nil {
			return err
		}
		next = t
	case inst.Op == iloc.OpCBR:
		l := o[2]
		if in[0] != 0 {
			l = o[1]
		}
		t, err := m.target(l)
		if err != nil {
			return err
		}
		next = t
	case inst.Op == iloc.OpCall:
		t, err := m.target(o[0])
		if err != nil {
			return err
		}
		m.push(int64(next))
		m.enter()
		next = t
	case inst.Op == iloc.OpReturn:
		next = int(m.pop())
		m.leave()
	case inst.Op == iloc.OpPush:
		m.push(in[0])
	case inst.Op == iloc.OpPop:
		m.setReg(o[0], m.pop())
	case inst.Op == iloc.OpPrint:
		if err := m.print(o[0], in[0]); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: unknown opcode %s", ErrBadOperand, inst.Op)
	}

	m.PC = next
	return nil
}

func (m *Machine) print(o iloc.Operand, v int64) error {
	w := m.Output
	if w == nil {
		w = io.Discard
	}
	text := strconv.FormatInt(v, 10)
	switch o.Kind {
	case iloc.StringConst:
		text = o.Text
	case iloc.Immediate:
		text = strconv.FormatInt(o.Imm, 10)
	case iloc.VirtualReg, iloc.PhysicalReg:
	default:
		return fmt.Errorf("%w: cannot print %s", ErrBadOperand, o.Kind)
	}
	_, err := io.WriteString(w, text+"\n")
	return err
}

func binary(op iloc.Opcode, a, b int64) (int64, error) {
	switch op {
	case iloc.OpAdd:
		return a + b, nil
	case iloc.OpSub:
		return a - b, nil
	case iloc.OpMult:
		return a * b, nil
	case iloc.OpDiv:
		if b == 0 {
			return 0, ErrDivideByZero
		}
		return a / b, nil
	case iloc.OpAnd:
		return boolInt(a != 0 && b != 0), nil
	case iloc.OpOr:
		return boolInt(a != 0 || b != 0), nil
	case iloc.OpCmpLT:
		return boolInt(a < b), nil
	case iloc.OpCmpLE:
		return boolInt(a <= b), nil
	case iloc.OpCmpEQ:
		return boolInt(a == b), nil
	case iloc.OpCmpGE:
		return boolInt(a >= b), nil
	case iloc.OpCmpGT:
		return boolInt(a > b), nil
	case iloc.OpCmpNE:
		return boolInt(a != b), nil
	}
	return 0, fmt.Errorf("%w: %s is not a binary opcode", ErrBadOperand, op)
}
