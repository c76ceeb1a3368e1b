// Package iloc defines the three-address intermediate representation produced by the
// code generator and rewritten by the register allocator.
package iloc

import (
	"fmt"
	"strconv"
	"strings"
)

type Kind int

const (
	Empty Kind = iota
	VirtualReg
	PhysicalReg
	Immediate
	StringConst
	Label
)

func (k Kind) String() string {
	switch k {
	case Empty:
		return "empty"
	case VirtualReg:
		return "virtual"
	case PhysicalReg:
		return "physical"
	case Immediate:
		return "immediate"
	case StringConst:
		return "string"
	case Label:
		return "label"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Reserved physical registers live outside the allocatable pool 0..K-1.
const (
	BaseReg   = -1
	StackReg  = -2
	ReturnReg = -3
)

// Operand is a tagged instruction operand. ID holds the register or label number,
// Imm the immediate, Text the string constant or call-label name.
type Operand struct {
	Kind Kind
	ID   int
	Imm  int64
	Text string
}

func Virtual(id int) Operand     { return Operand{Kind: VirtualReg, ID: id} }
func Physical(id int) Operand    { return Operand{Kind: PhysicalReg, ID: id} }
func Imm(v int64) Operand        { return Operand{Kind: Immediate, Imm: v} }
func Str(s string) Operand       { return Operand{Kind: StringConst, Text: s} }
func AnonLabel(id int) Operand   { return Operand{Kind: Label, ID: id} }
func CallLabel(n string) Operand { return Operand{Kind: Label, Text: n} }

var (
	BP  = Physical(BaseReg)
	SP  = Physical(StackReg)
	RET = Physical(ReturnReg)
)

func (o Operand) IsEmpty() bool    { return o.Kind == Empty }
func (o Operand) IsVirtual() bool  { return o.Kind == VirtualReg }
func (o Operand) IsRegister() bool { return o.Kind == VirtualReg || o.Kind == PhysicalReg }

// IsCallLabel reports whether o names a function entry.
func (o Operand) IsCallLabel() bool { return o.Kind == Label && o.Text != "" }

func (o Operand) String() string {
	switch o.Kind {
	case Empty:
		return ""
	case VirtualReg:
		return "r" + strconv.Itoa(o.ID)
	case PhysicalReg:
		switch o.ID {
		case BaseReg:
			return "BP"
		case StackReg:
			return "SP"
		case ReturnReg:
			return "RET"
		}
		return "R" + strconv.Itoa(o.ID)
	case Immediate:
		return strconv.FormatInt(o.Imm, 10)
	case StringConst:
		return strconv.Quote(o.Text)
	case Label:
		if o.Text != "" {
			return o.Text
		}
		return "l" + strconv.Itoa(o.ID)
	}
	return "?"
}

type Opcode int

const (
	OpLoadI Opcode = iota
	OpLoadAI
	OpLoadAO
	OpStoreAI
	OpStoreAO
	OpAdd
	OpSub
	OpMult
	OpDiv
	OpAnd
	OpOr
	OpCmpLT
	OpCmpLE
	OpCmpEQ
	OpCmpGE
	OpCmpGT
	OpCmpNE
	OpAddI
	OpMultI
	OpNeg
	OpNot
	OpI2I
	OpJump
	OpCBR
	OpLabel
	OpCall
	OpPush
	OpPop
	OpReturn
	OpPrint
	opcodeCount
)

var opcodeNames = [opcodeCount]string{
	OpLoadI: "loadI", OpLoadAI: "loadAI", OpLoadAO: "loadAO", OpStoreAI: "storeAI", OpStoreAO: "storeAO",
	OpAdd: "add", OpSub: "sub", OpMult: "mult", OpDiv: "div", OpAnd: "and", OpOr: "or",
	OpCmpLT: "cmp_LT", OpCmpLE: "cmp_LE", OpCmpEQ: "cmp_EQ", OpCmpGE: "cmp_GE", OpCmpGT: "cmp_GT", OpCmpNE: "cmp_NE",
	OpAddI: "addI", OpMultI: "multI", OpNeg: "neg", OpNot: "not", OpI2I: "i2i",
	OpJump: "jump", OpCBR: "cbr", OpLabel: "label", OpCall: "call", OpPush: "push", OpPop: "pop",
	OpReturn: "return", OpPrint: "print",
}

func (op Opcode) String() string {
	if op >= 0 && op < opcodeCount {
		return opcodeNames[op]
	}
	return fmt.Sprintf("Opcode(%d)", int(op))
}

// IsBinary reports whether op is a three-register arithmetic, logic or compare opcode.
func (op Opcode) IsBinary() bool { return op >= OpAdd && op <= OpCmpNE }

// Instruction is one ILOC operation with up to three operand slots.
type Instruction struct {
	Op  Opcode
	Ops [3]Operand
}

func New(op Opcode, ops ...Operand) *Instruction {
	if len(ops) > 3 {
		panic(fmt.Sprintf("iloc: %s takes at most 3 operands, got %d", op, len(ops)))
	}
	inst := &Instruction{Op: op}
	copy(inst.Ops[:], ops)
	return inst
}

// readSlots and writeSlots are fixed per opcode.
func (inst *Instruction) readSlots() []int {
	switch {
	case inst.Op == OpLoadAI, inst.Op == OpAddI, inst.Op == OpMultI:
		return []int{0}
	case inst.Op == OpNeg, inst.Op == OpNot, inst.Op == OpI2I:
		return []int{0}
	case inst.Op == OpLoadAO, inst.Op == OpStoreAI, inst.Op.IsBinary():
		return []int{0, 1}
	case inst.Op == OpStoreAO:
		return []int{0, 1, 2}
	case inst.Op == OpCBR, inst.Op == OpPush:
		return []int{0}
	case inst.Op == OpPrint:
		if inst.Ops[0].IsRegister() {
			return []int{0}
		}
	}
	return nil
}

func (inst *Instruction) writeSlots() []int {
	switch {
	case inst.Op == OpLoadI, inst.Op == OpNeg, inst.Op == OpNot, inst.Op == OpI2I:
		return []int{1}
	case inst.Op == OpLoadAI, inst.Op == OpLoadAO, inst.Op == OpAddI, inst.Op == OpMultI, inst.Op.IsBinary():
		return []int{2}
	case inst.Op == OpPop:
		return []int{0}
	}
	return nil
}

// Reads returns the operand slots the instruction reads, in slot order.
func (inst *Instruction) Reads() []int { return inst.readSlots() }

// Writes returns the operand slots the instruction writes.
func (inst *Instruction) Writes() []int { return inst.writeSlots() }

// Uses reports whether the instruction reads or writes the register r.
func (inst *Instruction) Uses(r Operand) bool {
	for _, s := range inst.readSlots() {
		if inst.Ops[s] == r {
			return true
		}
	}
	for _, s := range inst.writeSlots() {
		if inst.Ops[s] == r {
			return true
		}
	}
	return false
}

// IsFunctionStart reports whether the instruction defines a call label.
func (inst *Instruction) IsFunctionStart() bool {
	return inst.Op == OpLabel && inst.Ops[0].IsCallLabel()
}

// IsFrameAlloc reports whether the instruction is the "addI SP, n => SP" a prologue reserves its frame with.
func (inst *Instruction) IsFrameAlloc() bool {
	return inst.Op == OpAddI && inst.Ops[0] == SP && inst.Ops[2] == SP
}

func (inst *Instruction) String() string {
	o := inst.Ops
	switch {
	case inst.Op == OpLabel:
		return o[0].String() + ":"
	case inst.Op == OpLoadI:
		return fmt.Sprintf("loadI %s => %s", o[0], o[1])
	case inst.Op == OpLoadAI, inst.Op == OpLoadAO, inst.Op == OpAddI, inst.Op == OpMultI, inst.Op.IsBinary():
		return fmt.Sprintf("%s %s, %s => %s", inst.Op, o[0], o[1], o[2])
	case inst.Op == OpStoreAI, inst.Op == OpStoreAO:
		return fmt.Sprintf("%s %s => %s, %s", inst.Op, o[0], o[1], o[2])
	case inst.Op == OpNeg, inst.Op == OpNot, inst.Op == OpI2I:
		return fmt.Sprintf("%s %s => %s", inst.Op, o[0], o[1])
	case inst.Op == OpCBR:
		return fmt.Sprintf("cbr %s => %s, %s", o[0], o[1], o[2])
	case inst.Op == OpJump, inst.Op == OpCall, inst.Op == OpPush, inst.Op == OpPop, inst.Op == OpPrint:
		return fmt.Sprintf("%s %s", inst.Op, o[0])
	case inst.Op == OpReturn:
		return "return"
	}
	var parts []string
	for _, op := range o {
		if !op.IsEmpty() {
			parts = append(parts, op.String())
		}
	}
	return strings.TrimSpace(inst.Op.String() + " " + strings.Join(parts, ", "))
}
