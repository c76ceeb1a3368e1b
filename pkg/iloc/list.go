package iloc

import (
	"encoding/binary"
	"fmt"
	"io"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// List is an ordered instruction sequence. Instructions are addressed by index and
// Insert shifts every later instruction, so a forward scan sees inserted code once.
type List struct {
	insts []*Instruction
}

func NewList(insts ...*Instruction) *List {
	return &List{insts: append([]*Instruction(nil), insts...)}
}

func (l *List) Len() int {
	if l == nil {
		return 0
	}
	return len(l.insts)
}

func (l *List) At(i int) *Instruction { return l.insts[i] }

func (l *List) Append(insts ...*Instruction) { l.insts = append(l.insts, insts...) }

// Insert places insts before position at.
func (l *List) Insert(at int, insts ...*Instruction) {
	if at < 0 || at > len(l.insts) {
		panic(fmt.Sprintf("iloc: insert position %d out of range [0,%d]", at, len(l.insts)))
	}
	if len(insts) == 0 {
		return
	}
	l.insts = append(l.insts, insts...)
	copy(l.insts[at+len(insts):], l.insts[at:])
	copy(l.insts[at:], insts)
}

// Concat appends the instructions of other, which is left untouched.
func (l *List) Concat(other *List) {
	if other != nil {
		l.insts = append(l.insts, other.insts...)
	}
}

// Instructions returns the backing slice. Callers must not grow it.
func (l *List) Instructions() []*Instruction {
	if l == nil {
		return nil
	}
	return l.insts
}

// MaxVirtual returns the highest virtual register id in the list, or -1.
func (l *List) MaxVirtual() int {
	hi := -1
	for _, inst := range l.Instructions() {
		for _, op := range inst.Ops {
			if op.Kind == VirtualReg && op.ID > hi {
				hi = op.ID
			}
		}
	}
	return hi
}

// CountKind returns how many operands of kind k appear in the list.
func (l *List) CountKind(k Kind) int {
	n := 0
	for _, inst := range l.Instructions() {
		for _, op := range inst.Ops {
			if op.Kind == k {
				n++
			}
		}
	}
	return n
}

// Format writes the list in ILOC text form, one instruction per line. Labels sit in
// column zero, everything else is indented.
func (l *List) Format(w io.Writer) error {
	for _, inst := range l.Instructions() {
		prefix := "  "
		if inst.Op == OpLabel {
			prefix = ""
		}
		if _, err := fmt.Fprintf(w, "%s%s\n", prefix, inst); err != nil {
			return err
		}
	}
	return nil
}

func (l *List) String() string {
	var sb strings.Builder
	_ = l.Format(&sb)
	return sb.String()
}

// Fingerprint hashes the structure of a list: opcodes, operand kinds, immediates,
// strings and call labels. Virtual registers and anonymous labels are renamed in
// order of first appearance, so two lists that differ only by a consistent
// renaming hash the same.
func Fingerprint(l *List) uint64 {
	h := xxhash.New()
	vregs := make(map[int]uint64)
	labels := make(map[int]uint64)
	var buf [8]byte

	word := func(v uint64) {
		binary.LittleEndian.PutUint64(buf[:], v)
		_, _ = h.Write(buf[:])
	}
	rename := func(m map[int]uint64, id int) uint64 {
		n, ok := m[id]
		if !ok {
			n = uint64(len(m))
			m[id] = n
		}
		return n
	}

	for _, inst := range l.Instructions() {
		word(uint64(inst.Op))
		for _, op := range inst.Ops {
			word(uint64(op.Kind))
			switch op.Kind {
			case VirtualReg:
				word(rename(vregs, op.ID))
			case PhysicalReg:
				word(uint64(int64(op.ID)))
			case Immediate:
				word(uint64(op.Imm))
			case StringConst:
				_, _ = h.WriteString(op.Text)
				word(uint64(len(op.Text)))
			case Label:
				if op.Text != "" {
					_, _ = h.WriteString(op.Text)
					word(uint64(len(op.Text)))
				} else {
					word(rename(labels, op.ID))
				}
			}
		}
	}
	return h.Sum64()
}
