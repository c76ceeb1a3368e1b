package iloc

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestReadWriteSlots(t *testing.T) {
	v := Virtual
	tests := []struct {
		inst   *Instruction
		reads  []int
		writes []int
	}{
		{New(OpLoadI, Imm(4), v(0)), nil, []int{1}},
		{New(OpLoadAI, BP, Imm(-8), v(1)), []int{0}, []int{2}},
		{New(OpLoadAO, BP, v(1), v(2)), []int{0, 1}, []int{2}},
		{New(OpStoreAI, v(1), BP, Imm(-8)), []int{0, 1}, nil},
		{New(OpStoreAO, v(1), BP, v(2)), []int{0, 1, 2}, nil},
		{New(OpCmpLT, v(1), v(2), v(3)), []int{0, 1}, []int{2}},
		{New(OpMultI, v(1), Imm(8), v(2)), []int{0}, []int{2}},
		{New(OpI2I, v(1), RET), []int{0}, []int{1}},
		{New(OpCBR, v(1), AnonLabel(0), AnonLabel(1)), []int{0}, nil},
		{New(OpPush, v(1)), []int{0}, nil},
		{New(OpPop, BP), nil, []int{0}},
		{New(OpPrint, v(1)), []int{0}, nil},
		{New(OpPrint, Str("hi")), nil, nil},
		{New(OpCall, CallLabel("f")), nil, nil},
		{New(OpReturn), nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.inst.String(), func(t *testing.T) {
			if diff := cmp.Diff(tt.reads, tt.inst.Reads()); diff != "" {
				t.Errorf("Reads() mismatch (-want +got):\n%s", diff)
			}
			if diff := cmp.Diff(tt.writes, tt.inst.Writes()); diff != "" {
				t.Errorf("Writes() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestInstructionText(t *testing.T) {
	tests := []struct {
		inst *Instruction
		want string
	}{
		{New(OpLabel, CallLabel("main")), "main:"},
		{New(OpLabel, AnonLabel(3)), "l3:"},
		{New(OpLoadI, Imm(14), Virtual(0)), "loadI 14 => r0"},
		{New(OpAddI, SP, Imm(-16), SP), "addI SP, -16 => SP"},
		{New(OpStoreAI, Physical(0), BP, Imm(-8)), "storeAI R0 => BP, -8"},
		{New(OpCBR, Virtual(2), AnonLabel(0), AnonLabel(1)), "cbr r2 => l0, l1"},
		{New(OpI2I, RET, Virtual(9)), "i2i RET => r9"},
		{New(OpPrint, Str("a\"b")), `print "a\"b"`},
		{New(OpReturn), "return"},
	}
	for _, tt := range tests {
		if got := tt.inst.String(); got != tt.want {
			t.Errorf("String() = %q, want %q", got, tt.want)
		}
	}
}

func TestListInsert(t *testing.T) {
	l := NewList(New(OpLoadI, Imm(1), Virtual(0)), New(OpReturn))
	l.Insert(1, New(OpPush, Virtual(0)), New(OpPop, Virtual(1)))
	l.Insert(0, New(OpLabel, CallLabel("f")))
	l.Insert(l.Len(), New(OpJump, AnonLabel(0)))

	var ops []Opcode
	for _, inst := range l.Instructions() {
		ops = append(ops, inst.Op)
	}
	want := []Opcode{OpLabel, OpLoadI, OpPush, OpPop, OpReturn, OpJump}
	if diff := cmp.Diff(want, ops); diff != "" {
		t.Fatalf("order mismatch (-want +got):\n%s", diff)
	}
	if got := l.MaxVirtual(); got != 1 {
		t.Errorf("MaxVirtual() = %d, want 1", got)
	}
}

func TestNilListIsEmpty(t *testing.T) {
	var l *List
	if l.Len() != 0 || l.MaxVirtual() != -1 || l.String() != "" {
		t.Fatal("nil list should behave as empty")
	}
}

func TestFormat(t *testing.T) {
	l := NewList(
		New(OpLabel, CallLabel("main")),
		New(OpLoadI, Imm(2), Virtual(0)),
		New(OpI2I, Virtual(0), RET),
	)
	want := "main:\n  loadI 2 => r0\n  i2i r0 => RET\n"
	if got := l.String(); got != want {
		t.Errorf("got\n%s\nwant\n%s", got, want)
	}
}

func TestFingerprintRenaming(t *testing.T) {
	build := func(base, label int) *List {
		return NewList(
			New(OpLabel, AnonLabel(label)),
			New(OpLoadI, Imm(7), Virtual(base)),
			New(OpLoadI, Imm(8), Virtual(base+1)),
			New(OpAdd, Virtual(base), Virtual(base+1), Virtual(base+2)),
			New(OpJump, AnonLabel(label)),
		)
	}
	a, b := build(0, 0), build(40, 9)
	if Fingerprint(a) != Fingerprint(b) {
		t.Fatal("consistently renamed lists should share a fingerprint")
	}

	c := build(0, 0)
	c.At(3).Ops[1] = Virtual(0)
	if Fingerprint(a) == Fingerprint(c) {
		t.Fatal("different register flow should change the fingerprint")
	}

	d := build(0, 0)
	d.At(1).Ops[0] = Imm(70)
	if Fingerprint(a) == Fingerprint(d) {
		t.Fatal("different immediates should change the fingerprint")
	}
}

func TestStringConstQuoted(t *testing.T) {
	if s := Str("x\ny").String(); !strings.HasPrefix(s, `"`) || strings.Contains(s, "\n") {
		t.Errorf("unexpected quoting %q", s)
	}
}
