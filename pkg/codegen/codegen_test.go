package codegen

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
	"github.com/atrim11/decafc/pkg/loader"
	"github.com/atrim11/decafc/pkg/sim"
	"github.com/google/go-cmp/cmp"
)

func compile(t *testing.T, src string) (*ast.Node, *iloc.List) {
	t.Helper()
	cfg := config.NewConfig()
	root, err := loader.Parse([]byte(src), cfg)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	list, err := NewContext(cfg).Generate(root)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	return root, list
}

func run(t *testing.T, list *iloc.List) (int64, string) {
	t.Helper()
	var out bytes.Buffer
	res, err := sim.Run(list, config.NewConfig(), "main", &out)
	if err != nil {
		t.Fatalf("run: %v\n%s", err, list)
	}
	return res.Value, out.String()
}

func lines(list *iloc.List) []string {
	var out []string
	for _, inst := range list.Instructions() {
		out = append(out, inst.String())
	}
	return out
}

func TestReturnConstantExpression(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: main
    returns: int
    body:
      - return: {op: "+", left: 2, right: {op: "*", left: 3, right: 4}}
`)
	want := []string{
		"main:",
		"push BP",
		"i2i SP => BP",
		"addI SP, 0 => SP",
		"loadI 2 => r0",
		"loadI 3 => r1",
		"loadI 4 => r2",
		"mult r1, r2 => r3",
		"add r0, r3 => r4",
		"i2i r4 => RET",
		"jump l0",
		"l0:",
		"i2i BP => SP",
		"pop BP",
		"return",
	}
	if diff := cmp.Diff(want, lines(list)); diff != "" {
		t.Fatalf("code mismatch (-want +got):\n%s", diff)
	}
	if v, _ := run(t, list); v != 14 {
		t.Errorf("main returned %d, want 14", v)
	}
}

func TestWhileLayout(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: main
    returns: int
    body:
      locals: [{name: a, type: int}]
      stmts:
        - assign: {target: {var: a}, value: 0}
        - while:
            cond: {op: "<", left: {var: a}, right: 3}
            body:
              - assign: {target: {var: a}, value: {op: "+", left: {var: a}, right: 1}}
        - return: {var: a}
`)
	want := []string{
		"main:",
		"push BP",
		"i2i SP => BP",
		"addI SP, -8 => SP",
		"loadI 0 => r0",
		"storeAI r0 => BP, -8",
		"l1:",
		"loadAI BP, -8 => r1",
		"loadI 3 => r2",
		"cmp_LT r1, r2 => r3",
		"cbr r3 => l2, l3",
		"l2:",
		"loadAI BP, -8 => r4",
		"loadI 1 => r5",
		"add r4, r5 => r6",
		"storeAI r6 => BP, -8",
		"jump l1",
		"l3:",
		"loadAI BP, -8 => r7",
		"i2i r7 => RET",
		"jump l0",
		"l0:",
		"i2i BP => SP",
		"pop BP",
		"return",
	}
	if diff := cmp.Diff(want, lines(list)); diff != "" {
		t.Fatalf("code mismatch (-want +got):\n%s", diff)
	}
	if v, _ := run(t, list); v != 3 {
		t.Errorf("main returned %d, want 3", v)
	}
}

func TestIfElseDoesNotFallThrough(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: main
    returns: int
    body:
      - if:
          cond: {op: ">", left: 1, right: 2}
          then: [{return: 10}]
          else: [{call: {name: print_int, args: [7]}}]
      - return: 20
`)
	got := strings.Join(lines(list), "\n")
	for _, want := range []string{"cbr r2 => l1, l2", "jump l3\nl2:", "print r4\nl3:"} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in\n%s", want, got)
		}
	}
	v, out := run(t, list)
	if v != 20 || out != "7\n" {
		t.Errorf("got %d %q, want 20 \"7\\n\"", v, out)
	}
}

func TestCallConvention(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: sub
    returns: int
    params: [{name: x, type: int}, {name: y, type: int}]
    body:
      - return: {op: "-", left: {var: x}, right: {var: y}}
  - name: main
    returns: int
    body:
      - return: {call: sub, args: [10, 3]}
`)
	got := lines(list)
	want := []string{"push r4", "push r3", "call sub", "addI SP, 16 => SP", "i2i RET => r5"}
	idx := -1
	for i, l := range got {
		if l == "push r4" {
			idx = i
		}
	}
	if idx < 0 {
		t.Fatalf("no argument push in\n%s", list)
	}
	if diff := cmp.Diff(want, got[idx:idx+len(want)]); diff != "" {
		t.Errorf("call sequence mismatch (-want +got):\n%s", diff)
	}
	if !strings.Contains(list.String(), "loadAI BP, 16 => r0") || !strings.Contains(list.String(), "loadAI BP, 24 => r1") {
		t.Errorf("parameters should load from BP+16 and BP+24:\n%s", list)
	}
	if v, _ := run(t, list); v != 7 {
		t.Errorf("main returned %d, want 7", v)
	}
}

func TestArrays(t *testing.T) {
	_, list := compile(t, `
globals: [{name: g, type: int, length: 2}]
functions:
  - name: main
    returns: int
    body:
      locals: [{name: arr, type: int, length: 3}]
      stmts:
        - assign: {target: {var: arr, index: 0}, value: 1}
        - assign: {target: {var: arr, index: 1}, value: 2}
        - assign: {target: {var: arr, index: 2}, value: 3}
        - assign: {target: {var: g, index: 1}, value: 100}
        - return:
            op: "+"
            left: {op: "+", left: {var: arr, index: 0}, right: {var: arr, index: 1}}
            right: {op: "+", left: {var: arr, index: 2}, right: {var: g, index: 1}}
`)
	text := list.String()
	for _, want := range []string{"multI r1, 8 => r2", "addI r2, -24 => r3", "storeAO r0 => BP, r3", "loadI 0 => r", "loadAO BP, r"} {
		if !strings.Contains(text, want) {
			t.Errorf("missing %q in\n%s", want, text)
		}
	}
	if v, _ := run(t, list); v != 106 {
		t.Errorf("main returned %d, want 106", v)
	}
}

func TestModAndUnary(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: main
    returns: int
    body:
      - call: {name: print_bool, args: [{op: "!", operand: {op: "==", left: 1, right: 2}}]}
      - call: {name: print_str, args: [{str: "mod"}]}
      - return: {op: "%", left: {op: "-", operand: 17}, right: 5}
`)
	text := list.String()
	if !strings.Contains(text, `print "mod"`) {
		t.Errorf("string argument should print directly:\n%s", text)
	}
	v, out := run(t, list)
	if v != -2 {
		t.Errorf("-17 %% 5 = %d, want -2", v)
	}
	if out != "1\nmod\n" {
		t.Errorf("output %q", out)
	}
}

func TestBreakContinueNested(t *testing.T) {
	// Sums i*j over a nested loop that exercises both break and continue.
	_, list := compile(t, `
functions:
  - name: main
    returns: int
    body:
      locals: [{name: i, type: int}, {name: j, type: int}, {name: s, type: int}]
      stmts:
        - assign: {target: {var: i}, value: 0}
        - assign: {target: {var: s}, value: 0}
        - while:
            cond: {op: "<", left: {var: i}, right: 5}
            body:
              - assign: {target: {var: j}, value: 0}
              - while:
                  cond: {op: "<=", left: {var: j}, right: {var: i}}
                  body:
                    - if:
                        cond: {op: "==", left: {var: j}, right: 3}
                        then: [{break: ~}]
                    - assign: {target: {var: j}, value: {op: "+", left: {var: j}, right: 1}}
                    - if:
                        cond: {op: "==", left: {var: j}, right: 2}
                        then: [{continue: ~}]
                    - assign:
                        target: {var: s}
                        value: {op: "+", left: {var: s}, right: {op: "*", left: {var: i}, right: {var: j}}}
              - assign: {target: {var: i}, value: {op: "+", left: {var: i}, right: 1}}
        - return: {var: s}
`)
	want := int64(0)
	for i := int64(0); i < 5; i++ {
		for j := int64(0); j <= i; j++ {
			if j == 3 {
				break
			}
			jj := j + 1
			if jj == 2 {
				continue
			}
			want += i * jj
		}
	}
	if v, _ := run(t, list); v != want {
		t.Errorf("main returned %d, want %d", v, want)
	}
}

func TestRecursion(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: fact
    returns: int
    params: [{name: n, type: int}]
    body:
      - if:
          cond: {op: "<=", left: {var: n}, right: 1}
          then: [{return: 1}]
      - return: {op: "*", left: {var: n}, right: {call: fact, args: [{op: "-", left: {var: n}, right: 1}]}}
  - name: main
    returns: int
    body:
      - return: {call: fact, args: [10]}
`)
	if v, _ := run(t, list); v != 3628800 {
		t.Errorf("fact(10) = %d", v)
	}
}

func TestGenerateIsDeterministic(t *testing.T) {
	root, first := compile(t, `
globals: [{name: g, type: int}]
functions:
  - name: main
    returns: int
    body:
      - while:
          cond: {op: "<", left: {var: g}, right: 4}
          body: [{assign: {target: {var: g}, value: {op: "+", left: {var: g}, right: 1}}}]
      - return: {var: g}
`)
	second, err := NewContext(config.NewConfig()).Generate(root)
	if err != nil {
		t.Fatal(err)
	}
	if iloc.Fingerprint(first) != iloc.Fingerprint(second) {
		t.Error("fingerprints differ between runs")
	}
	if diff := cmp.Diff(first.String(), second.String()); diff != "" {
		t.Errorf("text differs between runs (-first +second):\n%s", diff)
	}
}

func TestEmptyProgram(t *testing.T) {
	list, err := NewContext(config.NewConfig()).Generate(ast.NewProgram(nil, nil))
	if err != nil {
		t.Fatal(err)
	}
	if list == nil || list.Len() != 0 {
		t.Fatalf("want an empty, non-nil list, got %v", list)
	}
}

func TestInternalErrors(t *testing.T) {
	fn := func(body ...*ast.Node) *ast.Node {
		return ast.NewProgram(nil, []*ast.Node{
			ast.NewFuncDecl(ast.NewFunction("main", ast.Int, nil), nil, ast.NewBlock(nil, body)),
		})
	}
	notAFunction := ast.NewFuncCall("x", nil)
	d := notAFunction.Data.(ast.FuncCallNode)
	d.Symbol = ast.NewScalar("x", ast.Int)
	notAFunction.Data = d

	tests := []struct {
		name string
		root *ast.Node
	}{
		{"break outside loop", fn(ast.NewBreak())},
		{"continue outside loop", fn(ast.NewContinue())},
		{"bad operator", fn(ast.NewReturn(ast.NewBinaryOp(ast.BinaryOpKind(99), ast.NewIntLiteral(1), ast.NewIntLiteral(2))))},
		{"bad unary operator", fn(ast.NewReturn(ast.NewUnaryOp(ast.UnaryOpKind(9), ast.NewIntLiteral(1))))},
		{"call to non-function", fn(ast.NewReturn(notAFunction))},
		{"unresolved location", fn(ast.NewReturn(ast.NewLocation("nowhere", nil)))},
		{"unknown node", fn(&ast.Node{Type: ast.NodeType(77)})},
		{"statement as root", ast.NewBreak()},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			list, err := NewContext(config.NewConfig()).Generate(tt.root)
			if !errors.Is(err, ErrInternal) {
				t.Fatalf("err = %v, want ErrInternal", err)
			}
			if list != nil {
				t.Error("no partial output on failure")
			}
		})
	}
}

func TestILOCBackend(t *testing.T) {
	_, list := compile(t, `
functions:
  - name: main
    body: [{return: ~}]
`)
	buf, err := NewILOCBackend().Generate(list, config.NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	want := "# word size 8\nmain:\n  push BP\n  i2i SP => BP\n  addI SP, 0 => SP\n  jump l0\nl0:\n  i2i BP => SP\n  pop BP\n  return\n"
	if diff := cmp.Diff(want, buf.String()); diff != "" {
		t.Errorf("backend output mismatch (-want +got):\n%s", diff)
	}
}
