// Package ast defines the types used to represent the analysed Decaf Abstract Syntax Tree (AST)
package ast

import "fmt"

// NodeType defines the kind of a node in the AST
type NodeType int

// Node types enum
const (
	// Expressions
	Literal NodeType = iota
	BinaryOp
	UnaryOp
	Location
	FuncCall

	// Statements
	Program
	VarDecl
	FuncDecl
	Block
	Assign
	Conditional
	While
	Return
	Break
	Continue
)

var nodeTypeNames = [...]string{
	Literal: "Literal", BinaryOp: "BinaryOp", UnaryOp: "UnaryOp", Location: "Location", FuncCall: "FuncCall",
	Program: "Program", VarDecl: "VarDecl", FuncDecl: "FuncDecl", Block: "Block", Assign: "Assign",
	Conditional: "Conditional", While: "While", Return: "Return", Break: "Break", Continue: "Continue",
}

func (t NodeType) String() string {
	if t >= 0 && int(t) < len(nodeTypeNames) {
		return nodeTypeNames[t]
	}
	return fmt.Sprintf("NodeType(%d)", int(t))
}

// Node represents a node in the Abstract Syntax Tree
type Node struct {
	Type   NodeType
	Parent *Node
	Data   interface{}
	Line   int
}

type BinaryOpKind int

const (
	OpOr BinaryOpKind = iota
	OpAnd
	OpEq
	OpNeq
	OpLt
	OpLe
	OpGe
	OpGt
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
)

var binaryOpText = [...]string{
	OpOr: "||", OpAnd: "&&", OpEq: "==", OpNeq: "!=", OpLt: "<", OpLe: "<=", OpGe: ">=", OpGt: ">",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpMod: "%",
}

func (op BinaryOpKind) String() string {
	if op >= 0 && int(op) < len(binaryOpText) {
		return binaryOpText[op]
	}
	return fmt.Sprintf("BinaryOpKind(%d)", int(op))
}

// ParseBinaryOp maps operator text to its kind.
func ParseBinaryOp(s string) (BinaryOpKind, bool) {
	for i, text := range binaryOpText {
		if text == s {
			return BinaryOpKind(i), true
		}
	}
	return 0, false
}

type UnaryOpKind int

const (
	OpNeg UnaryOpKind = iota
	OpNot
)

func (op UnaryOpKind) String() string {
	switch op {
	case OpNeg:
		return "-"
	case OpNot:
		return "!"
	}
	return fmt.Sprintf("UnaryOpKind(%d)", int(op))
}

// --- Node Data Structs ---
type LiteralNode struct {
	Type Type
	Int  int64
	Bool bool
	Str  string
}
type BinaryOpNode struct {
	Op          BinaryOpKind
	Left, Right *Node
}
type UnaryOpNode struct {
	Op    UnaryOpKind
	Child *Node
}
type LocationNode struct {
	Name   string
	Index  *Node // nil for scalars
	Symbol *Symbol
}
type FuncCallNode struct {
	Name   string
	Args   []*Node
	Symbol *Symbol
}
type ProgramNode struct{ Globals, Functions []*Node }
type VarDeclNode struct{ Symbol *Symbol }
type FuncDeclNode struct {
	Symbol     *Symbol
	Params     []*Symbol
	Body       *Node
	LocalBytes int64 // frame bytes for locals, set by layout
}
type BlockNode struct{ Locals, Stmts []*Node }
type AssignNode struct{ Target, Value *Node }
type ConditionalNode struct{ Cond, Then, Else *Node }
type WhileNode struct{ Cond, Body *Node }
type ReturnNode struct{ Value *Node }
type BreakNode struct{}
type ContinueNode struct{}

// --- Node Constructors ---

func newNode(nodeType NodeType, data interface{}, children ...*Node) *Node {
	node := &Node{Type: nodeType, Data: data}
	for _, child := range children {
		if child != nil {
			child.Parent = node
		}
	}
	return node
}

func NewIntLiteral(v int64) *Node {
	return newNode(Literal, LiteralNode{Type: Int, Int: v})
}
func NewBoolLiteral(v bool) *Node {
	return newNode(Literal, LiteralNode{Type: Bool, Bool: v})
}
func NewStrLiteral(s string) *Node {
	return newNode(Literal, LiteralNode{Type: Str, Str: s})
}
func NewBinaryOp(op BinaryOpKind, left, right *Node) *Node {
	return newNode(BinaryOp, BinaryOpNode{Op: op, Left: left, Right: right}, left, right)
}
func NewUnaryOp(op UnaryOpKind, child *Node) *Node {
	return newNode(UnaryOp, UnaryOpNode{Op: op, Child: child}, child)
}
func NewLocation(name string, index *Node) *Node {
	return newNode(Location, LocationNode{Name: name, Index: index}, index)
}
func NewFuncCall(name string, args []*Node) *Node {
	return newNode(FuncCall, FuncCallNode{Name: name, Args: args}, args...)
}
func NewProgram(globals, functions []*Node) *Node {
	children := append(append([]*Node{}, globals...), functions...)
	return newNode(Program, ProgramNode{Globals: globals, Functions: functions}, children...)
}
func NewVarDecl(sym *Symbol) *Node {
	return newNode(VarDecl, VarDeclNode{Symbol: sym})
}
func NewFuncDecl(sym *Symbol, params []*Symbol, body *Node) *Node {
	return newNode(FuncDecl, FuncDeclNode{Symbol: sym, Params: params, Body: body}, body)
}
func NewBlock(locals, stmts []*Node) *Node {
	children := append(append([]*Node{}, locals...), stmts...)
	return newNode(Block, BlockNode{Locals: locals, Stmts: stmts}, children...)
}
func NewAssign(target, value *Node) *Node {
	return newNode(Assign, AssignNode{Target: target, Value: value}, target, value)
}
func NewConditional(cond, then, els *Node) *Node {
	return newNode(Conditional, ConditionalNode{Cond: cond, Then: then, Else: els}, cond, then, els)
}
func NewWhile(cond, body *Node) *Node {
	return newNode(While, WhileNode{Cond: cond, Body: body}, cond, body)
}
func NewReturn(value *Node) *Node {
	return newNode(Return, ReturnNode{Value: value}, value)
}
func NewBreak() *Node    { return newNode(Break, BreakNode{}) }
func NewContinue() *Node { return newNode(Continue, ContinueNode{}) }

// Walk visits node and its descendants in source order, parents first.
func Walk(node *Node, visit func(n *Node)) {
	if node == nil {
		return
	}
	visit(node)

	switch d := node.Data.(type) {
	case BinaryOpNode:
		Walk(d.Left, visit)
		Walk(d.Right, visit)
	case UnaryOpNode:
		Walk(d.Child, visit)
	case LocationNode:
		Walk(d.Index, visit)
	case FuncCallNode:
		for _, arg := range d.Args {
			Walk(arg, visit)
		}
	case ProgramNode:
		for _, g := range d.Globals {
			Walk(g, visit)
		}
		for _, f := range d.Functions {
			Walk(f, visit)
		}
	case FuncDeclNode:
		Walk(d.Body, visit)
	case BlockNode:
		for _, l := range d.Locals {
			Walk(l, visit)
		}
		for _, s := range d.Stmts {
			Walk(s, visit)
		}
	case AssignNode:
		Walk(d.Target, visit)
		Walk(d.Value, visit)
	case ConditionalNode:
		Walk(d.Cond, visit)
		Walk(d.Then, visit)
		Walk(d.Else, visit)
	case WhileNode:
		Walk(d.Cond, visit)
		Walk(d.Body, visit)
	case ReturnNode:
		Walk(d.Value, visit)
	}
}

// IsAssignTarget reports whether node is the left-hand side of its parent assignment.
func IsAssignTarget(node *Node) bool {
	if node == nil || node.Parent == nil || node.Parent.Type != Assign {
		return false
	}
	return node.Parent.Data.(AssignNode).Target == node
}
