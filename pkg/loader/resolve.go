package loader

import (
	"errors"
	"fmt"

	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/util"
)

var (
	ErrUndefined  = errors.New("undefined name")
	ErrRedeclared = errors.New("name declared twice in one scope")
	ErrArity      = errors.New("wrong number of arguments")
	ErrMisuse     = errors.New("name used as the wrong kind of symbol")
)

type scope struct {
	symbols map[string]*ast.Symbol
	parent  *scope
}

func newScope(parent *scope) *scope {
	return &scope{symbols: make(map[string]*ast.Symbol), parent: parent}
}

func (s *scope) lookup(name string) *ast.Symbol {
	for sc := s; sc != nil; sc = sc.parent {
		if sym, ok := sc.symbols[name]; ok {
			return sym
		}
	}
	return nil
}

func (s *scope) declare(sym *ast.Symbol, line int) error {
	if _, ok := s.symbols[sym.Name]; ok {
		return fmt.Errorf("%w: %q (line %d)", ErrRedeclared, sym.Name, line)
	}
	s.symbols[sym.Name] = sym
	return nil
}

type resolver struct {
	word    int64
	global  *scope
	current *scope
	used    int64 // local bytes claimed in the current function
}

// Resolve binds every location and call in root to its symbol and lays out storage.
// Globals take consecutive word slots from address 0. Parameters sit above BP from
// two words up, locals below it; an array's offset addresses element 0 and its
// elements grow toward higher addresses. Each function records the bytes its
// locals need.
func Resolve(root *ast.Node, cfg *config.Config) error {
	if root == nil || root.Type != ast.Program {
		return fmt.Errorf("%w: resolve needs a program node", ErrSyntax)
	}
	r := &resolver{word: int64(cfg.WordSize), global: newScope(nil)}
	r.current = r.global
	prog := root.Data.(ast.ProgramNode)

	var next int64
	for _, g := range prog.Globals {
		sym := g.Data.(ast.VarDeclNode).Symbol
		sym.Storage, sym.Offset = ast.Global, next
		next += r.size(sym)
		if err := r.global.declare(sym, g.Line); err != nil {
			return err
		}
	}
	for _, fn := range prog.Functions {
		sym := fn.Data.(ast.FuncDeclNode).Symbol
		if ast.IsBuiltinPrint(sym.Name) {
			return fmt.Errorf("%w: %q is a built-in", ErrRedeclared, sym.Name)
		}
		if err := r.global.declare(sym, fn.Line); err != nil {
			return err
		}
	}
	for _, fn := range prog.Functions {
		if err := r.function(fn); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) size(sym *ast.Symbol) int64 {
	if sym.IsArray() {
		return sym.Length * r.word
	}
	return r.word
}

func (r *resolver) function(node *ast.Node) error {
	d := node.Data.(ast.FuncDeclNode)
	r.current = newScope(r.global)
	defer func() { r.current = r.global }()

	for i, p := range d.Params {
		p.Storage = ast.StackParam
		p.Offset = int64(2+i) * r.word
		if err := r.current.declare(p, node.Line); err != nil {
			return err
		}
	}
	r.used = 0
	if err := r.stmt(d.Body); err != nil {
		return fmt.Errorf("in %s: %w", d.Symbol.Name, err)
	}
	d.LocalBytes = util.AlignUp(r.used, r.word)
	node.Data = d
	return nil
}

func (r *resolver) block(node *ast.Node) error {
	d := node.Data.(ast.BlockNode)
	r.current = newScope(r.current)
	defer func() { r.current = r.current.parent }()

	for _, l := range d.Locals {
		sym := l.Data.(ast.VarDeclNode).Symbol
		r.used += r.size(sym)
		sym.Storage, sym.Offset = ast.StackLocal, -r.used
		if err := r.current.declare(sym, l.Line); err != nil {
			return err
		}
	}
	for _, s := range d.Stmts {
		if err := r.stmt(s); err != nil {
			return err
		}
	}
	return nil
}

func (r *resolver) stmt(node *ast.Node) error {
	if node == nil {
		return nil
	}
	switch d := node.Data.(type) {
	case ast.BlockNode:
		return r.block(node)
	case ast.AssignNode:
		if err := r.expr(d.Value); err != nil {
			return err
		}
		return r.location(d.Target)
	case ast.ConditionalNode:
		if err := r.expr(d.Cond); err != nil {
			return err
		}
		if err := r.stmt(d.Then); err != nil {
			return err
		}
		return r.stmt(d.Else)
	case ast.WhileNode:
		if err := r.expr(d.Cond); err != nil {
			return err
		}
		return r.stmt(d.Body)
	case ast.ReturnNode:
		if d.Value == nil {
			return nil
		}
		return r.expr(d.Value)
	case ast.FuncCallNode:
		return r.call(node)
	case ast.BreakNode, ast.ContinueNode, ast.VarDeclNode:
		return nil
	}
	return fmt.Errorf("%w: unexpected %s statement", ErrSyntax, node.Type)
}

func (r *resolver) expr(node *ast.Node) error {
	switch d := node.Data.(type) {
	case ast.LiteralNode:
		return nil
	case ast.BinaryOpNode:
		if err := r.expr(d.Left); err != nil {
			return err
		}
		return r.expr(d.Right)
	case ast.UnaryOpNode:
		return r.expr(d.Child)
	case ast.LocationNode:
		return r.location(node)
	case ast.FuncCallNode:
		return r.call(node)
	}
	return fmt.Errorf("%w: unexpected %s expression", ErrSyntax, node.Type)
}

func (r *resolver) location(node *ast.Node) error {
	d := node.Data.(ast.LocationNode)
	sym := r.current.lookup(d.Name)
	if sym == nil {
		return fmt.Errorf("%w: %q (line %d)", ErrUndefined, d.Name, node.Line)
	}
	if sym.IsFunction() {
		return fmt.Errorf("%w: function %q used as a variable (line %d)", ErrMisuse, d.Name, node.Line)
	}
	if sym.IsArray() != (d.Index != nil) {
		return fmt.Errorf("%w: %q indexed inconsistently with its declaration (line %d)", ErrMisuse, d.Name, node.Line)
	}
	if d.Index != nil {
		if err := r.expr(d.Index); err != nil {
			return err
		}
	}
	d.Symbol = sym
	node.Data = d
	return nil
}

func (r *resolver) call(node *ast.Node) error {
	d := node.Data.(ast.FuncCallNode)
	sym, builtin := ast.Builtins[d.Name]
	if !builtin {
		sym = r.current.lookup(d.Name)
	}
	if sym == nil {
		return fmt.Errorf("%w: function %q (line %d)", ErrUndefined, d.Name, node.Line)
	}
	if !sym.IsFunction() {
		return fmt.Errorf("%w: %q is not a function (line %d)", ErrMisuse, d.Name, node.Line)
	}
	if len(d.Args) != len(sym.Params) {
		return fmt.Errorf("%w: %s takes %d, got %d (line %d)", ErrArity, d.Name, len(sym.Params), len(d.Args), node.Line)
	}
	for _, a := range d.Args {
		if err := r.expr(a); err != nil {
			return err
		}
	}
	d.Symbol = sym
	node.Data = d
	return nil
}
