package loader

import (
	"errors"
	"fmt"

	"github.com/atrim11/decafc/pkg/ast"
)

var ErrSyntax = errors.New("malformed program")

type builder struct{}

func syntaxError(line int, format string, args ...interface{}) error {
	return fmt.Errorf("%w: line %d: %s", ErrSyntax, line, fmt.Sprintf(format, args...))
}

// Build turns the decoded document into an unresolved AST. Locations and calls carry
// names only; Resolve binds them.
func (p *Program) Build() (*ast.Node, error) {
	var b builder
	var globals, functions []*ast.Node
	for _, g := range p.Globals {
		decl, err := b.varDecl(g)
		if err != nil {
			return nil, err
		}
		globals = append(globals, decl)
	}
	for _, f := range p.Functions {
		fn, err := b.funcDecl(f)
		if err != nil {
			return nil, err
		}
		functions = append(functions, fn)
	}
	return ast.NewProgram(globals, functions), nil
}

func (b *builder) symbol(d VarDecl) (*ast.Symbol, error) {
	if d.Name == "" {
		return nil, syntaxError(0, "declaration without a name")
	}
	typ, ok := ast.ParseType(d.Type)
	if !ok || typ == ast.Void {
		return nil, syntaxError(0, "%s has invalid type %q", d.Name, d.Type)
	}
	if d.Length < 0 {
		return nil, syntaxError(0, "array %s has negative length", d.Name)
	}
	if d.Length > 0 {
		return ast.NewArray(d.Name, typ, d.Length), nil
	}
	return ast.NewScalar(d.Name, typ), nil
}

func (b *builder) varDecl(d VarDecl) (*ast.Node, error) {
	sym, err := b.symbol(d)
	if err != nil {
		return nil, err
	}
	return ast.NewVarDecl(sym), nil
}

func (b *builder) funcDecl(f FuncDecl) (*ast.Node, error) {
	ret, ok := ast.ParseType(f.Returns)
	if !ok {
		return nil, syntaxError(0, "function %s has invalid return type %q", f.Name, f.Returns)
	}
	var params []*ast.Symbol
	for _, p := range f.Params {
		sym, err := b.symbol(p)
		if err != nil {
			return nil, err
		}
		if sym.IsArray() {
			return nil, syntaxError(0, "parameter %s of %s cannot be an array", p.Name, f.Name)
		}
		params = append(params, sym)
	}
	body, err := b.block(f.Body)
	if err != nil {
		return nil, err
	}
	return ast.NewFuncDecl(ast.NewFunction(f.Name, ret, params), params, body), nil
}

func (b *builder) block(blk Block) (*ast.Node, error) {
	var locals, stmts []*ast.Node
	for _, l := range blk.Locals {
		decl, err := b.varDecl(l)
		if err != nil {
			return nil, err
		}
		locals = append(locals, decl)
	}
	for i := range blk.Stmts {
		stmt, err := b.stmt(&blk.Stmts[i])
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, stmt)
	}
	return ast.NewBlock(locals, stmts), nil
}

func (b *builder) stmt(s *Stmt) (node *ast.Node, err error) {
	defer func() {
		if node != nil {
			node.Line = s.Line
		}
	}()

	switch {
	case s.Assign != nil:
		target, err := b.location(s.Assign.Target, s.Line)
		if err != nil {
			return nil, err
		}
		value, err := b.expr(&s.Assign.Value)
		if err != nil {
			return nil, err
		}
		return ast.NewAssign(target, value), nil
	case s.If != nil:
		cond, err := b.expr(&s.If.Cond)
		if err != nil {
			return nil, err
		}
		then, err := b.block(s.If.Then)
		if err != nil {
			return nil, err
		}
		var els *ast.Node
		if s.If.Else != nil {
			if els, err = b.block(*s.If.Else); err != nil {
				return nil, err
			}
		}
		return ast.NewConditional(cond, then, els), nil
	case s.While != nil:
		cond, err := b.expr(&s.While.Cond)
		if err != nil {
			return nil, err
		}
		body, err := b.block(s.While.Body)
		if err != nil {
			return nil, err
		}
		return ast.NewWhile(cond, body), nil
	case s.IsReturn:
		if s.Return == nil {
			return ast.NewReturn(nil), nil
		}
		value, err := b.expr(s.Return)
		if err != nil {
			return nil, err
		}
		return ast.NewReturn(value), nil
	case s.Break:
		return ast.NewBreak(), nil
	case s.Continue:
		return ast.NewContinue(), nil
	case s.Call != nil:
		return b.call(s.Call.Name, s.Call.Args, s.Line)
	case s.Block != nil:
		return b.block(*s.Block)
	}
	return nil, syntaxError(s.Line, "empty statement")
}

func (b *builder) location(l Location, line int) (*ast.Node, error) {
	if l.Var == "" {
		return nil, syntaxError(line, "location without a variable name")
	}
	var index *ast.Node
	if l.Index != nil {
		var err error
		if index, err = b.expr(l.Index); err != nil {
			return nil, err
		}
	}
	node := ast.NewLocation(l.Var, index)
	node.Line = line
	return node, nil
}

func (b *builder) call(name string, args []*Expr, line int) (*ast.Node, error) {
	if name == "" {
		return nil, syntaxError(line, "call without a function name")
	}
	var nodes []*ast.Node
	for _, a := range args {
		n, err := b.expr(a)
		if err != nil {
			return nil, err
		}
		nodes = append(nodes, n)
	}
	node := ast.NewFuncCall(name, nodes)
	node.Line = line
	return node, nil
}

func (b *builder) expr(e *Expr) (*ast.Node, error) {
	if e == nil {
		return nil, syntaxError(0, "missing expression")
	}
	node, err := b.exprKind(e)
	if node != nil {
		node.Line = e.Line
	}
	return node, err
}

func (b *builder) exprKind(e *Expr) (*ast.Node, error) {
	switch {
	case e.Int != nil:
		return ast.NewIntLiteral(*e.Int), nil
	case e.Bool != nil:
		return ast.NewBoolLiteral(*e.Bool), nil
	case e.Str != nil:
		return ast.NewStrLiteral(*e.Str), nil
	case e.Var != "":
		return b.location(Location{Var: e.Var, Index: e.Index}, e.Line)
	case e.Call != "":
		return b.call(e.Call, e.Args, e.Line)
	case e.Op != "" && e.Operand != nil:
		child, err := b.expr(e.Operand)
		if err != nil {
			return nil, err
		}
		switch e.Op {
		case "-":
			return ast.NewUnaryOp(ast.OpNeg, child), nil
		case "!":
			return ast.NewUnaryOp(ast.OpNot, child), nil
		}
		return nil, syntaxError(e.Line, "unknown unary operator %q", e.Op)
	case e.Op != "":
		op, ok := ast.ParseBinaryOp(e.Op)
		if !ok {
			return nil, syntaxError(e.Line, "unknown binary operator %q", e.Op)
		}
		if e.Left == nil || e.Right == nil {
			return nil, syntaxError(e.Line, "operator %q needs left and right", e.Op)
		}
		left, err := b.expr(e.Left)
		if err != nil {
			return nil, err
		}
		right, err := b.expr(e.Right)
		if err != nil {
			return nil, err
		}
		return ast.NewBinaryOp(op, left, right), nil
	}
	return nil, syntaxError(e.Line, "empty expression")
}
