package codegen

import (
	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/iloc"
)

func (ctx *Context) codegenLiteral(node *ast.Node) fragment {
	d := node.Data.(ast.LiteralNode)
	var f fragment
	switch d.Type {
	case ast.Int:
		f.reg = ctx.newTemp()
		f.emit(iloc.OpLoadI, iloc.Imm(d.Int), f.reg)
	case ast.Bool:
		var v int64
		if d.Bool {
			v = 1
		}
		f.reg = ctx.newTemp()
		f.emit(iloc.OpLoadI, iloc.Imm(v), f.reg)
	case ast.Str:
		// Strings only ever feed print_str, which takes the constant directly.
		f.reg = iloc.Str(d.Str)
	default:
		ctx.fail("literal of type %s", d.Type)
	}
	return f
}

func (ctx *Context) codegenBinaryOp(node *ast.Node) fragment {
	d := node.Data.(ast.BinaryOpNode)
	left := ctx.codegenExpr(d.Left)
	right := ctx.codegenExpr(d.Right)

	var f fragment
	f.splice(left)
	f.splice(right)

	if d.Op == ast.OpMod {
		q, t := ctx.newTemp(), ctx.newTemp()
		f.reg = ctx.newTemp()
		f.emit(iloc.OpDiv, left.reg, right.reg, q)
		f.emit(iloc.OpMult, q, right.reg, t)
		f.emit(iloc.OpSub, left.reg, t, f.reg)
		return f
	}

	op, ok := binaryOpcode(d.Op)
	if !ok {
		ctx.fail("unknown binary operator %d", int(d.Op))
	}
	f.reg = ctx.newTemp()
	f.emit(op, left.reg, right.reg, f.reg)
	return f
}

func binaryOpcode(op ast.BinaryOpKind) (iloc.Opcode, bool) {
	switch op {
	case ast.OpOr: return iloc.OpOr, true
	case ast.OpAnd: return iloc.OpAnd, true
	case ast.OpEq: return iloc.OpCmpEQ, true
	case ast.OpNeq: return iloc.OpCmpNE, true
	case ast.OpLt: return iloc.OpCmpLT, true
	case ast.OpLe: return iloc.OpCmpLE, true
	case ast.OpGe: return iloc.OpCmpGE, true
	case ast.OpGt: return iloc.OpCmpGT, true
	case ast.OpAdd: return iloc.OpAdd, true
	case ast.OpSub: return iloc.OpSub, true
	case ast.OpMul: return iloc.OpMult, true
	case ast.OpDiv: return iloc.OpDiv, true
	}
	return 0, false
}

func (ctx *Context) codegenUnaryOp(node *ast.Node) fragment {
	d := node.Data.(ast.UnaryOpNode)
	child := ctx.codegenExpr(d.Child)
	f := fragment{code: child.code, reg: ctx.newTemp()}
	switch d.Op {
	case ast.OpNeg:
		f.emit(iloc.OpNeg, child.reg, f.reg)
	case ast.OpNot:
		f.emit(iloc.OpNot, child.reg, f.reg)
	default:
		ctx.fail("unknown unary operator %d", int(d.Op))
	}
	return f
}

func (ctx *Context) locationSymbol(node *ast.Node) (ast.LocationNode, *ast.Symbol) {
	d := node.Data.(ast.LocationNode)
	if d.Symbol == nil {
		ctx.fail("unresolved location %q", d.Name)
	}
	if d.Symbol.IsFunction() {
		ctx.fail("location %q refers to a function", d.Name)
	}
	return d, d.Symbol
}

func (ctx *Context) codegenLocation(node *ast.Node) fragment {
	// The enclosing assignment stores through this location itself.
	if ast.IsAssignTarget(node) {
		return fragment{}
	}
	d, sym := ctx.locationSymbol(node)

	base := ctx.baseAddress(sym)
	if d.Index == nil {
		f := fragment{code: base.code, reg: ctx.newTemp()}
		f.emit(iloc.OpLoadAI, base.reg, offset(sym), f.reg)
		return f
	}
	idx := ctx.elementOffset(sym, d.Index)
	f := fragment{code: base.code}
	f.splice(idx)
	f.reg = ctx.newTemp()
	f.emit(iloc.OpLoadAO, base.reg, idx.reg, f.reg)
	return f
}

func (ctx *Context) codegenAssign(node *ast.Node) fragment {
	d := node.Data.(ast.AssignNode)
	if d.Target == nil || d.Target.Type != ast.Location {
		ctx.fail("assignment target is not a location")
	}
	value := ctx.codegenExpr(d.Value)
	target, sym := ctx.locationSymbol(d.Target)

	f := fragment{code: value.code}
	base := ctx.baseAddress(sym)
	f.splice(base)
	if target.Index == nil {
		f.emit(iloc.OpStoreAI, value.reg, base.reg, offset(sym))
		return f
	}
	idx := ctx.elementOffset(sym, target.Index)
	f.splice(idx)
	f.emit(iloc.OpStoreAO, value.reg, base.reg, idx.reg)
	return f
}

func (ctx *Context) codegenFuncCall(node *ast.Node) fragment {
	d := node.Data.(ast.FuncCallNode)
	if ast.IsBuiltinPrint(d.Name) {
		if len(d.Args) != 1 {
			ctx.fail("%s takes one argument, got %d", d.Name, len(d.Args))
		}
		arg := ctx.codegenExpr(d.Args[0])
		f := fragment{code: arg.code}
		f.emit(iloc.OpPrint, arg.reg)
		return f
	}
	if d.Symbol == nil || !d.Symbol.IsFunction() {
		ctx.fail("call to %q, which is not a function", d.Name)
	}

	var f fragment
	regs := make([]iloc.Operand, len(d.Args))
	for i, arg := range d.Args {
		a := ctx.codegenExpr(arg)
		f.splice(a)
		regs[i] = a.reg
	}
	// Reverse order leaves the first argument closest to the callee's BP.
	for i := len(regs) - 1; i >= 0; i-- {
		f.emit(iloc.OpPush, regs[i])
	}
	f.emit(iloc.OpCall, iloc.CallLabel(d.Symbol.Name))
	if n := int64(len(regs)); n > 0 {
		f.emit(iloc.OpAddI, iloc.SP, iloc.Imm(n*ctx.wordSize), iloc.SP)
	}
	f.reg = ctx.newTemp()
	f.emit(iloc.OpI2I, iloc.RET, f.reg)
	return f
}
