package codegen

import (
	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/iloc"
)

// baseAddress returns the register an access to sym is relative to. Globals get
// their static address loaded into a fresh register, stack variables use BP.
func (ctx *Context) baseAddress(sym *ast.Symbol) fragment {
	switch sym.Storage {
	case ast.Global:
		var f fragment
		f.reg = ctx.newTemp()
		f.emit(iloc.OpLoadI, iloc.Imm(sym.Offset), f.reg)
		return f
	case ast.StackParam, ast.StackLocal:
		return fragment{reg: iloc.BP}
	}
	ctx.fail("symbol %q has unknown storage class %d", sym.Name, int(sym.Storage))
	return fragment{}
}

// offset is the constant added to baseAddress: zero for globals, the frame offset otherwise.
func offset(sym *ast.Symbol) iloc.Operand {
	if sym.Storage == ast.Global {
		return iloc.Imm(0)
	}
	return iloc.Imm(sym.Offset)
}

// elementOffset computes index*word (+ the frame offset for stack arrays) into a register.
func (ctx *Context) elementOffset(sym *ast.Symbol, index *ast.Node) fragment {
	idx := ctx.codegenExpr(index)
	f := fragment{code: idx.code}
	scaled := ctx.newTemp()
	f.emit(iloc.OpMultI, idx.reg, iloc.Imm(ctx.wordSize), scaled)
	f.reg = scaled
	if off := offset(sym); off.Imm != 0 {
		withBase := ctx.newTemp()
		f.emit(iloc.OpAddI, scaled, off, withBase)
		f.reg = withBase
	}
	return f
}
