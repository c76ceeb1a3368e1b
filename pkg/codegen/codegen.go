package codegen

import (
	"errors"
	"fmt"

	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
)

// ErrInternal marks a malformed AST reaching the generator. The front end is
// expected to have rejected such input, so it is a compiler bug, never a user error.
var ErrInternal = errors.New("codegen: internal error")

type internalError struct{ msg string }

// fragment is the code generated at one node plus, for expressions, the operand
// holding its value.
type fragment struct {
	code []*iloc.Instruction
	reg  iloc.Operand
}

func (f *fragment) emit(op iloc.Opcode, ops ...iloc.Operand) {
	f.code = append(f.code, iloc.New(op, ops...))
}

func (f *fragment) splice(child fragment) { f.code = append(f.code, child.code...) }

type loopLabels struct{ cond, end iloc.Operand }

type Context struct {
	cfg        *config.Config
	wordSize   int64
	tempCount  int
	labelCount int
	loops      []loopLabels
	epilogue   iloc.Operand
	inFunc     bool
}

func NewContext(cfg *config.Config) *Context {
	return &Context{cfg: cfg, wordSize: int64(cfg.WordSize)}
}

func (ctx *Context) newTemp() iloc.Operand {
	t := iloc.Virtual(ctx.tempCount)
	ctx.tempCount++
	return t
}

func (ctx *Context) newLabel() iloc.Operand {
	l := iloc.AnonLabel(ctx.labelCount)
	ctx.labelCount++
	return l
}

func (ctx *Context) fail(format string, args ...interface{}) {
	panic(internalError{msg: fmt.Sprintf(format, args...)})
}

// Generate lowers an analysed program into one flat instruction list. Register
// and label numbering restart on every call, so the output for an unchanged tree
// is identical. The returned list is never nil when err is nil.
func (ctx *Context) Generate(root *ast.Node) (list *iloc.List, err error) {
	ctx.tempCount, ctx.labelCount = 0, 0
	ctx.loops = ctx.loops[:0]
	ctx.inFunc = false

	defer func() {
		if r := recover(); r != nil {
			ie, ok := r.(internalError)
			if !ok {
				panic(r)
			}
			list, err = nil, fmt.Errorf("%w: %s", ErrInternal, ie.msg)
		}
	}()

	list = iloc.NewList()
	if root == nil {
		return list, nil
	}
	switch root.Type {
	case ast.Program:
		for _, fn := range root.Data.(ast.ProgramNode).Functions {
			list.Append(ctx.codegenFuncDecl(fn).code...)
		}
	case ast.FuncDecl:
		list.Append(ctx.codegenFuncDecl(root).code...)
	default:
		ctx.fail("root node is %s, want Program or FuncDecl", root.Type)
	}
	return list, nil
}

func (ctx *Context) codegenExpr(node *ast.Node) fragment {
	if node == nil {
		ctx.fail("missing expression")
	}
	switch node.Type {
	case ast.Literal:
		return ctx.codegenLiteral(node)
	case ast.BinaryOp:
		return ctx.codegenBinaryOp(node)
	case ast.UnaryOp:
		return ctx.codegenUnaryOp(node)
	case ast.Location:
		return ctx.codegenLocation(node)
	case ast.FuncCall:
		return ctx.codegenFuncCall(node)
	}
	ctx.fail("unhandled expression type in codegen: %v", node.Type)
	return fragment{}
}

func (ctx *Context) codegenStmt(node *ast.Node) fragment {
	if node == nil {
		return fragment{}
	}
	switch node.Type {
	case ast.Block:
		var f fragment
		for _, stmt := range node.Data.(ast.BlockNode).Stmts {
			f.splice(ctx.codegenStmt(stmt))
		}
		return f
	case ast.VarDecl:
		return fragment{}
	case ast.Assign:
		return ctx.codegenAssign(node)
	case ast.Conditional:
		return ctx.codegenIf(node)
	case ast.While:
		return ctx.codegenWhile(node)
	case ast.Return:
		return ctx.codegenReturn(node)
	case ast.Break, ast.Continue:
		if len(ctx.loops) == 0 {
			ctx.fail("%s outside of a loop", node.Type)
		}
		loop := ctx.loops[len(ctx.loops)-1]
		var f fragment
		if node.Type == ast.Break {
			f.emit(iloc.OpJump, loop.end)
		} else {
			f.emit(iloc.OpJump, loop.cond)
		}
		return f
	case ast.FuncCall:
		// A call statement discards the result register.
		return ctx.codegenFuncCall(node)
	}
	ctx.fail("unhandled statement type in codegen: %v", node.Type)
	return fragment{}
}

func (ctx *Context) codegenFuncDecl(node *ast.Node) fragment {
	if node == nil || node.Type != ast.FuncDecl {
		ctx.fail("expected function declaration")
	}
	d := node.Data.(ast.FuncDeclNode)
	if d.Symbol == nil || !d.Symbol.IsFunction() {
		ctx.fail("function declaration without a function symbol")
	}

	ctx.epilogue = ctx.newLabel()
	ctx.inFunc = true
	defer func() { ctx.inFunc = false }()

	var f fragment
	f.emit(iloc.OpLabel, iloc.CallLabel(d.Symbol.Name))
	f.emit(iloc.OpPush, iloc.BP)
	f.emit(iloc.OpI2I, iloc.SP, iloc.BP)
	f.emit(iloc.OpAddI, iloc.SP, iloc.Imm(-d.LocalBytes), iloc.SP)

	f.splice(ctx.codegenStmt(d.Body))

	f.emit(iloc.OpLabel, ctx.epilogue)
	f.emit(iloc.OpI2I, iloc.BP, iloc.SP)
	f.emit(iloc.OpPop, iloc.BP)
	f.emit(iloc.OpReturn)
	return f
}

func (ctx *Context) codegenReturn(node *ast.Node) fragment {
	if !ctx.inFunc {
		ctx.fail("return outside of a function")
	}
	var f fragment
	if value := node.Data.(ast.ReturnNode).Value; value != nil {
		v := ctx.codegenExpr(value)
		f.splice(v)
		f.emit(iloc.OpI2I, v.reg, iloc.RET)
	}
	f.emit(iloc.OpJump, ctx.epilogue)
	return f
}

func (ctx *Context) codegenIf(node *ast.Node) fragment {
	d := node.Data.(ast.ConditionalNode)
	bodyL, endL := ctx.newLabel(), ctx.newLabel()

	var f fragment
	cond := ctx.codegenExpr(d.Cond)
	f.splice(cond)
	f.emit(iloc.OpCBR, cond.reg, bodyL, endL)
	f.emit(iloc.OpLabel, bodyL)
	f.splice(ctx.codegenStmt(d.Then))

	if d.Else != nil {
		mergeL := ctx.newLabel()
		f.emit(iloc.OpJump, mergeL)
		f.emit(iloc.OpLabel, endL)
		f.splice(ctx.codegenStmt(d.Else))
		f.emit(iloc.OpLabel, mergeL)
		return f
	}
	f.emit(iloc.OpLabel, endL)
	return f
}

func (ctx *Context) codegenWhile(node *ast.Node) fragment {
	d := node.Data.(ast.WhileNode)
	condL, bodyL, endL := ctx.newLabel(), ctx.newLabel(), ctx.newLabel()

	ctx.loops = append(ctx.loops, loopLabels{cond: condL, end: endL})
	defer func() { ctx.loops = ctx.loops[:len(ctx.loops)-1] }()

	var f fragment
	f.emit(iloc.OpLabel, condL)
	cond := ctx.codegenExpr(d.Cond)
	f.splice(cond)
	f.emit(iloc.OpCBR, cond.reg, bodyL, endL)
	f.emit(iloc.OpLabel, bodyL)
	f.splice(ctx.codegenStmt(d.Body))
	f.emit(iloc.OpJump, condL)
	f.emit(iloc.OpLabel, endL)
	return f
}
