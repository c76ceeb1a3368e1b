package loader

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Program is the YAML form of an analysed Decaf program.
type Program struct {
	Globals   []VarDecl  `yaml:"globals,omitempty"`
	Functions []FuncDecl `yaml:"functions"`
}

// VarDecl declares a scalar, or an array when Length is set.
type VarDecl struct {
	Name   string `yaml:"name"`
	Type   string `yaml:"type"`
	Length int64  `yaml:"length,omitempty"`
}

type FuncDecl struct {
	Name    string    `yaml:"name"`
	Returns string    `yaml:"returns,omitempty"` // void when empty
	Params  []VarDecl `yaml:"params,omitempty"`
	Body    Block     `yaml:"body"`
}

// Block is either a mapping with locals and stmts, or a bare statement sequence.
type Block struct {
	Locals []VarDecl `yaml:"locals,omitempty"`
	Stmts  []Stmt    `yaml:"stmts,omitempty"`
}

func (b *Block) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind == yaml.SequenceNode {
		return value.Decode(&b.Stmts)
	}
	type plain Block
	return value.Decode((*plain)(b))
}

type Location struct {
	Var   string `yaml:"var"`
	Index *Expr  `yaml:"index,omitempty"`
}

type Assign struct {
	Target Location `yaml:"target"`
	Value  Expr     `yaml:"value"`
}

type If struct {
	Cond Expr   `yaml:"cond"`
	Then Block  `yaml:"then"`
	Else *Block `yaml:"else,omitempty"`
}

type While struct {
	Cond Expr  `yaml:"cond"`
	Body Block `yaml:"body"`
}

type Call struct {
	Name string  `yaml:"name"`
	Args []*Expr `yaml:"args,omitempty"`
}

// Stmt is a single-key mapping naming the statement kind. Exactly one field is set,
// except for break and continue which are flags.
type Stmt struct {
	Line     int
	Assign   *Assign
	If       *If
	While    *While
	Return   *Expr
	IsReturn bool
	Break    bool
	Continue bool
	Call     *Call
	Block    *Block
}

func (s *Stmt) UnmarshalYAML(value *yaml.Node) error {
	if value.Kind != yaml.MappingNode || len(value.Content) != 2 {
		return fmt.Errorf("line %d: a statement is a mapping with exactly one key", value.Line)
	}
	key, body := value.Content[0].Value, value.Content[1]
	s.Line = value.Line
	isNull := body.Kind == yaml.ScalarNode && body.Tag == "!!null"

	switch key {
	case "assign":
		s.Assign = new(Assign)
		return body.Decode(s.Assign)
	case "if":
		s.If = new(If)
		return body.Decode(s.If)
	case "while":
		s.While = new(While)
		return body.Decode(s.While)
	case "return":
		s.IsReturn = true
		if isNull {
			return nil
		}
		s.Return = new(Expr)
		return body.Decode(s.Return)
	case "break":
		s.Break = true
	case "continue":
		s.Continue = true
	case "call":
		s.Call = new(Call)
		return body.Decode(s.Call)
	case "block":
		s.Block = new(Block)
		return body.Decode(s.Block)
	default:
		return fmt.Errorf("line %d: unknown statement %q", value.Line, key)
	}
	if !isNull {
		return fmt.Errorf("line %d: %s takes no value", value.Line, key)
	}
	return nil
}

// Expr is an expression mapping. A bare integer or boolean scalar is shorthand for
// the matching literal.
type Expr struct {
	Line    int     `yaml:"-"`
	Int     *int64  `yaml:"int,omitempty"`
	Bool    *bool   `yaml:"bool,omitempty"`
	Str     *string `yaml:"str,omitempty"`
	Var     string  `yaml:"var,omitempty"`
	Index   *Expr   `yaml:"index,omitempty"`
	Op      string  `yaml:"op,omitempty"`
	Left    *Expr   `yaml:"left,omitempty"`
	Right   *Expr   `yaml:"right,omitempty"`
	Operand *Expr   `yaml:"operand,omitempty"`
	Call    string  `yaml:"call,omitempty"`
	Args    []*Expr `yaml:"args,omitempty"`
}

func (e *Expr) UnmarshalYAML(value *yaml.Node) error {
	e.Line = value.Line
	if value.Kind == yaml.ScalarNode {
		switch value.Tag {
		case "!!int":
			e.Int = new(int64)
			return value.Decode(e.Int)
		case "!!bool":
			e.Bool = new(bool)
			return value.Decode(e.Bool)
		}
		return fmt.Errorf("line %d: scalar %q is not an expression; use var, str, int or bool", value.Line, value.Value)
	}
	type plain Expr
	if err := value.Decode((*plain)(e)); err != nil {
		return err
	}
	e.Line = value.Line
	return nil
}
