package ast

import "fmt"

// Type is a Decaf value type.
type Type int

const (
	Void Type = iota
	Int
	Bool
	Str
)

func (t Type) String() string {
	switch t {
	case Void:
		return "void"
	case Int:
		return "int"
	case Bool:
		return "bool"
	case Str:
		return "str"
	}
	return fmt.Sprintf("Type(%d)", int(t))
}

// ParseType maps a type keyword to its Type.
func ParseType(s string) (Type, bool) {
	switch s {
	case "void", "":
		return Void, true
	case "int":
		return Int, true
	case "bool":
		return Bool, true
	case "str", "string":
		return Str, true
	}
	return Void, false
}

type SymbolKind int

const (
	ScalarSymbol SymbolKind = iota
	ArraySymbol
	FunctionSymbol
)

// StorageClass says where a variable lives.
type StorageClass int

const (
	Global StorageClass = iota
	StackParam
	StackLocal
)

func (s StorageClass) String() string {
	switch s {
	case Global:
		return "global"
	case StackParam:
		return "param"
	case StackLocal:
		return "local"
	}
	return fmt.Sprintf("StorageClass(%d)", int(s))
}

// Symbol is a resolved name. Variables carry storage and offset; functions carry parameters.
type Symbol struct {
	Name    string
	Type    Type
	Kind    SymbolKind
	Length  int64
	Storage StorageClass
	Offset  int64
	Params  []*Symbol
}

func (s *Symbol) IsArray() bool    { return s.Kind == ArraySymbol }
func (s *Symbol) IsFunction() bool { return s.Kind == FunctionSymbol }

func (s *Symbol) String() string {
	switch s.Kind {
	case FunctionSymbol:
		return fmt.Sprintf("%s %s(%d params)", s.Type, s.Name, len(s.Params))
	case ArraySymbol:
		return fmt.Sprintf("%s %s[%d] %s%+d", s.Type, s.Name, s.Length, s.Storage, s.Offset)
	}
	return fmt.Sprintf("%s %s %s%+d", s.Type, s.Name, s.Storage, s.Offset)
}

func NewScalar(name string, typ Type) *Symbol {
	return &Symbol{Name: name, Type: typ, Kind: ScalarSymbol}
}

func NewArray(name string, typ Type, length int64) *Symbol {
	return &Symbol{Name: name, Type: typ, Kind: ArraySymbol, Length: length}
}

func NewFunction(name string, ret Type, params []*Symbol) *Symbol {
	return &Symbol{Name: name, Type: ret, Kind: FunctionSymbol, Params: params}
}

// Builtins are the print functions every program may call without declaring them.
var Builtins = map[string]*Symbol{
	"print_int":  NewFunction("print_int", Void, []*Symbol{NewScalar("value", Int)}),
	"print_bool": NewFunction("print_bool", Void, []*Symbol{NewScalar("value", Bool)}),
	"print_str":  NewFunction("print_str", Void, []*Symbol{NewScalar("value", Str)}),
}

func IsBuiltinPrint(name string) bool {
	_, ok := Builtins[name]
	return ok
}
