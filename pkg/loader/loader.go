// Package loader reads analysed Decaf programs from their YAML interchange form and
// turns them into resolved ASTs ready for code generation.
package loader

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/atrim11/decafc/pkg/ast"
	"github.com/atrim11/decafc/pkg/config"
	"gopkg.in/yaml.v3"
)

// Decode reads one YAML program document. Unknown keys are rejected.
func Decode(r io.Reader) (*Program, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var p Program
	if err := dec.Decode(&p); err != nil {
		if err == io.EOF {
			return &p, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return &p, nil
}

// Parse decodes, builds and resolves a program held in memory.
func Parse(data []byte, cfg *config.Config) (*ast.Node, error) {
	p, err := Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	return p.Compile(cfg)
}

// Compile builds the AST for p and resolves it.
func (p *Program) Compile(cfg *config.Config) (*ast.Node, error) {
	root, err := p.Build()
	if err != nil {
		return nil, err
	}
	if err := Resolve(root, cfg); err != nil {
		return nil, err
	}
	return root, nil
}

// Load reads and resolves the program in the file at path.
func Load(path string, cfg *config.Config) (*ast.Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	root, err := Parse(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return root, nil
}
