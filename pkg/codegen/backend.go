package codegen

import (
	"bytes"
	"fmt"

	"github.com/atrim11/decafc/pkg/config"
	"github.com/atrim11/decafc/pkg/iloc"
)

// Backend is the interface that all emission backends must implement.
type Backend interface {
	// Generate takes a final instruction list and a configuration, and produces
	// the target text as a byte buffer.
	Generate(list *iloc.List, cfg *config.Config) (*bytes.Buffer, error)
}

type ilocBackend struct{}

// NewILOCBackend returns a backend that prints the list in ILOC text form.
func NewILOCBackend() Backend { return &ilocBackend{} }

func (b *ilocBackend) Generate(list *iloc.List, cfg *config.Config) (*bytes.Buffer, error) {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "# word size %d\n", cfg.WordSize)
	if err := list.Format(&buf); err != nil {
		return nil, err
	}
	return &buf, nil
}
