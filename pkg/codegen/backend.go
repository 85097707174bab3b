package codegen

import (
	"bytes"

	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
)

// Backend is the interface that all code generation backends must implement.
type Backend interface {
	// Generate takes a TAC program and a configuration, and produces the target
	// assembly as a byte buffer.
	Generate(prog *ir.Program, cfg *config.Config) (*bytes.Buffer, error)
}
