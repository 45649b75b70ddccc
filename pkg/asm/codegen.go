package asm

import (
	"fmt"
	"strconv"

	"nand2go.dev/toolchain/pkg/hack"
)

// ----------------------------------------------------------------------------
// Code generator

// CodeGenerator renders a parsed assembly program back to its textual form. Each
// statement kind owns its own rendering rule (see asm.go for CInstruction.Text); the
// generator's job is dispatching to the right one and surfacing the first failure.
type CodeGenerator struct {
	program []Statement
}

// NewCodeGenerator builds a CodeGenerator over the given statement sequence.
func NewCodeGenerator(p []Statement) CodeGenerator {
	return CodeGenerator{program: p}
}

// Generate renders every statement in source order.
func (cg *CodeGenerator) Generate() ([]string, error) {
	lines := make([]string, 0, len(cg.program))

	for _, statement := range cg.program {
		line, err := cg.render(statement)
		if err != nil {
			return nil, err
		}
		lines = append(lines, line)
	}

	return lines, nil
}

func (cg *CodeGenerator) render(statement Statement) (string, error) {
	switch stmt := statement.(type) {
	case AInstruction:
		return cg.GenerateAInst(stmt)
	case CInstruction:
		return cg.GenerateCInst(stmt)
	case LabelDecl:
		return cg.GenerateLabelDecl(stmt)
	default:
		return "", fmt.Errorf("unrecognized statement type %T", statement)
	}
}

// GenerateAInst renders an A instruction as '@<location>', rejecting a raw address that
// does not fit the 15 bits an A instruction can index.
func (CodeGenerator) GenerateAInst(stmt AInstruction) (string, error) {
	if stmt.Location == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}
	if address, err := strconv.ParseUint(stmt.Location, 10, 64); err == nil && address >= uint64(hack.MaxAddressableMemory) {
		return "", fmt.Errorf("raw address '%s' is out of the addressable range", stmt.Location)
	}
	return fmt.Sprintf("@%s", stmt.Location), nil
}

// GenerateCInst renders a C instruction as '<dest>=<comp>' or '<comp>;<jump>'.
func (cg *CodeGenerator) GenerateCInst(stmt CInstruction) (string, error) {
	return stmt.Text()
}

// GenerateLabelDecl renders a label declaration as '(<name>)', rejecting an anonymous
// label or an attempt to shadow one of the Hack architecture's predefined symbols.
func (cg *CodeGenerator) GenerateLabelDecl(stmt LabelDecl) (string, error) {
	if stmt.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}
	if _, reserved := hack.BuiltInTable[stmt.Name]; reserved {
		return "", fmt.Errorf("unable to override built-in label '%s'", stmt.Name)
	}
	return fmt.Sprintf("(%s)", stmt.Name), nil
}
