package asm

import (
	"fmt"
	"strconv"

	"nand2go.dev/toolchain/pkg/hack"
)

// ----------------------------------------------------------------------------
// Lowerer

// Lowerer turns a parsed assembly program into its 'hack.Program' counterpart plus the
// symbol table recording where each label declaration landed. This is pass one of the
// classic two-pass assembler: labels are resolved to ROM offsets here, variables are
// resolved to RAM offsets later during 'hack.CodeGenerator.Generate'.
type Lowerer struct {
	program Program
}

// NewLowerer builds a Lowerer over a non-empty assembly program.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Lower walks the program once, in source order: instructions are appended to the
// output (their own ROM index therefore equal to their position in that output, not
// their position in the source — label declarations consume no output slot), and each
// label declaration is recorded against the index of the instruction immediately
// following it.
func (l *Lowerer) Lower() (hack.Program, hack.SymbolTable, error) {
	if len(l.program) == 0 {
		return nil, nil, fmt.Errorf("the given 'program' is empty")
	}

	instructions := make(hack.Program, 0, len(l.program))
	labels := hack.SymbolTable{}

	for _, statement := range l.program {
		switch stmt := statement.(type) {
		case AInstruction:
			lowered, err := l.HandleAInst(stmt)
			if err != nil {
				return nil, nil, err
			}
			instructions = append(instructions, lowered)

		case CInstruction:
			lowered, err := l.HandleCInst(stmt)
			if err != nil {
				return nil, nil, err
			}
			instructions = append(instructions, lowered)

		case LabelDecl:
			name, err := l.HandleLabelDecl(stmt)
			if err != nil {
				return nil, nil, err
			}
			labels[name] = uint16(len(instructions))

		default:
			return nil, nil, fmt.Errorf("unrecognized instruction '%T'", statement)
		}
	}

	return instructions, labels, nil
}

// HandleAInst classifies an A instruction's location as a built-in register, a raw
// numeric address, or a user-defined label, in that priority order.
func (Lowerer) HandleAInst(inst AInstruction) (hack.Instruction, error) {
	if _, builtin := hack.BuiltInTable[inst.Location]; builtin {
		return hack.AInstruction{LocType: hack.BuiltIn, LocName: inst.Location}, nil
	}
	if _, err := strconv.ParseInt(inst.Location, 10, 16); err == nil {
		return hack.AInstruction{LocType: hack.Raw, LocName: inst.Location}, nil
	}
	return hack.AInstruction{LocType: hack.Label, LocName: inst.Location}, nil
}

// HandleCInst carries a C instruction's fields over unchanged, after checking they
// form one of the shapes this assembler accepts (see CInstruction.Validate).
func (Lowerer) HandleCInst(inst CInstruction) (hack.Instruction, error) {
	if err := inst.Validate(); err != nil {
		return nil, err
	}
	return hack.CInstruction{Comp: inst.Comp, Dest: inst.Dest, Jump: inst.Jump}, nil
}

// HandleLabelDecl extracts the identifier a label declaration introduces.
func (Lowerer) HandleLabelDecl(inst LabelDecl) (string, error) {
	return inst.Name, nil
}
