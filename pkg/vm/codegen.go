package vm

import (
	"fmt"
)

// ----------------------------------------------------------------------------
// Textual rendering
//
// Each operation knows how to render its own valid-case text; the CodeGenerator's job
// is solely to validate an operation before asking it to render (an operation that
// fails validation never reaches its own formatting code). This keeps "is this
// operation well-formed" and "what does it look like as VM source" as separate
// concerns, matching the analysis/emission split this translator otherwise follows.

type renderer interface {
	render() string
}

func (op MemoryOp) render() string {
	return fmt.Sprintf("%s %s %d", string(op.Operation), string(op.Segment), op.Offset)
}

func (op ArithmeticOp) render() string { return string(op.Operation) }

func (op LabelDecl) render() string { return fmt.Sprintf("label %s", op.Name) }

func (op GotoOp) render() string { return fmt.Sprintf("%s %s", string(op.Jump), op.Label) }

func (op FuncDecl) render() string { return fmt.Sprintf("function %s %d", op.Name, op.NLocal) }

func (op ReturnOp) render() string { return "return" }

func (op FuncCallOp) render() string { return fmt.Sprintf("call %s %d", op.Name, op.NArgs) }

// boundedSegments lists the memory segments whose offset is constrained by a fixed
// number of hardware registers, with the largest offset each allows.
var boundedSegments = map[SegmentType]uint16{
	Pointer: 1,
	Temp:    7,
}

// ----------------------------------------------------------------------------
// Code generator

// CodeGenerator lowers a 'vm.Program' (one operation list per source module) into
// its VM-language textual form, keyed by module so the caller can choose how to
// combine or separately inspect each file's output.
type CodeGenerator struct {
	program Program
}

// NewCodeGenerator builds a CodeGenerator over the given program.
func NewCodeGenerator(p Program) CodeGenerator {
	return CodeGenerator{program: p}
}

// Generate renders every operation of every module, failing fast on the first
// operation that doesn't validate.
func (cg *CodeGenerator) Generate() (map[string][]string, error) {
	out := make(map[string][]string, len(cg.program))

	for module, operations := range cg.program {
		lines := make([]string, 0, len(operations))

		for _, operation := range operations {
			var line string
			var err error

			switch op := operation.(type) {
			case MemoryOp:
				line, err = cg.GenerateMemoryOp(op)
			case ArithmeticOp:
				line, err = cg.GenerateArithmeticOp(op)
			case LabelDecl:
				line, err = cg.GenerateLabelDecl(op)
			case GotoOp:
				line, err = cg.GenerateGotoOp(op)
			case FuncDecl:
				line, err = cg.GenerateFuncDecl(op)
			case ReturnOp:
				line, err = cg.GenerateReturnOp(op)
			case FuncCallOp:
				line, err = cg.GenerateFuncCallOp(op)
			default:
				err = fmt.Errorf("unsupported operation type %T in module %q", operation, module)
			}

			if err != nil {
				return nil, err
			}
			lines = append(lines, line)
		}

		out[module] = lines
	}

	return out, nil
}

// GenerateMemoryOp validates a push/pop operation's segment offset against the
// hardware bound (if that segment has one) before rendering it.
func (cg *CodeGenerator) GenerateMemoryOp(op MemoryOp) (string, error) {
	if max, bounded := boundedSegments[op.Segment]; bounded && op.Offset > max {
		return "", fmt.Errorf("invalid '%s' offset, got %d", op.Segment, op.Offset)
	}
	return op.render(), nil
}

// GenerateArithmeticOp renders a unary/binary ALU operation; there is nothing to
// validate beyond the operation's own type, which the parser already guarantees.
func (cg *CodeGenerator) GenerateArithmeticOp(op ArithmeticOp) (string, error) {
	return op.render(), nil
}

// GenerateLabelDecl renders a label declaration, rejecting an anonymous label.
func (cg *CodeGenerator) GenerateLabelDecl(op LabelDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty label declaration")
	}
	return op.render(), nil
}

// GenerateGotoOp renders a conditional or unconditional jump, rejecting a jump with
// no target label.
func (cg *CodeGenerator) GenerateGotoOp(op GotoOp) (string, error) {
	if op.Label == "" {
		return "", fmt.Errorf("unable to produce empty jump label")
	}
	return op.render(), nil
}

// GenerateFuncDecl renders a function declaration, rejecting an anonymous function.
func (cg *CodeGenerator) GenerateFuncDecl(op FuncDecl) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function declaration")
	}
	return op.render(), nil
}

// GenerateReturnOp renders a return statement; it carries no fields to validate.
func (cg *CodeGenerator) GenerateReturnOp(op ReturnOp) (string, error) {
	return op.render(), nil
}

// GenerateFuncCallOp renders a function call, rejecting a call with no callee name.
func (cg *CodeGenerator) GenerateFuncCallOp(op FuncCallOp) (string, error) {
	if op.Name == "" {
		return "", fmt.Errorf("unable to produce empty function call")
	}
	return op.render(), nil
}

var _ renderer = MemoryOp{}
var _ renderer = ArithmeticOp{}
var _ renderer = LabelDecl{}
var _ renderer = GotoOp{}
var _ renderer = FuncDecl{}
var _ renderer = ReturnOp{}
var _ renderer = FuncCallOp{}
