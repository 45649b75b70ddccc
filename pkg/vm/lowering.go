package vm

import (
	"fmt"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"nand2go.dev/toolchain/pkg/asm"
)

// ----------------------------------------------------------------------------
// Vm Lowerer

// The Lowerer takes a 'vm.Program' (one or more translation units/modules) and produces
// its 'asm.Program' counterpart, ready to be fed to the Assembler's own codegen phase.
//
// Unlike the Assembler's Lowerer this one carries state across operations within the same
// module: a monotonic label counter (never reset, so that comparison and call-site labels
// stay globally unique across the whole translated program) and two namespace prefixes,
// one for the current file's 'static' segment and one for the current function's user
// labels, the latter reset at every 'function' declaration (and at the start of each module).
type Lowerer struct {
	program Program

	labelCounter uint   // Monotonic, incremented once per freshly minted internal label
	labelPrefix  string // Current function's label namespace, e.g. "Main.main$"
	staticPrefix string // Current module's static namespace, e.g. "Main."
}

// Initializes and returns to the caller a brand new 'Lowerer' struct.
// Requires the argument Program to be not nil nor empty.
func NewLowerer(p Program) Lowerer {
	return Lowerer{program: p}
}

// Triggers the lowering process, one module at a time. Modules are visited in lexicographic
// order of their name so that, given the same input, the emitted label counter sequence (and
// therefore the whole compiled output) is reproducible across runs regardless of Go's map
// iteration order.
func (l *Lowerer) Lowerer() (asm.Program, error) {
	if l.program == nil || len(l.program) == 0 {
		return nil, fmt.Errorf("the given 'program' is empty")
	}

	names := make([]string, 0, len(l.program))
	for name := range l.program {
		names = append(names, name)
	}
	sort.Strings(names)

	lowered := asm.Program{}
	for _, name := range names {
		l.staticPrefix = strings.TrimSuffix(filepath.Base(name), filepath.Ext(name))
		l.labelPrefix = ""

		for _, operation := range l.program[name] {
			statements, err := l.HandleOperation(operation)
			if err != nil {
				return nil, fmt.Errorf("module '%s': %s", name, err)
			}
			lowered = append(lowered, statements...)
		}
	}

	return lowered, nil
}

// Dispatches a single 'vm.Operation' to its specialized handler based on its concrete type.
func (l *Lowerer) HandleOperation(op Operation) ([]asm.Statement, error) {
	switch tOp := op.(type) {
	case MemoryOp:
		return l.HandleMemoryOp(tOp)
	case ArithmeticOp:
		return l.HandleArithmeticOp(tOp)
	case LabelDecl:
		return l.HandleLabelDecl(tOp)
	case GotoOp:
		return l.HandleGotoOp(tOp)
	case FuncDecl:
		return l.HandleFuncDecl(tOp)
	case FuncCallOp:
		return l.HandleFuncCallOp(tOp)
	case ReturnOp:
		return l.HandleReturnOp(tOp)
	default:
		return nil, fmt.Errorf("unrecognized operation '%T'", op)
	}
}

// ----------------------------------------------------------------------------
// Asm emission helpers

// These small helpers build the recurring instruction shapes used throughout this file,
// they're kept free of any VM-specific knowledge on purpose, they just know the Hack ISA.

func aInst(location string) asm.Statement { return asm.AInstruction{Location: location} }

func cInst(dest, comp, jump string) asm.Statement {
	return asm.CInstruction{Dest: dest, Comp: comp, Jump: jump}
}

// Pushes the value currently held in 'D' onto the top of the stack and advances 'SP'.
func pushD() []asm.Statement {
	return []asm.Statement{
		aInst("SP"), cInst("M", "M+1", ""),
		cInst("A", "M-1", ""), cInst("M", "D", ""),
	}
}

// Pops the top of the stack into 'D', decrementing 'SP'. Leaves 'A' pointing at the freed slot.
func popD() []asm.Statement {
	return []asm.Statement{
		aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
	}
}

// Pushes a numeric literal constant.
func pushConstant(value uint16) []asm.Statement {
	stmts := []asm.Statement{aInst(strconv.Itoa(int(value))), cInst("D", "A", "")}
	return append(stmts, pushD()...)
}

// Pushes the value held at a fixed, named register ('pointer'/'temp'/'static' segments).
func pushRegister(register string) []asm.Statement {
	stmts := []asm.Statement{aInst(register), cInst("D", "M", "")}
	return append(stmts, pushD()...)
}

// Pops into a fixed, named register ('pointer'/'temp'/'static' segments).
func popRegister(register string) []asm.Statement {
	stmts := popD()
	return append(stmts, aInst(register), cInst("M", "D", ""))
}

// Pushes the value held at 'base[offset]' where 'base' is one of the indirect segment
// registers (LCL, ARG, THIS, THAT).
func pushSegment(base string, offset uint16) []asm.Statement {
	stmts := []asm.Statement{
		aInst(base), cInst("D", "M", ""),
		aInst(strconv.Itoa(int(offset))), cInst("A", "D+A", ""),
		cInst("D", "M", ""),
	}
	return append(stmts, pushD()...)
}

// Pops into 'base[offset]'. Uses R13 as scratch to hold the resolved target address,
// since we have to pop the value (and so lose 'D') before we can store it.
func popSegment(base string, offset uint16) []asm.Statement {
	stmts := []asm.Statement{
		aInst(base), cInst("D", "M", ""),
		aInst(strconv.Itoa(int(offset))), cInst("D", "D+A", ""),
		aInst("R13"), cInst("M", "D", ""),
	}
	stmts = append(stmts, popD()...)
	return append(stmts, aInst("R13"), cInst("A", "M", ""), cInst("M", "D", ""))
}

// Pushes the raw value of a segment-base register itself (used while saving the caller's frame).
func pushSegmentAddress(register string) []asm.Statement {
	stmts := []asm.Statement{aInst(register), cInst("D", "M", "")}
	return append(stmts, pushD()...)
}

// Mints a fresh, function-namespaced label for internal use (comparisons, call return sites).
func (l *Lowerer) nextLabel() string {
	l.labelCounter++
	return fmt.Sprintf("%sLABEL%d", l.labelPrefix, l.labelCounter)
}

// ----------------------------------------------------------------------------
// Memory Op

// Specialized function to lower a 'vm.MemoryOp' to its Asm instruction sequence.
func (l *Lowerer) HandleMemoryOp(op MemoryOp) ([]asm.Statement, error) {
	switch op.Operation {
	case Push:
		return l.handlePush(op.Segment, op.Offset)
	case Pop:
		return l.handlePop(op.Segment, op.Offset)
	default:
		return nil, fmt.Errorf("unrecognized memory operation '%s'", op.Operation)
	}
}

func (l *Lowerer) handlePush(segment SegmentType, offset uint16) ([]asm.Statement, error) {
	switch segment {
	case Constant:
		return pushConstant(offset), nil
	case Pointer:
		if offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", offset)
		}
		return pushRegister(fmt.Sprintf("R%d", 3+offset)), nil
	case Temp:
		if offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", offset)
		}
		return pushRegister(fmt.Sprintf("R%d", 5+offset)), nil
	case Static:
		return pushRegister(fmt.Sprintf("%s.%d", l.staticPrefix, offset)), nil
	case Local:
		return pushSegment("LCL", offset), nil
	case Argument:
		return pushSegment("ARG", offset), nil
	case This:
		return pushSegment("THIS", offset), nil
	case That:
		return pushSegment("THAT", offset), nil
	default:
		return nil, fmt.Errorf("unknown push segment '%s'", segment)
	}
}

func (l *Lowerer) handlePop(segment SegmentType, offset uint16) ([]asm.Statement, error) {
	switch segment {
	case Pointer:
		if offset > 1 {
			return nil, fmt.Errorf("invalid 'pointer' offset, got %d", offset)
		}
		return popRegister(fmt.Sprintf("R%d", 3+offset)), nil
	case Temp:
		if offset > 7 {
			return nil, fmt.Errorf("invalid 'temp' offset, got %d", offset)
		}
		return popRegister(fmt.Sprintf("R%d", 5+offset)), nil
	case Static:
		return popRegister(fmt.Sprintf("%s.%d", l.staticPrefix, offset)), nil
	case Local:
		return popSegment("LCL", offset), nil
	case Argument:
		return popSegment("ARG", offset), nil
	case This:
		return popSegment("THIS", offset), nil
	case That:
		return popSegment("THAT", offset), nil
	default:
		return nil, fmt.Errorf("unknown pop segment '%s'", segment)
	}
}

// ----------------------------------------------------------------------------
// Arithmetic Op

// Specialized function to lower a 'vm.ArithmeticOp' to its Asm instruction sequence.
func (l *Lowerer) HandleArithmeticOp(op ArithmeticOp) ([]asm.Statement, error) {
	switch op.Operation {
	case Add:
		return []asm.Statement{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
			cInst("A", "A-1", ""), cInst("M", "D+M", ""),
		}, nil
	case Sub:
		return []asm.Statement{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
			cInst("A", "A-1", ""), cInst("M", "M-D", ""),
		}, nil
	case And:
		return []asm.Statement{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "M", ""),
			cInst("A", "A-1", ""), cInst("M", "D&M", ""),
		}, nil
	case Or:
		// De Morgan's: a|b == !(!a & !b), computed with the '!M' and 'D&M' comp codes.
		return []asm.Statement{
			aInst("SP"), cInst("AM", "M-1", ""), cInst("D", "!M", ""),
			cInst("A", "A-1", ""), cInst("M", "!M", ""),
			cInst("M", "D&M", ""), cInst("M", "!M", ""),
		}, nil
	case Neg:
		return []asm.Statement{aInst("SP"), cInst("A", "M-1", ""), cInst("M", "-M", "")}, nil
	case Not:
		return []asm.Statement{aInst("SP"), cInst("A", "M-1", ""), cInst("M", "!M", "")}, nil
	case Eq:
		return l.compareOp("JEQ"), nil
	case Lt:
		return l.compareOp("JLT"), nil
	case Gt:
		return l.compareOp("JGT"), nil
	default:
		return nil, fmt.Errorf("unrecognized arithmetic operation '%s'", op.Operation)
	}
}

// Shared shape for 'eq'/'lt'/'gt': subtracts the operands, jumps to 'true' on the requested
// condition, otherwise falls through pushing '0' (false); 'true' pushes '-1' (all bits set).
func (l *Lowerer) compareOp(jump string) []asm.Statement {
	trueLabel, endLabel := l.nextLabel(), l.nextLabel()

	return []asm.Statement{
		aInst("SP"), cInst("M", "M-1", ""), cInst("A", "M", ""), cInst("D", "M", ""),
		cInst("A", "A-1", ""), cInst("D", "M-D", ""),
		aInst(trueLabel), cInst("", "D", jump),
		aInst("SP"), cInst("A", "M-1", ""), cInst("M", "0", ""),
		aInst(endLabel), cInst("", "0", "JMP"),
		asm.LabelDecl{Name: trueLabel},
		aInst("SP"), cInst("A", "M-1", ""), cInst("M", "-1", ""),
		asm.LabelDecl{Name: endLabel},
	}
}

// ----------------------------------------------------------------------------
// Label Declaration & Jumps

// Specialized function to lower a 'vm.LabelDecl' to its Asm instruction sequence.
// User labels are namespaced by the enclosing function so two functions can reuse a name.
func (l *Lowerer) HandleLabelDecl(op LabelDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty label declaration")
	}

	return []asm.Statement{asm.LabelDecl{Name: l.labelPrefix + op.Name}}, nil
}

// Specialized function to lower a 'vm.GotoOp' to its Asm instruction sequence.
func (l *Lowerer) HandleGotoOp(op GotoOp) ([]asm.Statement, error) {
	if op.Label == "" {
		return nil, fmt.Errorf("unable to produce empty jump label")
	}
	label := l.labelPrefix + op.Label

	switch op.Jump {
	case Unconditional:
		return []asm.Statement{aInst(label), cInst("", "0", "JMP")}, nil
	case Conditional:
		stmts := popD()
		return append(stmts, aInst(label), cInst("", "D", "JNE")), nil
	default:
		return nil, fmt.Errorf("unrecognized jump type '%s'", op.Jump)
	}
}

// ----------------------------------------------------------------------------
// Functions

// Specialized function to lower a 'vm.FuncDecl' to its Asm instruction sequence.
// Emits the entrypoint label and zero-initializes the requested number of locals, and sets
// the label namespace for any 'label'/'goto'/'if-goto' until the next function declaration.
func (l *Lowerer) HandleFuncDecl(op FuncDecl) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function declaration")
	}
	l.labelPrefix = op.Name + "$"

	stmts := []asm.Statement{asm.LabelDecl{Name: op.Name}, cInst("D", "0", "")}
	for i := uint8(0); i < op.NLocal; i++ {
		stmts = append(stmts, pushD()...)
	}
	return stmts, nil
}

// Specialized function to lower a 'vm.FuncCallOp' to its Asm instruction sequence.
// Saves the return address and the caller's frame (LCL/ARG/THIS/THAT), repositions 'ARG'
// and 'LCL' for the callee and jumps to it.
func (l *Lowerer) HandleFuncCallOp(op FuncCallOp) ([]asm.Statement, error) {
	if op.Name == "" {
		return nil, fmt.Errorf("unable to produce empty function call")
	}

	returnLabel := l.nextLabel()

	stmts := []asm.Statement{aInst(returnLabel), cInst("D", "A", "")}
	stmts = append(stmts, pushD()...)
	stmts = append(stmts, pushSegmentAddress("LCL")...)
	stmts = append(stmts, pushSegmentAddress("ARG")...)
	stmts = append(stmts, pushSegmentAddress("THIS")...)
	stmts = append(stmts, pushSegmentAddress("THAT")...)

	stmts = append(stmts,
		aInst("SP"), cInst("D", "M", ""),
		aInst(strconv.Itoa(int(op.NArgs)+5)), cInst("D", "D-A", ""),
		aInst("ARG"), cInst("M", "D", ""),
		aInst("SP"), cInst("D", "M", ""),
		aInst("LCL"), cInst("M", "D", ""),
		aInst(op.Name), cInst("", "0", "JMP"),
		asm.LabelDecl{Name: returnLabel},
	)

	return stmts, nil
}

// Specialized function to lower a 'vm.ReturnOp' to its Asm instruction sequence.
// Restores the caller's frame from the callee's 'LCL' (via R13 scratch), overwrites the
// caller's first argument slot with the return value, repositions 'SP' and jumps back to
// the saved return address (via R14 scratch, captured before 'ARG' is overwritten).
func (l *Lowerer) HandleReturnOp(op ReturnOp) ([]asm.Statement, error) {
	stmts := []asm.Statement{
		aInst("LCL"), cInst("D", "M", ""),
		aInst("R13"), cInst("M", "D", ""),
		aInst("5"), cInst("A", "D-A", ""), cInst("D", "M", ""),
		aInst("R14"), cInst("M", "D", ""),
	}

	stmts = append(stmts, popD()...)
	stmts = append(stmts,
		aInst("ARG"), cInst("A", "M", ""), cInst("M", "D", ""),
		aInst("ARG"), cInst("D", "M+1", ""),
		aInst("SP"), cInst("M", "D", ""),

		aInst("R13"), cInst("AM", "M-1", ""), cInst("D", "M", ""), aInst("THAT"), cInst("M", "D", ""),
		aInst("R13"), cInst("AM", "M-1", ""), cInst("D", "M", ""), aInst("THIS"), cInst("M", "D", ""),
		aInst("R13"), cInst("AM", "M-1", ""), cInst("D", "M", ""), aInst("ARG"), cInst("M", "D", ""),
		aInst("R13"), cInst("AM", "M-1", ""), cInst("D", "M", ""), aInst("LCL"), cInst("M", "D", ""),

		aInst("R14"), cInst("A", "M", ""), cInst("", "0", "JMP"),
	)

	return stmts, nil
}
