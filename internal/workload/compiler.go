package workload

import (
	"fmt"

	"github.com/psantana5/callstats/pkg/callstats"
)

// Opcode is a stack machine instruction
type Opcode byte

const (
	OpPush Opcode = iota
	OpNeg
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpMod
	OpCall
)

// Instr is one instruction. Arg is the literal for OpPush and the argument
// count for OpCall.
type Instr struct {
	Op   Opcode
	Arg  int64
	Name string
}

// Program is compiled bytecode
type Program struct {
	Code      []Instr
	MaxStack  int
	CallCount int
}

var binaryOps = map[string]Opcode{
	"+": OpAdd,
	"-": OpSub,
	"*": OpMul,
	"/": OpDiv,
	"%": OpMod,
}

// Compile lowers the tree to postfix bytecode.
func Compile(stats *callstats.Stats, root Node) (*Program, error) {
	defer callstats.NewScope(stats, idCompile).Close()

	prog := &Program{}
	depth := 0
	var emit func(n Node) error
	emit = func(n Node) error {
		switch n := n.(type) {
		case Num:
			prog.Code = append(prog.Code, Instr{Op: OpPush, Arg: n.Value})
			depth++
		case Unary:
			if err := emit(n.X); err != nil {
				return err
			}
			prog.Code = append(prog.Code, Instr{Op: OpNeg})
		case Binary:
			op, ok := binaryOps[n.Op]
			if !ok {
				return fmt.Errorf("unknown operator %q", n.Op)
			}
			if err := emit(n.L); err != nil {
				return err
			}
			if err := emit(n.R); err != nil {
				return err
			}
			prog.Code = append(prog.Code, Instr{Op: op})
			depth--
		case Call:
			if _, ok := builtins[n.Name]; !ok {
				return fmt.Errorf("unknown function %q", n.Name)
			}
			for _, arg := range n.Args {
				if err := emit(arg); err != nil {
					return err
				}
			}
			prog.Code = append(prog.Code, Instr{Op: OpCall, Arg: int64(len(n.Args)), Name: n.Name})
			depth -= len(n.Args) - 1
			prog.CallCount++
		default:
			return fmt.Errorf("unknown node %T", n)
		}
		if depth > prog.MaxStack {
			prog.MaxStack = depth
		}
		return nil
	}

	if err := emit(root); err != nil {
		return nil, err
	}
	return prog, nil
}
