package workload

import (
	"errors"
	"fmt"

	"github.com/psantana5/callstats/pkg/callstats"
)

var (
	ErrDivisionByZero = errors.New("division by zero")
	ErrStackUnderflow = errors.New("stack underflow")
)

// maxFib bounds fib arguments so one call stays cheap.
const maxFib = 12

type builtin func(stats *callstats.Stats, args []int64) (int64, error)

var builtins = map[string]builtin{
	"abs": func(_ *callstats.Stats, args []int64) (int64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("abs takes 1 argument, got %d", len(args))
		}
		if args[0] < 0 {
			return -args[0], nil
		}
		return args[0], nil
	},
	"sum": func(_ *callstats.Stats, args []int64) (int64, error) {
		var s int64
		for _, a := range args {
			s += a
		}
		return s, nil
	},
	"max": func(_ *callstats.Stats, args []int64) (int64, error) {
		if len(args) == 0 {
			return 0, errors.New("max needs at least one argument")
		}
		m := args[0]
		for _, a := range args[1:] {
			if a > m {
				m = a
			}
		}
		return m, nil
	},
	"fib": func(stats *callstats.Stats, args []int64) (int64, error) {
		if len(args) != 1 {
			return 0, fmt.Errorf("fib takes 1 argument, got %d", len(args))
		}
		n := args[0] % (maxFib + 1)
		if n < 0 {
			n = -n
		}
		return fib(stats, n), nil
	},
}

// fib recurses through the Fib counter on purpose: every level is a
// separate activation of the same operation.
func fib(stats *callstats.Stats, n int64) int64 {
	defer callstats.NewScope(stats, idFib).Close()
	if n < 2 {
		return n
	}
	return fib(stats, n-1) + fib(stats, n-2)
}

// Execute runs prog and returns the value left on the stack.
func Execute(stats *callstats.Stats, prog *Program) (int64, error) {
	defer callstats.NewScope(stats, idExecute).Close()

	stack := make([]int64, 0, prog.MaxStack)
	pop := func() (int64, error) {
		if len(stack) == 0 {
			return 0, ErrStackUnderflow
		}
		v := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return v, nil
	}

	for pc, in := range prog.Code {
		switch in.Op {
		case OpPush:
			stack = append(stack, in.Arg)
		case OpNeg:
			v, err := pop()
			if err != nil {
				return 0, err
			}
			stack = append(stack, -v)
		case OpAdd, OpSub, OpMul, OpDiv, OpMod:
			r, err := pop()
			if err != nil {
				return 0, err
			}
			l, err := pop()
			if err != nil {
				return 0, err
			}
			v, err := arith(in.Op, l, r)
			if err != nil {
				return 0, fmt.Errorf("pc %d: %w", pc, err)
			}
			stack = append(stack, v)
		case OpCall:
			n := int(in.Arg)
			if n > len(stack) {
				return 0, ErrStackUnderflow
			}
			args := make([]int64, n)
			copy(args, stack[len(stack)-n:])
			stack = stack[:len(stack)-n]
			v, err := call(stats, in.Name, args)
			if err != nil {
				return 0, fmt.Errorf("pc %d: %s: %w", pc, in.Name, err)
			}
			stack = append(stack, v)
		default:
			return 0, fmt.Errorf("pc %d: unknown opcode %d", pc, in.Op)
		}
	}

	if len(stack) != 1 {
		return 0, fmt.Errorf("program left %d values on the stack", len(stack))
	}
	return stack[0], nil
}

func call(stats *callstats.Stats, name string, args []int64) (int64, error) {
	defer callstats.NewScope(stats, idCall).Close()
	fn, ok := builtins[name]
	if !ok {
		return 0, fmt.Errorf("unknown function %q", name)
	}
	return fn(stats, args)
}

func arith(op Opcode, l, r int64) (int64, error) {
	switch op {
	case OpAdd:
		return l + r, nil
	case OpSub:
		return l - r, nil
	case OpMul:
		return l * r, nil
	case OpDiv:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l / r, nil
	case OpMod:
		if r == 0 {
			return 0, ErrDivisionByZero
		}
		return l % r, nil
	}
	return 0, fmt.Errorf("not an arithmetic opcode: %d", op)
}

// Evaluate lexes, parses, compiles and runs src.
func Evaluate(stats *callstats.Stats, src string) (int64, error) {
	tokens, err := Lex(stats, src)
	if err != nil {
		return 0, err
	}
	tree, err := Parse(stats, tokens)
	if err != nil {
		return 0, err
	}
	prog, err := Compile(stats, tree)
	if err != nil {
		return 0, err
	}
	return Execute(stats, prog)
}
