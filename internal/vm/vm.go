package vm

import (
	"context"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"monkey/internal/bytecode"
	"monkey/internal/errors"
)

const (
	// DefaultMaxCallDepth bounds recursion so runaway programs fault
	// instead of exhausting memory.
	DefaultMaxCallDepth = 1024

	// ExitRuntimeFault is the exit status reported for a runtime fault.
	ExitRuntimeFault = 2

	// contextCheckInterval is how many instructions run between checks of
	// the context.
	contextCheckInterval = 1024
)

type CallFrame struct {
	fn       *bytecode.Function
	ip       int
	slotBase int
}

type VM struct {
	module   *bytecode.Module
	stack    []Value
	globals  []Value
	frames   []*CallFrame
	out      io.Writer
	maxDepth int
	hook     Hook

	ctx      context.Context
	maxSteps int64
	steps    int64
}

// Hook observes execution. OnInstruction is called before each
// instruction; depth counts frames including the entry function.
type Hook interface {
	OnInstruction(fn string, ip int, op bytecode.OpCode, debug bytecode.DebugInfo, depth int)
	OnCall(fn string, depth int)
	OnReturn(fn string, depth int)
}

// Option configures a VM.
type Option func(*VM)

// WithOutput redirects print output, which goes to os.Stdout by default.
func WithOutput(w io.Writer) Option {
	return func(vm *VM) { vm.out = w }
}

// WithMaxCallDepth overrides DefaultMaxCallDepth.
func WithMaxCallDepth(n int) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxDepth = n
		}
	}
}

// WithHook installs h for the whole run.
func WithHook(h Hook) Option {
	return func(vm *VM) { vm.hook = h }
}

// WithContext stops execution with a fault once ctx is done.
func WithContext(ctx context.Context) Option {
	return func(vm *VM) { vm.ctx = ctx }
}

// WithMaxInstructions faults once more than n instructions have run. Zero
// means no limit.
func WithMaxInstructions(n int64) Option {
	return func(vm *VM) {
		if n > 0 {
			vm.maxSteps = n
		}
	}
}

func NewVM(module *bytecode.Module, opts ...Option) *VM {
	vm := &VM{
		module:   module,
		stack:    make([]Value, 0, 256),
		globals:  make([]Value, len(module.Globals)),
		out:      os.Stdout,
		maxDepth: DefaultMaxCallDepth,
	}
	for _, opt := range opts {
		opt(vm)
	}
	return vm
}

// Execute runs the module's entry function and returns the exit code. A
// runtime fault is returned as an *errors.Diagnostic with exit code
// ExitRuntimeFault.
func Execute(module *bytecode.Module, opts ...Option) (int, error) {
	return NewVM(module, opts...).Run()
}

// Run executes the entry function to completion.
func (vm *VM) Run() (code int, err error) {
	if vm.module.Entry < 0 || vm.module.Entry >= len(vm.module.Functions) {
		return ExitRuntimeFault, errors.NewRuntimeFault("module has no entry function", 0, 0)
	}
	defer func() {
		if r := recover(); r != nil {
			code, err = ExitRuntimeFault, vm.fault("internal error: %v", r)
		}
	}()

	if err := vm.call(vm.module.Entry, nil, 0); err != nil {
		return ExitRuntimeFault, err
	}
	result, err := vm.run()
	if err != nil {
		return ExitRuntimeFault, err
	}
	if n, ok := result.(Int); ok {
		return int(n), nil
	}
	return 0, nil
}

func (vm *VM) push(val Value) {
	vm.stack = append(vm.stack, val)
}

func (vm *VM) pop() Value {
	if len(vm.stack) == 0 {
		panic("stack underflow")
	}
	val := vm.stack[len(vm.stack)-1]
	vm.stack = vm.stack[:len(vm.stack)-1]
	return val
}

func (vm *VM) peek() Value {
	return vm.stack[len(vm.stack)-1]
}

func (vm *VM) currentFrame() *CallFrame {
	return vm.frames[len(vm.frames)-1]
}

func (vm *VM) readByte() int {
	frame := vm.currentFrame()
	b := frame.fn.Chunk.Code[frame.ip]
	frame.ip++
	return int(b)
}

func (vm *VM) readShort() int {
	frame := vm.currentFrame()
	v := frame.fn.Chunk.ReadShort(frame.ip)
	frame.ip += 2
	return v
}

// call pushes a frame for function idx. The argc arguments are already on
// the stack and become the first local slots.
func (vm *VM) call(idx int, captured []Value, argc int) error {
	if idx < 0 || idx >= len(vm.module.Functions) {
		return vm.fault("call of unknown function %d", idx)
	}
	fn := vm.module.Functions[idx]
	if argc != fn.Arity {
		return vm.fault("wrong number of arguments to %s: expected %d, got %d", fn.Name, fn.Arity, argc)
	}
	if len(vm.frames) >= vm.maxDepth {
		return vm.fault("stack overflow: call depth exceeded %d", vm.maxDepth)
	}
	base := len(vm.stack) - argc
	for i := argc; i < fn.NumLocals; i++ {
		vm.push(Null{})
	}
	for i, slot := range fn.CaptureSlots {
		if i < len(captured) {
			vm.stack[base+slot] = captured[i]
		}
	}
	vm.frames = append(vm.frames, &CallFrame{fn: fn, slotBase: base})
	if vm.hook != nil {
		vm.hook.OnCall(fn.Name, len(vm.frames))
	}
	return nil
}

func (vm *VM) run() (Value, error) {
	for {
		frame := vm.currentFrame()
		code := frame.fn.Chunk.Code
		if frame.ip >= len(code) {
			return nil, vm.fault("fell off the end of %s", frame.fn.Name)
		}
		op := bytecode.OpCode(code[frame.ip])
		if vm.hook != nil {
			vm.hook.OnInstruction(frame.fn.Name, frame.ip, op, frame.fn.Chunk.GetDebugInfo(frame.ip), len(vm.frames))
		}
		frame.ip++

		vm.steps++
		if vm.maxSteps > 0 && vm.steps > vm.maxSteps {
			return nil, vm.fault("instruction budget of %d exceeded", vm.maxSteps)
		}
		if vm.ctx != nil && vm.steps%contextCheckInterval == 0 {
			if err := vm.ctx.Err(); err != nil {
				return nil, vm.fault("execution stopped: %v", err)
			}
		}

		switch op {
		case bytecode.OpConstant:
			c := frame.fn.Chunk.Constants[vm.readShort()]
			val, err := FromConstant(c)
			if err != nil {
				return nil, vm.fault("%v", err)
			}
			vm.push(val)

		case bytecode.OpNull:
			vm.push(Null{})

		case bytecode.OpGetLocal:
			vm.push(vm.stack[frame.slotBase+vm.readShort()])

		case bytecode.OpSetLocal:
			slot := vm.readShort()
			vm.stack[frame.slotBase+slot] = vm.pop()

		case bytecode.OpGetGlobal:
			slot := vm.readShort()
			val := vm.globals[slot]
			if val == nil {
				return nil, vm.fault("global '%s' read before initialization", vm.module.Globals[slot])
			}
			vm.push(val)

		case bytecode.OpSetGlobal:
			vm.globals[vm.readShort()] = vm.pop()

		case bytecode.OpArray:
			vm.push(NewArray(0))

		case bytecode.OpArrayAppend:
			val := vm.pop()
			arr := vm.peek().(*Array)
			arr.Elements = append(arr.Elements, val)

		case bytecode.OpHash:
			vm.push(NewHash())

		case bytecode.OpHashInsert:
			val := vm.pop()
			key := vm.pop()
			if err := vm.peek().(*Hash).Set(key, val); err != nil {
				return nil, vm.fault("%v", err)
			}

		case bytecode.OpAddInt, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual:
			if err := vm.binaryInt(op); err != nil {
				return nil, err
			}

		case bytecode.OpConcat:
			b := vm.pop().(String)
			a := vm.pop().(String)
			vm.push(a + b)

		case bytecode.OpAdd:
			b := vm.pop()
			a := vm.pop()
			switch {
			case a.Type() == IntType && b.Type() == IntType:
				vm.push(a.(Int) + b.(Int))
			case a.Type() == StringType && b.Type() == StringType:
				vm.push(a.(String) + b.(String))
			default:
				return nil, vm.fault("operator + not defined for %s and %s", a.Type(), b.Type())
			}

		case bytecode.OpEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(Equal(a, b)))

		case bytecode.OpNotEqual:
			b := vm.pop()
			a := vm.pop()
			vm.push(Bool(!Equal(a, b)))

		case bytecode.OpCall:
			idx := vm.readShort()
			argc := vm.readByte()
			if err := vm.call(idx, nil, argc); err != nil {
				return nil, err
			}

		case bytecode.OpCallValue:
			argc := vm.readByte()
			calleePos := len(vm.stack) - argc - 1
			closure, ok := vm.stack[calleePos].(*Closure)
			if !ok {
				return nil, vm.fault("cannot call a value of type %s", vm.stack[calleePos].Type())
			}
			copy(vm.stack[calleePos:], vm.stack[calleePos+1:])
			vm.stack = vm.stack[:len(vm.stack)-1]
			if err := vm.call(closure.Fn, closure.Captured, argc); err != nil {
				return nil, err
			}

		case bytecode.OpCallBuiltin:
			id := vm.readByte()
			argc := vm.readByte()
			args := make([]Value, argc)
			copy(args, vm.stack[len(vm.stack)-argc:])
			vm.stack = vm.stack[:len(vm.stack)-argc]
			result, err := CallBuiltin(byte(id), args)
			if err != nil {
				return nil, vm.fault("%v", err)
			}
			vm.push(result)

		case bytecode.OpFunction:
			idx := vm.readShort()
			vm.push(&Closure{Fn: idx, Name: vm.module.Functions[idx].Name})

		case bytecode.OpClosure:
			idx := vm.readShort()
			n := vm.readByte()
			captured := make([]Value, n)
			copy(captured, vm.stack[len(vm.stack)-n:])
			vm.stack = vm.stack[:len(vm.stack)-n]
			vm.push(&Closure{Fn: idx, Name: vm.module.Functions[idx].Name, Captured: captured})

		case bytecode.OpIndex, bytecode.OpIndexArray, bytecode.OpIndexHash, bytecode.OpIndexString:
			index := vm.pop()
			target := vm.pop()
			val, err := vm.index(target, index)
			if err != nil {
				return nil, err
			}
			vm.push(val)

		case bytecode.OpUnbox:
			if err := vm.unbox(byte(vm.readByte())); err != nil {
				return nil, err
			}

		case bytecode.OpJump:
			offset := vm.readShort()
			frame.ip += offset

		case bytecode.OpJumpIfFalse:
			offset := vm.readShort()
			cond, ok := vm.pop().(Bool)
			if !ok {
				return nil, vm.fault("condition is not a bool")
			}
			if !cond {
				frame.ip += offset
			}

		case bytecode.OpPrint:
			fmt.Fprintln(vm.out, vm.pop().Inspect())

		case bytecode.OpPop:
			vm.pop()

		case bytecode.OpReturn, bytecode.OpReturnValue:
			var result Value = Null{}
			if op == bytecode.OpReturnValue {
				result = vm.pop()
			}
			if vm.hook != nil {
				vm.hook.OnReturn(frame.fn.Name, len(vm.frames))
			}
			vm.stack = vm.stack[:frame.slotBase]
			vm.frames = vm.frames[:len(vm.frames)-1]
			if len(vm.frames) == 0 {
				return result, nil
			}
			vm.push(result)

		default:
			return nil, vm.fault("unknown opcode %d", op)
		}
	}
}

func (vm *VM) binaryInt(op bytecode.OpCode) error {
	bv := vm.pop()
	av := vm.pop()
	a, okA := av.(Int)
	b, okB := bv.(Int)
	if !okA || !okB {
		return vm.fault("%s requires int operands, found %s and %s", op, av.Type(), bv.Type())
	}
	switch op {
	case bytecode.OpAddInt:
		vm.push(a + b)
	case bytecode.OpSub:
		vm.push(a - b)
	case bytecode.OpMul:
		vm.push(a * b)
	case bytecode.OpDiv:
		if b == 0 {
			return vm.fault("division by zero")
		}
		vm.push(a / b)
	case bytecode.OpLess:
		vm.push(Bool(a < b))
	case bytecode.OpLessEqual:
		vm.push(Bool(a <= b))
	case bytecode.OpGreater:
		vm.push(Bool(a > b))
	case bytecode.OpGreaterEqual:
		vm.push(Bool(a >= b))
	}
	return nil
}

func (vm *VM) index(target, index Value) (Value, error) {
	switch t := target.(type) {
	case *Array:
		i, ok := index.(Int)
		if !ok {
			return nil, vm.fault("array index must be int, found %s", index.Type())
		}
		if i < 0 || int(i) >= len(t.Elements) {
			return nil, vm.fault("index %d out of range [0, %d)", i, len(t.Elements))
		}
		return t.Elements[i], nil
	case *Hash:
		val, ok, err := t.Get(index)
		if err != nil {
			return nil, vm.fault("%v", err)
		}
		if !ok {
			return nil, vm.fault("key not found: %s", quoted(index))
		}
		return val, nil
	case String:
		i, ok := index.(Int)
		if !ok {
			return nil, vm.fault("string index must be int, found %s", index.Type())
		}
		n := utf8.RuneCountInString(string(t))
		if i < 0 || int(i) >= n {
			return nil, vm.fault("index %d out of range [0, %d)", i, n)
		}
		return Char([]rune(string(t))[i]), nil
	}
	return nil, vm.fault("type %s is not indexable", target.Type())
}

// unbox asserts that the value on top of the stack carries the tag the
// type checker proved for this site.
func (vm *VM) unbox(kind byte) error {
	var want ValueType
	switch kind {
	case bytecode.UnboxInt:
		want = IntType
	case bytecode.UnboxBool:
		want = BoolType
	case bytecode.UnboxChar:
		want = CharType
	case bytecode.UnboxString:
		want = StringType
	default:
		return vm.fault("unknown unbox kind %d", kind)
	}
	got := vm.peek().Type()
	if got == NullType {
		return vm.fault("absent value where %s was expected", want)
	}
	if got != want {
		return vm.fault("expected %s, found %s", want, got)
	}
	return nil
}

// fault builds a runtime fault located at the current instruction, with
// the call stack innermost first.
func (vm *VM) fault(format string, args ...interface{}) *errors.Diagnostic {
	d := errors.NewRuntimeFault(fmt.Sprintf(format, args...), 0, 0)
	for i := len(vm.frames) - 1; i >= 0; i-- {
		frame := vm.frames[i]
		debug := frame.fn.Chunk.GetDebugInfo(frame.ip - 1)
		if i == len(vm.frames)-1 {
			d.Location = errors.Location{Line: debug.Line, Column: debug.Column}
		}
		d.AddStackFrame(frame.fn.Name, debug.Line, debug.Column)
	}
	return d
}
