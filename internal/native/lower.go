// Package native lowers bytecode modules ahead of time to LLVM IR.
//
// Only the scalar subset is supported: int, bool and char values, direct
// calls, branches, returns and print. Anything else yields an error
// wrapping ErrUnsupported.
package native

import (
	"fmt"
	"sort"

	"github.com/llir/llvm/ir"
	"github.com/llir/llvm/ir/constant"
	"github.com/llir/llvm/ir/enum"
	lltypes "github.com/llir/llvm/ir/types"
	"github.com/llir/llvm/ir/value"
	"github.com/pkg/errors"

	"monkey/internal/bytecode"
	"monkey/internal/types"
)

// ErrUnsupported marks constructs the native backend cannot lower.
var ErrUnsupported = errors.New("not supported by the native backend")

func unsupported(format string, args ...interface{}) error {
	return errors.Wrapf(ErrUnsupported, format, args...)
}

// slot is one entry of the symbolic operand stack.
type slot struct {
	v value.Value
	// str is set for string constants, which may only be printed.
	str *string
	// void marks the result of calling a void function.
	void bool
}

type lowerer struct {
	mod     *bytecode.Module
	m       *ir.Module
	funcs   []*ir.Func
	globals []*ir.Global
	printf  *ir.Func
	strings map[string]*ir.Global
}

// Lower translates mod into an LLVM module whose C-level main runs the
// program and returns its exit code.
func Lower(mod *bytecode.Module) (*ir.Module, error) {
	l := &lowerer{
		mod:     mod,
		m:       ir.NewModule(),
		funcs:   make([]*ir.Func, len(mod.Functions)),
		globals: make([]*ir.Global, len(mod.Globals)),
		strings: make(map[string]*ir.Global),
	}
	l.printf = l.m.NewFunc("printf", lltypes.I32, ir.NewParam("format", lltypes.NewPointer(lltypes.I8)))
	l.printf.Sig.Variadic = true

	for i, fn := range mod.Functions {
		if len(fn.CaptureSlots) > 0 {
			return nil, unsupported("closure %s", fn.Name)
		}
		ret, err := lowerType(fn.Return)
		if err != nil {
			return nil, errors.Wrapf(err, "function %s", fn.Name)
		}
		params := make([]*ir.Param, len(fn.Params))
		for j, p := range fn.Params {
			t, err := lowerType(p)
			if err != nil {
				return nil, errors.Wrapf(err, "function %s", fn.Name)
			}
			params[j] = ir.NewParam(fmt.Sprintf("p%d", j), t)
		}
		l.funcs[i] = l.m.NewFunc("monkey."+fn.Name, ret, params...)
	}

	// The entry function assigns every global, so lowering it first fixes
	// their types before other bodies read them.
	if mod.Entry < 0 {
		return nil, errors.New("native: module has no entry function")
	}
	order := []int{mod.Entry}
	for i := range mod.Functions {
		if i != mod.Entry {
			order = append(order, i)
		}
	}
	for _, i := range order {
		if err := l.lowerFunction(i); err != nil {
			return nil, errors.Wrapf(err, "function %s", mod.Functions[i].Name)
		}
	}

	main := l.m.NewFunc("main", lltypes.I32)
	block := main.NewBlock("")
	code := block.NewCall(l.funcs[mod.Entry])
	block.NewRet(block.NewTrunc(code, lltypes.I32))
	return l.m, nil
}

func lowerType(t *types.Type) (lltypes.Type, error) {
	switch t.Kind {
	case types.KindInt:
		return lltypes.I64, nil
	case types.KindBool:
		return lltypes.I1, nil
	case types.KindChar:
		return lltypes.I32, nil
	case types.KindVoid:
		return lltypes.Void, nil
	}
	return nil, unsupported("type %s", t)
}

// leaders returns the sorted offsets at which basic blocks start.
func leaders(c *bytecode.Chunk) ([]int, error) {
	set := map[int]bool{0: true}
	for ip := 0; ip < len(c.Code); {
		op := bytecode.OpCode(c.Code[ip])
		if _, ok := bytecode.Lookup(op); !ok {
			return nil, errors.Errorf("native: unknown opcode %d at %d", op, ip)
		}
		next := ip + op.Width()
		switch op {
		case bytecode.OpJump, bytecode.OpJumpIfFalse:
			set[next+c.ReadShort(ip+1)] = true
			set[next] = true
		case bytecode.OpReturn, bytecode.OpReturnValue:
			set[next] = true
		}
		ip = next
	}
	var out []int
	for off := range set {
		if off < len(c.Code) {
			out = append(out, off)
		}
	}
	sort.Ints(out)
	return out, nil
}

type funcLowering struct {
	*lowerer
	fn     *bytecode.Function
	f      *ir.Func
	allocs *ir.Block
	locals map[int]*ir.InstAlloca
	blocks map[int]*ir.Block
	stack  []slot
}

func (l *lowerer) lowerFunction(idx int) error {
	fn := l.mod.Functions[idx]
	fl := &funcLowering{
		lowerer: l,
		fn:      fn,
		f:       l.funcs[idx],
		locals:  make(map[int]*ir.InstAlloca),
		blocks:  make(map[int]*ir.Block),
	}
	fl.allocs = fl.f.NewBlock("entry")
	for i, p := range fl.f.Params {
		fl.allocs.NewStore(p, fl.local(i, p.Typ))
	}

	starts, err := leaders(fn.Chunk)
	if err != nil {
		return err
	}
	for _, off := range starts {
		fl.blocks[off] = fl.f.NewBlock(fmt.Sprintf("b%d", off))
	}
	fl.allocs.NewBr(fl.blocks[0])

	for i, start := range starts {
		end := len(fn.Chunk.Code)
		if i+1 < len(starts) {
			end = starts[i+1]
		}
		if err := fl.lowerBlock(start, end); err != nil {
			return err
		}
	}
	return nil
}

// local returns the stack slot for a local, creating it on first use.
func (fl *funcLowering) local(idx int, t lltypes.Type) *ir.InstAlloca {
	if a, ok := fl.locals[idx]; ok {
		return a
	}
	a := fl.allocs.NewAlloca(t)
	fl.locals[idx] = a
	return a
}

func (fl *funcLowering) push(s slot) { fl.stack = append(fl.stack, s) }

func (fl *funcLowering) pop() (slot, error) {
	if len(fl.stack) == 0 {
		return slot{}, errors.New("native: operand stack underflow")
	}
	s := fl.stack[len(fl.stack)-1]
	fl.stack = fl.stack[:len(fl.stack)-1]
	return s, nil
}

// popValue pops an operand that must be a scalar value.
func (fl *funcLowering) popValue() (value.Value, error) {
	s, err := fl.pop()
	if err != nil {
		return nil, err
	}
	if s.str != nil {
		return nil, unsupported("string value")
	}
	if s.void {
		return nil, unsupported("use of a void result")
	}
	return s.v, nil
}

func (fl *funcLowering) lowerBlock(start, end int) error {
	code := fl.fn.Chunk.Code
	block := fl.blocks[start]
	fl.stack = fl.stack[:0]

	for ip := start; ip < end; {
		op := bytecode.OpCode(code[ip])
		next := ip + op.Width()
		var operand int
		if op.Width() >= 3 {
			operand = fl.fn.Chunk.ReadShort(ip + 1)
		}

		switch op {
		case bytecode.OpConstant:
			switch c := fl.fn.Chunk.Constants[operand].(type) {
			case int64:
				fl.push(slot{v: constant.NewInt(lltypes.I64, c)})
			case bool:
				fl.push(slot{v: constant.NewBool(c)})
			case rune:
				fl.push(slot{v: constant.NewInt(lltypes.I32, int64(c))})
			case string:
				fl.push(slot{str: &c})
			default:
				return unsupported("constant %T", c)
			}

		case bytecode.OpGetLocal:
			a, ok := fl.locals[operand]
			if !ok {
				return errors.Errorf("native: local %d read before assignment", operand)
			}
			fl.push(slot{v: block.NewLoad(a.ElemType, a)})

		case bytecode.OpSetLocal:
			v, err := fl.popValue()
			if err != nil {
				return err
			}
			block.NewStore(v, fl.local(operand, v.Type()))

		case bytecode.OpGetGlobal:
			g := fl.globals[operand]
			if g == nil {
				return errors.Errorf("native: global %s read before assignment", fl.mod.Globals[operand])
			}
			fl.push(slot{v: block.NewLoad(g.ContentType, g)})

		case bytecode.OpSetGlobal:
			v, err := fl.popValue()
			if err != nil {
				return err
			}
			g := fl.globals[operand]
			if g == nil {
				g = fl.m.NewGlobalDef("monkey.global."+fl.mod.Globals[operand], zero(v.Type()))
				fl.globals[operand] = g
			}
			block.NewStore(v, g)

		case bytecode.OpAdd, bytecode.OpAddInt, bytecode.OpSub, bytecode.OpMul, bytecode.OpDiv,
			bytecode.OpLess, bytecode.OpLessEqual, bytecode.OpGreater, bytecode.OpGreaterEqual,
			bytecode.OpEqual, bytecode.OpNotEqual:
			if err := fl.binary(block, op); err != nil {
				return err
			}

		case bytecode.OpCall:
			argc := int(code[ip+3])
			if len(fl.stack) < argc {
				return errors.New("native: operand stack underflow")
			}
			args := make([]value.Value, argc)
			for i := argc - 1; i >= 0; i-- {
				v, err := fl.popValue()
				if err != nil {
					return err
				}
				args[i] = v
			}
			callee := fl.funcs[operand]
			call := block.NewCall(callee, args...)
			if callee.Sig.RetType.Equal(lltypes.Void) {
				fl.push(slot{void: true})
			} else {
				fl.push(slot{v: call})
			}

		case bytecode.OpPrint:
			if err := fl.print(block); err != nil {
				return err
			}

		case bytecode.OpPop:
			if _, err := fl.pop(); err != nil {
				return err
			}

		case bytecode.OpJump:
			block.NewBr(fl.blocks[next+operand])

		case bytecode.OpJumpIfFalse:
			cond, err := fl.popValue()
			if err != nil {
				return err
			}
			block.NewCondBr(cond, fl.blocks[next], fl.blocks[next+operand])

		case bytecode.OpReturn:
			ret := fl.f.Sig.RetType
			if ret.Equal(lltypes.Void) {
				block.NewRet(nil)
			} else {
				// Falling off the end of a value-returning function.
				block.NewRet(zero(ret))
			}

		case bytecode.OpReturnValue:
			v, err := fl.popValue()
			if err != nil {
				return err
			}
			block.NewRet(v)

		default:
			return unsupported("instruction %s", op)
		}
		ip = next
	}

	if block.Term == nil {
		if len(fl.stack) != 0 {
			return unsupported("values live across a branch")
		}
		target, ok := fl.blocks[end]
		if !ok {
			block.NewUnreachable()
			return nil
		}
		block.NewBr(target)
	}
	return nil
}

var predicates = map[bytecode.OpCode]enum.IPred{
	bytecode.OpLess:         enum.IPredSLT,
	bytecode.OpLessEqual:    enum.IPredSLE,
	bytecode.OpGreater:      enum.IPredSGT,
	bytecode.OpGreaterEqual: enum.IPredSGE,
	bytecode.OpEqual:        enum.IPredEQ,
	bytecode.OpNotEqual:     enum.IPredNE,
}

func (fl *funcLowering) binary(block *ir.Block, op bytecode.OpCode) error {
	y, err := fl.popValue()
	if err != nil {
		return err
	}
	x, err := fl.popValue()
	if err != nil {
		return err
	}
	if !x.Type().Equal(y.Type()) {
		return unsupported("%s on %s and %s", op, x.Type(), y.Type())
	}
	if pred, ok := predicates[op]; ok {
		fl.push(slot{v: block.NewICmp(pred, x, y)})
		return nil
	}
	if !x.Type().Equal(lltypes.I64) {
		return unsupported("%s on %s", op, x.Type())
	}
	switch op {
	case bytecode.OpAdd, bytecode.OpAddInt:
		fl.push(slot{v: block.NewAdd(x, y)})
	case bytecode.OpSub:
		fl.push(slot{v: block.NewSub(x, y)})
	case bytecode.OpMul:
		fl.push(slot{v: block.NewMul(x, y)})
	case bytecode.OpDiv:
		fl.push(slot{v: block.NewSDiv(x, y)})
	}
	return nil
}

func (fl *funcLowering) print(block *ir.Block) error {
	s, err := fl.pop()
	if err != nil {
		return err
	}
	switch {
	case s.str != nil:
		block.NewCall(fl.printf, fl.cstring("%s\n"), fl.cstring(*s.str))
	case s.void:
		return unsupported("print of a void result")
	case s.v.Type().Equal(lltypes.I64):
		block.NewCall(fl.printf, fl.cstring("%lld\n"), s.v)
	case s.v.Type().Equal(lltypes.I1):
		text := block.NewSelect(s.v, fl.cstring("true"), fl.cstring("false"))
		block.NewCall(fl.printf, fl.cstring("%s\n"), text)
	case s.v.Type().Equal(lltypes.I32):
		block.NewCall(fl.printf, fl.cstring("%c\n"), s.v)
	default:
		return unsupported("print of %s", s.v.Type())
	}
	return nil
}

func zero(t lltypes.Type) constant.Constant {
	if it, ok := t.(*lltypes.IntType); ok {
		return constant.NewInt(it, 0)
	}
	return constant.NewZeroInitializer(t)
}

// cstring returns an i8* to a NUL-terminated global holding s.
func (l *lowerer) cstring(s string) constant.Constant {
	g, ok := l.strings[s]
	if !ok {
		g = l.m.NewGlobalDef(fmt.Sprintf(".str.%d", len(l.strings)), constant.NewCharArrayFromString(s+"\x00"))
		g.Immutable = true
		l.strings[s] = g
	}
	zero := constant.NewInt(lltypes.I64, 0)
	return constant.NewGetElementPtr(g.ContentType, g, zero, zero)
}
