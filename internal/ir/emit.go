package ir

import (
	"fmt"

	"github.com/praizmiky/focus/internal/rtvalue"
)

// Opcode names one linear VM instruction. The instruction set is
// intentionally small: actual dispatch and execution are the runtime
// VM's responsibility, out of scope here; this package only needs to
// produce a stable, inspectable linearization of an op tree.
type Opcode int

const (
	OpNop Opcode = iota
	OpPushVoid
	OpPushNull
	OpPushTrue
	OpPushFalse
	OpPush0
	OpPush1
	OpLoadFast
	OpLoadGlobal
	OpLoadStatic
	OpCallStatic
	OpCallStaticArg
	OpCallStaticArgNamed
	OpCall
	OpCallArg
	OpCallArgNamed
	OpCallOrCopy
	OpAltBegin
	OpAltNext
	OpAltEnd
	OpIfBegin
	OpIfElse
	OpIfEnd
	OpLoopBegin
	OpLoopCheck
	OpLoopEnd
	OpRepeatBegin
	OpRepeatEnd
	OpPeekBegin
	OpPeekEnd
	OpNotBegin
	OpNotEnd
	OpExpect
	OpCollect
	OpBreak
	OpContinue
)

// Instr is one linear instruction: an opcode plus up to two integer
// operands and an optional string operand (an error message for
// Expect; unused otherwise).
type Instr struct {
	Op   Opcode
	A, B int
	Str  string
}

func (i Instr) String() string {
	switch i.Op {
	case OpLoadFast:
		return fmt.Sprintf("load_fast $%d", i.A)
	case OpLoadGlobal:
		return fmt.Sprintf("load_global $%d", i.A)
	case OpLoadStatic:
		return fmt.Sprintf("load_static %d", i.A)
	case OpCallStatic:
		return fmt.Sprintf("call_static %d", i.A)
	case OpCallStaticArg:
		return fmt.Sprintf("call_static_arg %d, %d", i.A, i.B)
	case OpCallStaticArgNamed:
		return fmt.Sprintf("call_static_arg_named %d, %d", i.A, i.B)
	case OpCallArg:
		return fmt.Sprintf("call_arg %d", i.A)
	case OpCallArgNamed:
		return fmt.Sprintf("call_arg_named %d", i.A)
	case OpRepeatBegin:
		return fmt.Sprintf("repeat_begin %d, %d", i.A, i.B)
	case OpAltBegin:
		return fmt.Sprintf("alt_begin %d", i.A)
	case OpExpect:
		return fmt.Sprintf("expect %q", i.Str)
	default:
		return opcodeName(i.Op)
	}
}

func opcodeName(op Opcode) string {
	names := map[Opcode]string{
		OpNop: "nop", OpPushVoid: "push_void", OpPushNull: "push_null",
		OpPushTrue: "push_true", OpPushFalse: "push_false",
		OpPush0: "push_0", OpPush1: "push_1",
		OpCall: "call", OpCallOrCopy: "call_or_copy",
		OpAltNext: "alt_next", OpAltEnd: "alt_end",
		OpIfBegin: "if_begin", OpIfElse: "if_else", OpIfEnd: "if_end",
		OpLoopBegin: "loop_begin", OpLoopCheck: "loop_check", OpLoopEnd: "loop_end",
		OpRepeatEnd: "repeat_end", OpPeekBegin: "peek_begin", OpPeekEnd: "peek_end",
		OpNotBegin: "not_begin", OpNotEnd: "not_end",
		OpCollect: "collect", OpBreak: "break", OpContinue: "continue",
	}
	if name, ok := names[op]; ok {
		return name
	}
	return "?"
}

// Compiled is the runtime form of one parselet, produced by pass 2.
// Consuming is nil until pass 3 finalizes it, then holds leftrec.
type Compiled struct {
	Name      string
	Locals    int
	Severity  int
	IsBuiltin bool
	Code      []Instr
	Consuming *bool
}

func single(op Opcode) []Instr { return []Instr{{Op: op}} }

// compileLoad implements a small peephole: frequently used constants
// get a dedicated zero-operand push; locals/globals get a direct
// frame load; everything else registers in the static pool and loads
// from there. current is the parselet instance being lowered,
// needed to substitute any GenericRef in a shared built-in model.
func compileLoad(p *Program, current *Parselet, v Value) []Instr {
	switch t := v.(type) {
	case Shared:
		return compileLoad(p, current, t.Cell.V)
	case GenericRef:
		if bound, ok := current.Constant(t.Name); ok {
			return compileLoad(p, current, bound)
		}
		p.Errorf("call to %q requires generic argument %q", current.Name, t.Name)
		return nil
	case Local:
		return []Instr{{Op: OpLoadFast, A: t.Slot}}
	case Global:
		return []Instr{{Op: OpLoadGlobal, A: t.Slot}}
	case Name:
		p.Errorf("use of unresolved symbol %q", t.Name)
		return nil
	case Const:
		switch cv := t.V.(type) {
		case rtvalue.Void:
			return single(OpPushVoid)
		case rtvalue.Null:
			return single(OpPushNull)
		case rtvalue.Bool:
			if cv {
				return single(OpPushTrue)
			}
			return single(OpPushFalse)
		case rtvalue.Int:
			if cv.IsZero() {
				return single(OpPush0)
			}
			if cv.IsOne() {
				return single(OpPush1)
			}
		}
	}

	return []Instr{{Op: OpLoadStatic, A: p.Register(v)}}
}

// compileCall implements the eight-form call dispatch (see CallForm).
func compileCall(p *Program, current *Parselet, target Value, nargs int, named, qualified bool) []Instr {
	switch t := target.(type) {
	case Shared:
		return compileCall(p, current, t.Cell.V, nargs, named, qualified)
	case GenericRef:
		if bound, ok := current.Constant(t.Name); ok {
			return compileCall(p, current, bound, nargs, named, qualified)
		}
		p.Errorf("call to %q requires generic argument %q", current.Name, t.Name)
		return nil
	case Local:
		code := []Instr{{Op: OpLoadFast, A: t.Slot}}
		return append(code, dynamicForm(nargs, named, qualified)...)
	case Global:
		code := []Instr{{Op: OpLoadGlobal, A: t.Slot}}
		return append(code, dynamicForm(nargs, named, qualified)...)
	case Name:
		p.Errorf("call to unresolved symbol %q", t.Name)
		return nil
	}

	idx := p.Register(target)
	switch chooseForm(target, true, qualified, nargs, named) {
	case FormCallStatic:
		return []Instr{{Op: OpCallStatic, A: idx}}
	case FormCallStaticArg:
		return []Instr{{Op: OpCallStaticArg, A: idx, B: nargs}}
	case FormCallStaticArgNamed:
		return []Instr{{Op: OpCallStaticArgNamed, A: idx, B: nargs}}
	default: // FormLoadStatic
		return []Instr{{Op: OpLoadStatic, A: idx}}
	}
}

func dynamicForm(nargs int, named, qualified bool) []Instr {
	switch chooseForm(nil, false, qualified, nargs, named) {
	case FormCall:
		return single(OpCall)
	case FormCallArg:
		return []Instr{{Op: OpCallArg, A: nargs}}
	case FormCallArgNamed:
		return []Instr{{Op: OpCallArgNamed, A: nargs}}
	default: // FormCallOrCopy
		return single(OpCallOrCopy)
	}
}

// compileOp linearizes one IR op tree node into instructions. current
// is the parselet instance being lowered (see compileLoad).
func compileOp(p *Program, current *Parselet, op Op) []Instr {
	switch t := op.(type) {
	case nil, Nop:
		return nil
	case Load:
		return compileLoad(p, current, t.Value)
	case Call:
		var code []Instr
		for _, a := range t.Args {
			code = append(code, compileOp(p, current, a)...)
		}
		for _, na := range t.NamedArgs {
			code = append(code, compileLoad(p, current, Const{V: rtvalue.Str(na.Name)})...)
			code = append(code, compileOp(p, current, na.Value)...)
		}
		nargs := len(t.Args)
		named := len(t.NamedArgs) > 0
		qualified := t.Qualified || nargs > 0 || named
		code = append(code, compileCall(p, current, t.Target, nargs, named, qualified)...)
		return code
	case Seq:
		var code []Instr
		for _, item := range t.Items {
			code = append(code, compileOp(p, current, item)...)
		}
		if t.Collect {
			code = append(code, Instr{Op: OpCollect, A: len(t.Items)})
		}
		return code
	case Alt:
		code := []Instr{{Op: OpAltBegin, A: len(t.Alts)}}
		for i, alt := range t.Alts {
			code = append(code, compileOp(p, current, alt)...)
			if i < len(t.Alts)-1 {
				code = append(code, Instr{Op: OpAltNext})
			}
		}
		return append(code, Instr{Op: OpAltEnd})
	case If:
		code := []Instr{{Op: OpIfBegin}}
		code = append(code, compileOp(p, current, t.Then)...)
		if t.Else != nil {
			code = append(code, Instr{Op: OpIfElse})
			code = append(code, compileOp(p, current, t.Else)...)
		}
		return append(code, Instr{Op: OpIfEnd})
	case Loop:
		code := compileOp(p, current, t.Initial)
		code = append(code, Instr{Op: OpLoopBegin})
		code = append(code, compileOp(p, current, t.Condition)...)
		code = append(code, Instr{Op: OpLoopCheck})
		code = append(code, compileOp(p, current, t.Body)...)
		return append(code, Instr{Op: OpLoopEnd})
	case Repeat:
		code := []Instr{{Op: OpRepeatBegin, A: t.Min, B: t.Max}}
		code = append(code, compileOp(p, current, t.Body)...)
		return append(code, Instr{Op: OpRepeatEnd})
	case Peek:
		code := []Instr{{Op: OpPeekBegin}}
		code = append(code, compileOp(p, current, t.Body)...)
		return append(code, Instr{Op: OpPeekEnd})
	case Not:
		code := []Instr{{Op: OpNotBegin}}
		code = append(code, compileOp(p, current, t.Body)...)
		return append(code, Instr{Op: OpNotEnd})
	case Expect:
		code := compileOp(p, current, t.Body)
		return append(code, Instr{Op: OpExpect, Str: t.Message})
	case Break:
		return single(OpBreak)
	case Continue:
		return single(OpContinue)
	default:
		panic(fmt.Sprintf("ir: unhandled op type %T", op))
	}
}

func compileParselet(p *Program, parselet *Parselet, idx int) *Compiled {
	c := &Compiled{
		Name:      parselet.Name,
		Locals:    parselet.Model.Locals,
		Severity:  parselet.Severity,
		IsBuiltin: parselet.IsBuiltin,
	}

	c.Code = append(c.Code, compileOp(p, parselet, parselet.Model.Begin)...)
	c.Code = append(c.Code, compileOp(p, parselet, parselet.Model.Body)...)
	c.Code = append(c.Code, compileOp(p, parselet, parselet.Model.End)...)
	return c
}
