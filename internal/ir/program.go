package ir

import "fmt"

// staticEntry is one slot of the program's static pool: the
// registered IR value, and, once pass 2 lowers it, the compiled
// parselet it produced (nil for non-parselet statics, which are
// carried through unchanged).
type staticEntry struct {
	value Value
	final *Compiled
}

// Program owns the ordered static pool and the errors accumulated
// while registering, lowering, and finalizing it. It is built by the
// driver (package compiler), which seeds index 0 with the main
// parselet before running the three passes.
type Program struct {
	statics []staticEntry
	errors  []error
}

// NewProgram creates a program whose static pool is seeded with main
// at index 0.
func NewProgram(main Value) *Program {
	return &Program{
		statics: []staticEntry{{value: main}},
	}
}

// Errorf records a compile diagnostic.
func (p *Program) Errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Errorf(format, args...))
}

// Errors returns the diagnostics recorded so far.
func (p *Program) Errors() []error { return p.errors }

// Register inserts value into the static pool if not already present
// by structural/identity equality, and returns its index. Only Const
// and ParseletRef may be registered; attempting to register anything
// else (an unresolved variant reaching codegen) is a programmer error
// — the compiler must have lowered it first.
func (p *Program) Register(value Value) int {
	if shared, ok := value.(Shared); ok {
		return p.Register(shared.Cell.V)
	}

	if !isStaticValue(value) {
		panic(fmt.Sprintf("ir: cannot register unresolved value %#v in static pool", value))
	}

	for i, entry := range p.statics {
		if valuesEqual(entry.value, value) {
			return i
		}
	}

	p.statics = append(p.statics, staticEntry{value: value})
	return len(p.statics) - 1
}

// Len reports the current size of the static pool.
func (p *Program) Len() int { return len(p.statics) }

// StaticAt returns the IR value at index idx.
func (p *Program) StaticAt(idx int) Value { return p.statics[idx].value }

func valuesEqual(a, b Value) bool {
	switch ta := a.(type) {
	case Const:
		tb, ok := b.(Const)
		return ok && ta.V.Equal(tb.V)
	case ParseletRef:
		tb, ok := b.(ParseletRef)
		return ok && ta.P == tb.P
	default:
		return false
	}
}

// Compile runs the three passes (pass 1, static registration, happens
// as a side effect of pass-2 lowering calling Register) and returns the finished
// static pool plus the index of the main parselet, or the errors
// recorded along the way.
func (p *Program) Compile() ([]Static, int, []error) {
	finalize := make(map[*Parselet]bool)

	// Pass 2: work-list over statics, which may grow as derived
	// parselets are discovered mid-loop — hence the index-based (not
	// range-based) loop, since range would snapshot today's length.
	for idx := 0; idx < len(p.statics); idx++ {
		ref, ok := p.statics[idx].value.(ParseletRef)
		if !ok {
			continue
		}

		if ref.P.Model.Consuming {
			finalize[ref.P] = true
		}

		p.statics[idx].final = compileParselet(p, ref.P, idx)
	}

	leftrec := p.finalize(finalize)

	if len(p.errors) > 0 {
		return nil, 0, p.errors
	}

	statics := make([]Static, len(p.statics))
	for i, entry := range p.statics {
		if entry.final != nil {
			if ref, ok := entry.value.(ParseletRef); ok {
				if lr, ok := leftrec[ref.P]; ok {
					v := lr
					entry.final.Consuming = &v
				}
			}
			statics[i] = entry.final
			continue
		}
		statics[i] = entry.value.(Const).V
	}

	return statics, 0, nil
}

// Static is either a runtime value (rtvalue.Value) or a *Compiled
// parselet — one entry of the program artifact's ordered static pool.
type Static interface{}
