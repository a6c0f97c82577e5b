package scope

import (
	"fmt"

	"github.com/praizmiky/focus/internal/builtin"
	"github.com/praizmiky/focus/internal/ir"
	"github.com/praizmiky/focus/internal/tree"
)

// Resolver is the symbol resolver: the scope stack plus the name
// lookup and binding rules over it. A Resolver obtained from New
// starts with an empty scope stack; the driver pushes the one global
// parselet scope before traversal and leaves it open afterwards.
//
// The scope stack is kept innermost-last: append to push, trim to
// pop.
type Resolver struct {
	scopes  []*frame
	usages  []ir.Value
	derived map[derivedKey]*ir.Parselet
}

// New returns an empty resolver.
func New() *Resolver {
	return &Resolver{derived: make(map[derivedKey]*ir.Parselet)}
}

// derivedKey identifies one generic derivation: the model being
// derived from, plus a canonicalized rendering of the bound config.
type derivedKey struct {
	model  *ir.Model
	config string
}

// canonicalConfig renders config as a string that is equal for two
// configs exactly when they are structurally equal, so repeated
// instantiations with the same (model, config) share one derivation.
// It canonicalizes through each bound value's own structural identity
// rather than through fmt's "%p" pointer-address fallback: a Const
// wrapping an rtvalue.Value (e.g. Int, whose underlying *big.Int is a
// fresh pointer every time a literal is parsed) would otherwise get a
// different key per occurrence even when the values are equal.
func canonicalConfig(config []ir.ConstEntry) string {
	s := ""
	for _, c := range config {
		s += c.Name + "=" + canonicalValue(c.Value) + ";"
	}
	return s
}

// canonicalValue renders v as a string that is equal for two values
// exactly when they are structurally (or, for shared handles, by
// identity) equal.
func canonicalValue(v ir.Value) string {
	switch t := v.(type) {
	case ir.Shared:
		return canonicalValue(t.Cell.V)
	case ir.Const:
		return fmt.Sprintf("const:%d:%s", t.V.Kind(), t.V.String())
	case ir.Local:
		return fmt.Sprintf("local:%d", t.Slot)
	case ir.Global:
		return fmt.Sprintf("global:%d", t.Slot)
	case ir.ParseletRef:
		// A Parselet is always referenced through a stable *Parselet
		// handle, so pointer identity is its correct structural key.
		return fmt.Sprintf("parselet:%p", t.P)
	case ir.GenericRef:
		return "generic:" + t.Name
	case ir.Name:
		return "name:" + t.Name
	default:
		return fmt.Sprintf("other:%#v", v)
	}
}

// Derive implements ir.Resolver: it returns the shared parselet
// instance for applying config to model, reusing a previous
// derivation when (model, config) was seen before — identical
// derivations share one static index. Unlike the eventual *ir.Program,
// the resolver exists for the whole traversal, so an Instance value
// can derive the moment its target resolves, rather than waiting for
// a program that doesn't exist yet.
func (r *Resolver) Derive(model *ir.Model, name string, offset *tree.Offset, config []ir.ConstEntry) *ir.Parselet {
	key := derivedKey{model: model, config: canonicalConfig(config)}
	if existing, ok := r.derived[key]; ok {
		return existing
	}

	derived := &ir.Parselet{
		Model:     model,
		Constants: config,
		Offset:    offset,
		Name:      name,
		Severity:  5,
	}
	r.derived[key] = derived
	return derived
}

func (r *Resolver) top() *frame {
	if len(r.scopes) == 0 {
		panic("scope: no open scope")
	}
	return r.scopes[len(r.scopes)-1]
}

// PushParselet opens a new parselet scope. The first parselet scope
// pushed onto an empty stack is the global scope.
func (r *Resolver) PushParselet() {
	r.scopes = append(r.scopes, &frame{
		kind:       parseletKind,
		usageStart: len(r.usages),
		constants:  newConstants(),
		variables:  newVariables(),
		isGlobal:   len(r.scopes) == 0,
	})
}

// PushBlock opens a new block scope.
func (r *Resolver) PushBlock() {
	r.scopes = append(r.scopes, &frame{
		kind:       blockKind,
		usageStart: len(r.usages),
		constants:  newConstants(),
	})
}

// PushLoop opens a new loop scope (marker only).
func (r *Resolver) PushLoop() {
	r.scopes = append(r.scopes, &frame{kind: loopKind})
}

// PopBlock resolves pending usages from this scope, then drops it.
func (r *Resolver) PopBlock() {
	if r.top().kind != blockKind {
		panic("scope: pop_block on non-block scope")
	}
	r.Resolve()
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// PopLoop drops a loop scope.
func (r *Resolver) PopLoop() {
	if r.top().kind != loopKind {
		panic("scope: pop_loop on non-loop scope")
	}
	r.scopes = r.scopes[:len(r.scopes)-1]
}

// Resolve drains pending usages created since the current scope's
// usage_start and retries each; still-unresolved ones are re-appended
// so the surrounding scope gets the next chance at them.
func (r *Resolver) Resolve() {
	start := r.top().usageStart
	if start > len(r.usages) {
		start = len(r.usages)
	}
	pending := append([]ir.Value(nil), r.usages[start:]...)
	r.usages = r.usages[:start]

	for _, v := range pending {
		if _, ok := ir.Resolve(v, r); ok {
			continue
		}
		r.usages = append(r.usages, v)
	}
}

// PushUsage registers a Shared placeholder for later re-resolution;
// implements ir.Resolver.
func (r *Resolver) PushUsage(v ir.Value) {
	r.usages = append(r.usages, v)
}

// Usages reports the usages still unresolved at this point, for the
// driver to report as "undefined name" errors once the global scope
// has been fully drained.
func (r *Resolver) Usages() []ir.Value {
	return r.usages
}

// Constant binds name to value in the nearest parselet-or-block
// scope. The whitespace shorthand applies when name is "_" or "__":
// value is first wrapped as Pos(value) and bound to "__", then
// wrapped as Opt(__) and bound to "_" — making whitespace syntactically
// first-class and idempotent under repeated definition: the pair of
// resulting constants is the same regardless of how many times "_" is
// (re)defined, since each redefinition simply overwrites both entries
// identically.
func (r *Resolver) Constant(name string, value ir.Value) {
	if name == "_" || name == "__" {
		pos := ir.TryResolve(ir.IntoGeneric(value, nil, ir.ParseletRef{P: builtin.Pos}), r)
		r.setConstant("__", pos)

		opt := ir.TryResolve(ir.IntoGeneric(pos, nil, ir.ParseletRef{P: builtin.Opt}), r)
		r.setConstant("_", opt)
		return
	}

	r.setConstant(name, value)
}

func (r *Resolver) setConstant(name string, value ir.Value) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		f := r.scopes[i]
		if f.kind == parseletKind || f.kind == blockKind {
			f.constants.set(name, value)
			return
		}
	}
	panic("scope: no parselet or block scope to hold constant")
}

// Local inserts a new variable slot for name in the nearest parselet
// scope, or does nothing if name already has one there.
func (r *Resolver) Local(name string) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		f := r.scopes[i]
		if f.kind != parseletKind {
			continue
		}
		if _, ok := f.variables.get(name); ok {
			return
		}
		addr := f.locals
		f.locals++
		f.variables.index[name] = addr
		return
	}
	panic("scope: no parselet scope for local")
}

// Temp claims an unused or new temporary slot in the nearest parselet
// scope.
func (r *Resolver) Temp() int {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		f := r.scopes[i]
		if f.kind != parseletKind {
			continue
		}
		if n := len(f.temporaries); n > 0 {
			slot := f.temporaries[n-1]
			f.temporaries = f.temporaries[:n-1]
			return slot
		}
		addr := f.locals
		f.locals++
		return addr
	}
	panic("scope: no parselet scope for temp")
}

// Untemp returns slot to the free list for later re-use.
func (r *Resolver) Untemp(slot int) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		f := r.scopes[i]
		if f.kind == parseletKind {
			f.temporaries = append(f.temporaries, slot)
			return
		}
	}
	panic("scope: no parselet scope for untemp")
}

// Get implements ir.Resolver: search order is (1) block constants,
// (2) parselet constants, (3) parselet variables only if the scope is
// the innermost parselet or is global, then built-ins.
func (r *Resolver) Get(offset *tree.Offset, name string) (ir.Value, bool) {
	topParselet := true

	for i := len(r.scopes) - 1; i >= 0; i-- {
		f := r.scopes[i]
		switch f.kind {
		case blockKind:
			if v, ok := f.constants.get(name); ok {
				return v, true
			}
		case parseletKind:
			if v, ok := f.constants.get(name); ok {
				return v, true
			}
			if f.isGlobal || topParselet {
				if slot, ok := f.variables.get(name); ok {
					if f.isGlobal {
						return ir.Global{Slot: slot}, true
					}
					return ir.Local{Slot: slot}, true
				}
			}
			topParselet = false
		}
	}

	return r.GetBuiltin(name)
}

// GetBuiltin looks up a name in the fixed built-in registry. On the
// first request for an undefined "_"/"__", it synthesizes
// `_ : Whitespaces?` by defining a built-in token constant and
// re-entering Get.
func (r *Resolver) GetBuiltin(name string) (ir.Value, bool) {
	if fn, ok := builtin.Lookup(name); ok {
		return ir.Const{V: fn}, true
	}

	if name == "_" || name == "__" {
		tok, _ := builtin.Token("Whitespaces")
		r.Constant("_", ir.Const{V: tok})
		return r.Get(nil, name)
	}

	if tok, ok := builtin.Token(name); ok {
		return ir.Const{V: tok}, true
	}

	return nil, false
}

// MarkConsuming flags the nearest parselet scope as consuming.
func (r *Resolver) MarkConsuming() {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if f := r.scopes[i]; f.kind == parseletKind {
			f.isConsuming = true
			return
		}
	}
	panic("scope: no parselet scope to mark consuming")
}

// IsGlobal reports whether the nearest parselet scope is the global
// scope.
func (r *Resolver) IsGlobal() bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if f := r.scopes[i]; f.kind == parseletKind {
			return f.isGlobal
		}
	}
	panic("scope: no parselet scope")
}

// InLoop reports whether a Loop scope is reachable before the next
// Parselet scope, i.e. whether break/continue are currently valid.
func (r *Resolver) InLoop() bool {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		switch r.scopes[i].kind {
		case parseletKind:
			return false
		case loopKind:
			return true
		}
	}
	return false
}

// PushBegin appends op to the nearest parselet scope's begin block.
func (r *Resolver) PushBegin(op ir.Op) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if f := r.scopes[i]; f.kind == parseletKind {
			f.begin = append(f.begin, op)
			return
		}
	}
	panic("scope: no parselet scope for begin")
}

// PushEnd appends op to the nearest parselet scope's end block.
func (r *Resolver) PushEnd(op ir.Op) {
	for i := len(r.scopes) - 1; i >= 0; i-- {
		if f := r.scopes[i]; f.kind == parseletKind {
			f.end = append(f.end, op)
			return
		}
	}
	panic("scope: no parselet scope for end")
}

// Depth reports the number of open scopes, used by the driver to
// check that the scope stack is balanced after traversal.
func (r *Resolver) Depth() int { return len(r.scopes) }

// ParseletPop resolves and drops the current parselet scope, asserts
// |signature| <= locals, and packages the accumulated begin/end
// buffers as Nop, the single op, or an Alt over them, returning a new
// parselet instance built from the accumulated model.
func (r *Resolver) ParseletPop(offset *tree.Offset, name string, severity int, constants []ir.ConstEntry, signature []ir.Param, body ir.Op) ir.Value {
	top := r.top()
	if top.kind != parseletKind {
		panic("scope: parselet_pop on non-parselet scope")
	}

	r.Resolve()
	r.scopes = r.scopes[:len(r.scopes)-1]

	begin := ir.EnsureBlock(top.begin)
	end := ir.EnsureBlock(top.end)

	if len(signature) > top.locals {
		panic(fmt.Sprintf("scope: signature of %q longer than its locals", name))
	}

	model := &ir.Model{
		Signature: signature,
		Locals:    top.locals,
		Begin:     begin,
		Body:      body,
		End:       end,
		Consuming: top.isConsuming || ir.OpIsConsuming(begin) || ir.OpIsConsuming(end) || ir.OpIsConsuming(body),
	}

	return ir.ParseletRef{P: &ir.Parselet{
		Model:     model,
		Constants: constants,
		Offset:    offset,
		Name:      name,
		Severity:  severity,
	}}
}
