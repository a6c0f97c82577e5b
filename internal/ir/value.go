// Package ir implements the intermediate representation the compiler
// builds while walking a syntax tree: the tagged IR value union, the
// IR op tree, the parselet model/instance, the static pool and
// fixpoint finalizer, and the bytecode emitter.
//
// These five concerns share one package because they are mutually
// recursive: a parselet's body is an op tree that calls other
// parselets through IR values, and the finalizer walks both together.
package ir

import (
	"github.com/praizmiky/focus/internal/rtvalue"
	"github.com/praizmiky/focus/internal/tree"
)

// A Value is one variant of the IR value tagged union. Implementations
// live entirely in this package; equality of two Values that hold a
// *Parselet or *Cell compares pointer identity, matching the spec's
// "shared handle" requirement.
type Value interface {
	isValue()
}

// Void is the sentinel for "no generic default supplied".
type Void struct{}

func (Void) isValue() {}

// Const wraps a fully realized runtime value.
type Const struct {
	V rtvalue.Value
}

func (Const) isValue() {}

// Local is a variable binding in a parselet's local frame.
type Local struct {
	Slot int
}

func (Local) isValue() {}

// Global is a variable binding in the global frame.
type Global struct {
	Slot int
}

func (Global) isValue() {}

// ParseletRef is a shared handle to a parselet instance. Two
// ParseletRefs compare equal, and hash identically under a Go map key,
// exactly when they hold the same *Parselet pointer.
type ParseletRef struct {
	P *Parselet
}

func (ParseletRef) isValue() {}

// Name is an unresolved identifier. Generic means it is a placeholder
// to be substituted only at generic instantiation, never resolved
// globally.
type Name struct {
	Offset  *tree.Offset
	Name    string
	Generic bool
}

func (Name) isValue() {}

// Arg is one entry of a generic instantiation's configuration, or one
// argument of a call. An empty Name means the argument is positional.
type Arg struct {
	Offset *tree.Offset
	Name   string
	Value  Value
}

// Instance is a generic parselet applied to a list of named/positional
// argument values, prior to resolution. Once Target resolves to a
// *Parselet, the instance is derived into a concrete ParseletRef (see
// Resolver.Derive).
type Instance struct {
	Offset *tree.Offset
	Target Value
	Config []Arg
}

func (Instance) isValue() {}

// GenericRef is a reference, from inside a shared built-in generic
// model's body (Pos/Opt/Kle — see internal/builtin), to one of that
// model's own generic arguments. It is substituted per instance by
// looking the name up in the current Parselet's Constants, never
// through ordinary scope resolution — generic arguments are a
// compile-time substitution of IR values into a shared model, not a
// name visible to the surrounding scope.
type GenericRef struct {
	Name string
}

func (GenericRef) isValue() {}

// Cell is the interior-mutable placeholder a Shared value points to.
// It is written exactly once, by Resolve, and observed many times.
type Cell struct {
	V Value
}

// Shared is a handle to a Cell, allowing one unresolved use to be
// rewritten in place and observed from every holder of the handle.
type Shared struct {
	Cell *Cell
}

func (Shared) isValue() {}

// Resolver is the lookup surface the IR layer needs from the symbol
// resolver (internal/scope), kept as an interface here so this package
// never imports internal/scope (which imports ir for parselet models).
type Resolver interface {
	// Get searches enclosing scopes then built-ins for name, returning
	// the found IR value, or false if nothing matched.
	Get(offset *tree.Offset, name string) (Value, bool)
	// PushUsage registers a Shared placeholder for later re-resolution.
	PushUsage(v Value)
	// Derive returns the shared parselet instance for applying config
	// to model, caching so identical (model, config) derivations reuse
	// one *Parselet. Kept on the resolver rather than the eventual
	// *Program, because an Instance can become resolvable
	// mid-traversal, long before a Program exists.
	Derive(model *Model, name string, offset *tree.Offset, config []ConstEntry) *Parselet
}

// IsConstantName implements the naming rule: an identifier starting
// with an uppercase letter or underscore is a constant; anything else
// is a variable. The same rule backs the IsConsuming heuristic on
// unresolved names.
func IsConstantName(name string) bool {
	if name == "" {
		return false
	}
	r := name[0]
	return r == '_' || (r >= 'A' && r <= 'Z')
}

// TryResolve attempts immediate resolution of v. On success it returns
// the resolved value; otherwise it wraps v in a fresh Shared cell,
// registers the cell with r as a pending usage, and returns the
// Shared handle. Idempotent for already-resolved forms.
func TryResolve(v Value, r Resolver) Value {
	if resolved, ok := Resolve(v, r); ok {
		return resolved
	}
	shared := Shared{Cell: &Cell{V: v}}
	r.PushUsage(shared)
	return shared
}

// Resolve attempts to resolve v one level. For Name{Generic: false} it
// looks the name up through r; on hit it returns the found value and
// true. For Shared it delegates to the interior cell, rewriting the
// cell's contents in place on success. For Instance it resolves the
// target and every configuration argument; once all of those are
// concrete and the target is a *Parselet, it derives the concrete
// instance via r.Derive and returns that — the whole Instance defers
// as a unit while any part of it is still pending (the spec's "generic
// instantiation on an unresolved target" leaves the Instance wrapped,
// never half-substituted). A Name, Shared or Instance that cannot be
// resolved yet returns (v, false); any other, already-resolved form
// returns (v, true) unchanged.
func Resolve(v Value, r Resolver) (Value, bool) {
	switch t := v.(type) {
	case Shared:
		if resolved, ok := Resolve(t.Cell.V, r); ok {
			t.Cell.V = resolved
			return v, true
		}
		return v, false
	case Name:
		if t.Generic {
			return v, false
		}
		if found, ok := r.Get(t.Offset, t.Name); ok {
			return found, true
		}
		return v, false
	case Instance:
		target, ok := Resolve(t.Target, r)
		if !ok {
			return v, false
		}
		ref, ok := target.(ParseletRef)
		if !ok {
			return v, false
		}
		entries := make([]ConstEntry, len(t.Config))
		positional := 0
		for i, a := range t.Config {
			av, ok := Resolve(a.Value, r)
			if !ok {
				return v, false
			}
			name := a.Name
			if name == "" {
				// A positional generic argument binds to the target's
				// own declared parameter names, in order, discovered
				// only now that target is known — positional config
				// can't be named any earlier than resolution time.
				if positional < len(ref.P.Model.Signature) {
					name = ref.P.Model.Signature[positional].Name
				}
				positional++
			}
			entries[i] = ConstEntry{Name: name, Value: av}
		}
		derived := r.Derive(ref.P.Model, ref.P.Name, t.Offset, entries)
		return ParseletRef{P: derived}, true
	default:
		return v, true
	}
}

// IsUnresolved reports whether v is transitively a Name, Instance, or
// an unresolved Shared cell — a condition that must be false
// everywhere in a successfully compiled program.
func IsUnresolved(v Value) bool {
	switch t := v.(type) {
	case Shared:
		return IsUnresolved(t.Cell.V)
	case Name, Instance:
		return true
	default:
		return false
	}
}

// IsCallable reports whether v can be invoked. When withoutArgs is
// true, the check is for a bare reference with no parentheses.
func IsCallable(v Value, withoutArgs bool) bool {
	switch t := v.(type) {
	case Shared:
		return IsCallable(t.Cell.V, withoutArgs)
	case Const:
		return t.V.IsCallable(withoutArgs)
	case ParseletRef:
		if !withoutArgs {
			return true
		}
		for _, p := range t.P.Model.Signature {
			if _, void := p.Default.(Void); void {
				return false
			}
		}
		return true
	default:
		return false
	}
}

// IsConsuming reports whether invoking v can advance an input cursor.
func IsConsuming(v Value) bool {
	switch t := v.(type) {
	case Shared:
		return IsConsuming(t.Cell.V)
	case Name:
		return IsConstantName(t.Name)
	case Const:
		return t.V.IsConsuming()
	case ParseletRef:
		return t.P.Model.Consuming
	default:
		return false
	}
}

// IsNullable reports whether v can succeed without consuming input.
// Only meaningful once v is known consuming.
func IsNullable(v Value) bool {
	switch t := v.(type) {
	case Shared:
		return IsNullable(t.Cell.V)
	case Const:
		return t.V.IsNullable()
	default:
		return false
	}
}

// IntoGeneric wraps v as the sole argument, named "value", of an Instance
// targeting a built-in generic parselet (Pos, Opt, Kle), used to
// desugar postfix quantifiers and the whitespace shorthand. target is
// supplied by the caller (looked up from internal/builtin) so this
// package never needs to import the builtin registry.
func IntoGeneric(v Value, off *tree.Offset, target Value) Value {
	return Instance{
		Offset: off,
		Target: target,
		Config: []Arg{{Name: "value", Value: v}},
	}
}
