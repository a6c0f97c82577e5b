package builtin

import "github.com/praizmiky/focus/internal/ir"

// Pos, Opt, and Kle are the three built-in generic parselets that
// desugar postfix quantifiers (+, ?, *) and the whitespace shorthand
// (the resolver's constant() special-casing of "_"/"__"). Each has
// one Model whose body is a Repeat over a GenericRef("value") — the
// argument bound per instance by scope.Resolver.Derive — so Pos<X>,
// Pos<Y>, ... are distinct derived instances of one Model, since a
// generic is a compile-time substitution of arguments into a shared
// model rather than a separate model per instance.
var (
	Pos *ir.Parselet
	Opt *ir.Parselet
	Kle *ir.Parselet
)

func initGenerics() {
	Pos = newQuantifierGeneric("Pos", 1, -1)
	Opt = newQuantifierGeneric("Opt", 0, 1)
	Kle = newQuantifierGeneric("Kle", 0, -1)
}

func newQuantifierGeneric(name string, min, max int) *ir.Parselet {
	model := &ir.Model{
		Signature: nil, // generics take no runtime call arguments
		Locals:    0,
		Begin:     ir.Nop{},
		Body: ir.Repeat{
			Body: ir.Call{Target: ir.GenericRef{Name: "value"}},
			Min:  min,
			Max:  max,
		},
		End:       ir.Nop{},
		Consuming: true,
	}

	return &ir.Parselet{
		Model:     model,
		Name:      name,
		Severity:  5,
		IsBuiltin: true,
	}
}
