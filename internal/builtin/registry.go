// Package builtin holds the process-wide, immutable registry of
// built-in functions, token recognizers, and the built-in generic
// parselets (Pos, Opt, Kle) used to desugar postfix quantifiers and
// the whitespace shorthand (ir.IntoGeneric). The registry is built
// once in init() and never mutated afterward: it is a process-wide
// constant table.
package builtin

import (
	"sort"

	"github.com/praizmiky/focus/internal/ir"
	"github.com/praizmiky/focus/internal/rtvalue"
)

type funcEntry struct {
	name string
	fn   *rtvalue.Builtin
}

type tokenEntry struct {
	name string
	tok  *rtvalue.Token
}

var functions []funcEntry
var tokens []tokenEntry

func init() {
	functions = []funcEntry{
		{"int_add", &rtvalue.Builtin{Name: "int_add", Arity: 2}},
		{"int_sub", &rtvalue.Builtin{Name: "int_sub", Arity: 2}},
		{"int_mul", &rtvalue.Builtin{Name: "int_mul", Arity: 2}},
		{"int_div", &rtvalue.Builtin{Name: "int_div", Arity: 2}},
		{"float_lt", &rtvalue.Builtin{Name: "float_lt", Arity: 2}},
		{"float_gt", &rtvalue.Builtin{Name: "float_gt", Arity: 2}},
		{"list_push", &rtvalue.Builtin{Name: "list_push", Arity: 2}},
		{"list_pop", &rtvalue.Builtin{Name: "list_pop", Arity: 1}},
		{"dict_update", &rtvalue.Builtin{Name: "dict_update", Arity: 3}},
		{"str_len", &rtvalue.Builtin{Name: "str_len", Arity: 1}},
		{"str_join", &rtvalue.Builtin{Name: "str_join", Arity: 2}},
		{"print", &rtvalue.Builtin{Name: "print", Arity: -1}},
		{"repr", &rtvalue.Builtin{Name: "repr", Arity: 1}},
		{"type", &rtvalue.Builtin{Name: "type", Arity: 1}},
		{"chr", &rtvalue.Builtin{Name: "chr", Arity: 1}},
		{"ord", &rtvalue.Builtin{Name: "ord", Arity: 1}},
		{"error", &rtvalue.Builtin{Name: "error", Arity: -1}},
		{"ast", &rtvalue.Builtin{Name: "ast", Arity: -1}},
		{"ast_print", &rtvalue.Builtin{Name: "ast_print", Arity: 1}},
	}
	sort.Slice(functions, func(i, j int) bool { return functions[i].name < functions[j].name })

	tokens = []tokenEntry{
		{"Identifier", &rtvalue.Token{Name: "Identifier"}},
		{"Integer", &rtvalue.Token{Name: "Integer"}},
		{"Word", &rtvalue.Token{Name: "Word"}},
		{"Whitespaces", &rtvalue.Token{Name: "Whitespaces"}},
	}
	sort.Slice(tokens, func(i, j int) bool { return tokens[i].name < tokens[j].name })

	initGenerics()
}

// Lookup returns the built-in function registered under name.
func Lookup(name string) (*rtvalue.Builtin, bool) {
	i := sort.Search(len(functions), func(i int) bool { return functions[i].name >= name })
	if i < len(functions) && functions[i].name == name {
		return functions[i].fn, true
	}
	return nil, false
}

// Token returns the built-in token recognizer registered under name.
func Token(name string) (*rtvalue.Token, bool) {
	i := sort.Search(len(tokens), func(i int) bool { return tokens[i].name >= name })
	if i < len(tokens) && tokens[i].name == name {
		return tokens[i].tok, true
	}
	return nil, false
}

// AsValue wraps a registry lookup result as the IR value the resolver
// returns from get_builtin.
func AsValue(name string) (ir.Value, bool) {
	if fn, ok := Lookup(name); ok {
		return ir.Const{V: fn}, true
	}
	if tok, ok := Token(name); ok {
		return ir.Const{V: tok}, true
	}
	return nil, false
}
