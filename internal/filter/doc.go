// Package filter implements the per-column filter language.
//
// A filter line has the form
//
//	column = expr
//
// where expr combines double-quoted substrings with ! (not), & or AND, | or
// OR, and parentheses. AND binds tighter than OR. For example:
//
//	message = "timeout" & !("retry" | "ignored")
//
// Text is first lexed, then matched by a recursive-descent grammar into a
// generic parse tree, and finally folded into an Expr. Compile turns a Rule
// into a SQL predicate over one column.
package filter
