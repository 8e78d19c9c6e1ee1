// Package parser executes a format's instruction list against single log
// lines.
//
// Parsing is a single left-to-right pass with two cursors: index, the current
// scan position, and mark, the start of the field being built. String fields
// are recorded as byte ranges into the line rather than copies; a Row owns
// its line and every range in it.
package parser
