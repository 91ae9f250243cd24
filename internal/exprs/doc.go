// Package exprs provides the static analyses and rewrites the plan rules run
// over expression trees.
//
// Each analysis is a separate traversal with its own contract:
//   - FreeSymbols / SymbolOccurrences: every symbol reference, including
//     those inside TRY boundaries
//   - TryBoundSymbols: the free symbols of every TRY sub-expression
//   - Substitute / Inline: one-pass replacement of symbol references
//
// All functions are pure and total. Results that are sets are ordered by
// first occurrence in a pre-order walk, so callers never depend on map
// iteration order.
package exprs
