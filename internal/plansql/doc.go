// Package plansql compiles plans to SQLite SQL and evaluates them.
//
// The optimizer never executes plans. This package exists so rewrites can
// be checked end to end: a plan and its optimized form are compiled, run
// against the same in-memory database, and their rows compared.
//
// Supported nodes: Project, Filter, Values, TableScan (GroupReferences
// when the compiler has a Lookup). Expression operators map to their SQL
// spellings (== to =, != to <>, && to AND, || to OR, ! to NOT).
package plansql
