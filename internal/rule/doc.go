// Package rule provides the plan rewrite rules and the contract the
// optimizer uses to invoke them.
//
// A Rule declares a structural Pattern and an Apply function. Apply is a
// pure function over immutable plan nodes: it either returns a replacement
// for the matched node (same id) or reports that it does not apply. Rules
// never fail, never decide when they run, and resolve sources through the
// Context's Lookup on every call.
//
// Rules are safe to call concurrently on disjoint plan fragments.
package rule
