// Package ir provides the expression intermediate representation shared by
// the plan model, the rewrite rules and the compiler.
//
// This package contains types and pure helpers only. All other internal
// packages import ir; ir imports nothing internal.
//
// Key design constraints:
//   - Expressions are immutable trees; rewrites build new nodes
//   - Symbols compare by name; their types live in the symbol allocator
//   - NO float values anywhere - literals are null, int64, string or bool
//   - Fingerprints use RFC 8785 canonical JSON with domain-separated SHA-256
package ir
