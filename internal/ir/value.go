package ir

import (
	"fmt"
	"slices"
	"strconv"
	"strings"
	"unicode/utf16"
)

// Value is a sealed interface for constant values carried by literals and
// by the canonical plan encoding.
// Only Null, Int, String, Bool, Array and Object implement it.
// There is no float variant: floats break canonical encoding.
type Value interface {
	irValue()
}

// Null is the SQL NULL constant.
type Null struct{}

func (Null) irValue() {}

// Int is a 64-bit integer constant.
type Int int64

func (Int) irValue() {}

// String is a string constant.
type String string

func (String) irValue() {}

// Bool is a boolean constant.
type Bool bool

func (Bool) irValue() {}

// Array is an ordered list of values. Used by the canonical encoding only;
// literals never hold arrays.
type Array []Value

func (Array) irValue() {}

// Object maps string keys to values. Used by the canonical encoding only.
// Use SortedKeys() for deterministic iteration.
type Object map[string]Value

func (Object) irValue() {}

// SortedKeys returns keys in RFC 8785 canonical order (UTF-16 code units).
// Go's sort.Strings compares UTF-8 bytes, which orders some keys differently.
func (obj Object) SortedKeys() []string {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.SortFunc(keys, compareKeysRFC8785)
	return keys
}

// compareKeysRFC8785 compares strings by UTF-16 code units.
func compareKeysRFC8785(a, b string) int {
	a16 := utf16.Encode([]rune(a))
	b16 := utf16.Encode([]rune(b))

	n := min(len(a16), len(b16))
	for i := 0; i < n; i++ {
		if a16[i] != b16[i] {
			if a16[i] < b16[i] {
				return -1
			}
			return 1
		}
	}

	switch {
	case len(a16) < len(b16):
		return -1
	case len(a16) > len(b16):
		return 1
	}
	return 0
}

// FormatValue renders a literal value in expression syntax.
// The output is accepted by the plan compiler's expression parser.
func FormatValue(v Value) string {
	switch val := v.(type) {
	case nil, Null:
		return "null"
	case Int:
		return strconv.FormatInt(int64(val), 10)
	case String:
		return strconv.Quote(string(val))
	case Bool:
		if val {
			return "true"
		}
		return "false"
	case Array:
		parts := make([]string, len(val))
		for i, elem := range val {
			parts[i] = FormatValue(elem)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case Object:
		keys := val.SortedKeys()
		parts := make([]string, len(keys))
		for i, k := range keys {
			parts[i] = strconv.Quote(k) + ": " + FormatValue(val[k])
		}
		return "{" + strings.Join(parts, ", ") + "}"
	default:
		return fmt.Sprintf("<%T>", v)
	}
}

// ValueEqual reports whether two values are structurally equal.
func ValueEqual(a, b Value) bool {
	switch av := a.(type) {
	case nil:
		return b == nil
	case Null:
		_, ok := b.(Null)
		return ok
	case Int:
		bv, ok := b.(Int)
		return ok && av == bv
	case String:
		bv, ok := b.(String)
		return ok && av == bv
	case Bool:
		bv, ok := b.(Bool)
		return ok && av == bv
	case Array:
		bv, ok := b.(Array)
		if !ok || len(av) != len(bv) {
			return false
		}
		for i := range av {
			if !ValueEqual(av[i], bv[i]) {
				return false
			}
		}
		return true
	case Object:
		bv, ok := b.(Object)
		if !ok || len(av) != len(bv) {
			return false
		}
		for k, v := range av {
			other, exists := bv[k]
			if !exists || !ValueEqual(v, other) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
