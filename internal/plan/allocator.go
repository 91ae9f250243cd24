package plan

import (
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/roach88/projmerge/internal/ir"
)

// IDAllocator hands out fresh node ids: "n1", "n2", ...
//
// Thread-safety: IDAllocator is safe for concurrent use via internal mutex.
type IDAllocator struct {
	mu   sync.Mutex
	next int
}

// NewIDAllocator creates an allocator whose first id is "n1".
func NewIDAllocator() *IDAllocator {
	return &IDAllocator{next: 1}
}

// Next returns a fresh id.
func (a *IDAllocator) Next() NodeID {
	a.mu.Lock()
	defer a.mu.Unlock()

	id := NodeID("n" + strconv.Itoa(a.next))
	a.next++
	return id
}

// Observe records an id chosen outside the allocator so that Next never
// returns it. Ids not of the form "n<digits>" cannot collide and are
// ignored.
func (a *IDAllocator) Observe(id NodeID) {
	rest, ok := strings.CutPrefix(string(id), "n")
	if !ok {
		return
	}
	n, err := strconv.Atoi(rest)
	if err != nil || n < 0 {
		return
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if n >= a.next {
		a.next = n + 1
	}
}

// SymbolAllocator creates unique symbols and records their types. It plays
// the role of the type provider: a Symbol carries only its name.
//
// Thread-safety: SymbolAllocator is safe for concurrent use via internal
// mutex.
type SymbolAllocator struct {
	mu    sync.Mutex
	types map[ir.Symbol]ir.Type
	order []ir.Symbol
}

// NewSymbolAllocator creates an empty allocator.
func NewSymbolAllocator() *SymbolAllocator {
	return &SymbolAllocator{types: make(map[ir.Symbol]ir.Type)}
}

// Declare registers an existing symbol. Declaring the same symbol twice is
// allowed only with the same type, or when either type is unknown (the
// known type wins).
func (a *SymbolAllocator) Declare(s ir.Symbol, t ir.Type) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	existing, ok := a.types[s]
	if !ok {
		a.types[s] = t
		a.order = append(a.order, s)
		return nil
	}
	switch {
	case existing == t || t == ir.TypeUnknown:
		return nil
	case existing == ir.TypeUnknown:
		a.types[s] = t
		return nil
	default:
		return fmt.Errorf("symbol %q declared as %s, cannot redeclare as %s", s, existing, t)
	}
}

// NewSymbol returns a symbol named hint if unused, else hint_1, hint_2, ...
func (a *SymbolAllocator) NewSymbol(hint string, t ir.Type) ir.Symbol {
	if hint == "" {
		hint = "expr"
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	s := ir.Symbol(hint)
	for i := 1; ; i++ {
		if _, taken := a.types[s]; !taken {
			break
		}
		s = ir.Symbol(hint + "_" + strconv.Itoa(i))
	}
	a.types[s] = t
	a.order = append(a.order, s)
	return s
}

// TypeOf returns the declared type of s.
func (a *SymbolAllocator) TypeOf(s ir.Symbol) (ir.Type, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()

	t, ok := a.types[s]
	return t, ok
}

// Symbols returns every known symbol in declaration order.
func (a *SymbolAllocator) Symbols() []ir.Symbol {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]ir.Symbol, len(a.order))
	copy(out, a.order)
	return out
}

// Types returns a copy of the symbol-to-type table.
func (a *SymbolAllocator) Types() map[ir.Symbol]ir.Type {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make(map[ir.Symbol]ir.Type, len(a.types))
	for s, t := range a.types {
		out[s] = t
	}
	return out
}
