package runtime

import (
	"sort"
	"sync"

	"github.com/wippyai/bridgegen/errors"
)

// Func is a callback reachable through a function pointer stored in memory:
// a destructor trampoline, a container drop, or a control block release. It
// receives one address.
type Func func(addr uint32) error

type symbol struct {
	name string
	fn   Func
}

// SymbolTable assigns function pointer values to callbacks. Index 0 is the
// null function pointer.
type SymbolTable struct {
	mu     sync.RWMutex
	byName map[string]uint32
	funcs  []symbol
}

// NewSymbolTable returns an empty table.
func NewSymbolTable() *SymbolTable {
	return &SymbolTable{
		byName: make(map[string]uint32),
		funcs:  []symbol{{}},
	}
}

// Define binds name to fn and returns its function pointer value.
func (s *SymbolTable) Define(name string, fn Func) (uint32, error) {
	if name == "" || fn == nil {
		return 0, errors.InvalidInput(errors.PhaseRuntime, "symbol needs a name and a function")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, dup := s.byName[name]; dup {
		return 0, errors.New(errors.PhaseRuntime, errors.KindInvalidInput).
			Detail("symbol %q is already defined", name).Build()
	}
	idx := uint32(len(s.funcs))
	s.funcs = append(s.funcs, symbol{name: name, fn: fn})
	s.byName[name] = idx
	return idx, nil
}

// Defined reports whether name is bound.
func (s *SymbolTable) Defined(name string) bool {
	_, ok := s.Index(name)
	return ok
}

// Index returns the function pointer value of name.
func (s *SymbolTable) Index(name string) (uint32, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byName[name]
	return idx, ok
}

// Name returns the symbol bound to function pointer idx.
func (s *SymbolTable) Name(idx uint32) (string, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx == 0 || int(idx) >= len(s.funcs) {
		return "", false
	}
	return s.funcs[idx].name, true
}

// Call invokes the function behind idx with addr.
func (s *SymbolTable) Call(idx, addr uint32) error {
	s.mu.RLock()
	if idx == 0 || int(idx) >= len(s.funcs) {
		s.mu.RUnlock()
		return errors.New(errors.PhaseRuntime, errors.KindNotFound).
			Detail("call through invalid function pointer %d", idx).Build()
	}
	fn := s.funcs[idx].fn
	s.mu.RUnlock()
	return fn(addr)
}

// CallNamed invokes the function bound to name with addr.
func (s *SymbolTable) CallNamed(name string, addr uint32) error {
	idx, ok := s.Index(name)
	if !ok {
		return errors.NotFound(errors.PhaseRuntime, "symbol", name)
	}
	return s.Call(idx, addr)
}

// Names returns the defined symbols in sorted order.
func (s *SymbolTable) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.byName))
	for n := range s.byName {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
