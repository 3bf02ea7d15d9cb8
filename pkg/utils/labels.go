package utils

import "fmt"

// LabelCounter generates unique, monotonically increasing label names scoped
// to a prefix. The VM emitter's global labels and JackC's per-subroutine label
// hygiene both use it; HackAsm's variable allocation (hack.CodeGenerator)
// keeps its own address counter instead.
type LabelCounter struct {
	counts map[string]int
}

// NewLabelCounter returns a LabelCounter with every prefix starting at 0.
func NewLabelCounter() LabelCounter {
	return LabelCounter{counts: map[string]int{}}
}

// Next returns "PREFIX_N" for the given prefix, where N starts at 0 and
// increments on every subsequent call made with that same prefix.
func (lc *LabelCounter) Next(prefix string) string {
	if lc.counts == nil {
		lc.counts = map[string]int{}
	}
	n := lc.counts[prefix]
	lc.counts[prefix] = n + 1
	return fmt.Sprintf("%s_%d", prefix, n)
}

// Reset rewinds every prefix back to 0. (JackC's ScopeTable starts each
// subroutine with a fresh NewLabelCounter rather than calling Reset.)
func (lc *LabelCounter) Reset() {
	lc.counts = map[string]int{}
}
