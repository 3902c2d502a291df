package panel

import "sort"

// BreakpointTable maps debugger-assigned breakpoint ids to the addresses
// they guard. Entries are never removed.
type BreakpointTable struct {
	byID   map[int]uint64
	byAddr map[uint64]int
}

// NewBreakpointTable creates an empty table.
func NewBreakpointTable() *BreakpointTable {
	return &BreakpointTable{
		byID:   make(map[int]uint64),
		byAddr: make(map[uint64]int),
	}
}

// Set records that breakpoint id guards addr.
func (t *BreakpointTable) Set(id int, addr uint64) {
	t.byID[id] = addr
	t.byAddr[addr] = id
}

// Lookup returns the address guarded by id.
func (t *BreakpointTable) Lookup(id int) (uint64, bool) {
	addr, ok := t.byID[id]
	return addr, ok
}

// Guards reports whether any breakpoint guards addr.
func (t *BreakpointTable) Guards(addr uint64) bool {
	_, ok := t.byAddr[addr]
	return ok
}

// Len returns the number of breakpoints.
func (t *BreakpointTable) Len() int { return len(t.byID) }

// IDs returns the breakpoint ids in ascending order.
func (t *BreakpointTable) IDs() []int {
	ids := make([]int, 0, len(t.byID))
	for id := range t.byID {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	return ids
}
