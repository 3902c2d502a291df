package gdb

import (
	"fmt"
	"strings"
)

// RegisterNames lists the registers tracked in a MachineState, in display
// order.
var RegisterNames = [...]string{
	"rax", "rbx", "rcx", "rdx", "rsi", "rdi", "rbp", "rsp",
	"r8", "r9", "r10", "r11", "r12", "r13", "r14", "r15",
	"rip", "rflags",
	"cr0", "cr2", "cr3", "cr4", "cr8", "efer",
}

// NumRegisters is the number of tracked registers.
const NumRegisters = len(RegisterNames)

const allRegisters = uint32(1)<<NumRegisters - 1

// gdb reports the 64-bit flags register under its 32-bit name.
var gdbAliases = map[string]string{
	"eflags": "rflags",
}

var registerIndex = func() map[string]int {
	m := make(map[string]int, NumRegisters)
	for i, name := range RegisterNames {
		m[name] = i
	}
	return m
}()

func lookupRegister(gdbName string) (int, bool) {
	if alias, ok := gdbAliases[gdbName]; ok {
		gdbName = alias
	}
	i, ok := registerIndex[gdbName]
	return i, ok
}

// infoRegistersCommand asks gdb for exactly the tracked registers.
func infoRegistersCommand() string {
	names := make([]string, NumRegisters)
	for i, name := range RegisterNames {
		names[i] = name
		for gdbName, alias := range gdbAliases {
			if alias == name {
				names[i] = gdbName
			}
		}
	}
	return "info registers " + strings.Join(names, " ")
}

// SourceLocation is a file and 1-based line reported by gdb.
type SourceLocation struct {
	File string
	Line int
}

// Valid reports whether the location names a file.
func (l SourceLocation) Valid() bool { return l.File != "" && l.Line > 0 }

func (l SourceLocation) String() string {
	if !l.Valid() {
		return "<unknown>"
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// MemoryWindow is a block of debuggee memory starting at Address.
type MemoryWindow struct {
	Address uint64
	Bytes   []byte
}

// MachineState is a snapshot of the debuggee taken at its last stop.
// Snapshots are immutable once published.
type MachineState struct {
	Registers [NumRegisters]uint64
	Location  SourceLocation
	Memory    MemoryWindow
}

// Register returns the value of a tracked register by name.
func (m *MachineState) Register(name string) (uint64, bool) {
	i, ok := registerIndex[name]
	if !ok {
		return 0, false
	}
	return m.Registers[i], true
}

// IP returns the instruction pointer.
func (m *MachineState) IP() uint64 {
	return m.Registers[registerIndex["rip"]]
}

func (m *MachineState) clone() *MachineState {
	c := *m
	if m.Memory.Bytes != nil {
		c.Memory.Bytes = append([]byte(nil), m.Memory.Bytes...)
	}
	return &c
}
