package gdb

import (
	"regexp"
	"strconv"
	"strings"
)

const prompt = "(gdb) "

type lineKind int

const (
	lineOther lineKind = iota
	lineBreakpointHit
	lineBreakpointSet
	lineStopped
	lineRegister
	lineMemory
)

func (k lineKind) String() string {
	switch k {
	case lineBreakpointHit:
		return "breakpoint-hit"
	case lineBreakpointSet:
		return "breakpoint-set"
	case lineStopped:
		return "stopped"
	case lineRegister:
		return "register"
	case lineMemory:
		return "memory"
	default:
		return "other"
	}
}

// outputLine is one classified line of gdb output.
type outputLine struct {
	kind lineKind

	breakpoint int    // hit, set
	address    uint64 // set, memory

	register int // register
	value    uint64

	bytes []byte // memory

	location SourceLocation // any kind; zero if absent
}

var locationPattern = regexp.MustCompile(` at (\S+):(\d+)\.?\s*$`)

// stripPrompt removes any number of leading "(gdb) " prompts. gdb prints
// the prompt without a newline, so it prefixes the next reply line.
func stripPrompt(s string) string {
	for strings.HasPrefix(s, prompt) {
		s = s[len(prompt):]
	}
	return s
}

func classify(s string) outputLine {
	s = strings.TrimRight(stripPrompt(s), "\r\n")
	out := outputLine{location: parseLocation(s)}

	switch {
	case strings.HasPrefix(s, "Breakpoint "):
		if id, addr, ok := parseBreakpointSet(s); ok {
			out.kind = lineBreakpointSet
			out.breakpoint = id
			out.address = addr
		} else if id, ok := parseBreakpointHit(s); ok {
			out.kind = lineBreakpointHit
			out.breakpoint = id
		}
	case strings.HasPrefix(s, "Program received signal"),
		strings.HasPrefix(s, "Program stopped"):
		out.kind = lineStopped
	default:
		if i, v, ok := parseRegister(s); ok {
			out.kind = lineRegister
			out.register = i
			out.value = v
		} else if addr, b, ok := parseMemory(s); ok {
			out.kind = lineMemory
			out.address = addr
			out.bytes = b
		}
	}
	return out
}

// parseBreakpointHit reads "Breakpoint <id>, ...". The id is the second
// space-separated token of the text before the first comma.
func parseBreakpointHit(s string) (int, bool) {
	head, _, found := strings.Cut(s, ",")
	if !found {
		return 0, false
	}
	tokens := strings.Split(head, " ")
	if len(tokens) != 2 {
		return 0, false
	}
	id, err := strconv.Atoi(tokens[1])
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// parseBreakpointSet reads "Breakpoint <id> at 0x<addr>[: file ...]".
func parseBreakpointSet(s string) (int, uint64, bool) {
	fields := strings.Fields(s)
	if len(fields) < 4 || fields[2] != "at" {
		return 0, 0, false
	}
	id, err := strconv.Atoi(fields[1])
	if err != nil || id <= 0 {
		return 0, 0, false
	}
	addr, ok := parseHex(strings.TrimSuffix(fields[3], ":"))
	if !ok {
		return 0, 0, false
	}
	return id, addr, true
}

// parseRegister reads an "info registers" row: name, hex value, natural value.
func parseRegister(s string) (int, uint64, bool) {
	fields := strings.Fields(s)
	if len(fields) < 2 {
		return 0, 0, false
	}
	i, ok := lookupRegister(fields[0])
	if !ok {
		return 0, 0, false
	}
	v, ok := parseHex(fields[1])
	if !ok {
		return 0, 0, false
	}
	return i, v, true
}

// parseMemory reads an "x/<n>xb" row: "0x<addr>[ <sym>]:" then hex bytes.
func parseMemory(s string) (uint64, []byte, bool) {
	head, tail, found := strings.Cut(s, ":")
	if !found {
		return 0, nil, false
	}
	headFields := strings.Fields(head)
	if len(headFields) == 0 {
		return 0, nil, false
	}
	addr, ok := parseHex(headFields[0])
	if !ok {
		return 0, nil, false
	}

	fields := strings.Fields(tail)
	if len(fields) == 0 {
		return 0, nil, false
	}
	b := make([]byte, 0, len(fields))
	for _, f := range fields {
		if !strings.HasPrefix(f, "0x") {
			return 0, nil, false
		}
		v, err := strconv.ParseUint(f[2:], 16, 8)
		if err != nil {
			return 0, nil, false
		}
		b = append(b, byte(v))
	}
	return addr, b, true
}

func parseLocation(s string) SourceLocation {
	m := locationPattern.FindStringSubmatch(s)
	if m == nil {
		return SourceLocation{}
	}
	line, err := strconv.Atoi(m[2])
	if err != nil || line <= 0 {
		return SourceLocation{}
	}
	return SourceLocation{File: m[1], Line: line}
}

func parseHex(s string) (uint64, bool) {
	if !strings.HasPrefix(s, "0x") {
		return 0, false
	}
	v, err := strconv.ParseUint(s[2:], 16, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}
