// Package disasm obtains and searches the session's disassembly listing.
//
// The listing is the standard output of "<tool> -D <elf>", captured once
// at startup and never modified afterwards.
package disasm

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strconv"
	"strings"

	"github.com/dshills/vmdb/internal/integration/process"
	"github.com/dshills/vmdb/internal/renderer/core"
)

// TabWidth is the tab stop used by objdump's column layout.
const TabWidth = 8

// ErrEmptyListing is returned when the disassembler produced no output.
var ErrEmptyListing = errors.New("disassembler produced no output")

// Line is one line of the listing.
type Line struct {
	// Text is the line with tabs expanded.
	Text string
	// Label is the trimmed text before the first colon, or "" if the
	// line has no hexadecimal address label.
	Label string
	// Address is the label's value when Label is set.
	Address uint64
}

// HasAddress reports whether the line carries an address label.
func (l Line) HasAddress() bool { return l.Label != "" }

// Listing is an immutable disassembly listing.
type Listing struct {
	lines []Line
	text  []string
}

// Parse splits disassembler output into a listing.
func Parse(output string) *Listing {
	l := &Listing{}
	sc := bufio.NewScanner(strings.NewReader(output))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := parseLine(sc.Text())
		l.lines = append(l.lines, line)
		l.text = append(l.text, line.Text)
	}
	return l
}

func parseLine(raw string) Line {
	line := Line{Text: core.ExpandTabs(raw, TabWidth)}

	head, _, found := strings.Cut(raw, ":")
	if !found {
		return line
	}
	label := strings.ToLower(strings.TrimSpace(head))
	if label == "" || len(label) > 16 {
		return line
	}
	addr, err := strconv.ParseUint(label, 16, 64)
	if err != nil {
		return line
	}
	line.Label = label
	line.Address = addr
	return line
}

// Load runs "<tool> -D <elf>" through sup and parses its output.
func Load(ctx context.Context, sup *process.Supervisor, tool, elf string) (*Listing, error) {
	out, err := sup.Run(ctx, "disassembler", exec.Command(tool, "-D", elf))
	if err != nil {
		return nil, fmt.Errorf("disassemble %s: %w", elf, err)
	}
	l := Parse(string(out))
	if l.Len() == 0 {
		return nil, fmt.Errorf("disassemble %s: %w", elf, ErrEmptyListing)
	}
	return l, nil
}

// Len returns the number of lines.
func (l *Listing) Len() int { return len(l.lines) }

// Line returns line i.
func (l *Listing) Line(i int) Line { return l.lines[i] }

// Text returns every line's display text. The slice must not be modified.
func (l *Listing) Text() []string { return l.text }

// Find returns the index of the first line whose address label matches ip.
// A label matches when the hexadecimal form of ip is a suffix of it, so
// zero-padded labels match unpadded addresses.
func (l *Listing) Find(ip uint64) (int, bool) {
	hex := strconv.FormatUint(ip, 16)
	for i, line := range l.lines {
		if line.HasAddress() && strings.HasSuffix(line.Label, hex) {
			return i, true
		}
	}
	return -1, false
}
