// Package debugger observes a running program through the VM hook. Line
// breakpoints print the call stack; a profile counts instructions per
// function.
package debugger

import (
	"fmt"
	"io"
	"sort"

	"github.com/dustin/go-humanize"

	"monkey/internal/bytecode"
)

// Breakpoint fires each time execution enters Line.
type Breakpoint struct {
	ID       int
	Line     int
	HitCount int
}

// StackFrame is one active call as seen by the debugger.
type StackFrame struct {
	Function string
	Line     int
	Column   int
}

// Debugger implements vm.Hook.
type Debugger struct {
	out         io.Writer
	trace       bool
	breakpoints map[int]*Breakpoint
	nextBpID    int
	callStack   []StackFrame
	lastLine    int

	instructions map[string]int
	calls        map[string]int
}

func NewDebugger(out io.Writer) *Debugger {
	return &Debugger{
		out:          out,
		breakpoints:  make(map[int]*Breakpoint),
		nextBpID:     1,
		instructions: make(map[string]int),
		calls:        make(map[string]int),
	}
}

// SetTrace turns per-instruction tracing on or off.
func (d *Debugger) SetTrace(on bool) {
	d.trace = on
}

// AddBreakpoint adds a line breakpoint and returns its ID.
func (d *Debugger) AddBreakpoint(line int) int {
	bp := &Breakpoint{ID: d.nextBpID, Line: line}
	d.breakpoints[line] = bp
	d.nextBpID++
	return bp.ID
}

// Breakpoints returns the breakpoints ordered by ID.
func (d *Debugger) Breakpoints() []*Breakpoint {
	bps := make([]*Breakpoint, 0, len(d.breakpoints))
	for _, bp := range d.breakpoints {
		bps = append(bps, bp)
	}
	sort.Slice(bps, func(i, j int) bool { return bps[i].ID < bps[j].ID })
	return bps
}

// CallStack returns the active frames, innermost first.
func (d *Debugger) CallStack() []StackFrame {
	frames := make([]StackFrame, len(d.callStack))
	for i := range d.callStack {
		frames[i] = d.callStack[len(d.callStack)-1-i]
	}
	return frames
}

func (d *Debugger) OnInstruction(fn string, ip int, op bytecode.OpCode, debug bytecode.DebugInfo, depth int) {
	d.instructions[fn]++
	if n := len(d.callStack); n > 0 && debug.Line > 0 {
		d.callStack[n-1].Line = debug.Line
		d.callStack[n-1].Column = debug.Column
	}
	if d.trace {
		fmt.Fprintf(d.out, "%*s%-12s %04d %-15s", 2*(depth-1), "", fn, ip, op)
		if debug.Line > 0 {
			fmt.Fprintf(d.out, " [L%d, C%d]", debug.Line, debug.Column)
		}
		fmt.Fprintln(d.out)
	}

	if debug.Line == 0 || debug.Line == d.lastLine {
		return
	}
	d.lastLine = debug.Line
	if bp, ok := d.breakpoints[debug.Line]; ok {
		bp.HitCount++
		fmt.Fprintf(d.out, "breakpoint %d at line %d (hit %d)\n", bp.ID, bp.Line, bp.HitCount)
		for _, frame := range d.CallStack() {
			fmt.Fprintf(d.out, "  at %s [L%d, C%d]\n", frame.Function, frame.Line, frame.Column)
		}
	}
}

func (d *Debugger) OnCall(fn string, depth int) {
	d.calls[fn]++
	d.callStack = append(d.callStack, StackFrame{Function: fn})
	d.lastLine = 0
}

func (d *Debugger) OnReturn(fn string, depth int) {
	if n := len(d.callStack); n > 0 {
		d.callStack = d.callStack[:n-1]
	}
	d.lastLine = 0
}

// Profile is the instruction and call count of one function.
type Profile struct {
	Function     string
	Calls        int
	Instructions int
}

// Profiles returns per-function counts, busiest first.
func (d *Debugger) Profiles() []Profile {
	profiles := make([]Profile, 0, len(d.instructions))
	for fn, n := range d.instructions {
		profiles = append(profiles, Profile{Function: fn, Calls: d.calls[fn], Instructions: n})
	}
	sort.Slice(profiles, func(i, j int) bool {
		if profiles[i].Instructions != profiles[j].Instructions {
			return profiles[i].Instructions > profiles[j].Instructions
		}
		return profiles[i].Function < profiles[j].Function
	})
	return profiles
}

// WriteProfile prints the profile table.
func (d *Debugger) WriteProfile(w io.Writer) {
	fmt.Fprintf(w, "%-20s %12s %14s\n", "function", "calls", "instructions")
	for _, p := range d.Profiles() {
		fmt.Fprintf(w, "%-20s %12s %14s\n", p.Function, humanize.Comma(int64(p.Calls)), humanize.Comma(int64(p.Instructions)))
	}
}
