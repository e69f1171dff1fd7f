// Package vm lowers linked trees into instruction sequences and executes them
// on a stack machine.
package vm

import (
	"fmt"
	"strings"

	"github.com/uqbar-project/wollok-go/model"
)

// ---------------------------------------------------------------------------
// Opcode definitions
// ---------------------------------------------------------------------------

// Opcode represents a single instruction of the stack machine.
type Opcode byte

const (
	OpLoad        Opcode = 0x01 // push value of a name from the context chain
	OpStore       Opcode = 0x02 // pop value; bind or rebind a name
	OpPush        Opcode = 0x03 // push an instance by id (or undefined)
	OpPop         Opcode = 0x04 // discard top of operand stack
	OpPushContext Opcode = 0x05 // enter a nested lexical context
	OpPopContext  Opcode = 0x06 // exit one nested context
	OpSwap        Opcode = 0x07 // swap top with element at depth n+1
	OpDup         Opcode = 0x08 // duplicate top of operand stack
	OpInstantiate Opcode = 0x09 // create a runtime instance
	OpInherits    Opcode = 0x0A // pop self; push type-membership boolean
	OpJump        Opcode = 0x0B // unconditional relative jump
	OpCondJump    Opcode = 0x0C // pop boolean; jump if true
	OpCall        Opcode = 0x0D // pop args + receiver; dispatch a message
	OpInit        Opcode = 0x0E // pop args + self; run a constructor
	OpInitNamed   Opcode = 0x0F // pop self + named values; initialize fields
	OpInterrupt   Opcode = 0x10 // pop exception; unwind
	OpReturn      Opcode = 0x11 // pop value; drop frame; push on caller
)

// NoHandler marks a PUSH_CONTEXT without an exception handler.
const NoHandler = -1

// Instruction is one stack-machine operation. Operand use depends on Op; see
// the opcode table for which fields apply.
type Instruction struct {
	Op Opcode

	Name         string   // LOAD/STORE name; CALL message; INSTANTIATE/INHERITS fqn; CALL/INIT lookup-start fqn in Lookup- fields below
	Lookup       bool     // STORE: rebind in the nearest context holding Name
	PushId       string   // PUSH: instance id ("" pushes undefined)
	Handler      int      // PUSH_CONTEXT: relative handler offset (NoHandler for none)
	Depth        int      // SWAP: depth of the swapped element
	Inner        any      // INSTANTIATE: inner value (float64, string, bool, or nil)
	Arity        int      // CALL/INIT: argument count
	LookupStart  string   // CALL/INIT: fqn the method/constructor lookup starts after
	SkipReceiver bool     // CALL: chain the callee context to the root instead of the receiver
	Optional     bool     // INIT: no-op when no constructor of that arity exists
	ArgNames     []string // INIT_NAMED: named-argument field names
	Offset       int      // JUMP/CONDITIONAL_JUMP: relative offset
}

// ---------------------------------------------------------------------------
// Opcode metadata
// ---------------------------------------------------------------------------

// OpcodeInfo holds metadata about an opcode.
type OpcodeInfo struct {
	Name        string // human-readable name
	StackEffect int    // net effect on the operand stack (99 = variable)
}

const variableEffect = 99

var opcodeTable = map[Opcode]OpcodeInfo{
	OpLoad:        {"LOAD", 1},
	OpStore:       {"STORE", -1},
	OpPush:        {"PUSH", 1},
	OpPop:         {"POP", -1},
	OpPushContext: {"PUSH_CONTEXT", 0},
	OpPopContext:  {"POP_CONTEXT", 0},
	OpSwap:        {"SWAP", 0},
	OpDup:         {"DUP", 1},
	OpInstantiate: {"INSTANTIATE", 1},
	OpInherits:    {"INHERITS", 0},
	OpJump:        {"JUMP", 0},
	OpCondJump:    {"CONDITIONAL_JUMP", -1},
	OpCall:        {"CALL", variableEffect},
	OpInit:        {"INIT", variableEffect},
	OpInitNamed:   {"INIT_NAMED", variableEffect},
	OpInterrupt:   {"INTERRUPT", -1},
	OpReturn:      {"RETURN", -1},
}

// Info returns the metadata for an opcode.
func (op Opcode) Info() OpcodeInfo {
	if info, ok := opcodeTable[op]; ok {
		return info
	}
	return OpcodeInfo{Name: fmt.Sprintf("UNKNOWN_%02X", byte(op))}
}

// String implements the Stringer interface.
func (op Opcode) String() string { return op.Info().Name }

// String renders an instruction with its operands.
func (ins Instruction) String() string {
	switch ins.Op {
	case OpLoad:
		return fmt.Sprintf("LOAD %s", ins.Name)
	case OpStore:
		return fmt.Sprintf("STORE %s lookup=%t", ins.Name, ins.Lookup)
	case OpPush:
		if ins.PushId == "" {
			return "PUSH"
		}
		return fmt.Sprintf("PUSH %s", ins.PushId)
	case OpPushContext:
		if ins.Handler == NoHandler {
			return "PUSH_CONTEXT"
		}
		return fmt.Sprintf("PUSH_CONTEXT handler=%+d", ins.Handler)
	case OpSwap:
		return fmt.Sprintf("SWAP %d", ins.Depth)
	case OpInstantiate:
		if ins.Inner == nil {
			return fmt.Sprintf("INSTANTIATE %s", ins.Name)
		}
		return fmt.Sprintf("INSTANTIATE %s %v", ins.Name, ins.Inner)
	case OpInherits:
		return fmt.Sprintf("INHERITS %s", ins.Name)
	case OpJump:
		return fmt.Sprintf("JUMP %+d", ins.Offset)
	case OpCondJump:
		return fmt.Sprintf("CONDITIONAL_JUMP %+d", ins.Offset)
	case OpCall:
		s := fmt.Sprintf("CALL %s/%d", ins.Name, ins.Arity)
		if ins.LookupStart != "" {
			s += " start=" + ins.LookupStart
		}
		if ins.SkipReceiver {
			s += " skipReceiver"
		}
		return s
	case OpInit:
		s := fmt.Sprintf("INIT /%d start=%s", ins.Arity, ins.LookupStart)
		if ins.Optional {
			s += " optional"
		}
		return s
	case OpInitNamed:
		return fmt.Sprintf("INIT_NAMED [%s]", strings.Join(ins.ArgNames, ", "))
	}
	return ins.Op.String()
}

// Disassemble renders an instruction sequence, one per line with offsets.
func Disassemble(code []Instruction) string {
	var b strings.Builder
	for i, ins := range code {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "%04d  %s", i, ins)
	}
	return b.String()
}

// ---------------------------------------------------------------------------
// Builder with label management for jumps
// ---------------------------------------------------------------------------

// Label represents a forward reference in an instruction sequence.
type Label struct {
	resolved bool
	position int
	refs     []int // instruction indexes waiting to be patched
}

// Builder accumulates instructions and patches relative jumps.
type Builder struct {
	code []Instruction
}

// NewBuilder creates an empty instruction builder.
func NewBuilder() *Builder {
	return &Builder{code: make([]Instruction, 0, 16)}
}

// Len returns the number of instructions emitted so far.
func (b *Builder) Len() int { return len(b.code) }

// Code returns the built sequence.
func (b *Builder) Code() []Instruction { return b.code }

// Emit appends an instruction.
func (b *Builder) Emit(ins Instruction) {
	b.code = append(b.code, ins)
}

// NewLabel creates an unresolved label.
func (b *Builder) NewLabel() *Label {
	return &Label{refs: make([]int, 0, 2)}
}

// Mark resolves a label to the current position and patches every pending
// reference. Offsets are relative to the instruction after the jump.
func (b *Builder) Mark(label *Label) {
	if label.resolved {
		panic("vm: label already resolved")
	}
	label.resolved = true
	label.position = len(b.code)
	for _, ref := range label.refs {
		delta := label.position - (ref + 1)
		if b.code[ref].Op == OpPushContext {
			b.code[ref].Handler = delta
		} else {
			b.code[ref].Offset = delta
		}
	}
	label.refs = nil
}

// EmitJump emits JUMP or CONDITIONAL_JUMP targeting a label.
func (b *Builder) EmitJump(op Opcode, label *Label) {
	if label.resolved {
		b.code = append(b.code, Instruction{Op: op, Offset: label.position - (len(b.code) + 1)})
		return
	}
	label.refs = append(label.refs, len(b.code))
	b.code = append(b.code, Instruction{Op: op})
}

// EmitPushContext emits a PUSH_CONTEXT whose handler, if any, is patched from
// a label when it resolves.
func (b *Builder) EmitPushContext(handler *Label) {
	if handler == nil {
		b.code = append(b.code, Instruction{Op: OpPushContext, Handler: NoHandler})
		return
	}
	if handler.resolved {
		b.code = append(b.code, Instruction{Op: OpPushContext, Handler: handler.position - (len(b.code) + 1)})
		return
	}
	handler.refs = append(handler.refs, len(b.code))
	b.code = append(b.code, Instruction{Op: OpPushContext, Handler: NoHandler})
}

// ---------------------------------------------------------------------------
// Convenience emitters
// ---------------------------------------------------------------------------

// EmitLoad emits LOAD name.
func (b *Builder) EmitLoad(name string) { b.Emit(Instruction{Op: OpLoad, Name: name}) }

// EmitStore emits STORE name.
func (b *Builder) EmitStore(name string, lookup bool) {
	b.Emit(Instruction{Op: OpStore, Name: name, Lookup: lookup})
}

// EmitPush emits PUSH id ("" pushes undefined).
func (b *Builder) EmitPush(id string) { b.Emit(Instruction{Op: OpPush, PushId: id}) }

// EmitPushNode emits PUSH for a node id.
func (b *Builder) EmitPushNode(id model.Id) { b.EmitPush(string(id)) }
