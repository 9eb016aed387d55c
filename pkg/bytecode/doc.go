// Package bytecode provides the Plume stack machine: its instruction set, the
// Module artifact produced by the compiler, the virtual machine that executes
// it, and the binary module format used to persist it.
//
// # Architecture Overview
//
//   - Opcodes: single-byte instructions with 0, 1 or 2 operand bytes. Widths
//     come from one metadata table (see GetOpcodeInfo) shared by the
//     generator, Relocate, the VM tracer and the disassembler.
//
//   - Module: an ordered constant pool of integers, strings and function
//     symbols, plus a designated entry function. Built-in functions always
//     occupy the first pool slots and are never written to disk.
//
//   - VM: a fetch/decode/execute loop over a Module driven by an explicit
//     call stack of StackFrames. It never panics; every failure is reported
//     as a FailureCode in the Result.
//
//   - ModuleWriter / ModuleReader: a length-prefixed binary layout with a
//     "types" section followed by a "consts" section.
//
// # Addressing
//
// Jump operands are 2-byte big-endian absolute offsets into the same
// function's code. Calls name their callee by a 2-byte constant-pool index,
// never by address, so each function body can be relocated independently.
//
// # Binary layout
//
//	"types" marker (length-prefixed)
//	[type_count:1] { [kind:1] [name] kind-specific name lists }
//	"consts" marker (length-prefixed)
//	[const_count:1] { [tag:1] payload }
//
// Every name is a 1-byte length followed by that many bytes.
package bytecode
