// Package heap fixes the object layout and the allocation contract used by
// generated code.
//
// Objects live in linear memory as consecutive i32 words, one per field in
// declaration order. Allocation is a bump pointer held in a single mutable
// global that only ever grows: there is no reclamation. Address 0 is never
// handed out and encodes None.
package heap

import "chocowat/internal/wat"

const (
	WordSize = 4
	// PointerGlobal is the name of the global holding the next free address.
	// It renders as $$heap and cannot clash with a source identifier.
	PointerGlobal = "$heap"
	// DefaultBase is the first address handed out by a fresh heap.
	DefaultBase int32 = 4
)

// FieldOffset is the byte offset of field index from an object's base.
func FieldOffset(index int) int32 { return int32(index * WordSize) }

// Size is the number of bytes occupied by an object with nfields fields.
func Size(nfields int) int32 { return int32(nfields * WordSize) }

// Allocator emits the bump-allocation sequences for object construction and
// keeps count of what it has emitted.
type Allocator struct {
	Global string
	sites  int
	bytes  int64
}

func NewAllocator() *Allocator { return &Allocator{Global: PointerGlobal} }

// Alloc returns code that stores each default at base+index*4, leaves the
// base address on the stack and advances the pointer by the object size.
func (a *Allocator) Alloc(defaults []int32) []wat.Instr {
	code := make([]wat.Instr, 0, 5*len(defaults)+5)
	for i, v := range defaults {
		code = append(code,
			wat.GlobalGet(a.Global),
			wat.Const(FieldOffset(i)),
			wat.Simple(wat.OpAdd),
			wat.Const(v),
			wat.Simple(wat.OpStore),
		)
	}
	code = append(code,
		wat.GlobalGet(a.Global),
		wat.GlobalGet(a.Global),
		wat.Const(Size(len(defaults))),
		wat.Simple(wat.OpAdd),
		wat.GlobalSet(a.Global),
	)
	a.sites++
	a.bytes += int64(Size(len(defaults)))
	return code
}

// FieldAddr turns an object base on the stack into the address of field
// index.
func (a *Allocator) FieldAddr(index int) []wat.Instr {
	return []wat.Instr{wat.Const(FieldOffset(index)), wat.Simple(wat.OpAdd)}
}

// Sites reports how many construction sites were emitted and the total
// object bytes they allocate per execution.
func (a *Allocator) Sites() (sites int, bytes int64) { return a.sites, a.bytes }
