package ecs

import "unsafe"

// iComponentStorage is an interface for a type-erased component column.
// Slot indices are chosen by the owning archetype so every column of an
// archetype stays aligned.
type iComponentStorage interface {
	Set(index int, item any) bool
	Delete(index int)
	Get(index int) any
	Pointer(index int) unsafe.Pointer
	CopyTo(index int, dst unsafe.Pointer)
	Has(index int) bool
	Compact(order []int)
	Len() int
}
