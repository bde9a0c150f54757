package ecs

import "unsafe"

const (
	genericBlockSize = 64
)

// genericComponentStorage is a generic implementation of iComponentStorage.
// It stores components of a specific type `T` in heap blocks so a pointer to a
// slot stays valid while the column grows.
type genericComponentStorage[T any] struct {
	blocks []*[genericBlockSize]T
	filled []*[genericBlockSize]bool
	count  int
}

func (cs *genericComponentStorage[T]) ensure(index int) {
	for index/genericBlockSize >= len(cs.blocks) {
		cs.blocks = append(cs.blocks, new([genericBlockSize]T))
		cs.filled = append(cs.filled, new([genericBlockSize]bool))
	}
}

// Set stores a component at index. The item may be a T or a *T.
func (cs *genericComponentStorage[T]) Set(index int, item any) bool {
	var concreteItem T
	if ptr, ok := item.(*T); ok {
		concreteItem = *ptr
	} else if val, ok := item.(T); ok {
		concreteItem = val
	} else {
		return false
	}

	cs.ensure(index)
	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	cs.blocks[blockIdx][slotIdx] = concreteItem
	if !cs.filled[blockIdx][slotIdx] {
		cs.filled[blockIdx][slotIdx] = true
		cs.count++
	}
	return true
}

// Get returns a pointer to the component at the given index.
func (cs *genericComponentStorage[T]) Get(index int) any {
	if !cs.Has(index) {
		return nil
	}
	return &cs.blocks[index/genericBlockSize][index%genericBlockSize]
}

// Pointer returns the address of the component at index, or nil.
func (cs *genericComponentStorage[T]) Pointer(index int) unsafe.Pointer {
	if !cs.Has(index) {
		return nil
	}
	return unsafe.Pointer(&cs.blocks[index/genericBlockSize][index%genericBlockSize])
}

// CopyTo copies the component at index into dst, which must point at a T.
func (cs *genericComponentStorage[T]) CopyTo(index int, dst unsafe.Pointer) {
	if !cs.Has(index) {
		var zero T
		*(*T)(dst) = zero
		return
	}
	*(*T)(dst) = cs.blocks[index/genericBlockSize][index%genericBlockSize]
}

// Delete marks a component slot as empty.
func (cs *genericComponentStorage[T]) Delete(index int) {
	if !cs.Has(index) {
		return
	}

	blockIdx := index / genericBlockSize
	slotIdx := index % genericBlockSize

	cs.filled[blockIdx][slotIdx] = false
	var zero T
	cs.blocks[blockIdx][slotIdx] = zero
	cs.count--
}

// Has checks if a component exists at the given index.
func (cs *genericComponentStorage[T]) Has(index int) bool {
	if index < 0 {
		return false
	}

	blockIdx := index / genericBlockSize
	if blockIdx >= len(cs.blocks) {
		return false
	}
	return cs.filled[blockIdx][index%genericBlockSize]
}

// Compact rewrites the column so that order[i] (an old index) lands at index i.
func (cs *genericComponentStorage[T]) Compact(order []int) {
	numBlocks := (len(order) + genericBlockSize - 1) / genericBlockSize
	if numBlocks == 0 {
		numBlocks = 1
	}
	newBlocks := make([]*[genericBlockSize]T, numBlocks)
	newFilled := make([]*[genericBlockSize]bool, numBlocks)
	for i := range newBlocks {
		newBlocks[i] = new([genericBlockSize]T)
		newFilled[i] = new([genericBlockSize]bool)
	}

	count := 0
	for writePos, readIdx := range order {
		if !cs.Has(readIdx) {
			continue
		}
		newBlocks[writePos/genericBlockSize][writePos%genericBlockSize] = cs.blocks[readIdx/genericBlockSize][readIdx%genericBlockSize]
		newFilled[writePos/genericBlockSize][writePos%genericBlockSize] = true
		count++
	}

	cs.blocks = newBlocks
	cs.filled = newFilled
	cs.count = count
}

// Len returns the number of filled slots.
func (cs *genericComponentStorage[T]) Len() int {
	return cs.count
}
