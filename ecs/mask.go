package ecs

import (
	"math/bits"
	"strconv"
	"strings"
)

// componentMask is a growable bitset over ComponentIDs.
type componentMask []uint64

func newComponentMask(ids ...ComponentID) componentMask {
	var m componentMask
	for _, id := range ids {
		m = m.with(id)
	}
	return m
}

func (m componentMask) with(id ComponentID) componentMask {
	word := int(id / 64)
	if word >= len(m) {
		grown := make(componentMask, word+1)
		copy(grown, m)
		m = grown
	}
	m[word] |= 1 << (id % 64)
	return m
}

func (m componentMask) has(id ComponentID) bool {
	word := int(id / 64)
	if word >= len(m) {
		return false
	}
	return m[word]&(1<<(id%64)) != 0
}

// containsAll reports whether every bit of other is set in m.
func (m componentMask) containsAll(other componentMask) bool {
	for i, w := range other {
		if w == 0 {
			continue
		}
		if i >= len(m) || m[i]&w != w {
			return false
		}
	}
	return true
}

// intersects reports whether m and other share a bit.
func (m componentMask) intersects(other componentMask) bool {
	n := min(len(m), len(other))
	for i := 0; i < n; i++ {
		if m[i]&other[i] != 0 {
			return true
		}
	}
	return false
}

func (m componentMask) count() int {
	n := 0
	for _, w := range m {
		n += bits.OnesCount64(w)
	}
	return n
}

// key returns a canonical map key, ignoring trailing zero words.
func (m componentMask) key() string {
	end := len(m)
	for end > 0 && m[end-1] == 0 {
		end--
	}
	var b strings.Builder
	for i := 0; i < end; i++ {
		if i > 0 {
			b.WriteByte(':')
		}
		b.WriteString(strconv.FormatUint(m[i], 16))
	}
	return b.String()
}
