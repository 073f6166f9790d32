package graph

// bitset is a visited set over dense node indexes
type bitset []uint64

func newBitset(n int) bitset {
	return make(bitset, (n+63)/64)
}

func (b bitset) test(i int) bool {
	return b[i>>6]&(1<<(uint(i)&63)) != 0
}

func (b bitset) set(i int) {
	b[i>>6] |= 1 << (uint(i) & 63)
}

// testAndSet marks i and reports whether it was already marked
func (b bitset) testAndSet(i int) bool {
	if b.test(i) {
		return true
	}
	b.set(i)
	return false
}

func (b bitset) clear() {
	clear(b)
}
